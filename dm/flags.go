package dm

import "strings"

// Flags is the bitmask carried in the flags field of the control header. Some
// bits are set by the caller to modify a command, others are set by the kernel
// in the response. The values mirror include/uapi/linux/dm-ioctl.h.
type Flags uint32

const (
	// FlagReadonly marks a device read-only (in), or reports it as such (out).
	FlagReadonly Flags = 1 << 0
	// FlagSuspend suspends a device on DM_DEV_SUSPEND; leaving it clear
	// resumes the device instead.
	FlagSuspend Flags = 1 << 1
	// FlagPersistentDev requests a specific device number on create.
	FlagPersistentDev Flags = 1 << 3
	// FlagStatusTable makes DM_TABLE_STATUS return the table parameters
	// instead of the runtime status.
	FlagStatusTable Flags = 1 << 4
	// FlagActivePresent reports that the device has an active table (out).
	FlagActivePresent Flags = 1 << 5
	// FlagInactivePresent reports a loaded but not yet activated table (out).
	FlagInactivePresent Flags = 1 << 6
	// FlagBufferFull reports that the response did not fit the supplied
	// buffer; the caller must grow the buffer and repeat the ioctl (out).
	FlagBufferFull Flags = 1 << 8
	// FlagSkipBDGet is obsolete and ignored by current kernels.
	FlagSkipBDGet Flags = 1 << 9
	// FlagSkipLockFS skips the filesystem freeze on suspend.
	FlagSkipLockFS Flags = 1 << 10
	// FlagNoFlush suspends without flushing queued I/O.
	FlagNoFlush Flags = 1 << 11
	// FlagQueryInactive directs a table query at the inactive table.
	FlagQueryInactive Flags = 1 << 12
	// FlagUeventGenerated reports that the command emitted a uevent (out).
	FlagUeventGenerated Flags = 1 << 13
	// FlagUUID makes DM_DEV_RENAME set the device UUID instead of the name.
	FlagUUID Flags = 1 << 14
	// FlagSecureData wipes all buffers involved in the ioctl after use.
	FlagSecureData Flags = 1 << 15
	// FlagDataOut reports that the message returned data in the payload (out).
	FlagDataOut Flags = 1 << 16
	// FlagDeferredRemove removes the device once its last user closes it.
	FlagDeferredRemove Flags = 1 << 17
	// FlagInternalSuspend reports an internally suspended device (out).
	FlagInternalSuspend Flags = 1 << 18
)

var flagNames = []struct {
	bit  Flags
	name string
}{
	{FlagReadonly, "readonly"},
	{FlagSuspend, "suspend"},
	{FlagPersistentDev, "persistent-dev"},
	{FlagStatusTable, "status-table"},
	{FlagActivePresent, "active-present"},
	{FlagInactivePresent, "inactive-present"},
	{FlagBufferFull, "buffer-full"},
	{FlagSkipBDGet, "skip-bdget"},
	{FlagSkipLockFS, "skip-lockfs"},
	{FlagNoFlush, "noflush"},
	{FlagQueryInactive, "query-inactive"},
	{FlagUeventGenerated, "uevent-generated"},
	{FlagUUID, "uuid"},
	{FlagSecureData, "secure-data"},
	{FlagDataOut, "data-out"},
	{FlagDeferredRemove, "deferred-remove"},
	{FlagInternalSuspend, "internal-suspend"},
}

func (f Flags) String() string {
	var set []string
	for _, fn := range flagNames {
		if f&fn.bit != 0 {
			set = append(set, fn.name)
		}
	}
	return strings.Join(set, ",")
}

// UdevFlags selects how udev processes the uevent a state-changing command
// emits. The kernel passes them through to the udev rule verbatim in the high
// half of the event correlator field.
type UdevFlags uint16

const (
	// UdevDisableDmRules skips the default device-mapper udev rules.
	UdevDisableDmRules UdevFlags = 1 << 0
	// UdevDisableSubsystemRules skips subsystem (e.g. LVM) udev rules.
	UdevDisableSubsystemRules UdevFlags = 1 << 1
	// UdevDisableDiskRules skips the generic disk udev rules.
	UdevDisableDiskRules UdevFlags = 1 << 2
	// UdevDisableOtherRules skips all remaining udev rules.
	UdevDisableOtherRules UdevFlags = 1 << 3
	// UdevLowPriority lowers the udev rule processing priority.
	UdevLowPriority UdevFlags = 1 << 4
	// UdevDisableLibraryFallback disables node creation by the library when
	// udev does not handle the event.
	UdevDisableLibraryFallback UdevFlags = 1 << 5
	// UdevPrimarySource marks the event as coming from the process that
	// changed device state. Only primary source events participate in the
	// cookie semaphore handshake.
	UdevPrimarySource UdevFlags = 1 << 6
)

var udevFlagNames = []struct {
	bit  UdevFlags
	name string
}{
	{UdevDisableDmRules, "disable-dm-rules"},
	{UdevDisableSubsystemRules, "disable-subsystem-rules"},
	{UdevDisableDiskRules, "disable-disk-rules"},
	{UdevDisableOtherRules, "disable-other-rules"},
	{UdevLowPriority, "low-priority"},
	{UdevDisableLibraryFallback, "disable-library-fallback"},
	{UdevPrimarySource, "primary-source"},
}

func (f UdevFlags) String() string {
	var set []string
	for _, fn := range udevFlagNames {
		if f&fn.bit != 0 {
			set = append(set, fn.name)
		}
	}
	return strings.Join(set, ",")
}
