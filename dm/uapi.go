package dm

// uapi.go is the Go equivalent of the device-mapper user-space API defined in
// include/uapi/linux/dm-ioctl.h. The structures exchanged with the kernel are
// not mapped onto Go structs directly; they are encoded and decoded field by
// field (see marshal.go) so a short or corrupted buffer can never be
// reinterpreted out of bounds. The constants here describe their exact binary
// layout.

// controlPath is the well-known control device node. Every command is an
// ioctl on this file's descriptor.
const controlPath = "/dev/mapper/control"

const (
	// dmIOCTypeID is the device-mapper magic number, the type ('t') field of
	// every request number (DM_IOCTL in the kernel header).
	dmIOCTypeID = uintptr(0xfd)

	// Sizes of the fixed parts of the wire structures. The variable parts
	// (parameter strings, name bytes, dependency arrays) follow the fixed
	// part and are padded so each record starts 8 byte aligned.
	hdrSize            = 312 // struct dm_ioctl
	targetSpecFixedLen = 40  // struct dm_target_spec
	nameListFixedLen   = 12  // struct dm_name_list
	targetDepsFixedLen = 8   // struct dm_target_deps
	targetVersFixedLen = 16  // struct dm_target_versions
	targetMsgFixedLen  = 8   // struct dm_target_msg

	// Fixed field widths inside the header and target spec, including the
	// terminating NUL.
	nameFieldLen = 128 // DM_NAME_LEN
	uuidFieldLen = 129 // DM_UUID_LEN
	typeFieldLen = 16  // DM_MAX_TYPE_NAME

	// recordAlign is the boundary every variable-length payload record is
	// padded to (ALIGN_MASK in the kernel header).
	recordAlign = 8

	// minBufSize is the initial transfer buffer size, chosen generously so
	// the common case never triggers a DM_BUFFER_FULL retry.
	minBufSize = 16 * 1024

	// eventNrMinorVersion is the last minor protocol version whose
	// DM_LIST_DEVICES response does not carry a trailing event number per
	// name list entry.
	eventNrMinorVersion = 36
)

// Unique command numbers of the device-mapper operations, the 'nr' field of
// each request number. The numbers index cmdTable, so the order here must
// match the kernel's enum exactly.
type cmdCode uint8

const (
	cmdVersion cmdCode = iota
	cmdRemoveAll
	cmdListDevices
	cmdDevCreate
	cmdDevRemove
	cmdDevRename
	cmdDevSuspend
	cmdDevStatus
	cmdDevWait
	cmdTableLoad
	cmdTableClear
	cmdTableDeps
	cmdTableStatus
	cmdListVersions
	cmdTargetMsg
	cmdDevSetGeometry
	cmdDevArmPoll
)

// cmdInfo describes one device-mapper command: its ioctl request number, the
// minimum protocol version stamped into the header, and the subset of caller
// flags the command accepts. Caller flags outside the allowed mask are
// silently dropped before the header is built, mirroring what libdevmapper
// does.
type cmdInfo struct {
	name    string
	req     uintptr
	version [3]uint32
	allowed Flags
}

var cmdTable = [...]cmdInfo{
	cmdVersion:        {name: "DM_VERSION", version: [3]uint32{4, 0, 0}},
	cmdRemoveAll:      {name: "DM_REMOVE_ALL", version: [3]uint32{4, 0, 0}, allowed: FlagDeferredRemove},
	cmdListDevices:    {name: "DM_LIST_DEVICES", version: [3]uint32{4, 0, 0}},
	cmdDevCreate:      {name: "DM_DEV_CREATE", version: [3]uint32{4, 0, 0}, allowed: FlagReadonly | FlagPersistentDev},
	cmdDevRemove:      {name: "DM_DEV_REMOVE", version: [3]uint32{4, 0, 0}, allowed: FlagDeferredRemove},
	cmdDevRename:      {name: "DM_DEV_RENAME", version: [3]uint32{4, 0, 0}, allowed: FlagUUID},
	cmdDevSuspend:     {name: "DM_DEV_SUSPEND", version: [3]uint32{4, 0, 0}, allowed: FlagSuspend | FlagNoFlush | FlagSkipLockFS | FlagInternalSuspend},
	cmdDevStatus:      {name: "DM_DEV_STATUS", version: [3]uint32{4, 0, 0}},
	cmdDevWait:        {name: "DM_DEV_WAIT", version: [3]uint32{4, 0, 0}, allowed: FlagQueryInactive},
	cmdTableLoad:      {name: "DM_TABLE_LOAD", version: [3]uint32{4, 0, 0}, allowed: FlagReadonly | FlagSecureData},
	cmdTableClear:     {name: "DM_TABLE_CLEAR", version: [3]uint32{4, 0, 0}},
	cmdTableDeps:      {name: "DM_TABLE_DEPS", version: [3]uint32{4, 0, 0}, allowed: FlagQueryInactive},
	cmdTableStatus:    {name: "DM_TABLE_STATUS", version: [3]uint32{4, 0, 0}, allowed: FlagNoFlush | FlagStatusTable | FlagQueryInactive},
	cmdListVersions:   {name: "DM_LIST_VERSIONS", version: [3]uint32{4, 1, 0}},
	cmdTargetMsg:      {name: "DM_TARGET_MSG", version: [3]uint32{4, 2, 0}},
	cmdDevSetGeometry: {name: "DM_DEV_SET_GEOMETRY", version: [3]uint32{4, 6, 0}},
	cmdDevArmPoll:     {name: "DM_DEV_ARM_POLL", version: [3]uint32{4, 36, 0}},
}

func init() {
	// Every request number transfers a struct dm_ioctl in both directions,
	// regardless of how much payload follows it in the same buffer.
	for nr := range cmdTable {
		cmdTable[nr].req = _iowr(dmIOCTypeID, uintptr(nr), hdrSize)
	}
}

// align8 rounds n up to the next record alignment boundary.
func align8(n int) int {
	return (n + recordAlign - 1) &^ (recordAlign - 1)
}
