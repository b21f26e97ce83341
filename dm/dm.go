package dm

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	// Bounded retry on EBUSY during device removal. A device released
	// shortly after removal is requested still succeeds within this window.
	removeRetries    = 24
	removeRetryDelay = 200 * time.Millisecond
)

// DM holds the open control device handle and exposes one method per
// device-mapper command. The only cross-call state is the handle itself, so a
// DM may be shared by concurrent callers for query commands; callers that
// mutate the same device concurrently must serialize those calls themselves.
type DM struct {
	ctl *os.File
	log *zap.Logger

	// sysIoctl issues the raw syscall. Replaced by tests to simulate the
	// kernel side of the protocol.
	sysIoctl   func(fd uintptr, req uintptr, buf []byte) unix.Errno
	retries    int
	retryDelay time.Duration
}

// NewOption configures a DM handle at open time.
type NewOption func(*DM)

// WithLogger attaches a logger. Without it the handle stays silent.
func WithLogger(log *zap.Logger) NewOption {
	return func(d *DM) {
		d.log = log
	}
}

// New opens the device-mapper control device. Fails with ErrContextInit when
// the node is absent (module not loaded) or inaccessible.
func New(opts ...NewOption) (*DM, error) {
	d := &DM{
		log:        zap.NewNop(),
		sysIoctl:   rawIoctl,
		retries:    removeRetries,
		retryDelay: removeRetryDelay,
	}
	for _, opt := range opts {
		opt(d)
	}

	ctl, err := os.OpenFile(controlPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrContextInit, controlPath, err)
	}
	d.ctl = ctl
	return d, nil
}

// Close releases the control device handle.
func (d *DM) Close() error {
	if d.ctl == nil {
		return nil
	}
	return d.ctl.Close()
}

func (d *DM) fd() uintptr {
	if d.ctl == nil {
		return 0
	}
	return d.ctl.Fd()
}

func rawIoctl(fd uintptr, req uintptr, buf []byte) unix.Errno {
	// The unsafe pointer conversion must stay inside the Syscall expression
	// so the buffer is retained until the call completes.
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(unsafe.Pointer(&buf[0])))
	return errno
}

// call runs one command, applying the bounded busy-retry policy: EBUSY on
// device removal is retried at a fixed delay, everything else fails the call
// on the first attempt.
func (d *DM) call(c cmdCode, h *header, input []byte, opts Options) ([]byte, *DeviceInfo, error) {
	for attempt := 1; ; attempt++ {
		payload, info, err := d.doIoctl(c, h, input, opts)
		if err != nil && c == cmdDevRemove && errors.Is(err, unix.EBUSY) && attempt < d.retries {
			d.log.Debug("device busy, retrying removal",
				zap.Int("attempt", attempt), zap.Int("maxAttempts", d.retries))
			time.Sleep(d.retryDelay)
			continue
		}
		return payload, info, err
	}
}

// doIoctl is a single attempt: stamp the command version, open the udev
// rendezvous if the command is a primary event source, size and fill the
// transfer buffer, issue the syscall, and grow the buffer for as long as the
// kernel reports DM_BUFFER_FULL. The rendezvous transaction spans all growth
// iterations of one attempt (the cookie must not change mid-retry) and is
// cancelled on every error path.
func (d *DM) doIoctl(c cmdCode, h *header, input []byte, opts Options) ([]byte, *DeviceInfo, error) {
	ci := &cmdTable[c]
	h.version = ci.version

	// Remove, rename and resume (suspend with the suspend flag clear) are
	// the events udev rules treat as coming from the primary source.
	primarySource := c == cmdDevRemove || c == cmdDevRename ||
		(c == cmdDevSuspend && h.flags&FlagSuspend == 0)
	sync, err := beginSync(d.log, opts.udevFlags, opts.cookie, primarySource)
	if err != nil {
		return nil, nil, err
	}
	h.eventNr = sync.cookie
	if opts.eventNr != 0 {
		h.eventNr = opts.eventNr
	}

	bufSize := hdrSize + len(input)
	if bufSize < minBufSize {
		bufSize = minBufSize
	}

	for {
		h.dataSize = uint32(bufSize)
		h.dataStart = hdrSize
		buf := make([]byte, bufSize)
		copy(buf, h.encode())
		copy(buf[hdrSize:], input)

		d.log.Debug("issuing device-mapper ioctl", zap.String("command", ci.name),
			zap.String("device", h.name+h.uuid), zap.Int("bufferSize", bufSize))
		if errno := d.sysIoctl(d.fd(), ci.req, buf); errno != 0 {
			sync.cancel()
			ierr := &IoctlError{Cmd: ci.name, Errno: errno}
			if resp, derr := decodeHeader(buf); derr == nil {
				ierr.Info = &DeviceInfo{hdr: *resp}
			}
			return nil, nil, ierr
		}

		resp, err := decodeHeader(buf)
		if err != nil {
			sync.cancel()
			return nil, nil, err
		}

		if resp.flags&FlagBufferFull != 0 {
			if bufSize >= math.MaxUint32 {
				sync.cancel()
				return nil, nil, fmt.Errorf("%w: %s response still truncated at %d bytes",
					ErrResponseTooLarge, ci.name, bufSize)
			}
			if bufSize > math.MaxUint32/2 {
				bufSize = math.MaxUint32
			} else {
				bufSize *= 2
			}
			continue
		}

		// A failed udev handshake is logged and must not overturn the
		// completed command.
		_ = sync.end(resp.flags&FlagUeventGenerated != 0)

		start, end := int(resp.dataStart), int(resp.dataSize)
		if end < start {
			end = start
		}
		if start > len(buf) || end > len(buf) {
			return nil, nil, fmt.Errorf("%w: payload [%d, %d) outside %d byte buffer",
				ErrMalformedResponse, start, end, len(buf))
		}
		return buf[start:end], &DeviceInfo{hdr: *resp}, nil
	}
}

func (d *DM) simpleCall(c cmdCode, id DevID, input []byte, opts Options) ([]byte, *DeviceInfo, error) {
	h, err := newHeader(id, opts, cmdTable[c].allowed)
	if err != nil {
		return nil, nil, err
	}
	return d.call(c, h, input, opts)
}

// Version returns the ioctl protocol version triple spoken by the running
// kernel's device-mapper driver.
func (d *DM) Version() ([3]uint32, error) {
	_, info, err := d.simpleCall(cmdVersion, nil, nil, Options{})
	if err != nil {
		return [3]uint32{}, err
	}
	return info.Version(), nil
}

// RemoveAll destroys every device-mapper device on the system, tables
// included. Accepts FlagDeferredRemove.
func (d *DM) RemoveAll(opts ...Option) error {
	_, _, err := d.simpleCall(cmdRemoveAll, nil, nil, newOptions(opts...))
	return err
}

// ListDevices returns all device-mapper devices. Event numbers are included
// when the kernel's protocol version reports them.
func (d *DM) ListDevices() ([]DeviceEntry, error) {
	payload, info, err := d.simpleCall(cmdListDevices, nil, nil, Options{})
	if err != nil {
		return nil, err
	}
	return decodeNameList(payload, info.Version()[1])
}

// DeviceCreate registers a new device under name and, optionally, uuid. The
// device has no table until one is loaded and resumed. A uuid can only be
// assigned once, at creation or via SetUUID, and is immutable afterwards.
// Accepts FlagReadonly.
func (d *DM) DeviceCreate(name Name, uuid UUID, opts ...Option) (*DeviceInfo, error) {
	o := newOptions(opts...)
	h, err := newHeader(name, o, cmdTable[cmdDevCreate].allowed)
	if err != nil {
		return nil, err
	}
	if uuid != "" {
		if _, err := UUIDFromString(string(uuid)); err != nil {
			return nil, err
		}
		h.uuid = string(uuid)
	}
	_, info, err := d.call(cmdDevCreate, h, nil, o)
	return info, err
}

// DeviceRemove removes a device. If the device is still open the kernel
// reports EBUSY and the call retries for a few seconds before giving up;
// FlagDeferredRemove instead schedules removal for when the last user closes
// the device. Pass UdevPrimarySource in the udev flags to wait for udev to
// process the removal event.
func (d *DM) DeviceRemove(id DevID, opts ...Option) (*DeviceInfo, error) {
	_, info, err := d.simpleCall(cmdDevRemove, id, nil, newOptions(opts...))
	return info, err
}

// DeviceRename renames the device identified by id to newName. The returned
// info reports the name the device had before the rename, not the new one;
// re-query if the new identity is needed.
func (d *DM) DeviceRename(id DevID, newName Name, opts ...Option) (*DeviceInfo, error) {
	if _, err := NameFromString(string(newName)); err != nil {
		return nil, err
	}
	_, info, err := d.simpleCall(cmdDevRename, id, append([]byte(newName), 0), newOptions(opts...))
	return info, err
}

// SetUUID assigns a UUID to a device created without one. The kernel rejects
// the call if a UUID is already set. Wire-wise this is a rename with
// FlagUUID.
func (d *DM) SetUUID(id DevID, uuid UUID, opts ...Option) (*DeviceInfo, error) {
	if _, err := UUIDFromString(string(uuid)); err != nil {
		return nil, err
	}
	o := newOptions(append(opts, WithFlags(FlagUUID))...)
	_, info, err := d.simpleCall(cmdDevRename, id, append([]byte(uuid), 0), o)
	return info, err
}

// DeviceSuspend suspends a device: I/O is queued until the device is
// resumed. Accepts FlagNoFlush, FlagSkipLockFS.
func (d *DM) DeviceSuspend(id DevID, opts ...Option) (*DeviceInfo, error) {
	o := newOptions(append(opts, WithFlags(FlagSuspend))...)
	_, info, err := d.simpleCall(cmdDevSuspend, id, nil, o)
	return info, err
}

// DeviceResume resumes a suspended device, swapping in the inactive table if
// one is loaded. This is the step that makes a freshly loaded table live, and
// it is a primary udev event source.
func (d *DM) DeviceResume(id DevID, opts ...Option) (*DeviceInfo, error) {
	o := newOptions(opts...)
	o.flags &^= FlagSuspend
	_, info, err := d.simpleCall(cmdDevSuspend, id, nil, o)
	return info, err
}

// DeviceStatus returns the header summary for a device without touching its
// tables.
func (d *DM) DeviceStatus(id DevID) (*DeviceInfo, error) {
	_, info, err := d.simpleCall(cmdDevStatus, id, nil, Options{})
	return info, err
}

// DeviceWait blocks until the device's event counter passes the value given
// with WithEventNr (table swaps, removals and target-generated events bump
// it) and returns the then-current state and table status. There is no
// cancellation; callers needing a timeout must arrange it around this call.
func (d *DM) DeviceWait(id DevID, opts ...Option) (*DeviceInfo, []Target, error) {
	payload, info, err := d.simpleCall(cmdDevWait, id, nil, newOptions(opts...))
	if err != nil {
		return nil, nil, err
	}
	targets, err := decodeTargets(info.TargetCount(), payload)
	if err != nil {
		return nil, nil, err
	}
	return info, targets, nil
}

// TableLoad loads targets as the device's inactive table; DeviceResume swaps
// it in. Targets must be supplied in ascending, non-overlapping sector order,
// exactly as they should appear on the device. Accepts FlagReadonly,
// FlagSecureData.
func (d *DM) TableLoad(id DevID, targets []Target, opts ...Option) (*DeviceInfo, error) {
	o := newOptions(opts...)
	input, err := encodeTargets(targets)
	if err != nil {
		return nil, err
	}
	h, err := newHeader(id, o, cmdTable[cmdTableLoad].allowed)
	if err != nil {
		return nil, err
	}
	h.targetCount = uint32(len(targets))
	_, info, err := d.call(cmdTableLoad, h, input, o)
	return info, err
}

// TableClear drops a device's inactive table.
func (d *DM) TableClear(id DevID) (*DeviceInfo, error) {
	_, info, err := d.simpleCall(cmdTableClear, id, nil, Options{})
	return info, err
}

// TableDeps returns the block devices the active table maps onto. Pass
// FlagQueryInactive to query the inactive table instead.
func (d *DM) TableDeps(id DevID, opts ...Option) ([]Device, error) {
	payload, _, err := d.simpleCall(cmdTableDeps, id, nil, newOptions(opts...))
	if err != nil {
		return nil, err
	}
	return decodeDeps(payload)
}

// TableStatus returns the device's table, one entry per target. By default
// the params carry each target's runtime status; FlagStatusTable returns the
// table parameters as loaded instead. Accepts FlagNoFlush, FlagQueryInactive.
func (d *DM) TableStatus(id DevID, opts ...Option) (*DeviceInfo, []Target, error) {
	payload, info, err := d.simpleCall(cmdTableStatus, id, nil, newOptions(opts...))
	if err != nil {
		return nil, nil, err
	}
	targets, err := decodeTargets(info.TargetCount(), payload)
	if err != nil {
		return nil, nil, err
	}
	return info, targets, nil
}

// ListVersions returns the registered target types and their module
// versions.
func (d *DM) ListVersions() ([]TargetVersion, error) {
	payload, _, err := d.simpleCall(cmdListVersions, nil, nil, Options{})
	if err != nil {
		return nil, err
	}
	return decodeVersions(payload)
}

// TargetMsg sends a message to the target mapping sector in the device's
// active table. Some targets answer; the response string is returned when the
// kernel flags output data, otherwise "".
func (d *DM) TargetMsg(id DevID, sector uint64, msg string) (string, error) {
	input, err := encodeTargetMsg(sector, msg)
	if err != nil {
		return "", err
	}
	payload, info, err := d.simpleCall(cmdTargetMsg, id, input, Options{})
	if err != nil {
		return "", err
	}
	if info.Flags()&FlagDataOut == 0 || len(payload) == 0 {
		return "", nil
	}
	return string(payload[:cStringLen(payload)]), nil
}

// ArmPoll re-arms event polling on the control device for callers that watch
// it with poll/epoll instead of blocking in DeviceWait.
func (d *DM) ArmPoll() error {
	_, _, err := d.simpleCall(cmdDevArmPoll, nil, nil, Options{})
	return err
}
