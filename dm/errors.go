package dm

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Sentinel errors classifying everything this package can fail with. Errors
// returned by DM methods wrap exactly one of them, so callers can sort
// failures with errors.Is without parsing messages.
var (
	// ErrContextInit means the control device node could not be opened,
	// usually because the device-mapper module is not loaded or the caller
	// lacks permission. Never retryable.
	ErrContextInit = errors.New("cannot open device-mapper control device")
	// ErrEncoding means caller input violates a format constraint of the
	// wire protocol (empty name, embedded NUL, bad target parameters).
	ErrEncoding = errors.New("request does not fit the device-mapper wire format")
	// ErrNameTooLong means a name or UUID exceeds its fixed header field.
	ErrNameTooLong = errors.New("name exceeds device-mapper field width")
	// ErrIoctl means the kernel rejected the command. The wrapped chain
	// includes the unix.Errno, and the error carries the decoded response
	// header when one was decodable.
	ErrIoctl = errors.New("device-mapper ioctl failed")
	// ErrMalformedResponse means a kernel response violated the structural
	// invariants of the wire protocol, which indicates a protocol or kernel
	// version mismatch.
	ErrMalformedResponse = errors.New("malformed device-mapper response")
	// ErrResponseTooLarge means buffer growth hit the maximum representable
	// buffer size without the response ever fitting.
	ErrResponseTooLarge = errors.New("device-mapper response exceeds maximum buffer size")
	// ErrRendezvousInit means the udev notification semaphore could not be
	// created.
	ErrRendezvousInit = errors.New("udev sync semaphore setup failed")
	// ErrRendezvousSync means waiting for or tearing down the udev
	// notification semaphore failed. The semaphore set is still destroyed
	// best effort so it cannot leak.
	ErrRendezvousSync = errors.New("udev sync semaphore handshake failed")
)

// IoctlError is the concrete error returned when the kernel rejects a
// command. It unwraps to both ErrIoctl and the underlying errno, so
// errors.Is(err, unix.EBUSY) and errors.Is(err, ErrIoctl) both match.
type IoctlError struct {
	// Cmd is the command name, e.g. "DM_DEV_REMOVE".
	Cmd string
	// Errno is the error number returned by the syscall.
	Errno unix.Errno
	// Info is the response header the kernel wrote back before failing, if
	// it was decodable, otherwise nil.
	Info *DeviceInfo
}

func (e *IoctlError) Error() string {
	return fmt.Sprintf("%s: %v (errno: %d)", e.Cmd, e.Errno, int(e.Errno))
}

func (e *IoctlError) Unwrap() []error {
	return []error{ErrIoctl, e.Errno}
}
