package dm

import (
	"fmt"
	"strings"
)

// DevID identifies a device-mapper device in a request, either by its name or
// by its UUID. Exactly one of the two is placed in a request header; the
// kernel uses whichever is present to look the device up. Implementors are
// Name and UUID, and both also implement fmt.Stringer so they print nicely.
type DevID interface {
	fmt.Stringer
	devID()
}

// Name is a validated device-mapper device name. It fits the fixed name field
// of the control header including the terminating NUL.
type Name string

// NameFromString creates a Name from a string. Returns a user friendly error
// on names the kernel would reject: empty, too long for the header field, or
// containing a NUL byte or path separator.
func NameFromString(input string) (Name, error) {
	if input == "" {
		return "", fmt.Errorf("%w: device name must not be empty", ErrEncoding)
	}
	if len(input) > nameFieldLen-1 {
		return "", fmt.Errorf("%w: device name '%s' exceeds %d bytes", ErrNameTooLong, input, nameFieldLen-1)
	}
	if strings.ContainsAny(input, "\x00/") {
		return "", fmt.Errorf("%w: device name '%s' must not contain NUL bytes or '/'", ErrEncoding, input)
	}
	return Name(input), nil
}

func (n Name) String() string { return string(n) }
func (n Name) devID()         {}

// UUID is a validated device-mapper device UUID. Unlike Name it is an opaque
// string chosen by the creator, not necessarily an RFC 4122 UUID; the kernel
// only requires that it fits the header field and is set at most once per
// device.
type UUID string

// UUIDFromString creates a UUID from a string, checking the header field
// bounds.
func UUIDFromString(input string) (UUID, error) {
	if input == "" {
		return "", fmt.Errorf("%w: device uuid must not be empty", ErrEncoding)
	}
	if len(input) > uuidFieldLen-1 {
		return "", fmt.Errorf("%w: device uuid '%s' exceeds %d bytes", ErrNameTooLong, input, uuidFieldLen-1)
	}
	if strings.ContainsRune(input, 0) {
		return "", fmt.Errorf("%w: device uuid '%s' must not contain NUL bytes", ErrEncoding, input)
	}
	return UUID(input), nil
}

func (u UUID) String() string { return string(u) }
func (u UUID) devID()         {}

// Device is a block device number. Device-mapper reports numbers in the
// kernel's "huge" encoding, which packs 12 major and 20 minor bits into one
// integer.
type Device struct {
	Major uint32
	Minor uint32
}

func (d Device) String() string {
	return fmt.Sprintf("%d:%d", d.Major, d.Minor)
}

// deviceFromKdev unpacks the huge dev_t encoding used in header and
// dependency records.
func deviceFromKdev(dev uint64) Device {
	return Device{
		Major: uint32((dev & 0xfff00) >> 8),
		Minor: uint32(dev&0xff) | uint32((dev>>12)&0xfff00),
	}
}

// kdev packs the device number back into the huge encoding for requests that
// carry one (persistent device numbers on create).
func (d Device) kdev() uint64 {
	return uint64(d.Minor&0xff) | uint64(d.Major)<<8 | uint64(d.Minor&^0xff)<<12
}
