package dm

// The Go equivalents of the C macros defined by the Linux kernel's user space
// API (UAPI) in ioctl.h, reduced to what the device-mapper interface needs.

const (
	_ioc_nrbits   = 8
	_ioc_typebits = 8

	// These may need to be updated for specific architectures:
	_ioc_sizebits = 14

	_ioc_nrshift   = 0
	_ioc_typeshift = _ioc_nrshift + _ioc_nrbits
	_ioc_sizeshift = _ioc_typeshift + _ioc_typebits
	_ioc_dirshift  = _ioc_sizeshift + _ioc_sizebits

	// _ioc_write indicates userland is writing and kernel is reading.
	// _ioc_read means userland is reading and kernel is writing.
	_ioc_write = 1
	_ioc_read  = 2
)

// _ioc replicates the functionality of the _IOC macro from C. It combines the
// transfer direction, the subsystem's magic number, the command number within
// that subsystem and the size of the transferred structure into a single ioctl
// request number. Typically you do not want to use _ioc directly, but instead
// use it through _iowr.
func _ioc(dir, t, nr, size uintptr) uintptr {
	return (dir << _ioc_dirshift) | (t << _ioc_typeshift) | (nr << _ioc_nrshift) | (size << _ioc_sizeshift)
}

// _iowr replicates the functionality of the _IOWR macro from C. It is used for
// ioctl commands that transfer data in both directions: userland writes the
// request structure and the kernel overwrites it with the response. All
// device-mapper commands work this way.
func _iowr(t, nr, size uintptr) uintptr {
	return _ioc(_ioc_read|_ioc_write, t, nr, size)
}
