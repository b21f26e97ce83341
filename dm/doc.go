// Package dm is a userspace client for the Linux device-mapper control
// interface. Every command is multiplexed through a single ioctl on
// /dev/mapper/control using the kernel's fixed binary protocol: a 312 byte
// control header followed by a variable, offset-linked payload. The package
// marshals requests into that protocol, executes them with the retry
// policies the interface requires (buffer growth on DM_BUFFER_FULL, bounded
// busy-retry on device removal), demarshals the responses, and coordinates
// with udev through the cookie semaphore protocol so callers observe a
// consistent view of device state.
//
// The package exposes one method per kernel command on the DM type. It keeps
// no device state between calls; every query round-trips to the kernel.
package dm
