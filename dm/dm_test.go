package dm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// The tests in this file drive the transport against a simulated kernel: the
// syscall hook decodes the request from the transfer buffer and writes a
// response back into it, exactly like the real control device does. Tests
// against a real kernel live in dm_kernel_test.go behind the dm build tag.

func newTestDM(fake func(fd uintptr, req uintptr, buf []byte) unix.Errno) *DM {
	return &DM{
		log:        zap.NewNop(),
		sysIoctl:   fake,
		retries:    removeRetries,
		retryDelay: 0,
	}
}

func writeResponse(t *testing.T, buf []byte, h header, payload []byte) {
	t.Helper()
	require.LessOrEqual(t, hdrSize+len(payload), len(buf), "response does not fit the transfer buffer")
	h.dataStart = hdrSize
	h.dataSize = uint32(hdrSize + len(payload))
	copy(buf, h.encode())
	copy(buf[hdrSize:], payload)
}

func TestRequestHeaderEncoding(t *testing.T) {
	var req *header
	d := newTestDM(func(fd, r uintptr, buf []byte) unix.Errno {
		h, err := decodeHeader(buf)
		require.NoError(t, err)
		req = h
		writeResponse(t, buf, header{name: "example-dev"}, nil)
		return 0
	})

	_, err := d.DeviceRemove(Name("example-dev"), WithFlags(FlagReadonly|FlagDeferredRemove))
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, [3]uint32{4, 0, 0}, req.version)
	assert.Equal(t, "example-dev", req.name)
	// Removal does not accept FlagReadonly, so it must be masked out.
	assert.Equal(t, FlagDeferredRemove, req.flags)
	assert.Equal(t, uint32(minBufSize), req.dataSize)
	assert.Equal(t, uint32(hdrSize), req.dataStart)
}

func TestInvalidIdentityFailsBeforeSyscall(t *testing.T) {
	calls := 0
	d := newTestDM(func(fd, r uintptr, buf []byte) unix.Errno {
		calls++
		return 0
	})

	_, err := d.DeviceRemove(Name(""))
	assert.ErrorIs(t, err, ErrEncoding)
	_, err = d.DeviceRemove(Name("bad\x00name"))
	assert.ErrorIs(t, err, ErrEncoding)
	_, err = d.DeviceStatus(Name(string(make([]byte, nameFieldLen))))
	assert.ErrorIs(t, err, ErrNameTooLong)
	assert.Zero(t, calls, "no ioctl may be issued for invalid identities")
}

func TestBufferGrowthConvergence(t *testing.T) {
	// The response only fits after the 16 KiB initial buffer has been
	// doubled twice.
	payload := make([]byte, 40000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	needed := hdrSize + len(payload)

	calls := 0
	d := newTestDM(func(fd, r uintptr, buf []byte) unix.Errno {
		calls++
		if len(buf) < needed {
			writeResponse(t, buf, header{flags: FlagBufferFull}, nil)
			return 0
		}
		writeResponse(t, buf, header{version: [3]uint32{4, 48, 0}}, payload)
		return 0
	})

	h, err := newHeader(nil, Options{}, 0)
	require.NoError(t, err)
	out, info, err := d.call(cmdListDevices, h, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "expected two growth iterations for a 40000 byte payload")
	assert.Equal(t, payload, out)
	assert.Equal(t, uint32(needed), info.DataSize())
}

func TestRemoveBusyRetryBounded(t *testing.T) {
	// A device released while the retry loop runs: the call succeeds on the
	// attempt after the kernel stops reporting EBUSY.
	busyCalls := 5
	calls := 0
	d := newTestDM(func(fd, r uintptr, buf []byte) unix.Errno {
		calls++
		if calls <= busyCalls {
			return unix.EBUSY
		}
		writeResponse(t, buf, header{name: "example-dev"}, nil)
		return 0
	})
	info, err := d.DeviceRemove(Name("example-dev"))
	require.NoError(t, err)
	assert.Equal(t, busyCalls+1, calls)
	assert.Equal(t, Name("example-dev"), info.Name())

	// A device that stays busy: the call fails with the busy error after
	// exactly the retry bound.
	calls = 0
	d = newTestDM(func(fd, r uintptr, buf []byte) unix.Errno {
		calls++
		return unix.EBUSY
	})
	_, err = d.DeviceRemove(Name("example-dev"))
	assert.ErrorIs(t, err, ErrIoctl)
	assert.ErrorIs(t, err, unix.EBUSY)
	assert.Equal(t, removeRetries, calls)
}

func TestBusyOnlyRetriedForRemove(t *testing.T) {
	calls := 0
	d := newTestDM(func(fd, r uintptr, buf []byte) unix.Errno {
		calls++
		return unix.EBUSY
	})
	_, err := d.DeviceSuspend(Name("example-dev"))
	assert.ErrorIs(t, err, unix.EBUSY)
	assert.Equal(t, 1, calls, "EBUSY is only retryable for device removal")
}

func TestIoctlErrorCarriesDecodedHeader(t *testing.T) {
	d := newTestDM(func(fd, r uintptr, buf []byte) unix.Errno {
		// The kernel wrote part of the response before rejecting the call.
		writeResponse(t, buf, header{name: "example-dev", openCount: 2}, nil)
		return unix.ENXIO
	})

	_, err := d.DeviceStatus(Name("example-dev"))
	require.ErrorIs(t, err, ErrIoctl)
	var ierr *IoctlError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "DM_DEV_STATUS", ierr.Cmd)
	assert.Equal(t, unix.ENXIO, ierr.Errno)
	require.NotNil(t, ierr.Info)
	assert.Equal(t, int32(2), ierr.Info.OpenCount())
}

func TestMalformedPayloadBounds(t *testing.T) {
	d := newTestDM(func(fd, r uintptr, buf []byte) unix.Errno {
		h := header{dataStart: hdrSize, dataSize: uint32(len(buf) + 100)}
		copy(buf, h.encode())
		return 0
	})

	h, err := newHeader(nil, Options{}, 0)
	require.NoError(t, err)
	_, _, err = d.call(cmdListDevices, h, nil, Options{})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

// fakeKernel simulates enough of the device-mapper state machine for an end
// to end walk over the command surface: devices by name, inactive and active
// tables, and status reporting with the blank padding real kernels emit.
type fakeKernel struct {
	t       *testing.T
	devices map[Name]*fakeDevice
}

type fakeDevice struct {
	loaded []Target
	active []Target
	minor  uint32
}

func newFakeKernel(t *testing.T) *fakeKernel {
	return &fakeKernel{t: t, devices: make(map[Name]*fakeDevice)}
}

func (k *fakeKernel) ioctl(fd uintptr, req uintptr, buf []byte) unix.Errno {
	hdr, err := decodeHeader(buf)
	require.NoError(k.t, err)
	payload := buf[hdrSize:]

	resp := header{version: [3]uint32{4, 48, 0}, name: hdr.name, uuid: hdr.uuid}
	name := Name(hdr.name)
	dev := k.devices[name]

	switch cmdCode((req >> _ioc_nrshift) & 0xff) {
	case cmdDevCreate:
		if dev != nil {
			return unix.EBUSY
		}
		k.devices[name] = &fakeDevice{minor: uint32(len(k.devices))}
		resp.dev = Device{Major: 253, Minor: k.devices[name].minor}.kdev()
	case cmdTableLoad:
		if dev == nil {
			return unix.ENXIO
		}
		targets, err := decodeTargets(hdr.targetCount, payload)
		require.NoError(k.t, err)
		dev.loaded = targets
		resp.flags |= FlagInactivePresent
	case cmdDevSuspend:
		if dev == nil {
			return unix.ENXIO
		}
		if hdr.flags&FlagSuspend == 0 && dev.loaded != nil {
			dev.active, dev.loaded = dev.loaded, nil
		}
	case cmdTableStatus:
		if dev == nil {
			return unix.ENXIO
		}
		// Real kernels pad status lines with trailing blanks.
		padded := make([]Target, len(dev.active))
		for i, tgt := range dev.active {
			tgt.Params += "   "
			padded[i] = tgt
		}
		out, err := encodeTargets(padded)
		require.NoError(k.t, err)
		if hdrSize+len(out) > len(buf) {
			resp.flags |= FlagBufferFull
			break
		}
		resp.targetCount = uint32(len(padded))
		resp.flags |= FlagActivePresent
		writeResponse(k.t, buf, resp, out)
		return 0
	case cmdDevRename:
		if dev == nil {
			return unix.ENXIO
		}
		newName := Name(payload[:cStringLen(payload)])
		k.devices[newName] = dev
		delete(k.devices, name)
		// The response reports the name the device had before the rename.
		resp.name = string(name)
	case cmdDevRemove:
		if dev == nil {
			return unix.ENXIO
		}
		delete(k.devices, name)
	default:
		k.t.Fatalf("fake kernel does not implement command %d", (req>>_ioc_nrshift)&0xff)
	}

	writeResponse(k.t, buf, resp, nil)
	return 0
}

// TestLinearDeviceLifecycle walks the canonical usage sequence: create a
// device, load a one-target linear table, resume it, read the table status
// back, rename and remove. The table status must report exactly the loaded
// target with the kernel's trailing padding trimmed.
func TestLinearDeviceLifecycle(t *testing.T) {
	k := newFakeKernel(t)
	d := newTestDM(k.ioctl)

	name, err := NameFromString("example-dev")
	require.NoError(t, err)

	info, err := d.DeviceCreate(name, "")
	require.NoError(t, err)
	assert.Equal(t, Device{Major: 253, Minor: 0}, info.Dev())
	assert.Empty(t, info.UUID())

	target := Target{Start: 0, Length: 32768, Type: "linear", Params: "/dev/sdb1 2048"}
	info, err = d.TableLoad(name, []Target{target})
	require.NoError(t, err)
	assert.NotZero(t, info.Flags()&FlagInactivePresent)

	_, err = d.DeviceResume(name)
	require.NoError(t, err)

	info, targets, err := d.TableStatus(name)
	require.NoError(t, err)
	assert.NotZero(t, info.Flags()&FlagActivePresent)
	require.Len(t, targets, 1)
	assert.Equal(t, target, targets[0])

	// Rename reports the previous name; the new one must be re-queried.
	renamed, err := NameFromString("renamed-dev")
	require.NoError(t, err)
	info, err = d.DeviceRename(name, renamed)
	require.NoError(t, err)
	assert.Equal(t, name, info.Name())

	_, err = d.DeviceRemove(renamed)
	require.NoError(t, err)
	assert.Empty(t, k.devices)
}
