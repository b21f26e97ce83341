package dm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	in := header{
		version:     [3]uint32{4, 48, 0},
		dataSize:    minBufSize,
		dataStart:   hdrSize,
		targetCount: 2,
		openCount:   1,
		flags:       FlagReadonly | FlagActivePresent,
		eventNr:     0x002d0d4d,
		dev:         Device{Major: 253, Minor: 3}.kdev(),
		name:        "example-dev",
		uuid:        "CRYPT-12345",
	}

	buf := in.encode()
	require.Len(t, buf, hdrSize)

	out, err := decodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, in, *out)
}

func TestDecodeHeaderTruncated(t *testing.T) {
	h := header{}
	_, err := decodeHeader(h.encode()[:hdrSize-10])
	assert.ErrorIs(t, err, ErrMalformedResponse)
	_, err = decodeHeader(nil)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestEncodeTargetsLayout(t *testing.T) {
	targets := []Target{
		{Start: 0, Length: 2048, Type: "linear", Params: "/dev/sdb1 0"},
		{Start: 2048, Length: 30720, Type: "linear", Params: "/dev/sdb1 2048"},
		{Start: 32768, Length: 8, Type: "zero", Params: ""},
	}
	buf, err := encodeTargets(targets)
	require.NoError(t, err)

	// Every record must start on an 8 byte boundary and link strictly
	// forward, with the whole chain consuming the buffer exactly.
	off := 0
	for i := range targets {
		require.LessOrEqual(t, off+targetSpecFixedLen, len(buf))
		next := binary.LittleEndian.Uint32(buf[off+20 : off+24])
		assert.Zero(t, next%recordAlign, "record %d next offset not aligned", i)
		assert.Greater(t, next, uint32(targetSpecFixedLen), "record %d next offset not past the fixed part", i)
		off += int(next)
	}
	assert.Equal(t, len(buf), off)
}

func TestTargetsRoundTrip(t *testing.T) {
	targets := []Target{
		{Start: 0, Length: 2048, Type: "linear", Params: "/dev/sdb1 0"},
		{Start: 2048, Length: 30720, Type: "linear", Params: "/dev/sdb1 2048"},
		{Start: 32768, Length: 8, Type: "error", Params: ""},
	}
	buf, err := encodeTargets(targets)
	require.NoError(t, err)

	// The kernel echoes the same record layout back for table status.
	out, err := decodeTargets(uint32(len(targets)), buf)
	require.NoError(t, err)
	assert.Equal(t, targets, out)
}

func TestEncodeTargetsRejectsBadInput(t *testing.T) {
	_, err := encodeTargets([]Target{{Type: "", Params: "x"}})
	assert.ErrorIs(t, err, ErrEncoding)
	_, err = encodeTargets([]Target{{Type: "averylongtargettypename", Params: ""}})
	assert.ErrorIs(t, err, ErrEncoding)
	_, err = encodeTargets([]Target{{Type: "linear", Params: "bad\x00params"}})
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestDecodeTargetsPrematureEnd(t *testing.T) {
	buf, err := encodeTargets([]Target{
		{Start: 0, Length: 8, Type: "zero", Params: ""},
		{Start: 8, Length: 8, Type: "zero", Params: ""},
	})
	require.NoError(t, err)

	// The count from the header is authoritative: a zero next offset before
	// the last record must be rejected, not treated as a terminator.
	binary.LittleEndian.PutUint32(buf[20:24], 0)
	_, err = decodeTargets(2, buf)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	// A truncated record must never index out of bounds.
	_, err = decodeTargets(1, buf[:30])
	assert.ErrorIs(t, err, ErrMalformedResponse)

	// An unterminated params string runs into the buffer end. The cut must
	// land inside the params text itself, before any NUL terminator.
	buf, err = encodeTargets([]Target{
		{Start: 0, Length: 32768, Type: "linear", Params: "/dev/sdb1 2048"},
	})
	require.NoError(t, err)
	_, err = decodeTargets(1, buf[:targetSpecFixedLen+3])
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDecodeTargetsTrimsStatusPadding(t *testing.T) {
	buf, err := encodeTargets([]Target{
		{Start: 0, Length: 32768, Type: "linear", Params: "/dev/sdb1 2048   "},
	})
	require.NoError(t, err)

	out, err := decodeTargets(1, buf)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "/dev/sdb1 2048", out[0].Params)
}

// buildNameList constructs a DM_LIST_DEVICES payload the way the kernel lays
// it out, optionally with the trailing per-entry event number of minor
// protocol versions above 36.
func buildNameList(t *testing.T, entries []DeviceEntry, withEventNr bool) []byte {
	t.Helper()
	var buf []byte
	for i, e := range entries {
		rec := make([]byte, 0, 64)
		var fixed [nameListFixedLen]byte
		binary.LittleEndian.PutUint64(fixed[0:8], e.Dev.kdev())
		rec = append(rec, fixed[:]...)
		rec = append(rec, []byte(e.Name)...)
		rec = append(rec, 0)
		end := align8(len(rec))
		rec = append(rec, make([]byte, end-len(rec))...)
		if withEventNr {
			require.NotNil(t, e.EventNr)
			var nr [8]byte
			binary.LittleEndian.PutUint32(nr[:4], *e.EventNr)
			rec = append(rec, nr[:]...)
		}
		if i < len(entries)-1 {
			binary.LittleEndian.PutUint32(rec[8:12], uint32(len(rec)))
		}
		buf = append(buf, rec...)
	}
	return buf
}

func TestDecodeNameList(t *testing.T) {
	nr1, nr2 := uint32(7), uint32(0)
	entries := []DeviceEntry{
		{Name: "example-dev", Dev: Device{Major: 253, Minor: 0}, EventNr: &nr1},
		{Name: "other", Dev: Device{Major: 253, Minor: 1}, EventNr: &nr2},
	}

	out, err := decodeNameList(buildNameList(t, entries, true), eventNrMinorVersion+1)
	require.NoError(t, err)
	assert.Equal(t, entries, out)

	// Minor versions up to 36 do not carry the event number.
	out, err = decodeNameList(buildNameList(t, entries, false), eventNrMinorVersion)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for i := range out {
		assert.Equal(t, entries[i].Name, out[i].Name)
		assert.Equal(t, entries[i].Dev, out[i].Dev)
		assert.Nil(t, out[i].EventNr)
	}

	// No devices means an empty payload.
	out, err = decodeNameList(nil, eventNrMinorVersion+1)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDecodeNameListMalformed(t *testing.T) {
	nr := uint32(0)
	buf := buildNameList(t, []DeviceEntry{
		{Name: "a", Dev: Device{Major: 253, Minor: 0}, EventNr: &nr},
		{Name: "b", Dev: Device{Major: 253, Minor: 1}, EventNr: &nr},
	}, true)

	// A next offset pointing past the buffer end.
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(buf)+8))
	_, err := decodeNameList(buf, eventNrMinorVersion+1)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	// A name that is not valid UTF-8.
	bad := buildNameList(t, []DeviceEntry{
		{Name: Name([]byte{0xff, 0xfe}), Dev: Device{}, EventNr: &nr},
	}, true)
	_, err = decodeNameList(bad, eventNrMinorVersion+1)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	// A record with no NUL terminator before the buffer ends.
	_, err = decodeNameList(buf[:nameListFixedLen+1], eventNrMinorVersion)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDecodeDeps(t *testing.T) {
	devs := []Device{{Major: 8, Minor: 16}, {Major: 8, Minor: 17}}
	var w writer
	w.u32(uint32(len(devs)))
	w.u32(0)
	for _, d := range devs {
		w.u64(d.kdev())
	}

	out, err := decodeDeps(w.bytes())
	require.NoError(t, err)
	assert.Equal(t, devs, out)

	_, err = decodeDeps(w.bytes()[:12])
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDecodeVersions(t *testing.T) {
	versions := []TargetVersion{
		{Name: "linear", Version: [3]uint32{1, 4, 0}},
		{Name: "striped", Version: [3]uint32{1, 6, 0}},
		{Name: "crypt", Version: [3]uint32{1, 24, 0}},
	}

	var buf []byte
	for i, v := range versions {
		rec := make([]byte, targetVersFixedLen, 48)
		binary.LittleEndian.PutUint32(rec[4:8], v.Version[0])
		binary.LittleEndian.PutUint32(rec[8:12], v.Version[1])
		binary.LittleEndian.PutUint32(rec[12:16], v.Version[2])
		rec = append(rec, []byte(v.Name)...)
		rec = append(rec, 0)
		rec = append(rec, make([]byte, align8(len(rec))-len(rec))...)
		if i < len(versions)-1 {
			binary.LittleEndian.PutUint32(rec[0:4], uint32(len(rec)))
		}
		buf = append(buf, rec...)
	}

	out, err := decodeVersions(buf)
	require.NoError(t, err)
	assert.Equal(t, versions, out)

	_, err = decodeVersions(buf[:10])
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestEncodeTargetMsg(t *testing.T) {
	buf, err := encodeTargetMsg(2048, "key set")
	require.NoError(t, err)
	assert.Equal(t, uint64(2048), binary.LittleEndian.Uint64(buf[0:8]))
	assert.Equal(t, []byte("key set\x00"), buf[8:])

	_, err = encodeTargetMsg(0, "bad\x00msg")
	assert.ErrorIs(t, err, ErrEncoding)
}
