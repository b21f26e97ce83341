package dm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Encoding and decoding of the control header and the variable-length payload
// records. Response records are offset linked: each record carries the byte
// offset, relative to its own start, of the next record, with zero (or an
// authoritative count) terminating the list. The offsets never escape this
// file; decoded records come back as ordinary slices.

// header is the in-memory form of struct dm_ioctl. It is rebuilt from the
// response buffer after every ioctl, since the kernel overwrites the whole
// structure.
type header struct {
	version     [3]uint32
	dataSize    uint32
	dataStart   uint32
	targetCount uint32
	openCount   int32
	flags       Flags
	eventNr     uint32
	dev         uint64
	name        string
	uuid        string
}

// newHeader builds a request header from a device identity and the masked
// option flags. id may be nil for commands that address no particular device
// (version, list, remove-all).
func newHeader(id DevID, opts Options, allowed Flags) (*header, error) {
	h := &header{flags: opts.flags & allowed}
	switch v := id.(type) {
	case nil:
	case Name:
		if _, err := NameFromString(string(v)); err != nil {
			return nil, err
		}
		h.name = string(v)
	case UUID:
		if _, err := UUIDFromString(string(v)); err != nil {
			return nil, err
		}
		h.uuid = string(v)
	default:
		return nil, fmt.Errorf("%w: unsupported device identity %T", ErrEncoding, id)
	}
	return h, nil
}

// encode serializes the header into its fixed 312 byte wire form.
func (h *header) encode() []byte {
	var w writer
	w.u32(h.version[0])
	w.u32(h.version[1])
	w.u32(h.version[2])
	w.u32(h.dataSize)
	w.u32(h.dataStart)
	w.u32(h.targetCount)
	w.i32(h.openCount)
	w.u32(uint32(h.flags))
	w.u32(h.eventNr)
	w.u32(0) // padding
	w.u64(h.dev)
	w.cstr(h.name, nameFieldLen)
	w.cstr(h.uuid, uuidFieldLen)
	w.zeroes(hdrSize - w.buf.Len()) // 7 byte data tail
	return w.bytes()
}

func decodeHeader(buf []byte) (*header, error) {
	r := newReader(buf)
	var h header
	h.version[0] = r.u32()
	h.version[1] = r.u32()
	h.version[2] = r.u32()
	h.dataSize = r.u32()
	h.dataStart = r.u32()
	h.targetCount = r.u32()
	h.openCount = r.i32()
	h.flags = Flags(r.u32())
	h.eventNr = r.u32()
	r.skip(4) // padding
	h.dev = r.u64()
	h.name = r.cstr(nameFieldLen)
	h.uuid = r.cstr(uuidFieldLen)
	if r.err != nil {
		return nil, r.err
	}
	return &h, nil
}

// Target is one entry in a device's mapping table: the sector range it
// covers (in 512 byte sectors), the target type implementing it, and the
// type's opaque parameter string.
type Target struct {
	Start  uint64
	Length uint64
	Type   string
	Params string
}

func (t Target) String() string {
	return fmt.Sprintf("%d %d %s %s", t.Start, t.Length, t.Type, t.Params)
}

// encodeTargets serializes a table in input order. The order becomes the
// on-device target order: the kernel does not re-sort, so callers must
// supply targets with ascending, non-overlapping sector starts.
func encodeTargets(targets []Target) ([]byte, error) {
	var w writer
	for _, t := range targets {
		if t.Type == "" || len(t.Type) > typeFieldLen-1 {
			return nil, fmt.Errorf("%w: target type '%s' must be 1 to %d bytes", ErrEncoding, t.Type, typeFieldLen-1)
		}
		if strings.ContainsRune(t.Type, 0) || strings.ContainsRune(t.Params, 0) {
			return nil, fmt.Errorf("%w: target type and params must not contain NUL bytes", ErrEncoding)
		}
		paddedParams := align8(len(t.Params) + 1)
		w.u64(t.Start)
		w.u64(t.Length)
		w.i32(0) // status, kernel owned
		w.u32(uint32(targetSpecFixedLen + paddedParams))
		w.cstr(t.Type, typeFieldLen)
		w.cstr(t.Params, paddedParams)
	}
	return w.bytes(), nil
}

// decodeTargets walks exactly count offset-linked target records, as returned
// by DM_TABLE_STATUS and DM_DEV_WAIT. The count from the header is
// authoritative; a zero next offset before the last record is a protocol
// violation, not an early terminator. Trailing blanks the kernel pads status
// lines with are trimmed from the parameter strings.
func decodeTargets(count uint32, buf []byte) ([]Target, error) {
	targets := make([]Target, 0, count)
	r := newReader(buf)
	base := 0
	for i := uint32(0); i < count; i++ {
		var t Target
		t.Start = r.u64()
		t.Length = r.u64()
		r.i32() // status
		next := r.u32()
		t.Type = r.cstr(typeFieldLen)
		t.Params = strings.TrimRight(r.cstrUnbounded(), " \t")
		if r.err != nil {
			return nil, r.err
		}
		targets = append(targets, t)
		if i == count-1 {
			break
		}
		if next == 0 {
			return nil, fmt.Errorf("%w: target %d of %d terminates the list early", ErrMalformedResponse, i+1, count)
		}
		base += int(next)
		r.seek(base)
		if r.err != nil {
			return nil, r.err
		}
	}
	return targets, nil
}

// DeviceEntry is one device in a DM_LIST_DEVICES response. EventNr is only
// reported by kernels speaking minor protocol version 37 or newer and is nil
// otherwise.
type DeviceEntry struct {
	Name    Name
	Dev     Device
	EventNr *uint32
}

// decodeNameList walks the offset-linked dm_name_list records of a
// DM_LIST_DEVICES response. minor is the minor protocol version the kernel
// reported; it gates the trailing per-entry event number. The event number
// offset mirrors the kernel's internal layout for current versions and is
// best effort across future ones.
func decodeNameList(buf []byte, minor uint32) ([]DeviceEntry, error) {
	var entries []DeviceEntry
	if len(buf) == 0 {
		return entries, nil
	}
	r := newReader(buf)
	base := 0
	for {
		var e DeviceEntry
		dev := r.u64()
		next := r.u32()
		name := r.cstrUnbounded()
		if r.err != nil {
			return nil, r.err
		}
		if !utf8.ValidString(name) {
			return nil, fmt.Errorf("%w: device name at offset %d is not valid UTF-8", ErrMalformedResponse, base)
		}
		e.Name = Name(name)
		e.Dev = deviceFromKdev(dev)
		if minor > eventNrMinorVersion {
			r.seek(base + align8(nameListFixedLen+len(name)+1))
			nr := r.u32()
			if r.err != nil {
				return nil, r.err
			}
			e.EventNr = &nr
		}
		entries = append(entries, e)
		if next == 0 {
			return entries, nil
		}
		base += int(next)
		r.seek(base)
		if r.err != nil {
			return nil, r.err
		}
	}
}

// decodeDeps decodes a dm_target_deps record: the devices the active table
// maps onto.
func decodeDeps(buf []byte) ([]Device, error) {
	r := newReader(buf)
	count := r.u32()
	r.skip(4) // padding
	deps := make([]Device, 0, count)
	for i := uint32(0); i < count; i++ {
		deps = append(deps, deviceFromKdev(r.u64()))
	}
	if r.err != nil {
		return nil, r.err
	}
	return deps, nil
}

// TargetVersion is one entry in a DM_LIST_VERSIONS response: a registered
// target type and its module version.
type TargetVersion struct {
	Name    string
	Version [3]uint32
}

// decodeVersions walks the offset-linked dm_target_versions records.
func decodeVersions(buf []byte) ([]TargetVersion, error) {
	var versions []TargetVersion
	if len(buf) == 0 {
		return versions, nil
	}
	r := newReader(buf)
	base := 0
	for {
		var v TargetVersion
		next := r.u32()
		v.Version[0] = r.u32()
		v.Version[1] = r.u32()
		v.Version[2] = r.u32()
		v.Name = r.cstrUnbounded()
		if r.err != nil {
			return nil, r.err
		}
		versions = append(versions, v)
		if next == 0 {
			return versions, nil
		}
		base += int(next)
		r.seek(base)
		if r.err != nil {
			return nil, r.err
		}
	}
}

// encodeTargetMsg serializes a dm_target_msg: the sector addressing the
// target within the table, followed by the NUL terminated message text.
func encodeTargetMsg(sector uint64, msg string) ([]byte, error) {
	if strings.ContainsRune(msg, 0) {
		return nil, fmt.Errorf("%w: target message must not contain NUL bytes", ErrEncoding)
	}
	var w writer
	w.u64(sector)
	w.cstr(msg, len(msg)+1)
	return w.bytes(), nil
}
