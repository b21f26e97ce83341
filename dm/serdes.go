package dm

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Bounds-checked cursor types used to encode and decode the wire structures.
// The kernel ABI is little endian on every platform this package targets.
// Both cursors accumulate the first error and turn subsequent accesses into
// no-ops, so record decoding can be written as straight-line field reads with
// a single error check at the end.

type writer struct {
	buf bytes.Buffer
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) i32(v int32) {
	w.u32(uint32(v))
}

func (w *writer) zeroes(n int) {
	w.buf.Write(make([]byte, n))
}

// cstr writes s NUL-terminated into a fixed field of width n, zero filling
// the remainder. The caller has validated that s fits.
func (w *writer) cstr(s string, n int) {
	w.buf.WriteString(s)
	w.zeroes(n - len(s))
}

func (w *writer) bytes() []byte {
	return w.buf.Bytes()
}

type reader struct {
	buf []byte
	off int
	err error
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

// fail records the first structural violation. The response buffer comes from
// the kernel, but a truncated or corrupted buffer must surface as an error,
// never as an out of bounds access.
func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
	}
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.off+n > len(r.buf) {
		r.fail("need %d bytes at offset %d, buffer has %d", n, r.off, len(r.buf))
		return false
	}
	return true
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

func (r *reader) i32() int32 {
	return int32(r.u32())
}

func (r *reader) skip(n int) {
	if r.need(n) {
		r.off += n
	}
}

// seek moves the cursor to an absolute offset, as directed by a record's next
// field.
func (r *reader) seek(off int) {
	if r.err != nil {
		return
	}
	if off < 0 || off > len(r.buf) {
		r.fail("offset %d outside buffer of %d bytes", off, len(r.buf))
		return
	}
	r.off = off
}

// cstr reads up to the first NUL inside a fixed field of width n and advances
// past the whole field.
func (r *reader) cstr(n int) string {
	if !r.need(n) {
		return ""
	}
	field := r.buf[r.off : r.off+n]
	r.off += n
	return string(field[:cStringLen(field)])
}

// cstrUnbounded reads up to the first NUL in the remaining buffer, failing if
// no terminator is present before the buffer ends. The cursor advances past
// the terminator.
func (r *reader) cstrUnbounded() string {
	if r.err != nil {
		return ""
	}
	rest := r.buf[r.off:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		r.fail("unterminated string at offset %d", r.off)
		return ""
	}
	r.off += end + 1
	return string(rest[:end])
}

// cStringLen returns the length of a NUL terminated C string in buf, or the
// full length if no terminator is present.
func cStringLen(buf []byte) int {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return i
	}
	return len(buf)
}
