package sor

import "encoding/binary"

// Reader is a positioned cursor over an in-memory SOR file. All integer
// fields in the format are little-endian and all strings are Latin-1. The
// reader is the single point of bounds checking: every other component
// consumes the buffer exclusively through it.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the current cursor position.
func (r *Reader) Offset() int { return r.pos }

// Len returns the total buffer length.
func (r *Reader) Len() int { return len(r.buf) }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Seek repositions the cursor to an absolute offset. Seeking beyond the
// buffer is reported on the next read, not here, so callers can seek to a
// directory offset before validating it.
func (r *Reader) Seek(pos int) { r.pos = pos }

func (r *Reader) need(n int) error {
	if n < 0 || r.pos+n > len(r.buf) || r.pos > len(r.buf) {
		return &BoundsError{Offset: r.pos, Want: n, Len: len(r.buf)}
	}
	return nil
}

func (r *Reader) Uint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) Uint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) Int16() (int16, error) {
	v, err := r.Uint16()
	return int16(v), err
}

func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

// Bytes returns a view of the next n bytes and advances past them. The view
// aliases the input buffer; callers must not mutate it.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// Peek returns the next n bytes without advancing.
func (r *Reader) Peek(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	return r.buf[r.pos : r.pos+n], nil
}

func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// CString reads bytes up to a null terminator or the end of the buffer,
// decodes them as Latin-1, and advances past the terminator. A missing
// terminator consumes the rest of the buffer; the caller's declared-size
// check catches strings that ran past their block. A cursor seeked past
// the end clamps to it, so the read yields the empty string and the next
// sized read reports the bounds error.
func (r *Reader) CString() string {
	if r.pos > len(r.buf) {
		r.pos = len(r.buf)
	}
	start := r.pos
	for r.pos < len(r.buf) && r.buf[r.pos] != 0 {
		r.pos++
	}
	s := decodeLatin1(r.buf[start:r.pos])
	if r.pos < len(r.buf) {
		r.pos++ // consume terminator
	}
	return s
}

// Latin1 reads a fixed-length Latin-1 span with no terminator.
func (r *Reader) Latin1(n int) (string, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	return decodeLatin1(b), nil
}

func decodeLatin1(b []byte) string {
	ascii := true
	for _, c := range b {
		if c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
