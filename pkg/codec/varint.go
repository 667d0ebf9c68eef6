// Package codec implements the variable-length byte encoding shared by every
// posting-list stream in the index: the hitlist, the doclist, and the
// wordlist. All three are delta-coded on top of the same unsigned varint
// primitive, little-endian, seven data bits per byte with the high bit as a
// continuation flag.
package codec

import "io"

// MaxVarintLen64 is the longest a uint64 can encode to under this scheme:
// ceil(64/7) == 10 bytes.
const MaxVarintLen64 = 10

// PutUvarint encodes v into buf (which must be at least MaxVarintLen64
// bytes) and returns the number of bytes written.
func PutUvarint(buf []byte, v uint64) int {
	i := 0
	for v >= 0x80 {
		buf[i] = byte(v) | 0x80
		v >>= 7
		i++
	}
	buf[i] = byte(v)
	return i + 1
}

// AppendUvarint appends the varint encoding of v to buf and returns the
// extended slice.
func AppendUvarint(buf []byte, v uint64) []byte {
	var tmp [MaxVarintLen64]byte
	n := PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// Uvarint decodes a uint64 from the front of buf. It returns the decoded
// value and the number of bytes consumed, or (0, 0) if buf does not contain
// a complete encoding and (0, -n) if the encoded value overflows a uint64
// (n being the number of bytes examined), mirroring encoding/binary's
// own convention so callers can reuse familiar error handling.
func Uvarint(buf []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i, b := range buf {
		if i == MaxVarintLen64 {
			return 0, -(i + 1)
		}
		if b < 0x80 {
			return v | uint64(b)<<shift, i + 1
		}
		v |= uint64(b&0x7f) << shift
		shift += 7
	}
	return 0, 0
}

// Reader sequentially pulls varints off an in-memory byte slice. It is the
// building block for the hitlist/doclist/wordlist stream readers, all of
// which need nothing fancier than "read the next varint" plus a byte
// position they can snapshot and restore at checkpoint boundaries.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential varint decoding.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current byte offset into the underlying buffer.
func (r *Reader) Pos() int { return r.pos }

// Seek repositions the reader at an absolute byte offset, used when a
// checkpoint entry points directly at a wordlist offset.
func (r *Reader) Seek(pos int) { r.pos = pos }

// Len reports how many bytes remain unread.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// Uvarint reads the next varint. io.ErrUnexpectedEOF is returned if the
// buffer ends mid-encoding; io.ErrShortBuffer if the encoded value would
// overflow a uint64.
func (r *Reader) Uvarint() (uint64, error) {
	v, n := Uvarint(r.buf[r.pos:])
	if n == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if n < 0 {
		return 0, io.ErrShortBuffer
	}
	r.pos += n
	return v, nil
}

// Bool reads a single byte and interprets it as a boolean flag (0 = false,
// anything else = true). Used for single-byte flags such as an update
// batch's strict flag and a commit record's has-segment flag.
func (r *Reader) Bool() (bool, error) {
	if r.pos >= len(r.buf) {
		return false, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b != 0, nil
}

// Bytes reads n raw bytes without interpretation, used for keyword suffixes
// and length-prefixed payloads.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Writer accumulates varint-encoded bytes into a growable buffer. Every
// stream writer (hitlist, doclist, wordlist) embeds one of these.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer, optionally pre-sized via cap.
func NewWriter(capHint int) *Writer {
	return &Writer{buf: make([]byte, 0, capHint)}
}

// Uvarint appends v's varint encoding.
func (w *Writer) Uvarint(v uint64) {
	w.buf = AppendUvarint(w.buf, v)
}

// Bool appends a single byte, 1 for true and 0 for false.
func (w *Writer) Bool(b bool) {
	if b {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// Bytes appends raw bytes unmodified.
func (w *Writer) Bytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Buf returns the accumulated buffer. The caller must not mutate it if
// the Writer is still in use.
func (w *Writer) Buf() []byte { return w.buf }
