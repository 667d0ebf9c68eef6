package codec

// FieldPositionBits is the number of bits reserved for the in-field
// position inside a packed Hit position, leaving one bit as the field-end
// marker (spec §3, "position packs (field_index, in_field_position,
// field_end_flag)").
const FieldPositionBits = 23

// FieldEndMask marks the high bit of a packed position as "last hit in this
// field for this document".
const FieldEndMask = uint32(1) << FieldPositionBits

// FieldIndexShift is where the field index begins once the position and
// end-flag bits are accounted for.
const FieldIndexShift = FieldPositionBits + 1

// Hit is one occurrence of one keyword at one position in one field of one
// document (spec §3, GLOSSARY "Hit").
type Hit struct {
	RowID    uint32
	WordID   uint64
	Position uint32
}

// PackPosition folds a field index, an in-field position, and an end-of-field
// flag into the single uint32 stored in a Hit.
func PackPosition(fieldIndex int, inFieldPos uint32, fieldEnd bool) uint32 {
	p := (inFieldPos & (FieldEndMask - 1)) | uint32(fieldIndex)<<FieldIndexShift
	if fieldEnd {
		p |= FieldEndMask
	}
	return p
}

// UnpackPosition reverses PackPosition.
func UnpackPosition(p uint32) (fieldIndex int, inFieldPos uint32, fieldEnd bool) {
	fieldEnd = p&FieldEndMask != 0
	inFieldPos = p & (FieldEndMask - 1)
	fieldIndex = int(p >> FieldIndexShift)
	return
}

// HitlistWriter emits a stream of hit positions for one (word, doc) pair at
// a time. Positions must be supplied strictly increasing within a document;
// the writer delta-encodes them and restarts the delta base at each new
// document (spec §3 invariant 8, §4.1).
type HitlistWriter struct {
	w        *Writer
	lastPos  uint32
	haveLast bool
}

// NewHitlistWriter returns an empty hitlist stream writer.
func NewHitlistWriter() *HitlistWriter {
	return &HitlistWriter{w: NewWriter(64)}
}

// StartDoc must be called before the first position of a new document is
// written; it resets delta encoding to start from zero.
func (h *HitlistWriter) StartDoc() {
	h.haveLast = false
}

// WritePosition appends one hit position for the current document. Callers
// must supply strictly increasing positions within a document.
func (h *HitlistWriter) WritePosition(pos uint32) {
	if !h.haveLast {
		h.w.Uvarint(uint64(pos))
	} else {
		h.w.Uvarint(uint64(pos - h.lastPos))
	}
	h.lastPos = pos
	h.haveLast = true
}

// Offset returns the current byte offset, suitable as a hit_ref for a
// doclist entry whose hit_count > 1.
func (h *HitlistWriter) Offset() int { return h.w.Len() }

// Buf returns the accumulated hitlist bytes.
func (h *HitlistWriter) Buf() []byte { return h.w.Buf() }

// HitlistReader decodes a run of delta-coded positions starting at a given
// offset, restarting delta decoding at StartDoc.
type HitlistReader struct {
	r        *Reader
	lastPos  uint32
	haveLast bool
}

// NewHitlistReader wraps a hitlist byte buffer for sequential reads.
func NewHitlistReader(buf []byte) *HitlistReader {
	return &HitlistReader{r: NewReader(buf)}
}

// Seek repositions the reader at a hit_ref offset and resets delta state
// for the document about to be read.
func (h *HitlistReader) Seek(offset int) {
	h.r.Seek(offset)
	h.haveLast = false
}

// ReadPosition decodes the next position in the current document's run.
func (h *HitlistReader) ReadPosition() (uint32, error) {
	delta, err := h.r.Uvarint()
	if err != nil {
		return 0, err
	}
	var pos uint32
	if !h.haveLast {
		pos = uint32(delta)
	} else {
		pos = h.lastPos + uint32(delta)
	}
	h.lastPos = pos
	h.haveLast = true
	return pos, nil
}
