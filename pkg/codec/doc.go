package codec

// inlineLowBits is how many low bits of an inlined hit position are packed
// into the doc entry's first hit_ref varint; the remaining high bits follow
// as a second varint (spec §4.1, "hit_count == 1 inlines the hit position
// ... low 24 bits, then high bits").
const inlineLowBits = 24
const inlineLowMask = uint32(1)<<inlineLowBits - 1

// DocEntry is one row of a word's doclist: which document, which fields it
// hit in, how many hits, and where to find them (spec §3 "Doc entry").
type DocEntry struct {
	RowID      uint32
	FieldsMask uint64
	HitCount   uint32
	// HitRef is either an inlined position (when HitCount == 1) or a byte
	// offset into the word's hitlist span (when HitCount > 1).
	HitRef uint32
}

// DoclistWriter emits (row_id_delta, fields_mask, hit_count, hit_ref)
// entries for one word, restarting row-id delta encoding at StartWord
// (spec §4.1).
type DoclistWriter struct {
	w        *Writer
	lastRow  uint32
	haveLast bool
}

// NewDoclistWriter returns an empty doclist stream writer.
func NewDoclistWriter() *DoclistWriter {
	return &DoclistWriter{w: NewWriter(64)}
}

// StartWord resets row-id delta encoding for a new word.
func (d *DoclistWriter) StartWord() {
	d.haveLast = false
}

// WriteEntry appends one doc entry. When HitCount == 1, HitRef must be the
// hit's packed position (not a hitlist offset); WriteEntry splits it into
// low/high halves per the inline convention.
func (d *DoclistWriter) WriteEntry(e DocEntry) {
	if !d.haveLast {
		d.w.Uvarint(uint64(e.RowID))
	} else {
		d.w.Uvarint(uint64(e.RowID - d.lastRow))
	}
	d.lastRow = e.RowID
	d.haveLast = true

	d.w.Uvarint(e.FieldsMask)
	d.w.Uvarint(uint64(e.HitCount))

	if e.HitCount == 1 {
		d.w.Uvarint(uint64(e.HitRef & inlineLowMask))
		d.w.Uvarint(uint64(e.HitRef >> inlineLowBits))
	} else {
		d.w.Uvarint(uint64(e.HitRef))
	}
}

// Buf returns the accumulated doclist bytes for this word.
func (d *DoclistWriter) Buf() []byte { return d.w.Buf() }

// DoclistReader decodes entries previously written by DoclistWriter, in the
// same order.
type DoclistReader struct {
	r        *Reader
	lastRow  uint32
	haveLast bool
}

// NewDoclistReader wraps a doclist byte buffer.
func NewDoclistReader(buf []byte) *DoclistReader {
	return &DoclistReader{r: NewReader(buf)}
}

// StartWord resets row-id delta decoding for a new word; callers must call
// this at the same points the writer called StartWord.
func (d *DoclistReader) StartWord() {
	d.haveLast = false
}

// More reports whether unread bytes remain.
func (d *DoclistReader) More() bool { return d.r.Len() > 0 }

// ReadEntry decodes the next doc entry.
func (d *DoclistReader) ReadEntry() (DocEntry, error) {
	var e DocEntry

	rowDelta, err := d.r.Uvarint()
	if err != nil {
		return e, err
	}
	if !d.haveLast {
		e.RowID = uint32(rowDelta)
	} else {
		e.RowID = d.lastRow + uint32(rowDelta)
	}
	d.lastRow = e.RowID
	d.haveLast = true

	fieldsMask, err := d.r.Uvarint()
	if err != nil {
		return e, err
	}
	e.FieldsMask = fieldsMask

	hitCount, err := d.r.Uvarint()
	if err != nil {
		return e, err
	}
	e.HitCount = uint32(hitCount)

	if e.HitCount == 1 {
		low, err := d.r.Uvarint()
		if err != nil {
			return e, err
		}
		high, err := d.r.Uvarint()
		if err != nil {
			return e, err
		}
		e.HitRef = (uint32(high) << inlineLowBits) | uint32(low)
	} else {
		ref, err := d.r.Uvarint()
		if err != nil {
			return e, err
		}
		e.HitRef = uint32(ref)
	}

	return e, nil
}
