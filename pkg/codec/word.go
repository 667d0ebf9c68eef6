package codec

// DictMode selects how a wordlist's terms are identified: by a dense
// numeric id assigned by the dictionary collaborator, or by the raw
// keyword bytes themselves (spec §4.1, "word_id_delta (numeric-dict mode)
// or a keyword-delta pair (word-dict mode)").
type DictMode int

const (
	// NumericDict identifies words by word_id, delta-coded against the
	// previous word's id within a checkpoint.
	NumericDict DictMode = iota
	// WordDict identifies words by their keyword bytes, delta-coded as a
	// (shared_prefix_len, suffix_bytes) pair against the previous keyword.
	WordDict
)

// hitlessFlag marks the high bit of an encoded doc_count to flag a hitless
// word (spec §4.1).
const hitlessFlag = uint64(1) << 63

// WordEntry is one row of the dictionary: a term plus the location and
// size of its doclist/hitlist spans (spec §3 "Word entry").
type WordEntry struct {
	// WordID is used in NumericDict mode.
	WordID uint64
	// Keyword is used in WordDict mode and always holds the full keyword.
	// On disk, checkpoint entries store it whole; other entries store only
	// the suffix after the prefix shared with the previous keyword.
	Keyword []byte

	DocCount          uint64
	HitCount          uint64
	DoclistOffsetDiff int64 // delta against the previous word's doclist offset
	HasHitlist        bool
}

// Checkpoint records, for every CheckpointInterval-th word, the byte offset
// into the wordlist stream at which that word's entry begins, plus enough
// of its identity to binary-search checkpoints by word id or by keyword
// (spec §4.1, §4.9 "Keyword lookup within a segment").
type Checkpoint struct {
	WordID        uint64 // valid in NumericDict mode
	Keyword       []byte // valid in WordDict mode; length-prefixed+NUL on disk
	WordlistOffset int
	DoclistOffset int64 // absolute doclist offset at the checkpoint word
}

// WordlistWriter emits dictionary entries, inserting a checkpoint every
// interval words and restarting delta encoding at each checkpoint
// (spec §3 invariant 7, §4.1).
type WordlistWriter struct {
	mode     DictMode
	interval uint32

	w   *Writer
	n   uint32
	cps []Checkpoint

	lastWordID    uint64
	lastKeyword   []byte
	lastDocOffset int64
}

// NewWordlistWriter creates a writer for the given dictionary mode with a
// checkpoint every interval words (interval == 0 disables checkpointing,
// i.e. every word restarts its delta base).
func NewWordlistWriter(mode DictMode, interval uint32) *WordlistWriter {
	return &WordlistWriter{mode: mode, interval: interval, w: NewWriter(256)}
}

// WriteEntry appends one word entry, automatically starting a new
// checkpoint when the interval boundary is crossed.
func (ww *WordlistWriter) WriteEntry(e WordEntry) {
	atCheckpoint := ww.interval == 0 || ww.n%ww.interval == 0
	offset := ww.w.Len()

	if atCheckpoint {
		cp := Checkpoint{WordlistOffset: offset, DoclistOffset: ww.lastDocOffset}
		if ww.mode == NumericDict {
			cp.WordID = e.WordID
		} else {
			cp.Keyword = append([]byte(nil), e.Keyword...)
		}
		ww.cps = append(ww.cps, cp)
		ww.lastWordID = 0
		ww.lastKeyword = nil
	}

	if ww.mode == NumericDict {
		delta := e.WordID - ww.lastWordID
		ww.w.Uvarint(delta)
		ww.lastWordID = e.WordID
	} else {
		ww.writeKeywordDelta(e.Keyword, atCheckpoint)
		ww.lastKeyword = append([]byte(nil), e.Keyword...)
	}

	docCount := e.DocCount
	if !e.HasHitlist {
		docCount |= hitlessFlag
	}
	ww.w.Uvarint(docCount)
	ww.w.Uvarint(e.HitCount)

	// Doclist offset is always delta-coded against the previous word's
	// offset, checkpoint or not; checkpoints only restart the
	// word-identity delta, matching the teacher's own "restart" semantics
	// applied to the codec rather than silently diverging from spec text.
	// lastDocOffset itself is never reset at a checkpoint: it is the
	// running absolute doclist position a keyword lookup seeds a
	// checkpoint's Checkpoint.DoclistOffset from, so it must stay
	// continuous across the whole wordlist.
	diff := e.DoclistOffsetDiff
	ww.w.Uvarint(zigzag(diff))
	ww.lastDocOffset += diff

	ww.n++
}

// writeKeywordDelta implements the packed keyword-delta encoding: shared
// prefix length against the previous keyword plus the differing suffix. At
// a checkpoint, the full keyword is stored length-prefixed and
// NUL-terminated instead (spec §4.1, "Keyword storage in checkpoints").
func (ww *WordlistWriter) writeKeywordDelta(keyword []byte, atCheckpoint bool) {
	if atCheckpoint {
		ww.w.buf = append(ww.w.buf, byte(len(keyword)))
		ww.w.Bytes(keyword)
		ww.w.buf = append(ww.w.buf, 0)
		return
	}

	shared := commonPrefixLen(ww.lastKeyword, keyword)
	suffix := keyword[shared:]

	if shared <= 7 && len(suffix) <= 15 {
		ww.w.buf = append(ww.w.buf, 0x80|byte(shared)<<4|byte(len(suffix)))
	} else {
		ww.w.buf = append(ww.w.buf, byte(shared))
		ww.w.buf = append(ww.w.buf, byte(len(suffix)))
	}
	ww.w.Bytes(suffix)
}

// Checkpoints returns the checkpoint array built while writing.
func (ww *WordlistWriter) Checkpoints() []Checkpoint { return ww.cps }

// Buf returns the accumulated wordlist bytes.
func (ww *WordlistWriter) Buf() []byte { return ww.w.Buf() }

// WordlistReader decodes entries previously written by WordlistWriter.
type WordlistReader struct {
	mode DictMode
	r    *Reader

	lastWordID    uint64
	lastKeyword   []byte
	lastDocOffset int64
}

// NewWordlistReader wraps a wordlist byte buffer, positioned at offset 0,
// the first checkpoint (use Seek to start elsewhere).
func NewWordlistReader(mode DictMode, buf []byte) *WordlistReader {
	return &WordlistReader{mode: mode, r: NewReader(buf)}
}

// Seek repositions the reader at a checkpoint's wordlist offset and resets
// delta state as the writer would have at that checkpoint.
func (wr *WordlistReader) Seek(cp Checkpoint) {
	wr.r.Seek(cp.WordlistOffset)
	wr.lastWordID = 0
	wr.lastKeyword = nil
	wr.lastDocOffset = 0
}

// More reports whether unread bytes remain.
func (wr *WordlistReader) More() bool { return wr.r.Len() > 0 }

// Offset returns the reader's current absolute byte position, used to
// detect checkpoint boundaries while decoding a full wordlist
// (spec §4.9 "Keyword lookup within a segment").
func (wr *WordlistReader) Offset() int { return wr.r.Pos() }

// ReadEntry decodes the next word entry. atCheckpoint must mirror the
// writer's own checkpoint cadence (the caller tracks word index modulo the
// checkpoint interval, or simply re-seeks at each checkpoint boundary).
func (wr *WordlistReader) ReadEntry(atCheckpoint bool) (WordEntry, error) {
	var e WordEntry

	if wr.mode == NumericDict {
		delta, err := wr.r.Uvarint()
		if err != nil {
			return e, err
		}
		e.WordID = wr.lastWordID + delta
		wr.lastWordID = e.WordID
	} else {
		kw, err := wr.readKeywordDelta(atCheckpoint)
		if err != nil {
			return e, err
		}
		e.Keyword = kw
		wr.lastKeyword = kw
	}

	docCount, err := wr.r.Uvarint()
	if err != nil {
		return e, err
	}
	e.HasHitlist = docCount&hitlessFlag == 0
	e.DocCount = docCount &^ hitlessFlag

	hitCount, err := wr.r.Uvarint()
	if err != nil {
		return e, err
	}
	e.HitCount = hitCount

	zz, err := wr.r.Uvarint()
	if err != nil {
		return e, err
	}
	e.DoclistOffsetDiff = unzigzag(zz)

	return e, nil
}

func (wr *WordlistReader) readKeywordDelta(atCheckpoint bool) ([]byte, error) {
	if atCheckpoint {
		lenB, err := wr.r.Bytes(1)
		if err != nil {
			return nil, err
		}
		n := int(lenB[0])
		kw, err := wr.r.Bytes(n)
		if err != nil {
			return nil, err
		}
		if _, err := wr.r.Bytes(1); err != nil { // consume trailing NUL
			return nil, err
		}
		return append([]byte(nil), kw...), nil
	}

	head, err := wr.r.Bytes(1)
	if err != nil {
		return nil, err
	}

	var shared, suffixLen int
	if head[0]&0x80 != 0 {
		shared = int((head[0] >> 4) & 0x07)
		suffixLen = int(head[0] & 0x0f)
	} else {
		shared = int(head[0])
		second, err := wr.r.Bytes(1)
		if err != nil {
			return nil, err
		}
		suffixLen = int(second[0])
	}

	suffix, err := wr.r.Bytes(suffixLen)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, shared+suffixLen)
	if shared > 0 && shared <= len(wr.lastKeyword) {
		out = append(out, wr.lastKeyword[:shared]...)
	}
	out = append(out, suffix...)
	return out, nil
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func unzigzag(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}
