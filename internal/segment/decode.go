package segment

// DecodedHit is one fully-decoded (word, row, position) triple recovered
// from a segment's posting streams, the same shape Accumulator.commit
// starts from before it sorts and re-emits (spec §4.1, §4.3 step 2-3).
// Merge, chunk-save, and optimize all build their output through this
// decode-then-re-emit path rather than a byte-level lockstep splice: it
// keeps every producer of a Posting going through the one tested encoding
// path in pkg/codec, at the cost of a full decode pass per input
// (see DESIGN.md, internal/merger entry).
type DecodedHit struct {
	WordID  uint64
	Keyword []byte
	RowID   uint32
	Pos     uint32
}

// DecodePostings fully decodes p back into an unsorted hit list. Dead rows
// are not filtered here — callers consult the owning segment/chunk's
// deadmap and row remap themselves, since they need that mapping anyway to
// renumber surviving rows.
func DecodePostings(p *Posting) ([]DecodedHit, error) {
	wr := p.NewWordlistReader()
	var out []DecodedHit

	cpIdx := 0
	doclistOffset := int64(0)

	for wr.More() {
		atCheckpoint := cpIdx < len(p.Checkpoints) && wr.Offset() == p.Checkpoints[cpIdx].WordlistOffset
		if atCheckpoint {
			cpIdx++
		}

		entry, err := wr.ReadEntry(atCheckpoint)
		if err != nil {
			return nil, err
		}
		doclistOffset += entry.DoclistOffsetDiff

		dr := p.NewDoclistReaderAt(doclistOffset)
		for i := uint64(0); i < entry.DocCount; i++ {
			de, err := dr.ReadEntry()
			if err != nil {
				return nil, err
			}

			if de.HitCount == 1 {
				out = append(out, DecodedHit{WordID: entry.WordID, Keyword: entry.Keyword, RowID: de.RowID, Pos: de.HitRef})
				continue
			}

			hr := p.NewHitlistReaderAt(int(de.HitRef))
			for h := uint32(0); h < de.HitCount; h++ {
				pos, err := hr.ReadPosition()
				if err != nil {
					return nil, err
				}
				out = append(out, DecodedHit{WordID: entry.WordID, Keyword: entry.Keyword, RowID: de.RowID, Pos: pos})
			}
		}
	}

	return out, nil
}
