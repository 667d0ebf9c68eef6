package segment

import "github.com/ignitedb/ignite/pkg/codec"

// Posting bundles the three codec streams and the checkpoint array that
// together make up one segment's inverted index (spec §3, §4.1). It is
// immutable once a segment is published: every field here is written once,
// when the segment is built (Accumulator.commit's emit step, §4.3 step 3,
// or a merge's re-emit), and never mutated
// afterward — only attribute cells and the deadmap mutate post-publication
// (spec §3 invariant 1).
type Posting struct {
	Mode codec.DictMode

	Wordlist    []byte
	Checkpoints []codec.Checkpoint
	Doclist     []byte
	Hitlist     []byte

	// InfixBloom holds per-checkpoint bloom bits over keyword n-grams of
	// length 2 and 4, sized checkpoint_count*8*2 64-bit words
	// (spec §3 "Infix bloom filter"). Empty in numeric-dict mode, where
	// infix search does not apply.
	InfixBloom []uint64
	BloomWordsPerEntry int
}

// BloomWordsPerCheckpoint returns how many uint64 words in InfixBloom
// belong to a single checkpoint.
func (p *Posting) BloomWordsPerCheckpoint() int {
	if p.BloomWordsPerEntry <= 0 {
		return 0
	}
	return p.BloomWordsPerEntry * 2
}

// NewWordlistReader returns a reader positioned at the start of the
// wordlist stream, ready for Seek to a checkpoint.
func (p *Posting) NewWordlistReader() *codec.WordlistReader {
	return codec.NewWordlistReader(p.Mode, p.Wordlist)
}

// NewDoclistReaderAt returns a doclist reader positioned at the given
// absolute doclist byte offset (a word entry's doclist_offset).
func (p *Posting) NewDoclistReaderAt(offset int64) *codec.DoclistReader {
	if offset < 0 || int(offset) > len(p.Doclist) {
		offset = 0
	}
	r := codec.NewDoclistReader(p.Doclist[offset:])
	r.StartWord()
	return r
}

// NewHitlistReaderAt returns a hitlist reader positioned at a doc entry's
// hit_ref offset.
func (p *Posting) NewHitlistReaderAt(offset int) *codec.HitlistReader {
	r := codec.NewHitlistReader(p.Hitlist)
	r.Seek(offset)
	return r
}
