package query

import (
	"bytes"
	"sort"

	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/codec"
)

// Expansion is one word entry matched by a keyword/prefix/infix lookup,
// paired with the absolute doclist offset its entry decoded to (spec
// §4.9 "Keyword lookup within a segment").
type Expansion struct {
	Entry         codec.WordEntry
	DoclistOffset int64
}

const defaultMaxExpansions = 1024

// LookupWordID resolves a single numeric-dict word id to its entry within
// one segment's posting list. Returns found=false if the word does not
// occur in this posting at all (spec §4.9 keyword-not-found handling is
// the caller's responsibility: a miss in one shard is routine, a miss in
// every shard is ErrorCodeQueryKeywordNotFound).
func LookupWordID(p *segment.Posting, wordID uint64) (Expansion, bool, error) {
	if p.Mode != codec.NumericDict {
		return Expansion{}, false, nil
	}
	cps := p.Checkpoints
	if len(cps) == 0 {
		return Expansion{}, false, nil
	}

	i := sort.Search(len(cps), func(i int) bool { return cps[i].WordID > wordID }) - 1
	if i < 0 {
		return Expansion{}, false, nil
	}

	return scanCheckpoint(p, i, func(e codec.WordEntry) int {
		switch {
		case e.WordID < wordID:
			return -1
		case e.WordID > wordID:
			return 1
		default:
			return 0
		}
	})
}

// LookupKeyword resolves a single word-dict keyword to its entry within
// one segment's posting list.
func LookupKeyword(p *segment.Posting, keyword []byte) (Expansion, bool, error) {
	if p.Mode != codec.WordDict {
		return Expansion{}, false, nil
	}
	cps := p.Checkpoints
	if len(cps) == 0 {
		return Expansion{}, false, nil
	}

	i := sort.Search(len(cps), func(i int) bool { return bytes.Compare(cps[i].Keyword, keyword) > 0 }) - 1
	if i < 0 {
		return Expansion{}, false, nil
	}

	return scanCheckpoint(p, i, func(e codec.WordEntry) int { return bytes.Compare(e.Keyword, keyword) })
}

// scanCheckpoint linear-scans the words belonging to checkpoint index ix,
// calling cmp(entry) to compare against the lookup target. Because both
// dict modes store words in sorted order, scanning stops the moment cmp
// returns > 0: the target cannot appear later. The window itself comes
// from decodeCheckpointWindow's cache rather than a fresh wordlist decode
// (see checkpointcache.go).
func scanCheckpoint(p *segment.Posting, ix int, cmp func(codec.WordEntry) int) (Expansion, bool, error) {
	window, err := decodeCheckpointWindow(p, ix)
	if err != nil {
		return Expansion{}, false, err
	}

	for _, e := range window {
		switch c := cmp(e.Entry); {
		case c == 0:
			return Expansion{Entry: e.Entry, DoclistOffset: e.DoclistOffset}, true, nil
		case c > 0:
			return Expansion{}, false, nil
		}
	}
	return Expansion{}, false, nil
}

// ExpandPrefix returns every word whose keyword starts with prefix, up to
// limit entries (0 uses defaultMaxExpansions), scanning only the
// contiguous sorted range the prefix can occupy (spec §4.9 "Prefix and
// infix expansion"). Only meaningful in word-dict mode.
func ExpandPrefix(p *segment.Posting, prefix []byte, limit int) ([]Expansion, bool) {
	if p.Mode != codec.WordDict || len(p.Checkpoints) == 0 {
		return nil, false
	}
	if limit <= 0 {
		limit = defaultMaxExpansions
	}
	cps := p.Checkpoints

	start := sort.Search(len(cps), func(i int) bool { return bytes.Compare(cps[i].Keyword, prefix) >= 0 })
	if start > 0 {
		start--
	}

	var out []Expansion
	truncated := false

	for ix := start; ix < len(cps); ix++ {
		wr := p.NewWordlistReader()
		wr.Seek(cps[ix])
		offset := cps[ix].DoclistOffset
		atCheckpoint := true
		stopAt := -1
		if ix+1 < len(cps) {
			stopAt = cps[ix+1].WordlistOffset
		}

		pastPrefix := false
		for {
			entry, err := wr.ReadEntry(atCheckpoint)
			if err != nil {
				return out, truncated
			}
			atCheckpoint = false
			offset += entry.DoclistOffsetDiff

			if bytes.HasPrefix(entry.Keyword, prefix) {
				if len(out) >= limit {
					return out, true
				}
				out = append(out, Expansion{Entry: entry, DoclistOffset: offset})
			} else if bytes.Compare(entry.Keyword, prefix) > 0 && !bytes.HasPrefix(entry.Keyword, prefix) {
				pastPrefix = true
			}

			if stopAt >= 0 && wr.Offset() >= stopAt {
				break
			}
			if !wr.More() {
				return out, truncated
			}
		}
		if pastPrefix {
			break
		}
	}

	return out, truncated
}

// ExpandInfix returns every word containing infix as a substring, pruning
// checkpoints the bloom filter rules out before scanning the survivors
// (spec §4.9 "Prefix and infix expansion", §3 "Infix bloom filter").
// Only meaningful in word-dict mode with a non-empty InfixBloom.
func ExpandInfix(p *segment.Posting, infix []byte, bloomHashes uint8, limit int) ([]Expansion, bool) {
	if p.Mode != codec.WordDict || len(p.Checkpoints) == 0 {
		return nil, false
	}
	if limit <= 0 {
		limit = defaultMaxExpansions
	}

	gram := bloomGramFor(infix)
	perCP := p.BloomWordsPerCheckpoint()

	var out []Expansion
	truncated := false

	for ix := range p.Checkpoints {
		if gram != nil && perCP > 0 {
			lo, hi := ix*perCP, ix*perCP+perCP
			if hi > len(p.InfixBloom) {
				hi = len(p.InfixBloom)
			}
			if !segment.InfixMayMatch(p.InfixBloom[lo:hi], gram, bloomHashes) {
				continue
			}
		}

		cps := p.Checkpoints
		wr := p.NewWordlistReader()
		wr.Seek(cps[ix])
		offset := cps[ix].DoclistOffset
		atCheckpoint := true
		stopAt := -1
		if ix+1 < len(cps) {
			stopAt = cps[ix+1].WordlistOffset
		}

		for {
			entry, err := wr.ReadEntry(atCheckpoint)
			if err != nil {
				break
			}
			atCheckpoint = false
			offset += entry.DoclistOffsetDiff

			if bytes.Contains(entry.Keyword, infix) {
				if len(out) >= limit {
					return out, true
				}
				out = append(out, Expansion{Entry: entry, DoclistOffset: offset})
			}

			if stopAt >= 0 && wr.Offset() >= stopAt {
				break
			}
			if !wr.More() {
				break
			}
		}
	}

	return out, truncated
}

// bloomGramFor picks the longest indexed n-gram (4, falling back to 2)
// contained in infix, or nil if infix is shorter than the shortest
// indexed gram and the bloom filter cannot help.
func bloomGramFor(infix []byte) []byte {
	switch {
	case len(infix) >= 4:
		return infix[:4]
	case len(infix) >= 2:
		return infix[:2]
	default:
		return nil
	}
}
