package query

import (
	"github.com/ignitedb/ignite/internal/dataset"
	"github.com/ignitedb/ignite/pkg/codec"
	"github.com/ignitedb/ignite/pkg/collab"
)

// KeywordStat is one entry of GetKeywords' per-keyword report, aggregated
// across every RAM segment and disk chunk in a dataset snapshot.
type KeywordStat struct {
	Keyword  string
	WordID   uint64
	DocCount uint64
	HitCount uint64
}

// GetKeywords tokenizes query text through tok and reports each resulting
// keyword's aggregate doc/hit frequency across the dataset, the
// introspection surface callers use to preview how a query's terms would
// expand before running it (spec §6 "get_keywords").
func GetKeywords(ds *dataset.Dataset, tok collab.Tokenizer, dict collab.Dictionary, fieldIdx int, text string) ([]KeywordStat, error) {
	hits, err := tok.Tokenize(fieldIdx, []byte(text))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]*KeywordStat)
	order := make([]string, 0, len(hits))

	snap := ds.Load()
	shards := make([]Shard, 0, len(snap.DiskChunks)+len(snap.RamSegments))
	for i, c := range snap.DiskChunks {
		shards = append(shards, FromChunk(chunkLabel(i), c))
	}
	for i, s := range snap.RamSegments {
		shards = append(shards, FromSegment(ramLabel(i), s))
	}

	numericMode := dict.Mode() == codec.NumericDict

	for _, h := range hits {
		kw := string(h.Keyword)
		if _, ok := seen[kw]; ok {
			continue
		}
		order = append(order, kw)
		stat := &KeywordStat{Keyword: kw}

		wordID, _ := dict.WordID(h.Keyword)
		stat.WordID = wordID

		for _, shard := range shards {
			var exp Expansion
			var found bool
			var lookupErr error
			if numericMode {
				exp, found, lookupErr = LookupWordID(&shard.Postings, wordID)
			} else {
				exp, found, lookupErr = LookupKeyword(&shard.Postings, h.Keyword)
			}
			if lookupErr != nil || !found {
				continue
			}
			stat.DocCount += exp.Entry.DocCount
			stat.HitCount += exp.Entry.HitCount
		}
		seen[kw] = stat
	}

	out := make([]KeywordStat, 0, len(order))
	for _, kw := range order {
		out = append(out, *seen[kw])
	}
	return out, nil
}
