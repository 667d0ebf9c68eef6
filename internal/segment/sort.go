package segment

import (
	"sort"

	"github.com/ignitedb/ignite/pkg/codec"
)

// SortDecodedHits orders hits by (word, row, position), the order
// EmitPostings requires its input in. Merge and optimize outputs combine
// hits from more than one source segment/chunk, so unlike
// Accumulator.sortedHitsForEmit (whose buffer is already word-grouped by
// construction) they must sort explicitly before re-emitting.
func SortDecodedHits(mode codec.DictMode, hits []DecodedHit) {
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if mode == codec.NumericDict {
			if a.WordID != b.WordID {
				return a.WordID < b.WordID
			}
		} else {
			if c := compareBytes(a.Keyword, b.Keyword); c != 0 {
				return c < 0
			}
		}
		if a.RowID != b.RowID {
			return a.RowID < b.RowID
		}
		return a.Pos < b.Pos
	})
}
