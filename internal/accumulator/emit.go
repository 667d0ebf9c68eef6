package accumulator

import (
	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/codec"
)

// emitPostings converts this transaction's sorted hit buffer into
// segment.DecodedHit form and hands it to segment.EmitPostings, the shared
// emission path every Posting producer (Accumulator.commit, the Segment
// Merger, the Chunk Saver, the Optimizer) builds through (spec §4.3 steps
// 3-4; see internal/segment/emit.go).
func emitPostings(mode codec.DictMode, hits []emitHit, checkpointEvery uint32, bloomPerEntry, bloomHashes uint8) segment.Posting {
	decoded := make([]segment.DecodedHit, len(hits))
	for i, h := range hits {
		decoded[i] = segment.DecodedHit{WordID: h.wordID, Keyword: h.keyword, RowID: h.rowID, Pos: h.pos}
	}
	return segment.EmitPostings(mode, decoded, checkpointEvery, bloomPerEntry, bloomHashes)
}
