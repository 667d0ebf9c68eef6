package chunksaver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignitedb/ignite/internal/accumulator"
	"github.com/ignitedb/ignite/internal/dataset"
	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/codec"
	"github.com/ignitedb/ignite/pkg/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{
		DocIDAttr:  "id",
		Attributes: []schema.Attribute{{Name: "id", Type: schema.AttrInt64}},
		Fields:     []schema.Field{{Name: "title"}},
	}
}

type numericDict struct{}

func (numericDict) WordID(kw []byte) (uint64, bool) { return 0, false }
func (numericDict) Mode() codec.DictMode            { return codec.NumericDict }
func (numericDict) HasMorphology() bool             { return false }
func (numericDict) IsStopword(kw []byte) bool       { return false }
func (numericDict) SettingsHash() uint64            { return 0 }

func row(sch *schema.Schema, id uint64) []byte {
	buf := make([]byte, sch.RowStride())
	schema.PutUint64(buf, sch.Offsets()[0], id)
	return buf
}

func buildSegment(t *testing.T, sch *schema.Schema, ids []uint64) *segment.RamSegment {
	t.Helper()
	acc := accumulator.New(accumulator.Config{Schema: sch, Dict: numericDict{}, IndexIdentity: "idx1", CheckpointEvery: 2})
	for i, id := range ids {
		acc.AddDocument(id, row(sch, id), false, accumulator.NewHit(100+uint64(i), nil, codec.PackPosition(0, 0, true)))
	}
	seg, err := acc.Commit(sch)
	require.NoError(t, err)
	require.NotNil(t, seg)
	return seg
}

func TestSaveChunkPromotesSegmentsAndPublishes(t *testing.T) {
	sch := testSchema()
	segA := buildSegment(t, sch, []uint64{1, 2})
	segB := buildSegment(t, sch, []uint64{3})

	ds := dataset.New()
	ds.Publish(&dataset.Snapshot{RamSegments: []*segment.RamSegment{segA, segB}})

	dir := t.TempDir()
	chunk, err := SaveChunk(context.Background(), ds, sch, Config{Mode: codec.NumericDict, CheckpointEvery: 2, BloomPerEntry: 0, BloomHashes: 0}, dir, true)
	require.NoError(t, err)
	require.NotNil(t, chunk)
	require.EqualValues(t, 3, chunk.RowCount())

	snap := ds.Load()
	require.Empty(t, snap.RamSegments)
	require.Len(t, snap.DiskChunks, 1)
	require.Same(t, chunk, snap.DiskChunks[0])

	for _, id := range []uint64{1, 2, 3} {
		_, _, ok := chunk.FindAliveRow(id)
		require.True(t, ok, "doc %d should be alive in saved chunk", id)
	}
}

func TestSaveChunkSkipsLockedAndEmptySegments(t *testing.T) {
	sch := testSchema()
	segA := buildSegment(t, sch, []uint64{1})
	segA.LockedByOp.Store(99)

	ds := dataset.New()
	ds.Publish(&dataset.Snapshot{RamSegments: []*segment.RamSegment{segA}})

	dir := t.TempDir()
	chunk, err := SaveChunk(context.Background(), ds, sch, Config{Mode: codec.NumericDict, CheckpointEvery: 2}, dir, false)
	require.NoError(t, err)
	require.Nil(t, chunk)

	snap := ds.Load()
	require.Len(t, snap.RamSegments, 1)
}
