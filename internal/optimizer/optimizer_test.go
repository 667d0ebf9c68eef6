package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignitedb/ignite/internal/dataset"
	"github.com/ignitedb/ignite/internal/diskchunk"
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

func row(sch *schema.Schema, id uint64) []byte {
	buf := make([]byte, sch.RowStride())
	schema.PutUint64(buf, sch.Offsets()[0], id)
	return buf
}

func chunkWithDocsEmptyPosting(t *testing.T, sch *schema.Schema, id uint64, docs []uint64) *diskchunk.DiskChunk {
	t.Helper()
	stride := sch.RowStride()
	rows := make([]byte, stride*len(docs))
	for i, d := range docs {
		copy(rows[i*stride:], row(sch, d))
	}
	return diskchunk.New(id, t.TempDir(), sch, uint32(len(docs)), rows, nil, segment.Posting{Mode: codec.NumericDict})
}

func TestDropRemovesEmptyChunk(t *testing.T) {
	sch := testSchema()
	c := chunkWithDocsEmptyPosting(t, sch, 1, []uint64{})
	ds := dataset.New()
	ds.Publish(&dataset.Snapshot{DiskChunks: []*diskchunk.DiskChunk{c}})

	require.NoError(t, Drop(context.Background(), ds, c, false))
	require.Empty(t, ds.Load().DiskChunks)
}

func TestDropRefusesNonEmptyWithoutForce(t *testing.T) {
	sch := testSchema()
	c := chunkWithDocsEmptyPosting(t, sch, 1, []uint64{1, 2})
	ds := dataset.New()
	ds.Publish(&dataset.Snapshot{DiskChunks: []*diskchunk.DiskChunk{c}})

	err := Drop(context.Background(), ds, c, false)
	require.Error(t, err)
	require.Len(t, ds.Load().DiskChunks, 1)
}

func TestMergeCombinesTwoChunks(t *testing.T) {
	sch := testSchema()
	a := chunkWithDocsEmptyPosting(t, sch, 1, []uint64{1, 2})
	b := chunkWithDocsEmptyPosting(t, sch, 2, []uint64{3})

	ds := dataset.New()
	ds.Publish(&dataset.Snapshot{DiskChunks: []*diskchunk.DiskChunk{a, b}})

	dir := t.TempDir()
	out, err := Merge(context.Background(), ds, sch, Config{Mode: codec.NumericDict, CheckpointEvery: 2}, dir, a, b)
	require.NoError(t, err)
	require.NotNil(t, out)
	require.EqualValues(t, 3, out.RowCount())

	snap := ds.Load()
	require.Len(t, snap.DiskChunks, 1)
	require.Same(t, out, snap.DiskChunks[0])
}

func TestSplitPartitionsByFilter(t *testing.T) {
	sch := testSchema()
	a := chunkWithDocsEmptyPosting(t, sch, 1, []uint64{1, 2, 3, 4})

	ds := dataset.New()
	ds.Publish(&dataset.Snapshot{DiskChunks: []*diskchunk.DiskChunk{a}})

	dir := t.TempDir()
	filter := func(docID uint64, row []byte) bool { return docID%2 == 0 }
	excluded, included, err := Split(context.Background(), ds, sch, Config{Mode: codec.NumericDict, CheckpointEvery: 2}, dir, a, filter)
	require.NoError(t, err)
	require.NotNil(t, excluded)
	require.NotNil(t, included)
	require.EqualValues(t, 2, excluded.RowCount())
	require.EqualValues(t, 2, included.RowCount())

	snap := ds.Load()
	require.Len(t, snap.DiskChunks, 2)
}

func TestClassicOptimizeConvergesToOneChunk(t *testing.T) {
	sch := testSchema()
	a := chunkWithDocsEmptyPosting(t, sch, 1, []uint64{1})
	b := chunkWithDocsEmptyPosting(t, sch, 2, []uint64{2})
	c := chunkWithDocsEmptyPosting(t, sch, 3, []uint64{3})

	ds := dataset.New()
	ds.Publish(&dataset.Snapshot{DiskChunks: []*diskchunk.DiskChunk{a, b, c}})

	dir := t.TempDir()
	require.NoError(t, ClassicOptimize(context.Background(), ds, sch, Config{Mode: codec.NumericDict, CheckpointEvery: 2}, dir))

	snap := ds.Load()
	require.Len(t, snap.DiskChunks, 1)
	require.EqualValues(t, 3, snap.DiskChunks[0].RowCount())
}
