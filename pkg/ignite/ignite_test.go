package ignite

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignitedb/ignite/internal/query"
	"github.com/ignitedb/ignite/internal/update"
	"github.com/ignitedb/ignite/pkg/codec"
	"github.com/ignitedb/ignite/pkg/collab"
	"github.com/ignitedb/ignite/pkg/options"
	"github.com/ignitedb/ignite/pkg/schema"
)

// whitespaceTokenizer is the smallest possible Tokenizer collaborator: one
// hit per space-separated word, positions assigned in field order.
type whitespaceTokenizer struct{}

func (whitespaceTokenizer) Tokenize(fieldIndex int, fieldBytes []byte) ([]collab.FieldHit, error) {
	words := bytes.Fields(fieldBytes)
	hits := make([]collab.FieldHit, len(words))
	for i, w := range words {
		hits[i] = collab.FieldHit{Keyword: w, Position: codec.PackPosition(fieldIndex, uint32(i), i == len(words)-1)}
	}
	return hits, nil
}
func (whitespaceTokenizer) Clone(mode int) collab.Tokenizer { return whitespaceTokenizer{} }
func (whitespaceTokenizer) SettingsHash() uint64            { return 0 }

// keywordDict identifies words by their keyword bytes (codec.WordDict),
// matching internal/query's own test fake.
type keywordDict struct{}

func (keywordDict) WordID(kw []byte) (uint64, bool) { return 0, false }
func (keywordDict) Mode() codec.DictMode            { return codec.WordDict }
func (keywordDict) HasMorphology() bool             { return false }
func (keywordDict) IsStopword(kw []byte) bool       { return false }
func (keywordDict) SettingsHash() uint64            { return 0 }

func testSchema() *schema.Schema {
	return &schema.Schema{
		DocIDAttr: "id",
		Attributes: []schema.Attribute{
			{Name: "id", Type: schema.AttrUint32},
			{Name: "price", Type: schema.AttrUint32},
		},
		Fields: []schema.Field{{Name: "title"}},
	}
}

func openTestInstance(t *testing.T) *Instance {
	t.Helper()
	dir := t.TempDir()

	inst, err := NewInstance(context.Background(), "ignite-test", Config{
		Schema: testSchema(),
		Collaborators: Collaborators{
			Tokenizer:  whitespaceTokenizer{},
			Dictionary: keywordDict{},
		},
		Options: []options.OptionFunc{options.WithDataDir(dir)},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close() })
	return inst
}

// TestBasicInsertSearch exercises spec §8 scenario 1: insert one document
// and find it by a keyword in its title.
func TestBasicInsertSearch(t *testing.T) {
	inst := openTestInstance(t)
	ctx := context.Background()

	w := inst.NewWriter()
	err := w.AddDocument(Document{
		DocID:  1,
		Attrs:  map[string]any{"id": uint32(1), "price": uint32(10)},
		Fields: map[string]string{"title": "hello world"},
	})
	require.NoError(t, err)
	require.NoError(t, inst.Commit(ctx, w))

	res, err := inst.MultiQuery(ctx, &query.Query{
		Tree:  query.Term{TermIdx: 0},
		Terms: []query.ResolvedTerm{{Keyword: []byte("hello")}},
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	require.Equal(t, uint64(1), res.Matches[0].DocID)
}

// TestReplaceSemantics exercises spec §8 scenario 2: a replace commit
// supersedes the prior row everywhere else in the dataset.
func TestReplaceSemantics(t *testing.T) {
	inst := openTestInstance(t)
	ctx := context.Background()

	w1 := inst.NewWriter()
	require.NoError(t, w1.AddDocument(Document{
		DocID: 1, Attrs: map[string]any{"id": uint32(1), "price": uint32(1)}, Fields: map[string]string{"title": "a"},
	}))
	require.NoError(t, inst.Commit(ctx, w1))

	w2 := inst.NewWriter()
	require.NoError(t, w2.AddDocument(Document{
		DocID: 1, Attrs: map[string]any{"id": uint32(1), "price": uint32(2)}, Fields: map[string]string{"title": "b"}, Replace: true,
	}))
	require.NoError(t, inst.Commit(ctx, w2))

	resA, err := inst.MultiQuery(ctx, &query.Query{
		Tree: query.Term{TermIdx: 0}, Terms: []query.ResolvedTerm{{Keyword: []byte("a")}}, Limit: 10,
	})
	require.NoError(t, err)
	require.Empty(t, resA.Matches)

	resB, err := inst.MultiQuery(ctx, &query.Query{
		Tree: query.Term{TermIdx: 0}, Terms: []query.ResolvedTerm{{Keyword: []byte("b")}}, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, resB.Matches, 1)

	status := inst.GetStatus()
	require.EqualValues(t, 1, status.TotalDocuments)
}

// TestForceDiskChunkPersistsDocuments exercises spec §8 scenario 5's
// disk-chunk leg: after a force_disk_chunk, the document is still found.
func TestForceDiskChunkPersistsDocuments(t *testing.T) {
	inst := openTestInstance(t)
	ctx := context.Background()

	w := inst.NewWriter()
	require.NoError(t, w.AddDocument(Document{
		DocID: 1, Attrs: map[string]any{"id": uint32(1), "price": uint32(10)}, Fields: map[string]string{"title": "hello"},
	}))
	require.NoError(t, inst.Commit(ctx, w))

	_, err := inst.ForceDiskChunk(ctx)
	require.NoError(t, err)

	status := inst.GetStatus()
	require.Equal(t, 1, status.DiskChunks)
	require.Equal(t, 0, status.RAMSegments)

	res, err := inst.MultiQuery(ctx, &query.Query{
		Tree: query.Term{TermIdx: 0}, Terms: []query.ResolvedTerm{{Keyword: []byte("hello")}}, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
}

// TestKillAcrossLayers exercises spec §8 scenario 3: 1000 docs committed
// and force-flushed to a disk chunk, half of them deleted, and a keyword
// shared by every document (standing in for the `*`/MATCH_ALL form the
// query tree has no dedicated node for) must then return exactly the 500
// surviving documents, every one with id >= 501.
func TestKillAcrossLayers(t *testing.T) {
	inst := openTestInstance(t)
	ctx := context.Background()

	w := inst.NewWriter()
	for id := uint64(1); id <= 1000; id++ {
		require.NoError(t, w.AddDocument(Document{
			DocID:  id,
			Attrs:  map[string]any{"id": uint32(id), "price": uint32(id)},
			Fields: map[string]string{"title": "doc"},
		}))
	}
	require.NoError(t, inst.Commit(ctx, w))

	_, err := inst.ForceDiskChunk(ctx)
	require.NoError(t, err)

	w2 := inst.NewWriter()
	for id := uint64(1); id <= 500; id++ {
		w2.DeleteDocument(id)
	}
	require.NoError(t, inst.Commit(ctx, w2))

	res, err := inst.MultiQuery(ctx, &query.Query{
		Tree: query.Term{TermIdx: 0}, Terms: []query.ResolvedTerm{{Keyword: []byte("doc")}}, Limit: 1000,
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 500)
	for _, m := range res.Matches {
		require.GreaterOrEqualf(t, m.DocID, uint64(501), "doc %d should have been killed", m.DocID)
	}

	status := inst.GetStatus()
	require.EqualValues(t, 500, status.TotalDocuments)
}

// TestUpdateAttributePersistsAcrossForceChunkAndReload exercises spec §8
// scenario 5 end to end: an attribute update is visible immediately, still
// visible after force_disk_chunk, and still visible after closing and
// reopening the index from disk.
func TestUpdateAttributePersistsAcrossForceChunkAndReload(t *testing.T) {
	dir := t.TempDir()
	newInst := func(t *testing.T) *Instance {
		t.Helper()
		inst, err := NewInstance(context.Background(), "ignite-test", Config{
			Schema: testSchema(),
			Collaborators: Collaborators{
				Tokenizer:  whitespaceTokenizer{},
				Dictionary: keywordDict{},
			},
			Options: []options.OptionFunc{options.WithDataDir(dir)},
		})
		require.NoError(t, err)
		return inst
	}

	ctx := context.Background()
	inst := newInst(t)

	w := inst.NewWriter()
	require.NoError(t, w.AddDocument(Document{
		DocID: 1, Attrs: map[string]any{"id": uint32(1), "price": uint32(10)}, Fields: map[string]string{"title": "hello"},
	}))
	require.NoError(t, inst.Commit(ctx, w))

	queryHello := &query.Query{
		Tree: query.Term{TermIdx: 0}, Terms: []query.ResolvedTerm{{Keyword: []byte("hello")}}, Limit: 10,
	}
	priceOf := func(res *query.Result) uint32 {
		require.Len(t, res.Matches, 1)
		return schema.GetUint32(res.Matches[0].Row, testSchema().Offsets()[1])
	}

	newPrice := make([]byte, 4)
	binary.LittleEndian.PutUint32(newPrice, 99)
	res, err := inst.UpdateAttributes(ctx, update.Batch{
		Attributes: []string{"price"},
		DocIDs:     []uint64{1},
		Values:     [][]update.Value{{{Raw: newPrice}}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Affected)

	found, err := inst.MultiQuery(ctx, queryHello)
	require.NoError(t, err)
	require.EqualValues(t, 99, priceOf(found))

	_, err = inst.ForceDiskChunk(ctx)
	require.NoError(t, err)

	found, err = inst.MultiQuery(ctx, queryHello)
	require.NoError(t, err)
	require.EqualValues(t, 99, priceOf(found))

	require.NoError(t, inst.Close())

	inst = newInst(t)
	defer func() { _ = inst.Close() }()

	found, err = inst.MultiQuery(ctx, queryHello)
	require.NoError(t, err)
	require.EqualValues(t, 99, priceOf(found))
}

// TestTruncateResetsDataset exercises spec §8 invariant 8: truncate is
// idempotent and empties both layers.
func TestTruncateResetsDataset(t *testing.T) {
	inst := openTestInstance(t)
	ctx := context.Background()

	w := inst.NewWriter()
	require.NoError(t, w.AddDocument(Document{
		DocID: 1, Attrs: map[string]any{"id": uint32(1), "price": uint32(10)}, Fields: map[string]string{"title": "hello"},
	}))
	require.NoError(t, inst.Commit(ctx, w))

	require.NoError(t, inst.Truncate(ctx))
	require.NoError(t, inst.Truncate(ctx))

	status := inst.GetStatus()
	require.EqualValues(t, 0, status.TotalDocuments)
	require.Equal(t, 0, status.DiskChunks)
	require.Equal(t, 0, status.RAMSegments)
}
