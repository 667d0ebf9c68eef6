package accumulator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignitedb/ignite/pkg/codec"
	"github.com/ignitedb/ignite/pkg/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{
		DocIDAttr:  "id",
		Attributes: []schema.Attribute{{Name: "id", Type: schema.AttrInt64}, {Name: "price", Type: schema.AttrUint32}},
		Fields:     []schema.Field{{Name: "title"}},
	}
}

func row(sch *schema.Schema, id uint64, price uint32) []byte {
	stride := sch.RowStride()
	buf := make([]byte, stride)
	offs := sch.Offsets()
	schema.PutUint64(buf, offs[0], id)
	schema.PutUint32(buf, offs[1], price)
	return buf
}

type numericDict struct{}

func (numericDict) WordID(kw []byte) (uint64, bool) { return 0, false }
func (numericDict) Mode() codec.DictMode            { return codec.NumericDict }
func (numericDict) HasMorphology() bool             { return false }
func (numericDict) IsStopword(kw []byte) bool       { return false }
func (numericDict) SettingsHash() uint64            { return 0 }

func newAcc(sch *schema.Schema) *Accumulator {
	return New(Config{Schema: sch, Dict: numericDict{}, IndexIdentity: "idx1", CheckpointEvery: 2})
}

func TestCommitBasicInsertAndQueryableWord(t *testing.T) {
	sch := testSchema()
	acc := newAcc(sch)

	acc.AddDocument(1, row(sch, 1, 10), false, NewHit(100, nil, codec.PackPosition(0, 0, true)))

	seg, err := acc.Commit(sch)
	require.NoError(t, err)
	require.NotNil(t, seg)
	require.EqualValues(t, 1, seg.RowCount())
	require.EqualValues(t, 1, seg.AliveRows())

	r, _, ok := seg.FindAliveRow(1)
	require.True(t, ok)
	require.EqualValues(t, 10, schema.GetUint32(r, sch.Offsets()[1]))
}

func TestCommitDedupKeepsLastOnReplace(t *testing.T) {
	sch := testSchema()
	acc := newAcc(sch)

	acc.AddDocument(1, row(sch, 1, 1), false, NewHit(100, nil, codec.PackPosition(0, 0, true)))
	acc.AddDocument(1, row(sch, 1, 2), true, NewHit(200, nil, codec.PackPosition(0, 0, true)))

	seg, err := acc.Commit(sch)
	require.NoError(t, err)
	require.EqualValues(t, 1, seg.RowCount())

	r, _, ok := seg.FindAliveRow(1)
	require.True(t, ok)
	require.EqualValues(t, 2, schema.GetUint32(r, sch.Offsets()[1]))

	require.Contains(t, acc.KillList(), uint64(1))
}

func TestCommitSchemaMismatchErrors(t *testing.T) {
	sch := testSchema()
	acc := newAcc(sch)
	acc.AddDocument(1, row(sch, 1, 1), false)

	changed := sch.Clone()
	changed.Attributes[1].Type = schema.AttrInt64

	_, err := acc.Commit(changed)
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestCommitOnlyDeletesReturnsNilSegment(t *testing.T) {
	sch := testSchema()
	acc := newAcc(sch)
	acc.DeleteDocument(5, 6)

	seg, err := acc.Commit(sch)
	require.NoError(t, err)
	require.Nil(t, seg)
	require.ElementsMatch(t, []uint64{5, 6}, acc.KillList())
}

func TestCheckIndexIdentityRejectsMismatch(t *testing.T) {
	sch := testSchema()
	acc := newAcc(sch)
	require.NoError(t, acc.CheckIndexIdentity("idx1"))
	require.ErrorIs(t, acc.CheckIndexIdentity("idx2"), ErrBoundToAnotherIndex)
}

func TestMultiWordEmitPreservesCheckpoints(t *testing.T) {
	sch := testSchema()
	acc := newAcc(sch)

	acc.AddDocument(1, row(sch, 1, 1), false,
		NewHit(10, nil, codec.PackPosition(0, 0, false)),
		NewHit(20, nil, codec.PackPosition(0, 1, true)))
	acc.AddDocument(2, row(sch, 2, 2), false,
		NewHit(10, nil, codec.PackPosition(0, 0, true)))

	seg, err := acc.Commit(sch)
	require.NoError(t, err)
	require.EqualValues(t, 2, seg.RowCount())
	require.NotEmpty(t, seg.Postings.Checkpoints)
}
