package diskchunk

import (
	"testing"

	"github.com/stretchr/testify/require"

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

func TestSaveLoadRoundTripsInfixBloom(t *testing.T) {
	sch := testSchema()
	c := New(1, "", sch, 1, row(sch, 1), nil, segment.Posting{
		Mode:               codec.NumericDict,
		BloomWordsPerEntry: 8,
		InfixBloom:         []uint64{1, 2, 3, 4},
	})
	c.Dir = t.TempDir()

	require.NoError(t, c.Save())

	reloaded, err := Load(1, c.Dir, sch)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3, 4}, reloaded.Postings.InfixBloom)
}

func TestSaveLoadRoundTripsDeadmap(t *testing.T) {
	sch := testSchema()
	stride := sch.RowStride()
	rows := make([]byte, stride*2)
	copy(rows[0:], row(sch, 1))
	copy(rows[stride:], row(sch, 2))

	c := New(1, t.TempDir(), sch, 2, rows, nil, segment.Posting{Mode: codec.NumericDict})
	require.True(t, c.Kill(1))
	require.NoError(t, c.Save())

	reloaded, err := Load(1, c.Dir, sch)
	require.NoError(t, err)
	require.EqualValues(t, 1, reloaded.AliveRows())

	_, _, ok := reloaded.FindAliveRow(1)
	require.False(t, ok)
	_, _, ok = reloaded.FindAliveRow(2)
	require.True(t, ok)
}
