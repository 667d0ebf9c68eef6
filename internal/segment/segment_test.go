package segment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignitedb/ignite/pkg/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{
		DocIDAttr:  "id",
		Attributes: []schema.Attribute{{Name: "id", Type: schema.AttrInt64}, {Name: "price", Type: schema.AttrUint32}},
		Fields:     []schema.Field{{Name: "title"}},
	}
}

func buildRows(sch *schema.Schema, docIDs []uint64) []byte {
	stride := sch.RowStride()
	rows := make([]byte, stride*len(docIDs))
	offs := sch.Offsets()
	for i, id := range docIDs {
		row := rows[i*stride : (i+1)*stride]
		schema.PutUint64(row, offs[0], id)
		schema.PutUint32(row, offs[1], uint32(id*10))
	}
	return rows
}

func TestFindAliveRowAndKill(t *testing.T) {
	sch := testSchema()
	rows := buildRows(sch, []uint64{1, 2, 3})
	seg := New(sch, 3, rows, nil, Posting{})

	require.EqualValues(t, 3, seg.AliveRows())

	row, rid, ok := seg.FindAliveRow(2)
	require.True(t, ok)
	require.EqualValues(t, 1, rid)
	require.EqualValues(t, 20, schema.GetUint32(row, sch.Offsets()[1]))

	killed := seg.Kill(2)
	require.True(t, killed)
	require.EqualValues(t, 2, seg.AliveRows())

	_, _, ok = seg.FindAliveRow(2)
	require.False(t, ok)

	require.False(t, seg.Kill(2)) // already dead
}

func TestKillHookRecordsDuringInstall(t *testing.T) {
	sch := testSchema()
	rows := buildRows(sch, []uint64{1, 2})
	seg := New(sch, 2, rows, nil, Posting{})

	hook := NewKillHook()
	seg.InstallKillHook(hook)

	seg.Kill(1)
	require.Equal(t, []uint64{1}, hook.Drain())

	seg.RemoveKillHook()
	seg.Kill(2)
	require.Empty(t, hook.Drain())
}

func TestSelfCheckCatchesRowCountMismatch(t *testing.T) {
	sch := testSchema()
	rows := buildRows(sch, []uint64{1, 2, 3})
	seg := New(sch, 3, rows, nil, Posting{})

	report := seg.SelfCheck()
	require.True(t, report.OK())

	seg.Kill(1)
	report = seg.SelfCheck()
	require.True(t, report.OK())

	seg.aliveRows.Add(1) // alive 3 + dead 1 no longer equals row_count 3
	require.False(t, seg.SelfCheck().OK())
}

func TestApplyRowUpdateOverwritesCell(t *testing.T) {
	sch := testSchema()
	rows := buildRows(sch, []uint64{1})
	seg := New(sch, 1, rows, nil, Posting{})

	var buf [4]byte
	schema.PutUint32(buf[:], 0, 999)
	seg.ApplyRowUpdate(0, 1, buf[:], nil)

	got := seg.RowBytes(0)
	require.EqualValues(t, 999, schema.GetUint32(got, sch.Offsets()[1]))
}
