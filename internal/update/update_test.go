package update

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
		DocIDAttr: "id",
		Attributes: []schema.Attribute{
			{Name: "id", Type: schema.AttrInt64},
			{Name: "price", Type: schema.AttrUint32},
			{Name: "meta", Type: schema.AttrJSON},
		},
		Fields: []schema.Field{{Name: "title"}},
	}
}

type numericDict struct{}

func (numericDict) WordID(kw []byte) (uint64, bool) { return 0, false }
func (numericDict) Mode() codec.DictMode            { return codec.NumericDict }
func (numericDict) HasMorphology() bool             { return false }
func (numericDict) IsStopword(kw []byte) bool       { return false }
func (numericDict) SettingsHash() uint64            { return 0 }

func buildRow(sch *schema.Schema, id uint64, price uint32) []byte {
	buf := make([]byte, sch.RowStride())
	off := sch.Offsets()
	schema.PutUint64(buf, off[0], id)
	schema.PutUint32(buf, off[1], price)
	return buf
}

func buildDataset(t *testing.T, sch *schema.Schema, ids []uint64) *dataset.Dataset {
	t.Helper()
	acc := accumulator.New(accumulator.Config{Schema: sch, Dict: numericDict{}, IndexIdentity: "idx1", CheckpointEvery: 2})
	for i, id := range ids {
		acc.AddDocument(id, buildRow(sch, id, 100), false, accumulator.NewHit(100+uint64(i), nil, codec.PackPosition(0, 0, true)))
	}
	seg, err := acc.Commit(sch)
	require.NoError(t, err)

	ds := dataset.New()
	ds.Publish(&dataset.Snapshot{RamSegments: []*segment.RamSegment{seg}})
	return ds
}

func TestApplyRowwiseUpdatesCellInPlace(t *testing.T) {
	sch := testSchema()
	ds := buildDataset(t, sch, []uint64{1, 2})

	raw := make([]byte, 4)
	schema.PutUint32(raw, 0, 999)
	batch := Batch{
		Attributes: []string{"price"},
		DocIDs:     []uint64{1},
		Values:     [][]Value{{{Raw: raw}}},
	}

	result, err := Apply(context.Background(), ds, sch, nil, 1, batch)
	require.NoError(t, err)
	require.Equal(t, 1, result.Affected)
	require.Empty(t, result.Warnings)

	row, _, ok := ds.Load().RamSegments[0].FindAliveRow(1)
	require.True(t, ok)
	require.Equal(t, uint32(999), schema.GetUint32(row, sch.Offsets()[1]))
}

func TestApplyJSONDryRunSkipsInvalidRowButAppliesOthers(t *testing.T) {
	sch := testSchema()
	ds := buildDataset(t, sch, []uint64{1, 2})

	batch := Batch{
		Attributes: []string{"meta"},
		DocIDs:     []uint64{1, 2},
		Values: [][]Value{
			{{JSON: []byte(`{"ok":true}`)}},
			{{JSON: []byte(`{not json`)}},
		},
	}

	result, err := Apply(context.Background(), ds, sch, nil, 1, batch)
	require.NoError(t, err)
	require.Equal(t, 1, result.Affected)
	require.Len(t, result.Warnings, 1)
	require.Equal(t, uint64(2), result.Warnings[0].DocID)
}

func TestApplyQueuesPostponedUpdateWhenSegmentLocked(t *testing.T) {
	sch := testSchema()
	ds := buildDataset(t, sch, []uint64{1})
	seg := ds.Load().RamSegments[0]
	seg.LockedByOp.Store(7)

	raw := make([]byte, 4)
	schema.PutUint32(raw, 0, 42)
	batch := Batch{
		Attributes: []string{"price"},
		DocIDs:     []uint64{1},
		Values:     [][]Value{{{Raw: raw}}},
	}

	result, err := Apply(context.Background(), ds, sch, nil, 1, batch)
	require.NoError(t, err)
	require.Equal(t, 1, result.Affected)

	row, _, _ := seg.FindAliveRow(1)
	require.Equal(t, uint32(100), schema.GetUint32(row, sch.Offsets()[1]), "row must stay untouched until replay")

	postponed := seg.DrainPostponedUpdates()
	require.Len(t, postponed, 1)
	require.Equal(t, uint32(42), schema.GetUint32(postponed[0].RawValue, 0))
}

func TestApplyUnknownAttributeStrictAborts(t *testing.T) {
	sch := testSchema()
	ds := buildDataset(t, sch, []uint64{1})

	batch := Batch{
		Attributes: []string{"nope"},
		DocIDs:     []uint64{1},
		Values:     [][]Value{{{Raw: []byte{0, 0, 0, 0}}}},
		Strict:     true,
	}

	_, err := Apply(context.Background(), ds, sch, nil, 1, batch)
	require.Error(t, err)
}

func TestApplyUnknownAttributeNonStrictIgnored(t *testing.T) {
	sch := testSchema()
	ds := buildDataset(t, sch, []uint64{1})

	batch := Batch{
		Attributes: []string{"nope"},
		DocIDs:     []uint64{1},
		Values:     [][]Value{{{Raw: []byte{0, 0, 0, 0}}}},
	}

	result, err := Apply(context.Background(), ds, sch, nil, 1, batch)
	require.NoError(t, err)
	require.Equal(t, 0, result.Affected)
}

func TestEncodeDecodeBatchRoundTrips(t *testing.T) {
	batch := Batch{
		Attributes: []string{"price", "meta"},
		DocIDs:     []uint64{1, 2},
		Values: [][]Value{
			{{Raw: []byte{1, 2, 3, 4}}, {}},
			{{}, {JSON: []byte(`{"a":1}`)}},
		},
		Strict: true,
	}

	buf := EncodeBatch(batch)
	got, err := DecodeBatch(buf)
	require.NoError(t, err)
	require.Equal(t, batch.Attributes, got.Attributes)
	require.Equal(t, batch.DocIDs, got.DocIDs)
	require.True(t, got.Strict)
	require.Equal(t, []byte{1, 2, 3, 4}, got.Values[0][0].Raw)
	require.Equal(t, []byte(`{"a":1}`), got.Values[1][1].JSON)
}
