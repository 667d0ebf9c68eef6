package merger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/options"
	"github.com/ignitedb/ignite/pkg/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{
		DocIDAttr:  "id",
		Attributes: []schema.Attribute{{Name: "id", Type: schema.AttrInt64}},
		Fields:     []schema.Field{{Name: "title"}},
	}
}

func segWithRows(t *testing.T, sch *schema.Schema, n int) *segment.RamSegment {
	t.Helper()
	stride := sch.RowStride()
	rows := make([]byte, stride*n)
	for i := 0; i < n; i++ {
		schema.PutUint64(rows[i*stride:], sch.Offsets()[0], uint64(i+1))
	}
	return segment.New(sch, uint32(n), rows, nil, segment.Posting{})
}

func TestDecideFlushWhenOverBudget(t *testing.T) {
	sch := testSchema()
	opts := options.NewDefaultOptions()
	opts.RAMOptions.SoftLimit = 1

	plan := Decide([]*segment.RamSegment{segWithRows(t, sch, 10)}, &opts, false)
	require.Equal(t, Flush, plan.Decision)
}

func TestDecideNoMergeWhenFewSegments(t *testing.T) {
	sch := testSchema()
	opts := options.NewDefaultOptions()

	plan := Decide([]*segment.RamSegment{segWithRows(t, sch, 1), segWithRows(t, sch, 1)}, &opts, false)
	require.Equal(t, NoMerge, plan.Decision)
}

func TestDecideMergesTwoSmallestWhenSkewResolved(t *testing.T) {
	sch := testSchema()
	opts := options.NewDefaultOptions()
	opts.RAMOptions.MaxSegments = 2
	opts.RAMOptions.MaxProgression = 1

	small := segWithRows(t, sch, 10)
	alsoSmall := segWithRows(t, sch, 12)
	plan := Decide([]*segment.RamSegment{small, alsoSmall}, &opts, false)

	require.Equal(t, Merge, plan.Decision)
	require.ElementsMatch(t, []*segment.RamSegment{small, alsoSmall}, []*segment.RamSegment{plan.A, plan.B})
}

func TestDecideNoMergeWhenSkewedAndBelowCeiling(t *testing.T) {
	sch := testSchema()
	opts := options.NewDefaultOptions()
	opts.RAMOptions.MaxSegments = 5
	opts.RAMOptions.MaxProgression = 4

	small := segWithRows(t, sch, 1)
	big := segWithRows(t, sch, 100)
	plan := Decide([]*segment.RamSegment{small, big}, &opts, false)

	require.Equal(t, NoMerge, plan.Decision)
}
