package merger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignitedb/ignite/internal/accumulator"
	"github.com/ignitedb/ignite/internal/dataset"
	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/codec"
	"github.com/ignitedb/ignite/pkg/schema"
)

type numericDict struct{}

func (numericDict) WordID(kw []byte) (uint64, bool) { return 0, false }
func (numericDict) Mode() codec.DictMode            { return codec.NumericDict }
func (numericDict) HasMorphology() bool             { return false }
func (numericDict) IsStopword(kw []byte) bool       { return false }
func (numericDict) SettingsHash() uint64            { return 0 }

// segOfDocs builds one committed RAM segment holding docs [lo, hi],
// each with a single hit on a shared word id so the segment carries real
// postings rather than an empty Posting{}.
func segOfDocs(t *testing.T, sch *schema.Schema, lo, hi uint64) *segment.RamSegment {
	t.Helper()
	acc := accumulator.New(accumulator.Config{
		Schema: sch, Dict: numericDict{}, IndexIdentity: "idx1", CheckpointEvery: 8,
	})
	stride := sch.RowStride()
	for id := lo; id <= hi; id++ {
		row := make([]byte, stride)
		schema.PutUint64(row, sch.Offsets()[0], id)
		acc.AddDocument(id, row, false, accumulator.NewHit(1, nil, codec.PackPosition(0, 0, true)))
	}
	seg, err := acc.Commit(sch)
	require.NoError(t, err)
	return seg
}

// TestMergeTwoSegmentsConcurrentKill exercises spec §8 scenario 4: merging
// segment A (docs 1..100) with segment B (docs 101..200) while docs 50 and
// 150 are killed concurrently must still yield 198 alive rows in the
// output, missing exactly 50 and 150 — regardless of whether the kill
// lands before MergeTwoSegments reserves the segments, while it is copying
// rows, or after the copy (the kill-hook MergeTwoSegments installs right
// after reserve() records any kill up to publication, and the publish step
// replays it onto the output; a kill landing
// before copyAliveRows runs is simply excluded by the deadmap check
// instead, per spec §4.5 step 1-2 and §9's kill-hook open question).
func TestMergeTwoSegmentsConcurrentKill(t *testing.T) {
	sch := testSchema()
	a := segOfDocs(t, sch, 1, 100)
	b := segOfDocs(t, sch, 101, 200)

	ds := dataset.New()
	ds.Publish(&dataset.Snapshot{RamSegments: []*segment.RamSegment{a, b}})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); a.Kill(50) }()
	go func() { defer wg.Done(); b.Kill(150) }()

	cfg := Config{Mode: codec.NumericDict, CheckpointEvery: 8}
	out, err := MergeTwoSegments(context.Background(), ds, sch, cfg, a, b)
	require.NoError(t, err)
	require.NotNil(t, out)

	wg.Wait()

	require.EqualValues(t, 198, out.AliveRows())
	_, _, ok50 := out.FindAliveRow(50)
	require.False(t, ok50)
	_, _, ok150 := out.FindAliveRow(150)
	require.False(t, ok150)

	for _, id := range []uint64{1, 49, 51, 100, 101, 149, 151, 200} {
		_, _, ok := out.FindAliveRow(id)
		require.Truef(t, ok, "doc %d should still be alive", id)
	}

	snap := ds.Load()
	require.Len(t, snap.RamSegments, 1)
	require.Same(t, out, snap.RamSegments[0])
}

// TestMergeTwoSegmentsDropsZeroAliveOutput exercises spec §8's boundary
// behavior "aliveRowsCount == 0 after merge: output segment/chunk dropped":
// merging two segments whose every doc has already been killed must
// publish no new RAM segment at all.
func TestMergeTwoSegmentsDropsZeroAliveOutput(t *testing.T) {
	sch := testSchema()
	a := segOfDocs(t, sch, 1, 5)
	b := segOfDocs(t, sch, 6, 10)
	for id := uint64(1); id <= 10; id++ {
		if id <= 5 {
			a.Kill(id)
		} else {
			b.Kill(id)
		}
	}

	ds := dataset.New()
	ds.Publish(&dataset.Snapshot{RamSegments: []*segment.RamSegment{a, b}})

	cfg := Config{Mode: codec.NumericDict, CheckpointEvery: 8}
	out, err := MergeTwoSegments(context.Background(), ds, sch, cfg, a, b)
	require.NoError(t, err)
	require.Nil(t, out)

	snap := ds.Load()
	require.Empty(t, snap.RamSegments)
}
