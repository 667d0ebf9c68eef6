package bitmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeadmapKillAndPopcount(t *testing.T) {
	d := New()

	require.True(t, d.Kill(3))
	require.False(t, d.Kill(3)) // already dead
	require.True(t, d.IsDead(3))
	require.False(t, d.IsDead(4))
	require.EqualValues(t, 1, d.PopCount())
}

func TestDeadmapKillMulti(t *testing.T) {
	d := New()
	n := d.KillMulti([]uint32{1, 2, 3, 2})
	require.Equal(t, 3, n)
	require.EqualValues(t, 3, d.PopCount())
}

func TestDeadmapCloneIsIndependent(t *testing.T) {
	d := New()
	d.Kill(1)

	clone := d.Clone()
	d.Kill(2)

	require.True(t, clone.IsDead(1))
	require.False(t, clone.IsDead(2))
	require.True(t, d.IsDead(2))
}

func TestKillBatchDrainResets(t *testing.T) {
	kb := NewKillBatch()
	kb.Add(10, 20, 10)
	require.Equal(t, 2, kb.Len())

	drained := kb.Drain()
	require.ElementsMatch(t, []uint64{10, 20}, drained)
	require.Equal(t, 0, kb.Len())
}
