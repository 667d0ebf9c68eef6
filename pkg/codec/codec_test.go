package codec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUvarintRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		var v uint64
		switch i % 4 {
		case 0:
			v = uint64(rng.Intn(1 << 7))
		case 1:
			v = uint64(rng.Intn(1 << 20))
		case 2:
			v = rng.Uint64()
		case 3:
			v = 0
		}
		var buf [MaxVarintLen64]byte
		n := PutUvarint(buf[:], v)
		got, m := Uvarint(buf[:n])
		require.Equal(t, n, m)
		require.Equal(t, v, got)
	}
}

func TestUvarintTruncated(t *testing.T) {
	buf := AppendUvarint(nil, 1<<40)
	_, n := Uvarint(buf[:len(buf)-1])
	require.Equal(t, 0, n)
}

func TestHitlistDeltaRestartsPerDoc(t *testing.T) {
	w := NewHitlistWriter()

	w.StartDoc()
	w.WritePosition(10)
	w.WritePosition(25)

	off2 := w.Offset()
	w.StartDoc()
	w.WritePosition(5)
	w.WritePosition(5)

	r := NewHitlistReader(w.Buf())
	r.Seek(0)
	p1, err := r.ReadPosition()
	require.NoError(t, err)
	p2, err := r.ReadPosition()
	require.NoError(t, err)
	require.Equal(t, uint32(10), p1)
	require.Equal(t, uint32(25), p2)

	r.Seek(off2)
	p3, err := r.ReadPosition()
	require.NoError(t, err)
	require.Equal(t, uint32(5), p3)
}

func TestDoclistInlinesSingleHit(t *testing.T) {
	w := NewDoclistWriter()
	w.StartWord()

	pos := PackPosition(2, 12345, true)
	w.WriteEntry(DocEntry{RowID: 7, FieldsMask: 0b100, HitCount: 1, HitRef: pos})
	w.WriteEntry(DocEntry{RowID: 12, FieldsMask: 0b001, HitCount: 3, HitRef: 42})

	r := NewDoclistReader(w.Buf())
	r.StartWord()

	e1, err := r.ReadEntry()
	require.NoError(t, err)
	require.Equal(t, uint32(7), e1.RowID)
	require.Equal(t, uint32(1), e1.HitCount)
	require.Equal(t, pos, e1.HitRef)

	e2, err := r.ReadEntry()
	require.NoError(t, err)
	require.Equal(t, uint32(12), e2.RowID)
	require.Equal(t, uint32(3), e2.HitCount)
	require.Equal(t, uint32(42), e2.HitRef)

	require.False(t, r.More())
}

func TestWordlistNumericDictCheckpoints(t *testing.T) {
	w := NewWordlistWriter(NumericDict, 2)

	entries := []WordEntry{
		{WordID: 100, DocCount: 5, HitCount: 9, HasHitlist: true},
		{WordID: 103, DocCount: 1, HitCount: 1, HasHitlist: true},
		{WordID: 110, DocCount: 2, HitCount: 0, HasHitlist: false},
	}
	for _, e := range entries {
		w.WriteEntry(e)
	}

	require.Len(t, w.Checkpoints(), 2)

	r := NewWordlistReader(NumericDict, w.Buf())
	r.Seek(w.Checkpoints()[0])

	got0, err := r.ReadEntry(true)
	require.NoError(t, err)
	require.Equal(t, uint64(100), got0.WordID)

	got1, err := r.ReadEntry(false)
	require.NoError(t, err)
	require.Equal(t, uint64(103), got1.WordID)

	r.Seek(w.Checkpoints()[1])
	got2, err := r.ReadEntry(true)
	require.NoError(t, err)
	require.Equal(t, uint64(110), got2.WordID)
	require.False(t, got2.HasHitlist)
}

func TestWordlistWordDictKeywordDelta(t *testing.T) {
	w := NewWordlistWriter(WordDict, 0)
	w.WriteEntry(WordEntry{Keyword: []byte("alpha"), DocCount: 1, HitCount: 1, HasHitlist: true})
	w.WriteEntry(WordEntry{Keyword: []byte("alphanumeric"), DocCount: 1, HitCount: 1, HasHitlist: true})

	r := NewWordlistReader(WordDict, w.Buf())
	r.Seek(w.Checkpoints()[0])

	e0, err := r.ReadEntry(true)
	require.NoError(t, err)
	require.Equal(t, "alpha", string(e0.Keyword))

	e1, err := r.ReadEntry(true)
	require.NoError(t, err)
	require.Equal(t, "alphanumeric", string(e1.Keyword))
}

// TestWordlistWordDictSharedPrefixBoundary exercises shared-prefix lengths
// at and above the single-byte packed encoding's 3-bit ddd field boundary
// (spec §4.1 "[1ddd mmmm] covers delta ≤ 8"), which only has 8 distinct
// values (0-7): a shared-prefix length of exactly 7 must still fit the
// packed byte, and 8 must fall back to the two-byte form rather than
// silently wrapping.
func TestWordlistWordDictSharedPrefixBoundary(t *testing.T) {
	w := NewWordlistWriter(WordDict, 4)
	words := []string{
		"abcdefgh",   // checkpoint word, full keyword stored
		"abcdefgx",   // shared=7 against previous, fits single-byte form
		"abcdefgxyz", // shared=8 against previous, needs two-byte form
	}
	for _, kw := range words {
		w.WriteEntry(WordEntry{Keyword: []byte(kw), DocCount: 1, HitCount: 1, HasHitlist: true})
	}

	r := NewWordlistReader(WordDict, w.Buf())
	r.Seek(w.Checkpoints()[0])

	e0, err := r.ReadEntry(true)
	require.NoError(t, err)
	require.Equal(t, words[0], string(e0.Keyword))

	e1, err := r.ReadEntry(false)
	require.NoError(t, err)
	require.Equal(t, words[1], string(e1.Keyword))

	e2, err := r.ReadEntry(false)
	require.NoError(t, err)
	require.Equal(t, words[2], string(e2.Keyword))
}
