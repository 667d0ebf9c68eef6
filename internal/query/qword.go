package query

import "github.com/ignitedb/ignite/pkg/codec"

// Qword iterates one word's doclist entries within a single shard, in
// ascending row-id order, exposing the current entry's fields mask and
// hit positions on demand. It is the unit every boolean/phrase/proximity
// node composes over (spec §4.9 "Posting traversal").
type Qword struct {
	shard *Shard
	dr    *codec.DoclistReader
	hr    *codec.HitlistReader

	remaining  uint32
	cur        codec.DocEntry
	ok         bool
	hasHitlist bool
}

// NewQword seeds a word iterator over shard at the given expansion
// (typically the result of LookupWordID/LookupKeyword/Expand*).
func NewQword(shard Shard, exp Expansion) *Qword {
	q := &Qword{
		shard:      &shard,
		dr:         shard.Postings.NewDoclistReaderAt(exp.DoclistOffset),
		hr:         shard.Postings.NewHitlistReaderAt(0),
		remaining:  uint32(exp.Entry.DocCount),
		hasHitlist: exp.Entry.HasHitlist,
	}
	q.Next()
	return q
}

// Valid reports whether Row/FieldsMask/Positions refer to a live entry.
func (q *Qword) Valid() bool { return q.ok }

// Next advances to the word's next doc entry (skipping dead rows via the
// shard's deadmap), returning false once the word's doclist span is
// exhausted.
func (q *Qword) Next() bool {
	for q.remaining > 0 {
		e, err := q.dr.ReadEntry()
		q.remaining--
		if err != nil {
			q.ok = false
			return false
		}
		if q.shard.Deadmap != nil && q.shard.Deadmap.IsDead(e.RowID) {
			continue
		}
		q.cur = e
		q.ok = true
		return true
	}
	q.ok = false
	return false
}

// SkipTo advances until the current row id is >= target, or the word is
// exhausted.
func (q *Qword) SkipTo(rowID uint32) bool {
	for q.ok && q.cur.RowID < rowID {
		q.Next()
	}
	return q.ok
}

// RowID returns the current entry's row id.
func (q *Qword) RowID() uint32 { return q.cur.RowID }

// FieldsMask returns which fields the word hit in the current row.
func (q *Qword) FieldsMask() uint64 { return q.cur.FieldsMask }

// HitCount returns how many times the word hit the current row.
func (q *Qword) HitCount() uint32 { return q.cur.HitCount }

// Positions decodes every packed hit position for the current row (spec
// §4.1 "hit_count == 1 inlines the hit position"). The returned slice is
// sorted ascending, matching on-disk encoding order.
func (q *Qword) Positions() []uint32 {
	if !q.ok {
		return nil
	}
	if q.cur.HitCount == 1 {
		return []uint32{q.cur.HitRef}
	}
	out := make([]uint32, 0, q.cur.HitCount)
	q.hr.Seek(int(q.cur.HitRef))
	for i := uint32(0); i < q.cur.HitCount; i++ {
		pos, err := q.hr.ReadPosition()
		if err != nil {
			break
		}
		out = append(out, pos)
	}
	return out
}
