// Package segment implements the RAM Segment (spec §2 component 2, §3,
// §4.2): an immutable-after-build in-memory inverted index paired with
// mutable row/blob attribute storage. A segment is produced exactly once,
// by an Accumulator's commit or a Segment Merger's merge procedure, and
// lives until it is merged away or dropped at a chunk save.
package segment

import (
	"sync"
	"sync/atomic"

	"github.com/ignitedb/ignite/pkg/bitmap"
	"github.com/ignitedb/ignite/pkg/schema"
)

// InvalidRowID marks "no such row" in the docid->rowid map and in merge
// output bookkeeping (spec §4.2: "a 32-bit counter, never reaches
// INVALID_ROWID = 0xFFFFFFFF").
const InvalidRowID = uint32(0xFFFFFFFF)

// RAMBreakdown reports a segment's memory footprint by arena, so the
// Segment Merger's FLUSH/MERGE/NOMERGE policy (spec §4.5) can reason about
// which part of a segment dominates rather than only a single scalar
// (supplemented from original_source/sphinxrt.h's per-arena RAM counters).
type RAMBreakdown struct {
	Words    int64
	Docs     int64
	Hits     int64
	Rows     int64
	Strings  int64 // blob pool
	Columnar int64
	Total    int64
}

// PostponedUpdate is an attribute-update batch queued against a segment
// that is currently reserved by a merge or save (spec §4.2 invariant 6,
// §4.8 step 4). It is replayed onto the operation's output once published.
type PostponedUpdate struct {
	RowID     uint32
	AttrIndex int
	RawValue  []byte // pre-encoded cell bytes, width == schema attribute's CellWidth()
	BlobValue []byte // for blob-ref attributes, the new payload to append
}

// RamSegment is one immutable posting index plus the mutable row/blob
// storage for up to row_count rows.
type RamSegment struct {
	Schema *schema.Schema

	rowCount  uint32
	aliveRows atomic.Int64
	deadmap   *bitmap.Deadmap

	// docToRow maps a document id to its rowid within this segment. Built
	// once, after the segment is fully populated but before publication
	// (spec §4.2 "build_docid_to_rowid()").
	docToRow   map[uint64]uint32
	docToRowMu sync.RWMutex // only taken for writes during BuildDocToRowID

	// rowsMu guards rows and blobs: attribute updates may overwrite cells
	// in place or append to the blob pool and rewrite a row's blob offset
	// (spec §4.2 "Concurrency").
	rowsMu sync.RWMutex
	rows   []byte // rowCount * stride bytes
	blobs  []byte
	stride int

	Postings Posting

	// LockedByOp tags the op ticket of a merge/save currently reserving
	// this segment; zero means unlocked (spec §3 "lockedByOp: uint32").
	LockedByOp atomic.Uint64

	killHook atomic.Pointer[KillHook]

	postponedMu sync.Mutex
	postponed   []PostponedUpdate

	ramUsage atomic.Int64 // cached UsedRAM().Total
}

// New constructs a published-ready RAM segment from fully-built buffers.
// Callers (Accumulator.commit, Merger.merge) must have already emitted
// rows/blobs/postings in final form; New takes ownership of the slices
// passed in.
func New(sch *schema.Schema, rowCount uint32, rows, blobs []byte, postings Posting) *RamSegment {
	s := &RamSegment{
		Schema:   sch,
		rowCount: rowCount,
		rows:     rows,
		blobs:    blobs,
		stride:   sch.RowStride(),
		Postings: postings,
		deadmap:  bitmap.New(),
	}
	s.aliveRows.Store(int64(rowCount))
	s.BuildDocToRowID()
	s.recomputeRAMUsage()
	return s
}

// RowCount returns the segment's fixed row capacity (alive + dead).
func (s *RamSegment) RowCount() uint32 { return s.rowCount }

// AliveRows returns the current alive-row count (spec §3 invariant 3).
func (s *RamSegment) AliveRows() int64 { return s.aliveRows.Load() }

// Deadmap exposes the segment's dead-row bitset, e.g. for SelfCheck or a
// merger copying alive rows.
func (s *RamSegment) Deadmap() *bitmap.Deadmap { return s.deadmap }

// BuildDocToRowID scans every row and records its document id to rowid,
// skipping rows already marked dead (e.g. when rebuilding after a merge
// pre-applies some kills). It is O(n) and must run before publication;
// running it again (as Decode does after restoring a deadmap) rebuilds the
// map from scratch.
func (s *RamSegment) BuildDocToRowID() {
	s.docToRowMu.Lock()
	defer s.docToRowMu.Unlock()

	m := make(map[uint64]uint32, s.rowCount)
	s.rowsMu.RLock()
	for rowID := uint32(0); rowID < s.rowCount; rowID++ {
		if s.deadmap.IsDead(rowID) {
			continue
		}
		row := s.rowAt(rowID)
		m[s.Schema.DocID(row)] = rowID
	}
	s.rowsMu.RUnlock()

	s.docToRow = m
}

// rowAt returns the row slice for rowID. Caller must hold rowsMu.
func (s *RamSegment) rowAt(rowID uint32) []byte {
	off := int(rowID) * s.stride
	return s.rows[off : off+s.stride]
}

// FindAliveRow looks up doc_id and returns its row bytes and rowid. ok is
// false if the doc id is absent from this segment or its row is dead
// (spec §4.2 "find_alive_row(doc_id) -> Option<row>").
func (s *RamSegment) FindAliveRow(docID uint64) (row []byte, rowID uint32, ok bool) {
	s.docToRowMu.RLock()
	rid, present := s.docToRow[docID]
	s.docToRowMu.RUnlock()
	if !present {
		return nil, 0, false
	}
	if s.deadmap.IsDead(rid) {
		return nil, 0, false
	}
	s.rowsMu.RLock()
	defer s.rowsMu.RUnlock()
	return append([]byte(nil), s.rowAt(rid)...), rid, true
}

// Kill marks doc_id's row dead, decrementing the alive-row counter and
// notifying any installed kill-hook so a concurrent merge/save can replay
// the kill onto its output (spec §4.2 "kill(doc_id) -> bool").
func (s *RamSegment) Kill(docID uint64) bool {
	s.docToRowMu.RLock()
	rowID, present := s.docToRow[docID]
	s.docToRowMu.RUnlock()
	if !present {
		return false
	}

	killed := s.deadmap.Kill(rowID)
	if killed {
		s.aliveRows.Add(-1)
	}

	if hook := s.killHook.Load(); hook != nil {
		hook.Record(docID)
	}

	return killed
}

// KillMulti kills every id in ids and returns how many rows were newly
// dead (spec §4.2 "kill_multi(ids[]) -> count").
func (s *RamSegment) KillMulti(ids []uint64) int {
	n := 0
	for _, id := range ids {
		if s.Kill(id) {
			n++
		}
	}
	return n
}

// InstallKillHook attaches hook so future kills are recorded into it, used
// by a merge or save reserving this segment. RemoveKillHook detaches it
// once the operation has published (spec §9 "Open question decisions":
// the hook stays installed through publication, widening the window past
// merely "until output is built").
func (s *RamSegment) InstallKillHook(hook *KillHook) {
	s.killHook.Store(hook)
}

// RemoveKillHook detaches the currently installed hook, if any.
func (s *RamSegment) RemoveKillHook() {
	s.killHook.Store(nil)
}

// QueuePostponedUpdate appends an attribute update to replay once this
// segment's current merge/save operation publishes (spec §4.2 invariant 6,
// §4.8 step 4). Callers must check LockedByOp != 0 before calling this;
// Update Engine enforces that ordering.
func (s *RamSegment) QueuePostponedUpdate(u PostponedUpdate) {
	s.postponedMu.Lock()
	defer s.postponedMu.Unlock()
	s.postponed = append(s.postponed, u)
}

// DrainPostponedUpdates returns and clears queued updates, for replay onto
// a merge/save's output.
func (s *RamSegment) DrainPostponedUpdates() []PostponedUpdate {
	s.postponedMu.Lock()
	defer s.postponedMu.Unlock()
	out := s.postponed
	s.postponed = nil
	return out
}

// ApplyRowUpdate overwrites one cell in place, or, for blob-ref
// attributes, appends the new payload to the blob pool and rewrites the
// row's blob offset/length (spec §4.8 "Rowwise update").
func (s *RamSegment) ApplyRowUpdate(rowID uint32, attrIdx int, rawValue, blobValue []byte) {
	s.rowsMu.Lock()
	defer s.rowsMu.Unlock()

	row := s.rowAt(rowID)
	off := s.Schema.Offsets()[attrIdx]

	if s.Schema.Attributes[attrIdx].Type.IsBlobRef() && blobValue != nil {
		ref := schema.BlobRef{Offset: uint64(len(s.blobs)), Length: uint64(len(blobValue))}
		s.blobs = append(s.blobs, blobValue...)
		schema.PutBlobRef(row, off, ref)
		return
	}

	copy(row[off:off+len(rawValue)], rawValue)
}

// RowBytes returns a defensive copy of rowID's current cell bytes.
func (s *RamSegment) RowBytes(rowID uint32) []byte {
	s.rowsMu.RLock()
	defer s.rowsMu.RUnlock()
	return append([]byte(nil), s.rowAt(rowID)...)
}

// BlobAt returns a defensive copy of the blob payload referenced by ref.
func (s *RamSegment) BlobAt(ref schema.BlobRef) []byte {
	s.rowsMu.RLock()
	defer s.rowsMu.RUnlock()
	return append([]byte(nil), s.blobs[ref.Offset:ref.Offset+ref.Length]...)
}

// UsedRAM computes the per-arena memory breakdown from the current buffer
// lengths on every call (spec §4.2
// "used_ram() -> i64", supplemented with arena granularity from
// original_source/sphinxrt.h).
func (s *RamSegment) UsedRAM() RAMBreakdown {
	s.rowsMu.RLock()
	defer s.rowsMu.RUnlock()
	return RAMBreakdown{
		Words:   int64(len(s.Postings.Wordlist)),
		Docs:    int64(len(s.Postings.Doclist)),
		Hits:    int64(len(s.Postings.Hitlist)),
		Rows:    int64(len(s.rows)),
		Strings: int64(len(s.blobs)),
		Total: int64(len(s.Postings.Wordlist)+len(s.Postings.Doclist)+
			len(s.Postings.Hitlist)+len(s.rows)+len(s.blobs)) +
			int64(len(s.Postings.InfixBloom))*8,
	}
}

func (s *RamSegment) recomputeRAMUsage() {
	s.ramUsage.Store(s.UsedRAM().Total)
}
