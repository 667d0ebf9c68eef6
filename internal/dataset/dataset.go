// Package dataset implements the Hybrid Dataset (spec §2 component 5, §3,
// §4.4): the atomically swappable (disk_chunks[], ram_segments[]) pair that
// readers snapshot lock-free and writers replace wholesale under the
// serial executor's exclusive role. Worker (worker.go) supplies the two
// named single-goroutine schedulers the rest of the package's callers run
// on: the serial executor and the merge scheduler.
package dataset

import (
	"sync"
	"sync/atomic"

	"github.com/ignitedb/ignite/internal/diskchunk"
	"github.com/ignitedb/ignite/internal/segment"
)

// Snapshot is one immutable view of the dataset's two vectors, handed out
// to readers under the short pointer-swap lock and then traversed
// lock-free (spec §4.4 "Snapshot discipline").
type Snapshot struct {
	DiskChunks  []*diskchunk.DiskChunk
	RamSegments []*segment.RamSegment
}

// TotalDocuments sums alive rows across every chunk and segment in the
// snapshot (spec §8 invariants 1-2).
func (s *Snapshot) TotalDocuments() int64 {
	var n int64
	for _, c := range s.DiskChunks {
		n += c.AliveRows()
	}
	for _, seg := range s.RamSegments {
		n += seg.AliveRows()
	}
	return n
}

// Dataset holds the current snapshot behind a short-lived lock plus the
// two monotonic counters that label chunk identities and op-ticket
// reservations (spec §3 "Hybrid Dataset").
type Dataset struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]

	nextChunkID  atomic.Uint64
	nextOpTicket atomic.Uint64

	// Serial is the single-goroutine scheduler every mutation of the
	// (disk_chunks, ram_segments) pair must run on (spec §4.4, §5).
	Serial *Worker
	// Merger is the single-goroutine scheduler that runs one in-flight
	// segment merge or chunk save at a time (spec §4.5, §4.6, §5).
	Merger *Worker
}

// New returns an empty dataset with its two schedulers started.
func New() *Dataset {
	d := &Dataset{Serial: NewWorker(128), Merger: NewWorker(8)}
	d.current.Store(&Snapshot{})
	return d
}

// Load returns the current snapshot without blocking writers
// (spec §4.4 "readers load both pointers under the short lock and then
// operate on them lock-free" — atomic.Pointer gives us this without an
// explicit mutex on the read path).
func (d *Dataset) Load() *Snapshot {
	return d.current.Load()
}

// Publish atomically replaces the current snapshot. Callers must already
// be running on d.Serial (spec §4.4 invariant: "mutation means producing a
// new vector under the serial executor's exclusive role").
func (d *Dataset) Publish(next *Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current.Store(next)
}

// NextChunkID returns a fresh monotonic disk-chunk identifier.
func (d *Dataset) NextChunkID() uint64 {
	return d.nextChunkID.Add(1)
}

// SeedChunkID raises the chunk id counter so the next NextChunkID call
// returns at least id+1, used on recovery to resume numbering past every
// chunk id restored from the header (spec §4.10).
func (d *Dataset) SeedChunkID(id uint64) {
	for {
		cur := d.nextChunkID.Load()
		if cur >= id {
			return
		}
		if d.nextChunkID.CompareAndSwap(cur, id) {
			return
		}
	}
}

// NextOpTicket returns a fresh monotonic op ticket labeling one
// reservation of segments/chunks by a merge, save, or optimize
// (spec §4.4 "Tickets").
func (d *Dataset) NextOpTicket() uint64 {
	return d.nextOpTicket.Add(1)
}

// FindAliveRow searches every RAM segment then every disk chunk,
// oldest-first, for docID (spec §3 invariant 5 "Disk chunks are ordered
// oldest-first"). At most one location should report alive per invariant
// 3; the first hit wins.
func (s *Snapshot) FindAliveRow(docID uint64) (row []byte, ok bool) {
	for _, seg := range s.RamSegments {
		if r, _, found := seg.FindAliveRow(docID); found {
			return r, true
		}
	}
	for _, c := range s.DiskChunks {
		if r, _, found := c.FindAliveRow(docID); found {
			return r, true
		}
	}
	return nil, false
}

// KillEverywhere marks docID dead in every segment and chunk that reports
// it alive, honoring kill-hooks installed on segments/chunks currently
// reserved by a merge/save (spec §3 invariant 4: "the writer first builds
// the new segment and then issues a kill-list over all prior segments and
// chunks"). It returns how many locations actually had the doc alive
// (normally 0 or 1, per invariant 3).
func (s *Snapshot) KillEverywhere(docID uint64) int {
	n := 0
	for _, seg := range s.RamSegments {
		if seg.Kill(docID) {
			n++
		}
	}
	for _, c := range s.DiskChunks {
		if c.Kill(docID) {
			n++
		}
	}
	return n
}

// KillMultiEverywhere is the batch form of KillEverywhere, returning the
// total count of newly dead rows across every id.
func (s *Snapshot) KillMultiEverywhere(ids []uint64) int {
	n := 0
	for _, id := range ids {
		n += s.KillEverywhere(id)
	}
	return n
}
