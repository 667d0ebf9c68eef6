// Package query implements the Query Executor (spec §2 component 7,
// §4.9): evaluating a boolean query tree over every RAM segment and disk
// chunk in a dataset snapshot, ranking the resulting matches, and merging
// them into the caller's top-K sorters. Keyword lookup and posting
// traversal are grounded directly on the wordlist/doclist/hitlist codec in
// pkg/codec and the Posting type shared by internal/segment and
// internal/diskchunk.
package query

import (
	"github.com/ignitedb/ignite/internal/diskchunk"
	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/bitmap"
	"github.com/ignitedb/ignite/pkg/schema"
)

// Shard is the query executor's view of one RAM segment or disk chunk:
// just enough surface to look up words and read rows, independent of
// which concrete type backs it (spec §4.9 treats both uniformly as "the
// RAM layer" and "disk chunks").
type Shard struct {
	Label    string // for QueryError.WithChunkID / diagnostics
	Postings segment.Posting
	RowCount uint32
	Deadmap  *bitmap.Deadmap
	RowBytes func(rowID uint32) []byte
	BlobAt   func(ref schema.BlobRef) []byte
}

// FromSegment adapts a RAM segment into a Shard.
func FromSegment(label string, s *segment.RamSegment) Shard {
	return Shard{
		Label: label, Postings: s.Postings, RowCount: s.RowCount(),
		Deadmap: s.Deadmap(), RowBytes: s.RowBytes, BlobAt: s.BlobAt,
	}
}

// FromChunk adapts a disk chunk into a Shard.
func FromChunk(label string, c *diskchunk.DiskChunk) Shard {
	return Shard{
		Label: label, Postings: c.Postings, RowCount: c.RowCount(),
		Deadmap: c.Deadmap(), RowBytes: c.RowBytes, BlobAt: c.BlobAt,
	}
}
