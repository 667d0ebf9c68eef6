package diskchunk

import (
	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/schema"
)

// RowFilter decides whether a chunk's row should be kept by a filtered
// copy pass (spec §4.7 split's "exclusion_filter"/its inverse). A nil
// filter keeps every alive row.
type RowFilter func(docID uint64, row []byte) bool

// CopyAliveRowsFiltered copies every alive row of c for which filter
// returns true (or every alive row, if filter is nil) into outRows,
// deep-copying blob payloads through outBlobs, and returns a map from c's
// old rowid to its new rowid (segment.InvalidRowID for rows that were
// dead, or excluded by filter). Used by the Optimizer's merge/compress/split
// verbs (spec §4.7).
func CopyAliveRowsFiltered(sch *schema.Schema, c *DiskChunk, filter RowFilter, outRows, outBlobs *[]byte) []uint32 {
	stride := sch.RowStride()
	rowMap := make([]uint32, c.RowCount())
	offsets := sch.Offsets()

	for rowID := uint32(0); rowID < c.RowCount(); rowID++ {
		if c.Deadmap().IsDead(rowID) {
			rowMap[rowID] = segment.InvalidRowID
			continue
		}

		row := c.RowBytes(rowID)
		if filter != nil && !filter(sch.DocID(row), row) {
			rowMap[rowID] = segment.InvalidRowID
			continue
		}

		for i, a := range sch.Attributes {
			if !a.Type.IsBlobRef() {
				continue
			}
			off := offsets[i]
			ref := schema.GetBlobRef(row, off)
			payload := c.BlobAt(ref)
			newRef := schema.BlobRef{Offset: uint64(len(*outBlobs)), Length: uint64(len(payload))}
			*outBlobs = append(*outBlobs, payload...)
			schema.PutBlobRef(row, off, newRef)
		}

		newRowID := uint32(len(*outRows) / stride)
		*outRows = append(*outRows, row...)
		rowMap[rowID] = newRowID
	}

	return rowMap
}

// DecodeHits decodes c's postings into raw (word, row, position) triples,
// the same starting point the Segment Merger and Chunk Saver use.
func DecodeHits(c *DiskChunk) ([]segment.DecodedHit, error) {
	return segment.DecodePostings(&c.Postings)
}

// RemapHits filters and rewrites hits through rowMap, dropping any whose
// row was dead or excluded.
func RemapHits(hits []segment.DecodedHit, rowMap []uint32) []segment.DecodedHit {
	out := make([]segment.DecodedHit, 0, len(hits))
	for _, h := range hits {
		newRow := rowMap[h.RowID]
		if newRow == segment.InvalidRowID {
			continue
		}
		h.RowID = newRow
		out = append(out, h)
	}
	return out
}

// ReplayPostponedFiltered applies u (remapped through rowMap) onto out,
// skipping updates whose row was dead or excluded from out's rowMap.
func ReplayPostponedFiltered(updates []segment.PostponedUpdate, rowMap []uint32, out *DiskChunk) {
	for _, u := range updates {
		if int(u.RowID) >= len(rowMap) {
			continue
		}
		newRow := rowMap[u.RowID]
		if newRow == segment.InvalidRowID {
			continue
		}
		out.ApplyRowUpdateLocked(newRow, u.AttrIndex, u.RawValue, u.BlobValue)
	}
}

// ReserveChunks CAS-reserves every chunk in chunks under ticket, rolling
// back prior reservations in this call if any chunk is already claimed by
// another operation (spec §3 invariant 6, extended to chunks).
func ReserveChunks(ticket uint64, chunks []*DiskChunk) bool {
	claimed := make([]*DiskChunk, 0, len(chunks))
	for _, c := range chunks {
		if !c.LockedByOp.CompareAndSwap(0, ticket) {
			for _, done := range claimed {
				done.LockedByOp.Store(0)
			}
			return false
		}
		claimed = append(claimed, c)
	}
	return true
}

// ReleaseChunks clears LockedByOp and the advisory optimizing flag on
// every chunk in chunks.
func ReleaseChunks(chunks []*DiskChunk) {
	for _, c := range chunks {
		c.SetOptimizing(false)
		c.LockedByOp.Store(0)
	}
}
