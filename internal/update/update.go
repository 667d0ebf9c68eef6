// Package update implements the Update Engine (spec §2 component 6,
// §4.8): applying an attribute-update batch against every RAM segment and
// disk chunk in a dataset snapshot without producing a new segment or
// chunk the way a commit does. Updates run on the serial executor like
// every other dataset mutation (spec §4.4, §5); this package only does the
// per-row work, leaving scheduling to the caller.
package update

import (
	"context"

	"github.com/tailscale/hujson"

	"github.com/ignitedb/ignite/internal/dataset"
	"github.com/ignitedb/ignite/internal/diskchunk"
	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/internal/txlog"
	"github.com/ignitedb/ignite/pkg/errors"
	"github.com/ignitedb/ignite/pkg/schema"
)

// Value is one (doc, attribute) update cell. Exactly one of Raw, Blob, or
// JSON should be set, matching the attribute's type: Raw for fixed-width
// cells, Blob for a full blob-pool replace (string/MVA attributes), JSON
// for an AttrJSON attribute whose new payload must pass a dry-run parse
// before being applied (spec §4.8 "JSON update: two-pass").
type Value struct {
	Raw  []byte
	Blob []byte
	JSON []byte
}

// Batch is one update_attributes call's input (spec §4.8 "Contract").
// Values[d][a] holds the update for DocIDs[d] against Attributes[a];
// every row of Values must have the same length as Attributes.
type Batch struct {
	Attributes []string
	DocIDs     []uint64
	Values     [][]Value

	// Strict aborts the whole batch on an unknown attribute name instead of
	// silently ignoring it (spec §4.8 "Unknown attribute name in strict
	// mode aborts; in non-strict mode it is silently ignored").
	Strict bool
}

// Warning records a per-row, per-attribute failure that did not abort the
// batch (spec §7 item 4 "Per-value validation").
type Warning struct {
	DocID     uint64
	Attribute string
	Err       error
}

// Result reports how many documents were touched and any recoverable
// failures encountered along the way.
type Result struct {
	Affected     int
	Warnings     []Warning
	Inconsistent bool
}

type skipKey struct {
	docIdx int
	attrI  int
}

// Apply validates batch against sch, then walks every RAM segment and disk
// chunk in snap applying (or postponing) each matched document's update,
// and finally records the batch in log so replay can reconstruct it
// (spec §4.8 "Procedure", steps 1-6).
func Apply(ctx context.Context, ds *dataset.Dataset, sch *schema.Schema, log *txlog.TxLog, tid uint64, batch Batch) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	attrIdx := make([]int, len(batch.Attributes))
	for i, name := range batch.Attributes {
		idx := sch.AttrIndex(name)
		if idx < 0 {
			if batch.Strict {
				return nil, errors.NewValidationError(nil, errors.ErrorCodeInvalidInput, "update: unknown attribute").
					WithField(name).WithProvided(name)
			}
			idx = -1
		}
		attrIdx[i] = idx
	}

	result := &Result{}
	skip := dryRunJSON(sch, batch, attrIdx, result)

	snap := ds.Load()

	touched := make([]bool, len(batch.DocIDs))
	for docIdx, docID := range batch.DocIDs {
		for _, seg := range snap.RamSegments {
			row, rowID, ok := seg.FindAliveRow(docID)
			if !ok {
				continue
			}
			if applyToSegment(seg, sch, row, rowID, docIdx, docID, attrIdx, batch, skip, result) {
				touched[docIdx] = true
			}
			break
		}
	}

	for i := len(snap.DiskChunks) - 1; i >= 0; i-- {
		c := snap.DiskChunks[i]
		c.Lock()
		for docIdx, docID := range batch.DocIDs {
			if touched[docIdx] {
				continue
			}
			row, rowID, ok := c.FindAliveRow(docID)
			if !ok {
				continue
			}
			if applyToChunk(c, sch, row, rowID, docIdx, docID, attrIdx, batch, skip, result) {
				touched[docIdx] = true
			}
		}
		c.Unlock()
	}

	for _, ok := range touched {
		if ok {
			result.Affected++
		}
	}

	if log != nil {
		payload := EncodeBatch(batch)
		if err := log.Append(tid, txlog.RecordUpdate, payload); err != nil {
			result.Inconsistent = true
			return result, errors.NewIndexError(err, errors.ErrorCodeIndexInconsistent, "update: transaction log append failed").
				WithOperation("update_attributes").WithTID(tid).WithInconsistent(true)
		}
	}

	return result, nil
}

// dryRunJSON validates every AttrJSON value in batch up front
// (spec §4.8 step 3 "First pass in dry run mode validates the in-place
// JSON edit would succeed for every row"), returning the set of (doc,
// attribute) pairs that must be skipped during the apply pass.
func dryRunJSON(sch *schema.Schema, batch Batch, attrIdx []int, result *Result) map[skipKey]bool {
	skip := make(map[skipKey]bool)
	for ai, idx := range attrIdx {
		if idx < 0 || sch.Attributes[idx].Type != schema.AttrJSON {
			continue
		}
		for docIdx := range batch.DocIDs {
			v := batch.Values[docIdx][ai]
			if v.JSON == nil {
				continue
			}
			if _, err := hujson.Standardize(append([]byte(nil), v.JSON...)); err != nil {
				result.Warnings = append(result.Warnings, Warning{
					DocID: batch.DocIDs[docIdx], Attribute: batch.Attributes[ai], Err: err,
				})
				skip[skipKey{docIdx, ai}] = true
			}
		}
	}
	return skip
}

func applyToSegment(seg *segment.RamSegment, sch *schema.Schema, row []byte, rowID uint32, docIdx int, docID uint64, attrIdx []int, batch Batch, skip map[skipKey]bool, result *Result) bool {
	locked := seg.LockedByOp.Load() != 0
	applied := false
	for ai, idx := range attrIdx {
		if idx < 0 || skip[skipKey{docIdx, ai}] {
			continue
		}
		raw, blob, ok := cellFor(sch, idx, batch.Values[docIdx][ai])
		if !ok {
			continue
		}
		if locked {
			seg.QueuePostponedUpdate(segment.PostponedUpdate{RowID: rowID, AttrIndex: idx, RawValue: raw, BlobValue: blob})
		} else {
			seg.ApplyRowUpdate(rowID, idx, raw, blob)
		}
		applied = true
	}
	_ = row
	_ = docID
	return applied
}

func applyToChunk(c *diskchunk.DiskChunk, sch *schema.Schema, row []byte, rowID uint32, docIdx int, docID uint64, attrIdx []int, batch Batch, skip map[skipKey]bool, result *Result) bool {
	locked := c.LockedByOp.Load() != 0
	applied := false
	for ai, idx := range attrIdx {
		if idx < 0 || skip[skipKey{docIdx, ai}] {
			continue
		}
		raw, blob, ok := cellFor(sch, idx, batch.Values[docIdx][ai])
		if !ok {
			continue
		}
		if locked {
			c.QueuePostponedUpdate(segment.PostponedUpdate{RowID: rowID, AttrIndex: idx, RawValue: raw, BlobValue: blob})
		} else {
			c.ApplyRowUpdateLocked(rowID, idx, raw, blob)
		}
		applied = true
	}
	_ = row
	_ = docID
	return applied
}

// cellFor resolves a Value into the (raw, blob) pair ApplyRowUpdate
// expects, standardizing JSON payloads that already passed the dry run.
// ok is false when v carries nothing applicable to attrIdx's type.
func cellFor(sch *schema.Schema, attrIdx int, v Value) (raw, blob []byte, ok bool) {
	attr := sch.Attributes[attrIdx]
	switch {
	case attr.Type == schema.AttrJSON && v.JSON != nil:
		std, err := hujson.Standardize(append([]byte(nil), v.JSON...))
		if err != nil {
			return nil, nil, false
		}
		return nil, std, true
	case attr.Type.IsBlobRef() && v.Blob != nil:
		return nil, v.Blob, true
	case v.Raw != nil:
		return v.Raw, nil, true
	default:
		return nil, nil, false
	}
}
