package merger

import (
	"context"

	"github.com/ignitedb/ignite/internal/dataset"
	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/codec"
	"github.com/ignitedb/ignite/pkg/errors"
	"github.com/ignitedb/ignite/pkg/schema"
)

// Config carries the fixed dictionary/codec parameters a merge output's
// Posting must be built with, matching whatever the index was configured
// with (spec §4.10 "checkpoint_interval", "bloom_per_entry", "bloom_hashes").
type Config struct {
	Mode            codec.DictMode
	CheckpointEvery uint32
	BloomPerEntry   uint8
	BloomHashes     uint8
}

// reserve stamps both segments with ticket, rolling back A's reservation
// if B is already claimed by another operation (spec §3 invariant 6).
func reserve(ticket uint64, a, b *segment.RamSegment) error {
	if !a.LockedByOp.CompareAndSwap(0, ticket) {
		return errors.NewMergeError(nil, errors.ErrorCodeMergeSourceBusy, "segment already reserved by another operation").
			WithTicket(ticket).WithStage("reserve")
	}
	if !b.LockedByOp.CompareAndSwap(0, ticket) {
		a.LockedByOp.Store(0)
		return errors.NewMergeError(nil, errors.ErrorCodeMergeSourceBusy, "segment already reserved by another operation").
			WithTicket(ticket).WithStage("reserve")
	}
	return nil
}

// copyAliveRows copies every row of src that is not marked dead into out,
// deep-copying blob payloads through a fresh blob pool, and returns a map
// from src's old rowid to its new rowid (segment.InvalidRowID for rows
// that were dead at copy time) (spec §4.5 merge step 2).
func copyAliveRows(sch *schema.Schema, src *segment.RamSegment, outRows *[]byte, outBlobs *[]byte) []uint32 {
	stride := sch.RowStride()
	rowMap := make([]uint32, src.RowCount())
	offsets := sch.Offsets()

	for rowID := uint32(0); rowID < src.RowCount(); rowID++ {
		if src.Deadmap().IsDead(rowID) {
			rowMap[rowID] = segment.InvalidRowID
			continue
		}

		row := append([]byte(nil), src.RowBytes(rowID)...)
		for i, a := range sch.Attributes {
			if !a.Type.IsBlobRef() {
				continue
			}
			off := offsets[i]
			ref := schema.GetBlobRef(row, off)
			payload := src.BlobAt(ref)
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

// remapHits decodes src's postings and rewrites each hit's rowid through
// rowMap, dropping hits whose row was dead at copy time.
func remapHits(src *segment.RamSegment, rowMap []uint32) ([]segment.DecodedHit, error) {
	decoded, err := segment.DecodePostings(&src.Postings)
	if err != nil {
		return nil, err
	}

	out := make([]segment.DecodedHit, 0, len(decoded))
	for _, h := range decoded {
		newRow := rowMap[h.RowID]
		if newRow == segment.InvalidRowID {
			continue
		}
		h.RowID = newRow
		out = append(out, h)
	}
	return out, nil
}

// replayPostponed applies every postponed update queued on src (remapped
// through rowMap) onto the merge output (spec §4.5 step 5, §4.8 step 4).
func replayPostponed(src *segment.RamSegment, rowMap []uint32, out *segment.RamSegment) {
	for _, u := range src.DrainPostponedUpdates() {
		if int(u.RowID) >= len(rowMap) {
			continue
		}
		newRow := rowMap[u.RowID]
		if newRow == segment.InvalidRowID {
			continue
		}
		out.ApplyRowUpdate(newRow, u.AttrIndex, u.RawValue, u.BlobValue)
	}
}

// MergeTwoSegments runs the full merge procedure of spec §4.5 against
// segments a and b (a is treated as the older, chronologically-first
// input) and publishes the result via ds's serial executor. It returns the
// new segment, or nil if the merge produced zero alive rows (in which case
// nothing is published as a RAM segment — spec §8 boundary "aliveRowsCount
// == 0 after merge: output segment/chunk dropped").
//
// Callers are expected to invoke this from ds.Merger (the merge
// scheduler); the heavy decode/copy/re-emit work below runs synchronously
// on the calling goroutine, and only the final publish step hops onto
// ds.Serial.
func MergeTwoSegments(ctx context.Context, ds *dataset.Dataset, sch *schema.Schema, cfg Config, a, b *segment.RamSegment) (*segment.RamSegment, error) {
	ticket := ds.NextOpTicket()
	if err := reserve(ticket, a, b); err != nil {
		return nil, err
	}

	hook := segment.NewKillHook()
	a.InstallKillHook(hook)
	b.InstallKillHook(hook)
	defer func() {
		a.RemoveKillHook()
		b.RemoveKillHook()
	}()

	var rows, blobs []byte
	rowMapA := copyAliveRows(sch, a, &rows, &blobs)
	rowMapB := copyAliveRows(sch, b, &rows, &blobs)

	hitsA, err := remapHits(a, rowMapA)
	if err != nil {
		return nil, errors.NewMergeError(err, errors.ErrorCodeIO, "decode segment A postings").WithTicket(ticket).WithStage("decode_a")
	}
	hitsB, err := remapHits(b, rowMapB)
	if err != nil {
		return nil, errors.NewMergeError(err, errors.ErrorCodeIO, "decode segment B postings").WithTicket(ticket).WithStage("decode_b")
	}

	all := append(hitsA, hitsB...)
	segment.SortDecodedHits(cfg.Mode, all)
	postings := segment.EmitPostings(cfg.Mode, all, cfg.CheckpointEvery, cfg.BloomPerEntry, cfg.BloomHashes)

	stride := sch.RowStride()
	newRowCount := uint32(len(rows) / stride)

	var out *segment.RamSegment
	if newRowCount > 0 {
		out = segment.New(sch, newRowCount, rows, blobs, postings)

		for _, docID := range hook.Drain() {
			out.Kill(docID)
		}
		replayPostponed(a, rowMapA, out)
		replayPostponed(b, rowMapB, out)
	}

	if err := ds.Serial.Run(ctx, func() {
		snap := ds.Load()
		nextRam := make([]*segment.RamSegment, 0, len(snap.RamSegments))
		for _, s := range snap.RamSegments {
			if s == a || s == b {
				continue
			}
			nextRam = append(nextRam, s)
		}
		if out != nil {
			// Drained inside the serial publish step, so no kill issued
			// through the serial executor can reach a or b unreplayed.
			for _, docID := range hook.Drain() {
				out.Kill(docID)
			}
			nextRam = append(nextRam, out)
		}
		ds.Publish(&dataset.Snapshot{DiskChunks: snap.DiskChunks, RamSegments: nextRam})
	}); err != nil {
		return nil, errors.NewMergeError(err, errors.ErrorCodeInternal, "publish merge output").WithTicket(ticket).WithStage("publish")
	}

	return out, nil
}
