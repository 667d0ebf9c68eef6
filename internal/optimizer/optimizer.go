// Package optimizer implements the Optimizer (spec §2 component 9, §4.7):
// the six chunk-maintenance verbs (drop, compress, merge, split,
// auto_optimize, classic_optimize) that reshape the disk-chunk half of
// the Hybrid Dataset outside the write path. Every verb reserves its
// input chunks with an op ticket and a shared kill-hook the same way the
// Segment Merger does for RAM segments (internal/merger), generalized to
// disk.DiskChunk via internal/diskchunk's exported copy/decode/remap
// helpers rather than duplicating that logic here.
package optimizer

import (
	"context"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/google/uuid"

	"github.com/ignitedb/ignite/internal/dataset"
	"github.com/ignitedb/ignite/internal/diskchunk"
	"github.com/ignitedb/ignite/internal/query"
	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/codec"
	"github.com/ignitedb/ignite/pkg/errors"
	"github.com/ignitedb/ignite/pkg/schema"
	"github.com/ignitedb/ignite/pkg/seginfo"
)

const chunksSubDir = "chunks"

// Config carries the fixed dictionary/codec parameters every optimizer
// verb's output chunk must be built with.
type Config struct {
	Mode            codec.DictMode
	CheckpointEvery uint32
	BloomPerEntry   uint8
	BloomHashes     uint8
}

func aborted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return errors.NewMergeError(ctx.Err(), errors.ErrorCodeMergeAborted, "optimizer stopped cooperatively")
}

func newChunkDir(dataDir string, id uint64) string {
	return filepath.Join(dataDir, chunksSubDir, seginfo.GenerateName(id, "chunk", "")+"-"+uuid.NewString()[:8])
}

// mergeChunks is the shared core of Compress, Merge, AutoOptimize, and
// ClassicOptimize: rewrite the alive rows of chunks into one new chunk,
// publish the dataset with the inputs replaced by the output (spec §4.7
// "Compress"/"Merge(A,B)"). Returns nil, nil if every input chunk was
// already empty.
func mergeChunks(ctx context.Context, ds *dataset.Dataset, sch *schema.Schema, cfg Config, dataDir string, chunks []*diskchunk.DiskChunk) (*diskchunk.DiskChunk, error) {
	if err := aborted(ctx); err != nil {
		return nil, err
	}

	ticket := ds.NextOpTicket()
	if !diskchunk.ReserveChunks(ticket, chunks) {
		return nil, errors.NewMergeError(nil, errors.ErrorCodeMergeSourceBusy, "chunk already reserved by another operation").
			WithTicket(ticket).WithStage("reserve")
	}
	for _, c := range chunks {
		c.SetOptimizing(true)
	}

	hook := segment.NewKillHook()
	for _, c := range chunks {
		c.InstallKillHook(hook)
	}
	defer func() {
		for _, c := range chunks {
			c.RemoveKillHook()
		}
		diskchunk.ReleaseChunks(chunks)
	}()

	rowMaps := make([][]uint32, len(chunks))
	var rows, blobs []byte
	for i, c := range chunks {
		rowMaps[i] = diskchunk.CopyAliveRowsFiltered(sch, c, nil, &rows, &blobs)
	}

	var all []segment.DecodedHit
	for i, c := range chunks {
		hits, err := diskchunk.DecodeHits(c)
		if err != nil {
			return nil, errors.NewMergeError(err, errors.ErrorCodeIO, "decode chunk postings").WithTicket(ticket).WithStage("decode")
		}
		all = append(all, diskchunk.RemapHits(hits, rowMaps[i])...)
	}
	segment.SortDecodedHits(cfg.Mode, all)
	postings := segment.EmitPostings(cfg.Mode, all, cfg.CheckpointEvery, cfg.BloomPerEntry, cfg.BloomHashes)

	stride := sch.RowStride()
	rowCount := uint32(len(rows) / stride)

	var out *diskchunk.DiskChunk
	if rowCount > 0 {
		chunkID := ds.NextChunkID()
		out = diskchunk.New(chunkID, newChunkDir(dataDir, chunkID), sch, rowCount, rows, blobs, postings)

		for _, docID := range hook.Drain() {
			out.Kill(docID)
		}
		for i, c := range chunks {
			diskchunk.ReplayPostponedFiltered(c.DrainPostponedUpdates(), rowMaps[i], out)
		}

		if err := out.Save(); err != nil {
			return nil, errors.NewMergeError(err, errors.ErrorCodeChunkWriteFailed, "write merged chunk").WithTicket(ticket).WithStage("write")
		}
		out.Warm()
		query.WarmCheckpoints(&out.Postings)
	}

	if err := publishChunkSwap(ctx, ds, chunks, out); err != nil {
		return nil, err
	}

	for _, c := range chunks {
		c.MarkDeleteOnDestroy()
		_ = c.Release()
	}

	return out, nil
}

// publishChunkSwap atomically replaces oldChunks with newChunk (nil
// newChunk means the inputs are simply dropped) via the serial executor.
func publishChunkSwap(ctx context.Context, ds *dataset.Dataset, oldChunks []*diskchunk.DiskChunk, newChunk *diskchunk.DiskChunk) error {
	old := make(map[*diskchunk.DiskChunk]struct{}, len(oldChunks))
	for _, c := range oldChunks {
		old[c] = struct{}{}
	}

	err := ds.Serial.Run(ctx, func() {
		snap := ds.Load()
		nextChunks := make([]*diskchunk.DiskChunk, 0, len(snap.DiskChunks))
		for _, c := range snap.DiskChunks {
			if _, gone := old[c]; gone {
				continue
			}
			nextChunks = append(nextChunks, c)
		}
		if newChunk != nil {
			nextChunks = append(nextChunks, newChunk)
		}
		ds.Publish(&dataset.Snapshot{DiskChunks: nextChunks, RamSegments: snap.RamSegments})
	})
	if err != nil {
		return errors.NewMergeError(err, errors.ErrorCodeInternal, "publish optimizer output").WithStage("publish")
	}
	return nil
}

// Drop removes a chunk from the dataset (spec §4.7 "Drop"). Unless force
// is set, it refuses to drop a chunk that still has alive rows.
func Drop(ctx context.Context, ds *dataset.Dataset, c *diskchunk.DiskChunk, force bool) error {
	if !force && c.AliveRows() != 0 {
		return errors.NewValidationError(nil, errors.ErrorCodeInvalidInput, "cannot drop a chunk with alive rows without force")
	}

	ticket := ds.NextOpTicket()
	if !diskchunk.ReserveChunks(ticket, []*diskchunk.DiskChunk{c}) {
		return errors.NewMergeError(nil, errors.ErrorCodeMergeSourceBusy, "chunk already reserved by another operation").WithTicket(ticket).WithStage("reserve")
	}
	defer diskchunk.ReleaseChunks([]*diskchunk.DiskChunk{c})

	if err := publishChunkSwap(ctx, ds, []*diskchunk.DiskChunk{c}, nil); err != nil {
		return err
	}

	c.MarkDeleteOnDestroy()
	return c.Release()
}

// Compress rewrites a chunk through the merge pipeline with itself as
// the only input, purging dead rows and compacting blobs (spec §4.7
// "Compress").
func Compress(ctx context.Context, ds *dataset.Dataset, sch *schema.Schema, cfg Config, dataDir string, c *diskchunk.DiskChunk) (*diskchunk.DiskChunk, error) {
	return mergeChunks(ctx, ds, sch, cfg, dataDir, []*diskchunk.DiskChunk{c})
}

// Merge rewrites two chunks into one, with a as the older input so
// kill-lists are honored in order (spec §4.7 "Merge(A,B)").
func Merge(ctx context.Context, ds *dataset.Dataset, sch *schema.Schema, cfg Config, dataDir string, a, b *diskchunk.DiskChunk) (*diskchunk.DiskChunk, error) {
	return mergeChunks(ctx, ds, sch, cfg, dataDir, []*diskchunk.DiskChunk{a, b})
}

// Split partitions a's alive rows into two new chunks using filter: rows
// for which filter returns false go to excluded, rows for which it
// returns true go to included (spec §4.7 "Split(A, filter)"). a is
// reserved and kill-hooked exactly once for the whole operation, unlike a
// literal two-pass "merge-with-filter twice against A" implementation,
// so a single concurrent kill during the split is captured once and
// replayed onto whichever output still holds that row.
func Split(ctx context.Context, ds *dataset.Dataset, sch *schema.Schema, cfg Config, dataDir string, a *diskchunk.DiskChunk, filter diskchunk.RowFilter) (excluded, included *diskchunk.DiskChunk, err error) {
	if err := aborted(ctx); err != nil {
		return nil, nil, err
	}

	ticket := ds.NextOpTicket()
	if !diskchunk.ReserveChunks(ticket, []*diskchunk.DiskChunk{a}) {
		return nil, nil, errors.NewMergeError(nil, errors.ErrorCodeMergeSourceBusy, "chunk already reserved by another operation").
			WithTicket(ticket).WithStage("reserve")
	}
	a.SetOptimizing(true)

	hook := segment.NewKillHook()
	a.InstallKillHook(hook)
	defer func() {
		a.RemoveKillHook()
		diskchunk.ReleaseChunks([]*diskchunk.DiskChunk{a})
	}()

	notFilter := func(docID uint64, row []byte) bool { return !filter(docID, row) }

	var excludedRows, excludedBlobs []byte
	excludedMap := diskchunk.CopyAliveRowsFiltered(sch, a, notFilter, &excludedRows, &excludedBlobs)

	var includedRows, includedBlobs []byte
	includedMap := diskchunk.CopyAliveRowsFiltered(sch, a, filter, &includedRows, &includedBlobs)

	hits, err := diskchunk.DecodeHits(a)
	if err != nil {
		return nil, nil, errors.NewMergeError(err, errors.ErrorCodeIO, "decode chunk postings").WithTicket(ticket).WithStage("decode")
	}

	excludedHits := diskchunk.RemapHits(hits, excludedMap)
	includedHits := diskchunk.RemapHits(hits, includedMap)
	segment.SortDecodedHits(cfg.Mode, excludedHits)
	segment.SortDecodedHits(cfg.Mode, includedHits)

	stride := sch.RowStride()
	updates := a.DrainPostponedUpdates()
	killed := hook.Drain()

	if n := uint32(len(excludedRows) / stride); n > 0 {
		postings := segment.EmitPostings(cfg.Mode, excludedHits, cfg.CheckpointEvery, cfg.BloomPerEntry, cfg.BloomHashes)
		id := ds.NextChunkID()
		excluded = diskchunk.New(id, newChunkDir(dataDir, id), sch, n, excludedRows, excludedBlobs, postings)
		for _, docID := range killed {
			excluded.Kill(docID)
		}
		diskchunk.ReplayPostponedFiltered(updates, excludedMap, excluded)
		if err := excluded.Save(); err != nil {
			return nil, nil, errors.NewMergeError(err, errors.ErrorCodeChunkWriteFailed, "write excluded split chunk").WithTicket(ticket).WithStage("write")
		}
		excluded.Warm()
		query.WarmCheckpoints(&excluded.Postings)
	}

	if n := uint32(len(includedRows) / stride); n > 0 {
		postings := segment.EmitPostings(cfg.Mode, includedHits, cfg.CheckpointEvery, cfg.BloomPerEntry, cfg.BloomHashes)
		id := ds.NextChunkID()
		included = diskchunk.New(id, newChunkDir(dataDir, id), sch, n, includedRows, includedBlobs, postings)
		for _, docID := range killed {
			included.Kill(docID)
		}
		diskchunk.ReplayPostponedFiltered(updates, includedMap, included)
		if err := included.Save(); err != nil {
			return nil, nil, errors.NewMergeError(err, errors.ErrorCodeChunkWriteFailed, "write included split chunk").WithTicket(ticket).WithStage("write")
		}
		included.Warm()
		query.WarmCheckpoints(&included.Postings)
	}

	if err := publishSplit(ctx, ds, a, excluded, included); err != nil {
		return nil, nil, err
	}

	a.MarkDeleteOnDestroy()
	_ = a.Release()

	return excluded, included, nil
}

func publishSplit(ctx context.Context, ds *dataset.Dataset, a, excluded, included *diskchunk.DiskChunk) error {
	err := ds.Serial.Run(ctx, func() {
		snap := ds.Load()
		nextChunks := make([]*diskchunk.DiskChunk, 0, len(snap.DiskChunks)+1)
		for _, c := range snap.DiskChunks {
			if c == a {
				continue
			}
			nextChunks = append(nextChunks, c)
		}
		if excluded != nil {
			nextChunks = append(nextChunks, excluded)
		}
		if included != nil {
			nextChunks = append(nextChunks, included)
		}
		ds.Publish(&dataset.Snapshot{DiskChunks: nextChunks, RamSegments: snap.RamSegments})
	})
	if err != nil {
		return errors.NewMergeError(err, errors.ErrorCodeInternal, "publish split output").WithStage("publish")
	}
	return nil
}

// unlockedChunks returns every chunk from chunks not currently reserved
// by another op ticket.
func unlockedChunks(chunks []*diskchunk.DiskChunk) []*diskchunk.DiskChunk {
	out := make([]*diskchunk.DiskChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.LockedByOp.Load() == 0 {
			out = append(out, c)
		}
	}
	return out
}

// AutoOptimize repeatedly merges the two smallest unlocked chunks by row
// count while live_chunks - currently_optimizing exceeds cutoff, then
// compresses every remaining chunk once (spec §4.7 "Auto-optimize").
// cutoff <= 0 resolves to 2 × runtime.NumCPU(), the spec's default.
func AutoOptimize(ctx context.Context, ds *dataset.Dataset, sch *schema.Schema, cfg Config, dataDir string, cutoff int) error {
	if cutoff <= 0 {
		cutoff = 2 * runtime.NumCPU()
	}

	for {
		if err := aborted(ctx); err != nil {
			return err
		}

		snap := ds.Load()
		optimizing := 0
		for _, c := range snap.DiskChunks {
			if c.Optimizing() {
				optimizing++
			}
		}
		if len(snap.DiskChunks)-optimizing <= cutoff {
			break
		}

		candidates := unlockedChunks(snap.DiskChunks)
		if len(candidates) < 2 {
			break
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].RowCount() < candidates[j].RowCount() })

		if _, err := mergeChunks(ctx, ds, sch, cfg, dataDir, candidates[:2]); err != nil {
			return err
		}
	}

	snap := ds.Load()
	for _, c := range snap.DiskChunks {
		if err := aborted(ctx); err != nil {
			return err
		}
		if c.LockedByOp.Load() != 0 {
			continue
		}
		if _, err := Compress(ctx, ds, sch, cfg, dataDir, c); err != nil {
			return err
		}
	}
	return nil
}

// ClassicOptimize merges the first two chunks (by dataset order, oldest
// first) repeatedly until at most one remains (spec §4.7 "Classic").
func ClassicOptimize(ctx context.Context, ds *dataset.Dataset, sch *schema.Schema, cfg Config, dataDir string) error {
	for {
		if err := aborted(ctx); err != nil {
			return err
		}
		snap := ds.Load()
		if len(snap.DiskChunks) <= 1 {
			return nil
		}
		if _, err := mergeChunks(ctx, ds, sch, cfg, dataDir, snap.DiskChunks[:2]); err != nil {
			return err
		}
	}
}
