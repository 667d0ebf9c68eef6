// Package engine provides the core search-index engine implementation for
// the ignite real-time full-text engine.
//
// The engine serves as the central coordinator and entry point for every
// index operation. It orchestrates the main subsystems:
//   - Dataset: the atomically swappable (disk chunks, RAM segments) pair
//   - Accumulator: per-writer transaction buffers that produce RAM segments
//   - Merger/ChunkSaver/Optimizer: background maintenance of that dataset
//   - Update: in-place attribute edits against live rows
//   - Query: boolean query execution and ranking
//   - Meta/TxLog: durable header, RAM snapshot, and replayable transaction
//     log tying a restart back to a consistent dataset
//
// The engine implements a thread-safe interface with proper lifecycle
// management, ensuring resources are properly initialized and cleaned up.
// It uses atomic operations for state management to provide consistent
// behavior across concurrent operations.
package engine

import (
	stdErrors "errors"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ignitedb/ignite/internal/accumulator"
	"github.com/ignitedb/ignite/internal/chunksaver"
	"github.com/ignitedb/ignite/internal/dataset"
	"github.com/ignitedb/ignite/internal/diskchunk"
	"github.com/ignitedb/ignite/internal/merger"
	"github.com/ignitedb/ignite/internal/meta"
	"github.com/ignitedb/ignite/internal/optimizer"
	"github.com/ignitedb/ignite/internal/query"
	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/internal/txlog"
	"github.com/ignitedb/ignite/internal/update"
	"github.com/ignitedb/ignite/pkg/collab"
	"github.com/ignitedb/ignite/pkg/errors"
	"github.com/ignitedb/ignite/pkg/filesys"
	"github.com/ignitedb/ignite/pkg/options"
	"github.com/ignitedb/ignite/pkg/schema"
	"github.com/ignitedb/ignite/pkg/seginfo"
)

// ErrEngineClosed is returned when attempting to perform operations on a closed engine.
var ErrEngineClosed = stdErrors.New("operation failed: cannot access closed engine")

const chunksSubDir = "chunks"

// Collaborators bundles the external tokenizer/dictionary/field-filter
// implementations an index is opened with. The core never implements
// these itself.
type Collaborators struct {
	Tokenizer   collab.Tokenizer
	Dictionary  collab.Dictionary
	FieldFilter collab.FieldFilter // optional
}

// Config holds all the parameters needed to initialize a new Engine instance.
type Config struct {
	Options       *options.Options
	Logger        *zap.SugaredLogger
	Schema        *schema.Schema // required when opening a brand new data dir
	Collaborators Collaborators
}

// Engine coordinates every subsystem of one index instance. It is the
// primary interface for index operations and manages the lifecycle of each
// internal component: thread-safe readers, serialized writers, and a
// single background maintenance sweep at a time.
type Engine struct {
	options *options.Options
	log     *zap.SugaredLogger
	closed  atomic.Bool

	identity string // uuid binding writers to this engine instance

	schemaMu sync.RWMutex
	schema   *schema.Schema

	tok    collab.Tokenizer
	dict   collab.Dictionary
	filter collab.FieldFilter

	dataset *dataset.Dataset
	txlog   *txlog.TxLog
	lock    *meta.Lock

	committedTID    atomic.Uint64
	saveInProgress  atomic.Bool
	inconsistent    atomic.Bool
	maintainPending atomic.Bool

	chunkCfg chunksaver.Config
	mergeCfg merger.Config
	optimCfg optimizer.Config

	executor *query.Executor
}

// New opens (or recovers) an Engine against config.Options.DataDir,
// replaying any transaction-log records past the last saved `.meta`
// header's committed TID.
func New(ctx context.Context, config *Config) (*Engine, error) {
	if config == nil || config.Options == nil || config.Logger == nil {
		return nil, fmt.Errorf("engine: invalid configuration")
	}
	if config.Collaborators.Tokenizer == nil || config.Collaborators.Dictionary == nil {
		return nil, fmt.Errorf("engine: tokenizer and dictionary collaborators are required")
	}

	dataDir := config.Options.DataDir

	lock, err := meta.AcquireLock(dataDir)
	if err != nil {
		return nil, err
	}

	sch := config.Schema
	committedTID := uint64(0)
	var initialChunks []*diskchunk.DiskChunk
	var initialRAM []*segment.RamSegment

	header, ok, err := meta.LoadHeader(dataDir)
	if err != nil {
		lock.Release()
		return nil, err
	}
	if ok {
		sch = header.Schema
		meta.ApplyIndexSettings(config.Options, header.IndexSettings)
		committedTID = header.CommittedTID

		for _, id := range header.ChunkIDs {
			dir, derr := findChunkDir(dataDir, id)
			if derr != nil {
				lock.Release()
				return nil, errors.NewIndexError(derr, errors.ErrorCodeIndexRecoveryFailed, "engine: locate chunk directory").
					WithOperation("open").WithDetail("chunkID", id)
			}
			chunk, cerr := diskchunk.Load(id, dir, sch)
			if cerr != nil {
				lock.Release()
				return nil, errors.NewIndexError(cerr, errors.ErrorCodeIndexRecoveryFailed, "engine: load chunk").
					WithOperation("open").WithDetail("chunkID", id)
			}
			chunk.Warm()
			query.WarmCheckpoints(&chunk.Postings)
			initialChunks = append(initialChunks, chunk)
		}

		segs, ramOK, rerr := meta.LoadRAMSnapshot(dataDir, sch)
		if rerr != nil {
			lock.Release()
			return nil, rerr
		}
		if ramOK {
			initialRAM = segs
		}
	}
	if sch == nil {
		lock.Release()
		return nil, fmt.Errorf("engine: no schema on disk and none provided to open a fresh index")
	}

	tl, err := txlog.New(ctx, &txlog.Config{DataDir: dataDir, Logger: config.Logger})
	if err != nil {
		lock.Release()
		return nil, err
	}

	ds := dataset.New()
	for _, c := range initialChunks {
		ds.SeedChunkID(c.ID)
	}
	ds.Publish(&dataset.Snapshot{DiskChunks: initialChunks, RamSegments: initialRAM})

	replaySchema := sch
	replayErr := txlog.Replay(dataDir, &txlog.Config{DataDir: dataDir}, committedTID, func(tid uint64, kind txlog.RecordKind, payload []byte) error {
		switch kind {
		case txlog.RecordCommit:
			cp, derr := meta.DecodeCommit(replaySchema, payload)
			if derr != nil {
				return derr
			}
			snap := ds.Load()
			snap.KillMultiEverywhere(cp.KillList)
			nextRAM := append([]*segment.RamSegment(nil), snap.RamSegments...)
			if cp.Segment != nil {
				nextRAM = append(nextRAM, cp.Segment)
			}
			ds.Publish(&dataset.Snapshot{DiskChunks: snap.DiskChunks, RamSegments: nextRAM})
		case txlog.RecordReconfigure:
			rp, derr := meta.DecodeReconfigure(payload)
			if derr != nil {
				return derr
			}
			meta.ApplyIndexSettings(config.Options, rp.IndexSettings)
		case txlog.RecordUpdate:
			batch, derr := update.DecodeBatch(payload)
			if derr != nil {
				return derr
			}
			if _, uerr := update.Apply(ctx, ds, replaySchema, nil, tid, batch); uerr != nil {
				return uerr
			}
		}
		committedTID = tid
		return nil
	})
	if replayErr != nil {
		tl.Close()
		lock.Release()
		return nil, errors.NewIndexError(replayErr, errors.ErrorCodeIndexRecoveryFailed, "engine: transaction log replay failed").
			WithOperation("open")
	}

	dictMode := config.Collaborators.Dictionary.Mode()
	chunkCfg := chunksaver.Config{
		Mode:            dictMode,
		CheckpointEvery: config.Options.DictionaryOptions.CheckpointInterval,
		BloomPerEntry:   config.Options.DictionaryOptions.BloomPerEntry,
		BloomHashes:     config.Options.DictionaryOptions.BloomHashes,
	}
	mergeCfg := merger.Config{
		Mode:            dictMode,
		CheckpointEvery: config.Options.DictionaryOptions.CheckpointInterval,
		BloomPerEntry:   config.Options.DictionaryOptions.BloomPerEntry,
		BloomHashes:     config.Options.DictionaryOptions.BloomHashes,
	}
	optimCfg := optimizer.Config{
		Mode:            dictMode,
		CheckpointEvery: config.Options.DictionaryOptions.CheckpointInterval,
		BloomPerEntry:   config.Options.DictionaryOptions.BloomPerEntry,
		BloomHashes:     config.Options.DictionaryOptions.BloomHashes,
	}

	e := &Engine{
		options:  config.Options,
		log:      config.Logger,
		identity: uuid.NewString(),
		schema:   sch,
		tok:      config.Collaborators.Tokenizer,
		dict:     config.Collaborators.Dictionary,
		filter:   config.Collaborators.FieldFilter,
		dataset:  ds,
		txlog:    tl,
		lock:     lock,
		chunkCfg: chunkCfg,
		mergeCfg: mergeCfg,
		optimCfg: optimCfg,
	}
	e.committedTID.Store(committedTID)
	e.executor = &query.Executor{
		Schema:      sch,
		Dict:        config.Collaborators.Dictionary,
		BloomHashes: config.Options.DictionaryOptions.BloomHashes,
		PoolSize:    config.Options.QueryOptions.PoolSize,
	}

	if err := e.saveHeader(); err != nil {
		tl.Close()
		lock.Release()
		return nil, err
	}

	config.Logger.Infow("engine opened", "dataDir", dataDir, "committedTID", committedTID,
		"chunks", len(initialChunks), "ramSegments", len(initialRAM))
	return e, nil
}

// findChunkDir locates the on-disk directory a previously saved chunk id
// lives under (chunk directories carry a random suffix past the id, so the
// id alone doesn't determine the path — see internal/chunksaver.SaveChunk).
func findChunkDir(dataDir string, id uint64) (string, error) {
	paths, err := filesys.ReadDir(filepath.Join(dataDir, chunksSubDir, "chunk*"))
	if err != nil {
		return "", err
	}
	for _, p := range paths {
		got, perr := seginfo.ParseSegmentID(p, "chunk")
		if perr != nil {
			continue
		}
		if got == id {
			return p, nil
		}
	}
	return "", fmt.Errorf("chunk id %d not found under %s", id, filepath.Join(dataDir, chunksSubDir))
}

// Close gracefully shuts down the engine, stopping its schedulers and
// releasing the transaction log and the exclusive directory lock.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	e.dataset.Serial.Stop()
	e.dataset.Merger.Stop()

	err := e.txlog.Close()
	if rerr := e.lock.Release(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	return nil
}

func (e *Engine) schemaSnapshot() *schema.Schema {
	e.schemaMu.RLock()
	defer e.schemaMu.RUnlock()
	return e.schema
}

// saveHeader rewrites the `.meta` header from the engine's current live
// state. The header is always rewritten wholesale rather than updated
// incrementally.
func (e *Engine) saveHeader() error {
	snap := e.dataset.Load()
	sch := e.schemaSnapshot()

	chunkIDs := make([]uint64, len(snap.DiskChunks))
	for i, c := range snap.DiskChunks {
		chunkIDs[i] = c.ID
	}

	h := &meta.Header{
		TotalDocuments:     uint32(snap.TotalDocuments()),
		CommittedTID:       e.committedTID.Load(),
		FormatVersion:      1,
		Schema:             sch,
		IndexSettings:      meta.IndexSettingsFromOptions(e.options),
		TokenizerHash:      e.tok.SettingsHash(),
		DictionaryHash:     e.dict.SettingsHash(),
		CheckpointInterval: e.options.DictionaryOptions.CheckpointInterval,
		MaxCodepointLen:    e.options.DictionaryOptions.MaxCodepointLen,
		BloomPerEntry:      e.options.DictionaryOptions.BloomPerEntry,
		BloomHashes:        e.options.DictionaryOptions.BloomHashes,
		ChunkIDs:           chunkIDs,
		SoftRAMLimit:       e.options.RAMOptions.SoftLimit,
	}
	if e.filter != nil {
		h.FieldFilterHash = e.filter.SettingsHash()
	}
	return meta.SaveHeader(e.options.DataDir, h)
}

// ---- Writer: per-transaction document buffer -----------------------------

// Document is one add_document call's input: a typed attribute set plus
// the raw text of every tokenized field this schema defines
// Tokenization happens in the Writer since it needs the FieldFilter/
// Tokenizer collaborators the Accumulator itself doesn't hold.
type Document struct {
	DocID   uint64
	Attrs   map[string]any
	Fields  map[string]string
	Replace bool
}

// Writer is a per-caller transaction buffer bound to one Engine, wrapping
// an Accumulator plus its own cloned Tokenizer/FieldFilter so concurrent
// writers never share tokenizer state.
type Writer struct {
	eng    *Engine
	acc    *accumulator.Accumulator
	tok    collab.Tokenizer
	filter collab.FieldFilter
}

// NewWriter opens a fresh transaction buffer bound to the engine's current
// schema and collaborators.
func (e *Engine) NewWriter() *Writer {
	sch := e.schemaSnapshot()
	cfg := accumulator.Config{
		Schema:          sch,
		Dict:            e.dict,
		IndexIdentity:   e.identity,
		CheckpointEvery: e.options.DictionaryOptions.CheckpointInterval,
		BloomPerEntry:   e.options.DictionaryOptions.BloomPerEntry,
		BloomHashes:     e.options.DictionaryOptions.BloomHashes,
	}

	w := &Writer{eng: e, acc: accumulator.New(cfg), tok: e.tok.Clone(int(e.dict.Mode()))}
	if e.filter != nil {
		w.filter = e.filter.Clone()
	}
	return w
}

// AddDocument buffers one document, building its fixed-width row from
// doc.Attrs and tokenizing doc.Fields through the writer's own
// tokenizer/field-filter collaborators.
func (w *Writer) AddDocument(doc Document) error {
	if err := w.acc.CheckIndexIdentity(w.eng.identity); err != nil {
		return err
	}

	sch := w.eng.schemaSnapshot()
	row, err := buildRow(sch, doc.DocID, doc.Attrs, w.acc.AppendBlob)
	if err != nil {
		return err
	}

	hits, err := w.tokenizeFields(sch, doc.Fields)
	if err != nil {
		return err
	}

	w.acc.AddDocument(doc.DocID, row, doc.Replace, hits...)
	return nil
}

// DeleteDocument queues ids for deletion on the eventual Commit.
func (w *Writer) DeleteDocument(ids ...uint64) {
	w.acc.DeleteDocument(ids...)
}

// Empty reports whether this writer has no buffered work.
func (w *Writer) Empty() bool { return w.acc.Empty() }

// Rollback discards the transaction buffer without committing it
// There is nothing to undo against the dataset since
// nothing buffered here was ever published; this simply drops the buffer.
func (w *Writer) Rollback() {
	w.acc = nil
}

func (w *Writer) tokenizeFields(sch *schema.Schema, fields map[string]string) ([]accumulator.HitInput, error) {
	var out []accumulator.HitInput
	for fieldIdx, f := range sch.Fields {
		text, ok := fields[f.Name]
		if !ok || text == "" {
			continue
		}
		raw := []byte(text)
		if w.filter != nil {
			raw = w.filter.Apply(raw, false)
		}
		fieldHits, err := w.tok.Tokenize(fieldIdx, raw)
		if err != nil {
			return nil, err
		}
		for _, h := range fieldHits {
			if w.eng.dict.IsStopword(h.Keyword) {
				continue
			}
			wordID, _ := w.eng.dict.WordID(h.Keyword)
			out = append(out, accumulator.NewHit(wordID, h.Keyword, h.Position))
		}
	}
	return out, nil
}

// Commit runs a writer's buffered transaction through the full commit
// pipeline: produce the immutable RAM segment, kill
// superseded rows everywhere else in the dataset, publish the new snapshot
// under the serial executor, append a durable COMMIT record, and rewrite
// the `.meta` header. A successful commit also kicks off one background
// maintenance check that decides whether to merge two small RAM segments
// or save the whole RAM layer.
func (e *Engine) Commit(ctx context.Context, w *Writer) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if w.acc == nil {
		return fmt.Errorf("engine: writer already committed or rolled back")
	}

	sch := e.schemaSnapshot()
	seg, err := w.acc.Commit(sch)
	if err != nil {
		return err
	}
	killList := w.acc.KillList()
	w.acc = nil

	if seg == nil && len(killList) == 0 {
		return nil
	}

	tid := e.committedTID.Add(1)
	payload, err := meta.EncodeCommit(sch, meta.CommitPayload{Segment: seg, KillList: killList})
	if err != nil {
		return err
	}

	publishErr := e.dataset.Serial.Run(ctx, func() {
		snap := e.dataset.Load()
		snap.KillMultiEverywhere(killList)
		nextRAM := append([]*segment.RamSegment(nil), snap.RamSegments...)
		if seg != nil {
			nextRAM = append(nextRAM, seg)
		}
		e.dataset.Publish(&dataset.Snapshot{DiskChunks: snap.DiskChunks, RamSegments: nextRAM})
	})
	if publishErr != nil {
		return errors.NewIndexError(publishErr, errors.ErrorCodeIndexInconsistent, "engine: publish commit failed").
			WithOperation("commit").WithTID(tid)
	}

	if err := e.txlog.Append(tid, txlog.RecordCommit, payload); err != nil {
		e.inconsistent.Store(true)
		return errors.NewInconsistentError(err, "commit", tid)
	}

	if err := e.saveHeader(); err != nil {
		return err
	}

	e.triggerMaintenance(ctx)
	return nil
}

// ---- Updates ---------------------------------------------------------------

// UpdateAttributes applies an attribute-update batch against the current
// dataset, recording it in the transaction log for replay.
func (e *Engine) UpdateAttributes(ctx context.Context, batch update.Batch) (*update.Result, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	tid := e.committedTID.Add(1)
	res, err := update.Apply(ctx, e.dataset, e.schemaSnapshot(), e.txlog, tid, batch)
	if err != nil {
		return res, err
	}
	if res.Inconsistent {
		e.inconsistent.Store(true)
		return res, nil
	}
	return res, e.saveHeader()
}

// ---- Query -----------------------------------------------------------------

// MultiQuery runs a pre-resolved query tree against the dataset's current
// snapshot. Query parsing itself is out of scope for this core: callers
// arrive with ResolvedTerm word ids already looked up through the
// Dictionary collaborator.
func (e *Engine) MultiQuery(ctx context.Context, q *query.Query) (*query.Result, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if q.MaxQueryTime == 0 && e.options.QueryOptions.DefaultQueryTimeMS > 0 {
		q.MaxQueryTime = time.Duration(e.options.QueryOptions.DefaultQueryTimeMS) * time.Millisecond
	}
	return e.executor.Execute(ctx, e.dataset, q)
}

// GetKeywords previews how text would tokenize and expand against the
// live dataset.
func (e *Engine) GetKeywords(fieldIdx int, text string) ([]query.KeywordStat, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return query.GetKeywords(e.dataset, e.tok, e.dict, fieldIdx, text)
}

// ---- Forced maintenance -----------------------------------------------------

// ForceRAMFlush durably checkpoints the current RAM layer to the `.ram`
// file without promoting it to a disk chunk.
func (e *Engine) ForceRAMFlush(ctx context.Context) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	snap := e.dataset.Load()
	if err := meta.SaveRAMSnapshot(e.options.DataDir, snap.RamSegments, true); err != nil {
		return err
	}
	return e.saveHeader()
}

// ForceDiskChunk promotes the whole RAM layer into a new disk chunk
// regardless of the merge policy's FLUSH threshold.
func (e *Engine) ForceDiskChunk(ctx context.Context) (*diskchunk.DiskChunk, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if !e.saveInProgress.CompareAndSwap(false, true) {
		return nil, errors.NewSaveDisabledError("a chunk save is already in progress")
	}
	defer e.saveInProgress.Store(false)

	chunk, err := chunksaver.SaveChunk(ctx, e.dataset, e.schemaSnapshot(), e.chunkCfg, e.options.DataDir, true)
	if err != nil {
		return nil, err
	}
	if chunk == nil {
		return nil, nil
	}
	if err := meta.DeleteRAMSnapshot(e.options.DataDir); err != nil {
		return chunk, err
	}
	return chunk, e.saveHeader()
}

// Truncate drops every disk chunk and RAM segment, resetting the dataset
// to empty.
func (e *Engine) Truncate(ctx context.Context) error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	err := e.dataset.Serial.Run(ctx, func() {
		snap := e.dataset.Load()
		for _, c := range snap.DiskChunks {
			c.MarkDeleteOnDestroy()
			c.Release()
		}
		e.dataset.Publish(&dataset.Snapshot{})
	})
	if err != nil {
		return errors.NewIndexError(err, errors.ErrorCodeIndexInconsistent, "engine: truncate failed").WithOperation("truncate")
	}

	if err := meta.DeleteRAMSnapshot(e.options.DataDir); err != nil {
		return err
	}
	return e.saveHeader()
}

// AttachDiskIndex attaches a previously saved, foreign chunk directory to
// the live dataset as a new read-only chunk.
func (e *Engine) AttachDiskIndex(ctx context.Context, dir string) (*diskchunk.DiskChunk, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	id := e.dataset.NextChunkID()
	chunk, err := diskchunk.Load(id, dir, e.schemaSnapshot())
	if err != nil {
		return nil, err
	}
	chunk.Warm()
	query.WarmCheckpoints(&chunk.Postings)

	err = e.dataset.Serial.Run(ctx, func() {
		snap := e.dataset.Load()
		nextChunks := append(append([]*diskchunk.DiskChunk(nil), snap.DiskChunks...), chunk)
		e.dataset.Publish(&dataset.Snapshot{DiskChunks: nextChunks, RamSegments: snap.RamSegments})
	})
	if err != nil {
		return nil, errors.NewIndexError(err, errors.ErrorCodeIndexInconsistent, "engine: attach failed").WithOperation("attach_disk_index")
	}
	return chunk, e.saveHeader()
}

// ---- Optimizer verbs ---------------------------------------------------------

func (e *Engine) findChunk(id uint64) (*diskchunk.DiskChunk, bool) {
	for _, c := range e.dataset.Load().DiskChunks {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// OptimizeDrop removes a chunk from the dataset.
func (e *Engine) OptimizeDrop(ctx context.Context, chunkID uint64, force bool) error {
	c, ok := e.findChunk(chunkID)
	if !ok {
		return fmt.Errorf("engine: unknown chunk id %d", chunkID)
	}
	if err := optimizer.Drop(ctx, e.dataset, c, force); err != nil {
		return err
	}
	return e.saveHeader()
}

// OptimizeCompress rewrites a chunk in place, purging dead rows.
func (e *Engine) OptimizeCompress(ctx context.Context, chunkID uint64) (*diskchunk.DiskChunk, error) {
	c, ok := e.findChunk(chunkID)
	if !ok {
		return nil, fmt.Errorf("engine: unknown chunk id %d", chunkID)
	}
	out, err := optimizer.Compress(ctx, e.dataset, e.schemaSnapshot(), e.optimCfg, e.options.DataDir, c)
	if err != nil {
		return nil, err
	}
	return out, e.saveHeader()
}

// OptimizeMerge rewrites two chunks into one.
func (e *Engine) OptimizeMerge(ctx context.Context, aID, bID uint64) (*diskchunk.DiskChunk, error) {
	a, ok := e.findChunk(aID)
	if !ok {
		return nil, fmt.Errorf("engine: unknown chunk id %d", aID)
	}
	b, ok := e.findChunk(bID)
	if !ok {
		return nil, fmt.Errorf("engine: unknown chunk id %d", bID)
	}
	out, err := optimizer.Merge(ctx, e.dataset, e.schemaSnapshot(), e.optimCfg, e.options.DataDir, a, b)
	if err != nil {
		return nil, err
	}
	return out, e.saveHeader()
}

// OptimizeSplit partitions a chunk's alive rows into two new chunks using
// filter.
func (e *Engine) OptimizeSplit(ctx context.Context, chunkID uint64, filter diskchunk.RowFilter) (excluded, included *diskchunk.DiskChunk, err error) {
	c, ok := e.findChunk(chunkID)
	if !ok {
		return nil, nil, fmt.Errorf("engine: unknown chunk id %d", chunkID)
	}
	excluded, included, err = optimizer.Split(ctx, e.dataset, e.schemaSnapshot(), e.optimCfg, e.options.DataDir, c, filter)
	if err != nil {
		return nil, nil, err
	}
	return excluded, included, e.saveHeader()
}

// AutoOptimize runs the size-bounded chunk-count convergence sweep.
func (e *Engine) AutoOptimize(ctx context.Context) error {
	if err := optimizer.AutoOptimize(ctx, e.dataset, e.schemaSnapshot(), e.optimCfg, e.options.DataDir, e.options.AutoOptimizeCutoff); err != nil {
		return err
	}
	return e.saveHeader()
}

// ClassicOptimize merges every chunk down to at most one.
func (e *Engine) ClassicOptimize(ctx context.Context) error {
	if err := optimizer.ClassicOptimize(ctx, e.dataset, e.schemaSnapshot(), e.optimCfg, e.options.DataDir); err != nil {
		return err
	}
	return e.saveHeader()
}

// ---- Schema evolution --------------------------------------------------------

// AddAttribute appends a new attribute to the live schema. Since an
// attribute changes the fixed row stride every existing RAM segment and
// disk chunk was built against, this is only accepted against an empty
// dataset — callers wanting to widen the schema of a populated index
// truncate first, matching the Accumulator's own "schema mismatch at
// commit is an error" stance on stride changes rather than
// retrofitting a row-migration pass this core does not otherwise need.
func (e *Engine) AddAttribute(ctx context.Context, attr schema.Attribute) error {
	if e.dataset.Load().TotalDocuments() != 0 {
		return fmt.Errorf("engine: cannot add an attribute to a non-empty index; truncate first")
	}

	e.schemaMu.Lock()
	next := e.schema.Clone()
	if next.AttrIndex(attr.Name) >= 0 {
		e.schemaMu.Unlock()
		return fmt.Errorf("engine: attribute %q already exists", attr.Name)
	}
	next.Attributes = append(next.Attributes, attr)
	e.schema = next
	e.executor.Schema = next
	e.schemaMu.Unlock()

	return e.recordReconfigure(ctx)
}

// RemoveAttribute drops an attribute from the live schema, same emptiness
// restriction as AddAttribute.
func (e *Engine) RemoveAttribute(ctx context.Context, name string) error {
	if e.dataset.Load().TotalDocuments() != 0 {
		return fmt.Errorf("engine: cannot remove an attribute from a non-empty index; truncate first")
	}

	e.schemaMu.Lock()
	next := e.schema.Clone()
	idx := next.AttrIndex(name)
	if idx < 0 {
		e.schemaMu.Unlock()
		return fmt.Errorf("engine: unknown attribute %q", name)
	}
	if name == next.DocIDAttr {
		e.schemaMu.Unlock()
		return fmt.Errorf("engine: cannot remove the docid attribute")
	}
	next.Attributes = append(next.Attributes[:idx], next.Attributes[idx+1:]...)
	e.schema = next
	e.executor.Schema = next
	e.schemaMu.Unlock()

	return e.recordReconfigure(ctx)
}

// AddField appends a new tokenized text field to the live schema. Unlike
// attributes, fields don't occupy row bytes, so this is safe against a
// populated index — existing rows simply have no hits for the new field
// until reindexed.
func (e *Engine) AddField(ctx context.Context, field schema.Field) error {
	e.schemaMu.Lock()
	next := e.schema.Clone()
	if next.FieldIndex(field.Name) >= 0 {
		e.schemaMu.Unlock()
		return fmt.Errorf("engine: field %q already exists", field.Name)
	}
	next.Fields = append(next.Fields, field)
	e.schema = next
	e.executor.Schema = next
	e.schemaMu.Unlock()

	return e.recordReconfigure(ctx)
}

// RemoveField drops a tokenized text field from the live schema. Existing
// postings for that field index remain in already-built segments/chunks
// until they are merged or optimized away.
func (e *Engine) RemoveField(ctx context.Context, name string) error {
	e.schemaMu.Lock()
	next := e.schema.Clone()
	idx := next.FieldIndex(name)
	if idx < 0 {
		e.schemaMu.Unlock()
		return fmt.Errorf("engine: unknown field %q", name)
	}
	next.Fields = append(next.Fields[:idx], next.Fields[idx+1:]...)
	e.schema = next
	e.executor.Schema = next
	e.schemaMu.Unlock()

	return e.recordReconfigure(ctx)
}

// Reconfigure applies functional option changes to the engine's live
// options and records them durably.
func (e *Engine) Reconfigure(ctx context.Context, opts ...options.OptionFunc) error {
	for _, opt := range opts {
		opt(e.options)
	}
	return e.recordReconfigure(ctx)
}

func (e *Engine) recordReconfigure(ctx context.Context) error {
	tid := e.committedTID.Add(1)
	var filterHash uint64
	if e.filter != nil {
		filterHash = e.filter.SettingsHash()
	}
	payload := meta.EncodeReconfigure(meta.ReconfigurePayload{
		IndexSettings:   meta.IndexSettingsFromOptions(e.options),
		TokenizerHash:   e.tok.SettingsHash(),
		DictionaryHash:  e.dict.SettingsHash(),
		FieldFilterHash: filterHash,
	})
	if err := e.txlog.Append(tid, txlog.RecordReconfigure, payload); err != nil {
		e.inconsistent.Store(true)
		return errors.NewInconsistentError(err, "reconfigure", tid)
	}
	return e.saveHeader()
}

// ---- Status ------------------------------------------------------------------

// Status reports the engine's live operational counters.
type Status struct {
	TotalDocuments int64
	RAMSegments    int
	DiskChunks     int
	CommittedTID   uint64
	Inconsistent   bool
	SaveInProgress bool
}

// GetStatus returns the engine's current operational status.
func (e *Engine) GetStatus() Status {
	snap := e.dataset.Load()
	return Status{
		TotalDocuments: snap.TotalDocuments(),
		RAMSegments:    len(snap.RamSegments),
		DiskChunks:     len(snap.DiskChunks),
		CommittedTID:   e.committedTID.Load(),
		Inconsistent:   e.inconsistent.Load(),
		SaveInProgress: e.saveInProgress.Load(),
	}
}

// ---- Background maintenance --------------------------------------------------

// triggerMaintenance schedules at most one outstanding maintenance sweep
// on the dataset's merge scheduler, which decides whether to merge two
// small RAM segments or save the whole RAM layer as a new disk chunk.
func (e *Engine) triggerMaintenance(ctx context.Context) {
	if !e.maintainPending.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer e.maintainPending.Store(false)
		_ = e.dataset.Merger.Run(ctx, func() { e.runMaintenanceOnce(ctx) })
	}()
}

func (e *Engine) runMaintenanceOnce(ctx context.Context) {
	snap := e.dataset.Load()
	unlocked := make([]*segment.RamSegment, 0, len(snap.RamSegments))
	for _, s := range snap.RamSegments {
		if s.LockedByOp.Load() == 0 {
			unlocked = append(unlocked, s)
		}
	}

	plan := merger.Decide(unlocked, e.options, e.saveInProgress.Load())
	switch plan.Decision {
	case merger.Flush:
		if !e.saveInProgress.CompareAndSwap(false, true) {
			return
		}
		defer e.saveInProgress.Store(false)

		_, err := chunksaver.SaveChunk(ctx, e.dataset, e.schemaSnapshot(), e.chunkCfg, e.options.DataDir, false)
		if err != nil {
			e.log.Errorw("background flush failed", "error", err)
			return
		}
		if err := meta.DeleteRAMSnapshot(e.options.DataDir); err != nil {
			e.log.Errorw("background flush: delete ram snapshot failed", "error", err)
			return
		}
		if err := e.saveHeader(); err != nil {
			e.log.Errorw("background flush: save header failed", "error", err)
		}

	case merger.Merge:
		if _, err := merger.MergeTwoSegments(ctx, e.dataset, e.schemaSnapshot(), e.mergeCfg, plan.A, plan.B); err != nil {
			e.log.Errorw("background merge failed", "error", err)
			return
		}
		if err := e.saveHeader(); err != nil {
			e.log.Errorw("background merge: save header failed", "error", err)
		}
	}
}

// ---- Row building -------------------------------------------------------------

// buildRow encodes attrs into sch's fixed-width row layout, appending
// blob-ref attribute payloads through appendBlob.
// AttrColumnar attributes live entirely outside row storage and are
// skipped here, matching that type's CellWidth() of zero.
func buildRow(sch *schema.Schema, docID uint64, attrs map[string]any, appendBlob func([]byte) schema.BlobRef) ([]byte, error) {
	row := make([]byte, sch.RowStride())
	offsets := sch.Offsets()

	for i, a := range sch.Attributes {
		off := offsets[i]
		if a.Name == sch.DocIDAttr {
			switch a.Type {
			case schema.AttrUint32:
				schema.PutUint32(row, off, uint32(docID))
			default:
				schema.PutUint64(row, off, docID)
			}
			continue
		}

		v, ok := attrs[a.Name]
		if !ok {
			continue
		}

		switch a.Type {
		case schema.AttrUint32:
			n, ok := toUint64(v)
			if !ok {
				return nil, fmt.Errorf("engine: attribute %q expects a numeric value", a.Name)
			}
			schema.PutUint32(row, off, uint32(n))
		case schema.AttrInt64:
			n, ok := toUint64(v)
			if !ok {
				return nil, fmt.Errorf("engine: attribute %q expects a numeric value", a.Name)
			}
			schema.PutUint64(row, off, n)
		case schema.AttrFloat:
			f, ok := toFloat64(v)
			if !ok {
				return nil, fmt.Errorf("engine: attribute %q expects a float value", a.Name)
			}
			schema.PutFloat64(row, off, f)
		case schema.AttrBool:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("engine: attribute %q expects a bool value", a.Name)
			}
			schema.PutBool(row, off, b)
		case schema.AttrString, schema.AttrJSON, schema.AttrMVA32, schema.AttrMVA64:
			payload, ok := toBytes(v)
			if !ok {
				return nil, fmt.Errorf("engine: attribute %q expects a []byte or string value", a.Name)
			}
			ref := appendBlob(payload)
			schema.PutBlobRef(row, off, ref)
		case schema.AttrColumnar:
			// Stored entirely outside row storage; out of scope for this
			// buildRow helper (no columnar storage engine is implemented).
		}
	}

	return row, nil
}

func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case uint32:
		return uint64(n), true
	case uint:
		return uint64(n), true
	case int:
		return uint64(n), true
	case int32:
		return uint64(n), true
	case int64:
		return uint64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	default:
		return nil, false
	}
}
