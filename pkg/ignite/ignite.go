// Package ignite is the public entry point for the real-time full-text
// search core described throughout this module (spec §6 "Inputs to the
// core's public surface"). Instance is a thin façade over
// internal/engine.Engine: every method here does argument/defaulting work
// only and immediately delegates, so this is the one package external
// callers are expected to import directly.
package ignite

import (
	"context"
	"fmt"

	"github.com/ignitedb/ignite/internal/diskchunk"
	"github.com/ignitedb/ignite/internal/engine"
	"github.com/ignitedb/ignite/internal/query"
	"github.com/ignitedb/ignite/internal/update"
	"github.com/ignitedb/ignite/pkg/logger"
	"github.com/ignitedb/ignite/pkg/options"
	"github.com/ignitedb/ignite/pkg/schema"
)

// Collaborators re-exports engine.Collaborators so callers opening an
// Instance never need to import internal/engine themselves.
type Collaborators = engine.Collaborators

// Document re-exports engine.Document, the per-add_document input.
type Document = engine.Document

// Writer is a per-caller transaction buffer, matching spec §3's
// Accumulator lifecycle: bound to one Instance from first use until an
// explicit Commit or Rollback.
type Writer = engine.Writer

// Status re-exports engine.Status, the get_status() result (spec §6).
type Status = engine.Status

// Instance is the primary entry point for interacting with the ignite
// search core. It wraps one open index directory: its schema, its
// tokenizer/dictionary/field-filter collaborators, and the live
// (disk chunks, RAM segments) dataset underneath internal/engine.Engine.
type Instance struct {
	engine *engine.Engine
}

// Config holds everything needed to open or recover an Instance: the
// functional options controlling RAM/merge/query behavior, the schema to
// use when opening a brand-new data directory (ignored on recovery, where
// the `.meta` header's schema takes precedence), and the external
// tokenizer/dictionary/field-filter collaborators (spec §1 "Explicitly out
// of scope" — this core never implements these itself).
type Config struct {
	Schema        *schema.Schema
	Collaborators Collaborators
	Options       []options.OptionFunc
}

// NewInstance opens (or recovers) an Instance against the data directory
// baked into config.Options via options.WithDataDir, replaying any
// transaction-log records past the last saved `.meta` header.
func NewInstance(ctx context.Context, service string, config Config) (*Instance, error) {
	log := logger.New(service)

	opts := options.NewDefaultOptions()
	for _, opt := range config.Options {
		opt(&opts)
	}

	eng, err := engine.New(ctx, &engine.Config{
		Logger:        log,
		Options:       &opts,
		Schema:        config.Schema,
		Collaborators: config.Collaborators,
	})
	if err != nil {
		return nil, err
	}

	return &Instance{engine: eng}, nil
}

// NewWriter opens a fresh transaction buffer bound to the instance's
// current schema and collaborators (spec §6 add_document/delete_document
// are methods on the returned Writer).
func (i *Instance) NewWriter() *Writer {
	return i.engine.NewWriter()
}

// Commit runs w's buffered transaction through the full commit pipeline:
// produce a new RAM segment, kill superseded rows everywhere else in the
// dataset, publish the new snapshot, and append a durable transaction-log
// record (spec §6 "commit(accum?) -> deleted_count").
func (i *Instance) Commit(ctx context.Context, w *Writer) error {
	return i.engine.Commit(ctx, w)
}

// Rollback discards w's transaction buffer without committing it (spec §6
// "rollback(accum?)").
func (i *Instance) Rollback(w *Writer) {
	w.Rollback()
}

// UpdateAttributes applies an attribute-update batch against the live
// dataset (spec §6 "update_attributes(batch) -> affected_count | Err").
func (i *Instance) UpdateAttributes(ctx context.Context, batch update.Batch) (*update.Result, error) {
	return i.engine.UpdateAttributes(ctx, batch)
}

// MultiQuery runs a pre-resolved query tree against the live dataset (spec
// §6 "multi_query(query, sorters[], args) -> Ok|Err"). Query parsing
// itself — turning query text into a Node tree and ResolvedTerms — is out
// of scope for this core (spec §1); callers arrive with terms already
// resolved through the Dictionary collaborator.
func (i *Instance) MultiQuery(ctx context.Context, q *query.Query) (*query.Result, error) {
	return i.engine.MultiQuery(ctx, q)
}

// GetKeywords previews how text would tokenize and expand against the
// live dataset, returning per-keyword doc/hit counts (spec §6
// "get_keywords(query, settings) -> [KeywordInfo]").
func (i *Instance) GetKeywords(fieldIdx int, text string) ([]query.KeywordStat, error) {
	return i.engine.GetKeywords(fieldIdx, text)
}

// ForceRAMFlush writes the current RAM segments to the `.ram` snapshot and
// saves the `.meta` header, without merging them or promoting them to a
// disk chunk (spec §6 "force_ram_flush(reason)"). The reason is accepted
// for signature parity with the spec surface and is not used.
func (i *Instance) ForceRAMFlush(ctx context.Context, reason string) error {
	return i.engine.ForceRAMFlush(ctx)
}

// ForceDiskChunk forces an immediate chunk save of the whole RAM layer
// (spec §6 "force_disk_chunk()").
func (i *Instance) ForceDiskChunk(ctx context.Context) (*diskchunk.DiskChunk, error) {
	return i.engine.ForceDiskChunk(ctx)
}

// Truncate drops every disk chunk and RAM segment, resetting the index to
// empty (spec §6 "truncate()").
func (i *Instance) Truncate(ctx context.Context) error {
	return i.engine.Truncate(ctx)
}

// AttachDiskIndex attaches a previously saved, foreign chunk directory to
// the live dataset as a new read-only chunk (spec §6
// "attach_disk_index(idx, truncate) -> Ok|Fatal|Err"). When truncate is
// set, the existing dataset is emptied first.
func (i *Instance) AttachDiskIndex(ctx context.Context, dir string, truncate bool) (*diskchunk.DiskChunk, error) {
	if truncate {
		if err := i.engine.Truncate(ctx); err != nil {
			return nil, err
		}
	}
	return i.engine.AttachDiskIndex(ctx, dir)
}

// OptimizeTask selects which optimizer verb Optimize runs (spec §4.7
// "Verbs").
type OptimizeTask struct {
	Verb    OptimizeVerb
	ChunkID uint64 // Drop, Compress, Split
	OtherID uint64 // Merge's second chunk
	Filter  diskchunk.RowFilter
	Force   bool // Drop only
}

// OptimizeVerb enumerates spec §4.7's optimizer verbs.
type OptimizeVerb int

const (
	OptimizeDrop OptimizeVerb = iota
	OptimizeCompress
	OptimizeMerge
	OptimizeSplit
	OptimizeAuto
	OptimizeClassic
)

// Optimize dispatches task to the matching internal/optimizer verb (spec
// §6 "optimize(task)").
func (i *Instance) Optimize(ctx context.Context, task OptimizeTask) error {
	switch task.Verb {
	case OptimizeDrop:
		return i.engine.OptimizeDrop(ctx, task.ChunkID, task.Force)
	case OptimizeCompress:
		_, err := i.engine.OptimizeCompress(ctx, task.ChunkID)
		return err
	case OptimizeMerge:
		_, err := i.engine.OptimizeMerge(ctx, task.ChunkID, task.OtherID)
		return err
	case OptimizeSplit:
		_, _, err := i.engine.OptimizeSplit(ctx, task.ChunkID, task.Filter)
		return err
	case OptimizeAuto:
		return i.engine.AutoOptimize(ctx)
	case OptimizeClassic:
		return i.engine.ClassicOptimize(ctx)
	default:
		return fmt.Errorf("ignite: unknown optimize verb %d", task.Verb)
	}
}

// AddRemoveAttribute adds or removes a named attribute from the live
// schema (spec §6 "add_remove_attribute(add, name, type, engine) ->
// Ok|Err"). Both directions require the index to currently be empty (spec
// §1 Non-goals "arbitrary mid-stream schema changes without a quiescence
// point").
func (i *Instance) AddRemoveAttribute(ctx context.Context, add bool, attr schema.Attribute) error {
	if add {
		return i.engine.AddAttribute(ctx, attr)
	}
	return i.engine.RemoveAttribute(ctx, attr.Name)
}

// AddRemoveField adds or removes a tokenized text field from the live
// schema (spec §6 "add_remove_field(add, name, flags) -> Ok|Err").
func (i *Instance) AddRemoveField(ctx context.Context, add bool, field schema.Field) error {
	if add {
		return i.engine.AddField(ctx, field)
	}
	return i.engine.RemoveField(ctx, field.Name)
}

// GetStatus returns the instance's current operational status (spec §6
// "get_status() -> IndexStatus").
func (i *Instance) GetStatus() Status {
	return i.engine.GetStatus()
}

// Reconfigure applies functional option changes to the instance's live
// options and records them durably (spec §6 "reconfigure(new_settings) ->
// Ok|Err").
func (i *Instance) Reconfigure(ctx context.Context, opts ...options.OptionFunc) error {
	return i.engine.Reconfigure(ctx, opts...)
}

// Close gracefully shuts down the Instance, stopping its background
// schedulers and releasing the transaction log and exclusive directory
// lock.
func (i *Instance) Close() error {
	return i.engine.Close()
}
