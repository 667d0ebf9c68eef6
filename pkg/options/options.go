// Package options provides data structures and functions for configuring
// the ignite search core. It defines every parameter that controls how
// documents are accumulated into RAM segments, how the RAM layer is flushed
// and merged into on-disk chunks, how queries are executed, and where
// everything lives on disk.
package options

import (
	"strings"
	"time"
)

// Defines configurable parameters for the on-disk chunk layer (spec §6,
// persisted state layout "P.N"). Mirrors the teacher's segmentOptions, but
// "segment" there meant a rotating log file; here the rotating unit is an
// immutable disk chunk produced by the Chunk Saver.
type chunkOptions struct {
	// Directory is saved in the index settings. Chunk saves and optimizes do
	// not read it: they place chunk directories under DataDir/chunks.
	//
	// Default: "/chunks"
	Directory string `json:"directory"`

	// Prefix is saved in the index settings. Chunk directories do not use
	// it: they are always named `chunk_NNNNN_timestamp-xxxxxxxx`, with the
	// fixed prefix "chunk" and eight characters of a random UUID.
	//
	// Default: "chunk"
	Prefix string `json:"prefix"`
}

// Defines the parameters governing the in-memory RAM layer: how much memory
// it may use before the segment merger decides to FLUSH, and the limits that
// keep the number of live RAM segments bounded (spec §4.5).
type ramOptions struct {
	// SoftLimit is the RAM budget (bytes) the segment merger compares
	// estimated post-merge memory against when deciding FLUSH vs MERGE.
	//
	// Default: 128MB
	SoftLimit int64 `json:"softRamLimit"`

	// DoubleBufferFraction bounds concurrent commits to this fraction of
	// SoftLimit while a chunk save is already in progress (spec §4.6,
	// "Budget semantics").
	//
	// Default: 0.10
	DoubleBufferFraction float64 `json:"doubleBufferFraction"`

	// MaxSegments is the ceiling on live RAM segments before the merger
	// is forced to MERGE regardless of size skew.
	//
	// Default: 32
	MaxSegments int `json:"maxSegments"`

	// MaxProgression is subtracted from MaxSegments to get the "don't
	// bother merging yet" floor (spec §4.5 NOMERGE condition).
	//
	// Default: 8
	MaxProgression int `json:"maxProgression"`
}

// Defines the dictionary/codec constants from spec §4.1 and §4.10 that must
// stay fixed for the lifetime of an index (changing them invalidates
// existing RAM segments and chunks).
type dictionaryOptions struct {
	// CheckpointInterval is how many words separate dictionary checkpoints.
	//
	// Default: 48
	CheckpointInterval uint32 `json:"checkpointInterval"`

	// MaxCodepointLen bounds a single keyword's length in codepoints.
	//
	// Default: 32
	MaxCodepointLen uint32 `json:"maxCodepointLen"`

	// BloomPerEntry is the number of bloom-filter words allocated per
	// checkpoint entry for infix pruning (spec §3, infix bloom filter).
	//
	// Default: 8
	BloomPerEntry uint8 `json:"bloomPerEntry"`

	// BloomHashes is the number of hash functions applied per n-gram.
	//
	// Default: 2
	BloomHashes uint8 `json:"bloomHashes"`

	// MinInfixLen holds a shortest-infix length. The bloom filter and the
	// query path do not read it, and it is not saved in the index settings.
	//
	// Default: 2
	MinInfixLen int `json:"minInfixLen"`
}

// Defines parameters for the query executor's concurrency and result shape
// (spec §4.9, §5).
type queryOptions struct {
	// PoolSize bounds how many disk chunks and RAM segments a query searches
	// concurrently. Zero or less makes the executor use 4.
	//
	// Default: 0
	PoolSize int `json:"poolSize"`

	// MaxBlockDocs is saved in the index settings. The query executor does
	// not read it; its candidate-match blocks use a fixed size of 2048.
	//
	// Default: 4096
	MaxBlockDocs int `json:"maxBlockDocs"`

	// SkiplistBlockSize is saved in the index settings. No component reads
	// it, and no doclist skiplist is written.
	//
	// Default: 128
	SkiplistBlockSize int `json:"skiplistBlockSize"`

	// DefaultQueryTimeMS is the default max_query_time_ms applied when a
	// query doesn't specify one explicitly. Zero means unlimited.
	//
	// Default: 0 (unlimited)
	DefaultQueryTimeMS int64 `json:"defaultQueryTimeMs"`
}

// Defines the configuration parameters for an ignite index instance.
// It provides control over storage, performance and maintenance aspects.
type Options struct {
	// Specifies the base path where all files for this index are stored.
	//
	// Default: "/var/lib/ignitedb"
	DataDir string `json:"dataDir"`

	// CompactInterval is saved in the index settings. No component reads it
	// to schedule an optimizer sweep; auto_optimize runs only when called.
	//
	// Default: 5h
	CompactInterval time.Duration `json:"compactInterval"`

	// AutoOptimizeCutoff bounds the number of live chunks auto_optimize
	// tries to converge to (spec §4.7). Zero means "2 × GOMAXPROCS".
	AutoOptimizeCutoff int `json:"autoOptimizeCutoff"`

	// Configures the on-disk chunk directory and naming convention.
	ChunkOptions *chunkOptions `json:"chunkOptions"`

	// Configures RAM-layer budget and segment-count ceilings.
	RAMOptions *ramOptions `json:"ramOptions"`

	// Configures dictionary/codec constants.
	DictionaryOptions *dictionaryOptions `json:"dictionaryOptions"`

	// Configures query executor concurrency and result shaping.
	QueryOptions *queryOptions `json:"queryOptions"`
}

// OptionFunc is a function type that modifies the ignite index's configuration.
type OptionFunc func(*Options)

// WithDefaultOptions applies a predefined set of default configuration
// values to the Options struct.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		opts := NewDefaultOptions()
		*o = opts
	}
}

// WithDataDir sets the primary data directory for the index.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithCompactInterval sets CompactInterval, which is saved in the index
// settings and not used for scheduling.
func WithCompactInterval(interval time.Duration) OptionFunc {
	return func(o *Options) {
		if interval > 0 {
			o.CompactInterval = interval
		}
	}
}

// WithChunkDir sets ChunkOptions.Directory, which is saved in the index
// settings and not used to place chunks.
func WithChunkDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.ChunkOptions.Directory = directory
		}
	}
}

// WithChunkPrefix sets ChunkOptions.Prefix, which is saved in the index
// settings and not used to name chunks.
func WithChunkPrefix(prefix string) OptionFunc {
	return func(o *Options) {
		prefix = strings.TrimSpace(prefix)
		if prefix != "" {
			o.ChunkOptions.Prefix = prefix
		}
	}
}

// WithSoftRAMLimit sets the RAM budget the segment merger targets.
func WithSoftRAMLimit(bytes int64) OptionFunc {
	return func(o *Options) {
		if bytes > 0 {
			o.RAMOptions.SoftLimit = bytes
		}
	}
}

// WithMaxSegments sets the ceiling on live RAM segments.
func WithMaxSegments(max, progression int) OptionFunc {
	return func(o *Options) {
		if max > 0 {
			o.RAMOptions.MaxSegments = max
		}
		if progression >= 0 && progression < max {
			o.RAMOptions.MaxProgression = progression
		}
	}
}

// WithCheckpointInterval sets the dictionary checkpoint interval.
func WithCheckpointInterval(interval uint32) OptionFunc {
	return func(o *Options) {
		if interval > 0 {
			o.DictionaryOptions.CheckpointInterval = interval
		}
	}
}

// WithBloomParams sets the infix bloom filter word count per entry and hash
// function count.
func WithBloomParams(perEntry, hashes uint8) OptionFunc {
	return func(o *Options) {
		if perEntry > 0 {
			o.DictionaryOptions.BloomPerEntry = perEntry
		}
		if hashes > 0 {
			o.DictionaryOptions.BloomHashes = hashes
		}
	}
}

// WithMinInfixLen sets DictionaryOptions.MinInfixLen, which nothing reads.
func WithMinInfixLen(n int) OptionFunc {
	return func(o *Options) {
		if n > 0 {
			o.DictionaryOptions.MinInfixLen = n
		}
	}
}

// WithQueryPoolSize sets how many disk chunks and RAM segments a query
// searches concurrently.
func WithQueryPoolSize(n int) OptionFunc {
	return func(o *Options) {
		if n > 0 {
			o.QueryOptions.PoolSize = n
		}
	}
}

// WithMaxQueryTime sets the default max query time applied when a query
// doesn't specify one.
func WithMaxQueryTime(d time.Duration) OptionFunc {
	return func(o *Options) {
		if d > 0 {
			o.QueryOptions.DefaultQueryTimeMS = d.Milliseconds()
		}
	}
}
