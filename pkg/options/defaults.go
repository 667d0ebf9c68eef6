package options

import "time"

const (
	// Specifies the default base directory where ignite will store its data files.
	// If no other directory is specified during initialization, this path will be used.
	DefaultDataDir = "/var/lib/ignitedb"

	// Default CompactInterval, saved in the index settings; no sweep is
	// scheduled from it.
	DefaultCompactInterval = time.Hour * 5

	// Default ChunkOptions.Directory, saved in the index settings; chunks
	// are placed under DataDir/chunks whatever this holds.
	DefaultChunkDirectory = "/chunks"

	// Default ChunkOptions.Prefix, saved in the index settings; chunk
	// directories are named "chunk_00001_...." whatever this holds.
	DefaultChunkPrefix = "chunk"

	// Default RAM budget the segment merger targets before deciding FLUSH.
	DefaultSoftRAMLimit int64 = 128 * 1024 * 1024

	// Default fraction of SoftRAMLimit still available to writers while a
	// chunk save is in progress (spec §4.6).
	DefaultDoubleBufferFraction = 0.10

	// Default ceiling on live RAM segments (spec §4.5).
	DefaultMaxSegments = 32

	// Default amount subtracted from MaxSegments for the NOMERGE floor.
	DefaultMaxProgression = 8

	// Default dictionary checkpoint interval (spec §3, §4.3).
	DefaultCheckpointInterval uint32 = 48

	// Default maximum keyword length in codepoints.
	DefaultMaxCodepointLen uint32 = 32

	// Default infix bloom filter words per checkpoint entry.
	DefaultBloomPerEntry uint8 = 8

	// Default infix bloom filter hash function count.
	DefaultBloomHashes uint8 = 2

	// Default MinInfixLen; nothing reads it.
	DefaultMinInfixLen = 2

	// Default MaxBlockDocs, saved in the index settings; the query executor
	// uses its own block size.
	DefaultMaxBlockDocs = 4096

	// Default SkiplistBlockSize, saved in the index settings; no skiplist is
	// written.
	DefaultSkiplistBlockSize = 128
)

// Holds the default configuration settings for an ignite index instance.
var defaultOptions = Options{
	DataDir:            DefaultDataDir,
	CompactInterval:    DefaultCompactInterval,
	AutoOptimizeCutoff: 0,
	ChunkOptions: &chunkOptions{
		Directory: DefaultChunkDirectory,
		Prefix:    DefaultChunkPrefix,
	},
	RAMOptions: &ramOptions{
		SoftLimit:            DefaultSoftRAMLimit,
		DoubleBufferFraction: DefaultDoubleBufferFraction,
		MaxSegments:          DefaultMaxSegments,
		MaxProgression:       DefaultMaxProgression,
	},
	DictionaryOptions: &dictionaryOptions{
		CheckpointInterval: DefaultCheckpointInterval,
		MaxCodepointLen:    DefaultMaxCodepointLen,
		BloomPerEntry:      DefaultBloomPerEntry,
		BloomHashes:        DefaultBloomHashes,
		MinInfixLen:        DefaultMinInfixLen,
	},
	QueryOptions: &queryOptions{
		PoolSize:           0,
		MaxBlockDocs:       DefaultMaxBlockDocs,
		SkiplistBlockSize:  DefaultSkiplistBlockSize,
		DefaultQueryTimeMS: 0,
	},
}

// NewDefaultOptions returns a fresh copy of the default settings. Pointer
// fields are cloned so callers mutating one instance's nested options don't
// leak into the package-level default.
func NewDefaultOptions() Options {
	opts := defaultOptions
	chunk := *defaultOptions.ChunkOptions
	ram := *defaultOptions.RAMOptions
	dict := *defaultOptions.DictionaryOptions
	query := *defaultOptions.QueryOptions
	opts.ChunkOptions = &chunk
	opts.RAMOptions = &ram
	opts.DictionaryOptions = &dict
	opts.QueryOptions = &query
	return opts
}
