// Package meta implements the Meta/Recovery component (spec §2 component
// 12, §4.10): the `.meta` header, the `.ram` snapshot file, the `.settings`
// mutable overlay, and the three-step recovery/replay procedure tying them
// together with internal/txlog. Tokenizer/Dictionary/FieldFilter settings
// are external collaborators this core does not interpret (spec §1
// "Explicitly out of scope") — only their SettingsHash() is persisted, the
// same reconcile-by-hash approach spec §6 names for Tokenizer/Dictionary
// settings.
package meta

import (
	"math"
	"time"

	"github.com/ignitedb/ignite/pkg/codec"
	"github.com/ignitedb/ignite/pkg/errors"
	"github.com/ignitedb/ignite/pkg/options"
	"github.com/ignitedb/ignite/pkg/schema"
)

// headerMagic and headerVersion are the fixed identity/format stamp spec
// §4.10 gives the `.meta` header verbatim.
const (
	headerMagic   uint32 = 0x54525053
	headerVersion uint32 = 19
)

// IndexSettings is the subset of pkg/options.Options this core itself
// interprets and therefore persists in full (as opposed to the
// Tokenizer/Dictionary/FieldFilter settings, which are opaque to this core
// and persisted only as a hash). checkpoint_interval, max_codepoint_len,
// bloom_per_entry, bloom_hashes, and soft_ram_limit are their own top-level
// header fields per spec §4.10 and are not duplicated here.
type IndexSettings struct {
	CompactInterval    time.Duration
	AutoOptimizeCutoff int

	ChunkDirectory string
	ChunkPrefix    string

	RAMDoubleBufferFraction float64
	RAMMaxSegments          int
	RAMMaxProgression       int

	QueryPoolSize          int
	QueryMaxBlockDocs      int
	QuerySkiplistBlockSize int
	QueryDefaultQueryTimeMS int64
}

// IndexSettingsFromOptions snapshots the persisted-relevant fields of a
// live Options value.
func IndexSettingsFromOptions(o *options.Options) IndexSettings {
	return IndexSettings{
		CompactInterval:         o.CompactInterval,
		AutoOptimizeCutoff:      o.AutoOptimizeCutoff,
		ChunkDirectory:          o.ChunkOptions.Directory,
		ChunkPrefix:             o.ChunkOptions.Prefix,
		RAMDoubleBufferFraction: o.RAMOptions.DoubleBufferFraction,
		RAMMaxSegments:          o.RAMOptions.MaxSegments,
		RAMMaxProgression:       o.RAMOptions.MaxProgression,
		QueryPoolSize:           o.QueryOptions.PoolSize,
		QueryMaxBlockDocs:       o.QueryOptions.MaxBlockDocs,
		QuerySkiplistBlockSize:  o.QueryOptions.SkiplistBlockSize,
		QueryDefaultQueryTimeMS: o.QueryOptions.DefaultQueryTimeMS,
	}
}

// Header is the decoded form of the `.meta` file (spec §4.10). It is
// rewritten wholesale after every committed save, update, attach, truncate,
// or schema change — there is no incremental header update.
type Header struct {
	TotalDocuments uint32
	TotalBytes     uint64
	CommittedTID   uint64
	FormatVersion  uint32

	Schema        *schema.Schema
	IndexSettings IndexSettings

	// TokenizerHash/DictionaryHash/FieldFilterHash are the collaborators'
	// SettingsHash() values captured at the time this header was written,
	// used to detect a reconfigure mismatch on reopen (spec §6).
	TokenizerHash   uint64
	DictionaryHash  uint64
	FieldFilterHash uint64

	CheckpointInterval uint32
	MaxCodepointLen    uint32
	BloomPerEntry      uint8
	BloomHashes        uint8

	ChunkIDs []uint64

	SoftRAMLimit int64
}

// Encode serializes h into the `.meta` file's binary layout.
func Encode(h *Header) []byte {
	w := codec.NewWriter(256 + len(h.ChunkIDs)*4)

	w.Uvarint(uint64(headerMagic))
	w.Uvarint(uint64(headerVersion))
	w.Uvarint(uint64(h.TotalDocuments))
	w.Uvarint(h.TotalBytes)
	w.Uvarint(h.CommittedTID)
	w.Uvarint(uint64(h.FormatVersion))

	encodeSchema(w, h.Schema)
	encodeIndexSettings(w, h.IndexSettings)

	w.Uvarint(h.TokenizerHash)
	w.Uvarint(h.DictionaryHash)
	w.Uvarint(h.FieldFilterHash)

	w.Uvarint(uint64(h.CheckpointInterval))
	w.Uvarint(uint64(h.MaxCodepointLen))
	w.Bytes([]byte{h.BloomPerEntry, h.BloomHashes})

	w.Uvarint(uint64(len(h.ChunkIDs)))
	for _, id := range h.ChunkIDs {
		w.Uvarint(id)
	}

	w.Uvarint(zigzagEncode(h.SoftRAMLimit))

	return w.Buf()
}

// Decode parses a `.meta` file previously written by Encode. A magic or
// version mismatch is reported as ErrorCodeIndexCorrupted rather than a
// generic decode error, since it means the file is not this format at all
// (a stale format_version bump, a truncated/corrupted write) rather than a
// transient parse failure.
func Decode(buf []byte) (*Header, error) {
	r := codec.NewReader(buf)

	magic, err := r.Uvarint()
	if err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"missing magic"})
	}
	if uint32(magic) != headerMagic {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"bad magic"})
	}
	version, err := r.Uvarint()
	if err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"missing version"})
	}
	if uint32(version) != headerVersion {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"bad version"})
	}

	h := &Header{}

	totalDocs, err := r.Uvarint()
	if err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"missing total_documents"})
	}
	h.TotalDocuments = uint32(totalDocs)

	if h.TotalBytes, err = r.Uvarint(); err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"missing total_bytes"})
	}
	if h.CommittedTID, err = r.Uvarint(); err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"missing committed_tid"})
	}
	formatVersion, err := r.Uvarint()
	if err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"missing format_version"})
	}
	h.FormatVersion = uint32(formatVersion)

	sch, err := decodeSchema(r)
	if err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"bad schema: " + err.Error()})
	}
	h.Schema = sch

	idxSettings, err := decodeIndexSettings(r)
	if err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"bad index_settings: " + err.Error()})
	}
	h.IndexSettings = idxSettings

	if h.TokenizerHash, err = r.Uvarint(); err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"missing tokenizer hash"})
	}
	if h.DictionaryHash, err = r.Uvarint(); err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"missing dictionary hash"})
	}
	if h.FieldFilterHash, err = r.Uvarint(); err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"missing field filter hash"})
	}

	ci, err := r.Uvarint()
	if err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"missing checkpoint_interval"})
	}
	h.CheckpointInterval = uint32(ci)

	mcl, err := r.Uvarint()
	if err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"missing max_codepoint_len"})
	}
	h.MaxCodepointLen = uint32(mcl)

	flags, err := r.Bytes(2)
	if err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"missing bloom flags"})
	}
	h.BloomPerEntry, h.BloomHashes = flags[0], flags[1]

	chunkCount, err := r.Uvarint()
	if err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"missing chunk_count"})
	}
	h.ChunkIDs = make([]uint64, chunkCount)
	for i := range h.ChunkIDs {
		if h.ChunkIDs[i], err = r.Uvarint(); err != nil {
			return nil, errors.NewCorruptionError("meta.Decode", []string{"truncated chunk_ids"})
		}
	}

	softLimit, err := r.Uvarint()
	if err != nil {
		return nil, errors.NewCorruptionError("meta.Decode", []string{"missing soft_ram_limit"})
	}
	h.SoftRAMLimit = zigzagDecode(softLimit)

	return h, nil
}

func encodeSchema(w *codec.Writer, sch *schema.Schema) {
	w.Bytes([]byte(sch.DocIDAttr + "\x00"))
	w.Uvarint(uint64(len(sch.Attributes)))
	for _, a := range sch.Attributes {
		w.Bytes([]byte(a.Name + "\x00"))
		w.Uvarint(uint64(a.Type))
		w.Bytes([]byte(a.Engine + "\x00"))
	}
	w.Uvarint(uint64(len(sch.Fields)))
	for _, f := range sch.Fields {
		w.Bytes([]byte(f.Name + "\x00"))
		w.Uvarint(uint64(f.WeightBucket))
	}
}

func decodeSchema(r *codec.Reader) (*schema.Schema, error) {
	docIDAttr, err := readCString(r)
	if err != nil {
		return nil, err
	}
	attrCount, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	attrs := make([]schema.Attribute, attrCount)
	for i := range attrs {
		name, err := readCString(r)
		if err != nil {
			return nil, err
		}
		typ, err := r.Uvarint()
		if err != nil {
			return nil, err
		}
		engine, err := readCString(r)
		if err != nil {
			return nil, err
		}
		attrs[i] = schema.Attribute{Name: name, Type: schema.AttrType(typ), Engine: engine}
	}

	fieldCount, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	fields := make([]schema.Field, fieldCount)
	for i := range fields {
		name, err := readCString(r)
		if err != nil {
			return nil, err
		}
		bucket, err := r.Uvarint()
		if err != nil {
			return nil, err
		}
		fields[i] = schema.Field{Name: name, WeightBucket: int(bucket)}
	}

	return &schema.Schema{DocIDAttr: docIDAttr, Attributes: attrs, Fields: fields}, nil
}

func encodeIndexSettings(w *codec.Writer, s IndexSettings) {
	w.Uvarint(uint64(s.CompactInterval))
	w.Uvarint(zigzagEncode(int64(s.AutoOptimizeCutoff)))
	w.Bytes([]byte(s.ChunkDirectory + "\x00"))
	w.Bytes([]byte(s.ChunkPrefix + "\x00"))
	w.Uvarint(uint64(s.RAMMaxSegments))
	w.Uvarint(uint64(s.RAMMaxProgression))
	w.Uvarint(uint64(s.QueryPoolSize))
	w.Uvarint(uint64(s.QueryMaxBlockDocs))
	w.Uvarint(uint64(s.QuerySkiplistBlockSize))
	w.Uvarint(zigzagEncode(s.QueryDefaultQueryTimeMS))
	// DoubleBufferFraction is a float64 ratio; bit-pattern it through its
	// uint64 representation rather than adding a float varint codec for a
	// single field.
	w.Uvarint(math.Float64bits(s.RAMDoubleBufferFraction))
}

func decodeIndexSettings(r *codec.Reader) (IndexSettings, error) {
	var s IndexSettings

	compact, err := r.Uvarint()
	if err != nil {
		return s, err
	}
	s.CompactInterval = time.Duration(compact)

	cutoff, err := r.Uvarint()
	if err != nil {
		return s, err
	}
	s.AutoOptimizeCutoff = int(zigzagDecode(cutoff))

	if s.ChunkDirectory, err = readCString(r); err != nil {
		return s, err
	}
	if s.ChunkPrefix, err = readCString(r); err != nil {
		return s, err
	}

	maxSeg, err := r.Uvarint()
	if err != nil {
		return s, err
	}
	s.RAMMaxSegments = int(maxSeg)

	maxProg, err := r.Uvarint()
	if err != nil {
		return s, err
	}
	s.RAMMaxProgression = int(maxProg)

	poolSize, err := r.Uvarint()
	if err != nil {
		return s, err
	}
	s.QueryPoolSize = int(poolSize)

	maxBlock, err := r.Uvarint()
	if err != nil {
		return s, err
	}
	s.QueryMaxBlockDocs = int(maxBlock)

	skBlock, err := r.Uvarint()
	if err != nil {
		return s, err
	}
	s.QuerySkiplistBlockSize = int(skBlock)

	defQT, err := r.Uvarint()
	if err != nil {
		return s, err
	}
	s.QueryDefaultQueryTimeMS = zigzagDecode(defQT)

	bits, err := r.Uvarint()
	if err != nil {
		return s, err
	}
	s.RAMDoubleBufferFraction = math.Float64frombits(bits)

	return s, nil
}

func readCString(r *codec.Reader) (string, error) {
	var buf []byte
	for {
		b, err := r.Bytes(1)
		if err != nil {
			return "", err
		}
		if b[0] == 0 {
			break
		}
		buf = append(buf, b[0])
	}
	return string(buf), nil
}

func zigzagEncode(v int64) uint64 { return uint64((v << 1) ^ (v >> 63)) }
func zigzagDecode(v uint64) int64 { return int64(v>>1) ^ -int64(v&1) }
