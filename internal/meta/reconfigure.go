package meta

import (
	"fmt"

	"github.com/ignitedb/ignite/pkg/codec"
	"github.com/ignitedb/ignite/pkg/options"
)

// ReconfigurePayload is the opaque blob a RecordReconfigure transaction-log
// entry decodes to: the index-interpreted settings delta plus the new
// collaborator settings hashes (spec §4.10 "RECONFIGURE (tokenizer/dict/
// index settings)"). The collaborators themselves are external and not
// serialized; only the hash used to detect a mismatch on reopen travels
// through the log, matching how the `.meta` header itself only ever
// stores TokenizerHash/DictionaryHash/FieldFilterHash (spec §6).
type ReconfigurePayload struct {
	IndexSettings   IndexSettings
	TokenizerHash   uint64
	DictionaryHash  uint64
	FieldFilterHash uint64
}

// EncodeReconfigure serializes a ReconfigurePayload for the transaction
// log.
func EncodeReconfigure(p ReconfigurePayload) []byte {
	w := codec.NewWriter(128)
	encodeIndexSettings(w, p.IndexSettings)
	w.Uvarint(p.TokenizerHash)
	w.Uvarint(p.DictionaryHash)
	w.Uvarint(p.FieldFilterHash)
	return w.Buf()
}

// DecodeReconfigure reconstructs a ReconfigurePayload previously written
// by EncodeReconfigure.
func DecodeReconfigure(buf []byte) (ReconfigurePayload, error) {
	r := codec.NewReader(buf)

	s, err := decodeIndexSettings(r)
	if err != nil {
		return ReconfigurePayload{}, fmt.Errorf("meta: decode reconfigure index settings: %w", err)
	}

	var p ReconfigurePayload
	p.IndexSettings = s
	if p.TokenizerHash, err = r.Uvarint(); err != nil {
		return ReconfigurePayload{}, fmt.Errorf("meta: decode reconfigure tokenizer hash: %w", err)
	}
	if p.DictionaryHash, err = r.Uvarint(); err != nil {
		return ReconfigurePayload{}, fmt.Errorf("meta: decode reconfigure dictionary hash: %w", err)
	}
	if p.FieldFilterHash, err = r.Uvarint(); err != nil {
		return ReconfigurePayload{}, fmt.Errorf("meta: decode reconfigure field filter hash: %w", err)
	}
	return p, nil
}

// ApplyIndexSettings writes the settings an IndexSettings snapshot carries
// back onto a live Options value, the inverse of
// IndexSettingsFromOptions, used when replaying a RECONFIGURE record.
func ApplyIndexSettings(o *options.Options, s IndexSettings) {
	o.CompactInterval = s.CompactInterval
	o.AutoOptimizeCutoff = s.AutoOptimizeCutoff
	o.ChunkOptions.Directory = s.ChunkDirectory
	o.ChunkOptions.Prefix = s.ChunkPrefix
	o.RAMOptions.DoubleBufferFraction = s.RAMDoubleBufferFraction
	o.RAMOptions.MaxSegments = s.RAMMaxSegments
	o.RAMOptions.MaxProgression = s.RAMMaxProgression
	o.QueryOptions.PoolSize = s.QueryPoolSize
	o.QueryOptions.MaxBlockDocs = s.QueryMaxBlockDocs
	o.QueryOptions.SkiplistBlockSize = s.QuerySkiplistBlockSize
	o.QueryOptions.DefaultQueryTimeMS = s.QueryDefaultQueryTimeMS
}
