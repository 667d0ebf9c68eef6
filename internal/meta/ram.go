package meta

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/codec"
	"github.com/ignitedb/ignite/pkg/schema"
)

// ramMagic flags whether the `.ram` file's payload is zstd-compressed,
// letting SaveRAM/LoadRAM move to compression without invalidating
// previously-written snapshots (a reader encountering the uncompressed
// magic just skips straight to decoding).
const (
	ramMagicPlain     uint32 = 0x4D415252 // "RRAM"
	ramMagicCompressed uint32 = 0x5A415252 // "RRAZ"
)

// EncodeRAM serializes every segment in segs into the `.ram` snapshot
// format (spec §4.10 "optional snapshot of all current RAM segments").
// When compress is true the concatenated segment blocks are wrapped in a
// single zstd frame (SPEC_FULL.md domain-stack table: "optional compression
// ... when the `.ram` snapshot is persisted").
func EncodeRAM(segs []*segment.RamSegment, compress bool) ([]byte, error) {
	body := codec.NewWriter(1024)
	body.Uvarint(uint64(len(segs)))
	for i, s := range segs {
		block, err := segment.Encode(s)
		if err != nil {
			return nil, fmt.Errorf("meta: encode ram segment %d: %w", i, err)
		}
		body.Uvarint(uint64(len(block)))
		body.Bytes(block)
	}
	payload := body.Buf()

	magic := ramMagicPlain
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("meta: new zstd encoder: %w", err)
		}
		payload = enc.EncodeAll(payload, nil)
		enc.Close()
		magic = ramMagicCompressed
	}

	out := codec.NewWriter(8 + len(payload))
	out.Uvarint(uint64(magic))
	out.Bytes(payload)
	return out.Buf(), nil
}

// DecodeRAM reconstructs every RAM segment from a `.ram` snapshot
// previously written by EncodeRAM, against sch (the schema the caller has
// already confirmed matches the one in the `.meta` header — a segment
// decoded against a stale schema would misinterpret its row stride).
func DecodeRAM(sch *schema.Schema, buf []byte) ([]*segment.RamSegment, error) {
	outer := codec.NewReader(buf)
	magic, err := outer.Uvarint()
	if err != nil {
		return nil, fmt.Errorf("meta: decode ram magic: %w", err)
	}

	payload, err := outer.Bytes(outer.Len())
	if err != nil {
		return nil, fmt.Errorf("meta: decode ram payload: %w", err)
	}

	switch uint32(magic) {
	case ramMagicPlain:
	case ramMagicCompressed:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("meta: new zstd decoder: %w", err)
		}
		payload, err = dec.DecodeAll(payload, nil)
		dec.Close()
		if err != nil {
			return nil, fmt.Errorf("meta: zstd decode ram payload: %w", err)
		}
	default:
		return nil, fmt.Errorf("meta: unrecognized .ram magic %x", magic)
	}

	r := codec.NewReader(payload)
	count, err := r.Uvarint()
	if err != nil {
		return nil, fmt.Errorf("meta: decode ram segment count: %w", err)
	}

	segs := make([]*segment.RamSegment, count)
	for i := range segs {
		n, err := r.Uvarint()
		if err != nil {
			return nil, fmt.Errorf("meta: decode ram segment %d length: %w", i, err)
		}
		block, err := r.Bytes(int(n))
		if err != nil {
			return nil, fmt.Errorf("meta: decode ram segment %d block: %w", i, err)
		}
		seg, err := segment.Decode(sch, block)
		if err != nil {
			return nil, fmt.Errorf("meta: decode ram segment %d: %w", i, err)
		}
		segs[i] = seg
	}

	return segs, nil
}
