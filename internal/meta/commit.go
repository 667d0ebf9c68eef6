package meta

import (
	"fmt"

	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/codec"
	"github.com/ignitedb/ignite/pkg/schema"
)

// CommitPayload is the opaque blob a RecordCommit transaction-log entry
// decodes to: the RAM segment an Accumulator.Commit produced (absent for a
// delete-only transaction) and every doc id its kill list marked dead
// (spec §4.10 "Supported transaction blobs": "COMMIT (full accumulator
// state including a new segment and kill list)"). Replay re-applies both
// halves in the same order Engine.Commit itself does: kill first, then
// append the segment.
type CommitPayload struct {
	Segment  *segment.RamSegment
	KillList []uint64
}

// EncodeCommit serializes a CommitPayload for appending to the
// transaction log.
func EncodeCommit(sch *schema.Schema, p CommitPayload) ([]byte, error) {
	w := codec.NewWriter(256)

	if p.Segment == nil {
		w.Bool(false)
	} else {
		w.Bool(true)
		block, err := segment.Encode(p.Segment)
		if err != nil {
			return nil, fmt.Errorf("meta: encode commit segment: %w", err)
		}
		w.Uvarint(uint64(len(block)))
		w.Bytes(block)
	}

	w.Uvarint(uint64(len(p.KillList)))
	for _, id := range p.KillList {
		w.Uvarint(id)
	}

	return w.Buf(), nil
}

// DecodeCommit reconstructs a CommitPayload against sch, the schema the
// caller has already confirmed matches the header in force at replay time.
func DecodeCommit(sch *schema.Schema, buf []byte) (CommitPayload, error) {
	r := codec.NewReader(buf)

	hasSegment, err := r.Bool()
	if err != nil {
		return CommitPayload{}, fmt.Errorf("meta: decode commit has_segment: %w", err)
	}

	var out CommitPayload
	if hasSegment {
		n, err := r.Uvarint()
		if err != nil {
			return CommitPayload{}, fmt.Errorf("meta: decode commit segment length: %w", err)
		}
		block, err := r.Bytes(int(n))
		if err != nil {
			return CommitPayload{}, fmt.Errorf("meta: decode commit segment block: %w", err)
		}
		seg, err := segment.Decode(sch, block)
		if err != nil {
			return CommitPayload{}, fmt.Errorf("meta: decode commit segment: %w", err)
		}
		out.Segment = seg
	}

	n, err := r.Uvarint()
	if err != nil {
		return CommitPayload{}, fmt.Errorf("meta: decode commit kill count: %w", err)
	}
	out.KillList = make([]uint64, n)
	for i := range out.KillList {
		if out.KillList[i], err = r.Uvarint(); err != nil {
			return CommitPayload{}, fmt.Errorf("meta: decode commit kill id %d: %w", i, err)
		}
	}

	return out, nil
}
