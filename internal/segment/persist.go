package segment

import (
	"bytes"
	"fmt"

	"github.com/ignitedb/ignite/pkg/bitmap"
	"github.com/ignitedb/ignite/pkg/codec"
	"github.com/ignitedb/ignite/pkg/schema"
)

// Encode serializes s into one self-contained byte block suitable for
// writing into the `.ram` snapshot file (spec §4.10 "the `.ram` file
// contents" — "enough of the accumulator/RAM-segment state to reconstruct
// every live RAM segment without replaying the transaction log from
// scratch"). The block carries its own row count, dict mode, postings
// streams, checkpoints, infix bloom, and dead-row bitmap, so a whole `.ram`
// file is just a length-prefixed sequence of these blocks concatenated by
// internal/meta — the same "one chunk, one directory, but here one segment,
// one block" shape internal/diskchunk uses per-file.
func Encode(s *RamSegment) ([]byte, error) {
	s.rowsMu.RLock()
	rows := append([]byte(nil), s.rows...)
	blobs := append([]byte(nil), s.blobs...)
	s.rowsMu.RUnlock()

	w := codec.NewWriter(64 + len(rows) + len(blobs) +
		len(s.Postings.Wordlist) + len(s.Postings.Doclist) + len(s.Postings.Hitlist))

	w.Uvarint(uint64(s.rowCount))
	w.Uvarint(uint64(s.Postings.Mode))
	w.Uvarint(uint64(s.Postings.BloomWordsPerEntry))

	w.Uvarint(uint64(len(rows)))
	w.Bytes(rows)
	w.Uvarint(uint64(len(blobs)))
	w.Bytes(blobs)

	w.Uvarint(uint64(len(s.Postings.Wordlist)))
	w.Bytes(s.Postings.Wordlist)
	w.Uvarint(uint64(len(s.Postings.Doclist)))
	w.Bytes(s.Postings.Doclist)
	w.Uvarint(uint64(len(s.Postings.Hitlist)))
	w.Bytes(s.Postings.Hitlist)

	w.Uvarint(uint64(len(s.Postings.Checkpoints)))
	for _, cp := range s.Postings.Checkpoints {
		w.Uvarint(cp.WordID)
		w.Uvarint(uint64(len(cp.Keyword)))
		w.Bytes(cp.Keyword)
		w.Uvarint(uint64(cp.WordlistOffset))
		w.Uvarint(zigzagEncode(cp.DoclistOffset))
	}

	w.Uvarint(uint64(len(s.Postings.InfixBloom)))
	for _, word := range s.Postings.InfixBloom {
		w.Uvarint(word)
	}

	var deadBuf bytes.Buffer
	if _, err := s.deadmap.WriteTo(&deadBuf); err != nil {
		return nil, fmt.Errorf("segment: encode deadmap: %w", err)
	}
	w.Uvarint(uint64(deadBuf.Len()))
	w.Bytes(deadBuf.Bytes())

	return w.Buf(), nil
}

// Decode reconstructs a RamSegment from a block written by Encode, against
// sch (the schema in force when the segment is reloaded — callers must
// have already checked it matches the schema in force when the segment was
// saved; a schema mismatch at index-open time is an INDEX_SCHEMA_MISMATCH
// error one level up, in internal/meta).
func Decode(sch *schema.Schema, buf []byte) (*RamSegment, error) {
	r := codec.NewReader(buf)

	rowCount, err := r.Uvarint()
	if err != nil {
		return nil, fmt.Errorf("segment: decode row count: %w", err)
	}
	mode, err := r.Uvarint()
	if err != nil {
		return nil, fmt.Errorf("segment: decode mode: %w", err)
	}
	bloomPerEntry, err := r.Uvarint()
	if err != nil {
		return nil, fmt.Errorf("segment: decode bloom words per entry: %w", err)
	}

	rows, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("segment: decode rows: %w", err)
	}
	blobs, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("segment: decode blobs: %w", err)
	}
	wordlist, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("segment: decode wordlist: %w", err)
	}
	doclist, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("segment: decode doclist: %w", err)
	}
	hitlist, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("segment: decode hitlist: %w", err)
	}

	cpCount, err := r.Uvarint()
	if err != nil {
		return nil, fmt.Errorf("segment: decode checkpoint count: %w", err)
	}
	checkpoints := make([]codec.Checkpoint, cpCount)
	for i := range checkpoints {
		wordID, err := r.Uvarint()
		if err != nil {
			return nil, fmt.Errorf("segment: decode checkpoint word id: %w", err)
		}
		kw, err := readBlock(r)
		if err != nil {
			return nil, fmt.Errorf("segment: decode checkpoint keyword: %w", err)
		}
		wlOff, err := r.Uvarint()
		if err != nil {
			return nil, fmt.Errorf("segment: decode checkpoint wordlist offset: %w", err)
		}
		dlOff, err := r.Uvarint()
		if err != nil {
			return nil, fmt.Errorf("segment: decode checkpoint doclist offset: %w", err)
		}
		checkpoints[i] = codec.Checkpoint{
			WordID: wordID, Keyword: kw,
			WordlistOffset: int(wlOff), DoclistOffset: zigzagDecode(dlOff),
		}
	}

	bloomLen, err := r.Uvarint()
	if err != nil {
		return nil, fmt.Errorf("segment: decode infix bloom length: %w", err)
	}
	bloom := make([]uint64, bloomLen)
	for i := range bloom {
		bloom[i], err = r.Uvarint()
		if err != nil {
			return nil, fmt.Errorf("segment: decode infix bloom word: %w", err)
		}
	}

	deadBuf, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("segment: decode deadmap: %w", err)
	}

	postings := Posting{
		Mode: codec.DictMode(mode), Wordlist: wordlist, Doclist: doclist, Hitlist: hitlist,
		Checkpoints: checkpoints, BloomWordsPerEntry: int(bloomPerEntry), InfixBloom: bloom,
	}

	s := New(sch, uint32(rowCount), rows, blobs, postings)

	if len(deadBuf) > 0 {
		dm := bitmap.New()
		if _, err := dm.ReadFrom(bytes.NewReader(deadBuf)); err != nil {
			return nil, fmt.Errorf("segment: decode deadmap contents: %w", err)
		}
		s.deadmap = dm
		s.aliveRows.Store(int64(rowCount) - int64(dm.PopCount()))
		s.BuildDocToRowID()
	}

	return s, nil
}

func readBlock(r *codec.Reader) ([]byte, error) {
	n, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func zigzagEncode(v int64) uint64 { return uint64((v << 1) ^ (v >> 63)) }
func zigzagDecode(v uint64) int64 { return int64(v>>1) ^ -int64(v&1) }
