package update

import (
	"fmt"

	"github.com/ignitedb/ignite/pkg/codec"
)

// valueTag distinguishes which field of a Value was set, so DecodeBatch
// can reconstruct the same union without guessing from nil-ness of a
// zero-length slice.
type valueTag uint8

const (
	valueNone valueTag = iota
	valueRaw
	valueBlob
	valueJSON
)

// EncodeBatch serializes batch into the opaque payload the transaction
// log stores for a RecordUpdate entry (spec §4.8 step 6, §4.10 "Recovery
// / replay"). Replay decodes it back into a Batch and re-runs Apply.
func EncodeBatch(batch Batch) []byte {
	w := codec.NewWriter(256)
	w.Bool(batch.Strict)

	w.Uvarint(uint64(len(batch.Attributes)))
	for _, name := range batch.Attributes {
		writeString(w, name)
	}

	w.Uvarint(uint64(len(batch.DocIDs)))
	for _, id := range batch.DocIDs {
		w.Uvarint(id)
	}

	for _, row := range batch.Values {
		for _, v := range row {
			writeValue(w, v)
		}
	}

	return w.Buf()
}

// DecodeBatch reconstructs a Batch previously serialized by EncodeBatch.
func DecodeBatch(buf []byte) (Batch, error) {
	r := codec.NewReader(buf)

	strict, err := r.Bool()
	if err != nil {
		return Batch{}, fmt.Errorf("update: decode strict flag: %w", err)
	}

	nAttrs, err := r.Uvarint()
	if err != nil {
		return Batch{}, fmt.Errorf("update: decode attribute count: %w", err)
	}
	attrs := make([]string, nAttrs)
	for i := range attrs {
		s, err := readString(r)
		if err != nil {
			return Batch{}, fmt.Errorf("update: decode attribute %d: %w", i, err)
		}
		attrs[i] = s
	}

	nDocs, err := r.Uvarint()
	if err != nil {
		return Batch{}, fmt.Errorf("update: decode doc count: %w", err)
	}
	docIDs := make([]uint64, nDocs)
	for i := range docIDs {
		id, err := r.Uvarint()
		if err != nil {
			return Batch{}, fmt.Errorf("update: decode doc id %d: %w", i, err)
		}
		docIDs[i] = id
	}

	values := make([][]Value, nDocs)
	for d := range values {
		row := make([]Value, nAttrs)
		for a := range row {
			v, err := readValue(r)
			if err != nil {
				return Batch{}, fmt.Errorf("update: decode value [%d][%d]: %w", d, a, err)
			}
			row[a] = v
		}
		values[d] = row
	}

	return Batch{Attributes: attrs, DocIDs: docIDs, Values: values, Strict: strict}, nil
}

func writeString(w *codec.Writer, s string) {
	b := []byte(s)
	w.Uvarint(uint64(len(b)))
	w.Bytes(b)
}

func readString(r *codec.Reader) (string, error) {
	n, err := r.Uvarint()
	if err != nil {
		return "", err
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeValue(w *codec.Writer, v Value) {
	switch {
	case v.JSON != nil:
		w.Bytes([]byte{byte(valueJSON)})
		w.Uvarint(uint64(len(v.JSON)))
		w.Bytes(v.JSON)
	case v.Blob != nil:
		w.Bytes([]byte{byte(valueBlob)})
		w.Uvarint(uint64(len(v.Blob)))
		w.Bytes(v.Blob)
	case v.Raw != nil:
		w.Bytes([]byte{byte(valueRaw)})
		w.Uvarint(uint64(len(v.Raw)))
		w.Bytes(v.Raw)
	default:
		w.Bytes([]byte{byte(valueNone)})
	}
}

func readValue(r *codec.Reader) (Value, error) {
	tagB, err := r.Bytes(1)
	if err != nil {
		return Value{}, err
	}
	tag := valueTag(tagB[0])
	if tag == valueNone {
		return Value{}, nil
	}
	n, err := r.Uvarint()
	if err != nil {
		return Value{}, err
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return Value{}, err
	}
	cp := append([]byte(nil), b...)
	switch tag {
	case valueRaw:
		return Value{Raw: cp}, nil
	case valueBlob:
		return Value{Blob: cp}, nil
	case valueJSON:
		return Value{JSON: cp}, nil
	default:
		return Value{}, fmt.Errorf("update: unknown value tag %d", tag)
	}
}
