package schema

import (
	"encoding/binary"
	"math"
)

// BlobRef is the fixed 16-byte in-row representation of a blob-pool
// reference: a byte offset and length into the owning segment/chunk's blob
// arena (spec §3 "Blob pool": "Rows reference blobs by offset").
type BlobRef struct {
	Offset uint64
	Length uint64
}

// Offsets returns the cumulative byte offset of each attribute within one
// row tuple, in schema order. AttrColumnar attributes get offset -1 since
// they are stored entirely outside row storage.
func (s *Schema) Offsets() []int {
	offsets := make([]int, len(s.Attributes))
	pos := 0
	for i, a := range s.Attributes {
		if a.Type == AttrColumnar {
			offsets[i] = -1
			continue
		}
		offsets[i] = pos
		pos += a.Type.CellWidth()
	}
	return offsets
}

// PutUint32 writes v at byte offset off within row.
func PutUint32(row []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(row[off:off+4], v)
}

// GetUint32 reads a uint32 at byte offset off within row.
func GetUint32(row []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(row[off : off+4])
}

// PutUint64 writes v at byte offset off within row.
func PutUint64(row []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(row[off:off+8], v)
}

// GetUint64 reads a uint64 at byte offset off within row.
func GetUint64(row []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(row[off : off+8])
}

// PutFloat64 writes v's bit pattern at byte offset off within row.
func PutFloat64(row []byte, off int, v float64) {
	binary.LittleEndian.PutUint64(row[off:off+8], math.Float64bits(v))
}

// GetFloat64 reads a float64 at byte offset off within row.
func GetFloat64(row []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(row[off : off+8]))
}

// PutBool writes v as a single byte (widened to the 4-byte cell width) at
// byte offset off within row.
func PutBool(row []byte, off int, v bool) {
	if v {
		row[off] = 1
	} else {
		row[off] = 0
	}
	row[off+1], row[off+2], row[off+3] = 0, 0, 0
}

// GetBool reads a bool at byte offset off within row.
func GetBool(row []byte, off int) bool {
	return row[off] != 0
}

// PutBlobRef writes a BlobRef at byte offset off within row (16 bytes:
// offset then length).
func PutBlobRef(row []byte, off int, ref BlobRef) {
	binary.LittleEndian.PutUint64(row[off:off+8], ref.Offset)
	binary.LittleEndian.PutUint64(row[off+8:off+16], ref.Length)
}

// GetBlobRef reads a BlobRef at byte offset off within row.
func GetBlobRef(row []byte, off int) BlobRef {
	return BlobRef{
		Offset: binary.LittleEndian.Uint64(row[off : off+8]),
		Length: binary.LittleEndian.Uint64(row[off+8 : off+16]),
	}
}

// DocID extracts the document id from a row tuple, widening whichever
// fixed-width integer type the docid attribute uses to a uint64. Callers
// must ensure the docid attribute is AttrUint32 or AttrInt64; any other
// type is a configuration error caught at schema-validation time, not here.
func (s *Schema) DocID(row []byte) uint64 {
	idx := s.AttrIndex(s.DocIDAttr)
	off := s.Offsets()[idx]
	switch s.Attributes[idx].Type {
	case AttrUint32:
		return uint64(GetUint32(row, off))
	default:
		return GetUint64(row, off)
	}
}

// PutDocID writes a document id into a row tuple using the docid
// attribute's configured width.
func (s *Schema) PutDocID(row []byte, docID uint64) {
	idx := s.AttrIndex(s.DocIDAttr)
	off := s.Offsets()[idx]
	switch s.Attributes[idx].Type {
	case AttrUint32:
		PutUint32(row, off, uint32(docID))
	default:
		PutUint64(row, off, docID)
	}
}
