// Package schema describes the fixed-width row shape an index's documents
// are stored under (spec §3 "Row"), plus the fields a document's text is
// tokenized from. It is deliberately thin: tokenization, dictionary, and
// field-filter behavior are external collaborators consumed via interfaces
// (spec §1 "Explicitly out of scope"); this package only owns the
// structural description of a row and the hash that lets the engine detect
// a schema change between the settings on disk and the settings requested
// at open time.
package schema

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// AttrType enumerates the attribute cell kinds a row may carry.
type AttrType int

const (
	AttrUint32 AttrType = iota
	AttrInt64
	AttrFloat
	AttrBool
	AttrString  // blob-pool reference
	AttrJSON    // blob-pool reference
	AttrMVA32   // blob-pool reference, multi-valued uint32 set
	AttrMVA64   // blob-pool reference, multi-valued int64 set
	AttrColumnar
)

// IsBlobRef reports whether a cell of this type stores an offset into the
// segment/chunk blob pool rather than an inline fixed-width value.
func (t AttrType) IsBlobRef() bool {
	switch t {
	case AttrString, AttrJSON, AttrMVA32, AttrMVA64:
		return true
	default:
		return false
	}
}

// CellWidth returns the fixed in-row byte width of this attribute type.
// Blob-ref types store a 16-byte offset+length pair in the row itself; the
// payload lives in the blob pool.
func (t AttrType) CellWidth() int {
	if t.IsBlobRef() {
		return 16 // offset uint64 + length uint64
	}
	switch t {
	case AttrUint32, AttrBool:
		return 4
	case AttrInt64, AttrFloat:
		return 8
	case AttrColumnar:
		return 0 // stored entirely out-of-row
	default:
		return 8
	}
}

// Attribute describes one named, typed cell in a row.
type Attribute struct {
	Name   string
	Type   AttrType
	Engine string // storage engine hint for AttrColumnar ("" for in-row)
}

// Field describes one tokenized text field a document may carry. Fields
// are not attributes: they produce Hits via the Tokenizer collaborator and
// are not stored in the row itself unless a docstore is configured.
type Field struct {
	Name string
	// WeightBucket groups fields that share a ranking weight bucket for
	// proximity/BM25F-style rankers (spec §4.9).
	WeightBucket int
}

// Schema is the structural description of every row an index stores: its
// attributes (in row order, fixed stride) and its tokenized text fields (in
// field-index order, the FieldIndex a Hit's packed position refers to).
type Schema struct {
	Attributes []Attribute
	Fields     []Field

	// DocIDAttr names the distinguished attribute holding the document id
	// (spec §3 "Row": "one distinguished attribute is the document id").
	DocIDAttr string
}

// AttrIndex returns the position of name in Attributes, or -1 if absent.
func (s *Schema) AttrIndex(name string) int {
	for i, a := range s.Attributes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// FieldIndex returns the position of name in Fields, or -1 if absent.
func (s *Schema) FieldIndex(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// RowStride returns the total fixed-width byte size of one in-row tuple,
// excluding AttrColumnar cells which live entirely outside row storage.
func (s *Schema) RowStride() int {
	n := 0
	for _, a := range s.Attributes {
		n += a.Type.CellWidth()
	}
	return n
}

// Fingerprint hashes the schema's structural shape (attribute names, types,
// engines, field names, weight buckets, and the docid attribute) with
// xxhash so an Accumulator bound at commit time can detect that the index's
// schema changed underneath it (spec §4.3 "schema mismatch at commit is an
// error") without comparing full struct values on every commit.
func (s *Schema) Fingerprint() uint64 {
	h := xxhash.New()
	fmt.Fprintf(h, "docid:%s;", s.DocIDAttr)
	for _, a := range s.Attributes {
		fmt.Fprintf(h, "a:%s:%d:%s;", a.Name, a.Type, a.Engine)
	}
	for _, f := range s.Fields {
		fmt.Fprintf(h, "f:%s:%d;", f.Name, f.WeightBucket)
	}
	return h.Sum64()
}

// Clone returns a deep copy, used when an Accumulator captures the schema
// fingerprint's source shape at bind time separately from the live index
// schema, which Reconfigure may later replace.
func (s *Schema) Clone() *Schema {
	out := &Schema{
		DocIDAttr:  s.DocIDAttr,
		Attributes: append([]Attribute(nil), s.Attributes...),
		Fields:     append([]Field(nil), s.Fields...),
	}
	return out
}
