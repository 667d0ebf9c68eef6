// Package accumulator implements the per-writer transaction buffer that
// collects hits and row data between commits and, on Commit, produces one
// immutable RAM segment (spec §2 component 3, §4.3).
package accumulator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/codec"
	"github.com/ignitedb/ignite/pkg/collab"
	"github.com/ignitedb/ignite/pkg/schema"
)

// ErrBoundToAnotherIndex is returned when a writer handle already has an
// open transaction against one index and addresses a second before
// committing or rolling back the first (spec §4.3 "a writer addressing a
// second index before committing the first is rejected").
var ErrBoundToAnotherIndex = errors.New("accumulator: current txn is working with another index")

// ErrSchemaMismatch is returned by Commit when the index's schema has
// changed since this accumulator was bound (spec §4.3 "Schema mismatch at
// commit is an error").
var ErrSchemaMismatch = errors.New("accumulator: schema mismatch at commit")

// bufferedDoc is one AddDocument call's row, prior to dedup.
type bufferedDoc struct {
	docID   uint64
	row     []byte
	replace bool
	seq     int // original insertion order, for stable dedup
}

// bufferedHit is one tokenized occurrence, keyed by the local buffer index
// of the document it belongs to (not yet a final segment rowid).
type bufferedHit struct {
	localDoc int
	wordID   uint64
	keyword  []byte
	position uint32
}

// Accumulator is a per-writer, per-index transaction buffer
// (spec §4.3 "Contract").
type Accumulator struct {
	schema          *schema.Schema
	boundFingerprint uint64
	indexIdentity   string // opaque identity of the index this accumulator is bound to
	dict            collab.Dictionary
	checkpointEvery uint32
	bloomPerEntry   uint8
	bloomHashes     uint8

	docs     []bufferedDoc
	hits     []bufferedHit
	blobPool []byte
	killList map[uint64]struct{}

	nextSeq int
}

// Config carries the fixed parameters an Accumulator needs for the
// lifetime of one transaction.
type Config struct {
	Schema          *schema.Schema
	Dict            collab.Dictionary
	IndexIdentity   string
	CheckpointEvery uint32
	BloomPerEntry   uint8
	BloomHashes     uint8
}

// New binds a fresh accumulator to one index, capturing the schema
// fingerprint at bind time for later mismatch detection.
func New(cfg Config) *Accumulator {
	return &Accumulator{
		schema:           cfg.Schema,
		boundFingerprint: cfg.Schema.Fingerprint(),
		indexIdentity:    cfg.IndexIdentity,
		dict:             cfg.Dict,
		checkpointEvery:  cfg.CheckpointEvery,
		bloomPerEntry:    cfg.BloomPerEntry,
		bloomHashes:      cfg.BloomHashes,
		killList:         make(map[uint64]struct{}),
	}
}

// CheckIndexIdentity rejects use of this accumulator against a different
// index than the one it was bound to.
func (a *Accumulator) CheckIndexIdentity(identity string) error {
	if a.indexIdentity != identity {
		return ErrBoundToAnotherIndex
	}
	return nil
}

// AddDocument appends one document's row and resolved hits to the buffer.
// hits must already have word ids/keywords resolved via the Dictionary
// collaborator and positions packed via codec.PackPosition (construct each
// one with NewHit); tokenization itself is the caller's (engine's)
// responsibility since it also needs field-filter and per-field weighting
// decisions outside this package's scope (spec §4.3 "add_document(doc,
// replace, hits)").
func (a *Accumulator) AddDocument(docID uint64, row []byte, replace bool, hits ...HitInput) {
	localDoc := len(a.docs)
	a.docs = append(a.docs, bufferedDoc{docID: docID, row: row, replace: replace, seq: a.nextSeq})
	a.nextSeq++

	for _, h := range hits {
		a.hits = append(a.hits, bufferedHit{localDoc: localDoc, wordID: h.WordID, keyword: h.Keyword, position: h.Position})
	}

	if replace {
		a.killList[docID] = struct{}{}
	}
}

// HitInput is the caller-facing shape for AddDocument's hit list, named
// distinctly from the internal bufferedHit so callers don't need to
// import unexported fields.
type HitInput struct {
	WordID   uint64
	Keyword  []byte
	Position uint32
}

// NewHit constructs a HitInput; exported as a function rather than the
// bare struct so the field layout can evolve without breaking callers
// that only ever construct via this helper.
func NewHit(wordID uint64, keyword []byte, position uint32) HitInput {
	return HitInput{WordID: wordID, Keyword: keyword, Position: position}
}

// DeleteDocument appends ids to the kill list (spec §4.3
// "delete_document(ids[])").
func (a *Accumulator) DeleteDocument(ids ...uint64) {
	for _, id := range ids {
		a.killList[id] = struct{}{}
	}
}

// AppendBlob appends a variable-length attribute payload to the
// accumulator's shared blob arena and returns its reference. Callers build
// a document's row bytes with this ref already embedded via
// schema.PutBlobRef before calling AddDocument.
func (a *Accumulator) AppendBlob(payload []byte) schema.BlobRef {
	ref := schema.BlobRef{Offset: uint64(len(a.blobPool)), Length: uint64(len(payload))}
	a.blobPool = append(a.blobPool, payload...)
	return ref
}

// KillList returns every doc id this transaction will delete on commit:
// explicit deletes plus the pre-existing copy of every replaced doc
// (spec §4.3 "kill list: existing docs to delete on commit, including the
// pre-existing copy of every replaced doc").
func (a *Accumulator) KillList() []uint64 {
	out := make([]uint64, 0, len(a.killList))
	for id := range a.killList {
		out = append(out, id)
	}
	return out
}

// Empty reports whether this transaction has no buffered work at all.
func (a *Accumulator) Empty() bool {
	return len(a.docs) == 0 && len(a.killList) == 0
}

// Commit performs the dedup/sort/emit pipeline and produces one immutable
// RAM segment (spec §4.3 "commit() -> RamSegment | None"). currentSchema is
// the index's live schema at commit time; if its fingerprint no longer
// matches the one captured at bind time, Commit fails with
// ErrSchemaMismatch rather than silently emitting a segment against a
// stale layout. If no documents were buffered (only deletes), Commit
// returns a nil segment and no error — the caller applies KillList()
// itself.
func (a *Accumulator) Commit(currentSchema *schema.Schema) (*segment.RamSegment, error) {
	if currentSchema.Fingerprint() != a.boundFingerprint {
		return nil, fmt.Errorf("%w: bound %d, current %d", ErrSchemaMismatch, a.boundFingerprint, currentSchema.Fingerprint())
	}

	if len(a.docs) == 0 {
		return nil, nil
	}

	finalRowOf, survivors := a.dedup()
	if len(survivors) == 0 {
		return nil, nil
	}

	stride := a.schema.RowStride()
	rows := make([]byte, stride*len(survivors))
	for newRowID, localDoc := range survivors {
		copy(rows[newRowID*stride:(newRowID+1)*stride], a.docs[localDoc].row)
	}

	mode := codec.NumericDict
	if a.dict != nil {
		mode = a.dict.Mode()
	}

	sortedHits := a.sortedHitsForEmit(mode, finalRowOf)
	postings := emitPostings(mode, sortedHits, a.checkpointEvery, a.bloomPerEntry, a.bloomHashes)

	return segment.New(a.schema, uint32(len(survivors)), rows, a.blobPool, postings), nil
}

// dedup resolves duplicate doc ids within one transaction buffer
// (spec §4.3 step 1). Last-insertion-order wins for both plain duplicate
// inserts and explicit replaces within the same commit: entries are sorted
// by (doc id, seq) and every entry but the last for a given doc id is
// dropped from the surviving set.
//
// It returns finalRowOf, mapping each surviving localDoc index to its
// compacted final rowid, and survivors, the ordered list of localDoc
// indices that made the cut (in final-rowid order).
func (a *Accumulator) dedup() (finalRowOf map[int]uint32, survivors []int) {
	order := make([]int, len(a.docs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		di, dj := a.docs[order[i]], a.docs[order[j]]
		if di.docID != dj.docID {
			return di.docID < dj.docID
		}
		return di.seq < dj.seq
	})

	finalRowOf = make(map[int]uint32, len(a.docs))
	survivors = make([]int, 0, len(a.docs))

	for i := 0; i < len(order); i++ {
		localDoc := order[i]
		isLastOfGroup := i == len(order)-1 || a.docs[order[i+1]].docID != a.docs[localDoc].docID
		if !isLastOfGroup {
			continue // superseded by a later buffered entry with the same doc id
		}
		finalRowOf[localDoc] = uint32(len(survivors))
		survivors = append(survivors, localDoc)
	}

	return finalRowOf, survivors
}

type emitHit struct {
	wordID  uint64
	keyword []byte
	rowID   uint32
	pos     uint32
}

// sortedHitsForEmit drops hits belonging to a deduped-away document and
// sorts the remainder by (word_id, row_id, position) in numeric-dict mode
// or (keyword_bytes, row_id, position) in word-dict mode
// (spec §4.3 step 2).
func (a *Accumulator) sortedHitsForEmit(mode codec.DictMode, finalRowOf map[int]uint32) []emitHit {
	out := make([]emitHit, 0, len(a.hits))
	for _, h := range a.hits {
		rowID, ok := finalRowOf[h.localDoc]
		if !ok {
			continue
		}
		out = append(out, emitHit{wordID: h.wordID, keyword: h.keyword, rowID: rowID, pos: h.position})
	}

	sort.Slice(out, func(i, j int) bool {
		if mode == codec.NumericDict {
			if out[i].wordID != out[j].wordID {
				return out[i].wordID < out[j].wordID
			}
		} else {
			c := compareBytes(out[i].keyword, out[j].keyword)
			if c != 0 {
				return c < 0
			}
		}
		if out[i].rowID != out[j].rowID {
			return out[i].rowID < out[j].rowID
		}
		return out[i].pos < out[j].pos
	})

	return out
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}
