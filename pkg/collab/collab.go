// Package collab declares the external collaborator interfaces the core
// consumes but does not implement: tokenization, dictionary/morphology,
// and field filtering (spec §1 "Explicitly out of scope", §6 "Inputs from
// external collaborators"). Production tokenizers, stemmers, and stopword
// lists live outside this module; callers inject implementations when
// opening an index.
package collab

import "github.com/ignitedb/ignite/pkg/codec"

// Tokenizer turns one field's raw bytes into a stream of hits at a given
// field index. Clone must return an independent tokenizer safe for
// concurrent use by another goroutine (spec §6 "Clone(mode) -> Tokenizer").
type Tokenizer interface {
	Tokenize(fieldIndex int, fieldBytes []byte) ([]FieldHit, error)
	Clone(mode int) Tokenizer
	SettingsHash() uint64
}

// FieldHit is one tokenizer-produced occurrence prior to word-id
// resolution: a raw keyword plus its packed position, not yet carrying a
// WordID (the Dictionary resolves that).
type FieldHit struct {
	Keyword  []byte
	Position uint32
}

// Dictionary resolves keyword bytes to the numeric or interned identity the
// wordlist codec uses, and exposes morphology/stopword/wordform behavior
// consumed during tokenization and query parsing (spec §6 "Dictionary").
type Dictionary interface {
	WordID(keyword []byte) (uint64, bool)
	Mode() codec.DictMode
	HasMorphology() bool
	IsStopword(keyword []byte) bool
	SettingsHash() uint64
}

// FieldFilter transforms field bytes before indexing (isQuery=false) or
// before query parsing (isQuery=true), e.g. HTML stripping
// (spec §6 "FieldFilter").
type FieldFilter interface {
	Apply(fieldBytes []byte, isQuery bool) []byte
	Clone() FieldFilter
	SettingsHash() uint64
}
