package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignitedb/ignite/internal/accumulator"
	"github.com/ignitedb/ignite/internal/dataset"
	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/codec"
	"github.com/ignitedb/ignite/pkg/schema"
)

type wordDict struct{}

func (wordDict) WordID(kw []byte) (uint64, bool) { return 0, false }
func (wordDict) Mode() codec.DictMode            { return codec.WordDict }
func (wordDict) HasMorphology() bool             { return false }
func (wordDict) IsStopword(kw []byte) bool       { return false }
func (wordDict) SettingsHash() uint64            { return 0 }

func titleHit(keyword string, inFieldPos uint32, fieldEnd bool) accumulator.HitInput {
	return accumulator.NewHit(0, []byte(keyword), codec.PackPosition(0, inFieldPos, fieldEnd))
}

func buildTestSchema() *schema.Schema {
	return &schema.Schema{
		DocIDAttr:  "id",
		Attributes: []schema.Attribute{{Name: "id", Type: schema.AttrUint32}},
		Fields:     []schema.Field{{Name: "title"}},
	}
}

func buildTestRow(sch *schema.Schema, id uint32) []byte {
	buf := make([]byte, sch.RowStride())
	schema.PutUint32(buf, sch.Offsets()[0], id)
	return buf
}

// buildQueryDataset commits one segment with two documents:
//
//	doc 1: "quick brown fox"
//	doc 2: "brown fox jumps"
func buildQueryDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	sch := buildTestSchema()
	acc := accumulator.New(accumulator.Config{Schema: sch, Dict: wordDict{}, IndexIdentity: "idx1", CheckpointEvery: 2})

	acc.AddDocument(1, buildTestRow(sch, 1), false,
		titleHit("quick", 0, false), titleHit("brown", 1, false), titleHit("fox", 2, true))
	acc.AddDocument(2, buildTestRow(sch, 2), false,
		titleHit("brown", 0, false), titleHit("fox", 1, false), titleHit("jumps", 2, true))

	seg, err := acc.Commit(sch)
	require.NoError(t, err)
	require.NotNil(t, seg)

	ds := dataset.New()
	ds.Publish(&dataset.Snapshot{RamSegments: []*segment.RamSegment{seg}})
	return ds
}

func TestExecuteAndMatchesBothDocs(t *testing.T) {
	ds := buildQueryDataset(t)
	sch := buildTestSchema()
	ex := &Executor{Schema: sch, PoolSize: 2}

	q := &Query{
		Tree:  And{Children: []Node{Term{TermIdx: 0}, Term{TermIdx: 1}}},
		Terms: []ResolvedTerm{{Keyword: []byte("brown")}, {Keyword: []byte("fox")}},
		Limit: 10,
	}

	res, err := ex.Execute(context.Background(), ds, q)
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)

	ids := map[uint64]bool{}
	for _, m := range res.Matches {
		ids[m.DocID] = true
	}
	require.True(t, ids[1])
	require.True(t, ids[2])
}

func TestExecutePhraseMatchesOnlyOrderedDoc(t *testing.T) {
	ds := buildQueryDataset(t)
	sch := buildTestSchema()
	ex := &Executor{Schema: sch, PoolSize: 2}

	q := &Query{
		Tree:  Phrase{TermIdxs: []int{0, 1}},
		Terms: []ResolvedTerm{{Keyword: []byte("quick")}, {Keyword: []byte("brown")}},
		Limit: 10,
	}

	res, err := ex.Execute(context.Background(), ds, q)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	require.Equal(t, uint64(1), res.Matches[0].DocID)
}

func TestExecuteAndNotExcludesDoc(t *testing.T) {
	ds := buildQueryDataset(t)
	sch := buildTestSchema()
	ex := &Executor{Schema: sch, PoolSize: 2}

	q := &Query{
		Tree: AndNot{
			Must:    Term{TermIdx: 0},
			MustNot: Term{TermIdx: 1},
		},
		Terms: []ResolvedTerm{{Keyword: []byte("fox")}, {Keyword: []byte("jumps")}},
		Limit: 10,
	}

	res, err := ex.Execute(context.Background(), ds, q)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	require.Equal(t, uint64(1), res.Matches[0].DocID)
}

func TestLookupKeywordMissReturnsNotFound(t *testing.T) {
	ds := buildQueryDataset(t)
	seg := ds.Load().RamSegments[0]

	_, found, err := LookupKeyword(&seg.Postings, []byte("nonexistent"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestGetKeywordsAggregatesDocAndHitCounts(t *testing.T) {
	ds := buildQueryDataset(t)
	seg := ds.Load().RamSegments[0]

	exp, found, err := LookupKeyword(&seg.Postings, []byte("fox"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(2), exp.Entry.DocCount)
}

// buildInfixDataset commits one segment with four documents titled
// "alpha", "beta", "alphanumeric", "numeric" in that doc-id order, matching
// spec §8 scenario 6's fixture.
func buildInfixDataset(t *testing.T) (*dataset.Dataset, *segment.Posting) {
	t.Helper()
	sch := buildTestSchema()
	acc := accumulator.New(accumulator.Config{
		Schema: sch, Dict: wordDict{}, IndexIdentity: "idx1",
		CheckpointEvery: 2, BloomPerEntry: 8, BloomHashes: 2,
	})

	titles := []string{"alpha", "beta", "alphanumeric", "numeric"}
	for i, title := range titles {
		acc.AddDocument(uint64(i+1), buildTestRow(sch, uint32(i+1)), false, titleHit(title, 0, true))
	}

	seg, err := acc.Commit(sch)
	require.NoError(t, err)

	ds := dataset.New()
	ds.Publish(&dataset.Snapshot{RamSegments: []*segment.RamSegment{seg}})
	return ds, &seg.Postings
}

// TestExpandInfixMatchesContainingKeywords exercises spec §8 scenario 6:
// a `*lpha*` infix query against {"alpha","beta","alphanumeric","numeric"}
// must match exactly "alpha" and "alphanumeric", pruned via the infix
// bloom filter before the linear scan (spec §4.9 "Prefix and infix
// expansion").
func TestExpandInfixMatchesContainingKeywords(t *testing.T) {
	_, p := buildInfixDataset(t)

	exps, truncated := ExpandInfix(p, []byte("lpha"), 2, 0)
	require.False(t, truncated)

	var matched []string
	for _, e := range exps {
		matched = append(matched, string(e.Entry.Keyword))
	}
	require.ElementsMatch(t, []string{"alpha", "alphanumeric"}, matched)
}

// TestExpandPrefixMatchesLeadingKeywords exercises the prefix-expansion
// half of spec §4.9's "Prefix and infix expansion": a `num*` prefix query
// must match only "numeric", not "alphanumeric" (which contains, but does
// not start with, "num").
func TestExpandPrefixMatchesLeadingKeywords(t *testing.T) {
	_, p := buildInfixDataset(t)

	exps, truncated := ExpandPrefix(p, []byte("num"), 0)
	require.False(t, truncated)

	var matched []string
	for _, e := range exps {
		matched = append(matched, string(e.Entry.Keyword))
	}
	require.Equal(t, []string{"numeric"}, matched)
}

// TestExecuteInfixQueryEndToEnd runs spec §8 scenario 6 through the full
// query executor rather than the raw expansion helper: resolving `*lpha*`
// to its matching keywords and Or-ing them together must return exactly
// docs 1 ("alpha") and 3 ("alphanumeric").
func TestExecuteInfixQueryEndToEnd(t *testing.T) {
	ds, p := buildInfixDataset(t)
	sch := buildTestSchema()
	ex := &Executor{Schema: sch, PoolSize: 2}

	exps, truncated := ExpandInfix(p, []byte("lpha"), 2, 0)
	require.False(t, truncated)
	require.Len(t, exps, 2)

	terms := make([]ResolvedTerm, len(exps))
	children := make([]Node, len(exps))
	for i, e := range exps {
		terms[i] = ResolvedTerm{Keyword: e.Entry.Keyword}
		children[i] = Term{TermIdx: i}
	}

	q := &Query{Tree: Or{Children: children}, Terms: terms, Limit: 10}
	res, err := ex.Execute(context.Background(), ds, q)
	require.NoError(t, err)

	ids := map[uint64]bool{}
	for _, m := range res.Matches {
		ids[m.DocID] = true
	}
	require.Equal(t, map[uint64]bool{1: true, 3: true}, ids)
}
