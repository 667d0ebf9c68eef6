package query

import (
	"math"

	"github.com/ignitedb/ignite/pkg/codec"
)

// RankMode selects which ranker a query uses (spec §4.9 "build a ranker
// from the query tree (one of: none, wordcount, proximity+BM25,
// BM25-only, proximity, matchany, fieldmask, sph04, expression, export,
// plugin)"). This package implements the first seven directly, since they
// only need the per-term hit data Eval already materializes; sph04,
// expression, export and plugin have no RankMode value here, since they
// need either a user expression compiler or an external scoring plugin
// this core does not own. Any RankMode outside the seven constants below
// is scored as RankProximityBM25.
type RankMode int

const (
	RankNone RankMode = iota
	RankWordCount
	RankProximityBM25
	RankBM25Only
	RankProximity
	RankMatchAny
	RankFieldMask
)

// scoredRow is one row's ranked match within a shard, still addressed
// by shard + row id (not yet materialized into a standalone Match).
type scoredRow struct {
	Shard  Shard
	RowID  uint32
	Weight float64
}

// rankRows scores every surviving row in rows according to mode and
// returns them as scoredRow values, unsorted (the caller's top-K sorter
// does the ordering).
func rankRows(rows rowSet, mode RankMode, shard Shard, ctx *evalContext, fieldWeights []float64) []scoredRow {
	corpusSize := float64(shard.RowCount)
	if corpusSize < 1 {
		corpusSize = 1
	}

	docFreq := make(map[int]float64, len(ctx.terms))
	for termIdx, idx := range ctx.terms {
		docFreq[termIdx] = float64(len(idx))
	}

	out := make([]scoredRow, 0, len(rows))
	for row, rh := range rows {
		var weight float64
		switch mode {
		case RankNone:
			weight = 1
		case RankWordCount:
			weight = float64(len(rh.ByTerm))
		case RankMatchAny:
			weight = float64(len(rh.ByTerm))
		case RankFieldMask:
			weight = float64(popcount64(mergedFieldsMask(rh)))
		case RankProximity:
			weight = proximityScore(rh)
		case RankBM25Only:
			weight = bm25Score(rh, docFreq, corpusSize, fieldWeights)
		case RankProximityBM25:
			fallthrough
		default:
			weight = proximityScore(rh)*0.1 + bm25Score(rh, docFreq, corpusSize, fieldWeights)
		}
		out = append(out, scoredRow{Shard: shard, RowID: row, Weight: weight})
	}
	return out
}

func mergedFieldsMask(rh *rowHits) uint64 {
	var mask uint64
	for _, th := range rh.ByTerm {
		mask |= th.FieldsMask
	}
	return mask
}

func popcount64(v uint64) int {
	n := 0
	for v != 0 {
		v &= v - 1
		n++
	}
	return n
}

// bm25Score sums Okapi BM25 per term (spec's TF/IDF, BM25 factors),
// treating every row's document length as uniform (a corpus average-free
// approximation) since this core does not maintain a separate field
// length statistic per row; BM25F weighting is approximated by summing
// per-field hit counts through fieldWeights when supplied.
func bm25Score(rh *rowHits, docFreq map[int]float64, corpusSize float64, fieldWeights []float64) float64 {
	const k1 = 1.2
	const b = 0.75
	var score float64
	for termIdx, th := range rh.ByTerm {
		df := docFreq[termIdx]
		if df <= 0 {
			df = 1
		}
		idf := math.Log(1 + (corpusSize-df+0.5)/(df+0.5))
		tf := float64(len(th.Positions))
		weighted := tf
		if len(fieldWeights) > 0 {
			weighted = weightedTermFrequency(th, fieldWeights)
		}
		score += idf * (weighted * (k1 + 1)) / (weighted + k1*(1-b+b))
	}
	return score
}

func weightedTermFrequency(th termHits, fieldWeights []float64) float64 {
	var total float64
	for _, p := range th.Positions {
		f, _, _ := codec.UnpackPosition(p)
		w := 1.0
		if f >= 0 && f < len(fieldWeights) {
			w = fieldWeights[f]
		}
		total += w
	}
	return total
}

// proximityScore rewards terms occurring close together in the same
// field, the "aggregate term closeness" family of factors (spec GLOSSARY
// "ATC"), approximated here as the inverse of the smallest window
// spanning one occurrence of every matched term.
func proximityScore(rh *rowHits) float64 {
	if len(rh.ByTerm) < 2 {
		return 0
	}
	lists := make([][]fieldPos, 0, len(rh.ByTerm))
	for _, th := range rh.ByTerm {
		lists = append(lists, unpackPositions(th.Positions))
	}

	best := -1
	for _, anchor := range lists[0] {
		lo, hi := anchor.Pos, anchor.Pos
		ok := true
		for _, other := range lists[1:] {
			found := false
			for _, p := range other {
				if p.Field != anchor.Field {
					continue
				}
				if p.Pos < lo {
					lo = p.Pos
				}
				if p.Pos > hi {
					hi = p.Pos
				}
				found = true
			}
			if !found {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		span := int(hi - lo)
		if best < 0 || span < best {
			best = span
		}
	}
	if best < 0 {
		return 0
	}
	return 1.0 / float64(1+best)
}
