package query

import "github.com/ignitedb/ignite/pkg/codec"

// Node is one query tree node. Each node kind is a plain struct with its
// own eval method, called through this interface; there is no shared base
// type between the kinds.
type Node interface {
	eval(ctx *evalContext) rowSet
}

// Term matches the single keyword at index TermIdx of Query.Terms, which
// the caller resolves before calling Execute.
type Term struct{ TermIdx int }

// And requires every child to match the same row.
type And struct{ Children []Node }

// Or matches a row present in any child.
type Or struct{ Children []Node }

// Phrase requires every term, in order, at consecutive in-field
// positions (slop == 0) within the same field.
type Phrase struct {
	TermIdxs []int
	Slop     int
}

// Proximity requires every term within MaxDistance positions of each
// other in the same field, any order.
type Proximity struct {
	TermIdxs    []int
	MaxDistance int
}

// Near requires Left before Right, both within MaxDistance positions, in
// the same field, left occurring first (directional proximity).
type Near struct {
	Left, Right Node
	MaxDistance int
}

// Before requires Left strictly before Right in the same field, with no
// distance bound.
type Before struct{ Left, Right Node }

// AndNot matches Must rows that do not also match MustNot.
type AndNot struct{ Must, MustNot Node }

// Maybe requires Must; where Should also matches, its hits are merged in
// for ranking purposes, but Should's absence does not exclude the row.
type Maybe struct{ Must, Should Node }

// Quorum matches a row if at least Min of Children match it.
type Quorum struct {
	Children []Node
	Min      int
}

// Zone restricts Child's matches to hits falling inside a span delimited
// by the StartTermIdx/EndTermIdx marker keywords in the same field (spec
// §4.9 "Zones").
type Zone struct {
	StartTermIdx, EndTermIdx int
	Child                    Node
}

// Sentence and Paragraph restrict Child's matches to hits that fall
// within the same sentence/paragraph span, modeled as a Zone delimited by
// the tokenizer's sentence/paragraph boundary marker keywords (the same
// zone_check machinery zones use generally, with the boundary markers
// being special rather than user-supplied).
type Sentence struct {
	StartTermIdx, EndTermIdx int
	Child                    Node
}

type Paragraph struct {
	StartTermIdx, EndTermIdx int
	Child                    Node
}

// rowHits is one matched row's merged per-term hit data within a shard.
type rowHits struct {
	Row    uint32
	ByTerm map[int]termHits
}

// rowSet maps row id to its accumulated hit data for one shard evaluation.
type rowSet map[uint32]*rowHits

func newRowHits(row uint32) *rowHits {
	return &rowHits{Row: row, ByTerm: make(map[int]termHits)}
}

func (h *rowHits) merge(o *rowHits) {
	for k, v := range o.ByTerm {
		h.ByTerm[k] = v
	}
}

func (t Term) eval(ctx *evalContext) rowSet {
	out := make(rowSet)
	idx := ctx.terms[t.TermIdx]
	if idx == nil {
		return out
	}
	for row, th := range idx {
		rh := newRowHits(row)
		rh.ByTerm[t.TermIdx] = th
		out[row] = rh
	}
	return out
}

func (n And) eval(ctx *evalContext) rowSet {
	if len(n.Children) == 0 {
		return rowSet{}
	}
	acc := n.Children[0].eval(ctx)
	for _, c := range n.Children[1:] {
		next := c.eval(ctx)
		for row, rh := range acc {
			other, ok := next[row]
			if !ok {
				delete(acc, row)
				continue
			}
			rh.merge(other)
		}
	}
	return acc
}

func (n Or) eval(ctx *evalContext) rowSet {
	out := make(rowSet)
	for _, c := range n.Children {
		for row, rh := range c.eval(ctx) {
			if existing, ok := out[row]; ok {
				existing.merge(rh)
			} else {
				out[row] = rh
			}
		}
	}
	return out
}

func (n AndNot) eval(ctx *evalContext) rowSet {
	must := n.Must.eval(ctx)
	not := n.MustNot.eval(ctx)
	for row := range not {
		delete(must, row)
	}
	return must
}

func (n Maybe) eval(ctx *evalContext) rowSet {
	must := n.Must.eval(ctx)
	should := n.Should.eval(ctx)
	for row, rh := range must {
		if other, ok := should[row]; ok {
			rh.merge(other)
		}
	}
	return must
}

func (n Quorum) eval(ctx *evalContext) rowSet {
	counts := make(map[uint32]int)
	merged := make(rowSet)
	for _, c := range n.Children {
		for row, rh := range c.eval(ctx) {
			counts[row]++
			if existing, ok := merged[row]; ok {
				existing.merge(rh)
			} else {
				merged[row] = rh
			}
		}
	}
	out := make(rowSet)
	for row, n2 := range counts {
		if n2 >= n.Min {
			out[row] = merged[row]
		}
	}
	return out
}

// Phrase/Proximity/Near/Before all need raw per-row, per-field position
// data rather than just presence, so they re-derive it from ctx.terms
// directly instead of composing child Eval results.

func (n Phrase) eval(ctx *evalContext) rowSet {
	return evalOrderedSpan(ctx, n.TermIdxs, len(n.TermIdxs)-1+n.Slop, true)
}

func (n Proximity) eval(ctx *evalContext) rowSet {
	return evalOrderedSpan(ctx, n.TermIdxs, n.MaxDistance, false)
}

// evalOrderedSpan is shared by Phrase (window of the term count minus one
// plus Slop, strict order) and Proximity (any order, bounded window): both ask
// "do these terms co-occur, within maxDistance positions of each other,
// in the same field", differing only in whether term order must match
// position order.
func evalOrderedSpan(ctx *evalContext, termIdxs []int, window int, ordered bool) rowSet {
	out := make(rowSet)
	if len(termIdxs) == 0 {
		return out
	}

	base := ctx.terms[termIdxs[0]]
	for row, first := range base {
		fieldPositions := make([][]fieldPos, len(termIdxs))
		fieldPositions[0] = unpackPositions(first.Positions)

		ok := true
		rh := newRowHits(row)
		rh.ByTerm[termIdxs[0]] = first
		for i := 1; i < len(termIdxs); i++ {
			th, present := ctx.terms[termIdxs[i]][row]
			if !present {
				ok = false
				break
			}
			fieldPositions[i] = unpackPositions(th.Positions)
			rh.ByTerm[termIdxs[i]] = th
		}
		if !ok {
			continue
		}

		if spanSatisfied(fieldPositions, window, ordered) {
			out[row] = rh
		}
	}
	return out
}

type fieldPos struct {
	Field int
	Pos   uint32
}

func unpackPositions(packed []uint32) []fieldPos {
	out := make([]fieldPos, len(packed))
	for i, p := range packed {
		f, pos, _ := codec.UnpackPosition(p)
		out[i] = fieldPos{Field: f, Pos: pos}
	}
	return out
}

// spanSatisfied reports whether some choice of one position per term list
// satisfies the window/order constraint, within a single field. Position
// counts per term are small in practice (a word rarely hits the same
// field hundreds of times), so the naive nested scan is acceptable.
func spanSatisfied(perTerm [][]fieldPos, window int, ordered bool) bool {
	if len(perTerm) == 0 {
		return false
	}
	for _, anchor := range perTerm[0] {
		if tryExtendSpan(perTerm, 1, anchor.Field, anchor.Pos, anchor.Pos, window, ordered) {
			return true
		}
	}
	return false
}

func tryExtendSpan(perTerm [][]fieldPos, i, field int, lastPos, minPos uint32, window int, ordered bool) bool {
	if i == len(perTerm) {
		return true
	}
	for _, p := range perTerm[i] {
		if p.Field != field {
			continue
		}
		if ordered && p.Pos <= lastPos {
			continue
		}
		lo, hi := minPos, lastPos
		if p.Pos < lo {
			lo = p.Pos
		}
		if p.Pos > hi {
			hi = p.Pos
		}
		if window > 0 && int(hi-lo) > window {
			continue
		}
		if tryExtendSpan(perTerm, i+1, field, p.Pos, lo, window, ordered) {
			return true
		}
	}
	return false
}

func (n Near) eval(ctx *evalContext) rowSet {
	return evalDirectional(n.Left, n.Right, ctx, n.MaxDistance, false)
}

func (n Before) eval(ctx *evalContext) rowSet {
	return evalDirectional(n.Left, n.Right, ctx, 0, true)
}

// evalDirectional composes two arbitrary sub-trees (not just terms),
// requiring a hit from Left and a hit from Right in the same field with
// Right strictly after Left, bounded by maxDistance unless unbounded is set
// (as Before does).
func evalDirectional(left, right Node, ctx *evalContext, maxDistance int, unbounded bool) rowSet {
	l := left.eval(ctx)
	r := right.eval(ctx)

	out := make(rowSet)
	for row, lh := range l {
		rh, ok := r[row]
		if !ok {
			continue
		}
		if directionalSatisfied(lh, rh, maxDistance, unbounded) {
			merged := newRowHits(row)
			merged.merge(lh)
			merged.merge(rh)
			out[row] = merged
		}
	}
	return out
}

func directionalSatisfied(l, r *rowHits, maxDistance int, unbounded bool) bool {
	lp := allPositions(l)
	rp := allPositions(r)
	for _, a := range lp {
		for _, b := range rp {
			if b.Field != a.Field || b.Pos <= a.Pos {
				continue
			}
			if unbounded || int(b.Pos-a.Pos) <= maxDistance {
				return true
			}
		}
	}
	return false
}

func allPositions(h *rowHits) []fieldPos {
	var out []fieldPos
	for _, th := range h.ByTerm {
		out = append(out, unpackPositions(th.Positions)...)
	}
	return out
}

func (n Zone) eval(ctx *evalContext) rowSet {
	return evalZoned(ctx, n.StartTermIdx, n.EndTermIdx, n.Child)
}

func (n Sentence) eval(ctx *evalContext) rowSet {
	return evalZoned(ctx, n.StartTermIdx, n.EndTermIdx, n.Child)
}

func (n Paragraph) eval(ctx *evalContext) rowSet {
	return evalZoned(ctx, n.StartTermIdx, n.EndTermIdx, n.Child)
}

// evalZoned keeps only the Child hits whose position falls within a span
// delimited by the nearest preceding start marker and nearest following
// end marker in the same field (spec §4.9 "Zones" / zone_check oracle,
// simplified here to a direct per-row scan rather than a cached streaming
// state machine, since a single query evaluation already materializes
// every term's positions up front).
func evalZoned(ctx *evalContext, startIdx, endIdx int, child Node) rowSet {
	inner := child.eval(ctx)
	out := make(rowSet)

	for row, rh := range inner {
		starts := unpackPositions(ctx.terms[startIdx][row].Positions)
		ends := unpackPositions(ctx.terms[endIdx][row].Positions)
		if len(starts) == 0 || len(ends) == 0 {
			continue
		}

		zones := buildZones(starts, ends)
		filtered := newRowHits(row)
		any := false
		for termIdx, th := range rh.ByTerm {
			var kept []uint32
			for _, p := range th.Positions {
				f, pos, _ := codec.UnpackPosition(p)
				if inAnyZone(zones, f, pos) {
					kept = append(kept, p)
				}
			}
			if len(kept) > 0 {
				filtered.ByTerm[termIdx] = termHits{Row: row, FieldsMask: th.FieldsMask, Positions: kept}
				any = true
			}
		}
		if any {
			out[row] = filtered
		}
	}
	return out
}

type zoneSpan struct {
	Field    int
	Lo, Hi   uint32
}

// buildZones pairs each start marker with the next end marker in the same
// field that follows it, via a simple state machine over the two sorted
// marker streams (spec's "simple state machine" description).
func buildZones(starts, ends []fieldPos) []zoneSpan {
	var zones []zoneSpan
	ei := 0
	for _, s := range starts {
		for ei < len(ends) && (ends[ei].Field < s.Field || (ends[ei].Field == s.Field && ends[ei].Pos < s.Pos)) {
			ei++
		}
		if ei < len(ends) && ends[ei].Field == s.Field {
			zones = append(zones, zoneSpan{Field: s.Field, Lo: s.Pos, Hi: ends[ei].Pos})
		}
	}
	return zones
}

func inAnyZone(zones []zoneSpan, field int, pos uint32) bool {
	for _, z := range zones {
		if z.Field == field && pos >= z.Lo && pos <= z.Hi {
			return true
		}
	}
	return false
}
