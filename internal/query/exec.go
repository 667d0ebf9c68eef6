package query

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignitedb/ignite/internal/dataset"
	"github.com/ignitedb/ignite/pkg/collab"
	"github.com/ignitedb/ignite/pkg/errors"
	"github.com/ignitedb/ignite/pkg/schema"
)

// termHits is one term's occurrence data for one row within one shard.
type termHits struct {
	Row        uint32
	FieldsMask uint64
	Positions  []uint32
}

// evalContext is the per-shard lookup table a query tree evaluates
// against: for every resolved term index, every row that contains it and
// its hit data, already materialized from the term's Qword.
type evalContext struct {
	terms map[int]map[uint32]termHits
}

// ResolvedTerm is a single resolved keyword: either a direct word, or one member
// of a prefix/infix expansion (expanded terms OR together under the hood
// — spec §4.9 "Expanded terms are capped by a per-segment limit").
type ResolvedTerm struct {
	WordID  uint64
	Keyword []byte
	Numeric bool
}

// Query bundles a resolved tree with execution parameters (spec §4.9
// "Inputs").
type Query struct {
	Tree         Node
	Terms        []ResolvedTerm
	Ranker       RankMode
	Limit        int
	Offset       int
	MaxQueryTime time.Duration
	Weights      []float64 // optional per-field weight for BM25F, indexed by field id
}

// Match is one scored, attribute-materialized result row (spec §4.9 step
// 5 "a schema transform that replaces in-sorter blob-pool pointers with
// standalone copies").
type Match struct {
	DocID  uint64
	Weight float64
	Row    []byte
	Blobs  map[int][]byte // attrIdx -> standalone blob copy, for blob-ref attributes
}

// Meta carries aggregate statistics about one execution, mirroring what a
// caller typically surfaces alongside results (total matched, time spent,
// per-keyword doc/hit counts).
type Meta struct {
	TotalMatched int
	Elapsed      time.Duration
	WordStats    map[string]WordStat
}

// WordStat is the per-keyword statistics line of a query's meta block.
type WordStat struct {
	DocCount uint64
	HitCount uint64
}

// Result is what Execute returns: the top-K matches plus meta.
type Result struct {
	Matches []Match
	Meta    Meta
}

const defaultMaxBlockDocs = 2048

// Executor runs one Query against a dataset snapshot (spec §4.9
// "Procedure").
type Executor struct {
	Schema      *schema.Schema
	Dict        collab.Dictionary
	BloomHashes uint8
	PoolSize    int
}

// Execute runs query against the dataset's current snapshot: every disk
// chunk and RAM segment is evaluated as one shard in the same
// bounded-concurrency pool (both read paths are lock-free against the
// snapshot itself; per-segment/chunk locking only matters to writers),
// merging into one top-K sorter (spec §4.9 steps 2-5).
func (ex *Executor) Execute(ctx context.Context, ds *dataset.Dataset, q *Query) (*Result, error) {
	start := time.Now()
	snap := ds.Load()

	deadline := time.Time{}
	if q.MaxQueryTime > 0 {
		deadline = start.Add(q.MaxQueryTime)
	}
	var cancelled atomic.Bool

	sorter := newTopKSorter(q.Limit, q.Offset)
	meta := Meta{WordStats: make(map[string]WordStat)}
	var metaMu sync.Mutex

	shardLabels := make([]Shard, 0, len(snap.DiskChunks)+len(snap.RamSegments))
	for i, c := range snap.DiskChunks {
		shardLabels = append(shardLabels, FromChunk(chunkLabel(i), c))
	}
	for i, s := range snap.RamSegments {
		shardLabels = append(shardLabels, FromSegment(ramLabel(i), s))
	}

	poolSize := ex.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	sem := make(chan struct{}, poolSize)
	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex

	for _, shard := range shardLabels {
		if cancelled.Load() {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			cancelled.Store(true)
			break
		}

		shard := shard
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if cancelled.Load() {
				return
			}
			matches, stats, err := ex.evalShard(ctx, shard, q)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				return
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				cancelled.Store(true)
			}

			metaMu.Lock()
			for kw, st := range stats {
				agg := meta.WordStats[kw]
				agg.DocCount += st.DocCount
				agg.HitCount += st.HitCount
				meta.WordStats[kw] = agg
			}
			metaMu.Unlock()

			sorter.pushAll(matches)
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if cancelled.Load() {
		return nil, errors.NewQueryTimeoutError(0, sorter.len())
	}

	top := sorter.drain()
	out := make([]Match, 0, len(top))
	for _, sm := range top {
		out = append(out, ex.materializeMatch(snap, sm))
	}

	meta.TotalMatched = sorter.total()
	meta.Elapsed = time.Since(start)
	return &Result{Matches: out, Meta: meta}, nil
}

// evalShard materializes every resolved term's occurrence data within one
// shard, evaluates the tree, and ranks the surviving rows.
func (ex *Executor) evalShard(ctx context.Context, shard Shard, q *Query) ([]scoredRow, map[string]WordStat, error) {
	evalCtx := &evalContext{terms: make(map[int]map[uint32]termHits)}
	stats := make(map[string]WordStat)

	for i, t := range q.Terms {
		idx, err := ex.materializeTerm(shard, t)
		if err != nil {
			return nil, nil, err
		}
		evalCtx.terms[i] = idx

		var docCount, hitCount uint64
		for _, th := range idx {
			docCount++
			hitCount += uint64(len(th.Positions))
		}
		key := string(t.Keyword)
		if t.Numeric {
			key = ""
		}
		stats[key] = WordStat{DocCount: docCount, HitCount: hitCount}
	}

	rows := q.Tree.eval(evalCtx)
	ranked := rankRows(rows, q.Ranker, shard, evalCtx, q.Weights)
	return ranked, stats, nil
}

// materializeTerm resolves one query term against a shard's dictionary
// and fully drains its Qword into a row->hits map (spec §4.9 "Keyword
// lookup within a segment").
func (ex *Executor) materializeTerm(shard Shard, t ResolvedTerm) (map[uint32]termHits, error) {
	var exp Expansion
	var found bool
	var err error

	if t.Numeric {
		exp, found, err = LookupWordID(&shard.Postings, t.WordID)
	} else {
		exp, found, err = LookupKeyword(&shard.Postings, t.Keyword)
	}
	if err != nil {
		return nil, errors.NewQueryError(err, errors.ErrorCodeQueryBadExpression, "query: keyword lookup").
			WithKeyword(string(t.Keyword))
	}
	if !found {
		return map[uint32]termHits{}, nil
	}

	q := NewQword(shard, exp)
	out := make(map[uint32]termHits, exp.Entry.DocCount)
	for q.Valid() {
		out[q.RowID()] = termHits{Row: q.RowID(), FieldsMask: q.FieldsMask(), Positions: q.Positions()}
		q.Next()
	}
	return out, nil
}

func chunkLabel(i int) string { return "chunk:" + itoa(i) }
func ramLabel(i int) string   { return "ram:" + itoa(i) }

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	p := len(buf)
	for i > 0 {
		p--
		buf[p] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		p--
		buf[p] = '-'
	}
	return string(buf[p:])
}
