// Package merger implements the Segment Merger (spec §2 component 7,
// §4.5): the background decision of whether to coalesce two small RAM
// segments, and the procedure that actually merges two segments into one.
package merger

import (
	"sort"

	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/options"
)

// Decision is the outcome of Decide: what the background scheduler should
// do about the current set of unlocked RAM segments (spec §4.5 "Policy").
type Decision int

const (
	// NoMerge means conditions don't warrant merging yet.
	NoMerge Decision = iota
	// Merge means pick the two segments A and B named in Plan.A/Plan.B and
	// merge them.
	Merge
	// Flush means the RAM layer should be promoted to a new disk chunk
	// instead of merged (spec §4.6).
	Flush
)

// Plan is Decide's full answer: what to do, and for Merge, which two
// segments.
type Plan struct {
	Decision Decision
	A, B     *segment.RamSegment
}

// Decide implements spec §4.5's policy exactly: FLUSH when projected RAM
// usage would exceed budget, NOMERGE when segment count is comfortably
// low or the two smallest segments are size-skewed, MERGE otherwise
// (picking the two smallest by row count).
func Decide(unlocked []*segment.RamSegment, opts *options.Options, saveInProgress bool) Plan {
	budget := opts.RAMOptions.SoftLimit
	if saveInProgress {
		budget = int64(float64(budget) * opts.RAMOptions.DoubleBufferFraction)
	}

	var totalRAM int64
	for _, s := range unlocked {
		totalRAM += s.UsedRAM().Total
	}
	if totalRAM > budget {
		return Plan{Decision: Flush}
	}

	maxSegments := opts.RAMOptions.MaxSegments
	nomergeFloor := maxSegments - opts.RAMOptions.MaxProgression

	if len(unlocked) <= nomergeFloor {
		return Plan{Decision: NoMerge}
	}

	bySize := append([]*segment.RamSegment(nil), unlocked...)
	sort.Slice(bySize, func(i, j int) bool { return bySize[i].RowCount() < bySize[j].RowCount() })

	smallest, secondSmallest := bySize[0], bySize[1]
	if len(unlocked) < maxSegments && sizeSkewed(smallest, secondSmallest) {
		return Plan{Decision: NoMerge}
	}

	return Plan{Decision: Merge, A: smallest, B: secondSmallest}
}

// sizeSkewed reports whether the two smallest segments differ by more
// than a 2x row-count ratio (spec §4.5 NOMERGE condition).
func sizeSkewed(a, b *segment.RamSegment) bool {
	ra, rb := a.RowCount(), b.RowCount()
	if ra == 0 || rb == 0 {
		return ra != rb
	}
	if ra > rb {
		ra, rb = rb, ra
	}
	return rb > ra*2
}
