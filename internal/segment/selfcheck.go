package segment

import "fmt"

// SelfCheckReport summarizes a consistency scan over a segment's structure
// (supplemented from original_source/sphinxsearch.cpp's consistency-check
// pass; spec §7 error kind 7 "Corruption ... detected by the self-check
// routine").
type SelfCheckReport struct {
	Checked  int
	Failures []string
}

// OK reports whether the scan found no failures.
func (r SelfCheckReport) OK() bool { return len(r.Failures) == 0 }

// SelfCheck walks the segment's checkpoint array and row bounds, verifying:
//   - checkpoint wordlist offsets strictly increase (spec §3 invariant 7),
//   - every checkpoint's recorded doclist offset is within the doclist
//     buffer,
//   - aliveRowsCount + popcount(deadmap) == row_count (spec §3 invariant 3).
//
// It does not attempt a full wordlist/doclist/hitlist decode walk; that
// would duplicate the query executor's own decode path. It catches the
// structural corruption classes spec §7 calls out rather than re-verifying
// every byte.
func (s *RamSegment) SelfCheck() SelfCheckReport {
	var report SelfCheckReport

	if got := s.aliveRows.Load() + int64(s.deadmap.PopCount()); got != int64(s.rowCount) {
		report.Failures = append(report.Failures, fmt.Sprintf(
			"alive_rows(%d)+popcount(%d) != row_count(%d)", s.aliveRows.Load(), s.deadmap.PopCount(), s.rowCount))
	}
	report.Checked++

	lastOffset := -1
	for i, cp := range s.Postings.Checkpoints {
		if cp.WordlistOffset <= lastOffset {
			report.Failures = append(report.Failures, fmt.Sprintf(
				"checkpoint %d wordlist offset %d does not strictly increase past %d", i, cp.WordlistOffset, lastOffset))
		}
		lastOffset = cp.WordlistOffset

		if cp.DoclistOffset < 0 || int(cp.DoclistOffset) > len(s.Postings.Doclist) {
			report.Failures = append(report.Failures, fmt.Sprintf(
				"checkpoint %d doclist offset %d out of bounds [0,%d]", i, cp.DoclistOffset, len(s.Postings.Doclist)))
		}
		report.Checked++
	}

	if s.rowCount > 0 && uint32(len(s.rows))%uint32(s.stride) != 0 {
		report.Failures = append(report.Failures, "row buffer length is not a multiple of the row stride")
	}

	return report
}
