// Package scheduling implements the planning heuristics: free-interval
// detection over a working window and greedy, score-driven packing of
// pending tasks into available time. Everything here is pure computation;
// results are ephemeral and never persisted.
package scheduling

import (
	"sort"
	"time"

	"github.com/dayflow/dayflow/pkg/services"
)

// DefaultMinGap is the smallest free interval reported as usable.
const DefaultMinGap = 15 * time.Minute

// Window is the working window gaps are computed within.
type Window struct {
	Start time.Time
	End   time.Time
}

// Gap is a contiguous free interval within the working window.
type Gap struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the gap length.
func (g Gap) Duration() time.Duration {
	return g.End.Sub(g.Start)
}

// Minutes returns the gap length in whole minutes.
func (g Gap) Minutes() int {
	return int(g.Duration() / time.Minute)
}

// FindGaps returns the ordered free intervals within the window, given the
// user's existing blocks. The lead-in gap before the first block and the
// trailing gap after the last are included. Blocks outside the window are
// ignored; overlapping blocks are merged. Gaps shorter than minGap are not
// reported. A non-positive minGap selects the default.
func FindGaps(blocks []services.TimeBlock, window Window, minGap time.Duration) []Gap {
	if minGap <= 0 {
		minGap = DefaultMinGap
	}
	if !window.Start.Before(window.End) {
		return nil
	}

	// Clip to the window and drop blocks entirely outside it.
	busy := make([]Gap, 0, len(blocks))
	for _, b := range blocks {
		start, end := b.Start, b.End
		if start.Before(window.Start) {
			start = window.Start
		}
		if end.After(window.End) {
			end = window.End
		}
		if start.Before(end) {
			busy = append(busy, Gap{Start: start, End: end})
		}
	}

	sort.Slice(busy, func(i, j int) bool {
		return busy[i].Start.Before(busy[j].Start)
	})

	// Merge overlapping and back-to-back busy intervals.
	merged := busy[:0]
	for _, iv := range busy {
		if n := len(merged); n > 0 && !merged[n-1].End.Before(iv.Start) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}

	var gaps []Gap
	cursor := window.Start
	for _, iv := range merged {
		if iv.Start.Sub(cursor) >= minGap {
			gaps = append(gaps, Gap{Start: cursor, End: iv.Start})
		}
		cursor = iv.End
	}
	if window.End.Sub(cursor) >= minGap {
		gaps = append(gaps, Gap{Start: cursor, End: window.End})
	}

	return gaps
}
