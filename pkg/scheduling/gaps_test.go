package scheduling

import (
	"testing"
	"time"

	"github.com/dayflow/dayflow/pkg/services"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
}

func block(start, end time.Time) services.TimeBlock {
	return services.TimeBlock{ID: "b", UserID: "u1", Start: start, End: end}
}

func TestFindGapsWorkingDay(t *testing.T) {
	window := Window{Start: at(9, 0), End: at(17, 0)}
	blocks := []services.TimeBlock{
		block(at(10, 0), at(11, 0)),
		block(at(13, 0), at(14, 30)),
	}

	gaps := FindGaps(blocks, window, 15*time.Minute)

	want := []struct {
		start, end time.Time
		minutes    int
	}{
		{at(9, 0), at(10, 0), 60},
		{at(11, 0), at(13, 0), 120},
		{at(14, 30), at(17, 0), 150},
	}

	if len(gaps) != len(want) {
		t.Fatalf("Expected %d gaps, got %d: %v", len(want), len(gaps), gaps)
	}
	for i, w := range want {
		if !gaps[i].Start.Equal(w.start) || !gaps[i].End.Equal(w.end) {
			t.Errorf("Gap %d: expected %v-%v, got %v-%v", i, w.start, w.end, gaps[i].Start, gaps[i].End)
		}
		if gaps[i].Minutes() != w.minutes {
			t.Errorf("Gap %d: expected %d minutes, got %d", i, w.minutes, gaps[i].Minutes())
		}
	}
}

func TestFindGapsEmptyCalendar(t *testing.T) {
	window := Window{Start: at(9, 0), End: at(17, 0)}

	gaps := FindGaps(nil, window, 0)

	if len(gaps) != 1 {
		t.Fatalf("Expected single full-window gap, got %d", len(gaps))
	}
	if gaps[0].Minutes() != 480 {
		t.Errorf("Expected 480 minute gap, got %d", gaps[0].Minutes())
	}
}

func TestFindGapsBelowThresholdDropped(t *testing.T) {
	window := Window{Start: at(9, 0), End: at(12, 0)}
	blocks := []services.TimeBlock{
		block(at(9, 10), at(11, 0)), // 10 minute lead-in, below 15m threshold
	}

	gaps := FindGaps(blocks, window, 15*time.Minute)

	if len(gaps) != 1 {
		t.Fatalf("Expected 1 gap, got %d: %v", len(gaps), gaps)
	}
	if !gaps[0].Start.Equal(at(11, 0)) {
		t.Errorf("Expected trailing gap from 11:00, got %v", gaps[0].Start)
	}
}

func TestFindGapsMergesOverlaps(t *testing.T) {
	window := Window{Start: at(9, 0), End: at(17, 0)}
	blocks := []services.TimeBlock{
		block(at(13, 0), at(14, 0)),
		block(at(10, 0), at(11, 30)),
		block(at(11, 0), at(12, 0)), // overlaps previous
	}

	gaps := FindGaps(blocks, window, 15*time.Minute)

	want := []struct{ start, end time.Time }{
		{at(9, 0), at(10, 0)},
		{at(12, 0), at(13, 0)},
		{at(14, 0), at(17, 0)},
	}
	if len(gaps) != len(want) {
		t.Fatalf("Expected %d gaps, got %d: %v", len(want), len(gaps), gaps)
	}
	for i, w := range want {
		if !gaps[i].Start.Equal(w.start) || !gaps[i].End.Equal(w.end) {
			t.Errorf("Gap %d: expected %v-%v, got %v-%v", i, w.start, w.end, gaps[i].Start, gaps[i].End)
		}
	}
}

func TestFindGapsBlocksOutsideWindow(t *testing.T) {
	window := Window{Start: at(9, 0), End: at(17, 0)}
	blocks := []services.TimeBlock{
		block(at(7, 0), at(8, 0)),   // entirely before
		block(at(8, 30), at(9, 30)), // clipped to 9:00-9:30
		block(at(18, 0), at(19, 0)), // entirely after
	}

	gaps := FindGaps(blocks, window, 15*time.Minute)

	if len(gaps) != 1 {
		t.Fatalf("Expected 1 gap, got %d: %v", len(gaps), gaps)
	}
	if !gaps[0].Start.Equal(at(9, 30)) || !gaps[0].End.Equal(at(17, 0)) {
		t.Errorf("Expected gap 9:30-17:00, got %v-%v", gaps[0].Start, gaps[0].End)
	}
}

func TestFindGapsInvalidWindow(t *testing.T) {
	gaps := FindGaps(nil, Window{Start: at(17, 0), End: at(9, 0)}, 0)
	if len(gaps) != 0 {
		t.Errorf("Expected no gaps for inverted window, got %v", gaps)
	}
}
