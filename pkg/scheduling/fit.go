package scheduling

import (
	"sort"
	"time"

	"github.com/dayflow/dayflow/pkg/services"
)

// Strategy selects the scoring formula for fitting tasks into a duration.
type Strategy string

const (
	// StrategyPriority ranks by priority tier: high > medium > low.
	StrategyPriority Strategy = "priority"

	// StrategyQuickWins favors many short completions.
	StrategyQuickWins Strategy = "quick_wins"

	// StrategyMixed blends priority with window utilization.
	StrategyMixed Strategy = "mixed"
)

// Valid reports whether the strategy is one of the known kinds.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyPriority, StrategyQuickWins, StrategyMixed:
		return true
	}
	return false
}

// Fit defaults.
const (
	// DefaultMaxItems caps how many tasks a single fit selects.
	DefaultMaxItems = 3

	// MinViableItem is the smallest remaining capacity worth filling.
	MinViableItem = 15 * time.Minute
)

// Mixed-strategy weights. Utilization earns its bonus when a task occupies
// 60-90% of the available window.
const (
	mixedPriorityWeight    = 0.6
	mixedUtilizationWeight = 0.4
	utilizationLow         = 0.6
	utilizationHigh        = 0.9
)

// ScoredItem pairs a task with its fitness score for a candidate slot.
type ScoredItem struct {
	Task  services.Task `json:"task"`
	Score float64       `json:"score"`
}

// Score computes the fitness of a single task for an available duration
// under the given strategy. The formula is deterministic:
//
//	priority:   tier (high=3, medium=2, low=1)
//	quick_wins: 1 - estimate/available
//	mixed:      0.6*(tier/3) + 0.4*bonus, bonus=1 when the estimate is
//	            60-90% of the available window, else 0
func Score(task services.Task, available time.Duration, strategy Strategy) float64 {
	estimate := time.Duration(task.EstimatedMinutes) * time.Minute
	switch strategy {
	case StrategyQuickWins:
		if available <= 0 {
			return 0
		}
		return 1 - float64(estimate)/float64(available)
	case StrategyMixed:
		score := mixedPriorityWeight * float64(task.Priority.Tier()) / 3
		if available > 0 {
			ratio := float64(estimate) / float64(available)
			if ratio >= utilizationLow && ratio <= utilizationHigh {
				score += mixedUtilizationWeight
			}
		}
		return score
	default: // StrategyPriority
		return float64(task.Priority.Tier())
	}
}

// ScoreTasks scores every eligible task (estimate fits the available
// duration and is positive) and returns them highest score first. Ties are
// broken by shorter estimated duration, then by id for a stable order.
func ScoreTasks(tasks []services.Task, available time.Duration, strategy Strategy) []ScoredItem {
	scored := make([]ScoredItem, 0, len(tasks))
	for _, task := range tasks {
		estimate := time.Duration(task.EstimatedMinutes) * time.Minute
		if estimate <= 0 || estimate > available {
			continue
		}
		scored = append(scored, ScoredItem{
			Task:  task,
			Score: Score(task, available, strategy),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Task.EstimatedMinutes != scored[j].Task.EstimatedMinutes {
			return scored[i].Task.EstimatedMinutes < scored[j].Task.EstimatedMinutes
		}
		return scored[i].Task.ID < scored[j].Task.ID
	})

	return scored
}

// GreedyFit selects tasks into the available duration, highest score first.
// It is a single pass, not exact bin-packing: scores are computed once
// against the full available duration, then items are taken in order while
// they fit the remaining capacity. Selection stops at maxItems (default 3)
// or when the remaining capacity drops below the minimum viable item size.
// Empty input yields an empty selection, never an error.
func GreedyFit(tasks []services.Task, available time.Duration, strategy Strategy, maxItems int) []services.Task {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	scored := ScoreTasks(tasks, available, strategy)

	var selected []services.Task
	remaining := available
	for _, item := range scored {
		if len(selected) >= maxItems || remaining < MinViableItem {
			break
		}
		estimate := time.Duration(item.Task.EstimatedMinutes) * time.Minute
		if estimate > remaining {
			continue
		}
		selected = append(selected, item.Task)
		remaining -= estimate
	}

	return selected
}

// FitGap is a convenience wrapper fitting tasks into a detected gap.
func FitGap(tasks []services.Task, gap Gap, strategy Strategy, maxItems int) []services.Task {
	return GreedyFit(tasks, gap.Duration(), strategy, maxItems)
}
