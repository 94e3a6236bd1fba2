// Package stats turns one month of habit and task rows into the numbers and
// series shown on the dashboards.
//
// Every function here is a pure transform over its arguments: no I/O, no
// clock reads, no shared state. The caller supplies "today".
package stats

import (
	"math"
	"sort"

	"tracker/internal/calendar"
	"tracker/internal/core"
)

// TopHabitsLimit is the ranking size used by the dashboards.
const TopHabitsLimit = 5

type (
	HabitStat struct {
		Habit      core.Habit `json:"habit"`
		Total      int        `json:"total"`
		Percentage int        `json:"percentage"`
	}

	HabitSummary struct {
		Habits            []HabitStat                 `json:"habits"`
		DailyConsistency  []int                       `json:"daily_consistency"`
		Weekly            [calendar.WeeksPerMonth]int `json:"weekly"`
		BestStreak        int                         `json:"best_streak"`
		TotalCompletions  int                         `json:"total_completions"`
		TotalGoals        int                         `json:"total_goals"`
		OverallPercentage int                         `json:"overall_percentage"`
		Top               []HabitStat                 `json:"top"`
	}
)

// Percentage returns round(part/whole*100), or 0 when whole is not positive.
// Halves round up. The result is not capped at 100.
func Percentage(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Floor(float64(part)/float64(whole)*100 + 0.5))
}

// CountCompletions counts the marked days in a completion sequence.
func CountCompletions(completions []bool) int {
	n := 0
	for _, done := range completions {
		if done {
			n++
		}
	}
	return n
}

// LongestStreak returns the longest run of consecutive marked days.
func LongestStreak(completions []bool) int {
	best, run := 0, 0
	for _, done := range completions {
		if !done {
			run = 0
			continue
		}
		run++
		best = max(best, run)
	}
	return best
}

// TopHabits ranks stats by percentage, highest first, keeping input order
// among equal percentages, and returns at most n entries.
func TopHabits(stats []HabitStat, n int) []HabitStat {
	ranked := make([]HabitStat, len(stats))
	copy(ranked, stats)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Percentage > ranked[j].Percentage
	})
	if n < 0 {
		n = 0
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// SummarizeHabits aggregates a month of habits. Completion sequences shorter
// than daysInMonth are read as unmarked for the missing days; flags past
// daysInMonth are ignored.
func SummarizeHabits(habits []core.HabitWithCompletions, daysInMonth int) HabitSummary {
	daysInMonth = max(0, daysInMonth)
	s := HabitSummary{
		Habits:           make([]HabitStat, 0, len(habits)),
		DailyConsistency: make([]int, daysInMonth),
	}

	for _, h := range habits {
		flags := h.Completions[:min(len(h.Completions), daysInMonth)]
		total := CountCompletions(flags)
		s.Habits = append(s.Habits, HabitStat{
			Habit:      h.Habit,
			Total:      total,
			Percentage: Percentage(total, h.Goal),
		})
		s.TotalCompletions += total
		s.TotalGoals += h.Goal
		s.BestStreak = max(s.BestStreak, LongestStreak(flags))

		for day := range flags {
			if h.Done(day) {
				s.DailyConsistency[day]++
			}
		}
	}

	for day, n := range s.DailyConsistency {
		s.Weekly[calendar.WeekBucketIndex(day)] += n
	}

	s.OverallPercentage = Percentage(s.TotalCompletions, s.TotalGoals)
	s.Top = TopHabits(s.Habits, TopHabitsLimit)
	return s
}

// RemainingGoal is how many completions are still missing across all goals.
func (s HabitSummary) RemainingGoal() int {
	return max(0, s.TotalGoals-s.TotalCompletions)
}

// SuccessRate is the overall percentage capped at 100.
func (s HabitSummary) SuccessRate() int {
	return min(100, s.OverallPercentage)
}

// CompletionsOn returns how many habits were marked on a 1-based day, or 0
// when the day is outside the month.
func (s HabitSummary) CompletionsOn(day int) int {
	if day < 1 || day > len(s.DailyConsistency) {
		return 0
	}
	return s.DailyConsistency[day-1]
}
