package core

import (
	"strings"
	"time"
)

// MonthReport is a compact summary of one user's month, as exported to
// spreadsheets and returned by the report command.
type MonthReport struct {
	UserID      string `json:"user_id"`
	Year        int    `json:"year"`
	Month       int    `json:"month"` // 0-11
	DaysInMonth int    `json:"days_in_month"`

	HabitCount       int       `json:"habit_count"`
	HabitCompletions int       `json:"habit_completions"`
	HabitGoals       int       `json:"habit_goals"`
	HabitPercentage  int       `json:"habit_percentage"`
	BestStreak       int       `json:"best_streak"`
	TopHabits        []string  `json:"top_habits"`
	TasksTotal       int       `json:"tasks_total"`
	TasksCompleted   int       `json:"tasks_completed"`
	TaskCompletion   int       `json:"task_completion"`
	TotalCompletions int       `json:"total_completions"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Row flattens the report for a spreadsheet append.
func (r MonthReport) Row() []any {
	return []any{
		r.GeneratedAt.Format(time.RFC3339),
		r.UserID,
		r.Year,
		r.Month + 1,
		r.HabitCount,
		r.HabitCompletions,
		r.HabitGoals,
		r.HabitPercentage,
		r.BestStreak,
		r.TasksTotal,
		r.TasksCompleted,
		r.TaskCompletion,
		r.TotalCompletions,
		strings.Join(r.TopHabits, ", "),
	}
}
