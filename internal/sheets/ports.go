package sheets

import (
	"context"

	"tracker/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportWriter stores one row per (user, year, month), replacing any
	// earlier row for the same key.
	ReportWriter interface {
		WriteReport(ctx context.Context, r core.MonthReport) (rowRef string, err error)
	}
)

// ReportHeader labels the columns written by core.MonthReport.Row.
var ReportHeader = []any{
	"generated_at",
	"user_id",
	"year",
	"month",
	"habits",
	"habit_completions",
	"habit_goals",
	"habit_percentage",
	"best_streak",
	"tasks_total",
	"tasks_completed",
	"task_completion",
	"total_completions",
	"top_habits",
}
