package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tracker/internal/amqp"
	"tracker/internal/core"
	"tracker/internal/sheets"
)

// ReportBuilder computes the month summary for one user.
type ReportBuilder interface {
	MonthReport(ctx context.Context, userID string, year, month int) (core.MonthReport, error)
}

// UserLister enumerates the accounts to export on startup.
type UserLister interface {
	List(ctx context.Context) ([]core.User, error)
}

type exportKey struct {
	userID      string
	year, month int
}

// ReportWorker turns month-changed events into exported report rows.
type ReportWorker struct {
	reports ReportBuilder
	writer  sheets.ReportWriter
	now     func() time.Time

	mu       sync.Mutex
	exported map[exportKey]time.Time
}

func NewReportWorker(reports ReportBuilder, writer sheets.ReportWriter) *ReportWorker {
	return &ReportWorker{
		reports:  reports,
		writer:   writer,
		now:      time.Now,
		exported: map[exportKey]time.Time{},
	}
}

// HandleMonthChanged rebuilds and writes the report for the message's month.
// Messages older than the last export of the same month are skipped, since
// that export already reflected them.
func (w *ReportWorker) HandleMonthChanged(ctx context.Context, msg *amqp.MonthChangedMessage) error {
	key := exportKey{msg.UserID, msg.Year, msg.Month}

	w.mu.Lock()
	last, seen := w.exported[key]
	w.mu.Unlock()
	if seen && msg.Timestamp.Before(last) {
		slog.DebugContext(ctx, "Skipping stale month change",
			"user_id", msg.UserID,
			"year", msg.Year,
			"month", msg.Month,
			"timestamp", msg.Timestamp,
			"last_export", last)
		return nil
	}

	slog.InfoContext(ctx, "Processing month change",
		"user_id", msg.UserID,
		"year", msg.Year,
		"month", msg.Month,
		"source", msg.Source)

	if err := w.export(ctx, msg.UserID, msg.Year, msg.Month); err != nil {
		return err
	}
	return nil
}

// StartupExport writes the given month for every user. It recovers
// reports for events published while the worker was down.
func (w *ReportWorker) StartupExport(ctx context.Context, users UserLister, year, month int) error {
	list, err := users.List(ctx)
	if err != nil {
		return fmt.Errorf("list users for startup export: %w", err)
	}

	successCount := 0
	errorCount := 0
	for _, u := range list {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.export(ctx, u.ID, year, month); err != nil {
			slog.ErrorContext(ctx, "Failed to export report during startup",
				"user_id", u.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(list),
		"exported", successCount,
		"errors", errorCount)
	return nil
}

func (w *ReportWorker) export(ctx context.Context, userID string, year, month int) error {
	started := w.now()
	report, err := w.reports.MonthReport(ctx, userID, year, month)
	if err != nil {
		return fmt.Errorf("build month report: %w", err)
	}

	ref, err := w.writer.WriteReport(ctx, report)
	if err != nil {
		return fmt.Errorf("write month report: %w", err)
	}

	w.mu.Lock()
	w.exported[exportKey{userID, year, month}] = started
	w.mu.Unlock()

	slog.InfoContext(ctx, "Exported month report",
		"user_id", userID,
		"year", year,
		"month", month,
		"ref", ref,
		"habit_percentage", report.HabitPercentage,
		"task_completion", report.TaskCompletion)
	return nil
}
