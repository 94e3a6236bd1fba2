package memory

import (
	"context"
	"testing"

	"tracker/internal/core"
)

func TestMemoryStoreUpsertsReports(t *testing.T) {
	ctx := context.Background()
	s := New()

	ref, err := s.WriteReport(ctx, core.MonthReport{UserID: "u1", Year: 2025, Month: 0, HabitCount: 1})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected write: ref=%q err=%v", ref, err)
	}
	s.WriteReport(ctx, core.MonthReport{UserID: "u1", Year: 2024, Month: 11})
	ref, _ = s.WriteReport(ctx, core.MonthReport{UserID: "u1", Year: 2025, Month: 0, HabitCount: 3})
	if ref != "mem:1" {
		t.Errorf("rewrite should reuse the row, got %q", ref)
	}

	reports := s.Reports()
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].Year != 2024 || reports[1].HabitCount != 3 {
		t.Errorf("unexpected reports: %+v", reports)
	}
}

func TestMemoryStoreRejectsAnonymousReport(t *testing.T) {
	if _, err := New().WriteReport(context.Background(), core.MonthReport{}); err == nil {
		t.Error("expected an error for a report without user")
	}
}
