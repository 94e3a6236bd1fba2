package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"tracker/internal/core"
)

// fakeValues is an in-memory sheet addressed by "Sheet!A<row>:N<row>" ranges.
type fakeValues struct {
	rows    [][]any
	getErr  error
	updates []string
}

func (f *fakeValues) Get(_ context.Context, _, _ string) ([][]any, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := make([][]any, len(f.rows))
	for i, r := range f.rows {
		out[i] = r
	}
	return out, nil
}

func (f *fakeValues) Update(_ context.Context, _, rng string, rows [][]any) error {
	f.updates = append(f.updates, rng)
	var row int
	if _, err := fmt.Sscanf(rng[strings.Index(rng, "!A")+2:], "%d", &row); err != nil {
		return err
	}
	for len(f.rows) < row {
		f.rows = append(f.rows, nil)
	}
	f.rows[row-1] = rows[0]
	return nil
}

func report(user string, year, month, habits int) core.MonthReport {
	return core.MonthReport{
		UserID:      user,
		Year:        year,
		Month:       month,
		HabitCount:  habits,
		GeneratedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWriteReport_EmptySheetGetsHeader(t *testing.T) {
	f := &fakeValues{}
	c := newClient(f, "sheet", "")

	ref, err := c.WriteReport(context.Background(), report("u1", 2025, 0, 3))
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if ref != "Reports!A2:N2" {
		t.Errorf("ref = %q", ref)
	}
	if len(f.rows) != 2 || f.rows[0][0] != "generated_at" {
		t.Fatalf("unexpected rows: %v", f.rows)
	}
	if f.rows[1][3] != 1 {
		t.Errorf("month column should be 1-based, got %v", f.rows[1][3])
	}
}

func TestWriteReport_Upserts(t *testing.T) {
	f := &fakeValues{}
	c := newClient(f, "sheet", "Monthly")
	ctx := context.Background()

	c.WriteReport(ctx, report("u1", 2025, 0, 1))
	c.WriteReport(ctx, report("u2", 2025, 0, 2))
	ref, err := c.WriteReport(ctx, report("u1", 2025, 0, 5))
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if ref != "Monthly!A2:N2" {
		t.Errorf("rewrite should target the existing row, got %q", ref)
	}
	if len(f.rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(f.rows))
	}
	if f.rows[1][4] != 5 {
		t.Errorf("habit count not replaced: %v", f.rows[1])
	}

	ref, _ = c.WriteReport(ctx, report("u1", 2025, 1, 1))
	if ref != "Monthly!A4:N4" {
		t.Errorf("new month should append, got %q", ref)
	}
}

func TestWriteReport_Errors(t *testing.T) {
	ctx := context.Background()

	if _, err := (&Client{}).WriteReport(ctx, report("u1", 2025, 0, 1)); err == nil {
		t.Error("expected error without service")
	}

	c := newClient(&fakeValues{}, "sheet", "")
	if _, err := c.WriteReport(ctx, core.MonthReport{}); err == nil {
		t.Error("expected error for report without user")
	}

	boom := errors.New("quota exceeded")
	c = newClient(&fakeValues{getErr: boom}, "sheet", "")
	if _, err := c.WriteReport(ctx, report("u1", 2025, 0, 1)); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{
		{"generated_at", "user_id", "year", "month"},
		{"2025-02-01T00:00:00Z", "u1", "2025", "1"},
		{"2025-02-01T00:00:00Z", "u2", float64(2025), float64(1)},
		{"short"},
	}
	tests := []struct {
		name  string
		user  string
		year  int
		month int
		want  int
	}{
		{"string cells", "u1", 2025, 1, 2},
		{"numeric cells", "u2", 2025, 1, 3},
		{"other month", "u1", 2025, 2, 0},
		{"unknown user", "u9", 2025, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findRow(values, tt.user, tt.year, tt.month); got != tt.want {
				t.Errorf("findRow() = %d, want %d", got, tt.want)
			}
		})
	}
}
