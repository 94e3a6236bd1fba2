package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tracker/internal/core"
	"tracker/internal/sheets"
)

type reportKey struct {
	userID      string
	year, month int
}

// Store keeps exported reports in memory, for local runs without Google.
type Store struct {
	mu      sync.Mutex
	rows    map[reportKey]int
	reports []core.MonthReport
}

var _ sheets.ReportWriter = (*Store)(nil)

func New() *Store {
	return &Store{rows: map[reportKey]int{}}
}

// WriteReport upserts the report and returns a synthetic row reference.
func (s *Store) WriteReport(_ context.Context, r core.MonthReport) (string, error) {
	if r.UserID == "" {
		return "", fmt.Errorf("report without user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := reportKey{r.UserID, r.Year, r.Month}
	if i, ok := s.rows[k]; ok {
		s.reports[i] = r
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.reports = append(s.reports, r)
	s.rows[k] = len(s.reports) - 1
	return fmt.Sprintf("mem:%d", len(s.reports)), nil
}

// Reports returns a copy of everything written, ordered by user then month.
func (s *Store) Reports() []core.MonthReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.MonthReport(nil), s.reports...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}
