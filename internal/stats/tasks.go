package stats

import (
	"sort"

	"tracker/internal/calendar"
	"tracker/internal/core"
)

const (
	LabelNone    DateLabel = ""
	LabelToday   DateLabel = "Today"
	LabelOverdue DateLabel = "Overdue"
)

type (
	DateLabel string

	// TaskWindow describes the month being viewed. SelectedDay is 1-based;
	// zero means no day filter.
	TaskWindow struct {
		Year        int
		Month       int
		DaysInMonth int
		Today       string
		SelectedDay int
	}

	DateGroup struct {
		Date  string         `json:"date"`
		Label DateLabel      `json:"label,omitempty"`
		Tasks []core.DayTask `json:"tasks"`
	}

	// PriorityCounts buckets tasks by priority. Values outside low, medium
	// and high land in Other.
	PriorityCounts struct {
		High   int `json:"high"`
		Medium int `json:"medium"`
		Low    int `json:"low"`
		Other  int `json:"other"`
	}

	TaskSummary struct {
		Groups          []DateGroup                 `json:"groups"`
		Total           int                         `json:"total"`
		Completed       int                         `json:"completed"`
		Pending         int                         `json:"pending"`
		CompletionRate  int                         `json:"completion_rate"`
		ByDay           []int                       `json:"by_day"`
		Priority        PriorityCounts              `json:"priority"`
		WeeklyTotal     [calendar.WeeksPerMonth]int `json:"weekly_total"`
		WeeklyCompleted [calendar.WeeksPerMonth]int `json:"weekly_completed"`
	}
)

// SelectedKey returns the date key of the selected day, or "" when no day
// is selected.
func (w TaskWindow) SelectedKey() string {
	if w.SelectedDay <= 0 {
		return ""
	}
	return calendar.FormatDateKey(w.Year, w.Month, w.SelectedDay)
}

// VisibleGroups applies the month view's visibility policy and groups the
// surviving tasks by date, oldest first.
//
// With a selected day only that date is shown, completed tasks included.
// Otherwise past dates keep only their incomplete tasks and disappear when
// none remain, while today and future dates are shown in full.
func VisibleGroups(tasks []core.DayTask, w TaskWindow) []DateGroup {
	byDate := make(map[string][]core.DayTask)
	var dates []string
	for _, t := range tasks {
		if _, seen := byDate[t.Date]; !seen {
			dates = append(dates, t.Date)
		}
		byDate[t.Date] = append(byDate[t.Date], t)
	}
	sort.Strings(dates)

	selected := w.SelectedKey()
	groups := make([]DateGroup, 0, len(dates))
	for _, date := range dates {
		dayTasks := byDate[date]
		switch {
		case selected != "":
			if date != selected {
				continue
			}
		case calendar.IsPastDate(date, w.Today):
			dayTasks = incomplete(dayTasks)
			if len(dayTasks) == 0 {
				continue
			}
		}
		groups = append(groups, DateGroup{
			Date:  date,
			Label: ClassifyDate(date, w.Today, dayTasks),
			Tasks: dayTasks,
		})
	}
	return groups
}

// SummarizeTasks groups tasks per VisibleGroups and computes every count and
// series over the visible tasks only.
func SummarizeTasks(tasks []core.DayTask, w TaskWindow) TaskSummary {
	days := max(0, w.DaysInMonth)
	s := TaskSummary{
		Groups: VisibleGroups(tasks, w),
		ByDay:  make([]int, days),
	}

	for _, g := range s.Groups {
		dayIndex := -1
		if d, err := calendar.ParseKey(g.Date); err == nil && d.InMonth(w.Year, w.Month) {
			dayIndex = d.Day - 1
		}
		for _, t := range g.Tasks {
			s.Total++
			if t.Completed {
				s.Completed++
			}
			s.Priority.add(t.Priority)

			if dayIndex < 0 || dayIndex >= days {
				continue
			}
			s.ByDay[dayIndex]++
			week := calendar.WeekBucketIndex(dayIndex)
			s.WeeklyTotal[week]++
			if t.Completed {
				s.WeeklyCompleted[week]++
			}
		}
	}

	s.Pending = s.Total - s.Completed
	s.CompletionRate = Percentage(s.Completed, s.Total)
	return s
}

// ClassifyDate labels a date group. Today wins; a past date is overdue only
// while it still holds an incomplete task.
func ClassifyDate(dateKey, todayKey string, tasks []core.DayTask) DateLabel {
	switch {
	case calendar.IsToday(dateKey, todayKey):
		return LabelToday
	case IsOverdue(dateKey, todayKey, tasks):
		return LabelOverdue
	default:
		return LabelNone
	}
}

// IsOverdue reports whether dateKey is in the past and at least one of the
// tasks dated on it is still incomplete. Tasks on other dates are ignored.
func IsOverdue(dateKey, todayKey string, tasks []core.DayTask) bool {
	if !calendar.IsPastDate(dateKey, todayKey) {
		return false
	}
	for _, t := range tasks {
		if t.Date == dateKey && !t.Completed {
			return true
		}
	}
	return false
}

// TodayTasks counts the tasks dated on todayKey, ignoring visibility rules.
func TodayTasks(tasks []core.DayTask, todayKey string) (total, completed int) {
	for _, t := range tasks {
		if t.Date != todayKey {
			continue
		}
		total++
		if t.Completed {
			completed++
		}
	}
	return total, completed
}

// CountCompleted counts completed tasks.
func CountCompleted(tasks []core.DayTask) int {
	n := 0
	for _, t := range tasks {
		if t.Completed {
			n++
		}
	}
	return n
}

func incomplete(tasks []core.DayTask) []core.DayTask {
	var out []core.DayTask
	for _, t := range tasks {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out
}

func (p *PriorityCounts) add(priority core.Priority) {
	switch priority {
	case core.PriorityHigh:
		p.High++
	case core.PriorityMedium:
		p.Medium++
	case core.PriorityLow:
		p.Low++
	default:
		p.Other++
	}
}
