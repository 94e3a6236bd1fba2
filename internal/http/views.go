package http

import (
	"html/template"
	"strconv"
	"time"

	"tracker/internal/calendar"
	"tracker/internal/core"
	"tracker/internal/services"
	"tracker/internal/stats"
)

var templateFuncs = template.FuncMap{
	"monthName": monthName,
	"percent": func(f float64) int {
		return int(f*100 + 0.5)
	},
	"barHeight": barHeight,
}

// monthName names a zero-based month.
func monthName(month int) string {
	if !calendar.ValidMonth(month) {
		return ""
	}
	return time.Month(month + 1).String()
}

// barHeight scales v against peak into a 0..100 CSS height.
func barHeight(v, peak int) int {
	if peak <= 0 || v <= 0 {
		return 0
	}
	return min(100, stats.Percentage(v, peak))
}

type (
	// monthNav drives the previous/next month links.
	monthNav struct {
		Year      int
		Month     int
		Label     string
		PrevYear  int
		PrevMonth int
		NextYear  int
		NextMonth int
	}

	habitCell struct {
		Index  int
		Day    int
		Done   bool
		Today  bool
		Future bool
	}

	habitRow struct {
		ID         string
		Name       string
		Icon       string
		Goal       int
		Total      int
		Percentage int
		Cells      []habitCell
	}

	dayBar struct {
		Day    int
		Count  int
		Height int
	}

	habitsPage struct {
		Title       string
		Active      string
		Nav         monthNav
		Days        []int
		Rows        []habitRow
		Summary     stats.HabitSummary
		Consistency []dayBar
		Weekly      []dayBar
		Icons       []core.Icon
		DefaultGoal int
		CanAdd      bool
	}

	dayLink struct {
		Day      int
		Selected bool
		Today    bool
		Count    int
	}

	tasksPage struct {
		Title      string
		Active     string
		Nav        monthNav
		Days       []dayLink
		Selected   int
		DefaultDay string
		Summary    stats.TaskSummary
		Weekly     []weekTasks
	}

	weekTasks struct {
		Week      int
		Total     int
		Completed int
		Height    int
	}

	overviewPage struct {
		Title    string
		Active   string
		Overview stats.Overview
		Month    string
		Weekly   []dayBar
	}

	authPage struct {
		Title string
		Email string
		Error string
	}
)

func newMonthNav(year, month int) monthNav {
	n := monthNav{
		Year:      year,
		Month:     month,
		Label:     monthName(month) + " " + strconv.Itoa(year),
		PrevYear:  year,
		PrevMonth: month - 1,
		NextYear:  year,
		NextMonth: month + 1,
	}
	if n.PrevMonth < 0 {
		n.PrevMonth, n.PrevYear = 11, year-1
	}
	if n.NextMonth > 11 {
		n.NextMonth, n.NextYear = 0, year+1
	}
	return n
}

func newHabitsPage(v services.HabitsView) habitsPage {
	p := habitsPage{
		Title:       "Habits",
		Active:      "habits",
		Nav:         newMonthNav(v.Year, v.Month),
		Days:        make([]int, v.DaysInMonth),
		Rows:        make([]habitRow, 0, len(v.Habits)),
		Summary:     v.Summary,
		Icons:       core.Icons,
		DefaultGoal: core.DefaultGoal,
		CanAdd:      len(v.Habits) < core.MaxHabits,
	}
	for i := range p.Days {
		p.Days[i] = i + 1
	}

	todayKey := v.Today.Key()
	for i, h := range v.Habits {
		row := habitRow{
			ID:    h.ID,
			Name:  h.Name,
			Icon:  h.Icon,
			Goal:  h.Goal,
			Cells: make([]habitCell, v.DaysInMonth),
		}
		if i < len(v.Summary.Habits) {
			row.Total = v.Summary.Habits[i].Total
			row.Percentage = v.Summary.Habits[i].Percentage
		}
		for d := range row.Cells {
			key := calendar.FormatDateKey(v.Year, v.Month, d+1)
			row.Cells[d] = habitCell{
				Index:  d,
				Day:    d + 1,
				Done:   h.Done(d),
				Today:  key == todayKey,
				Future: key > todayKey,
			}
		}
		p.Rows = append(p.Rows, row)
	}

	peak := 0
	for _, n := range v.Summary.DailyConsistency {
		peak = max(peak, n)
	}
	for d, n := range v.Summary.DailyConsistency {
		p.Consistency = append(p.Consistency, dayBar{Day: d + 1, Count: n, Height: barHeight(n, peak)})
	}
	p.Weekly = weeklyBars(v.Summary.Weekly)
	return p
}

func weeklyBars(weekly [calendar.WeeksPerMonth]int) []dayBar {
	peak := 0
	for _, n := range weekly {
		peak = max(peak, n)
	}
	bars := make([]dayBar, 0, len(weekly))
	for i, n := range weekly {
		bars = append(bars, dayBar{Day: i + 1, Count: n, Height: barHeight(n, peak)})
	}
	return bars
}

func newTasksPage(v services.TasksView, today calendar.Day) tasksPage {
	w := v.Window
	p := tasksPage{
		Title:    "Tasks",
		Active:   "tasks",
		Nav:      newMonthNav(w.Year, w.Month),
		Days:     make([]dayLink, w.DaysInMonth),
		Selected: w.SelectedDay,
		Summary:  v.Summary,
	}
	for d := range p.Days {
		key := calendar.FormatDateKey(w.Year, w.Month, d+1)
		count := 0
		if d < len(v.Summary.ByDay) {
			count = v.Summary.ByDay[d]
		}
		p.Days[d] = dayLink{Day: d + 1, Selected: d+1 == w.SelectedDay, Today: key == w.Today, Count: count}
	}

	// The add form defaults to the selected day, then today if it is in
	// view, then the first of the month.
	switch {
	case w.SelectedDay > 0:
		p.DefaultDay = w.SelectedKey()
	case today.InMonth(w.Year, w.Month):
		p.DefaultDay = today.Key()
	default:
		p.DefaultDay = calendar.FormatDateKey(w.Year, w.Month, 1)
	}

	peak := 0
	for _, n := range v.Summary.WeeklyTotal {
		peak = max(peak, n)
	}
	for i := range v.Summary.WeeklyTotal {
		p.Weekly = append(p.Weekly, weekTasks{
			Week:      i + 1,
			Total:     v.Summary.WeeklyTotal[i],
			Completed: v.Summary.WeeklyCompleted[i],
			Height:    barHeight(v.Summary.WeeklyTotal[i], peak),
		})
	}
	return p
}

func newOverviewPage(o stats.Overview, today calendar.Day) overviewPage {
	return overviewPage{
		Title:    "Dashboard",
		Active:   "overview",
		Overview: o,
		Month:    monthName(today.Month) + " " + strconv.Itoa(today.Year),
		Weekly:   weeklyBars(o.Weekly),
	}
}
