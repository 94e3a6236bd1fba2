package stats

import (
	"tracker/internal/calendar"
	"tracker/internal/core"
)

// Overview holds the headline numbers of the dashboard home page.
type Overview struct {
	Today               string                      `json:"today"`
	CurrentDay          int                         `json:"current_day"`
	DaysInMonth         int                         `json:"days_in_month"`
	DaysLeft            int                         `json:"days_left"`
	MonthProgress       float64                     `json:"month_progress"`
	HabitCount          int                         `json:"habit_count"`
	TodayHabitsDone     int                         `json:"today_habits_done"`
	TodayTasksTotal     int                         `json:"today_tasks_total"`
	TodayTasksCompleted int                         `json:"today_tasks_completed"`
	TotalCompletions    int                         `json:"total_completions"`
	HabitSuccessRate    int                         `json:"habit_success_rate"`
	RemainingGoal       int                         `json:"remaining_goal"`
	TasksCompleted      int                         `json:"tasks_completed"`
	Weekly              [calendar.WeeksPerMonth]int `json:"weekly"`
}

// BuildOverview combines a month's habit summary with that month's raw task
// rows as seen on today. Today's task counts come from the raw rows since
// today's tasks are never hidden.
func BuildOverview(habits HabitSummary, tasks []core.DayTask, today calendar.Day) Overview {
	days := len(habits.DailyConsistency)
	if days == 0 {
		days = calendar.DaysInMonth(today.Year, today.Month)
	}

	o := Overview{
		Today:            today.Key(),
		CurrentDay:       today.Day,
		DaysInMonth:      days,
		DaysLeft:         max(0, days-today.Day),
		HabitCount:       len(habits.Habits),
		TodayHabitsDone:  habits.CompletionsOn(today.Day),
		HabitSuccessRate: habits.SuccessRate(),
		RemainingGoal:    habits.RemainingGoal(),
		Weekly:           habits.Weekly,
	}
	if days > 0 {
		o.MonthProgress = float64(today.Day) / float64(days)
	}

	o.TodayTasksTotal, o.TodayTasksCompleted = TodayTasks(tasks, o.Today)
	o.TasksCompleted = CountCompleted(tasks)
	o.TotalCompletions = habits.TotalCompletions + o.TasksCompleted
	return o
}
