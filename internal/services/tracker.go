package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tracker/internal/amqp"
	"tracker/internal/cache"
	"tracker/internal/calendar"
	"tracker/internal/core"
	"tracker/internal/metrics"
	"tracker/internal/stats"
	"tracker/internal/storage"
)

var (
	ErrLimitReached = errors.New("limit reached")
	ErrInvalidDay   = errors.New("day outside month")
)

// EventPublisher receives a notification after every successful write.
type EventPublisher interface {
	PublishMonthChanged(ctx context.Context, msg *amqp.MonthChangedMessage) error
}

// MonthSnapshot is the raw data of one user's month. It is what gets cached;
// aggregates are always recomputed from it against the current day.
type MonthSnapshot struct {
	Year   int
	Month  int
	Habits []core.HabitWithCompletions
	Tasks  []core.DayTask
}

// TrackerService owns the habit and task write paths and assembles the
// month views the dashboard renders.
type TrackerService struct {
	store  storage.Store
	cache  cache.Cache[MonthSnapshot]
	events EventPublisher
	loc    *time.Location
	now    func() time.Time
	newID  func() string

	// mu orders snapshot stores against invalidations. A load may only
	// cache its snapshot if no write for the user finished meanwhile.
	mu          sync.Mutex
	generations map[string]uint64
}

type Option func(*TrackerService)

// WithCache enables month snapshot caching.
func WithCache(c cache.Cache[MonthSnapshot]) Option {
	return func(s *TrackerService) { s.cache = c }
}

// WithPublisher sends month-changed events after writes.
func WithPublisher(p EventPublisher) Option {
	return func(s *TrackerService) { s.events = p }
}

// WithLocation sets the time zone that decides which calendar day "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *TrackerService) { s.loc = loc }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TrackerService) { s.now = now }
}

func NewTrackerService(store storage.Store, opts ...Option) *TrackerService {
	s := &TrackerService{
		store: store,
		loc:   time.UTC,
		now:   time.Now,
		newID: uuid.NewString,

		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current calendar day in the configured time zone.
func (s *TrackerService) Today() calendar.Day {
	return calendar.DayOf(s.now(), s.loc)
}

// Store exposes the underlying store for health checks.
func (s *TrackerService) Store() storage.Store {
	return s.store
}

// --- read side ---

// HabitsView is everything the habits page and its charts need.
type HabitsView struct {
	Year        int
	Month       int
	DaysInMonth int
	Today       calendar.Day
	Habits      []core.HabitWithCompletions
	Summary     stats.HabitSummary
}

// TasksView is everything the tasks page and its charts need.
type TasksView struct {
	Window  stats.TaskWindow
	Summary stats.TaskSummary
}

func (s *TrackerService) HabitsMonth(ctx context.Context, userID string, year, month int) (HabitsView, error) {
	if !calendar.ValidMonth(month) {
		return HabitsView{}, core.ErrInvalidMonth
	}
	snap, err := s.loadMonth(ctx, userID, year, month)
	if err != nil {
		return HabitsView{}, err
	}

	start := time.Now()
	days := calendar.DaysInMonth(year, month)
	view := HabitsView{
		Year:        year,
		Month:       month,
		DaysInMonth: days,
		Today:       s.Today(),
		Habits:      snap.Habits,
		Summary:     stats.SummarizeHabits(snap.Habits, days),
	}
	metrics.RecordAggregation("habits", time.Since(start))
	return view, nil
}

// TasksMonth aggregates a month of tasks. selectedDay is 1-based; 0 means
// no day filter.
func (s *TrackerService) TasksMonth(ctx context.Context, userID string, year, month, selectedDay int) (TasksView, error) {
	if !calendar.ValidMonth(month) {
		return TasksView{}, core.ErrInvalidMonth
	}
	days := calendar.DaysInMonth(year, month)
	if selectedDay < 0 || selectedDay > days {
		return TasksView{}, ErrInvalidDay
	}
	snap, err := s.loadMonth(ctx, userID, year, month)
	if err != nil {
		return TasksView{}, err
	}

	start := time.Now()
	w := stats.TaskWindow{
		Year:        year,
		Month:       month,
		DaysInMonth: days,
		Today:       s.Today().Key(),
		SelectedDay: selectedDay,
	}
	view := TasksView{Window: w, Summary: stats.SummarizeTasks(snap.Tasks, w)}
	metrics.RecordAggregation("tasks", time.Since(start))
	return view, nil
}

// Overview summarizes the current month for the dashboard home page.
func (s *TrackerService) Overview(ctx context.Context, userID string) (stats.Overview, error) {
	today := s.Today()
	snap, err := s.loadMonth(ctx, userID, today.Year, today.Month)
	if err != nil {
		return stats.Overview{}, err
	}

	start := time.Now()
	habits := stats.SummarizeHabits(snap.Habits, calendar.DaysInMonth(today.Year, today.Month))
	o := stats.BuildOverview(habits, snap.Tasks, today)
	metrics.RecordAggregation("overview", time.Since(start))
	return o, nil
}

// MonthReport condenses a month into the exported report row. Task counts
// cover every task of the month, including completed past ones the tasks
// page hides.
func (s *TrackerService) MonthReport(ctx context.Context, userID string, year, month int) (core.MonthReport, error) {
	if !calendar.ValidMonth(month) {
		return core.MonthReport{}, core.ErrInvalidMonth
	}
	snap, err := s.loadMonth(ctx, userID, year, month)
	if err != nil {
		return core.MonthReport{}, err
	}

	days := calendar.DaysInMonth(year, month)
	hs := stats.SummarizeHabits(snap.Habits, days)
	top := make([]string, 0, len(hs.Top))
	for _, h := range hs.Top {
		top = append(top, h.Habit.Name)
	}
	completed := stats.CountCompleted(snap.Tasks)

	return core.MonthReport{
		UserID:           userID,
		Year:             year,
		Month:            month,
		DaysInMonth:      days,
		HabitCount:       len(hs.Habits),
		HabitCompletions: hs.TotalCompletions,
		HabitGoals:       hs.TotalGoals,
		HabitPercentage:  hs.OverallPercentage,
		BestStreak:       hs.BestStreak,
		TopHabits:        top,
		TasksTotal:       len(snap.Tasks),
		TasksCompleted:   completed,
		TaskCompletion:   stats.Percentage(completed, len(snap.Tasks)),
		TotalCompletions: hs.TotalCompletions + completed,
		GeneratedAt:      s.now().UTC(),
	}, nil
}

// ownedBy returns a copy of m with every row's owner set to userID. Owner
// ids are not serialized, so snapshots read back from a shared cache carry
// none.
func (m MonthSnapshot) ownedBy(userID string) MonthSnapshot {
	habits := make([]core.HabitWithCompletions, len(m.Habits))
	for i, h := range m.Habits {
		h.UserID = userID
		habits[i] = h
	}
	tasks := make([]core.DayTask, len(m.Tasks))
	for i, t := range m.Tasks {
		t.UserID = userID
		tasks[i] = t
	}
	m.Habits, m.Tasks = habits, tasks
	return m
}

func snapshotKey(userID string, year, month int) string {
	return fmt.Sprintf("%s:%04d-%02d", userID, year, month)
}

// loadMonth reads habits, completions and tasks concurrently, or returns
// the cached snapshot.
func (s *TrackerService) loadMonth(ctx context.Context, userID string, year, month int) (MonthSnapshot, error) {
	key := snapshotKey(userID, year, month)
	if s.cache != nil {
		if snap, ok := s.cache.Get(ctx, key); ok {
			metrics.CacheHit()
			return snap.ownedBy(userID), nil
		}
		metrics.CacheMiss()
	}
	gen := s.generation(userID)

	var (
		habits []core.Habit
		rows   []core.MonthlyCompletion
		tasks  []core.DayTask
	)
	from, to := calendar.MonthDateRange(year, month)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		habits, err = s.store.ListHabits(gctx, userID)
		if err != nil {
			return fmt.Errorf("list habits: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rows, err = s.store.ListCompletions(gctx, userID, year, month)
		if err != nil {
			return fmt.Errorf("list completions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		tasks, err = s.store.ListTasks(gctx, userID, from, to)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return MonthSnapshot{}, err
	}

	snap := MonthSnapshot{
		Year:   year,
		Month:  month,
		Habits: core.JoinCompletions(habits, rows),
		Tasks:  tasks,
	}
	s.storeSnapshot(ctx, userID, gen, key, snap)
	return snap, nil
}

func (s *TrackerService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

// storeSnapshot caches snap unless a write for the user completed after
// gen was read, in which case snap may predate that write.
func (s *TrackerService) storeSnapshot(ctx context.Context, userID string, gen uint64, key string, snap MonthSnapshot) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[userID] != gen {
		return
	}
	s.cache.Set(ctx, key, snap)
}

// invalidate bumps the user's generation and runs drop under the same lock,
// so no in-flight load can re-cache what drop removed.
func (s *TrackerService) invalidate(userID string, drop func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[userID]++
	if s.cache != nil {
		drop()
	}
}

// --- write side ---

// AddHabit creates a habit at the end of the user's list. A zero goal falls
// back to the default; other values are clamped into range.
func (s *TrackerService) AddHabit(ctx context.Context, userID, name, icon string, goal int) (core.Habit, error) {
	h, err := s.addHabit(ctx, userID, name, icon, goal)
	metrics.RecordMutation("add_habit", err)
	if err != nil {
		return core.Habit{}, err
	}
	s.changedAll(ctx, userID, "add_habit")
	return h, nil
}

func (s *TrackerService) addHabit(ctx context.Context, userID, name, icon string, goal int) (core.Habit, error) {
	existing, err := s.store.ListHabits(ctx, userID)
	if err != nil {
		return core.Habit{}, fmt.Errorf("list habits: %w", err)
	}
	if len(existing) >= core.MaxHabits {
		return core.Habit{}, fmt.Errorf("%w: at most %d habits", ErrLimitReached, core.MaxHabits)
	}

	icon = strings.TrimSpace(icon)
	if icon == "" {
		icon = core.DefaultIcon
	}
	h := core.Habit{
		ID:        s.newID(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		Icon:      icon,
		Goal:      core.ClampGoal(goal),
		Position:  len(existing),
		CreatedAt: s.now().UTC(),
	}
	if err := h.Validate(); err != nil {
		return core.Habit{}, err
	}
	if err := s.store.CreateHabit(ctx, h); err != nil {
		return core.Habit{}, fmt.Errorf("create habit: %w", err)
	}
	return h, nil
}

// DeleteHabit removes a habit together with all of its completion history.
func (s *TrackerService) DeleteHabit(ctx context.Context, userID, habitID string) error {
	err := s.store.DeleteHabit(ctx, userID, habitID)
	metrics.RecordMutation("delete_habit", err)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	s.changedAll(ctx, userID, "delete_habit")
	return nil
}

// ToggleCompletion flips one day of a habit's month and returns the new row.
func (s *TrackerService) ToggleCompletion(ctx context.Context, userID, habitID string, year, month, dayIndex int) (core.MonthlyCompletion, error) {
	row, err := s.toggleCompletion(ctx, userID, habitID, year, month, dayIndex)
	metrics.RecordMutation("toggle_completion", err)
	if err != nil {
		return core.MonthlyCompletion{}, err
	}
	s.changedMonth(ctx, userID, year, month, "toggle_completion")
	return row, nil
}

func (s *TrackerService) toggleCompletion(ctx context.Context, userID, habitID string, year, month, dayIndex int) (core.MonthlyCompletion, error) {
	if !calendar.ValidMonth(month) {
		return core.MonthlyCompletion{}, core.ErrInvalidMonth
	}
	if dayIndex < 0 || dayIndex >= calendar.DaysInMonth(year, month) {
		return core.MonthlyCompletion{}, ErrInvalidDay
	}
	if _, err := s.store.GetHabit(ctx, userID, habitID); err != nil {
		return core.MonthlyCompletion{}, fmt.Errorf("get habit: %w", err)
	}

	row, err := s.store.GetCompletion(ctx, habitID, year, month)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		row = core.MonthlyCompletion{HabitID: habitID, Year: year, Month: month}
	case err != nil:
		return core.MonthlyCompletion{}, fmt.Errorf("get completion: %w", err)
	}

	row = row.Toggle(dayIndex)
	if err := row.Validate(); err != nil {
		return core.MonthlyCompletion{}, err
	}
	if err := s.store.UpsertCompletion(ctx, row); err != nil {
		return core.MonthlyCompletion{}, fmt.Errorf("save completion: %w", err)
	}
	return row, nil
}

// UpdateGoal changes a habit's monthly target. Unlike AddHabit, out of
// range values are rejected rather than clamped.
func (s *TrackerService) UpdateGoal(ctx context.Context, userID, habitID string, goal int) error {
	err := core.ValidateGoal(goal)
	if err == nil {
		err = s.store.UpdateGoal(ctx, userID, habitID, goal)
		if err != nil {
			err = fmt.Errorf("update goal: %w", err)
		}
	}
	metrics.RecordMutation("update_goal", err)
	if err != nil {
		return err
	}
	s.changedAll(ctx, userID, "update_goal")
	return nil
}

// MoveHabit drops dragged onto target's slot and renumbers the list.
// Moving a habit onto itself is a no-op.
func (s *TrackerService) MoveHabit(ctx context.Context, userID, dragged, target string) error {
	if dragged == target {
		return nil
	}
	err := s.moveHabit(ctx, userID, dragged, target)
	metrics.RecordMutation("move_habit", err)
	if err != nil {
		return err
	}
	s.changedAll(ctx, userID, "move_habit")
	return nil
}

func (s *TrackerService) moveHabit(ctx context.Context, userID, dragged, target string) error {
	habits, err := s.store.ListHabits(ctx, userID)
	if err != nil {
		return fmt.Errorf("list habits: %w", err)
	}
	moved, ok := core.MoveHabit(habits, dragged, target)
	if !ok {
		return fmt.Errorf("move habit: %w", storage.ErrNotFound)
	}

	before := make(map[string]int, len(habits))
	for _, h := range habits {
		before[h.ID] = h.Position
	}
	// Positions may have gaps after deletes, so compare rather than assume.
	positions := make(map[string]int, len(moved))
	for _, h := range moved {
		if before[h.ID] != h.Position {
			positions[h.ID] = h.Position
		}
	}
	if err := s.store.SetPositions(ctx, userID, positions); err != nil {
		return fmt.Errorf("save positions: %w", err)
	}
	return nil
}

// AddTask schedules a task on date (YYYY-MM-DD). An empty priority means medium.
func (s *TrackerService) AddTask(ctx context.Context, userID, name, date, priority string) (core.DayTask, error) {
	t, err := s.addTask(ctx, userID, name, date, priority)
	metrics.RecordMutation("add_task", err)
	if err != nil {
		return core.DayTask{}, err
	}
	s.changedDate(ctx, userID, t.Date, "add_task")
	return t, nil
}

func (s *TrackerService) addTask(ctx context.Context, userID, name, date, priority string) (core.DayTask, error) {
	p, err := core.ParsePriority(priority)
	if err != nil {
		return core.DayTask{}, err
	}
	t := core.DayTask{
		ID:        s.newID(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		Date:      strings.TrimSpace(date),
		Priority:  p,
		CreatedAt: s.now().UTC(),
	}
	if err := t.Validate(); err != nil {
		return core.DayTask{}, err
	}

	n, err := s.store.CountTasksOn(ctx, userID, t.Date)
	if err != nil {
		return core.DayTask{}, fmt.Errorf("count tasks: %w", err)
	}
	if n >= core.MaxTasksPerDay {
		return core.DayTask{}, fmt.Errorf("%w: at most %d tasks per day", ErrLimitReached, core.MaxTasksPerDay)
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return core.DayTask{}, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// ToggleTask flips a task's completed flag and returns the updated task.
func (s *TrackerService) ToggleTask(ctx context.Context, userID, taskID string) (core.DayTask, error) {
	t, err := s.store.GetTask(ctx, userID, taskID)
	if err == nil {
		t.Completed = !t.Completed
		err = s.store.SetTaskCompleted(ctx, userID, taskID, t.Completed)
	}
	metrics.RecordMutation("toggle_task", err)
	if err != nil {
		return core.DayTask{}, fmt.Errorf("toggle task: %w", err)
	}
	s.changedDate(ctx, userID, t.Date, "toggle_task")
	return t, nil
}

func (s *TrackerService) DeleteTask(ctx context.Context, userID, taskID string) error {
	t, err := s.store.GetTask(ctx, userID, taskID)
	if err == nil {
		err = s.store.DeleteTask(ctx, userID, taskID)
	}
	metrics.RecordMutation("delete_task", err)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.changedDate(ctx, userID, t.Date, "delete_task")
	return nil
}

// changedAll handles writes that touch every month, such as goal edits.
func (s *TrackerService) changedAll(ctx context.Context, userID, source string) {
	s.invalidate(userID, func() { s.cache.DeletePrefix(ctx, userID+":") })
	today := s.Today()
	s.publish(ctx, amqp.NewMonthChangedMessage(userID, today.Year, today.Month, source))
}

func (s *TrackerService) changedMonth(ctx context.Context, userID string, year, month int, source string) {
	s.invalidate(userID, func() { s.cache.Delete(ctx, snapshotKey(userID, year, month)) })
	s.publish(ctx, amqp.NewMonthChangedMessage(userID, year, month, source))
}

func (s *TrackerService) changedDate(ctx context.Context, userID, date, source string) {
	d, err := calendar.ParseKey(date)
	if err != nil {
		s.changedAll(ctx, userID, source)
		return
	}
	s.changedMonth(ctx, userID, d.Year, d.Month, source)
}

// publish is best effort: the write already succeeded.
func (s *TrackerService) publish(ctx context.Context, msg *amqp.MonthChangedMessage) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishMonthChanged(ctx, msg); err != nil {
		slog.WarnContext(ctx, "Failed to publish month changed message",
			"user_id", msg.UserID,
			"year", msg.Year,
			"month", msg.Month,
			"source", msg.Source,
			"error", err)
	}
}
