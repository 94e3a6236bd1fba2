package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tracker/internal/amqp"
	"tracker/internal/cache"
	"tracker/internal/core"
	"tracker/internal/storage"
	"tracker/internal/storage/memory"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.MonthChangedMessage
	err  error
}

func (p *recordingPublisher) PublishMonthChanged(_ context.Context, msg *amqp.MonthChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) sources() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Source
	}
	return out
}

// 2025-01-15 in Kolkata, 2025-01-14 in UTC.
var fixedNow = time.Date(2025, 1, 14, 20, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *TrackerService
	store  *memory.Store
	events *recordingPublisher
	user   string
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	store := memory.New()
	if err := store.CreateUser(context.Background(), core.User{ID: "u1", Email: "u1@example.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	events := &recordingPublisher{}
	n := 0
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(loc),
		WithPublisher(events),
	}
	svc := NewTrackerService(store, append(base, opts...)...)
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return fixture{svc: svc, store: store, events: events, user: "u1"}
}

func TestTrackerService_Today(t *testing.T) {
	f := newFixture(t)
	if got := f.svc.Today().Key(); got != "2025-01-15" {
		t.Errorf("Today() = %s, want 2025-01-15", got)
	}
}

func TestTrackerService_AddHabit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name     string
		habit    string
		icon     string
		goal     int
		wantGoal int
		wantIcon string
		wantErr  error
	}{
		{"default goal", "Read", "", 0, core.DefaultGoal, core.DefaultIcon, nil},
		{"clamped high", "Run", "🚶", 99, core.MaxGoal, "🚶", nil},
		{"clamped low", "Sleep", "😴", -4, core.MinGoal, "😴", nil},
		{"empty name", "   ", "", 10, 0, "", core.ErrEmptyName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := f.svc.AddHabit(ctx, f.user, tt.habit, tt.icon, tt.goal)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddHabit() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if h.Goal != tt.wantGoal || h.Icon != tt.wantIcon {
				t.Errorf("goal/icon = %d/%s, want %d/%s", h.Goal, h.Icon, tt.wantGoal, tt.wantIcon)
			}
		})
	}

	habits, _ := f.store.ListHabits(ctx, f.user)
	for i, h := range habits {
		if h.Position != i {
			t.Errorf("%s position = %d, want %d", h.Name, h.Position, i)
		}
	}
}

func TestTrackerService_AddHabitLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < core.MaxHabits; i++ {
		if _, err := f.svc.AddHabit(ctx, f.user, fmt.Sprintf("h%d", i), "", 0); err != nil {
			t.Fatalf("habit %d: %v", i, err)
		}
	}
	if _, err := f.svc.AddHabit(ctx, f.user, "one too many", "", 0); !errors.Is(err, ErrLimitReached) {
		t.Errorf("error = %v, want ErrLimitReached", err)
	}
}

func TestTrackerService_ToggleCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h, _ := f.svc.AddHabit(ctx, f.user, "Read", "", 20)

	row, err := f.svc.ToggleCompletion(ctx, f.user, h.ID, 2025, 0, 4)
	if err != nil {
		t.Fatalf("ToggleCompletion() error = %v", err)
	}
	if len(row.Completions) != 5 || !row.Completions[4] || row.Completions[0] {
		t.Errorf("completions = %v, want padded with day 5 set", row.Completions)
	}

	row, _ = f.svc.ToggleCompletion(ctx, f.user, h.ID, 2025, 0, 4)
	if row.Completions[4] {
		t.Error("second toggle should clear the day")
	}

	errs := []struct {
		name    string
		habitID string
		month   int
		day     int
		want    error
	}{
		{"day past month end", h.ID, 1, 28, ErrInvalidDay},
		{"negative day", h.ID, 0, -1, ErrInvalidDay},
		{"bad month", h.ID, 12, 0, core.ErrInvalidMonth},
		{"unknown habit", "nope", 0, 0, storage.ErrNotFound},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.ToggleCompletion(ctx, f.user, tt.habitID, 2025, tt.month, tt.day); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTrackerService_ToggleRejectsOverlongRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h, _ := f.svc.AddHabit(ctx, f.user, "Read", "", 20)
	stored := core.MonthlyCompletion{HabitID: h.ID, Year: 2025, Month: 1, Completions: make([]bool, 31)}
	if err := f.store.UpsertCompletion(ctx, stored); err != nil {
		t.Fatalf("UpsertCompletion() error = %v", err)
	}

	if _, err := f.svc.ToggleCompletion(ctx, f.user, h.ID, 2025, 1, 0); !errors.Is(err, core.ErrDayOutOfMonth) {
		t.Errorf("error = %v, want %v", err, core.ErrDayOutOfMonth)
	}
}

func TestTrackerService_UpdateGoal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h, _ := f.svc.AddHabit(ctx, f.user, "Read", "", 20)

	for _, goal := range []int{0, 32, -1} {
		if err := f.svc.UpdateGoal(ctx, f.user, h.ID, goal); !errors.Is(err, core.ErrInvalidGoal) {
			t.Errorf("UpdateGoal(%d) error = %v, want ErrInvalidGoal", goal, err)
		}
	}
	if err := f.svc.UpdateGoal(ctx, f.user, h.ID, 31); err != nil {
		t.Fatalf("UpdateGoal(31) error = %v", err)
	}
	got, _ := f.store.GetHabit(ctx, f.user, h.ID)
	if got.Goal != 31 {
		t.Errorf("goal = %d, want 31", got.Goal)
	}
}

func TestTrackerService_MoveHabit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var ids []string
	for _, name := range []string{"a", "b", "c", "d"} {
		h, _ := f.svc.AddHabit(ctx, f.user, name, "", 0)
		ids = append(ids, h.ID)
	}

	if err := f.svc.MoveHabit(ctx, f.user, ids[3], ids[1]); err != nil {
		t.Fatalf("MoveHabit() error = %v", err)
	}
	habits, _ := f.store.ListHabits(ctx, f.user)
	var order string
	for i, h := range habits {
		order += h.Name
		if h.Position != i {
			t.Errorf("%s position = %d, want %d", h.Name, h.Position, i)
		}
	}
	if order != "adbc" {
		t.Errorf("order = %s, want adbc", order)
	}

	if err := f.svc.MoveHabit(ctx, f.user, ids[0], ids[0]); err != nil {
		t.Errorf("self move error = %v", err)
	}
	if err := f.svc.MoveHabit(ctx, f.user, "ghost", ids[0]); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown habit error = %v", err)
	}
}

func TestTrackerService_DeleteHabitRemovesHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h, _ := f.svc.AddHabit(ctx, f.user, "Read", "", 0)
	f.svc.ToggleCompletion(ctx, f.user, h.ID, 2025, 0, 0)

	if err := f.svc.DeleteHabit(ctx, f.user, h.ID); err != nil {
		t.Fatalf("DeleteHabit() error = %v", err)
	}
	if _, err := f.store.GetCompletion(ctx, h.ID, 2025, 0); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("completion survived delete: %v", err)
	}
	if err := f.svc.DeleteHabit(ctx, f.user, h.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete error = %v", err)
	}
}

func TestTrackerService_Tasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	task, err := f.svc.AddTask(ctx, f.user, "Call mom", "2025-01-20", "")
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if task.Priority != core.PriorityMedium {
		t.Errorf("priority = %s, want medium", task.Priority)
	}

	bad := []struct {
		name, date, priority string
		want                 error
	}{
		{"bad date", "2025-13-01", "low", core.ErrInvalidDate},
		{"bad priority", "2025-01-20", "urgent", core.ErrInvalidPriority},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.AddTask(ctx, f.user, "x", tt.date, tt.priority); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	toggled, err := f.svc.ToggleTask(ctx, f.user, task.ID)
	if err != nil || !toggled.Completed {
		t.Fatalf("ToggleTask() = %+v, %v", toggled, err)
	}
	if err := f.svc.DeleteTask(ctx, f.user, task.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, err := f.svc.ToggleTask(ctx, f.user, task.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("toggle after delete error = %v", err)
	}
}

func TestTrackerService_TaskLimitPerDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < core.MaxTasksPerDay; i++ {
		if _, err := f.svc.AddTask(ctx, f.user, fmt.Sprintf("t%d", i), "2025-01-16", "low"); err != nil {
			t.Fatalf("task %d: %v", i, err)
		}
	}
	if _, err := f.svc.AddTask(ctx, f.user, "extra", "2025-01-16", "low"); !errors.Is(err, ErrLimitReached) {
		t.Errorf("error = %v, want ErrLimitReached", err)
	}
	if _, err := f.svc.AddTask(ctx, f.user, "other day", "2025-01-17", "low"); err != nil {
		t.Errorf("other day should still accept tasks: %v", err)
	}
}

func TestTrackerService_MonthViews(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h, _ := f.svc.AddHabit(ctx, f.user, "Read", "", 20)
	for day := 0; day < 15; day++ {
		f.svc.ToggleCompletion(ctx, f.user, h.ID, 2025, 0, day)
	}
	done, _ := f.svc.AddTask(ctx, f.user, "done past", "2025-01-03", "high")
	f.svc.ToggleTask(ctx, f.user, done.ID)
	f.svc.AddTask(ctx, f.user, "open past", "2025-01-10", "high")
	f.svc.AddTask(ctx, f.user, "today", "2025-01-15", "low")
	f.svc.AddTask(ctx, f.user, "february", "2025-02-01", "low")

	habits, err := f.svc.HabitsMonth(ctx, f.user, 2025, 0)
	if err != nil {
		t.Fatalf("HabitsMonth() error = %v", err)
	}
	if habits.Summary.Habits[0].Percentage != 75 || habits.Summary.BestStreak != 15 {
		t.Errorf("habit summary = %+v", habits.Summary.Habits[0])
	}

	tasks, err := f.svc.TasksMonth(ctx, f.user, 2025, 0, 0)
	if err != nil {
		t.Fatalf("TasksMonth() error = %v", err)
	}
	if tasks.Summary.Total != 2 || len(tasks.Summary.Groups) != 2 {
		t.Errorf("visible tasks = %d in %d groups, want 2 in 2", tasks.Summary.Total, len(tasks.Summary.Groups))
	}
	if _, err := f.svc.TasksMonth(ctx, f.user, 2025, 1, 29); !errors.Is(err, ErrInvalidDay) {
		t.Errorf("selected day 29 in Feb 2025 error = %v", err)
	}

	o, err := f.svc.Overview(ctx, f.user)
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if o.Today != "2025-01-15" || o.TodayHabitsDone != 1 || o.TotalCompletions != 16 {
		t.Errorf("overview = %+v", o)
	}

	report, err := f.svc.MonthReport(ctx, f.user, 2025, 0)
	if err != nil {
		t.Fatalf("MonthReport() error = %v", err)
	}
	if report.TasksTotal != 3 || report.TasksCompleted != 1 || report.TaskCompletion != 33 {
		t.Errorf("report tasks = %d/%d (%d%%)", report.TasksCompleted, report.TasksTotal, report.TaskCompletion)
	}
	if len(report.TopHabits) != 1 || report.TopHabits[0] != "Read" || report.HabitPercentage != 75 {
		t.Errorf("report habits = %+v", report)
	}
}

func TestTrackerService_CacheInvalidation(t *testing.T) {
	ctx := context.Background()
	lru := cache.NewLRUCache[MonthSnapshot](16, time.Hour)
	f := newFixture(t, WithCache(lru))
	h, _ := f.svc.AddHabit(ctx, f.user, "Read", "", 10)

	view, _ := f.svc.HabitsMonth(ctx, f.user, 2025, 0)
	if view.Summary.TotalCompletions != 0 {
		t.Fatalf("unexpected completions %d", view.Summary.TotalCompletions)
	}
	if lru.Size() != 1 {
		t.Fatalf("cache size = %d, want 1", lru.Size())
	}

	f.svc.ToggleCompletion(ctx, f.user, h.ID, 2025, 0, 2)
	view, _ = f.svc.HabitsMonth(ctx, f.user, 2025, 0)
	if view.Summary.TotalCompletions != 1 {
		t.Errorf("stale snapshot after toggle: %d completions", view.Summary.TotalCompletions)
	}

	f.svc.UpdateGoal(ctx, f.user, h.ID, 5)
	view, _ = f.svc.HabitsMonth(ctx, f.user, 2025, 0)
	if view.Habits[0].Goal != 5 {
		t.Errorf("stale snapshot after goal update: goal %d", view.Habits[0].Goal)
	}
}

// stallingStore pauses ListTasks after it has read its rows, so a write can
// land between the read and the snapshot being cached.
type stallingStore struct {
	storage.Store
	stall   bool
	read    chan struct{}
	release chan struct{}
}

func (s *stallingStore) ListTasks(ctx context.Context, userID, from, to string) ([]core.DayTask, error) {
	tasks, err := s.Store.ListTasks(ctx, userID, from, to)
	if s.stall {
		s.stall = false
		close(s.read)
		<-s.release
	}
	return tasks, err
}

func TestTrackerService_WriteDuringLoadIsNotCached(t *testing.T) {
	ctx := context.Background()
	lru := cache.NewLRUCache[MonthSnapshot](16, time.Hour)
	f := newFixture(t)
	store := &stallingStore{
		Store:   f.store,
		stall:   true,
		read:    make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewTrackerService(store,
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(f.svc.loc),
		WithCache(lru))

	done := make(chan error, 1)
	go func() {
		_, err := svc.TasksMonth(ctx, f.user, 2025, 0, 0)
		done <- err
	}()

	<-store.read
	if _, err := svc.AddTask(ctx, f.user, "Write report", "2025-01-20", "high"); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("TasksMonth() error = %v", err)
	}

	view, err := svc.TasksMonth(ctx, f.user, 2025, 0, 0)
	if err != nil {
		t.Fatalf("TasksMonth() error = %v", err)
	}
	if view.Summary.Total != 1 {
		t.Errorf("visible tasks after write = %d, want 1", view.Summary.Total)
	}
}

// jsonCache stores entries encoded, the way a shared cache such as Redis does.
type jsonCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (c *jsonCache) Get(_ context.Context, key string) (MonthSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var snap MonthSnapshot
	data, ok := c.entries[key]
	if !ok || json.Unmarshal(data, &snap) != nil {
		return MonthSnapshot{}, false
	}
	return snap, true
}

func (c *jsonCache) Set(_ context.Context, key string, snap MonthSnapshot) {
	data, _ := json.Marshal(snap)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
}

func (c *jsonCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *jsonCache) DeletePrefix(_ context.Context, prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func TestTrackerService_CachedSnapshotKeepsOwner(t *testing.T) {
	ctx := context.Background()
	shared := &jsonCache{entries: make(map[string][]byte)}
	f := newFixture(t, WithCache(shared))
	f.svc.AddHabit(ctx, f.user, "Read", "", 10)
	f.svc.AddTask(ctx, f.user, "Plan week", "2025-01-20", "low")

	for _, pass := range []string{"miss", "hit"} {
		habits, err := f.svc.HabitsMonth(ctx, f.user, 2025, 0)
		if err != nil {
			t.Fatalf("%s: HabitsMonth() error = %v", pass, err)
		}
		tasks, err := f.svc.TasksMonth(ctx, f.user, 2025, 0, 20)
		if err != nil {
			t.Fatalf("%s: TasksMonth() error = %v", pass, err)
		}
		if len(habits.Habits) != 1 || habits.Habits[0].UserID != f.user {
			t.Errorf("%s: habits = %+v, want owner %s", pass, habits.Habits, f.user)
		}
		if len(tasks.Summary.Groups) != 1 || tasks.Summary.Groups[0].Tasks[0].UserID != f.user {
			t.Errorf("%s: task groups = %+v, want owner %s", pass, tasks.Summary.Groups, f.user)
		}
	}
	if len(shared.entries) != 1 {
		t.Errorf("cache entries = %d, want 1", len(shared.entries))
	}
}

func TestTrackerService_PublishesBestEffort(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.events.err = errors.New("broker down")

	h, err := f.svc.AddHabit(ctx, f.user, "Read", "", 0)
	if err != nil {
		t.Fatalf("write should succeed when publishing fails: %v", err)
	}
	f.svc.ToggleCompletion(ctx, f.user, h.ID, 2024, 11, 0)
	f.svc.AddTask(ctx, f.user, "t", "2025-03-02", "")

	got := f.events.sources()
	want := []string{"add_habit", "toggle_completion", "add_task"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("sources = %v, want %v", got, want)
	}
	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	if m := f.events.msgs[1]; m.Year != 2024 || m.Month != 11 {
		t.Errorf("toggle event month = %d-%d", m.Year, m.Month)
	}
	if m := f.events.msgs[2]; m.Year != 2025 || m.Month != 2 {
		t.Errorf("task event month = %d-%d", m.Year, m.Month)
	}
}

func TestTrackerService_Isolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.CreateUser(ctx, core.User{ID: "u2", Email: "u2@example.com"})
	h, _ := f.svc.AddHabit(ctx, f.user, "Read", "", 0)

	if _, err := f.svc.ToggleCompletion(ctx, "u2", h.ID, 2025, 0, 0); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign toggle error = %v", err)
	}
	view, _ := f.svc.HabitsMonth(ctx, "u2", 2025, 0)
	if len(view.Habits) != 0 {
		t.Errorf("u2 sees %d habits", len(view.Habits))
	}
}
