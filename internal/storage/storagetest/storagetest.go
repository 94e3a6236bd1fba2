// Package storagetest holds a behavioural suite shared by the storage.Store
// implementations.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"tracker/internal/core"
	"tracker/internal/storage"
)

// Run exercises a fresh store returned by open. Each subtest gets its own store.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("habits", func(t *testing.T) { testHabits(t, open(t)) })
	t.Run("completions", func(t *testing.T) { testCompletions(t, open(t)) })
	t.Run("tasks", func(t *testing.T) { testTasks(t, open(t)) })
	t.Run("ownership", func(t *testing.T) { testOwnership(t, open(t)) })
}

var base = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

func mustUser(t *testing.T, s storage.Store, email string) core.User {
	t.Helper()
	u := core.User{ID: uuid.NewString(), Email: email, PasswordHash: "hash", CreatedAt: base}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func mustHabit(t *testing.T, s storage.Store, userID, name string, pos int) core.Habit {
	t.Helper()
	h := core.Habit{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Icon:      core.DefaultIcon,
		Goal:      core.DefaultGoal,
		Position:  pos,
		CreatedAt: base.Add(time.Duration(pos) * time.Minute),
	}
	if err := s.CreateHabit(context.Background(), h); err != nil {
		t.Fatalf("create habit: %v", err)
	}
	return h
}

func mustTask(t *testing.T, s storage.Store, userID, name, date string) core.DayTask {
	t.Helper()
	task := core.DayTask{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Date:      date,
		Priority:  core.PriorityMedium,
		CreatedAt: base,
	}
	if err := s.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "ada@example.com")

	got, err := s.GetUserByEmail(ctx, "ada@example.com")
	if err != nil || got.ID != u.ID {
		t.Fatalf("get by email: %+v, %v", got, err)
	}
	if _, err := s.GetUser(ctx, u.ID); err != nil {
		t.Fatalf("get user: %v", err)
	}
	if _, err := s.GetUser(ctx, uuid.NewString()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing user err = %v, want ErrNotFound", err)
	}

	dup := core.User{ID: uuid.NewString(), Email: "ada@example.com", PasswordHash: "x", CreatedAt: base}
	if err := s.CreateUser(ctx, dup); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("duplicate email err = %v, want ErrConflict", err)
	}

	mustUser(t, s, "bob@example.com")
	users, err := s.ListUsers(ctx)
	if err != nil || len(users) != 2 {
		t.Fatalf("list users: %d, %v", len(users), err)
	}
}

func testHabits(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "ada@example.com")
	a := mustHabit(t, s, u.ID, "Read", 0)
	b := mustHabit(t, s, u.ID, "Run", 1)
	c := mustHabit(t, s, u.ID, "Sleep", 2)

	if err := s.SetPositions(ctx, u.ID, map[string]int{a.ID: 2, b.ID: 0, c.ID: 1}); err != nil {
		t.Fatalf("set positions: %v", err)
	}
	habits, err := s.ListHabits(ctx, u.ID)
	if err != nil {
		t.Fatalf("list habits: %v", err)
	}
	if len(habits) != 3 || habits[0].ID != b.ID || habits[1].ID != c.ID || habits[2].ID != a.ID {
		t.Errorf("unexpected order: %v", names(habits))
	}

	if err := s.UpdateGoal(ctx, u.ID, a.ID, 7); err != nil {
		t.Fatalf("update goal: %v", err)
	}
	got, err := s.GetHabit(ctx, u.ID, a.ID)
	if err != nil || got.Goal != 7 {
		t.Errorf("goal after update = %d, %v", got.Goal, err)
	}

	if err := s.DeleteHabit(ctx, u.ID, a.ID); err != nil {
		t.Fatalf("delete habit: %v", err)
	}
	if _, err := s.GetHabit(ctx, u.ID, a.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("deleted habit err = %v", err)
	}
	if err := s.DeleteHabit(ctx, u.ID, a.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func testCompletions(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "ada@example.com")
	h := mustHabit(t, s, u.ID, "Read", 0)

	if _, err := s.GetCompletion(ctx, h.ID, 2025, 0); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing completion err = %v", err)
	}

	row := core.MonthlyCompletion{HabitID: h.ID, Year: 2025, Month: 0, Completions: []bool{true, false, true}}
	if err := s.UpsertCompletion(ctx, row); err != nil {
		t.Fatalf("insert completion: %v", err)
	}
	row.Completions = []bool{false, false, true, true}
	if err := s.UpsertCompletion(ctx, row); err != nil {
		t.Fatalf("update completion: %v", err)
	}

	got, err := s.GetCompletion(ctx, h.ID, 2025, 0)
	if err != nil {
		t.Fatalf("get completion: %v", err)
	}
	if len(got.Completions) != 4 || got.Completions[0] || !got.Completions[3] {
		t.Errorf("completions = %v", got.Completions)
	}

	other := core.MonthlyCompletion{HabitID: h.ID, Year: 2025, Month: 1, Completions: []bool{true}}
	if err := s.UpsertCompletion(ctx, other); err != nil {
		t.Fatalf("insert february: %v", err)
	}
	rows, err := s.ListCompletions(ctx, u.ID, 2025, 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("list january: %d rows, %v", len(rows), err)
	}

	if err := s.DeleteHabit(ctx, u.ID, h.ID); err != nil {
		t.Fatalf("delete habit: %v", err)
	}
	if _, err := s.GetCompletion(ctx, h.ID, 2025, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("completion should go with its habit, err = %v", err)
	}
}

func testTasks(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "ada@example.com")
	mustTask(t, s, u.ID, "late", "2025-01-31")
	a := mustTask(t, s, u.ID, "first", "2025-01-02")
	mustTask(t, s, u.ID, "next month", "2025-02-01")
	mustTask(t, s, u.ID, "same day", "2025-01-02")

	tasks, err := s.ListTasks(ctx, u.ID, "2025-01-01", "2025-01-31")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 3 || tasks[0].Date != "2025-01-02" || tasks[2].Date != "2025-01-31" {
		t.Errorf("tasks = %+v", tasks)
	}

	n, err := s.CountTasksOn(ctx, u.ID, "2025-01-02")
	if err != nil || n != 2 {
		t.Errorf("count on day = %d, %v", n, err)
	}

	if err := s.SetTaskCompleted(ctx, u.ID, a.ID, true); err != nil {
		t.Fatalf("complete task: %v", err)
	}
	got, err := s.GetTask(ctx, u.ID, a.ID)
	if err != nil || !got.Completed || got.Priority != core.PriorityMedium {
		t.Errorf("task after toggle = %+v, %v", got, err)
	}

	if err := s.DeleteTask(ctx, u.ID, a.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, err := s.GetTask(ctx, u.ID, a.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("deleted task err = %v", err)
	}
}

func testOwnership(t *testing.T, s storage.Store) {
	ctx := context.Background()
	ada := mustUser(t, s, "ada@example.com")
	bob := mustUser(t, s, "bob@example.com")
	h := mustHabit(t, s, ada.ID, "Read", 0)
	task := mustTask(t, s, ada.ID, "Call", "2025-01-05")

	if _, err := s.GetHabit(ctx, bob.ID, h.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign habit read err = %v", err)
	}
	if err := s.UpdateGoal(ctx, bob.ID, h.ID, 3); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign goal update err = %v", err)
	}
	if err := s.DeleteTask(ctx, bob.ID, task.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign task delete err = %v", err)
	}
	if err := s.SetPositions(ctx, bob.ID, map[string]int{h.ID: 4}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign reorder err = %v", err)
	}
	habits, _ := s.ListHabits(ctx, bob.ID)
	tasks, _ := s.ListTasks(ctx, bob.ID, "2025-01-01", "2025-12-31")
	if len(habits) != 0 || len(tasks) != 0 {
		t.Errorf("bob sees %d habits and %d tasks", len(habits), len(tasks))
	}
}

func names(habits []core.Habit) []string {
	out := make([]string, len(habits))
	for i, h := range habits {
		out[i] = h.Name
	}
	return out
}
