package storage

import (
	"context"
	"errors"

	"tracker/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Ports for the persistence adapters. Every lookup is scoped to the owning
// user; a row owned by someone else reads as ErrNotFound.
type (
	UserStore interface {
		CreateUser(ctx context.Context, u core.User) error
		GetUser(ctx context.Context, id string) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
	}

	HabitStore interface {
		// ListHabits returns the user's habits ordered by position.
		ListHabits(ctx context.Context, userID string) ([]core.Habit, error)
		GetHabit(ctx context.Context, userID, id string) (core.Habit, error)
		CreateHabit(ctx context.Context, h core.Habit) error
		// DeleteHabit removes the habit and all its completion rows.
		DeleteHabit(ctx context.Context, userID, id string) error
		UpdateGoal(ctx context.Context, userID, id string, goal int) error
		// SetPositions rewrites positions in one transaction.
		SetPositions(ctx context.Context, userID string, positions map[string]int) error
	}

	CompletionStore interface {
		ListCompletions(ctx context.Context, userID string, year, month int) ([]core.MonthlyCompletion, error)
		GetCompletion(ctx context.Context, habitID string, year, month int) (core.MonthlyCompletion, error)
		// UpsertCompletion inserts or replaces the row keyed by (habit, year, month).
		UpsertCompletion(ctx context.Context, c core.MonthlyCompletion) error
	}

	TaskStore interface {
		// ListTasks returns tasks dated within [from, to], ordered by date.
		ListTasks(ctx context.Context, userID, from, to string) ([]core.DayTask, error)
		GetTask(ctx context.Context, userID, id string) (core.DayTask, error)
		CreateTask(ctx context.Context, t core.DayTask) error
		SetTaskCompleted(ctx context.Context, userID, id string, completed bool) error
		DeleteTask(ctx context.Context, userID, id string) error
		CountTasksOn(ctx context.Context, userID, date string) (int, error)
	}

	Store interface {
		UserStore
		HabitStore
		CompletionStore
		TaskStore
		Ping(ctx context.Context) error
		Close() error
	}
)
