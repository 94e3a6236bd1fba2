package memory

import (
	"context"
	"testing"

	"tracker/internal/core"
	"tracker/internal/storage"
	"tracker/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(*testing.T) storage.Store { return New() })
}

func TestCompletionsAreCopied(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.CreateUser(ctx, core.User{ID: "u", Email: "u@example.com"})
	_ = s.CreateHabit(ctx, core.Habit{ID: "h", UserID: "u", Name: "Read", Goal: 20})

	in := []bool{true, false}
	if err := s.UpsertCompletion(ctx, core.MonthlyCompletion{HabitID: "h", Year: 2025, Completions: in}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	in[0] = false

	got, _ := s.GetCompletion(ctx, "h", 2025, 0)
	if !got.Completions[0] {
		t.Fatal("store kept a reference to the caller's slice")
	}
	got.Completions[1] = true
	again, _ := s.GetCompletion(ctx, "h", 2025, 0)
	if again.Completions[1] {
		t.Fatal("store returned its internal slice")
	}
}
