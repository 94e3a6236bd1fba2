// Package memory is an in-process storage.Store used for local runs and tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"tracker/internal/core"
	"tracker/internal/storage"
)

type completionKey struct {
	habitID     string
	year, month int
}

type Store struct {
	mu          sync.RWMutex
	users       map[string]core.User
	habits      map[string]core.Habit
	completions map[completionKey]core.MonthlyCompletion
	tasks       map[string]core.DayTask
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:       map[string]core.User{},
		habits:      map[string]core.Habit{},
		completions: map[completionKey]core.MonthlyCompletion{},
		tasks:       map[string]core.DayTask{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return storage.ErrConflict
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return storage.ErrConflict
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, storage.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) ListHabits(_ context.Context, userID string) ([]core.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Habit
	for _, h := range s.habits {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetHabit(_ context.Context, userID, id string) (core.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.habits[id]
	if !ok || h.UserID != userID {
		return core.Habit{}, storage.ErrNotFound
	}
	return h, nil
}

func (s *Store) CreateHabit(_ context.Context, h core.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[h.UserID]; !ok {
		return storage.ErrNotFound
	}
	if _, ok := s.habits[h.ID]; ok {
		return storage.ErrConflict
	}
	s.habits[h.ID] = h
	return nil
}

func (s *Store) DeleteHabit(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[id]
	if !ok || h.UserID != userID {
		return storage.ErrNotFound
	}
	delete(s.habits, id)
	for k := range s.completions {
		if k.habitID == id {
			delete(s.completions, k)
		}
	}
	return nil
}

func (s *Store) UpdateGoal(_ context.Context, userID, id string, goal int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[id]
	if !ok || h.UserID != userID {
		return storage.ErrNotFound
	}
	h.Goal = goal
	s.habits[id] = h
	return nil
}

func (s *Store) SetPositions(_ context.Context, userID string, positions map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Check everything first so a bad id leaves no partial update.
	for id := range positions {
		if h, ok := s.habits[id]; !ok || h.UserID != userID {
			return storage.ErrNotFound
		}
	}
	for id, pos := range positions {
		h := s.habits[id]
		h.Position = pos
		s.habits[id] = h
	}
	return nil
}

func (s *Store) ListCompletions(_ context.Context, userID string, year, month int) ([]core.MonthlyCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.MonthlyCompletion
	for k, c := range s.completions {
		if k.year != year || k.month != month {
			continue
		}
		if h, ok := s.habits[k.habitID]; ok && h.UserID == userID {
			c.Completions = slices.Clone(c.Completions)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HabitID < out[j].HabitID })
	return out, nil
}

func (s *Store) GetCompletion(_ context.Context, habitID string, year, month int) (core.MonthlyCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.completions[completionKey{habitID, year, month}]
	if !ok {
		return core.MonthlyCompletion{}, storage.ErrNotFound
	}
	c.Completions = slices.Clone(c.Completions)
	return c, nil
}

func (s *Store) UpsertCompletion(_ context.Context, c core.MonthlyCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.habits[c.HabitID]; !ok {
		return storage.ErrNotFound
	}
	c.Completions = slices.Clone(c.Completions)
	s.completions[completionKey{c.HabitID, c.Year, c.Month}] = c
	return nil
}

func (s *Store) ListTasks(_ context.Context, userID, from, to string) ([]core.DayTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.DayTask
	for _, t := range s.tasks {
		if t.UserID == userID && t.Date >= from && t.Date <= to {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetTask(_ context.Context, userID, id string) (core.DayTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return core.DayTask{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) CreateTask(_ context.Context, t core.DayTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[t.UserID]; !ok {
		return storage.ErrNotFound
	}
	if _, ok := s.tasks[t.ID]; ok {
		return storage.ErrConflict
	}
	s.tasks[t.ID] = t
	return nil
}

func (s *Store) SetTaskCompleted(_ context.Context, userID, id string, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return storage.ErrNotFound
	}
	t.Completed = completed
	s.tasks[id] = t
	return nil
}

func (s *Store) DeleteTask(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return storage.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *Store) CountTasksOn(_ context.Context, userID, date string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.tasks {
		if t.UserID == userID && t.Date == date {
			n++
		}
	}
	return n, nil
}
