// Package postgres implements storage.Store on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tracker/internal/core"
	"tracker/internal/storage"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// Open creates a pool for databaseURL and verifies it with a ping.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnIdleTime = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	slog.InfoContext(ctx, "PostgreSQL connection established",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"max_conns", poolCfg.MaxConns)
	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	return mapErr(err)
}

const userColumns = `id::text, email, password_hash, created_at`

func (s *Store) GetUser(ctx context.Context, id string) (core.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

const habitColumns = `id::text, user_id::text, name, icon, goal, position, created_at`

func (s *Store) ListHabits(ctx context.Context, userID string) ([]core.Habit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE user_id = $1 ORDER BY position, created_at`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []core.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) GetHabit(ctx context.Context, userID, id string) (core.Habit, error) {
	return scanHabit(s.pool.QueryRow(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE id = $1 AND user_id = $2`, id, userID))
}

func (s *Store) CreateHabit(ctx context.Context, h core.Habit) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO habits (id, user_id, name, icon, goal, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ID, h.UserID, h.Name, h.Icon, h.Goal, h.Position, h.CreatedAt)
	return mapErr(err)
}

func (s *Store) DeleteHabit(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM habits WHERE id = $1 AND user_id = $2`, id, userID)
	return affected(tag, err)
}

func (s *Store) UpdateGoal(ctx context.Context, userID, id string, goal int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE habits SET goal = $1 WHERE id = $2 AND user_id = $3`, goal, id, userID)
	return affected(tag, err)
}

func (s *Store) SetPositions(ctx context.Context, userID string, positions map[string]int) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for id, pos := range positions {
			batch.Queue(`UPDATE habits SET position = $1 WHERE id = $2 AND user_id = $3`, pos, id, userID)
		}
		results := tx.SendBatch(ctx, batch)
		for range positions {
			tag, err := results.Exec()
			if err := affected(tag, err); err != nil {
				results.Close()
				return err
			}
		}
		return results.Close()
	})
}

func (s *Store) ListCompletions(ctx context.Context, userID string, year, month int) ([]core.MonthlyCompletion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.habit_id::text, c.year, c.month, c.completions
		FROM habit_completions c
		JOIN habits h ON h.id = c.habit_id
		WHERE h.user_id = $1 AND c.year = $2 AND c.month = $3
		ORDER BY c.habit_id`, userID, year, month)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []core.MonthlyCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) GetCompletion(ctx context.Context, habitID string, year, month int) (core.MonthlyCompletion, error) {
	return scanCompletion(s.pool.QueryRow(ctx, `
		SELECT habit_id::text, year, month, completions FROM habit_completions
		WHERE habit_id = $1 AND year = $2 AND month = $3`, habitID, year, month))
}

func (s *Store) UpsertCompletion(ctx context.Context, c core.MonthlyCompletion) error {
	flags := c.Completions
	if flags == nil {
		flags = []bool{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO habit_completions (habit_id, year, month, completions) VALUES ($1, $2, $3, $4)
		ON CONFLICT (habit_id, year, month) DO UPDATE SET completions = EXCLUDED.completions`,
		c.HabitID, c.Year, c.Month, flags)
	return mapErr(err)
}

const taskColumns = `id::text, user_id::text, name, to_char(date, 'YYYY-MM-DD'), priority, completed, created_at`

func (s *Store) ListTasks(ctx context.Context, userID, from, to string) ([]core.DayTask, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM day_tasks
		WHERE user_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date, created_at`, userID, from, to)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []core.DayTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) GetTask(ctx context.Context, userID, id string) (core.DayTask, error) {
	return scanTask(s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM day_tasks WHERE id = $1 AND user_id = $2`, id, userID))
}

func (s *Store) CreateTask(ctx context.Context, t core.DayTask) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO day_tasks (id, user_id, name, date, priority, completed, created_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7)`,
		t.ID, t.UserID, t.Name, t.Date, string(t.Priority), t.Completed, t.CreatedAt)
	return mapErr(err)
}

func (s *Store) SetTaskCompleted(ctx context.Context, userID, id string, completed bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE day_tasks SET completed = $1 WHERE id = $2 AND user_id = $3`, completed, id, userID)
	return affected(tag, err)
}

func (s *Store) DeleteTask(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM day_tasks WHERE id = $1 AND user_id = $2`, id, userID)
	return affected(tag, err)
}

func (s *Store) CountTasksOn(ctx context.Context, userID, date string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM day_tasks WHERE user_id = $1 AND date = $2::date`, userID, date).Scan(&n)
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func scanUser(row pgx.Row) (core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return core.User{}, mapErr(err)
	}
	return u, nil
}

func scanHabit(row pgx.Row) (core.Habit, error) {
	var h core.Habit
	if err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Icon, &h.Goal, &h.Position, &h.CreatedAt); err != nil {
		return core.Habit{}, mapErr(err)
	}
	return h, nil
}

func scanCompletion(row pgx.Row) (core.MonthlyCompletion, error) {
	var c core.MonthlyCompletion
	if err := row.Scan(&c.HabitID, &c.Year, &c.Month, &c.Completions); err != nil {
		return core.MonthlyCompletion{}, mapErr(err)
	}
	return c, nil
}

func scanTask(row pgx.Row) (core.DayTask, error) {
	var (
		t        core.DayTask
		priority string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Date, &priority, &t.Completed, &t.CreatedAt); err != nil {
		return core.DayTask{}, mapErr(err)
	}
	t.Priority = core.Priority(priority)
	return t, nil
}

func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", storage.ErrConflict, pgErr.ConstraintName)
		case codeForeignKeyViolation, codeInvalidText:
			// A malformed UUID can never match a row.
			return fmt.Errorf("%w: %s", storage.ErrNotFound, pgErr.Message)
		}
	}
	return err
}
