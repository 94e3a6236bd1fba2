// Package sqlite implements storage.Store on an embedded SQLite file using the
// pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"tracker/internal/core"
	"tracker/internal/storage"
)

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// DSN builds a connection string with foreign keys and a busy timeout enabled.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
}

// Open opens the database at path. Run storage.MigrateSQLite first.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                   { return s.db.Close() }

func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, formatTime(u.CreatedAt))
	return mapErr(err)
}

func (s *Store) GetUser(ctx context.Context, id string) (core.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ? COLLATE NOCASE`, email)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users ORDER BY email`)
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

const habitColumns = `id, user_id, name, icon, goal, position, created_at`

func (s *Store) ListHabits(ctx context.Context, userID string) ([]core.Habit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE user_id = ? ORDER BY position, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
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
	return out, rows.Err()
}

func (s *Store) GetHabit(ctx context.Context, userID, id string) (core.Habit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE id = ? AND user_id = ?`, id, userID)
	return scanHabit(row)
}

func (s *Store) CreateHabit(ctx context.Context, h core.Habit) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO habits (`+habitColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, h.Name, h.Icon, h.Goal, h.Position, formatTime(h.CreatedAt))
	return mapErr(err)
}

func (s *Store) DeleteHabit(ctx context.Context, userID, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM habits WHERE id = ? AND user_id = ?`, id, userID)
		if err := affected(res, err); err != nil {
			return err
		}
		// Redundant with ON DELETE CASCADE when foreign_keys is on.
		_, err = tx.ExecContext(ctx, `DELETE FROM habit_completions WHERE habit_id = ?`, id)
		return mapErr(err)
	})
}

func (s *Store) UpdateGoal(ctx context.Context, userID, id string, goal int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE habits SET goal = ? WHERE id = ? AND user_id = ?`, goal, id, userID)
	return affected(res, err)
}

func (s *Store) SetPositions(ctx context.Context, userID string, positions map[string]int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE habits SET position = ? WHERE id = ? AND user_id = ?`)
		if err != nil {
			return fmt.Errorf("prepare reorder: %w", err)
		}
		defer stmt.Close()
		for id, pos := range positions {
			res, err := stmt.ExecContext(ctx, pos, id, userID)
			if err := affected(res, err); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListCompletions(ctx context.Context, userID string, year, month int) ([]core.MonthlyCompletion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.habit_id, c.year, c.month, c.completions
		FROM habit_completions c
		JOIN habits h ON h.id = c.habit_id
		WHERE h.user_id = ? AND c.year = ? AND c.month = ?
		ORDER BY c.habit_id`, userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
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
	return out, rows.Err()
}

func (s *Store) GetCompletion(ctx context.Context, habitID string, year, month int) (core.MonthlyCompletion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT habit_id, year, month, completions FROM habit_completions
		WHERE habit_id = ? AND year = ? AND month = ?`, habitID, year, month)
	return scanCompletion(row)
}

func (s *Store) UpsertCompletion(ctx context.Context, c core.MonthlyCompletion) error {
	flags := c.Completions
	if flags == nil {
		flags = []bool{}
	}
	data, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("encode completions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO habit_completions (habit_id, year, month, completions) VALUES (?, ?, ?, ?)
		ON CONFLICT (habit_id, year, month) DO UPDATE SET completions = excluded.completions`,
		c.HabitID, c.Year, c.Month, string(data))
	return mapErr(err)
}

const taskColumns = `id, user_id, name, date, priority, completed, created_at`

func (s *Store) ListTasks(ctx context.Context, userID, from, to string) ([]core.DayTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM day_tasks WHERE user_id = ? AND date BETWEEN ? AND ? ORDER BY date, created_at`,
		userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
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
	return out, rows.Err()
}

func (s *Store) GetTask(ctx context.Context, userID, id string) (core.DayTask, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM day_tasks WHERE id = ? AND user_id = ?`, id, userID)
	return scanTask(row)
}

func (s *Store) CreateTask(ctx context.Context, t core.DayTask) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO day_tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Name, t.Date, string(t.Priority), t.Completed, formatTime(t.CreatedAt))
	return mapErr(err)
}

func (s *Store) SetTaskCompleted(ctx context.Context, userID, id string, completed bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE day_tasks SET completed = ? WHERE id = ? AND user_id = ?`, completed, id, userID)
	return affected(res, err)
}

func (s *Store) DeleteTask(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM day_tasks WHERE id = ? AND user_id = ?`, id, userID)
	return affected(res, err)
}

func (s *Store) CountTasksOn(ctx context.Context, userID, date string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM day_tasks WHERE user_id = ? AND date = ?`, userID, date).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (core.User, error) {
	var (
		u       core.User
		created string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &created); err != nil {
		return core.User{}, mapErr(err)
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

func scanHabit(row scanner) (core.Habit, error) {
	var (
		h       core.Habit
		created string
	)
	if err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Icon, &h.Goal, &h.Position, &created); err != nil {
		return core.Habit{}, mapErr(err)
	}
	h.CreatedAt = parseTime(created)
	return h, nil
}

func scanCompletion(row scanner) (core.MonthlyCompletion, error) {
	var (
		c    core.MonthlyCompletion
		data string
	)
	if err := row.Scan(&c.HabitID, &c.Year, &c.Month, &data); err != nil {
		return core.MonthlyCompletion{}, mapErr(err)
	}
	if err := json.Unmarshal([]byte(data), &c.Completions); err != nil {
		return core.MonthlyCompletion{}, fmt.Errorf("decode completions for habit %s: %w", c.HabitID, err)
	}
	return c, nil
}

func scanTask(row scanner) (core.DayTask, error) {
	var (
		t        core.DayTask
		priority string
		created  string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Date, &priority, &t.Completed, &created); err != nil {
		return core.DayTask{}, mapErr(err)
	}
	t.Priority = core.Priority(priority)
	t.CreatedAt = parseTime(created)
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var se *sqlitedriver.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", storage.ErrConflict, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %v", storage.ErrNotFound, err)
		}
	}
	return err
}
