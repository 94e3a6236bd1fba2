package core

import (
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"tracker/internal/calendar"
)

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Limits applied by the write paths.
const (
	MinGoal           = 1
	MaxGoal           = 31
	DefaultGoal       = 20
	MaxHabits         = 25
	MaxTasksPerDay    = 50
	MaxNameLength     = 200
	MinPasswordLength = 8
	DefaultIcon       = "💪"
)

type (
	Priority string

	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Habit struct {
		ID        string    `json:"id"`
		UserID    string    `json:"-"`
		Name      string    `json:"name"`
		Icon      string    `json:"icon"`
		Goal      int       `json:"goal"`
		Position  int       `json:"position"`
		CreatedAt time.Time `json:"created_at"`
	}

	// MonthlyCompletion stores one habit's done-flags for a month.
	// Completions[0] is day 1; a short slice means the tail is not done.
	MonthlyCompletion struct {
		HabitID     string
		Year        int
		Month       int // 0-11
		Completions []bool
	}

	// HabitWithCompletions is a habit joined with the month under view.
	HabitWithCompletions struct {
		Habit
		Completions []bool
	}

	DayTask struct {
		ID        string    `json:"id"`
		UserID    string    `json:"-"`
		Name      string    `json:"name"`
		Date      string    `json:"date"` // YYYY-MM-DD
		Priority  Priority  `json:"priority"`
		Completed bool      `json:"completed"`
		CreatedAt time.Time `json:"created_at"`
	}

	Icon struct {
		Emoji string
		Label string
	}
)

// Icons is the catalogue offered when creating a habit.
var Icons = []Icon{
	{"💪", "Fitness"},
	{"📚", "Reading"},
	{"🧘", "Meditation"},
	{"✍️", "Writing"},
	{"💧", "Hydration"},
	{"🥗", "Nutrition"},
	{"😴", "Sleep"},
	{"🚶", "Walking"},
	{"💻", "Coding"},
	{"🎨", "Art"},
	{"📝", "Journaling"},
	{"🎵", "Music"},
	{"🧹", "Cleaning"},
	{"💰", "Saving"},
	{"📱", "Screen Time"},
	{"⭐", "Goal"},
}

var (
	ErrEmptyName        = errors.New("empty name")
	ErrNameTooLong      = errors.New("name too long (max 200 characters)")
	ErrInvalidGoal      = errors.New("goal must be between 1 and 31")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrMissingHabit     = errors.New("missing habit")
	ErrDayOutOfMonth    = errors.New("completions past the end of the month")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
)

// ParsePriority maps user input onto a priority, defaulting to medium.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", ErrInvalidPriority
	}
}

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ClampGoal normalizes a requested goal for a new habit: zero falls back to
// the default, anything else is clamped to the valid range.
func ClampGoal(goal int) int {
	if goal == 0 {
		return DefaultGoal
	}
	return min(MaxGoal, max(MinGoal, goal))
}

// ValidateGoal rejects goals outside 1..31.
func ValidateGoal(goal int) error {
	if goal < MinGoal || goal > MaxGoal {
		return ErrInvalidGoal
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

func (h Habit) Validate() error {
	if err := validateName(h.Name); err != nil {
		return err
	}
	return ValidateGoal(h.Goal)
}

func (t DayTask) Validate() error {
	if err := validateName(t.Name); err != nil {
		return err
	}
	if _, err := calendar.ParseKey(t.Date); err != nil {
		return ErrInvalidDate
	}
	if !t.Priority.Valid() {
		return ErrInvalidPriority
	}
	return nil
}

// Validate checks the row can be stored: a known habit, a real month and no
// flags past the month's last day.
func (c MonthlyCompletion) Validate() error {
	if c.HabitID == "" {
		return ErrMissingHabit
	}
	if !calendar.ValidMonth(c.Month) {
		return ErrInvalidMonth
	}
	if len(c.Completions) > calendar.DaysInMonth(c.Year, c.Month) {
		return ErrDayOutOfMonth
	}
	return nil
}

// ValidateCredentials checks the sign-up form fields.
func ValidateCredentials(email, password string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Done reports whether the day index is marked, treating missing entries as false.
func (h HabitWithCompletions) Done(dayIndex int) bool {
	return dayIndex >= 0 && dayIndex < len(h.Completions) && h.Completions[dayIndex]
}

// Toggle flips one day, padding the slice with false as needed.
func (c MonthlyCompletion) Toggle(dayIndex int) MonthlyCompletion {
	next := make([]bool, max(len(c.Completions), dayIndex+1))
	copy(next, c.Completions)
	next[dayIndex] = !next[dayIndex]
	c.Completions = next
	return c
}

// JoinCompletions pairs each habit with its completion row for the month.
// Habits without a row get an empty sequence. Habit order is preserved.
func JoinCompletions(habits []Habit, rows []MonthlyCompletion) []HabitWithCompletions {
	byHabit := make(map[string][]bool, len(rows))
	for _, r := range rows {
		byHabit[r.HabitID] = r.Completions
	}
	out := make([]HabitWithCompletions, 0, len(habits))
	for _, h := range habits {
		out = append(out, HabitWithCompletions{Habit: h, Completions: byHabit[h.ID]})
	}
	return out
}

// MoveHabit moves the habit with id dragged to the index of target and
// renumbers positions 0..n-1. It returns false when either id is unknown
// or both are the same.
func MoveHabit(habits []Habit, dragged, target string) ([]Habit, bool) {
	from, to := -1, -1
	for i, h := range habits {
		if h.ID == dragged {
			from = i
		}
		if h.ID == target {
			to = i
		}
	}
	if from == -1 || to == -1 || from == to {
		return habits, false
	}

	out := make([]Habit, 0, len(habits))
	out = append(out, habits[:from]...)
	out = append(out, habits[from+1:]...)
	moved := habits[from]
	out = append(out[:to], append([]Habit{moved}, out[to:]...)...)
	for i := range out {
		out[i].Position = i
	}
	return out, true
}
