package http

import (
	"errors"
	"net/http"
	"strings"

	"tracker/internal/auth"
	"tracker/internal/core"
	"tracker/internal/services"
	"tracker/internal/storage"
)

// sanitizeInput removes control characters other than tab and newlines
// and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// isHTMX reports whether the request came from htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// userID returns the authenticated user. Routes behind auth.Middleware
// always have one.
func userID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

var validationErrors = []error{
	core.ErrEmptyName,
	core.ErrNameTooLong,
	core.ErrInvalidGoal,
	core.ErrInvalidPriority,
	core.ErrInvalidDate,
	core.ErrInvalidMonth,
	core.ErrMissingHabit,
	core.ErrDayOutOfMonth,
	services.ErrInvalidDay,
	services.ErrLimitReached,
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the user-facing text for err. Internal errors are not
// echoed back.
func errorMessage(err error) string {
	switch statusFor(err) {
	case http.StatusUnprocessableEntity:
		return capitalize(err.Error())
	case http.StatusNotFound:
		return "Not found"
	case http.StatusConflict:
		return "Conflicting change, please reload"
	default:
		return "Something went wrong, please try again"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
