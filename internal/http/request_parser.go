// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tracker/internal/calendar"
)

// maxBodyBytes bounds write request bodies.
const maxBodyBytes = 64 << 10

// MonthParams holds a parsed year and zero-based month.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams reads year and zero-based month from query values,
// defaulting to today's month. A month outside 0..11 or a year outside
// 1..9999 falls back to today's month and reports ok=false.
func ParseMonthParams(query url.Values, today calendar.Day) (params MonthParams, ok bool) {
	params = MonthParams{Year: today.Year, Month: today.Month}
	ok = true

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return MonthParams{Year: today.Year, Month: today.Month}, false
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || !calendar.ValidMonth(m) {
			return MonthParams{Year: today.Year, Month: today.Month}, false
		}
		params.Month = m
	}
	return params, ok
}

// ParseSelectedDay reads the 1-based "day" filter. Missing or malformed
// values mean no filter; range checks are left to the service.
func ParseSelectedDay(query url.Values) int {
	v := strings.TrimSpace(query.Get("day"))
	if v == "" {
		return 0
	}
	d, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return d
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser reads the body once, up to maxBodyBytes.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

var errMissingField = errors.New("missing field")

// Int returns key as an integer, or errMissingField when absent.
func (p *RequestBodyParser) Int(key string) (int, error) {
	v := p.Get(key)
	if v == "" {
		return 0, errMissingField
	}
	return strconv.Atoi(v)
}

// IntOr returns key as an integer, or def when absent or malformed.
func (p *RequestBodyParser) IntOr(key string, def int) int {
	n, err := p.Int(key)
	if err != nil {
		return def
	}
	return n
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// parseBody parses the request body and returns an error response on failure.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, *HTMXResponseBuilder) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		return nil, BadRequestError("Invalid request format")
	}
	return p, nil
}
