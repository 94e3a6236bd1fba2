package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"tracker/internal/calendar"
)

func TestParseMonthParams(t *testing.T) {
	today := calendar.Day{Year: 2024, Month: 4, Day: 10}

	tests := []struct {
		name      string
		query     url.Values
		wantYear  int
		wantMonth int
		wantOK    bool
	}{
		{"both values provided", url.Values{"year": {"2023"}, "month": {"11"}}, 2023, 11, true},
		{"zero-based january", url.Values{"year": {"2024"}, "month": {"0"}}, 2024, 0, true},
		{"only year", url.Values{"year": {"2023"}}, 2023, 4, true},
		{"only month", url.Values{"month": {"1"}}, 2024, 1, true},
		{"none", url.Values{}, 2024, 4, true},
		{"month twelve", url.Values{"month": {"12"}}, 2024, 4, false},
		{"negative month", url.Values{"month": {"-1"}}, 2024, 4, false},
		{"garbage year", url.Values{"year": {"abc"}, "month": {"3"}}, 2024, 4, false},
		{"year zero", url.Values{"year": {"0"}}, 2024, 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseMonthParams(tt.query, today)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got.Year != tt.wantYear || got.Month != tt.wantMonth {
				t.Errorf("got %d/%d, want %d/%d", got.Year, got.Month, tt.wantYear, tt.wantMonth)
			}
		})
	}
}

func TestParseSelectedDay(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{"7", 7},
		{" 31 ", 31},
		{"x", 0},
		{"40", 40},
	}
	for _, tt := range tests {
		if got := ParseSelectedDay(url.Values{"day": {tt.raw}}); got != tt.want {
			t.Errorf("ParseSelectedDay(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"habit_id": "h1", "name": "Read", "goal": 12, "done": true}`
	req := httptest.NewRequest(http.MethodPost, "/habits", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if id := parser.Get("habit_id"); id != "h1" {
		t.Errorf("Get('habit_id') = %q, want 'h1'", id)
	}
	if goal, err := parser.Int("goal"); err != nil || goal != 12 {
		t.Errorf("Int('goal') = %d, %v", goal, err)
	}
	if done := parser.Get("done"); done != "true" {
		t.Errorf("Get('done') = %q", done)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "task_id=t1&name=buy+milk%01&year=2024"
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if name := parser.Get("name"); name != "buy milk" {
		t.Errorf("Get('name') = %q, want control characters stripped", name)
	}
	if y := parser.IntOr("year", 0); y != 2024 {
		t.Errorf("IntOr('year') = %d", y)
	}
	if m := parser.IntOr("month", 7); m != 7 {
		t.Errorf("IntOr default = %d, want 7", m)
	}
	if _, err := parser.Int("missing"); err == nil {
		t.Error("Int on missing field should fail")
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequestBodyParser_BadJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"name":`))

	if _, errResp := parseBody(httptest.NewRecorder(), req); errResp == nil {
		t.Fatal("expected an error response")
	}
}
