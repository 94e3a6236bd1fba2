package http

import (
	"net/http"

	"tracker/internal/log"
)

// apiError writes err as JSON with the status its kind maps to.
func (s *Server) apiError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.LogError(r.Context(), "API request failed", err, log.ErrorTypeInternal, log.OpRead,
			log.NewFields().WithComponent(log.ComponentTracker).WithUser(userID(r)))
	}
	writeJSON(w, status, map[string]string{"error": errorMessage(err)})
}

// monthQuery parses year and month strictly: the JSON API rejects bad
// params instead of falling back to the current month.
func (s *Server) monthQuery(w http.ResponseWriter, r *http.Request) (MonthParams, bool) {
	params, ok := ParseMonthParams(r.URL.Query(), s.today())
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid year or month"})
	}
	return params, ok
}

func (s *Server) handleHabitStatsAPI(w http.ResponseWriter, r *http.Request) {
	params, ok := s.monthQuery(w, r)
	if !ok {
		return
	}
	view, err := s.tracker.HabitsMonth(r.Context(), userID(r), params.Year, params.Month)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":           view.Year,
		"month":          view.Month,
		"days_in_month":  view.DaysInMonth,
		"summary":        view.Summary,
		"remaining_goal": view.Summary.RemainingGoal(),
		"success_rate":   view.Summary.SuccessRate(),
	})
}

func (s *Server) handleTaskStatsAPI(w http.ResponseWriter, r *http.Request) {
	params, ok := s.monthQuery(w, r)
	if !ok {
		return
	}
	view, err := s.tracker.TasksMonth(r.Context(), userID(r), params.Year, params.Month, ParseSelectedDay(r.URL.Query()))
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":          view.Window.Year,
		"month":         view.Window.Month,
		"days_in_month": view.Window.DaysInMonth,
		"selected_day":  view.Window.SelectedDay,
		"summary":       view.Summary,
	})
}

func (s *Server) handleOverviewAPI(w http.ResponseWriter, r *http.Request) {
	o, err := s.tracker.Overview(r.Context(), userID(r))
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleReportAPI(w http.ResponseWriter, r *http.Request) {
	params, ok := s.monthQuery(w, r)
	if !ok {
		return
	}
	rep, err := s.tracker.MonthReport(r.Context(), userID(r), params.Year, params.Month)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
