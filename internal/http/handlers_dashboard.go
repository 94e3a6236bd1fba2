package http

import (
	"net/http"

	"tracker/internal/log"
)

// Page templates and the fragment each page re-renders on htmx requests.
const (
	tmplOverview   = "overview.html"
	tmplHabits     = "habits.html"
	tmplHabitsGrid = "habits_grid"
	tmplTasks      = "tasks.html"
	tmplTasksList  = "tasks_list"
	tmplLogin      = "login.html"
	tmplSignup     = "signup.html"
)

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.tracker.Overview(r.Context(), userID(r))
	if err != nil {
		s.serviceError(w, r, log.OpRead, err)
		return
	}
	s.render(w, r, http.StatusOK, tmplOverview, newOverviewPage(o, s.today()))
}

func (s *Server) handleHabitsPage(w http.ResponseWriter, r *http.Request) {
	params, ok := ParseMonthParams(r.URL.Query(), s.today())
	if !ok {
		log.FromContext(r.Context()).Warn("Invalid month params, using current month",
			log.FieldQuery, r.URL.RawQuery)
	}
	s.renderHabits(w, r, params.Year, params.Month)
}

// renderHabits writes the habits page, or only its grid for htmx.
func (s *Server) renderHabits(w http.ResponseWriter, r *http.Request, year, month int) {
	view, err := s.tracker.HabitsMonth(r.Context(), userID(r), year, month)
	if err != nil {
		s.serviceError(w, r, log.OpRead, err)
		return
	}
	name := tmplHabits
	if isHTMX(r) {
		name = tmplHabitsGrid
	}
	s.render(w, r, http.StatusOK, name, newHabitsPage(view))
}

func (s *Server) handleTasksPage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params, ok := ParseMonthParams(query, s.today())
	if !ok {
		log.FromContext(r.Context()).Warn("Invalid month params, using current month",
			log.FieldQuery, r.URL.RawQuery)
	}
	s.renderTasks(w, r, params.Year, params.Month, ParseSelectedDay(query))
}

// renderTasks writes the tasks page, or only its list for htmx.
func (s *Server) renderTasks(w http.ResponseWriter, r *http.Request, year, month, day int) {
	view, err := s.tracker.TasksMonth(r.Context(), userID(r), year, month, day)
	if err != nil {
		s.serviceError(w, r, log.OpRead, err)
		return
	}
	name := tmplTasks
	if isHTMX(r) {
		name = tmplTasksList
	}
	s.render(w, r, http.StatusOK, name, newTasksPage(view, s.today()))
}
