package http

import (
	"net/http"
	"strconv"

	"tracker/internal/log"
)

// habitMonth reads the month a habit form was posted from, so the grid can
// be re-rendered in place. It falls back to the current month.
func (s *Server) habitMonth(p *RequestBodyParser) (year, month int) {
	today := s.today()
	return p.IntOr("year", today.Year), p.IntOr("month", today.Month)
}

// afterHabitWrite answers a habit mutation: htmx gets the refreshed grid
// plus change triggers, plain forms are redirected back to the page.
func (s *Server) afterHabitWrite(w http.ResponseWriter, r *http.Request, year, month int, notice string) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/dashboard/habits?year="+strconv.Itoa(year)+"&month="+strconv.Itoa(month), http.StatusSeeOther)
		return
	}
	view, err := s.tracker.HabitsMonth(r.Context(), userID(r), year, month)
	if err != nil {
		s.serviceError(w, r, log.OpRead, err)
		return
	}
	resp := NewHTMXResponse().
		TriggerHabitsChanged(year, month).
		Template(s.templates, tmplHabitsGrid, newHabitsPage(view))
	if notice != "" {
		resp.TriggerSuccessNotification(notice)
	}
	resp.Write(w)
}

func (s *Server) handleAddHabit(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(w, r)
	if errResp != nil {
		errResp.Write(w)
		return
	}

	goal := 0
	if p.Get("goal") != "" {
		n, err := p.Int("goal")
		if err != nil {
			UnprocessableEntityError("Goal must be a number").Write(w)
			return
		}
		goal = n
	}

	h, err := s.tracker.AddHabit(r.Context(), userID(r), p.Get("name"), p.Get("icon"), goal)
	if err != nil {
		s.serviceError(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).Info("Habit created",
		log.FieldUserID, h.UserID,
		log.FieldHabitID, h.ID)

	year, month := s.habitMonth(p)
	s.afterHabitWrite(w, r, year, month, "Habit added")
}

func (s *Server) handleDeleteHabit(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(w, r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	id := p.Get("habit_id")
	if id == "" {
		BadRequestError("Missing habit").Write(w)
		return
	}
	if err := s.tracker.DeleteHabit(r.Context(), userID(r), id); err != nil {
		s.serviceError(w, r, log.OpDelete, err)
		return
	}
	year, month := s.habitMonth(p)
	s.afterHabitWrite(w, r, year, month, "Habit deleted")
}

func (s *Server) handleToggleCompletion(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(w, r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	id := p.Get("habit_id")
	dayIndex, err := p.Int("day_index")
	if id == "" || err != nil {
		BadRequestError("Missing habit or day").Write(w)
		return
	}
	year, month := s.habitMonth(p)

	if _, err := s.tracker.ToggleCompletion(r.Context(), userID(r), id, year, month, dayIndex); err != nil {
		s.serviceError(w, r, log.OpToggle, err)
		return
	}
	s.afterHabitWrite(w, r, year, month, "")
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(w, r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	id := p.Get("habit_id")
	if id == "" {
		BadRequestError("Missing habit").Write(w)
		return
	}
	goal, err := p.Int("goal")
	if err != nil {
		UnprocessableEntityError("Goal must be a number").Write(w)
		return
	}
	if err := s.tracker.UpdateGoal(r.Context(), userID(r), id, goal); err != nil {
		s.serviceError(w, r, log.OpUpdate, err)
		return
	}
	year, month := s.habitMonth(p)
	s.afterHabitWrite(w, r, year, month, "")
}

func (s *Server) handleReorderHabit(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(w, r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	dragged, target := p.Get("dragged"), p.Get("target")
	if dragged == "" || target == "" {
		BadRequestError("Missing habits to reorder").Write(w)
		return
	}
	if err := s.tracker.MoveHabit(r.Context(), userID(r), dragged, target); err != nil {
		s.serviceError(w, r, log.OpReorder, err)
		return
	}
	year, month := s.habitMonth(p)
	s.afterHabitWrite(w, r, year, month, "")
}
