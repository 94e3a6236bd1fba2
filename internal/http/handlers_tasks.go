package http

import (
	"net/http"
	"strconv"

	"tracker/internal/log"
)

// taskView reads the tasks view a form was posted from.
func (s *Server) taskView(p *RequestBodyParser) (year, month, day int) {
	today := s.today()
	return p.IntOr("year", today.Year), p.IntOr("month", today.Month), p.IntOr("day", 0)
}

// afterTaskWrite is afterHabitWrite for the task list.
func (s *Server) afterTaskWrite(w http.ResponseWriter, r *http.Request, year, month, day int, notice string) {
	if !isHTMX(r) {
		target := "/dashboard/tasks?year=" + strconv.Itoa(year) + "&month=" + strconv.Itoa(month)
		if day > 0 {
			target += "&day=" + strconv.Itoa(day)
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	view, err := s.tracker.TasksMonth(r.Context(), userID(r), year, month, day)
	if err != nil {
		s.serviceError(w, r, log.OpRead, err)
		return
	}
	resp := NewHTMXResponse().
		TriggerTasksChanged(year, month).
		Template(s.templates, tmplTasksList, newTasksPage(view, s.today()))
	if notice != "" {
		resp.TriggerSuccessNotification(notice).TriggerFormReset()
	}
	resp.Write(w)
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(w, r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	t, err := s.tracker.AddTask(r.Context(), userID(r), p.Get("name"), p.Get("date"), p.Get("priority"))
	if err != nil {
		s.serviceError(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).Info("Task created",
		log.FieldUserID, t.UserID,
		log.FieldTaskID, t.ID)

	year, month, day := s.taskView(p)
	s.afterTaskWrite(w, r, year, month, day, "Task added")
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(w, r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	id := p.Get("task_id")
	if id == "" {
		BadRequestError("Missing task").Write(w)
		return
	}
	if _, err := s.tracker.ToggleTask(r.Context(), userID(r), id); err != nil {
		s.serviceError(w, r, log.OpToggle, err)
		return
	}
	year, month, day := s.taskView(p)
	s.afterTaskWrite(w, r, year, month, day, "")
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(w, r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	id := p.Get("task_id")
	if id == "" {
		BadRequestError("Missing task").Write(w)
		return
	}
	if err := s.tracker.DeleteTask(r.Context(), userID(r), id); err != nil {
		s.serviceError(w, r, log.OpDelete, err)
		return
	}
	year, month, day := s.taskView(p)
	s.afterTaskWrite(w, r, year, month, day, "Task deleted")
}
