package http

import (
	"errors"
	"net/http"

	"tracker/internal/auth"
	"tracker/internal/core"
	"tracker/internal/log"
	"tracker/internal/services"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, tmplLogin, authPage{Title: "Sign in"})
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, tmplSignup, authPage{Title: "Create account"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(w, r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	email := p.Get("email")

	u, err := s.users.Authenticate(r.Context(), email, p.Get("password"))
	if err != nil {
		status := http.StatusInternalServerError
		msg := "Sign in failed, please try again"
		if errors.Is(err, services.ErrInvalidCredentials) {
			status, msg = http.StatusUnauthorized, "Invalid email or password"
			log.FromContext(r.Context()).Warn("Failed sign in", log.FieldOperation, log.OpLogin)
		} else {
			log.LogError(r.Context(), "Sign in failed", err, log.ErrorTypeAuth, log.OpLogin,
				log.NewFields().WithComponent(log.ComponentAuth))
		}
		s.render(w, r, status, tmplLogin, authPage{Title: "Sign in", Email: email, Error: msg})
		return
	}
	s.startSession(w, r, u.ID)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(w, r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	email := p.Get("email")

	u, err := s.users.Register(r.Context(), email, p.Get("password"))
	if err != nil {
		status, msg := http.StatusInternalServerError, "Sign up failed, please try again"
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			status, msg = http.StatusConflict, "That email is already registered"
		case errors.Is(err, core.ErrInvalidEmail), errors.Is(err, core.ErrPasswordTooShort):
			status, msg = http.StatusUnprocessableEntity, capitalize(err.Error())
		default:
			log.LogError(r.Context(), "Sign up failed", err, log.ErrorTypeInternal, log.OpSignup,
				log.NewFields().WithComponent(log.ComponentAuth))
		}
		s.render(w, r, status, tmplSignup, authPage{Title: "Create account", Email: email, Error: msg})
		return
	}
	log.FromContext(r.Context()).Info("User registered", log.FieldUserID, u.ID)
	s.startSession(w, r, u.ID)
}

// startSession issues a token cookie and sends the browser to the dashboard.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, id string) {
	token, expires, err := s.tokens.Issue(id)
	if err != nil {
		log.LogError(r.Context(), "Issue session token", err, log.ErrorTypeAuth, log.OpLogin,
			log.NewFields().WithComponent(log.ComponentAuth).WithUser(id))
		InternalServerError("Could not start session").Write(w)
		return
	}
	auth.SetSessionCookie(w, token, expires, s.secureCookies)
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/dashboard")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, s.secureCookies)
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
