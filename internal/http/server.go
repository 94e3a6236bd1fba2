package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tracker/internal/auth"
	"tracker/internal/calendar"
	"tracker/internal/log"
	"tracker/internal/middleware/ratelimit"
	"tracker/internal/middleware/security"
	"tracker/internal/middleware/trace"
	"tracker/internal/services"
	appweb "tracker/web"
)

// Options carries the server's collaborators.
type Options struct {
	Addr               string
	Tracker            *services.TrackerService
	Users              *services.UserService
	Tokens             *auth.Tokens
	RateLimitPerMinute int
	SecureCookies      bool
	Logger             *log.Logger
}

type Server struct {
	http.Server
	templates     *template.Template
	tracker       *services.TrackerService
	users         *services.UserService
	tokens        *auth.Tokens
	limiter       *ratelimit.Limiter
	detector      *security.Detector
	secureCookies bool
	startedAt     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	limiterCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		tracker:       opts.Tracker,
		users:         opts.Users,
		tokens:        opts.Tokens,
		limiter:       ratelimit.NewLimiter(limiterCfg),
		detector:      security.NewDetector(),
		secureCookies: opts.SecureCookies,
		startedAt:     time.Now(),
	}

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	s.routes(mux)

	chain := security.Headers(security.DefaultHeadersConfig())(s.detector.Middleware(s.matchRoute(mux)))
	chain = log.RequestIDMiddleware(trace.FromRequest)(chain)
	chain = log.Middleware(logger.WithComponent(log.ComponentHTTP))(chain)
	chain = trace.NewMiddleware(s.detector.ExtractClientIP).Middleware(chain)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           chain,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	page := auth.Middleware(s.tokens, s.redirectToLogin)
	api := auth.Middleware(s.tokens, s.apiUnauthorized)
	limited := s.limiter.Middleware(s.rateLimitKey, s.rateLimited)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.Handle("POST /login", limited(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("GET /signup", s.handleSignupPage)
	mux.Handle("POST /signup", limited(http.HandlerFunc(s.handleSignup)))
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("GET /{$}", page(http.RedirectHandler("/dashboard", http.StatusSeeOther)))
	mux.Handle("GET /dashboard", page(http.HandlerFunc(s.handleOverview)))
	mux.Handle("GET /dashboard/habits", page(http.HandlerFunc(s.handleHabitsPage)))
	mux.Handle("GET /dashboard/tasks", page(http.HandlerFunc(s.handleTasksPage)))

	mux.Handle("POST /habits", page(limited(http.HandlerFunc(s.handleAddHabit))))
	mux.Handle("POST /habits/delete", page(limited(http.HandlerFunc(s.handleDeleteHabit))))
	mux.Handle("POST /habits/toggle", page(limited(http.HandlerFunc(s.handleToggleCompletion))))
	mux.Handle("POST /habits/goal", page(limited(http.HandlerFunc(s.handleUpdateGoal))))
	mux.Handle("POST /habits/reorder", page(limited(http.HandlerFunc(s.handleReorderHabit))))

	mux.Handle("POST /tasks", page(limited(http.HandlerFunc(s.handleAddTask))))
	mux.Handle("POST /tasks/toggle", page(limited(http.HandlerFunc(s.handleToggleTask))))
	mux.Handle("POST /tasks/delete", page(limited(http.HandlerFunc(s.handleDeleteTask))))

	mux.Handle("GET /api/habits/stats", api(http.HandlerFunc(s.handleHabitStatsAPI)))
	mux.Handle("GET /api/tasks/stats", api(http.HandlerFunc(s.handleTaskStatsAPI)))
	mux.Handle("GET /api/overview", api(http.HandlerFunc(s.handleOverviewAPI)))
	mux.Handle("GET /api/report", api(http.HandlerFunc(s.handleReportAPI)))
}

// matchRoute publishes the matched pattern to the trace middleware before
// dispatching.
func (s *Server) matchRoute(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pattern := mux.Handler(r)
		trace.SetRoute(r.Context(), pattern)
		mux.ServeHTTP(w, r)
	})
}

// rateLimitKey buckets signed-in users by id and everyone else by address.
func (s *Server) rateLimitKey(r *http.Request) string {
	if id, ok := auth.UserIDFromContext(r.Context()); ok {
		return "user:" + id
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).Warn("Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests, slow down").Write(w)
}

// redirectToLogin sends browsers to the login page. htmx requests get an
// HX-Redirect so the whole page navigates instead of swapping a fragment.
func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) apiUnauthorized(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}

// today is the service's notion of today, used to default month params.
func (s *Server) today() calendar.Day {
	return s.tracker.Today()
}

// Shutdown gracefully shuts down the server and its limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// render writes a full page or partial, logging template failures.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		InternalServerError("Templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.LogError(r.Context(), "Template render failed", err, log.ErrorTypeInternal, log.OpRender,
			log.NewFields().WithComponent(log.ComponentTemplate))
		InternalServerError("Rendering failed").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// serviceError logs err and writes the matching error fragment.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	fields := log.NewFields().WithComponent(log.ComponentTracker).WithUser(userID(r))
	switch status {
	case http.StatusInternalServerError:
		log.LogError(r.Context(), "Tracker operation failed", err, log.ErrorTypeInternal, op, fields)
	default:
		slog.DebugContext(r.Context(), "Tracker operation rejected",
			append(fields.WithOperation(op).ToSlice(), "error", err.Error(), "status", status)...)
	}
	ErrorResponse(status, errorMessage(err)).Write(w)
}
