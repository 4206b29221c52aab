package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"agendacal/internal/agenda"
	"agendacal/internal/calendar"
	"agendacal/internal/config"
	"agendacal/internal/locale"
	appLog "agendacal/internal/log"
	"agendacal/internal/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server serves the calendar page and its JSON API.
type Server struct {
	cfg     *config.Config
	svc     *agenda.Service
	metrics *metrics.Metrics
	tmpl    *template.Template
	mux     *http.ServeMux
}

// NewServer constructs a Server. m may be nil to disable /metrics.
func NewServer(cfg *config.Config, svc *agenda.Service, m *metrics.Metrics) (*Server, error) {
	l, _ := locale.Lookup(cfg.Locale)
	tmpl, err := template.New("calendar.html").Funcs(templateFuncs(l)).ParseFS(templateFS, "templates/calendar.html")
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		metrics: m,
		tmpl:    tmpl,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the root handler, wrapped in basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials mean disabled, not "anyone with an empty password".
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware protects everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="agendacal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String(), "basic_auth", s.basicAuthEnabled())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.handle("/health", "health", s.handleHealth)
	s.handle("/api/agenda", "agenda", s.handleAgenda)
	s.handle("/api/calendar", "calendar", s.handleCalendar)
	s.handle("/api/events/grouped", "grouped", s.handleGrouped)
	s.handle("/calendar", "page", s.handlePage)
	s.handle("/{$}", "page", s.handlePage)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}
}

func (s *Server) handle(pattern, endpoint string, h http.HandlerFunc) {
	if s.metrics == nil {
		s.mux.Handle(pattern, h)
		return
	}
	s.mux.Handle(pattern, s.metrics.Middleware(endpoint, h))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAgenda returns every stored event as a bare JSON array, the same
// shape the JSON source decoder reads, so one instance can feed another.
// The refresh time goes out as Last-Modified.
//
// GET /api/agenda
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	if updated := s.svc.UpdatedAt(); !updated.IsZero() {
		w.Header().Set("Last-Modified", updated.UTC().Format(http.TimeFormat))
	}
	writeJSON(w, http.StatusOK, s.svc.Events())
}

// handleCalendar returns the month view.
//
// GET /api/calendar?month=2024-03   (default: current month)
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	month, ok := s.monthParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.View(month))
}

// handleGrouped returns every stored event grouped by month and location.
//
// GET /api/events/grouped
func (s *Server) handleGrouped(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Grouped())
}

// handlePage renders the HTML calendar.
//
// GET /calendar?month=2024-03
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	month, ok := s.monthParam(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, s.svc.View(month)); err != nil {
		appLog.Error("calendar template failed", err, "month", month.Format(agenda.MonthFormat))
	}
}

func (s *Server) monthParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		return s.svc.Now(), true
	}
	m, err := calendar.ParseMonth(raw, s.svc.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return time.Time{}, false
	}
	return m, true
}

func requireGET(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func templateFuncs(l locale.Locale) template.FuncMap {
	return template.FuncMap{
		"day":        func(t time.Time) string { return t.Format("02") },
		"clock":      func(t time.Time) string { return t.Format("15:04") },
		"shortMonth": l.ShortMonth,
		"lang":       func() string { return l.Tag },
		"noEvents":   func() string { return l.NoEvents },
	}
}
