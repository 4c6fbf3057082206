package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codeberg.org/mutker/ffdash/internal/alerts"
	"codeberg.org/mutker/ffdash/internal/dashboard"
	"codeberg.org/mutker/ffdash/internal/errors"
	"codeberg.org/mutker/ffdash/internal/logger"
	"codeberg.org/mutker/ffdash/internal/session"
	"codeberg.org/mutker/ffdash/internal/store"
)

const (
	ErrListen   = errors.ErrorCode("metrics_listen_failed")
	ErrShutdown = errors.ErrorCode("metrics_shutdown_failed")

	shutdownTimeout = 5 * time.Second
	maxBodySize     = 64 << 10
)

// SessionStore is satisfied by *store.Repository.
type SessionStore interface {
	List(ctx context.Context) ([]session.Summary, error)
	Get(ctx context.Context, id string) (session.Summary, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Controller is satisfied by *dashboard.Dashboard.
type Controller interface {
	ToggleRecording(ctx context.Context) (session.Summary, bool, error)
	SetFPSSmoothing(ctx context.Context, enabled bool) error
	UpdateAlertSettings(ctx context.Context, settings alerts.Settings) error
}

// MirrorStats is satisfied by *mirror.Mirror.
type MirrorStats interface {
	Stats() (uploaded, failed, dropped int)
}

// Server exposes Prometheus metrics and a JSON view of the dashboard.
type Server struct {
	addr     string
	status   StatusSource
	sessions SessionStore
	control  Controller
	log      logger.Logger
	handler  http.Handler
}

// Deps are the optional collaborators of a Server.
type Deps struct {
	Sessions SessionStore
	Control  Controller
	Mirror   MirrorStats
}

// New builds the HTTP handler. Endpoints whose collaborator is missing from
// deps are not registered.
func New(addr string, status StatusSource, deps Deps, log logger.Logger) *Server {
	s := &Server{
		addr:     addr,
		status:   status,
		sessions: deps.Sessions,
		control:  deps.Control,
		log:      log,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newStatusCollector(status),
	)
	if deps.Mirror != nil {
		registry.MustRegister(newMirrorCollectors(deps.Mirror)...)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)

	if s.sessions != nil {
		mux.HandleFunc("GET /api/sessions", s.handleListSessions)
		mux.HandleFunc("DELETE /api/sessions", s.handleClearSessions)
		mux.HandleFunc("GET /api/sessions/compare", s.handleCompareSessions)
		mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
		mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	}
	if s.control != nil {
		mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
		mux.HandleFunc("POST /api/recording/toggle", s.handleToggleRecording)
		mux.HandleFunc("POST /api/fps-smoothing", s.handleFPSSmoothing)
	}
	s.handler = mux

	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errFactory := errors.New()

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errFactory.Wrap(ErrListen, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("Metrics server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errFactory.Wrap(ErrListen, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errFactory.Wrap(ErrShutdown, err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.status.Status())
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.status.Status().Settings)
}

// handlePutSettings accepts a full or partial settings document. Missing
// keys keep their current value.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	errFactory := errors.New()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errFactory.Wrap(errors.ErrInvalidArgument, err))
		return
	}

	settings, err := alerts.MergeSettings(s.status.Status().Settings, body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.control.UpdateAlertSettings(r.Context(), settings); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleToggleRecording(w http.ResponseWriter, r *http.Request) {
	summary, saved, err := s.control.ToggleRecording(r.Context())
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	resp := toggleResponse{Recording: s.status.Status().Recording.Recording}
	if saved {
		resp.Session = &summary
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFPSSmoothing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil || req.Enabled == nil {
		s.writeError(w, http.StatusBadRequest,
			errors.New().WithMessage(errors.ErrInvalidArgument, `expected {"enabled": bool}`))
		return
	}

	if err := s.control.SetFPSSmoothing(r.Context(), *req.Enabled); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.sessions.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list sessions")
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []session.Summary{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	summary, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// handleCompareSessions reports how session b performed against session a.
func (s *Server) handleCompareSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	idA, idB := q.Get("a"), q.Get("b")
	if idA == "" || idB == "" {
		s.writeError(w, http.StatusBadRequest,
			errors.New().WithMessage(errors.ErrInvalidArgument, "both a and b session ids are required"))
		return
	}

	a, err := s.sessions.Get(r.Context(), idA)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	b, err := s.sessions.Get(r.Context(), idB)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, session.Compare(a, b))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearSessions(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Clear(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type toggleResponse struct {
	Recording bool             `json:"recording"`
	Session   *session.Summary `json:"session,omitempty"`
}

type errorResponse struct {
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug().Err(err).Msg("Failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	resp := errorResponse{Error: err.Error()}
	var coded errors.Error
	if errors.As(err, &coded) {
		resp.Code = string(coded.Code())
	}
	s.writeJSON(w, code, resp)
}

func statusFor(err error) int {
	switch {
	case errors.HasCode(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.HasCode(err, alerts.ErrInvalidSettings),
		errors.HasCode(err, errors.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.HasCode(err, dashboard.ErrNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newMirrorCollectors(m MirrorStats) []prometheus.Collector {
	counter := func(name, help string, pick func(uploaded, failed, dropped int) int) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(pick(m.Stats()))
		})
	}

	return []prometheus.Collector{
		counter("uploaded_total", "Sessions uploaded to the remote mirror.",
			func(uploaded, _, _ int) int { return uploaded }),
		counter("failed_total", "Session uploads that failed.",
			func(_, failed, _ int) int { return failed }),
		counter("dropped_total", "Sessions dropped because the mirror queue was full.",
			func(_, _, dropped int) int { return dropped }),
	}
}
