package rest

import (
	"context"
	"encoding/json"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-message-intake/core"
	"github.com/goliatone/go-message-intake/metrics"
	"github.com/goliatone/go-message-intake/webhooks"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

func withRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}

// MetricsSnapshotter is satisfied by sinks that can expose their current
// state for scraping, e.g. the in-memory recorder.
type MetricsSnapshotter interface {
	Snapshot() metrics.Snapshot
}

// Server adapts the ingestion pipeline and the read-side service to HTTP.
type Server struct {
	service  *core.Service
	pipeline *webhooks.Pipeline
	logger   core.Logger
	metrics  MetricsSnapshotter
}

type ServerOption func(*Server)

func WithMetricsSnapshotter(snapshotter MetricsSnapshotter) ServerOption {
	return func(s *Server) {
		s.metrics = snapshotter
	}
}

func NewServer(service *core.Service, pipeline *webhooks.Pipeline, options ...ServerOption) *Server {
	server := &Server{
		service:  service,
		pipeline: pipeline,
		logger:   glog.Nop(),
	}
	if service != nil {
		server.logger = service.Logger()
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(server)
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /messages", s.handleMessages)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /health/live", s.handleHealthLive)
	mux.HandleFunc("GET /health/ready", s.handleHealthReady)
	mux.HandleFunc("GET /debug/metrics", s.handleDebugMetrics)
	return s.assignRequestID(s.recoverPanics(mux))
}

// assignRequestID echoes the caller's X-Request-ID or mints one, so log
// lines and error reports can be correlated across retried deliveries.
func (s *Server) assignRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), requestID)))
	})
}

// recoverPanics converts any panic escaping a handler into the generic
// internal envelope instead of letting net/http kill the connection with
// a raw stack.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if s.logger != nil {
					s.logger.Error("request handler panicked",
						"path", r.URL.Path,
						"request_id", requestIDFrom(r.Context()),
						"panic", recovered,
					)
				}
				s.writeError(w, goerrors.New(
					"rest: internal error",
					goerrors.CategoryInternal,
				).WithCode(http.StatusInternalServerError).WithTextCode(core.IntakeErrorInternal))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Message  string `json:"message"`
	TextCode string `json:"text_code"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorBody{
		Message:  "An unexpected error occurred",
		TextCode: core.IntakeErrorInternal,
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code > 0 {
			status = richErr.Code
		}
		if richErr.Message != "" {
			body.Message = richErr.Message
		}
		if richErr.TextCode != "" {
			body.TextCode = richErr.TextCode
		}
	}
	s.writeJSON(w, status, errorEnvelope{Error: body})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && s.logger != nil {
		s.logger.Error("encode response", "error", err.Error())
	}
}
