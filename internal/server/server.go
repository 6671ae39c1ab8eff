// Package server exposes the webhook endpoint alongside health, readiness and
// metrics routes.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"purchase-fulfillment/internal/common/logger"
	coordinatepurchase "purchase-fulfillment/internal/pipeline/fulfillment/coordinate-purchase"
)

const (
	WebhookPath     = "/webhooks/stripe"
	SignatureHeader = "Stripe-Signature"

	defaultMaxBodyBytes = 256 * 1024
	readyCheckTimeout   = 2 * time.Second
)

// WebhookHandler runs one delivery through fulfillment.
type WebhookHandler interface {
	Handle(ctx context.Context, payload []byte, signatureHeader string) *coordinatepurchase.Outcome
}

// Check is a readiness probe for one dependency.
type Check func(ctx context.Context) error

type Options struct {
	Handler      WebhookHandler
	Checks       map[string]Check
	MaxBodyBytes int64
	Logger       logger.Logger
}

type Server struct {
	handler      WebhookHandler
	checks       map[string]Check
	maxBodyBytes int64
	logger       logger.Logger
	router       chi.Router
}

func New(opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	s := &Server{
		handler:      opts.Handler,
		checks:       opts.Checks,
		maxBodyBytes: opts.MaxBodyBytes,
		logger:       opts.Logger.WithFields(map[string]interface{}{"component": "http"}),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Post(WebhookPath, s.handleWebhook)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{"error": "payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "unreadable body"})
		return
	}

	out := s.handler.Handle(r.Context(), payload, r.Header.Get(SignatureHeader))

	switch {
	case out.State == coordinatepurchase.StateRejected:
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid signature"})
	case !out.Disposition.Acknowledge:
		writeJSON(w, out.Disposition.Status, map[string]interface{}{
			"error":    "fulfillment incomplete",
			"received": true,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"received": true,
			"status":   string(out.State),
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	failing := map[string]string{}
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			failing[name] = err.Error()
		}
	}

	if len(failing) > 0 {
		s.logger.Warn("Readiness check failed", map[string]interface{}{"failing": failing})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "not_ready",
			"failing": failing,
			"time":    time.Now().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"checks": names,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		if r.URL.Path != WebhookPath {
			return
		}
		s.logger.Info("Webhook request served", map[string]interface{}{
			"requestId": middleware.GetReqID(r.Context()),
			"status":    ww.Status(),
			"bytes":     ww.BytesWritten(),
			"duration":  time.Since(start).String(),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
