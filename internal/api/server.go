// Package api provides the HTTP server for focusbot: the Telegram webhook,
// a classification debug endpoint, admin endpoints for summaries and
// digests, health and metrics.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/focusgroup/focusbot/internal/app/lifecycle"
	"github.com/focusgroup/focusbot/internal/app/summary"
	"github.com/focusgroup/focusbot/internal/app/tracker"
	"github.com/focusgroup/focusbot/internal/domain"
	"github.com/focusgroup/focusbot/internal/health"
	"github.com/focusgroup/focusbot/internal/infra/outbox"
)

// maxUpdateBytes caps webhook request bodies.
const maxUpdateBytes = 1 << 20

// Server is the focusbot HTTP API server.
type Server struct {
	events         *lifecycle.Service
	store          *tracker.Store
	classifier     domain.Classifier
	agg            *summary.Aggregator
	digest         *summary.DigestJob // nil disables POST /api/digest
	health         *health.Checker    // nil reports a bare "ok"
	outbox         *outbox.Queue
	webhookSecret  string
	adminToken     string
	metricsEnabled bool
	log            *slog.Logger
}

// NewServer creates a new API server.
func NewServer(events *lifecycle.Service, store *tracker.Store, classifier domain.Classifier) *Server {
	return &Server{
		events:     events,
		store:      store,
		classifier: classifier,
		agg:        summary.NewAggregator(store),
		log:        slog.Default().With("component", "api"),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetWebhookSecret requires Telegram's X-Telegram-Bot-Api-Secret-Token header.
func (s *Server) SetWebhookSecret(secret string) { s.webhookSecret = secret }

// SetAdminToken protects the admin endpoints with a bearer token. Without a
// token they answer 403.
func (s *Server) SetAdminToken(token string) { s.adminToken = token }

// SetDigestJob enables the digest trigger endpoint.
func (s *Server) SetDigestJob(j *summary.DigestJob) { s.digest = j }

// SetHealth sets the checker behind /health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetOutbox exposes the reply retry queue under GET /api/outbox.
func (s *Server) SetOutbox(q *outbox.Queue) { s.outbox = q }

// SetLogger replaces the request logger.
func (s *Server) SetLogger(l *slog.Logger) { s.log = l.With("component", "api") }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/webhook", func(r chi.Router) {
		r.Post("/telegram", s.handleTelegramWebhook)
		r.With(s.requireAdmin).Post("/debug", s.handleDebugWebhook)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/summary/{chat}/{user}", s.handleUserSummary)
		r.Get("/digest/{chat}", s.handleChatDigest)
		r.Post("/digest", s.handleRunDigest)
		r.Get("/outbox", s.handleOutbox)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "focusbot is running",
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// requireAdmin checks "Authorization: Bearer <admin token>".
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			writeError(w, http.StatusForbidden, "admin token not configured")
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.adminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}
