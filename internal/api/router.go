package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/alert"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/ingest"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/store"
)

const correlationHeader = "X-Correlation-ID"

// Deps bundles the wired components the handlers need.
type Deps struct {
	Metrics    *ingest.Store
	History    *store.Store
	Limiter    alert.Limiter
	Dispatcher *alert.Dispatcher
	Hub        *Hub
	StartedAt  time.Time
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(deps Deps, basePath string) http.Handler {
	mux := http.NewServeMux()

	pa := newPerformanceAPI(deps.Metrics, deps.Hub)
	aa := newAlertsAPI(deps.History, deps.Limiter, deps.Dispatcher)
	ea := &exportAPI{metrics: deps.Metrics}
	sa := &statusAPI{metrics: deps.Metrics, history: deps.History, startedAt: deps.StartedAt}

	// Metric ingestion and retrieval
	mux.HandleFunc("POST /api/analytics/performance", pa.ingest)
	mux.HandleFunc("GET /api/analytics/performance", pa.get)

	// Alert intake and history
	mux.HandleFunc("POST /api/performance/alerts", aa.intake)
	mux.HandleFunc("GET /api/performance/alerts", aa.list)

	// Export
	mux.HandleFunc("GET /api/analytics/export", ea.export)

	// Status
	mux.HandleFunc("GET /api/status", sa.status)

	// WebSocket
	mux.HandleFunc("GET /api/ws", deps.Hub.HandleWS)

	// Liveness
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	var handler http.Handler = mux

	// If base_path is set, strip the prefix so internal routing works unchanged
	if basePath != "/" && basePath != "" {
		inner := handler
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, basePath) {
				r.URL.Path = strings.TrimPrefix(r.URL.Path, basePath)
				if r.URL.Path == "" {
					r.URL.Path = "/"
				}
				r.URL.RawPath = strings.TrimPrefix(r.URL.RawPath, basePath)
			}
			inner.ServeHTTP(w, r)
		})
	}

	return withMiddleware(handler)
}

func withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Recovery
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("panic", err).Str("path", r.URL.Path).Msg("[http] panic")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		// Correlation ID, generated when the client did not send one.
		cid := r.Header.Get(correlationHeader)
		if cid == "" {
			cid = uuid.NewString()
			r.Header.Set(correlationHeader, cid)
		}
		w.Header().Set(correlationHeader, cid)

		// CORS for browser reporters
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+correlationHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)

		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Str("correlationId", cid).Dur("elapsed", time.Since(start)).
			Msg("[http] request")
	})
}

// correlationID returns the request's correlation ID, set by the
// middleware before handlers run.
func correlationID(r *http.Request) string {
	return r.Header.Get(correlationHeader)
}
