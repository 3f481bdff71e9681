package transport

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/oklog/ulid/v2"

	"github.com/amem-mcp/amem-mcp/internal/logging"
	"github.com/amem-mcp/amem-mcp/internal/mcptypes"
	"github.com/amem-mcp/amem-mcp/internal/protocol"
)

// HTTPConfig configures the optional HTTP transport.
type HTTPConfig struct {
	Addr         string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultHTTPConfig matches serve-http's defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Addr:         ":8751",
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// HTTP serves one protocol.Server over a single POST /mcp endpoint, one
// JSON-RPC request per HTTP request, plus GET /health.
type HTTP struct {
	cfg    HTTPConfig
	server *protocol.Server
	router *chi.Mux
	httpSrv *http.Server
}

// NewHTTP builds the router and middleware stack around server.
func NewHTTP(cfg HTTPConfig, server *protocol.Server) *HTTP {
	h := &HTTP{cfg: cfg, server: server, router: chi.NewRouter()}

	h.router.Use(ulidRequestID)
	h.router.Use(zerologMiddleware)
	h.router.Use(middleware.Recoverer)

	if cfg.EnableCORS {
		h.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	h.router.Get("/health", h.handleHealth)
	h.router.Post("/mcp", h.handleMCP)

	return h
}

// ulidRequestID assigns each request a sortable ULID correlation id,
// reachable via middleware.GetReqID like chi's own RequestID, but
// time-ordered rather than an in-process counter, useful once logs from
// several server instances get merged.
func ulidRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// zerologMiddleware logs each request's method, path, status, and
// duration via zerolog instead of chi's stdlib-logger default.
func zerologMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Component("transport/http").Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func (h *HTTP) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

func (h *HTTP) handleMCP(w http.ResponseWriter, r *http.Request) {
	var req mcptypes.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, mcptypes.NewErrorResponse(nil, mcptypes.NewErrorf(mcptypes.ParseError, "invalid JSON: %v", err)))
		return
	}

	resp := h.server.Handle(r.Context(), req)
	if resp == nil {
		// A notification has no response body; still return 204 so the
		// client doesn't treat it as a transport failure.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, *resp)
}

func (h *HTTP) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Component("transport/http").Error().Err(err).Msg("failed to encode response")
	}
}

// ListenAndServe starts the HTTP server, blocking until it stops.
func (h *HTTP) ListenAndServe() error {
	h.httpSrv = &http.Server{
		Addr:         h.cfg.Addr,
		Handler:      h.router,
		ReadTimeout:  h.cfg.ReadTimeout,
		WriteTimeout: h.cfg.WriteTimeout,
	}
	return h.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (h *HTTP) Shutdown(ctx context.Context) error {
	if h.httpSrv == nil {
		return nil
	}
	return h.httpSrv.Shutdown(ctx)
}
