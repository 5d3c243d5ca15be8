package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harborview/marisk/internal/auth"
	"github.com/harborview/marisk/internal/ratelimit"
	"github.com/harborview/marisk/internal/screening"
	"github.com/harborview/marisk/internal/storage"
)

// Server is the marisk HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a
// Server. Optional fields (nil-safe): Limiter, MCPServer, OpenAPISpec.
type ServerConfig struct {
	// Required dependencies.
	DB           *storage.DB
	ScreeningSvc *screening.Service
	Verifier     *auth.Verifier
	Logger       *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64

	// Optional embedded assets.
	OpenAPISpec []byte // Embedded OpenAPI YAML.
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		DB:                  cfg.DB,
		ScreeningSvc:        cfg.ScreeningSvc,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         cfg.OpenAPISpec,
	})

	// Request ID extractor for rate limit error responses.
	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}

	// One limiter, keyed by endpoint class and client IP. Screenings are
	// the expensive path (fan-out to both providers); reads share a
	// separate budget so a screening burst cannot starve verdict lookups.
	screenRL := ratelimit.Middleware(cfg.Limiter, prefixedIPKey("screen"), reqIDFunc)
	writeRL := ratelimit.Middleware(cfg.Limiter, prefixedIPKey("write"), reqIDFunc)
	readRL := ratelimit.Middleware(cfg.Limiter, prefixedIPKey("read"), reqIDFunc)

	mux := http.NewServeMux()

	// Screening: one route per vertical, same body shape.
	mux.Handle("POST /v1/screenings/{vertical}", screenRL(http.HandlerFunc(h.HandleScreen)))

	// Approval reconciliation.
	mux.Handle("POST /v1/approvals", writeRL(http.HandlerFunc(h.HandleApprove)))

	// Verdict reads.
	mux.Handle("GET /v1/verdicts/{uuid}", readRL(http.HandlerFunc(h.HandleGetVerdict)))
	mux.Handle("GET /v1/verdicts/{uuid}/history", readRL(http.HandlerFunc(h.HandleVerdictHistory)))

	// Reference registers.
	mux.Handle("GET /v1/reference/watchlist/{imo}", readRL(http.HandlerFunc(h.HandleWatchlistLookup)))
	mux.Handle("GET /v1/reference/sanctions", readRL(http.HandlerFunc(h.HandleSanctionsLookup)))

	// MCP StreamableHTTP transport (auth required via the middleware chain).
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", mcpHTTP)
	}

	// OpenAPI spec (no auth, no rate limit).
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /healthz", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.Verifier, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// prefixedIPKey builds a rate limit key func that scopes the client IP to an
// endpoint class.
func prefixedIPKey(prefix string) ratelimit.KeyFunc {
	return func(r *http.Request) string {
		ip := ratelimit.IPKeyFunc(r)
		if ip == "" {
			return ""
		}
		return prefix + ":" + ip
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
