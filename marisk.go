// Package marisk is the public API for embedding the marisk screening server.
//
// The typical binary is three lines:
//
//	app, err := marisk.New()
//	...
//	err = app.Run(ctx)
//
// Configuration comes from MARISK_* environment variables (see
// internal/config); options override individual values for embedders.
package marisk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/harborview/marisk/api"
	"github.com/harborview/marisk/internal/auth"
	"github.com/harborview/marisk/internal/config"
	"github.com/harborview/marisk/internal/fetch"
	"github.com/harborview/marisk/internal/mcp"
	"github.com/harborview/marisk/internal/ratelimit"
	"github.com/harborview/marisk/internal/screening"
	"github.com/harborview/marisk/internal/server"
	"github.com/harborview/marisk/internal/storage"
	"github.com/harborview/marisk/internal/telemetry"
	"github.com/harborview/marisk/internal/upstream"
	"github.com/harborview/marisk/migrations"
)

// App is the marisk server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	l2           *fetch.Store // nil when Redis is not configured
	limiter      ratelimit.Limiter
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the marisk server. It connects to the database, runs
// migrations, wires the upstream clients and screening service, and returns
// a ready-to-run App. It does NOT start any goroutines or accept HTTP
// connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("marisk starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Connect to database.
	db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	// Register connection pool OTEL metrics (after telemetry.Init).
	db.RegisterPoolMetrics()

	// Run embedded migrations unless the deployment manages schema itself.
	if !cfg.SkipEmbeddedMigrations {
		migFS := o.extraMigrations
		if migFS == nil {
			migFS = migrations.FS
		}
		if err := db.RunMigrations(context.Background(), migFS); err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	// Reference registers are maintained out of band; an empty register
	// screens every entity as no-risk, so surface the sizes at boot.
	if watchlist, entities, err := db.ReferenceCounts(context.Background()); err != nil {
		logger.Warn("reference data counts unavailable", "error", err)
	} else {
		logger.Info("reference data loaded", "watchlist_vessels", watchlist, "sanctioned_entities", entities)
	}

	// Credential verifier.
	verifier, err := auth.NewVerifier(cfg.JWTPublicKeyPath, cfg.APIKeyHashes, logger)
	if err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("auth: %w", err)
	}

	// Intelligence provider clients.
	clientA := upstream.NewClientA(cfg.IntelligenceABaseURL, cfg.IntelligenceAToken, cfg.UpstreamLookupTimeout, cfg.UpstreamBulkTimeout, logger)
	clientB := upstream.NewClientB(cfg.IntelligenceBBaseURL, cfg.IntelligenceBToken, cfg.UpstreamLookupTimeout, cfg.UpstreamBulkTimeout, logger)

	// Optional Redis layer for cross-session upstream response reuse.
	var l2 *fetch.Store
	if cfg.RedisAddr != "" {
		l2, err = fetch.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.UpstreamCacheTTL, logger)
		if err != nil {
			logger.Warn("upstream cache disabled, redis unreachable", "error", err)
			l2 = nil
		} else {
			logger.Info("upstream cache: redis", "addr", cfg.RedisAddr, "ttl", cfg.UpstreamCacheTTL)
		}
	}

	// Screening orchestrator (shared by HTTP and MCP surfaces).
	svc := screening.New(db, clientA, clientB, l2, cfg.Fanout, logger)

	// Rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	// Optional MCP surface, mounted at /mcp when enabled.
	var mcpSrv *mcp.Server
	if cfg.MCPEnabled {
		mcpSrv = mcp.New(db, logger, version)
		logger.Info("mcp: enabled at /mcp")
	}

	srvCfg := server.ServerConfig{
		DB:                  db,
		ScreeningSvc:        svc,
		Verifier:            verifier,
		Logger:              logger,
		Limiter:             limiter,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
	}
	if mcpSrv != nil {
		srvCfg.MCPServer = mcpSrv.MCPServer()
	}

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          server.New(srvCfg),
		l2:           l2,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the background loops and the HTTP server, then blocks until
// ctx is cancelled or a fatal server error occurs. On return, Shutdown is
// called automatically — callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	go a.idempotencyCleanupLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown drains in-flight HTTP requests, then closes the limiter, cache,
// database pool, and OTEL provider.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("marisk shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownHTTPTimeout)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	cancel()

	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	if a.l2 != nil {
		_ = a.l2.Close()
	}
	_ = a.otelShutdown(context.Background())
	a.db.Close()

	a.logger.Info("marisk stopped")
	return nil
}

// idempotencyCleanupLoop periodically removes completed and abandoned
// idempotency keys past their TTLs.
func (a *App) idempotencyCleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.IdempotencyCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			deleted, err := a.db.CleanupIdempotencyKeys(opCtx, a.cfg.IdempotencyCompletedTTL, a.cfg.IdempotencyAbandonedTTL)
			cancel()
			if err != nil {
				a.logger.Warn("idempotency cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				a.logger.Info("idempotency cleanup deleted rows", "deleted", deleted)
			}
		}
	}
}
