// Package main is the entrypoint for the MeatCoin ledger API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/meatcoin/meatcoin/internal/audit"
	"github.com/meatcoin/meatcoin/internal/cache"
	"github.com/meatcoin/meatcoin/internal/config"
	"github.com/meatcoin/meatcoin/internal/directory"
	"github.com/meatcoin/meatcoin/internal/handler"
	"github.com/meatcoin/meatcoin/internal/identity"
	"github.com/meatcoin/meatcoin/internal/metrics"
	"github.com/meatcoin/meatcoin/internal/middleware"
	"github.com/meatcoin/meatcoin/internal/policy"
	"github.com/meatcoin/meatcoin/internal/repository"
	"github.com/meatcoin/meatcoin/internal/server"
	"github.com/meatcoin/meatcoin/internal/service"
	"github.com/meatcoin/meatcoin/internal/tokenledger"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	mint, err := identity.Parse(cfg.MintAddress)
	if err != nil {
		logger.Error("invalid MINT_ADDRESS", "error", err)
		os.Exit(1)
	}

	pol, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		logger.Error("failed to load policy", "error", err, "path", cfg.PolicyPath)
		os.Exit(1)
	}

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Seed the embedded token ledger from the genesis policy.
	ledger := tokenledger.NewMemory()
	if err := seedLedger(ctx, ledger, pol, mint, logger); err != nil {
		logger.Error("failed to seed token ledger", "error", err)
		os.Exit(1)
	}

	dir := directory.NewMemory(pol.RecordDeposit)

	// Metrics and audit pipeline
	metricsRecorder := metrics.NewInMemory()
	publisher := audit.NewPublisher(cacheClient.Client(), logger, metricsRecorder)
	eventRepo := repository.NewTransitionEventRepository(repo)
	worker := audit.NewWorker(cacheClient.Client(), eventRepo, logger, audit.NewConsumerID(), metricsRecorder)
	if cfg.AuditBatchSize > 0 {
		worker.SetBatchSize(cfg.AuditBatchSize)
	}

	// Initialize services
	ledgerService := service.NewLedgerService(
		repo,
		ledger,
		dir,
		cacheClient,
		publisher,
		logger,
		metricsRecorder,
		mint,
	)

	// Initialize handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	ledgerHandler := handler.NewLedgerHandler(ledgerService, logger)
	metricsHandler := handler.NewMetricsHandler(metricsRecorder)

	// Setup router
	r := setupRouter(h, healthHandler, ledgerHandler, metricsHandler, cacheClient, cfg, logger)

	// Create and run server
	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Start the audit worker. It is registered for shutdown so in-flight
	// batches drain after the HTTP server stops.
	if cfg.AuditWorkerEnabled {
		workerCtx, cancelWorker := context.WithCancel(ctx)
		go func() {
			if err := worker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("audit worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("audit_worker", func(shutdownCtx context.Context) error {
			cancelWorker()
			return worker.Shutdown(shutdownCtx)
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"mint", mint.Short(),
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// seedLedger creates the mint and any pre-funded genesis accounts on the
// embedded token ledger.
func seedLedger(ctx context.Context, ledger *tokenledger.Memory, pol *policy.Policy, mint identity.Identity, logger *slog.Logger) error {
	if pol.Genesis == nil {
		logger.Warn("no genesis policy configured; token ledger starts empty and initialize will fail until the mint exists")
		return nil
	}

	g := pol.Genesis
	if g.Mint != mint {
		logger.Warn("genesis mint differs from MINT_ADDRESS",
			"genesis_mint", g.Mint.Short(),
			"configured_mint", mint.Short(),
		)
	}

	if err := ledger.CreateMint(ctx, g.Mint, g.Authority); err != nil {
		return err
	}
	for _, acct := range g.Accounts {
		if err := ledger.CreateAccount(ctx, acct.Address, g.Mint, acct.Owner); err != nil {
			return err
		}
		if acct.Balance > 0 {
			if err := ledger.Mint(ctx, g.Mint, g.Authority, acct.Address, acct.Balance); err != nil {
				return err
			}
		}
	}

	logger.Info("token ledger seeded",
		"mint", g.Mint.Short(),
		"accounts", len(g.Accounts),
	)
	return nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	ledgerHandler *handler.LedgerHandler,
	metricsHandler *handler.MetricsHandler,
	cacheClient *cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}))
	if origins := cfg.GetCORSAllowedOrigins(); len(origins) > 0 {
		corsCfg := middleware.DefaultCORSConfig()
		corsCfg.AllowedOrigins = origins
		r.Use(middleware.CORS(corsCfg))
	}
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Health and metrics endpoints (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	// Root info endpoint
	r.Get("/", h.Root)

	authCfg := middleware.AuthConfig{
		Logger: logger,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:            logger,
		Cache:             cacheClient,
		IdentityEnabled:   cfg.RateLimitIdentityEnabled,
		IdentityPerMinute: cfg.RateLimitIdentityPerMinute,
		IdentityBurst:     cfg.RateLimitIdentityBurst,
		ReadEnabled:       cfg.RateLimitReadEnabled,
		ReadRPS:           cfg.RateLimitReadRPS,
		ReadBurst:         cfg.RateLimitReadBurst,
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public reads, rate limited per IP
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitIP(rateLimitCfg))
			r.Get("/state", ledgerHandler.GetState)
			r.Get("/redemption-records/{user}", ledgerHandler.GetRecord)
		})

		// Signed transitions, rate limited per caller identity
		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(middleware.MaxTransitionBodySize))
			r.Use(middleware.Auth(authCfg))
			r.Use(middleware.RateLimitIdentity(rateLimitCfg))

			r.Post("/initialize", ledgerHandler.Initialize)
			r.Post("/mint", ledgerHandler.Mint)
			r.Post("/redeem", ledgerHandler.Redeem)
			r.Post("/admin", ledgerHandler.ChangeAdmin)
			r.Delete("/redemption-records/me", ledgerHandler.CloseRecord)
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
