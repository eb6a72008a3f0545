// Command konsil runs the Konsil core service: an HTTP API that answers
// construction engineering questions by consulting a roster of specialist
// roles and merging their findings into one consensus-checked answer.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	konhttp "github.com/kalkwerk/konsil/internal/adapter/http"
	"github.com/kalkwerk/konsil/internal/adapter/litellm"
	konnats "github.com/kalkwerk/konsil/internal/adapter/nats"
	"github.com/kalkwerk/konsil/internal/adapter/natskv"
	kotel "github.com/kalkwerk/konsil/internal/adapter/otel"
	"github.com/kalkwerk/konsil/internal/adapter/postgres"
	"github.com/kalkwerk/konsil/internal/adapter/ristretto"
	"github.com/kalkwerk/konsil/internal/adapter/sqlite"
	"github.com/kalkwerk/konsil/internal/adapter/tiered"
	"github.com/kalkwerk/konsil/internal/config"
	"github.com/kalkwerk/konsil/internal/domain/consult"
	"github.com/kalkwerk/konsil/internal/logger"
	"github.com/kalkwerk/konsil/internal/middleware"
	"github.com/kalkwerk/konsil/internal/port/cache"
	"github.com/kalkwerk/konsil/internal/port/eventbus"
	"github.com/kalkwerk/konsil/internal/port/knowledge"
	"github.com/kalkwerk/konsil/internal/resilience"
	"github.com/kalkwerk/konsil/internal/service"
)

// l1BackfillExpire bounds how long entries backfilled from the shared
// NATS KV tier stay in the in-process cache.
const l1BackfillExpire = 15 * time.Minute

func main() {
	// Bootstrap logger until the configured one is up.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return err
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"knowledge_driver", cfg.Knowledge.Driver,
		"nats_embedded", cfg.NATS.Embedded,
		"cache_enabled", cfg.Cache.Enabled,
	)

	ctx := context.Background()

	// --- Telemetry ---

	otelShutdown, err := kotel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint, cfg.Telemetry.Insecure)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := kotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Event bus ---

	var bus *konnats.Bus
	natsURL := cfg.NATS.URL
	if cfg.NATS.Embedded {
		embedded, err := konnats.RunEmbedded(cfg.NATS.StoreDir)
		if err != nil {
			return fmt.Errorf("embedded nats: %w", err)
		}
		defer embedded.Shutdown()
		natsURL = embedded.ClientURL()
		slog.Info("embedded nats server started", "url", natsURL)
	}
	if natsURL != "" {
		bus, err = konnats.Connect(ctx, natsURL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := bus.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}()

		if cfg.Logging.Level == "debug" {
			stopTap, err := bus.Subscribe(ctx, eventbus.SubjectAll, func(_ context.Context, subject string, data []byte) error {
				slog.Debug("lifecycle event", "subject", subject, "bytes", len(data))
				return nil
			})
			if err != nil {
				slog.Warn("event tap subscribe", "error", err)
			} else {
				defer stopTap()
			}
		}
	} else {
		slog.Warn("event bus disabled, lifecycle events will not be published")
	}

	// --- Knowledge base ---

	var kb knowledge.Base
	switch cfg.Knowledge.Driver {
	case "postgres":
		if err := postgres.RunMigrations(ctx, cfg.Knowledge.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Knowledge.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		version, err := postgres.MigrationVersion(ctx, cfg.Knowledge.Postgres.DSN)
		if err != nil {
			slog.Warn("migration version lookup", "error", err)
		}
		slog.Info("postgres knowledge base ready", "migration_version", version)
		kb = postgres.NewStore(pool)
	case "sqlite":
		store, err := sqlite.New(cfg.Knowledge.SQLitePath)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		defer func() { _ = store.Close() }()
		slog.Info("sqlite knowledge base ready", "path", cfg.Knowledge.SQLitePath)
		kb = store
	default:
		slog.Warn("knowledge base disabled, roles are consulted without normative facts")
	}

	// --- Model gateway ---

	llm := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey)
	llm.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
	exec := litellm.NewExecutor(llm, cfg.LiteLLM.Model, cfg.LiteLLM.MaxTokens)

	// --- Result cache ---

	var resultCache cache.Cache
	if cfg.Cache.Enabled {
		l1, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
		if err != nil {
			return fmt.Errorf("result cache: %w", err)
		}
		defer l1.Close()
		resultCache = l1

		if bus != nil {
			kv, err := bus.KeyValue(ctx, natskv.DefaultBucket, cfg.Cache.TTL)
			if err != nil {
				slog.Warn("nats kv bucket unavailable, result cache is in-process only", "error", err)
			} else {
				resultCache = tiered.New(l1, natskv.New(kv), l1BackfillExpire)
				slog.Info("tiered result cache enabled", "bucket", natskv.DefaultBucket)
			}
		}
	}

	// --- Services ---

	registry := service.NewRegistry()
	if cfg.Roles.CatalogPath != "" {
		n, err := registry.LoadCatalog(cfg.Roles.CatalogPath)
		if err != nil {
			return fmt.Errorf("role catalog: %w", err)
		}
		slog.Info("role catalog loaded", "path", cfg.Roles.CatalogPath, "custom_roles", n)
	}

	classifier := service.NewClassifier(registry, cfg.Engine.MinTaskLength)
	orchestrator := service.NewOrchestrator(registry, exec, kb, cfg.Engine.DefaultRoleTimeout, cfg.Engine.MaxRoleTimeout)
	orchestrator.SetFactLimit(cfg.Engine.FactLimit)

	thresholds := consult.Thresholds{
		Green:           cfg.Consensus.Green,
		Amber:           cfg.Consensus.Amber,
		ConsensusRatio:  cfg.Consensus.ConsensusRatio,
		ConfidenceFloor: cfg.Consensus.ConfidenceFloor,
		CostDeviation:   cfg.Consensus.CostDeviation,
	}

	engine := service.NewEngine(
		classifier,
		orchestrator,
		service.NewConflictDetector(thresholds),
		service.NewConflictResolver(registry),
		service.NewConsensusCalculator(thresholds),
		service.NewSynthesizer(),
		registry,
	)
	if resultCache != nil {
		engine.SetCache(resultCache, cfg.Cache.TTL)
	}
	if bus != nil {
		engine.SetBus(bus)
	}
	engine.SetMetrics(metrics)

	// --- HTTP ---

	handlers := &konhttp.Handlers{
		Engine:       engine,
		Classifier:   classifier,
		Registry:     registry,
		LLM:          llm,
		Knowledge:    kb,
		CacheEnabled: resultCache != nil,
	}
	if bus != nil {
		handlers.Bus = bus
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(5*time.Minute, 15*time.Minute)
	defer stopCleanup()

	r := chi.NewRouter()

	// The rate limiter keys on RemoteAddr, so chi's RealIP middleware stays
	// out of the chain: trusting forwarded headers would let clients pick
	// their own bucket.
	r.Use(middleware.RequestID)
	r.Use(konhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(konhttp.SecurityHeaders)
	r.Use(konhttp.Logger)
	r.Use(kotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(limiter.Handler)
	r.Use(middleware.APIKey(cfg.Auth.APIKey))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))

	konhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// A sequential consultation can legitimately run for minutes, so the
		// write timeout tracks the request budget instead of capping it.
		WriteTimeout: cfg.Server.RequestTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case sig := <-done:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
