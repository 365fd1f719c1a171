package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsync/internal/config"
	dbRedis "github.com/kailas-cloud/shopsync/internal/db/redis"
	"github.com/kailas-cloud/shopsync/internal/dedup"
	"github.com/kailas-cloud/shopsync/internal/domain"
	"github.com/kailas-cloud/shopsync/internal/lane"
	logpkg "github.com/kailas-cloud/shopsync/internal/logger"
	"github.com/kailas-cloud/shopsync/internal/metrics"
	changelogrepo "github.com/kailas-cloud/shopsync/internal/repository/changelog"
	"github.com/kailas-cloud/shopsync/internal/repository/embcache"
	indexrepo "github.com/kailas-cloud/shopsync/internal/repository/index"
	chiTransport "github.com/kailas-cloud/shopsync/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/shopsync/internal/transport/openai"
	healthuc "github.com/kailas-cloud/shopsync/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/shopsync/internal/usecase/recommend"
	syncuc "github.com/kailas-cloud/shopsync/internal/usecase/syncer"
	"github.com/kailas-cloud/shopsync/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting shopsync server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Valkey and Redis speak the same protocol; the driver name is a label.
	switch cfg.Database.Driver {
	case "valkey", "redis":
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register embedding metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	embedder := embcache.New(
		base, store,
		time.Duration(cfg.Embedding.CacheTTLSec)*time.Second,
		metrics.EmbeddingCacheTotal,
		logger,
	)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Repositories
	changeLog := changelogrepo.New(store, cfg.Sync.ReflectionRetention).
		WithDeadLetterCap(cfg.Sync.DeadLetterCap)
	index := indexrepo.New(store, cfg.Embedding.Dimensions).WithHNSW(indexrepo.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})

	if err := index.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure search index", zap.Error(err))
	}

	// Sync engine and per-item lanes
	syncSvc := syncuc.New(changeLog, index, embedder, syncuc.Config{
		Backoff: syncuc.Backoff{
			Base:        time.Duration(cfg.Sync.BackoffBaseMs) * time.Millisecond,
			Ceiling:     time.Duration(cfg.Sync.BackoffCeilingMs) * time.Millisecond,
			MaxAttempts: cfg.Sync.MaxAttempts,
		},
		TrackTouches: cfg.Sync.TrackTouches,
	}, logger)

	dispatcher := lane.NewDispatcher(syncSvc.Process, lane.Config{
		QueueSize: cfg.Sync.LaneQueueSize,
		IdleAfter: time.Duration(cfg.Sync.LaneIdleSec) * time.Second,
	}, logger)

	dedupReg := dedup.NewRegistry(
		time.Duration(cfg.Webhook.DedupWindowSec)*time.Second,
		cfg.Webhook.DedupMaxEntries,
	)

	recommendSvc := recommenduc.New(index, embedder).
		WithLimits(cfg.Index.DefaultSearchLimit, cfg.Index.MaxSearchLimit)
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(base))

	server := chiTransport.NewServer(
		dispatcher, dedupReg, changeLog, recommendSvc, healthSvc,
		chiTransport.WebhookConfig{
			Secret:           cfg.Webhook.Secret,
			SignatureHeader:  cfg.Webhook.SignatureHeader,
			DeliveryIDHeader: cfg.Webhook.DeliveryIDHeader,
			MaxBodyBytes:     cfg.Webhook.MaxBodyBytes,
		},
		logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// Stop intake first, then drain every accepted event.
	dispatcher.Close()

	logger.Info("Server stopped gracefully")
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
