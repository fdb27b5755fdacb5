package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prdforge/prdforge/internal/codebase"
	"github.com/prdforge/prdforge/internal/config"
	"github.com/prdforge/prdforge/internal/embedding"
	"github.com/prdforge/prdforge/internal/engine"
	"github.com/prdforge/prdforge/internal/httpapi"
	"github.com/prdforge/prdforge/internal/middleware"
	"github.com/prdforge/prdforge/internal/mockup"
	"github.com/prdforge/prdforge/internal/observability"
	"github.com/prdforge/prdforge/internal/observability/audit"
	"github.com/prdforge/prdforge/internal/provider"
	"github.com/prdforge/prdforge/internal/rag"
	"github.com/prdforge/prdforge/internal/security/auth"
	"github.com/prdforge/prdforge/internal/security/ratelimit"
	"github.com/prdforge/prdforge/internal/session"
	"github.com/prdforge/prdforge/internal/store"
	"github.com/prdforge/prdforge/internal/tls"
	"github.com/prdforge/prdforge/internal/vectorstore"
	"github.com/prdforge/prdforge/internal/vectorstore/sqlite"
)

const Version = "0.1.0"

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LoggerConfig{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		Output:        os.Stdout,
		AddSource:     true,
		SentryEnabled: cfg.Observability.Sentry.Enabled,
	})

	logger.Info("prdforge starting",
		"version", Version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"metrics_enabled", cfg.Observability.Metrics.Enabled,
		"tracing_enabled", cfg.Observability.Tracing.Enabled,
	)

	var metrics *observability.MetricsCollector
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.NewMetricsCollector("prdforge")
		go startMetricsServer(cfg.Observability.Metrics, logger)
	} else {
		logger.Info("metrics collection disabled")
	}

	var tracerProvider *observability.TracerProvider
	if cfg.Observability.Tracing.Enabled {
		tracerProvider, err = observability.NewTracerProvider(observability.TracerConfig{
			ServiceName:    "prdforge",
			ServiceVersion: Version,
			Environment:    cfg.Observability.Sentry.Environment,
			OTLPEndpoint:   cfg.Observability.Tracing.Endpoint,
			SamplingRate:   cfg.Observability.Tracing.SampleRate,
			Enabled:        true,
		})
		if err != nil {
			logger.Error("failed to initialize tracer provider", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shut down tracer provider", "error", err)
			}
		}()
	} else {
		logger.Info("tracing disabled")
	}

	if cfg.Observability.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Observability.Sentry.DSN,
			Environment:      cfg.Observability.Sentry.Environment,
			Release:          cfg.Observability.Sentry.Release,
			TracesSampleRate: cfg.Observability.Sentry.SampleRate,
			EnableTracing:    true,
		}); err != nil {
			logger.Error("failed to initialize sentry", "error", err)
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	} else {
		logger.Info("sentry disabled")
	}

	// Document Store: the in-memory reference implementation (see DESIGN.md
	// for the SQLite-backed store left as a documented follow-up).
	var requestStore store.Store = store.NewMemoryStore()
	logger.Info("using in-memory request store", "database_type", cfg.Database.Type, "skip_database", cfg.Database.SkipDatabase)

	// Vector store: the same SQLite-backed hybrid store the teacher ships,
	// since it already satisfies the RAG retriever's VectorStore port.
	vecStore, err := sqlite.NewStore(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to initialize vector store", "error", err)
		os.Exit(1)
	}
	defer vecStore.Close()
	var vectors vectorstore.VectorStore = vecStore

	embeddingProvider, err := embedding.Get(cfg.Embedding.Provider)
	if err != nil {
		logger.Error("failed to get embedding provider", "provider", cfg.Embedding.Provider, "error", err)
		os.Exit(1)
	}
	providerConfig := make(map[string]interface{}, len(cfg.Embedding.Config)+2)
	for k, v := range cfg.Embedding.Config {
		providerConfig[k] = v
	}
	providerConfig["model"] = cfg.Embedding.Model
	providerConfig["dimensions"] = cfg.Embedding.Dimensions
	embedder, err := embeddingProvider.Create(providerConfig)
	if err != nil {
		logger.Error("failed to create embedder", "provider", cfg.Embedding.Provider, "error", err)
		os.Exit(1)
	}
	logger.Info("embedder initialized", "provider", cfg.Embedding.Provider, "model", embedder.Model(), "dimensions", embedder.Dimensions())

	// Job Queue: in-process worker pool by default, Redis Streams for
	// multi-instance deployments (INDEX_QUEUE_BACKEND=redis).
	var queue codebase.Queue
	switch cfg.Indexer.QueueBackend {
	case "redis":
		redisQueue, err := codebase.NewRedisQueue(ctx, cfg.Indexer.QueueRedisAddr, cfg.Indexer.QueueRedisPassword, cfg.Indexer.QueueRedisDB, logger.Underlying())
		if err != nil {
			logger.Error("failed to initialize redis index queue", "error", err)
			os.Exit(1)
		}
		defer redisQueue.Close()
		queue = redisQueue
		logger.Info("indexing job queue backend: redis", "addr", cfg.Indexer.QueueRedisAddr)
	default:
		pool := codebase.NewWorkerPool(logger.Underlying())
		defer pool.Close()
		queue = pool
		logger.Info("indexing job queue backend: memory")
	}

	codebaseService := codebase.NewService(
		codebase.NewGitHubHost(),
		vectors,
		embedder,
		nil,
		queue,
		logger.Underlying(),
	)

	providerMetrics := provider.NewMetrics(prometheus.DefaultRegisterer)
	providers := provider.NewRegistry(providerMetrics, logger.Underlying())
	if err := providers.Register(provider.NewMock("mock-primary", 0)); err != nil {
		logger.Error("failed to register provider", "error", err)
		os.Exit(1)
	}
	if err := providers.Register(provider.NewMock("mock-secondary", 1)); err != nil {
		logger.Error("failed to register provider", "error", err)
		os.Exit(1)
	}

	maxPrivacy := parsePrivacyLevel(cfg.Generation.MaxPrivacyLevel)

	mockupBackend := mockup.NewMemoryBackend()
	mockupSigningKey := []byte(cfg.Mockup.SigningKey)
	if len(mockupSigningKey) == 0 {
		mockupSigningKey = []byte("prdforge-dev-signing-key")
		logger.Warn("MOCKUP_SIGNING_KEY not set, using an insecure development key")
	}
	mockupStorage := mockup.NewHMACSignedStorage(mockupBackend, cfg.Mockup.BaseURL, mockupSigningKey)
	mockupAnalyzer := mockup.New(requestStore, mockupStorage, providers, maxPrivacy)

	retriever := rag.New(vectors, embedder)

	eng := engine.New(requestStore, retriever, mockupAnalyzer, providers, codebaseService, maxPrivacy, engine.Config{
		ConfidenceThreshold:  cfg.Generation.ConfidenceThreshold,
		EnableClarifications: cfg.Generation.EnableClarifications,
	})

	sessions := session.NewRegistry()

	server := httpapi.NewServer(requestStore, eng, mockupAnalyzer, sessions, codebaseService, logger)

	runHTTPServer(ctx, cfg, server, logger, metrics)
}

func startMetricsServer(cfg config.MetricsConfig, logger *observability.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","component":"metrics"}`)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("starting metrics server", "addr", addr, "path", cfg.Path)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", "error", err)
	}
}

func runHTTPServer(ctx context.Context, cfg *config.Config, server *httpapi.Server, logger *observability.Logger, metrics *observability.MetricsCollector) {
	var tlsManager *tls.Manager
	if cfg.TLS.Enabled {
		var err error
		tlsManager, err = tls.NewManager(&cfg.TLS, logger)
		if err != nil {
			logger.Error("failed to initialize TLS manager", "error", err)
			os.Exit(1)
		}
		if err := tlsManager.ValidateCertificates(); err != nil {
			logger.Error("certificate validation failed", "error", err)
			os.Exit(1)
		}
		logger.Info("TLS enabled", "auto_cert", cfg.TLS.AutoCert, "min_version", cfg.TLS.MinVersion)
	}

	auditLogger, err := audit.NewLogger(audit.Config{
		Enabled: cfg.Observability.Audit.Enabled,
		Outputs: []audit.OutputConfig{
			{Type: audit.OutputTypeFile, FilePath: cfg.Observability.Audit.FilePath, Format: "json"},
		},
		ServiceName:    "prdforge",
		ServiceVersion: Version,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize audit logger", "error", err)
		os.Exit(1)
	}
	defer auditLogger.Close()
	if cfg.Observability.Audit.Enabled {
		logger.Info("audit trail enabled", "file_path", cfg.Observability.Audit.FilePath)
	}

	var jwtManager *auth.JWTManager
	var authMiddleware *middleware.AuthMiddleware
	if cfg.Auth.Enabled {
		var err error
		jwtManager, err = auth.NewJWTManager(cfg.Auth.PrivateKey, cfg.Auth.PublicKey, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenExpiry)
		if err != nil {
			logger.Error("failed to initialize JWT manager", "error", err)
			os.Exit(1)
		}
		authMiddleware = middleware.NewAuthMiddleware(jwtManager, auditLogger)
		logger.Info("JWT authentication enabled", "issuer", cfg.Auth.Issuer, "audience", cfg.Auth.Audience)
	} else {
		logger.Info("JWT authentication disabled")
	}

	var rateLimitMiddleware *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		algorithm := ratelimit.SlidingWindow
		if cfg.RateLimit.Algorithm == "token_bucket" {
			algorithm = ratelimit.TokenBucket
		}
		rateLimiter, err := ratelimit.NewRateLimiter(ratelimit.Config{
			Enabled:   cfg.RateLimit.Enabled,
			Algorithm: algorithm,
			Redis: ratelimit.RedisConfig{
				Enabled:   cfg.RateLimit.Redis.Enabled,
				Addr:      cfg.RateLimit.Redis.Addr,
				Password:  cfg.RateLimit.Redis.Password,
				DB:        cfg.RateLimit.Redis.DB,
				KeyPrefix: cfg.RateLimit.Redis.KeyPrefix,
			},
			Default:         ratelimit.LimitConfig{Requests: cfg.RateLimit.Default.Requests, Window: cfg.RateLimit.Default.Window},
			Health:          ratelimit.LimitConfig{Requests: cfg.RateLimit.Health.Requests, Window: cfg.RateLimit.Health.Window},
			Webhook:         ratelimit.LimitConfig{Requests: cfg.RateLimit.Webhook.Requests, Window: cfg.RateLimit.Webhook.Window},
			Auth:            ratelimit.LimitConfig{Requests: cfg.RateLimit.Auth.Requests, Window: cfg.RateLimit.Auth.Window},
			BurstMultiplier: cfg.RateLimit.BurstMultiplier,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		})
		if err != nil {
			logger.Error("failed to initialize rate limiter", "error", err)
			os.Exit(1)
		}
		rateLimitMiddleware = middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
			RateLimiter:      rateLimiter,
			MetricsCollector: metrics,
			AuditLogger:      auditLogger,
			SkipPaths:        cfg.RateLimit.SkipPaths,
			SkipIPs:          cfg.RateLimit.SkipIPs,
			TrustedProxies:   cfg.RateLimit.TrustedProxies,
		}, logger)
		logger.Info("rate limiting enabled", "algorithm", cfg.RateLimit.Algorithm)
	} else {
		logger.Info("rate limiting disabled")
	}

	securityMiddleware := middleware.NewSecurityMiddleware(middleware.SecurityConfig{
		CSP: middleware.CSPConfig{
			Enabled: cfg.Security.CSP.Enabled,
			Default: cfg.Security.CSP.Default,
			Script:  cfg.Security.CSP.Script,
			Style:   cfg.Security.CSP.Style,
			Image:   cfg.Security.CSP.Image,
			Font:    cfg.Security.CSP.Font,
			Connect: cfg.Security.CSP.Connect,
			Media:   cfg.Security.CSP.Media,
			Object:  cfg.Security.CSP.Object,
			Frame:   cfg.Security.CSP.Frame,
			Report:  cfg.Security.CSP.Report,
		},
		HSTS: middleware.HSTSConfig{
			Enabled:           cfg.Security.HSTS.Enabled,
			MaxAge:            cfg.Security.HSTS.MaxAge,
			IncludeSubdomains: cfg.Security.HSTS.IncludeSubdomains,
			Preload:           cfg.Security.HSTS.Preload,
		},
		XFrameOptions:       cfg.Security.XFrameOptions,
		XContentTypeOptions: cfg.Security.XContentTypeOptions,
		ReferrerPolicy:      cfg.Security.ReferrerPolicy,
		PermissionsPolicy:   cfg.Security.PermissionsPolicy,
	}, logger)

	corsMiddleware := middleware.NewCORSMiddleware(middleware.CORSConfig{
		Enabled:          cfg.CORS.Enabled,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}, logger)

	// Middleware is wrapped in this order: rate limiting first (innermost,
	// nearest the mux), then CORS, then security headers, then auth (outermost).
	var handler http.Handler = server.Mux()
	if rateLimitMiddleware != nil {
		handler = rateLimitMiddleware.Middleware(handler)
	}
	handler = corsMiddleware.Middleware(handler)
	handler = securityMiddleware.Middleware(handler)
	if authMiddleware != nil {
		handler = authMiddleware.Middleware(handler)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if tlsManager != nil {
		httpServer.TLSConfig = tlsManager.GetTLSConfig()
		httpsPort := cfg.Server.Port
		if httpsPort == 443 {
			httpsPort = 0
		}
		if err := tlsManager.StartHTTPRedirect(ctx, httpsPort); err != nil {
			logger.Error("failed to start HTTP redirect server", "error", err)
			os.Exit(1)
		}
	}

	go func() {
		scheme := "http"
		if tlsManager != nil {
			scheme = "https"
		}
		logger.Info("server starting", "scheme", scheme, "addr", addr)

		var err error
		if tlsManager != nil {
			if cfg.TLS.AutoCert {
				err = httpServer.ListenAndServeTLS("", "")
			} else {
				err = httpServer.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			}
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
}

func parsePrivacyLevel(s string) provider.PrivacyLevel {
	switch s {
	case "onDevice":
		return provider.PrivacyOnDevice
	case "privateCloud":
		return provider.PrivacyPrivateCloud
	default:
		return provider.PrivacyExternal
	}
}
