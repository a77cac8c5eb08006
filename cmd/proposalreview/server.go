// Copyright (c) AgentFlow Authors. Licensed under the MIT License.

package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/api/handlers"
	"github.com/BaSui01/agentflow/config"
	"github.com/BaSui01/agentflow/internal/feedback"
	"github.com/BaSui01/agentflow/internal/llmgateway"
	"github.com/BaSui01/agentflow/internal/metrics"
	"github.com/BaSui01/agentflow/internal/progress"
	"github.com/BaSui01/agentflow/internal/retrieval"
	"github.com/BaSui01/agentflow/internal/review"
	"github.com/BaSui01/agentflow/internal/server"
	"github.com/BaSui01/agentflow/internal/store"
	"github.com/BaSui01/agentflow/internal/telemetry"
)

// Server wires the review pipeline (C1-C8) to the HTTP surface and owns
// the two listeners (API + metrics) and their graceful shutdown.
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	otel       *telemetry.Providers
	store      store.Store

	httpManager    *server.Manager
	metricsManager *server.Manager

	healthHandler     *handlers.HealthHandler
	submissionHandler *handlers.SubmissionHandler
	feedbackHandler   *handlers.FeedbackHandler
	observerHandler   *handlers.ObserverHandler
	adminHandler      *handlers.AdminHandler

	metricsCollector *metrics.Collector
	orchestrator     *review.Orchestrator

	rateLimiterCancel   context.CancelFunc
	redisCacheStore     *store.RedisCacheStore
	feedbackRedisMirror *feedback.MirroredInbox
}

// NewServer builds a Server ready to Start.
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, otelProviders *telemetry.Providers, st store.Store) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		otel:       otelProviders,
		store:      st,
	}
}

// Start wires every component and starts both the API and metrics
// listeners. It does not block; call WaitForShutdown to block until a
// shutdown signal arrives.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("proposalreview", s.logger)

	s.initPipeline()
	s.initHandlers()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("proposalreview started",
		zap.String("addr", s.cfg.Server.Addr),
		zap.String("metrics_addr", s.cfg.Server.MetricsAddr),
	)
	return nil
}

// initPipeline constructs the Feedback Inbox (C4), Progress Channel
// (C5), LLM/Retrieval Gateways (C1/C2), and the Review Orchestrator
// (C7). An LLM or retrieval base URL of "" falls back to a stub client,
// so the server is runnable without either dependency configured.
// Redis (cfg.Redis.Enabled) layers a read-through cache over the Job
// Store and a pub/sub mirror over the Feedback Inbox; both are optional,
// and a Redis that won't connect at startup just means the service runs
// without them rather than failing to start.
func (s *Server) initPipeline() {
	s.initRedis()

	var inbox = feedback.NewInbox()
	var pubInbox feedback.Publisher = inbox
	if s.cfg.Redis.Enabled {
		mirror, err := feedback.NewMirroredInbox(context.Background(), inbox, s.cfg.Redis.Addr, s.cfg.Redis.Password, s.cfg.Redis.DB, s.logger)
		if err != nil {
			s.logger.Warn("redis feedback mirror unavailable, continuing without it", zap.Error(err))
		} else {
			s.feedbackRedisMirror = mirror
			pubInbox = mirror
		}
	}

	ch := progress.NewChannel()

	var llmClient llmgateway.Client
	if s.cfg.LLM.BaseURL != "" {
		llmClient = llmgateway.NewHTTPClient(s.cfg.LLM.BaseURL, s.cfg.LLM.APIKey, s.cfg.LLM.Model, s.cfg.LLM.Timeout, s.logger)
		s.logger.Info("LLM gateway configured", zap.String("base_url", s.cfg.LLM.BaseURL), zap.String("model", s.cfg.LLM.Model))
	} else {
		llmClient = llmgateway.NewStubClient()
		s.logger.Warn("LLM base URL not configured, using stub LLM client")
	}

	var retClient retrieval.Client
	if s.cfg.Retrieval.BaseURL != "" {
		retClient = retrieval.NewHTTPClient(s.cfg.Retrieval.BaseURL, s.cfg.Retrieval.Timeout)
		s.logger.Info("Retrieval gateway configured", zap.String("base_url", s.cfg.Retrieval.BaseURL))
	} else {
		retClient = retrieval.NewStubClient()
		s.logger.Warn("Retrieval base URL not configured, using stub retrieval client")
	}

	s.orchestrator = review.New(s.store, inbox, ch, llmClient, retClient, s.cfg.Review, s.metricsCollector, s.logger)
	s.feedbackHandler = handlers.NewFeedbackHandler(pubInbox, s.logger)
	s.observerHandler = handlers.NewObserverHandler(ch, s.logger)
}

// initRedis wraps the Job Store in a read-through Redis cache when
// cfg.Redis.Enabled. A connection failure is logged and the plain store
// keeps serving, since the cache is a fast-path, not a dependency.
func (s *Server) initRedis() {
	if !s.cfg.Redis.Enabled {
		return
	}
	cache, err := store.NewRedisCacheStore(context.Background(), s.store, s.cfg.Redis.Addr, s.cfg.Redis.Password, s.cfg.Redis.DB, 0, s.logger)
	if err != nil {
		s.logger.Warn("redis job cache unavailable, continuing without it", zap.Error(err))
		return
	}
	s.redisCacheStore = cache
	s.store = cache
}

func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.submissionHandler = handlers.NewSubmissionHandler(s.store, s.orchestrator, s.cfg.Review.TitleMaxChars, s.metricsCollector, s.logger)
	s.adminHandler = handlers.NewAdminHandler(s.store, s.logger)
}

// startHTTPServer builds the route table and middleware chain, then
// starts the API listener.
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("/api/v1/submit", s.submissionHandler.HandleSubmit)
	mux.HandleFunc("/api/v1/feedback", s.feedbackHandler.HandlePublish)
	mux.HandleFunc("/api/v1/observe", s.observerHandler.HandleObserve)

	mux.HandleFunc("/api/v1/admin/jobs", s.adminHandler.HandleList)
	mux.HandleFunc("/api/v1/admin/jobs/get", s.adminHandler.HandleGet)
	mux.HandleFunc("/api/v1/admin/jobs/update", s.adminHandler.HandleUpdate)
	mux.HandleFunc("/api/v1/admin/jobs/delete", s.adminHandler.HandleDelete)

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics", "/api/v1/observe"}

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		rateLimiterCtx, cancel := context.WithCancel(context.Background())
		s.rateLimiterCancel = cancel
		middlewares = append(middlewares, RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst))
	}
	if len(s.cfg.Server.APIKeys) > 0 {
		middlewares = append(middlewares, APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.cfg.Server.AllowQueryAPIKey))
	} else if s.cfg.Server.JWTSecret != "" {
		middlewares = append(middlewares, JWTAuth(s.cfg.Server.JWTSecret, skipAuthPaths, s.logger))
	}
	if s.cfg.Telemetry.Enabled {
		middlewares = append(middlewares, OTelTracing())
	}

	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            s.cfg.Server.Addr,
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     s.cfg.Server.IdleTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}
	s.logger.Info("HTTP server started", zap.String("addr", s.cfg.Server.Addr))
	return nil
}

func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsAddr == "" {
		s.logger.Info("metrics_addr not configured, metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            s.cfg.Server.MetricsAddr,
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}
	s.logger.Info("metrics server started", zap.String("addr", s.cfg.Server.MetricsAddr))
	return nil
}

// WaitForShutdown blocks until a shutdown signal or a listener error,
// then runs Shutdown.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown tears down both listeners and the rate limiter's background
// cleanup goroutine, then flushes telemetry.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")
	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}
	if s.redisCacheStore != nil {
		if err := s.redisCacheStore.Close(); err != nil {
			s.logger.Error("redis job cache shutdown error", zap.Error(err))
		}
	}
	if s.feedbackRedisMirror != nil {
		if err := s.feedbackRedisMirror.Close(); err != nil {
			s.logger.Error("redis feedback mirror shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("graceful shutdown complete")
}
