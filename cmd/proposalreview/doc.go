// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main provides the proposalreview service entry point.

# Overview

cmd/proposalreview is the executable entry point for the proposal
review orchestrator: an HTTP API that accepts proposal submissions,
runs them through a six-stage specialist review pipeline with optional
human-in-the-loop checkpoints, and streams progress to observers. The
program supports YAML config loading, structured logging (zap),
Prometheus metrics, and database migrations.

# Core types

  - Server        — owns the API and metrics listeners and their graceful shutdown
  - Middleware     — HTTP middleware signature func(http.Handler) http.Handler

# Capabilities

  - Subcommands: serve, migrate, version, health
  - Middleware chain: Recovery, RequestID, SecurityHeaders, RequestLogger,
    MetricsMiddleware, CORS, RateLimiter (per-IP), APIKeyAuth / JWTAuth,
    OTelTracing (when telemetry is enabled)
  - Metrics server: separate port exposing /metrics (Prometheus)
  - Graceful shutdown: signal → stop rate limiter → close HTTP → close
    metrics → flush telemetry
  - Build injection: Version, BuildTime, GitCommit set via ldflags
*/
package main
