// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers implements the HTTP request handlers for the
proposal review service.

# Overview

handlers covers job submission, human-in-the-loop feedback, the
progress observer stream, admin job management, and health checks.
Every handler follows the standard net/http interface and shares the
response/error helpers in common.go.

# Core types

  - SubmissionHandler — creates jobs from text, file upload, or page references
  - FeedbackHandler    — accepts human feedback for a waiting HITL stage
  - ObserverHandler     — upgrades a request to a websocket progress stream
  - AdminHandler        — paged job listing, detail, update, delete
  - HealthHandler       — service health checks (/health, /healthz, /ready)
  - Response            — unified JSON response envelope (success + data + error + timestamp)
  - ErrorInfo           — structured error info, with code/message/retryable
  - ResponseWriter      — wraps http.ResponseWriter to capture the status code written
  - HealthCheck         — pluggable health check interface (database, redis, ...)

# Capabilities

  - Unified response shape via WriteSuccess / WriteError / WriteJSON
  - Request validation via DecodeJSONBody (1 MB limit, strict mode) and ValidateContentType
  - errs.ErrorCode to HTTP status mapping (4xx/5xx)
  - Pluggable health checks via RegisterCheck
*/
package handlers
