package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/internal/progress"
)

// ObserverHandler adapts the Progress Channel's websocket stream (C5) to
// an HTTP route keyed by job_id.
type ObserverHandler struct {
	inner  *progress.ObserverHandler
	logger *zap.Logger
}

// NewObserverHandler wires an ObserverHandler.
func NewObserverHandler(ch *progress.Channel, logger *zap.Logger) *ObserverHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObserverHandler{
		inner:  progress.NewObserverHandler(ch, logger),
		logger: logger.With(zap.String("component", "observer_handler")),
	}
}

// HandleObserve upgrades the request to a websocket and streams job_id's
// progress events until the job completes, the client disconnects, or
// the request context is canceled.
func (h *ObserverHandler) HandleObserve(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDFromRequest(r)
	if err != nil {
		WriteError(w, toAPIError(err), h.logger)
		return
	}

	if err := h.inner.Serve(w, r, jobID); err != nil {
		h.logger.Warn("observer stream ended with error", zap.Int64("job_id", jobID), zap.Error(err))
	}
}
