package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/errs"
	"github.com/BaSui01/agentflow/internal/feedback"
)

type publishFeedbackRequest struct {
	Feedback string `json:"feedback"`
	Skip     bool   `json:"skip"`
}

// FeedbackHandler publishes human responses into the Feedback Inbox for
// a job waiting at a HITL checkpoint.
type FeedbackHandler struct {
	Inbox  feedback.Publisher
	Logger *zap.Logger
}

// NewFeedbackHandler wires a FeedbackHandler. inbox may be a plain *Inbox
// or a *feedback.MirroredInbox when Redis mirroring is enabled.
func NewFeedbackHandler(inbox feedback.Publisher, logger *zap.Logger) *FeedbackHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackHandler{Inbox: inbox, Logger: logger.With(zap.String("component", "feedback_handler"))}
}

// HandlePublish accepts {feedback, skip?} for the job_id query parameter
// and wakes the orchestrator's waiting stage_loop.
func (h *FeedbackHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, errs.ErrInvalidSubmission, "method not allowed", h.Logger)
		return
	}

	jobID, err := jobIDFromRequest(r)
	if err != nil {
		WriteError(w, toAPIError(err), h.Logger)
		return
	}

	var req publishFeedbackRequest
	if err := DecodeJSONBody(w, r, &req, h.Logger); err != nil {
		return
	}

	h.Inbox.Publish(jobID, feedback.Value{Text: req.Feedback, Skip: req.Skip})
	WriteSuccess(w, map[string]any{"job_id": jobID, "accepted": true})
}

// jobIDFromRequest extracts job_id from the "job_id" query parameter.
// Route patterns that capture it as a path segment should set it as a
// query parameter before delegating here, or call feedback/observer
// handlers directly with the parsed id.
func jobIDFromRequest(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("job_id")
	if raw == "" {
		return 0, errs.New(errs.ErrInvalidSubmission, "job_id is required").WithHTTPStatus(http.StatusBadRequest)
	}
	jobID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errs.New(errs.ErrInvalidSubmission, "job_id must be an integer").WithCause(err).WithHTTPStatus(http.StatusBadRequest)
	}
	return jobID, nil
}
