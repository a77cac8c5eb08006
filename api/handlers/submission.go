package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/errs"
	"github.com/BaSui01/agentflow/internal/metrics"
	"github.com/BaSui01/agentflow/internal/review"
	"github.com/BaSui01/agentflow/internal/store"
)

// proposalSource is the `proposal-source` field of a submission body.
// "text" carries the proposal body inline; "pages" additionally labels
// independently-reported segments sharing that same body (the Job
// model's Segments carry only an id/title pair, not separate content).
type proposalSource struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Pages []store.Segment `json:"pages,omitempty"`
}

type submitRequest struct {
	Domain         string         `json:"domain"`
	Division       string         `json:"division"`
	HITLStages     []int          `json:"hitl_stages"`
	ProposalSource proposalSource `json:"proposal-source"`
}

type submitResponse struct {
	JobID     int64           `json:"job_id"`
	Status    string          `json:"status"`
	Pages     []store.Segment `json:"pages,omitempty"`
	PageCount int             `json:"page_count"`
}

// SubmissionHandler creates jobs and kicks off their review pipeline.
type SubmissionHandler struct {
	Store         store.Store
	Orchestrator  *review.Orchestrator
	TitleMaxChars int
	Metrics       *metrics.Collector
	Logger        *zap.Logger
}

// NewSubmissionHandler wires a SubmissionHandler.
func NewSubmissionHandler(st store.Store, orch *review.Orchestrator, titleMaxChars int, mc *metrics.Collector, logger *zap.Logger) *SubmissionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionHandler{
		Store:         st,
		Orchestrator:  orch,
		TitleMaxChars: titleMaxChars,
		Metrics:       mc,
		Logger:        logger.With(zap.String("component", "submission_handler")),
	}
}

// HandleSubmit accepts either a JSON submission body or
// multipart/form-data (domain, division, hitl_stages as a JSON-array
// string, and either text or file).
func (h *SubmissionHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, errs.ErrInvalidSubmission, "method not allowed", h.Logger)
		return
	}

	contentType := r.Header.Get("Content-Type")

	var req submitRequest
	var err error
	if strings.HasPrefix(contentType, "multipart/form-data") {
		req, err = h.decodeMultipart(r)
	} else {
		err = DecodeJSONBody(w, r, &req, h.Logger)
	}
	if err != nil {
		if strings.HasPrefix(contentType, "multipart/form-data") {
			h.writeSubmissionError(w, err)
		}
		return
	}

	proposalContent, segments, err := resolveProposalSource(req.ProposalSource)
	if err != nil {
		h.writeSubmissionError(w, err)
		return
	}

	jobID, err := h.Store.CreateJob(r.Context(), store.NewFields{
		Domain:          req.Domain,
		Division:        req.Division,
		ProposalContent: proposalContent,
		Segments:        segments,
		HITLStages:      req.HITLStages,
	})
	if err != nil {
		WriteError(w, toAPIError(err), h.Logger)
		return
	}

	title := review.GenerateTitle(r.Context(), h.Orchestrator.LLM, proposalContent, h.TitleMaxChars)
	if _, err := h.Store.UpdateJob(r.Context(), jobID, store.JobPatch{Title: &title}); err != nil {
		h.Logger.Warn("failed to persist generated title", zap.Int64("job_id", jobID), zap.Error(err))
	}

	if h.Metrics != nil {
		h.Metrics.RecordJobCreated()
	}

	go func() {
		ctx := context.Background()
		if err := h.Orchestrator.RunJob(ctx, jobID); err != nil {
			h.Logger.Error("job run failed", zap.Int64("job_id", jobID), zap.Error(err))
		}
	}()

	pageCount := len(segments)
	if pageCount == 0 {
		pageCount = 1
	}

	WriteJSON(w, http.StatusAccepted, submitResponse{
		JobID:     jobID,
		Status:    "submitted",
		Pages:     segments,
		PageCount: pageCount,
	})
}

func (h *SubmissionHandler) decodeMultipart(r *http.Request) (submitRequest, error) {
	var req submitRequest
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		return req, errs.New(errs.ErrInvalidSubmission, "invalid multipart body").WithCause(err).WithHTTPStatus(http.StatusBadRequest)
	}

	req.Domain = r.FormValue("domain")
	req.Division = r.FormValue("division")

	if raw := r.FormValue("hitl_stages"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.HITLStages); err != nil {
			return req, errs.New(errs.ErrInvalidSubmission, "hitl_stages must be a JSON array of stage numbers").WithCause(err).WithHTTPStatus(http.StatusBadRequest)
		}
	}

	if text := r.FormValue("text"); text != "" {
		req.ProposalSource = proposalSource{Type: "text", Text: text}
		return req, nil
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return req, errs.New(errs.ErrInvalidSubmission, "submission must include either text or file").WithHTTPStatus(http.StatusBadRequest)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return req, errs.New(errs.ErrInvalidSubmission, "failed to read uploaded file").WithCause(err).WithHTTPStatus(http.StatusBadRequest)
	}
	req.ProposalSource = proposalSource{Type: "text", Text: string(content)}
	return req, nil
}

// resolveProposalSource validates and flattens a proposal-source field
// into the job store's (proposal_content, segments) shape.
func resolveProposalSource(src proposalSource) (string, []store.Segment, error) {
	switch src.Type {
	case "text", "":
		if strings.TrimSpace(src.Text) == "" {
			return "", nil, errs.New(errs.ErrInvalidSubmission, "proposal text must not be empty").WithHTTPStatus(http.StatusBadRequest)
		}
		return src.Text, nil, nil
	case "pages":
		if strings.TrimSpace(src.Text) == "" {
			return "", nil, errs.New(errs.ErrInvalidSubmission, "a multi-page submission still requires shared proposal text").WithHTTPStatus(http.StatusBadRequest)
		}
		if len(src.Pages) == 0 {
			return "", nil, errs.New(errs.ErrInvalidSubmission, "proposal-source type \"pages\" requires at least one page").WithHTTPStatus(http.StatusBadRequest)
		}
		return src.Text, src.Pages, nil
	default:
		return "", nil, errs.New(errs.ErrInvalidSubmission, "unknown proposal-source type: "+src.Type).WithHTTPStatus(http.StatusBadRequest)
	}
}

func (h *SubmissionHandler) writeSubmissionError(w http.ResponseWriter, err error) {
	WriteError(w, toAPIError(err), h.Logger)
}

// toAPIError normalizes err into an *errs.Error, defaulting to an
// internal error for anything the store/orchestrator didn't already
// classify.
func toAPIError(err error) *errs.Error {
	if apiErr, ok := err.(*errs.Error); ok {
		return apiErr
	}
	return errs.New(errs.ErrInternal, err.Error()).WithHTTPStatus(http.StatusInternalServerError)
}
