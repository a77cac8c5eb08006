package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/errs"
	"github.com/BaSui01/agentflow/internal/store"
)

// AdminHandler is the admin job-management surface: paged listing,
// detail, update (human_decision plus a fixed set of editable fields),
// and delete.
type AdminHandler struct {
	Store  store.Store
	Logger *zap.Logger
}

// NewAdminHandler wires an AdminHandler.
func NewAdminHandler(st store.Store, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{Store: st, Logger: logger.With(zap.String("component", "admin_handler"))}
}

// HandleList serves a paged, filtered job listing.
// Query parameters: status, human_decision, llm_decision, search, page, page_size.
func (h *AdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, errs.ErrInvalidSubmission, "method not allowed", h.Logger)
		return
	}

	q := r.URL.Query()
	filter := store.ListFilter{
		Status:        q.Get("status"),
		HumanDecision: q.Get("human_decision"),
		LLMDecision:   q.Get("llm_decision"),
		Search:        q.Get("search"),
		Page:          parseIntOr(q.Get("page"), 1),
		PageSize:      parseIntOr(q.Get("page_size"), 20),
	}

	result, err := h.Store.ListJobs(r.Context(), filter)
	if err != nil {
		WriteError(w, toAPIError(err), h.Logger)
		return
	}

	WriteSuccess(w, result)
}

// HandleGet serves one job's full detail, job_id from the query string.
func (h *AdminHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, errs.ErrInvalidSubmission, "method not allowed", h.Logger)
		return
	}

	jobID, err := jobIDFromRequest(r)
	if err != nil {
		WriteError(w, toAPIError(err), h.Logger)
		return
	}

	job, err := h.Store.GetJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, toAPIError(err), h.Logger)
		return
	}

	WriteSuccess(w, job)
}

// updateRequest is the editable subset of a job per spec §6's admin CRUD
// note: human_decision plus title/domain/division/content/hitl_stages.
type updateRequest struct {
	HumanDecision   *string `json:"human_decision,omitempty"`
	Title           *string `json:"title,omitempty"`
	Domain          *string `json:"domain,omitempty"`
	Division        *string `json:"division,omitempty"`
	ProposalContent *string `json:"proposal_content,omitempty"`
	HITLStages      []int   `json:"hitl_stages,omitempty"`
}

// HandleUpdate applies an updateRequest to job_id.
func (h *AdminHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch && r.Method != http.MethodPut {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, errs.ErrInvalidSubmission, "method not allowed", h.Logger)
		return
	}

	jobID, err := jobIDFromRequest(r)
	if err != nil {
		WriteError(w, toAPIError(err), h.Logger)
		return
	}

	var req updateRequest
	if err := DecodeJSONBody(w, r, &req, h.Logger); err != nil {
		return
	}

	job, err := h.Store.UpdateJob(r.Context(), jobID, store.JobPatch{
		Title:           req.Title,
		Domain:          req.Domain,
		Division:        req.Division,
		ProposalContent: req.ProposalContent,
		HITLStages:      req.HITLStages,
		HumanDecision:   req.HumanDecision,
	})
	if err != nil {
		WriteError(w, toAPIError(err), h.Logger)
		return
	}

	WriteSuccess(w, job)
}

// HandleDelete removes job_id.
func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, errs.ErrInvalidSubmission, "method not allowed", h.Logger)
		return
	}

	jobID, err := jobIDFromRequest(r)
	if err != nil {
		WriteError(w, toAPIError(err), h.Logger)
		return
	}

	if err := h.Store.DeleteJob(r.Context(), jobID); err != nil {
		WriteError(w, toAPIError(err), h.Logger)
		return
	}

	WriteSuccess(w, map[string]any{"job_id": jobID, "deleted": true})
}

func parseIntOr(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
