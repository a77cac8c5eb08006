package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/internal/feedback"
)

func TestFeedbackHandler_HandlePublish_WakesAwaitingInbox(t *testing.T) {
	inbox := feedback.NewInbox()
	h := NewFeedbackHandler(inbox, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback?job_id=7", strings.NewReader(`{"feedback":"looks good"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.HandlePublish(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	v := inbox.Await(req.Context(), 7, time.Second)
	assert.Equal(t, "looks good", v.Text)
}

func TestFeedbackHandler_HandlePublish_RejectsMissingJobID(t *testing.T) {
	inbox := feedback.NewInbox()
	h := NewFeedbackHandler(inbox, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback", strings.NewReader(`{"feedback":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.HandlePublish(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedbackHandler_HandlePublish_RejectsNonPost(t *testing.T) {
	inbox := feedback.NewInbox()
	h := NewFeedbackHandler(inbox, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/feedback?job_id=7", nil)
	rec := httptest.NewRecorder()

	h.HandlePublish(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
