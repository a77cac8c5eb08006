package review

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/config"
	"github.com/BaSui01/agentflow/internal/feedback"
	"github.com/BaSui01/agentflow/internal/progress"
	"github.com/BaSui01/agentflow/internal/retrieval"
	"github.com/BaSui01/agentflow/internal/store"
)

func testConfig() config.ReviewConfig {
	return config.ReviewConfig{
		MaxRetries:       3,
		FeedbackTimeout:  50 * time.Millisecond,
		PromptCharBudget: 800,
		BPRecordCount:    5,
		TitleMaxChars:    25,
	}
}

// scriptedResponses cycles: 4 analysis stages + 2 final-stage calls
// (recommendation, classification) per segment with no HITL retries.
func scriptedResponses() []string {
	return []string{
		"objective analysis text",
		"data feasibility analysis text",
		"risk analysis text",
		"roi analysis text",
		"final recommendation narrative",
		`{"decision": "approved", "reason": "solid across the board"}`,
	}
}

func newTestOrchestrator(llm *fakeLLM, hitlStages []int) (*Orchestrator, store.Store, int64) {
	st := store.NewMemoryStore()
	inbox := feedback.NewInbox()
	ch := progress.NewChannel()
	ret := &fakeRetrieval{records: []retrieval.Record{{Title: "Case A"}}}
	cfg := testConfig()

	orch := New(st, inbox, ch, llm, ret, cfg, nil, zap.NewNop())

	jobID, err := st.CreateJob(context.Background(), store.NewFields{
		Title:           "Test proposal",
		ProposalContent: "proposal body",
		HITLStages:      hitlStages,
	})
	if err != nil {
		panic(err)
	}
	return orch, st, jobID
}

func TestRunJob_NoHITL_CompletesAndPersistsDecision(t *testing.T) {
	llm := &fakeLLM{responses: scriptedResponses()}
	orch, st, jobID := newTestOrchestrator(llm, nil)

	events, unsubscribe := orch.Progress.Subscribe(jobID)
	defer unsubscribe()

	err := orch.RunJob(context.Background(), jobID)
	require.NoError(t, err)

	job, err := st.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "completed", job.Status)
	assert.Equal(t, store.DecisionApproved, job.LLMDecision)
	require.NotNil(t, job.Metadata.FinalDecision)
	assert.Equal(t, "solid across the board", job.Metadata.FinalDecision.Reason)
	assert.NotEmpty(t, job.Metadata.Report)

	var kinds []progress.Kind
	drain := func() {
		for {
			select {
			case e := <-events:
				kinds = append(kinds, e.Kind)
			default:
				return
			}
		}
	}
	drain()
	require.NotEmpty(t, kinds)
	assert.Equal(t, progress.KindPageProgress, kinds[0])
	assert.Equal(t, progress.KindCompleted, kinds[len(kinds)-1])
	for _, k := range kinds {
		assert.NotEqual(t, progress.KindInterrupt, k, "no HITL stages configured, so no interrupt should fire")
	}
}

func TestRunJob_HITLStage_WaitsForFeedbackThenRetries(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		"objective draft v1",
		`{"issues": [], "suggestion": ""}`,
		"objective draft v2 incorporating feedback",
		`{"issues": [], "suggestion": ""}`,
		"data feasibility analysis text",
		"risk analysis text",
		"roi analysis text",
		"final recommendation narrative",
		`{"decision": "approved", "reason": "solid"}`,
	}}
	orch, st, jobID := newTestOrchestrator(llm, []int{StageObjective})

	go func() {
		time.Sleep(10 * time.Millisecond)
		orch.Inbox.Publish(jobID, feedback.Value{Text: "add more concrete detail"})
	}()

	err := orch.RunJob(context.Background(), jobID)
	require.NoError(t, err)

	job, err := st.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "completed", job.Status)
	assert.Equal(t, "objective draft v2 incorporating feedback", job.Metadata.AgentResults[Name(StageObjective)])

	require.Len(t, job.Metadata.FeedbackHistory, 2)
	assert.Equal(t, StageObjective, job.Metadata.FeedbackHistory[0].Stage)
	assert.Equal(t, "add more concrete detail", job.Metadata.FeedbackHistory[0].Text)
	assert.False(t, job.Metadata.FeedbackHistory[0].Skip)
	assert.True(t, job.Metadata.FeedbackHistory[1].Skip, "the wait after the regenerated draft times out with no further feedback")
}

func TestRunJob_HITLStage_SkipStopsTheRetryLoopImmediately(t *testing.T) {
	llm := &fakeLLM{responses: scriptedResponses()}
	orch, st, jobID := newTestOrchestrator(llm, []int{StageRisk})

	go func() {
		time.Sleep(5 * time.Millisecond)
		orch.Inbox.Publish(jobID, feedback.Value{Skip: true})
	}()

	err := orch.RunJob(context.Background(), jobID)
	require.NoError(t, err)

	job, err := st.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "completed", job.Status)
	require.Len(t, job.Metadata.FeedbackHistory, 1)
	assert.True(t, job.Metadata.FeedbackHistory[0].Skip)
}

func TestRunJob_HITLStage_TimeoutIsTreatedAsSkip(t *testing.T) {
	llm := &fakeLLM{responses: scriptedResponses()}
	orch, st, jobID := newTestOrchestrator(llm, []int{StageData})
	// no publish: Await times out after cfg.FeedbackTimeout and returns Skip

	err := orch.RunJob(context.Background(), jobID)
	require.NoError(t, err)

	job, err := st.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "completed", job.Status)
	require.Len(t, job.Metadata.FeedbackHistory, 1)
	assert.True(t, job.Metadata.FeedbackHistory[0].Skip)
}

func TestRunJob_HITLStage_ExhaustsMaxRetriesThenProceeds(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		"objective draft 1",
		"data feasibility analysis text",
		"risk analysis text",
		"roi analysis text",
		"final recommendation narrative",
		`{"decision": "approved", "reason": "solid"}`,
	}}
	orch, st, jobID := newTestOrchestrator(llm, []int{StageObjective})
	orch.Config.MaxRetries = 0 // first piece of feedback should already exhaust the budget

	go func() {
		time.Sleep(5 * time.Millisecond)
		orch.Inbox.Publish(jobID, feedback.Value{Text: "try again"})
	}()

	err := orch.RunJob(context.Background(), jobID)
	require.NoError(t, err)

	job, err := st.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "completed", job.Status)
	assert.Equal(t, "objective draft 1", job.Metadata.AgentResults[Name(StageObjective)])
}

func TestRunJob_HITLStage_RetriesUpToMaxRetriesThenProceeds(t *testing.T) {
	quality := `{"issues": [], "suggestion": ""}`
	llm := &fakeLLM{responses: []string{
		"objective draft 1", quality,
		"objective draft 2", quality,
		"objective draft 3", quality,
		"objective draft 4", quality,
		"data feasibility analysis text",
		"risk analysis text",
		"roi analysis text",
		"final recommendation narrative",
		`{"decision": "approved", "reason": "solid"}`,
	}}
	orch, st, jobID := newTestOrchestrator(llm, []int{StageObjective})
	orch.Config.MaxRetries = 3

	go func() {
		for _, delay := range []time.Duration{5 * time.Millisecond, 20 * time.Millisecond, 35 * time.Millisecond} {
			time.Sleep(delay)
			orch.Inbox.Publish(jobID, feedback.Value{Text: "try again"})
		}
	}()

	err := orch.RunJob(context.Background(), jobID)
	require.NoError(t, err)

	job, err := st.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "completed", job.Status)
	// 1 initial execution + 3 retries == 4 executions; the 4th draft is
	// whichever text the stage last produced before the retry budget ran out.
	assert.Equal(t, "objective draft 4", job.Metadata.AgentResults[Name(StageObjective)])

	require.Len(t, job.Metadata.FeedbackHistory, 4)
	for _, entry := range job.Metadata.FeedbackHistory[:3] {
		assert.Equal(t, StageObjective, entry.Stage)
		assert.False(t, entry.Skip)
		assert.Equal(t, "try again", entry.Text)
	}
	assert.True(t, job.Metadata.FeedbackHistory[3].Skip, "the 4th wait times out since no further feedback is published")
}

func TestRunJob_MultiSegment_EmitsOnePageCompletedPerSegmentAndOneTerminalCompleted(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		"objective A", "data A", "risk A", "roi A", "final narrative A", `{"decision": "approved", "reason": "A is solid"}`,
		"objective B", "data B", "risk B", "roi B", "final narrative B", `{"decision": "on-hold", "reason": "B needs more review"}`,
	}}
	st := store.NewMemoryStore()
	inbox := feedback.NewInbox()
	ch := progress.NewChannel()
	ret := &fakeRetrieval{records: []retrieval.Record{{Title: "Case A"}}}
	orch := New(st, inbox, ch, llm, ret, testConfig(), nil, zap.NewNop())

	jobID, err := st.CreateJob(context.Background(), store.NewFields{
		Title:           "Multi-page submission",
		ProposalContent: "proposal body",
		Segments:        []store.Segment{{ID: "p1", Title: "Page 1"}, {ID: "p2", Title: "Page 2"}},
	})
	require.NoError(t, err)

	events, unsubscribe := ch.Subscribe(jobID)
	defer unsubscribe()

	require.NoError(t, orch.RunJob(context.Background(), jobID))

	var pageCompleted, completed int
	var lastCompletedData map[string]any
	for {
		select {
		case e := <-events:
			switch e.Kind {
			case progress.KindPageCompleted:
				pageCompleted++
			case progress.KindCompleted:
				completed++
				lastCompletedData = e.Data
			}
		default:
			goto done
		}
	}
done:
	assert.Equal(t, 2, pageCompleted)
	assert.Equal(t, 1, completed)
	require.NotNil(t, lastCompletedData)
	decisions, ok := lastCompletedData["decisions"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, decisions, 2)
	assert.Equal(t, store.DecisionOnHold, lastCompletedData["decision"], "top-level decision reflects the last segment processed")

	job, err := st.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, job.Metadata.SegmentReports, 2)
	assert.Equal(t, "p1", job.Metadata.SegmentReports[0].ID)
	assert.Equal(t, "p2", job.Metadata.SegmentReports[1].ID)
}

func TestRunJob_RetrievalFailureDegradesButJobStillCompletes(t *testing.T) {
	llm := &fakeLLM{responses: scriptedResponses()}
	st := store.NewMemoryStore()
	inbox := feedback.NewInbox()
	ch := progress.NewChannel()
	ret := &fakeRetrieval{err: assertAnError{}}
	orch := New(st, inbox, ch, llm, ret, testConfig(), nil, zap.NewNop())

	jobID, err := st.CreateJob(context.Background(), store.NewFields{
		Title:           "Degraded retrieval",
		ProposalContent: "proposal body",
	})
	require.NoError(t, err)

	require.NoError(t, orch.RunJob(context.Background(), jobID))

	job, err := st.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "completed", job.Status)
}

type assertAnError struct{}

func (assertAnError) Error() string { return "retrieval gateway unavailable" }

func TestStatusFor_MatchesTheCanonicalSequence(t *testing.T) {
	assert.Equal(t, "bp_done", statusFor(StageBPScouter))
	assert.Equal(t, "objective_done", statusFor(StageObjective))
	assert.Equal(t, "data_done", statusFor(StageData))
	assert.Equal(t, "risk_done", statusFor(StageRisk))
	assert.Equal(t, "roi_done", statusFor(StageROI))
	assert.Equal(t, "completed", statusFor(StageFinal))
}

func TestContainsInt(t *testing.T) {
	assert.True(t, containsInt([]int{2, 3, 5}, 3))
	assert.False(t, containsInt([]int{2, 3, 5}, 4))
	assert.False(t, containsInt(nil, 1))
}
