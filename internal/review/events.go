package review

import (
	"time"

	"github.com/BaSui01/agentflow/internal/progress"
)

// publish is a nil-safe convenience wrapper: the orchestrator always
// wires a real *progress.Channel, but stage-level unit tests often pass
// a nil one when they don't care about the event stream.
func publish(ch *progress.Channel, jobID int64, kind progress.Kind, data map[string]any) {
	if ch == nil {
		return
	}
	ch.Publish(progress.Event{
		Kind:      kind,
		JobID:     jobID,
		Timestamp: time.Now(),
		Data:      data,
	})
}
