package progress

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// ObserverHandler upgrades an HTTP request to a websocket and streams one
// job's progress events to it until a terminal event, the client
// disconnects, or the request context is canceled.
type ObserverHandler struct {
	channel *Channel
	logger  *zap.Logger
}

// NewObserverHandler wires an ObserverHandler to channel.
func NewObserverHandler(channel *Channel, logger *zap.Logger) *ObserverHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObserverHandler{
		channel: channel,
		logger:  logger.With(zap.String("component", "progress_observer")),
	}
}

// Serve accepts the websocket upgrade and streams jobID's events as JSON
// text frames. It blocks until the stream ends.
func (h *ObserverHandler) Serve(w http.ResponseWriter, r *http.Request, jobID int64) error {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusInternalError, "observer closed")

	events, unsubscribe := h.channel.Subscribe(jobID)
	defer unsubscribe()

	// CloseRead drains incoming frames and cancels ctx once the client
	// closes the connection, which r.Context() alone never reports after
	// the upgrade.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "request canceled")
			return nil
		case event, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "channel closed")
				return nil
			}
			if err := h.write(ctx, conn, event); err != nil {
				h.logger.Warn("observer write failed", zap.Int64("job_id", jobID), zap.Error(err))
				return err
			}
			if event.Kind.IsTerminal() {
				conn.Close(websocket.StatusNormalClosure, "job finished")
				return nil
			}
		}
	}
}

func (h *ObserverHandler) write(ctx context.Context, conn *websocket.Conn, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
