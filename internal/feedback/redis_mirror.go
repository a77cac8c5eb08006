package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MirroredInbox wraps an Inbox and republishes every Publish call to a
// Redis pub/sub channel, so a second process (an audit tail, a second API
// replica) can observe HITL responses as they land without holding the
// primary Await rendezvous itself. The in-process Inbox remains the only
// thing the orchestrator's Await ever blocks on — the mirror is strictly
// an observer, never a dependency of the wait path.
type MirroredInbox struct {
	*Inbox
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// mirroredValue is the JSON shape published to Redis. It carries jobID
// explicitly since subscribers fan in from per-job channels filtered by
// pattern, not from a single shared topic.
type mirroredValue struct {
	JobID       int64     `json:"job_id"`
	Text        string    `json:"text"`
	Skip        bool      `json:"skip"`
	PublishedAt time.Time `json:"published_at"`
}

// NewMirroredInbox connects to addr and wraps inbox. It pings with a 5s
// timeout before returning, matching the fail-fast-at-startup convention
// of the Redis job cache in internal/store.
func NewMirroredInbox(ctx context.Context, inbox *Inbox, addr, password string, db int, logger *zap.Logger) (*MirroredInbox, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &MirroredInbox{
		Inbox:     inbox,
		client:    client,
		keyPrefix: "proposalreview:feedback:",
		logger:    logger.With(zap.String("component", "feedback_redis_mirror")),
	}, nil
}

// Close releases the underlying Redis client.
func (m *MirroredInbox) Close() error {
	return m.client.Close()
}

func (m *MirroredInbox) channel(jobID int64) string {
	return fmt.Sprintf("%s%d", m.keyPrefix, jobID)
}

// Publish stores value in the wrapped Inbox exactly as Inbox.Publish does,
// then best-effort republishes it to Redis. A Redis outage never blocks or
// fails the publish — Await still unblocks immediately from the in-process
// slot regardless of whether any observer is subscribed.
func (m *MirroredInbox) Publish(jobID int64, value Value) {
	m.Inbox.Publish(jobID, value)

	payload, err := json.Marshal(mirroredValue{
		JobID:       jobID,
		Text:        value.Text,
		Skip:        value.Skip,
		PublishedAt: time.Now(),
	})
	if err != nil {
		m.logger.Warn("failed to marshal mirrored feedback", zap.Int64("job_id", jobID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.client.Publish(ctx, m.channel(jobID), payload).Err(); err != nil {
		m.logger.Warn("failed to mirror feedback to redis", zap.Int64("job_id", jobID), zap.Error(err))
	}
}

// Subscribe returns a Redis subscription to jobID's feedback channel, for
// an out-of-process observer. The caller owns the returned *redis.PubSub
// and must Close it.
func (m *MirroredInbox) Subscribe(ctx context.Context, jobID int64) *redis.PubSub {
	return m.client.Subscribe(ctx, m.channel(jobID))
}
