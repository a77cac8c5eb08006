package feedback

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMirroredInbox(t *testing.T) *MirroredInbox {
	t.Helper()
	mr := miniredis.RunT(t)

	m, err := NewMirroredInbox(context.Background(), NewInbox(), mr.Addr(), "", 0, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	return m
}

func TestMirroredInbox_PublishStillSatisfiesAwait(t *testing.T) {
	m := newTestMirroredInbox(t)

	m.Publish(1, Value{Text: "looks good"})

	v := m.Await(context.Background(), 1, time.Second)
	assert.Equal(t, "looks good", v.Text)
	assert.False(t, v.Skip)
}

func TestMirroredInbox_PublishIsObservableOverRedis(t *testing.T) {
	m := newTestMirroredInbox(t)

	sub := m.Subscribe(context.Background(), 7)
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	received := make(chan string, 1)
	go func() {
		msg, err := sub.ReceiveMessage(context.Background())
		if err != nil {
			return
		}
		received <- msg.Payload
	}()

	time.Sleep(10 * time.Millisecond)
	m.Publish(7, Value{Text: "needs more budget detail"})

	select {
	case payload := <-received:
		var v mirroredValue
		require.NoError(t, json.Unmarshal([]byte(payload), &v))
		assert.Equal(t, int64(7), v.JobID)
		assert.Equal(t, "needs more budget detail", v.Text)
	case <-time.After(time.Second):
		t.Fatal("mirrored publish was never observed over redis")
	}
}

func TestMirroredInbox_DifferentJobsUseDifferentChannels(t *testing.T) {
	m := newTestMirroredInbox(t)
	assert.NotEqual(t, m.channel(1), m.channel(2))
}
