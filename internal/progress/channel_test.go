package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChannel_PublishToSubscriber(t *testing.T) {
	c := NewChannel()
	events, unsubscribe := c.Subscribe(1)
	defer unsubscribe()

	c.Publish(Event{Kind: KindPageProgress, JobID: 1})

	select {
	case e := <-events:
		assert.Equal(t, KindPageProgress, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}
}

func TestChannel_PublishWithNoSubscriber_DoesNotBlock(t *testing.T) {
	c := NewChannel()
	done := make(chan struct{})
	go func() {
		c.Publish(Event{Kind: KindStageStatus, JobID: 42})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no subscribers")
	}
}

func TestChannel_PublishIsScopedPerJob(t *testing.T) {
	c := NewChannel()
	events1, unsub1 := c.Subscribe(1)
	defer unsub1()
	events2, unsub2 := c.Subscribe(2)
	defer unsub2()

	c.Publish(Event{Kind: KindPageProgress, JobID: 1})

	select {
	case e := <-events1:
		assert.Equal(t, int64(1), e.JobID)
	case <-time.After(time.Second):
		t.Fatal("job 1's subscriber never received the event")
	}

	select {
	case <-events2:
		t.Fatal("job 2's subscriber should not have received job 1's event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChannel_SlowSubscriberDropsRatherThanBlocksPublisher(t *testing.T) {
	c := NewChannel()
	_, unsubscribe := c.Subscribe(1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subBufferSize+10; i++ {
			c.Publish(Event{Kind: KindPageProgress, JobID: 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked once the subscriber's buffer filled")
	}
}

func TestChannel_UnsubscribeStopsDelivery(t *testing.T) {
	c := NewChannel()
	events, unsubscribe := c.Subscribe(1)
	unsubscribe()

	c.Publish(Event{Kind: KindPageProgress, JobID: 1})

	select {
	case _, ok := <-events:
		assert.False(t, ok, "channel should be left unbuffered-empty after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}

	assert.False(t, c.HasObserver(1))
}

func TestKind_IsTerminal(t *testing.T) {
	assert.True(t, KindCompleted.IsTerminal())
	assert.True(t, KindError.IsTerminal())
	assert.False(t, KindPageProgress.IsTerminal())
	assert.False(t, KindStageStatus.IsTerminal())
	assert.False(t, KindBPCases.IsTerminal())
	assert.False(t, KindInterrupt.IsTerminal())
	assert.False(t, KindPageCompleted.IsTerminal())
}

func TestChannel_HasObserver(t *testing.T) {
	c := NewChannel()
	assert.False(t, c.HasObserver(1))

	_, unsubscribe := c.Subscribe(1)
	assert.True(t, c.HasObserver(1))

	unsubscribe()
	assert.False(t, c.HasObserver(1))
}
