// Package progress implements the Progress Channel (C5): a per-job,
// fire-and-forget outbound event stream that the orchestrator and stage
// library publish into, and an observer (typically a websocket client)
// drains. Publish never blocks the publisher — a job with no observer
// attached simply loses its events, which is correct for this channel's
// purpose (it reports live progress, the Job Store remains the durable
// record of what happened).
package progress

import (
	"sync"
	"time"
)

// Kind identifies the shape of an Event's Data payload. The orchestrator
// and stage library are the only publishers; observers switch on Kind to
// decide how to render Data.
type Kind string

const (
	KindPageProgress  Kind = "page_progress"
	KindStageStatus   Kind = "stage_status"
	KindBPCases       Kind = "bp_cases"
	KindInterrupt     Kind = "interrupt"
	KindPageCompleted Kind = "page_completed"
	KindCompleted     Kind = "completed"
	KindError         Kind = "error"
)

// IsTerminal reports whether this event kind ends the job's stream —
// no further events will be published for the job once one of these is
// sent, so an observer can close its connection after seeing one.
func (k Kind) IsTerminal() bool {
	return k == KindCompleted || k == KindError
}

// Event is one message on a job's progress stream.
type Event struct {
	Kind      Kind           `json:"kind"`
	JobID     int64          `json:"job_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// subBufferSize bounds how far an observer can lag before Publish starts
// dropping events for it. Small on purpose: this is a live progress feed,
// not a durable log, so a slow observer should see gaps, not backpressure
// applied to the orchestrator.
const subBufferSize = 32

// Channel fans out events per job_id to zero or more subscribers.
type Channel struct {
	mu   sync.Mutex
	subs map[int64]map[int]chan Event
	next int
}

// NewChannel returns an empty Channel.
func NewChannel() *Channel {
	return &Channel{subs: make(map[int64]map[int]chan Event)}
}

// Subscribe registers an observer for jobID and returns a receive-only
// channel of its events plus an unsubscribe function the caller must
// invoke when done (typically in a defer once the websocket loop exits).
func (c *Channel) Subscribe(jobID int64) (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Event, subBufferSize)
	id := c.next
	c.next++

	if c.subs[jobID] == nil {
		c.subs[jobID] = make(map[int]chan Event)
	}
	c.subs[jobID][id] = ch

	unsubscribe := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if subs, ok := c.subs[jobID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(c.subs, jobID)
			}
		}
	}
	return ch, unsubscribe
}

// Publish fans event out to every subscriber of its JobID. Never blocks:
// a subscriber whose buffer is full drops the event rather than stalling
// the publisher, and a job with no subscribers drops it entirely.
func (c *Channel) Publish(event Event) {
	c.mu.Lock()
	subs := c.subs[event.JobID]
	chans := make([]chan Event, 0, len(subs))
	for _, ch := range subs {
		chans = append(chans, ch)
	}
	c.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- event:
		default:
		}
	}
}

// HasObserver reports whether jobID currently has at least one subscriber.
// The stage library uses this to skip building expensive progress payloads
// when nothing is listening.
func (c *Channel) HasObserver(jobID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[jobID]) > 0
}
