package job

import (
	"sync"

	"github.com/o4o-platform/ai-gateway/internal/domain/model"
)

// EventType identifies a lifecycle event on a job's stream.
type EventType string

const (
	// EventProgress reports a progress milestone within the current attempt.
	EventProgress EventType = "progress"
	// EventCompleted is the terminal success event.
	EventCompleted EventType = "completed"
	// EventFailed is the terminal failure event.
	EventFailed EventType = "failed"
)

// Terminal reports whether the event ends the job's stream.
func (t EventType) Terminal() bool {
	return t == EventCompleted || t == EventFailed
}

// Event is one frame on a job's lifecycle stream.
type Event struct {
	JobID    string
	Type     EventType
	Progress int
	Result   *model.GenerationResult
	Error    *model.JobError
}

// eventChanBuffer absorbs bursts of milestone events so the worker's
// non-blocking publish rarely drops frames for a healthy consumer.
const eventChanBuffer = 8

// EventBus is an in-process publish-subscribe channel keyed by job ID.
// Workers publish lifecycle events; stream handlers subscribe per connection.
// It is constructed explicitly and injected, never a package singleton, so
// tests can run isolated buses.
type EventBus struct {
	mu     sync.Mutex
	subs   map[string]map[chan Event]struct{}
	closed bool
}

// NewEventBus constructs an empty event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers interest in one job's events. The returned cancel
// function is idempotent and must be invoked on stream teardown; it closes
// the channel so a ranging consumer terminates.
func (b *EventBus) Subscribe(jobID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, eventChanBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[chan Event]struct{})
	}
	b.subs[jobID][ch] = struct{}{}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subscribers := b.subs[jobID]
		if subscribers == nil {
			return
		}
		if _, ok := subscribers[ch]; !ok {
			return
		}
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subs, jobID)
		}
	}

	return ch, cancel
}

// Publish delivers an event to all subscribers of its job. Sends are
// non-blocking: a consumer that cannot keep up loses frames rather than
// stalling the publishing worker.
func (b *EventBus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[ev.JobID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports the number of open subscriptions for a job.
func (b *EventBus) SubscriberCount(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[jobID])
}

// Close tears down all subscriptions. Subsequent subscribes receive a closed
// channel and publishes are dropped.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for jobID, subscribers := range b.subs {
		for ch := range subscribers {
			close(ch)
		}
		delete(b.subs, jobID)
	}
}
