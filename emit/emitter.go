// ABOUTME: Multi-consumer event emitter for pipeline events, enabling real-time observation of a run.
// ABOUTME: Provides Subscribe/Emit/Unsubscribe with a one-shot pre-consumer buffer for early events.
package emit

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// newEventID generates a sortable, time-ordered event identifier.
func newEventID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// Kind discriminates the type of pipeline event.
type Kind string

const (
	KindPipelineStarted       Kind = "pipeline_started"
	KindPipelineCompleted     Kind = "pipeline_completed"
	KindPipelineFailed        Kind = "pipeline_failed"
	KindStageStarted          Kind = "stage_started"
	KindStageCompleted        Kind = "stage_completed"
	KindStageFailed           Kind = "stage_failed"
	KindStageRetrying         Kind = "stage_retrying"
	KindParallelStarted       Kind = "parallel_started"
	KindParallelBranchStarted Kind = "parallel_branch_started"
	KindParallelBranchDone    Kind = "parallel_branch_completed"
	KindParallelCompleted     Kind = "parallel_completed"
	KindInterviewStarted      Kind = "interview_started"
	KindInterviewCompleted    Kind = "interview_completed"
	KindInterviewTimeout      Kind = "interview_timeout"
	KindCheckpointSaved       Kind = "checkpoint_saved"
	KindPipelineRestarted     Kind = "pipeline_restarted"
	KindToolHookPre           Kind = "tool_hook_pre"
	KindToolHookPost          Kind = "tool_hook_post"
)

// Event is a single typed pipeline event. ID is assigned by Emit if left
// empty, so callers normally leave it unset.
type Event struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	Timestamp  time.Time      `json:"timestamp"`
	PipelineID string         `json:"pipelineId"`
	Data       map[string]any `json:"data,omitempty"`
}

// subscriber pairs a delivery channel with an unbounded backlog queue and a
// pump goroutine draining the queue into the channel. Emit never blocks on a
// slow consumer and never drops an event: a full channel just means the
// backlog grows until the consumer catches up.
type subscriber struct {
	out    chan Event
	mu     sync.Mutex
	queue  []Event
	notify chan struct{}
	done   chan struct{}
}

func newSubscriber() *subscriber {
	s := &subscriber{
		out:    make(chan Event, 256),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

// pump drains s.queue into s.out, blocking on the channel send (not on the
// queue) when the consumer is slow, so producers calling push never wait.
// pump is s.out's only writer, so it alone closes s.out on shutdown,
// avoiding a send-after-close race with stop() running concurrently. After
// stop(), events still queued are handed over while the channel has free
// buffer space; only events that would have to wait for the consumer are
// discarded.
func (s *subscriber) pump() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
			case <-s.done:
				close(s.out)
				return
			}
			s.mu.Lock()
		}
		event := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- event:
			continue
		default:
		}
		select {
		case s.out <- event:
		case <-s.done:
			close(s.out)
			return
		}
	}
}

// push enqueues event for delivery without blocking the caller.
func (s *subscriber) push(event Event) {
	s.mu.Lock()
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// stop halts the pump goroutine, which closes s.out once it observes the
// shutdown signal.
func (s *subscriber) stop() {
	close(s.done)
}

// Emitter delivers pipeline events to zero or more subscribed channels.
// Events emitted before any consumer has subscribed are held in a one-shot
// pre-consumer buffer: the NEXT subscriber to register receives them (in
// order) ahead of anything emitted afterward; later subscribers start empty.
type Emitter struct {
	mu          sync.RWMutex
	subscribers []*subscriber
	pending     []Event
	bufferSpent bool
	closed      bool
}

// New creates a new Emitter.
func New() *Emitter {
	return &Emitter{
		subscribers: make([]*subscriber, 0),
	}
}

// Subscribe registers a new subscriber channel and returns it. If events were
// emitted before any consumer existed, the first subscriber to call Subscribe
// receives them, replayed in emit order, before any subsequently emitted event.
func (e *Emitter) Subscribe() <-chan Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := newSubscriber()

	if !e.bufferSpent && len(e.pending) > 0 {
		for _, ev := range e.pending {
			sub.push(ev)
		}
		e.pending = nil
	}
	e.bufferSpent = true

	e.subscribers = append(e.subscribers, sub)
	return sub.out
}

// Unsubscribe removes a subscriber channel and closes it.
func (e *Emitter) Unsubscribe(ch <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, sub := range e.subscribers {
		if (<-chan Event)(sub.out) == ch {
			sub.stop()
			e.subscribers = append(e.subscribers[:i], e.subscribers[i+1:]...)
			return
		}
	}
}

// Emit delivers event to every registered consumer. Delivery never drops an
// event and never blocks the producer on a slow consumer: each subscriber
// has its own unbounded backlog queue, drained into its channel by a pump
// goroutine. If no consumer has ever registered yet, the event is held in
// the pre-consumer buffer for the next one to register.
func (e *Emitter) Emit(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	if event.ID == "" {
		event.ID = newEventID()
	}

	if len(e.subscribers) == 0 && !e.bufferSpent {
		e.pending = append(e.pending, event)
		return
	}

	for _, sub := range e.subscribers {
		sub.push(event)
	}
}

// Close closes the emitter and all subscriber channels, releasing any
// consumers blocked waiting for the next event. Each subscriber's pump
// goroutine closes its own channel once it observes the stop signal.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true

	for _, sub := range e.subscribers {
		sub.stop()
	}
	e.subscribers = nil
}
