package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Ashfaaq98/porsha/internal/models"
)

// EventType discriminates the signals a task emits.
type EventType int

// Event types, in the order a task may emit them: any number of progress
// events, at most one result or failure, then exactly one done event.
const (
	EventProgress EventType = iota
	EventResult
	EventFailure
	EventDone
)

// OpenResult reports the outcome of a filesystem open step.
type OpenResult struct {
	Success bool
	Label   string
}

// Result is the kind-specific success payload of a task. Only the fields
// matching the request's kind are populated.
type Result struct {
	Kind    Kind
	Volumes []models.VolumeDescriptor
	Open    *OpenResult
	Entries []models.DirectoryEntry
	Hashes  *models.FileHashes
	Fields  []models.MetadataField
	Capture *models.CaptureReport
	Image   *models.AcquiredImage
}

// Event is one signal from a running task.
type Event struct {
	Type    EventType
	Message string // progress text or failure description
	Err     error  // set for EventFailure
	Result  Result // set for EventResult
}

const eventBuffer = 64

// Task is one in-flight operation. Events are delivered in emission order on
// a single channel; the terminal payload (if any) is always followed by a
// done event, after which the channel closes.
type Task struct {
	ID       string
	Resource string
	Request  Request

	ctx    context.Context
	cancel context.CancelFunc

	stopped atomic.Bool
	started time.Time

	mu     sync.Mutex
	closed bool
	events chan Event
	done   chan struct{}

	// release frees the dispatcher's resource slot; idempotent.
	release func()
}

func newTask(resource string, req Request) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{
		ID:       uuid.NewString(),
		Resource: resource,
		Request:  req,
		ctx:      ctx,
		cancel:   cancel,
		started:  time.Now(),
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
		release:  func() {},
	}
}

// Events returns the task's signal channel. It closes after the done event.
func (t *Task) Events() <-chan Event { return t.events }

// Done closes once the task has delivered its done event or was abandoned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Context is cancelled when a stop is requested.
func (t *Task) Context() context.Context { return t.ctx }

// Stopped reports whether a cooperative stop has been requested. Executors
// should check it between logical steps.
func (t *Task) Stopped() bool { return t.stopped.Load() }

// Progress emits an advisory progress message. Progress never affects control
// flow and is dropped rather than blocking a slow consumer.
func (t *Task) Progress(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.events <- Event{Type: EventProgress, Message: message}:
	default:
	}
}

// Stop requests a cooperative stop. Any result or failure still in flight is
// discarded; the done event is still delivered so caller cleanup runs.
func (t *Task) Stop() {
	t.stopped.Store(true)
	t.cancel()
}

// StopAndWait stops the task and waits up to grace for the worker to finish.
// If the worker is still blocked when the grace period expires the task is
// abandoned: the done event is delivered immediately, the resource slot is
// freed, and the worker's eventual emissions are dropped. Returns true if the
// worker finished within the grace period.
func (t *Task) StopAndWait(grace time.Duration) bool {
	t.Stop()
	select {
	case <-t.done:
		return true
	case <-time.After(grace):
		// Abandon the worker. It may leak resources held by the blocked
		// library call; callers accept this as a last resort.
		t.finish(nil, nil, true)
		t.release()
		return false
	}
}

// finish delivers the terminal outcome and the done event exactly once.
// Payload events are suppressed after a stop request; the done event is
// always sent. Queued progress is discarded if it would block the terminal
// sequence.
func (t *Task) finish(res *Result, err error, cancelled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true

	if !cancelled && !t.stopped.Load() {
		if err != nil {
			t.push(Event{Type: EventFailure, Message: err.Error(), Err: err})
		} else if res != nil {
			t.push(Event{Type: EventResult, Result: *res})
		}
	}
	t.push(Event{Type: EventDone})
	close(t.events)
	close(t.done)
}

// push enqueues ev, evicting buffered progress if the channel is full. Must
// be called with t.mu held and only from finish.
func (t *Task) push(ev Event) {
	for {
		select {
		case t.events <- ev:
			return
		default:
			// Make room by discarding the oldest buffered event.
			select {
			case <-t.events:
			default:
			}
		}
	}
}
