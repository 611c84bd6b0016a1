// Package dispatch runs named, parameterized operations against forensic
// collaborators on background goroutines. Each logical resource admits at
// most one task at a time; a task reports progress, exactly one terminal
// outcome, and a final completion signal, and can be stopped cooperatively
// with a bounded grace period.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Ashfaaq98/porsha/internal/models"
	"github.com/Ashfaaq98/porsha/internal/utils"
)

// ErrBusy is returned when a task is requested while another is running on
// the same resource. Requests are rejected, never queued.
var ErrBusy = errors.New("a task is already running on this resource")

// Executor performs the blocking body of a task. Implementations should call
// t.Progress for advisory updates and check t.Stopped or ctx between logical
// steps. Errors and panics are converted to the failure outcome at the task
// boundary and never propagate.
type Executor interface {
	Execute(ctx context.Context, t *Task, req Request) (Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, t *Task, req Request) (Result, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, t *Task, req Request) (Result, error) {
	return f(ctx, t, req)
}

// Recorder receives the terminal record of every dispatched task.
type Recorder interface {
	Record(rec models.TaskRecord)
}

// Dispatcher admits and runs tasks, one per resource.
type Dispatcher struct {
	mu       sync.Mutex
	running  map[string]*Task
	recorder Recorder
}

// New creates an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{running: make(map[string]*Task)}
}

// SetRecorder attaches a journal recorder for terminal task outcomes.
func (d *Dispatcher) SetRecorder(r Recorder) {
	d.mu.Lock()
	d.recorder = r
	d.mu.Unlock()
}

// Running returns the in-flight task for resource, or nil.
func (d *Dispatcher) Running(resource string) *Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running[resource]
}

// Submit validates req and starts it on a worker goroutine. A request whose
// parameters violate the kind's precondition fails here, before any
// collaborator is invoked. A request against a busy resource returns ErrBusy.
func (d *Dispatcher) Submit(resource string, req Request, exec Executor) (*Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	if _, ok := d.running[resource]; ok {
		d.mu.Unlock()
		return nil, ErrBusy
	}
	t := newTask(resource, req)
	t.release = func() { d.release(t) }
	d.running[resource] = t
	d.mu.Unlock()

	utils.LogInfo("task submitted", map[string]string{
		"task": t.ID, "kind": req.Kind.String(), "resource": resource,
	})

	go d.run(t, exec)
	return t, nil
}

func (d *Dispatcher) run(t *Task, exec Executor) {
	res, err := d.execute(t, exec)

	switch {
	case t.Stopped():
		t.finish(nil, nil, true)
		d.record(t, models.OutcomeCancelled, "stopped by caller")
	case err != nil:
		utils.LogError("task failed", map[string]string{
			"task": t.ID, "kind": t.Request.Kind.String(), "error": err.Error(),
		})
		t.finish(nil, err, false)
		d.record(t, models.OutcomeFailure, err.Error())
	default:
		t.finish(&res, nil, false)
		d.record(t, models.OutcomeSuccess, "")
	}

	d.release(t)
}

// execute runs the task body with a panic barrier, mirroring the rule that no
// collaborator fault may escape the worker.
func (d *Dispatcher) execute(t *Task, exec Executor) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("task %s panicked: %v", t.Request.Kind, r)
		}
	}()
	return exec.Execute(t.ctx, t, t.Request)
}

func (d *Dispatcher) release(t *Task) {
	d.mu.Lock()
	if d.running[t.Resource] == t {
		delete(d.running, t.Resource)
	}
	d.mu.Unlock()
}

func (d *Dispatcher) record(t *Task, outcome, detail string) {
	d.mu.Lock()
	rec := d.recorder
	d.mu.Unlock()
	if rec == nil {
		return
	}
	rec.Record(models.TaskRecord{
		ID:         t.ID,
		Kind:       t.Request.Kind.String(),
		Resource:   t.Resource,
		Subject:    t.Request.Subject(),
		Outcome:    outcome,
		Detail:     detail,
		StartedAt:  t.started.Unix(),
		FinishedAt: time.Now().Unix(),
	})
}
