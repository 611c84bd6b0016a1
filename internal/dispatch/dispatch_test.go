package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() Request {
	return Request{Kind: KindHashFile, FilePath: "/tmp/sample.bin"}
}

func collectEvents(t *testing.T, task *Task) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-task.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatal("timed out collecting task events")
		}
	}
}

func TestRequestValidate(t *testing.T) {
	partition := 1
	offset := uint64(2048)

	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"enumerate ok", Request{Kind: KindEnumerateVolumes, ImagePath: "disk.img"}, false},
		{"enumerate missing image", Request{Kind: KindEnumerateVolumes}, true},
		{"list by partition", Request{Kind: KindListDirectory, ImagePath: "disk.img", PartitionIndex: &partition}, false},
		{"list by offset", Request{Kind: KindListDirectory, ImagePath: "disk.img", OffsetSectors: &offset}, false},
		{"list with both", Request{Kind: KindListDirectory, ImagePath: "disk.img", PartitionIndex: &partition, OffsetSectors: &offset}, true},
		{"list with neither", Request{Kind: KindListDirectory, ImagePath: "disk.img"}, true},
		{"open with neither", Request{Kind: KindOpenFilesystem, ImagePath: "disk.img"}, true},
		{"hash ok", Request{Kind: KindHashFile, FilePath: "a"}, false},
		{"hash missing file", Request{Kind: KindHashFile}, true},
		{"acquire missing output", Request{Kind: KindAcquireDisk, FilePath: "/dev/sda"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubmitRejectsInvalidRequestBeforeExecution(t *testing.T) {
	d := New()
	invoked := false
	exec := ExecutorFunc(func(ctx context.Context, task *Task, req Request) (Result, error) {
		invoked = true
		return Result{}, nil
	})

	partition := 0
	offset := uint64(0)
	req := Request{
		Kind:           KindListDirectory,
		ImagePath:      "disk.img",
		PartitionIndex: &partition,
		OffsetSectors:  &offset,
	}
	_, err := d.Submit("disk", req, exec)
	require.Error(t, err)
	assert.False(t, invoked, "invalid request must fail before the executor runs")
}

func TestEventOrdering(t *testing.T) {
	d := New()
	exec := ExecutorFunc(func(ctx context.Context, task *Task, req Request) (Result, error) {
		task.Progress("step one")
		task.Progress("step two")
		return Result{Kind: req.Kind}, nil
	})

	task, err := d.Submit("hash", validRequest(), exec)
	require.NoError(t, err)

	events := collectEvents(t, task)
	require.Len(t, events, 4)
	assert.Equal(t, EventProgress, events[0].Type)
	assert.Equal(t, "step one", events[0].Message)
	assert.Equal(t, EventProgress, events[1].Type)
	assert.Equal(t, EventResult, events[2].Type)
	assert.Equal(t, KindHashFile, events[2].Result.Kind)
	assert.Equal(t, EventDone, events[3].Type, "the completion signal is always last")
}

func TestFailureOutcome(t *testing.T) {
	d := New()
	exec := ExecutorFunc(func(ctx context.Context, task *Task, req Request) (Result, error) {
		return Result{}, errors.New("collaborator exploded")
	})

	task, err := d.Submit("hash", validRequest(), exec)
	require.NoError(t, err)

	events := collectEvents(t, task)
	require.Len(t, events, 2)
	assert.Equal(t, EventFailure, events[0].Type)
	assert.Contains(t, events[0].Message, "collaborator exploded")
	assert.Equal(t, EventDone, events[1].Type)
}

func TestPanicBecomesFailure(t *testing.T) {
	d := New()
	exec := ExecutorFunc(func(ctx context.Context, task *Task, req Request) (Result, error) {
		panic("boom")
	})

	task, err := d.Submit("hash", validRequest(), exec)
	require.NoError(t, err)

	events := collectEvents(t, task)
	require.Len(t, events, 2)
	assert.Equal(t, EventFailure, events[0].Type)
	assert.Contains(t, events[0].Message, "panicked")
	assert.Equal(t, EventDone, events[1].Type)
}

func TestBusyRejection(t *testing.T) {
	d := New()
	block := make(chan struct{})
	exec := ExecutorFunc(func(ctx context.Context, task *Task, req Request) (Result, error) {
		<-block
		return Result{Kind: req.Kind}, nil
	})

	first, err := d.Submit("hash", validRequest(), exec)
	require.NoError(t, err)

	_, err = d.Submit("hash", validRequest(), exec)
	assert.ErrorIs(t, err, ErrBusy, "a second task on a busy resource is rejected, not queued")

	// A different resource admits a task while the first is running.
	other, err := d.Submit("metadata", validRequest(), ExecutorFunc(
		func(ctx context.Context, task *Task, req Request) (Result, error) {
			return Result{Kind: req.Kind}, nil
		}))
	require.NoError(t, err)
	<-other.Done()

	// The rejection left the first task unaffected.
	close(block)
	events := collectEvents(t, first)
	require.Len(t, events, 2)
	assert.Equal(t, EventResult, events[0].Type)
	assert.Equal(t, EventDone, events[1].Type)

	// The slot is free again once the task finished.
	require.Eventually(t, func() bool { return d.Running("hash") == nil },
		time.Second, 5*time.Millisecond)
	_, err = d.Submit("hash", validRequest(), ExecutorFunc(
		func(ctx context.Context, task *Task, req Request) (Result, error) {
			return Result{}, nil
		}))
	assert.NoError(t, err)
}

func TestStopSuppressesPayloadButDeliversDone(t *testing.T) {
	d := New()
	exec := ExecutorFunc(func(ctx context.Context, task *Task, req Request) (Result, error) {
		<-ctx.Done()
		// The blocking call "returned" after the stop; its result must be
		// discarded.
		return Result{Kind: req.Kind}, nil
	})

	task, err := d.Submit("hash", validRequest(), exec)
	require.NoError(t, err)

	task.Stop()
	events := collectEvents(t, task)
	require.Len(t, events, 1, "no payload after a stop request")
	assert.Equal(t, EventDone, events[0].Type)
}

func TestStopAndWaitAbandonsBlockedWorker(t *testing.T) {
	d := New()
	release := make(chan struct{})
	exec := ExecutorFunc(func(ctx context.Context, task *Task, req Request) (Result, error) {
		<-release // simulates an uninterruptible library call
		return Result{}, nil
	})

	task, err := d.Submit("hash", validRequest(), exec)
	require.NoError(t, err)

	finished := task.StopAndWait(50 * time.Millisecond)
	assert.False(t, finished, "worker blocked past the grace period")

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("done signal missing after abandonment")
	}

	// The resource slot was freed despite the still-blocked worker.
	fresh, err := d.Submit("hash", validRequest(), ExecutorFunc(
		func(ctx context.Context, task *Task, req Request) (Result, error) {
			return Result{Kind: req.Kind}, nil
		}))
	require.NoError(t, err)
	<-fresh.Done()

	close(release)
}

func TestCooperativeStopFinishesWithinGrace(t *testing.T) {
	d := New()
	exec := ExecutorFunc(func(ctx context.Context, task *Task, req Request) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	})

	task, err := d.Submit("hash", validRequest(), exec)
	require.NoError(t, err)

	finished := task.StopAndWait(time.Second)
	assert.True(t, finished, "a cooperative worker finishes within the grace period")
}
