package render

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Progress is a point-in-time view of a job.
type Progress struct {
	JobID string
	State State
	// Phase is the user-facing label. It reads "Packing" while the muxer
	// writes the container.
	Phase       string
	Percent     int
	Frame       int
	TotalFrames int
}

// Job is one render in flight.
type Job struct {
	id        string
	cancel    context.CancelFunc
	cancelled atomic.Bool
	observer  func(Progress)

	mu       sync.Mutex
	progress Progress
	result   *Result
	err      error
	done     chan struct{}
}

func newJob(cancel context.CancelFunc, observer func(Progress)) *Job {
	id := uuid.NewString()
	return &Job{
		id:       id,
		cancel:   cancel,
		observer: observer,
		progress: Progress{JobID: id, State: Idle},
		done:     make(chan struct{}),
	}
}

func (j *Job) ID() string { return j.id }

// Cancel asks the job to stop. The frame loop checks the request before
// every frame, so a frame already being encoded completes first.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
	j.cancel()
}

// Cancelled reports whether Cancel was called.
func (j *Job) Cancelled() bool { return j.cancelled.Load() }

// Progress returns the latest progress.
func (j *Job) Progress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job ends.
func (j *Job) Wait() (*Result, error) {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

func (j *Job) stopped(ctx context.Context) bool {
	if ctx.Err() != nil {
		j.cancelled.Store(true)
	}
	return j.cancelled.Load()
}

// classify wraps err with marker, unless the failure was caused by a stop
// request, in which case it is reported as a cancellation.
func (j *Job) classify(ctx context.Context, marker error, state State, op string, err error) error {
	if j.stopped(ctx) || errors.Is(err, context.Canceled) {
		return Wrap(ErrCancelled, state, op, err)
	}
	return Wrap(marker, state, op, err)
}

// update moves the job forward. Percent never decreases within a job.
func (j *Job) update(state State, phase string, percent, frame, total int) {
	if phase == "" {
		phase = state.Label()
	}
	j.mu.Lock()
	if percent < j.progress.Percent {
		percent = j.progress.Percent
	}
	changed := j.progress.State != state || j.progress.Phase != phase ||
		j.progress.Percent != percent || j.progress.Frame != frame || j.progress.TotalFrames != total
	j.progress.State = state
	j.progress.Phase = phase
	j.progress.Percent = percent
	j.progress.Frame = frame
	j.progress.TotalFrames = total
	p := j.progress
	j.mu.Unlock()

	if changed && j.observer != nil {
		j.observer(p)
	}
}

// settle stores the outcome and reports the terminal state. The caller
// closes done afterwards.
func (j *Job) settle(res *Result, err error) {
	state := TerminalState(err)
	j.mu.Lock()
	j.result = res
	j.err = err
	j.mu.Unlock()
	p := j.Progress()
	j.update(state, "", p.Percent, p.Frame, p.TotalFrames)
}
