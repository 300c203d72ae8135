// Package batch runs one reconciliation batch at a time on a background
// goroutine and reports its progress as events.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrBusy is returned when a batch is already running.
var ErrBusy = errors.New("a batch is already running")

// Event reports progress of a batch.
type Event struct {
	BatchID string
	Step    string
	Message string
	At      time.Time
	// Done is set on the last event of a batch; Err holds its failure.
	Done bool
	Err  error
}

// Job is the body of a batch. emit publishes progress.
type Job func(ctx context.Context, emit func(step, message string)) error

// Stats summarizes the runner's activity.
type Stats struct {
	Running   bool
	Started   int
	Completed int
	Failed    int
	Rejected  int
}

// Runner guards batches with a single working flag; requests made while a
// batch runs are rejected, not queued.
type Runner struct {
	log zerolog.Logger

	mu      sync.Mutex
	working bool
	stats   Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a runner.
func New(log zerolog.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		log:    log.With().Str("component", "batch").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (r *Runner) acquire() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.working {
		r.stats.Rejected++
		return "", ErrBusy
	}
	r.working = true
	r.stats.Started++
	return uuid.New().String(), nil
}

func (r *Runner) release(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.working = false
	if err != nil {
		r.stats.Failed++
	} else {
		r.stats.Completed++
	}
}

// Run executes job on the calling goroutine.
func (r *Runner) Run(ctx context.Context, job Job) error {
	id, err := r.acquire()
	if err != nil {
		return err
	}
	log := r.log.With().Str("batch", id).Logger()
	log.Debug().Msg("batch started")

	err = job(ctx, func(step, message string) {
		log.Info().Str("step", step).Msg(message)
	})
	r.release(err)
	if err != nil {
		log.Warn().Err(err).Msg("batch failed")
	} else {
		log.Debug().Msg("batch finished")
	}
	return err
}

// Go starts job on a background goroutine. The returned channel carries the
// batch's events and is closed after the final one.
func (r *Runner) Go(job Job) (string, <-chan Event, error) {
	id, err := r.acquire()
	if err != nil {
		return "", nil, err
	}
	events := make(chan Event, 16)
	log := r.log.With().Str("batch", id).Logger()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(events)

		err := job(r.ctx, func(step, message string) {
			log.Debug().Str("step", step).Msg(message)
			select {
			case events <- Event{BatchID: id, Step: step, Message: message, At: time.Now()}:
			case <-r.ctx.Done():
			}
		})
		r.release(err)
		if err != nil {
			log.Warn().Err(err).Msg("batch failed")
		}
		select {
		case events <- Event{BatchID: id, Step: "done", At: time.Now(), Done: true, Err: err}:
		case <-r.ctx.Done():
		}
	}()
	return id, events, nil
}

// Busy reports whether a batch is running.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.working
}

// GetStats returns the runner's counters.
func (r *Runner) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.Running = r.working
	return s
}

// Stop cancels background batches and waits for them.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}
