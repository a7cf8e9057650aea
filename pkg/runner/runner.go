// Package runner executes batch jobs in the background and records their
// outcome in the batch store.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lemonberrylabs/deskcalc/pkg/batch"
	"github.com/lemonberrylabs/deskcalc/pkg/calc"
	"github.com/lemonberrylabs/deskcalc/pkg/store"
)

// job tracks one running batch.
type job struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Runner starts batch jobs and allows them to be cancelled. Each batch runs
// on its own goroutine against a shared Calculator.
type Runner struct {
	store  *store.Store
	logger *slog.Logger

	lenient       *calc.Calculator
	strict        *calc.Calculator
	strictDefault bool

	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithStrictDefault sets the tokenization mode used when a caller does not
// choose one.
func WithStrictDefault(strict bool) Option {
	return func(r *Runner) {
		r.strictDefault = strict
	}
}

// New creates a Runner backed by s. A nil logger discards output.
func New(s *store.Store, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Runner{
		store:   s,
		logger:  logger,
		lenient: calc.New(calc.WithLogger(logger)),
		strict:  calc.New(calc.WithLogger(logger), calc.WithStrictTokens(true)),
		jobs:    make(map[string]*job),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StrictDefault reports the tokenization mode used when none is requested.
func (r *Runner) StrictDefault() bool {
	return r.strictDefault
}

// Store returns the batch store the runner writes to.
func (r *Runner) Store() *store.Store {
	return r.store
}

// Engine returns the calculator used for strict or lenient evaluation.
func (r *Runner) Engine(strict bool) *calc.Calculator {
	if strict {
		return r.strict
	}
	return r.lenient
}

// Submit records a new batch and starts evaluating it asynchronously. The
// returned batch is in the RUNNING state.
func (r *Runner) Submit(displayName string, entries []batch.Entry, strict bool) *store.Batch {
	return r.submit(displayName, entries, strict, r.Engine(strict))
}

func (r *Runner) submit(displayName string, entries []batch.Entry, strict bool, engine calc.Engine) *store.Batch {
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{ctx: ctx, cancel: cancel, done: make(chan struct{})}

	// The job is registered before the batch becomes visible to Cancel.
	r.mu.Lock()
	b := r.store.CreateBatch(displayName, entries, strict)
	r.jobs[b.ID] = j
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(j, b.ID, entries, engine)

	r.logger.Info("batch submitted", "batch", b.Name, "expressions", len(entries), "strict", strict)
	return b
}

func (r *Runner) run(j *job, id string, entries []batch.Entry, engine calc.Engine) {
	defer r.wg.Done()
	defer close(j.done)
	defer func() {
		r.mu.Lock()
		delete(r.jobs, id)
		r.mu.Unlock()
		j.cancel()
	}()

	report, err := batch.Run(j.ctx, engine, entries)
	switch {
	case errors.Is(err, context.Canceled):
		_ = r.store.CancelBatch(id, report)
		r.logger.Info("batch cancelled", "batch", id, "evaluated", len(report.Outcomes))
	case err != nil:
		_ = r.store.FailBatch(id, err)
		r.logger.Error("batch failed", "batch", id, "error", err)
	default:
		_ = r.store.CompleteBatch(id, report)
		r.logger.Info("batch finished", "batch", id, "failedExpectations", report.Failed)
	}
}

// Cancel stops a running batch and waits for it to settle. It returns an error
// wrapping store.ErrNotFound or store.ErrNotActive when the batch is unknown
// or already finished.
func (r *Runner) Cancel(id string) (*store.Batch, error) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	r.mu.Unlock()

	if !ok {
		if err := r.store.CancelBatch(id, nil); err != nil {
			return nil, err
		}
		return r.store.GetBatch(id)
	}

	j.cancel()
	<-j.done

	b, err := r.store.GetBatch(id)
	if err != nil {
		return nil, err
	}
	if b.State != store.BatchCancelled {
		// Finished before the cancellation was observed.
		return nil, fmt.Errorf("batch '%s' %w (state: %s)", id, store.ErrNotActive, b.State)
	}
	return b, nil
}

// Delete cancels the batch if it is still running and removes it.
func (r *Runner) Delete(id string) error {
	r.mu.Lock()
	j, ok := r.jobs[id]
	r.mu.Unlock()

	if ok {
		j.cancel()
		<-j.done
	}
	return r.store.DeleteBatch(id)
}

// Wait blocks until every submitted batch has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels all running batches and waits for them.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	for _, j := range r.jobs {
		j.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}
