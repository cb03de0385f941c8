package paywatch

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Status of a settlement watch. The transition is one-way: once confirmed a
// watch never returns to pending.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
)

const DefaultInterval = 5 * time.Second

var (
	ErrInvalidSubject = errors.New("settlement subject is missing or invalid")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// CheckFunc performs one idempotent settlement check against the backend and
// reports whether the out-of-band transfer has been reconciled.
type CheckFunc func(ctx context.Context) (bool, error)

// Watcher polls a settlement subject until it confirms or is stopped. Checks
// run on a fixed interval with no backoff and no attempt limit: a payment
// that is still pending is harmless to re-check forever. Each tick fires an
// independent check, so one hung request never delays the next tick.
type Watcher struct {
	subject     string
	check       CheckFunc
	interval    time.Duration
	amount      int64
	needAmount  bool
	onConfirmed func(context.Context)

	mu      sync.Mutex
	status  Status
	lastErr error
	fired   bool
	stopped bool
	started bool

	stopc      chan struct{}
	confirmedc chan struct{}
}

type Option func(*Watcher)

// WithInterval overrides the tick period, mainly for tests.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// WithAmount records the payable amount and requires it to be positive
// before any check is issued. Checkout subjects carry an amount; chat
// payment subjects do not.
func WithAmount(amount int64) Option {
	return func(w *Watcher) {
		w.amount = amount
		w.needAmount = true
	}
}

// WithOnConfirmed registers the one-time side effect run when settlement is
// first observed. It fires exactly once per watcher, no matter how many
// overlapping checks observe a settled state.
func WithOnConfirmed(f func(context.Context)) Option {
	return func(w *Watcher) { w.onConfirmed = f }
}

func New(subject string, check CheckFunc, opts ...Option) *Watcher {
	w := &Watcher{
		subject:    subject,
		check:      check,
		interval:   DefaultInterval,
		status:     StatusPending,
		stopc:      make(chan struct{}),
		confirmedc: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// validate rejects subjects that must never reach the backend: a missing id,
// a missing check, or a non-positive amount where one is required.
func (w *Watcher) validate() error {
	if w.subject == "" || w.check == nil {
		return ErrInvalidSubject
	}
	if w.needAmount && w.amount <= 0 {
		return ErrInvalidSubject
	}
	return nil
}

// Start validates the subject and begins polling. An invalid subject is
// fatal: no request is ever issued and the caller gets ErrInvalidSubject to
// render a dead-end state, not a retry.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.validate(); err != nil {
		return err
	}

	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.started = true
	w.mu.Unlock()

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	// check immediately so an already-settled payment confirms without
	// waiting out the first interval
	go w.runCheck(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			go w.runCheck(ctx)
		case <-w.stopc:
			return
		case <-ctx.Done():
			w.Stop()
			return
		}
	}
}

func (w *Watcher) runCheck(ctx context.Context) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	settled, err := w.check(ctx)

	w.mu.Lock()
	if w.stopped {
		// the watch was torn down while this check was in flight;
		// its result must not touch state anymore
		w.mu.Unlock()
		return
	}
	if err != nil {
		// advisory only: transient failures never abort the wait and
		// are never taken as confirmation
		w.lastErr = err
		w.mu.Unlock()
		return
	}
	w.lastErr = nil
	if !settled || w.status == StatusConfirmed {
		w.mu.Unlock()
		return
	}

	w.status = StatusConfirmed
	fire := !w.fired
	w.fired = true
	if !w.stopped {
		w.stopped = true
		close(w.stopc)
	}
	close(w.confirmedc)
	w.mu.Unlock()

	if fire && w.onConfirmed != nil {
		w.onConfirmed(ctx)
	}
}

// Stop cancels polling. It is safe to call from any state and any number of
// times, including from teardown paths racing an in-flight check.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stopc)
}

func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// LastError returns the most recent check failure, if the latest completed
// check failed. It is advisory text for the UI, never a terminal state.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Confirmed is closed once settlement has been observed.
func (w *Watcher) Confirmed() <-chan struct{} { return w.confirmedc }
