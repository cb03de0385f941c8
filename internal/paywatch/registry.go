package paywatch

import (
	"context"
	"sync"
	"time"
)

// Registry deduplicates watchers per subject and ties their lifetime to
// subscriber connections. Every page or chat message streaming a subject's
// settlement subscribes; when the last subscriber detaches, polling for that
// subject stops. A confirmed watcher stays available so late subscribers see
// the terminal state without a new poll starting.
type Registry struct {
	interval time.Duration

	mu      sync.Mutex
	entries map[string]*registryEntry

	ctx    context.Context
	cancel context.CancelFunc
}

type registryEntry struct {
	watcher *Watcher
	refs    int
}

func NewRegistry(interval time.Duration) *Registry {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		interval: interval,
		entries:  make(map[string]*registryEntry),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Watch subscribes to a subject, starting a watcher if none is polling it
// yet. An invalid subject or amount is rejected even when a valid watcher for
// the same subject already exists; joining a watch never bypasses validation.
// The returned release func detaches the subscriber and must be called
// exactly once per Watch; it is a no-op on repeat calls.
func (r *Registry) Watch(subject string, check CheckFunc, opts ...Option) (*Watcher, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := New(subject, check, append(opts, WithInterval(r.interval))...)
	if err := w.validate(); err != nil {
		return nil, nil, err
	}

	if e, ok := r.entries[subject]; ok {
		e.refs++
		return e.watcher, r.releaseFunc(subject), nil
	}

	if err := w.Start(r.ctx); err != nil {
		return nil, nil, err
	}
	r.entries[subject] = &registryEntry{watcher: w, refs: 1}
	return w, r.releaseFunc(subject), nil
}

func (r *Registry) releaseFunc(subject string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()

			e, ok := r.entries[subject]
			if !ok {
				return
			}
			e.refs--
			if e.refs > 0 {
				return
			}
			e.watcher.Stop()
			delete(r.entries, subject)
		})
	}
}

// Subjects reports how many subjects are currently being watched.
func (r *Registry) Subjects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops every watcher. New Watch calls after Close start watchers on a
// cancelled context, which stop on their first tick.
func (r *Registry) Close() {
	r.cancel()
	r.mu.Lock()
	defer r.mu.Unlock()
	for subject, e := range r.entries {
		e.watcher.Stop()
		delete(r.entries, subject)
	}
}
