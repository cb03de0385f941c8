package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Hieu4tuoii/smartmall-storefront/internal/auth"
	"golang.org/x/sync/singleflight"
)

var (
	ErrLineBusy        = errors.New("cart line update already in flight")
	ErrInvalidLineRef  = errors.New("line reference is required")
	ErrInvalidQuantity = errors.New("current quantity must be positive")
)

// Backend is the slice of the order backend the mutator needs. The backend
// owns all cart state; the mutator only sends relative deltas and refetches.
type Backend interface {
	UpdateCartQuantity(ctx context.Context, creds auth.TokenProvider, d Delta) error
	GetCart(ctx context.Context, creds auth.TokenProvider) (*Snapshot, error)
	ClearCart(ctx context.Context, creds auth.TokenProvider) error
}

// Mutator applies relative quantity changes to single cart lines and
// resynchronizes the full snapshot after every mutation. At most one
// mutation per line may be in flight; distinct lines mutate concurrently.
type Mutator struct {
	backend Backend
	cache   SnapshotCache
	sfg     singleflight.Group

	mu   sync.Mutex
	busy map[busyKey]struct{}
}

type busyKey struct {
	user string
	ref  LineRef
}

func NewMutator(backend Backend, cache SnapshotCache) *Mutator {
	if cache == nil {
		cache = NewMemoryCache(5 * time.Minute)
	}
	return &Mutator{
		backend: backend,
		cache:   cache,
		busy:    make(map[busyKey]struct{}),
	}
}

func (m *Mutator) Increment(ctx context.Context, creds auth.TokenProvider, user string, ref LineRef) (*Snapshot, error) {
	return m.apply(ctx, creds, user, Delta{LineRef: ref, Delta: +1})
}

func (m *Mutator) Decrement(ctx context.Context, creds auth.TokenProvider, user string, ref LineRef) (*Snapshot, error) {
	return m.apply(ctx, creds, user, Delta{LineRef: ref, Delta: -1})
}

// Remove deletes a line by sending the negation of the caller's last-known
// quantity. The quantity is supplied, not inferred; if it is stale the
// backend clamps at zero and the refetched snapshot is authoritative anyway.
func (m *Mutator) Remove(ctx context.Context, creds auth.TokenProvider, user string, ref LineRef, currentQty int) (*Snapshot, error) {
	if currentQty <= 0 {
		return nil, ErrInvalidQuantity
	}
	return m.apply(ctx, creds, user, Delta{LineRef: ref, Delta: -currentQty})
}

func (m *Mutator) apply(ctx context.Context, creds auth.TokenProvider, user string, d Delta) (*Snapshot, error) {
	if d.LineRef == "" {
		return nil, ErrInvalidLineRef
	}
	if !m.markBusy(user, d.LineRef) {
		return nil, ErrLineBusy
	}
	defer m.clearBusy(user, d.LineRef)

	if err := m.backend.UpdateCartQuantity(ctx, creds, d); err != nil {
		// last-known-good snapshot stays cached, the caller may retry
		log.Printf("cart update failed user=%s line=%s delta=%d: %v", user, d.LineRef, d.Delta, err)
		return nil, fmt.Errorf("update cart line: %w", err)
	}

	m.invalidate(user)
	return m.resync(ctx, creds, user)
}

// Get returns the cart snapshot, read through the cache. Concurrent misses
// for the same user are collapsed into one backend call.
func (m *Mutator) Get(ctx context.Context, creds auth.TokenProvider, user string) (*Snapshot, error) {
	v, err, _ := m.sfg.Do("get:"+user, func() (interface{}, error) {
		snap, err := m.cache.Get(ctx, user)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("snapshot cache get error: %v", err)
		}
		return m.fetchAndCache(ctx, creds, user)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Clear empties the cart on the backend and drops the cached snapshot. It is
// the one-time side effect run after payment settlement, and is safe to call
// on an already-empty cart.
func (m *Mutator) Clear(ctx context.Context, creds auth.TokenProvider, user string) error {
	if err := m.backend.ClearCart(ctx, creds); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	m.invalidate(user)
	return nil
}

// resync always hits the backend: after a mutation the visible state must be
// exactly the payload of the follow-up fetch, never a locally patched value.
func (m *Mutator) resync(ctx context.Context, creds auth.TokenProvider, user string) (*Snapshot, error) {
	v, err, _ := m.sfg.Do("resync:"+user, func() (interface{}, error) {
		return m.fetchAndCache(ctx, creds, user)
	})
	if err != nil {
		return nil, fmt.Errorf("resync cart: %w", err)
	}
	return v.(*Snapshot), nil
}

func (m *Mutator) fetchAndCache(ctx context.Context, creds auth.TokenProvider, user string) (*Snapshot, error) {
	snap, err := m.backend.GetCart(ctx, creds)
	if err != nil {
		return nil, err
	}
	if errSet := m.cache.Set(ctx, user, snap); errSet != nil {
		log.Printf("snapshot cache set error: %v", errSet)
	}
	return snap, nil
}

func (m *Mutator) invalidate(user string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.cache.Delete(ctx, user); err != nil {
		log.Printf("snapshot cache invalidate error: %v", err)
	}
}

func (m *Mutator) markBusy(user string, ref LineRef) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := busyKey{user, ref}
	if _, inFlight := m.busy[key]; inFlight {
		return false
	}
	m.busy[key] = struct{}{}
	return true
}

func (m *Mutator) clearBusy(user string, ref LineRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.busy, busyKey{user, ref})
}
