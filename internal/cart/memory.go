package cart

import (
	"context"
	"sync"
	"time"
)

const cleanupInterval = 30 * time.Second

// MemoryCache is an in-process SnapshotCache used when no Redis address is
// configured, and by tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

type memoryEntry struct {
	snap      *Snapshot
	expiresAt time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries:     make(map[string]memoryEntry),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop()

	return c
}

func (c *MemoryCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.expireEntries()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryCache) expireEntries() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *MemoryCache) Get(_ context.Context, userKey string) (*Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[userKey]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, ErrCacheMiss
	}
	return e.snap, nil
}

func (c *MemoryCache) Set(_ context.Context, userKey string, snap *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[userKey] = memoryEntry{snap: snap, expiresAt: time.Now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, userKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, userKey)
	return nil
}

// Close stops the background cleanup and waits for it to finish.
func (c *MemoryCache) Close() error {
	close(c.stopCleanup)
	c.wg.Wait()
	return nil
}
