package cart

import (
	"context"
	"errors"
)

// SnapshotCache memoizes the last authoritative snapshot per user. It is
// invalidated on every mutation and repopulated only by the mandatory
// post-mutation refetch, so it never becomes a second source of truth.
type SnapshotCache interface {
	Get(ctx context.Context, userKey string) (*Snapshot, error)
	Set(ctx context.Context, userKey string, snap *Snapshot) error
	Delete(ctx context.Context, userKey string) error
}

var ErrCacheMiss = errors.New("cache miss")
