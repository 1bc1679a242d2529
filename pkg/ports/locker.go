package ports

import (
	"context"
	"errors"
	"time"
)

// ErrLockLost is returned when a lease expired or was taken over by
// another holder before its owner finished.
var ErrLockLost = errors.New("distributed lock lost")

// Lease is a held distributed lock.
type Lease interface {
	// Refresh resets the expiry to the lease TTL. It returns ErrLockLost
	// when the key no longer carries this lease's token.
	Refresh(ctx context.Context) error
	// Release frees the lock if this lease still owns it. It must be called
	// exactly once.
	Release(ctx context.Context) error
}

// DistributedLocker serializes work on one user's session across replicas
// sharing a store. The in-process mutex of the session manager is always
// taken first; the distributed lock only matters with a shared backend.
type DistributedLocker interface {
	// Lock blocks until key is held, ctx is done, or acquisition times out.
	// The lock expires after ttl unless the lease is refreshed.
	Lock(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}
