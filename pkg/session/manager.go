package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/minutes/internal/logging"
	"github.com/aretw0/minutes/pkg/domain"
	"github.com/aretw0/minutes/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes every read-modify-write on a user's session.
// It uses Reference Counting to garbage collect unused locks, so distinct
// users never share a mutex.
type Manager struct {
	store  ports.SessionStore
	fenced ports.SessionStore

	mu    sync.Mutex           // Global lock for the map
	locks map[int64]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[int64]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.fenced = fencedStore{m.store}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(userID) after unlocking.
func (m *Manager) acquire(userID int64) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[userID]
	if !exists {
		entry = &lockEntry{}
		m.locks[userID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[userID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, userID)
	}
}

// Create discards any existing session for the user and persists a fresh one.
func (m *Manager) Create(ctx context.Context, userID int64) (*domain.Session, error) {
	var s *domain.Session
	err := m.WithLock(ctx, userID, func(ctx context.Context) error {
		var err error
		s, err = Reset(ctx, m.fenced, userID)
		return err
	})
	return s, err
}

// Reset replaces the user's session with a fresh one on store.
// It must run inside WithLock.
func Reset(ctx context.Context, store ports.SessionStore, userID int64) (*domain.Session, error) {
	if err := store.Delete(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to discard previous session: %w", err)
	}
	s := domain.NewSession(userID)
	if err := store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}
	return s, nil
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, userID int64) (*domain.Session, error) {
	var s *domain.Session
	err := m.WithLock(ctx, userID, func(ctx context.Context) error {
		var err error
		s, err = m.store.Load(ctx, userID)
		return err
	})
	return s, err
}

// Exists reports whether the user currently has a session.
func (m *Manager) Exists(ctx context.Context, userID int64) (bool, error) {
	_, err := m.Load(ctx, userID)
	if errors.Is(err, domain.ErrNoActiveSession) {
		return false, nil
	}
	return err == nil, err
}

// Save persists the session.
func (m *Manager) Save(ctx context.Context, s *domain.Session) error {
	return m.WithLock(ctx, s.UserID, func(ctx context.Context) error {
		return m.fenced.Save(ctx, s)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, userID int64) error {
	return m.WithLock(ctx, userID, func(ctx context.Context) error {
		return m.fenced.Delete(ctx, userID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]int64, error) {
	return m.store.List(ctx)
}

// Store returns the session store. Inside WithLock, use it directly: the
// per-user mutex is not reentrant. With a distributed locker, writes made
// with the context passed to fn fail with ports.ErrLockLost once the lease
// is gone.
func (m *Manager) Store() ports.SessionStore {
	return m.fenced
}

// WithLock executes fn while holding the lock for the user. With a
// distributed locker, the lease is refreshed every third of its TTL until fn
// returns.
func (m *Manager) WithLock(ctx context.Context, userID int64, fn func(context.Context) error) error {
	entry := m.acquire(userID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(userID)
	}()

	if m.locker != nil {
		lease, err := m.locker.Lock(ctx, LockKey(userID), m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		stop := m.keepAlive(ctx, lease, userID)
		defer func() {
			stop()
			// The caller's context may already be done; the release must still go out.
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"user_id", userID,
					"err", err,
				)
			}
		}()
		ctx = context.WithValue(ctx, leaseKey{}, lease)
	}

	return fn(ctx)
}

// keepAlive refreshes lease in the background. The returned stop blocks
// until the refresher has exited.
func (m *Manager) keepAlive(ctx context.Context, lease ports.Lease, userID int64) (stop func()) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	interval := m.lockTTL / 3
	if interval < time.Millisecond {
		interval = time.Millisecond
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := lease.Refresh(ctx)
			if err == nil || ctx.Err() != nil {
				continue
			}
			m.logger.Warn("Failed to extend distributed lock", "user_id", userID, "err", err)
			if errors.Is(err, ports.ErrLockLost) {
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

type leaseKey struct{}

// fencedStore refreshes the caller's lease right before every write, so a
// holder whose lock expired cannot overwrite the next holder's update.
type fencedStore struct {
	ports.SessionStore
}

func (f fencedStore) Save(ctx context.Context, s *domain.Session) error {
	if err := checkLease(ctx); err != nil {
		return err
	}
	return f.SessionStore.Save(ctx, s)
}

func (f fencedStore) Delete(ctx context.Context, userID int64) error {
	if err := checkLease(ctx); err != nil {
		return err
	}
	return f.SessionStore.Delete(ctx, userID)
}

func checkLease(ctx context.Context) error {
	lease, ok := ctx.Value(leaseKey{}).(ports.Lease)
	if !ok {
		return nil
	}
	return lease.Refresh(ctx)
}

// LockKey is the distributed lock name for a user.
func LockKey(userID int64) string {
	return "session:" + strconv.FormatInt(userID, 10)
}
