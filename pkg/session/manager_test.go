package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/minutes/pkg/adapters/redis"
	"github.com/aretw0/minutes/pkg/domain"
	"github.com/aretw0/minutes/pkg/ports"
	"github.com/aretw0/minutes/pkg/session"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[int64]*domain.Session
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, sess *domain.Session) error {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[int64]*domain.Session)
	}
	s.data[sess.UserID] = sess.Clone()
	return nil
}

func (s *SlowStore) Load(ctx context.Context, userID int64) (*domain.Session, error) {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.data[userID]; ok {
		return sess.Clone(), nil
	}
	return nil, domain.ErrNoActiveSession
}

func (s *SlowStore) Delete(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, userID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestManager_NoLostUpdates(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	const id int64 = 7

	_, err := manager.Create(ctx, id)
	require.NoError(t, err)

	var wg sync.WaitGroup
	const writers = 20
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, id, func(ctx context.Context) error {
				s, err := manager.Store().Load(ctx, id)
				if err != nil {
					return err
				}
				s.Questions = append(s.Questions, "q")
				return manager.Store().Save(ctx, s)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, s.Questions, writers, "every read-modify-write must be observed")
}

func TestManager_CreateDiscardsPrevious(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()

	first, err := manager.Create(ctx, 1)
	require.NoError(t, err)
	first.Metadata.ProtocolName = "old"
	first.State = domain.StateConfirmingQuestions
	require.NoError(t, manager.Save(ctx, first))

	second, err := manager.Create(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.NewSession(1), second)

	loaded, err := manager.Load(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, loaded.Metadata.ProtocolName)
	assert.Equal(t, domain.StateCollectingName, loaded.State)
}

func TestManager_Exists(t *testing.T) {
	manager := session.NewManager(&SlowStore{})
	ctx := context.Background()

	ok, err := manager.Exists(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = manager.Create(ctx, 3)
	require.NoError(t, err)
	ok, err = manager.Exists(ctx, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, manager.Delete(ctx, 3))
	_, err = manager.Load(ctx, 3)
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestManager_DistinctUsersDoNotBlock(t *testing.T) {
	manager := session.NewManager(&SlowStore{})
	ctx := context.Background()

	holding := make(chan struct{})
	releaseA := make(chan struct{})
	go func() {
		_ = manager.WithLock(ctx, 1, func(context.Context) error {
			close(holding)
			<-releaseA
			return nil
		})
	}()
	<-holding

	done := make(chan struct{})
	go func() {
		_ = manager.WithLock(ctx, 2, func(context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("user 2 was blocked by user 1")
	}
	close(releaseA)
}

type recordingLocker struct {
	mu        sync.Mutex
	keys      []string
	ttl       time.Duration
	refreshes int
	released  int
	lost      bool
	err       error
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	l.ttl = ttl
	return &recordingLease{locker: l}, nil
}

func (l *recordingLocker) snapshot() (refreshes, released int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refreshes, l.released
}

type recordingLease struct {
	locker *recordingLocker
}

func (r *recordingLease) Refresh(context.Context) error {
	r.locker.mu.Lock()
	defer r.locker.mu.Unlock()
	r.locker.refreshes++
	if r.locker.lost {
		return ports.ErrLockLost
	}
	return nil
}

func (r *recordingLease) Release(context.Context) error {
	r.locker.mu.Lock()
	defer r.locker.mu.Unlock()
	r.locker.released++
	return nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &recordingLocker{}
	manager := session.NewManager(&SlowStore{}, session.WithLocker(locker), session.WithLockTTL(5*time.Second))
	ctx := context.Background()

	_, err := manager.Create(ctx, 99)
	require.NoError(t, err)

	assert.Equal(t, []string{"session:99"}, locker.keys)
	assert.Equal(t, 5*time.Second, locker.ttl)
	refreshes, released := locker.snapshot()
	assert.Equal(t, 2, refreshes, "delete and save each confirm the lease")
	assert.Equal(t, 1, released)
}

func TestManager_LeaseRefreshedWhileHeld(t *testing.T) {
	locker := &recordingLocker{}
	manager := session.NewManager(&SlowStore{}, session.WithLocker(locker), session.WithLockTTL(30*time.Millisecond))

	err := manager.WithLock(context.Background(), 1, func(context.Context) error {
		assert.Eventually(t, func() bool {
			n, _ := locker.snapshot()
			return n >= 3
		}, 2*time.Second, 5*time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	after, released := locker.snapshot()
	assert.Equal(t, 1, released)
	time.Sleep(50 * time.Millisecond)
	stopped, _ := locker.snapshot()
	assert.Equal(t, after, stopped, "no refresh after release")
}

func TestManager_WriteFailsAfterLeaseLost(t *testing.T) {
	locker := &recordingLocker{}
	store := &SlowStore{}
	manager := session.NewManager(store, session.WithLocker(locker))
	ctx := context.Background()

	err := manager.WithLock(ctx, 5, func(ctx context.Context) error {
		locker.mu.Lock()
		locker.lost = true
		locker.mu.Unlock()
		return manager.Store().Save(ctx, domain.NewSession(5))
	})
	assert.ErrorIs(t, err, ports.ErrLockLost)

	_, err = store.Load(ctx, 5)
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestManager_ExpiredLeaseCannotOverwriteNextHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redis.NewFromClient(client)
	newReplica := func() *session.Manager {
		return session.NewManager(store,
			session.WithLocker(redis.NewLocker(client, store.Prefix())),
			session.WithLockTTL(time.Second),
		)
	}
	a, b := newReplica(), newReplica()
	ctx := context.Background()

	_, err := a.Create(ctx, 7)
	require.NoError(t, err)

	err = a.WithLock(ctx, 7, func(ctx context.Context) error {
		s, err := a.Store().Load(ctx, 7)
		require.NoError(t, err)
		s.Metadata.ProtocolName = "from A"

		// A stalls past its TTL; the other replica takes the lock and writes.
		mr.FastForward(2 * time.Second)
		require.NoError(t, b.WithLock(ctx, 7, func(ctx context.Context) error {
			s, err := b.Store().Load(ctx, 7)
			if err != nil {
				return err
			}
			s.Metadata.Date = "from B"
			return b.Store().Save(ctx, s)
		}))

		return a.Store().Save(ctx, s)
	})
	assert.ErrorIs(t, err, ports.ErrLockLost)

	final, err := b.Load(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "from B", final.Metadata.Date)
	assert.Empty(t, final.Metadata.ProtocolName)
}

func TestManager_RedisLeaseExtendedWhileHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redis.NewFromClient(client)
	manager := session.NewManager(store,
		session.WithLocker(redis.NewLocker(client, store.Prefix())),
		session.WithLockTTL(300*time.Millisecond),
	)
	key := store.Prefix() + "lock:" + session.LockKey(3)

	err := manager.WithLock(context.Background(), 3, func(context.Context) error {
		mr.FastForward(250 * time.Millisecond)
		require.Less(t, mr.TTL(key), 100*time.Millisecond)
		assert.Eventually(t, func() bool {
			return mr.TTL(key) > 100*time.Millisecond
		}, 2*time.Second, 10*time.Millisecond, "lease was not extended")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))
}

func TestManager_DistributedLockerFailure(t *testing.T) {
	boom := errors.New("redis down")
	manager := session.NewManager(&SlowStore{}, session.WithLocker(&recordingLocker{err: boom}))

	called := false
	err := manager.WithLock(context.Background(), 1, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}
