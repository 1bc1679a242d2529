package middleware_test

import (
	"context"

	"github.com/aretw0/minutes/pkg/domain"
	"github.com/aretw0/minutes/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
// It keeps the pointers it is given so tests can inspect what reached it.
type MockStore struct {
	data map[int64]*domain.Session
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[int64]*domain.Session),
	}
}

func (s *MockStore) Save(ctx context.Context, session *domain.Session) error {
	s.data[session.UserID] = session
	return nil
}

func (s *MockStore) Load(ctx context.Context, userID int64) (*domain.Session, error) {
	session, ok := s.data[userID]
	if !ok {
		return nil, domain.ErrNoActiveSession
	}
	return session, nil
}

func (s *MockStore) Delete(ctx context.Context, userID int64) error {
	delete(s.data, userID)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]int64, error) {
	keys := make([]int64, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.SessionStore = (*MockStore)(nil)
