package ports

import (
	"context"

	"github.com/aretw0/minutes/pkg/domain"
)

// SessionStore defines the interface for persisting user sessions.
// Writes must be atomic from the point of view of concurrent readers.
type SessionStore interface {
	// Save persists the session under session.UserID, replacing any previous record.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves the session for a user.
	// Returns domain.ErrNoActiveSession if the user has no session.
	Load(ctx context.Context, userID int64) (*domain.Session, error)

	// Delete removes the session for a user. Deleting a missing session is not an error.
	Delete(ctx context.Context, userID int64) error

	// List returns the ids of every user with a stored session.
	List(ctx context.Context) ([]int64, error)
}
