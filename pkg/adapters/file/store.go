package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aretw0/minutes/pkg/domain"
)

const (
	dirPrefix   = "user_id="
	sessionFile = "session.json"
)

// Store implements ports.SessionStore using the local filesystem.
// Each user gets a directory "user_id=<id>" holding a single session.json.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".minutes/sessions".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".minutes", "sessions")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) userDir(userID int64) string {
	return filepath.Join(s.BasePath, dirPrefix+strconv.FormatInt(userID, 10))
}

// Save persists the session to JSON atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	dir := s.userDir(session.UserID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure session directory: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Same directory as the destination: rename is only atomic within one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-session-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, sessionFile)); err != nil {
		return fmt.Errorf("failed to rename temp file to session: %w", err)
	}
	return nil
}

// Load retrieves the session from its JSON file.
func (s *Store) Load(ctx context.Context, userID int64) (*domain.Session, error) {
	data, err := os.ReadFile(filepath.Join(s.userDir(userID), sessionFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNoActiveSession
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete removes the user's whole directory.
func (s *Store) Delete(ctx context.Context, userID int64) error {
	if err := os.RemoveAll(s.userDir(userID)); err != nil {
		return fmt.Errorf("failed to delete session directory: %w", err)
	}
	return nil
}

// List returns every user with a session file.
func (s *Store) List(ctx context.Context) ([]int64, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []int64{}, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	ids := []int64{}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, dirPrefix) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(name, dirPrefix), 10, 64)
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.BasePath, name, sessionFile)); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
