package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/minutes/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// AllowList is a ports.Authorizer over a set of Telegram-style user ids.
type AllowList struct {
	mu     sync.RWMutex
	ids    map[int64]struct{}
	logger *slog.Logger
}

// Option configures an AllowList.
type Option func(*AllowList)

// WithLogger sets the logger used for warnings and reloads.
func WithLogger(l *slog.Logger) Option {
	return func(a *AllowList) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAllowList builds an allow-list from ids.
func NewAllowList(ids []int64, opts ...Option) *AllowList {
	a := &AllowList{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	a.Set(ids)
	return a
}

// IsAllowed reports whether userID may use the bot.
func (a *AllowList) IsAllowed(_ context.Context, userID int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.ids) == 0 {
		return true
	}
	_, ok := a.ids[userID]
	return ok
}

// Set replaces the allowed ids.
func (a *AllowList) Set(ids []int64) {
	next := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}

	a.mu.Lock()
	a.ids = next
	a.mu.Unlock()

	if len(next) == 0 {
		a.logger.Warn("allow-list is empty, every user is allowed")
	}
}

// Add admits one more user.
func (a *AllowList) Add(userID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids[userID] = struct{}{}
}

// IDs returns the allowed ids in no particular order.
func (a *AllowList) IDs() []int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]int64, 0, len(a.ids))
	for id := range a.ids {
		out = append(out, id)
	}
	return out
}

// LoadFile replaces the allowed ids with the contents of path.
func (a *AllowList) LoadFile(path string) error {
	ids, err := readFile(path)
	if err != nil {
		return err
	}
	a.Set(ids)
	a.logger.Info("allow-list loaded", "path", path, "users", len(ids))
	return nil
}

// reload applies a changed file. An empty file (editors truncate before
// writing) never widens a restricted list to allow-all.
func (a *AllowList) reload(ctx context.Context, path string) {
	ids, err := readFile(path)
	if err != nil {
		a.logger.WarnContext(ctx, "allow-list reload failed", "path", path, "err", err)
		return
	}
	if len(ids) == 0 && len(a.IDs()) > 0 {
		a.logger.WarnContext(ctx, "allow-list file is empty, keeping previous ids", "path", path)
		return
	}
	a.Set(ids)
	a.logger.InfoContext(ctx, "allow-list reloaded", "path", path, "users", len(ids))
}

func readFile(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open allow-list: %w", err)
	}
	defer f.Close()

	ids, err := ReadIDs(f)
	if err != nil {
		return nil, fmt.Errorf("read allow-list %s: %w", path, err)
	}
	return ids, nil
}

// Watch reloads path whenever it changes until ctx is done.
// The parent directory is watched so editors that replace the file are seen.
// A reload that fails, or that finds no ids while some are allowed, keeps
// the previous ids.
func (a *AllowList) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve allow-list path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("add watch path: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			a.reload(ctx, abs)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			a.logger.WarnContext(ctx, "allow-list watcher error", "err", err)
		}
	}
}

// ReadIDs parses one user id per line. Blank lines and lines starting with
// '#' are skipped; commas also separate ids, as in ALLOWED_USERS.
func ReadIDs(r io.Reader) ([]int64, error) {
	var ids []int64
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parsed, err := ParseIDs(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ids = append(ids, parsed...)
	}
	return ids, scanner.Err()
}

// ParseIDs parses a comma separated list of user ids.
func ParseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
