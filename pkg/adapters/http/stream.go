package http

import (
	"log/slog"
	"sync"

	"github.com/aretw0/minutes/internal/logging"
)

// StreamManager fans reply payloads out to the SSE subscribers of a user.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[int64]map[chan<- string]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[int64]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a buffered channel for userID. The returned func
// unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(userID int64) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[userID]; !ok {
		sm.subscribers[userID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[userID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[userID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, userID)
				}
			}
		})
	}
}

// Subscribers reports how many streams are open for userID.
func (sm *StreamManager) Subscribers(userID int64) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[userID])
}

// Broadcast delivers msg to every subscriber of userID. Slow clients drop messages.
func (sm *StreamManager) Broadcast(userID int64, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[userID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message", "user_id", userID)
		}
	}
}
