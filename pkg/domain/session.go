package domain

import "fmt"

// ListKind identifies which spoken list is being collected.
type ListKind string

const (
	KindQuestions ListKind = "questions"
	KindDecisions ListKind = "decisions"
)

// ParseListKind resolves "questions" or "decisions".
func ParseListKind(s string) (ListKind, error) {
	switch ListKind(s) {
	case KindQuestions, KindDecisions:
		return ListKind(s), nil
	}
	return "", fmt.Errorf("%w: unknown list kind %q", ErrInvalidInput, s)
}

// Session is the durable per-user record tracking workflow state and collected data.
type Session struct {
	UserID    int64    `json:"user_id"`
	State     State    `json:"state"`
	Metadata  Metadata `json:"metadata"`
	Questions []string `json:"questions,omitempty"`
	Decisions []string `json:"decisions,omitempty"`

	// Sealed carries the ciphertext when the record is an encryption envelope.
	Sealed string `json:"sealed,omitempty"`
}

// NewSession creates a clean session at the first collection step.
func NewSession(userID int64) *Session {
	return &Session{
		UserID: userID,
		State:  StateCollectingName,
	}
}

// List returns the items collected for kind.
func (s *Session) List(kind ListKind) []string {
	if kind == KindDecisions {
		return s.Decisions
	}
	return s.Questions
}

// SetList replaces the items collected for kind.
func (s *Session) SetList(kind ListKind, items []string) {
	if kind == KindDecisions {
		s.Decisions = items
		return
	}
	s.Questions = items
}

// Clone returns a deep copy so stores never share slices with callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Questions != nil {
		c.Questions = append([]string(nil), s.Questions...)
	}
	if s.Decisions != nil {
		c.Decisions = append([]string(nil), s.Decisions...)
	}
	return &c
}
