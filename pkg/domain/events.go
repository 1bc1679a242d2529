package domain

import (
	"context"
	"time"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    int64     `json:"user_id"`
}

// TransitionEvent is emitted whenever a session changes state.
type TransitionEvent struct {
	EventBase
	From State `json:"from"`
	To   State `json:"to"`
}

// CollaboratorEvent is emitted when an external collaborator call fails.
type CollaboratorEvent struct {
	EventBase
	Collaborator string `json:"collaborator"` // transcriber, formatter, renderer
	Err          error  `json:"-"`
}

// SessionEvent is emitted when a session is closed (completed or discarded).
type SessionEvent struct {
	EventBase
	Completed bool `json:"completed"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTransition        func(context.Context, *TransitionEvent)
	OnCollaboratorError func(context.Context, *CollaboratorEvent)
	OnSessionClosed     func(context.Context, *SessionEvent)
}
