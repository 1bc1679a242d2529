package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/minutes/pkg/domain"
)

// Hooks returns lifecycle hooks that log each event and, when m is not nil, count it.
func Hooks(logger *slog.Logger, m *Metrics) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.Info("transition",
				"user_id", e.UserID,
				"from", e.From.String(),
				"to", e.To.String(),
			)
			if m != nil {
				m.Transitions.WithLabelValues(e.From.String(), e.To.String()).Inc()
			}
		},
		OnCollaboratorError: func(ctx context.Context, e *domain.CollaboratorEvent) {
			logger.Warn("collaborator failed",
				"user_id", e.UserID,
				"collaborator", e.Collaborator,
				"err", e.Err,
			)
			if m != nil {
				m.CollaboratorFailures.WithLabelValues(e.Collaborator).Inc()
			}
		},
		OnSessionClosed: func(ctx context.Context, e *domain.SessionEvent) {
			outcome := "discarded"
			if e.Completed {
				outcome = "completed"
			}
			logger.Info("session closed", "user_id", e.UserID, "outcome", outcome)
			if m != nil {
				m.SessionsClosed.WithLabelValues(outcome).Inc()
			}
		},
	}
}
