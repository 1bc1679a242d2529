package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/minutes/pkg/domain"
	"github.com/aretw0/minutes/pkg/ports"
)

// Middleware wraps a Handler. It runs before dispatch and may short-circuit it.
type Middleware func(Handler) Handler

// Chain applies middlewares so the first one listed is the outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RequireAuthorization rejects events from users the authorizer denies.
// The engine is never reached, so no session state changes. Each denial is
// reported to the administrator through notifier (which may be nil).
func RequireAuthorization(authz ports.Authorizer, notifier ports.Notifier, denial string, logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev Event) ([]Message, error) {
			if authz.IsAllowed(ctx, ev.UserID) {
				return next(ctx, ev)
			}

			logger.WarnContext(ctx, "unauthorized access attempt", "user_id", ev.UserID, "username", ev.Username)
			if notifier != nil {
				text := fmt.Sprintf("Unauthorized access attempt: user %d", ev.UserID)
				if ev.Username != "" {
					text += " (@" + ev.Username + ")"
				}
				if err := notifier.Notify(ctx, text); err != nil {
					logger.WarnContext(ctx, "admin notification failed", "err", err)
				}
			}
			return []Message{{Text: denial}}, fmt.Errorf("%w: user %d", domain.ErrUnauthorized, ev.UserID)
		}
	}
}

// ErrPanic is returned when a handler panicked.
var ErrPanic = errors.New("handler panicked")

// Recover turns a panic in the chain into an error and a generic reply.
func Recover(failure string, logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev Event) (msgs []Message, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "panic while handling event", "user_id", ev.UserID, "panic", fmt.Sprint(r))
					msgs = []Message{{Text: failure}}
					err = fmt.Errorf("%w: %v", ErrPanic, r)
				}
			}()
			return next(ctx, ev)
		}
	}
}

// Logging records every event with its outcome and latency.
// Recoverable workflow errors are logged at info, anything else at error.
func Logging(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev Event) ([]Message, error) {
			start := time.Now()
			msgs, err := next(ctx, ev)

			attrs := []any{
				"user_id", ev.UserID,
				"kind", ev.Kind.String(),
				"duration", time.Since(start),
			}
			if ev.Command != "" {
				attrs = append(attrs, "command", ev.Command)
			}
			switch {
			case err == nil:
				logger.DebugContext(ctx, "event handled", attrs...)
			case IsRecoverable(err):
				logger.InfoContext(ctx, "event rejected", append(attrs, "err", err)...)
			default:
				logger.ErrorContext(ctx, "event failed", append(attrs, "err", err)...)
			}
			return msgs, err
		}
	}
}

// IsRecoverable reports whether err is an expected, user-scoped workflow error.
func IsRecoverable(err error) bool {
	for _, target := range []error{
		domain.ErrNoActiveSession,
		domain.ErrInvalidInput,
		domain.ErrTranscriptionFailed,
		domain.ErrFormattingFailed,
		domain.ErrRenderFailed,
		domain.ErrUnauthorized,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
