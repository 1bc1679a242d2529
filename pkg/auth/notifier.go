package auth

import (
	"context"
	"log/slog"

	"github.com/aretw0/minutes/internal/logging"
)

// LogNotifier delivers administrator notifications to the structured log.
// Transports with a real admin channel provide their own ports.Notifier.
type LogNotifier struct {
	AdminID int64
	Logger  *slog.Logger
}

// Notify logs text at warn level, tagged with the admin id.
func (n *LogNotifier) Notify(ctx context.Context, text string) error {
	logger := n.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger.WarnContext(ctx, "admin notification", "admin_id", n.AdminID, "text", text)
	return nil
}
