package middleware

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/aretw0/minutes/pkg/domain"
	"github.com/aretw0/minutes/pkg/ports"
)

const mask = "***"

type auditMiddleware struct {
	next     ports.SessionStore
	logger   *slog.Logger
	patterns []*regexp.Regexp
}

// NewAuditMiddleware logs every write at debug level. Metadata fields whose
// name matches one of the patterns are masked in the log; the stored record is untouched.
func NewAuditMiddleware(logger *slog.Logger, patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &auditMiddleware{next: next, logger: logger, patterns: patterns}
	}
}

func (m *auditMiddleware) Save(ctx context.Context, session *domain.Session) error {
	err := m.next.Save(ctx, session)
	m.logger.DebugContext(ctx, "session saved",
		"user_id", session.UserID,
		"state", session.State.String(),
		slog.Group("metadata", m.redact(session.Metadata)...),
		"questions", len(session.Questions),
		"decisions", len(session.Decisions),
		"err", err,
	)
	return err
}

func (m *auditMiddleware) Load(ctx context.Context, userID int64) (*domain.Session, error) {
	return m.next.Load(ctx, userID)
}

func (m *auditMiddleware) Delete(ctx context.Context, userID int64) error {
	err := m.next.Delete(ctx, userID)
	m.logger.DebugContext(ctx, "session deleted", "user_id", userID, "err", err)
	return err
}

func (m *auditMiddleware) List(ctx context.Context) ([]int64, error) {
	return m.next.List(ctx)
}

// redact returns the metadata as log attributes, masking matching field names.
func (m *auditMiddleware) redact(md domain.Metadata) []any {
	attrs := make([]any, 0, len(domain.Fields()))
	for _, f := range domain.Fields() {
		value := md.Get(f)
		for _, p := range m.patterns {
			if value != "" && p.MatchString(f.String()) {
				value = mask
				break
			}
		}
		attrs = append(attrs, slog.String(f.String(), value))
	}
	return attrs
}
