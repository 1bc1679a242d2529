package ports

import (
	"context"

	"github.com/aretw0/minutes/pkg/domain"
)

// Transcriber converts recorded speech into text.
// Failures should wrap domain.ErrTranscriptionFailed.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Formatter turns a raw transcript into a numbered markdown list.
// Failures should wrap domain.ErrFormattingFailed; the engine then falls back to the normalizer.
type Formatter interface {
	Format(ctx context.Context, text string, kind domain.ListKind) (string, error)
}

// Renderer produces the final protocol document.
// Failures should wrap domain.ErrRenderFailed.
type Renderer interface {
	Render(ctx context.Context, metadata domain.Metadata, questions, decisions []string) ([]byte, error)
}

// Authorizer decides whether a user may interact with the bot at all.
type Authorizer interface {
	IsAllowed(ctx context.Context, userID int64) bool
}

// Notifier delivers out-of-band messages to the administrator.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// DocumentNamer is implemented by renderers that know the file name of their output.
type DocumentNamer interface {
	FileName(metadata domain.Metadata) string
}
