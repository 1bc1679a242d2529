package conversation

import (
	"log/slog"
	"time"

	"github.com/aretw0/minutes/pkg/domain"
	"github.com/aretw0/minutes/pkg/normalizer"
	"github.com/aretw0/minutes/pkg/ports"
)

// DefaultAffirmations is the English affirmation set.
var DefaultAffirmations = []string{"yes", "ok", "okay", "correct", "fine"}

// DefaultKeywords are the spoken item keywords per list.
var DefaultKeywords = map[domain.ListKind]string{
	domain.KindQuestions: "question",
	domain.KindDecisions: "decision",
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithTranscriber configures speech recognition for HandleAudio.
func WithTranscriber(t ports.Transcriber) Option {
	return func(e *Engine) {
		e.transcriber = t
	}
}

// WithFormatter configures the language-model formatter.
// Without one, transcripts go straight to the normalizer.
func WithFormatter(f ports.Formatter) Option {
	return func(e *Engine) {
		e.formatter = f
	}
}

// WithRenderer configures the document renderer.
func WithRenderer(r ports.Renderer) Option {
	return func(e *Engine) {
		e.renderer = r
	}
}

// WithNormalizer replaces the default English normalizer.
func WithNormalizer(n *normalizer.Normalizer) Option {
	return func(e *Engine) {
		e.normalizer = n
	}
}

// WithPrompts overrides the message catalog. Empty fields keep the default.
func WithPrompts(p Prompts) Option {
	return func(e *Engine) {
		e.prompts = p.Merge(DefaultPrompts())
	}
}

// WithAffirmations replaces the affirmation set used in confirmation states.
func WithAffirmations(words []string) Option {
	return func(e *Engine) {
		if len(words) == 0 {
			return
		}
		e.affirmations = make(map[string]struct{}, len(words))
		for _, w := range words {
			e.affirmations[canonical(w)] = struct{}{}
		}
	}
}

// WithKeywords overrides the item keyword for one or both lists.
func WithKeywords(keywords map[domain.ListKind]string) Option {
	return func(e *Engine) {
		for k, v := range keywords {
			if v != "" {
				e.keywords[k] = v
			}
		}
	}
}

// WithInputLimits sets the byte limits for typed text and transcripts.
func WithInputLimits(text, transcript int) Option {
	return func(e *Engine) {
		if text > 0 {
			e.maxText = text
		}
		if transcript > 0 {
			e.maxTranscript = transcript
		}
	}
}

// WithLifecycleHooks configures observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}
