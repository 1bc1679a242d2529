package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/minutes/internal/logging"
	"github.com/aretw0/minutes/pkg/domain"
	"github.com/aretw0/minutes/pkg/normalizer"
	"github.com/aretw0/minutes/pkg/ports"
	"github.com/aretw0/minutes/pkg/session"
)

// DefaultFileName is used when the renderer does not name its output.
const DefaultFileName = "protocol"

// Engine drives the protocol workflow. Each event for a user runs as one
// critical section: load, validate, call collaborators, save.
type Engine struct {
	sessions *session.Manager

	transcriber ports.Transcriber
	formatter   ports.Formatter
	renderer    ports.Renderer
	normalizer  *normalizer.Normalizer

	prompts       Prompts
	affirmations  map[string]struct{}
	keywords      map[domain.ListKind]string
	maxText       int
	maxTranscript int

	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Engine backed by the given session manager.
func New(sessions *session.Manager, opts ...Option) *Engine {
	e := &Engine{
		sessions:      sessions,
		normalizer:    normalizer.New(),
		prompts:       DefaultPrompts(),
		keywords:      make(map[domain.ListKind]string, len(DefaultKeywords)),
		maxText:       DefaultMaxTextSize,
		maxTranscript: DefaultMaxTranscriptSize,
		logger:        logging.NewNop(),
		now:           time.Now,
	}
	for k, v := range DefaultKeywords {
		e.keywords[k] = v
	}
	WithAffirmations(DefaultAffirmations)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Prompts returns the active message catalog.
func (e *Engine) Prompts() Prompts {
	return e.prompts
}

// Start discards any session the user has and begins a fresh one.
func (e *Engine) Start(ctx context.Context, userID int64) (domain.Reply, error) {
	var reply domain.Reply
	err := e.sessions.WithLock(ctx, userID, func(ctx context.Context) error {
		store := e.sessions.Store()
		if _, err := store.Load(ctx, userID); err == nil {
			e.emitClosed(ctx, userID, false)
		}
		s, err := session.Reset(ctx, store, userID)
		if err != nil {
			return err
		}
		e.logger.InfoContext(ctx, "protocol started", "user_id", userID)
		reply = e.replyFor(s)
		return nil
	})
	return reply, err
}

// HandleText applies a typed reply to the user's current state.
func (e *Engine) HandleText(ctx context.Context, userID int64, text string) (domain.Reply, error) {
	return e.withSession(ctx, userID, func(ctx context.Context, store ports.SessionStore, s *domain.Session) (domain.Reply, error) {
		tr, ok := domain.TransitionFor(s.State)
		if !ok {
			return domain.Reply{}, fmt.Errorf("%w: %s", domain.ErrUnknownState, s.State)
		}

		switch tr.Accepts {
		case domain.InputText:
			return e.collectField(ctx, store, s, tr, text)
		case domain.InputAudio:
			return e.reprompt(s, e.prompts.AudioExpected), fmt.Errorf("%w: %s expects audio", domain.ErrInvalidInput, s.State)
		case domain.InputConfirmation:
			return e.confirm(ctx, store, s, tr, text)
		default:
			// Anything typed while rendering retries the render.
			return e.render(ctx, store, s)
		}
	})
}

// HandleRecognizedAudio stores a transcript for the list the user is recording.
func (e *Engine) HandleRecognizedAudio(ctx context.Context, userID int64, kind domain.ListKind, transcript string) (domain.Reply, error) {
	return e.withSession(ctx, userID, func(ctx context.Context, store ports.SessionStore, s *domain.Session) (domain.Reply, error) {
		tr, err := e.audioTransition(s, kind)
		if err != nil {
			return e.replyFor(s), err
		}
		return e.collectList(ctx, store, s, tr, transcript)
	})
}

// HandleAudio transcribes a voice message and stores it for the list the
// current state is collecting.
func (e *Engine) HandleAudio(ctx context.Context, userID int64, audio []byte) (domain.Reply, error) {
	return e.withSession(ctx, userID, func(ctx context.Context, store ports.SessionStore, s *domain.Session) (domain.Reply, error) {
		tr, ok := domain.TransitionFor(s.State)
		if !ok || tr.Accepts != domain.InputAudio {
			return e.reprompt(s, e.prompts.TextExpected), fmt.Errorf("%w: %s does not accept audio", domain.ErrInvalidInput, s.State)
		}

		if e.transcriber == nil {
			err := fmt.Errorf("%w: no transcriber configured", domain.ErrTranscriptionFailed)
			e.emitCollaboratorError(ctx, userID, "transcriber", err)
			return e.reprompt(s, e.prompts.TranscriptionFailed), err
		}

		transcript, err := e.transcriber.Transcribe(ctx, audio)
		if err != nil {
			e.emitCollaboratorError(ctx, userID, "transcriber", err)
			return e.reprompt(s, e.prompts.TranscriptionFailed), wrapAs(domain.ErrTranscriptionFailed, err)
		}
		return e.collectList(ctx, store, s, tr, transcript)
	})
}

// RetryRender re-runs the renderer for a session stuck in rendering_document.
func (e *Engine) RetryRender(ctx context.Context, userID int64) (domain.Reply, error) {
	return e.withSession(ctx, userID, func(ctx context.Context, store ports.SessionStore, s *domain.Session) (domain.Reply, error) {
		if s.State != domain.StateRenderingDocument {
			return e.replyFor(s), fmt.Errorf("%w: nothing to render in %s", domain.ErrInvalidInput, s.State)
		}
		return e.render(ctx, store, s)
	})
}

// Cancel discards the user's session.
func (e *Engine) Cancel(ctx context.Context, userID int64) (domain.Reply, error) {
	return e.withSession(ctx, userID, func(ctx context.Context, store ports.SessionStore, s *domain.Session) (domain.Reply, error) {
		if err := store.Delete(ctx, userID); err != nil {
			return domain.Reply{}, err
		}
		e.emitClosed(ctx, userID, false)
		return domain.Reply{State: domain.StateNone, Prompt: e.prompts.Cancelled}, nil
	})
}

// Session returns a snapshot of the user's session.
func (e *Engine) Session(ctx context.Context, userID int64) (*domain.Session, error) {
	return e.sessions.Load(ctx, userID)
}

func (e *Engine) withSession(
	ctx context.Context,
	userID int64,
	fn func(context.Context, ports.SessionStore, *domain.Session) (domain.Reply, error),
) (domain.Reply, error) {
	var reply domain.Reply
	err := e.sessions.WithLock(ctx, userID, func(ctx context.Context) error {
		store := e.sessions.Store()
		s, err := store.Load(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNoActiveSession) {
				reply = domain.Reply{State: domain.StateNone, Prompt: e.prompts.NoSession}
			}
			return err
		}
		reply, err = fn(ctx, store, s)
		return err
	})
	return reply, err
}

func (e *Engine) collectField(ctx context.Context, store ports.SessionStore, s *domain.Session, tr domain.Transition, text string) (domain.Reply, error) {
	clean, err := SanitizeInput(text, e.maxText)
	if err != nil {
		return e.reprompt(s, e.prompts.EmptyInput), fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if strings.TrimSpace(clean) == "" {
		return e.reprompt(s, e.prompts.EmptyInput), fmt.Errorf("%w: empty %s", domain.ErrInvalidInput, tr.Field)
	}

	s.Metadata.Set(tr.Field, clean)
	return e.advance(ctx, store, s, tr.Next)
}

func (e *Engine) confirm(ctx context.Context, store ports.SessionStore, s *domain.Session, tr domain.Transition, text string) (domain.Reply, error) {
	if !e.IsAffirmative(text) {
		return e.advance(ctx, store, s, tr.Retry)
	}
	if tr.Next != domain.StateRenderingDocument {
		return e.advance(ctx, store, s, tr.Next)
	}

	// Persist rendering_document first so a failed render can be retried.
	from := s.State
	s.State = tr.Next
	if err := store.Save(ctx, s); err != nil {
		return domain.Reply{}, fmt.Errorf("failed to save session: %w", err)
	}
	e.emitTransition(ctx, s.UserID, from, s.State)
	return e.render(ctx, store, s)
}

func (e *Engine) audioTransition(s *domain.Session, kind domain.ListKind) (domain.Transition, error) {
	tr, ok := domain.TransitionFor(s.State)
	if !ok || tr.Accepts != domain.InputAudio {
		return tr, fmt.Errorf("%w: %s does not accept audio", domain.ErrInvalidInput, s.State)
	}
	if tr.Kind != kind {
		return tr, fmt.Errorf("%w: expected %s, got %s", domain.ErrInvalidInput, tr.Kind, kind)
	}
	return tr, nil
}

// collectList turns a transcript into items, formatter first, and moves to confirmation.
func (e *Engine) collectList(ctx context.Context, store ports.SessionStore, s *domain.Session, tr domain.Transition, transcript string) (domain.Reply, error) {
	clean, err := SanitizeInput(transcript, e.maxTranscript)
	if err != nil {
		e.emitCollaboratorError(ctx, s.UserID, "transcriber", err)
		return e.reprompt(s, e.prompts.TranscriptionFailed), wrapAs(domain.ErrTranscriptionFailed, err)
	}
	if strings.TrimSpace(clean) == "" {
		err := fmt.Errorf("%w: empty transcript", domain.ErrTranscriptionFailed)
		e.emitCollaboratorError(ctx, s.UserID, "transcriber", err)
		return e.reprompt(s, e.prompts.TranscriptionFailed), err
	}

	items := e.format(ctx, s.UserID, clean, tr.Kind)
	s.SetList(tr.Kind, items)
	reply, err := e.advance(ctx, store, s, tr.Next)
	if err != nil {
		return reply, err
	}
	reply.Prompt = e.prompts.Confirm(tr.Kind, normalizer.Format(items))
	return reply, nil
}

// format never fails: formatter errors and unusable output fall back to the normalizer.
func (e *Engine) format(ctx context.Context, userID int64, text string, kind domain.ListKind) []string {
	if e.formatter != nil {
		markdown, err := e.formatter.Format(ctx, text, kind)
		if err == nil && strings.TrimSpace(markdown) == "" {
			err = fmt.Errorf("%w: empty output", domain.ErrFormattingFailed)
		}
		if err == nil {
			if items := normalizer.Parse(markdown); len(items) > 0 {
				return items
			}
			err = fmt.Errorf("%w: output is not a list", domain.ErrFormattingFailed)
		}
		e.emitCollaboratorError(ctx, userID, "formatter", wrapAs(domain.ErrFormattingFailed, err))
	}
	return e.normalizer.Items(text, e.keywords[kind])
}

func (e *Engine) render(ctx context.Context, store ports.SessionStore, s *domain.Session) (domain.Reply, error) {
	if e.renderer == nil {
		err := fmt.Errorf("%w: no renderer configured", domain.ErrRenderFailed)
		e.emitCollaboratorError(ctx, s.UserID, "renderer", err)
		return e.reprompt(s, ""), err
	}

	doc, err := e.renderer.Render(ctx, s.Metadata, s.Questions, s.Decisions)
	if err != nil {
		e.emitCollaboratorError(ctx, s.UserID, "renderer", err)
		return e.reprompt(s, ""), wrapAs(domain.ErrRenderFailed, err)
	}

	action := &domain.RenderAction{
		Metadata:  s.Metadata,
		Questions: append([]string(nil), s.Questions...),
		Decisions: append([]string(nil), s.Decisions...),
		Document:  doc,
		FileName:  DefaultFileName,
	}
	if namer, ok := e.renderer.(ports.DocumentNamer); ok {
		action.FileName = namer.FileName(s.Metadata)
	}
	reply := domain.Reply{State: domain.StateNone, Prompt: e.prompts.Done, Action: action}

	if err := store.Delete(ctx, s.UserID); err != nil {
		// The document exists; the caller still delivers it.
		return reply, fmt.Errorf("failed to delete completed session: %w", err)
	}
	e.emitTransition(ctx, s.UserID, domain.StateRenderingDocument, domain.StateNone)
	e.emitClosed(ctx, s.UserID, true)
	return reply, nil
}

func (e *Engine) advance(ctx context.Context, store ports.SessionStore, s *domain.Session, next domain.State) (domain.Reply, error) {
	from := s.State
	if !domain.IsEdge(from, next) {
		return domain.Reply{}, fmt.Errorf("%w: illegal transition %s -> %s", domain.ErrUnknownState, from, next)
	}
	s.State = next
	if err := store.Save(ctx, s); err != nil {
		return domain.Reply{}, fmt.Errorf("failed to save session: %w", err)
	}
	e.emitTransition(ctx, s.UserID, from, next)
	return e.replyFor(s), nil
}

// IsAffirmative reports whether text is in the affirmation set, ignoring case,
// surrounding whitespace and trailing punctuation.
func (e *Engine) IsAffirmative(text string) bool {
	_, ok := e.affirmations[canonical(text)]
	return ok
}

func canonical(s string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(s), ".!,;"))
}

// replyFor re-issues the prompt of the session's current state.
func (e *Engine) replyFor(s *domain.Session) domain.Reply {
	prompt := e.prompts.ForState(s.State)
	if tr, ok := domain.TransitionFor(s.State); ok && tr.Accepts == domain.InputConfirmation {
		prompt = e.prompts.Confirm(tr.Kind, normalizer.Format(s.List(tr.Kind)))
	}
	return domain.Reply{State: s.State, Prompt: prompt}
}

func (e *Engine) reprompt(s *domain.Session, notice string) domain.Reply {
	reply := e.replyFor(s)
	reply.Prompt = joinPrompts(notice, reply.Prompt)
	return reply
}

func (e *Engine) emitTransition(ctx context.Context, userID int64, from, to domain.State) {
	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, &domain.TransitionEvent{
			EventBase: domain.EventBase{Timestamp: e.now(), UserID: userID},
			From:      from,
			To:        to,
		})
	}
}

func (e *Engine) emitCollaboratorError(ctx context.Context, userID int64, name string, err error) {
	e.logger.WarnContext(ctx, "collaborator failed", "user_id", userID, "collaborator", name, "err", err)
	if e.hooks.OnCollaboratorError != nil {
		e.hooks.OnCollaboratorError(ctx, &domain.CollaboratorEvent{
			EventBase:    domain.EventBase{Timestamp: e.now(), UserID: userID},
			Collaborator: name,
			Err:          err,
		})
	}
}

func (e *Engine) emitClosed(ctx context.Context, userID int64, completed bool) {
	if e.hooks.OnSessionClosed != nil {
		e.hooks.OnSessionClosed(ctx, &domain.SessionEvent{
			EventBase: domain.EventBase{Timestamp: e.now(), UserID: userID},
			Completed: completed,
		})
	}
}

// wrapAs makes err match sentinel under errors.Is without losing its text.
func wrapAs(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
