package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/minutes/internal/logging"
	"github.com/aretw0/minutes/pkg/conversation"
	"github.com/aretw0/minutes/pkg/domain"
)

// Conversation is the engine surface the dispatcher drives.
type Conversation interface {
	Start(ctx context.Context, userID int64) (domain.Reply, error)
	HandleText(ctx context.Context, userID int64, text string) (domain.Reply, error)
	HandleAudio(ctx context.Context, userID int64, audio []byte) (domain.Reply, error)
	HandleRecognizedAudio(ctx context.Context, userID int64, kind domain.ListKind, transcript string) (domain.Reply, error)
	Cancel(ctx context.Context, userID int64) (domain.Reply, error)
	Prompts() conversation.Prompts
}

// Handler processes one event.
type Handler func(ctx context.Context, ev Event) ([]Message, error)

// Dispatcher maps events onto the conversation engine behind a middleware chain.
type Dispatcher struct {
	engine  Conversation
	handler Handler
	mws     []Middleware
	logger  *slog.Logger
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithMiddleware appends middlewares; the first one listed runs first.
func WithMiddleware(mws ...Middleware) Option {
	return func(d *Dispatcher) {
		d.mws = append(d.mws, mws...)
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a Dispatcher for engine.
func NewDispatcher(engine Conversation, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.handler = Chain(d.dispatch, d.mws...)
	return d
}

// Handle runs ev through the middleware chain and the engine.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) ([]Message, error) {
	return d.handler(ctx, ev)
}

// Prompts exposes the engine's message catalog to middlewares and transports.
func (d *Dispatcher) Prompts() conversation.Prompts {
	return d.engine.Prompts()
}

func (d *Dispatcher) dispatch(ctx context.Context, ev Event) ([]Message, error) {
	prompts := d.engine.Prompts()

	var (
		reply domain.Reply
		err   error
	)
	switch ev.Kind {
	case EventCommand:
		switch normalizeCommand(ev.Command) {
		case CommandStart:
			return []Message{{Text: prompts.Greeting}}, nil
		case CommandHelp:
			return []Message{{Text: prompts.Help}}, nil
		case CommandProtocol:
			reply, err = d.engine.Start(ctx, ev.UserID)
		case CommandCancel:
			reply, err = d.engine.Cancel(ctx, ev.UserID)
		default:
			return []Message{{Text: prompts.Help}}, fmt.Errorf("%w: unknown command %q", domain.ErrInvalidInput, ev.Command)
		}
	case EventText:
		reply, err = d.engine.HandleText(ctx, ev.UserID, ev.Text)
	case EventVoice:
		reply, err = d.engine.HandleAudio(ctx, ev.UserID, ev.Audio)
	case EventTranscript:
		reply, err = d.engine.HandleRecognizedAudio(ctx, ev.UserID, ev.List, ev.Text)
	default:
		return []Message{{Text: prompts.Failure}}, fmt.Errorf("%w: unsupported event kind %d", domain.ErrInvalidInput, ev.Kind)
	}

	return toMessages(reply, prompts), err
}

// toMessages renders a Reply. A reply without a prompt (store failure, lock
// timeout) falls back to the generic failure message.
func toMessages(reply domain.Reply, prompts conversation.Prompts) []Message {
	var out []Message
	if reply.Action != nil {
		out = append(out, Message{
			Document: reply.Action.Document,
			FileName: reply.Action.FileName,
		})
	}
	text := reply.Prompt
	if text == "" {
		text = prompts.Failure
	}
	return append(out, Message{Text: text})
}

func normalizeCommand(cmd string) string {
	cmd = strings.TrimPrefix(strings.TrimSpace(cmd), "/")
	// Telegram-style "/start@my_bot".
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

// ParseText turns a raw line into a command or text event.
func ParseText(userID int64, line string) Event {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "/") {
		name := trimmed
		if i := strings.IndexAny(trimmed, " \t"); i >= 0 {
			name = trimmed[:i]
		}
		return Event{UserID: userID, Kind: EventCommand, Command: normalizeCommand(name)}
	}
	return Event{UserID: userID, Kind: EventText, Text: line}
}
