// Package console runs the bot as a line-oriented REPL for local use.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/minutes/internal/logging"
	"github.com/aretw0/minutes/pkg/bot"
	"github.com/aretw0/minutes/pkg/domain"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Bot handles inbound events.
type Bot interface {
	Handle(ctx context.Context, ev bot.Event) ([]bot.Message, error)
}

// Sessions reads session snapshots.
type Sessions interface {
	Session(ctx context.Context, userID int64) (*domain.Session, error)
}

// Console reads commands from in and writes replies to out.
type Console struct {
	bot      Bot
	sessions Sessions
	userID   int64
	in       io.Reader
	out      io.Writer
	docDir   string
	render   func(string) (string, error)
	banner   string
	logger   *slog.Logger
}

// Option configures a Console.
type Option func(*Console)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(c *Console) {
		c.in = in
		c.out = out
	}
}

// WithUserID sets the user the console speaks as.
func WithUserID(id int64) Option {
	return func(c *Console) { c.userID = id }
}

// WithDocumentDir sets where rendered documents are written.
func WithDocumentDir(dir string) Option {
	return func(c *Console) { c.docDir = dir }
}

// WithBanner prints the banner with version on start when out is a terminal.
func WithBanner(version string) Option {
	return func(c *Console) { c.banner = version }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Console) { c.logger = l }
}

// New creates a Console. Markdown replies are rendered with glamour when
// out is a terminal and written verbatim otherwise.
func New(b Bot, sessions Sessions, opts ...Option) *Console {
	c := &Console{
		bot:      b,
		sessions: sessions,
		userID:   1,
		in:       os.Stdin,
		out:      os.Stdout,
		docDir:   ".",
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if isTerminal(c.out) {
		c.render = newRenderer()
	}
	return c
}

// Run processes lines until EOF, "exit", or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	if c.banner != "" && isTerminal(c.out) {
		PrintBanner(c.out, c.banner)
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		c.prompt()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if quit := c.handleLine(ctx, line); quit {
				return nil
			}
		}
	}
}

func (c *Console) prompt() {
	if isTerminal(c.out) {
		fmt.Fprint(c.out, "> ")
	}
}

// handleLine runs one input line and reports whether the console should exit.
func (c *Console) handleLine(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if trimmed == "exit" || trimmed == "quit" {
		return true
	}

	ev, err := c.parse(ctx, trimmed, line)
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
		return false
	}

	msgs, err := c.bot.Handle(ctx, ev)
	if err != nil {
		c.logger.DebugContext(ctx, "console event rejected", "err", err)
	}
	for _, m := range msgs {
		c.print(m)
	}
	return false
}

func (c *Console) parse(ctx context.Context, trimmed, raw string) (bot.Event, error) {
	name, rest, _ := strings.Cut(trimmed, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "/voice":
		if rest == "" {
			return bot.Event{}, errors.New("usage: /voice <file>")
		}
		audio, err := os.ReadFile(rest)
		if err != nil {
			return bot.Event{}, fmt.Errorf("read voice file: %w", err)
		}
		return bot.Event{UserID: c.userID, Kind: bot.EventVoice, Audio: audio}, nil

	case "/transcript":
		if rest == "" {
			return bot.Event{}, errors.New("usage: /transcript <text>")
		}
		return bot.Event{UserID: c.userID, Kind: bot.EventTranscript, List: c.expectedList(ctx), Text: rest}, nil
	}

	ev := bot.ParseText(c.userID, raw)
	return ev, nil
}

// expectedList picks the list the session is currently collecting.
func (c *Console) expectedList(ctx context.Context) domain.ListKind {
	s, err := c.sessions.Session(ctx, c.userID)
	if err != nil {
		return domain.KindQuestions
	}
	if tr, ok := domain.TransitionFor(s.State); ok && tr.Accepts == domain.InputAudio {
		return tr.Kind
	}
	return domain.KindQuestions
}

func (c *Console) print(m bot.Message) {
	if len(m.Document) > 0 {
		path := filepath.Join(c.docDir, m.FileName)
		if err := os.WriteFile(path, m.Document, 0o644); err != nil {
			fmt.Fprintf(c.out, "error: saving document: %v\n", err)
		} else {
			fmt.Fprintf(c.out, "document saved to %s\n", path)
		}
	}
	if m.Text == "" {
		return
	}

	text := m.Text
	if c.render != nil {
		if rendered, err := c.render(text); err == nil {
			text = rendered
		}
	}
	fmt.Fprintln(c.out, strings.TrimRight(text, "\n"))
}

func newRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return nil
	}
	return r.Render
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
