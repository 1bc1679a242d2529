// Package gemini formats dictated questions and decisions into numbered lists
// with the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/minutes/internal/logging"
	"github.com/aretw0/minutes/pkg/domain"
	"google.golang.org/genai"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// ErrNoAPIKeys is returned by New without any key.
var ErrNoAPIKeys = errors.New("gemini: at least one API key is required")

const listPrompt = `You are taking the minutes of a meeting. Below is a dictated transcript of the %s discussed.

Rewrite it as a numbered markdown list:
- one item per %s, in the order they were mentioned
- keep the speaker's wording; fix only obvious recognition errors and punctuation
- drop filler words and ordinal markers such as "first" or "second"
- output only the list, with no heading and no commentary

Transcript:
---
%s
---`

// Config holds the API keys and model name.
// Keys are tried in order; a key that hits its quota is rotated out.
type Config struct {
	APIKeys []string `yaml:"api_keys" mapstructure:"api_keys"`
	Model   string   `yaml:"model" mapstructure:"model"`
}

// GenerateFunc sends prompt to model using key and returns the response text.
type GenerateFunc func(ctx context.Context, key, model, prompt string) (string, error)

// Formatter implements ports.Formatter.
type Formatter struct {
	mu         sync.Mutex
	keys       []string
	currentKey int
	model      string
	generate   GenerateFunc
	logger     *slog.Logger
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Formatter) { f.logger = l }
}

// WithGenerateFunc replaces the Gemini call.
func WithGenerateFunc(fn GenerateFunc) Option {
	return func(f *Formatter) { f.generate = fn }
}

// New creates a Formatter.
func New(cfg Config, opts ...Option) (*Formatter, error) {
	var keys []string
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, ErrNoAPIKeys
	}

	f := &Formatter{
		keys:   keys,
		model:  cfg.Model,
		logger: logging.NewNop(),
	}
	if f.model == "" {
		f.model = DefaultModel
	}
	f.generate = newClientCache().generate
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Format asks Gemini for a numbered list of the items in text.
func (f *Formatter) Format(ctx context.Context, text string, kind domain.ListKind) (string, error) {
	prompt := fmt.Sprintf(listPrompt, kind, singular(kind), text)

	var lastErr error
	for range len(f.keys) {
		key, index := f.key()
		out, err := f.generate(ctx, key, f.model, prompt)
		if err != nil {
			if isQuotaError(err) {
				f.logger.WarnContext(ctx, "gemini key rate limited, rotating", "key", index+1)
				f.rotate(index)
				lastErr = err
				continue
			}
			return "", fmt.Errorf("%w: generate content: %v", domain.ErrFormattingFailed, err)
		}

		out = strings.TrimSpace(out)
		if out == "" {
			return "", fmt.Errorf("%w: empty response from Gemini", domain.ErrFormattingFailed)
		}
		return out, nil
	}

	return "", fmt.Errorf("%w: all API keys exhausted: %v", domain.ErrFormattingFailed, lastErr)
}

func (f *Formatter) key() (string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[f.currentKey], f.currentKey
}

// rotate advances past index unless another call already did.
func (f *Formatter) rotate(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentKey == index {
		f.currentKey = (f.currentKey + 1) % len(f.keys)
	}
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func singular(kind domain.ListKind) string {
	switch kind {
	case domain.KindQuestions:
		return "question"
	case domain.KindDecisions:
		return "decision"
	default:
		return "item"
	}
}

// clientCache keeps one genai client per key.
type clientCache struct {
	mu      sync.Mutex
	clients map[string]*genai.Client
}

func newClientCache() *clientCache {
	return &clientCache{clients: make(map[string]*genai.Client)}
}

func (c *clientCache) client(ctx context.Context, key string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[key]; ok {
		return cl, nil
	}
	cl, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	c.clients[key] = cl
	return cl, nil
}

func (c *clientCache) generate(ctx context.Context, key, model, prompt string) (string, error) {
	cl, err := c.client(ctx, key)
	if err != nil {
		return "", err
	}

	result, err := cl.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}
