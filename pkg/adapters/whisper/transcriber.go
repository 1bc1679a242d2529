// Package whisper transcribes voice messages with the whisper.cpp command line.
package whisper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aretw0/minutes/internal/logging"
	"github.com/aretw0/minutes/pkg/domain"
	"github.com/aretw0/minutes/pkg/executor"
)

// Config locates the binaries and the model.
type Config struct {
	BinaryPath string `yaml:"binary_path" mapstructure:"binary_path"`
	ModelPath  string `yaml:"model_path" mapstructure:"model_path"`
	Language   string `yaml:"language" mapstructure:"language"`
	Threads    int    `yaml:"threads" mapstructure:"threads"`
	// FFmpegPath converts the upload to 16 kHz mono WAV first. Empty skips
	// the conversion, which only works when uploads are already WAV.
	FFmpegPath string `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	TempDir    string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// Transcriber implements ports.Transcriber.
type Transcriber struct {
	cfg    Config
	exec   executor.Executor
	logger *slog.Logger
}

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithExecutor replaces the process runner.
func WithExecutor(e executor.Executor) Option {
	return func(t *Transcriber) { t.exec = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transcriber) { t.logger = l }
}

// New creates a Transcriber. BinaryPath and ModelPath are required.
func New(cfg Config, opts ...Option) (*Transcriber, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("whisper: binary_path is required")
	}
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("whisper: model_path is required")
	}
	if cfg.Language == "" {
		cfg.Language = "auto"
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 4
	}

	t := &Transcriber{
		cfg:    cfg,
		exec:   executor.New(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Transcribe writes audio to a scratch directory, runs the pipeline there and
// returns the recognized text. The directory is removed afterwards.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio", domain.ErrTranscriptionFailed)
	}

	dir, err := os.MkdirTemp(t.cfg.TempDir, "minutes-voice-")
	if err != nil {
		return "", fmt.Errorf("%w: scratch dir: %v", domain.ErrTranscriptionFailed, err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "voice.ogg")
	if err := os.WriteFile(input, audio, 0o600); err != nil {
		return "", fmt.Errorf("%w: write audio: %v", domain.ErrTranscriptionFailed, err)
	}

	wav, err := t.convert(ctx, dir, input)
	if err != nil {
		return "", err
	}

	prefix := filepath.Join(dir, "transcript")
	args := []string{
		"-m", t.cfg.ModelPath,
		"-f", wav,
		"-otxt",
		"-nt",
		"-l", t.cfg.Language,
		"-t", strconv.Itoa(t.cfg.Threads),
		"--output-file", prefix,
	}
	if _, err := t.exec.ExecuteInDir(ctx, dir, t.cfg.BinaryPath, args...); err != nil {
		return "", fmt.Errorf("%w: whisper: %v", domain.ErrTranscriptionFailed, err)
	}

	raw, err := os.ReadFile(prefix + ".txt")
	if err != nil {
		return "", fmt.Errorf("%w: read transcript: %v", domain.ErrTranscriptionFailed, err)
	}

	text := joinLines(string(raw))
	if text == "" {
		return "", fmt.Errorf("%w: no speech recognized", domain.ErrTranscriptionFailed)
	}
	t.logger.DebugContext(ctx, "voice transcribed", "bytes", len(audio), "chars", len(text))
	return text, nil
}

func (t *Transcriber) convert(ctx context.Context, dir, input string) (string, error) {
	if t.cfg.FFmpegPath == "" {
		return input, nil
	}
	wav := filepath.Join(dir, "voice.wav")
	args := []string{
		"-i", input,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y",
		wav,
	}
	if _, err := t.exec.ExecuteInDir(ctx, dir, t.cfg.FFmpegPath, args...); err != nil {
		return "", fmt.Errorf("%w: ffmpeg: %v", domain.ErrTranscriptionFailed, err)
	}
	return wav, nil
}

// joinLines collapses whisper's per-segment lines into one paragraph.
func joinLines(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
