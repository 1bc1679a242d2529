package whisper_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/aretw0/minutes/pkg/adapters/whisper"
	"github.com/aretw0/minutes/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, name string, args ...string) (string, error) {
	return m.ExecuteInDir(ctx, "", name, args...)
}

func (m *mockExecutor) ExecuteInDir(ctx context.Context, dir, name string, args ...string) (string, error) {
	called := m.Called(name, args)
	return called.String(0), called.Error(1)
}

// argAfter returns the value following flag in args.
func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func newTranscriber(t *testing.T, exec *mockExecutor, ffmpeg string) *whisper.Transcriber {
	t.Helper()
	tr, err := whisper.New(whisper.Config{
		BinaryPath: "whisper-cli",
		ModelPath:  "models/ggml-large.bin",
		FFmpegPath: ffmpeg,
		TempDir:    t.TempDir(),
	}, whisper.WithExecutor(exec))
	require.NoError(t, err)
	return tr
}

func TestTranscribe_Pipeline(t *testing.T) {
	exec := new(mockExecutor)
	exec.On("ExecuteInDir", "ffmpeg", mock.Anything).Return("", nil).Once()
	exec.On("ExecuteInDir", "whisper-cli", mock.Anything).
		Run(func(args mock.Arguments) {
			prefix := argAfter(args.Get(1).([]string), "--output-file")
			require.NoError(t, os.WriteFile(prefix+".txt", []byte(" Who owns the budget?\n Next steps.\n"), 0o600))
		}).
		Return("", nil).Once()

	text, err := newTranscriber(t, exec, "ffmpeg").Transcribe(context.Background(), []byte("OggS..."))
	require.NoError(t, err)
	assert.Equal(t, "Who owns the budget? Next steps.", text)
	exec.AssertExpectations(t)
}

func TestTranscribe_WithoutFFmpeg(t *testing.T) {
	exec := new(mockExecutor)
	exec.On("ExecuteInDir", "whisper-cli", mock.Anything).
		Run(func(args mock.Arguments) {
			list := args.Get(1).([]string)
			assert.Contains(t, argAfter(list, "-f"), "voice.ogg")
			require.NoError(t, os.WriteFile(argAfter(list, "--output-file")+".txt", []byte("hello"), 0o600))
		}).
		Return("", nil).Once()

	text, err := newTranscriber(t, exec, "").Transcribe(context.Background(), []byte("RIFF"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestTranscribe_Failures(t *testing.T) {
	t.Run("empty audio", func(t *testing.T) {
		_, err := newTranscriber(t, new(mockExecutor), "").Transcribe(context.Background(), nil)
		assert.ErrorIs(t, err, domain.ErrTranscriptionFailed)
	})

	t.Run("ffmpeg fails", func(t *testing.T) {
		exec := new(mockExecutor)
		exec.On("ExecuteInDir", "ffmpeg", mock.Anything).Return("", errors.New("bad codec")).Once()
		_, err := newTranscriber(t, exec, "ffmpeg").Transcribe(context.Background(), []byte("x"))
		assert.ErrorIs(t, err, domain.ErrTranscriptionFailed)
		assert.Contains(t, err.Error(), "bad codec")
	})

	t.Run("silence", func(t *testing.T) {
		exec := new(mockExecutor)
		exec.On("ExecuteInDir", "whisper-cli", mock.Anything).
			Run(func(args mock.Arguments) {
				require.NoError(t, os.WriteFile(argAfter(args.Get(1).([]string), "--output-file")+".txt", []byte("\n \n"), 0o600))
			}).
			Return("", nil).Once()
		_, err := newTranscriber(t, exec, "").Transcribe(context.Background(), []byte("x"))
		assert.ErrorIs(t, err, domain.ErrTranscriptionFailed)
	})
}

func TestNew_RequiresPaths(t *testing.T) {
	_, err := whisper.New(whisper.Config{ModelPath: "m"})
	assert.Error(t, err)
	_, err = whisper.New(whisper.Config{BinaryPath: "b"})
	assert.Error(t, err)
}
