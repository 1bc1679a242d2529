package conversation_test

import (
	"context"

	"github.com/aretw0/minutes/pkg/domain"
	"github.com/stretchr/testify/mock"
)

type MockFormatter struct {
	mock.Mock
}

func (m *MockFormatter) Format(ctx context.Context, text string, kind domain.ListKind) (string, error) {
	args := m.Called(ctx, text, kind)
	return args.String(0), args.Error(1)
}

type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	args := m.Called(ctx, audio)
	return args.String(0), args.Error(1)
}

type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, metadata domain.Metadata, questions, decisions []string) ([]byte, error) {
	args := m.Called(ctx, metadata, questions, decisions)
	doc, _ := args.Get(0).([]byte)
	return doc, args.Error(1)
}

// namedRenderer also names its output.
type namedRenderer struct {
	MockRenderer
}

func (r *namedRenderer) FileName(md domain.Metadata) string {
	return "protocol_" + md.ProjectNumber + ".docx"
}
