package conversation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/minutes/pkg/adapters/memory"
	"github.com/aretw0/minutes/pkg/conversation"
	"github.com/aretw0/minutes/pkg/domain"
	"github.com/aretw0/minutes/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const user int64 = 1001

var metadataAnswers = []string{
	"Kickoff", "2024-05-01", "P-17", "2024", "Interior", "Office", "ACME",
}

func newEngine(t *testing.T, opts ...conversation.Option) (*conversation.Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return conversation.New(session.NewManager(store), opts...), store
}

// fillMetadata drives the engine through every collecting_* text state.
func fillMetadata(t *testing.T, e *conversation.Engine) {
	t.Helper()
	ctx := context.Background()
	for _, answer := range metadataAnswers {
		_, err := e.HandleText(ctx, user, answer)
		require.NoError(t, err)
	}
}

func TestEngine_FullScenario(t *testing.T) {
	renderer := new(namedRenderer)
	renderer.On("Render", mock.Anything,
		mock.MatchedBy(func(md domain.Metadata) bool { return md.Complete() }),
		[]string{"Visualization.", "Furniture."},
		[]string{"Approve the layout.", "Order samples."},
	).Return([]byte("%DOC%"), nil).Once()

	var transitions []string
	var closed []bool
	hooks := domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			transitions = append(transitions, e.To.String())
		},
		OnSessionClosed: func(_ context.Context, e *domain.SessionEvent) {
			closed = append(closed, e.Completed)
		},
	}
	e, _ := newEngine(t, conversation.WithRenderer(renderer), conversation.WithLifecycleHooks(hooks))
	ctx := context.Background()

	reply, err := e.Start(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCollectingName, reply.State)
	assert.Equal(t, e.Prompts().ProtocolName, reply.Prompt)

	fillMetadata(t, e)

	s, err := e.Session(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCollectingQuestionsAudio, s.State)
	assert.Equal(t, domain.Metadata{
		ProtocolName: "Kickoff", Date: "2024-05-01", ProjectNumber: "P-17", ContractYear: "2024",
		ProjectType: "Interior", ObjectName: "Office", ClientName: "ACME",
	}, s.Metadata)

	reply, err = e.HandleRecognizedAudio(ctx, user, domain.KindQuestions, "Question one. Visualization. Question two. Furniture.")
	require.NoError(t, err)
	assert.Equal(t, domain.StateConfirmingQuestions, reply.State)
	assert.Contains(t, reply.Prompt, "1. Visualization.\n2. Furniture.\n")

	reply, err = e.HandleText(ctx, user, "yes")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCollectingDecisionsAudio, reply.State)

	reply, err = e.HandleRecognizedAudio(ctx, user, domain.KindDecisions, "Decision one. Approve the layout. Decision two. Order samples.")
	require.NoError(t, err)
	assert.Equal(t, domain.StateConfirmingDecisions, reply.State)

	reply, err = e.HandleText(ctx, user, "Yes")
	require.NoError(t, err)
	assert.Equal(t, domain.StateNone, reply.State)
	require.NotNil(t, reply.Action, "exactly one render action")
	assert.True(t, reply.Action.Metadata.Complete())
	assert.Len(t, reply.Action.Questions, 2)
	assert.Len(t, reply.Action.Decisions, 2)
	assert.Equal(t, []byte("%DOC%"), reply.Action.Document)
	assert.Equal(t, "protocol_P-17.docx", reply.Action.FileName)

	_, err = e.Session(ctx, user)
	assert.ErrorIs(t, err, domain.ErrNoActiveSession, "session must be gone after rendering")

	renderer.AssertExpectations(t)
	assert.Equal(t, []bool{true}, closed)
	assert.Equal(t, "rendering_document", transitions[len(transitions)-2])
	assert.Equal(t, "none", transitions[len(transitions)-1])
}

func TestEngine_StartIsIdempotent(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	_, err := e.Start(ctx, user)
	require.NoError(t, err)
	fillMetadata(t, e)

	reply, err := e.Start(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCollectingName, reply.State)

	s, err := e.Session(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, domain.NewSession(user), s, "no residue from the previous session")
}

func TestEngine_NoActiveSession(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	reply, err := e.HandleText(ctx, user, "hello")
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
	assert.Equal(t, domain.StateNone, reply.State)
	assert.Equal(t, e.Prompts().NoSession, reply.Prompt)

	_, err = e.HandleRecognizedAudio(ctx, user, domain.KindQuestions, "x")
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)

	_, err = e.Cancel(ctx, user)
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestEngine_RejectsEmptyText(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)

	for _, input := range []string{"", "   ", "\n\t", "\x00\x07"} {
		reply, err := e.HandleText(ctx, user, input)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "input %q", input)
		assert.Equal(t, domain.StateCollectingName, reply.State)
		assert.Contains(t, reply.Prompt, e.Prompts().ProtocolName)
	}

	s, err := e.Session(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, s.Metadata.ProtocolName)
}

func TestEngine_StoresTextVerbatim(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)

	_, err = e.HandleText(ctx, user, "  Протокол №5 ")
	require.NoError(t, err)

	s, err := e.Session(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "  Протокол №5 ", s.Metadata.ProtocolName)
}

func TestEngine_RejectsOversizedText(t *testing.T) {
	e, _ := newEngine(t, conversation.WithInputLimits(8, 0))
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)

	_, err = e.HandleText(ctx, user, "far too long for the limit")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorIs(t, err, conversation.ErrInputTooLarge)
}

func TestEngine_ConfirmationRefusedReturnsToAudio(t *testing.T) {
	for _, kind := range []domain.ListKind{domain.KindQuestions, domain.KindDecisions} {
		t.Run(string(kind), func(t *testing.T) {
			e, store := newEngine(t)
			ctx := context.Background()

			seeded := domain.NewSession(user)
			seeded.Metadata = domain.Metadata{ProtocolName: "Kickoff", ClientName: "ACME"}
			seeded.State = domain.AudioState(kind)
			require.NoError(t, store.Save(ctx, seeded))

			_, err := e.HandleRecognizedAudio(ctx, user, kind, "One thing. Another thing.")
			require.NoError(t, err)

			reply, err := e.HandleText(ctx, user, "no, that's wrong")
			require.NoError(t, err)
			assert.Equal(t, domain.AudioState(kind), reply.State)

			s, err := e.Session(ctx, user)
			require.NoError(t, err)
			assert.Equal(t, seeded.Metadata, s.Metadata, "metadata untouched by the back-edge")
		})
	}
}

func TestEngine_AffirmationMatching(t *testing.T) {
	e, _ := newEngine(t)
	for _, in := range []string{"yes", "YES", " Ok ", "okay.", "Correct!", "fine"} {
		assert.True(t, e.IsAffirmative(in), in)
	}
	for _, in := range []string{"", "no", "yes please", "yeah"} {
		assert.False(t, e.IsAffirmative(in), in)
	}

	ru, _ := newEngine(t, conversation.WithAffirmations([]string{"да", "хорошо", "верно", "ок"}))
	assert.True(t, ru.IsAffirmative("Да"))
	assert.False(t, ru.IsAffirmative("yes"))
}

// Every input in every state lands on the successor, a back-edge, or stays put.
func TestEngine_OnlyDocumentedEdges(t *testing.T) {
	inputs := []string{"", "yes", "no", "hello", "Question one. Budget."}

	for _, from := range domain.States() {
		for _, input := range inputs {
			t.Run(fmt.Sprintf("%s/%q", from, input), func(t *testing.T) {
				renderer := new(MockRenderer)
				renderer.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]byte("doc"), nil)
				e, store := newEngine(t, conversation.WithRenderer(renderer))
				ctx := context.Background()

				seeded := domain.NewSession(user)
				seeded.State = from
				require.NoError(t, store.Save(ctx, seeded))

				reply, _ := e.HandleText(ctx, user, input)

				tr := domain.Transitions[from]
				allowed := []domain.State{from, tr.Next}
				if tr.Retry != domain.StateNone {
					allowed = append(allowed, tr.Retry)
				}
				if from == domain.StateConfirmingDecisions || from == domain.StateRenderingDocument {
					allowed = append(allowed, domain.StateNone)
				}
				assert.Contains(t, allowed, reply.State)
			})
		}
	}
}

func TestEngine_FormatterOutputIsParsed(t *testing.T) {
	formatter := new(MockFormatter)
	formatter.On("Format", mock.Anything, "raw words", domain.KindQuestions).
		Return("Here you go:\n1. **Lighting**\n2. Flooring\n", nil).Once()

	e, store := newEngine(t, conversation.WithFormatter(formatter))
	ctx := context.Background()
	seeded := domain.NewSession(user)
	seeded.State = domain.StateCollectingQuestionsAudio
	require.NoError(t, store.Save(ctx, seeded))

	reply, err := e.HandleRecognizedAudio(ctx, user, domain.KindQuestions, "raw words")
	require.NoError(t, err)
	assert.Contains(t, reply.Prompt, "1. Lighting\n2. Flooring\n")

	s, err := e.Session(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lighting", "Flooring"}, s.Questions)
	formatter.AssertExpectations(t)
}

func TestEngine_FormatterFailureFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		err      error
	}{
		{"error", "", fmt.Errorf("%w: quota", domain.ErrFormattingFailed)},
		{"plain error", "", errors.New("connection reset")},
		{"empty output", "  \n", nil},
		{"not a list", "I cannot help with that.", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := new(MockFormatter)
			formatter.On("Format", mock.Anything, mock.Anything, domain.KindDecisions).Return(tt.markdown, tt.err)

			var failures []error
			hooks := domain.LifecycleHooks{
				OnCollaboratorError: func(_ context.Context, e *domain.CollaboratorEvent) {
					failures = append(failures, e.Err)
				},
			}
			e, store := newEngine(t, conversation.WithFormatter(formatter), conversation.WithLifecycleHooks(hooks))
			ctx := context.Background()
			seeded := domain.NewSession(user)
			seeded.State = domain.StateCollectingDecisionsAudio
			require.NoError(t, store.Save(ctx, seeded))

			reply, err := e.HandleRecognizedAudio(ctx, user, domain.KindDecisions, "Decision one. Ship it.")
			require.NoError(t, err, "formatting failures never surface")
			assert.Equal(t, domain.StateConfirmingDecisions, reply.State)

			s, err := e.Session(ctx, user)
			require.NoError(t, err)
			assert.Equal(t, []string{"Ship it."}, s.Decisions)

			require.Len(t, failures, 1)
			assert.ErrorIs(t, failures[0], domain.ErrFormattingFailed)
		})
	}
}

func TestEngine_AudioKindMismatch(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()
	seeded := domain.NewSession(user)
	seeded.State = domain.StateCollectingQuestionsAudio
	require.NoError(t, store.Save(ctx, seeded))

	reply, err := e.HandleRecognizedAudio(ctx, user, domain.KindDecisions, "Decision one. Ship.")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, domain.StateCollectingQuestionsAudio, reply.State)

	reply, err = e.HandleText(ctx, user, "typing instead")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, domain.StateCollectingQuestionsAudio, reply.State)
	assert.Contains(t, reply.Prompt, e.Prompts().AudioExpected)
}

func TestEngine_HandleAudio(t *testing.T) {
	transcriber := new(MockTranscriber)
	transcriber.On("Transcribe", mock.Anything, []byte("ogg-1")).Return("Question one. Parking.", nil).Once()
	transcriber.On("Transcribe", mock.Anything, []byte("ogg-2")).Return("", errors.New("whisper crashed")).Once()
	transcriber.On("Transcribe", mock.Anything, []byte("ogg-3")).Return("   ", nil).Once()

	e, store := newEngine(t, conversation.WithTranscriber(transcriber))
	ctx := context.Background()
	seeded := domain.NewSession(user)
	seeded.State = domain.StateCollectingQuestionsAudio
	require.NoError(t, store.Save(ctx, seeded))

	reply, err := e.HandleAudio(ctx, user, []byte("ogg-2"))
	assert.ErrorIs(t, err, domain.ErrTranscriptionFailed)
	assert.Equal(t, domain.StateCollectingQuestionsAudio, reply.State)
	assert.Contains(t, reply.Prompt, e.Prompts().TranscriptionFailed)

	reply, err = e.HandleAudio(ctx, user, []byte("ogg-3"))
	assert.ErrorIs(t, err, domain.ErrTranscriptionFailed, "empty transcript counts as failure")
	assert.Equal(t, domain.StateCollectingQuestionsAudio, reply.State)

	reply, err = e.HandleAudio(ctx, user, []byte("ogg-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.StateConfirmingQuestions, reply.State)

	s, err := e.Session(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []string{"Parking."}, s.Questions)

	_, err = e.HandleAudio(ctx, user, []byte("ogg-4"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "confirmation state does not take audio")
	transcriber.AssertExpectations(t)
}

func TestEngine_HandleAudioWithoutTranscriber(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()
	seeded := domain.NewSession(user)
	seeded.State = domain.StateCollectingDecisionsAudio
	require.NoError(t, store.Save(ctx, seeded))

	_, err := e.HandleAudio(ctx, user, []byte("ogg"))
	assert.ErrorIs(t, err, domain.ErrTranscriptionFailed)
}

func TestEngine_RenderFailureKeepsSession(t *testing.T) {
	renderer := new(MockRenderer)
	renderer.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("font missing")).Once()
	renderer.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]byte("doc"), nil).Once()

	e, store := newEngine(t, conversation.WithRenderer(renderer))
	ctx := context.Background()
	seeded := domain.NewSession(user)
	seeded.State = domain.StateConfirmingDecisions
	seeded.Metadata.ProtocolName = "Kickoff"
	seeded.Questions = []string{"Q"}
	seeded.Decisions = []string{"D"}
	require.NoError(t, store.Save(ctx, seeded))

	reply, err := e.HandleText(ctx, user, "ok")
	assert.ErrorIs(t, err, domain.ErrRenderFailed)
	assert.Equal(t, domain.StateRenderingDocument, reply.State)
	assert.Nil(t, reply.Action)
	assert.Equal(t, e.Prompts().RenderFailed, reply.Prompt)

	s, err := e.Session(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, domain.StateRenderingDocument, s.State)
	assert.Equal(t, []string{"Q"}, s.Questions, "no data loss on render failure")

	reply, err = e.RetryRender(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, reply.Action)
	assert.Equal(t, conversation.DefaultFileName, reply.Action.FileName)

	_, err = e.Session(ctx, user)
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
	renderer.AssertExpectations(t)
}

func TestEngine_TextInRenderingRetries(t *testing.T) {
	renderer := new(MockRenderer)
	renderer.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]byte("doc"), nil).Once()

	e, store := newEngine(t, conversation.WithRenderer(renderer))
	ctx := context.Background()
	seeded := domain.NewSession(user)
	seeded.State = domain.StateRenderingDocument
	require.NoError(t, store.Save(ctx, seeded))

	reply, err := e.HandleText(ctx, user, "again please")
	require.NoError(t, err)
	assert.NotNil(t, reply.Action)
}

func TestEngine_RetryRenderWrongState(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)

	_, err = e.RetryRender(ctx, user)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEngine_Cancel(t *testing.T) {
	var closed []bool
	e, _ := newEngine(t, conversation.WithLifecycleHooks(domain.LifecycleHooks{
		OnSessionClosed: func(_ context.Context, e *domain.SessionEvent) { closed = append(closed, e.Completed) },
	}))
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)

	reply, err := e.Cancel(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNone, reply.State)
	assert.Equal(t, []bool{false}, closed)

	_, err = e.Session(ctx, user)
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestEngine_CustomPromptsKeepDefaults(t *testing.T) {
	e, _ := newEngine(t, conversation.WithPrompts(conversation.Prompts{ProtocolName: "Название протокола?"}))
	reply, err := e.Start(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "Название протокола?", reply.Prompt)
	assert.Equal(t, conversation.DefaultPrompts().Date, e.Prompts().Date)
}

func TestEngine_ConcurrentEventsDoNotLoseUpdates(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range metadataAnswers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.HandleText(ctx, user, fmt.Sprintf("answer-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	s, err := e.Session(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCollectingQuestionsAudio, s.State)
	assert.True(t, s.Metadata.Complete(), "each event must observe the previous one")
}

func TestEngine_DistinctUsersAreIndependent(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for u := int64(1); u <= 8; u++ {
		wg.Add(1)
		go func(u int64) {
			defer wg.Done()
			_, err := e.Start(ctx, u)
			assert.NoError(t, err)
			_, err = e.HandleText(ctx, u, fmt.Sprintf("name-%d", u))
			assert.NoError(t, err)
		}(u)
	}
	wg.Wait()

	for u := int64(1); u <= 8; u++ {
		s, err := e.Session(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("name-%d", u), s.Metadata.ProtocolName)
		assert.Equal(t, domain.StateCollectingDate, s.State)
	}
}
