// Package mcp exposes the protocol workflow as Model Context Protocol tools,
// so an assistant can drive a session on a user's behalf.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/minutes/internal/logging"
	"github.com/aretw0/minutes/pkg/bot"
	"github.com/aretw0/minutes/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// WorkflowURI names the resource describing the workflow states.
const WorkflowURI = "minutes://workflow"

// Bot handles inbound events.
type Bot interface {
	Handle(ctx context.Context, ev bot.Event) ([]bot.Message, error)
}

// Sessions reads session snapshots.
type Sessions interface {
	Session(ctx context.Context, userID int64) (*domain.Session, error)
}

// ToolResponse is the structured result of every workflow tool.
type ToolResponse struct {
	State    string        `json:"state" jsonschema_description:"Workflow state after the call"`
	Messages []bot.Message `json:"messages" jsonschema_description:"Replies for the user; documents are base64"`
	Error    string        `json:"error,omitempty" jsonschema_description:"Recoverable workflow error, if any"`
}

// StartArgs are the arguments of start_protocol.
type StartArgs struct {
	UserID int64 `json:"user_id"`
}

// TextArgs are the arguments of send_text.
type TextArgs struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

// TranscriptArgs are the arguments of send_transcript.
type TranscriptArgs struct {
	UserID int64  `json:"user_id"`
	List   string `json:"list"`
	Text   string `json:"text"`
}

// Server wraps the bot and exposes it as an MCP server.
type Server struct {
	bot       Bot
	sessions  Sessions
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new MCP server reporting version.
func NewServer(b Bot, sessions Sessions, version string, opts ...Option) *Server {
	s := &Server{
		bot:       b,
		sessions:  sessions,
		mcpServer: server.NewMCPServer("minutes-mcp", version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, mainly for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	userID := mcp.WithNumber("user_id", mcp.Required(), mcp.Description("Numeric id of the user the session belongs to"))

	s.mcpServer.AddTool(mcp.NewTool("start_protocol",
		mcp.WithDescription("Start a new meeting protocol for the user, discarding any session in progress."),
		userID,
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("send_text",
		mcp.WithDescription("Send a typed reply: a metadata value or a confirmation answer."),
		userID,
		mcp.WithString("text", mcp.Required(), mcp.Description("The reply text")),
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleText))

	s.mcpServer.AddTool(mcp.NewTool("send_transcript",
		mcp.WithDescription("Send the recognized text of a dictated list of questions or decisions."),
		userID,
		mcp.WithString("list", mcp.Required(), mcp.Enum(string(domain.KindQuestions), string(domain.KindDecisions)),
			mcp.Description("Which list the transcript belongs to")),
		mcp.WithString("text", mcp.Required(), mcp.Description("The transcript")),
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleTranscript))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Show the user's session: state, metadata and collected lists."),
		userID,
	), s.handleGetSession)
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args StartArgs) (ToolResponse, error) {
	return s.dispatch(ctx, bot.Event{UserID: args.UserID, Kind: bot.EventCommand, Command: bot.CommandProtocol})
}

func (s *Server) handleText(ctx context.Context, _ mcp.CallToolRequest, args TextArgs) (ToolResponse, error) {
	return s.dispatch(ctx, bot.Event{UserID: args.UserID, Kind: bot.EventText, Text: args.Text})
}

func (s *Server) handleTranscript(ctx context.Context, _ mcp.CallToolRequest, args TranscriptArgs) (ToolResponse, error) {
	kind, err := domain.ParseListKind(args.List)
	if err != nil {
		return ToolResponse{}, err
	}
	return s.dispatch(ctx, bot.Event{UserID: args.UserID, Kind: bot.EventTranscript, List: kind, Text: args.Text})
}

// dispatch reports recoverable workflow errors inside the response, since the
// reply text tells the user what to do next. Anything else fails the call.
func (s *Server) dispatch(ctx context.Context, ev bot.Event) (ToolResponse, error) {
	msgs, err := s.bot.Handle(ctx, ev)
	if err != nil && !bot.IsRecoverable(err) {
		s.logger.ErrorContext(ctx, "MCP tool failed", "user_id", ev.UserID, "err", err)
		return ToolResponse{}, err
	}

	resp := ToolResponse{State: s.stateOf(ctx, ev.UserID), Messages: msgs}
	if resp.Messages == nil {
		resp.Messages = []bot.Message{}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp, nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireFloat("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sess, err := s.sessions.Session(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session lookup failed: %v", err)), nil
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode session: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) stateOf(ctx context.Context, userID int64) string {
	sess, err := s.sessions.Session(ctx, userID)
	if err != nil {
		return domain.StateNone.String()
	}
	return sess.State.String()
}

// workflowStep describes one state for the workflow resource.
type workflowStep struct {
	State   string `json:"state"`
	Accepts string `json:"accepts,omitempty"`
	Field   string `json:"field,omitempty"`
	Next    string `json:"next,omitempty"`
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(WorkflowURI, "Protocol workflow",
		mcp.WithResourceDescription("States of the meeting protocol workflow in order"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(workflow())
		if err != nil {
			return nil, fmt.Errorf("failed to encode workflow: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      WorkflowURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func workflow() []workflowStep {
	var steps []workflowStep
	for _, st := range domain.States() {
		tr, ok := domain.TransitionFor(st)
		if !ok {
			continue
		}
		step := workflowStep{State: st.String(), Accepts: tr.Accepts.String()}
		if tr.Field != domain.FieldNone {
			step.Field = tr.Field.String()
		}
		if tr.Next != domain.StateNone {
			step.Next = tr.Next.String()
		}
		steps = append(steps, step)
	}
	return steps
}
