// Package http exposes the bot over a small JSON API built on chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/minutes/internal/logging"
	"github.com/aretw0/minutes/pkg/bot"
	"github.com/aretw0/minutes/pkg/domain"
	"github.com/aretw0/minutes/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MaxBodyBytes bounds request bodies; voice uploads are base64 inside JSON.
const MaxBodyBytes = 20 << 20

// Bot handles inbound events.
type Bot interface {
	Handle(ctx context.Context, ev bot.Event) ([]bot.Message, error)
}

// Sessions reads session snapshots.
type Sessions interface {
	Session(ctx context.Context, userID int64) (*domain.Session, error)
}

// EventRequest is the body of POST /v1/users/{userID}/events.
type EventRequest struct {
	Kind     string `json:"kind"`
	Username string `json:"username,omitempty"`
	Command  string `json:"command,omitempty"`
	Text     string `json:"text,omitempty"`
	// Audio is base64 in JSON.
	Audio []byte `json:"audio,omitempty"`
	List  string `json:"list,omitempty"`
}

// EventResponse carries the replies for one event.
type EventResponse struct {
	Messages []bot.Message `json:"messages"`
	State    string        `json:"state"`
	Error    string        `json:"error,omitempty"`
}

// SessionResponse is the body of GET /v1/users/{userID}/session.
type SessionResponse struct {
	UserID    int64           `json:"user_id"`
	State     string          `json:"state"`
	Metadata  domain.Metadata `json:"metadata"`
	Questions []string        `json:"questions,omitempty"`
	Decisions []string        `json:"decisions,omitempty"`
}

// Server serves the JSON API.
type Server struct {
	bot      Bot
	sessions Sessions
	authz    ports.Authorizer
	streams  *StreamManager
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAuthorizer guards the session endpoints. Events are guarded by the bot's own middleware.
func WithAuthorizer(a ports.Authorizer) Option {
	return func(s *Server) { s.authz = a }
}

// WithMetrics serves g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a Server.
func NewServer(b Bot, sessions Sessions, opts ...Option) *Server {
	s := &Server{
		bot:      b,
		sessions: sessions,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams = NewStreamManager(s.logger)
	return s
}

// Streams returns the SSE fan-out.
func (s *Server) Streams() *StreamManager {
	return s.streams
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1/users/{userID}", func(r chi.Router) {
		r.Post("/events", s.postEvent)
		r.Get("/session", s.getSession)
		r.Delete("/session", s.deleteSession)
		r.Get("/stream", s.stream)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	var body EventRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		s.logger.WarnContext(r.Context(), "event: invalid request body", "err", err)
		return
	}

	ev, err := toEvent(userID, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs, err := s.bot.Handle(r.Context(), ev)
	resp := EventResponse{Messages: msgs, State: s.stateOf(r.Context(), userID)}
	if resp.Messages == nil {
		resp.Messages = []bot.Message{}
	}
	if err != nil {
		resp.Error = err.Error()
	}

	if payload, mErr := json.Marshal(resp); mErr == nil {
		s.streams.Broadcast(userID, string(payload))
	}
	writeJSON(w, statusFor(err), resp)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok || !s.allowed(w, r, userID) {
		return
	}

	sess, err := s.sessions.Session(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveSession) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "session lookup failed", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		UserID:    sess.UserID,
		State:     sess.State.String(),
		Metadata:  sess.Metadata,
		Questions: sess.Questions,
		Decisions: sess.Decisions,
	})
}

// deleteSession cancels through the bot so the same middleware chain applies.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	msgs, err := s.bot.Handle(r.Context(), bot.Event{UserID: userID, Kind: bot.EventCommand, Command: bot.CommandCancel})
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, domain.ErrNoActiveSession):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeJSON(w, statusFor(err), EventResponse{Messages: msgs, State: s.stateOf(r.Context(), userID), Error: err.Error()})
	}
}

// stream sends every reply produced for the user as an SSE data frame.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok || !s.allowed(w, r, userID) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(userID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

func (s *Server) allowed(w http.ResponseWriter, r *http.Request, userID int64) bool {
	if s.authz == nil || s.authz.IsAllowed(r.Context(), userID) {
		return true
	}
	writeError(w, http.StatusForbidden, domain.ErrUnauthorized.Error())
	return false
}

func (s *Server) stateOf(ctx context.Context, userID int64) string {
	sess, err := s.sessions.Session(ctx, userID)
	if err != nil {
		return domain.StateNone.String()
	}
	return sess.State.String()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func toEvent(userID int64, body EventRequest) (bot.Event, error) {
	ev := bot.Event{UserID: userID, Username: body.Username}
	switch body.Kind {
	case "command":
		ev.Kind = bot.EventCommand
		ev.Command = body.Command
	case "text":
		ev.Kind = bot.EventText
		ev.Text = body.Text
	case "voice":
		ev.Kind = bot.EventVoice
		ev.Audio = body.Audio
	case "transcript":
		kind, err := domain.ParseListKind(body.List)
		if err != nil {
			return bot.Event{}, err
		}
		ev.Kind = bot.EventTranscript
		ev.Text = body.Text
		ev.List = kind
	default:
		return bot.Event{}, fmt.Errorf("unknown event kind %q", body.Kind)
	}
	return ev, nil
}

// statusFor maps a handling error to an HTTP status. Workflow errors still
// carry a reply for the user, so they are not server errors.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNoActiveSession):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case bot.IsRecoverable(err):
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
