package minutes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/minutes/internal/config"
	"github.com/aretw0/minutes/internal/logging"
	"github.com/aretw0/minutes/pkg/adapters/console"
	"github.com/aretw0/minutes/pkg/adapters/docx"
	"github.com/aretw0/minutes/pkg/adapters/file"
	"github.com/aretw0/minutes/pkg/adapters/gemini"
	minuteshttp "github.com/aretw0/minutes/pkg/adapters/http"
	minutesmcp "github.com/aretw0/minutes/pkg/adapters/mcp"
	"github.com/aretw0/minutes/pkg/adapters/memory"
	"github.com/aretw0/minutes/pkg/adapters/redis"
	"github.com/aretw0/minutes/pkg/adapters/sqlite"
	"github.com/aretw0/minutes/pkg/adapters/whisper"
	"github.com/aretw0/minutes/pkg/auth"
	"github.com/aretw0/minutes/pkg/bot"
	"github.com/aretw0/minutes/pkg/conversation"
	"github.com/aretw0/minutes/pkg/domain"
	"github.com/aretw0/minutes/pkg/normalizer"
	"github.com/aretw0/minutes/pkg/observability"
	"github.com/aretw0/minutes/pkg/persistence/middleware"
	"github.com/aretw0/minutes/pkg/ports"
	"github.com/aretw0/minutes/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// App is the assembled bot: storage, engine, authorization and dispatch.
// Transports are built on demand from it.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Metrics   *observability.Metrics
	Sessions  *session.Manager
	Engine    *conversation.Engine
	Bot       *bot.Dispatcher
	AllowList *auth.AllowList

	store   ports.SessionStore
	locker  ports.DistributedLocker
	closers []func() error

	transcriber ports.Transcriber
	formatter   ports.Formatter
	renderer    ports.Renderer
}

// Option customizes New.
type Option func(*App)

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.Logger = l }
}

// WithStore replaces the configured store backend.
func WithStore(s ports.SessionStore) Option {
	return func(a *App) { a.store = s }
}

// WithTranscriber replaces the whisper transcriber.
func WithTranscriber(t ports.Transcriber) Option {
	return func(a *App) { a.transcriber = t }
}

// WithFormatter replaces the Gemini formatter.
func WithFormatter(f ports.Formatter) Option {
	return func(a *App) { a.formatter = f }
}

// WithRenderer replaces the DOCX renderer.
func WithRenderer(r ports.Renderer) Option {
	return func(a *App) { a.renderer = r }
}

// New assembles an App from cfg. Call Close when done.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.Logger == nil {
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		a.Logger = logging.NewWithWriter(os.Stderr, level, cfg.Log.Format)
	}

	a.Registry = prometheus.NewRegistry()
	a.Metrics = observability.NewMetrics(a.Registry)

	if err := a.openStore(); err != nil {
		return nil, err
	}
	store, err := a.wrapStore(a.store)
	if err != nil {
		a.Close()
		return nil, err
	}

	managerOpts := []session.Option{
		session.WithLockTTL(cfg.Store.LockTTL),
		session.WithLogger(a.Logger),
	}
	if a.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(a.locker))
	}
	a.Sessions = session.NewManager(store, managerOpts...)

	if err := a.buildCollaborators(); err != nil {
		a.Close()
		return nil, err
	}
	a.Engine = conversation.New(a.Sessions, a.engineOptions()...)

	a.AllowList = auth.NewAllowList(cfg.Auth.AllowedUsers, auth.WithLogger(a.Logger))
	if cfg.Auth.AllowListFile != "" {
		if err := a.AllowList.LoadFile(cfg.Auth.AllowListFile); err != nil {
			a.Close()
			return nil, err
		}
	}

	prompts := a.Engine.Prompts()
	notifier := &auth.LogNotifier{AdminID: cfg.Auth.AdminID, Logger: a.Logger}
	a.Bot = bot.NewDispatcher(a.Engine,
		bot.WithLogger(a.Logger),
		bot.WithMiddleware(
			bot.Recover(prompts.Failure, a.Logger),
			bot.Logging(a.Logger),
			bot.RequireAuthorization(a.AllowList, notifier, prompts.Unauthorized, a.Logger),
		),
	)
	return a, nil
}

func (a *App) openStore() error {
	if a.store != nil {
		return nil
	}
	sc := a.Config.Store
	switch sc.Backend {
	case config.BackendMemory:
		a.store = memory.NewStore()
	case config.BackendFile:
		a.store = file.New(sc.Path)
	case config.BackendSQLite:
		s, err := sqlite.New(sc.SQLitePath)
		if err != nil {
			return err
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
	case config.BackendRedis:
		s := redis.New(sc.Redis.Addr, sc.Redis.Password, sc.Redis.DB,
			redis.WithPrefix(sc.Redis.Prefix),
			redis.WithTTL(sc.Redis.TTL),
		)
		a.store = s
		a.locker = redis.NewLocker(s.Client(), s.Prefix())
		a.closers = append(a.closers, s.Close)
	default:
		return fmt.Errorf("unknown store backend %q", sc.Backend)
	}
	return nil
}

// wrapStore applies metrics (outermost), audit and encryption (innermost),
// so the audit log sees plaintext and metrics include crypto time.
func (a *App) wrapStore(base ports.SessionStore) (ports.SessionStore, error) {
	sc := a.Config.Store
	mws := []middleware.Middleware{middleware.NewMetricsMiddleware(a.Metrics)}
	if sc.Audit.Enabled {
		mws = append(mws, middleware.NewAuditMiddleware(a.Logger, sc.Audit.Mask))
	}
	if sc.EncryptionKey != "" {
		active, err := middleware.ParseKey(sc.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for _, k := range sc.FallbackKeys {
			key, err := middleware.ParseKey(k)
			if err != nil {
				return nil, fmt.Errorf("fallback key: %w", err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}
	return middleware.Chain(base, mws...), nil
}

// buildCollaborators creates the adapters the configuration enables. Without
// whisper, only transcripts are accepted; without Gemini, the normalizer
// formats lists on its own.
func (a *App) buildCollaborators() error {
	cfg := a.Config
	if a.transcriber == nil && cfg.Whisper.BinaryPath != "" && cfg.Whisper.ModelPath != "" {
		t, err := whisper.New(cfg.Whisper, whisper.WithLogger(a.Logger))
		if err != nil {
			return err
		}
		a.transcriber = t
	}
	if a.formatter == nil && len(cfg.Gemini.APIKeys) > 0 {
		f, err := gemini.New(cfg.Gemini, gemini.WithLogger(a.Logger))
		if err != nil && !errors.Is(err, gemini.ErrNoAPIKeys) {
			return err
		}
		if f != nil {
			a.formatter = f
		}
	}
	if a.renderer == nil {
		a.renderer = docx.New(cfg.Docx, docx.WithLogger(a.Logger))
	}
	return nil
}

func (a *App) engineOptions() []conversation.Option {
	cc := a.Config.Conversation
	opts := []conversation.Option{
		conversation.WithLogger(a.Logger),
		conversation.WithLifecycleHooks(observability.Hooks(a.Logger, a.Metrics)),
		conversation.WithPrompts(cc.Prompts),
		conversation.WithAffirmations(cc.Affirmations),
		conversation.WithInputLimits(cc.MaxTextSize, cc.MaxTranscriptSize),
		conversation.WithKeywords(map[domain.ListKind]string{
			domain.KindQuestions: cc.QuestionKeyword,
			domain.KindDecisions: cc.DecisionKeyword,
		}),
		conversation.WithRenderer(a.renderer),
	}
	if len(cc.Ordinals) > 0 {
		n := normalizer.New(
			normalizer.WithVocabulary(normalizer.Vocabulary{Ordinals: cc.Ordinals}),
			normalizer.WithLogger(a.Logger),
		)
		opts = append(opts, conversation.WithNormalizer(n))
	}
	if a.transcriber != nil {
		opts = append(opts, conversation.WithTranscriber(a.transcriber))
	}
	if a.formatter != nil {
		opts = append(opts, conversation.WithFormatter(a.formatter))
	}
	return opts
}

// Store returns the fully wrapped session store.
func (a *App) Store() ports.SessionStore {
	return a.Sessions.Store()
}

// HTTPServer builds the JSON API over the bot.
func (a *App) HTTPServer() *minuteshttp.Server {
	return minuteshttp.NewServer(a.Bot, a.Engine,
		minuteshttp.WithAuthorizer(a.AllowList),
		minuteshttp.WithMetrics(a.Registry),
		minuteshttp.WithLogger(a.Logger),
	)
}

// MCPServer builds the MCP tool server over the bot.
func (a *App) MCPServer() *minutesmcp.Server {
	return minutesmcp.NewServer(a.Bot, a.Engine, strings.TrimSpace(Version), minutesmcp.WithLogger(a.Logger))
}

// Console builds the local REPL speaking as the configured user.
func (a *App) Console(opts ...console.Option) *console.Console {
	base := []console.Option{
		console.WithUserID(a.Config.Console.UserID),
		console.WithDocumentDir(a.Config.Console.DocumentDir),
		console.WithLogger(a.Logger),
	}
	return console.New(a.Bot, a.Engine, append(base, opts...)...)
}

// WatchAllowList reloads the allow-list file on change until ctx is done.
// It returns nil at once when no file is configured.
func (a *App) WatchAllowList(ctx context.Context) error {
	if a.Config.Auth.AllowListFile == "" {
		return nil
	}
	err := a.AllowList.Watch(ctx, a.Config.Auth.AllowListFile)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases store connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
