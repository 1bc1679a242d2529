// Package config loads the application configuration from a YAML file, a
// .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/minutes/internal/logging"
	"github.com/aretw0/minutes/pkg/adapters/docx"
	"github.com/aretw0/minutes/pkg/adapters/gemini"
	"github.com/aretw0/minutes/pkg/adapters/whisper"
	"github.com/aretw0/minutes/pkg/conversation"
	"github.com/aretw0/minutes/pkg/persistence/middleware"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config is the root configuration.
type Config struct {
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Auth         AuthConfig         `yaml:"auth" mapstructure:"auth"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	MCP          MCPConfig          `yaml:"mcp" mapstructure:"mcp"`
	Console      ConsoleConfig      `yaml:"console" mapstructure:"console"`
	Conversation ConversationConfig `yaml:"conversation" mapstructure:"conversation"`
	Whisper      whisper.Config     `yaml:"whisper" mapstructure:"whisper"`
	Gemini       gemini.Config      `yaml:"gemini" mapstructure:"gemini"`
	Docx         docx.Config        `yaml:"docx" mapstructure:"docx"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type StoreConfig struct {
	Backend    string        `yaml:"backend" mapstructure:"backend"`
	Path       string        `yaml:"path" mapstructure:"path"`
	SQLitePath string        `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Redis      RedisConfig   `yaml:"redis" mapstructure:"redis"`
	LockTTL    time.Duration `yaml:"lock_ttl" mapstructure:"lock_ttl"`
	// EncryptionKey enables AES-GCM at rest: 32 bytes, base64 or hex.
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key"`
	// FallbackKeys decrypt records written before a key rotation.
	FallbackKeys []string    `yaml:"fallback_keys" mapstructure:"fallback_keys"`
	Audit        AuditConfig `yaml:"audit" mapstructure:"audit"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	Prefix   string        `yaml:"prefix" mapstructure:"prefix"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

type AuditConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Mask lists regular expressions matched against metadata field names.
	Mask []string `yaml:"mask" mapstructure:"mask"`
}

type AuthConfig struct {
	AllowedUsers  []int64 `yaml:"allowed_users" mapstructure:"allowed_users"`
	AllowListFile string  `yaml:"allow_list_file" mapstructure:"allow_list_file"`
	AdminID       int64   `yaml:"admin_id" mapstructure:"admin_id"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type MCPConfig struct {
	Transport string `yaml:"transport" mapstructure:"transport"`
	Addr      string `yaml:"addr" mapstructure:"addr"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
}

type ConsoleConfig struct {
	UserID      int64  `yaml:"user_id" mapstructure:"user_id"`
	DocumentDir string `yaml:"document_dir" mapstructure:"document_dir"`
}

type ConversationConfig struct {
	Prompts           conversation.Prompts `yaml:"prompts" mapstructure:"prompts"`
	Affirmations      []string             `yaml:"affirmations" mapstructure:"affirmations"`
	QuestionKeyword   string               `yaml:"question_keyword" mapstructure:"question_keyword"`
	DecisionKeyword   string               `yaml:"decision_keyword" mapstructure:"decision_keyword"`
	Ordinals          []string             `yaml:"ordinals" mapstructure:"ordinals"`
	MaxTextSize       int                  `yaml:"max_text_size" mapstructure:"max_text_size"`
	MaxTranscriptSize int                  `yaml:"max_transcript_size" mapstructure:"max_transcript_size"`
}

// Default returns a configuration that runs locally with no external services.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{
			Backend:    BackendFile,
			Path:       ".minutes/sessions",
			SQLitePath: ".minutes/sessions.db",
			LockTTL:    30 * time.Second,
			Redis:      RedisConfig{Addr: "localhost:6379", Prefix: "minutes:session:"},
			Audit:      AuditConfig{Mask: []string{"client_name"}},
		},
		HTTP:    HTTPConfig{Addr: ":8080", ShutdownTimeout: 5 * time.Second},
		MCP:     MCPConfig{Transport: "stdio", Addr: ":8081", BaseURL: "http://localhost:8081"},
		Console: ConsoleConfig{UserID: 1, DocumentDir: "."},
		Conversation: ConversationConfig{
			MaxTextSize:       conversation.DefaultMaxTextSize,
			MaxTranscriptSize: conversation.DefaultMaxTranscriptSize,
		},
		Whisper: whisper.Config{Language: "auto", Threads: 4, FFmpegPath: "ffmpeg"},
		Gemini:  gemini.Config{Model: gemini.DefaultModel},
		Docx:    docx.DefaultConfig(),
	}
}

// envKeys maps environment variables onto dotted config keys.
var envKeys = map[string]string{
	"MINUTES_LOG_LEVEL":        "log.level",
	"MINUTES_LOG_FORMAT":       "log.format",
	"MINUTES_STORE_BACKEND":    "store.backend",
	"MINUTES_STORE_PATH":       "store.path",
	"MINUTES_SQLITE_PATH":      "store.sqlite_path",
	"MINUTES_LOCK_TTL":         "store.lock_ttl",
	"MINUTES_ENCRYPTION_KEY":   "store.encryption_key",
	"MINUTES_REDIS_ADDR":       "store.redis.addr",
	"MINUTES_REDIS_PASSWORD":   "store.redis.password",
	"MINUTES_REDIS_DB":         "store.redis.db",
	"MINUTES_SESSION_TTL":      "store.redis.ttl",
	"MINUTES_HTTP_ADDR":        "http.addr",
	"MINUTES_MCP_TRANSPORT":    "mcp.transport",
	"MINUTES_MCP_ADDR":         "mcp.addr",
	"MINUTES_ALLOW_LIST_FILE":  "auth.allow_list_file",
	"ALLOWED_USERS":            "auth.allowed_users",
	"ADMIN_ID":                 "auth.admin_id",
	"WHISPER_MODEL":            "whisper.model_path",
	"MINUTES_WHISPER_BIN":      "whisper.binary_path",
	"MINUTES_WHISPER_LANGUAGE": "whisper.language",
	"MINUTES_FFMPEG_BIN":       "whisper.ffmpeg_path",
	"GEMINI_API_KEYS":          "gemini.api_keys",
	"GEMINI_MODEL":             "gemini.model",
}

var listKeys = map[string]struct{}{
	"auth.allowed_users": {},
	"gemini.api_keys":    {},
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then variables from .env, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := decode(tree, &cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := decode(envTree(os.LookupEnv), &cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late, at first use.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.Path == "" {
			return errors.New("store.path is required for the file backend")
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if c.Store.LockTTL <= 0 {
		return errors.New("store.lock_ttl must be positive")
	}
	if c.Store.EncryptionKey != "" {
		if _, err := middleware.ParseKey(c.Store.EncryptionKey); err != nil {
			return fmt.Errorf("store.encryption_key: %w", err)
		}
	}
	for i, k := range c.Store.FallbackKeys {
		if _, err := middleware.ParseKey(k); err != nil {
			return fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
		}
	}

	for _, p := range c.Store.Audit.Mask {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("store.audit.mask: %w", err)
		}
	}

	switch c.MCP.Transport {
	case "stdio", "sse":
	default:
		return fmt.Errorf("mcp.transport must be stdio or sse, got %q", c.MCP.Transport)
	}
	if c.HTTP.Addr == "" {
		return errors.New("http.addr cannot be empty")
	}
	return nil
}

func decode(input any, out *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		// Lists replace defaults instead of being merged index by index.
		ZeroFields: true,
		Result:     out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// loadDotEnv exports variables from path without overriding the environment.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// envTree turns set environment variables into a nested map keyed like the YAML file.
func envTree(lookup func(string) (string, bool)) map[string]any {
	tree := map[string]any{}
	for env, key := range envKeys {
		value, ok := lookup(env)
		if !ok {
			continue
		}
		parts := strings.Split(key, ".")
		node := tree
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = cleanValue(key, value)
	}
	return tree
}

// cleanValue trims the value, and each element of comma separated lists.
func cleanValue(key, value string) string {
	if _, ok := listKeys[key]; !ok {
		return strings.TrimSpace(value)
	}
	parts := strings.Split(value, ",")
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ",")
}
