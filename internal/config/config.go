package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendBolt     = "bolt"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

const (
	defaultNamespace  = "/"
	defaultReplyDelay = 1000 * time.Millisecond
	defaultAvatar     = "default-avatar.svg"
	defaultBoltPath   = "data/chat.db"
	defaultSQLitePath = "data/chat.sqlite"
)

// Config is read once at startup by the entrypoints and passed down.
type Config struct {
	AppEnv         string
	StorageBackend string
	StateTable     string
	BoltPath       string
	SQLitePath     string
	Namespace      string
	ReplyDelay     time.Duration
	DefaultAvatar  string
	ParamPrefix    string
	Username       string
	Assistant      bool
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads the environment. Outside production, files (default ".env") are
// loaded first; a missing file is not an error. Variables already set in the
// process environment win over file values.
func Load(files ...string) (Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load dotenv: %w", err)
		}
	}

	cfg := Config{
		AppEnv:         os.Getenv("APP_ENV"),
		StorageBackend: strings.ToLower(envOr("STORAGE_BACKEND", BackendDynamoDB)),
		StateTable:     os.Getenv("STATE_TABLE"),
		BoltPath:       envOr("BOLT_PATH", defaultBoltPath),
		SQLitePath:     envOr("SQLITE_PATH", defaultSQLitePath),
		Namespace:      envOr("STORAGE_NAMESPACE", defaultNamespace),
		ReplyDelay:     time.Duration(envInt("REPLY_DELAY_MS", int(defaultReplyDelay/time.Millisecond))) * time.Millisecond,
		DefaultAvatar:  envOr("DEFAULT_AVATAR", defaultAvatar),
		ParamPrefix:    strings.TrimRight(os.Getenv("PARAM_PREFIX"), "/"),
		Username:       os.Getenv("CHAT_USERNAME"),
		Assistant:      envBool("ASSISTANT_ONBOARDING", false),
	}
	if cfg.ReplyDelay < 0 {
		cfg.ReplyDelay = defaultReplyDelay
	}
	return cfg, nil
}

// Lookuper resolves optional parameters. *paramstore.Client satisfies it.
type Lookuper interface {
	Lookup(ctx context.Context, name string) (string, bool, error)
}

// ApplyParams overrides fields from parameters under ParamPrefix. Parameters
// that do not exist leave the env value in place.
func (c *Config) ApplyParams(ctx context.Context, l Lookuper) error {
	if c.ParamPrefix == "" {
		return nil
	}
	if l == nil {
		return errors.New("config: lookuper must not be nil")
	}
	for _, p := range []struct {
		name string
		dst  *string
	}{
		{"state_table", &c.StateTable},
		{"storage_namespace", &c.Namespace},
		{"default_avatar", &c.DefaultAvatar},
	} {
		v, ok, err := l.Lookup(ctx, c.ParamPrefix+"/config/"+p.name)
		if err != nil {
			return fmt.Errorf("config: ApplyParams %s: %w", p.name, err)
		}
		if ok && strings.TrimSpace(v) != "" {
			*p.dst = strings.TrimSpace(v)
		}
	}
	return nil
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.StorageBackend {
	case BackendDynamoDB:
		if c.StateTable == "" {
			return errors.New("config: STATE_TABLE is required for the dynamodb backend")
		}
	case BackendBolt:
		if c.BoltPath == "" {
			return errors.New("config: BOLT_PATH is required for the bolt backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("config: SQLITE_PATH is required for the sqlite backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}
