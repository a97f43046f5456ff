package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
}

// BackendEnv points at the VOC REST backend.
type BackendEnv struct {
	URL          string        `envconfig:"BACKEND_URL" default:"http://localhost:8080/api"`
	Token        string        `envconfig:"BACKEND_TOKEN"`
	Timeout      time.Duration `envconfig:"BACKEND_TIMEOUT" default:"30s"`
	ListPageSize int           `envconfig:"LIST_PAGE_SIZE" default:"100"`
}

type BoardEnv struct {
	LockTerminal      bool          `envconfig:"LOCK_TERMINAL" default:"true"`
	RefreshOnConflict bool          `envconfig:"REFRESH_ON_CONFLICT" default:"true"`
	TransitionTimeout time.Duration `envconfig:"TRANSITION_TIMEOUT" default:"30s"`
	SessionIdle       time.Duration `envconfig:"SESSION_IDLE" default:"30m"`
	// OrderedCalls makes a ticket's backend calls wait for the previous one.
	OrderedCalls bool `envconfig:"ORDERED_CALLS" default:"true"`
}

const (
	EventRelayNone  = "none"
	EventRelayRedis = "redis"
)

type EventEnv struct {
	Relay        string `envconfig:"EVENT_RELAY" default:"none"`
	RedisAddr    string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisChannel string `envconfig:"REDIS_CHANNEL" default:"vockanban.events"`
	// JournalDir enables the NDJSON event journal when set.
	JournalDir string `envconfig:"EVENT_JOURNAL_DIR"`
}

type Env struct {
	BaseEnv
	BackendEnv
	BoardEnv
	EventEnv
}

const namespace = "VOCKANBAN"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if err := env.validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *Env) validate() error {
	switch e.Relay {
	case EventRelayNone, EventRelayRedis:
	default:
		return fmt.Errorf("unsupported event relay: %q", e.Relay)
	}
	if e.ListPageSize <= 0 {
		return fmt.Errorf("list page size must be positive: %d", e.ListPageSize)
	}
	return nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	return parseLevel(e.LogLevel)
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelDebug
	}
	return level
}

// ClientEnv configures the operator CLI.
type ClientEnv struct {
	ServerURL string `envconfig:"SERVER_URL" default:"http://localhost:3200"`
	APIKey    string `envconfig:"API_KEY"`
}

func LoadClientEnv() (*ClientEnv, error) {
	var env ClientEnv
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}
