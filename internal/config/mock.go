package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".vocmock/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"vocmock/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-2"`
}

// MockEnv configures the stand-in VOC backend.
type MockEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	// Token, when set, is required as a Bearer token on every request.
	Token string `envconfig:"TOKEN"`

	StorageEnv

	SeedFile     string        `envconfig:"SEED_FILE"`
	FailureRate  float64       `envconfig:"FAILURE_RATE" default:"0"`
	ConflictRate float64       `envconfig:"CONFLICT_RATE" default:"0"`
	Latency      time.Duration `envconfig:"LATENCY" default:"0s"`
}

const mockNamespace = "VOCMOCK"

func LoadMockEnv() (*MockEnv, error) {
	var env MockEnv
	if err := envconfig.Process(mockNamespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	for name, rate := range map[string]float64{"failure": env.FailureRate, "conflict": env.ConflictRate} {
		if rate < 0 || rate > 1 {
			return nil, fmt.Errorf("%s rate must be within [0, 1]: %v", name, rate)
		}
	}
	return &env, nil
}

func (e *MockEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	return parseLevel(e.LogLevel)
}
