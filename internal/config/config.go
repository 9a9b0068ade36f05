// Package config reads the service configuration from the environment.
// A .env file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jason-s-yu/codeduel/internal/cache"
	"github.com/jason-s-yu/codeduel/internal/database"
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// LogFormat is "text" or "json".
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	// AllowedOrigins lists browser origins that may call the API with cookies. A "*" entry
	// opens CORS to every origin but without credentials.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	Postgres database.Config `envPrefix:"PG_"`
	Redis    cache.Config    `envPrefix:"REDIS_"`
	Executor ExecutorConfig  `envPrefix:"EXECUTOR_"`
	Battle   BattleConfig    `envPrefix:"BATTLE_"`
	Auth     AuthConfig

	ProblemsFile    string        `env:"PROBLEMS_FILE"`
	ProblemCacheTTL time.Duration `env:"PROBLEM_CACHE_TTL" envDefault:"10m"`
}

type ExecutorConfig struct {
	// Kind is "piston" or "docker".
	Kind      string        `env:"KIND" envDefault:"piston"`
	PistonURL string        `env:"PISTON_URL" envDefault:"http://localhost:2000"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"15s"`

	DockerMemory string  `env:"DOCKER_MEMORY" envDefault:"256m"`
	DockerCPUs   float64 `env:"DOCKER_CPUS" envDefault:"0.5"`
	DockerPids   int64   `env:"DOCKER_PIDS" envDefault:"64"`
}

type BattleConfig struct {
	FirstCorrectMode string        `env:"FIRST_CORRECT_MODE" envDefault:"informational"`
	AutoAdvance      bool          `env:"AUTO_ADVANCE" envDefault:"true"`
	BotProfiles      string        `env:"BOT_PROFILES"`
	RoomTTL          time.Duration `env:"ROOM_TTL" envDefault:"30m"`
	ReapInterval     time.Duration `env:"REAP_INTERVAL" envDefault:"1m"`
	SubmitTimeout    time.Duration `env:"SUBMIT_TIMEOUT" envDefault:"2m"`
}

type AuthConfig struct {
	// TokenExpire is a Go duration, or "never"/"0" for tokens without an exp claim.
	TokenExpire    string `env:"TOKEN_EXPIRE_TIME" envDefault:"72h"`
	PrivateKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`
	PublicKeyPath  string `env:"JWT_PUBLIC_KEY_PATH"`
}

// Production reports whether the service runs with production settings.
func (c *Config) Production() bool { return c.Env == "production" }

// Load parses the environment into a Config and validates the enumerated settings.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.Executor.Kind {
	case "piston", "docker":
	default:
		return nil, fmt.Errorf("EXECUTOR_KIND must be piston or docker, got %q", cfg.Executor.Kind)
	}
	switch cfg.Battle.FirstCorrectMode {
	case "informational", "end_round":
	default:
		return nil, fmt.Errorf("BATTLE_FIRST_CORRECT_MODE must be informational or end_round, got %q", cfg.Battle.FirstCorrectMode)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	return &cfg, nil
}
