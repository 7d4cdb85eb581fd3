package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type StoreDriver string

const (
	StoreMemory   StoreDriver = "memory"
	StoreSQLite   StoreDriver = "sqlite"
	StorePostgres StoreDriver = "postgres"
)

type Config struct {
	HTTPAddr       string `env:"TOURNEY_HTTP_ADDR" envDefault:":8080"`
	LogLevel       string `env:"TOURNEY_LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool   `env:"TOURNEY_LOG_DEVELOPMENT" envDefault:"false"`

	StoreDriver StoreDriver `env:"TOURNEY_STORE_DRIVER" envDefault:"memory"`
	SQLitePath  string      `env:"TOURNEY_SQLITE_PATH" envDefault:"data/tournaments.db"`
	PostgresDSN string      `env:"TOURNEY_POSTGRES_DSN"`
	// Optional. When set, store writes are fanned out to other processes.
	RedisURL   string `env:"TOURNEY_REDIS_URL"`
	LobbyLimit int    `env:"TOURNEY_LOBBY_LIMIT" envDefault:"20"`

	PeerOutboxSize int           `env:"TOURNEY_PEER_OUTBOX_SIZE" envDefault:"16"`
	ReadTimeout    time.Duration `env:"TOURNEY_READ_TIMEOUT" envDefault:"10m"`
	WriteTimeout   time.Duration `env:"TOURNEY_WRITE_TIMEOUT" envDefault:"3s"`
}

// Load reads an optional .env file into the environment and then parses it.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("TOURNEY_POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.LobbyLimit <= 0 {
		return fmt.Errorf("TOURNEY_LOBBY_LIMIT must be positive")
	}
	if c.PeerOutboxSize <= 0 {
		return fmt.Errorf("TOURNEY_PEER_OUTBOX_SIZE must be positive")
	}
	return nil
}
