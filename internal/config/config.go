package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultHashSecret is the token secret used when none is configured. It is
// public, so tokens signed with it prove nothing.
const DefaultHashSecret = "dev-hash-secret"

type Config struct {
	Addr       string        `env:"IDEABOARD_ADDR"`
	AppID      string        `env:"IDEABOARD_APP_ID"      envDefault:"math-club-ideas-board-v1"`
	Backend    string        `env:"IDEABOARD_BACKEND"     envDefault:"sqlite"`
	DBPath     string        `env:"IDEABOARD_DB"          envDefault:"ideaboard.db"`
	HashSecret string        `env:"IDEABOARD_HASH_SECRET" envDefault:"dev-hash-secret"`
	TokenTTL   time.Duration `env:"IDEABOARD_TOKEN_TTL"   envDefault:"720h"`
	RawHTML    bool          `env:"IDEABOARD_RAW_HTML"    envDefault:"false"`
	PageSize   int           `env:"IDEABOARD_PAGE_SIZE"   envDefault:"10"`
	Postgres   Postgres
	MongoDB    MongoDB
	RateLimits RateLimits
	Log        Log

	// Set at build time, not from the environment.
	Version   string
	Commit    string
	BuildTime string
}

type Postgres struct {
	URL string `env:"IDEABOARD_POSTGRES_URL"`
}

type MongoDB struct {
	URI      string `env:"IDEABOARD_MONGODB_URI"`
	Database string `env:"IDEABOARD_MONGODB_DB" envDefault:"ideaboard"`
}

type RateLimits struct {
	SubmitPerMinute int `env:"IDEABOARD_RL_SUBMIT_PER_MIN" envDefault:"10"`
	VotePerMinute   int `env:"IDEABOARD_RL_VOTE_PER_MIN"   envDefault:"120"`
	RatePerMinute   int `env:"IDEABOARD_RL_RATE_PER_MIN"   envDefault:"60"`
}

type Log struct {
	Level  string `env:"IDEABOARD_LOG_LEVEL"  envDefault:"info"`
	Format string `env:"IDEABOARD_LOG_FORMAT" envDefault:"text"`
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.Addr = ":" + port
		} else {
			cfg.Addr = ":8080"
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Backend {
	case "sqlite":
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("IDEABOARD_POSTGRES_URL is required for the postgres backend")
		}
	case "mongodb":
		if c.MongoDB.URI == "" {
			return fmt.Errorf("IDEABOARD_MONGODB_URI is required for the mongodb backend")
		}
	default:
		return fmt.Errorf("unknown backend %q (want sqlite, postgres or mongodb)", c.Backend)
	}
	if c.AppID == "" {
		return fmt.Errorf("IDEABOARD_APP_ID cannot be empty")
	}
	return nil
}

// UsesDefaultSecret reports whether tokens are signed with the built-in
// development secret.
func (c Config) UsesDefaultSecret() bool {
	return c.HashSecret == DefaultHashSecret
}

// NewLogger builds the process logger described by the Log settings.
func (l Log) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
