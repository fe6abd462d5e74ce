// Package config reads the runtime settings from .env, the environment and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const keyVar = "GEMINI_KEY"

// ErrNoCredentials is returned when no API key is configured.
var ErrNoCredentials = errors.New("no API key configured: set GEMINI_KEY")

type Config struct {
	APIKeys []string `env:"GEMINI_KEY" envSeparator:","`
	Models  []string `env:"JANUS_MODELS" envSeparator:"," envDefault:"gemini-2.5-flash,gemini-2.5-pro,gemini-2.0-flash"`

	StateFile        string `env:"JANUS_STATE_FILE" envDefault:"janus_world_state.json"`
	ChronicleFile    string `env:"JANUS_CHRONICLE_FILE" envDefault:"genesis_chronicle.json"`
	ChronicleBackend string `env:"JANUS_CHRONICLE_BACKEND" envDefault:"json"`

	RequestTimeout   time.Duration `env:"JANUS_REQUEST_TIMEOUT" envDefault:"25s"`
	RateLimitBackoff time.Duration `env:"JANUS_RATE_LIMIT_BACKOFF" envDefault:"1s"`

	MetricStep      float64 `env:"JANUS_METRIC_STEP" envDefault:"0.05"`
	EchoLimit       int     `env:"JANUS_ECHO_LIMIT" envDefault:"10"`
	EchoMinRunes    int     `env:"JANUS_ECHO_MIN_RUNES" envDefault:"12"`
	TricksterChance float64 `env:"JANUS_TRICKSTER_CHANCE" envDefault:"0.3"`
	Seed            int64   `env:"JANUS_SEED"`

	TranscriptDir string        `env:"JANUS_TRANSCRIPT_DIR"`
	MaxTurns      int           `env:"JANUS_MAX_TURNS"`
	OmenFeed      string        `env:"JANUS_OMEN_FEED"`
	OmenChance    float64       `env:"JANUS_OMEN_CHANCE" envDefault:"0.2"`
	TypeDelay     time.Duration `env:"JANUS_TYPE_DELAY"`

	LogLevel slog.Level `env:"JANUS_LOG_LEVEL" envDefault:"INFO"`
}

// Load reads envFile if it exists, parses the environment and applies the
// flags in args on top.
//
// A .env file may repeat GEMINI_KEY on several lines; every occurrence is a
// key. The environment still wins over the file.
func Load(fs *flag.FlagSet, args []string, envFile string) (Config, error) {
	var fileKeys []string
	if envFile != "" {
		_, preset := os.LookupEnv(keyVar)
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
		if !preset {
			keys, err := dotenvKeys(envFile)
			if err != nil {
				return Config{}, err
			}
			fileKeys = keys
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if len(fileKeys) > 0 {
		cfg.APIKeys = fileKeys
	}

	var models string
	fs.StringVar(&cfg.StateFile, "state", cfg.StateFile, "world snapshot file (.json or .yaml)")
	fs.StringVar(&cfg.ChronicleFile, "chronicle", cfg.ChronicleFile, "chronicle file, or redis:// URL for the redis backend")
	fs.StringVar(&cfg.ChronicleBackend, "chronicle-backend", cfg.ChronicleBackend, "chronicle backend (json, sqlite, redis)")
	fs.StringVar(&models, "models", strings.Join(cfg.Models, ","), "comma-separated model priority list")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for reproducibility (0 = random)")
	fs.IntVar(&cfg.MaxTurns, "turns", cfg.MaxTurns, "maximum number of turns (0 = unlimited)")
	fs.StringVar(&cfg.TranscriptDir, "transcript", cfg.TranscriptDir, "directory for the Markdown transcript")
	fs.StringVar(&cfg.OmenFeed, "omens", cfg.OmenFeed, "RSS feed for omens")
	fs.DurationVar(&cfg.TypeDelay, "type-delay", cfg.TypeDelay, "pause per printed rune")
	fs.TextVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (DEBUG, INFO, WARN, ERROR)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Models = splitList(models)
	cfg.APIKeys = splitList(strings.Join(cfg.APIKeys, ","))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if len(c.APIKeys) == 0 {
		return ErrNoCredentials
	}
	if len(c.Models) == 0 {
		return errors.New("no models configured")
	}
	switch c.ChronicleBackend {
	case "json", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown chronicle backend %q", c.ChronicleBackend)
	}
	if c.MetricStep <= 0 || c.MetricStep > 1 {
		return fmt.Errorf("metric step %v out of range (0, 1]", c.MetricStep)
	}
	if c.MaxTurns < 0 {
		return fmt.Errorf("negative turn limit %d", c.MaxTurns)
	}
	return nil
}

// dotenvKeys collects every GEMINI_KEY assignment of the file in order.
// godotenv keeps only the last one.
func dotenvKeys(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var keys []string
	for _, line := range strings.Split(string(data), "\n") {
		vars, err := godotenv.Unmarshal(line)
		if err != nil {
			continue
		}
		if v, ok := vars[keyVar]; ok {
			keys = append(keys, v)
		}
	}
	return keys, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
