package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAckTimeout bounds how long a publisher waits for a subscriber to
	// acknowledge delivery before treating it as an ack timeout.
	DefaultAckTimeout = 2 * time.Second
	// DefaultSmallBlind is the small blind posted at the start of a hand.
	DefaultSmallBlind = 5
	// DefaultBigBlind is the big blind posted at the start of a hand.
	DefaultBigBlind = 10
	// DefaultMaxBet bounds the size of any single bet or raise.
	DefaultMaxBet = 1_000_000
	// DefaultMaxTableLimit caps the chip stack a player may sit down with.
	DefaultMaxTableLimit = 1_000_000
	// DefaultMaxPlayers bounds how many seats a table exposes.
	DefaultMaxPlayers = 9

	// DefaultLogLevel controls verbosity for service logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "poker-broker.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables for the poker service.
type Config struct {
	ServiceID     string
	AckTimeout    time.Duration
	SmallBlind    int64
	BigBlind      int64
	MaxBet        int64
	MaxTableLimit int64
	MaxPlayers    int
	Logging       LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the service configuration from environment variables, applying
// sane defaults and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		ServiceID:     strings.TrimSpace(os.Getenv("POKER_SERVICE_ID")),
		AckTimeout:    DefaultAckTimeout,
		SmallBlind:    DefaultSmallBlind,
		BigBlind:      DefaultBigBlind,
		MaxBet:        DefaultMaxBet,
		MaxTableLimit: DefaultMaxTableLimit,
		MaxPlayers:    DefaultMaxPlayers,
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("POKER_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("POKER_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("POKER_ACK_TIMEOUT")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("POKER_ACK_TIMEOUT must be a positive duration, got %q", raw))
		} else {
			cfg.AckTimeout = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKER_SMALL_BLIND")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("POKER_SMALL_BLIND must be a positive integer, got %q", raw))
		} else {
			cfg.SmallBlind = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKER_BIG_BLIND")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("POKER_BIG_BLIND must be a positive integer, got %q", raw))
		} else {
			cfg.BigBlind = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKER_MAX_BET")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("POKER_MAX_BET must be a positive integer, got %q", raw))
		} else {
			cfg.MaxBet = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKER_MAX_TABLE_LIMIT")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("POKER_MAX_TABLE_LIMIT must be a positive integer, got %q", raw))
		} else {
			cfg.MaxTableLimit = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKER_MAX_PLAYERS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 2 {
			problems = append(problems, fmt.Sprintf("POKER_MAX_PLAYERS must be an integer >= 2, got %q", raw))
		} else {
			cfg.MaxPlayers = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKER_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("POKER_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKER_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("POKER_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKER_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("POKER_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKER_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("POKER_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if cfg.MaxBet > 0 && cfg.BigBlind > cfg.MaxBet {
		problems = append(problems, "POKER_BIG_BLIND must not exceed POKER_MAX_BET")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
