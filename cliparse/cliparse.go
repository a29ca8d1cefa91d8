// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/danielhkuo/bestworst/scaling"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	Alpha        float64
	Ridge        float64
	FitTimeout   time.Duration
	SessionIdle  time.Duration
	CORSOrigin   string
}

// LoadDotEnv loads .env from the working directory if present.
// Existing environment variables win over the file.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// ParseFlags validates flags and fills unset values from the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("bestworst", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.CORSOrigin, "cors-origin", "", "Allowed CORS origin (default: echo request origin)")

	// Model settings
	fs.Float64Var(&cfg.Alpha, "alpha", 0, "Online learning rate in (0, 1)")
	fs.Float64Var(&cfg.Ridge, "ridge", -1, "L2 penalty of the final ranking fit")
	fs.DurationVar(&cfg.FitTimeout, "fit-timeout", 0, "Time limit of one ranking fit")
	fs.DurationVar(&cfg.SessionIdle, "session-idle", 0, "Evict online sessions idle for longer than this")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}

	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = os.Getenv("CORS_ORIGIN")
	}

	if cfg.Alpha == 0 {
		cfg.Alpha = scaling.DefaultAlpha
		if v := os.Getenv("BWS_ALPHA"); v != "" {
			alpha, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return Config{}, errors.New("invalid BWS_ALPHA env variable")
			}
			cfg.Alpha = alpha
		}
	}
	if !(cfg.Alpha > 0 && cfg.Alpha < 1) {
		return Config{}, fmt.Errorf("alpha must be in (0, 1), got %v", cfg.Alpha)
	}

	if cfg.Ridge < 0 {
		cfg.Ridge = scaling.DefaultRidge
		if v := os.Getenv("BWS_RIDGE"); v != "" {
			ridge, err := strconv.ParseFloat(v, 64)
			if err != nil || ridge < 0 {
				return Config{}, errors.New("invalid BWS_RIDGE env variable")
			}
			cfg.Ridge = ridge
		}
	}

	if cfg.FitTimeout == 0 {
		cfg.FitTimeout = 10 * time.Second
		if v := os.Getenv("BWS_FIT_TIMEOUT"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return Config{}, errors.New("invalid BWS_FIT_TIMEOUT env variable")
			}
			cfg.FitTimeout = d
		}
	}
	if cfg.FitTimeout < 0 {
		return Config{}, errors.New("fit timeout must be positive")
	}

	if cfg.SessionIdle == 0 {
		cfg.SessionIdle = 30 * time.Minute
		if v := os.Getenv("BWS_SESSION_IDLE"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return Config{}, errors.New("invalid BWS_SESSION_IDLE env variable")
			}
			cfg.SessionIdle = d
		}
	}
	if cfg.SessionIdle < 0 {
		return Config{}, errors.New("session idle timeout must be positive")
	}

	return cfg, nil
}
