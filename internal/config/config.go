package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port string

	RedisAddr string
	RedisPass string
	RedisDB   int

	JWTSecret string

	// AdminIDs are the chat user ids allowed to approve requests and
	// rig round outcomes.
	AdminIDs []int64

	// RoundInterval is the betting window length; RoundCooldown is how
	// long the scheduler backs off after a failed open/resolve.
	RoundInterval time.Duration
	RoundCooldown time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:           getEnv("ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:     os.Getenv("REDIS_PASS"),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
		RoundInterval: 60 * time.Second,
		RoundCooldown: 10 * time.Second,
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %v", v, err)
		}
		cfg.RedisDB = db
	}

	if v := os.Getenv("ROUND_INTERVAL"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid ROUND_INTERVAL %q", v)
		}
		cfg.RoundInterval = time.Duration(secs) * time.Second
	}

	if v := os.Getenv("ROUND_COOLDOWN"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid ROUND_COOLDOWN %q", v)
		}
		cfg.RoundCooldown = time.Duration(secs) * time.Second
	}

	// ADMIN_IDS is a comma separated list of chat user ids.
	if v := os.Getenv("ADMIN_IDS"); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid admin id %q: %v", part, err)
			}
			cfg.AdminIDs = append(cfg.AdminIDs, id)
		}
	}

	return cfg, nil
}

func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
