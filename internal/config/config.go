package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers selectable under store.driver.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env string `yaml:"env"`
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		TickInterval   string   `yaml:"tick_interval"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Store struct {
		Driver      string `yaml:"driver"`
		SnapshotTTL string `yaml:"snapshot_ttl"`
	} `yaml:"store"`
	Quiz struct {
		TTL             string  `yaml:"ttl"`
		DefaultMinutes  int     `yaml:"default_minutes"`
		DefaultCorrect  float64 `yaml:"default_correct"`
		DefaultNegative float64 `yaml:"default_negative"`
	} `yaml:"quiz"`
	Auth struct {
		Secret   string `yaml:"secret"`
		Issuer   string `yaml:"issuer"`
		TokenTTL string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Telegram struct {
		Token   string  `yaml:"token"`
		Debug   bool    `yaml:"debug"`
		Admins  []int64 `yaml:"admins"`
		Timeout int     `yaml:"timeout"`
	} `yaml:"telegram"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg := Config{Env: "development"}
	cfg.Server.Port = "8080"
	cfg.Server.TickInterval = "1s"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.TTL = "24h"
	cfg.SQLite.Path = "quizbook.db"
	cfg.Store.Driver = DriverMemory
	cfg.Store.SnapshotTTL = "72h"
	cfg.Quiz.TTL = "5m"
	cfg.Quiz.DefaultMinutes = 25
	cfg.Quiz.DefaultCorrect = 3
	cfg.Quiz.DefaultNegative = 1
	cfg.Auth.Issuer = "quizbook"
	cfg.Auth.TokenTTL = "720h"
	cfg.Telegram.Timeout = 60
	cfg.Log.Level = "info"
	return cfg
}

// Load reads YAML config from path on top of Default. Secrets may be
// overridden by QUIZ_AUTH_SECRET and TELEGRAM_BOT_TOKEN.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// FromEnv returns Default with environment overrides applied.
func FromEnv() Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("QUIZ_AUTH_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("QUIZ_ENV"); v != "" {
		c.Env = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
