package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEpoch is launch day; day index 1 starts at this instant.
const DefaultEpoch = "2025-01-01T00:00:00Z"

const (
	defaultPoolSize        = 210
	defaultQuestionsPerDay = 10
	defaultLeaderboardSize = 20
	defaultRedisChannel    = "trivia:leaderboard"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`
	Postgres struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"postgres"`
	Quiz struct {
		Epoch           string `yaml:"epoch"`
		PoolSize        int    `yaml:"pool_size"`
		QuestionsPerDay int    `yaml:"questions_per_day"`
		LeaderboardSize int    `yaml:"leaderboard_size"`
	} `yaml:"quiz"`
	Admin struct {
		Secret string `yaml:"secret"`
	} `yaml:"admin"`
	Log struct {
		Level string `yaml:"level"`
		Env   string `yaml:"env"`
	} `yaml:"log"`
}

// Load reads YAML config from path, applies env overrides and defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns a config with only defaults applied.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Postgres.URL = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Redis.Addr = v
	}
	if v, ok := lookup("REDIS_PASSWORD"); ok && v != "" {
		c.Redis.Password = v
	}
	if v, ok := lookup("REDIS_DB"); ok && v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v, ok := lookup("ADMIN_SECRET"); ok && v != "" {
		c.Admin.Secret = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("APP_ENV"); ok && v != "" {
		c.Log.Env = v
	}
}

func (c *Config) applyDefaults() {
	if c.Quiz.Epoch == "" {
		c.Quiz.Epoch = DefaultEpoch
	}
	if c.Quiz.PoolSize == 0 {
		c.Quiz.PoolSize = defaultPoolSize
	}
	if c.Quiz.QuestionsPerDay == 0 {
		c.Quiz.QuestionsPerDay = defaultQuestionsPerDay
	}
	if c.Quiz.LeaderboardSize == 0 {
		c.Quiz.LeaderboardSize = defaultLeaderboardSize
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = defaultRedisChannel
	}
}

// Validate rejects quiz settings that would break the rotation.
func (c Config) Validate() error {
	if _, err := c.EpochTime(); err != nil {
		return err
	}
	if c.Quiz.PoolSize < 1 {
		return fmt.Errorf("quiz.pool_size must be positive, got %d", c.Quiz.PoolSize)
	}
	if c.Quiz.QuestionsPerDay < 1 {
		return fmt.Errorf("quiz.questions_per_day must be positive, got %d", c.Quiz.QuestionsPerDay)
	}
	if c.Quiz.LeaderboardSize < 1 {
		return fmt.Errorf("quiz.leaderboard_size must be positive, got %d", c.Quiz.LeaderboardSize)
	}
	return nil
}

// EpochTime parses quiz.epoch as an absolute RFC3339 instant.
func (c Config) EpochTime() (time.Time, error) {
	raw := c.Quiz.Epoch
	if raw == "" {
		raw = DefaultEpoch
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("quiz.epoch: %w", err)
	}
	return t.UTC(), nil
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
