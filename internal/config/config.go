package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Env string `yaml:"env"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	API struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	Gemini struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"gemini"`
	Engine     Engine `yaml:"engine"`
	Generation struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"generation"`
}

// Engine holds session defaults.
type Engine struct {
	PerQuestionSeconds     int    `yaml:"per_question_seconds"`
	QuestionCount          int    `yaml:"question_count"`
	PlacementQuestionCount int    `yaml:"placement_question_count"`
	Difficulty             string `yaml:"difficulty"`
	FallbackEnabled        *bool  `yaml:"fallback_enabled"`
}

// Fallback reports whether local fallback question sets are enabled (default true).
func (e Engine) Fallback() bool {
	return e.FallbackEnabled == nil || *e.FallbackEnabled
}

// Load reads YAML config from path. A missing file yields defaults, so the
// service can run from environment variables alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Log.Env, "APP_ENV")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Postgres.URL, "DATABASE_URL")
	setString(&cfg.API.BaseURL, "API_BASE_URL")
	setString(&cfg.API.Token, "API_TOKEN")
	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	if raw := os.Getenv("QUIZ_FALLBACK_ENABLED"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Engine.FallbackEnabled = &v
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Log.Env == "" {
		cfg.Log.Env = "development"
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-1.5-flash"
	}
	if cfg.Engine.PerQuestionSeconds == 0 {
		cfg.Engine.PerQuestionSeconds = 45
	}
	if cfg.Engine.QuestionCount == 0 {
		cfg.Engine.QuestionCount = 10
	}
	if cfg.Engine.PlacementQuestionCount == 0 {
		cfg.Engine.PlacementQuestionCount = 8
	}
	if cfg.Engine.Difficulty == "" {
		cfg.Engine.Difficulty = "beginner"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
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
