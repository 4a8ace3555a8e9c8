package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Config is built once at startup and handed to each component constructor.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Docling  DoclingConfig  `yaml:"docling"`
	LLM      LLMConfig      `yaml:"llm"`
	Lock     LockConfig     `yaml:"lock"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Merge    MergeConfig    `yaml:"merge"`
	Segment  SegmentConfig  `yaml:"segment"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	CORSOrigins    []string `yaml:"cors_origins,omitempty"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes,omitempty"`
}

type DatabaseConfig struct {
	Backend    string `yaml:"backend"` // "postgres", "badger", "memory"
	URL        string `yaml:"url,omitempty"`
	BadgerPath string `yaml:"badger_path,omitempty"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // "fs", "gcs"
	DataDir string `yaml:"data_dir,omitempty"`
	Bucket  string `yaml:"bucket,omitempty"`
	Prefix  string `yaml:"prefix,omitempty"`
}

type DoclingConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
	MaxRetries     int    `yaml:"max_retries,omitempty"`
	// LocalFallback enables rsc.io/pdf extraction when Docling is unavailable.
	LocalFallback bool `yaml:"local_fallback"`
}

type LLMConfig struct {
	Provider       string  `yaml:"provider"` // "openai", "ollama"
	Model          string  `yaml:"model"`
	BaseURL        string  `yaml:"base_url,omitempty"`
	APIKey         string  `yaml:"api_key,omitempty"`
	TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"`
	MaxRetries     int     `yaml:"max_retries,omitempty"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`
	Temperature    float32 `yaml:"temperature"`
	TopP           float32 `yaml:"top_p"`
}

type LockConfig struct {
	Backend    string `yaml:"backend"` // "local", "redis"
	RedisAddr  string `yaml:"redis_addr,omitempty"`
	TTLSeconds int    `yaml:"ttl_seconds,omitempty"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret,omitempty"`
	TokenTTLHours int    `yaml:"token_ttl_hours,omitempty"`
	// Disabled leaves ingest routes open. Development only.
	Disabled bool `yaml:"disabled"`
}

type LogConfig struct {
	Mode string `yaml:"mode"`
}

type MergeConfig struct {
	// AmbiguityTolerance is how far below the top fuzzy score a candidate
	// may score and still be treated as a target.
	AmbiguityTolerance float64 `yaml:"ambiguity_tolerance"`
	DefaultCurrency    string  `yaml:"default_currency"`
}

type SegmentConfig struct {
	MaxChars int `yaml:"max_chars"`
}

// Load reads the embedded defaults, then the file at path when given, then
// environment overrides. ${VAR} references inside YAML are expanded.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := decode(defaultYAML, cfg); err != nil {
		return nil, fmt.Errorf("default config: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the embedded configuration without env overrides.
func Default() *Config {
	cfg := &Config{}
	if err := decode(defaultYAML, cfg); err != nil {
		panic(fmt.Sprintf("embedded config is invalid: %v", err))
	}
	return cfg
}

func decode(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	return yaml.Unmarshal([]byte(expanded), cfg)
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Database.Backend, "DATABASE_BACKEND")
	setString(&cfg.Storage.DataDir, "DATA_DIR")
	setString(&cfg.Storage.Backend, "STORAGE_BACKEND")
	setString(&cfg.Storage.Bucket, "GCS_BUCKET")
	setString(&cfg.Docling.URL, "DOCLING_API_URL")
	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.Lock.Backend, "LOCK_BACKEND")
	setString(&cfg.Lock.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Log.Mode, "LOG_MODE")

	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				cfg.Server.CORSOrigins = append(cfg.Server.CORSOrigins, o)
			}
		}
	}
	if v := os.Getenv("SEGMENT_MAX_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Segment.MaxChars = n
		}
	}
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func (c *Config) validate() error {
	switch c.Database.Backend {
	case "postgres", "badger", "memory":
	default:
		return fmt.Errorf("unknown database backend %q", c.Database.Backend)
	}
	switch c.Storage.Backend {
	case "fs", "gcs":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "gcs" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required for gcs backend")
	}
	switch c.LLM.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	switch c.Lock.Backend {
	case "local", "redis":
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}
	if c.Lock.Backend == "redis" && c.Lock.RedisAddr == "" {
		return fmt.Errorf("lock.redis_addr is required for redis backend")
	}
	if c.Segment.MaxChars <= 0 {
		return fmt.Errorf("segment.max_chars must be positive")
	}
	if c.Merge.AmbiguityTolerance < 0 {
		return fmt.Errorf("merge.ambiguity_tolerance must not be negative")
	}
	return nil
}
