package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeexec/internal/common/cache"
	"codeexec/internal/common/db"
	"codeexec/internal/common/limiter"
	"codeexec/internal/execution/sandbox"
	"codeexec/internal/execution/sandbox/profile"
	"codeexec/pkg/utils/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:5000"
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 15 * time.Second
	defaultCompileTimeout  = 30 * time.Second
	defaultResultTTL       = time.Hour
	defaultMaxSourceBytes  = 64 * 1024

	storeDriverRedis = "redis"
	storeDriverMySQL = "mysql"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	// MaxConcurrent bounds executions in flight; extra requests get 429.
	MaxConcurrent int                `yaml:"maxConcurrent"`
	RateLimit     limiter.RateConfig `yaml:"rateLimit"`
	CORSOrigins   []string           `yaml:"corsOrigins"`
}

// SandboxConfig holds execution core settings.
type SandboxConfig struct {
	WorkRoot             string        `yaml:"workRoot"`
	CompileTimeout       time.Duration `yaml:"compileTimeout"`
	SampleInterval       time.Duration `yaml:"sampleInterval"`
	OutputMaxBytes       int64         `yaml:"outputMaxBytes"`
	EnableRlimits        bool          `yaml:"enableRlimits"`
	InitHelper           string        `yaml:"initHelper"`
	SeccompProfile       string        `yaml:"seccompProfile"`
	DefaultTimeLimitMs   int64         `yaml:"defaultTimeLimitMs"`
	DefaultMemoryLimitKB int64         `yaml:"defaultMemoryLimitKB"`
	MaxTimeLimitMs       int64         `yaml:"maxTimeLimitMs"`
	MaxMemoryLimitKB     int64         `yaml:"maxMemoryLimitKB"`
	MaxSourceBytes       int           `yaml:"maxSourceBytes"`
}

// StoreConfig holds result store settings.
// With the mysql driver, redis is an optional read-through cache.
type StoreConfig struct {
	Enabled   bool              `yaml:"enabled"`
	Driver    string            `yaml:"driver"`
	TTL       time.Duration     `yaml:"ttl"`
	KeyPrefix string            `yaml:"keyPrefix"`
	Redis     cache.RedisConfig `yaml:"redis"`
	MySQL     db.MySQLConfig    `yaml:"mysql"`
}

// LanguageConfig holds language definitions. Entries override the built-in defaults by id.
type LanguageConfig struct {
	Languages []profile.LanguageSpec `yaml:"languages"`
}

// AppConfig holds exec-service config.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Logger   logger.Config  `yaml:"logger"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Store    StoreConfig    `yaml:"store"`
	Language LanguageConfig `yaml:"language"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadEnvFile reads a .env file when present. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(&cfg)
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		host := "0.0.0.0"
		if cfg.Server.Addr != "" {
			if idx := strings.LastIndex(cfg.Server.Addr, ":"); idx >= 0 {
				host = cfg.Server.Addr[:idx]
			}
		}
		cfg.Server.Addr = host + ":" + port
	}
	if addr := strings.TrimSpace(os.Getenv("REDIS_ADDR")); addr != "" {
		cfg.Store.Redis.Addr = addr
	}
	if pwd := os.Getenv("REDIS_PASSWORD"); pwd != "" {
		cfg.Store.Redis.Password = pwd
	}
	if dsn := strings.TrimSpace(os.Getenv("MYSQL_DSN")); dsn != "" {
		cfg.Store.MySQL.DSN = dsn
	}
	if root := strings.TrimSpace(os.Getenv("CODEEXEC_WORK_ROOT")); root != "" {
		cfg.Sandbox.WorkRoot = root
	}
}

func applyDefaults(cfg *AppConfig) error {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.MaxConcurrent <= 0 {
		cfg.Server.MaxConcurrent = 8
	}
	if cfg.Sandbox.WorkRoot == "" {
		cfg.Sandbox.WorkRoot = filepath.Join(os.TempDir(), "codeexec")
	}
	if cfg.Sandbox.CompileTimeout == 0 {
		cfg.Sandbox.CompileTimeout = defaultCompileTimeout
	}
	if cfg.Sandbox.MaxSourceBytes == 0 {
		cfg.Sandbox.MaxSourceBytes = defaultMaxSourceBytes
	}
	if cfg.Sandbox.SeccompProfile != "" && cfg.Sandbox.InitHelper == "" {
		return fmt.Errorf("sandbox seccompProfile requires initHelper")
	}
	if cfg.Sandbox.DefaultTimeLimitMs < 0 || cfg.Sandbox.DefaultMemoryLimitKB < 0 {
		return fmt.Errorf("sandbox default limits must not be negative")
	}
	if cfg.Sandbox.MaxTimeLimitMs <= 0 {
		cfg.Sandbox.MaxTimeLimitMs = sandbox.MaxTimeLimitMs
	}
	if cfg.Sandbox.MaxMemoryLimitKB <= 0 {
		cfg.Sandbox.MaxMemoryLimitKB = sandbox.MaxMemoryLimitKB
	}
	if cfg.Sandbox.DefaultTimeLimitMs > cfg.Sandbox.MaxTimeLimitMs || cfg.Sandbox.DefaultMemoryLimitKB > cfg.Sandbox.MaxMemoryLimitKB {
		return fmt.Errorf("sandbox default limits exceed the maximum limits")
	}
	if cfg.Store.Enabled {
		return applyStoreDefaults(&cfg.Store)
	}
	return nil
}

func applyStoreDefaults(cfg *StoreConfig) error {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	if cfg.Driver == "" {
		cfg.Driver = storeDriverRedis
	}
	switch cfg.Driver {
	case storeDriverRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("store redis addr is required")
		}
	case storeDriverMySQL:
		if cfg.MySQL.DSN == "" {
			return fmt.Errorf("store mysql dsn is required")
		}
	default:
		return fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
	if cfg.Redis.Addr != "" {
		applyRedisDefaults(&cfg.Redis)
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaultResultTTL
	}
	return nil
}

// languageSpecs merges configured languages over the built-in ones.
func (c LanguageConfig) languageSpecs() []profile.LanguageSpec {
	return append(profile.DefaultLanguages(), c.Languages...)
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
}
