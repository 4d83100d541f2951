package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultEnv            = "local"
	defaultServerAddress  = "http://localhost:8080"
	defaultDataDir        = ".pharmasync"
	defaultSyncInterval   = 15 * time.Minute
	defaultProbeInterval  = 30 * time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultMaxRetries     = 5

	dbFile = "pharmasync.db"
)

type Config struct {
	Env            string        `mapstructure:"app_env"`
	ServerAddress  string        `mapstructure:"server_address"`
	DataDir        string        `mapstructure:"data_dir"`
	APIToken       string        `mapstructure:"api_token"`
	SyncInterval   time.Duration `mapstructure:"sync_interval"`
	ProbeInterval  time.Duration `mapstructure:"probe_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	// OTLPEndpoint - куда отправлять трейсы синхронизации. Пустой отключает трейсинг.
	OTLPEndpoint string `mapstructure:"otel_exporter_otlp_endpoint"`
}

// Load читает конфигурацию клиента из окружения и необязательного
// файла .env.
func Load() (*Config, error) {
	envPath := ".env"
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", defaultEnv)
	v.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	v.SetDefault("DATA_DIR", "")
	v.SetDefault("API_TOKEN", "")
	v.SetDefault("SYNC_INTERVAL", defaultSyncInterval)
	v.SetDefault("PROBE_INTERVAL", defaultProbeInterval)
	v.SetDefault("REQUEST_TIMEOUT", defaultRequestTimeout)
	v.SetDefault("MAX_RETRIES", defaultMaxRetries)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	dataDir := v.GetString("DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataDir = filepath.Join(home, defaultDataDir)
	}

	cfg := &Config{
		Env:            v.GetString("APP_ENV"),
		ServerAddress:  v.GetString("SERVER_ADDRESS"),
		DataDir:        dataDir,
		APIToken:       v.GetString("API_TOKEN"),
		SyncInterval:   v.GetDuration("SYNC_INTERVAL"),
		ProbeInterval:  v.GetDuration("PROBE_INTERVAL"),
		RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
		MaxRetries:     v.GetInt("MAX_RETRIES"),
		OTLPEndpoint:   v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad - Load, который паникует при ошибке.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("config error: %v", err))
	}
	return cfg
}

func (c *Config) Validate() error {
	var errs []error
	if c.ServerAddress == "" {
		errs = append(errs, errors.New("server_address must not be empty"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must not be empty"))
	}
	if c.SyncInterval <= 0 {
		errs = append(errs, errors.New("sync_interval must be positive"))
	}
	if c.ProbeInterval <= 0 {
		errs = append(errs, errors.New("probe_interval must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if c.MaxRetries <= 0 {
		errs = append(errs, errors.New("max_retries must be positive"))
	}
	return errors.Join(errs...)
}

// DBPath - файл SQLite локального хранилища.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, dbFile)
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
