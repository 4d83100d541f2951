package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath = ".env"

	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	defaultRunAddress      = ":8080"
	defaultShutdownTimeout = 10 * time.Second
)

type Config struct {
	Env    string
	DB     db
	Server server
}

type db struct {
	DatabaseURI string `env:"DATABASE_URI"`
}

type server struct {
	RunAddress      string        `env:"RUN_ADDRESS"`
	APIToken        string        `env:"API_TOKEN"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

// Load читает конфигурацию сервера из окружения и необязательного
// файла .env.
func Load() (*Config, error) {
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("run_address", defaultRunAddress)
	v.SetDefault("shutdown_timeout", defaultShutdownTimeout)

	cfg := &Config{
		Env: v.GetString("app_env"),
		DB:  db{DatabaseURI: v.GetString("database_uri")},
		Server: server{
			RunAddress:      v.GetString("run_address"),
			APIToken:        v.GetString("api_token"),
			ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("config error: %v", err))
	}
	return cfg
}

func (c *Config) Validate() error {
	var errs []error
	if c.DB.DatabaseURI == "" {
		errs = append(errs, errors.New("database_uri must not be empty"))
	}
	if c.Server.RunAddress == "" {
		errs = append(errs, errors.New("run_address must not be empty"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	if c.IsProd() && c.Server.APIToken == "" {
		errs = append(errs, errors.New("api_token is required in prod"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProd() bool {
	return c.Env == EnvProd
}

func (c *Config) IsDev() bool {
	return c.Env == EnvDev
}

func (c *Config) IsLocal() bool {
	return c.Env == EnvLocal || c.Env == ""
}
