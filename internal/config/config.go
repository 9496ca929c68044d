// Package config содержит логику чтения конфигурации сервиса учёта расходов.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса учёта расходов.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	RedisAddr   string `env:"REDIS_ADDR"`
	AuthSecret  string `env:"AUTH_SECRET"`
	Bucket      string `env:"AWS_BUCKET_NAME"`
	Region      string `env:"AWS_REGION"`

	AccessKeyID     string        `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY"`
	S3Endpoint      string        `env:"S3_ENDPOINT" envDefault:"s3.amazonaws.com"`
	S3Insecure      bool          `env:"S3_INSECURE"`
	UploadMaxBytes  int64         `env:"UPLOAD_MAX_BYTES" envDefault:"5242880"`
	UploadURLTTL    time.Duration `env:"UPLOAD_URL_TTL" envDefault:"10m"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"1m"`

	// Учётная запись, создаваемая при старте, если указаны email и пароль.
	AdminName     string `env:"ADMIN_NAME" envDefault:"User"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := map[string]string{
		"a": cfg.RunAddress,
		"d": cfg.DatabaseURI,
		"r": cfg.RedisAddr,
		"s": cfg.AuthSecret,
		"b": cfg.Bucket,
		"g": cfg.Region,
	}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisAddr, "r", "", "redis address for the invoice list cache")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for signing auth cookies")
	flag.StringVar(&cfg.Bucket, "b", "", "S3 bucket for receipts")
	flag.StringVar(&cfg.Region, "g", "us-east-1", "S3 region")

	flag.Parse()

	targets := map[string]*string{
		"a": &cfg.RunAddress,
		"d": &cfg.DatabaseURI,
		"r": &cfg.RedisAddr,
		"s": &cfg.AuthSecret,
		"b": &cfg.Bucket,
		"g": &cfg.Region,
	}
	for name, v := range fromEnv {
		if v != "" {
			*targets[name] = v
		}
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.UploadMaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	if c.UploadURLTTL <= 0 {
		return errors.New("UPLOAD_URL_TTL must be positive")
	}
	return nil
}
