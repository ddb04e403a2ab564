package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Config holds all configuration values. Values come from defaults, then the optional YAML
// file named by GALLERY_CONFIG, then the environment.
type Config struct {
	AppPort  string `yaml:"app_port" env:"GALLERY_PORT"`
	LivePort string `yaml:"live_port" env:"LIVE_PORT"`

	DBHost     string `yaml:"db_host" env:"DB_HOST"`
	DBPort     string `yaml:"db_port" env:"DB_PORT"`
	DBUser     string `yaml:"db_user" env:"DB_USER"`
	DBPassword string `yaml:"db_password" env:"DB_PASSWORD"`
	DBName     string `yaml:"db_name" env:"DB_NAME"`

	MinioEndpoint  string `yaml:"minio_endpoint" env:"MINIO_ENDPOINT"`
	MinioAccessKey string `yaml:"minio_access_key" env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `yaml:"minio_secret_key" env:"MINIO_SECRET_KEY"`
	MinioBucket    string `yaml:"minio_bucket" env:"MINIO_BUCKET"`
	MinioSSL       bool   `yaml:"minio_ssl" env:"MINIO_SSL"`

	// Chain settings
	ChainRPCURL     string        `yaml:"chain_rpc_url" env:"CHAIN_RPC_URL"`
	GalleryPackage  string        `yaml:"gallery_package" env:"GALLERY_PACKAGE_ID"`
	ChainTimeout    time.Duration `yaml:"chain_timeout" env:"CHAIN_TIMEOUT"`
	ChainMaxRetries uint          `yaml:"chain_max_retries" env:"CHAIN_MAX_RETRIES"`

	HoldingsCacheTTL time.Duration `yaml:"holdings_cache_ttl" env:"HOLDINGS_CACHE_TTL"`
	MaxImportSize    int64         `yaml:"max_import_size" env:"MAX_IMPORT_SIZE"`
}

// Default returns the configuration used before any file or environment is applied.
func Default() *Config {
	return &Config{
		AppPort:          "8080",
		LivePort:         "8081",
		DBPort:           "5432",
		ChainTimeout:     10 * time.Second,
		ChainMaxRetries:  3,
		HoldingsCacheTTL: 30 * time.Second,
		MaxImportSize:    16 << 20,
	}
}

// LoadConfig loads configuration from defaults, GALLERY_CONFIG and the environment.
func LoadConfig() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("GALLERY_CONFIG"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return errors.Wrap(err, "failed to parse config file")
	}
	return nil
}

// Validate checks the required fields.
func (c *Config) Validate() error {
	if c.DBHost == "" || c.DBUser == "" || c.DBName == "" {
		return fmt.Errorf("database configuration is incomplete")
	}
	if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" || c.MinioBucket == "" {
		return fmt.Errorf("minio configuration is incomplete")
	}
	if c.ChainRPCURL == "" || c.GalleryPackage == "" {
		return fmt.Errorf("chain configuration is incomplete")
	}
	return nil
}

// ConnectDatabase initializes a GORM database connection to PostgreSQL.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, nil
}
