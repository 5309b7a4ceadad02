package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Firebase   FirebaseConfig
	Storage    StorageConfig
	Publishing PublishingConfig
	RateLimit  RateLimitConfig
	App        AppConfig
}

type ServerConfig struct {
	Port            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	// DSN wins over the discrete fields when set.
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
	MinConns int
}

// Enabled reports whether a database was configured at all.
func (d DatabaseConfig) Enabled() bool {
	return d.DSN != "" || d.Host != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type FirebaseConfig struct {
	CredentialsPath string
	ProjectID       string
	StorageBucket   string
}

// Storage providers.
const (
	StorageMemory = "memory"
	StorageGCS    = "gcs"
	StorageS3     = "s3"
)

type StorageConfig struct {
	Provider     string
	SitesBucket  string
	AssetsBucket string
	BaseURL      string
	S3Region     string
	S3Endpoint   string
	S3PathStyle  bool
}

type PublishingConfig struct {
	PublicOrigin      string
	AnalyticsEndpoint string
	FormEndpoint      string
	BrandName         string
	BrandURL          string
}

type RateLimitConfig struct {
	PublicPerMinute int
}

type AppConfig struct {
	Environment  string
	LogLevel     string
	Version      string
	AllowDevAuth bool
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	env := getEnv("APP_ENV", "development")
	origin := strings.TrimRight(getEnv("PUBLIC_ORIGIN", "http://localhost:8080"), "/")

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			ShutdownTimeout: time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Database: DatabaseConfig{
			DSN:      getEnv("DB_DSN", ""),
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "sitecraft"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			StorageBucket:   getEnv("FIREBASE_STORAGE_BUCKET", ""),
		},
		Storage: StorageConfig{
			Provider:     strings.ToLower(getEnv("STORAGE_PROVIDER", StorageMemory)),
			SitesBucket:  getEnv("STORAGE_SITES_BUCKET", ""),
			AssetsBucket: getEnv("STORAGE_ASSETS_BUCKET", ""),
			BaseURL:      getEnv("STORAGE_BASE_URL", ""),
			S3Region:     getEnv("S3_REGION", "us-east-1"),
			S3Endpoint:   getEnv("S3_ENDPOINT", ""),
			S3PathStyle:  getEnvAsBool("S3_USE_PATH_STYLE", false),
		},
		Publishing: PublishingConfig{
			PublicOrigin:      origin,
			AnalyticsEndpoint: getEnv("ANALYTICS_ENDPOINT", origin+"/api/v1/public/track-visit"),
			FormEndpoint:      getEnv("FORM_ENDPOINT", origin+"/api/v1/public/forms"),
			BrandName:         getEnv("BRAND_NAME", "Sitecraft"),
			BrandURL:          getEnv("BRAND_URL", "https://sitecraft.app"),
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute: getEnvAsInt("RATE_LIMIT_PUBLIC_PER_MINUTE", 60),
		},
		App: AppConfig{
			Environment:  env,
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			Version:      getEnv("APP_VERSION", "1.0.0"),
			AllowDevAuth: getEnvAsBool("ALLOW_DEV_AUTH", env != "production"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Storage.Provider {
	case StorageMemory:
	case StorageGCS:
		if c.Firebase.CredentialsPath == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required for the gcs storage provider")
		}
	case StorageS3:
		if c.Storage.SitesBucket == "" || c.Storage.AssetsBucket == "" {
			return fmt.Errorf("STORAGE_SITES_BUCKET and STORAGE_ASSETS_BUCKET are required for the s3 storage provider")
		}
	default:
		return fmt.Errorf("unknown STORAGE_PROVIDER %q", c.Storage.Provider)
	}

	if c.RateLimit.PublicPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PUBLIC_PER_MINUTE must not be negative")
	}

	if c.App.Environment == "production" && c.App.AllowDevAuth {
		return fmt.Errorf("ALLOW_DEV_AUTH must be off in production")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean for %s, using default: %t", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
