// Package config collects the environment-driven settings. A .env file is
// loaded when present; every value has a development fallback.
package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	MongoURI      string
	MongoDatabase string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	// Seed credentials for the initial superuser account; seeding is skipped
	// when the email is empty.
	SuperuserEmail    string
	SuperuserPassword string

	LogLevel  string
	LogFormat string
}

// Load reads the .env file if present and assembles the configuration.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Port: getenv("PORT", "8080"),

		MongoURI:      getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getenv("MONGO_DATABASE", "docsense"),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:    getenv("MINIO_BUCKET", "docsense-documents"),
		MinioUseSSL:    getenv("MINIO_USE_SSL", "false") == "true",

		JWTAccessSecret:  getenv("JWT_ACCESS_SECRET", "dev-access-secret"),
		JWTRefreshSecret: getenv("JWT_REFRESH_SECRET", "dev-refresh-secret"),
		AccessTokenTTL:   getduration("ACCESS_TOKEN_EXPIRES", 15*time.Minute),
		RefreshTokenTTL:  getduration("REFRESH_TOKEN_EXPIRES", 7*24*time.Hour),

		SuperuserEmail:    os.Getenv("SUPERUSER_EMAIL"),
		SuperuserPassword: os.Getenv("SUPERUSER_PASSWORD"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "text"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid duration for %s: %q, using default", key, v)
		return fallback
	}
	return d
}
