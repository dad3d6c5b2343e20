package app

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"catalogue/internal/domain/catalogue"
)

// LoadDotEnv loads .env from the working directory when present. Variables
// already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ConfigFromEnv reads the shared store and service settings.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:       getEnv("MONGO_DATABASE", "catalogue"),
		MongoMaxPool:        uint64(getEnvInt("MONGO_MAX_POOL_SIZE", 0)),
		RegistryDSN:         os.Getenv("REGISTRY_DATABASE_URL"),
		RegistryMaxConns:    int32(getEnvInt("REGISTRY_MAX_CONNS", 0)),
		RedisURL:            os.Getenv("REDIS_URL"),
		PageCacheTTL:        getEnvDuration("PAGE_CACHE_TTL", 5*time.Minute),
		PageCacheCompressAt: getEnvInt("PAGE_CACHE_COMPRESS_AT", 2048),
		FeedConcurrency:     getEnvInt("FEED_CONCURRENCY", 0),
		Limits: catalogue.Limits{
			Default: getEnvInt("CATALOGUE_DEFAULT_LIMIT", catalogue.DefaultLimits.Default),
			Max:     getEnvInt("CATALOGUE_MAX_LIMIT", catalogue.DefaultLimits.Max),
		},
	}
	if cfg.RegistryDSN == "" {
		return Config{}, fmt.Errorf("required environment variable REGISTRY_DATABASE_URL not set")
	}
	if cfg.Limits.Default < 1 || cfg.Limits.Max < cfg.Limits.Default {
		return Config{}, fmt.Errorf("invalid catalogue limits: default %d, max %d", cfg.Limits.Default, cfg.Limits.Max)
	}
	return cfg, nil
}

// Getenv returns the variable or defaultValue when unset.
func Getenv(key, defaultValue string) string {
	return getEnv(key, defaultValue)
}

// GetenvDuration parses the variable as a duration, falling back to defaultValue.
func GetenvDuration(key string, defaultValue time.Duration) time.Duration {
	return getEnvDuration(key, defaultValue)
}

// GetenvInt parses the variable as an integer, falling back to defaultValue.
func GetenvInt(key string, defaultValue int) int {
	return getEnvInt(key, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
