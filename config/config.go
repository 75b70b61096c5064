package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	CatalogBaseURL string
	CatalogAPIKey  string

	LogLevel string

	ResolveTimeoutSeconds int
	SuggestionLimit       int
	ExpandRatePerSecond   float64

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	ResolveCacheTTLSeconds int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		CatalogBaseURL: getEnvWithDefault("CATALOG_BASE_URL", "https://catalog.cadenza.local"),
		CatalogAPIKey:  os.Getenv("CATALOG_API_KEY"),

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		ResolveTimeoutSeconds: getEnvAsIntWithDefault("RESOLVE_TIMEOUT", 15),
		SuggestionLimit:       getEnvAsIntWithDefault("SUGGESTION_LIMIT", 20),
		ExpandRatePerSecond:   getEnvAsFloatWithDefault("EXPAND_RATE", 8),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnvAsInt("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  os.Getenv("DB_SSLMODE"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnvAsInt("REDIS_PORT"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsIntWithDefault("REDIS_DB", 0),

		ResolveCacheTTLSeconds: getEnvAsIntWithDefault("RESOLVE_CACHE_TTL", 300),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.CatalogBaseURL == "" {
		return errors.New("CATALOG_BASE_URL is required")
	}

	if c.ResolveTimeoutSeconds < 1 {
		return errors.New("RESOLVE_TIMEOUT must be at least 1 second")
	}

	if c.SuggestionLimit < 1 || c.SuggestionLimit > 100 {
		return errors.New("SUGGESTION_LIMIT must be between 1 and 100")
	}

	if c.ExpandRatePerSecond <= 0 {
		return errors.New("EXPAND_RATE must be positive")
	}

	return nil
}

func getEnvAsInt(key string) int {
	return getEnvAsIntWithDefault(key, 0)
}

func getEnvAsIntWithDefault(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloatWithDefault(key string, defaultValue float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvWithDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (c *Config) GetDBConfig() *DBConfig {
	return &DBConfig{
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		Name:     c.DBName,
		SSLMode:  c.DBSSLMode,
	}
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c *Config) GetRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}
