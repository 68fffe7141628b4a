package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	OCR       OCRConfig
	AI        AIConfig
	Review    ReviewConfig
	Retention RetentionConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Enabled     bool
	Pdftoppm    string
	Tesseract   string
	Lang        string
	DPI         int
	PageTimeout time.Duration
}

// AIConfig holds AI-extraction endpoint configuration
type AIConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// ReviewConfig holds validation thresholds
type ReviewConfig struct {
	BalanceEpsilon float64
	YoYWarnRatio   float64
	MatchThreshold float64
}

// RetentionConfig controls housekeeping of rejected batches
type RetentionConfig struct {
	RejectedTTL time.Duration
	CronSpec    string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		},
		OCR: OCRConfig{
			Enabled:     getEnvAsBool("OCR_ENABLED", true),
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			Lang:        getEnv("TESSERACT_LANG", "chi_sim"),
			DPI:         getEnvAsInt("OCR_DPI", 300),
			PageTimeout: getEnvAsDuration("OCR_PAGE_TIMEOUT", 60*time.Second),
		},
		AI: AIConfig{
			Model:       getEnv("AI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("AI_API_KEY", ""),
			BaseURL:     getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
			Temperature: getEnvAsFloat32("AI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("AI_TIMEOUT", 45*time.Second),
		},
		Review: ReviewConfig{
			BalanceEpsilon: getEnvAsFloat64("BALANCE_EPSILON", 0.0001),
			YoYWarnRatio:   getEnvAsFloat64("YOY_WARN_RATIO", 0.5),
			MatchThreshold: getEnvAsFloat64("TABLE_MATCH_THRESHOLD", 0.5),
		},
		Retention: RetentionConfig{
			RejectedTTL: getEnvAsDuration("REJECTED_BATCH_TTL", 30*24*time.Hour),
			CronSpec:    getEnv("CLEANUP_CRON", "0 2 * * *"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Review.BalanceEpsilon <= 0 {
		return NewAppError("CONFIG_ERROR", "BALANCE_EPSILON must be positive", ErrInvalidInput)
	}
	return nil
}
