// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the run history database (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Optimizer OptimizerConfig
	Schedule  ScheduleConfig
	R2        R2Config
}

// OptimizerConfig holds defaults for frontier runs
type OptimizerConfig struct {
	RiskFreeRate   float64
	FrontierPoints int
	MaxIterations  int
	Tolerance      float64
	Workers        int // 0 = logical CPU count
	PeriodsPerYear int
	Shrink         bool
}

// ScheduleConfig holds background job schedules. Empty schedules disable the job.
type ScheduleConfig struct {
	Frontier    string
	PricesFile  string
	Maintenance string
}

// R2Config holds report archive credentials
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Prefix          string
	RetentionDays   int
}

// Enabled reports whether every credential needed for the archive is present
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.BucketName != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("FRONTIER_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  dataDir,
		Port:     getEnvAsInt("GO_PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Optimizer: OptimizerConfig{
			RiskFreeRate:   getEnvAsFloat("FRONTIER_RISK_FREE_RATE", 0.02),
			FrontierPoints: getEnvAsInt("FRONTIER_POINTS", 100),
			MaxIterations:  getEnvAsInt("FRONTIER_MAX_ITERATIONS", 100),
			Tolerance:      getEnvAsFloat("FRONTIER_TOLERANCE", 1e-8),
			Workers:        getEnvAsInt("FRONTIER_WORKERS", 0),
			PeriodsPerYear: getEnvAsInt("FRONTIER_PERIODS_PER_YEAR", 252),
			Shrink:         getEnvAsBool("FRONTIER_SHRINK", false),
		},
		Schedule: ScheduleConfig{
			Frontier:    getEnv("FRONTIER_SCHEDULE", ""),
			PricesFile:  getEnv("FRONTIER_PRICES_FILE", ""),
			Maintenance: getEnv("FRONTIER_MAINTENANCE_SCHEDULE", "0 3 * * *"),
		},
		R2: R2Config{
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			BucketName:      getEnv("R2_BUCKET_NAME", ""),
			Prefix:          getEnv("R2_PREFIX", "frontier-reports"),
			RetentionDays:   getEnvAsInt("R2_RETENTION_DAYS", 90),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("GO_PORT must be between 1 and 65535, got %d", c.Port)
	}
	o := c.Optimizer
	if o.RiskFreeRate < -1 || o.RiskFreeRate > 1 {
		return fmt.Errorf("FRONTIER_RISK_FREE_RATE must be between -1 and 1, got %g", o.RiskFreeRate)
	}
	if o.FrontierPoints < 1 {
		return fmt.Errorf("FRONTIER_POINTS must be at least 1, got %d", o.FrontierPoints)
	}
	if o.MaxIterations < 1 {
		return fmt.Errorf("FRONTIER_MAX_ITERATIONS must be at least 1, got %d", o.MaxIterations)
	}
	if !(o.Tolerance > 0) {
		return fmt.Errorf("FRONTIER_TOLERANCE must be positive, got %g", o.Tolerance)
	}
	if o.Workers < 0 {
		return fmt.Errorf("FRONTIER_WORKERS must not be negative, got %d", o.Workers)
	}
	if o.PeriodsPerYear < 1 {
		return fmt.Errorf("FRONTIER_PERIODS_PER_YEAR must be at least 1, got %d", o.PeriodsPerYear)
	}
	if c.Schedule.Frontier != "" && c.Schedule.PricesFile == "" {
		return fmt.Errorf("FRONTIER_SCHEDULE requires FRONTIER_PRICES_FILE")
	}
	if c.R2.RetentionDays < 0 {
		return fmt.Errorf("R2_RETENTION_DAYS must not be negative, got %d", c.R2.RetentionDays)
	}
	return nil
}

// Helper functions
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
