package config

import (
	"os"
	"strconv"
	"time"

	"gocanopy/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Data      DataConfig
	Optimizer OptimizerConfig
	Inference InferenceConfig
	Sampler   SamplerConfig
	Database  DatabaseConfig
	Server    ServerConfig
}

// DataConfig holds input data settings
type DataConfig struct {
	InputFile string
}

// OptimizerConfig holds multi-start optimizer settings
type OptimizerConfig struct {
	Restarts   int
	BaseSeed   int64
	Method     string // "bfgs" or "neldermead"
	MaxWorkers int64
	MaxRuntime time.Duration

	// MethodOverrides selects a different algorithm per estimation
	// method (keys: least_squares, gaussian_ml, beta_ml)
	MethodOverrides map[string]string
}

// InferenceConfig holds interval construction settings
type InferenceConfig struct {
	Level float64
}

// SamplerConfig holds MCMC settings
type SamplerConfig struct {
	Chains        int
	Warmup        int
	Samples       int
	BaseSeed      int64
	RHatThreshold float64
}

// DatabaseConfig holds optional result persistence settings
type DatabaseConfig struct {
	URL     string
	Enabled bool
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Data: DataConfig{
			InputFile: getEnvOrDefault("INPUT_FILE", ""),
		},
		Optimizer: OptimizerConfig{
			Restarts:   getEnvIntOrDefault("OPT_RESTARTS", 10),
			BaseSeed:   getEnvInt64OrDefault("OPT_BASE_SEED", 1),
			Method:     getEnvOrDefault("OPT_METHOD", "bfgs"),
			MaxWorkers: getEnvInt64OrDefault("OPT_MAX_WORKERS", 4),
			MaxRuntime: getEnvDurationOrDefault("OPT_MAX_RUNTIME", time.Minute),

			MethodOverrides: methodOverrides(),
		},
		Inference: InferenceConfig{
			Level: getEnvFloatOrDefault("CI_LEVEL", 0.95),
		},
		Sampler: SamplerConfig{
			Chains:        getEnvIntOrDefault("MCMC_CHAINS", 4),
			Warmup:        getEnvIntOrDefault("MCMC_WARMUP", 1000),
			Samples:       getEnvIntOrDefault("MCMC_SAMPLES", 1000),
			BaseSeed:      getEnvInt64OrDefault("MCMC_BASE_SEED", 1),
			RHatThreshold: getEnvFloatOrDefault("MCMC_RHAT_THRESHOLD", 1.05),
		},
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			Enabled: getEnvBoolOrDefault("SERVER_ENABLED", false),
		},
	}
	config.Database.Enabled = config.Database.URL != ""

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Optimizer.Restarts < 1 {
		return errors.ConfigInvalid("OPT_RESTARTS must be at least 1")
	}
	if m := config.Optimizer.Method; m != "bfgs" && m != "neldermead" {
		return errors.ConfigInvalid("OPT_METHOD must be bfgs or neldermead")
	}
	for name, m := range config.Optimizer.MethodOverrides {
		if m != "bfgs" && m != "neldermead" {
			return errors.ConfigInvalid("optimizer override for " + name + " must be bfgs or neldermead")
		}
	}
	if config.Inference.Level <= 0 || config.Inference.Level >= 1 {
		return errors.ConfigInvalid("CI_LEVEL must lie in (0,1)")
	}
	if config.Sampler.Chains < 1 || config.Sampler.Samples < 1 {
		return errors.ConfigInvalid("MCMC_CHAINS and MCMC_SAMPLES must be at least 1")
	}
	return nil
}

// methodOverrides collects per-method optimizer algorithm overrides
// from the environment
func methodOverrides() map[string]string {
	envToMethod := map[string]string{
		"OPT_METHOD_LEAST_SQUARES": "least_squares",
		"OPT_METHOD_GAUSSIAN_ML":   "gaussian_ml",
		"OPT_METHOD_BETA_ML":       "beta_ml",
	}
	overrides := make(map[string]string)
	for env, method := range envToMethod {
		if value := os.Getenv(env); value != "" {
			overrides[method] = value
		}
	}
	return overrides
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
