package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// SolverAPIURL is the base URL of the remote Dirac solver service.
	SolverAPIURL string
	// SolverAPIToken authenticates against the solver service. Never logged.
	SolverAPIToken string
	// SolverDeviceType selects the solver hardware (e.g. "dirac-3").
	SolverDeviceType string
	// SolverPollIntervalSeconds is the delay between job status polls.
	SolverPollIntervalSeconds int

	// DefaultNumSamples is the sample count requested when a caller omits one.
	DefaultNumSamples int
	// DefaultRelaxationSchedule is the solver schedule parameter used when a
	// caller omits one. Valid values are 1 through 4.
	DefaultRelaxationSchedule int
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// The solver URL and token are required; the remaining values have defaults.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	SolverAPIURL, err = getEnv("SOLVER_API_URL")
	if err != nil {
		return err
	}

	SolverAPIToken, err = getEnv("SOLVER_API_TOKEN")
	if err != nil {
		return err
	}

	SolverDeviceType = getEnvOrDefault("SOLVER_DEVICE_TYPE", "dirac-3")
	SolverPollIntervalSeconds = getEnvAsIntOrDefault("SOLVER_POLL_INTERVAL_SECONDS", 2)
	DefaultNumSamples = getEnvAsIntOrDefault("SOLVER_DEFAULT_NUM_SAMPLES", 10)
	DefaultRelaxationSchedule = getEnvAsIntOrDefault("SOLVER_DEFAULT_RELAXATION_SCHEDULE", 1)

	if DefaultRelaxationSchedule < 1 || DefaultRelaxationSchedule > 4 {
		return errors.New("SOLVER_DEFAULT_RELAXATION_SCHEDULE must be between 1 and 4")
	}

	log.Debug().
		Str("SolverAPIURL", SolverAPIURL).
		Str("SolverDeviceType", SolverDeviceType).
		Int("DefaultNumSamples", DefaultNumSamples).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable with a fallback.
func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsIntOrDefault retrieves an environment variable as an int with a fallback.
func getEnvAsIntOrDefault(key string, fallback int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("Invalid integer environment variable, using default")
		return fallback
	}
	return value
}
