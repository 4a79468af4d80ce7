package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS optimization_runs (
			run_id UUID PRIMARY KEY,
			run_number SERIAL,
			scenario_id VARCHAR(64) NOT NULL,
			as_of TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			decision JSONB NOT NULL,
			breakdown JSONB NOT NULL,
			baseline JSONB,
			num_variables INTEGER NOT NULL,
			term_count INTEGER NOT NULL,
			max_degree INTEGER NOT NULL,
			lambda DECIMAL(24, 8) NOT NULL,
			rescale_divisor DECIMAL(24, 8) NOT NULL,
			energies DOUBLE PRECISION[] NOT NULL DEFAULT '{}',
			sample_counts INTEGER[] NOT NULL DEFAULT '{}',
			best_energy DOUBLE PRECISION,
			elapsed_ms BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_optimization_runs_scenario_as_of ON optimization_runs(scenario_id, as_of DESC);
		CREATE INDEX IF NOT EXISTS idx_optimization_runs_as_of ON optimization_runs(as_of DESC);
	`

	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	log.Info().Msg("Database schema ensured")
	return nil
}
