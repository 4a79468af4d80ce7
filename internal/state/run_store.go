package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

var ErrRunNotFound = errors.New("optimization run not found")

// SaveOptimizationRun persists a completed run, including decision,
// breakdown, baseline comparison, and solver diagnostics.
func SaveOptimizationRun(result types.OptimizationResult) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	decisionJSON, err := json.Marshal(result.Decision)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}
	breakdownJSON, err := json.Marshal(result.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal breakdown: %w", err)
	}
	baselineJSON, err := json.Marshal(result.Baseline)
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}

	query := `
		INSERT INTO optimization_runs (
			run_id, scenario_id, as_of,
			decision, breakdown, baseline,
			num_variables, term_count, max_degree,
			lambda, rescale_divisor,
			energies, sample_counts, best_energy, elapsed_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15);
	`

	_, err = DB.Exec(
		query,
		result.RunID, result.ScenarioID, result.AsOf,
		decisionJSON, breakdownJSON, baselineJSON,
		result.Diagnostics.NumVariables, result.Diagnostics.TermCount, result.Diagnostics.MaxDegree,
		result.Diagnostics.Lambda, result.Diagnostics.RescaleDivisor,
		pq.Array(result.Diagnostics.Energies), pq.Array(result.Diagnostics.Counts),
		result.Diagnostics.BestEnergy, result.ElapsedMS,
	)
	if err != nil {
		return fmt.Errorf("failed to save optimization run: %w", err)
	}

	log.Info().
		Str("run_id", result.RunID).
		Str("scenario_id", result.ScenarioID).
		Float64("best_energy", result.Diagnostics.BestEnergy).
		Msg("Optimization run saved to database")

	return nil
}

// storedRun mirrors the persisted row before JSONB fields are unpacked.
type storedRun struct {
	decision  []byte
	breakdown []byte
	baseline  []byte
}

func scanRun(scanner interface {
	Scan(dest ...interface{}) error
}) (types.OptimizationResult, error) {
	var result types.OptimizationResult
	var stored storedRun

	err := scanner.Scan(
		&result.RunID, &result.ScenarioID, &result.AsOf,
		&stored.decision, &stored.breakdown, &stored.baseline,
		&result.Diagnostics.NumVariables, &result.Diagnostics.TermCount, &result.Diagnostics.MaxDegree,
		&result.Diagnostics.Lambda, &result.Diagnostics.RescaleDivisor,
		pq.Array(&result.Diagnostics.Energies), pq.Array(&result.Diagnostics.Counts),
		&result.Diagnostics.BestEnergy, &result.ElapsedMS,
	)
	if err != nil {
		return types.OptimizationResult{}, err
	}

	if err := json.Unmarshal(stored.decision, &result.Decision); err != nil {
		return types.OptimizationResult{}, fmt.Errorf("failed to unmarshal decision: %w", err)
	}
	if err := json.Unmarshal(stored.breakdown, &result.Breakdown); err != nil {
		return types.OptimizationResult{}, fmt.Errorf("failed to unmarshal breakdown: %w", err)
	}
	if len(stored.baseline) > 0 {
		if err := json.Unmarshal(stored.baseline, &result.Baseline); err != nil {
			return types.OptimizationResult{}, fmt.Errorf("failed to unmarshal baseline: %w", err)
		}
	}

	return result, nil
}

const runColumns = `
	run_id, scenario_id, as_of,
	decision, breakdown, baseline,
	num_variables, term_count, max_degree,
	lambda, rescale_divisor,
	energies, sample_counts, best_energy, elapsed_ms
`

// GetOptimizationRun fetches a single run by its UUID.
func GetOptimizationRun(runID string) (types.OptimizationResult, error) {
	if DB == nil {
		return types.OptimizationResult{}, fmt.Errorf("database not initialized")
	}

	query := `SELECT ` + runColumns + ` FROM optimization_runs WHERE run_id = $1;`
	result, err := scanRun(DB.QueryRow(query, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.OptimizationResult{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return types.OptimizationResult{}, fmt.Errorf("failed to fetch optimization run: %w", err)
	}
	return result, nil
}

// GetLatestOptimizationRun fetches the most recent run.
func GetLatestOptimizationRun() (types.OptimizationResult, error) {
	if DB == nil {
		return types.OptimizationResult{}, fmt.Errorf("database not initialized")
	}

	query := `SELECT ` + runColumns + ` FROM optimization_runs ORDER BY as_of DESC LIMIT 1;`
	result, err := scanRun(DB.QueryRow(query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.OptimizationResult{}, ErrRunNotFound
		}
		return types.OptimizationResult{}, fmt.Errorf("failed to fetch latest optimization run: %w", err)
	}
	return result, nil
}

// GetRecentOptimizationRuns fetches up to limit recent runs, newest first.
func GetRecentOptimizationRuns(limit int) ([]types.OptimizationResult, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + runColumns + ` FROM optimization_runs ORDER BY as_of DESC LIMIT $1;`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query optimization runs: %w", err)
	}
	defer rows.Close()

	var results []types.OptimizationResult
	for rows.Next() {
		result, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan optimization run: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating optimization runs: %w", err)
	}
	return results, nil
}

// CountOptimizationRuns returns the total number of persisted runs.
func CountOptimizationRuns() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var count int
	if err := DB.QueryRow(`SELECT COUNT(*) FROM optimization_runs;`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count optimization runs: %w", err)
	}
	return count, nil
}
