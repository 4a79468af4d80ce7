/*

This file orchestrates one optimization request end to end: variable layout,
energy model construction, rescaling, solver submission, decoding, scoring,
and the baseline comparison. Each request builds its own layout and model;
nothing is shared between concurrent requests except the solver client.

*/

package allocator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/config"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/decoder"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/energy"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/layout"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/logger"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/solver"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/state"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

var allocatorLogger = logger.GetForComponent("allocator")

// Request is one complete optimization request.
type Request struct {
	Catalog            types.Catalog
	Scenario           types.Scenario
	Parameters         types.ModelParameters
	NumSamples         int
	RelaxationSchedule int
}

// Allocator runs optimization requests against a solver. A nil solver
// falls back to exhaustive local enumeration, which is exact for catalog
// sizes this formulation targets.
type Allocator struct {
	solver solver.Solver
}

// New creates an Allocator bound to a solver. Pass nil to enumerate
// locally instead of calling a remote device.
func New(s solver.Solver) *Allocator {
	return &Allocator{solver: s}
}

// Optimize executes the full pipeline and returns the decoded decision
// with its auditable breakdown. The result is persisted when a database
// connection is available; persistence failures are logged, not fatal.
func (a *Allocator) Optimize(ctx context.Context, req Request) (types.OptimizationResult, error) {
	started := time.Now()

	l, err := layout.Build(req.Catalog)
	if err != nil {
		return types.OptimizationResult{}, fmt.Errorf("failed to build variable layout: %w", err)
	}

	builder, meta, err := energy.BuildModel(req.Catalog, req.Scenario, req.Parameters, l)
	if err != nil {
		return types.OptimizationResult{}, fmt.Errorf("failed to build energy model: %w", err)
	}
	divisor := builder.Rescale(req.Parameters.TargetMaxCoefficient)
	poly := builder.Export(l.NumVariables())

	numSamples := req.NumSamples
	if numSamples <= 0 {
		numSamples = config.DefaultNumSamples
	}
	relaxation := req.RelaxationSchedule
	if relaxation <= 0 {
		relaxation = config.DefaultRelaxationSchedule
	}

	s := a.solver
	if s == nil {
		s = solver.NewLocalSolver(l.Groups)
	}

	allocatorLogger.Info().
		Str("scenario_id", req.Scenario.ID).
		Int("num_variables", l.NumVariables()).
		Int("term_count", len(poly.Terms)).
		Int("max_degree", poly.MaxDegree).
		Float64("lambda", meta.Lambda).
		Float64("rescale_divisor", divisor).
		Msg("Submitting energy model to solver")

	samples, err := s.Submit(ctx, poly, numSamples, relaxation)
	if err != nil {
		return types.OptimizationResult{}, fmt.Errorf("solver submission failed: %w", err)
	}
	best, err := solver.BestSample(samples)
	if err != nil {
		return types.OptimizationResult{}, err
	}

	choice, err := decoder.DecodeChoice(l.Groups, best)
	if err != nil {
		return types.OptimizationResult{}, fmt.Errorf("failed to decode solution: %w", err)
	}
	breakdown, err := decoder.ComputeBreakdown(req.Catalog, req.Scenario, req.Parameters, choice)
	if err != nil {
		return types.OptimizationResult{}, fmt.Errorf("failed to score decoded choice: %w", err)
	}

	baselineChoice := decoder.ComputeBaseline(req.Catalog, req.Scenario, choice)
	baselineBreakdown, err := decoder.ComputeBreakdown(req.Catalog, req.Scenario, req.Parameters, baselineChoice)
	if err != nil {
		return types.OptimizationResult{}, fmt.Errorf("failed to score baseline choice: %w", err)
	}

	result := types.OptimizationResult{
		RunID:      uuid.NewString(),
		ScenarioID: req.Scenario.ID,
		AsOf:       started.UTC(),
		Decision:   choiceToDecision(req.Catalog, choice),
		Breakdown:  breakdown,
		Baseline: types.BaselineComparison{
			BaselineID:        decoder.BaselineID,
			Decision:          choiceToDecision(req.Catalog, baselineChoice),
			Breakdown:         baselineBreakdown,
			NetAPRImprovement: breakdown.NetAPR - baselineBreakdown.NetAPR,
		},
		Diagnostics: types.SolverDiagnostics{
			NumVariables:   l.NumVariables(),
			TermCount:      len(poly.Terms),
			MaxDegree:      poly.MaxDegree,
			Lambda:         meta.Lambda,
			RescaleDivisor: divisor,
			Energies:       sampleEnergies(samples),
			Counts:         sampleCounts(samples),
			BestEnergy:     best.Energy,
			BestVector:     best.Values,
			GroupBits:      groupBits(l.Groups, best.Values),
		},
		ElapsedMS: time.Since(started).Milliseconds(),
	}

	allocatorLogger.Info().
		Str("run_id", result.RunID).
		Str("position", choice.Position).
		Str("hedge", choice.Hedge).
		Float64("net_apr", breakdown.NetAPR).
		Float64("baseline_net_apr", baselineBreakdown.NetAPR).
		Msg("Optimization complete")

	if state.DB != nil {
		if err := state.SaveOptimizationRun(result); err != nil {
			allocatorLogger.Warn().Err(err).Str("run_id", result.RunID).Msg("Failed to persist optimization run")
		}
	}

	return result, nil
}

func choiceToDecision(catalog types.Catalog, choice types.Choice) types.Decision {
	d := types.Decision{
		PositionID:    choice.Position,
		HedgeType:     choice.Hedge,
		SizeTier:      choice.Size,
		RebalanceTier: choice.Rebalance,
		TenorTier:     choice.Tenor,
	}
	if p, ok := catalog.PositionByID(choice.Position); ok {
		d.PositionLabel = p.Label
	}
	return d
}

func sampleEnergies(samples []types.SolutionSample) []float64 {
	energies := make([]float64, len(samples))
	for i, s := range samples {
		energies[i] = s.Energy
	}
	return energies
}

func sampleCounts(samples []types.SolutionSample) []int {
	counts := make([]int, len(samples))
	for i, s := range samples {
		counts[i] = s.Count
	}
	return counts
}

// groupBits maps every axis key to its bit in the best vector, preserving
// the raw solver output even when a group violates one-hot.
func groupBits(groups []layout.AxisGroup, values []int) map[string]map[string]int {
	bits := make(map[string]map[string]int, len(groups))
	for _, g := range groups {
		keyBits := make(map[string]int, len(g.Keys))
		for i, key := range g.Keys {
			idx := g.VarIndices[i] - 1
			if idx >= 0 && idx < len(values) {
				keyBits[key] = values[idx]
			}
		}
		bits[g.Name] = keyBits
	}
	return bits
}
