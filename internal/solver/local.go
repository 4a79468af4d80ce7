/*

This file contains a deterministic in-process solver.

It exhaustively enumerates every one-hot-valid assignment (one variable set
per axis group) and returns the lowest-energy assignments, mimicking the
remote sample batch shape. Intended for tests and for environments without
access to the remote device; it is not a production fallback and the
pipeline never falls back to it implicitly.

*/

package solver

import (
	"context"
	"fmt"
	"sort"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/layout"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/polynomial"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

// maxLocalAssignments bounds the enumeration so a mis-sized catalog cannot
// hang a test run.
const maxLocalAssignments = 1_000_000

// LocalSolver enumerates one-hot-valid assignments for a known axis layout.
type LocalSolver struct {
	groups []layout.AxisGroup
}

// NewLocalSolver builds a solver for the given axis groups.
func NewLocalSolver(groups []layout.AxisGroup) *LocalSolver {
	return &LocalSolver{groups: groups}
}

// Submit evaluates the polynomial over every valid one-hot assignment and
// returns up to numSamples of the lowest-energy ones, energies ascending.
// The relaxation schedule has no meaning locally and is ignored.
func (s *LocalSolver) Submit(ctx context.Context, poly polynomial.Polynomial, numSamples, relaxationSchedule int) ([]types.SolutionSample, error) {
	if len(s.groups) == 0 {
		return nil, fmt.Errorf("%w: local solver has no axis groups", ErrSolverFailure)
	}

	total := 1
	for _, g := range s.groups {
		total *= len(g.VarIndices)
		if total > maxLocalAssignments {
			return nil, fmt.Errorf("%w: assignment space exceeds local enumeration limit", ErrSolverFailure)
		}
	}

	samples := make([]types.SolutionSample, 0, total)
	selection := make([]int, len(s.groups))

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: local enumeration: %w", ErrSolverFailure, err)
		}

		values := make([]int, poly.NumVariables)
		for gi, g := range s.groups {
			values[g.VarIndices[selection[gi]]-1] = 1
		}
		samples = append(samples, types.SolutionSample{
			Values: values,
			Energy: poly.EvaluateAt(values),
			Count:  1,
		})

		// Advance the mixed-radix selection counter.
		carry := len(selection) - 1
		for carry >= 0 {
			selection[carry]++
			if selection[carry] < len(s.groups[carry].VarIndices) {
				break
			}
			selection[carry] = 0
			carry--
		}
		if carry < 0 {
			break
		}
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Energy < samples[j].Energy
	})
	if numSamples > 0 && len(samples) > numSamples {
		samples = samples[:numSamples]
	}
	return samples, nil
}
