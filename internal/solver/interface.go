/*

This file defines the narrow contract between the formulation pipeline and
the combinatorial solver.

The remote Dirac service is the production implementation; the local
exhaustive solver substitutes for it in tests and in environments without
access to the remote device. Nothing outside this package knows which one is
in use.

*/

package solver

import (
	"context"
	"errors"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/polynomial"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

var (
	// ErrSolverFailure wraps any terminal failure of a solver request:
	// transport errors, a non-completed remote status, or deadline expiry.
	ErrSolverFailure = errors.New("solver request failed")

	// ErrNoSamples indicates a completed response carrying no solutions.
	ErrNoSamples = errors.New("solver returned no samples")
)

// Solver submits a polynomial minimization problem and returns sampled
// binary solutions with their energies. Implementations must not retry a
// failed job; a non-completed status is terminal for the request.
type Solver interface {
	Submit(ctx context.Context, poly polynomial.Polynomial, numSamples, relaxationSchedule int) ([]types.SolutionSample, error)
}

// BestSample returns the lowest-energy sample, breaking ties by first
// occurrence.
func BestSample(samples []types.SolutionSample) (types.SolutionSample, error) {
	if len(samples) == 0 {
		return types.SolutionSample{}, ErrNoSamples
	}
	best := samples[0]
	for _, s := range samples[1:] {
		if s.Energy < best.Energy {
			best = s
		}
	}
	return best, nil
}
