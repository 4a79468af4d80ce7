package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/layout"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/polynomial"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

func twoAxisGroups() []layout.AxisGroup {
	return []layout.AxisGroup{
		{Name: "a", Keys: []string{"a1", "a2"}, VarIndices: []int{1, 2}},
		{Name: "b", Keys: []string{"b1", "b2"}, VarIndices: []int{3, 4}},
	}
}

func twoAxisPolynomial(t *testing.T) polynomial.Polynomial {
	t.Helper()
	b := polynomial.NewBuilder(2)
	require.NoError(t, b.Add([]int{1}, -1.0))
	require.NoError(t, b.Add([]int{2}, -3.0))
	require.NoError(t, b.Add([]int{3}, -0.5))
	require.NoError(t, b.Add([]int{2, 4}, -1.0))
	return b.Export(4)
}

func TestLocalSolver_FindsMinimumOverValidAssignments(t *testing.T) {
	s := NewLocalSolver(twoAxisGroups())

	samples, err := s.Submit(context.Background(), twoAxisPolynomial(t), 10, 1)
	require.NoError(t, err)
	require.Len(t, samples, 4)

	// a2+b2 scores -3 + -1 = -4, the global minimum.
	assert.Equal(t, []int{0, 1, 0, 1}, samples[0].Values)
	assert.InDelta(t, -4.0, samples[0].Energy, 1e-9)

	// Energies ascend; every sample is one-hot per group.
	for i := 1; i < len(samples); i++ {
		assert.GreaterOrEqual(t, samples[i].Energy, samples[i-1].Energy)
	}
	for _, sample := range samples {
		assert.Equal(t, 1, sample.Values[0]+sample.Values[1])
		assert.Equal(t, 1, sample.Values[2]+sample.Values[3])
	}
}

func TestLocalSolver_TruncatesToNumSamples(t *testing.T) {
	s := NewLocalSolver(twoAxisGroups())

	samples, err := s.Submit(context.Background(), twoAxisPolynomial(t), 2, 1)
	require.NoError(t, err)
	assert.Len(t, samples, 2)
}

func TestLocalSolver_Deterministic(t *testing.T) {
	s := NewLocalSolver(twoAxisGroups())
	poly := twoAxisPolynomial(t)

	first, err := s.Submit(context.Background(), poly, 0, 1)
	require.NoError(t, err)
	second, err := s.Submit(context.Background(), poly, 0, 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLocalSolver_NoGroups(t *testing.T) {
	s := NewLocalSolver(nil)
	_, err := s.Submit(context.Background(), polynomial.Polynomial{}, 1, 1)
	assert.ErrorIs(t, err, ErrSolverFailure)
}

func TestLocalSolver_CancelledContext(t *testing.T) {
	s := NewLocalSolver(twoAxisGroups())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Submit(ctx, twoAxisPolynomial(t), 1, 1)
	assert.ErrorIs(t, err, ErrSolverFailure)
}

func TestBestSample(t *testing.T) {
	samples := []types.SolutionSample{
		{Values: []int{1, 0}, Energy: -1.0},
		{Values: []int{0, 1}, Energy: -2.5},
		{Values: []int{1, 1}, Energy: -2.5},
	}

	best, err := BestSample(samples)
	require.NoError(t, err)
	// Ties break to the earliest sample.
	assert.Equal(t, []int{0, 1}, best.Values)

	_, err = BestSample(nil)
	assert.ErrorIs(t, err, ErrNoSamples)
}
