/*

This file decodes solver samples into axis choices and recomputes the
reward/penalty breakdown for the decoded choice.

The breakdown deliberately re-derives every figure from the catalogs instead
of reading polynomial coefficients, so a decision can be audited without
trusting the energy minimization. For a valid assignment the two must agree
up to the rescale divisor, which the tests assert.

*/

package decoder

import (
	"errors"
	"fmt"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/energy"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/layout"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

var (
	ErrVectorTooShort = errors.New("solution vector shorter than variable layout")
	ErrUnknownChoice  = errors.New("decoded choice references unknown catalog entry")
)

// BaselineID names the comparison strategy: highest headline yield, unhedged.
const BaselineID = "MAX_GROSS_APR_NO_HEDGE"

// DecodeChoice reads one key per axis group off the sample vector. Within a
// group the variable with the maximum value wins, ties broken by first
// occurrence; a noisy sample with zero or several set bits still decodes.
func DecodeChoice(groups []layout.AxisGroup, sample types.SolutionSample) (types.Choice, error) {
	var choice types.Choice
	for _, g := range groups {
		bestPos := 0
		bestVal := -1
		for i, varIdx := range g.VarIndices {
			if varIdx > len(sample.Values) {
				return types.Choice{}, fmt.Errorf("%w: variable %d, vector length %d", ErrVectorTooShort, varIdx, len(sample.Values))
			}
			if v := sample.Values[varIdx-1]; v > bestVal {
				bestVal = v
				bestPos = i
			}
		}
		key := g.Keys[bestPos]
		switch g.Name {
		case layout.AxisPosition:
			choice.Position = key
		case layout.AxisHedge:
			choice.Hedge = key
		case layout.AxisSize:
			choice.Size = key
		case layout.AxisRebalance:
			choice.Rebalance = key
		case layout.AxisTenor:
			choice.Tenor = key
		}
	}
	return choice, nil
}

// ComputeBreakdown re-derives the full reward/penalty accounting for a
// choice with the same formulas the energy model uses, evaluated once.
func ComputeBreakdown(catalog types.Catalog, scenario types.Scenario, params types.ModelParameters, choice types.Choice) (types.Breakdown, error) {
	position, ok := catalog.PositionByID(choice.Position)
	if !ok {
		return types.Breakdown{}, fmt.Errorf("%w: position %q", ErrUnknownChoice, choice.Position)
	}
	size, ok := catalog.SizeTierByKey(choice.Size)
	if !ok {
		return types.Breakdown{}, fmt.Errorf("%w: size tier %q", ErrUnknownChoice, choice.Size)
	}
	reb, ok := catalog.RebalanceTierByKey(choice.Rebalance)
	if !ok {
		return types.Breakdown{}, fmt.Errorf("%w: rebalance tier %q", ErrUnknownChoice, choice.Rebalance)
	}
	if _, ok := catalog.Hedges.TypeByKey(choice.Hedge); !ok {
		return types.Breakdown{}, fmt.Errorf("%w: hedge type %q", ErrUnknownChoice, choice.Hedge)
	}

	m := scenario.Multipliers
	hedgeCostAPR, hedgeILMult := energy.HedgeTerms(catalog.Hedges, choice.Position, choice.Hedge, choice.Tenor, choice.Size)

	rewards := types.RewardBreakdown{
		FeeAPR:        position.Reward.FeeAPR,
		IncentiveAPR:  position.Reward.IncentiveAPR,
		BaseAPR:       position.Reward.BaseAPR,
		TotalGrossAPR: energy.GrossRewardAPR(position, m),
	}

	penalties := types.PenaltyBreakdown{
		ILPenaltyAPR:     energy.ILPenaltyAPR(position, size, reb, hedgeILMult, m, params),
		HedgeCostAPR:     hedgeCostAPR,
		ExecutionDragAPR: energy.ExecutionDragAPR(position, size, reb, m, params),
	}
	if choice.Hedge != "none" {
		penalties.HedgeOverheadAPR = energy.HedgeOverheadAPR(position, size, reb, m, params)
	}
	penalties.TotalPenaltiesAPR = penalties.ILPenaltyAPR + penalties.HedgeCostAPR + penalties.ExecutionDragAPR + penalties.HedgeOverheadAPR

	return types.Breakdown{
		Rewards:   rewards,
		Penalties: penalties,
		NetAPR:    rewards.TotalGrossAPR - penalties.TotalPenaltiesAPR,
	}, nil
}

// ComputeBaseline returns the naive comparison choice: the position with the
// highest scenario-scaled gross yield, unhedged, with the decoded size,
// rebalance and tenor kept fixed for a fair comparison.
func ComputeBaseline(catalog types.Catalog, scenario types.Scenario, decoded types.Choice) types.Choice {
	baseline := decoded
	baseline.Hedge = "none"

	bestGross := 0.0
	for i, p := range catalog.Positions {
		gross := energy.GrossRewardAPR(p, scenario.Multipliers)
		if i == 0 || gross > bestGross {
			bestGross = gross
			baseline.Position = p.ID
		}
	}
	return baseline
}
