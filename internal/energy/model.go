/*

This file contains the energy-model builder.

It converts the catalogs, the selected scenario multipliers, and the model
parameters into a higher-order polynomial over binary selector variables:
rewards enter as negated linear terms, costs and risk penalties as degree 3-5
interaction terms, and one-hot selection constraints as quadratic penalties
whose weight dominates the objective.

*/

package energy

import (
	"errors"
	"fmt"
	"math"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/layout"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/logger"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/polynomial"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

var ErrInvalidModelParameters = errors.New("invalid model parameters")

var energyLogger = logger.GetForComponent("energy_model")

// weeksPerYear annualizes per-week rebalance costs.
const weeksPerYear = 52.0

// Metadata describes the assembled model for diagnostics and auditing.
type Metadata struct {
	Lambda    float64 `json:"lambda"`
	MaxDegree int     `json:"max_degree"`
	TermCount int     `json:"term_count"`
}

// GrossRewardAPR returns the scenario-scaled total yield of a position.
func GrossRewardAPR(p types.Position, m types.ScenarioMultipliers) float64 {
	return p.Reward.GrossAPR() * m.Reward
}

// gasAPRPerRebalance converts the scenario-scaled gas cost of one rebalance
// from USD into a fraction of the tier notional.
func gasAPRPerRebalance(p types.Position, size types.SizeTier, m types.ScenarioMultipliers) float64 {
	return p.Execution.GasCostUSDPerRebalance * m.Gas / math.Max(size.NotionalUSD, 1.0)
}

// ExecutionDragAPR returns the annualized execution cost of running a
// position at the given size and rebalance cadence: gas, slippage, MEV and
// failure losses per rebalance, annualized and scaled by the rebalance-tier
// multiplier, plus a flat fraction of the annualized liquidity unwind cost.
func ExecutionDragAPR(p types.Position, size types.SizeTier, reb types.RebalanceTier, m types.ScenarioMultipliers, params types.ModelParameters) float64 {
	gasAPR := gasAPRPerRebalance(p, size, m)
	slippageAPR := (p.Execution.SlippageBpsPerRebalance * m.Slippage / 10000.0) * math.Pow(size.Multiplier, params.SlippageSizeExponent)
	mevAPR := p.Execution.MEVRiskScore * m.MEV * params.MEVScoreToAPR * math.Pow(size.Multiplier, params.MEVSizeExponent)
	failAPR := p.Execution.FailureProbPerRebalance * m.Failure * params.FailProbToAPR * math.Pow(size.Multiplier, params.FailureSizeExponent)

	perRebalanceAPR := (gasAPR + slippageAPR + mevAPR + failAPR) * reb.RebalancePerWeek * weeksPerYear * reb.Multiplier

	unwindAPR := p.Risk.LiquidityUnwindCostUSD / math.Max(size.NotionalUSD, 1.0)
	return perRebalanceAPR + params.UnwindCostFraction*unwindAPR
}

// ILPenaltyAPR returns the annualized impermanent-loss penalty for a
// position under the given size/rebalance tiers and hedge IL multiplier.
// The rebalance multiplier enters with a damping exponent below 1 because
// churn only partially amplifies IL exposure.
func ILPenaltyAPR(p types.Position, size types.SizeTier, reb types.RebalanceTier, hedgeILMultiplier float64, m types.ScenarioMultipliers, params types.ModelParameters) float64 {
	base := p.Risk.ILRiskScore * params.ILScoreToAPR * m.ILRisk
	return base * math.Pow(size.Multiplier, params.ILSizeExponent) * math.Pow(reb.Multiplier, params.RebalanceDampingExponent) * hedgeILMultiplier
}

// HedgeOverheadAPR returns the extra annualized gas drag a hedged position
// pays for the additional transactions each rebalance requires.
func HedgeOverheadAPR(p types.Position, size types.SizeTier, reb types.RebalanceTier, m types.ScenarioMultipliers, params types.ModelParameters) float64 {
	return params.HedgeExtraGasMultiplier * gasAPRPerRebalance(p, size, m) * reb.RebalancePerWeek * weeksPerYear
}

// HedgeTerms resolves the effective hedge cost APR and IL multiplier for a
// (position, hedge, tenor, size) combination: hedge-type defaults first, then
// any position-specific tenor quote, then per-size scaling factors.
func HedgeTerms(book types.HedgeBook, positionID, hedgeKey, tenorKey, sizeKey string) (costAPR, ilMultiplier float64) {
	costAPR = 0.0
	ilMultiplier = 1.0
	if ht, ok := book.TypeByKey(hedgeKey); ok {
		costAPR = ht.DefaultCostAPR
		ilMultiplier = ht.DefaultILMultiplier
	}

	if tenorKey != "" {
		for _, override := range book.PositionOverrides {
			if override.PositionID != positionID {
				continue
			}
			if quotes, ok := override.TenorOverrides[tenorKey]; ok {
				if quote, ok := quotes[hedgeKey]; ok {
					if quote.CostAPR != nil {
						costAPR = *quote.CostAPR
					}
					if quote.ILMultiplier != nil {
						ilMultiplier = *quote.ILMultiplier
					}
				}
			}
		}
	}

	if scaling, ok := book.SizeScaling[sizeKey]; ok {
		costAPR *= scaling.CostMultiplier
		ilMultiplier *= scaling.BenefitMultiplier
	}

	return costAPR, ilMultiplier
}

// ConstraintWeight derives the one-hot penalty weight lambda from the
// largest-magnitude objective coefficient. The weight must dominate the
// objective so any constraint-violating assignment costs more than any valid
// one, while ties among valid selections are still broken by the objective.
func ConstraintWeight(maxAbsCoefficient, lambdaMultiplier float64) float64 {
	if maxAbsCoefficient <= 0 {
		maxAbsCoefficient = 1.0
	}
	return lambdaMultiplier * maxAbsCoefficient
}

// AddOneHotConstraints appends, for each axis group, the expansion of
// lambda*(sum(v_i) - 1)^2 with the constant dropped:
//
//	-lambda * sum(v_i)  +  2*lambda * sum_{i<j}(v_i * v_j)
//
// Valid because every v_i is binary, so v_i^2 == v_i. The contribution is
// zero when exactly one variable in the group is set and positive otherwise.
func AddOneHotConstraints(b *polynomial.Builder, groups []layout.AxisGroup, lambda float64) error {
	for _, group := range groups {
		for _, vi := range group.VarIndices {
			if err := b.Add([]int{vi}, -lambda); err != nil {
				return fmt.Errorf("one-hot linear term for axis %s: %w", group.Name, err)
			}
		}
		for i := 0; i < len(group.VarIndices); i++ {
			for j := i + 1; j < len(group.VarIndices); j++ {
				if err := b.Add([]int{group.VarIndices[i], group.VarIndices[j]}, 2.0*lambda); err != nil {
					return fmt.Errorf("one-hot pair term for axis %s: %w", group.Name, err)
				}
			}
		}
	}
	return nil
}

// BuildModel populates a polynomial builder with the full energy objective
// for the given catalog, scenario and parameters, then appends the one-hot
// constraints. The returned builder is owned by the caller; a final rescale
// (if configured) is the caller's decision so the lambda in Metadata always
// refers to pre-rescale units.
func BuildModel(catalog types.Catalog, scenario types.Scenario, params types.ModelParameters, l *layout.Layout) (*polynomial.Builder, Metadata, error) {
	if err := params.Validate(); err != nil {
		return nil, Metadata{}, errors.Join(ErrInvalidModelParameters, err)
	}

	m := scenario.Multipliers
	b := polynomial.NewBuilder(l.MaxDegree())

	// The layout was built from this same catalog, so every key resolves.
	indexByKey := make(map[string]map[string]int, len(l.Groups))
	for _, group := range l.Groups {
		axis := make(map[string]int, len(group.Keys))
		for i, key := range group.Keys {
			axis[key] = group.VarIndices[i]
		}
		indexByKey[group.Name] = axis
	}
	idxOf := func(axis, key string) int {
		return indexByKey[axis][key]
	}

	// Linear reward terms, negated: minimizing -reward maximizes reward.
	for _, p := range catalog.Positions {
		if err := b.Add([]int{idxOf(layout.AxisPosition, p.ID)}, -GrossRewardAPR(p, m)); err != nil {
			return nil, Metadata{}, fmt.Errorf("reward term for %s: %w", p.ID, err)
		}
	}

	tenorKeys := []string{""}
	if l.HasTenor() {
		tenorKeys = make([]string, len(catalog.Hedges.TenorTiers))
		for i, t := range catalog.Hedges.TenorTiers {
			tenorKeys[i] = t.Key
		}
	}

	for _, p := range catalog.Positions {
		posIdx := idxOf(layout.AxisPosition, p.ID)

		for _, size := range catalog.SizeTiers {
			sizeIdx := idxOf(layout.AxisSize, size.Key)

			for _, reb := range catalog.RebalanceTiers {
				rebIdx := idxOf(layout.AxisRebalance, reb.Key)

				// Execution drag: position x size x rebalance.
				drag := ExecutionDragAPR(p, size, reb, m, params)
				if err := b.Add([]int{posIdx, sizeIdx, rebIdx}, drag); err != nil {
					return nil, Metadata{}, fmt.Errorf("execution drag term for %s/%s/%s: %w", p.ID, size.Key, reb.Key, err)
				}

				for _, hedge := range catalog.Hedges.Types {
					hedgeIdx := idxOf(layout.AxisHedge, hedge.Key)

					for _, tenorKey := range tenorKeys {
						hedgeCostAPR, hedgeILMult := HedgeTerms(catalog.Hedges, p.ID, hedge.Key, tenorKey, size.Key)

						// IL penalty: position x size x rebalance x hedge.
						ilPenalty := ILPenaltyAPR(p, size, reb, hedgeILMult, m, params)
						if err := b.Add([]int{posIdx, sizeIdx, rebIdx, hedgeIdx}, ilPenalty); err != nil {
							return nil, Metadata{}, fmt.Errorf("IL penalty term for %s/%s: %w", p.ID, hedge.Key, err)
						}

						// Hedge cost: position x size x hedge, plus the tenor
						// variable when the axis exists.
						costMono := []int{posIdx, sizeIdx, hedgeIdx}
						if tenorKey != "" {
							costMono = append(costMono, idxOf(layout.AxisTenor, tenorKey))
						}
						if err := b.Add(costMono, hedgeCostAPR); err != nil {
							return nil, Metadata{}, fmt.Errorf("hedge cost term for %s/%s: %w", p.ID, hedge.Key, err)
						}

						// Hedged positions pay for the extra transactions.
						if hedge.Key != "none" {
							overhead := HedgeOverheadAPR(p, size, reb, m, params)
							overheadMono := []int{posIdx, sizeIdx, rebIdx, hedgeIdx}
							if tenorKey != "" {
								overheadMono = append(overheadMono, idxOf(layout.AxisTenor, tenorKey))
							}
							if err := b.Add(overheadMono, overhead); err != nil {
								return nil, Metadata{}, fmt.Errorf("hedge overhead term for %s/%s: %w", p.ID, hedge.Key, err)
							}
						}
					}
				}
			}
		}
	}

	lambda := ConstraintWeight(b.MaxAbsCoefficient(), params.LambdaMultiplier)
	if err := AddOneHotConstraints(b, l.Groups, lambda); err != nil {
		return nil, Metadata{}, err
	}

	meta := Metadata{
		Lambda:    lambda,
		MaxDegree: b.MaxDegree(),
		TermCount: b.TermCount(),
	}

	energyLogger.Debug().
		Str("scenario", scenario.ID).
		Int("numVariables", l.NumVariables()).
		Int("terms", meta.TermCount).
		Int("maxDegree", meta.MaxDegree).
		Float64("lambda", lambda).
		Msg("Energy model assembled")

	return b, meta, nil
}
