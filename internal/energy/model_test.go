package energy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/config"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/layout"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/polynomial"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

func ptr(v float64) *float64 { return &v }

func neutralScenario() types.Scenario {
	return types.Scenario{
		ID: "NEUTRAL",
		Multipliers: types.ScenarioMultipliers{
			Reward: 1.0, ILRisk: 1.0, Gas: 1.0, Slippage: 1.0, MEV: 1.0, Failure: 1.0,
		},
	}
}

// Three positions, two hedges, one size, one cadence. P1 yields 10% with no
// risk, P2 yields 14% carrying IL risk, P3 yields 6% risk-free.
func simpleCatalog() types.Catalog {
	return types.Catalog{
		Positions: []types.Position{
			{ID: "P1", Reward: types.RewardProfile{FeeAPR: 0.04, IncentiveAPR: 0.03, BaseAPR: 0.03}},
			{ID: "P2", Reward: types.RewardProfile{FeeAPR: 0.08, IncentiveAPR: 0.06}, Risk: types.RiskProfile{ILRiskScore: 0.3}},
			{ID: "P3", Reward: types.RewardProfile{FeeAPR: 0.06}},
		},
		Hedges: types.HedgeBook{
			Types: []types.HedgeType{
				{Key: "none", DefaultCostAPR: 0.0, DefaultILMultiplier: 1.0},
				{Key: "protective_put", DefaultCostAPR: 0.06, DefaultILMultiplier: 0.65},
			},
		},
		SizeTiers:      []types.SizeTier{{Key: "M", NotionalUSD: 5000, Multiplier: 1.0}},
		RebalanceTiers: []types.RebalanceTier{{Key: "weekly", RebalancePerWeek: 1, Multiplier: 1.0}},
	}
}

func TestExecutionDragAPR(t *testing.T) {
	p := types.Position{
		Risk: types.RiskProfile{LiquidityUnwindCostUSD: 50},
		Execution: types.ExecutionProfile{
			GasCostUSDPerRebalance:  2.0,
			SlippageBpsPerRebalance: 5.0,
			MEVRiskScore:            0.2,
			FailureProbPerRebalance: 0.01,
		},
	}
	size := types.SizeTier{Key: "M", NotionalUSD: 5000, Multiplier: 1.0}
	reb := types.RebalanceTier{Key: "weekly", RebalancePerWeek: 1, Multiplier: 1.0}

	// gas 2/5000 + slip 5bps + mev 0.2*0.02 + fail 0.01*0.03, annualized
	// over 52 weeks, plus 10% of the 1% unwind fraction.
	drag := ExecutionDragAPR(p, size, reb, neutralScenario().Multipliers, config.DefaultModelParameters)
	assert.InDelta(t, 0.2714, drag, 1e-9)
}

func TestILPenaltyAPR_HedgeReduction(t *testing.T) {
	p := types.Position{Risk: types.RiskProfile{ILRiskScore: 0.3}}
	size := types.SizeTier{Key: "M", NotionalUSD: 5000, Multiplier: 1.0}
	reb := types.RebalanceTier{Key: "weekly", RebalancePerWeek: 1, Multiplier: 1.0}
	m := neutralScenario().Multipliers

	unhedged := ILPenaltyAPR(p, size, reb, 1.0, m, config.DefaultModelParameters)
	hedged := ILPenaltyAPR(p, size, reb, 0.65, m, config.DefaultModelParameters)

	assert.InDelta(t, 0.30, unhedged, 1e-9)
	assert.InDelta(t, 0.195, hedged, 1e-9)
}

func TestHedgeOverheadAPR(t *testing.T) {
	p := types.Position{Execution: types.ExecutionProfile{GasCostUSDPerRebalance: 2.0}}
	size := types.SizeTier{Key: "M", NotionalUSD: 5000, Multiplier: 1.0}
	reb := types.RebalanceTier{Key: "weekly", RebalancePerWeek: 1, Multiplier: 1.0}

	overhead := HedgeOverheadAPR(p, size, reb, neutralScenario().Multipliers, config.DefaultModelParameters)
	assert.InDelta(t, 0.6*(2.0/5000.0)*52.0, overhead, 1e-9)
}

func TestHedgeTerms_Defaults(t *testing.T) {
	book := simpleCatalog().Hedges
	cost, ilMult := HedgeTerms(book, "P1", "protective_put", "", "M")
	assert.Equal(t, 0.06, cost)
	assert.Equal(t, 0.65, ilMult)
}

func TestHedgeTerms_TenorOverrideWins(t *testing.T) {
	book := simpleCatalog().Hedges
	book.PositionOverrides = []types.PositionHedgeOverride{{
		PositionID: "P1",
		TenorOverrides: map[string]map[string]types.HedgeQuote{
			"7D": {"protective_put": {CostAPR: ptr(0.05), ILMultiplier: ptr(0.60)}},
		},
	}}

	cost, ilMult := HedgeTerms(book, "P1", "protective_put", "7D", "M")
	assert.Equal(t, 0.05, cost)
	assert.Equal(t, 0.60, ilMult)

	// Other positions and tenors keep the defaults.
	cost, ilMult = HedgeTerms(book, "P2", "protective_put", "7D", "M")
	assert.Equal(t, 0.06, cost)
	assert.Equal(t, 0.65, ilMult)
	cost, _ = HedgeTerms(book, "P1", "protective_put", "30D", "M")
	assert.Equal(t, 0.06, cost)
}

func TestHedgeTerms_SizeScalingAppliesLast(t *testing.T) {
	book := simpleCatalog().Hedges
	book.SizeScaling = map[string]types.HedgeSizeScaling{
		"L": {CostMultiplier: 1.2, BenefitMultiplier: 0.9},
	}

	cost, ilMult := HedgeTerms(book, "P1", "protective_put", "", "L")
	assert.InDelta(t, 0.072, cost, 1e-9)
	assert.InDelta(t, 0.585, ilMult, 1e-9)
}

func TestConstraintWeight(t *testing.T) {
	assert.Equal(t, 6.0, ConstraintWeight(0.3, 20.0))
	// Degenerate all-zero objective still gets a positive weight.
	assert.Equal(t, 20.0, ConstraintWeight(0, 20.0))
}

func TestAddOneHotConstraints(t *testing.T) {
	b := polynomial.NewBuilder(2)
	groups := []layout.AxisGroup{
		{Name: "a", Keys: []string{"x", "y"}, VarIndices: []int{1, 2}},
		{Name: "b", Keys: []string{"z"}, VarIndices: []int{3}},
	}
	lambda := 5.0
	require.NoError(t, AddOneHotConstraints(b, groups, lambda))

	valid := b.EvaluateAt([]int{1, 0, 1})
	doubled := b.EvaluateAt([]int{1, 1, 1})
	empty := b.EvaluateAt([]int{0, 0, 1})

	// Each satisfied group contributes exactly -lambda; a violated group
	// costs lambda*(k-1)^2 more than a satisfied one.
	assert.InDelta(t, -2*lambda, valid, 1e-9)
	assert.InDelta(t, lambda, doubled-valid, 1e-9)
	assert.InDelta(t, lambda, empty-valid, 1e-9)
}

func TestBuildModel_EnergyOrdersSelections(t *testing.T) {
	c := simpleCatalog()
	l, err := layout.Build(c)
	require.NoError(t, err)

	b, meta, err := BuildModel(c, neutralScenario(), config.DefaultModelParameters, l)
	require.NoError(t, err)

	// Largest objective coefficient is P2's unhedged IL penalty of 0.30.
	assert.InDelta(t, 6.0, meta.Lambda, 1e-9)
	assert.Equal(t, 4, meta.MaxDegree)

	assignment := func(position, hedge string) []int {
		values := make([]int, l.NumVariables())
		for axis, key := range map[string]string{
			layout.AxisPosition:  position,
			layout.AxisHedge:     hedge,
			layout.AxisSize:      "M",
			layout.AxisRebalance: "weekly",
		} {
			idx, err := l.VariableIndex(axis, key)
			require.NoError(t, err)
			values[idx-1] = 1
		}
		return values
	}

	constShift := -4 * meta.Lambda

	// P1 unhedged: pure 10% yield, nothing to pay.
	assert.InDelta(t, constShift-0.10, b.EvaluateAt(assignment("P1", "none")), 1e-9)
	// P2 unhedged: 14% yield minus 30% IL penalty.
	assert.InDelta(t, constShift+0.16, b.EvaluateAt(assignment("P2", "none")), 1e-9)
	// P2 hedged: 14% minus 19.5% residual IL minus 6% hedge cost.
	assert.InDelta(t, constShift+0.115, b.EvaluateAt(assignment("P2", "protective_put")), 1e-9)
	// Hedging the riskless P1 only adds cost.
	assert.InDelta(t, constShift-0.04, b.EvaluateAt(assignment("P1", "protective_put")), 1e-9)

	// The energy minimum among these is the unhedged P1 selection.
	best := b.EvaluateAt(assignment("P1", "none"))
	for _, alt := range [][2]string{{"P2", "none"}, {"P2", "protective_put"}, {"P3", "none"}, {"P1", "protective_put"}} {
		assert.Less(t, best, b.EvaluateAt(assignment(alt[0], alt[1])))
	}
}

func TestBuildModel_ViolationsCostMoreThanAnyValidChoice(t *testing.T) {
	c := simpleCatalog()
	l, err := layout.Build(c)
	require.NoError(t, err)

	b, _, err := BuildModel(c, neutralScenario(), config.DefaultModelParameters, l)
	require.NoError(t, err)

	valid := make([]int, l.NumVariables())
	for _, g := range l.Groups {
		valid[g.VarIndices[0]-1] = 1
	}
	worstValidEnergy := b.EvaluateAt(valid)
	for _, g := range l.Groups {
		for _, idx := range g.VarIndices {
			candidate := make([]int, l.NumVariables())
			copy(candidate, valid)
			for _, other := range g.VarIndices {
				candidate[other-1] = 0
			}
			candidate[idx-1] = 1
			if e := b.EvaluateAt(candidate); e > worstValidEnergy {
				worstValidEnergy = e
			}
		}
	}

	// Set two positions at once, keep everything else valid.
	violating := make([]int, l.NumVariables())
	copy(violating, valid)
	posGroup, _ := l.Group(layout.AxisPosition)
	violating[posGroup.VarIndices[1]-1] = 1

	assert.Greater(t, b.EvaluateAt(violating), worstValidEnergy)
}

func TestBuildModel_RejectsInvalidParameters(t *testing.T) {
	c := simpleCatalog()
	l, err := layout.Build(c)
	require.NoError(t, err)

	params := config.DefaultModelParameters
	params.LambdaMultiplier = 1.0

	_, _, err = BuildModel(c, neutralScenario(), params, l)
	assert.ErrorIs(t, err, ErrInvalidModelParameters)
	assert.ErrorIs(t, err, types.ErrLambdaMultiplierTooSmall)
}
