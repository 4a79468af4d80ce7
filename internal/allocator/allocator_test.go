package allocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/config"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/decoder"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/layout"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

func neutralScenario() types.Scenario {
	return types.Scenario{
		ID: "NEUTRAL",
		Multipliers: types.ScenarioMultipliers{
			Reward: 1.0, ILRisk: 1.0, Gas: 1.0, Slippage: 1.0, MEV: 1.0, Failure: 1.0,
		},
	}
}

// P2's 14% headline yield is wiped out by IL risk even when hedged; the
// clean 10% of P1 should win, unhedged.
func riskTrapCatalog() types.Catalog {
	return types.Catalog{
		Positions: []types.Position{
			{ID: "P1", Label: "Clean yield", Reward: types.RewardProfile{FeeAPR: 0.10}},
			{ID: "P2", Label: "Yield trap", Reward: types.RewardProfile{FeeAPR: 0.08, IncentiveAPR: 0.06}, Risk: types.RiskProfile{ILRiskScore: 0.3}},
			{ID: "P3", Label: "Sleepy pool", Reward: types.RewardProfile{FeeAPR: 0.06}},
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

func TestOptimize_AvoidsYieldTrap(t *testing.T) {
	alloc := New(nil) // exhaustive local enumeration

	result, err := alloc.Optimize(context.Background(), Request{
		Catalog:    riskTrapCatalog(),
		Scenario:   neutralScenario(),
		Parameters: config.DefaultModelParameters,
		NumSamples: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, "P1", result.Decision.PositionID)
	assert.Equal(t, "Clean yield", result.Decision.PositionLabel)
	assert.Equal(t, "none", result.Decision.HedgeType)
	assert.Equal(t, "M", result.Decision.SizeTier)
	assert.Equal(t, "weekly", result.Decision.RebalanceTier)
	assert.Empty(t, result.Decision.TenorTier)
	assert.InDelta(t, 0.10, result.Breakdown.NetAPR, 1e-9)

	// The naive baseline chases P2's headline yield and loses.
	assert.Equal(t, decoder.BaselineID, result.Baseline.BaselineID)
	assert.Equal(t, "P2", result.Baseline.Decision.PositionID)
	assert.Equal(t, "none", result.Baseline.Decision.HedgeType)
	assert.InDelta(t, -0.16, result.Baseline.Breakdown.NetAPR, 1e-9)
	assert.InDelta(t, 0.26, result.Baseline.NetAPRImprovement, 1e-9)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "NEUTRAL", result.ScenarioID)
}

func TestOptimize_HedgesWhenProtectionPaysForItself(t *testing.T) {
	c := riskTrapCatalog()
	// Make P2's hedge worthwhile: residual IL 10% of 18%, cost 2%.
	c.Positions[1].Reward = types.RewardProfile{FeeAPR: 0.20}
	c.Positions[1].Risk.ILRiskScore = 0.18
	c.Hedges.Types[1].DefaultCostAPR = 0.02
	c.Hedges.Types[1].DefaultILMultiplier = 0.10

	alloc := New(nil)
	result, err := alloc.Optimize(context.Background(), Request{
		Catalog:    c,
		Scenario:   neutralScenario(),
		Parameters: config.DefaultModelParameters,
	})
	require.NoError(t, err)

	// Hedged P2 nets 20% - 1.8% - 2% = 16.2%, beating P1's 10%.
	assert.Equal(t, "P2", result.Decision.PositionID)
	assert.Equal(t, "protective_put", result.Decision.HedgeType)
	assert.InDelta(t, 0.162, result.Breakdown.NetAPR, 1e-9)
	assert.Greater(t, result.Baseline.NetAPRImprovement, 0.0)
}

func TestOptimize_TenorAxisSelectsCheapestQuote(t *testing.T) {
	c := riskTrapCatalog()
	c.Hedges.TenorTiers = []types.TenorTier{{Key: "7D"}, {Key: "30D"}}
	c.Positions[1].Reward = types.RewardProfile{FeeAPR: 0.20}
	c.Positions[1].Risk.ILRiskScore = 0.18
	cheap := 0.015
	expensive := 0.08
	c.Hedges.Types[1].DefaultCostAPR = 0.02
	c.Hedges.Types[1].DefaultILMultiplier = 0.10
	c.Hedges.PositionOverrides = []types.PositionHedgeOverride{{
		PositionID: "P2",
		TenorOverrides: map[string]map[string]types.HedgeQuote{
			"7D":  {"protective_put": {CostAPR: &expensive}},
			"30D": {"protective_put": {CostAPR: &cheap}},
		},
	}}

	alloc := New(nil)
	result, err := alloc.Optimize(context.Background(), Request{
		Catalog:    c,
		Scenario:   neutralScenario(),
		Parameters: config.DefaultModelParameters,
	})
	require.NoError(t, err)

	assert.Equal(t, "P2", result.Decision.PositionID)
	assert.Equal(t, "protective_put", result.Decision.HedgeType)
	assert.Equal(t, "30D", result.Decision.TenorTier)
	assert.Equal(t, 5, result.Diagnostics.MaxDegree)
}

func TestOptimize_DiagnosticsDescribeTheRun(t *testing.T) {
	alloc := New(nil)
	result, err := alloc.Optimize(context.Background(), Request{
		Catalog:    riskTrapCatalog(),
		Scenario:   neutralScenario(),
		Parameters: config.DefaultModelParameters,
		NumSamples: 4,
	})
	require.NoError(t, err)

	d := result.Diagnostics
	assert.Equal(t, 7, d.NumVariables)
	assert.Equal(t, 4, d.MaxDegree)
	assert.Greater(t, d.TermCount, 0)
	assert.Greater(t, d.Lambda, 0.0)
	assert.GreaterOrEqual(t, d.RescaleDivisor, 1.0)
	assert.Len(t, d.Energies, 4)
	assert.Len(t, d.Counts, 4)
	assert.Len(t, d.BestVector, 7)
	assert.Equal(t, d.Energies[0], d.BestEnergy)

	// Every axis key appears in the decoded bit map.
	require.Contains(t, d.GroupBits, layout.AxisPosition)
	assert.Equal(t, 1, d.GroupBits[layout.AxisPosition]["P1"])
	assert.Equal(t, 0, d.GroupBits[layout.AxisPosition]["P2"])
	assert.Equal(t, 1, d.GroupBits[layout.AxisHedge]["none"])
}

func TestOptimize_RejectsTinyCatalog(t *testing.T) {
	c := riskTrapCatalog()
	c.Positions = c.Positions[:2]

	alloc := New(nil)
	_, err := alloc.Optimize(context.Background(), Request{
		Catalog:    c,
		Scenario:   neutralScenario(),
		Parameters: config.DefaultModelParameters,
	})
	assert.ErrorIs(t, err, layout.ErrCatalogTooSmall)
}
