package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePositionsDocument_BareList(t *testing.T) {
	doc := []byte(`[
		{"id": "P1", "label": "Stable pair", "reward": {"fee_apr": 0.10}},
		{"id": "P2", "reward": {"fee_apr": 0.08, "incentive_apr": 0.06}, "risk": {"il_risk_score": 0.3}}
	]`)

	positions, sizes, rebalances, err := ParsePositionsDocument(doc)
	require.NoError(t, err)

	require.Len(t, positions, 2)
	assert.Equal(t, "P1", positions[0].ID)
	assert.Equal(t, 0.10, positions[0].Reward.FeeAPR)
	assert.Equal(t, 0.3, positions[1].Risk.ILRiskScore)

	// Bucket tables default when the document carries none.
	assert.Equal(t, DefaultSizeTiers(), sizes)
	assert.Equal(t, DefaultRebalanceTiers(), rebalances)
}

func TestParsePositionsDocument_WrappedWithBuckets(t *testing.T) {
	doc := []byte(`{
		"positions": [{"id": "P1"}],
		"buckets": {
			"size_buckets": [{"key": "XL", "notional_usd": 100000, "multiplier": 4.0}],
			"rebalance_buckets": [{"key": "hourly", "rebalance_per_week": 168, "multiplier": 3.0}]
		}
	}`)

	positions, sizes, rebalances, err := ParsePositionsDocument(doc)
	require.NoError(t, err)

	require.Len(t, positions, 1)
	require.Len(t, sizes, 1)
	assert.Equal(t, "XL", sizes[0].Key)
	require.Len(t, rebalances, 1)
	assert.Equal(t, 168.0, rebalances[0].RebalancePerWeek)
}

func TestParsePositionsDocument_LegacyPoolShape(t *testing.T) {
	doc := []byte(`{"pools": [{"pool_id": "POOL-7"}]}`)

	positions, _, _, err := ParsePositionsDocument(doc)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "POOL-7", positions[0].ID)
}

func TestParsePositionsDocument_Invalid(t *testing.T) {
	_, _, _, err := ParsePositionsDocument([]byte(`"not a catalog"`))
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	_, _, _, err = ParsePositionsDocument(nil)
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestParseHedgesDocument_ListShape(t *testing.T) {
	doc := []byte(`{
		"hedge_types": [
			{"key": "none", "default_cost_apr": 0, "default_il_multiplier": 1.0},
			{"key": "collar", "default_cost_apr": 0.03, "default_il_multiplier": 0.80}
		],
		"tenor_buckets": [{"key": "7D"}, {"key": "30D"}]
	}`)

	book, err := ParseHedgesDocument(doc)
	require.NoError(t, err)

	require.Len(t, book.Types, 2)
	assert.Equal(t, "collar", book.Types[1].Key)
	require.Len(t, book.TenorTiers, 2)
	assert.Equal(t, "7D", book.TenorTiers[0].Key)
}

func TestParseHedgesDocument_MapShape(t *testing.T) {
	doc := []byte(`{
		"hedge_types": {
			"protective_put": {"cost_apr": 0.06, "il_multiplier": 0.65},
			"none": {}
		},
		"tenor_buckets": ["7D", "14D", "30D"]
	}`)

	book, err := ParseHedgesDocument(doc)
	require.NoError(t, err)

	// Map entries come out sorted by key, with absent fields defaulted.
	require.Len(t, book.Types, 2)
	assert.Equal(t, "none", book.Types[0].Key)
	assert.Equal(t, 0.0, book.Types[0].DefaultCostAPR)
	assert.Equal(t, 1.0, book.Types[0].DefaultILMultiplier)
	assert.Equal(t, "protective_put", book.Types[1].Key)
	assert.Equal(t, 0.65, book.Types[1].DefaultILMultiplier)

	require.Len(t, book.TenorTiers, 3)
	assert.Equal(t, "14D", book.TenorTiers[1].Key)
}

func TestParseHedgesDocument_TenorMapShape(t *testing.T) {
	doc := []byte(`{"tenor_buckets": {"30D": {}, "7D": {}}}`)

	book, err := ParseHedgesDocument(doc)
	require.NoError(t, err)
	require.Len(t, book.TenorTiers, 2)
	assert.Equal(t, "30D", book.TenorTiers[0].Key)
	assert.Equal(t, "7D", book.TenorTiers[1].Key)
}

func TestParseHedgesDocument_OverridesAndScaling(t *testing.T) {
	doc := []byte(`{
		"pool_overrides": [
			{"pool_id": "P1", "tenor_overrides": {"7D": {"protective_put": {"cost_apr": 0.05}}}}
		],
		"position_overrides": [
			{"position_id": "P2", "tenor_overrides": {"30D": {"collar": {"il_multiplier": 0.75}}}}
		],
		"size_scaling": {"L": {"cost_multiplier": 1.2, "benefit_multiplier": 0.9}}
	}`)

	book, err := ParseHedgesDocument(doc)
	require.NoError(t, err)

	require.Len(t, book.PositionOverrides, 2)
	assert.Equal(t, "P1", book.PositionOverrides[0].PositionID)
	assert.Equal(t, "P2", book.PositionOverrides[1].PositionID)
	require.NotNil(t, book.PositionOverrides[0].TenorOverrides["7D"]["protective_put"].CostAPR)
	assert.Equal(t, 0.05, *book.PositionOverrides[0].TenorOverrides["7D"]["protective_put"].CostAPR)

	scaling, ok := book.SizeScaling["L"]
	require.True(t, ok)
	assert.Equal(t, 1.2, scaling.CostMultiplier)
}

func TestParseHedgesDocument_EmptyDefaultsToNoTenorAxis(t *testing.T) {
	book, err := ParseHedgesDocument(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultHedgeTypes(), book.Types)
	assert.Empty(t, book.TenorTiers)
}

func TestBuildCatalog_ValidationRejectsBrokenNumbers(t *testing.T) {
	doc := []byte(`[{"id": "P1", "risk": {"il_risk_score": -0.5}}]`)
	_, err := BuildCatalog(doc, nil)
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	doc = []byte(`[{"label": "missing id"}]`)
	_, err = BuildCatalog(doc, nil)
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestParseScenariosDocument_DefaultsMissingMultipliersToOne(t *testing.T) {
	doc := []byte(`{"scenarios": [
		{"scenario_id": "CUSTOM", "multipliers": {"gas_multiplier": 2.0}}
	]}`)

	scenarios, err := ParseScenariosDocument(doc)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)

	m := scenarios[0].Multipliers
	assert.Equal(t, 2.0, m.Gas)
	assert.Equal(t, 1.0, m.Reward)
	assert.Equal(t, 1.0, m.ILRisk)
	assert.Equal(t, 1.0, m.Failure)
}

func TestParseScenariosDocument_EmptyYieldsBuiltins(t *testing.T) {
	scenarios, err := ParseScenariosDocument(nil)
	require.NoError(t, err)
	assert.Equal(t, BuiltinScenarios(), scenarios)
}

func TestPickScenario(t *testing.T) {
	scenario, err := PickScenario(BuiltinScenarios(), "CHAOTIC")
	require.NoError(t, err)
	assert.Equal(t, 1.6, scenario.Multipliers.ILRisk)
	assert.Equal(t, 1.8, scenario.Multipliers.Gas)

	_, err = PickScenario(BuiltinScenarios(), "APOCALYPTIC")
	assert.ErrorIs(t, err, ErrScenarioNotFound)
}
