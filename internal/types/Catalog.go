/*

This file contains the canonical catalog types consumed by the formulation core.

External documents (positions.json, hedges.json, scenarios.json) arrive in loose
shapes; the catalog package normalizes them into these structures before they
reach any formulation logic.

*/

package types

// RewardProfile holds the yield components of a position, all annualized.
type RewardProfile struct {
	FeeAPR       float64 `json:"fee_apr"`
	IncentiveAPR float64 `json:"incentive_apr"`
	BaseAPR      float64 `json:"base_apr"`
}

// GrossAPR returns the unscaled sum of all yield components.
func (r RewardProfile) GrossAPR() float64 {
	return r.FeeAPR + r.IncentiveAPR + r.BaseAPR
}

// RiskProfile holds the risk inputs for a position.
type RiskProfile struct {
	ILRiskScore            float64 `json:"il_risk_score"`
	LiquidityUnwindCostUSD float64 `json:"liquidity_unwind_cost_usd"`
}

// ExecutionProfile holds the per-rebalance execution cost inputs for a position.
type ExecutionProfile struct {
	GasCostUSDPerRebalance  float64 `json:"gas_cost_usd_per_rebalance"`
	SlippageBpsPerRebalance float64 `json:"slippage_bps_per_rebalance"`
	MEVRiskScore            float64 `json:"mev_risk_score"`
	FailureProbPerRebalance float64 `json:"failure_prob_per_rebalance"`
}

// Position is one yield-bearing candidate in the selection catalog.
type Position struct {
	ID        string           `json:"id"`
	Label     string           `json:"label"`
	Reward    RewardProfile    `json:"reward"`
	Risk      RiskProfile      `json:"risk"`
	Execution ExecutionProfile `json:"execution"`
}

// HedgeType describes one hedge strategy with its catalog-wide defaults.
// An ILMultiplier below 1.0 reduces the IL penalty of a hedged position.
type HedgeType struct {
	Key                 string  `json:"key"`
	DefaultCostAPR      float64 `json:"default_cost_apr"`
	DefaultILMultiplier float64 `json:"default_il_multiplier"`
}

// HedgeQuote overrides the hedge defaults for a specific position and tenor.
// Nil fields keep the default value.
type HedgeQuote struct {
	CostAPR      *float64 `json:"cost_apr,omitempty"`
	ILMultiplier *float64 `json:"il_multiplier,omitempty"`
}

// PositionHedgeOverride carries the per-tenor, per-hedge quotes for one position.
// Keyed tenor -> hedge key -> quote.
type PositionHedgeOverride struct {
	PositionID     string                           `json:"position_id"`
	TenorOverrides map[string]map[string]HedgeQuote `json:"tenor_overrides"`
}

// HedgeSizeScaling scales hedge cost and benefit by position-size tier.
type HedgeSizeScaling struct {
	CostMultiplier    float64 `json:"cost_multiplier"`
	BenefitMultiplier float64 `json:"benefit_multiplier"`
}

// HedgeBook is the full hedge catalog: strategy defaults, optional
// position/tenor quotes, size scaling factors, and the optional tenor axis.
type HedgeBook struct {
	Types             []HedgeType                 `json:"hedge_types"`
	PositionOverrides []PositionHedgeOverride     `json:"position_overrides,omitempty"`
	SizeScaling       map[string]HedgeSizeScaling `json:"size_scaling,omitempty"`
	TenorTiers        []TenorTier                 `json:"tenor_tiers,omitempty"`
}

// TypeByKey returns the hedge type with the given key, if present.
func (h HedgeBook) TypeByKey(key string) (HedgeType, bool) {
	for _, ht := range h.Types {
		if ht.Key == key {
			return ht, true
		}
	}
	return HedgeType{}, false
}

// SizeTier is one position-size bucket.
type SizeTier struct {
	Key         string  `json:"key"`
	NotionalUSD float64 `json:"notional_usd"`
	Multiplier  float64 `json:"multiplier"`
}

// RebalanceTier is one rebalance-frequency bucket.
type RebalanceTier struct {
	Key              string  `json:"key"`
	RebalancePerWeek float64 `json:"rebalance_per_week"`
	Multiplier       float64 `json:"multiplier"`
}

// TenorTier is one option-tenor bucket (e.g. "7D", "14D", "30D").
type TenorTier struct {
	Key string `json:"key"`
}

// ScenarioMultipliers scale the reward and cost inputs uniformly for a
// market regime. A value of 1.0 leaves the input unchanged.
type ScenarioMultipliers struct {
	Reward   float64 `json:"reward_multiplier"`
	ILRisk   float64 `json:"il_risk_multiplier"`
	Gas      float64 `json:"gas_multiplier"`
	Slippage float64 `json:"slippage_multiplier"`
	MEV      float64 `json:"mev_multiplier"`
	Failure  float64 `json:"failure_multiplier"`
}

// Scenario is one named market regime. Immutable once selected for a run.
type Scenario struct {
	ID          string              `json:"scenario_id"`
	Label       string              `json:"label,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	Multipliers ScenarioMultipliers `json:"multipliers"`
}

// Catalog aggregates every axis catalog needed for one optimization request.
type Catalog struct {
	Positions      []Position      `json:"positions"`
	Hedges         HedgeBook       `json:"hedges"`
	SizeTiers      []SizeTier      `json:"size_tiers"`
	RebalanceTiers []RebalanceTier `json:"rebalance_tiers"`
}

// PositionByID returns the position with the given ID, if present.
func (c Catalog) PositionByID(id string) (Position, bool) {
	for _, p := range c.Positions {
		if p.ID == id {
			return p, true
		}
	}
	return Position{}, false
}

// SizeTierByKey returns the size tier with the given key, if present.
func (c Catalog) SizeTierByKey(key string) (SizeTier, bool) {
	for _, s := range c.SizeTiers {
		if s.Key == key {
			return s, true
		}
	}
	return SizeTier{}, false
}

// RebalanceTierByKey returns the rebalance tier with the given key, if present.
func (c Catalog) RebalanceTierByKey(key string) (RebalanceTier, bool) {
	for _, r := range c.RebalanceTiers {
		if r.Key == key {
			return r, true
		}
	}
	return RebalanceTier{}, false
}

// HasTenorAxis reports whether the optional tenor axis is present.
func (c Catalog) HasTenorAxis() bool {
	return len(c.Hedges.TenorTiers) > 0
}
