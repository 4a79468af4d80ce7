/*

This file contains the output types of one optimization request: the decoded
choice, the auditable APR breakdown, the baseline comparison, and the raw
solver diagnostics kept for debugging.

*/

package types

import "time"

// SolutionSample is one row returned by the combinatorial solver: a 0/1 value
// per variable, the sampled energy, and how many times the sample occurred.
// Owned by the solver adapter; the decoder only reads it.
type SolutionSample struct {
	Values []int   `json:"values"`
	Energy float64 `json:"energy"`
	Count  int     `json:"count"`
}

// Choice is one key selected per axis, decoded from a solution vector.
// Tenor is empty when the catalog carries no tenor axis.
type Choice struct {
	Position  string `json:"position"`
	Hedge     string `json:"hedge"`
	Size      string `json:"size"`
	Rebalance string `json:"rebalance"`
	Tenor     string `json:"tenor,omitempty"`
}

// RewardBreakdown itemizes the gross yield of a choice.
type RewardBreakdown struct {
	FeeAPR        float64 `json:"fee_apr"`
	IncentiveAPR  float64 `json:"incentive_apr"`
	BaseAPR       float64 `json:"base_apr"`
	TotalGrossAPR float64 `json:"total_gross_apr"`
}

// PenaltyBreakdown itemizes the costs and penalties of a choice.
type PenaltyBreakdown struct {
	ILPenaltyAPR      float64 `json:"il_penalty_apr"`
	HedgeCostAPR      float64 `json:"hedge_cost_apr"`
	ExecutionDragAPR  float64 `json:"execution_drag_apr"`
	HedgeOverheadAPR  float64 `json:"hedge_overhead_apr"`
	TotalPenaltiesAPR float64 `json:"total_penalties_apr"`
}

// Breakdown is the full reward/penalty accounting for one choice, recomputed
// independently of the polynomial so the decision is auditable.
type Breakdown struct {
	Rewards   RewardBreakdown  `json:"rewards"`
	Penalties PenaltyBreakdown `json:"penalties_and_costs"`
	NetAPR    float64          `json:"estimated_net_apr"`
}

// Decision is the decoded selection presented to callers.
type Decision struct {
	PositionID    string `json:"position_id"`
	PositionLabel string `json:"position_label"`
	HedgeType     string `json:"hedge_type"`
	SizeTier      string `json:"size_bucket"`
	RebalanceTier string `json:"rebalance_bucket"`
	TenorTier     string `json:"tenor_bucket,omitempty"`
}

// BaselineComparison compares the optimized decision against the naive
// "highest headline yield, no hedge" strategy.
type BaselineComparison struct {
	BaselineID        string    `json:"baseline_id"`
	Decision          Decision  `json:"baseline_decision"`
	Breakdown         Breakdown `json:"baseline_score_breakdown"`
	NetAPRImprovement float64   `json:"net_apr_improvement"`
}

// SolverDiagnostics preserves the raw solver output and formulation metadata
// for debugging and audits.
type SolverDiagnostics struct {
	NumVariables   int                       `json:"num_variables"`
	TermCount      int                       `json:"term_count"`
	MaxDegree      int                       `json:"max_degree"`
	Lambda         float64                   `json:"lambda"`
	RescaleDivisor float64                   `json:"rescale_divisor"`
	Energies       []float64                 `json:"energies"`
	Counts         []int                     `json:"counts"`
	BestEnergy     float64                   `json:"best_energy"`
	BestVector     []int                     `json:"best_vector"`
	GroupBits      map[string]map[string]int `json:"group_bits"`
}

// OptimizationResult is the complete outcome of one optimization request.
type OptimizationResult struct {
	RunID       string             `json:"run_id"`
	ScenarioID  string             `json:"scenario_id"`
	AsOf        time.Time          `json:"as_of_utc"`
	Decision    Decision           `json:"decision"`
	Breakdown   Breakdown          `json:"score_breakdown"`
	Baseline    BaselineComparison `json:"baseline_comparison"`
	Diagnostics SolverDiagnostics  `json:"debug"`
	ElapsedMS   int64              `json:"elapsed_ms"`
}
