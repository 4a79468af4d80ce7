/*

This file contains the tunable parameters of the energy model.

Different sets of these parameters can exist for different risk appetites;
defaults live in internal/config.

*/

package types

import "errors"

var (
	ErrLambdaMultiplierTooSmall  = errors.New("lambda multiplier must exceed 1.0 for constraint dominance")
	ErrDampingExponentOutOfRange = errors.New("rebalance damping exponent must be in (0, 1]")
	ErrNegativeRescaleTarget     = errors.New("target max coefficient cannot be negative")
)

// ModelParameters holds every tunable constant used when converting catalog
// inputs into polynomial coefficients. The formulation core never hard-codes
// any of these values.
type ModelParameters struct {
	// --- Score-to-APR conversions ---
	ILScoreToAPR   float64 `json:"il_score_to_apr"`   // IL risk score -> APR penalty. 1.0 when the score is already an APR.
	MEVScoreToAPR  float64 `json:"mev_score_to_apr"`  // MEV risk score -> APR penalty per rebalance.
	FailProbToAPR  float64 `json:"fail_prob_to_apr"`  // Failure probability -> expected-loss APR proxy per rebalance.

	// --- Size-impact exponents ---
	// Larger trades suffer super-linear price impact; these exponents shape
	// how the size-tier multiplier amplifies each cost component.
	SlippageSizeExponent float64 `json:"slippage_size_exponent"` // applied to the size multiplier for slippage.
	MEVSizeExponent      float64 `json:"mev_size_exponent"`      // applied to the size multiplier for MEV exposure.
	FailureSizeExponent  float64 `json:"failure_size_exponent"`  // applied to the size multiplier for failure losses.
	ILSizeExponent       float64 `json:"il_size_exponent"`       // applied to the size multiplier for IL exposure.

	// RebalanceDampingExponent (<1) partially damps how rebalance frequency
	// amplifies IL exposure: frequent rebalancing churns the position but does
	// not scale IL linearly.
	RebalanceDampingExponent float64 `json:"rebalance_damping_exponent"`

	// UnwindCostFraction is the flat fraction of the annualized liquidity
	// unwind cost charged into the execution drag term.
	UnwindCostFraction float64 `json:"unwind_cost_fraction"`

	// HedgeExtraGasMultiplier is the extra per-rebalance gas overhead charged
	// when any hedge other than "none" is selected (hedges need extra txs).
	HedgeExtraGasMultiplier float64 `json:"hedge_extra_gas_multiplier"`

	// LambdaMultiplier scales the one-hot constraint weight relative to the
	// largest-magnitude objective coefficient, so constraint violations are
	// always energetically disfavored versus any valid selection.
	LambdaMultiplier float64 `json:"lambda_multiplier"`

	// TargetMaxCoefficient bounds the largest coefficient magnitude submitted
	// to the solver. Zero disables rescaling. Rescaling divides every
	// coefficient uniformly and never changes which selection is optimal.
	TargetMaxCoefficient float64 `json:"target_max_coefficient"`
}

// Validate checks the parameters for values that would corrupt the
// formulation rather than merely tune it.
func (p ModelParameters) Validate() error {
	switch {
	case p.LambdaMultiplier <= 1.0:
		return ErrLambdaMultiplierTooSmall
	case p.RebalanceDampingExponent <= 0 || p.RebalanceDampingExponent > 1:
		return ErrDampingExponentOutOfRange
	case p.TargetMaxCoefficient < 0:
		return ErrNegativeRescaleTarget
	}
	return nil
}
