/*

This file contains the default energy-model parameters.

The exponents and conversion factors below are empirical tuning constants
carried over from backtest calibration; they are deliberately configuration,
not derivation.

*/

package config

import (
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

// DefaultModelParameters provides the baseline tuning constants for the
// energy formulation. These values are used whenever a request does not
// supply its own parameter set.
var DefaultModelParameters = types.ModelParameters{
	ILScoreToAPR: 1.0, // IL risk scores in the position catalog are already APR-denominated.

	MEVScoreToAPR: 0.02, // A 0.5 MEV score costs 1% APR per rebalance before size scaling.

	FailProbToAPR: 0.03, // A 20% failure probability costs 0.6% APR per rebalance as an expected-loss proxy.

	SlippageSizeExponent: 1.2, // Price impact grows super-linearly with trade size.
	MEVSizeExponent:      1.1, // Larger trades are marginally more attractive MEV targets.
	FailureSizeExponent:  1.0, // Failure losses scale linearly with size.
	ILSizeExponent:       1.0, // IL exposure scales linearly with notional.

	RebalanceDampingExponent: 0.8, // Frequent rebalancing only partially amplifies IL exposure.

	UnwindCostFraction: 0.1, // Charge a tenth of the annualized unwind cost as a standing drag.

	HedgeExtraGasMultiplier: 0.6, // Hedged positions pay 60% extra gas for the additional option txs.

	LambdaMultiplier: 20.0, // One-hot penalty dominates the objective by a factor of 20.

	TargetMaxCoefficient: 25.0, // Keep submitted coefficients tame for solver numerics.
}
