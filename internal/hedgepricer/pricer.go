/*

This file prices hedge instruments with a Black-Scholes put model and
derives the per-tenor {cost_apr, il_multiplier} quotes consumed by the
hedge catalog. Collars are approximated as a put purchase financed by an
out-of-the-money call sale.

*/

package hedgepricer

import (
	"errors"
	"fmt"
	"math"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/logger"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

var pricerLogger = logger.GetForComponent("hedge_pricer")

var ErrUnknownHedgeType = errors.New("unknown hedge type")

const (
	// Annualized risk-free rate, approximate US Treasury level.
	riskFreeRate = 0.04

	daysPerYear = 365.0

	// Default spot prices used when the caller has none.
	defaultSpotETH = 3500.0
	defaultSpotBTC = 65000.0
)

// defaultImpliedVol returns the annualized implied volatility assumed for
// an asset when no market quote is available.
func defaultImpliedVol(asset string) float64 {
	switch asset {
	case "BTC":
		return 0.50
	default:
		return 0.60
	}
}

func defaultSpot(asset string) float64 {
	if asset == "BTC" {
		return defaultSpotBTC
	}
	return defaultSpotETH
}

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// BlackScholesPut prices a European put. An expired option is worth its
// intrinsic value.
func BlackScholesPut(spot, strike float64, tenorDays int, volatility, rate float64) float64 {
	t := float64(tenorDays) / daysPerYear
	if t <= 0 {
		return math.Max(strike-spot, 0)
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(spot/strike) + (rate+0.5*volatility*volatility)*t) / (volatility * sqrtT)
	d2 := d1 - volatility*sqrtT

	return strike*math.Exp(-rate*t)*normCDF(-d2) - spot*normCDF(-d1)
}

// PutQuote is the priced cost of a single protective put position.
type PutQuote struct {
	TotalCostUSD    float64
	CostAPR         float64
	ILMultiplier    float64
	Strike          float64
	PutPricePerUnit float64
}

// ProtectivePutCost prices a put hedge over a notional. Moneyness is the
// strike relative to spot, 1.0 being at the money. At-the-money puts
// protect better, so they earn a lower IL multiplier.
func ProtectivePutCost(spot, notionalUSD float64, tenorDays int, volatility, moneyness float64) PutQuote {
	strike := spot * moneyness
	perUnit := BlackScholesPut(spot, strike, tenorDays, volatility, riskFreeRate)

	units := notionalUSD / spot
	totalCost := perUnit * units
	costAPR := (totalCost / notionalUSD) * (daysPerYear / float64(tenorDays))

	ilMultiplier := 0.70
	if moneyness >= 0.98 {
		ilMultiplier = 0.60
	}

	return PutQuote{
		TotalCostUSD:    totalCost,
		CostAPR:         costAPR,
		ILMultiplier:    ilMultiplier,
		Strike:          strike,
		PutPricePerUnit: perUnit,
	}
}

// CollarQuote is the priced net cost of a collar, a put purchase financed
// by selling an out-of-the-money call.
type CollarQuote struct {
	NetCostUSD     float64
	CostAPR        float64
	ILMultiplier   float64
	PutStrike      float64
	CallStrike     float64
	CallPremiumUSD float64
}

// CollarCost prices a collar: buy a 5% out-of-the-money put, sell a 10%
// out-of-the-money call. The call leg is approximated from put-call
// parity rather than priced exactly; the capped upside keeps the IL
// multiplier above the pure put's.
func CollarCost(spot, notionalUSD float64, tenorDays int, volatility float64) CollarQuote {
	const (
		putMoneyness  = 0.95
		callMoneyness = 1.10
	)

	put := ProtectivePutCost(spot, notionalUSD, tenorDays, volatility, putMoneyness)

	callStrike := spot * callMoneyness
	t := float64(tenorDays) / daysPerYear
	discount := math.Exp(-riskFreeRate * t)
	callPerUnit := math.Max(put.PutPricePerUnit*0.6, spot-callStrike*discount)

	units := notionalUSD / spot
	callPremium := callPerUnit * units

	netCost := put.TotalCostUSD - callPremium
	costAPR := (netCost / notionalUSD) * (daysPerYear / float64(tenorDays))

	return CollarQuote{
		NetCostUSD:     netCost,
		CostAPR:        costAPR,
		ILMultiplier:   0.80,
		PutStrike:      put.Strike,
		CallStrike:     callStrike,
		CallPremiumUSD: callPremium,
	}
}

// PriceStrategy prices one hedge type for an asset and tenor, returning
// the canonical {cost_apr, il_multiplier} quote.
func PriceStrategy(asset, hedgeType string, tenorDays int, notionalUSD, spot float64) (types.HedgeQuote, error) {
	if spot <= 0 {
		spot = defaultSpot(asset)
	}
	volatility := defaultImpliedVol(asset)

	switch hedgeType {
	case "none":
		one := 1.0
		zero := 0.0
		return types.HedgeQuote{CostAPR: &zero, ILMultiplier: &one}, nil
	case "protective_put":
		q := ProtectivePutCost(spot, notionalUSD, tenorDays, volatility, 1.0)
		return types.HedgeQuote{CostAPR: &q.CostAPR, ILMultiplier: &q.ILMultiplier}, nil
	case "collar":
		q := CollarCost(spot, notionalUSD, tenorDays, volatility)
		return types.HedgeQuote{CostAPR: &q.CostAPR, ILMultiplier: &q.ILMultiplier}, nil
	default:
		return types.HedgeQuote{}, fmt.Errorf("%w: %s", ErrUnknownHedgeType, hedgeType)
	}
}

// tenorDaysByKey maps tenor tier keys to calendar days.
var tenorDaysByKey = map[string]int{
	"7D":  7,
	"14D": 14,
	"30D": 30,
}

// BuildHedgeMatrix prices every hedge type across the standard tenor
// buckets for a reference notional, producing the per-tenor quote table
// consumed by the hedge catalog.
func BuildHedgeMatrix(asset string, notionalUSD float64) map[string]map[string]types.HedgeQuote {
	hedgeTypes := []string{"none", "protective_put", "collar"}
	tenorKeys := []string{"7D", "14D", "30D"}

	matrix := make(map[string]map[string]types.HedgeQuote, len(hedgeTypes))
	for _, ht := range hedgeTypes {
		matrix[ht] = make(map[string]types.HedgeQuote, len(tenorKeys))
		for _, tk := range tenorKeys {
			quote, err := PriceStrategy(asset, ht, tenorDaysByKey[tk], notionalUSD, 0)
			if err != nil {
				pricerLogger.Warn().Err(err).Str("hedge_type", ht).Msg("Skipping unpriceable hedge")
				continue
			}
			matrix[ht][tk] = quote
		}
	}
	return matrix
}

// ReferenceNotional picks the notional used for pricing: the 1.0-multiplier
// size tier when one exists, otherwise the first tier.
func ReferenceNotional(tiers []types.SizeTier) float64 {
	if len(tiers) == 0 {
		return 0
	}
	for _, t := range tiers {
		if t.Multiplier == 1.0 {
			return t.NotionalUSD
		}
	}
	return tiers[0].NotionalUSD
}

// ApplyQuotes replaces the catalog's hedge quotes with freshly priced ones:
// it enables the standard tenor axis and installs the priced matrix as a
// per-tenor override for every position. Hedge type defaults are untouched
// so positions without overrides still resolve.
func ApplyQuotes(c *types.Catalog, asset string) {
	notional := ReferenceNotional(c.SizeTiers)
	matrix := BuildHedgeMatrix(asset, notional)

	tenorKeys := []string{"7D", "14D", "30D"}
	tiers := make([]types.TenorTier, len(tenorKeys))
	for i, tk := range tenorKeys {
		tiers[i] = types.TenorTier{Key: tk}
	}
	c.Hedges.TenorTiers = tiers

	// Overrides are keyed tenor -> hedge, the transpose of the matrix.
	byTenor := make(map[string]map[string]types.HedgeQuote, len(tenorKeys))
	for _, tk := range tenorKeys {
		byTenor[tk] = make(map[string]types.HedgeQuote)
	}
	for _, ht := range c.Hedges.Types {
		quotes, ok := matrix[ht.Key]
		if !ok {
			continue
		}
		for tk, quote := range quotes {
			byTenor[tk][ht.Key] = quote
		}
	}

	overrides := make([]types.PositionHedgeOverride, len(c.Positions))
	for i, p := range c.Positions {
		overrides[i] = types.PositionHedgeOverride{PositionID: p.ID, TenorOverrides: byTenor}
	}
	c.Hedges.PositionOverrides = overrides

	pricerLogger.Info().
		Str("asset", asset).
		Float64("notional_usd", notional).
		Int("positions", len(c.Positions)).
		Msg("Applied priced hedge quotes to catalog")
}
