// Package sizing converts a strategy's risk policy and the current capital
// into a trade size and the stop-loss/take-profit percentage pair.
package sizing

import (
	"github.com/shopspring/decimal"
)

// Sizing mode identifiers from the strategy risk block.
const (
	ModeEquityPct = "equity_pct"
	ModeFixedUSD  = "fixed_usd"
	ModeATR       = "atr"
)

// Execution modes select the default stop percentage, reward multiple, and
// ADX threshold for a run.
const (
	ExecConservative = "conservative"
	ExecBalanced     = "balanced"
	ExecAggressive   = "aggressive"
)

var (
	// MinPositionSize is the floor applied when a degenerate price or
	// notional would otherwise size the position at zero.
	MinPositionSize = decimal.RequireFromString("0.001")

	// MinStopPct floors the stop distance when indicator-driven stops
	// (e.g. ATR on a flat series) collapse to zero.
	MinStopPct = decimal.RequireFromString("0.001")
)

// ModeParams returns (stopPct, rewardMultiple, adxThreshold) for an execution
// mode. Unknown modes fall back to balanced.
func ModeParams(mode string) (decimal.Decimal, decimal.Decimal, float64) {
	switch mode {
	case ExecConservative:
		return decimal.RequireFromString("0.02"), decimal.RequireFromString("4.0"), 40.0
	case ExecAggressive:
		return decimal.RequireFromString("0.04"), decimal.RequireFromString("4.0"), 25.0
	}
	return decimal.RequireFromString("0.01"), decimal.RequireFromString("1.5"), 30.0
}

// ComputePositionAndStops sizes a new position and derives its per-trade
// stop-loss and take-profit percentages.
//
// Two families exist:
//
//   - equity_pct: notional = capital x positionFrac, size = notional / price.
//     The stop percentage is derived, not copied from configuration:
//     riskFrac / positionFrac minus the round-trip fee rate, so a full
//     stop-out loses exactly riskFrac of equity regardless of position size.
//     A non-positive derivation falls back to the configured stop.
//
//   - any other sizing mode: notional = the fixed configured exposure,
//     stop percentage = the configured value unchanged.
//
// In both families the take-profit percentage is rewardMultiple x stop
// percentage. Degenerate inputs produce a zero size here; the caller floors
// it to MinPositionSize.
func ComputePositionAndStops(
	capital, price, positionFrac, riskFrac, rewardMultiple decimal.Decimal,
	sizingMode string,
	stopPctCfg, fixedExposure, feePct decimal.Decimal,
) (size, stopPct, takeProfitPct decimal.Decimal) {
	if sizingMode == ModeEquityPct {
		notional := capital.Mul(positionFrac)
		if notional.IsPositive() && price.IsPositive() {
			size = notional.Div(price)
		}

		stopPct = stopPctCfg
		if notional.IsPositive() && positionFrac.IsPositive() {
			raw := riskFrac.Div(positionFrac).Sub(feePct)
			if raw.IsPositive() {
				stopPct = raw
			}
		}
	} else {
		if price.IsPositive() {
			size = fixedExposure.Div(price)
		}
		stopPct = stopPctCfg
	}

	if stopPct.LessThan(MinStopPct) {
		stopPct = MinStopPct
	}
	takeProfitPct = rewardMultiple.Mul(stopPct)
	return size, stopPct, takeProfitPct
}
