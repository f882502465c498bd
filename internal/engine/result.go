package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/NmX69/quant-lab/internal/model"
)

// hoursPerYear annualizes per-candle returns assuming hourly candles.
const hoursPerYear = 365 * 24

func buildResult(params Params, st *runState) model.BacktestResult {
	asset := params.Asset
	if asset == "" {
		asset = "unknown"
	}

	hundred := decimal.NewFromInt(100)
	totalReturn := st.capital.Sub(StartingCapital).Div(StartingCapital).Mul(hundred)

	wins := 0
	for _, t := range st.trades {
		if t.PnL.IsPositive() {
			wins++
		}
	}
	winrate := 0.0
	if len(st.trades) > 0 {
		winrate = round1(float64(wins) / float64(len(st.trades)) * 100)
	}

	maxDD, maxDDPct := maxDrawdown(st.equity)

	return model.BacktestResult{
		Asset:          asset,
		Mode:           params.Mode,
		FinalEquity:    st.capital,
		TotalReturnPct: totalReturn,
		TotalTrades:    len(st.trades),
		Winrate:        winrate,
		Sharpe:         sharpeRatio(st.equity),
		MaxDD:          maxDD,
		MaxDDPct:       maxDDPct,
		RegimeChanges:  st.regimeChanges,
		RegimeCounts:   st.regimeCounts,
		RegimePnL:      st.regimePnL,
		EquityCurve:    st.equity,
		Trades:         st.trades,
	}
}

// sharpeRatio annualizes the mean/stddev of per-step equity returns. Fewer
// than two equity points, or a flat curve, yield zero.
func sharpeRatio(equity []decimal.Decimal) float64 {
	if len(equity) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev, _ := equity[i-1].Float64()
		cur, _ := equity[i].Float64()
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (cur-prev)/prev)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return round2(mean / std * math.Sqrt(hoursPerYear))
}

// maxDrawdown reports the distance between the global equity peak and the
// global equity trough, in dollars and as a percent of the peak.
func maxDrawdown(equity []decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if len(equity) == 0 {
		return decimal.Zero, decimal.Zero
	}
	peak, trough := equity[0], equity[0]
	for _, v := range equity[1:] {
		if v.GreaterThan(peak) {
			peak = v
		}
		if v.LessThan(trough) {
			trough = v
		}
	}
	dd := peak.Sub(trough)
	pct := decimal.Zero
	if peak.IsPositive() {
		pct = dd.Div(peak).Mul(decimal.NewFromInt(100))
	}
	return dd, pct
}

// timeUnderWaterHours counts equity points strictly below the running peak,
// one hour per point under the hourly-candle assumption.
func timeUnderWaterHours(equity []decimal.Decimal) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	under := 0
	for _, v := range equity[1:] {
		if v.LessThan(peak) {
			under++
			continue
		}
		peak = v
	}
	return float64(under)
}

// Summary renders the fixed-format human-readable report. The exact layout
// is a compatibility surface consumed by downstream tooling; do not reorder
// or reformat the lines.
func Summary(res *model.BacktestResult, header string) string {
	rule := strings.Repeat("=", 60)

	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, header)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Final: $%.2f\n", decimalFloat(res.FinalEquity))
	fmt.Fprintf(&b, "Return: %+.2f%%\n", decimalFloat(res.TotalReturnPct))
	fmt.Fprintf(&b, "Trades: %d\n", res.TotalTrades)
	fmt.Fprintf(&b, "Winrate: %.1f%%\n", res.Winrate)
	fmt.Fprintf(&b, "Sharpe: %.2f\n", res.Sharpe)
	fmt.Fprintf(&b, "Time Under Water: %.1fh\n", timeUnderWaterHours(res.EquityCurve))
	fmt.Fprintf(&b, "Max DD: $%.2f (%.2f%%)\n", decimalFloat(res.MaxDD), decimalFloat(res.MaxDDPct))
	fmt.Fprintf(&b, "Total Regime Changes: %d\n", res.RegimeChanges)
	fmt.Fprintln(&b, "Regimes:")
	for _, regime := range model.Regimes {
		count := res.RegimeCounts[regime]
		pnl := res.RegimePnL[regime]
		pnlPct := 0.0
		if !pnl.IsZero() {
			start, _ := StartingCapital.Float64()
			pnlPct = decimalFloat(pnl) / start * 100
		}
		fmt.Fprintf(&b, "  %s: %d candles | PNL: $%+.4f (%+.2f%%)\n",
			regime, count, decimalFloat(pnl), pnlPct)
	}
	fmt.Fprint(&b, rule)
	return b.String()
}

func decimalFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }
func round2(x float64) float64 { return math.Round(x*100) / 100 }
