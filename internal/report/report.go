// Package report derives extended performance analytics from a backtest
// result and exports results as JSON and CSV artifacts.
package report

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/NmX69/quant-lab/internal/model"
)

// Report extends the core result with the derived statistics used for
// strategy comparison.
type Report struct {
	Asset          string          `json:"asset"`
	Mode           string          `json:"mode"`
	FinalEquity    decimal.Decimal `json:"final_equity"`
	TotalReturnPct decimal.Decimal `json:"total_return_pct"`
	TotalTrades    int             `json:"total_trades"`
	Winrate        float64         `json:"winrate"`
	Sharpe         float64         `json:"sharpe"`
	Sortino        float64         `json:"sortino"`
	MAR            float64         `json:"mar"`
	ExpectancyR    float64         `json:"expectancy_r"`
	AvgWinR        float64         `json:"avg_win_r"`
	AvgLossR       float64         `json:"avg_loss_r"`
	MaxWinStreak   int             `json:"max_win_streak"`
	MaxLossStreak  int             `json:"max_loss_streak"`
	AvgHoldHours   float64         `json:"avg_hold_hours"`
	MaxDD          decimal.Decimal `json:"max_dd"`
	MaxDDPct       decimal.Decimal `json:"max_dd_pct"`
	RegimeChanges  int             `json:"regime_changes"`

	Regimes     []RegimeStats       `json:"regimes"`
	ExitReasons map[string]int      `json:"exit_reasons"`
	Drawdown    []float64           `json:"drawdown_curve"`
	Trades      []model.TradeRecord `json:"trades"`
}

// RegimeStats is the per-regime slice of the trade ledger.
type RegimeStats struct {
	Regime  model.RegimeLabel `json:"regime"`
	Candles int               `json:"candles"`
	Trades  int               `json:"trades"`
	Winrate float64           `json:"winrate"`
	PnL     decimal.Decimal   `json:"pnl"`
}

// Build derives the full report from a backtest result.
func Build(res *model.BacktestResult) *Report {
	rep := &Report{
		Asset:          res.Asset,
		Mode:           res.Mode,
		FinalEquity:    res.FinalEquity,
		TotalReturnPct: res.TotalReturnPct,
		TotalTrades:    res.TotalTrades,
		Winrate:        res.Winrate,
		Sharpe:         res.Sharpe,
		MaxDD:          res.MaxDD,
		MaxDDPct:       res.MaxDDPct,
		RegimeChanges:  res.RegimeChanges,
		ExitReasons:    map[string]int{},
		Drawdown:       drawdownCurve(res.EquityCurve),
		Trades:         res.Trades,
	}

	rep.Sortino = sortinoRatio(res.EquityCurve)
	rep.MAR = marRatio(res)
	rep.ExpectancyR, rep.AvgWinR, rep.AvgLossR = rMultiples(res.Trades)
	rep.MaxWinStreak, rep.MaxLossStreak = streaks(res.Trades)
	rep.AvgHoldHours = avgHoldHours(res.Trades)
	rep.Regimes = regimeStats(res)

	for _, t := range res.Trades {
		rep.ExitReasons[string(t.ExitReason)]++
	}

	return rep
}

// drawdownCurve reports, per equity point, the distance below the running
// peak. Zero while at or above the peak.
func drawdownCurve(equity []decimal.Decimal) []float64 {
	if len(equity) == 0 {
		return nil
	}
	curve := make([]float64, len(equity))
	peak := equity[0]
	for i, v := range equity {
		if v.GreaterThan(peak) {
			peak = v
		}
		dd, _ := peak.Sub(v).Float64()
		curve[i] = dd
	}
	return curve
}

// sortinoRatio annualizes mean return over downside deviation, with the
// same hourly-candle assumption the Sharpe uses.
func sortinoRatio(equity []decimal.Decimal) float64 {
	if len(equity) < 2 {
		return 0
	}
	var returns []float64
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

	downside := 0.0
	for _, r := range returns {
		if r < 0 {
			downside += r * r
		}
	}
	downside = math.Sqrt(downside / float64(len(returns)))
	if downside == 0 {
		return 0
	}
	return round2(mean / downside * math.Sqrt(365*24))
}

// marRatio is total return over max drawdown percent, a blunt measure of
// return earned per unit of pain.
func marRatio(res *model.BacktestResult) float64 {
	ddPct, _ := res.MaxDDPct.Float64()
	if ddPct == 0 {
		return 0
	}
	ret, _ := res.TotalReturnPct.Float64()
	return round2(ret / ddPct)
}

func rMultiples(trades []model.TradeRecord) (expectancy, avgWin, avgLoss float64) {
	var wins, losses []float64
	sum := 0.0
	for _, t := range trades {
		sum += t.PnLR
		if t.PnLR > 0 {
			wins = append(wins, t.PnLR)
		} else if t.PnLR < 0 {
			losses = append(losses, t.PnLR)
		}
	}
	if len(trades) > 0 {
		expectancy = round2(sum / float64(len(trades)))
	}
	if len(wins) > 0 {
		avgWin = round2(avg(wins))
	}
	if len(losses) > 0 {
		avgLoss = round2(avg(losses))
	}
	return expectancy, avgWin, avgLoss
}

func streaks(trades []model.TradeRecord) (maxWin, maxLoss int) {
	curWin, curLoss := 0, 0
	for _, t := range trades {
		if t.PnL.IsPositive() {
			curWin++
			curLoss = 0
		} else {
			curLoss++
			curWin = 0
		}
		if curWin > maxWin {
			maxWin = curWin
		}
		if curLoss > maxLoss {
			maxLoss = curLoss
		}
	}
	return maxWin, maxLoss
}

func avgHoldHours(trades []model.TradeRecord) float64 {
	if len(trades) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range trades {
		sum += t.HoldTimeHours
	}
	return round2(sum / float64(len(trades)))
}

func regimeStats(res *model.BacktestResult) []RegimeStats {
	tradesByRegime := map[model.RegimeLabel][]model.TradeRecord{}
	for _, t := range res.Trades {
		tradesByRegime[t.Regime] = append(tradesByRegime[t.Regime], t)
	}

	seen := map[model.RegimeLabel]bool{}
	var order []model.RegimeLabel
	for _, r := range model.Regimes {
		if res.RegimeCounts[r] > 0 || len(tradesByRegime[r]) > 0 {
			order = append(order, r)
			seen[r] = true
		}
	}
	// Labels outside the canonical set still get a row.
	var extra []model.RegimeLabel
	for r := range res.RegimeCounts {
		if !seen[r] {
			extra = append(extra, r)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	order = append(order, extra...)

	stats := make([]RegimeStats, 0, len(order))
	for _, r := range order {
		trades := tradesByRegime[r]
		wins := 0
		for _, t := range trades {
			if t.PnL.IsPositive() {
				wins++
			}
		}
		winrate := 0.0
		if len(trades) > 0 {
			winrate = round2(float64(wins) / float64(len(trades)) * 100)
		}
		stats = append(stats, RegimeStats{
			Regime:  r,
			Candles: res.RegimeCounts[r],
			Trades:  len(trades),
			Winrate: winrate,
			PnL:     res.RegimePnL[r],
		})
	}
	return stats
}

func avg(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
