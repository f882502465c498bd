// Package engine runs the per-candle backtest simulation: regime-aware
// strategy selection, entry evaluation, risk-based sizing, and the ordered
// exit checks for a single synthetic position.
//
// A run is one deterministic, single-threaded O(n) pass over the candle
// sequence with O(1) working state. Identical inputs produce an identical
// BacktestResult.
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/NmX69/quant-lab/internal/model"
	"github.com/NmX69/quant-lab/internal/sizing"
	"github.com/NmX69/quant-lab/internal/strategy"
)

var (
	// StartingCapital is the fixed initial equity for every run, making
	// percentage returns directly comparable across assets.
	StartingCapital = decimal.RequireFromString("100.0")

	// FeePct is the transaction fee charged on the closing leg's notional.
	// The opening leg is never charged: the fee models one round-trip cost
	// applied at exit.
	FeePct = decimal.RequireFromString("0.001")
)

// Default run parameters applied when the caller leaves them unset.
const (
	DefaultPositionPct = 15.0
	DefaultRiskPct     = 1.0
)

// Params configures a single backtest run.
type Params struct {
	Asset    string // Asset tag carried into the result and summary header
	Mode     string // Execution mode: conservative / balanced / aggressive
	Strategy string // Strategy key (fixed mode)

	UseRouter bool                         // Re-resolve the strategy per candle by regime
	Mappings  map[model.RegimeLabel]string // Optional regime table; nil uses the default

	PositionPct float64 // Percent of equity used as notional per trade (0 = default 15)
	RiskPct     float64 // Percent of equity risked per trade (0 = default 1)
	RewardRR    float64 // Reward:risk multiple (0 = mode default)

	MaxCandles int // Use only the last N candles (0 = all)
}

// Run simulates the strategy over the candle series and returns the
// fixed-format summary text alongside the structured result.
//
// Configuration errors (unknown strategy, unmapped router regime) are
// returned eagerly. An empty series yields an explicit no-data result, not
// an error.
func Run(candles []model.Candle, params Params, registry *strategy.Registry) (string, model.BacktestResult, error) {
	if params.MaxCandles > 0 && len(candles) > params.MaxCandles {
		candles = candles[len(candles)-params.MaxCandles:]
	}

	if len(candles) == 0 {
		res := emptyResult(params)
		return "No data.\n", res, nil
	}

	modeStopPct, modeRR, adxThreshold := sizing.ModeParams(params.Mode)

	rewardRR := modeRR
	if params.RewardRR > 0 {
		rewardRR = decimal.NewFromFloat(params.RewardRR)
	}
	positionPct := params.PositionPct
	if positionPct <= 0 {
		positionPct = DefaultPositionPct
	}
	riskPct := params.RiskPct
	if riskPct <= 0 {
		riskPct = DefaultRiskPct
	}
	hundred := decimal.NewFromInt(100)
	positionFrac := decimal.NewFromFloat(positionPct).Div(hundred)
	riskFrac := decimal.NewFromFloat(riskPct).Div(hundred)

	var (
		current strategy.Config
		router  *strategy.Router
		err     error
	)
	if params.UseRouter {
		router = strategy.NewRouter(registry, params.Mappings)
	} else {
		current, err = registry.Get(params.Strategy)
		if err != nil {
			return "", model.BacktestResult{}, err
		}
	}

	st := newRunState(StartingCapital)

	for i := 1; i < len(candles); i++ {
		row := &candles[i]
		prev := &candles[i-1]
		regime := row.Regime

		st.observeRegime(regime)

		// Router mode refreshes the active entry conditions, exit policy,
		// and risk policy every candle, even while a position is open.
		if params.UseRouter {
			current, err = router.Active(regime)
			if err != nil {
				return "", model.BacktestResult{}, fmt.Errorf("candle %d: %w", i, err)
			}
		}

		// A strategy only trades in a regime its affinity admits; while the
		// regime mismatches, the position (if any) is left untouched.
		if !current.MatchesRegime(regime) {
			continue
		}

		st.extendWatermarks(row.High, row.Low)

		if st.flat() {
			st.maybeOpen(row, prev, &current, regime, openParams{
				positionFrac: positionFrac,
				riskFrac:     riskFrac,
				rewardRR:     rewardRR,
				modeStopPct:  modeStopPct,
				adxThreshold: adxThreshold,
				feePct:       FeePct,
			})
		}

		if !st.flat() {
			st.handleExits(row, prev, &current, FeePct, adxThreshold)
		}
	}

	st.closeAtEnd(&candles[len(candles)-1], &current, FeePct)

	res := buildResult(params, st)
	return Summary(&res, makeHeader(params)) + "\n", res, nil
}

// makeHeader renders the summary header line, a legacy compatibility surface.
// The "(router)" tag is constant regardless of mode.
func makeHeader(params Params) string {
	asset := params.Asset
	if asset == "" {
		asset = "unknown"
	}
	return fmt.Sprintf("BACKTEST (router) – %s", asset)
}

func emptyResult(params Params) model.BacktestResult {
	asset := params.Asset
	if asset == "" {
		asset = "unknown"
	}
	counts := make(map[model.RegimeLabel]int, len(model.Regimes))
	pnl := make(map[model.RegimeLabel]decimal.Decimal, len(model.Regimes))
	for _, r := range model.Regimes {
		counts[r] = 0
		pnl[r] = decimal.Zero
	}
	return model.BacktestResult{
		Asset:          asset,
		Mode:           params.Mode,
		FinalEquity:    StartingCapital,
		TotalReturnPct: decimal.Zero,
		MaxDD:          decimal.Zero,
		MaxDDPct:       decimal.Zero,
		RegimeCounts:   counts,
		RegimePnL:      pnl,
	}
}
