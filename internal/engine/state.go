package engine

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/NmX69/quant-lab/internal/condition"
	"github.com/NmX69/quant-lab/internal/model"
	"github.com/NmX69/quant-lab/internal/sizing"
	"github.com/NmX69/quant-lab/internal/strategy"
)

// runState is the mutable per-run simulation state: capital, the single open
// position with its protective levels and price watermarks, plus the
// accumulators the result is built from.
type runState struct {
	capital  decimal.Decimal
	position decimal.Decimal // signed units; positive long, negative short, zero flat

	entryPrice      decimal.Decimal
	entryTime       time.Time
	entryRegime     model.RegimeLabel
	initialExposure decimal.Decimal // notional at entry; PnL percentages are relative to this

	stopPrice          decimal.Decimal
	entryStopPrice     decimal.Decimal // frozen stop at entry, for R-multiple accounting
	stopDistancePct    float64
	takeProfitPct      decimal.Decimal
	takeProfitMultiple float64
	trailingActive     bool

	highWater decimal.Decimal
	lowWater  decimal.Decimal

	equity        []decimal.Decimal
	trades        []model.TradeRecord
	regimeCounts  map[model.RegimeLabel]int
	regimePnL     map[model.RegimeLabel]decimal.Decimal
	regimeChanges int
	prevRegime    model.RegimeLabel
}

func newRunState(capital decimal.Decimal) *runState {
	st := &runState{
		capital:      capital,
		equity:       []decimal.Decimal{capital},
		regimeCounts: map[model.RegimeLabel]int{},
		regimePnL:    map[model.RegimeLabel]decimal.Decimal{},
	}
	// Every regime gets a row in the summary, traded or not.
	for _, r := range model.Regimes {
		st.regimeCounts[r] = 0
		st.regimePnL[r] = decimal.Zero
	}
	return st
}

func (st *runState) flat() bool {
	return st.position.IsZero()
}

func (st *runState) isLong() bool {
	return st.position.IsPositive()
}

// observeRegime updates the per-regime candle counts and the transition
// counter. The very first observed regime is not counted as a change.
func (st *runState) observeRegime(regime model.RegimeLabel) {
	st.regimeCounts[regime]++
	if st.prevRegime != "" && regime != st.prevRegime {
		st.regimeChanges++
	}
	st.prevRegime = regime
}

// extendWatermarks pushes the favorable and adverse price extremes of an
// open position. For a long the high watermark ratchets up with candle
// highs; for a short it ratchets down with them.
func (st *runState) extendWatermarks(high, low decimal.Decimal) {
	if st.flat() {
		return
	}
	if st.isLong() {
		if high.GreaterThan(st.highWater) {
			st.highWater = high
		}
		if low.LessThan(st.lowWater) {
			st.lowWater = low
		}
		return
	}
	if high.LessThan(st.highWater) {
		st.highWater = high
	}
	if low.GreaterThan(st.lowWater) {
		st.lowWater = low
	}
}

type openParams struct {
	positionFrac decimal.Decimal
	riskFrac     decimal.Decimal
	rewardRR     decimal.Decimal
	modeStopPct  decimal.Decimal
	adxThreshold float64
	feePct       decimal.Decimal
}

// maybeOpen evaluates the active strategy's entry conditions against the
// current candle and, if met, opens a position at the close price.
//
// Long entries use the conditions as written; short entries use their
// mirrored form. A "both" direction opens long on either signal.
func (st *runState) maybeOpen(row, prev *model.Candle, cfg *strategy.Config, regime model.RegimeLabel, p openParams) {
	longSignal := allConditionsMet(cfg.Entry.Conditions, row, prev, p.adxThreshold, false)

	var shortSignal bool
	if cfg.Direction == strategy.DirectionShort || cfg.Direction == strategy.DirectionBoth {
		shortSignal = allConditionsMet(cfg.Entry.Conditions, row, prev, p.adxThreshold, true)
	}

	var met, long bool
	switch cfg.Direction {
	case strategy.DirectionShort:
		met, long = shortSignal, false
	case strategy.DirectionBoth:
		met, long = longSignal || shortSignal, true
	default:
		met, long = longSignal, true
	}
	if !met {
		return
	}

	price := row.Close
	if !price.IsPositive() {
		return
	}

	stopPctCfg := resolveStopPct(cfg, row, p.modeStopPct)
	fixedExposure := decimal.NewFromFloat(cfg.Risk.MaxExposureUSD)
	if !fixedExposure.IsPositive() {
		fixedExposure = decimal.NewFromInt(15)
	}

	size, stopPct, tpPct := sizing.ComputePositionAndStops(
		st.capital, price, p.positionFrac, p.riskFrac, p.rewardRR,
		cfg.Risk.Sizing, stopPctCfg, fixedExposure, p.feePct,
	)
	if !size.IsPositive() {
		size = sizing.MinPositionSize
	}

	one := decimal.NewFromInt(1)
	if long {
		st.position = size
		st.stopPrice = price.Mul(one.Sub(stopPct))
	} else {
		st.position = size.Neg()
		st.stopPrice = price.Mul(one.Add(stopPct))
	}
	st.entryPrice = price
	st.entryTime = row.Timestamp
	st.entryRegime = regime
	st.initialExposure = size.Mul(price)
	st.entryStopPrice = st.stopPrice
	// Ledger column is a percent, not a fraction.
	st.stopDistancePct, _ = stopPct.Mul(decimal.NewFromInt(100)).Float64()
	st.takeProfitPct = tpPct
	st.takeProfitMultiple, _ = p.rewardRR.Float64()
	st.trailingActive = cfg.Exit.TrailingStop > 0
	st.highWater = price
	st.lowWater = price

	st.equity = append(st.equity, st.capital)

	log.Debug().
		Str("strategy", cfg.Name).
		Str("regime", string(regime)).
		Bool("long", long).
		Str("price", price.String()).
		Str("size", size.String()).
		Msg("opened position")
}

// resolveStopPct turns the strategy's stop-loss setting into a concrete
// fraction: a literal percentage, the mode default, or an ATR distance
// relative to the current price.
func resolveStopPct(cfg *strategy.Config, row *model.Candle, modeStopPct decimal.Decimal) decimal.Decimal {
	sl := cfg.Exit.StopLoss
	switch {
	case sl.Mode:
		return modeStopPct
	case sl.ATR:
		mult := cfg.Exit.ATRMultiplierStop
		if mult <= 0 {
			mult = 1.5
		}
		if !row.Close.IsPositive() {
			return decimal.Zero
		}
		dist := decimal.NewFromFloat(row.ATR).Mul(decimal.NewFromFloat(mult))
		return dist.Div(row.Close)
	default:
		return decimal.NewFromFloat(sl.Pct)
	}
}

func allConditionsMet(conds []condition.Condition, row, prev *model.Candle, adxThreshold float64, inverted bool) bool {
	if len(conds) == 0 {
		return false
	}
	for _, c := range conds {
		if inverted {
			c = condition.Invert(c)
		}
		if !condition.Evaluate(c, row, prev, adxThreshold) {
			return false
		}
	}
	return true
}

func anyConditionMet(conds []condition.Condition, row, prev *model.Candle, adxThreshold float64, inverted bool) bool {
	for _, c := range conds {
		if inverted {
			c = condition.Invert(c)
		}
		if condition.Evaluate(c, row, prev, adxThreshold) {
			return true
		}
	}
	return false
}

// handleExits runs the ordered exit checks for the open position against the
// current candle: take-profit first (possibly partial), then stop-loss, then
// the trailing-stop ratchet, then signal exits. The ratchet only moves the
// stop for future candles; it never triggers on the candle that moved it.
func (st *runState) handleExits(row, prev *model.Candle, cfg *strategy.Config, feePct decimal.Decimal, adxThreshold float64) {
	price := row.Close
	one := decimal.NewFromInt(1)

	// 1. Take-profit. A configured partial fraction closes only that share
	// of the remaining position; the candle keeps being processed.
	if st.takeProfitPct.IsPositive() {
		var tpPrice decimal.Decimal
		if st.isLong() {
			tpPrice = st.entryPrice.Mul(one.Add(st.takeProfitPct))
		} else {
			tpPrice = st.entryPrice.Mul(one.Sub(st.takeProfitPct))
		}
		hit := (st.isLong() && price.GreaterThanOrEqual(tpPrice)) ||
			(!st.isLong() && price.LessThanOrEqual(tpPrice))
		if hit {
			closeAmount := st.position.Abs()
			reason := model.ExitTakeProfit
			partial := decimal.NewFromFloat(cfg.Exit.PartialExit)
			if partial.IsPositive() && partial.LessThan(one) {
				closeAmount = closeAmount.Mul(partial)
				reason = model.ExitPartialTP
			}
			st.closeLeg(row, price, closeAmount, reason, cfg.Name, feePct)
			if st.flat() {
				return
			}
		}
	}

	// 2. Stop-loss: full close.
	stopHit := (st.isLong() && price.LessThanOrEqual(st.stopPrice)) ||
		(!st.isLong() && price.GreaterThanOrEqual(st.stopPrice))
	if stopHit {
		st.closeLeg(row, price, st.position.Abs(), model.ExitStopLoss, cfg.Name, feePct)
		return
	}

	// 3. Trailing ratchet. The stop only ever tightens.
	if st.trailingActive {
		trailing := decimal.NewFromFloat(cfg.Exit.TrailingStop)
		if st.isLong() {
			candidate := st.highWater.Mul(one.Sub(trailing))
			if candidate.GreaterThan(st.stopPrice) {
				st.stopPrice = candidate
			}
		} else {
			candidate := st.lowWater.Mul(one.Add(trailing))
			if candidate.LessThan(st.stopPrice) {
				st.stopPrice = candidate
			}
		}
	}

	// 4. Signal exit: any one condition suffices. Shorts mirror the
	// conditions the same way short entries do.
	if anyConditionMet(cfg.Exit.SignalExit, row, prev, adxThreshold, !st.isLong()) {
		st.closeLeg(row, price, st.position.Abs(), model.ExitSignal, cfg.Name, feePct)
	}
}

// closeAtEnd force-closes any position left open after the final candle so
// the run's accounting is complete.
func (st *runState) closeAtEnd(last *model.Candle, cfg *strategy.Config, feePct decimal.Decimal) {
	if st.flat() {
		return
	}
	st.closeLeg(last, last.Close, st.position.Abs(), model.ExitEndOfSimulation, cfg.Name, feePct)
}

// closeLeg realizes PnL for closeAmount units at price, charging the fee on
// the closing notional, and records the trade and equity point.
func (st *runState) closeLeg(row *model.Candle, price, closeAmount decimal.Decimal, reason model.ExitReason, strategyName string, feePct decimal.Decimal) {
	if closeAmount.IsZero() {
		return
	}

	var gross decimal.Decimal
	if st.isLong() {
		gross = price.Sub(st.entryPrice).Mul(closeAmount)
	} else {
		gross = st.entryPrice.Sub(price).Mul(closeAmount)
	}
	fee := price.Mul(closeAmount).Mul(feePct)
	pnl := gross.Sub(fee)

	st.capital = st.capital.Add(pnl)
	st.regimePnL[st.entryRegime] = st.regimePnL[st.entryRegime].Add(pnl)

	st.trades = append(st.trades, st.buildTrade(row, price, closeAmount, pnl, reason, strategyName))
	st.equity = append(st.equity, st.capital)

	if st.isLong() {
		st.position = st.position.Sub(closeAmount)
	} else {
		st.position = st.position.Add(closeAmount)
	}

	log.Debug().
		Str("reason", string(reason)).
		Str("price", price.String()).
		Str("pnl", pnl.String()).
		Str("capital", st.capital.String()).
		Msg("closed position leg")
}

func (st *runState) buildTrade(row *model.Candle, price, closeAmount, pnl decimal.Decimal, reason model.ExitReason, strategyName string) model.TradeRecord {
	hundred := decimal.NewFromInt(100)

	pnlPct := decimal.Zero
	if st.initialExposure.IsPositive() {
		pnlPct = pnl.Div(st.initialExposure).Mul(hundred)
	}

	// Excursions are signed percent moves from entry. Longs measure
	// watermark minus entry, so an adverse dip makes MAE negative; shorts
	// measure entry minus watermark.
	var mae, mfe decimal.Decimal
	if st.entryPrice.IsPositive() {
		if st.isLong() {
			mae = st.lowWater.Sub(st.entryPrice).Div(st.entryPrice).Mul(hundred)
			mfe = st.highWater.Sub(st.entryPrice).Div(st.entryPrice).Mul(hundred)
		} else {
			mae = st.entryPrice.Sub(st.highWater).Div(st.entryPrice).Mul(hundred)
			mfe = st.entryPrice.Sub(st.lowWater).Div(st.entryPrice).Mul(hundred)
		}
	}

	pnlR := 0.0
	riskAmount := st.entryPrice.Sub(st.entryStopPrice).Abs().Mul(closeAmount)
	if riskAmount.IsPositive() {
		pnlR, _ = pnl.Div(riskAmount).Float64()
	}

	tradeType := "long"
	signedPosition := closeAmount
	if !st.isLong() {
		tradeType = "short"
		signedPosition = closeAmount.Neg()
	}

	return model.TradeRecord{
		EntryTime:          st.entryTime,
		ExitTime:           row.Timestamp,
		EntryPrice:         st.entryPrice,
		ExitPrice:          price,
		Position:           signedPosition,
		PnL:                pnl,
		PnLPct:             pnlPct,
		Regime:             st.entryRegime,
		Strategy:           strategyName,
		ExitReason:         reason,
		MAE:                mae,
		MFE:                mfe,
		PnLR:               pnlR,
		RewardMultiple:     st.takeProfitMultiple,
		StopDistancePct:    st.stopDistancePct,
		TakeProfitMultiple: st.takeProfitMultiple,
		HoldTimeHours:      row.Timestamp.Sub(st.entryTime).Hours(),
		TradeType:          tradeType,
	}
}
