// Package model defines core data types for the regime-aware backtest engine.
//
// This package contains fundamental data structures used throughout the system
// for representing candles, simulated trades, and backtest results.
// All monetary values use decimal.Decimal for precise financial calculations
// to avoid floating-point precision issues common in financial applications.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegimeLabel classifies the market state of a single candle.
type RegimeLabel string

const (
	// RegimeTrendingUp marks a sustained upward trend (ADX strong, +DI dominant, close above SMA).
	RegimeTrendingUp RegimeLabel = "trending_up"

	// RegimeTrendingDown marks a sustained downward trend.
	RegimeTrendingDown RegimeLabel = "trending_down"

	// RegimeRanging marks sideways or unqualified market conditions. It is
	// also the default for trend blips shorter than the minimum duration.
	RegimeRanging RegimeLabel = "ranging"
)

// Regimes lists all regime labels in canonical reporting order.
var Regimes = []RegimeLabel{RegimeTrendingUp, RegimeTrendingDown, RegimeRanging}

// ExitReason identifies which rule closed (part of) a position.
type ExitReason string

const (
	ExitStopLoss        ExitReason = "stop_loss"
	ExitTakeProfit      ExitReason = "take_profit"
	ExitPartialTP       ExitReason = "partial_take_profit"
	ExitSignal          ExitReason = "signal_exit"
	ExitEndOfSimulation ExitReason = "end_of_simulation"
)

// Candle represents one OHLCV bar enriched with its derived indicator values
// and regime label.
//
// Prices and volume use decimal.Decimal so that entry/exit arithmetic stays
// exact over long simulations. Indicator values are statistical quantities
// and are kept as float64; condition evaluation converts price-level
// indicators back to decimal at the comparison site.
//
// A candle series is computed once per run, up front, and is immutable
// afterward.
type Candle struct {
	Timestamp time.Time       // Candle open time (ascending across the series)
	Open      decimal.Decimal // Opening price (precise decimal)
	High      decimal.Decimal // Highest price in period (precise decimal)
	Low       decimal.Decimal // Lowest price in period (precise decimal)
	Close     decimal.Decimal // Closing price (precise decimal)
	Volume    decimal.Decimal // Total volume traded (precise decimal)

	// MACD family
	EMAFast float64 // 12-period EMA of close
	EMASlow float64 // 26-period EMA of close
	MACD    float64 // EMAFast - EMASlow
	Signal  float64 // 9-period EMA of MACD

	// Trend averages
	EMA50  float64 // 50-period EMA, fast leg of EMA crosses
	EMA150 float64 // 150-period EMA, trend filter
	SMA50  float64 // 50-period SMA, regime reference

	// Directional movement
	ADX     float64 // Average directional index (Wilder smoothing)
	PlusDI  float64 // +DI
	MinusDI float64 // -DI

	RSI float64 // 14-period RSI

	// Bollinger bands (20, 2.0)
	BBMid   float64
	BBUpper float64
	BBLower float64

	VolumeZScore float64 // Volume z-score over a 20-candle window

	// Stochastic oscillator (14, 3)
	StochK float64
	StochD float64

	ATR float64 // 14-period average true range

	Regime RegimeLabel // Hysteresis-filtered regime label
}

// EMAByPeriod returns the EMA value for a configurable-period condition.
// Only the periods actually computed for the series are addressable; any
// other period reports ok=false, which condition evaluation treats as a
// non-match rather than an error.
func (c *Candle) EMAByPeriod(period int) (float64, bool) {
	switch period {
	case 50:
		return c.EMA50, true
	case 150:
		return c.EMA150, true
	}
	return 0, false
}

// TradeRecord is the immutable ledger entry produced by every full or
// partial position close.
type TradeRecord struct {
	EntryTime  time.Time       // Entry candle timestamp
	ExitTime   time.Time       // Exit candle timestamp
	EntryPrice decimal.Decimal // Price at entry
	ExitPrice  decimal.Decimal // Price at exit
	Position   decimal.Decimal // Closed size; negative for shorts
	PnL        decimal.Decimal // Realized profit/loss net of the closing fee
	PnLPct     decimal.Decimal // PnL as percent of the initial notional exposure
	Regime     RegimeLabel     // Regime active at entry
	Strategy   string          // Strategy that opened the position
	ExitReason ExitReason      // Which exit rule fired
	MAE        decimal.Decimal // Maximum adverse excursion, percent of entry
	MFE        decimal.Decimal // Maximum favorable excursion, percent of entry

	PnLR               float64 // PnL as a multiple of the amount initially risked
	RewardMultiple     float64 // Configured reward:risk multiple for the trade
	StopDistancePct    float64 // Stop distance at entry as a percent of entry price
	TakeProfitMultiple float64 // Realized take-profit multiple (tp pct / stop pct)
	HoldTimeHours      float64 // Hold duration in hours
	TradeType          string  // "long" or "short"
}

// BacktestResult aggregates a full simulation run: summary statistics,
// per-regime breakdowns, the capital trajectory, and the trade ledger.
//
// EquityCurve records one entry for every capital-affecting or
// position-affecting event: the starting capital, each entry (capital
// unchanged), and each full or partial close.
type BacktestResult struct {
	Asset          string
	Mode           string
	FinalEquity    decimal.Decimal
	TotalReturnPct decimal.Decimal
	TotalTrades    int
	Winrate        float64 // Percent of trades with positive PnL
	Sharpe         float64 // Annualized assuming hourly candles
	MaxDD          decimal.Decimal
	MaxDDPct       decimal.Decimal
	RegimeChanges  int
	RegimeCounts   map[RegimeLabel]int
	RegimePnL      map[RegimeLabel]decimal.Decimal
	EquityCurve    []decimal.Decimal
	Trades         []TradeRecord
}
