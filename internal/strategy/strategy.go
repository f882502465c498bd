// Package strategy defines strategy configurations, loads and validates them
// from JSON definition files, and routes regimes to strategies.
//
// A Config is supplied pre-validated to the engine and is never mutated for
// a given run: parameter overrides produce a new value instead of patching a
// shared registry entry.
package strategy

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/NmX69/quant-lab/internal/condition"
	"github.com/NmX69/quant-lab/internal/model"
	"github.com/NmX69/quant-lab/internal/sizing"
)

// Trade direction values for Config.Direction.
const (
	DirectionLong  = "long"
	DirectionShort = "short"
	DirectionBoth  = "both"
)

var (
	// ErrInvalidStrategy indicates a strategy definition that failed validation.
	ErrInvalidStrategy = errors.New("invalid strategy")

	// ErrUnknownStrategy indicates a lookup for a strategy name that was never loaded.
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// StopValue is the exit stop-loss (or take-profit) setting. The wire form is
// either a number or one of the sentinels "mode_stop"/"mode_tp" (use the
// execution mode's default) and "atr" (derive from the ATR at entry).
type StopValue struct {
	Mode bool    // use the execution mode default
	ATR  bool    // derive from ATR at entry
	Pct  float64 // literal fraction when neither sentinel is set
}

// UnmarshalJSON accepts a JSON number or a sentinel string.
func (s *StopValue) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		switch str {
		case "mode_stop", "mode_tp":
			*s = StopValue{Mode: true}
		case "atr":
			*s = StopValue{ATR: true}
		default:
			return fmt.Errorf("invalid stop value %q", str)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid stop value: %w", err)
	}
	*s = StopValue{Pct: f}
	return nil
}

// MarshalJSON renders the sentinel or the literal value.
func (s StopValue) MarshalJSON() ([]byte, error) {
	if s.Mode {
		return json.Marshal("mode_stop")
	}
	if s.ATR {
		return json.Marshal("atr")
	}
	return json.Marshal(s.Pct)
}

// EntryPolicy is the ordered entry condition list; all conditions must hold
// on the same candle for an entry.
type EntryPolicy struct {
	Conditions []condition.Condition `json:"conditions"`
}

// ExitPolicy carries the exit rules evaluated by the trade state machine.
type ExitPolicy struct {
	StopLoss          StopValue             `json:"stop_loss"`
	TakeProfit        StopValue             `json:"take_profit"`
	PartialExit       float64               `json:"partial_exit,omitempty"`
	TrailingStop      float64               `json:"trailing_stop,omitempty"`
	ATRMultiplierStop float64               `json:"atr_multiplier_stop,omitempty"`
	SignalExit        []condition.Condition `json:"signal_exit,omitempty"`
}

// RiskPolicy selects the sizing mode and its parameters.
type RiskPolicy struct {
	Sizing          string  `json:"sizing" validate:"required,oneof=equity_pct fixed_usd atr"`
	RiskPerTradePct float64 `json:"risk_per_trade_pct,omitempty"`
	MaxExposureUSD  float64 `json:"max_exposure_usd,omitempty"`
	MaxExposurePct  float64 `json:"max_exposure_pct,omitempty"`
	ATRMultiplier   float64 `json:"atr_multiplier,omitempty"`
}

// Config is one complete strategy definition.
type Config struct {
	Name      string      `json:"name" validate:"required"`
	Regime    string      `json:"regime" validate:"required,oneof=trending trending_up trending_down ranging both"`
	Direction string      `json:"direction" validate:"required,oneof=long short both"`
	Entry     EntryPolicy `json:"entry"`
	Exit      ExitPolicy  `json:"exit"`
	Risk      RiskPolicy  `json:"risk"`
}

// MatchesRegime reports whether the strategy's regime affinity admits
// trading in the given regime. "both" admits everything and "trending"
// admits either trending direction.
func (c *Config) MatchesRegime(regime model.RegimeLabel) bool {
	switch c.Regime {
	case "both":
		return true
	case "trending":
		return regime == model.RegimeTrendingUp || regime == model.RegimeTrendingDown
	}
	return c.Regime == string(regime)
}

// clone returns a deep copy; condition slices are copied so the original
// stays untouched by later mutation of the copy.
func (c Config) clone() Config {
	out := c
	out.Entry.Conditions = append([]condition.Condition(nil), c.Entry.Conditions...)
	out.Exit.SignalExit = append([]condition.Condition(nil), c.Exit.SignalExit...)
	return out
}

// Overrides carries optional per-run parameter replacements used by sweep
// drivers. Nil fields leave the base value alone.
type Overrides struct {
	StopLoss        *float64
	TakeProfit      *float64
	PartialExit     *float64
	TrailingStop    *float64
	RiskPerTradePct *float64
}

// ApplyOverrides returns a new Config with the overrides applied. The base
// configuration is never modified, so a shared registry entry stays safe to
// read from many concurrent runs.
func ApplyOverrides(base Config, ov Overrides) Config {
	out := base.clone()
	if ov.StopLoss != nil {
		out.Exit.StopLoss = StopValue{Pct: *ov.StopLoss}
	}
	if ov.TakeProfit != nil {
		out.Exit.TakeProfit = StopValue{Pct: *ov.TakeProfit}
	}
	if ov.PartialExit != nil {
		out.Exit.PartialExit = *ov.PartialExit
	}
	if ov.TrailingStop != nil {
		out.Exit.TrailingStop = *ov.TrailingStop
	}
	if ov.RiskPerTradePct != nil {
		out.Risk.RiskPerTradePct = *ov.RiskPerTradePct
	}
	return out
}

// validateSemantics covers the checks struct tags cannot express: sizing
// modes must carry their required parameters and condition lists must be
// present where mandatory.
func validateSemantics(name string, cfg *Config) error {
	if cfg.Entry.Conditions == nil {
		return fmt.Errorf("%w %q: entry.conditions must be a list", ErrInvalidStrategy, name)
	}

	switch cfg.Risk.Sizing {
	case sizing.ModeATR:
		if cfg.Risk.ATRMultiplier == 0 {
			return fmt.Errorf("%w %q: atr sizing requires atr_multiplier", ErrInvalidStrategy, name)
		}
	case sizing.ModeFixedUSD:
		if cfg.Risk.MaxExposureUSD == 0 {
			return fmt.Errorf("%w %q: fixed_usd sizing requires max_exposure_usd", ErrInvalidStrategy, name)
		}
	case sizing.ModeEquityPct:
		if cfg.Risk.RiskPerTradePct == 0 {
			return fmt.Errorf("%w %q: equity_pct sizing requires risk_per_trade_pct", ErrInvalidStrategy, name)
		}
	}

	for _, cond := range cfg.Entry.Conditions {
		if cond.Type == condition.TypeEMACross && (cond.Fast == 0 || cond.Slow == 0) {
			return fmt.Errorf("%w %q: ema_cross requires fast and slow periods", ErrInvalidStrategy, name)
		}
	}

	return nil
}
