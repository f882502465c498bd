// Package condition implements the closed set of declarative entry/exit
// conditions and their evaluation against candle pairs.
//
// A condition is a tagged variant: the Type selects the rule and the
// remaining fields carry type-specific parameters. Unknown types are
// rejected when a condition is decoded, never at evaluation time.
// Monetary comparisons (price against an indicator level) are done in
// exact decimal arithmetic to avoid floating rounding bias.
package condition

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/NmX69/quant-lab/internal/model"
)

// Type discriminates the condition variants.
type Type string

const (
	TypeMACDCross        Type = "macd_cross"
	TypeEMACross         Type = "ema_cross"
	TypeStochasticCross  Type = "stochastic_cross"
	TypeADX              Type = "adx"
	TypeRSI              Type = "rsi"
	TypePriceAboveEMA    Type = "price_above_ema"
	TypePriceBelowEMA    Type = "price_below_ema"
	TypePriceAboveBB     Type = "price_above_bb"
	TypePriceBelowBB     Type = "price_below_bb"
	TypePriceNearBBLower Type = "price_near_bb_lower"
	TypePriceNearBBUpper Type = "price_near_bb_upper"
	TypeCrossMidBBUp     Type = "price_crosses_mid_bb"
	TypeCrossMidBBDown   Type = "price_crosses_mid_bb_down"
	TypeVolumeZScore     Type = "volume_zscore"
	TypeBreakoutHigh     Type = "breakout_high"
	TypeBreakoutLow      Type = "breakout_low"
	TypeVolExpansion     Type = "volatility_expansion"
	TypeRangeContraction Type = "range_contraction"
	TypeTrendPullback    Type = "trend_pullback"
)

// validTypes is the closed set accepted at decode time.
var validTypes = map[Type]bool{
	TypeMACDCross: true, TypeEMACross: true, TypeStochasticCross: true,
	TypeADX: true, TypeRSI: true,
	TypePriceAboveEMA: true, TypePriceBelowEMA: true,
	TypePriceAboveBB: true, TypePriceBelowBB: true,
	TypePriceNearBBLower: true, TypePriceNearBBUpper: true,
	TypeCrossMidBBUp: true, TypeCrossMidBBDown: true,
	TypeVolumeZScore: true,
	TypeBreakoutHigh: true, TypeBreakoutLow: true,
	TypeVolExpansion: true, TypeRangeContraction: true,
	TypeTrendPullback: true,
}

// ErrUnknownType indicates a condition with a type outside the closed set.
var ErrUnknownType = errors.New("unknown condition type")

// bbNearBuffer is the fraction of the half band width that counts as
// "near" a Bollinger band.
var bbNearBuffer = decimal.RequireFromString("0.1")

// Condition is one declarative entry/exit rule. Parameter fields that are
// optional in the source form use pointers so "absent" stays distinguishable
// from zero.
type Condition struct {
	Type      Type
	Direction string // crossovers: "up"/"down"; trend_pullback: "long"/"short"

	Above *float64 // threshold comparisons (rsi, adx, volume_zscore)
	Below *float64

	// AboveIsModeThreshold marks the ADX sentinel "mode_threshold": the
	// caller-supplied mode threshold is used instead of a literal value.
	AboveIsModeThreshold bool

	Fast   int // ema_cross fast period
	Slow   int // ema_cross slow period
	Period int // price_above/below_ema and trend_pullback EMA period

	BufferPct      *float64 // breakout_high/low extra fraction beyond the band
	Multiplier     *float64 // volatility_expansion / range_contraction ATR ratio
	MaxPullbackPct *float64 // trend_pullback band width around the EMA
}

// conditionJSON is the wire form. The ADX "above" field may hold either a
// number or the string sentinel "mode_threshold", hence the RawMessage.
type conditionJSON struct {
	Type           string          `json:"type"`
	Direction      string          `json:"direction,omitempty"`
	Above          json.RawMessage `json:"above,omitempty"`
	Below          *float64        `json:"below,omitempty"`
	Min            *float64        `json:"min,omitempty"`
	Fast           int             `json:"fast,omitempty"`
	Slow           int             `json:"slow,omitempty"`
	Period         int             `json:"period,omitempty"`
	BufferPct      *float64        `json:"buffer_pct,omitempty"`
	Multiplier     *float64        `json:"multiplier,omitempty"`
	MaxPullbackPct *float64        `json:"max_pullback_pct,omitempty"`
}

// UnmarshalJSON decodes a condition and rejects unknown types eagerly so a
// bad strategy file fails at load time, not mid-simulation.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw conditionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t := Type(raw.Type)
	if !validTypes[t] {
		return fmt.Errorf("%w: %q", ErrUnknownType, raw.Type)
	}

	c.Type = t
	c.Direction = raw.Direction
	c.Below = raw.Below
	c.Fast = raw.Fast
	c.Slow = raw.Slow
	c.Period = raw.Period
	c.BufferPct = raw.BufferPct
	c.Multiplier = raw.Multiplier
	c.MaxPullbackPct = raw.MaxPullbackPct
	c.Above = nil
	c.AboveIsModeThreshold = false

	if len(raw.Above) > 0 {
		var s string
		if err := json.Unmarshal(raw.Above, &s); err == nil {
			if s != "mode_threshold" {
				return fmt.Errorf("condition %q: invalid above value %q", raw.Type, s)
			}
			c.AboveIsModeThreshold = true
		} else {
			var f float64
			if err := json.Unmarshal(raw.Above, &f); err != nil {
				return fmt.Errorf("condition %q: invalid above value: %w", raw.Type, err)
			}
			c.Above = &f
		}
	}

	// volume_zscore historically also accepted "min" as the above-threshold.
	if t == TypeVolumeZScore && c.Above == nil && raw.Min != nil {
		c.Above = raw.Min
	}

	return nil
}

// MarshalJSON renders the condition back to its wire form.
func (c Condition) MarshalJSON() ([]byte, error) {
	raw := conditionJSON{
		Type:           string(c.Type),
		Direction:      c.Direction,
		Below:          c.Below,
		Fast:           c.Fast,
		Slow:           c.Slow,
		Period:         c.Period,
		BufferPct:      c.BufferPct,
		Multiplier:     c.Multiplier,
		MaxPullbackPct: c.MaxPullbackPct,
	}
	if c.AboveIsModeThreshold {
		raw.Above = json.RawMessage(`"mode_threshold"`)
	} else if c.Above != nil {
		b, err := json.Marshal(*c.Above)
		if err != nil {
			return nil, err
		}
		raw.Above = b
	}
	return json.Marshal(raw)
}

// Invert returns the logical mirror of the condition, used to evaluate the
// opposite trade direction. RSI thresholds swap around 100, crossovers flip
// direction, band-location and crossing pairs swap to their opposite pole.
// Types with no natural mirror (adx, volume_zscore) are returned unchanged.
func Invert(c Condition) Condition {
	inv := c

	switch c.Type {
	case TypeRSI:
		if c.Below != nil {
			v := 100 - *c.Below
			inv.Above = &v
			inv.Below = nil
		} else if c.Above != nil {
			v := 100 - *c.Above
			inv.Below = &v
			inv.Above = nil
		}
	case TypeMACDCross, TypeEMACross, TypeStochasticCross:
		switch c.Direction {
		case "up":
			inv.Direction = "down"
		case "down":
			inv.Direction = "up"
		}
	case TypePriceAboveEMA:
		inv.Type = TypePriceBelowEMA
	case TypePriceBelowEMA:
		inv.Type = TypePriceAboveEMA
	case TypePriceAboveBB:
		inv.Type = TypePriceBelowBB
	case TypePriceBelowBB:
		inv.Type = TypePriceAboveBB
	case TypeCrossMidBBUp:
		inv.Type = TypeCrossMidBBDown
	case TypeCrossMidBBDown:
		inv.Type = TypeCrossMidBBUp
	case TypePriceNearBBLower:
		inv.Type = TypePriceNearBBUpper
	case TypePriceNearBBUpper:
		inv.Type = TypePriceNearBBLower
	case TypeBreakoutHigh:
		inv.Type = TypeBreakoutLow
	case TypeBreakoutLow:
		inv.Type = TypeBreakoutHigh
	case TypeVolExpansion:
		inv.Type = TypeRangeContraction
	case TypeRangeContraction:
		inv.Type = TypeVolExpansion
	case TypeTrendPullback:
		switch c.Direction {
		case "long":
			inv.Direction = "short"
		case "short":
			inv.Direction = "long"
		}
	}

	return inv
}

// Evaluate tests one condition against the current and previous candle.
// Crossovers compare orderings on the previous vs. current candle to detect
// a crossing edge. adxThreshold supplies the mode default for ADX conditions
// that opted into the "mode_threshold" sentinel.
func Evaluate(c Condition, cur, prev *model.Candle, adxThreshold float64) bool {
	switch c.Type {
	case TypeMACDCross:
		if direction(c) == "up" {
			return prev.MACD <= prev.Signal && cur.MACD > cur.Signal
		}
		return prev.MACD >= prev.Signal && cur.MACD < cur.Signal

	case TypeEMACross:
		fast, slow := c.Fast, c.Slow
		if fast == 0 {
			fast = 50
		}
		if slow == 0 {
			slow = 150
		}
		curFast, ok1 := cur.EMAByPeriod(fast)
		curSlow, ok2 := cur.EMAByPeriod(slow)
		prevFast, ok3 := prev.EMAByPeriod(fast)
		prevSlow, ok4 := prev.EMAByPeriod(slow)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return false
		}
		if direction(c) == "up" {
			return prevFast <= prevSlow && curFast > curSlow
		}
		return prevFast >= prevSlow && curFast < curSlow

	case TypeStochasticCross:
		if direction(c) == "up" {
			return prev.StochK <= prev.StochD && cur.StochK > cur.StochD
		}
		return prev.StochK >= prev.StochD && cur.StochK < cur.StochD

	case TypeADX:
		if c.Below != nil {
			return cur.ADX < *c.Below
		}
		thresh := adxThreshold
		if c.Above != nil && !c.AboveIsModeThreshold {
			thresh = *c.Above
		}
		return cur.ADX > thresh

	case TypeRSI:
		if c.Below != nil {
			return cur.RSI < *c.Below
		}
		if c.Above != nil {
			return cur.RSI > *c.Above
		}
		return false

	case TypePriceAboveEMA:
		ema, ok := cur.EMAByPeriod(emaPeriod(c))
		if !ok {
			return false
		}
		return cur.Close.GreaterThan(decimal.NewFromFloat(ema))

	case TypePriceBelowEMA:
		ema, ok := cur.EMAByPeriod(emaPeriod(c))
		if !ok {
			return false
		}
		return cur.Close.LessThan(decimal.NewFromFloat(ema))

	case TypePriceAboveBB:
		return cur.Close.GreaterThan(decimal.NewFromFloat(cur.BBUpper))

	case TypePriceBelowBB:
		return cur.Close.LessThan(decimal.NewFromFloat(cur.BBLower))

	case TypePriceNearBBLower:
		lower := decimal.NewFromFloat(cur.BBLower)
		mid := decimal.NewFromFloat(cur.BBMid)
		buffer := mid.Sub(lower).Mul(bbNearBuffer)
		return cur.Close.LessThanOrEqual(lower.Add(buffer))

	case TypePriceNearBBUpper:
		upper := decimal.NewFromFloat(cur.BBUpper)
		mid := decimal.NewFromFloat(cur.BBMid)
		buffer := upper.Sub(mid).Mul(bbNearBuffer)
		return cur.Close.GreaterThanOrEqual(upper.Sub(buffer))

	case TypeCrossMidBBUp:
		return prev.Close.InexactFloat64() < prev.BBMid && cur.Close.InexactFloat64() >= cur.BBMid

	case TypeCrossMidBBDown:
		return prev.Close.InexactFloat64() > prev.BBMid && cur.Close.InexactFloat64() <= cur.BBMid

	case TypeVolumeZScore:
		if c.Below != nil {
			return cur.VolumeZScore < *c.Below
		}
		thresh := 2.0
		if c.Above != nil {
			thresh = *c.Above
		}
		return cur.VolumeZScore > thresh

	case TypeBreakoutHigh:
		upper := decimal.NewFromFloat(cur.BBUpper)
		buffer := decimal.NewFromFloat(floatOr(c.BufferPct, 0))
		return cur.Close.GreaterThan(upper.Mul(decimal.NewFromInt(1).Add(buffer)))

	case TypeBreakoutLow:
		lower := decimal.NewFromFloat(cur.BBLower)
		buffer := decimal.NewFromFloat(floatOr(c.BufferPct, 0))
		return cur.Close.LessThan(lower.Mul(decimal.NewFromInt(1).Sub(buffer)))

	case TypeVolExpansion:
		if prev.ATR == 0 {
			return false
		}
		return cur.ATR/prev.ATR > floatOr(c.Multiplier, 1.5)

	case TypeRangeContraction:
		if prev.ATR == 0 {
			return false
		}
		return cur.ATR/prev.ATR < floatOr(c.Multiplier, 0.75)

	case TypeTrendPullback:
		ema, ok := cur.EMAByPeriod(pullbackPeriod(c))
		if !ok {
			return false
		}
		emaDec := decimal.NewFromFloat(ema)
		band := decimal.NewFromFloat(floatOr(c.MaxPullbackPct, 0.02))
		one := decimal.NewFromInt(1)
		price := cur.Close
		switch c.Direction {
		case "long":
			// Price pulled back below the EMA, but not too far.
			return price.GreaterThanOrEqual(emaDec.Mul(one.Sub(band))) && price.LessThanOrEqual(emaDec)
		case "short":
			// Price retraced above the EMA, but not too far.
			return price.GreaterThanOrEqual(emaDec) && price.LessThanOrEqual(emaDec.Mul(one.Add(band)))
		}
		return price.GreaterThanOrEqual(emaDec.Mul(one.Sub(band))) &&
			price.LessThanOrEqual(emaDec.Mul(one.Add(band)))
	}

	return false
}

func direction(c Condition) string {
	if c.Direction == "" {
		return "up"
	}
	return c.Direction
}

func emaPeriod(c Condition) int {
	if c.Period == 0 {
		return 150
	}
	return c.Period
}

func pullbackPeriod(c Condition) int {
	if c.Period == 0 {
		return 50
	}
	return c.Period
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
