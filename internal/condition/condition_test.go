package condition

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NmX69/quant-lab/internal/model"
)

func fp(v float64) *float64 { return &v }

func candle(close string) model.Candle {
	return model.Candle{Close: decimal.RequireFromString(close)}
}

func Test_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantErr     bool
		check       func(t *testing.T, c Condition)
		description string
	}{
		{
			name:  "MACD crossover",
			input: `{"type":"macd_cross","direction":"up"}`,
			check: func(t *testing.T, c Condition) {
				assert.Equal(t, TypeMACDCross, c.Type)
				assert.Equal(t, "up", c.Direction)
			},
			description: "Basic crossover condition decodes type and direction",
		},
		{
			name:  "ADX with numeric threshold",
			input: `{"type":"adx","above":27.5}`,
			check: func(t *testing.T, c Condition) {
				require.NotNil(t, c.Above)
				assert.Equal(t, 27.5, *c.Above)
				assert.False(t, c.AboveIsModeThreshold)
			},
			description: "Numeric above decodes as a literal threshold",
		},
		{
			name:  "ADX with mode threshold sentinel",
			input: `{"type":"adx","above":"mode_threshold"}`,
			check: func(t *testing.T, c Condition) {
				assert.Nil(t, c.Above)
				assert.True(t, c.AboveIsModeThreshold)
			},
			description: "The string sentinel defers to the execution mode",
		},
		{
			name:  "Volume z-score with legacy min alias",
			input: `{"type":"volume_zscore","min":1.5}`,
			check: func(t *testing.T, c Condition) {
				require.NotNil(t, c.Above)
				assert.Equal(t, 1.5, *c.Above)
			},
			description: "The historical min field maps onto the above threshold",
		},
		{
			name:        "Unknown type is rejected",
			input:       `{"type":"moon_phase"}`,
			wantErr:     true,
			description: "Types outside the closed set fail at decode time",
		},
		{
			name:        "Invalid above string is rejected",
			input:       `{"type":"adx","above":"very high"}`,
			wantErr:     true,
			description: "Only the mode_threshold sentinel is accepted as a string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Condition
			err := json.Unmarshal([]byte(tt.input), &c)
			if tt.wantErr {
				require.Error(t, err, tt.description)
				return
			}
			require.NoError(t, err, tt.description)
			tt.check(t, c)
		})
	}
}

func Test_Unmarshal_UnknownType_Sentinel(t *testing.T) {
	var c Condition
	err := json.Unmarshal([]byte(`{"type":"astrology"}`), &c)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func Test_Invert(t *testing.T) {
	tests := []struct {
		name        string
		in          Condition
		check       func(t *testing.T, inv Condition)
		description string
	}{
		{
			name: "RSI below swaps around 100",
			in:   Condition{Type: TypeRSI, Below: fp(30)},
			check: func(t *testing.T, inv Condition) {
				require.NotNil(t, inv.Above)
				assert.Equal(t, 70.0, *inv.Above)
				assert.Nil(t, inv.Below)
			},
			description: "Oversold for longs mirrors to overbought for shorts",
		},
		{
			name: "RSI above swaps around 100",
			in:   Condition{Type: TypeRSI, Above: fp(65)},
			check: func(t *testing.T, inv Condition) {
				require.NotNil(t, inv.Below)
				assert.Equal(t, 35.0, *inv.Below)
			},
			description: "Overbought mirrors to oversold",
		},
		{
			name: "Crossover direction flips",
			in:   Condition{Type: TypeMACDCross, Direction: "up"},
			check: func(t *testing.T, inv Condition) {
				assert.Equal(t, "down", inv.Direction)
			},
			description: "Bullish crossovers become bearish",
		},
		{
			name: "EMA location swaps pole",
			in:   Condition{Type: TypePriceAboveEMA, Period: 150},
			check: func(t *testing.T, inv Condition) {
				assert.Equal(t, TypePriceBelowEMA, inv.Type)
				assert.Equal(t, 150, inv.Period)
			},
			description: "Above-EMA mirrors to below-EMA keeping the period",
		},
		{
			name: "Breakout swaps pole",
			in:   Condition{Type: TypeBreakoutHigh, BufferPct: fp(0.01)},
			check: func(t *testing.T, inv Condition) {
				assert.Equal(t, TypeBreakoutLow, inv.Type)
			},
			description: "High breakouts mirror to low breakouts",
		},
		{
			name: "Trend pullback flips side",
			in:   Condition{Type: TypeTrendPullback, Direction: "long"},
			check: func(t *testing.T, inv Condition) {
				assert.Equal(t, "short", inv.Direction)
			},
			description: "Pullback side follows the trade direction",
		},
		{
			name: "ADX has no mirror",
			in:   Condition{Type: TypeADX, Above: fp(25)},
			check: func(t *testing.T, inv Condition) {
				assert.Equal(t, TypeADX, inv.Type)
				require.NotNil(t, inv.Above)
				assert.Equal(t, 25.0, *inv.Above)
			},
			description: "Trend strength is direction-agnostic and stays unchanged",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Invert(tt.in))
		})
	}
}

func Test_Invert_IsInvolution(t *testing.T) {
	conds := []Condition{
		{Type: TypeRSI, Below: fp(30)},
		{Type: TypeMACDCross, Direction: "down"},
		{Type: TypePriceAboveBB},
		{Type: TypePriceNearBBLower},
		{Type: TypeCrossMidBBUp},
		{Type: TypeVolExpansion, Multiplier: fp(1.8)},
	}
	for _, c := range conds {
		assert.Equal(t, c, Invert(Invert(c)), "double inversion must restore the original")
	}
}

func Test_Evaluate_Crossovers(t *testing.T) {
	tests := []struct {
		name        string
		cond        Condition
		prev, cur   model.Candle
		want        bool
		description string
	}{
		{
			name: "MACD crosses up",
			cond: Condition{Type: TypeMACDCross, Direction: "up"},
			prev: model.Candle{MACD: -0.5, Signal: 0.0},
			cur:  model.Candle{MACD: 0.4, Signal: 0.1},
			want: true,
		},
		{
			name:        "MACD already above signal does not re-trigger",
			cond:        Condition{Type: TypeMACDCross, Direction: "up"},
			prev:        model.Candle{MACD: 0.5, Signal: 0.1},
			cur:         model.Candle{MACD: 0.6, Signal: 0.1},
			want:        false,
			description: "The edge fires only on the crossing candle",
		},
		{
			name: "MACD crosses down",
			cond: Condition{Type: TypeMACDCross, Direction: "down"},
			prev: model.Candle{MACD: 0.2, Signal: 0.1},
			cur:  model.Candle{MACD: -0.1, Signal: 0.1},
			want: true,
		},
		{
			name: "EMA golden cross",
			cond: Condition{Type: TypeEMACross, Direction: "up", Fast: 50, Slow: 150},
			prev: model.Candle{EMA50: 99, EMA150: 100},
			cur:  model.Candle{EMA50: 101, EMA150: 100},
			want: true,
		},
		{
			name:        "EMA cross with unavailable period",
			cond:        Condition{Type: TypeEMACross, Direction: "up", Fast: 21, Slow: 150},
			prev:        model.Candle{EMA50: 99, EMA150: 100},
			cur:         model.Candle{EMA50: 101, EMA150: 100},
			want:        false,
			description: "Periods without a computed series never match",
		},
		{
			name: "Stochastic crosses up",
			cond: Condition{Type: TypeStochasticCross, Direction: "up"},
			prev: model.Candle{StochK: 15, StochD: 20},
			cur:  model.Candle{StochK: 25, StochD: 21},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.cond, &tt.cur, &tt.prev, 30.0)
			assert.Equal(t, tt.want, got, tt.description)
		})
	}
}

func Test_Evaluate_Thresholds(t *testing.T) {
	cur := model.Candle{ADX: 32, RSI: 28, VolumeZScore: 2.5}
	prev := model.Candle{}

	tests := []struct {
		name        string
		cond        Condition
		want        bool
		description string
	}{
		{
			name: "ADX above literal threshold",
			cond: Condition{Type: TypeADX, Above: fp(30)},
			want: true,
		},
		{
			name:        "ADX above mode threshold",
			cond:        Condition{Type: TypeADX, AboveIsModeThreshold: true},
			want:        true,
			description: "The sentinel falls back to the run's ADX threshold (30)",
		},
		{
			name: "ADX below threshold",
			cond: Condition{Type: TypeADX, Below: fp(30)},
			want: false,
		},
		{
			name: "RSI oversold",
			cond: Condition{Type: TypeRSI, Below: fp(30)},
			want: true,
		},
		{
			name:        "RSI with no threshold",
			cond:        Condition{Type: TypeRSI},
			want:        false,
			description: "A threshold-less RSI condition never matches",
		},
		{
			name: "Volume z-score above default",
			cond: Condition{Type: TypeVolumeZScore},
			want: true,
		},
		{
			name: "Volume z-score above explicit threshold",
			cond: Condition{Type: TypeVolumeZScore, Above: fp(3)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.cond, &cur, &prev, 30.0)
			assert.Equal(t, tt.want, got, tt.description)
		})
	}
}

func Test_Evaluate_PriceLocation(t *testing.T) {
	prev := candle("100")
	prev.BBMid = 101

	tests := []struct {
		name        string
		cond        Condition
		cur         model.Candle
		want        bool
		description string
	}{
		{
			name: "Price above trend EMA",
			cond: Condition{Type: TypePriceAboveEMA, Period: 150},
			cur: func() model.Candle {
				c := candle("105")
				c.EMA150 = 104
				return c
			}(),
			want: true,
		},
		{
			name: "Price exactly at EMA is not above",
			cond: Condition{Type: TypePriceAboveEMA, Period: 150},
			cur: func() model.Candle {
				c := candle("104")
				c.EMA150 = 104
				return c
			}(),
			want:        false,
			description: "The comparison is strict, done in decimal",
		},
		{
			name: "Price near lower band",
			cond: Condition{Type: TypePriceNearBBLower},
			cur: func() model.Candle {
				c := candle("90.5")
				c.BBLower = 90
				c.BBMid = 100
				return c
			}(),
			want:        true,
			description: "Within 10% of the half band width above the lower band",
		},
		{
			name: "Price not near lower band",
			cond: Condition{Type: TypePriceNearBBLower},
			cur: func() model.Candle {
				c := candle("95")
				c.BBLower = 90
				c.BBMid = 100
				return c
			}(),
			want: false,
		},
		{
			name: "Breakout above upper band with buffer",
			cond: Condition{Type: TypeBreakoutHigh, BufferPct: fp(0.01)},
			cur: func() model.Candle {
				c := candle("102")
				c.BBUpper = 100
				return c
			}(),
			want: true,
		},
		{
			name: "Breakout blocked by buffer",
			cond: Condition{Type: TypeBreakoutHigh, BufferPct: fp(0.05)},
			cur: func() model.Candle {
				c := candle("102")
				c.BBUpper = 100
				return c
			}(),
			want: false,
		},
		{
			name: "Crossing mid band upward",
			cond: Condition{Type: TypeCrossMidBBUp},
			cur: func() model.Candle {
				c := candle("102")
				c.BBMid = 101.5
				return c
			}(),
			want:        true,
			description: "Prev close below prev mid, current close at or above current mid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.cond, &tt.cur, &prev, 30.0)
			assert.Equal(t, tt.want, got, tt.description)
		})
	}
}

func Test_Evaluate_VolatilityAndPullback(t *testing.T) {
	t.Run("volatility expansion", func(t *testing.T) {
		prev := model.Candle{ATR: 1.0}
		cur := model.Candle{ATR: 1.8}
		assert.True(t, Evaluate(Condition{Type: TypeVolExpansion}, &cur, &prev, 30))
		assert.False(t, Evaluate(Condition{Type: TypeRangeContraction}, &cur, &prev, 30))
	})

	t.Run("zero previous ATR never matches", func(t *testing.T) {
		prev := model.Candle{ATR: 0}
		cur := model.Candle{ATR: 1.8}
		assert.False(t, Evaluate(Condition{Type: TypeVolExpansion}, &cur, &prev, 30))
	})

	t.Run("long pullback inside the band", func(t *testing.T) {
		prev := candle("100")
		cur := candle("99")
		cur.EMA50 = 100
		cond := Condition{Type: TypeTrendPullback, Direction: "long", MaxPullbackPct: fp(0.02)}
		assert.True(t, Evaluate(cond, &cur, &prev, 30))
	})

	t.Run("long pullback too deep", func(t *testing.T) {
		prev := candle("100")
		cur := candle("97")
		cur.EMA50 = 100
		cond := Condition{Type: TypeTrendPullback, Direction: "long", MaxPullbackPct: fp(0.02)}
		assert.False(t, Evaluate(cond, &cur, &prev, 30))
	})
}

func Test_Marshal_RoundTrip(t *testing.T) {
	in := Condition{Type: TypeADX, AboveIsModeThreshold: true}
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out Condition
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, out.AboveIsModeThreshold, "mode_threshold sentinel survives a round trip")
}
