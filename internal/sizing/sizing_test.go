package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func Test_ModeParams(t *testing.T) {
	tests := []struct {
		name        string
		mode        string
		wantStop    string
		wantRR      string
		wantADX     float64
		description string
	}{
		{
			name:        "Conservative mode",
			mode:        ExecConservative,
			wantStop:    "0.02",
			wantRR:      "4.0",
			wantADX:     40.0,
			description: "Conservative uses a wide stop, high reward multiple and strict ADX gate",
		},
		{
			name:        "Aggressive mode",
			mode:        ExecAggressive,
			wantStop:    "0.04",
			wantRR:      "4.0",
			wantADX:     25.0,
			description: "Aggressive widens the stop and relaxes the ADX gate",
		},
		{
			name:        "Balanced mode",
			mode:        ExecBalanced,
			wantStop:    "0.01",
			wantRR:      "1.5",
			wantADX:     30.0,
			description: "Balanced is the tight-stop default",
		},
		{
			name:        "Unknown mode falls back to balanced",
			mode:        "warp-speed",
			wantStop:    "0.01",
			wantRR:      "1.5",
			wantADX:     30.0,
			description: "Unrecognized modes behave like balanced instead of failing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stop, rr, adx := ModeParams(tt.mode)
			assert.True(t, d(tt.wantStop).Equal(stop), tt.description)
			assert.True(t, d(tt.wantRR).Equal(rr), tt.description)
			assert.Equal(t, tt.wantADX, adx, tt.description)
		})
	}
}

func Test_ComputePositionAndStops_EquityPct(t *testing.T) {
	// 15% of equity, 1% risk: stop = 0.01/0.15 - 0.001
	size, stop, tp := ComputePositionAndStops(
		d("100"), d("50"), d("0.15"), d("0.01"), d("1.5"),
		ModeEquityPct, d("0.03"), d("15"), d("0.001"),
	)

	require.True(t, size.Equal(d("0.3")), "size = 100*0.15/50")

	wantStop := d("0.01").Div(d("0.15")).Sub(d("0.001"))
	assert.True(t, stop.Equal(wantStop), "stop is derived from risk and position fractions")
	assert.True(t, tp.Equal(wantStop.Mul(d("1.5"))), "take profit is rewardRR times the stop")
}

func Test_ComputePositionAndStops_EquityPct_DerivationFallback(t *testing.T) {
	// Fee larger than risk/position ratio makes the derived stop
	// non-positive; the configured stop must be used instead.
	_, stop, _ := ComputePositionAndStops(
		d("100"), d("50"), d("0.5"), d("0.0001"), d("2"),
		ModeEquityPct, d("0.03"), d("15"), d("0.001"),
	)
	assert.True(t, stop.Equal(d("0.03")), "non-positive derivation falls back to configured stop")
}

func Test_ComputePositionAndStops_FixedNotional(t *testing.T) {
	tests := []struct {
		name        string
		mode        string
		description string
	}{
		{
			name:        "fixed_usd sizing",
			mode:        ModeFixedUSD,
			description: "fixed_usd uses the configured exposure and stop verbatim",
		},
		{
			name:        "atr sizing",
			mode:        ModeATR,
			description: "atr sizing shares the fixed-notional path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, stop, tp := ComputePositionAndStops(
				d("100"), d("20"), d("0.15"), d("0.01"), d("2"),
				tt.mode, d("0.05"), d("15"), d("0.001"),
			)
			assert.True(t, size.Equal(d("0.75")), tt.description)
			assert.True(t, stop.Equal(d("0.05")), tt.description)
			assert.True(t, tp.Equal(d("0.1")), tt.description)
		})
	}
}

func Test_ComputePositionAndStops_StopFloor(t *testing.T) {
	_, stop, tp := ComputePositionAndStops(
		d("100"), d("20"), d("0.15"), d("0.01"), d("2"),
		ModeFixedUSD, d("0"), d("15"), d("0.001"),
	)
	assert.True(t, stop.Equal(MinStopPct), "zero configured stop is floored")
	assert.True(t, tp.Equal(MinStopPct.Mul(d("2"))), "take profit uses the floored stop")
}

func Test_ComputePositionAndStops_DegeneratePrice(t *testing.T) {
	size, _, _ := ComputePositionAndStops(
		d("100"), d("0"), d("0.15"), d("0.01"), d("2"),
		ModeFixedUSD, d("0.02"), d("15"), d("0.001"),
	)
	assert.True(t, size.IsZero(), "zero price sizes to zero; the caller applies the floor")
}
