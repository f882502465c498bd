// Package indicator computes the fixed indicator set and the hysteresis-smoothed
// regime label for a candle series.
//
// Everything is computed once, up front, over the whole series; the enriched
// candles are immutable afterward. Small epsilon terms guard every division so
// flat inputs never divide by zero.
package indicator

import (
	"math"

	"github.com/NmX69/quant-lab/internal/model"
)

// Indicator periods and regime thresholds.
const (
	MACDFast       = 12
	MACDSlow       = 26
	MACDSignal     = 9
	EMATrendPeriod = 150
	EMAFastCross   = 50
	SMARegime      = 50
	ADXPeriod      = 14
	ADXTrending    = 25.0
	ADXRanging     = 20.0
	RSIPeriod      = 14
	BBPeriod       = 20
	BBStd          = 2.0
	VolumeLookback = 20
	StochKPeriod   = 14
	StochDPeriod   = 3
	ATRPeriod      = 14

	// RegimeMinDuration is the hysteresis threshold: a contiguous raw regime
	// segment shorter than this is never promoted to its own label and its
	// candles default to ranging.
	RegimeMinDuration = 5

	// epsilon guards denominators on flat inputs.
	epsilon = 1e-8
)

// warmUpRows is the number of leading candles dropped once every indicator
// has enough history. The 50-period SMA has the longest rolling window.
const warmUpRows = SMARegime - 1

// Enrich computes all indicator columns and the regime label for the given
// series and returns a new slice with the warm-up rows dropped. The input is
// not modified. An input shorter than the warm-up window yields an empty
// result.
func Enrich(candles []model.Candle) []model.Candle {
	n := len(candles)
	if n == 0 {
		return nil
	}

	out := make([]model.Candle, n)
	copy(out, candles)

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i := range candles {
		closes[i] = candles[i].Close.InexactFloat64()
		highs[i] = candles[i].High.InexactFloat64()
		lows[i] = candles[i].Low.InexactFloat64()
		volumes[i] = candles[i].Volume.InexactFloat64()
	}

	// MACD family
	emaFast := emaSpan(closes, MACDFast)
	emaSlow := emaSpan(closes, MACDSlow)
	macd := make([]float64, n)
	for i := range macd {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	signal := emaSpan(macd, MACDSignal)

	// Trend averages
	ema50 := emaSpan(closes, EMAFastCross)
	ema150 := emaSpan(closes, EMATrendPeriod)
	sma50 := rollingMean(closes, SMARegime)

	// Directional movement: Wilder-style smoothing seeded past the first diff.
	tr := trueRange(highs, lows, closes)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		plusDM[i] = math.Max(highs[i]-highs[i-1], 0)
		minusDM[i] = math.Max(lows[i-1]-lows[i], 0)
	}
	trSmooth := emaAlpha(tr, 1.0/float64(ADXPeriod), 0)
	pdmSmooth := emaAlpha(plusDM, 1.0/float64(ADXPeriod), 1)
	mdmSmooth := emaAlpha(minusDM, 1.0/float64(ADXPeriod), 1)
	plusDI := make([]float64, n)
	minusDI := make([]float64, n)
	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		plusDI[i] = 100 * pdmSmooth[i] / (trSmooth[i] + epsilon)
		minusDI[i] = 100 * mdmSmooth[i] / (trSmooth[i] + epsilon)
		dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / (plusDI[i] + minusDI[i] + epsilon)
	}
	adx := emaAlpha(dx, 1.0/float64(ADXPeriod), 1)

	// RSI
	gain := make([]float64, n)
	loss := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		gain[i] = math.Max(delta, 0)
		loss[i] = math.Max(-delta, 0)
	}
	avgGain := emaAlpha(gain, 2.0/float64(RSIPeriod+1), 1)
	avgLoss := emaAlpha(loss, 2.0/float64(RSIPeriod+1), 1)
	rsi := make([]float64, n)
	for i := 0; i < n; i++ {
		rs := avgGain[i] / (avgLoss[i] + epsilon)
		rsi[i] = 100 - (100 / (1 + rs))
	}

	// Bollinger bands
	bbMid := rollingMean(closes, BBPeriod)
	bbStd := rollingStd(closes, BBPeriod)

	// Volume z-score
	volMean := rollingMean(volumes, VolumeLookback)
	volStd := rollingStd(volumes, VolumeLookback)

	// Stochastic oscillator
	stochK := make([]float64, n)
	lowMin := rollingMin(lows, StochKPeriod)
	highMax := rollingMax(highs, StochKPeriod)
	for i := 0; i < n; i++ {
		stochK[i] = 100 * (closes[i] - lowMin[i]) / (highMax[i] - lowMin[i] + epsilon)
	}
	stochD := rollingMean(stochK, StochDPeriod)

	atr := rollingMean(tr, ATRPeriod)

	for i := 0; i < n; i++ {
		c := &out[i]
		c.EMAFast = emaFast[i]
		c.EMASlow = emaSlow[i]
		c.MACD = macd[i]
		c.Signal = signal[i]
		c.EMA50 = ema50[i]
		c.EMA150 = ema150[i]
		c.SMA50 = sma50[i]
		c.ADX = adx[i]
		c.PlusDI = plusDI[i]
		c.MinusDI = minusDI[i]
		c.RSI = rsi[i]
		c.BBMid = bbMid[i]
		c.BBUpper = bbMid[i] + BBStd*bbStd[i]
		c.BBLower = bbMid[i] - BBStd*bbStd[i]
		c.VolumeZScore = (volumes[i] - volMean[i]) / (volStd[i] + epsilon)
		c.StochK = stochK[i]
		c.StochD = stochD[i]
		c.ATR = atr[i]
	}

	labelRegimes(out, closes)

	if n <= warmUpRows {
		return nil
	}
	return out[warmUpRows:]
}

// labelRegimes assigns the hysteresis-filtered regime label to each candle.
//
// The raw classification per candle requires ADX above the trending threshold,
// directional dominance, and close on the matching side of the medium SMA.
// The hysteresis pass walks the series once tracking the current raw regime
// and its start index; a just-ended segment is only committed when its length
// meets the minimum duration, otherwise its span stays unmarked and defaults
// to ranging.
func labelRegimes(out []model.Candle, closes []float64) {
	n := len(out)
	rawUp := make([]bool, n)
	rawDown := make([]bool, n)
	for i := 0; i < n; i++ {
		c := &out[i]
		rawUp[i] = c.ADX > ADXTrending && c.PlusDI > c.MinusDI && closes[i] > c.SMA50
		rawDown[i] = c.ADX > ADXTrending && c.MinusDI > c.PlusDI && closes[i] < c.SMA50
	}

	up := make([]bool, n)
	down := make([]bool, n)
	markSegment := func(regime model.RegimeLabel, from, to int) {
		switch regime {
		case model.RegimeTrendingUp:
			for i := from; i <= to && i < n; i++ {
				up[i] = true
			}
		case model.RegimeTrendingDown:
			for i := from; i <= to && i < n; i++ {
				down[i] = true
			}
		}
	}

	var current model.RegimeLabel
	start := 0
	for i := 0; i < n; i++ {
		next := model.RegimeRanging
		if rawUp[i] {
			next = model.RegimeTrendingUp
		} else if rawDown[i] {
			next = model.RegimeTrendingDown
		}

		if next != current {
			if current != "" && i-start >= RegimeMinDuration {
				markSegment(current, start, i)
			}
			start = i
			current = next
		}
	}
	if current != "" && n-start >= RegimeMinDuration {
		markSegment(current, start, n-1)
	}

	for i := 0; i < n; i++ {
		out[i].Regime = model.RegimeRanging
		if up[i] {
			out[i].Regime = model.RegimeTrendingUp
		}
		if down[i] {
			out[i].Regime = model.RegimeTrendingDown
		}
	}
}

// emaSpan is an exponential moving average parameterized by span,
// alpha = 2/(span+1), seeded with the first value.
func emaSpan(values []float64, span int) []float64 {
	return emaAlpha(values, 2.0/float64(span+1), 0)
}

// emaAlpha computes a recursive EMA with the given smoothing factor, seeded
// at index `seed` (values before the seed repeat the seed value so warm-up
// rows stay finite; they are dropped before use).
func emaAlpha(values []float64, alpha float64, seed int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if seed >= n {
		seed = n - 1
	}
	ema := values[seed]
	for i := 0; i <= seed; i++ {
		out[i] = ema
	}
	for i := seed + 1; i < n; i++ {
		ema = (1-alpha)*ema + alpha*values[i]
		out[i] = ema
	}
	return out
}

func trueRange(highs, lows, closes []float64) []float64 {
	n := len(highs)
	tr := make([]float64, n)
	if n == 0 {
		return tr
	}
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

func rollingMean(values []float64, window int) []float64 {
	n := len(values)
	out := make([]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// rollingStd is the sample standard deviation over a trailing window.
func rollingStd(values []float64, window int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if window < 2 {
		return out
	}
	for i := window - 1; i < n; i++ {
		var mean float64
		for j := i - window + 1; j <= i; j++ {
			mean += values[j]
		}
		mean /= float64(window)
		var ss float64
		for j := i - window + 1; j <= i; j++ {
			d := values[j] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

func rollingMin(values []float64, window int) []float64 {
	n := len(values)
	out := make([]float64, n)
	for i := window - 1; i < n; i++ {
		m := values[i]
		for j := i - window + 1; j < i; j++ {
			if values[j] < m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

func rollingMax(values []float64, window int) []float64 {
	n := len(values)
	out := make([]float64, n)
	for i := window - 1; i < n; i++ {
		m := values[i]
		for j := i - window + 1; j < i; j++ {
			if values[j] > m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}
