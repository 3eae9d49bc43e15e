package service

import (
	"math"

	"github.com/Sternrassler/finpath-api/pkg/upstream"
)

// The indicator functions take closes oldest first and return a series of
// the same length. Positions without enough history hold NaN.

func sma(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}
	var sum float64
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// ema is seeded with the simple average of the first period defined values.
func ema(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	if len(values)-start < period {
		return out
	}

	var seed float64
	for _, v := range values[start : start+period] {
		seed += v
	}
	prev := seed / float64(period)
	out[start+period-1] = prev

	k := 2 / float64(period+1)
	for i := start + period; i < len(values); i++ {
		prev = values[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

// rsi uses Wilder's smoothing.
func rsi(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain, avgLoss := gain/float64(period), loss/float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// macd returns the MACD line, its signal line and the histogram.
func macd(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	f := ema(closes, fast)
	s := ema(closes, slow)
	line = nanSeries(len(closes))
	for i := range closes {
		if !math.IsNaN(f[i]) && !math.IsNaN(s[i]) {
			line[i] = f[i] - s[i]
		}
	}
	sig = ema(line, signal)
	hist = nanSeries(len(closes))
	for i := range closes {
		if !math.IsNaN(line[i]) && !math.IsNaN(sig[i]) {
			hist[i] = line[i] - sig[i]
		}
	}
	return line, sig, hist
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Indicators computed from bars. bars are newest first, as returned by the
// providers; the results are newest first too.

func indicatorsFromBars(bars []upstream.Candle, period int) (rsiPts, macdPts, smaPts []upstream.IndicatorPoint) {
	n := len(bars)
	closes := make([]float64, n)
	dates := make([]string, n)
	for i, b := range bars {
		closes[n-1-i] = b.Close
		dates[n-1-i] = b.Time
	}

	r := rsi(closes, period)
	m, sg, h := macd(closes, 12, 26, 9)
	a := sma(closes, period)

	for i := n - 1; i >= 0; i-- {
		c := closes[i]
		if !math.IsNaN(r[i]) {
			rsiPts = append(rsiPts, upstream.IndicatorPoint{Date: dates[i], Close: &c, Value: round2(r[i])})
		}
		if !math.IsNaN(m[i]) {
			p := upstream.IndicatorPoint{Date: dates[i], Close: &c, Value: round2(m[i])}
			if !math.IsNaN(sg[i]) {
				sv, hv := round2(sg[i]), round2(h[i])
				p.Signal, p.Histogram = &sv, &hv
			}
			macdPts = append(macdPts, p)
		}
		if !math.IsNaN(a[i]) {
			smaPts = append(smaPts, upstream.IndicatorPoint{Date: dates[i], Close: &c, Value: round2(a[i])})
		}
	}
	return rsiPts, macdPts, smaPts
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
