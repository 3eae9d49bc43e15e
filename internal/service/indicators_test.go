package service

import (
	"math"
	"testing"
)

func floatsEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	got := sma([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{math.NaN(), math.NaN(), 2, 3, 4}
	for i := range want {
		if !floatsEqual(got[i], want[i]) {
			t.Errorf("sma()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	short := sma([]float64{1, 2}, 3)
	for i, v := range short {
		if !math.IsNaN(v) {
			t.Errorf("sma(short)[%d] = %v, want NaN", i, v)
		}
	}
}

func TestEMA(t *testing.T) {
	flat := ema([]float64{10, 10, 10, 10, 10, 10}, 3)
	for i := 2; i < len(flat); i++ {
		if !floatsEqual(flat[i], 10) {
			t.Errorf("ema(flat)[%d] = %v, want 10", i, flat[i])
		}
	}

	// Leading NaNs are skipped before seeding.
	got := ema([]float64{math.NaN(), math.NaN(), 2, 4, 6, 8}, 2)
	want := []float64{math.NaN(), math.NaN(), math.NaN(), 3, 5, 7}
	for i := range want {
		if !floatsEqual(got[i], want[i]) {
			t.Errorf("ema()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRSI(t *testing.T) {
	series := func(start, step float64, n int) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = start + step*float64(i)
		}
		return out
	}

	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{"only gains", series(100, 1, 20), 100},
		{"only losses", series(100, -1, 20), 0},
		{"no movement", series(100, 0, 20), 50},
		{"alternating", []float64{10, 11, 10, 11, 10, 11, 10, 11, 10, 11, 10}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rsi(tt.closes, 10)
			if !math.IsNaN(got[9]) {
				t.Errorf("rsi()[9] = %v, want NaN", got[9])
			}
			last := got[len(got)-1]
			if math.Abs(last-tt.want) > 1e-6 {
				t.Errorf("rsi() last = %v, want %v", last, tt.want)
			}
		})
	}
}

func TestMACD_FlatSeries(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 50
	}
	line, sig, hist := macd(closes, 12, 26, 9)

	if !math.IsNaN(line[24]) {
		t.Errorf("line[24] = %v, want NaN before the slow period", line[24])
	}
	if !floatsEqual(line[25], 0) {
		t.Errorf("line[25] = %v, want 0", line[25])
	}
	if !math.IsNaN(sig[32]) || math.IsNaN(sig[33]) {
		t.Errorf("signal defined from index 33, got sig[32]=%v sig[33]=%v", sig[32], sig[33])
	}
	if !floatsEqual(hist[39], 0) {
		t.Errorf("hist[39] = %v, want 0", hist[39])
	}
}

func TestIndicatorsFromBars(t *testing.T) {
	bars := risingBars(40)
	rsiPts, macdPts, smaPts := indicatorsFromBars(bars, 14)

	if len(rsiPts) != 26 {
		t.Fatalf("len(rsi) = %d, want 26", len(rsiPts))
	}
	if rsiPts[0].Date != bars[0].Time {
		t.Errorf("rsi[0].Date = %q, want newest bar %q", rsiPts[0].Date, bars[0].Time)
	}
	if rsiPts[0].Value != 100 {
		t.Errorf("rsi[0] = %v, want 100 for a rising series", rsiPts[0].Value)
	}

	if len(smaPts) != 27 {
		t.Fatalf("len(sma) = %d, want 27", len(smaPts))
	}
	// Mean of closes 126..139.
	if smaPts[0].Value != 132.5 {
		t.Errorf("sma[0] = %v, want 132.5", smaPts[0].Value)
	}

	if len(macdPts) != 15 {
		t.Fatalf("len(macd) = %d, want 15", len(macdPts))
	}
	if macdPts[0].Signal == nil || macdPts[0].Histogram == nil {
		t.Error("newest MACD point has no signal")
	}
	if macdPts[len(macdPts)-1].Signal != nil {
		t.Error("oldest MACD point has a signal, want none")
	}
	if macdPts[0].Value <= 0 {
		t.Errorf("macd[0] = %v, want positive for a rising series", macdPts[0].Value)
	}
}
