// Copyright (C) 2024 Sofia-Go Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package stats

import (
	"math"
	"testing"
)

func TestSumAllNaN(t *testing.T) {
	data := []float64{math.NaN(), math.NaN()}
	if !math.IsNaN(Sum(data)) {
		t.Fatalf("expected NaN sum for all-NaN input")
	}
}

func TestSumIgnoresNaN(t *testing.T) {
	data := []float64{1, math.NaN(), 3}
	if got := Sum(data); got != 4 {
		t.Fatalf("Sum = %v, want 4", got)
	}
}

func TestMeanIgnoresNaN(t *testing.T) {
	data := []float32{2, math.Float32frombits(0x7fc00000), 4}
	if got := Mean(data); got != 3 {
		t.Fatalf("Mean = %v, want 3", got)
	}
}

func TestStdDevRangeSelector(t *testing.T) {
	data := []float64{-5, -5, 5, 5}
	neg := StdDev(data, 0, 1, RangeNegative)
	pos := StdDev(data, 0, 1, RangePositive)
	if neg != 5 || pos != 5 {
		t.Fatalf("StdDev(neg)=%v StdDev(pos)=%v, want 5 and 5", neg, pos)
	}
	full := StdDev(data, 0, 1, RangeFull)
	if full != 5 {
		t.Fatalf("StdDev(full) = %v, want 5", full)
	}
}

func TestStdDevCadence(t *testing.T) {
	data := []float64{0, 100, 0, 100, 0, 100}
	got := StdDev(data, 0, 2, RangeFull)
	if got != 0 {
		t.Fatalf("StdDev with cadence 2 = %v, want 0 (every sample sampled is 0)", got)
	}
}

func TestStdDevAllNaN(t *testing.T) {
	data := []float64{math.NaN(), math.NaN()}
	if !math.IsNaN(StdDev(data, 0, 1, RangeFull)) {
		t.Fatalf("expected NaN for all-NaN StdDev")
	}
}

func TestMADFloat64(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	got := MADFloat64(data, 3)
	if got != 1 {
		t.Fatalf("MAD = %v, want 1", got)
	}
}

func TestMADFloat64NaNSkipped(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, math.NaN()}
	got := MADFloat64(data, 3)
	if got != 1 {
		t.Fatalf("MAD = %v, want 1", got)
	}
}

func TestMADFloat64AllNaN(t *testing.T) {
	data := []float64{math.NaN(), math.NaN()}
	if !math.IsNaN(MADFloat64(data, 0)) {
		t.Fatalf("expected NaN MAD for all-NaN input")
	}
}

func TestQuickselectEvenOdd(t *testing.T) {
	odd := []float64{5, 3, 1, 4, 2}
	if got := selectMedian(odd); got != 3 {
		t.Fatalf("median(odd) = %v, want 3", got)
	}
	even := []float64{4, 1, 3, 2}
	if got := selectMedian(even); got != 2.5 {
		t.Fatalf("median(even) = %v, want 2.5", got)
	}
}

func TestGaussianFitRecoversKnownSigma(t *testing.T) {
	// Deterministic pseudo-Gaussian-ish spread built from a fixed xorshift so the
	// test has no dependency on math/rand's global state.
	const wantSigma = 3.0
	n := 200000
	data := make([]float64, n)
	var state uint64 = 88172645463325252
	nextUnit := func() float64 {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		return float64(state%1000000) / 1000000.0
	}
	for i := 0; i < n; i++ {
		// Box-Muller from two uniforms derived from the xorshift.
		u1, u2 := nextUnit()+1e-9, nextUnit()
		r := math.Sqrt(-2 * math.Log(u1))
		theta := 2 * math.Pi * u2
		data[i] = wantSigma * r * math.Cos(theta)
	}
	got := GaussianFit(data, 0, 1, RangeFull)
	if math.IsNaN(got) {
		t.Fatalf("GaussianFit returned NaN")
	}
	if math.Abs(got-wantSigma) > 0.3 {
		t.Fatalf("GaussianFit = %v, want close to %v", got, wantSigma)
	}
}

func TestBoxcarInPlaceConstant(t *testing.T) {
	data := make([]float64, 10)
	for i := range data {
		data[i] = 1
	}
	BoxcarInPlace(data, 2)
	for i, v := range data {
		// Edge samples pull in implicit zero padding.
		if i >= 2 && i <= 7 {
			if v != 1 {
				t.Fatalf("data[%d] = %v, want 1 (interior)", i, v)
			}
		}
	}
	if data[0] >= 1 {
		t.Fatalf("data[0] = %v, want < 1 due to zero padding", data[0])
	}
}

func TestBoxcarInPlaceNaNTreatedAsZero(t *testing.T) {
	data := []float64{1, 1, math.NaN(), 1, 1}
	BoxcarInPlace(data, 1)
	if math.IsNaN(data[2]) {
		t.Fatalf("filtered NaN position should no longer be NaN")
	}
	want := (1.0 + 0.0 + 1.0) / 3.0
	if math.Abs(data[2]-want) > 1e-9 {
		t.Fatalf("data[2] = %v, want %v", data[2], want)
	}
}

func TestGaussianBoxcarParamsRejectsSmallSigma(t *testing.T) {
	if _, _, err := GaussianBoxcarParams(1.0); err == nil {
		t.Fatalf("expected error for sigma < 1.5")
	}
}

func TestGaussianBoxcarParamsApproximatesSigma(t *testing.T) {
	n, r, err := GaussianBoxcarParams(3.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r < 1 {
		t.Fatalf("radius must be >= 1, got %d", r)
	}
	effSigma := math.Sqrt(float64(n) * (math.Pow(float64(2*r+1), 2) - 1) / 12.0)
	if math.Abs(effSigma-3.0) > 0.5 {
		t.Fatalf("effective sigma %v too far from target 3.0 (n=%d r=%d)", effSigma, n, r)
	}
}

func TestParseMethodAndFluxRange(t *testing.T) {
	if m, ok := ParseMethod("mad"); !ok || m != MethodMAD {
		t.Fatalf("ParseMethod(mad) = %v, %v", m, ok)
	}
	if _, ok := ParseMethod("bogus"); ok {
		t.Fatalf("ParseMethod(bogus) should fail")
	}
	if r, ok := ParseFluxRange("positive"); !ok || r != RangePositive {
		t.Fatalf("ParseFluxRange(positive) = %v, %v", r, ok)
	}
}

func TestCadenceBudget(t *testing.T) {
	if c := Cadence(1); c != 1 {
		t.Fatalf("Cadence(1) = %d, want 1", c)
	}
	if c := Cadence(8_000_000); c != 2 {
		t.Fatalf("Cadence(8e6) = %d, want 2", c)
	}
}
