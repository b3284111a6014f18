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

// Package stats implements the NaN-safe numeric kernels the cube-processing
// pipeline is built on: sum/mean, a windowed standard deviation, median
// absolute deviation, a histogram Gaussian-width fit, and the 1-D boxcar
// filter that the separable 2-D Gaussian smoother is composed from.
//
// Every reduction here only ever sees floating-point samples: the source
// cube may be stored as any of six on-disk sample widths, but by the time a
// plane or spectrum reaches this package it has already been widened to
// float32 or float64 by the caller (see internal/cube). The original
// SoFiA-2 DataCube_run_scfind likewise asserts its input is floating point
// before doing any of this arithmetic.
package stats

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Real is the set of sample element types the kernels in this package
// operate over.
type Real interface {
	constraints.Float
}

// FluxRange selects which sign of sample participates in a noise estimate.
type FluxRange int8

const (
	RangeNegative FluxRange = -1
	RangeFull     FluxRange = 0
	RangePositive FluxRange = 1
)

func (r FluxRange) keeps(x float64) bool {
	switch r {
	case RangeNegative:
		return x < 0
	case RangePositive:
		return x > 0
	default:
		return true
	}
}

// Method names the noise statistic used by the noise scaler and the S+C
// finder.
type Method int8

const (
	MethodStd Method = iota
	MethodMAD
	MethodGauss
)

// ParseMethod maps the provider-contract token spelling onto a Method.
func ParseMethod(s string) (Method, bool) {
	switch s {
	case "std":
		return MethodStd, true
	case "mad":
		return MethodMAD, true
	case "gauss":
		return MethodGauss, true
	default:
		return 0, false
	}
}

// ParseFluxRange maps the provider-contract token spelling onto a FluxRange.
func ParseFluxRange(s string) (FluxRange, bool) {
	switch s {
	case "negative":
		return RangeNegative, true
	case "full":
		return RangeFull, true
	case "positive":
		return RangePositive, true
	default:
		return 0, false
	}
}

// Sum returns the NaN-safe sum of data: NaN samples are skipped, and if
// every sample is NaN the result is NaN.
func Sum[T Real](data []T) float64 {
	var sum float64
	var n int
	for _, v := range data {
		if math.IsNaN(float64(v)) {
			continue
		}
		sum += float64(v)
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum
}

// Mean returns the NaN-safe arithmetic mean of data.
func Mean[T Real](data []T) float64 {
	var sum float64
	var n int
	for _, v := range data {
		if math.IsNaN(float64(v)) {
			continue
		}
		sum += float64(v)
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// StdDev returns the standard deviation of data about the reference value
// mu0, sub-sampled every cadence-th element and restricted to the samples
// that satisfy rng. cadence must be >= 1. Returns NaN if no sample
// qualifies.
func StdDev[T Real](data []T, mu0 float64, cadence int, rng FluxRange) float64 {
	if cadence < 1 {
		cadence = 1
	}
	var sumSq float64
	var n int
	for i := 0; i < len(data); i += cadence {
		x := float64(data[i])
		if math.IsNaN(x) || !rng.keeps(x) {
			continue
		}
		d := x - mu0
		sumSq += d * d
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return math.Sqrt(sumSq / float64(n))
}

// Cadence returns the sub-sampling stride needed to keep a noise estimate
// over n samples under the 10^6-sample budget: max(1, ceil((n/1e6)^(1/3))).
func Cadence(n int) int {
	if n <= 0 {
		return 1
	}
	c := math.Ceil(math.Cbrt(float64(n) / 1.0e6))
	if c < 1 {
		return 1
	}
	return int(c)
}

// Estimate dispatches to the noise statistic named by m.
func Estimate[T Real](m Method, data []T, mu0 float64, cadence int, rng FluxRange) float64 {
	switch m {
	case MethodMAD:
		dev := toAbsDeviations(data, mu0, rng)
		if len(dev) == 0 {
			return math.NaN()
		}
		return madToSigma * selectMedian(dev)
	case MethodGauss:
		return GaussianFit(data, mu0, cadence, rng)
	default:
		return StdDev(data, mu0, cadence, rng)
	}
}

// toAbsDeviations collects |x - mu0| over finite, range-qualifying samples.
// It allocates a fresh slice rather than mutating the caller's data: unlike
// MADFloat64 (which is documented to mutate its argument in place so large
// cubes avoid a second full-size allocation), the generic Estimate entry
// point has no type-safe way to reuse T's storage for a float64 result when
// T is float32.
func toAbsDeviations[T Real](data []T, mu0 float64, rng FluxRange) []float64 {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		x := float64(v)
		if math.IsNaN(x) || !rng.keeps(x) {
			continue
		}
		out = append(out, math.Abs(x-mu0))
	}
	return out
}
