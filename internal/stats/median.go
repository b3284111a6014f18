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

import "math"

// madToSigma converts a median absolute deviation into a sigma-equivalent
// noise estimate for a Gaussian distribution, so that MAD can be used
// interchangeably with the std and Gaussian-fit statistics wherever the S+C
// finder or noise scaler calls for "the configured statistic". The
// 1.4826 factor is the standard consistency constant (1/Phi^-1(3/4));
// spec.md's own MAD kernel is deliberately left unscaled (section 4.A), so
// the conversion lives here, one layer up, rather than in MADFloat64 itself.
const madToSigma = 1.4826

// MADFloat64 returns the median of |x - mu0| over the finite elements of
// data. It is permitted to reorder and overwrite data in place (it uses a
// partition-based selection, not a full sort-and-index); callers that need
// to preserve their buffer must copy it first. Returns NaN if every sample
// is NaN.
//
// The partition step is a Hoare two-pointer scan adapted from the pivot
// selection used by the teacher's scalar quicksort implementations
// (internal/sort/uint64_quicksort_impl.go in the example pack): pick the
// middle element as pivot, scan inward from both ends, swap out-of-order
// pairs, and recurse only into the half containing the target rank.
func MADFloat64(data []float64, mu0 float64) float64 {
	n := compactAbsDeviations(data, mu0)
	if n == 0 {
		return math.NaN()
	}
	return selectMedian(data[:n])
}

// compactAbsDeviations overwrites data[:k] with |data[i] - mu0| for the
// finite elements of data, in their original relative order, and returns
// the count k of finite elements retained.
func compactAbsDeviations(data []float64, mu0 float64) int {
	k := 0
	for _, v := range data {
		if math.IsNaN(v) {
			continue
		}
		data[k] = math.Abs(v - mu0)
		k++
	}
	return k
}

// selectMedian returns the median of data, reordering data in place via
// quickselect. For an even-length slice it returns the mean of the two
// central order statistics.
func selectMedian(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return math.NaN()
	}
	mid := n / 2
	lo := quickselect(data, mid)
	if n%2 == 1 {
		return lo
	}
	// n even: also need the element just below the midpoint; data is
	// partially ordered around mid after the first select, so the lower
	// half is all <= lo. A second select over that half recovers it cheaply.
	hi := quickselect(data[:mid], mid-1)
	return (lo + hi) / 2
}

// quickselect returns the k-th smallest element (0-indexed) of data,
// reordering data in place.
func quickselect(data []float64, k int) float64 {
	left, right := 0, len(data)-1
	for left < right {
		pivot := data[(left+right)/2]
		i, j := left, right
		for i <= j {
			for data[i] < pivot {
				i++
			}
			for data[j] > pivot {
				j--
			}
			if i <= j {
				data[i], data[j] = data[j], data[i]
				i++
				j--
			}
		}
		if k <= j {
			right = j
		} else if k >= i {
			left = i
		} else {
			break
		}
	}
	return data[k]
}
