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

// BoxcarInPlace replaces data with its running mean of width 2*radius+1,
// treating both out-of-range neighbours and NaN input samples as zero.
// radius == 0 is a no-op copy. The filter is computed with a running sum
// so it costs O(len(data)) regardless of radius.
//
// NaN handling follows spec: NaNs are replaced by zero before filtering,
// so the caller must remember NaN positions separately if they need to be
// restored (the S+C finder does not: a smoothed NaN region simply
// contributes zero flux to its neighbours, same as blanked edges).
func BoxcarInPlace(data []float64, radius int) {
	if radius <= 0 || len(data) == 0 {
		return
	}
	n := len(data)
	src := make([]float64, n)
	for i, v := range data {
		if math.IsNaN(v) {
			src[i] = 0
		} else {
			src[i] = v
		}
	}

	width := 2*radius + 1
	var sum float64
	at := func(i int) float64 {
		if i < 0 || i >= n {
			return 0
		}
		return src[i]
	}
	for i := -radius; i <= radius; i++ {
		sum += at(i)
	}
	data[0] = sum / float64(width)
	for i := 1; i < n; i++ {
		sum += at(i + radius)
		sum -= at(i - radius - 1)
		data[i] = sum / float64(width)
	}
}

// GaussianBoxcarParams chooses the number of boxcar passes N and the
// per-pass radius R that best approximate a Gaussian of width sigma,
// solving sigma^2 = N*((2R+1)^2 - 1)/12 over small N subject to R >= 1 and
// minimizing |sigma_eff - sigma|. Requires sigma >= 1.5 (spec 4.A); the
// central-limit theorem gives a good Gaussian approximation after 3-4
// boxcar passes, which is why N is searched only over a small range.
func GaussianBoxcarParams(sigma float64) (n, radius int, err error) {
	if sigma < 1.5 {
		return 0, 0, errSigmaTooSmall
	}
	bestDiff := math.Inf(1)
	for tryN := 2; tryN <= 6; tryN++ {
		r := int(math.Round((math.Sqrt(12.0*sigma*sigma/float64(tryN)+1.0) - 1.0) / 2.0))
		if r < 1 {
			r = 1
		}
		effSigma := math.Sqrt(float64(tryN) * (math.Pow(float64(2*r+1), 2) - 1) / 12.0)
		diff := math.Abs(effSigma - sigma)
		if diff < bestDiff {
			bestDiff = diff
			n, radius = tryN, r
		}
	}
	return n, radius, nil
}

var errSigmaTooSmall = sigmaRangeError{}

type sigmaRangeError struct{}

func (sigmaRangeError) Error() string {
	return "stats: gaussian sigma must be >= 1.5 for the repeated-boxcar approximation"
}
