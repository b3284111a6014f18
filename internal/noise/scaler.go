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

// Package noise implements the two noise-normalisation modes of the
// pipeline's data-flow stage D: a per-channel (spectral) scaler that
// handles bandpass colour, and a sliding-window (local) scaler that
// handles slowly varying noise structure from mosaicking or
// primary-beam effects.
package noise

import (
	"fmt"
	"math"

	"github.com/sofia-go/sofiacore/internal/cube"
	"github.com/sofia-go/sofiacore/internal/stats"
)

// Scaler configures the noise statistic and flux range used by both
// normalisation modes.
type Scaler struct {
	Method stats.Method
	Range  stats.FluxRange
}

func (s Scaler) estimate(samples []float64) float64 {
	c := stats.Cadence(len(samples))
	return stats.Estimate(s.Method, samples, 0, c, s.Range)
}

// Spectral divides every sample of channel z by a noise estimate sigma_z
// computed over that channel's x-y plane. Channels whose sigma is zero or
// NaN are left unscaled.
func (s Scaler) Spectral(data *cube.Cube) error {
	if !data.Kind.IsFloat() {
		return fmt.Errorf("noise: spectral scaling requires a floating-point cube, got %s", data.Kind)
	}
	plane := make([]float64, data.NX*data.NY)
	for z := 0; z < data.NZ; z++ {
		i := 0
		for y := 0; y < data.NY; y++ {
			for x := 0; x < data.NX; x++ {
				plane[i] = data.GetFlt(x, y, z)
				i++
			}
		}
		sigma := s.estimate(plane)
		if math.IsNaN(sigma) || sigma == 0 {
			continue
		}
		for y := 0; y < data.NY; y++ {
			for x := 0; x < data.NX; x++ {
				data.SetFlt(x, y, z, data.GetFlt(x, y, z)/sigma)
			}
		}
	}
	return nil
}

// gridCenters returns the voxel coordinates of the regular grid spaced
// every step voxels along an axis of length n, clamped so every centre
// lies inside [0, n).
func gridCenters(n, step int) []int {
	if step <= 0 {
		step = n
	}
	var centers []int
	for c := step / 2; c < n; c += step {
		centers = append(centers, c)
	}
	if len(centers) == 0 {
		centers = []int{n / 2}
	}
	return centers
}

// Local estimates noise on a regular grid spaced (gx,gy,gz) voxels apart,
// centring a window of extent (wx,wy,wz) at each grid point, and returns
// the coarse noise cube (one sample per grid point, so it can be
// persisted by the caller). If interpolate is true, data is additionally
// divided in place by a trilinear interpolation of the coarse noise cube
// to full resolution.
func (s Scaler) Local(data *cube.Cube, gx, gy, gz, wx, wy, wz int, interpolate bool) (*cube.Cube, error) {
	if !data.Kind.IsFloat() {
		return nil, fmt.Errorf("noise: local scaling requires a floating-point cube, got %s", data.Kind)
	}
	cx := gridCenters(data.NX, gx)
	cy := gridCenters(data.NY, gy)
	cz := gridCenters(data.NZ, gz)

	coarse := cube.New(cube.KindF64, len(cx), len(cy), len(cz))
	var window []float64
	for kz, z0 := range cz {
		for ky, y0 := range cy {
			for kx, x0 := range cx {
				window = window[:0]
				xlo, xhi := clampWindow(x0, wx, data.NX)
				ylo, yhi := clampWindow(y0, wy, data.NY)
				zlo, zhi := clampWindow(z0, wz, data.NZ)
				for z := zlo; z <= zhi; z++ {
					for y := ylo; y <= yhi; y++ {
						for x := xlo; x <= xhi; x++ {
							window = append(window, data.GetFlt(x, y, z))
						}
					}
				}
				coarse.SetFlt(kx, ky, kz, s.estimate(window))
			}
		}
	}

	if interpolate {
		full := interpolateTrilinear(coarse, cx, cy, cz, data.NX, data.NY, data.NZ)
		if err := data.Divide(full); err != nil {
			return coarse, err
		}
	}
	return coarse, nil
}

// Apply divides data in place by a trilinear interpolation of an
// already-computed coarse noise cube (for instance one reloaded from an
// on-disk cache by internal/compr) to the grid (gx,gy,gz) it was estimated
// on, without re-estimating noise.
func (s Scaler) Apply(data, coarse *cube.Cube, gx, gy, gz int) error {
	if !data.Kind.IsFloat() {
		return fmt.Errorf("noise: applying a coarse noise cube requires a floating-point cube, got %s", data.Kind)
	}
	cx := gridCenters(data.NX, gx)
	cy := gridCenters(data.NY, gy)
	cz := gridCenters(data.NZ, gz)
	if coarse.NX != len(cx) || coarse.NY != len(cy) || coarse.NZ != len(cz) {
		return fmt.Errorf("noise: cached noise cube shape %dx%dx%d does not match grid shape %dx%dx%d",
			coarse.NX, coarse.NY, coarse.NZ, len(cx), len(cy), len(cz))
	}
	full := interpolateTrilinear(coarse, cx, cy, cz, data.NX, data.NY, data.NZ)
	return data.Divide(full)
}

func clampWindow(center, width, n int) (lo, hi int) {
	lo = center - width/2
	hi = center + width/2
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}

// interpolateTrilinear expands the coarse noise cube (sampled at the grid
// centres cx/cy/cz) to a full-resolution nx*ny*nz cube via trilinear
// interpolation, clamping at the edges beyond the outermost grid centre.
func interpolateTrilinear(coarse *cube.Cube, cx, cy, cz []int, nx, ny, nz int) *cube.Cube {
	full := cube.New(cube.KindF64, nx, ny, nz)
	for z := 0; z < nz; z++ {
		zi, zf := locate(cz, z)
		for y := 0; y < ny; y++ {
			yi, yf := locate(cy, y)
			for x := 0; x < nx; x++ {
				xi, xf := locate(cx, x)
				v := trilerp(coarse, xi, yi, zi, xf, yf, zf)
				full.SetFlt(x, y, z, v)
			}
		}
	}
	return full
}

// locate returns the lower grid index i and fractional offset f in [0,1]
// such that the query coordinate sits at centers[i] + f*(centers[i+1] -
// centers[i]), clamping to the first/last interval when outside the grid.
func locate(centers []int, q int) (i int, f float64) {
	if len(centers) == 1 {
		return 0, 0
	}
	if q <= centers[0] {
		return 0, 0
	}
	if q >= centers[len(centers)-1] {
		return len(centers) - 2, 1
	}
	for i = 0; i < len(centers)-1; i++ {
		if q >= centers[i] && q <= centers[i+1] {
			span := centers[i+1] - centers[i]
			if span == 0 {
				return i, 0
			}
			return i, float64(q-centers[i]) / float64(span)
		}
	}
	return len(centers) - 2, 1
}

func trilerp(c *cube.Cube, xi, yi, zi int, xf, yf, zf float64) float64 {
	at := func(dx, dy, dz int) float64 {
		x := clampIdx(xi+dx, c.NX)
		y := clampIdx(yi+dy, c.NY)
		z := clampIdx(zi+dz, c.NZ)
		return c.GetFlt(x, y, z)
	}
	c00 := at(0, 0, 0)*(1-xf) + at(1, 0, 0)*xf
	c10 := at(0, 1, 0)*(1-xf) + at(1, 1, 0)*xf
	c01 := at(0, 0, 1)*(1-xf) + at(1, 0, 1)*xf
	c11 := at(0, 1, 1)*(1-xf) + at(1, 1, 1)*xf
	c0 := c00*(1-yf) + c10*yf
	c1 := c01*(1-yf) + c11*yf
	return c0*(1-zf) + c1*zf
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}
