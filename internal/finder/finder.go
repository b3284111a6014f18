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

// Package finder implements the Smooth-and-Clip (S+C) multi-scale source
// finder (spec 4.E): a Cartesian product of spatial and spectral kernels,
// each scale re-estimating noise on a scratch cube with already-detected
// voxels tamed back to baseline amplitude before re-smoothing.
package finder

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sofia-go/sofiacore/internal/cube"
	"github.com/sofia-go/sofiacore/internal/mask"
	"github.com/sofia-go/sofiacore/internal/stats"
)

// fwhmToSigma converts a Gaussian FWHM to its standard deviation:
// FWHM = sigma * 2*sqrt(2*ln2).
const fwhmToSigma = 1.0 / 2.3548200450309493 // 2*sqrt(2*ln2)

// Finder holds the parameters of one S+C detection run.
type Finder struct {
	Method stats.Method
	Range  stats.FluxRange
	Tau    float64 // detection threshold, in units of the per-scale sigma
	Mu     float64 // masked-voxel replacement factor, in units of sigma0

	// ScratchDir, if non-empty, forces each scale's scratch cube to be
	// spilled to disk under a uuid-suffixed name instead of staying
	// resident, for cubes too large to keep duplicated in memory across
	// the kernel Cartesian product. Empty (the default) keeps the
	// scratch cube in memory for the whole Run call.
	ScratchDir string
}

// spillScratch writes scratch to a uuid-named file under f.ScratchDir and
// reloads it, so the caller's in-memory copy can be released. The returned
// cleanup removes the spill file once the caller is done with the reloaded
// cube.
func (f Finder) spillScratch(scratch *cube.Cube) (spilled *cube.Cube, cleanup func(), err error) {
	path := filepath.Join(f.ScratchDir, "sofind-scratch-"+uuid.New().String()+".sc")
	if err := scratch.Save(path, true); err != nil {
		return nil, nil, fmt.Errorf("spilling scratch cube to %s: %w", path, err)
	}
	reloaded, err := cube.Load(path, nil)
	if err != nil {
		os.Remove(path)
		return nil, nil, fmt.Errorf("reloading spilled scratch cube %s: %w", path, err)
	}
	return reloaded, func() { os.Remove(path) }, nil
}

func flatten(c *cube.Cube) []float64 {
	n := c.NX * c.NY * c.NZ
	out := make([]float64, n)
	i := 0
	for z := 0; z < c.NZ; z++ {
		for y := 0; y < c.NY; y++ {
			for x := 0; x < c.NX; x++ {
				out[i] = c.GetFlt(x, y, z)
				i++
			}
		}
	}
	return out
}

func (f Finder) estimate(samples []float64, cadence int) float64 {
	return stats.Estimate(f.Method, samples, 0, cadence, f.Range)
}

// Run executes the full S+C procedure over data against the Cartesian
// product of spatialFWHM (2-D Gaussian kernel widths, 0 meaning "skip
// spatial smoothing at this scale") and spectralWidth (boxcar widths in
// channels, 0 meaning "skip spectral smoothing"), and returns the
// resulting detection mask. data is not modified.
func (f Finder) Run(data *cube.Cube, spatialFWHM, spectralWidth []float64) (*mask.Mask, error) {
	if !data.Kind.IsFloat() {
		return nil, fmt.Errorf("finder: requires a floating-point cube, got %s", data.Kind)
	}
	if len(spatialFWHM) == 0 {
		spatialFWHM = []float64{0}
	}
	if len(spectralWidth) == 0 {
		spectralWidth = []float64{0}
	}

	n := data.NX * data.NY * data.NZ
	cadence := stats.Cadence(n)
	sigma0 := f.estimate(flatten(data), cadence)

	m := mask.FromDataHeader(data)
	if err := m.Threshold(data, f.Tau*sigma0); err != nil {
		return nil, err
	}

	for _, ks := range spatialFWHM {
		for _, kz := range spectralWidth {
			if ks == 0 && kz == 0 {
				continue // the unsmoothed pass was already done in step 4
			}
			if err := f.runScale(data, m, sigma0, cadence, ks, kz); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// runScale re-smooths one (spatial, spectral) scale and thresholds it into
// m. Split out of Run so the scratch cube's disk-spill cleanup (when
// f.ScratchDir is set) can be deferred per scale rather than accumulating
// across the whole Cartesian product.
func (f Finder) runScale(data *cube.Cube, m *mask.Mask, sigma0 float64, cadence int, ks, kz float64) error {
	scratch := data.Clone()
	if err := m.SetMasked(scratch, f.Mu*sigma0); err != nil {
		return fmt.Errorf("finder: scale (%.3g,%.3g): %w", ks, kz, err)
	}

	if f.ScratchDir != "" {
		spilled, cleanup, err := f.spillScratch(scratch)
		if err != nil {
			return fmt.Errorf("finder: scale (%.3g,%.3g): %w", ks, kz, err)
		}
		defer cleanup()
		scratch = spilled
	}

	if ks > 0 {
		if err := scratch.Gaussian(ks * fwhmToSigma); err != nil {
			return fmt.Errorf("finder: scale (%.3g,%.3g): %w", ks, kz, err)
		}
	}
	if kz > 0 {
		radius := int(math.Floor(kz / 2))
		if radius < 1 {
			radius = 1
		}
		if err := scratch.Boxcar(radius); err != nil {
			return fmt.Errorf("finder: scale (%.3g,%.3g): %w", ks, kz, err)
		}
	}
	sigma := f.estimate(flatten(scratch), cadence)
	if err := m.Threshold(scratch, f.Tau*sigma); err != nil {
		return fmt.Errorf("finder: scale (%.3g,%.3g): %w", ks, kz, err)
	}
	return nil
}
