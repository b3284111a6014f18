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

// Package mask implements the integer-valued mask container: same shape
// as its companion data cube, restricted to the int32 sample kind, with
// the additive threshold and masked-replacement operations the S+C finder
// is built on (spec 4.C).
//
// Mask sample semantics: 0 = background, 1 = thresholded but unlinked,
// >= 2 = a provisional object label while the linker is running, and
// (after linking) >= 1 = a final compacted label.
package mask

import (
	"fmt"
	"math"

	"github.com/sofia-go/sofiacore/internal/cube"
)

// Mask is an int32 cube used as a detection/label overlay for a
// same-shaped data cube.
type Mask struct {
	*cube.Cube
}

// New allocates a blank (all-zero) mask of the given shape.
func New(nx, ny, nz int) *Mask {
	return &Mask{Cube: cube.New(cube.KindI32, nx, ny, nz)}
}

// FromDataHeader allocates a blank mask sharing the WCS subset of data's
// header (spec 4.E step 3).
func FromDataHeader(data *cube.Cube) *Mask {
	m := New(data.NX, data.NY, data.NZ)
	m.Header = data.DeriveMaskHeader()
	m.Header.PutBool("SIMPLE", true)
	m.Header.PutInt("BITPIX", int64(cube.KindI32.Bitpix()))
	return m
}

func (m *Mask) requireSameShape(data *cube.Cube) error {
	if m.NX != data.NX || m.NY != data.NY || m.NZ != data.NZ {
		return fmt.Errorf("mask: shape mismatch: mask %dx%dx%d vs data %dx%dx%d", m.NX, m.NY, m.NZ, data.NX, data.NY, data.NZ)
	}
	return nil
}

// Threshold additively marks every voxel of data whose absolute value
// exceeds tau: mask[v] := 1. It never clears an existing mark, so the
// resulting mask set only grows across repeated calls — the monotonicity
// property the S+C finder's kernel-product loop depends on.
func (m *Mask) Threshold(data *cube.Cube, tau float64) error {
	if err := m.requireSameShape(data); err != nil {
		return err
	}
	labels := m.Int32()
	n := m.NX * m.NY * m.NZ
	for i := 0; i < n; i++ {
		x, y, z := i%m.NX, (i/m.NX)%m.NY, i/(m.NX*m.NY)
		v := data.GetFlt(x, y, z)
		if math.IsNaN(v) {
			continue
		}
		if math.Abs(v) > tau {
			labels[i] = 1
		}
	}
	return nil
}

// SetMasked replaces every voxel of data that is currently marked
// (mask[v] != 0) with sign(data[v]) * v. Used by the S+C finder to tame
// previously detected bright sources before re-smoothing at the next
// scale, using the baseline (not re-measured) rms as v so dynamic range
// is preserved across scales.
func (m *Mask) SetMasked(data *cube.Cube, v float64) error {
	if err := m.requireSameShape(data); err != nil {
		return err
	}
	if math.IsNaN(v) {
		return cube.ErrSignMismatch
	}
	labels := m.Int32()
	n := m.NX * m.NY * m.NZ
	for i := 0; i < n; i++ {
		if labels[i] == 0 {
			continue
		}
		x, y, z := i%m.NX, (i/m.NX)%m.NY, i/(m.NX*m.NY)
		orig := data.GetFlt(x, y, z)
		sign := 1.0
		if orig < 0 {
			sign = -1.0
		} else if orig == 0 {
			sign = 0
		}
		data.SetFlt(x, y, z, sign*v)
	}
	return nil
}
