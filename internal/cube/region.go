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

package cube

import "fmt"

// Region is an immutable ordered sextuple of voxel bounds, inclusive on
// both ends.
type Region struct {
	XMin, XMax int
	YMin, YMax int
	ZMin, ZMax int
}

// FullRegion returns the region spanning an entire nx*ny*nz cube.
func FullRegion(nx, ny, nz int) Region {
	return Region{0, nx - 1, 0, ny - 1, 0, nz - 1}
}

// Valid reports whether the region's mins do not exceed its maxes on any
// axis.
func (r Region) Valid() bool {
	return r.XMin <= r.XMax && r.YMin <= r.YMax && r.ZMin <= r.ZMax
}

// Clamp restricts r to the bounds of an nx*ny*nz cube.
func (r Region) Clamp(nx, ny, nz int) Region {
	clampAxis := func(min, max, size int) (int, int) {
		if min < 0 {
			min = 0
		}
		if max > size-1 {
			max = size - 1
		}
		return min, max
	}
	out := r
	out.XMin, out.XMax = clampAxis(r.XMin, r.XMax, nx)
	out.YMin, out.YMax = clampAxis(r.YMin, r.YMax, ny)
	out.ZMin, out.ZMax = clampAxis(r.ZMin, r.ZMax, nz)
	return out
}

func (r Region) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d, %d:%d]", r.XMin, r.XMax, r.YMin, r.YMax, r.ZMin, r.ZMax)
}

// NX, NY, NZ report the voxel extent of the region along each axis.
func (r Region) NX() int { return r.XMax - r.XMin + 1 }
func (r Region) NY() int { return r.YMax - r.YMin + 1 }
func (r Region) NZ() int { return r.ZMax - r.ZMin + 1 }
