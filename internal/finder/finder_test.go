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

package finder

import (
	"os"
	"testing"

	"github.com/sofia-go/sofiacore/internal/cube"
	"github.com/sofia-go/sofiacore/internal/stats"
)

// TestScratchDirSpillsToDiskAndMatchesInMemory exercises the uuid-named
// disk-spill path: with ScratchDir set, each scale's scratch cube is
// written out, reloaded, and removed instead of staying resident, and the
// resulting mask must be identical to the in-memory run.
func TestScratchDirSpillsToDiskAndMatchesInMemory(t *testing.T) {
	build := func() *cube.Cube {
		c := cube.New(cube.KindF64, 16, 16, 16)
		gen := &lcg{state: 7}
		for z := 0; z < c.NZ; z++ {
			for y := 0; y < c.NY; y++ {
				for x := 0; x < c.NX; x++ {
					c.SetFlt(x, y, z, (gen.next()*2-1)*0.3)
				}
			}
		}
		c.SetFlt(8, 8, 8, 10)
		return c
	}

	fMem := Finder{Method: stats.MethodStd, Range: stats.RangeFull, Tau: 5, Mu: 2.5}
	mMem, err := fMem.Run(build(), []float64{0, 6}, []float64{0})
	if err != nil {
		t.Fatal(err)
	}

	fDisk := Finder{Method: stats.MethodStd, Range: stats.RangeFull, Tau: 5, Mu: 2.5, ScratchDir: t.TempDir()}
	mDisk, err := fDisk.Run(build(), []float64{0, 6}, []float64{0})
	if err != nil {
		t.Fatal(err)
	}

	labelsMem, labelsDisk := mMem.Int32(), mDisk.Int32()
	if len(labelsMem) != len(labelsDisk) {
		t.Fatalf("mask length mismatch: %d vs %d", len(labelsMem), len(labelsDisk))
	}
	for i := range labelsMem {
		if (labelsMem[i] != 0) != (labelsDisk[i] != 0) {
			t.Fatalf("voxel %d: in-memory marked=%v, disk-spilled marked=%v", i, labelsMem[i] != 0, labelsDisk[i] != 0)
		}
	}

	entries, err := os.ReadDir(fDisk.ScratchDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected ScratchDir to be empty after Run, found %v", entries)
	}
}

func countMarks(labels []int32) int {
	n := 0
	for _, v := range labels {
		if v != 0 {
			n++
		}
	}
	return n
}

// TestSingleIsolatedSource exercises spec §8 end-to-end scenario 1: a
// single bright voxel in an otherwise low-amplitude noise cube, found by the
// unsmoothed (0,0) pass alone.
func TestSingleIsolatedSource(t *testing.T) {
	c := cube.New(cube.KindF64, 64, 64, 64)
	gen := &lcg{state: 1}
	for z := 0; z < c.NZ; z++ {
		for y := 0; y < c.NY; y++ {
			for x := 0; x < c.NX; x++ {
				c.SetFlt(x, y, z, (gen.next()*2-1)*0.3)
			}
		}
	}
	c.SetFlt(32, 32, 32, 10)

	f := Finder{Method: stats.MethodStd, Range: stats.RangeFull, Tau: 5, Mu: 2.5}
	m, err := f.Run(c, []float64{0}, []float64{0})
	if err != nil {
		t.Fatal(err)
	}
	if m.Int32()[m.Index(32, 32, 32)] == 0 {
		t.Fatal("expected the bright voxel to be marked")
	}
}

// TestZeroKernelPairSkippedAfterInitialPass exercises the boundary case
// "kernel pair (0,0) is skipped after the initial unsmoothed pass" (spec
// §8): supplying (0,0) as the only pair must not panic or double-count.
func TestZeroKernelPairSkippedAfterInitialPass(t *testing.T) {
	c := cube.New(cube.KindF64, 8, 8, 8)
	f := Finder{Method: stats.MethodStd, Range: stats.RangeFull, Tau: 5, Mu: 2.5}
	m, err := f.Run(c, []float64{0}, []float64{0})
	if err != nil {
		t.Fatal(err)
	}
	if countMarks(m.Int32()) != 0 {
		t.Fatal("empty cube must yield an empty mask")
	}
}

// TestSpectralBoxcarLiftsBroadFaintLine exercises spec §8 end-to-end
// scenario 4: a broad, faint constant source invisible to the unsmoothed
// pass becomes detectable once a wide spectral boxcar is added.
func TestSpectralBoxcarLiftsBroadFaintLine(t *testing.T) {
	const nx, ny, nz = 20, 20, 40
	build := func() *cube.Cube {
		c := cube.New(cube.KindF64, nx, ny, nz)
		gen := &lcg{state: 99}
		for z := 0; z < nz; z++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					c.SetFlt(x, y, z, gen.next()*2-1)
				}
			}
		}
		for z := 10; z < 31; z++ {
			c.SetFlt(nx/2, ny/2, z, c.GetFlt(nx/2, ny/2, z)+1.0)
		}
		return c
	}

	fUnsmoothed := Finder{Method: stats.MethodStd, Range: stats.RangeFull, Tau: 5, Mu: 2.5}
	mUnsmoothed, err := fUnsmoothed.Run(build(), []float64{0}, []float64{0})
	if err != nil {
		t.Fatal(err)
	}

	fSmoothed := Finder{Method: stats.MethodStd, Range: stats.RangeFull, Tau: 5, Mu: 2.5}
	mSmoothed, err := fSmoothed.Run(build(), []float64{0}, []float64{0, 21})
	if err != nil {
		t.Fatal(err)
	}

	if countMarks(mSmoothed.Int32()) <= countMarks(mUnsmoothed.Int32()) {
		t.Fatalf("smoothed-pass detections (%d) must exceed unsmoothed-pass detections (%d)",
			countMarks(mSmoothed.Int32()), countMarks(mUnsmoothed.Int32()))
	}
}

type lcg struct{ state uint64 }

func (g *lcg) next() float64 {
	g.state = g.state*6364136223846793005 + 1442695040888963407
	return float64(g.state>>11) / float64(1<<53)
}
