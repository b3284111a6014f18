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

package mask

import (
	"math"
	"testing"

	"github.com/sofia-go/sofiacore/internal/cube"
)

func sampleData() *cube.Cube {
	c := cube.New(cube.KindF64, 4, 4, 1)
	c.SetFlt(0, 0, 0, 10)
	c.SetFlt(1, 0, 0, 3)
	c.SetFlt(2, 0, 0, -8)
	c.SetFlt(3, 0, 0, math.NaN())
	return c
}

func countMarked(m *Mask) int {
	n := 0
	for _, v := range m.Int32() {
		if v != 0 {
			n++
		}
	}
	return n
}

func TestThresholdMonotonicity(t *testing.T) {
	data := sampleData()
	m1 := New(data.NX, data.NY, data.NZ)
	m2 := New(data.NX, data.NY, data.NZ)

	if err := m1.Threshold(data, 5); err != nil {
		t.Fatal(err)
	}
	if err := m2.Threshold(data, 9); err != nil {
		t.Fatal(err)
	}
	// tau1=5 <= tau2=9, so mask(tau2) subset mask(tau1).
	for i, v2 := range m2.Int32() {
		if v2 != 0 && m1.Int32()[i] == 0 {
			t.Fatalf("mask(tau2) not a subset of mask(tau1) at index %d", i)
		}
	}
	if countMarked(m1) == 0 {
		t.Fatal("expected at least one mark at tau=5")
	}
}

func TestThresholdSkipsNaN(t *testing.T) {
	data := sampleData()
	m := New(data.NX, data.NY, data.NZ)
	if err := m.Threshold(data, 0); err != nil {
		t.Fatal(err)
	}
	if m.Int32()[3] != 0 {
		t.Fatal("NaN voxel must never be marked")
	}
}

func TestThresholdNeverClears(t *testing.T) {
	data := sampleData()
	m := New(data.NX, data.NY, data.NZ)
	if err := m.Threshold(data, 9); err != nil {
		t.Fatal(err)
	}
	n1 := countMarked(m)
	if err := m.Threshold(data, 100); err != nil {
		t.Fatal(err)
	}
	if countMarked(m) < n1 {
		t.Fatal("threshold must never clear existing marks")
	}
}

func TestSetMaskedPreservesSign(t *testing.T) {
	data := sampleData()
	m := New(data.NX, data.NY, data.NZ)
	if err := m.Threshold(data, 5); err != nil {
		t.Fatal(err)
	}
	if err := m.SetMasked(data, 1.0); err != nil {
		t.Fatal(err)
	}
	if data.GetFlt(0, 0, 0) != 1.0 {
		t.Fatalf("positive voxel should replace to +1.0, got %v", data.GetFlt(0, 0, 0))
	}
	if data.GetFlt(2, 0, 0) != -1.0 {
		t.Fatalf("negative voxel should replace to -1.0, got %v", data.GetFlt(2, 0, 0))
	}
	if data.GetFlt(1, 0, 0) != 3 {
		t.Fatalf("unmarked voxel must be untouched, got %v", data.GetFlt(1, 0, 0))
	}
}

func TestSetMaskedRejectsNaNReplacement(t *testing.T) {
	data := sampleData()
	m := New(data.NX, data.NY, data.NZ)
	if err := m.Threshold(data, 5); err != nil {
		t.Fatal(err)
	}
	if err := m.SetMasked(data, math.NaN()); err == nil {
		t.Fatal("expected ErrSignMismatch for NaN replacement value")
	}
}

func TestShapeMismatchIsError(t *testing.T) {
	data := sampleData()
	m := New(2, 2, 1)
	if err := m.Threshold(data, 1); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}
