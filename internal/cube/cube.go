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

// Package cube implements the rectilinear sample array described in the
// data model: a typed buffer in x-fastest-varying order paired with a
// FITS-style textual header, plus the region-aware binary I/O contract
// (§6) and the element-wise operations (divide, boxcar, gaussian) the
// noise scaler and S+C finder are built on.
package cube

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	"github.com/sofia-go/sofiacore/internal/stats"
)

// ErrSignMismatch is returned by SetMasked when the replacement value is
// NaN, which carries no sign to apply (spec 4.C supplement).
var ErrSignMismatch = errors.New("cube: sample kind cannot carry a signed replacement value")

// Cube owns a contiguous sample buffer of one of six element types plus a
// textual header. Index (x,y,z) maps to x + nx*(y + ny*z).
type Cube struct {
	Kind       Kind
	NX, NY, NZ int
	Header     *Header
	Data       []byte
}

// New allocates a zeroed cube of the given shape and kind, with a fresh
// minimal header whose NAXIS* and BITPIX cards match the shape.
func New(kind Kind, nx, ny, nz int) *Cube {
	c := &Cube{
		Kind:   kind,
		NX:     nx,
		NY:     ny,
		NZ:     nz,
		Header: NewHeader(),
		Data:   make([]byte, nx*ny*nz*kind.WordSize()),
	}
	c.syncShapeHeader()
	return c
}

func (c *Cube) syncShapeHeader() {
	c.Header.PutBool("SIMPLE", true)
	c.Header.PutInt("BITPIX", int64(c.Kind.Bitpix()))
	naxis := 3
	if c.NZ == 1 {
		naxis = 2
		if c.NY == 1 {
			naxis = 1
		}
	}
	c.Header.PutInt("NAXIS", int64(naxis))
	c.Header.PutInt("NAXIS1", int64(c.NX))
	if naxis >= 2 {
		c.Header.PutInt("NAXIS2", int64(c.NY))
	}
	if naxis >= 3 {
		c.Header.PutInt("NAXIS3", int64(c.NZ))
	}
}

// Index returns the flat sample-buffer offset (in samples, not bytes) of
// voxel (x,y,z).
func (c *Cube) Index(x, y, z int) int {
	return x + c.NX*(y+c.NY*z)
}

// Derive returns a new cube with the same shape as c, a chosen sample
// kind, and a deep copy of c's header (with BITPIX/NAXIS* rewritten for
// the new kind). This is the "copy-with-header" constructor described in
// SPEC_FULL.md 5.B. The S+C finder's scratch cube is made with Clone and
// masks with mask.New/mask.FromDataHeader, so neither goes through Derive.
func (c *Cube) Derive(kind Kind) *Cube {
	out := &Cube{
		Kind:   kind,
		NX:     c.NX,
		NY:     c.NY,
		NZ:     c.NZ,
		Header: c.Header.Clone(),
		Data:   make([]byte, c.NX*c.NY*c.NZ*kind.WordSize()),
	}
	out.syncShapeHeader()
	return out
}

// DeriveMaskHeader builds the header for a 32-bit integer mask sharing
// only the WCS subset of c's header (spec 4.E step 3), rather than a full
// header copy.
func (c *Cube) DeriveMaskHeader() *Header {
	h := NewHeader()
	naxis := 3
	if c.NZ == 1 {
		naxis = 2
	}
	h.CopyKeysFrom(c.Header, WCSKeys(naxis)...)
	return h
}

// Clone returns a deep copy of c (header and sample buffer).
func (c *Cube) Clone() *Cube {
	out := &Cube{
		Kind:   c.Kind,
		NX:     c.NX,
		NY:     c.NY,
		NZ:     c.NZ,
		Header: c.Header.Clone(),
		Data:   make([]byte, len(c.Data)),
	}
	copy(out.Data, c.Data)
	return out
}

// --- typed views -----------------------------------------------------
//
// These reinterpret the owned byte buffer as a typed slice without
// copying, the same unsafe.Slice idiom the teacher uses throughout its
// columnar engine (e.g. vm/malloc.go, ion/datum.go) to avoid per-voxel
// conversion overhead.

func asI8(b []byte) []int8 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*int8)(unsafe.Pointer(&b[0])), len(b))
}

func asI16(b []byte) []int16 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*int16)(unsafe.Pointer(&b[0])), len(b)/2)
}

func asI32(b []byte) []int32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), len(b)/4)
}

func asI64(b []byte) []int64 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&b[0])), len(b)/8)
}

func asF32(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}

func asF64(b []byte) []float64 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&b[0])), len(b)/8)
}

// Float32 returns the typed view of a float32 cube's buffer. Panics if the
// cube's Kind is not KindF32; callers that accept any float kind should
// use GetFlt/SetFlt or Row/Col/Spec instead.
func (c *Cube) Float32() []float32 {
	if c.Kind != KindF32 {
		panic(fmt.Sprintf("cube: Float32 called on a %s cube", c.Kind))
	}
	return asF32(c.Data)
}

// Float64 returns the typed view of a float64 cube's buffer.
func (c *Cube) Float64() []float64 { return asF64(c.Data) }

// Int32 returns the typed view of an int32 cube's buffer (masks).
func (c *Cube) Int32() []int32 { return asI32(c.Data) }

// GetFlt returns the sample at (x,y,z) widened to float64, regardless of
// the cube's storage kind.
func (c *Cube) GetFlt(x, y, z int) float64 {
	i := c.Index(x, y, z)
	switch c.Kind {
	case KindI8:
		return float64(asI8(c.Data)[i])
	case KindI16:
		return float64(asI16(c.Data)[i])
	case KindI32:
		return float64(asI32(c.Data)[i])
	case KindI64:
		return float64(asI64(c.Data)[i])
	case KindF32:
		return float64(asF32(c.Data)[i])
	default:
		return asF64(c.Data)[i]
	}
}

// SetFlt stores v at (x,y,z), narrowing it to the cube's storage kind.
func (c *Cube) SetFlt(x, y, z int, v float64) {
	i := c.Index(x, y, z)
	switch c.Kind {
	case KindI8:
		asI8(c.Data)[i] = int8(v)
	case KindI16:
		asI16(c.Data)[i] = int16(v)
	case KindI32:
		asI32(c.Data)[i] = int32(v)
	case KindI64:
		asI64(c.Data)[i] = int64(v)
	case KindF32:
		asF32(c.Data)[i] = float32(v)
	default:
		asF64(c.Data)[i] = v
	}
}

// GetInt returns the sample at (x,y,z) widened to int64.
func (c *Cube) GetInt(x, y, z int) int64 {
	i := c.Index(x, y, z)
	switch c.Kind {
	case KindI8:
		return int64(asI8(c.Data)[i])
	case KindI16:
		return int64(asI16(c.Data)[i])
	case KindI32:
		return int64(asI32(c.Data)[i])
	case KindI64:
		return asI64(c.Data)[i]
	case KindF32:
		return int64(asF32(c.Data)[i])
	default:
		return int64(asF64(c.Data)[i])
	}
}

// SetInt stores v at (x,y,z), narrowing it to the cube's storage kind.
func (c *Cube) SetInt(x, y, z int, v int64) {
	i := c.Index(x, y, z)
	switch c.Kind {
	case KindI8:
		asI8(c.Data)[i] = int8(v)
	case KindI16:
		asI16(c.Data)[i] = int16(v)
	case KindI32:
		asI32(c.Data)[i] = int32(v)
	case KindI64:
		asI64(c.Data)[i] = v
	case KindF32:
		asF32(c.Data)[i] = float32(v)
	default:
		asF64(c.Data)[i] = float64(v)
	}
}

// --- row/column/spectrum extraction for the filter kernels ------------

// requireFloat returns an error if the cube is not stored as float32 or
// float64; the S+C finder and noise scaler only ever operate on floating
// cubes (spec: "Inputs. Data cube (floating sample type)").
func (c *Cube) requireFloat() error {
	if !c.Kind.IsFloat() {
		return fmt.Errorf("cube: operation requires a floating-point cube, got %s", c.Kind)
	}
	return nil
}

// RowX returns a fresh []float64 copy of the row at fixed (y,z), length NX.
func (c *Cube) RowX(y, z int) []float64 {
	out := make([]float64, c.NX)
	for x := 0; x < c.NX; x++ {
		out[x] = c.GetFlt(x, y, z)
	}
	return out
}

// SetRowX writes row back into the cube at fixed (y,z).
func (c *Cube) SetRowX(y, z int, row []float64) {
	for x := 0; x < c.NX; x++ {
		c.SetFlt(x, y, z, row[x])
	}
}

// ColY returns a fresh []float64 copy of the column at fixed (x,z).
func (c *Cube) ColY(x, z int) []float64 {
	out := make([]float64, c.NY)
	for y := 0; y < c.NY; y++ {
		out[y] = c.GetFlt(x, y, z)
	}
	return out
}

// SetColY writes col back into the cube at fixed (x,z).
func (c *Cube) SetColY(x, z int, col []float64) {
	for y := 0; y < c.NY; y++ {
		c.SetFlt(x, y, z, col[y])
	}
}

// SpecZ returns a fresh []float64 copy of the spectrum at fixed (x,y).
func (c *Cube) SpecZ(x, y int) []float64 {
	out := make([]float64, c.NZ)
	for z := 0; z < c.NZ; z++ {
		out[z] = c.GetFlt(x, y, z)
	}
	return out
}

// SetSpecZ writes spec back into the cube at fixed (x,y).
func (c *Cube) SetSpecZ(x, y int, spec []float64) {
	for z := 0; z < c.NZ; z++ {
		c.SetFlt(x, y, z, spec[z])
	}
}

// --- element-wise operations -------------------------------------------

// Divide performs an element-wise c /= other, preserving NaN wherever
// other is zero or NaN. Both cubes must share shape and be floating.
func (c *Cube) Divide(other *Cube) error {
	if err := c.requireFloat(); err != nil {
		return err
	}
	if c.NX != other.NX || c.NY != other.NY || c.NZ != other.NZ {
		return fmt.Errorf("cube: shape mismatch in Divide: %dx%dx%d vs %dx%dx%d", c.NX, c.NY, c.NZ, other.NX, other.NY, other.NZ)
	}
	n := c.NX * c.NY * c.NZ
	for i := 0; i < n; i++ {
		x, y, z := i%c.NX, (i/c.NX)%c.NY, i/(c.NX*c.NY)
		d := other.GetFlt(x, y, z)
		if math.IsNaN(d) || d == 0 {
			c.SetFlt(x, y, z, math.NaN())
			continue
		}
		c.SetFlt(x, y, z, c.GetFlt(x, y, z)/d)
	}
	return nil
}

// Boxcar convolves every spectrum (fixed x,y) with a 1-D boxcar filter of
// the given radius, in place.
func (c *Cube) Boxcar(radius int) error {
	if err := c.requireFloat(); err != nil {
		return err
	}
	if radius <= 0 {
		return nil
	}
	for y := 0; y < c.NY; y++ {
		for x := 0; x < c.NX; x++ {
			spec := c.SpecZ(x, y)
			stats.BoxcarInPlace(spec, radius)
			c.SetSpecZ(x, y, spec)
		}
	}
	return nil
}

// Gaussian applies a separable 2-D Gaussian of the given sigma (in
// voxels) to every spatial plane (fixed z), approximated by N repeated
// boxcar passes along x then y, per spec 4.A.
func (c *Cube) Gaussian(sigma float64) error {
	if err := c.requireFloat(); err != nil {
		return err
	}
	n, radius, err := stats.GaussianBoxcarParams(sigma)
	if err != nil {
		return err
	}
	for pass := 0; pass < n; pass++ {
		for z := 0; z < c.NZ; z++ {
			for y := 0; y < c.NY; y++ {
				row := c.RowX(y, z)
				stats.BoxcarInPlace(row, radius)
				c.SetRowX(y, z, row)
			}
			for x := 0; x < c.NX; x++ {
				col := c.ColY(x, z)
				stats.BoxcarInPlace(col, radius)
				c.SetColY(x, z, col)
			}
		}
	}
	return nil
}

// Flag sets every voxel within any of the given regions to NaN, ahead of
// any noise statistic or S+C pass. Grounded on the original SoFiA-2
// Flagger.c overlay (SPEC_FULL.md 5.A): additive like masking, it is
// never cleared, and like masking it mutates the data cube it is applied
// to rather than returning a new one.
func (c *Cube) Flag(regions []Region) error {
	if err := c.requireFloat(); err != nil {
		return err
	}
	for _, r := range regions {
		r = r.Clamp(c.NX, c.NY, c.NZ)
		if !r.Valid() {
			continue
		}
		for z := r.ZMin; z <= r.ZMax; z++ {
			for y := r.YMin; y <= r.YMax; y++ {
				for x := r.XMin; x <= r.XMax; x++ {
					c.SetFlt(x, y, z, math.NaN())
				}
			}
		}
	}
	return nil
}
