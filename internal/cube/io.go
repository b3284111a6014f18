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

import (
	"bufio"
	"fmt"
	"math"
	"os"
)

const bscaleEpsilon = 1e-12

func checkTrivialScale(h *Header) error {
	bscale := h.GetFlt("BSCALE")
	bzero := h.GetFlt("BZERO")
	if !math.IsNaN(bscale) && math.Abs(bscale-1.0) > bscaleEpsilon {
		return fmt.Errorf("cube: non-trivial BSCALE=%v not supported", bscale)
	}
	if !math.IsNaN(bzero) && math.Abs(bzero) > bscaleEpsilon {
		return fmt.Errorf("cube: non-trivial BZERO=%v not supported", bzero)
	}
	return nil
}

func shapeFromHeader(h *Header) (kind Kind, nx, ny, nz int, err error) {
	bitpix := int(h.GetInt("BITPIX"))
	kind, err = KindFromBitpix(bitpix)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	naxis := int(h.GetInt("NAXIS"))
	if naxis < 1 || naxis > 4 {
		return 0, 0, 0, 0, fmt.Errorf("cube: NAXIS=%d out of range [1,4]", naxis)
	}
	if naxis == 4 && h.GetInt("NAXIS4") != 1 {
		return 0, 0, 0, 0, fmt.Errorf("cube: NAXIS=4 requires NAXIS4=1, got %d", h.GetInt("NAXIS4"))
	}
	nx = int(h.GetInt("NAXIS1"))
	ny = 1
	nz = 1
	if naxis >= 2 {
		ny = int(h.GetInt("NAXIS2"))
	}
	if naxis >= 3 {
		nz = int(h.GetInt("NAXIS3"))
	}
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return 0, 0, 0, 0, fmt.Errorf("cube: invalid axis sizes %d x %d x %d", nx, ny, nz)
	}
	return kind, nx, ny, nz, nil
}

// Load parses the FITS-style container at path and, if region is
// non-nil, restricts the sample buffer to that sub-region, clamping it to
// the cube's bounds and adjusting NAXIS*/CRPIX* accordingly (spec §4.B).
// All I/O and parse failures are reported as a returned error; per this
// module's ambient-stack convention (SPEC_FULL.md §2) it is the caller —
// typically cmd/sofind — that turns a non-nil error into the fatal
// diagnostic-and-abort spec §7 calls for.
func Load(path string, region *Region) (*Cube, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cube: open %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, blockSize)
	h, headerSize, err := ParseHeader(br)
	if err != nil {
		return nil, fmt.Errorf("cube: %s: %w", path, err)
	}
	if err := checkTrivialScale(h); err != nil {
		return nil, fmt.Errorf("cube: %s: %w", path, err)
	}
	kind, nx, ny, nz, err := shapeFromHeader(h)
	if err != nil {
		return nil, fmt.Errorf("cube: %s: %w", path, err)
	}

	c := &Cube{Kind: kind, NX: nx, NY: ny, NZ: nz, Header: h}

	if region == nil {
		data, err := readSampleRegion(f, headerSize, kind, nx, ny, nz, FullRegion(nx, ny, nz))
		if err != nil {
			return nil, fmt.Errorf("cube: %s: %w", path, err)
		}
		c.Data = data
	} else {
		clamped := region.Clamp(nx, ny, nz)
		if !clamped.Valid() {
			return nil, fmt.Errorf("cube: %s: region %v is empty after clamping to %dx%dx%d", path, *region, nx, ny, nz)
		}
		data, err := readSampleRegion(f, headerSize, kind, nx, ny, nz, clamped)
		if err != nil {
			return nil, fmt.Errorf("cube: %s: %w", path, err)
		}
		c.Data = data
		c.NX, c.NY, c.NZ = clamped.NX(), clamped.NY(), clamped.NZ()
		adjustHeaderForRegion(h, clamped)
	}

	if hostLittleEndian {
		swapBytes(c.Data, kind.WordSize())
	}
	return c, nil
}

// adjustHeaderForRegion rewrites NAXIS*/CRPIX* so the sub-loaded cube's
// header still describes its own (smaller) extent and WCS origin, per
// spec example 5: CRPIX1=100, x_min=20 -> CRPIX1=80.
func adjustHeaderForRegion(h *Header, r Region) {
	h.PutInt("NAXIS1", int64(r.NX()))
	if h.Check("NAXIS2") != 0 {
		h.PutInt("NAXIS2", int64(r.NY()))
	}
	if h.Check("NAXIS3") != 0 {
		h.PutInt("NAXIS3", int64(r.NZ()))
	}
	adjustCrpix := func(key string, min int) {
		if h.Check(key) == 0 {
			return
		}
		h.PutFlt(key, h.GetFlt(key)-float64(min))
	}
	adjustCrpix("CRPIX1", r.XMin)
	adjustCrpix("CRPIX2", r.YMin)
	adjustCrpix("CRPIX3", r.ZMin)
}

// readSampleRegion reads the sample sub-slab described by region (in the
// full cube's own coordinate frame) from r, which must be positioned at
// the start of the file (the header occupies the first headerSize bytes).
// Each row along x is contiguous on disk, so a region that only restricts
// y/z can read whole rows; an x-restricted region reads the row and
// slices it.
func readSampleRegion(f *os.File, headerSize int64, kind Kind, nx, ny, nz int, region Region) ([]byte, error) {
	ws := kind.WordSize()
	full := region.XMax == nx-1 && region.XMin == 0 && region.YMax == ny-1 && region.YMin == 0 && region.ZMax == nz-1 && region.ZMin == 0
	if full {
		return readWholeBuffer(f, headerSize, int64(nx)*int64(ny)*int64(nz)*int64(ws))
	}

	out := make([]byte, region.NX()*region.NY()*region.NZ()*ws)
	rowBytes := region.NX() * ws
	outOff := 0
	rowBuf := make([]byte, nx*ws)
	for z := region.ZMin; z <= region.ZMax; z++ {
		for y := region.YMin; y <= region.YMax; y++ {
			fullRowStart := headerSize + int64(nx)*(int64(y)+int64(ny)*int64(z))*int64(ws)
			if _, err := f.ReadAt(rowBuf, fullRowStart); err != nil {
				return nil, fmt.Errorf("reading row (y=%d z=%d): %w", y, z, err)
			}
			copy(out[outOff:outOff+rowBytes], rowBuf[region.XMin*ws:region.XMin*ws+rowBytes])
			outOff += rowBytes
		}
	}
	return out, nil
}

func readWholeBuffer(f *os.File, headerSize, n int64) ([]byte, error) {
	if buf, ok := mmapFullBuffer(f, headerSize, n); ok {
		return buf, nil
	}
	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, headerSize); err != nil {
		return nil, fmt.Errorf("reading sample buffer: %w", err)
	}
	return buf, nil
}

// Save writes the cube's header followed by its sample buffer in
// big-endian order, zero-padded to a 2880-byte boundary (spec §6). If
// overwrite is false and path already exists, Save fails rather than
// clobber it.
func (c *Cube) Save(path string, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("cube: save %s: %w", path, err)
	}
	defer f.Close()

	c.syncShapeHeader()
	if _, err := f.Write(c.Header.Bytes()); err != nil {
		return fmt.Errorf("cube: save %s: writing header: %w", path, err)
	}

	ws := c.Kind.WordSize()
	if hostLittleEndian {
		swapBytes(c.Data, ws)
		defer swapBytes(c.Data, ws) // restore host order for continued in-memory use
	}

	if _, err := f.Write(c.Data); err != nil {
		return fmt.Errorf("cube: save %s: writing samples: %w", path, err)
	}
	pad := ((len(c.Data)+blockSize-1)/blockSize)*blockSize - len(c.Data)
	if pad > 0 {
		if _, err := f.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("cube: save %s: padding: %w", path, err)
		}
	}
	return nil
}
