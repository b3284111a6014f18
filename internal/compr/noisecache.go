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

package compr

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/sofia-go/sofiacore/internal/cube"
)

// cacheMagic tags the coarse-noise-cube cache format; it is a private
// on-disk cache, not the data-cube container format, so it is free to use
// whatever layout is convenient.
var cacheMagic = [4]byte{'S', 'N', 'C', '1'}

// SaveNoiseCube persists a coarse local-noise cube (as produced by
// internal/noise's Scaler.Local) to path using the named compression
// algorithm, so a repeated run against the same data need not recompute
// the sliding-window noise grid.
func SaveNoiseCube(path string, c *cube.Cube, algo string) error {
	comp := Compression(algo)
	if comp == nil {
		return fmt.Errorf("compr: unknown compression algorithm %q", algo)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("compr: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.Write(cacheMagic[:]); err != nil {
		return err
	}
	if err := writeString(w, comp.Name()); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(c.Kind)); err != nil {
		return err
	}
	dims := [3]uint32{uint32(c.NX), uint32(c.NY), uint32(c.NZ)}
	if err := binary.Write(w, binary.LittleEndian, dims); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(c.Data))); err != nil {
		return err
	}
	packed := comp.Compress(c.Data, nil)
	if err := binary.Write(w, binary.LittleEndian, uint64(len(packed))); err != nil {
		return err
	}
	if _, err := w.Write(packed); err != nil {
		return err
	}
	return w.Flush()
}

// LoadNoiseCube reads back a cube written by SaveNoiseCube.
func LoadNoiseCube(path string) (*cube.Cube, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("compr: open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic [4]byte
	if _, err := r.Read(magic[:]); err != nil {
		return nil, fmt.Errorf("compr: %s: reading magic: %w", path, err)
	}
	if magic != cacheMagic {
		return nil, fmt.Errorf("compr: %s: not a noise-cube cache file", path)
	}
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	decomp := Decompression(name)
	if decomp == nil {
		return nil, fmt.Errorf("compr: %s: unknown compression algorithm %q", path, name)
	}
	var kindByte uint8
	if err := binary.Read(r, binary.LittleEndian, &kindByte); err != nil {
		return nil, err
	}
	var dims [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return nil, err
	}
	var rawLen, packedLen uint64
	if err := binary.Read(r, binary.LittleEndian, &rawLen); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &packedLen); err != nil {
		return nil, err
	}
	packed := make([]byte, packedLen)
	if _, err := io.ReadFull(r, packed); err != nil {
		return nil, fmt.Errorf("compr: %s: reading payload: %w", path, err)
	}

	c := cube.New(cube.Kind(kindByte), int(dims[0]), int(dims[1]), int(dims[2]))
	raw := make([]byte, rawLen)
	if err := decomp.Decompress(packed, raw); err != nil {
		return nil, fmt.Errorf("compr: %s: decompressing: %w", path, err)
	}
	copy(c.Data, raw)
	return c, nil
}

func writeString(w *bufio.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint8(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readString(r *bufio.Reader) (string, error) {
	var n uint8
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
