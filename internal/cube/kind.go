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

// Kind is the sample element type of a cube's buffer: one of six widths,
// signed-integer or IEEE floating point. It centralises the numeric
// coercions a cube needs so callers dispatch once per cube (or once per
// row/plane), not once per voxel — see design note "Polymorphism over
// sample type".
type Kind uint8

const (
	KindI8 Kind = iota
	KindI16
	KindI32
	KindI64
	KindF32
	KindF64
)

// WordSize returns the sample width in bytes.
func (k Kind) WordSize() int {
	switch k {
	case KindI8:
		return 1
	case KindI16:
		return 2
	case KindI32, KindF32:
		return 4
	case KindI64, KindF64:
		return 8
	default:
		panic(fmt.Sprintf("cube: invalid Kind %d", k))
	}
}

// IsFloat reports whether k is one of the two floating-point kinds.
func (k Kind) IsFloat() bool {
	return k == KindF32 || k == KindF64
}

// Bitpix returns the FITS BITPIX code for k.
func (k Kind) Bitpix() int {
	switch k {
	case KindI8:
		return 8
	case KindI16:
		return 16
	case KindI32:
		return 32
	case KindI64:
		return 64
	case KindF32:
		return -32
	case KindF64:
		return -64
	default:
		panic(fmt.Sprintf("cube: invalid Kind %d", k))
	}
}

// KindFromBitpix maps a FITS BITPIX header value onto a Kind, or reports an
// error for any value outside {-64,-32,8,16,32,64}.
func KindFromBitpix(bitpix int) (Kind, error) {
	switch bitpix {
	case 8:
		return KindI8, nil
	case 16:
		return KindI16, nil
	case 32:
		return KindI32, nil
	case 64:
		return KindI64, nil
	case -32:
		return KindF32, nil
	case -64:
		return KindF64, nil
	default:
		return 0, fmt.Errorf("cube: unsupported BITPIX %d", bitpix)
	}
}

func (k Kind) String() string {
	switch k {
	case KindI8:
		return "int8"
	case KindI16:
		return "int16"
	case KindI32:
		return "int32"
	case KindI64:
		return "int64"
	case KindF32:
		return "float32"
	case KindF64:
		return "float64"
	default:
		return "invalid"
	}
}
