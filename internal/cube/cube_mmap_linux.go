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

//go:build linux

package cube

import (
	"os"
	"syscall"
)

// mmapFullBuffer memory-maps the n bytes of f starting at offset and
// returns an owned copy of them, so the Cube can be the exclusive owner of
// its buffer per §5's ownership model even though the initial read came
// from a shared mapping. This is the same approach as the teacher's
// cmd/sdb/mmap_linux.go (syscall.Mmap guarded by a type assertion back to
// *os.File), applied here to cube loading instead of columnar blob reads.
func mmapFullBuffer(f *os.File, offset, n int64) ([]byte, bool) {
	if n <= 0 {
		return make([]byte, 0), true
	}
	// mmap offsets must be page-aligned; round down and adjust.
	pageSize := int64(os.Getpagesize())
	aligned := offset - offset%pageSize
	delta := offset - aligned

	mem, err := syscall.Mmap(int(f.Fd()), aligned, int(n+delta), syscall.PROT_READ, syscall.MAP_PRIVATE)
	if err != nil {
		return nil, false
	}
	defer syscall.Munmap(mem)

	out := make([]byte, n)
	copy(out, mem[delta:delta+n])
	return out, true
}
