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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sofia-go/sofiacore/internal/cube"
)

func TestSaveLoadNoiseCubeRoundTrip(t *testing.T) {
	for _, algo := range []string{"s2", "zstd"} {
		t.Run(algo, func(t *testing.T) {
			c := cube.New(cube.KindF64, 3, 4, 5)
			view := c.Float64()
			for i := range view {
				view[i] = float64(i) * 0.25
			}
			path := filepath.Join(t.TempDir(), "noise.cache")
			require.NoError(t, SaveNoiseCube(path, c, algo))

			got, err := LoadNoiseCube(path)
			require.NoError(t, err)
			require.Equal(t, c.NX, got.NX)
			require.Equal(t, c.NY, got.NY)
			require.Equal(t, c.NZ, got.NZ)
			require.Equal(t, c.Kind, got.Kind)
			require.Equal(t, c.Data, got.Data)
		})
	}
}

func TestUnknownAlgorithmRejected(t *testing.T) {
	c := cube.New(cube.KindF64, 2, 2, 2)
	path := filepath.Join(t.TempDir(), "noise.cache")
	require.Error(t, SaveNoiseCube(path, c, "bogus"))
}
