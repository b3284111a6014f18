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

// Command sofind is a thin driver wiring the core packages together: load
// a cube, run the S+C finder, link the resulting mask, and report the
// object catalog. It is not part of the core itself — it exists so the
// provider contract (internal/params) and the core packages have a
// runnable end-to-end exerciser.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sofia-go/sofiacore/internal/compr"
	"github.com/sofia-go/sofiacore/internal/cube"
	"github.com/sofia-go/sofiacore/internal/finder"
	"github.com/sofia-go/sofiacore/internal/linker"
	"github.com/sofia-go/sofiacore/internal/noise"
	"github.com/sofia-go/sofiacore/internal/params"
)

var (
	dashv      bool
	dashParams string
	dashInput  string
	dashOutput string
)

func init() {
	flag.BoolVar(&dashv, "v", false, "verbose logging")
	flag.StringVar(&dashParams, "params", "", "path to the YAML parameter file (provider contract)")
	flag.StringVar(&dashInput, "i", "", "input cube path (overrides the parameter file's input)")
	flag.StringVar(&dashOutput, "o", "", "output mask cube path (overrides the parameter file's output)")
}

func exitf(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f, args...)
	if len(f) == 0 || f[len(f)-1] != '\n' {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(1)
}

func logf(f string, args ...any) {
	if !dashv {
		return
	}
	log.Printf(f, args...)
}

func run(cfg *params.Config) []linker.Object {
	data, err := cube.Load(cfg.Input, cfg.Region)
	if err != nil {
		exitf("loading %s: %s", cfg.Input, err)
	}
	logf("loaded %s: %dx%dx%d (%s)", cfg.Input, data.NX, data.NY, data.NZ, data.Kind)

	if len(cfg.FlagRegions) > 0 {
		if err := data.Flag(cfg.FlagRegions); err != nil {
			exitf("flagging %s: %s", cfg.Input, err)
		}
		logf("flagged %d region(s)", len(cfg.FlagRegions))
	}

	scaleNoise(cfg, data)

	f := finder.Finder{
		Method:     cfg.Statistic,
		Range:      cfg.FluxRange,
		Tau:        cfg.Threshold,
		Mu:         cfg.Replacement,
		ScratchDir: cfg.ScratchDir,
	}
	m, err := f.Run(data, cfg.SpatialKernels, cfg.SpectralKernels)
	if err != nil {
		exitf("running finder: %s", err)
	}

	objects, err := linker.Link(m, data, cfg.Link)
	if err != nil {
		exitf("linking: %s", err)
	}
	logf("found %d objects", len(objects))

	if cfg.Output != "" {
		if err := m.Save(cfg.Output, true); err != nil {
			exitf("saving mask to %s: %s", cfg.Output, err)
		}
	}
	return objects
}

// scaleNoise applies the configured noise-normalisation mode (spec §4.D)
// to data in place, ahead of the finder. A "local" mode backed by a cache
// path tries to replay a previously persisted coarse noise cube rather
// than re-estimating it; a cache miss or shape mismatch falls back to a
// fresh estimate, which is then (re-)persisted.
func scaleNoise(cfg *params.Config, data *cube.Cube) {
	if cfg.NoiseMode == "" {
		return
	}
	s := noise.Scaler{Method: cfg.NoiseStatistic, Range: cfg.NoiseFluxRange}

	switch cfg.NoiseMode {
	case "spectral":
		if err := s.Spectral(data); err != nil {
			exitf("scaling noise: %s", err)
		}
	case "local":
		gx, gy, gz := cfg.NoiseGrid[0], cfg.NoiseGrid[1], cfg.NoiseGrid[2]
		var coarse *cube.Cube
		if cfg.NoiseCachePath != "" {
			if cached, err := compr.LoadNoiseCube(cfg.NoiseCachePath); err == nil {
				coarse = cached
				logf("loaded cached noise cube from %s", cfg.NoiseCachePath)
			}
		}
		if coarse != nil {
			if err := s.Apply(data, coarse, gx, gy, gz); err != nil {
				logf("cached noise cube at %s unusable (%s), recomputing", cfg.NoiseCachePath, err)
				coarse = nil
			}
		}
		if coarse == nil {
			wx, wy, wz := cfg.NoiseWindow[0], cfg.NoiseWindow[1], cfg.NoiseWindow[2]
			nc, err := s.Local(data, gx, gy, gz, wx, wy, wz, true)
			if err != nil {
				exitf("scaling noise: %s", err)
			}
			if cfg.NoiseCachePath != "" {
				if err := compr.SaveNoiseCube(cfg.NoiseCachePath, nc, "zstd"); err != nil {
					logf("caching noise cube to %s: %s", cfg.NoiseCachePath, err)
				}
			}
		}
	}
	logf("applied %s noise scaling", cfg.NoiseMode)
}

func printCatalog(objects []linker.Object) {
	fmt.Printf("# label n_pix x_min x_max y_min y_max z_min z_max\n")
	for _, o := range objects {
		fmt.Printf("%d %d %d %d %d %d %d %d\n", o.Label, o.NPix, o.XMin, o.XMax, o.YMin, o.YMax, o.ZMin, o.ZMax)
	}
}

func main() {
	flag.Parse()
	if dashParams == "" {
		exitf("usage: %s -params <params.yaml> [-i input] [-o output]", os.Args[0])
	}

	cfg, err := params.Load(dashParams)
	if err != nil {
		exitf("%s", err)
	}
	if dashInput != "" {
		cfg.Input = dashInput
	}
	if dashOutput != "" {
		cfg.Output = dashOutput
	}
	if cfg.Input == "" {
		exitf("no input cube specified (set input: in the parameter file or pass -i)")
	}

	printCatalog(run(cfg))
}
