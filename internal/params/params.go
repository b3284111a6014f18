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

// Package params is a reference implementation of the provider contract
// (spec §6): a typed-parameter map, here backed by a YAML file, supplying
// everything the core needs to run a load -> noise-scale -> find -> link
// pipeline. It is not itself part of the core; cmd/sofind depends on it so
// the contract is exercised end-to-end, but any other provider shaped the
// same way (flags, a different file format, a hard-coded struct in a
// test) works just as well against the core packages.
package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/sofia-go/sofiacore/internal/cube"
	"github.com/sofia-go/sofiacore/internal/linker"
	"github.com/sofia-go/sofiacore/internal/stats"
)

// Raw is the on-disk shape of the parameter file: every field is a string
// (or comma-separated list of strings) as the provider contract specifies,
// so validation and "unrecognised value is fatal" (spec §7) happen in one
// place, Validate, rather than being spread across a typed-decode step.
type Raw struct {
	Input             string `yaml:"input"`
	Output            string `yaml:"output"`
	Statistic         string `yaml:"statistic"`
	FluxRange         string `yaml:"fluxRange"`
	SpatialKernels    string `yaml:"spatialKernels"`
	SpectralKernels   string `yaml:"spectralKernels"`
	Threshold         string `yaml:"threshold"`
	ReplacementFactor string `yaml:"replacementFactor"`
	LinkRadiusX       string `yaml:"linkRadiusX"`
	LinkRadiusY       string `yaml:"linkRadiusY"`
	LinkRadiusZ       string `yaml:"linkRadiusZ"`
	MinSizeX          string `yaml:"minSizeX"`
	MinSizeY          string `yaml:"minSizeY"`
	MinSizeZ          string `yaml:"minSizeZ"`
	RemoveNegative    string `yaml:"removeNegative"`
	Region            string `yaml:"region"`

	// FlagRegions lists rectangular regions, separated by ";", each shaped
	// like the region field ("x_min:x_max,y_min:y_max,z_min:z_max"), to be
	// set to NaN ahead of noise scaling (§5.A's flagging overlay).
	FlagRegions string `yaml:"flagRegions"`

	// Noise scaling (spec §4.D), applied between flagging and the finder.
	// NoiseMode selects "" / "none" (skip), "spectral", or "local".
	NoiseMode      string `yaml:"noiseMode"`
	NoiseStatistic string `yaml:"noiseStatistic"`
	NoiseFluxRange string `yaml:"noiseFluxRange"`
	NoiseGridX     string `yaml:"noiseGridX"`
	NoiseGridY     string `yaml:"noiseGridY"`
	NoiseGridZ     string `yaml:"noiseGridZ"`
	NoiseWindowX   string `yaml:"noiseWindowX"`
	NoiseWindowY   string `yaml:"noiseWindowY"`
	NoiseWindowZ   string `yaml:"noiseWindowZ"`
	NoiseCachePath string `yaml:"noiseCachePath"`

	// ScratchDir, if set, forces the finder to spill its scratch cube to
	// disk per scale instead of keeping it resident.
	ScratchDir string `yaml:"scratchDir"`
}

// Config is the validated, typed form of Raw: what the core actually
// consumes.
type Config struct {
	Input, Output   string
	Statistic       stats.Method
	FluxRange       stats.FluxRange
	SpatialKernels  []float64
	SpectralKernels []float64
	Threshold       float64
	Replacement     float64
	Link            linker.Params
	Region          *cube.Region
	FlagRegions     []cube.Region

	// NoiseMode is "" (skip noise scaling), "spectral", or "local".
	NoiseMode      string
	NoiseStatistic stats.Method
	NoiseFluxRange stats.FluxRange
	NoiseGrid      [3]int // gx, gy, gz; only meaningful for "local"
	NoiseWindow    [3]int // wx, wy, wz; only meaningful for "local"
	NoiseCachePath string

	ScratchDir string
}

// Load reads and validates a parameter file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("params: open %s: %w", path, err)
	}
	defer f.Close()

	var raw Raw
	if err := yaml.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("params: %s: %w", path, err)
	}
	return raw.Validate()
}

// Validate converts a Raw parameter map into a Config, rejecting any
// unrecognised token per spec §6 ("The core treats unrecognised values as
// fatal").
func (r Raw) Validate() (*Config, error) {
	c := &Config{Input: r.Input, Output: r.Output}

	method, ok := stats.ParseMethod(r.Statistic)
	if !ok {
		return nil, fmt.Errorf("params: unrecognised statistic %q", r.Statistic)
	}
	c.Statistic = method

	rng, ok := stats.ParseFluxRange(r.FluxRange)
	if !ok {
		return nil, fmt.Errorf("params: unrecognised fluxRange %q", r.FluxRange)
	}
	c.FluxRange = rng

	var err error
	if c.SpatialKernels, err = parseFloatList(r.SpatialKernels); err != nil {
		return nil, fmt.Errorf("params: spatialKernels: %w", err)
	}
	if c.SpectralKernels, err = parseFloatList(r.SpectralKernels); err != nil {
		return nil, fmt.Errorf("params: spectralKernels: %w", err)
	}
	if c.Threshold, err = parseFloat(r.Threshold, "threshold"); err != nil {
		return nil, err
	}
	if c.Replacement, err = parseFloat(r.ReplacementFactor, "replacementFactor"); err != nil {
		return nil, err
	}

	if c.Link.RX, err = parseInt(r.LinkRadiusX, "linkRadiusX"); err != nil {
		return nil, err
	}
	if c.Link.RY, err = parseInt(r.LinkRadiusY, "linkRadiusY"); err != nil {
		return nil, err
	}
	if c.Link.RZ, err = parseInt(r.LinkRadiusZ, "linkRadiusZ"); err != nil {
		return nil, err
	}
	if c.Link.MinX, err = parseInt(r.MinSizeX, "minSizeX"); err != nil {
		return nil, err
	}
	if c.Link.MinY, err = parseInt(r.MinSizeY, "minSizeY"); err != nil {
		return nil, err
	}
	if c.Link.MinZ, err = parseInt(r.MinSizeZ, "minSizeZ"); err != nil {
		return nil, err
	}
	if r.RemoveNegative != "" {
		b, err := strconv.ParseBool(r.RemoveNegative)
		if err != nil {
			return nil, fmt.Errorf("params: removeNegative: %w", err)
		}
		c.Link.RemoveNegative = b
	}

	if r.Region != "" {
		reg, err := parseRegion(r.Region)
		if err != nil {
			return nil, fmt.Errorf("params: region: %w", err)
		}
		c.Region = &reg
	}

	if c.FlagRegions, err = parseRegionList(r.FlagRegions); err != nil {
		return nil, fmt.Errorf("params: flagRegions: %w", err)
	}

	if err := c.validateNoise(r); err != nil {
		return nil, err
	}

	c.ScratchDir = r.ScratchDir

	return c, nil
}

// validateNoise resolves the noise-scaling mode (spec §4.D) into c. An
// empty or "none" mode disables noise scaling entirely; any other value
// that isn't "spectral" or "local" is fatal, matching spec §7's
// unrecognised-value taxonomy.
func (c *Config) validateNoise(r Raw) error {
	switch r.NoiseMode {
	case "", "none":
		return nil
	case "spectral", "local":
		c.NoiseMode = r.NoiseMode
	default:
		return fmt.Errorf("params: unrecognised noiseMode %q", r.NoiseMode)
	}

	method, ok := stats.ParseMethod(r.NoiseStatistic)
	if !ok {
		return fmt.Errorf("params: unrecognised noiseStatistic %q", r.NoiseStatistic)
	}
	c.NoiseStatistic = method

	rng, ok := stats.ParseFluxRange(r.NoiseFluxRange)
	if !ok {
		return fmt.Errorf("params: unrecognised noiseFluxRange %q", r.NoiseFluxRange)
	}
	c.NoiseFluxRange = rng

	if r.NoiseMode != "local" {
		return nil
	}

	var err error
	if c.NoiseGrid[0], err = parseInt(r.NoiseGridX, "noiseGridX"); err != nil {
		return err
	}
	if c.NoiseGrid[1], err = parseInt(r.NoiseGridY, "noiseGridY"); err != nil {
		return err
	}
	if c.NoiseGrid[2], err = parseInt(r.NoiseGridZ, "noiseGridZ"); err != nil {
		return err
	}
	if c.NoiseWindow[0], err = parseInt(r.NoiseWindowX, "noiseWindowX"); err != nil {
		return err
	}
	if c.NoiseWindow[1], err = parseInt(r.NoiseWindowY, "noiseWindowY"); err != nil {
		return err
	}
	if c.NoiseWindow[2], err = parseInt(r.NoiseWindowZ, "noiseWindowZ"); err != nil {
		return err
	}
	c.NoiseCachePath = r.NoiseCachePath
	return nil
}

func parseFloat(s, field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("params: %s: %w", field, err)
	}
	return v, nil
}

func parseInt(s, field string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("params: %s: %w", field, err)
	}
	return v, nil
}

func parseFloatList(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseRegionList parses a ";"-separated list of region strings, each
// shaped like parseRegion's input.
func parseRegionList(s string) ([]cube.Region, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	out := make([]cube.Region, 0, len(parts))
	for _, p := range parts {
		r, err := parseRegion(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// parseRegion parses a "x_min:x_max,y_min:y_max,z_min:z_max" sub-region
// string (spec §6's "sub-region string").
func parseRegion(s string) (cube.Region, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return cube.Region{}, fmt.Errorf("expected 3 comma-separated axis ranges, got %q", s)
	}
	var r cube.Region
	axisBounds := []*struct{ lo, hi *int }{
		{&r.XMin, &r.XMax},
		{&r.YMin, &r.YMax},
		{&r.ZMin, &r.ZMax},
	}
	for i, f := range fields {
		lohi := strings.SplitN(f, ":", 2)
		if len(lohi) != 2 {
			return cube.Region{}, fmt.Errorf("axis %d: expected lo:hi, got %q", i, f)
		}
		lo, err := strconv.Atoi(strings.TrimSpace(lohi[0]))
		if err != nil {
			return cube.Region{}, fmt.Errorf("axis %d: %w", i, err)
		}
		hi, err := strconv.Atoi(strings.TrimSpace(lohi[1]))
		if err != nil {
			return cube.Region{}, fmt.Errorf("axis %d: %w", i, err)
		}
		*axisBounds[i].lo = lo
		*axisBounds[i].hi = hi
	}
	return r, nil
}
