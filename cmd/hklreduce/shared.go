package main

import (
	"fmt"
	"os"

	"github.com/hklreduce/hklreduce/internal/asciireader"
	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/instrument"
	"github.com/hklreduce/hklreduce/internal/instrumentdoc"
	"github.com/hklreduce/hklreduce/internal/store"
	"github.com/hklreduce/hklreduce/internal/xdata"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// instrumentSetup is the resolved instrument description every
// subcommand needs to turn pixel/frame coordinates into reciprocal
// space (spec §6 "Instrument description").
type instrumentSetup struct {
	Name        string
	Detector    instrument.Detector
	SampleGonio instrument.Goniometer
	DetGonio    instrument.Goniometer
	Mono        instrumentdoc.Monochromator
}

// loadInstrument parses and resolves the YAML instrument description at
// path.
func loadInstrument(path string) (*instrumentSetup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read instrument description %s: %v", xerr.IO, path, err)
	}
	doc, err := instrumentdoc.Parse(data)
	if err != nil {
		return nil, err
	}
	det, sampleGonio, detGonio, mono, err := instrumentdoc.Build(doc)
	if err != nil {
		return nil, err
	}
	return &instrumentSetup{Name: doc.Name, Detector: det, SampleGonio: sampleGonio, DetGonio: detGonio, Mono: mono}, nil
}

// scanAxis returns the goniometer axis driving the rotation scan this
// numor records. asciireader.BuildStateSequence only models a single
// scan axis, while an instrument description may declare a full axis
// chain; axisIndex (default 0, the innermost/scan axis in most
// single-axis diffractometer setups) selects which entry in the sample
// goniometer's chain plays that role. This is a deliberate simplification
// documented in DESIGN.md, not a silent truncation: a numor whose scan
// genuinely spans more than one active axis is out of scope.
func scanAxis(setup *instrumentSetup, axisIndex int) (geom.Vec3, error) {
	if axisIndex < 0 || axisIndex >= len(setup.SampleGonio.Axes) {
		return geom.Vec3{}, fmt.Errorf("%w: axis index %d outside sample goniometer's %d axes",
			xerr.InvalidInput, axisIndex, len(setup.SampleGonio.Axes))
	}
	return setup.SampleGonio.Axes[axisIndex].Direction, nil
}

// loadDataSet decodes the ASCII numor at numorPath and wraps it, plus the
// resolved instrument, into the xdata.DataSet the pipeline's geometric
// stages consume.
func loadDataSet(numorPath string, setup *instrumentSetup, axisIndex int, stepSize float64) (*asciireader.Numor, *xdata.DataSet, error) {
	f, err := os.Open(numorPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open numor %s: %v", xerr.IO, numorPath, err)
	}
	defer f.Close()

	n, err := asciireader.Read(f, setup.Detector.NRows, setup.Detector.NCols, len(setup.SampleGonio.Axes))
	if err != nil {
		return nil, nil, err
	}
	axis, err := scanAxis(setup, axisIndex)
	if err != nil {
		return nil, nil, err
	}
	data := asciireader.ToDataSet(setup.Name, n, setup.Detector, axis, stepSize)
	return n, data, nil
}

// openStore opens (creating/migrating if necessary) the shared SQLite
// store at path (spec §6 "Persisted state").
func openStore(path string) (*store.Store, error) {
	return store.Open(path)
}

// frameCounts extracts every frame's raw counts as [][]float64, the
// shape blobfind.Find expects.
func frameCounts(n *asciireader.Numor) [][]float64 {
	out := make([][]float64, len(n.Frames))
	for i, f := range n.Frames {
		out[i] = f.Counts
	}
	return out
}
