// Package instrumentdoc loads the instrument description document (spec
// §6 "Instrument description"): a hierarchical, human-authored YAML file
// naming the detector geometry, the sample and detector goniometer axis
// chains, and the source monochromator, with unit-suffixed scalars.
package instrumentdoc

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/instrument"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// AxisDoc is one goniometer axis entry.
type AxisDoc struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"` // "rotation" | "translation"
	Direction []float64 `yaml:"direction"`
	Clockwise bool   `yaml:"clockwise"`
	Physical  bool   `yaml:"physical"`
}

// DetectorDoc is the `detector` block.
type DetectorDoc struct {
	Type           string `yaml:"type"` // "flat" | "cylindrical"
	SampleDistance string `yaml:"sample_distance"`
	Width          string `yaml:"width"`
	AngularWidth   string `yaml:"angular_width"`
	Height         string `yaml:"height"`
	NRows          int    `yaml:"nrows"`
	NCols          int    `yaml:"ncols"`
	RowMin         int    `yaml:"row_min"`
	ColMin         int    `yaml:"col_min"`
	DataOrdering   string `yaml:"data_ordering"`
	Gain           float64 `yaml:"gain"`
	Baseline       float64 `yaml:"baseline"`
	Goniometer     []AxisDoc `yaml:"goniometer"`
}

// SampleDoc is the `sample` block.
type SampleDoc struct {
	Goniometer []AxisDoc `yaml:"goniometer"`
}

// MonochromatorDoc is the `source.monochromator` block.
type MonochromatorDoc struct {
	Width      string `yaml:"width"`
	Height     string `yaml:"height"`
	Wavelength string `yaml:"wavelength"`
	FWHM       string `yaml:"fwhm"`
}

// SourceDoc is the `source` block.
type SourceDoc struct {
	Monochromator MonochromatorDoc `yaml:"monochromator"`
}

// Document is the top-level instrument description.
type Document struct {
	Name     string      `yaml:"name"`
	Detector DetectorDoc `yaml:"detector"`
	Sample   SampleDoc   `yaml:"sample"`
	Source   SourceDoc   `yaml:"source"`
}

// Parse decodes raw YAML bytes into a Document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: instrument description: %v", xerr.InvalidInput, err)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("%w: instrument description missing top-level name", xerr.InvalidInput)
	}
	return &doc, nil
}

// Monochromator is the resolved (unit-converted) source description.
type Monochromator struct {
	Width, Height, Wavelength, FWHM float64
}

// Build resolves a parsed Document into the instrument.Detector,
// goniometer axis chains and monochromator the rest of the pipeline
// consumes, converting every unit-suffixed scalar along the way.
func Build(doc *Document) (instrument.Detector, instrument.Goniometer, instrument.Goniometer, Monochromator, error) {
	var det instrument.Detector
	var sampleGonio, detGonio instrument.Goniometer
	var mono Monochromator

	kind, err := parseDetectorKind(doc.Detector.Type)
	if err != nil {
		return det, sampleGonio, detGonio, mono, err
	}
	det.Kind = kind
	det.NRows, det.NCols = doc.Detector.NRows, doc.Detector.NCols
	det.RowMin, det.ColMin = doc.Detector.RowMin, doc.Detector.ColMin
	det.Gain, det.Baseline = doc.Detector.Gain, doc.Detector.Baseline

	sd, err := parseLength(doc.Detector.SampleDistance)
	if err != nil {
		return det, sampleGonio, detGonio, mono, fmt.Errorf("detector.sample_distance: %w", err)
	}
	det.SampleDistance = sd

	switch kind {
	case instrument.Flat:
		w, err := parseLength(doc.Detector.Width)
		if err != nil {
			return det, sampleGonio, detGonio, mono, fmt.Errorf("detector.width: %w", err)
		}
		det.Width = w
	case instrument.Cylindrical:
		w, err := parseAngle(doc.Detector.AngularWidth)
		if err != nil {
			return det, sampleGonio, detGonio, mono, fmt.Errorf("detector.angular_width: %w", err)
		}
		det.Width = w
	}
	h, err := parseLength(doc.Detector.Height)
	if err != nil {
		return det, sampleGonio, detGonio, mono, fmt.Errorf("detector.height: %w", err)
	}
	det.Height = h

	ordering, err := parseDataOrdering(doc.Detector.DataOrdering)
	if err != nil {
		return det, sampleGonio, detGonio, mono, err
	}
	det.Ordering = ordering

	detGonio, err = buildGoniometer(doc.Detector.Goniometer)
	if err != nil {
		return det, sampleGonio, detGonio, mono, fmt.Errorf("detector.goniometer: %w", err)
	}
	sampleGonio, err = buildGoniometer(doc.Sample.Goniometer)
	if err != nil {
		return det, sampleGonio, detGonio, mono, fmt.Errorf("sample.goniometer: %w", err)
	}

	mono.Width, err = parseLength(doc.Source.Monochromator.Width)
	if err != nil {
		return det, sampleGonio, detGonio, mono, fmt.Errorf("source.monochromator.width: %w", err)
	}
	mono.Height, err = parseLength(doc.Source.Monochromator.Height)
	if err != nil {
		return det, sampleGonio, detGonio, mono, fmt.Errorf("source.monochromator.height: %w", err)
	}
	mono.Wavelength, err = parseLength(doc.Source.Monochromator.Wavelength)
	if err != nil {
		return det, sampleGonio, detGonio, mono, fmt.Errorf("source.monochromator.wavelength: %w", err)
	}
	mono.FWHM, err = parseLength(doc.Source.Monochromator.FWHM)
	if err != nil {
		return det, sampleGonio, detGonio, mono, fmt.Errorf("source.monochromator.fwhm: %w", err)
	}

	return det, sampleGonio, detGonio, mono, nil
}

func parseDetectorKind(s string) (instrument.DetectorKind, error) {
	switch s {
	case "flat":
		return instrument.Flat, nil
	case "cylindrical":
		return instrument.Cylindrical, nil
	default:
		return 0, fmt.Errorf("%w: unknown detector.type %q", xerr.InvalidInput, s)
	}
}

func parseDataOrdering(s string) (instrument.DataOrdering, error) {
	orderings := map[string]instrument.DataOrdering{
		"TopLeftColMajor":     instrument.TopLeftColMajor,
		"TopLeftRowMajor":     instrument.TopLeftRowMajor,
		"TopRightColMajor":    instrument.TopRightColMajor,
		"TopRightRowMajor":    instrument.TopRightRowMajor,
		"BottomLeftColMajor":  instrument.BottomLeftColMajor,
		"BottomLeftRowMajor":  instrument.BottomLeftRowMajor,
		"BottomRightColMajor": instrument.BottomRightColMajor,
		"BottomRightRowMajor": instrument.BottomRightRowMajor,
	}
	o, ok := orderings[s]
	if !ok {
		return 0, fmt.Errorf("%w: unknown detector.data_ordering %q", xerr.InvalidInput, s)
	}
	return o, nil
}

func buildGoniometer(axes []AxisDoc) (instrument.Goniometer, error) {
	var g instrument.Goniometer
	for _, a := range axes {
		if len(a.Direction) != 3 {
			return g, fmt.Errorf("%w: axis %q needs a 3-element direction, got %d", xerr.InvalidInput, a.Name, len(a.Direction))
		}
		var kind instrument.AxisKind
		switch a.Type {
		case "rotation":
			kind = instrument.Rotational
		case "translation":
			kind = instrument.Translational
		default:
			return g, fmt.Errorf("%w: axis %q has unknown type %q", xerr.InvalidInput, a.Name, a.Type)
		}
		g.Axes = append(g.Axes, instrument.Axis{
			Name:      a.Name,
			Kind:      kind,
			Direction: geom.Vec3{a.Direction[0], a.Direction[1], a.Direction[2]},
			Clockwise: a.Clockwise,
		})
	}
	return g, nil
}
