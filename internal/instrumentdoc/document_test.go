package instrumentdoc

import (
	"math"
	"testing"

	"github.com/hklreduce/hklreduce/internal/instrument"
)

const sampleYAML = `
name: D19
detector:
  type: flat
  sample_distance: 764mm
  width: 320mm
  height: 380mm
  nrows: 32
  ncols: 32
  row_min: 0
  col_min: 0
  data_ordering: TopLeftRowMajor
  gain: 1.0
  baseline: 0.0
  goniometer:
    - name: gamma
      type: rotation
      direction: [0, 1, 0]
      clockwise: false
      physical: true
sample:
  goniometer:
    - name: omega
      type: rotation
      direction: [0, 1, 0]
      clockwise: false
      physical: true
    - name: chi
      type: rotation
      direction: [1, 0, 0]
      clockwise: false
      physical: true
source:
  monochromator:
    width: 20mm
    height: 20mm
    wavelength: 1.46ang
    fwhm: 0.01ang
`

func TestParseAndBuild(t *testing.T) {
	doc, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	det, sampleGonio, detGonio, mono, err := Build(doc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if det.Kind != instrument.Flat {
		t.Fatalf("expected Flat detector")
	}
	if math.Abs(det.SampleDistance-764) > 1e-9 {
		t.Fatalf("SampleDistance = %v, want 764mm", det.SampleDistance)
	}
	if len(detGonio.Axes) != 1 {
		t.Fatalf("expected 1 detector axis, got %d", len(detGonio.Axes))
	}
	if len(sampleGonio.Axes) != 2 {
		t.Fatalf("expected 2 sample axes, got %d", len(sampleGonio.Axes))
	}
	wantWavelength := 1.46 * 1e-7
	if math.Abs(mono.Wavelength-wantWavelength) > 1e-12 {
		t.Fatalf("Wavelength = %v, want %v", mono.Wavelength, wantWavelength)
	}
}

func TestParseRejectsMissingName(t *testing.T) {
	_, err := Parse([]byte("detector:\n  type: flat\n"))
	if err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestParseLengthUnits(t *testing.T) {
	cases := map[string]float64{
		"1m":   1000,
		"1cm":  10,
		"1mm":  1,
		"1um":  1e-3,
		"1ang": 1e-7,
	}
	for in, want := range cases {
		got, err := parseLength(in)
		if err != nil {
			t.Fatalf("parseLength(%q): %v", in, err)
		}
		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("parseLength(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseAngleUnits(t *testing.T) {
	got, err := parseAngle("180deg")
	if err != nil {
		t.Fatalf("parseAngle: %v", err)
	}
	if math.Abs(got-math.Pi) > 1e-9 {
		t.Fatalf("parseAngle(180deg) = %v, want pi", got)
	}
}
