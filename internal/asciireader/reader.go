// Package asciireader decodes the fixed-column ILL-style ASCII numor
// format into a xdata.DataSet (spec §6 "ASCII line format").
package asciireader

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/instrument"
	"github.com/hklreduce/hklreduce/internal/xdata"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

const countsPerFrame = 1024

// Header is the parsed numor line, text header block and metadata blocks
// preceding the frame data.
type Header struct {
	Numor      int
	FormatCode int

	Instrument   string
	User         string
	LocalContact string
	Date         string
	Time         string

	IntMetadata   []int // 30 values: 3 rows of 10
	FloatMetadata []float64

	Wavelength float64
	Omega      float64
	Gamma      float64
	Phi        float64
	Chi        float64

	NumAxes int // nbang, the goniometer axis count this numor declares
}

// Numor is the fully decoded file: header plus the frame stack.
type Numor struct {
	Header Header
	Frames []xdata.Frame
}

// Read decodes one ASCII numor file from r. axisCount is the number of
// goniometer axes the caller's instrument model expects to drive this
// numor; per the resolved design question on the legacy reader's lax
// handling of this field, a mismatch between the file's declared axis
// count (nbang) and axisCount is rejected as InvalidInput rather than
// silently accepted.
func Read(r io.Reader, rows, cols int, axisCount int) (*Numor, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() {
		return nil, fmt.Errorf("%w: empty ascii numor file", xerr.InvalidInput)
	}
	banner := sc.Text()
	if len(banner) < 1 || !strings.HasPrefix(banner, "R") {
		return nil, fmt.Errorf("%w: missing 80-column banner line", xerr.InvalidInput)
	}

	hdr, err := readHeader(sc)
	if err != nil {
		return nil, err
	}
	if hdr.NumAxes != axisCount {
		return nil, fmt.Errorf("%w: numor declares %d goniometer axes, instrument model expects %d",
			xerr.InvalidInput, hdr.NumAxes, axisCount)
	}

	npoints := 1
	if len(hdr.IntMetadata) > 5 {
		npoints = hdr.IntMetadata[5] // nkmes, the declared measurement (frame) count
	}
	if npoints <= 0 {
		npoints = 1
	}

	frames := make([]xdata.Frame, 0, npoints)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		counterFields := strings.Fields(line)
		if len(counterFields) < 6 {
			return nil, fmt.Errorf("%w: frame counter line has %d fields, want 6", xerr.InvalidInput, len(counterFields))
		}
		counts := make([]float64, 0, countsPerFrame)
		for len(counts) < countsPerFrame {
			if !sc.Scan() {
				return nil, fmt.Errorf("%w: frame %d truncated after %d/%d counts", xerr.InvalidInput, len(frames), len(counts), countsPerFrame)
			}
			for _, tok := range strings.Fields(sc.Text()) {
				v, err := strconv.Atoi(tok)
				if err != nil {
					return nil, fmt.Errorf("%w: non-integer count %q: %v", xerr.InvalidInput, tok, err)
				}
				counts = append(counts, float64(v))
			}
		}
		if len(counts) != countsPerFrame {
			return nil, fmt.Errorf("%w: frame %d has %d counts, want %d", xerr.InvalidInput, len(frames), len(counts), countsPerFrame)
		}
		if rows*cols != countsPerFrame {
			return nil, fmt.Errorf("%w: detector dims %dx%d do not match %d counts per frame", xerr.InvalidInput, rows, cols, countsPerFrame)
		}
		frames = append(frames, xdata.Frame{Rows: rows, Cols: cols, Counts: counts})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", xerr.IO, err)
	}

	return &Numor{Header: *hdr, Frames: frames}, nil
}

func readHeader(sc *bufio.Scanner) (*Header, error) {
	h := &Header{}

	if !sc.Scan() {
		return nil, fmt.Errorf("%w: missing numor line", xerr.InvalidInput)
	}
	fields := strings.Fields(sc.Text())
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: numor line needs numor + format code", xerr.InvalidInput)
	}
	numor, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad numor %q: %v", xerr.InvalidInput, fields[0], err)
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad format code %q: %v", xerr.InvalidInput, fields[1], err)
	}
	h.Numor, h.FormatCode = numor, code

	if !sc.Scan() {
		return nil, fmt.Errorf("%w: missing header block", xerr.InvalidInput)
	}
	hf := strings.Fields(sc.Text())
	h.Instrument = stringAt(hf, 0)
	h.User = stringAt(hf, 1)
	h.LocalContact = stringAt(hf, 2)
	h.Date = stringAt(hf, 3)
	h.Time = stringAt(hf, 4)

	ints := make([]int, 0, 30)
	for row := 0; row < 3; row++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("%w: integer-metadata block truncated at row %d", xerr.InvalidInput, row)
		}
		for _, tok := range strings.Fields(sc.Text()) {
			v, err := strconv.Atoi(tok)
			if err != nil {
				return nil, fmt.Errorf("%w: bad integer metadata %q: %v", xerr.InvalidInput, tok, err)
			}
			ints = append(ints, v)
		}
	}
	h.IntMetadata = ints
	if len(ints) >= 5 {
		h.NumAxes = ints[4] // nbang, the 5th field of the int-metadata block
	}

	if !sc.Scan() {
		return nil, fmt.Errorf("%w: missing float-metadata block", xerr.InvalidInput)
	}
	floats := make([]float64, 0, 5)
	for _, tok := range strings.Fields(sc.Text()) {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad float metadata %q: %v", xerr.InvalidInput, tok, err)
		}
		floats = append(floats, v)
	}
	if len(floats) < 5 {
		return nil, fmt.Errorf("%w: float-metadata block needs 5 values, got %d", xerr.InvalidInput, len(floats))
	}
	h.FloatMetadata = floats
	h.Wavelength, h.Omega, h.Gamma, h.Phi, h.Chi = floats[0], floats[1], floats[2], floats[3], floats[4]
	return h, nil
}

func stringAt(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// BuildStateSequence derives a single-axis rotation-scan instrument
// state sequence from a decoded numor's float metadata: the frame count
// comes from len(n.Frames), the scan step from stepSize (radians per
// frame), and the starting angle from the float-metadata block's omega
// field, so each State's Axis/StepSize pair matches what
// peak.StandardFrame expects.
func BuildStateSequence(n *Numor, axis geom.Vec3, stepSize, wavelength float64) instrument.StateSequence {
	beam := geom.Vec3{0, 0, 1}
	states := make(instrument.StateSequence, len(n.Frames))
	for i := range states {
		theta := n.Header.Omega + float64(i)*stepSize
		rot := instrument.QuaternionFromRotation(rotationMatrix(axis, theta))
		states[i] = instrument.State{
			SampleOrientation: rot,
			BeamDirection:     beam,
			Wavelength:        wavelength,
			Refined:           false,
			Axis:              axis,
			StepSize:          stepSize,
		}
	}
	return states
}

func rotationMatrix(axis geom.Vec3, theta float64) [9]float64 {
	n := axis.Normalized()
	c, s := math.Cos(theta), math.Sin(theta)
	t := 1 - c
	x, y, z := n[0], n[1], n[2]
	return [9]float64{
		t*x*x + c, t*x*y - s*z, t*x*z + s*y,
		t*x*y + s*z, t*y*y + c, t*y*z - s*x,
		t*x*z - s*y, t*y*z + s*x, t*z*z + c,
	}
}

// ToDataSet wraps a decoded numor's frames and a derived state sequence
// into the xdata.DataSet the rest of the pipeline consumes.
func ToDataSet(name string, n *Numor, det instrument.Detector, axis geom.Vec3, stepSize float64) *xdata.DataSet {
	states := BuildStateSequence(n, axis, stepSize, n.Header.Wavelength)
	return &xdata.DataSet{
		Name:     name,
		Detector: det,
		States:   states,
		Frames:   &xdata.MemoryFrameSource{Frames: n.Frames},
	}
}
