// Package instrument models the diffractometer: detector geometry (flat
// or cylindrical), the goniometer axis chain, and per-frame instrument
// state with SLERP-based interpolation between discrete frames.
package instrument

import (
	"fmt"
	"math"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// DataOrdering is one of the eight pixel-storage conventions a raw
// reader's row-major/column-major, origin-corner layout may use.
type DataOrdering int

const (
	TopLeftColMajor DataOrdering = iota
	TopLeftRowMajor
	TopRightColMajor
	TopRightRowMajor
	BottomLeftColMajor
	BottomLeftRowMajor
	BottomRightColMajor
	BottomRightRowMajor
)

// DetectorKind distinguishes the two detector geometries this reducer
// supports. Detector is a closed sum type over this tag rather than an
// interface hierarchy, per the spec's "trivial sum type" design note.
type DetectorKind int

const (
	Flat DetectorKind = iota
	Cylindrical
)

// Detector is the polymorphic-over-{flat,cylindrical} detector model.
// For a Flat detector, Width/Height are physical dimensions (lab length
// units). For a Cylindrical detector, Width holds the angular width
// (radians) and Height the linear height.
type Detector struct {
	Kind DetectorKind

	NRows, NCols     int
	Width, Height    float64
	SampleDistance   float64
	Gain, Baseline   float64
	Ordering         DataOrdering
	RowMin, ColMin   int
}

// PixelPosition returns the lab-frame 3-vector for pixel (px, py),
// measured from the sample position along the beam axis (z) at
// SampleDistance.
func (d Detector) PixelPosition(px, py float64) (geom.Vec3, error) {
	if px < 0 || py < 0 || px > float64(d.NCols) || py > float64(d.NRows) {
		return geom.Vec3{}, fmt.Errorf("%w: pixel (%v,%v) outside detector", xerr.OutOfRange, px, py)
	}
	switch d.Kind {
	case Flat:
		x := (px/float64(d.NCols) - 0.5) * d.Width
		y := (py/float64(d.NRows) - 0.5) * d.Height
		return geom.Vec3{x, y, d.SampleDistance}, nil
	case Cylindrical:
		theta := (px/float64(d.NCols) - 0.5) * d.Width
		y := (py/float64(d.NRows) - 0.5) * d.Height
		return geom.Vec3{
			d.SampleDistance * math.Sin(theta),
			y,
			d.SampleDistance * math.Cos(theta),
		}, nil
	default:
		return geom.Vec3{}, fmt.Errorf("%w: unknown detector kind", xerr.InvalidInput)
	}
}

// PixelFromDirection inverts PixelPosition: given a lab-frame direction
// (not necessarily unit or scaled to SampleDistance) from the sample
// toward the detector, returns the pixel it strikes. Used by the refiner
// to back-project a predicted q-vector's k_f onto detector coordinates
// (spec §4.G residual model).
func (d Detector) PixelFromDirection(dir geom.Vec3) (px, py float64, err error) {
	switch d.Kind {
	case Flat:
		if dir[2] <= 0 {
			return 0, 0, fmt.Errorf("%w: direction does not cross flat detector plane", xerr.OutOfRange)
		}
		t := d.SampleDistance / dir[2]
		x, y := dir[0]*t, dir[1]*t
		px = (x/d.Width + 0.5) * float64(d.NCols)
		py = (y/d.Height + 0.5) * float64(d.NRows)
		return px, py, nil
	case Cylindrical:
		r := math.Hypot(dir[0], dir[2])
		if r == 0 {
			return 0, 0, fmt.Errorf("%w: direction has no transverse component", xerr.OutOfRange)
		}
		t := d.SampleDistance / r
		y := dir[1] * t
		theta := math.Atan2(dir[0], dir[2])
		px = (theta/d.Width + 0.5) * float64(d.NCols)
		py = (y/d.Height + 0.5) * float64(d.NRows)
		return px, py, nil
	default:
		return 0, 0, fmt.Errorf("%w: unknown detector kind", xerr.InvalidInput)
	}
}

// PixelJacobian returns J = d(x,y,z)/d(px,py), the 3x2 Jacobian of
// PixelPosition, evaluated analytically (spec invariant 3).
func (d Detector) PixelJacobian(px, py float64) [3][2]float64 {
	switch d.Kind {
	case Flat:
		dxdpx := d.Width / float64(d.NCols)
		dydpy := d.Height / float64(d.NRows)
		return [3][2]float64{
			{dxdpx, 0},
			{0, dydpy},
			{0, 0},
		}
	case Cylindrical:
		theta := (px/float64(d.NCols) - 0.5) * d.Width
		dthetadpx := d.Width / float64(d.NCols)
		dydpy := d.Height / float64(d.NRows)
		return [3][2]float64{
			{d.SampleDistance * math.Cos(theta) * dthetadpx, 0},
			{0, dydpy},
			{-d.SampleDistance * math.Sin(theta) * dthetadpx, 0},
		}
	default:
		return [3][2]float64{}
	}
}
