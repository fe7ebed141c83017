// Package peak implements the peak entity and its standard coordinate
// frame (spec §4.E): the detector-space ellipsoid a blob finder or
// predictor produced, linked to a frame stack and (once indexed) a unit
// cell, plus the raw-intensity/Lorentz bookkeeping the integrator and
// merger build on.
package peak

import (
	"fmt"
	"math"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/instrument"
	"github.com/hklreduce/hklreduce/internal/xerr"
	"github.com/hklreduce/hklreduce/internal/xtal"
)

// Peak is one observed or predicted reflection: its detector-space
// ellipsoid, the frame it was found on, optional links to the unit cell
// and Miller index once indexed, and the accumulated intensity/variance
// once integrated.
type Peak struct {
	Shape  geom.Ellipsoid
	Frame  float64 // fractional frame index f0
	Px, Py float64 // detector pixel of the ellipsoid centroid's 2-D projection

	Cell    *xtal.UnitCell
	HKL     geom.Vec3 // valid only if Indexed
	Indexed bool

	RawIntensity float64
	Variance     float64
	Transmission float64

	Selected bool
	Masked   bool
}

// Invariant 1 (spec §8): the shape's metric must be SPD (already enforced
// by geom.Ellipsoid's constructors) and, once a standard frame round-trips
// through it, the pushed-forward metric must be the identity to within
// 1e-8. NewPeak performs no checks of its own; the HKL assignment is
// checked against the linked cell's tolerance by Index.
func NewPeak(shape geom.Ellipsoid, frame, px, py float64) *Peak {
	return &Peak{Shape: shape, Frame: frame, Px: px, Py: py, Transmission: 1}
}

// Index assigns a unit cell and Miller index to the peak, checking the
// indexing tolerance invariant (spec invariant 1 / data model "Peak").
func (p *Peak) Index(cell *xtal.UnitCell, q geom.Vec3) error {
	hkl, ok := cell.IsIndexed(q)
	if !ok {
		return fmt.Errorf("%w: q does not index within cell tolerance", xerr.NotIndexed)
	}
	p.Cell = cell
	p.HKL = hkl
	p.Indexed = true
	return nil
}

// Lorentz returns the Lorentz factor 1/(sin|gamma| cos nu) for the ray
// direction kf, with (gamma, nu) its spherical angles measured from the
// beam axis (z) as defined in spec §4.E/glossary.
func Lorentz(kf geom.Vec3) (float64, error) {
	n := kf.Norm()
	if n == 0 {
		return 0, fmt.Errorf("%w: zero-length k_f", xerr.InvalidInput)
	}
	u := kf.Scale(1 / n)
	gamma := math.Atan2(u[0], u[2])
	nu := math.Asin(clamp(u[1], -1, 1))
	denom := math.Sin(math.Abs(gamma)) * math.Cos(nu)
	if math.Abs(denom) < 1e-12 {
		return 0, fmt.Errorf("%w: Lorentz factor singular near gamma=0 or nu=90deg", xerr.NumericalFailure)
	}
	return 1 / denom, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// KfAt returns the lab-frame kf ray (not unit-scaled) for the instrument
// state st through detector pixel (px, py), as used by both the standard
// frame construction and the Lorentz factor.
func KfAt(det instrument.Detector, st instrument.State, px, py float64) (geom.Vec3, error) {
	p, err := det.PixelPosition(px, py)
	if err != nil {
		return geom.Vec3{}, err
	}
	ki := st.Ki()
	return p.Normalized().Scale(ki.Norm()), nil
}
