package peak

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/instrument"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// StandardFrame is the peak-local coordinate system built at one detector
// position p0 = (px0, py0, f0), per spec §4.E. ε1, ε2 measure angular
// offset (degrees) from kf0 along the two basis directions orthogonal to
// kf0: E1 = kf0×ki0 (normal to the scattering plane) and E2 = kf0×E1 (in
// the scattering plane); ε3 measures rotation-angle offset (degrees) along
// the scan axis.
type StandardFrame struct {
	Detector instrument.Detector
	Px0, Py0 float64
	F0       float64

	Ki0, Kf0 geom.Vec3
	E1, E2   geom.Vec3
	Zeta     float64
}

// NewStandardFrame builds the standard frame at p0, given the interpolated
// instrument state at f0 and the goniometer axis/stepSize active there.
func NewStandardFrame(det instrument.Detector, state0 instrument.State, px0, py0, f0 float64) (*StandardFrame, error) {
	ki0 := state0.Ki()
	kf0, err := KfAt(det, state0, px0, py0)
	if err != nil {
		return nil, err
	}
	e1raw := kf0.Cross(ki0)
	if e1raw.Norm() == 0 {
		return nil, fmt.Errorf("%w: k_f parallel to k_i, standard frame undefined", xerr.NumericalFailure)
	}
	e1 := e1raw.Normalized()
	e2raw := kf0.Cross(e1)
	if e2raw.Norm() == 0 {
		return nil, fmt.Errorf("%w: degenerate standard frame basis", xerr.NumericalFailure)
	}
	e2 := e2raw.Normalized()
	zeta := e1.Dot(state0.Axis) * state0.StepSize * 180 / math.Pi

	return &StandardFrame{
		Detector: det,
		Px0:      px0,
		Py0:      py0,
		F0:       f0,
		Ki0:      ki0,
		Kf0:      kf0,
		E1:       e1,
		E2:       e2,
		Zeta:     zeta,
	}, nil
}

// kfAtPixel is k_f for an arbitrary event pixel, scaled to the *fixed*
// |k_i0| per spec §4.E ("scaled to ‖k_i‖"), not the event's own frame.
func (sf *StandardFrame) kfAtPixel(px, py float64) (geom.Vec3, error) {
	p, err := sf.Detector.PixelPosition(px, py)
	if err != nil {
		return geom.Vec3{}, err
	}
	return p.Normalized().Scale(sf.Ki0.Norm()), nil
}

// Transform maps a detector event (px, py, f) to standard-frame
// coordinates (ε1, ε2, ε3).
func (sf *StandardFrame) Transform(px, py, f float64) (geom.Vec3, error) {
	kf, err := sf.kfAtPixel(px, py)
	if err != nil {
		return geom.Vec3{}, err
	}
	d := kf.Sub(sf.Kf0)
	scale := 180 / math.Pi / sf.Kf0.Norm()
	eps1 := d.Dot(sf.E1) * scale
	eps2 := d.Dot(sf.E2) * scale
	eps3 := sf.Zeta * (f - sf.F0)
	return geom.Vec3{eps1, eps2, eps3}, nil
}

// Jacobian returns the analytic 3x3 Jacobian of Transform at p0 (spec
// invariant 3): rows (ε1, ε2) depend only on (px, py) through the
// detector's pixel Jacobian and the derivative of vector normalization;
// row ε3 depends only on f, with constant slope ζ.
func (sf *StandardFrame) Jacobian() *mat.Dense {
	p, _ := sf.Detector.PixelPosition(sf.Px0, sf.Py0)
	pj := sf.Detector.PixelJacobian(sf.Px0, sf.Py0)

	n := p.Norm()
	unit := p.Scale(1 / n)
	// d(kf)/dp = (|ki0|/n) * (I - unit*unit^T)
	proj := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := -unit[i] * unit[j]
			if i == j {
				v += 1
			}
			proj.Set(i, j, v*sf.Ki0.Norm()/n)
		}
	}

	// d(kf)/d(px,py) = proj * dp/d(px,py)  (3x2)
	dp := mat.NewDense(3, 2, []float64{
		pj[0][0], pj[0][1],
		pj[1][0], pj[1][1],
		pj[2][0], pj[2][1],
	})
	var dkf mat.Dense
	dkf.Mul(proj, dp)

	scale := 180 / math.Pi / sf.Kf0.Norm()
	e1v := mat.NewVecDense(3, []float64{sf.E1[0], sf.E1[1], sf.E1[2]})
	e2v := mat.NewVecDense(3, []float64{sf.E2[0], sf.E2[1], sf.E2[2]})

	var row1, row2 mat.Dense
	row1.Mul(e1v.T(), &dkf)
	row2.Mul(e2v.T(), &dkf)

	j := mat.NewDense(3, 3, nil)
	j.Set(0, 0, row1.At(0, 0)*scale)
	j.Set(0, 1, row1.At(0, 1)*scale)
	j.Set(1, 0, row2.At(0, 0)*scale)
	j.Set(1, 1, row2.At(0, 1)*scale)
	j.Set(2, 2, sf.Zeta)
	return j
}


// InverseShape builds the detector-space ellipsoid, centred at p0, with
// metric JᵀΛJ for Λ = diag(1/σD², 1/σD², 1/σM²), per spec §4.E's inverse
// map from beam divergence/mosaicity to a detector-space peak shape.
func (sf *StandardFrame) InverseShape(sigmaD, sigmaM float64) (geom.Ellipsoid, error) {
	if sigmaD <= 0 || sigmaM <= 0 {
		return geom.Ellipsoid{}, fmt.Errorf("%w: non-positive sigma", xerr.InvalidInput)
	}
	j := sf.Jacobian()
	lambda := mat.NewDense(3, 3, []float64{
		1 / (sigmaD * sigmaD), 0, 0,
		0, 1 / (sigmaD * sigmaD), 0,
		0, 0, 1 / (sigmaM * sigmaM),
	})
	var tmp, m mat.Dense
	tmp.Mul(j.T(), lambda)
	m.Mul(&tmp, j)
	centre := geom.Vec3{sf.Px0, sf.Py0, sf.F0}
	var arr [9]float64
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			arr[i*3+k] = m.At(i, k)
		}
	}
	return geom.NewEllipsoid(centre, arr)
}

// PushForward maps a detector-space metric M to the standard frame via
// M' = J^-T M J^-1, the "push-forward of its detector-space metric
// through J" that yields the peak's standard shape (spec §4.E).
func (sf *StandardFrame) PushForward(m *mat.SymDense) (*mat.SymDense, error) {
	j := sf.Jacobian()
	var jinv mat.Dense
	if err := jinv.Inverse(j); err != nil {
		return nil, fmt.Errorf("%w: singular standard-frame Jacobian: %v", xerr.NumericalFailure, err)
	}
	var tmp, out mat.Dense
	tmp.Mul(jinv.T(), m)
	out.Mul(&tmp, &jinv)
	sym := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for k := i; k < 3; k++ {
			sym.SetSym(i, k, 0.5*(out.At(i, k)+out.At(k, i)))
		}
	}
	return sym, nil
}
