package instrument

import (
	"fmt"
	"math"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

var errOutOfRange = fmt.Errorf("%w: empty instrument-state sequence", xerr.OutOfRange)

// Quaternion is a unit quaternion (w, x, y, z) used for SLERP between
// discrete-frame sample/detector orientations.
type Quaternion [4]float64

// QuaternionFromRotation extracts a unit quaternion from a 3x3 rotation
// matrix (row-major, 9 entries) via the standard trace-based method.
func QuaternionFromRotation(r [9]float64) Quaternion {
	m00, m01, m02 := r[0], r[1], r[2]
	m10, m11, m12 := r[3], r[4], r[5]
	m20, m21, m22 := r[6], r[7], r[8]
	tr := m00 + m11 + m22
	var q Quaternion
	switch {
	case tr > 0:
		s := 0.5 / math.Sqrt(tr+1.0)
		q = Quaternion{0.25 / s, (m21 - m12) * s, (m02 - m20) * s, (m10 - m01) * s}
	case m00 > m11 && m00 > m22:
		s := 2.0 * math.Sqrt(1.0+m00-m11-m22)
		q = Quaternion{(m21 - m12) / s, 0.25 * s, (m01 + m10) / s, (m02 + m20) / s}
	case m11 > m22:
		s := 2.0 * math.Sqrt(1.0+m11-m00-m22)
		q = Quaternion{(m02 - m20) / s, (m01 + m10) / s, 0.25 * s, (m12 + m21) / s}
	default:
		s := 2.0 * math.Sqrt(1.0+m22-m00-m11)
		q = Quaternion{(m10 - m01) / s, (m02 + m20) / s, (m12 + m21) / s, 0.25 * s}
	}
	return q.Normalized()
}

func (q Quaternion) Normalized() Quaternion {
	n := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if n == 0 {
		return Quaternion{1, 0, 0, 0}
	}
	return Quaternion{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}

func dotQ(a, b Quaternion) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] + a[3]*b[3]
}

// Slerp performs spherical linear interpolation between two unit
// quaternions at t in [0,1].
func Slerp(a, b Quaternion, t float64) Quaternion {
	cosHalf := dotQ(a, b)
	if cosHalf < 0 {
		b = Quaternion{-b[0], -b[1], -b[2], -b[3]}
		cosHalf = -cosHalf
	}
	if cosHalf > 0.9995 {
		out := Quaternion{
			a[0] + t*(b[0]-a[0]),
			a[1] + t*(b[1]-a[1]),
			a[2] + t*(b[2]-a[2]),
			a[3] + t*(b[3]-a[3]),
		}
		return out.Normalized()
	}
	theta0 := math.Acos(cosHalf)
	theta := theta0 * t
	sinTheta0 := math.Sin(theta0)
	s0 := math.Cos(theta) - cosHalf*math.Sin(theta)/sinTheta0
	s1 := math.Sin(theta) / sinTheta0
	return Quaternion{
		s0*a[0] + s1*b[0],
		s0*a[1] + s1*b[1],
		s0*a[2] + s1*b[2],
		s0*a[3] + s1*b[3],
	}
}

// Rotate rotates v by the quaternion.
func (q Quaternion) Rotate(v geom.Vec3) geom.Vec3 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	uv := geom.Vec3{x, y, z}
	t := uv.Cross(v).Scale(2)
	return v.Add(t.Scale(w)).Add(uv.Cross(t))
}

// State is the instrument state at one discrete frame: sample position,
// sample orientation, detector orientation, incoming-beam direction,
// wavelength, and the cumulative rotation axis/stepSize used by the peak
// model's standard-frame construction.
type State struct {
	SamplePosition     geom.Vec3
	SampleOrientation  Quaternion
	DetectorOrientation Quaternion
	BeamDirection      geom.Vec3 // unit vector
	Wavelength         float64
	Refined            bool

	Axis     geom.Vec3 // cumulative rotation axis at this frame
	StepSize float64   // radians per frame step
}

// Ki returns the incoming wavevector, parallel to BeamDirection scaled to
// 1/Wavelength.
func (s State) Ki() geom.Vec3 {
	return s.BeamDirection.Normalized().Scale(1 / s.Wavelength)
}

// Interpolate returns the state at fractional offset t in [0,1] between s
// (t=0) and next (t=1): positions and beam direction are linearly
// interpolated, orientations use SLERP, and axis/stepSize are copied from
// s (held constant across the sub-frame interval, consistent with a single
// rotation axis driving the scan).
func (s State) Interpolate(next State, t float64) State {
	lerp := func(a, b geom.Vec3) geom.Vec3 {
		return a.Add(b.Sub(a).Scale(t))
	}
	lerpF := func(a, b float64) float64 { return a + t*(b-a) }
	return State{
		SamplePosition:      lerp(s.SamplePosition, next.SamplePosition),
		SampleOrientation:   Slerp(s.SampleOrientation, next.SampleOrientation, t),
		DetectorOrientation: Slerp(s.DetectorOrientation, next.DetectorOrientation, t),
		BeamDirection:       lerp(s.BeamDirection, next.BeamDirection).Normalized(),
		Wavelength:          lerpF(s.Wavelength, next.Wavelength),
		Refined:             s.Refined && next.Refined,
		Axis:                s.Axis,
		StepSize:            s.StepSize,
	}
}

// StateSequence is the ordered per-frame instrument states for one numor.
type StateSequence []State

// At returns the interpolated state at fractional frame index t.
func (seq StateSequence) At(t float64) (State, error) {
	if len(seq) == 0 {
		return State{}, errOutOfRange
	}
	if t <= 0 {
		return seq[0], nil
	}
	if t >= float64(len(seq)-1) {
		return seq[len(seq)-1], nil
	}
	i := int(math.Floor(t))
	frac := t - float64(i)
	return seq[i].Interpolate(seq[i+1], frac), nil
}
