package instrument

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/hklreduce/hklreduce/internal/geom"
)

// AxisKind distinguishes a goniometer axis's motion type.
type AxisKind int

const (
	Rotational AxisKind = iota
	Translational
)

// Axis is one element of a goniometer's ordered axis chain.
type Axis struct {
	Name      string
	Kind      AxisKind
	Direction geom.Vec3
	Clockwise bool // Rotational only

	// Angle (radians, Rotational) or Displacement (lab length units,
	// Translational) is the axis's current value.
	Angle        float64
	Displacement float64
}

// Transform returns the axis's 4x4 homogeneous transform at its current
// value.
func (a Axis) Transform() *mat.Dense {
	switch a.Kind {
	case Rotational:
		theta := a.Angle
		if a.Clockwise {
			theta = -theta
		}
		return rotationHomogeneous(a.Direction.Normalized(), theta)
	default:
		d := a.Direction.Normalized().Scale(a.Displacement)
		return translationHomogeneous(d)
	}
}

// rotationHomogeneous returns the 4x4 homogeneous matrix for a right-hand
// rotation by theta radians about unit axis n (Rodrigues' formula).
func rotationHomogeneous(n geom.Vec3, theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	t := 1 - c
	x, y, z := n[0], n[1], n[2]
	r := mat.NewDense(4, 4, []float64{
		t*x*x + c, t*x*y - s*z, t*x*z + s*y, 0,
		t*x*y + s*z, t*y*y + c, t*y*z - s*x, 0,
		t*x*z - s*y, t*y*z + s*x, t*z*z + c, 0,
		0, 0, 0, 1,
	})
	return r
}

func translationHomogeneous(d geom.Vec3) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, d[0],
		0, 1, 0, d[1],
		0, 0, 1, d[2],
		0, 0, 0, 1,
	})
}

// Goniometer is an ordered list of axes (innermost first). Its transform
// at the axes' current angles/displacements is the ordered product of
// each axis's homogeneous transform, applied innermost-axis first.
type Goniometer struct {
	Axes []Axis
}

// Transform composes the chain: Axes[0] is applied first (innermost),
// so the overall matrix is Axes[n-1].Transform() * ... * Axes[0].Transform().
func (g Goniometer) Transform() *mat.Dense {
	out := identity4()
	for _, a := range g.Axes {
		var next mat.Dense
		next.Mul(a.Transform(), out)
		out = &next
	}
	return out
}

func identity4() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// RotationPart returns the 3x3 rotation block of the goniometer's current
// homogeneous transform.
func (g Goniometer) RotationPart() *mat.Dense {
	full := g.Transform()
	r := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.Set(i, j, full.At(i, j))
		}
	}
	return r
}

// TranslationPart returns the translation column of the goniometer's
// current homogeneous transform.
func (g Goniometer) TranslationPart() geom.Vec3 {
	full := g.Transform()
	return geom.Vec3{full.At(0, 3), full.At(1, 3), full.At(2, 3)}
}
