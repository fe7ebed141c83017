package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/hklreduce/hklreduce/internal/xerr"
)

// Ellipsoid is the interior { x : (x-c)^T M (x-c) <= 1 } of a symmetric
// positive-definite metric M centred at c. The metric and its inverse are
// cached since both the blob finder and the peak model query them
// repeatedly per pixel.
type Ellipsoid struct {
	Centre Vec3
	metric *mat.SymDense // M
	inv    *mat.SymDense // M^-1, lazily computed
}

// NewEllipsoid builds an ellipsoid from a centre and a 3x3 symmetric
// positive-definite metric (row-major, 9 entries). It returns
// xerr.NumericalFailure if the metric fails a Cholesky test.
func NewEllipsoid(centre Vec3, m [9]float64) (Ellipsoid, error) {
	sym := mat.NewSymDense(3, []float64{m[0], m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8]})
	if !isSPD(sym) {
		return Ellipsoid{}, fmt.Errorf("%w: ellipsoid metric not positive-definite", xerr.NumericalFailure)
	}
	return Ellipsoid{Centre: centre, metric: sym}, nil
}

// NewEllipsoidFromAxes builds an ellipsoid from a centre, three positive
// semi-axis lengths and the 3x3 matrix whose columns are the
// corresponding (unit) orientation vectors. The metric is
// M = R diag(1/a_i^2) R^T.
func NewEllipsoidFromAxes(centre Vec3, semiAxes Vec3, orientation *mat.Dense) (Ellipsoid, error) {
	for _, a := range semiAxes {
		if a <= 0 {
			return Ellipsoid{}, fmt.Errorf("%w: non-positive semi-axis", xerr.NumericalFailure)
		}
	}
	var d mat.Dense
	d.Scale(1, mat.NewDense(3, 3, []float64{
		1 / (semiAxes[0] * semiAxes[0]), 0, 0,
		0, 1 / (semiAxes[1] * semiAxes[1]), 0,
		0, 0, 1 / (semiAxes[2] * semiAxes[2]),
	}))
	var tmp, m mat.Dense
	tmp.Mul(orientation, &d)
	m.Mul(&tmp, orientation.T())
	sym := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sym.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	if !isSPD(sym) {
		return Ellipsoid{}, fmt.Errorf("%w: ellipsoid metric not positive-definite", xerr.NumericalFailure)
	}
	return Ellipsoid{Centre: centre, metric: sym}, nil
}

func isSPD(sym *mat.SymDense) bool {
	var chol mat.Cholesky
	return chol.Factorize(sym)
}

// Metric returns the ellipsoid's 3x3 symmetric positive-definite metric.
func (e Ellipsoid) Metric() *mat.SymDense { return e.metric }

// InverseMetric returns (and caches) M^-1.
func (e *Ellipsoid) InverseMetric() *mat.SymDense {
	if e.inv != nil {
		return e.inv
	}
	var chol mat.Cholesky
	chol.Factorize(e.metric)
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		// metric was validated SPD at construction time; a failure here
		// means catastrophic ill-conditioning, which we surface as a
		// zero inverse rather than panicking.
		return mat.NewSymDense(3, nil)
	}
	e.inv = &inv
	return e.inv
}

// Contains reports whether p lies within or on the ellipsoid's surface.
func (e Ellipsoid) Contains(p Vec3) bool {
	return e.Radius2(p) <= 1
}

// Radius2 returns (p-c)^T M (p-c), the squared "ellipsoid radius" of p;
// points with Radius2 <= 1 are interior.
func (e Ellipsoid) Radius2(p Vec3) float64 {
	d := p.Sub(e.Centre)
	dv := mat.NewVecDense(3, []float64{d[0], d[1], d[2]})
	var mv mat.VecDense
	mv.MulVec(e.metric, dv)
	return dv.Dot(&mv)
}

// Scale returns the ellipsoid scaled by s (M <- M/s^2), i.e. each
// semi-axis is multiplied by s.
func (e Ellipsoid) Scale(s float64) Ellipsoid {
	sym := mat.NewSymDense(3, nil)
	inv2 := 1 / (s * s)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			sym.SetSym(i, j, e.metric.At(i, j)*inv2)
		}
	}
	return Ellipsoid{Centre: e.Centre, metric: sym}
}

// Translate returns the ellipsoid shifted by d.
func (e Ellipsoid) Translate(d Vec3) Ellipsoid {
	return Ellipsoid{Centre: e.Centre.Add(d), metric: e.metric}
}

// SemiAxesOrientation diagonalizes the metric and returns the semi-axis
// lengths (1/sqrt(eigenvalue)) and the matrix of orientation column
// vectors.
func (e Ellipsoid) SemiAxesOrientation() (semiAxes Vec3, orientation *mat.Dense, err error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(e.metric, true); !ok {
		return Vec3{}, nil, fmt.Errorf("%w: eigendecomposition of metric failed", xerr.NumericalFailure)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)
	for i, v := range values {
		if v <= 0 {
			return Vec3{}, nil, fmt.Errorf("%w: non-positive eigenvalue in metric", xerr.NumericalFailure)
		}
		semiAxes[i] = 1 / math.Sqrt(v)
	}
	return semiAxes, &vectors, nil
}

// BoundingBox returns the tight axis-aligned box enclosing the ellipsoid.
// The half-extent along axis i is sqrt(e_i^T M^-1 e_i) for the standard
// basis vector e_i, which follows from the support function of an
// ellipsoid.
func (e *Ellipsoid) BoundingBox() Box {
	inv := e.InverseMetric()
	var half Vec3
	for i := 0; i < 3; i++ {
		half[i] = math.Sqrt(inv.At(i, i))
	}
	return Box{Lo: e.Centre.Sub(half), Hi: e.Centre.Add(half)}
}

// CollideBox implements the spec's ellipsoid/box collision test: expand
// the box by the ellipsoid's projected half-extents along each box axis,
// then test containment of the ellipsoid centre in the expanded box.
func (e *Ellipsoid) CollideBox(b Box) bool {
	inv := e.InverseMetric()
	var half Vec3
	for i := 0; i < 3; i++ {
		half[i] = math.Sqrt(inv.At(i, i))
	}
	expanded := Box{Lo: b.Lo.Sub(half), Hi: b.Hi.Add(half)}
	return expanded.Contains(e.Centre)
}

// CollideEllipsoid tests two ellipsoids for overlap: a bounding-box
// reject, a reject from the two extents along the line of centres, then a
// bisection over points on the segment between the centres, reporting a
// collision when one of those points lies inside either ellipsoid. Only
// points on that segment are examined; an overlap that does not reach the
// segment is not detected.
func (a *Ellipsoid) CollideEllipsoid(b *Ellipsoid) bool {
	// Quick reject: if bounding boxes don't even overlap, quadrics can't.
	if !a.BoundingBox().Collide(b.BoundingBox()) {
		return false
	}
	// Quick reject along the line connecting centres: project both
	// ellipsoids' extents onto the centre-to-centre direction.
	d := b.Centre.Sub(a.Centre)
	dist := d.Norm()
	if dist == 0 {
		return true
	}
	dir := d.Scale(1 / dist)
	ra := supportRadius(a, dir)
	rb := supportRadius(b, dir)
	if ra+rb < dist {
		return false
	}
	// Bisection along the segment between centres: step toward the side
	// whose gauge Radius2 is larger, and report a collision as soon as a
	// sampled point lies inside either ellipsoid.
	lo, hi := 0.0, 1.0
	for i := 0; i < 24; i++ {
		mid := 0.5 * (lo + hi)
		p := a.Centre.Add(d.Scale(mid))
		ga := a.Radius2(p)
		gb := b.Radius2(p)
		if ga <= 1 || gb <= 1 {
			return true
		}
		if ga < gb {
			lo = mid
		} else {
			hi = mid
		}
	}
	mid := 0.5 * (lo + hi)
	p := a.Centre.Add(d.Scale(mid))
	return a.Radius2(p) <= 1 || b.Radius2(p) <= 1
}

// supportRadius returns the ellipsoid's extent along unit direction dir,
// i.e. max{t : centre + t*dir on the boundary}.
func supportRadius(e *Ellipsoid, dir Vec3) float64 {
	dv := mat.NewVecDense(3, []float64{dir[0], dir[1], dir[2]})
	var mv mat.VecDense
	mv.MulVec(e.metric, dv)
	q := dv.Dot(&mv)
	if q <= 0 {
		return 0
	}
	return 1 / math.Sqrt(q)
}

// Homogeneous returns the 4x4 homogeneous quadric form Q such that
// x^T Q x = 0 (with x = (p,1)) describes the ellipsoid's surface; useful
// for applying a 4x4 lab-frame transform T to the quadric via
// Q' = T^-T Q T^-1.
func (e Ellipsoid) Homogeneous() *mat.Dense {
	q := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			q.Set(i, j, e.metric.At(i, j))
		}
	}
	// Row/col 3 encode -2*M*c and c^T M c - 1 so that x^T Q x = (p-c)^T M (p-c) - 1.
	mc := mat.NewVecDense(3, nil)
	cv := mat.NewVecDense(3, []float64{e.Centre[0], e.Centre[1], e.Centre[2]})
	mc.MulVec(e.metric, cv)
	for i := 0; i < 3; i++ {
		q.Set(i, 3, -mc.AtVec(i))
		q.Set(3, i, -mc.AtVec(i))
	}
	q.Set(3, 3, cv.Dot(mc)-1)
	return q
}
