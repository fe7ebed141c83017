package xtal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// Bravais is one of the seven Bravais lattice families.
type Bravais int

const (
	Triclinic Bravais = iota
	Monoclinic
	Orthorhombic
	Tetragonal
	Trigonal
	Hexagonal
	Cubic
)

func (b Bravais) String() string {
	switch b {
	case Triclinic:
		return "triclinic"
	case Monoclinic:
		return "monoclinic"
	case Orthorhombic:
		return "orthorhombic"
	case Tetragonal:
		return "tetragonal"
	case Trigonal:
		return "trigonal"
	case Hexagonal:
		return "hexagonal"
	case Cubic:
		return "cubic"
	default:
		return "unknown"
	}
}

// Centring is one of the seven lattice centring modes.
type Centring int

const (
	Primitive Centring = iota
	BaseA
	BaseB
	BaseC
	BodyCentred
	FaceCentred
	Rhombohedral
)

func (c Centring) String() string {
	switch c {
	case Primitive:
		return "P"
	case BaseA:
		return "A"
	case BaseB:
		return "B"
	case BaseC:
		return "C"
	case BodyCentred:
		return "I"
	case FaceCentred:
		return "F"
	case Rhombohedral:
		return "R"
	default:
		return "?"
	}
}

// UnitCell is the direct-basis matrix A (columns a, b, c in laboratory
// length units) plus the cached reciprocal basis B = A^-T and the tags a
// lattice reducer assigns. UnitCells are treated as copy-on-write: any
// mutation (SetBravais, SetSpaceGroup, a re-reduction) should replace the
// shared instance rather than mutate peaks' existing references.
type UnitCell struct {
	A *mat.Dense // 3x3 direct basis, columns a, b, c
	B *mat.Dense // 3x3 reciprocal basis, B = A^-T

	BravaisType    Bravais
	CentringType   Centring
	IndexingTol    float64
	SpaceGroupName string // empty if unassigned
}

// NewUnitCell builds a cell from its 3x3 direct basis (row-major, 9
// entries, columns a, b, c) and the indexing tolerance peaks linked to it
// will be checked against.
func NewUnitCell(a [9]float64, indexingTolerance float64) (*UnitCell, error) {
	A := mat.NewDense(3, 3, a[:])
	var lu mat.LU
	lu.Factorize(A)
	if math.Abs(lu.Det()) < 1e-9 {
		return nil, fmt.Errorf("%w: unit cell basis is singular", xerr.NumericalFailure)
	}
	var ainv mat.Dense
	if err := ainv.Inverse(A); err != nil {
		return nil, fmt.Errorf("%w: unit cell basis not invertible: %v", xerr.NumericalFailure, err)
	}
	B := mat.DenseCopyOf(ainv.T())
	return &UnitCell{A: A, B: B, IndexingTol: indexingTolerance}, nil
}

// Parameters returns the derived scalar lattice parameters a, b, c (length)
// and alpha, beta, gamma (degrees), computed on demand from the columns of
// A.
func (u *UnitCell) Parameters() (a, b, c, alpha, beta, gamma float64) {
	col := func(j int) geom.Vec3 {
		return geom.Vec3{u.A.At(0, j), u.A.At(1, j), u.A.At(2, j)}
	}
	va, vb, vc := col(0), col(1), col(2)
	a, b, c = va.Norm(), vb.Norm(), vc.Norm()
	angle := func(x, y geom.Vec3) float64 {
		cosv := x.Dot(y) / (x.Norm() * y.Norm())
		cosv = math.Max(-1, math.Min(1, cosv))
		return math.Acos(cosv) * 180 / math.Pi
	}
	alpha = angle(vb, vc)
	beta = angle(va, vc)
	gamma = angle(va, vb)
	return
}

// MetricTensor returns G = A^T A, the Niggli/Gruber metric form.
func (u *UnitCell) MetricTensor() *mat.Dense {
	var g mat.Dense
	g.Mul(u.A.T(), u.A)
	return &g
}

// Volume returns the cell's direct-space volume, |det A|.
func (u *UnitCell) Volume() float64 {
	var lu mat.LU
	lu.Factorize(u.A)
	return math.Abs(lu.Det())
}

// ToFractional maps a reciprocal-space q-vector to fractional Miller
// indices via q . B^-1 = A^T q (since B = A^-T, B^-1 = A^T).
func (u *UnitCell) ToFractional(q geom.Vec3) geom.Vec3 {
	qv := mat.NewVecDense(3, []float64{q[0], q[1], q[2]})
	var h mat.VecDense
	h.MulVec(u.A.T(), qv)
	return geom.Vec3{h.AtVec(0), h.AtVec(1), h.AtVec(2)}
}

// HKLToQ maps an integer (or fractional) Miller index triple to a
// reciprocal-space q-vector via q = B . (h,k,l).
func (u *UnitCell) HKLToQ(hkl geom.Vec3) geom.Vec3 {
	hv := mat.NewVecDense(3, []float64{hkl[0], hkl[1], hkl[2]})
	var q mat.VecDense
	q.MulVec(u.B, hv)
	return geom.Vec3{q.AtVec(0), q.AtVec(1), q.AtVec(2)}
}

// IsIndexed reports whether q rounds to an integer Miller triple within
// the cell's indexing tolerance, and returns the rounded triple.
func (u *UnitCell) IsIndexed(q geom.Vec3) (hkl geom.Vec3, ok bool) {
	frac := u.ToFractional(q)
	var dist2 float64
	for i := 0; i < 3; i++ {
		r := math.Round(frac[i])
		hkl[i] = r
		d := frac[i] - r
		dist2 += d * d
	}
	return hkl, math.Sqrt(dist2) <= u.IndexingTol
}
