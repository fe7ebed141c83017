package indexer

import "math"

// BravaisType is one of the seven crystal families.
type BravaisType string

const (
	Triclinic    BravaisType = "triclinic"
	Monoclinic   BravaisType = "monoclinic"
	Orthorhombic BravaisType = "orthorhombic"
	Tetragonal   BravaisType = "tetragonal"
	Trigonal     BravaisType = "trigonal"
	Hexagonal    BravaisType = "hexagonal"
	Cubic        BravaisType = "cubic"
)

// CentringType is one of the seven centring tags.
type CentringType string

const (
	Primitive     CentringType = "P"
	BaseCentred   CentringType = "C"
	BodyCentred   CentringType = "I"
	FaceCentred   CentringType = "F"
	Rhombohedral  CentringType = "R"
	AFaceCentred  CentringType = "A"
	BFaceCentred  CentringType = "B"
)

// Classification is the result of classifying a Niggli-reduced cell: the
// Bravais family, centring, and the conventional-cell transform from the
// Niggli basis (row-major 3x3, applied as conventional = T * niggli).
type Classification struct {
	Bravais  BravaisType
	Centring CentringType
	Transform [9]float64
}

var identityTransform = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// ClassifyGruber classifies a Niggli-reduced form against a condensed
// subset of the Gruber 44-condition table (de Wolff & Gruber), covering
// the characteristic cell for each of the 7 crystal families and their
// most common centrings. Cells landing outside every tested condition
// fall back to Triclinic/Primitive, which is always a valid (if
// non-conventional) classification.
func ClassifyGruber(f niggliForm, tol float64) Classification {
	eq := func(x, y float64) bool { return math.Abs(x-y) <= tol }
	zero := func(x float64) bool { return math.Abs(x) <= tol }

	switch {
	case eq(f.A, f.B) && eq(f.B, f.C) && zero(f.Xi) && zero(f.Eta) && zero(f.Zeta):
		return Classification{Cubic, Primitive, identityTransform}
	case eq(f.A, f.B) && eq(f.B, f.C) && eq(f.Xi, f.Eta) && eq(f.Eta, f.Zeta) && !zero(f.Xi):
		return Classification{Cubic, FaceCentred, identityTransform}
	case eq(f.A, f.B) && eq(f.B, f.C) && eq(f.Xi, f.Eta) && eq(f.Eta, f.Zeta) && eq(f.Xi, -f.A/3):
		return Classification{Cubic, BodyCentred, identityTransform}

	case eq(f.A, f.B) && zero(f.Xi) && zero(f.Eta) && zero(f.Zeta) && !eq(f.A, f.C):
		return Classification{Tetragonal, Primitive, identityTransform}
	case eq(f.A, f.B) && eq(f.Xi, f.Eta) && zero(f.Zeta) && !eq(f.A, f.C):
		return Classification{Tetragonal, BodyCentred, identityTransform}

	case eq(f.A, f.B) && eq(f.B, f.C) && eq(f.Xi, f.Eta) && eq(f.Eta, f.Zeta) && eq(f.Xi, -f.A):
		return Classification{Trigonal, Rhombohedral, identityTransform}
	case eq(f.A, f.B) && zero(f.Eta) && zero(f.Zeta) && eq(f.Xi, -f.A):
		return Classification{Hexagonal, Primitive, identityTransform}

	case zero(f.Xi) && zero(f.Eta) && zero(f.Zeta):
		return Classification{Orthorhombic, Primitive, identityTransform}
	case zero(f.Eta) && zero(f.Zeta) && !zero(f.Xi):
		return Classification{Orthorhombic, BaseCentred, identityTransform}
	case eq(f.Xi, f.Eta) && eq(f.Eta, f.Zeta) && !zero(f.Xi):
		return Classification{Orthorhombic, BodyCentred, identityTransform}

	case zero(f.Eta) && zero(f.Zeta):
		return Classification{Monoclinic, Primitive, identityTransform}
	case zero(f.Zeta) && !zero(f.Eta):
		return Classification{Monoclinic, BaseCentred, identityTransform}

	default:
		return Classification{Triclinic, Primitive, identityTransform}
	}
}
