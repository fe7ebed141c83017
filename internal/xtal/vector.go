// Package xtal implements the crystallographic data model: type-safe
// direct/reciprocal vectors, the unit cell and its basis algebra, the
// space-group symmetry table, and the shape library used by the predictor.
package xtal

import "github.com/hklreduce/hklreduce/internal/geom"

// DirectVector is a 3-vector expressed in the direct (real-space) lattice
// basis. It is a distinct type from ReciprocalVector so that the two can
// never be added or dotted without an explicit basis change through a
// UnitCell.
type DirectVector geom.Vec3

// ReciprocalVector is a 3-vector expressed in the reciprocal lattice
// basis (units of inverse length).
type ReciprocalVector geom.Vec3

func (v DirectVector) Vec3() geom.Vec3     { return geom.Vec3(v) }
func (v ReciprocalVector) Vec3() geom.Vec3 { return geom.Vec3(v) }

func (v DirectVector) Add(o DirectVector) DirectVector {
	return DirectVector(v.Vec3().Add(o.Vec3()))
}

func (v DirectVector) Scale(s float64) DirectVector {
	return DirectVector(v.Vec3().Scale(s))
}

func (v ReciprocalVector) Add(o ReciprocalVector) ReciprocalVector {
	return ReciprocalVector(v.Vec3().Add(o.Vec3()))
}

func (v ReciprocalVector) Scale(s float64) ReciprocalVector {
	return ReciprocalVector(v.Vec3().Scale(s))
}

// Norm returns the vector's Euclidean length.
func (v DirectVector) Norm() float64     { return v.Vec3().Norm() }
func (v ReciprocalVector) Norm() float64 { return v.Vec3().Norm() }
