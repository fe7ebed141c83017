package indexer

import (
	"fmt"
	"math"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// niggliForm is the reduced scalar representation of a lattice basis: the
// three squared edge lengths and the three edge-pair dot products, the
// standard (A,B,C,ξ,η,ζ) parametrization used by the Krivy-Gruber
// reduction algorithm.
type niggliForm struct {
	A, B, C    float64
	Xi, Eta, Zeta float64
}

func formOf(a, b, c geom.Vec3) niggliForm {
	return niggliForm{
		A: a.Dot(a), B: b.Dot(b), C: c.Dot(c),
		Xi: 2 * b.Dot(c), Eta: 2 * a.Dot(c), Zeta: 2 * a.Dot(b),
	}
}

// NiggliReduce reduces the basis (a,b,c) to Niggli form by the standard
// eight-conditional-step loop (Krivy & Gruber 1976), terminating when no
// step applies or after 100 outer iterations (spec §4.F step 4 / failure
// mode ReductionDidNotConverge).
func NiggliReduce(a, b, c geom.Vec3, tol float64) (geom.Vec3, geom.Vec3, geom.Vec3, error) {
	if math.Abs(a.Dot(b.Cross(c))) < tol {
		return geom.Vec3{}, geom.Vec3{}, geom.Vec3{}, fmt.Errorf("%w: coplanar basis", xerr.InvalidInput)
	}
	for iter := 0; iter < 100; iter++ {
		f := formOf(a, b, c)
		changed := false

		// Step 1: order A <= B <= C.
		if f.A > f.B+tol || (math.Abs(f.A-f.B) <= tol && math.Abs(f.Xi) > math.Abs(f.Eta)+tol) {
			a, b = b, a
			f.Xi, f.Eta = f.Eta, f.Xi
			changed = true
		}
		if f.B > f.C+tol || (math.Abs(f.B-f.C) <= tol && math.Abs(f.Eta) > math.Abs(f.Zeta)+tol) {
			b, c = c, b
			f.Eta, f.Zeta = f.Zeta, f.Eta
			changed = true
		}
		if changed {
			continue
		}

		// Step 2: make the signs of xi, eta, zeta consistent (all positive
		// or all non-positive counting zeros as positive).
		signCount := 0
		if f.Xi > tol {
			signCount++
		}
		if f.Eta > tol {
			signCount++
		}
		if f.Zeta > tol {
			signCount++
		}
		if signCount == 1 || signCount == 2 {
			if f.Xi <= tol {
				b = b.Scale(-1)
			}
			if f.Eta <= tol {
				a = a.Scale(-1)
			}
			if f.Zeta <= tol {
				a = a.Scale(-1)
				b = b.Scale(-1)
			}
			continue
		}

		// Step 3/4/5: reduce |xi|, |eta|, |zeta| below A, B respectively
		// by translating one basis vector by a multiple of another.
		if math.Abs(f.Xi) > f.B+tol {
			n := math.Round(f.Xi / (2 * f.B))
			c = c.Sub(b.Scale(n))
			continue
		}
		if math.Abs(f.Eta) > f.A+tol {
			n := math.Round(f.Eta / (2 * f.A))
			c = c.Sub(a.Scale(n))
			continue
		}
		if math.Abs(f.Zeta) > f.A+tol {
			n := math.Round(f.Zeta / (2 * f.A))
			b = b.Sub(a.Scale(n))
			continue
		}

		// Step 6: special case xi+eta+zeta+A+B < 0 -> shift c.
		if f.Xi+f.Eta+f.Zeta+f.A+f.B < -tol {
			c = c.Add(a).Add(b)
			continue
		}

		return a, b, c, nil
	}
	return geom.Vec3{}, geom.Vec3{}, geom.Vec3{}, fmt.Errorf("%w: Niggli reduction did not converge in 100 iterations", xerr.NotConverged)
}
