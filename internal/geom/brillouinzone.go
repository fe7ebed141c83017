package geom

import (
	"math"
	"sort"
)

// BrillouinZone is the Wigner-Seitz cell of a reciprocal lattice: the
// region closer to the origin than to any other reciprocal lattice point.
// It is built by intersecting the half-spaces { x : 2 x.g <= |g|^2 } for
// every short reciprocal lattice vector g, then dropping half-spaces that
// turn out not to define a facet of the resulting polytope.
type BrillouinZone struct {
	hull    *ConvexHull
	normals []Vec3
}

// NewBrillouinZone builds the zone from a reciprocal basis (three
// row vectors b0, b1, b2) and a radius multiplier controlling how many
// lattice shells around the origin are considered as candidate bounding
// planes. A multiplier of 2-3 is generous enough to guarantee every facet
// is found for any reasonable lattice.
func NewBrillouinZone(b0, b1, b2 Vec3, radiusMultiplier float64) *BrillouinZone {
	shortest := math.Min(b0.Norm(), math.Min(b1.Norm(), b2.Norm()))
	radius := radiusMultiplier * shortest

	candidates := candidateLatticeVectors(b0, b1, b2, radius)
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Norm() < candidates[j].Norm()
	})

	faces := newBoxPolytope(10 * radius)
	for _, g := range candidates {
		if g.Norm() == 0 {
			continue
		}
		h := halfSpace{Normal: g, Offset: 0.5 * g.Dot(g)}
		next := clipPolytopeByHalfSpace(faces, h)
		faces = next
	}

	hull := hullFromClippedFaces(faces)
	var normals []Vec3
	for _, f := range faces {
		normals = append(normals, f.normal)
	}
	return &BrillouinZone{hull: hull, normals: normals}
}

// candidateLatticeVectors enumerates non-zero integer combinations of the
// reciprocal basis within the given radius. Both members of each +g/-g
// pair are kept: the zone is centrosymmetric and each contributes its own
// bounding plane.
func candidateLatticeVectors(b0, b1, b2 Vec3, radius float64) []Vec3 {
	// Bound the integer search range generously from the basis norms.
	maxN := func(b Vec3) int {
		n := b.Norm()
		if n == 0 {
			return 0
		}
		return int(math.Ceil(radius/n)) + 1
	}
	n0, n1, n2 := maxN(b0), maxN(b1), maxN(b2)
	var out []Vec3
	for h := -n0; h <= n0; h++ {
		for k := -n1; k <= n1; k++ {
			for l := -n2; l <= n2; l++ {
				if h == 0 && k == 0 && l == 0 {
					continue
				}
				g := b0.Scale(float64(h)).Add(b1.Scale(float64(k))).Add(b2.Scale(float64(l)))
				if g.Norm() <= radius {
					out = append(out, g)
				}
			}
		}
	}
	return out
}

// ConvexHull returns the zone's boundary as a convex hull whose faces are
// the (generally polygonal, not triangulated) planar facets contributed by
// each binding half-space.
func (z *BrillouinZone) ConvexHull() *ConvexHull { return z.hull }

// FaceNormals returns the outward normal of each facet that survived
// clipping (i.e. the reciprocal lattice vectors that actually bound the
// zone, as opposed to every candidate considered).
func (z *BrillouinZone) FaceNormals() []Vec3 { return z.normals }

// Inside reports whether p lies within (or on the boundary of) the zone:
// 2 p.g <= |g|^2 for every bounding half-space.
func (z *BrillouinZone) Inside(p Vec3) bool {
	for _, n := range z.normals {
		if n.Dot(p) > 0.5*n.Dot(n)+1e-9 {
			return false
		}
	}
	return true
}

// Volume returns the zone's enclosed volume.
func (z *BrillouinZone) Volume() float64 { return z.hull.Volume() }
