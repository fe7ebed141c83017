package geom

import (
	"fmt"
	"math"
	"sort"

	"github.com/hklreduce/hklreduce/internal/xerr"
)

// ConvexHull is a convex polytope represented as a vertex list and a set of
// planar, outward-wound polygon faces. Euler's relation V - E + F = 2 holds
// after every NewTetrahedronHull/AddPoint/clipPolytopeByHalfSpace call on a
// non-degenerate hull. Faces are triangles when the hull is grown by
// incremental point insertion (AddPoint) and arbitrary convex polygons when
// it is grown by half-space intersection (see BrillouinZone).
type ConvexHull struct {
	Vertices []Vec3
	Faces    []Face
}

// Face is an ordered ring of vertex indices (into ConvexHull.Vertices)
// describing one planar, outward-wound polygon.
type Face []int

// Normal returns the outward unit normal of the face via Newell's method,
// which is robust for both triangles and larger planar polygons.
func (h *ConvexHull) Normal(f Face) Vec3 {
	var n Vec3
	for i := 0; i < len(f); i++ {
		a := h.Vertices[f[i]]
		b := h.Vertices[f[(i+1)%len(f)]]
		n[0] += (a[1] - b[1]) * (a[2] + b[2])
		n[1] += (a[2] - b[2]) * (a[0] + b[0])
		n[2] += (a[0] - b[0]) * (a[1] + b[1])
	}
	return n.Normalized()
}

// edgeCount returns the number of distinct undirected edges across all
// faces (every face contributes one half-edge per side that pairs up with a
// neighbour's opposite half-edge on a closed, convex polytope).
func (h *ConvexHull) edgeCount() int {
	type edge struct{ u, v int }
	seen := make(map[edge]bool)
	for _, f := range h.Faces {
		for i := 0; i < len(f); i++ {
			u, v := f[i], f[(i+1)%len(f)]
			if u > v {
				u, v = v, u
			}
			seen[edge{u, v}] = true
		}
	}
	return len(seen)
}

// EulerCheck reports V - E + F, which must equal 2 for a valid closed
// convex polytope (spec invariant 5, S2).
func (h *ConvexHull) EulerCheck() int {
	return len(h.Vertices) - h.edgeCount() + len(h.Faces)
}

// NewTetrahedronHull builds the initial hull from four non-coplanar
// points, orienting faces outward.
func NewTetrahedronHull(p0, p1, p2, p3 Vec3) (*ConvexHull, error) {
	h := &ConvexHull{Vertices: []Vec3{p0, p1, p2, p3}}
	vol := p1.Sub(p0).Cross(p2.Sub(p0)).Dot(p3.Sub(p0))
	if math.Abs(vol) < 1e-12 {
		return nil, fmt.Errorf("%w: coplanar points cannot seed a hull", xerr.NumericalFailure)
	}
	faces := []Face{{0, 1, 2}, {0, 3, 1}, {0, 2, 3}, {1, 3, 2}}
	centre := Vec3{
		(p0[0] + p1[0] + p2[0] + p3[0]) / 4,
		(p0[1] + p1[1] + p2[1] + p3[1]) / 4,
		(p0[2] + p1[2] + p2[2] + p3[2]) / 4,
	}
	for i, f := range faces {
		faces[i] = h.orientOutward(f, centre)
	}
	h.Faces = faces
	return h, nil
}

func (h *ConvexHull) orientOutward(f Face, interior Vec3) Face {
	a, b, c := h.Vertices[f[0]], h.Vertices[f[1]], h.Vertices[f[2]]
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Dot(interior.Sub(a)) > 0 {
		return Face{f[0], f[2], f[1]}
	}
	return f
}

// signedVolume returns the signed volume of the tetrahedron (face, p),
// positive when p is on the outward side of the face's first triangle.
func (h *ConvexHull) signedVolume(f Face, p Vec3) float64 {
	a, b, c := h.Vertices[f[0]], h.Vertices[f[1]], h.Vertices[f[2]]
	n := b.Sub(a).Cross(c.Sub(a))
	return n.Dot(p.Sub(a))
}

// AddPoint adds a vertex to the hull. If the point lies inside the
// current hull it is discarded (the hull is unchanged). Otherwise the
// faces visible from the point are removed, the horizon (boundary
// between visible and hidden faces) is found, and new triangular faces
// cone the horizon edges to the new vertex.
func (h *ConvexHull) AddPoint(p Vec3) {
	if len(h.Faces) == 0 {
		h.Vertices = append(h.Vertices, p)
		return
	}
	var visible []int
	for i, f := range h.Faces {
		if h.signedVolume(f, p) > 1e-9 {
			visible = append(visible, i)
		}
	}
	if len(visible) == 0 {
		return // interior point: hull unchanged
	}

	visibleSet := make(map[int]bool, len(visible))
	for _, i := range visible {
		visibleSet[i] = true
	}

	// Horizon: directed edges of visible faces whose reverse edge does
	// not belong to another visible face.
	type edge struct{ u, v int }
	edgeOwner := make(map[edge]int)
	for i, f := range h.Faces {
		if !visibleSet[i] {
			continue
		}
		for j := 0; j < len(f); j++ {
			edgeOwner[edge{f[j], f[(j+1)%len(f)]}] = i
		}
	}
	var horizon []edge
	for e := range edgeOwner {
		rev := edge{e.v, e.u}
		if _, ok := edgeOwner[rev]; !ok {
			horizon = append(horizon, e)
		}
	}

	newIdx := len(h.Vertices)
	h.Vertices = append(h.Vertices, p)

	kept := h.Faces[:0]
	for i, f := range h.Faces {
		if !visibleSet[i] {
			kept = append(kept, f)
		}
	}
	h.Faces = kept

	for _, e := range horizon {
		h.Faces = append(h.Faces, Face{e.u, e.v, newIdx})
	}
}

// UpdateHull rebuilds the hull incrementally from the given point cloud,
// seeding with the first four non-coplanar points found and adding the
// rest in order.
func UpdateHull(points []Vec3) (*ConvexHull, error) {
	if len(points) < 4 {
		return nil, fmt.Errorf("%w: convex hull needs at least 4 points", xerr.InvalidInput)
	}
	var h *ConvexHull
	var err error
	seedEnd := 4
	for seedEnd <= len(points) {
		h, err = NewTetrahedronHull(points[0], points[1], points[2], points[seedEnd-1])
		if err == nil {
			break
		}
		seedEnd++
	}
	if err != nil {
		return nil, err
	}
	for i := 3; i < len(points); i++ {
		if i == seedEnd-1 {
			continue
		}
		h.AddPoint(points[i])
	}
	return h, nil
}

// Volume returns the hull's enclosed volume by summing absolute tetrahedron
// volumes from an interior reference point (the vertex centroid), fanning
// each face into a triangle per consecutive vertex pair.
func (h *ConvexHull) Volume() float64 {
	var cx, cy, cz float64
	for _, v := range h.Vertices {
		cx += v[0]
		cy += v[1]
		cz += v[2]
	}
	n := float64(len(h.Vertices))
	centre := Vec3{cx / n, cy / n, cz / n}
	var vol float64
	for _, f := range h.Faces {
		a := h.Vertices[f[0]]
		for i := 1; i+1 < len(f); i++ {
			b := h.Vertices[f[i]]
			c := h.Vertices[f[i+1]]
			vol += math.Abs(b.Sub(a).Cross(c.Sub(a)).Dot(centre.Sub(a))) / 6
		}
	}
	return vol
}

// halfSpace is the constraint { x : Normal.Dot(x) <= Offset }.
type halfSpace struct {
	Normal Vec3
	Offset float64
}

// clippedFace carries a face alongside the plane it lies in, needed to
// re-clip against subsequent half-spaces.
type clippedFace struct {
	poly   []Vec3
	normal Vec3
	offset float64
}

// newBoxPolytope returns the six faces of an axis-aligned cube of half-width
// r, used as the initial, generously oversized polytope before clipping.
func newBoxPolytope(r float64) []clippedFace {
	v := func(x, y, z float64) Vec3 { return Vec3{x, y, z} }
	faces := [6][4]Vec3{
		{v(r, -r, -r), v(r, r, -r), v(r, r, r), v(r, -r, r)},
		{v(-r, -r, -r), v(-r, -r, r), v(-r, r, r), v(-r, r, -r)},
		{v(-r, r, -r), v(-r, r, r), v(r, r, r), v(r, r, -r)},
		{v(-r, -r, -r), v(r, -r, -r), v(r, -r, r), v(-r, -r, r)},
		{v(-r, -r, r), v(r, -r, r), v(r, r, r), v(-r, r, r)},
		{v(-r, -r, -r), v(-r, r, -r), v(r, r, -r), v(r, -r, -r)},
	}
	normals := []Vec3{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
	out := make([]clippedFace, 6)
	for i, f := range faces {
		out[i] = clippedFace{poly: []Vec3{f[0], f[1], f[2], f[3]}, normal: normals[i], offset: r}
	}
	return out
}

// clipPolytopeByHalfSpace clips every face of the polytope against
// { x : h.Normal.Dot(x) <= h.Offset } using Sutherland-Hodgman polygon
// clipping, then assembles the new cap face (if any) from the cut edges by
// sorting the cap vertices angularly about the cutting plane's own normal.
func clipPolytopeByHalfSpace(faces []clippedFace, h halfSpace) []clippedFace {
	const eps = 1e-9
	var out []clippedFace
	var capPts []Vec3

	for _, f := range faces {
		n := len(f.poly)
		if n == 0 {
			continue
		}
		var clipped []Vec3
		for i := 0; i < n; i++ {
			p0 := f.poly[i]
			p1 := f.poly[(i+1)%n]
			d0 := h.Normal.Dot(p0) - h.Offset
			d1 := h.Normal.Dot(p1) - h.Offset
			switch {
			case d0 <= eps:
				clipped = append(clipped, p0)
				if (d0 < -eps && d1 > eps) || (d0 > eps && d1 < -eps) {
					t := d0 / (d0 - d1)
					ip := p0.Add(p1.Sub(p0).Scale(t))
					clipped = append(clipped, ip)
					capPts = append(capPts, ip)
				}
			case (d0 > eps && d1 < -eps):
				t := d0 / (d0 - d1)
				ip := p0.Add(p1.Sub(p0).Scale(t))
				clipped = append(clipped, ip)
				capPts = append(capPts, ip)
			default:
				if math.Abs(d0) <= eps {
					capPts = append(capPts, p0)
				}
			}
		}
		if len(clipped) >= 3 {
			out = append(out, clippedFace{poly: dedupPoly(clipped), normal: f.normal, offset: f.offset})
		}
	}

	if cap := assembleCapFace(capPts, h.Normal); cap != nil {
		out = append(out, clippedFace{poly: cap, normal: h.Normal, offset: h.Offset})
	}
	return out
}

// dedupPoly removes consecutive near-duplicate vertices introduced when a
// clip plane passes exactly through an existing vertex.
func dedupPoly(poly []Vec3) []Vec3 {
	var out []Vec3
	for i, p := range poly {
		if i == 0 || p.Sub(out[len(out)-1]).Norm() > 1e-9 {
			out = append(out, p)
		}
	}
	if len(out) > 1 && out[0].Sub(out[len(out)-1]).Norm() <= 1e-9 {
		out = out[:len(out)-1]
	}
	return out
}

// assembleCapFace builds the new polygon face lying in the cutting plane
// (normal n) from the set of intersection/on-plane points gathered while
// clipping every other face, by deduplicating and sorting them angularly
// about the plane's own centroid. Returns nil if fewer than 3 distinct
// points survive (the half-space did not cut a new facet).
func assembleCapFace(pts []Vec3, n Vec3) []Vec3 {
	uniq := dedupUnordered(pts)
	if len(uniq) < 3 {
		return nil
	}
	var centre Vec3
	for _, p := range uniq {
		centre = centre.Add(p)
	}
	centre = centre.Scale(1 / float64(len(uniq)))

	u := arbitraryPerp(n)
	v := n.Cross(u)
	sort.Slice(uniq, func(i, j int) bool {
		ai := uniq[i].Sub(centre)
		aj := uniq[j].Sub(centre)
		return math.Atan2(v.Dot(ai), u.Dot(ai)) < math.Atan2(v.Dot(aj), u.Dot(aj))
	})
	return uniq
}

func dedupUnordered(pts []Vec3) []Vec3 {
	var out []Vec3
	for _, p := range pts {
		dup := false
		for _, q := range out {
			if p.Sub(q).Norm() < 1e-8 {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

func arbitraryPerp(n Vec3) Vec3 {
	ref := Vec3{1, 0, 0}
	if math.Abs(n[0]) > 0.9 {
		ref = Vec3{0, 1, 0}
	}
	return n.Cross(ref).Normalized()
}

// hullFromClippedFaces converts the internal clippedFace slices (which
// share vertices only by coordinate, not by index) into a ConvexHull with a
// deduplicated vertex list and index-based faces.
func hullFromClippedFaces(faces []clippedFace) *ConvexHull {
	h := &ConvexHull{}
	index := func(p Vec3) int {
		for i, v := range h.Vertices {
			if v.Sub(p).Norm() < 1e-7 {
				return i
			}
		}
		h.Vertices = append(h.Vertices, p)
		return len(h.Vertices) - 1
	}
	for _, f := range faces {
		face := make(Face, len(f.poly))
		for i, p := range f.poly {
			face[i] = index(p)
		}
		h.Faces = append(h.Faces, face)
	}
	return h
}
