package geom

import (
	"math"
	"testing"
)

func TestTetrahedronEuler(t *testing.T) {
	h, err := NewTetrahedronHull(
		Vec3{0, 0, 0}, Vec3{1, 0, 0}, Vec3{0, 1, 0}, Vec3{0, 0, 1},
	)
	if err != nil {
		t.Fatalf("NewTetrahedronHull: %v", err)
	}
	if got := h.EulerCheck(); got != 2 {
		t.Errorf("EulerCheck() = %d, want 2", got)
	}
}

func TestUpdateHullCube(t *testing.T) {
	pts := []Vec3{
		{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1},
		{1, 1, 0}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1},
	}
	h, err := UpdateHull(pts)
	if err != nil {
		t.Fatalf("UpdateHull: %v", err)
	}
	if got := h.EulerCheck(); got != 2 {
		t.Errorf("EulerCheck() = %d, want 2", got)
	}
	if got, want := h.Volume(), 1.0; math.Abs(got-want) > 1e-6 {
		t.Errorf("Volume() = %v, want %v", got, want)
	}
}

func TestCubicBrillouinZone(t *testing.T) {
	z := NewBrillouinZone(Vec3{1, 0, 0}, Vec3{0, 1, 0}, Vec3{0, 0, 1}, 1.8)
	if got, want := z.Volume(), 1.0; math.Abs(got-want) > 1e-6 {
		t.Errorf("Volume() = %v, want %v", got, want)
	}
	if got := len(z.hull.Vertices); got != 8 {
		t.Errorf("len(Vertices) = %d, want 8", got)
	}
	if got := len(z.hull.Faces); got != 6 {
		t.Errorf("len(Faces) = %d, want 6", got)
	}
	if got := z.hull.EulerCheck(); got != 2 {
		t.Errorf("EulerCheck() = %d, want 2", got)
	}
	if !z.Inside(Vec3{0, 0, 0}) {
		t.Error("origin must be inside the zone")
	}
	if z.Inside(Vec3{1, 0, 0}) {
		t.Error("(1,0,0) lies outside the zone")
	}
}

func TestOctreeCollisions(t *testing.T) {
	tr := NewOctree(Box{Lo: Vec3{-10, -10, -10}, Hi: Vec3{10, 10, 10}}, 2, 6)
	tr.Insert(0, Box{Lo: Vec3{0, 0, 0}, Hi: Vec3{1, 1, 1}})
	tr.Insert(1, Box{Lo: Vec3{0.5, 0.5, 0.5}, Hi: Vec3{1.5, 1.5, 1.5}})
	tr.Insert(2, Box{Lo: Vec3{-9, -9, -9}, Hi: Vec3{-8, -8, -8}})
	if tr.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tr.Len())
	}
	pairs := tr.Collisions()
	if len(pairs) != 1 || pairs[0] != [2]int{0, 1} {
		t.Errorf("Collisions() = %v, want [[0 1]]", pairs)
	}
	hits := tr.Query(Box{Lo: Vec3{0.8, 0.8, 0.8}, Hi: Vec3{0.9, 0.9, 0.9}})
	if len(hits) != 2 {
		t.Errorf("Query() found %d boxes, want 2", len(hits))
	}
}

func TestEllipsoidCollide(t *testing.T) {
	a, err := NewEllipsoid(Vec3{0, 0, 0}, [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	if err != nil {
		t.Fatalf("NewEllipsoid: %v", err)
	}
	b, err := NewEllipsoid(Vec3{1.5, 0, 0}, [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	if err != nil {
		t.Fatalf("NewEllipsoid: %v", err)
	}
	if !a.CollideEllipsoid(&b) {
		t.Error("unit spheres 1.5 apart should overlap")
	}
	c, err := NewEllipsoid(Vec3{5, 0, 0}, [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	if err != nil {
		t.Fatalf("NewEllipsoid: %v", err)
	}
	if a.CollideEllipsoid(&c) {
		t.Error("unit spheres 5 apart should not overlap")
	}
}
