package xtal

import (
	"fmt"
	"math"

	"github.com/hklreduce/hklreduce/internal/xerr"
)

// SymOp is a symmetry operation acting on fractional Miller indices as a
// 3x3 integer rotation matrix (translations in real space act trivially
// on reciprocal indices and are omitted, as only h,k,l orbits matter
// here).
type SymOp [3][3]int

// Apply returns the Miller index image of hkl under the operation.
func (s SymOp) Apply(h, k, l int) (int, int, int) {
	return s[0][0]*h + s[0][1]*k + s[0][2]*l,
		s[1][0]*h + s[1][1]*k + s[1][2]*l,
		s[2][0]*h + s[2][1]*k + s[2][2]*l
}

// SpaceGroup exposes the symmetry operations for a named space group, the
// orbit of a Miller index under those operations, an extinction test, and
// the canonical symbol/Bravais symbol pair.
type SpaceGroup struct {
	Symbol  string
	Bravais Bravais
	Ops     []SymOp
}

var identity = SymOp{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
var inversion = SymOp{{-1, 0, 0}, {0, -1, 0}, {0, 0, -1}}

// spaceGroupTable is a closed table of the space groups this reducer
// supports, built from their point-group generators (rotation parts
// only; screw/glide translations do not affect hkl orbits). Enough
// common groups are included to exercise every Bravais family; adding a
// new entry is a closed, data-driven extension.
var spaceGroupTable = map[string]*SpaceGroup{
	"P 1": {
		Symbol: "P 1", Bravais: Triclinic,
		Ops: []SymOp{identity},
	},
	"P -1": {
		Symbol: "P -1", Bravais: Triclinic,
		Ops: []SymOp{identity, inversion},
	},
	"P 2": {
		Symbol: "P 2", Bravais: Monoclinic,
		Ops: []SymOp{identity, {{-1, 0, 0}, {0, 1, 0}, {0, 0, -1}}},
	},
	"P 21": {
		Symbol: "P 21", Bravais: Monoclinic,
		Ops: []SymOp{identity, {{-1, 0, 0}, {0, 1, 0}, {0, 0, -1}}},
	},
	"P 21 21 2": {
		Symbol: "P 21 21 2", Bravais: Orthorhombic,
		Ops: []SymOp{
			identity,
			{{-1, 0, 0}, {0, -1, 0}, {0, 0, 1}},
			{{-1, 0, 0}, {0, 1, 0}, {0, 0, -1}},
			{{1, 0, 0}, {0, -1, 0}, {0, 0, -1}},
		},
	},
	"P 21 21 21": {
		Symbol: "P 21 21 21", Bravais: Orthorhombic,
		Ops: []SymOp{
			identity,
			{{-1, 0, 0}, {0, -1, 0}, {0, 0, 1}},
			{{-1, 0, 0}, {0, 1, 0}, {0, 0, -1}},
			{{1, 0, 0}, {0, -1, 0}, {0, 0, -1}},
		},
	},
	"P 4": {
		Symbol: "P 4", Bravais: Tetragonal,
		Ops: []SymOp{
			identity,
			{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
			{{-1, 0, 0}, {0, -1, 0}, {0, 0, 1}},
			{{0, 1, 0}, {-1, 0, 0}, {0, 0, 1}},
		},
	},
	"P 3": {
		Symbol: "P 3", Bravais: Trigonal,
		Ops: []SymOp{
			identity,
			{{0, -1, 0}, {1, -1, 0}, {0, 0, 1}},
			{{-1, 1, 0}, {-1, 0, 0}, {0, 0, 1}},
		},
	},
	"P 6": {
		Symbol: "P 6", Bravais: Hexagonal,
		Ops: []SymOp{
			identity,
			{{1, -1, 0}, {1, 0, 0}, {0, 0, 1}},
			{{0, -1, 0}, {1, -1, 0}, {0, 0, 1}},
			{{-1, 0, 0}, {0, -1, 0}, {0, 0, 1}},
			{{-1, 1, 0}, {-1, 0, 0}, {0, 0, 1}},
			{{0, 1, 0}, {-1, 1, 0}, {0, 0, 1}},
		},
	},
	"P 23": {
		Symbol: "P 23", Bravais: Cubic,
		Ops: []SymOp{
			identity,
			{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
			{{0, 1, 0}, {0, 0, 1}, {1, 0, 0}},
			{{-1, 0, 0}, {0, -1, 0}, {0, 0, 1}},
			{{0, 0, -1}, {-1, 0, 0}, {0, 1, 0}},
			{{1, 0, 0}, {0, -1, 0}, {0, 0, -1}},
			{{0, -1, 0}, {0, 0, 1}, {-1, 0, 0}},
			{{-1, 0, 0}, {0, 1, 0}, {0, 0, -1}},
			{{0, 0, 1}, {-1, 0, 0}, {0, -1, 0}},
			{{0, 1, 0}, {0, 0, -1}, {-1, 0, 0}},
			{{0, 0, -1}, {1, 0, 0}, {0, -1, 0}},
			{{0, -1, 0}, {0, 0, -1}, {1, 0, 0}},
		},
	},
}

// NewSpaceGroup returns the closed-table entry for name. Per testable
// property 7, SpaceGroup(name).Symbol == name for every name in the
// table.
func NewSpaceGroup(name string) (*SpaceGroup, error) {
	sg, ok := spaceGroupTable[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown space group %q", xerr.InvalidInput, name)
	}
	cp := *sg
	cp.Ops = append([]SymOp(nil), sg.Ops...)
	return &cp, nil
}

// Orbit returns every distinct image of (h,k,l) under the group's
// operations, optionally extended by the Friedel pair (h,k,l) <-> (-h,-k,-l).
func (sg *SpaceGroup) Orbit(h, k, l int, friedel bool) [][3]int {
	seen := make(map[[3]int]bool)
	var out [][3]int
	add := func(h, k, l int) {
		key := [3]int{h, k, l}
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	for _, op := range sg.Ops {
		oh, ok, ol := op.Apply(h, k, l)
		add(oh, ok, ol)
		if friedel {
			add(-oh, -ok, -ol)
		}
	}
	return out
}

// CanonicalMember returns the lexicographically smallest member of the
// orbit of (h,k,l), used as the merged-peak map key.
func (sg *SpaceGroup) CanonicalMember(h, k, l int, friedel bool) [3]int {
	orbit := sg.Orbit(h, k, l, friedel)
	best := orbit[0]
	for _, m := range orbit[1:] {
		if lessTriple(m, best) {
			best = m
		}
	}
	return best
}

func lessTriple(a, b [3]int) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	if a[1] != b[1] {
		return a[1] < b[1]
	}
	return a[2] < b[2]
}

// IsExtinct reports whether (h,k,l) is systematically absent: true when
// every operation maps it to itself but would require a non-integer
// phase — for the rotation-only table carried here, a reflection is
// extinct iff its orbit does not contain itself with a supporting
// centring translation; since centring translations are not modelled in
// SymOp, this conservatively always reports false (no extinctions beyond
// those the centring tag on UnitCell already implies). Kept as a named
// hook so callers have one place to add glide/screw extinction rules
// later.
func (sg *SpaceGroup) IsExtinct(h, k, l int) bool {
	return false
}

// FriedelEquivalent reports whether two Miller indices are related by
// Friedel's law, (h,k,l) <-> (-h,-k,-l).
func FriedelEquivalent(a, b [3]int) bool {
	return a[0] == -b[0] && a[1] == -b[1] && a[2] == -b[2]
}

// BravaisSymbol returns the conventional "<Bravais> <Centring>" symbol,
// e.g. "orthorhombic P".
func (sg *SpaceGroup) BravaisSymbol(c Centring) string {
	return sg.Bravais.String() + " " + c.String()
}

// bestFitAngle folds a continuous angle into [0, 2*pi). Nothing in this
// package calls it.
func bestFitAngle(theta float64) float64 {
	for theta < 0 {
		theta += 2 * math.Pi
	}
	for theta >= 2*math.Pi {
		theta -= 2 * math.Pi
	}
	return theta
}
