package indexer

import (
	"fmt"
	"math"
	"sort"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/xerr"
	"github.com/hklreduce/hklreduce/internal/xtal"
)

// Params bundles the autoindexer's tunable inputs (spec §4.F).
type Params struct {
	MaxDim                       float64
	NVertices                    int
	Subdiv                       int
	IndexingTolerance            float64
	NiggliTolerance              float64
	GruberTolerance              float64
	MinUnitCellVolume            float64
	UnitCellEquivalenceTolerance float64
	SolutionCutoff               int
}

// Solution is one candidate unit cell and the fraction of input
// reflections it indexes.
type Solution struct {
	Cell           *xtal.UnitCell
	PercentIndexed float64
}

// Index implements spec §4.F end to end: direction search, triple
// selection, Niggli/Gruber reduction, percent-indexed scoring and
// equivalence deduplication.
func Index(qs []geom.Vec3, p Params) ([]Solution, error) {
	if len(qs) == 0 {
		return nil, fmt.Errorf("%w: no observed q-vectors to index", xerr.InvalidInput)
	}
	candidates, err := FindDirections(qs, p.NVertices, p.Subdiv, p.MaxDim)
	if err != nil {
		return nil, err
	}
	triples, err := NonCoplanarTriples(candidates, p.SolutionCutoff, p.MinUnitCellVolume)
	if err != nil {
		return nil, err
	}

	var solutions []Solution
	for _, t := range triples {
		a, b, c, err := NiggliReduce(t[0], t[1], t[2], p.NiggliTolerance)
		if err != nil {
			opsf("triple discarded: %v", err)
			continue
		}
		form := formOf(a, b, c)
		class := ClassifyGruber(form, p.GruberTolerance)

		basis := [9]float64{a[0], b[0], c[0], a[1], b[1], c[1], a[2], b[2], c[2]}
		cell, err := xtal.NewUnitCell(basis, p.IndexingTolerance)
		if err != nil {
			opsf("triple produced singular cell: %v", err)
			continue
		}
		cell.BravaisType = mapBravais(class.Bravais)
		cell.CentringType = mapCentring(class.Centring)

		pct := percentIndexed(cell, qs)
		solutions = append(solutions, Solution{Cell: cell, PercentIndexed: pct})
	}
	if len(solutions) == 0 {
		return nil, fmt.Errorf("%w: no triple reduced to a usable cell", xerr.NotConverged)
	}

	sort.Slice(solutions, func(i, j int) bool {
		if solutions[i].PercentIndexed != solutions[j].PercentIndexed {
			return solutions[i].PercentIndexed > solutions[j].PercentIndexed
		}
		return solutions[i].Cell.Volume() < solutions[j].Cell.Volume()
	})

	deduped := dedupeByMetric(solutions, p.UnitCellEquivalenceTolerance)
	if len(deduped) > p.SolutionCutoff && p.SolutionCutoff > 0 {
		deduped = deduped[:p.SolutionCutoff]
	}
	diagf("indexer: %d solutions after dedup (from %d triples)", len(deduped), len(triples))
	return deduped, nil
}

func percentIndexed(cell *xtal.UnitCell, qs []geom.Vec3) float64 {
	hit := 0
	for _, q := range qs {
		if _, ok := cell.IsIndexed(q); ok {
			hit++
		}
	}
	return float64(hit) / float64(len(qs))
}

func dedupeByMetric(solutions []Solution, tol float64) []Solution {
	var out []Solution
	for _, s := range solutions {
		dup := false
		for _, kept := range out {
			if metricClose(s.Cell, kept.Cell, tol) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}

func metricClose(a, b *xtal.UnitCell, tol float64) bool {
	ga, gb := a.MetricTensor(), b.MetricTensor()
	var diff float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d := ga.At(i, j) - gb.At(i, j)
			diff += d * d
		}
	}
	return math.Sqrt(diff) <= tol
}

func mapBravais(b BravaisType) xtal.Bravais {
	switch b {
	case Monoclinic:
		return xtal.Monoclinic
	case Orthorhombic:
		return xtal.Orthorhombic
	case Tetragonal:
		return xtal.Tetragonal
	case Trigonal:
		return xtal.Trigonal
	case Hexagonal:
		return xtal.Hexagonal
	case Cubic:
		return xtal.Cubic
	default:
		return xtal.Triclinic
	}
}

func mapCentring(c CentringType) xtal.Centring {
	switch c {
	case BaseCentred:
		return xtal.BaseC
	case AFaceCentred:
		return xtal.BaseA
	case BFaceCentred:
		return xtal.BaseB
	case BodyCentred:
		return xtal.BodyCentred
	case FaceCentred:
		return xtal.FaceCentred
	case Rhombohedral:
		return xtal.Rhombohedral
	default:
		return xtal.Primitive
	}
}
