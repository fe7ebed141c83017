package indexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hklreduce/hklreduce/internal/geom"
)

func TestNiggliReduceCubic(t *testing.T) {
	a := geom.Vec3{10, 0, 0}
	b := geom.Vec3{0, 10, 0}
	c := geom.Vec3{10, 10, 10}
	ra, rb, rc, err := NiggliReduce(a, b, c, 1e-6)
	require.NoError(t, err)
	form := formOf(ra, rb, rc)
	require.InDelta(t, 100, form.A, 1e-6)
	require.InDelta(t, 100, form.B, 1e-6)
	require.InDelta(t, 100, form.C, 1e-6)
}

func TestNiggliRejectsCoplanar(t *testing.T) {
	a := geom.Vec3{1, 0, 0}
	b := geom.Vec3{0, 1, 0}
	c := geom.Vec3{1, 1, 0}
	_, _, _, err := NiggliReduce(a, b, c, 1e-9)
	require.Error(t, err)
}

func TestClassifyGruberCubicPrimitive(t *testing.T) {
	form := niggliForm{A: 100, B: 100, C: 100, Xi: 0, Eta: 0, Zeta: 0}
	class := ClassifyGruber(form, 1e-6)
	require.Equal(t, Cubic, class.Bravais)
	require.Equal(t, Primitive, class.Centring)
}

func reciprocalBasis(a, b, c float64) (b1, b2, b3 geom.Vec3) {
	return geom.Vec3{1 / a, 0, 0}, geom.Vec3{0, 1 / b, 0}, geom.Vec3{0, 0, 1 / c}
}

func TestIndexRecoversOrthorhombicCell(t *testing.T) {
	b1, b2, b3 := reciprocalBasis(10, 12, 14)
	var qs []geom.Vec3
	for h := -4; h <= 4; h++ {
		for k := -4; k <= 4; k++ {
			for l := -4; l <= 4; l++ {
				if h == 0 && k == 0 && l == 0 {
					continue
				}
				q := b1.Scale(float64(h)).Add(b2.Scale(float64(k))).Add(b3.Scale(float64(l)))
				qs = append(qs, q)
			}
		}
	}

	params := Params{
		MaxDim:                       20,
		NVertices:                    200,
		Subdiv:                       32,
		IndexingTolerance:            0.05,
		NiggliTolerance:              1e-6,
		GruberTolerance:              1e-3,
		MinUnitCellVolume:            100,
		UnitCellEquivalenceTolerance: 1,
		SolutionCutoff:               5,
	}
	solutions, err := Index(qs, params)
	require.NoError(t, err)
	require.NotEmpty(t, solutions)
	require.Greater(t, solutions[0].PercentIndexed, 0.5)
}
