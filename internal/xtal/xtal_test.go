package xtal

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestUnitCellReciprocalIdentity(t *testing.T) {
	u, err := NewUnitCell([9]float64{
		46.3559, 0, 0,
		0, 59.9255, 0,
		0, 0, 85.5735,
	}, 0.1)
	require.NoError(t, err)

	var prod mat.Dense
	prod.Mul(u.A.T(), u.B)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			require.InDelta(t, want, prod.At(i, j), 1e-9)
		}
	}
}

func TestSpaceGroupSymbol(t *testing.T) {
	for name := range spaceGroupTable {
		sg, err := NewSpaceGroup(name)
		require.NoError(t, err)
		require.Equal(t, name, sg.Symbol)
	}
}

func TestOrbitCanonicalMember(t *testing.T) {
	sg, err := NewSpaceGroup("P 21 21 2")
	require.NoError(t, err)
	a := sg.CanonicalMember(1, 2, 3, false)
	b := sg.CanonicalMember(-1, -2, 3, false)
	require.Equal(t, a, b)
}

func TestShapeLibraryDefault(t *testing.T) {
	def := mat.NewSymDense(3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	lib := NewShapeLibrary(def)
	_, ok := lib.Lookup([3]int{1, 1, 1})
	require.False(t, ok)
	require.Same(t, def, lib.Default)
}
