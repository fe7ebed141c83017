package refine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFitParametersUnconstrainedIdentity(t *testing.T) {
	fp, err := NewFitParameters([]float64{1, 2, 3}, nil)
	require.NoError(t, err)
	y := fp.Reduced()
	require.Equal(t, []float64{1, 2, 3}, y)
}

func TestFitParametersConstraintKernelSatisfiesConstraint(t *testing.T) {
	// Constrain x0 = x1 (C = [1 -1 0]).
	c := mat.NewDense(1, 3, []float64{1, -1, 0})
	fp, err := NewFitParameters([]float64{5, 5, 1}, c)
	require.NoError(t, err)

	for col := 0; col < 2; col++ {
		k := mat.Col(nil, col, fp.K)
		var cx mat.VecDense
		cx.MulVec(c, mat.NewVecDense(3, k))
		require.InDelta(t, 0, cx.AtVec(0), 1e-9)
	}
}
