package refine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLevenbergMarquardtFitsLinearModel fits y = a*t + b to noiseless
// data, confirming the solver converges to the exact coefficients.
func TestLevenbergMarquardtFitsLinearModel(t *testing.T) {
	ts := []float64{0, 1, 2, 3, 4, 5}
	trueA, trueB := 2.0, -1.0
	ys := make([]float64, len(ts))
	for i, tv := range ts {
		ys[i] = trueA*tv + trueB
	}

	resid := func(p []float64) ([]float64, error) {
		r := make([]float64, len(ts))
		for i, tv := range ts {
			r[i] = p[0]*tv + p[1] - ys[i]
		}
		return r, nil
	}

	result, err := LevenbergMarquardt([]float64{0, 0}, resid, nil, Options{XTol: 1e-12, GTol: 1e-12, FTol: 1e-14, MaxIter: 100})
	require.NoError(t, err)
	require.True(t, result.Converged)
	require.InDelta(t, trueA, result.Params[0], 1e-4)
	require.InDelta(t, trueB, result.Params[1], 1e-4)
}
