// Package refine implements the batched nonlinear least-squares refiner
// (spec §4.G): reduced-variable linear constraints via QR, a hand-rolled
// Levenberg-Marquardt solver, and the Ewald-crossing residual model tying
// a batch's parameters back to observed peak centres.
package refine

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/hklreduce/hklreduce/internal/xerr"
)

// Parameter is one live scalar the solver may adjust, addressed by index
// into an arena owned by the caller rather than by raw pointer (spec §9
// "solver ownership" design note).
type Parameter struct {
	Value    float64
	Original float64
}

// FitParameters holds the active parameter vector and, if linear equality
// constraints were supplied, the reduced-variable basis K (kernel of the
// constraint matrix C) and its projector P.
type FitParameters struct {
	Values []float64

	K *mat.Dense // n x r, orthonormal columns spanning {x : Cx = 0}
	P *mat.Dense // r x n, P = K^T since K has orthonormal columns
}

// NewFitParameters builds the reduced-variable scheme for the given live
// parameter values and an optional constraint matrix C (rows = equality
// constraints, cols = len(values)). C may be nil for an unconstrained fit.
func NewFitParameters(values []float64, c *mat.Dense) (*FitParameters, error) {
	fp := &FitParameters{Values: append([]float64(nil), values...)}
	if c == nil {
		n := len(values)
		k := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			k.Set(i, i, 1)
		}
		fp.K = k
		fp.P = mat.DenseCopyOf(k.T())
		return fp, nil
	}

	m, n := c.Dims()
	if n != len(values) {
		return nil, fmt.Errorf("%w: constraint matrix has %d columns, want %d", xerr.InvalidInput, n, len(values))
	}
	var qr mat.QR
	qr.Factorize(c.T())
	var q mat.Dense
	qr.QTo(&q)
	// The row space of C is spanned by the first m columns of Q (the
	// column space of C^T); its orthogonal complement -- the kernel of C
	// -- is spanned by the remaining columns.
	k := q.Slice(0, n, m, n)
	kd := mat.DenseCopyOf(k)
	fp.K = kd
	fp.P = mat.DenseCopyOf(kd.T())
	return fp, nil
}

// Reduced returns the reduced-variable vector y = P x for the current
// parameter values x.
func (fp *FitParameters) Reduced() []float64 {
	x := mat.NewVecDense(len(fp.Values), fp.Values)
	r, _ := fp.P.Dims()
	var y mat.VecDense
	y.MulVec(fp.P, x)
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = y.AtVec(i)
	}
	return out
}

// Expand pushes reduced variables y back to the live parameters: x = K y.
func (fp *FitParameters) Expand(y []float64) []float64 {
	yv := mat.NewVecDense(len(y), y)
	n, _ := fp.K.Dims()
	var x mat.VecDense
	x.MulVec(fp.K, yv)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = x.AtVec(i)
	}
	fp.Values = out
	return out
}

// Reset restores every parameter to its original value.
func (fp *FitParameters) Reset(original []float64) {
	fp.Values = append([]float64(nil), original...)
}
