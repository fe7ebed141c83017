package refine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/hklreduce/hklreduce/internal/xerr"
)

// ResidualFunc evaluates the residual vector at a parameter vector.
type ResidualFunc func(params []float64) ([]float64, error)

// JacobianFunc evaluates the analytic Jacobian (rows = residuals, cols =
// parameters) at a parameter vector. May be nil, in which case
// LevenbergMarquardt falls back to forward-difference numerical
// differentiation (spec §4.G "if df is absent").
type JacobianFunc func(params []float64) (*mat.Dense, error)

// Options configures convergence and iteration limits for the solver.
type Options struct {
	XTol    float64
	GTol    float64
	FTol    float64
	MaxIter int
}

// Result is the outcome of one Levenberg-Marquardt fit.
type Result struct {
	Params      []float64
	Converged   bool
	Iterations  int
	Cost        float64
	Trace       []float64 // cost at each accepted step
	Covariance  *mat.Dense
}

// LevenbergMarquardt fits params to minimize 0.5*||resid(params)||^2, per
// spec §4.G: terminates on relative parameter tolerance (xtol), gradient
// tolerance (gtol), residual tolerance (ftol), or maxIter iterations. On
// success the variance-covariance matrix is (J^T J)^-1.
func LevenbergMarquardt(x0 []float64, resid ResidualFunc, jac JacobianFunc, opts Options) (*Result, error) {
	n := len(x0)
	x := append([]float64(nil), x0...)

	r, err := resid(x)
	if err != nil {
		return nil, err
	}
	cost := sumSquares(r) / 2

	if jac == nil {
		jac = func(p []float64) (*mat.Dense, error) { return numericalJacobian(p, resid) }
	}

	lambda := 1e-3
	trace := []float64{cost}

	for iter := 0; iter < opts.MaxIter; iter++ {
		J, err := jac(x)
		if err != nil {
			return nil, err
		}
		m, _ := J.Dims()
		rv := mat.NewVecDense(m, r)

		var jt mat.Dense
		jt.CloneFrom(J.T())
		var jtj mat.Dense
		jtj.Mul(&jt, J)
		var jtr mat.VecDense
		jtr.MulVec(&jt, rv)

		if vecInfNorm(&jtr) < opts.GTol {
			return finish(x, cost, iter, trace, &jtj, true), nil
		}

		accepted := false
		for try := 0; try < 20; try++ {
			damped := mat.DenseCopyOf(&jtj)
			for i := 0; i < n; i++ {
				damped.Set(i, i, damped.At(i, i)*(1+lambda))
			}
			var neg mat.VecDense
			neg.ScaleVec(-1, &jtr)
			var delta mat.VecDense
			if err := delta.SolveVec(damped, &neg); err != nil {
				lambda *= 10
				continue
			}

			trial := make([]float64, n)
			var dxNorm, xNorm float64
			for i := range trial {
				trial[i] = x[i] + delta.AtVec(i)
				dxNorm += delta.AtVec(i) * delta.AtVec(i)
				xNorm += x[i] * x[i]
			}
			rTrial, err := resid(trial)
			if err != nil {
				lambda *= 10
				continue
			}
			costTrial := sumSquares(rTrial) / 2

			if costTrial < cost {
				relF := math.Abs(cost-costTrial) / math.Max(cost, 1e-300)
				relX := math.Sqrt(dxNorm) / math.Max(math.Sqrt(xNorm), 1e-300)
				x, r, cost = trial, rTrial, costTrial
				lambda = math.Max(lambda/10, 1e-12)
				trace = append(trace, cost)
				accepted = true
				if relF < opts.FTol || relX < opts.XTol {
					return finish(x, cost, iter+1, trace, &jtj, true), nil
				}
				break
			}
			lambda *= 10
		}
		if !accepted {
			return finish(x, cost, iter, trace, &jtj, false), fmt.Errorf("%w: no accepted step at iteration %d", xerr.NotConverged, iter)
		}
	}
	return finish(x, cost, opts.MaxIter, trace, nil, false), fmt.Errorf("%w: reached maxIter=%d without convergence", xerr.NotConverged, opts.MaxIter)
}

func finish(x []float64, cost float64, iter int, trace []float64, jtj *mat.Dense, converged bool) *Result {
	res := &Result{Params: x, Converged: converged, Iterations: iter, Cost: cost, Trace: trace}
	if jtj != nil {
		n, _ := jtj.Dims()
		var cov mat.Dense
		if err := cov.Inverse(jtj); err == nil {
			res.Covariance = &cov
		} else {
			res.Covariance = mat.NewDense(n, n, nil)
		}
	}
	return res
}

func sumSquares(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}

func vecInfNorm(v *mat.VecDense) float64 {
	var m float64
	for i := 0; i < v.Len(); i++ {
		if a := math.Abs(v.AtVec(i)); a > m {
			m = a
		}
	}
	return m
}

func numericalJacobian(x []float64, resid ResidualFunc) (*mat.Dense, error) {
	r0, err := resid(x)
	if err != nil {
		return nil, err
	}
	m, n := len(r0), len(x)
	j := mat.NewDense(m, n, nil)
	h := 1e-6
	for col := 0; col < n; col++ {
		xp := append([]float64(nil), x...)
		step := h * math.Max(1, math.Abs(x[col]))
		xp[col] += step
		rp, err := resid(xp)
		if err != nil {
			return nil, err
		}
		for row := 0; row < m; row++ {
			j.Set(row, col, (rp[row]-r0[row])/step)
		}
	}
	return j, nil
}
