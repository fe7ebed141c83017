package integrate

import (
	"math"

	"github.com/hklreduce/hklreduce/internal/refine"
)

// ProfileCutoff is the result of the sigma/I radial cutoff search (spec
// §4.I "Profile cutoff").
type ProfileCutoff struct {
	Bin        int
	Radius     float64
	Intensity  float64
	Variance   float64
	SigmaOverI float64
}

// profileCutoff accumulates the radial histogram into a cumulative net
// signal at each bin boundary and picks the bin minimizing sigma(I_k)/I_k.
func profileCutoff(radialSignal, radialCounts []float64, bkgMean, bkgMeanVar, binWidth float64) *ProfileCutoff {
	best := &ProfileCutoff{SigmaOverI: math.Inf(1)}
	var cumSignal, cumCount float64
	for k := range radialSignal {
		cumSignal += radialSignal[k]
		cumCount += radialCounts[k]
		net := cumSignal - bkgMean*cumCount
		if net <= 0 {
			continue
		}
		variance := cumSignal + cumCount*cumCount*bkgMeanVar
		sigmaOverI := math.Sqrt(variance) / net
		if sigmaOverI < best.SigmaOverI {
			best = &ProfileCutoff{
				Bin:        k,
				Radius:     float64(k+1) * binWidth,
				Intensity:  net,
				Variance:   variance,
				SigmaOverI: sigmaOverI,
			}
		}
	}
	if math.IsInf(best.SigmaOverI, 1) {
		return nil
	}
	return best
}

// GaussianParams is the 3-D Gaussian profile model I(x) = A exp(-1/2 (x-c)^T D (x-c)) + B,
// with D given by its six upper-triangular entries (spec §4.I "Profile fit").
type GaussianParams struct {
	A, B float64
	C    [3]float64
	D    [6]float64 // Dxx, Dxy, Dxz, Dyy, Dyz, Dzz
}

// vectorize flattens the parameter set to the 11-element vector the LM
// solver operates on: A, B, cx, cy, cz, Dxx, Dxy, Dxz, Dyy, Dyz, Dzz.
func (g GaussianParams) vectorize() []float64 {
	return []float64{g.A, g.B, g.C[0], g.C[1], g.C[2], g.D[0], g.D[1], g.D[2], g.D[3], g.D[4], g.D[5]}
}

func gaussianFromVector(x []float64) GaussianParams {
	return GaussianParams{
		A: x[0], B: x[1],
		C: [3]float64{x[2], x[3], x[4]},
		D: [6]float64{x[5], x[6], x[7], x[8], x[9], x[10]},
	}
}

func (g GaussianParams) eval(p [3]float64) float64 {
	d := [3]float64{p[0] - g.C[0], p[1] - g.C[1], p[2] - g.C[2]}
	q := d[0]*d[0]*g.D[0] + 2*d[0]*d[1]*g.D[1] + 2*d[0]*d[2]*g.D[2] +
		d[1]*d[1]*g.D[3] + 2*d[1]*d[2]*g.D[4] + d[2]*d[2]*g.D[5]
	return g.A*math.Exp(-0.5*q) + g.B
}

// MethodOfMomentsGuess returns an initial GaussianParams estimate from
// sample mean/variance of the ROI, the spec's "initial guess from
// method-of-moments" for the profile fit.
func MethodOfMomentsGuess(samples []VoxelSample) GaussianParams {
	var total, bMin float64
	var c [3]float64
	bMin = math.Inf(1)
	for _, s := range samples {
		total += s.Count
		if s.Count < bMin {
			bMin = s.Count
		}
		c[0] += s.Count * s.Position[0]
		c[1] += s.Count * s.Position[1]
		c[2] += s.Count * s.Position[2]
	}
	if total <= 0 {
		return GaussianParams{A: 1, B: 0, D: [6]float64{1, 0, 0, 1, 0, 1}}
	}
	c[0] /= total
	c[1] /= total
	c[2] /= total

	var varX, varY, varZ float64
	for _, s := range samples {
		dx, dy, dz := s.Position[0]-c[0], s.Position[1]-c[1], s.Position[2]-c[2]
		varX += s.Count * dx * dx
		varY += s.Count * dy * dy
		varZ += s.Count * dz * dz
	}
	varX, varY, varZ = varX/total, varY/total, varZ/total
	inv := func(v float64) float64 {
		if v <= 1e-9 {
			return 1
		}
		return 1 / v
	}
	peak := total / float64(len(samples))
	return GaussianParams{
		A: math.Max(peak-bMin, 1e-6),
		B: bMin,
		C: c,
		D: [6]float64{inv(varX), 0, 0, inv(varY), 0, inv(varZ)},
	}
}

// FitGaussianProfile fits the 3-D Gaussian profile model to samples by
// Levenberg-Marquardt, starting from guess (spec §4.I "Profile fit").
// Good-fit heuristics (positive-definite D, A>0) are left for the caller
// to check against the returned parameters, since "threshold" for
// acceptable chi-squared-per-pixel is a deployment choice, not a spec
// constant.
func FitGaussianProfile(samples []VoxelSample, guess GaussianParams, opts refine.Options) (GaussianParams, *refine.Result, error) {
	resid := func(x []float64) ([]float64, error) {
		g := gaussianFromVector(x)
		r := make([]float64, len(samples))
		for i, s := range samples {
			r[i] = g.eval([3]float64{s.Position[0], s.Position[1], s.Position[2]}) - s.Count
		}
		return r, nil
	}
	result, err := refine.LevenbergMarquardt(guess.vectorize(), resid, nil, opts)
	if result == nil {
		return GaussianParams{}, nil, err
	}
	return gaussianFromVector(result.Params), result, err
}
