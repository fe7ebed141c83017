// Package indexer implements the direction-sphere FFT autoindexer (spec
// §4.F): sample unit vectors on the sphere, histogram q-projections along
// each, FFT the histogram to recover a candidate direct-lattice length,
// then reduce the best triples to a Niggli/Gruber-classified unit cell.
package indexer

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// Candidate is one direct-lattice vector recovered along a sampled
// direction, with its spectral amplitude as a quality score.
type Candidate struct {
	Vector  geom.Vec3
	Quality float64
}

// SampleSphere returns n unit vectors distributed near-uniformly on the
// sphere using the Fibonacci spiral, the simplest near-uniform sampling
// that needs no recursive subdivision bookkeeping (spec step 1's
// "Fibonacci or icosahedral subdivision").
func SampleSphere(n int) []geom.Vec3 {
	if n <= 0 {
		return nil
	}
	out := make([]geom.Vec3, n)
	goldenAngle := math.Pi * (3 - math.Sqrt(5))
	for i := 0; i < n; i++ {
		y := 1 - 2*float64(i)/float64(n-1+boolToInt(n == 1))
		radius := math.Sqrt(math.Max(0, 1-y*y))
		theta := goldenAngle * float64(i)
		out[i] = geom.Vec3{math.Cos(theta) * radius, y, math.Sin(theta) * radius}
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// FindDirections implements spec §4.F steps 1-2: for each of nVertices
// sampled directions, project every q onto it, histogram the projections
// with bin width 1/(subdiv*maxdim), FFT the histogram and report the
// first spectral peak past bin subdiv/2 whose amplitude is at least 0.7x
// the DC term, as a candidate direct-lattice length along that direction.
func FindDirections(qs []geom.Vec3, nVertices, subdiv int, maxdim float64) ([]Candidate, error) {
	if len(qs) == 0 {
		return nil, fmt.Errorf("%w: no observed q-vectors", xerr.InvalidInput)
	}
	if subdiv < 2 || maxdim <= 0 {
		return nil, fmt.Errorf("%w: invalid indexer histogram parameters", xerr.InvalidInput)
	}

	directions := SampleSphere(nVertices)
	binWidth := 1 / (float64(subdiv) * maxdim)

	var out []Candidate
	for _, n := range directions {
		var qmax float64
		proj := make([]float64, len(qs))
		for i, q := range qs {
			p := q.Dot(n)
			proj[i] = p
			if math.Abs(p) > qmax {
				qmax = math.Abs(p)
			}
		}
		if qmax == 0 {
			continue
		}
		nBins := int(math.Ceil(2*qmax/binWidth)) + 1
		if nBins < subdiv {
			nBins = subdiv
		}
		hist := make([]float64, nBins)
		for _, p := range proj {
			bin := int((p + qmax) / binWidth)
			if bin < 0 {
				bin = 0
			}
			if bin >= nBins {
				bin = nBins - 1
			}
			hist[bin]++
		}

		fft := fourier.NewFFT(nBins)
		coeffs := fft.Coefficients(nil, hist)
		dc := math.Abs(coeffsAbs(coeffs[0]))
		if dc == 0 {
			continue
		}
		start := subdiv / 2
		found := false
		for k := start; k < len(coeffs); k++ {
			amp := coeffsAbs(coeffs[k])
			if amp >= 0.7*dc {
				length := float64(k) * float64(subdiv) * maxdim / float64(nBins)
				out = append(out, Candidate{Vector: n.Scale(length), Quality: amp})
				found = true
				break
			}
		}
		if !found {
			continue
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quality > out[j].Quality })
	return out, nil
}

func coeffsAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// NonCoplanarTriples scans candidates in descending quality order and
// returns up to nSolutions groups of three mutually non-coplanar vectors
// whose spanned volume is at least minVolume (spec step 3).
func NonCoplanarTriples(candidates []Candidate, nSolutions int, minVolume float64) ([][3]geom.Vec3, error) {
	if len(candidates) < 3 {
		return nil, fmt.Errorf("%w: fewer than 3 direction candidates", xerr.InvalidInput)
	}
	var triples [][3]geom.Vec3
	for i := 0; i < len(candidates) && len(triples) < nSolutions; i++ {
		for j := i + 1; j < len(candidates) && len(triples) < nSolutions; j++ {
			for k := j + 1; k < len(candidates) && len(triples) < nSolutions; k++ {
				a, b, c := candidates[i].Vector, candidates[j].Vector, candidates[k].Vector
				vol := math.Abs(a.Dot(b.Cross(c)))
				if vol >= minVolume {
					triples = append(triples, [3]geom.Vec3{a, b, c})
				}
			}
		}
	}
	if len(triples) == 0 {
		return nil, fmt.Errorf("%w: no non-coplanar triple meets minimum volume", xerr.InvalidInput)
	}
	return triples, nil
}
