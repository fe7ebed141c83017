package xtal

import "gonum.org/v1/gonum/mat"

// ShapeLibrary maps a Miller index to the mean peak metric observed for
// it in the peak-local standard frame, plus a global default metric used
// when no neighbours are on file. The predictor (§4.H) queries this to
// assign shapes to reflections that have never been directly observed.
type ShapeLibrary struct {
	byHKL   map[[3]int]*mat.SymDense
	Default *mat.SymDense
}

// NewShapeLibrary returns an empty library with the given default metric.
func NewShapeLibrary(def *mat.SymDense) *ShapeLibrary {
	return &ShapeLibrary{byHKL: make(map[[3]int]*mat.SymDense), Default: def}
}

// Put records (or overwrites) the metric observed for hkl.
func (s *ShapeLibrary) Put(hkl [3]int, metric *mat.SymDense) {
	s.byHKL[hkl] = metric
}

// Lookup returns the metric on file for hkl, if any.
func (s *ShapeLibrary) Lookup(hkl [3]int) (*mat.SymDense, bool) {
	m, ok := s.byHKL[hkl]
	return m, ok
}

// Neighbours returns every (hkl, metric) pair within ell-2 radius of hkl
// (in integer Miller-index space) for use by the predictor's
// inverse-distance/mean interpolation modes.
func (s *ShapeLibrary) Neighbours(hkl [3]int, radius float64) []HKLMetric {
	var out []HKLMetric
	r2 := radius * radius
	for k, m := range s.byHKL {
		dh := float64(k[0] - hkl[0])
		dk := float64(k[1] - hkl[1])
		dl := float64(k[2] - hkl[2])
		d2 := dh*dh + dk*dk + dl*dl
		if d2 <= r2 {
			out = append(out, HKLMetric{HKL: k, Metric: m, Dist2: d2})
		}
	}
	return out
}

// HKLMetric pairs a Miller index with its recorded standard-frame metric
// and the squared distance used to rank it during interpolation.
type HKLMetric struct {
	HKL    [3]int
	Metric *mat.SymDense
	Dist2  float64
}

// Interpolation selects how Neighbours' metrics combine into one estimate.
type Interpolation int

const (
	Nearest Interpolation = iota
	InverseDistance
	Mean
)

// Combine merges the given neighbour metrics per the selected
// interpolation mode. Callers should fall back to s.Default when len(ns)
// is below the predictor's minNeighbours threshold.
func Combine(ns []HKLMetric, mode Interpolation) *mat.SymDense {
	switch mode {
	case Nearest:
		best := ns[0]
		for _, n := range ns[1:] {
			if n.Dist2 < best.Dist2 {
				best = n
			}
		}
		return best.Metric
	case InverseDistance:
		return weightedMean(ns, func(d2 float64) float64 {
			if d2 < 1e-12 {
				return 1e12
			}
			return 1 / d2
		})
	default: // Mean
		return weightedMean(ns, func(float64) float64 { return 1 })
	}
}

func weightedMean(ns []HKLMetric, weight func(float64) float64) *mat.SymDense {
	out := mat.NewSymDense(3, nil)
	var total float64
	for _, n := range ns {
		w := weight(n.Dist2)
		total += w
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				out.SetSym(i, j, out.At(i, j)+w*n.Metric.At(i, j))
			}
		}
	}
	if total == 0 {
		return out
	}
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			out.SetSym(i, j, out.At(i, j)/total)
		}
	}
	return out
}
