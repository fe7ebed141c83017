package blobfind

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"gonum.org/v1/gonum/mat"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// Params bundles the blob finder's tunable inputs (spec §4.D).
type Params struct {
	Kernel        Shape
	InnerRadius   float64
	OuterRadius   float64
	Threshold     float64
	Relative      bool // threshold is relative to the frame's background mean
	MinComponents float64
	MaxComponents float64
	PeakScale     float64
	WorkerPoolSize int
}

// Candidate is one blob the finder produced: its fitted ellipsoid-forming
// inertia data plus the raw summed intensity, ready for the caller to
// build a peak.Peak from.
type Candidate struct {
	Centre        geom.Vec3
	SemiAxes      geom.Vec3
	Orientation   *mat.Dense
	Mass          float64
	RawIntensity  float64
}

// dsu is a small union-find over blob label ids, carrying a Blob3D
// accumulator per representative.
type dsu struct {
	parent []int
	blob   []*Blob3D
}

func newDSU() *dsu { return &dsu{} }

func (d *dsu) newLabel() int {
	d.parent = append(d.parent, len(d.parent))
	d.blob = append(d.blob, &Blob3D{})
	return len(d.parent) - 1
}

func (d *dsu) find(x int) int {
	for d.parent[x] != x {
		d.parent[x] = d.parent[d.parent[x]]
		x = d.parent[x]
	}
	return x
}

func (d *dsu) union(a, b int) {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return
	}
	d.blob[ra].Merge(d.blob[rb])
	d.parent[rb] = ra
}

// Find runs the blob finder over every frame of the stack and returns the
// surviving candidates (mass within [MinComponents, MaxComponents]).
// Frames are convolved in parallel (bounded by p.WorkerPoolSize, per
// spec §5's "blob finder is embarrassingly parallel per frame"); the
// cross-frame union-find pass itself is sequential since frame i's
// labelling requires frame i-1's labels to be fully resolved.
func Find(ctx context.Context, frames [][]float64, rows, cols int, p Params) ([]Candidate, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: empty frame stack", xerr.InvalidInput)
	}
	k, err := cachedKernel(p.Kernel, rows, cols, p.InnerRadius, p.OuterRadius)
	if err != nil {
		return nil, err
	}

	convolved := make([][]float64, len(frames))
	pool := p.WorkerPoolSize
	if pool < 1 {
		pool = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pool)
	for i := range frames {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			convolved[i] = Convolve2D(frames[i], rows, cols, k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: blob-finder convolution: %v", xerr.NumericalFailure, err)
	}

	d := newDSU()
	prevLabels := make([]int, rows*cols)
	for i := range prevLabels {
		prevLabels[i] = -1
	}

	for f := range convolved {
		labels := make([]int, rows*cols)
		for i := range labels {
			labels[i] = -1
		}
		threshold := p.Threshold
		if p.Relative {
			threshold = p.Threshold * meanOf(convolved[f])
		}
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				idx := r*cols + c
				v := convolved[f][idx]
				if v < threshold {
					continue
				}
				lbl := d.newLabel()
				d.blob[lbl].AddPoint(float64(c), float64(r), float64(f), v)
				labels[idx] = lbl

				if c > 0 && labels[idx-1] >= 0 {
					d.union(lbl, labels[idx-1])
				}
				if r > 0 && labels[idx-cols] >= 0 {
					d.union(d.find(labels[idx]), labels[idx-cols])
				}
				if prevLabels[idx] >= 0 {
					d.union(d.find(labels[idx]), prevLabels[idx])
				}
				labels[idx] = d.find(lbl)
			}
		}
		prevLabels = labels
		tracef("frame %d: %d above-threshold pixels", f, countAbove(labels))
	}

	var out []Candidate
	seenRoots := make(map[int]bool)
	for i := range d.parent {
		root := d.find(i)
		if seenRoots[root] {
			continue
		}
		seenRoots[root] = true
		blob := d.blob[root]
		if blob.M0 < p.MinComponents || blob.M0 > p.MaxComponents {
			continue
		}
		cand, err := blobToEllipsoid(blob, p.PeakScale)
		if err != nil {
			opsf("blob at root %d: %v", root, err)
			continue
		}
		out = append(out, cand)
	}
	diagf("find: %d candidates from %d frames", len(out), len(frames))
	sort.Slice(out, func(i, j int) bool { return out[i].Mass > out[j].Mass })
	return out, nil
}

func meanOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func countAbove(labels []int) int {
	n := 0
	for _, l := range labels {
		if l >= 0 {
			n++
		}
	}
	return n
}

// blobToEllipsoid converts a finished Blob3D accumulator to an ellipsoid
// candidate per spec §4.D's post-pass: centre = M1/M0; inertia tensor =
// M2/M0 - centre.centre^T; semi-axes/orientation from the symmetric
// eigendecomposition of the inertia tensor, scaled by peakScale.
//
// Negative eigenvalues: per the Open Question resolution in DESIGN.md, an
// eigenvalue more negative than -1e-9*trace is NumericalFailure; smaller
// negative noise is clamped to 0 before the sqrt.
func blobToEllipsoid(b *Blob3D, peakScale float64) (Candidate, error) {
	if b.M0 <= 0 {
		return Candidate{}, fmt.Errorf("%w: zero-mass blob", xerr.NumericalFailure)
	}
	centre := b.Centre()
	inertia := b.InertiaTensor()
	sym := mat.NewSymDense(3, nil)
	var trace float64
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			sym.SetSym(i, j, inertia[i][j])
		}
		trace += inertia[i][i]
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return Candidate{}, fmt.Errorf("%w: inertia tensor eigendecomposition failed", xerr.NumericalFailure)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	var semiAxes geom.Vec3
	for i, v := range values {
		if v < -1e-9*trace {
			return Candidate{}, fmt.Errorf("%w: inertia tensor eigenvalue %v is meaningfully negative", xerr.NumericalFailure, v)
		}
		if v < 0 {
			v = 0
		}
		semiAxes[i] = peakScale * sqrtSafe(v)
	}

	return Candidate{
		Centre:       geom.Vec3{centre[0], centre[1], centre[2]},
		SemiAxes:     semiAxes,
		Orientation:  &vectors,
		Mass:         b.M0,
		RawIntensity: b.M0,
	}, nil
}

func sqrtSafe(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
