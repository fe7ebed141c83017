package refine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/peak"
	"github.com/hklreduce/hklreduce/internal/xdata"
	"github.com/hklreduce/hklreduce/internal/xerr"
	"github.com/hklreduce/hklreduce/internal/xtal"
)

// ParamKind names the six parameter classes a batch may activate (spec
// §4.G). Refine fits only ParamBasis (the 9 entries of the direct basis);
// the other kinds are recorded in Batch.Active but add no parameters to
// the fit.
type ParamKind int

const (
	ParamBasis ParamKind = iota
	ParamSamplePosition
	ParamSampleOrientation
	ParamDetectorPosition
	ParamBeamDirection
	ParamWavelength
)

// Batch owns one contiguous frame window of a numor: its unit cell, the
// indexed peaks whose centres fall in the window, the data set supplying
// instrument states, which parameter kinds are active, and the resulting
// fit trace.
type Batch struct {
	Cell      *xtal.UnitCell
	Peaks     []*peak.Peak
	Data      *xdata.DataSet
	FrameLo   float64
	FrameHi   float64
	Active    map[ParamKind]bool
	Converged bool
	Trace     []float64
}

// NewBatch partitions peaks by frame window (spec §4.G: "partitions a
// numor's frame range into nBatches contiguous batches by peak-centre
// frame").
func NewBatch(cell *xtal.UnitCell, allPeaks []*peak.Peak, data *xdata.DataSet, frameLo, frameHi float64, active map[ParamKind]bool) *Batch {
	var subset []*peak.Peak
	for _, p := range allPeaks {
		if p.Indexed && p.Frame >= frameLo && p.Frame < frameHi {
			subset = append(subset, p)
		}
	}
	return &Batch{Cell: cell, Peaks: subset, Data: data, FrameLo: frameLo, FrameHi: frameHi, Active: active}
}

// PartitionBatches splits a numor into nBatches contiguous, equal-width
// frame windows spanning [0, nFrames).
func PartitionBatches(cell *xtal.UnitCell, allPeaks []*peak.Peak, data *xdata.DataSet, nFrames, nBatches int, active map[ParamKind]bool) ([]*Batch, error) {
	if nBatches < 1 {
		return nil, fmt.Errorf("%w: nBatches must be positive", xerr.InvalidInput)
	}
	width := float64(nFrames) / float64(nBatches)
	batches := make([]*Batch, nBatches)
	for i := 0; i < nBatches; i++ {
		lo := float64(i) * width
		hi := float64(i+1) * width
		batches[i] = NewBatch(cell, allPeaks, data, lo, hi, active)
	}
	return batches, nil
}

// residualVector computes (px - px_pred, py - py_pred, frame - frame_pred)
// for every peak in the batch, each scaled by the scalar weight
// weightFromMetric derives from the peak's ellipsoid metric (spec §4.G
// residual model), flattened into one slice.
func (b *Batch) residualVector() ([]float64, error) {
	var out []float64
	for _, p := range b.Peaks {
		qPred := b.Cell.HKLToQ(p.HKL)
		roots, err := b.Data.EventsFor(qPred)
		if err != nil || len(roots) == 0 {
			return nil, fmt.Errorf("%w: peak HKL %v produces no Ewald crossing under current parameters", xerr.NotConverged, p.HKL)
		}
		framePred := nearestRoot(roots, p.Frame)
		st, err := b.Data.States.At(framePred)
		if err != nil {
			return nil, err
		}
		kf := qPred.Add(st.Ki())
		pxPred, pyPred, err := b.Data.Detector.PixelFromDirection(kf)
		if err != nil {
			return nil, err
		}

		w := weightFromMetric(p.Shape)
		dpx, dpy, df := p.Px-pxPred, p.Py-pyPred, p.Frame-framePred
		out = append(out, w*dpx, w*dpy, w*df)
	}
	return out, nil
}

func nearestRoot(roots []float64, target float64) float64 {
	best, bestDist := roots[0], math.Abs(roots[0]-target)
	for _, r := range roots[1:] {
		if d := math.Abs(r - target); d < bestDist {
			best, bestDist = r, d
		}
	}
	return best
}

// weightFromMetric collapses the peak's 3x3 ellipsoid metric to a scalar
// weight, sqrt(det M)^(1/3) (the geometric mean of its eigenvalues'
// square roots): the residual vector mixes pixel and frame units, so a
// full matrix whitening would need a unit conversion the data model
// doesn't specify; the scalar keeps the spec's intent (tighter peaks
// weighted more) without inventing one.
func weightFromMetric(shape geom.Ellipsoid) float64 {
	m := shape.Metric()
	var lu mat.LU
	lu.Factorize(m)
	det := math.Abs(lu.Det())
	if det <= 0 {
		return 1
	}
	return math.Cbrt(math.Sqrt(det))
}
