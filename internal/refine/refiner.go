package refine

import (
	"fmt"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/xerr"
	"github.com/hklreduce/hklreduce/internal/xtal"
)

// Refine fits the batch's active parameters to minimize the Ewald-crossing
// residual (spec §4.G). Of the six declared ParamKind classes, only
// ParamBasis (the direct-basis matrix A, 9 reals) enters the solved
// parameter vector. The per-state kinds (sample/detector/beam offsets and
// per-state wavelength, kinds 1-5) are accepted as Active-map entries but
// add no parameters to the residual closure; the instrument states in
// b.Data are not refined.
func Refine(b *Batch, opts Options) (*Result, error) {
	if !b.Active[ParamBasis] {
		return nil, fmt.Errorf("%w: batch has no active parameters wired for refinement", xerr.InvalidInput)
	}
	if len(b.Peaks) == 0 {
		return nil, fmt.Errorf("%w: batch has no indexed peaks in its frame window", xerr.InvalidInput)
	}

	x0 := basisVector(b.Cell)
	resid := func(x []float64) ([]float64, error) {
		trialCell, err := cellFromVector(x, b.Cell.IndexingTol)
		if err != nil {
			return nil, err
		}
		trial := &Batch{Cell: trialCell, Peaks: b.Peaks, Data: b.Data}
		return trial.residualVector()
	}

	result, err := LevenbergMarquardt(x0, resid, nil, opts)
	if result != nil {
		b.Trace = result.Trace
		b.Converged = result.Converged
	}
	if err != nil {
		return result, err
	}
	newCell, cellErr := cellFromVector(result.Params, b.Cell.IndexingTol)
	if cellErr != nil {
		return result, cellErr
	}
	b.Cell = newCell
	diagf("batch [%v,%v): converged=%v cost=%v iterations=%d", b.FrameLo, b.FrameHi, b.Converged, result.Cost, result.Iterations)
	return result, nil
}

func basisVector(cell *xtal.UnitCell) []float64 {
	x := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			x[i*3+j] = cell.A.At(i, j)
		}
	}
	return x
}

func cellFromVector(x []float64, tol float64) (*xtal.UnitCell, error) {
	var a [9]float64
	copy(a[:], x)
	return xtal.NewUnitCell(a, tol)
}

// UpdatePredictions re-predicts each peak's centre from the batch's fit
// UB and instrument states, replacing the peak's shape centre and
// unselecting any peak whose prediction no longer produces an Ewald
// crossing (spec §4.G).
func UpdatePredictions(b *Batch) {
	for _, p := range b.Peaks {
		qPred := b.Cell.HKLToQ(p.HKL)
		roots, err := b.Data.EventsFor(qPred)
		if err != nil || len(roots) == 0 {
			p.Selected = false
			continue
		}
		framePred := nearestRoot(roots, p.Frame)
		st, err := b.Data.States.At(framePred)
		if err != nil {
			p.Selected = false
			continue
		}
		kf := qPred.Add(st.Ki())
		pxPred, pyPred, err := b.Data.Detector.PixelFromDirection(kf)
		if err != nil {
			p.Selected = false
			continue
		}
		newCentre := geom.Vec3{pxPred, pyPred, framePred}
		p.Shape = p.Shape.Translate(newCentre.Sub(p.Shape.Centre))
		p.Px, p.Py, p.Frame = pxPred, pyPred, framePred
	}
}
