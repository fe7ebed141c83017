package predict

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/instrument"
	"github.com/hklreduce/hklreduce/internal/xdata"
	"github.com/hklreduce/hklreduce/internal/xtal"
)

func testDataSet(n int) *xdata.DataSet {
	states := make(instrument.StateSequence, n)
	for i := range states {
		states[i] = instrument.State{
			SampleOrientation:   instrument.Quaternion{math.Cos(0.025 * float64(i)), 0, math.Sin(0.025 * float64(i)), 0},
			DetectorOrientation: instrument.Quaternion{1, 0, 0, 0},
			BeamDirection:       geom.Vec3{0, 0, 1},
			Wavelength:          2.0,
		}
	}
	return &xdata.DataSet{
		Detector: instrument.Detector{Kind: instrument.Flat, NRows: 200, NCols: 200, Width: 400, Height: 400, SampleDistance: 500},
		States:   states,
		Frames:   &xdata.MemoryFrameSource{Frames: make([]xdata.Frame, n)},
	}
}

func TestPredictProducesLinkedPeaks(t *testing.T) {
	cell, err := xtal.NewUnitCell([9]float64{20, 0, 0, 0, 20, 0, 0, 0, 20}, 0.05)
	require.NoError(t, err)
	lib := xtal.NewShapeLibrary(mat.NewSymDense(3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}))
	data := testDataSet(20)

	peaks, err := Predict(cell, lib, data, 3, Params{DMin: 2, DMax: 15, Radius: 1, MinNeighbours: 0})
	require.NoError(t, err)
	require.NotEmpty(t, peaks)
	for _, p := range peaks {
		require.True(t, p.Indexed)
		require.NotNil(t, p.Cell)
	}
}
