package xdata

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hklreduce/hklreduce/internal/instrument"
)

func simpleDataSet(n int) *DataSet {
	states := make(instrument.StateSequence, n)
	for i := range states {
		c, s := math.Cos(0.05*float64(i)), math.Sin(0.05*float64(i))
		states[i] = instrument.State{
			SampleOrientation:   instrument.QuaternionFromRotation([9]float64{c, 0, s, 0, 1, 0, -s, 0, c}),
			DetectorOrientation: instrument.Quaternion{1, 0, 0, 0},
			BeamDirection:       [3]float64{0, 0, 1},
			Wavelength:          1.0,
		}
	}
	return &DataSet{
		Name:     "test",
		Detector: instrument.Detector{Kind: instrument.Flat, NRows: 100, NCols: 100, Width: 200, Height: 200, SampleDistance: 500},
		States:   states,
		Frames:   &MemoryFrameSource{Frames: make([]Frame, n)},
	}
}

func TestDetectorEventOutOfRange(t *testing.T) {
	d := simpleDataSet(5)
	_, err := d.DetectorEvent(50, 50, 0)
	require.NoError(t, err)
	_, err = d.Frame(10)
	require.Error(t, err)
}

func TestEventsForFindsCrossing(t *testing.T) {
	d := simpleDataSet(10)
	q, err := d.DetectorEvent(60, 50, 2)
	require.NoError(t, err)
	roots, err := d.EventsFor(q)
	require.NoError(t, err)
	require.NotEmpty(t, roots)
}
