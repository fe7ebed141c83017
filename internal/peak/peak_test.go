package peak

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/instrument"
)

func testDetector() instrument.Detector {
	return instrument.Detector{Kind: instrument.Flat, NRows: 256, NCols: 256, Width: 400, Height: 400, SampleDistance: 500}
}

func testState() instrument.State {
	return instrument.State{
		SampleOrientation:   instrument.Quaternion{1, 0, 0, 0},
		DetectorOrientation: instrument.Quaternion{1, 0, 0, 0},
		BeamDirection:       geom.Vec3{0, 0, 1},
		Wavelength:          1.0,
		Axis:                geom.Vec3{0, 1, 0},
		StepSize:            0.1,
	}
}

func TestStandardFrameTransformAtOriginIsZero(t *testing.T) {
	sf, err := NewStandardFrame(testDetector(), testState(), 140, 140, 3)
	require.NoError(t, err)
	eps, err := sf.Transform(140, 140, 3)
	require.NoError(t, err)
	require.InDelta(t, 0, eps[0], 1e-9)
	require.InDelta(t, 0, eps[1], 1e-9)
	require.InDelta(t, 0, eps[2], 1e-9)
}

func TestStandardFrameJacobianMatchesFiniteDifference(t *testing.T) {
	sf, err := NewStandardFrame(testDetector(), testState(), 150, 120, 5)
	require.NoError(t, err)
	j := sf.Jacobian()

	h := 1e-3
	base, err := sf.Transform(150, 120, 5)
	require.NoError(t, err)

	dpx, err := sf.Transform(150+h, 120, 5)
	require.NoError(t, err)
	dpy, err := sf.Transform(150, 120+h, 5)
	require.NoError(t, err)
	df, err := sf.Transform(150, 120, 5+h)
	require.NoError(t, err)

	for row := 0; row < 3; row++ {
		fdPx := (dpx[row] - base[row]) / h
		fdPy := (dpy[row] - base[row]) / h
		fdF := (df[row] - base[row]) / h
		require.InDelta(t, fdPx, j.At(row, 0), math.Max(1e-2, 0.01*math.Abs(fdPx)))
		require.InDelta(t, fdPy, j.At(row, 1), math.Max(1e-2, 0.01*math.Abs(fdPy)))
		require.InDelta(t, fdF, j.At(row, 2), math.Max(1e-2, 0.01*math.Abs(fdF)))
	}
}

func TestLorentzFactorSingularNearZero(t *testing.T) {
	_, err := Lorentz(geom.Vec3{0, 0, 1})
	require.Error(t, err)
}

func TestLorentzFactorFinite(t *testing.T) {
	v, err := Lorentz(geom.Vec3{1, 0, 1})
	require.NoError(t, err)
	require.Greater(t, v, 0.0)
}
