package integrate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hklreduce/hklreduce/internal/geom"
)

func TestClassifyRegions(t *testing.T) {
	s := Scales{PeakEnd: 1, BkgBegin: 2, BkgEnd: 3}
	require.Equal(t, Peak, Classify(0.5, s, false))
	require.Equal(t, Forbidden, Classify(2.5, s, false))
	require.Equal(t, Background, Classify(5, s, false))
	require.Equal(t, Excluded, Classify(10, s, false))
	require.Equal(t, Forbidden, Classify(0.1, s, true))
}

func TestScalesValidation(t *testing.T) {
	require.Error(t, Scales{PeakEnd: 2, BkgBegin: 1, BkgEnd: 3}.validate())
	require.NoError(t, Scales{PeakEnd: 1, BkgBegin: 1, BkgEnd: 2}.validate())
}

func TestIntegrateSeparatesSignalFromBackground(t *testing.T) {
	shape, err := geom.NewEllipsoid(geom.Vec3{0, 0, 0}, [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	require.NoError(t, err)

	var samples []VoxelSample
	for i := 0; i < 20; i++ {
		samples = append(samples, VoxelSample{Position: geom.Vec3{0, 0, 0}, Count: 100})
	}
	for i := 0; i < 50; i++ {
		samples = append(samples, VoxelSample{Position: geom.Vec3{2.5, 0, 0}, Count: 10})
	}

	res, err := Integrate(shape, samples, Scales{PeakEnd: 1, BkgBegin: 2, BkgEnd: 3}, 1.5, 5)
	require.NoError(t, err)
	require.Greater(t, res.Intensity, 1500.0)
	require.Equal(t, 20, res.NPeakPixels)
	require.Equal(t, 50, res.NBkgPixels)
}

func TestMethodOfMomentsGuessNonDegenerate(t *testing.T) {
	samples := []VoxelSample{
		{Position: geom.Vec3{0, 0, 0}, Count: 100},
		{Position: geom.Vec3{1, 0, 0}, Count: 50},
		{Position: geom.Vec3{-1, 0, 0}, Count: 50},
		{Position: geom.Vec3{0, 1, 0}, Count: 50},
		{Position: geom.Vec3{0, -1, 0}, Count: 50},
	}
	guess := MethodOfMomentsGuess(samples)
	require.Greater(t, guess.A, 0.0)
}
