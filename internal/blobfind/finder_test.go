package blobfind

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func syntheticFrames(n, rows, cols int, cx, cy, cz, radius float64) [][]float64 {
	frames := make([][]float64, n)
	for f := 0; f < n; f++ {
		frame := make([]float64, rows*cols)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				dx, dy, dz := float64(c)-cx, float64(r)-cy, float64(f)-cz
				d2 := dx*dx + dy*dy + dz*dz
				if d2 <= radius*radius {
					frame[r*cols+c] = 100
				}
			}
		}
		frames[f] = frame
	}
	return frames
}

func TestFindRecoversSingleBlob(t *testing.T) {
	frames := syntheticFrames(8, 32, 32, 16, 16, 4, 3)
	p := Params{
		Kernel:        Box,
		OuterRadius:   2,
		Threshold:     10,
		MinComponents: 1,
		MaxComponents: 1e9,
		PeakScale:     1,
	}
	cands, err := Find(context.Background(), frames, 32, 32, p)
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	require.InDelta(t, 16, cands[0].Centre[0], 2)
	require.InDelta(t, 16, cands[0].Centre[1], 2)
}

func TestFindDiscardsUndersizedBlobs(t *testing.T) {
	frames := syntheticFrames(3, 16, 16, 8, 8, 1, 0.5)
	p := Params{
		Kernel:        Box,
		OuterRadius:   1,
		Threshold:     10,
		MinComponents: 1000,
		MaxComponents: 1e9,
		PeakScale:     1,
	}
	cands, err := Find(context.Background(), frames, 16, 16, p)
	require.NoError(t, err)
	require.Empty(t, cands)
}

func TestFindRejectsEmptyStack(t *testing.T) {
	_, err := Find(context.Background(), nil, 16, 16, Params{})
	require.Error(t, err)
}
