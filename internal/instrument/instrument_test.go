package instrument

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/hklreduce/hklreduce/internal/geom"
)

func TestPixelPositionJacobian(t *testing.T) {
	d := Detector{Kind: Flat, NRows: 100, NCols: 100, Width: 200, Height: 200, SampleDistance: 500}
	px, py := 50.0, 50.0
	p0, err := d.PixelPosition(px, py)
	require.NoError(t, err)
	J := d.PixelJacobian(px, py)

	delta := 0.1
	p1, err := d.PixelPosition(px+delta, py)
	require.NoError(t, err)
	approx := geom.Vec3{p0[0] + J[0][0]*delta, p0[1] + J[1][0]*delta, p0[2] + J[2][0]*delta}
	diff := p1.Sub(approx).Norm()
	require.Less(t, diff, 1e-9)
}

func TestGoniometerZeroAngleIsIdentity(t *testing.T) {
	g := Goniometer{Axes: []Axis{
		{Name: "omega", Kind: Rotational, Direction: geom.Vec3{0, 1, 0}, Angle: 0},
	}}
	tr := g.Transform()
	for i := 0; i < 3; i++ {
		require.InDelta(t, boolToF(i == 0), tr.At(i, 0), 1e-9)
	}
}

func boolToF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func TestSlerpEndpoints(t *testing.T) {
	a := Quaternion{1, 0, 0, 0}
	b := QuaternionFromRotation([9]float64{0, -1, 0, 1, 0, 0, 0, 0, 1})
	require.InDelta(t, 1.0, dotQ(Slerp(a, b, 0), a), 1e-9)
}

func TestPixelFromDirectionRoundTrip(t *testing.T) {
	d := Detector{Kind: Flat, NRows: 100, NCols: 100, Width: 200, Height: 200, SampleDistance: 500}
	px, py := 63.0, 21.0
	p, err := d.PixelPosition(px, py)
	require.NoError(t, err)
	rpx, rpy, err := d.PixelFromDirection(p)
	require.NoError(t, err)
	require.InDelta(t, px, rpx, 1e-9)
	require.InDelta(t, py, rpy, 1e-9)
}

func TestPixelFromDirectionRoundTripCylindrical(t *testing.T) {
	d := Detector{Kind: Cylindrical, NRows: 100, NCols: 100, Width: 1.2, Height: 200, SampleDistance: 500}
	px, py := 40.0, 72.0
	p, err := d.PixelPosition(px, py)
	require.NoError(t, err)
	rpx, rpy, err := d.PixelFromDirection(p)
	require.NoError(t, err)
	require.InDelta(t, px, rpx, 1e-9)
	require.InDelta(t, py, rpy, 1e-9)
}
