// Package xdata models the numor-level data stream: a lazy frame store
// plus the pixel<->q conversions that tie instrument state to reciprocal
// space (spec §4.C).
package xdata

import (
	"fmt"
	"math"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/instrument"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// Frame is one R x C matrix of non-negative photon counts.
type Frame struct {
	Rows, Cols int
	Counts     []float64 // row-major, len == Rows*Cols
}

// At returns the count at (row, col).
func (f Frame) At(row, col int) float64 {
	return f.Counts[row*f.Cols+col]
}

// FrameSource returns the i-th frame of a numor synchronously;
// implementations may memory-map or decode lazily and prefetch ahead, but
// must not block the caller beyond an ordinary read.
type FrameSource interface {
	Frame(i int) (Frame, error)
	NumFrames() int
}

// MemoryFrameSource is the in-memory FrameSource used by tests and the
// fake/test frame source the spec calls for in place of raw-image
// decoding (explicitly out of scope per §1).
type MemoryFrameSource struct {
	Frames []Frame
}

func (m *MemoryFrameSource) Frame(i int) (Frame, error) {
	if i < 0 || i >= len(m.Frames) {
		return Frame{}, fmt.Errorf("%w: frame %d outside numor (0..%d)", xerr.OutOfRange, i, len(m.Frames)-1)
	}
	return m.Frames[i], nil
}

func (m *MemoryFrameSource) NumFrames() int { return len(m.Frames) }

// DataSet owns the metadata, instrument-state sequence, detector and a
// lazy frame store for one numor.
type DataSet struct {
	Name     string
	Detector instrument.Detector
	States   instrument.StateSequence
	Frames   FrameSource
}

// Frame returns the i-th frame.
func (d *DataSet) Frame(i int) (Frame, error) { return d.Frames.Frame(i) }

// DetectorEvent computes the reciprocal-space q-vector observed at pixel
// (px, py) on frame f: q = kf - ki, with ki parallel to the interpolated
// beam direction scaled to 1/lambda and kf the ray from the sample
// through pixelPosition(px,py), scaled to |ki|, both rotated into the lab
// frame by the sample orientation's inverse (the detector events are
// expressed in the crystal-fixed frame by undoing the sample rotation).
func (d *DataSet) DetectorEvent(px, py, frame float64) (geom.Vec3, error) {
	st, err := d.States.At(frame)
	if err != nil {
		return geom.Vec3{}, err
	}
	p, err := d.Detector.PixelPosition(px, py)
	if err != nil {
		return geom.Vec3{}, err
	}
	ki := st.Ki()
	kfDir := p.Normalized()
	kf := kfDir.Scale(ki.Norm())

	// Undo the sample rotation so q is expressed in the crystal frame.
	inv := conjugate(st.SampleOrientation)
	kiCrystal := inv.Rotate(ki)
	kfCrystal := inv.Rotate(kf)
	return kfCrystal.Sub(kiCrystal), nil
}

func conjugate(q instrument.Quaternion) instrument.Quaternion {
	return instrument.Quaternion{q[0], -q[1], -q[2], -q[3]}
}

// EwaldResidual is f(t) = ||ki(t) + R(t) q|| - ||ki(t)||, the scalar
// function whose roots are the fractional frames at which q crosses the
// Ewald sphere.
func (d *DataSet) EwaldResidual(q geom.Vec3, t float64) (float64, error) {
	st, err := d.States.At(t)
	if err != nil {
		return 0, err
	}
	ki := st.Ki()
	rq := st.SampleOrientation.Rotate(q)
	return ki.Add(rq).Norm() - ki.Norm(), nil
}

// EventsFor enumerates the fractional frames in [0, NumFrames()-1] at
// which q crosses the Ewald sphere, by bisecting every sign change of
// EwaldResidual sampled at unit-frame resolution. Multiple roots are
// possible; all are returned in increasing order.
func (d *DataSet) EventsFor(q geom.Vec3) ([]float64, error) {
	n := d.Frames.NumFrames()
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 frames to search for Ewald crossings", xerr.InvalidInput)
	}
	prev, err := d.EwaldResidual(q, 0)
	if err != nil {
		return nil, err
	}
	var roots []float64
	for i := 1; i < n; i++ {
		cur, err := d.EwaldResidual(q, float64(i))
		if err != nil {
			return nil, err
		}
		if (prev <= 0 && cur > 0) || (prev >= 0 && cur < 0) || prev == 0 {
			root, err := d.bisectEwald(q, float64(i-1), float64(i), prev, cur)
			if err == nil {
				roots = append(roots, root)
			}
		}
		prev = cur
	}
	return roots, nil
}

func (d *DataSet) bisectEwald(q geom.Vec3, lo, hi, flo, fhi float64) (float64, error) {
	if flo == 0 {
		return lo, nil
	}
	if fhi == 0 {
		return hi, nil
	}
	if math.Signbit(flo) == math.Signbit(fhi) {
		return 0, fmt.Errorf("%w: no sign change to bisect", xerr.NumericalFailure)
	}
	for i := 0; i < 60; i++ {
		mid := 0.5 * (lo + hi)
		fm, err := d.EwaldResidual(q, mid)
		if err != nil {
			return 0, err
		}
		if math.Signbit(fm) == math.Signbit(flo) {
			lo, flo = mid, fm
		} else {
			hi, fhi = mid, fm
		}
		if hi-lo < 1e-10 {
			break
		}
	}
	return 0.5 * (lo + hi), nil
}
