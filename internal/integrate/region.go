// Package integrate implements the region-based pixel sum integrator
// (spec §4.I): scaled-ellipsoid region classification, background/signal
// estimation, a sigma/I profile cutoff and an optional 3-D Gaussian
// profile fit.
package integrate

import (
	"fmt"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// Region classifies a pixel relative to a peak's scaled ellipsoids.
type Region int

const (
	Peak Region = iota
	Forbidden
	Background
	Excluded
)

// Scales bundles the three ellipsoid scale factors, which must satisfy
// 0 < PeakEnd <= BkgBegin < BkgEnd (spec §4.I region model).
type Scales struct {
	PeakEnd, BkgBegin, BkgEnd float64
}

func (s Scales) validate() error {
	if !(s.PeakEnd > 0 && s.PeakEnd <= s.BkgBegin && s.BkgBegin < s.BkgEnd) {
		return fmt.Errorf("%w: integration scales must satisfy 0 < peakEnd <= bkgBegin < bkgEnd", xerr.InvalidInput)
	}
	return nil
}

// Classify returns the region a pixel at eps2 = Radius2(p) falls into,
// per spec §4.I; masked pixels are always Forbidden.
func Classify(eps2 float64, s Scales, masked bool) Region {
	if masked {
		return Forbidden
	}
	switch {
	case eps2 <= s.PeakEnd*s.PeakEnd:
		return Peak
	case eps2 < s.BkgBegin*s.BkgBegin:
		return Forbidden
	case eps2 <= s.BkgEnd*s.BkgEnd:
		return Background
	default:
		return Excluded
	}
}

// VoxelSample is one pixel's classification input: its lab/detector
// position (used to evaluate the ellipsoid metric), raw count and
// whether it falls in a masked detector region.
type VoxelSample struct {
	Position geom.Vec3
	Count    float64
	Masked   bool
}
