package integrate

import (
	"fmt"
	"math"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// Result is one peak's integrated intensity, its variance and the
// diagnostic pixel counts behind it.
type Result struct {
	Intensity     float64
	Variance      float64
	NPeakPixels   int
	NBkgPixels    int
	BkgMean       float64
	BkgVariance   float64
	ProfileCutoff *ProfileCutoff
}

// Integrate classifies every sample against shape.Scale(s.BkgEnd)'s
// bounding region, accumulates background/signal sums, and runs the
// sigma/I profile cutoff (spec §4.I "Integration" + "Profile cutoff").
func Integrate(shape geom.Ellipsoid, samples []VoxelSample, s Scales, sigmaMax float64, nBins int) (*Result, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	var peakSum, bkgSum, bkgSumSq float64
	var nPeak, nBkg int
	var radialSignal, radialCounts []float64
	if nBins > 0 {
		radialSignal = make([]float64, nBins)
		radialCounts = make([]float64, nBins)
	}
	binWidth := sigmaMax / float64(maxInt(nBins, 1))

	for _, sample := range samples {
		eps2 := shape.Radius2(sample.Position)
		region := Classify(eps2, s, sample.Masked)
		switch region {
		case Peak:
			peakSum += sample.Count
			nPeak++
			if nBins > 0 {
				r := math.Sqrt(eps2)
				bin := int(r / binWidth)
				if bin >= nBins {
					bin = nBins - 1
				}
				if bin >= 0 {
					radialSignal[bin] += sample.Count
					radialCounts[bin]++
				}
			}
		case Background:
			bkgSum += sample.Count
			bkgSumSq += sample.Count * sample.Count
			nBkg++
		}
	}
	if nBkg == 0 {
		return nil, fmt.Errorf("%w: no background pixels found for peak", xerr.InvalidInput)
	}

	bkgMean := bkgSum / float64(nBkg)
	var bkgVarSample float64
	if nBkg > 1 {
		bkgVarSample = (bkgSumSq - float64(nBkg)*bkgMean*bkgMean) / float64(nBkg-1)
		if bkgVarSample < 0 {
			bkgVarSample = 0
		}
	}
	bkgMeanVar := bkgVarSample / float64(nBkg)

	intensity := peakSum - bkgMean*float64(nPeak)
	variance := peakSum + float64(nPeak)*float64(nPeak)*bkgMeanVar

	res := &Result{
		Intensity:   intensity,
		Variance:    variance,
		NPeakPixels: nPeak,
		NBkgPixels:  nBkg,
		BkgMean:     bkgMean,
		BkgVariance: bkgMeanVar,
	}
	if nBins > 0 {
		res.ProfileCutoff = profileCutoff(radialSignal, radialCounts, bkgMean, bkgMeanVar, binWidth)
	}
	return res, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
