package merge

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ShellStats holds the redundancy and agreement statistics computed over
// one resolution shell's merged orbits (spec §4.J "Statistics").
type ShellStats struct {
	DMin, DMax        float64
	NOrbits           int
	MeanRedundancy    float64
	RMerge            float64
	CCHalf            float64
	CCStar            float64
}

// Redundancy returns the mean number of observations per orbit.
func Redundancy(peaks []*MergedPeak) float64 {
	if len(peaks) == 0 {
		return 0
	}
	var total int
	for _, p := range peaks {
		total += p.Redundancy()
	}
	return float64(total) / float64(len(peaks))
}

// RFactor computes sum(|I_i - Imean|) / sum(|I_i|) across every
// individual observation folded into peaks.
func RFactor(peaks []*MergedPeak) float64 {
	var num, den float64
	for _, p := range peaks {
		mean := p.Mean()
		for _, i := range p.Intensities {
			num += math.Abs(i - mean)
			den += math.Abs(i)
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// RMerge is an alias name for the redundancy-weighted residual statistic
// some reduction pipelines call Rmerge/Rsym; identical formula to
// RFactor here since both are defined over individual observations
// against their orbit mean.
func RMerge(peaks []*MergedPeak) float64 {
	return RFactor(peaks)
}

// CCHalf splits each orbit's observations into two disjoint halves
// (even/odd index order, since observations are not timestamped here)
// and returns the Pearson correlation coefficient between the two
// half-set means across orbits with at least 2 observations each, using
// gonum/stat for the correlation itself (spec §4.J "CC1/2").
func CCHalf(peaks []*MergedPeak) float64 {
	var a, b, w []float64
	for _, p := range peaks {
		n := len(p.Intensities)
		if n < 2 {
			continue
		}
		var sumA, sumB float64
		var nA, nB int
		for i, v := range p.Intensities {
			if i%2 == 0 {
				sumA += v
				nA++
			} else {
				sumB += v
				nB++
			}
		}
		if nA == 0 || nB == 0 {
			continue
		}
		a = append(a, sumA/float64(nA))
		b = append(b, sumB/float64(nB))
		w = append(w, 1)
	}
	if len(a) < 2 {
		return 0
	}
	return stat.Correlation(a, b, w)
}

// CCStar converts a CC1/2 value to the CC* estimate of the correlation
// against the true, infinite-redundancy signal (Karplus & Diederichs
// 2012): CC* = sqrt(2*CC1/2 / (1 + CC1/2)). Per the resolved open
// question on negative CC1/2, this clips the result to zero rather than
// propagating a NaN from the square root of a negative argument.
func CCStar(ccHalf float64) float64 {
	if ccHalf <= 0 {
		return 0
	}
	v := 2 * ccHalf / (1 + ccHalf)
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}

// Shell computes the full statistics set for the orbits falling between
// dMin and dMax.
func Shell(m *Merger, dMin, dMax float64) ShellStats {
	peaks := m.InShell(dMin, dMax)
	cc := CCHalf(peaks)
	return ShellStats{
		DMin:           dMin,
		DMax:           dMax,
		NOrbits:        len(peaks),
		MeanRedundancy: Redundancy(peaks),
		RMerge:         RMerge(peaks),
		CCHalf:         cc,
		CCStar:         CCStar(cc),
	}
}

// Shells partitions the merger's orbits into nShells equal-width bins
// between the observed minimum and maximum resolution and returns one
// ShellStats per bin, ordered from low to high resolution (largest d to
// smallest), the conventional crystallographic table order.
func Shells(m *Merger, nShells int) []ShellStats {
	peaks := m.MergedPeaks()
	if len(peaks) == 0 || nShells <= 0 {
		return nil
	}
	dMin, dMax := peaks[0].Resolution, peaks[0].Resolution
	for _, p := range peaks[1:] {
		if p.Resolution < dMin {
			dMin = p.Resolution
		}
		if p.Resolution > dMax {
			dMax = p.Resolution
		}
	}
	width := (dMax - dMin) / float64(nShells)
	if width <= 0 {
		return []ShellStats{Shell(m, dMin, dMax)}
	}
	out := make([]ShellStats, nShells)
	for i := 0; i < nShells; i++ {
		lo := dMax - float64(i+1)*width
		hi := dMax - float64(i)*width
		out[i] = Shell(m, lo, hi)
	}
	return out
}
