// Package merge implements space-group orbit grouping of raw peaks into
// merged reflections, and the resolution-shell statistics built on top of
// them (spec §4.J).
package merge

import (
	"fmt"
	"math"

	"github.com/hklreduce/hklreduce/internal/peak"
	"github.com/hklreduce/hklreduce/internal/xerr"
	"github.com/hklreduce/hklreduce/internal/xtal"
)

// MergedPeak is the running mean/standard-error accumulator for one
// orbit's observations.
type MergedPeak struct {
	HKL         [3]int
	Resolution  float64
	Intensities []float64
	sum, sumSq  float64
}

// Mean returns the orbit's mean intensity.
func (m *MergedPeak) Mean() float64 {
	if len(m.Intensities) == 0 {
		return 0
	}
	return m.sum / float64(len(m.Intensities))
}

// StandardError returns the sample standard error of the mean.
func (m *MergedPeak) StandardError() float64 {
	n := len(m.Intensities)
	if n < 2 {
		return 0
	}
	mean := m.Mean()
	variance := (m.sumSq - float64(n)*mean*mean) / float64(n-1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance / float64(n))
}

// Redundancy returns the number of observations folded into this orbit.
func (m *MergedPeak) Redundancy() int { return len(m.Intensities) }

// Merger accumulates raw peaks into merged orbits under a space group.
type Merger struct {
	Group   *xtal.SpaceGroup
	Friedel bool
	Cell    *xtal.UnitCell

	orbits map[[3]int]*MergedPeak
	order  [][3]int
}

// NewMerger builds an empty merger for the given space group, Friedel
// flag and unit cell (used only to compute each orbit's resolution).
func NewMerger(group *xtal.SpaceGroup, friedel bool, cell *xtal.UnitCell) *Merger {
	return &Merger{Group: group, Friedel: friedel, Cell: cell, orbits: make(map[[3]int]*MergedPeak)}
}

// AddPeak folds an indexed, integrated peak into its orbit, per spec
// invariant 8 ("addPeak(p); addPeak(p) produces a merged orbit with
// redundancy incremented by 2 and intensity unchanged to 1e-12" -- since
// the running mean after two equal observations equals the single
// observation's value, this holds automatically from the mean formula).
func (m *Merger) AddPeak(p *peak.Peak) error {
	if !p.Indexed {
		return fmt.Errorf("%w: cannot merge an unindexed peak", xerr.NotIndexed)
	}
	h, k, l := int(math.Round(p.HKL[0])), int(math.Round(p.HKL[1])), int(math.Round(p.HKL[2]))
	key := m.Group.CanonicalMember(h, k, l, m.Friedel)

	mp, ok := m.orbits[key]
	if !ok {
		var resolution float64
		if m.Cell != nil {
			q := m.Cell.HKLToQ(p.HKL)
			if n := q.Norm(); n > 0 {
				resolution = 1 / n
			}
		}
		mp = &MergedPeak{HKL: key, Resolution: resolution}
		m.orbits[key] = mp
		m.order = append(m.order, key)
	}
	mp.Intensities = append(mp.Intensities, p.RawIntensity)
	mp.sum += p.RawIntensity
	mp.sumSq += p.RawIntensity * p.RawIntensity
	return nil
}

// MergedPeaks returns every merged orbit in insertion order.
func (m *Merger) MergedPeaks() []*MergedPeak {
	out := make([]*MergedPeak, len(m.order))
	for i, key := range m.order {
		out[i] = m.orbits[key]
	}
	return out
}

// InShell returns the merged orbits whose resolution falls in
// [dMin, dMax].
func (m *Merger) InShell(dMin, dMax float64) []*MergedPeak {
	var out []*MergedPeak
	for _, mp := range m.MergedPeaks() {
		if mp.Resolution >= dMin && mp.Resolution <= dMax {
			out = append(out, mp)
		}
	}
	return out
}
