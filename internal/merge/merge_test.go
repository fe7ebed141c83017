package merge

import (
	"math"
	"math/rand"
	"testing"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/peak"
	"github.com/hklreduce/hklreduce/internal/xtal"
)

func testCell(t *testing.T) *xtal.UnitCell {
	t.Helper()
	cell, err := xtal.NewUnitCell([9]float64{10, 0, 0, 0, 10, 0, 0, 0, 10}, 0.02)
	if err != nil {
		t.Fatalf("NewUnitCell: %v", err)
	}
	cell.BravaisType = xtal.Cubic
	cell.CentringType = xtal.Primitive
	return cell
}

func indexedPeak(h, k, l int, intensity float64) *peak.Peak {
	p := peak.NewPeak(geom.Ellipsoid{}, 0, 0, 0)
	p.HKL = geom.Vec3{float64(h), float64(k), float64(l)}
	p.Indexed = true
	p.RawIntensity = intensity
	return p
}

func TestAddPeakTwiceDoublesRedundancyKeepsIntensity(t *testing.T) {
	sg, err := xtal.NewSpaceGroup("P 1")
	if err != nil {
		t.Fatalf("NewSpaceGroup: %v", err)
	}
	m := NewMerger(sg, false, testCell(t))
	p := indexedPeak(1, 0, 0, 42.0)

	if err := m.AddPeak(p); err != nil {
		t.Fatalf("AddPeak: %v", err)
	}
	if err := m.AddPeak(p); err != nil {
		t.Fatalf("AddPeak: %v", err)
	}

	peaks := m.MergedPeaks()
	if len(peaks) != 1 {
		t.Fatalf("expected 1 orbit, got %d", len(peaks))
	}
	mp := peaks[0]
	if mp.Redundancy() != 2 {
		t.Fatalf("expected redundancy 2, got %d", mp.Redundancy())
	}
	if math.Abs(mp.Mean()-42.0) > 1e-12 {
		t.Fatalf("expected mean 42.0 to within 1e-12, got %v", mp.Mean())
	}
}

func TestAddPeakRejectsUnindexed(t *testing.T) {
	sg, err := xtal.NewSpaceGroup("P 1")
	if err != nil {
		t.Fatalf("NewSpaceGroup: %v", err)
	}
	m := NewMerger(sg, false, testCell(t))
	p := indexedPeak(1, 0, 0, 42.0)
	p.Indexed = false
	if err := m.AddPeak(p); err == nil {
		t.Fatal("expected error for unindexed peak")
	}
}

func TestSymmetryEquivalentReflectionsShareOrbit(t *testing.T) {
	sg, err := xtal.NewSpaceGroup("P 23")
	if err != nil {
		t.Fatalf("NewSpaceGroup: %v", err)
	}
	m := NewMerger(sg, false, testCell(t))
	if err := m.AddPeak(indexedPeak(1, 0, 0, 10)); err != nil {
		t.Fatalf("AddPeak: %v", err)
	}
	if err := m.AddPeak(indexedPeak(0, 1, 0, 12)); err != nil {
		t.Fatalf("AddPeak: %v", err)
	}
	peaks := m.MergedPeaks()
	if len(peaks) != 1 {
		t.Fatalf("expected (100) and (010) to merge into 1 orbit under P23, got %d", len(peaks))
	}
	if peaks[0].Redundancy() != 2 {
		t.Fatalf("expected redundancy 2, got %d", peaks[0].Redundancy())
	}
}

// TestCCHalfRecoversSignalToNoiseRatio builds synthetic orbits whose true
// signal variance and per-observation noise variance are known, and
// checks CC1/2 approximates sigma_J^2 / (sigma_J^2 + sigma_eps^2) within
// 0.05, the scenario's tolerance. CC1/2 correlates half-set means, so
// sigma_eps^2 is the noise variance of a mean of nObs/2 = 4 observations.
func TestCCHalfRecoversSignalToNoiseRatio(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sigmaJ2 := 100.0
	sigmaEps2 := 25.0
	expected := sigmaJ2 / (sigmaJ2 + sigmaEps2/4)

	sg, err := xtal.NewSpaceGroup("P 1")
	if err != nil {
		t.Fatalf("NewSpaceGroup: %v", err)
	}
	m := NewMerger(sg, false, testCell(t))

	nOrbits := 400
	nObs := 8
	for i := 0; i < nOrbits; i++ {
		trueI := 100 + rng.NormFloat64()*math.Sqrt(sigmaJ2)
		for j := 0; j < nObs; j++ {
			obs := trueI + rng.NormFloat64()*math.Sqrt(sigmaEps2)
			if err := m.AddPeak(indexedPeak(i+1, 0, 0, obs)); err != nil {
				t.Fatalf("AddPeak: %v", err)
			}
		}
	}

	cc := CCHalf(m.MergedPeaks())
	if math.Abs(cc-expected) > 0.05 {
		t.Fatalf("CCHalf = %v, want within 0.05 of %v", cc, expected)
	}
}

func TestCCStarClipsNegativeCCHalf(t *testing.T) {
	if got := CCStar(-0.5); got != 0 {
		t.Fatalf("CCStar(-0.5) = %v, want 0", got)
	}
	if got := CCStar(1.0); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("CCStar(1.0) = %v, want 1.0", got)
	}
}

func TestShellsPartitionsByResolution(t *testing.T) {
	sg, err := xtal.NewSpaceGroup("P 1")
	if err != nil {
		t.Fatalf("NewSpaceGroup: %v", err)
	}
	m := NewMerger(sg, false, testCell(t))
	for h := 1; h <= 10; h++ {
		if err := m.AddPeak(indexedPeak(h, 0, 0, float64(h)*10)); err != nil {
			t.Fatalf("AddPeak: %v", err)
		}
	}
	shells := Shells(m, 4)
	if len(shells) != 4 {
		t.Fatalf("expected 4 shells, got %d", len(shells))
	}
	var total int
	for _, s := range shells {
		total += s.NOrbits
	}
	if total != 10 {
		t.Fatalf("expected shells to cover all 10 orbits, got %d", total)
	}
}
