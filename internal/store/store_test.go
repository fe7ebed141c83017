package store

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/merge"
	"github.com/hklreduce/hklreduce/internal/peak"
	"github.com/hklreduce/hklreduce/internal/xtal"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExperimentRoundTrip(t *testing.T) {
	s := openTestStore(t)
	e := &Experiment{Name: "test experiment", InstrumentName: "D19"}
	if err := s.InsertExperiment(e); err != nil {
		t.Fatalf("InsertExperiment: %v", err)
	}
	got, err := s.GetExperiment(e.ID)
	if err != nil {
		t.Fatalf("GetExperiment: %v", err)
	}
	if got.Name != e.Name || got.InstrumentName != e.InstrumentName {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestUnitCellRoundTrip(t *testing.T) {
	s := openTestStore(t)
	e := &Experiment{Name: "e"}
	if err := s.InsertExperiment(e); err != nil {
		t.Fatalf("InsertExperiment: %v", err)
	}
	cell, err := xtal.NewUnitCell([9]float64{10, 0, 0, 0, 12, 0, 0, 0, 14}, 0.02)
	if err != nil {
		t.Fatalf("NewUnitCell: %v", err)
	}
	cell.BravaisType = xtal.Orthorhombic
	cell.CentringType = xtal.Primitive
	cell.SpaceGroupName = "P 21 21 21"

	id, err := s.InsertUnitCell(e.ID, cell)
	if err != nil {
		t.Fatalf("InsertUnitCell: %v", err)
	}
	got, err := s.GetUnitCell(id)
	if err != nil {
		t.Fatalf("GetUnitCell: %v", err)
	}
	a, b, c, _, _, _ := got.Parameters()
	if math.Abs(a-10) > 1e-9 || math.Abs(b-12) > 1e-9 || math.Abs(c-14) > 1e-9 {
		t.Fatalf("cell parameters = %v,%v,%v, want 10,12,14", a, b, c)
	}
	if got.SpaceGroupName != "P 21 21 21" {
		t.Fatalf("SpaceGroupName = %q, want %q", got.SpaceGroupName, "P 21 21 21")
	}
}

func TestPeakRoundTrip(t *testing.T) {
	s := openTestStore(t)
	e := &Experiment{Name: "e"}
	if err := s.InsertExperiment(e); err != nil {
		t.Fatalf("InsertExperiment: %v", err)
	}
	n := &Numor{ExperimentID: e.ID, Numor: 12345, FormatCode: 1, Wavelength: 1.46}
	if err := s.InsertNumor(n); err != nil {
		t.Fatalf("InsertNumor: %v", err)
	}

	shape, err := geom.NewEllipsoid(geom.Vec3{1, 2, 3}, [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	if err != nil {
		t.Fatalf("NewEllipsoid: %v", err)
	}
	p := peak.NewPeak(shape, 5, 10, 20)
	p.RawIntensity = 123.4
	p.Variance = 5.6
	p.Selected = true
	p.HKL = geom.Vec3{1, 0, 0}
	p.Indexed = true

	peakID, err := s.InsertPeak(n.ID, "", p)
	if err != nil {
		t.Fatalf("InsertPeak: %v", err)
	}

	rows, err := s.ListPeakRows(n.ID)
	if err != nil {
		t.Fatalf("ListPeakRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 peak, got %d", len(rows))
	}
	got := rows[0].Peak
	if rows[0].ID != peakID {
		t.Fatalf("ID = %q, want %q", rows[0].ID, peakID)
	}
	if math.Abs(got.RawIntensity-123.4) > 1e-9 {
		t.Fatalf("RawIntensity = %v, want 123.4", got.RawIntensity)
	}
	if !got.Selected || !got.Indexed {
		t.Fatalf("expected Selected and Indexed to round-trip true")
	}
	if got.HKL != (geom.Vec3{1, 0, 0}) {
		t.Fatalf("HKL = %v, want (1,0,0)", got.HKL)
	}
	if got.Frame != 5 || got.Px != 10 || got.Py != 20 {
		t.Fatalf("Frame/Px/Py = %v,%v,%v, want 5,10,20", got.Frame, got.Px, got.Py)
	}

	cell2, err := xtal.NewUnitCell([9]float64{10, 0, 0, 0, 12, 0, 0, 0, 14}, 0.02)
	if err != nil {
		t.Fatalf("NewUnitCell: %v", err)
	}
	cellID, err := s.InsertUnitCell(e.ID, cell2)
	if err != nil {
		t.Fatalf("InsertUnitCell: %v", err)
	}
	if err := s.UpdatePeakIndexing(peakID, cellID, geom.Vec3{2, 0, 0}); err != nil {
		t.Fatalf("UpdatePeakIndexing: %v", err)
	}
	if err := s.UpdatePeakIntensity(peakID, 999, 12); err != nil {
		t.Fatalf("UpdatePeakIntensity: %v", err)
	}
	rows, err = s.ListPeakRows(n.ID)
	if err != nil {
		t.Fatalf("ListPeakRows after update: %v", err)
	}
	got = rows[0].Peak
	if got.HKL != (geom.Vec3{2, 0, 0}) {
		t.Fatalf("HKL after update = %v, want (2,0,0)", got.HKL)
	}
	if got.Cell == nil {
		t.Fatal("expected unit cell to be linked after UpdatePeakIndexing")
	}
	if math.Abs(got.RawIntensity-999) > 1e-9 || math.Abs(got.Variance-12) > 1e-9 {
		t.Fatalf("RawIntensity/Variance after update = %v,%v, want 999,12", got.RawIntensity, got.Variance)
	}
}

func TestMergedPeaksRoundTrip(t *testing.T) {
	s := openTestStore(t)
	e := &Experiment{Name: "e"}
	if err := s.InsertExperiment(e); err != nil {
		t.Fatalf("InsertExperiment: %v", err)
	}
	sg, err := xtal.NewSpaceGroup("P 1")
	if err != nil {
		t.Fatalf("NewSpaceGroup: %v", err)
	}
	m := merge.NewMerger(sg, false, nil)
	for i := 0; i < 3; i++ {
		p := peak.NewPeak(geom.Ellipsoid{}, 0, 0, 0)
		p.HKL = geom.Vec3{1, 0, 0}
		p.Indexed = true
		p.RawIntensity = 100 + float64(i)
		if err := m.AddPeak(p); err != nil {
			t.Fatalf("AddPeak: %v", err)
		}
	}

	if err := s.InsertMergedPeaks(e.ID, m.MergedPeaks()); err != nil {
		t.Fatalf("InsertMergedPeaks: %v", err)
	}
	rows, err := s.ListMergedPeaks(e.ID)
	if err != nil {
		t.Fatalf("ListMergedPeaks: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 merged orbit, got %d", len(rows))
	}
	if rows[0].Redundancy != 3 {
		t.Fatalf("Redundancy = %d, want 3", rows[0].Redundancy)
	}
}

func TestCheckDocVersion(t *testing.T) {
	if err := CheckDocVersion(DocVersion); err != nil {
		t.Fatalf("CheckDocVersion(current) should succeed: %v", err)
	}
	if err := CheckDocVersion(DocVersion + 1); err == nil {
		t.Fatal("expected error for future document version")
	}
}
