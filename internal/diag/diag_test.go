package diag

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hklreduce/hklreduce/internal/merge"
	"github.com/hklreduce/hklreduce/internal/refine"
)

func TestCostTracePlotWritesFile(t *testing.T) {
	b := &refine.Batch{FrameLo: 0, FrameHi: 10, Trace: []float64{10, 5, 2, 1.1, 1.0}, Converged: true}
	outPath := filepath.Join(t.TempDir(), "cost.png")
	if err := CostTracePlot(b, outPath); err != nil {
		t.Fatalf("CostTracePlot: %v", err)
	}
}

func TestCostTracePlotRejectsEmptyTrace(t *testing.T) {
	b := &refine.Batch{}
	if err := CostTracePlot(b, filepath.Join(t.TempDir(), "cost.png")); err == nil {
		t.Fatal("expected error for batch with no trace")
	}
}

func TestBatchCostTracePlotsSkipsEmpty(t *testing.T) {
	batches := []*refine.Batch{
		{Trace: []float64{5, 3, 1}},
		{}, // no trace, skipped
		{Trace: []float64{9, 4}},
	}
	n, err := BatchCostTracePlots(batches, t.TempDir())
	if err != nil {
		t.Fatalf("BatchCostTracePlots: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func TestMergeReportHTMLRendersShells(t *testing.T) {
	shells := []merge.ShellStats{
		{DMin: 2.0, DMax: 5.0, NOrbits: 10, MeanRedundancy: 3.2, RMerge: 0.05, CCHalf: 0.99, CCStar: 0.997},
		{DMin: 1.0, DMax: 2.0, NOrbits: 8, MeanRedundancy: 2.1, RMerge: 0.2, CCHalf: 0.6, CCStar: 0.87},
	}
	var buf bytes.Buffer
	if err := MergeReportHTML(shells, &buf); err != nil {
		t.Fatalf("MergeReportHTML: %v", err)
	}
	if !strings.Contains(buf.String(), "CC1/2") {
		t.Fatal("expected rendered HTML to mention CC1/2")
	}
}

func TestMergeReportHTMLRejectsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := MergeReportHTML(nil, &buf); err == nil {
		t.Fatal("expected error for empty shell list")
	}
}
