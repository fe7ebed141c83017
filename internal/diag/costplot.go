// Package diag renders refiner and merge diagnostics: per-batch cost
// traces as PNGs, and a merge-statistics HTML report.
package diag

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/hklreduce/hklreduce/internal/refine"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// CostTracePlot renders one batch's accepted-step cost trace to a PNG at
// outPath (spec §4.G batch refinement diagnostics).
func CostTracePlot(b *refine.Batch, outPath string) error {
	if len(b.Trace) == 0 {
		return fmt.Errorf("%w: batch has no recorded cost trace", xerr.InvalidInput)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Batch [%.1f, %.1f) cost trace", b.FrameLo, b.FrameHi)
	p.X.Label.Text = "accepted step"
	p.Y.Label.Text = "cost"

	pts := make(plotter.XYs, len(b.Trace))
	for i, c := range b.Trace {
		pts[i] = plotter.XY{X: float64(i), Y: c}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("%w: build cost trace line: %v", xerr.IO, err)
	}
	line.Width = vg.Points(1.5)
	p.Add(line)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, outPath); err != nil {
		return fmt.Errorf("%w: save cost trace plot: %v", xerr.IO, err)
	}
	diagf("wrote cost trace plot %s (%d points, converged=%v)", outPath, len(b.Trace), b.Converged)
	return nil
}

// BatchCostTracePlots renders one PNG per batch into outDir, named
// batch_NN_cost.png in batch order, skipping any batch with no
// recorded trace (a batch that failed before its first accepted step).
func BatchCostTracePlots(batches []*refine.Batch, outDir string) (int, error) {
	count := 0
	for i, b := range batches {
		if len(b.Trace) == 0 {
			continue
		}
		outPath := filepath.Join(outDir, fmt.Sprintf("batch_%02d_cost.png", i))
		if err := CostTracePlot(b, outPath); err != nil {
			return count, fmt.Errorf("batch %d: %w", i, err)
		}
		count++
	}
	opsf("wrote %d of %d batch cost trace plots to %s", count, len(batches), outDir)
	return count, nil
}
