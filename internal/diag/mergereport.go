package diag

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/hklreduce/hklreduce/internal/merge"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// MergeReportHTML renders shells (per spec §4.J "Statistics", in the
// order merge.Shells returns them, low-resolution first) as a two-chart
// HTML page: CC1/2 and CC* against
// resolution shell, and a redundancy bar per shell.
func MergeReportHTML(shells []merge.ShellStats, w io.Writer) error {
	if len(shells) == 0 {
		return fmt.Errorf("%w: no shells to report", xerr.InvalidInput)
	}

	labels := make([]string, len(shells))
	ccHalf := make([]opts.LineData, len(shells))
	ccStar := make([]opts.LineData, len(shells))
	redundancy := make([]opts.BarData, len(shells))
	rmerge := make([]opts.BarData, len(shells))
	for i, s := range shells {
		labels[i] = fmt.Sprintf("%.2f-%.2f", s.DMax, s.DMin)
		ccHalf[i] = opts.LineData{Value: s.CCHalf}
		ccStar[i] = opts.LineData{Value: s.CCStar}
		redundancy[i] = opts.BarData{Value: s.MeanRedundancy}
		rmerge[i] = opts.BarData{Value: s.RMerge}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Merge statistics", Theme: "dark", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "CC1/2 and CC* by resolution shell"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "resolution shell (A)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "correlation", Min: 0, Max: 1}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(labels).
		AddSeries("CC1/2", ccHalf).
		AddSeries("CC*", ccStar)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Redundancy and R-merge by resolution shell"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).
		AddSeries("mean redundancy", redundancy).
		AddSeries("R-merge", rmerge)

	page := components.NewPage()
	page.AddCharts(line, bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("%w: render merge report: %v", xerr.IO, err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: write merge report: %v", xerr.IO, err)
	}
	opsf("rendered merge report HTML with %d shells", len(shells))
	return nil
}
