package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hklreduce/hklreduce/internal/config"
	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/indexer"
	"github.com/hklreduce/hklreduce/internal/store"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// handleIndex auto-indexes a numor's stored peaks and records the
// winning unit cell, linking every peak it indexes back to that cell
// (spec §4.F, §6 "index").
func handleIndex(args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	instrumentPath := fs.String("instrument", "", "instrument description YAML (required)")
	storePath := fs.String("store", "", "SQLite store path (required)")
	numorID := fs.String("numor-id", "", "numor ID from find-peaks (required)")
	stepSize := fs.Float64("step-size", 0.1, "rotation scan step size in radians per frame, matching find-peaks")
	axisIndex := fs.Int("axis-index", 0, "sample goniometer axis index driving this numor's scan")
	solutions := fs.Int("solutions", 5, "number of candidate solutions to report")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return fmt.Errorf("%w: index needs a numor file and a report output path", xerr.InvalidInput)
	}
	numorPath, reportPath := fs.Arg(0), fs.Arg(1)
	if *instrumentPath == "" || *storePath == "" || *numorID == "" {
		return fmt.Errorf("%w: -instrument, -store and -numor-id are required", xerr.InvalidInput)
	}

	setup, err := loadInstrument(*instrumentPath)
	if err != nil {
		return err
	}
	_, dataset, err := loadDataSet(numorPath, setup, *axisIndex, *stepSize)
	if err != nil {
		return err
	}

	db, err := openStore(*storePath)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.ListPeakRows(*numorID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: no peaks stored for numor %s", xerr.InvalidInput, *numorID)
	}

	type indexedRow struct {
		row store.PeakRow
		q   geom.Vec3
	}
	indexable := make([]indexedRow, 0, len(rows))
	qs := make([]geom.Vec3, 0, len(rows))
	for _, r := range rows {
		q, err := dataset.DetectorEvent(r.Peak.Px, r.Peak.Py, r.Peak.Frame)
		if err != nil {
			continue
		}
		indexable = append(indexable, indexedRow{row: r, q: q})
		qs = append(qs, q)
	}
	if len(qs) == 0 {
		return fmt.Errorf("%w: no peak recovered a valid q-vector", xerr.InvalidInput)
	}

	cfg := config.EmptyTuningConfig()
	maxDim, tolerance, niggliTol, gruberTol, minVolume, cellEquivTol, nVertices, subdiv, solutionCutoff := cfg.GetIndexTolerances()
	params := indexer.Params{
		MaxDim:                       maxDim,
		NVertices:                    nVertices,
		Subdiv:                       subdiv,
		IndexingTolerance:            tolerance,
		NiggliTolerance:              niggliTol,
		GruberTolerance:              gruberTol,
		MinUnitCellVolume:            minVolume,
		UnitCellEquivalenceTolerance: cellEquivTol,
		SolutionCutoff:               solutionCutoff,
	}

	sols, err := indexer.Index(qs, params)
	if err != nil {
		return err
	}
	if len(sols) == 0 {
		return fmt.Errorf("%w: auto-indexing produced no candidate unit cells", xerr.NotIndexed)
	}

	best := sols[0]
	experimentID, err := db.ExperimentIDForNumor(*numorID)
	if err != nil {
		return err
	}
	cellID, err := db.InsertUnitCell(experimentID, best.Cell)
	if err != nil {
		return err
	}

	indexed := 0
	for _, e := range indexable {
		hkl, ok := best.Cell.IsIndexed(e.q)
		if !ok {
			continue
		}
		if err := db.UpdatePeakIndexing(e.row.ID, cellID, hkl); err != nil {
			return err
		}
		indexed++
	}

	f, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("%w: create report %s: %v", xerr.IO, reportPath, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "cell-id: %s\npeaks indexed: %d/%d\n\n", cellID, indexed, len(rows))
	fmt.Fprintln(f, "rank\tpercent_indexed\ta\tb\tc\talpha\tbeta\tgamma")
	n := *solutions
	if n > len(sols) {
		n = len(sols)
	}
	for i := 0; i < n; i++ {
		a, b, c, alpha, beta, gamma := sols[i].Cell.Parameters()
		fmt.Fprintf(f, "%d\t%.2f%%\t%.4f\t%.4f\t%.4f\t%.3f\t%.3f\t%.3f\n",
			i+1, 100*sols[i].PercentIndexed, a, b, c, alpha, beta, gamma)
	}

	fmt.Printf("cell-id: %s\npeaks indexed: %d/%d\n", cellID, indexed, len(rows))
	return nil
}
