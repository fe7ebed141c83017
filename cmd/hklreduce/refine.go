package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hklreduce/hklreduce/internal/config"
	"github.com/hklreduce/hklreduce/internal/refine"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// handleRefine batch-refines a numor's linked unit cell against its
// indexed peaks (spec §4.G, §6 "refine").
func handleRefine(args []string) error {
	fs := flag.NewFlagSet("refine", flag.ExitOnError)
	instrumentPath := fs.String("instrument", "", "instrument description YAML (required)")
	storePath := fs.String("store", "", "SQLite store path (required)")
	numorID := fs.String("numor-id", "", "numor ID whose peaks to refine against (required)")
	cellID := fs.String("cell-id", "", "unit cell ID from index (required)")
	stepSize := fs.Float64("step-size", 0.1, "rotation scan step size in radians per frame, matching find-peaks")
	axisIndex := fs.Int("axis-index", 0, "sample goniometer axis index driving this numor's scan")
	batches := fs.Int("batches", 0, "number of frame-window batches (0 = config default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return fmt.Errorf("%w: refine needs a numor file and a report output path", xerr.InvalidInput)
	}
	numorPath, reportPath := fs.Arg(0), fs.Arg(1)
	if *instrumentPath == "" || *storePath == "" || *numorID == "" || *cellID == "" {
		return fmt.Errorf("%w: -instrument, -store, -numor-id and -cell-id are required", xerr.InvalidInput)
	}

	setup, err := loadInstrument(*instrumentPath)
	if err != nil {
		return err
	}
	numor, dataset, err := loadDataSet(numorPath, setup, *axisIndex, *stepSize)
	if err != nil {
		return err
	}

	db, err := openStore(*storePath)
	if err != nil {
		return err
	}
	defer db.Close()

	cell, err := db.GetUnitCell(*cellID)
	if err != nil {
		return err
	}
	peaks, err := db.ListPeaks(*numorID)
	if err != nil {
		return err
	}

	cfg := config.EmptyTuningConfig()
	nBatches := *batches
	if nBatches <= 0 {
		nBatches = cfg.GetRefineBatches()
	}
	xtol, gtol, ftol, maxIter := cfg.GetRefineTolerances()
	opts := refine.Options{XTol: xtol, GTol: gtol, FTol: ftol, MaxIter: maxIter}

	active := map[refine.ParamKind]bool{refine.ParamBasis: true}
	batchList, err := refine.PartitionBatches(cell, peaks, dataset, len(numor.Frames), nBatches, active)
	if err != nil {
		return err
	}

	experimentID, err := db.ExperimentIDForNumor(*numorID)
	if err != nil {
		return err
	}

	f, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("%w: create report %s: %v", xerr.IO, reportPath, err)
	}
	defer f.Close()
	fmt.Fprintln(f, "batch\tframe_lo\tframe_hi\tn_peaks\tconverged\titerations\tcost")

	var refinedCellID string
	var lastErr error
	converged := 0
	for i, b := range batchList {
		if len(b.Peaks) == 0 {
			fmt.Fprintf(f, "%d\t%.1f\t%.1f\t0\tskipped\t-\t-\n", i, b.FrameLo, b.FrameHi)
			continue
		}
		result, err := refine.Refine(b, opts)
		if err != nil {
			lastErr = err
			fmt.Fprintf(f, "%d\t%.1f\t%.1f\t%d\tfalse\t-\t-\n", i, b.FrameLo, b.FrameHi, len(b.Peaks))
			continue
		}
		refine.UpdatePredictions(b)
		if b.Converged {
			converged++
		}
		fmt.Fprintf(f, "%d\t%.1f\t%.1f\t%d\t%v\t%d\t%.6g\n", i, b.FrameLo, b.FrameHi, len(b.Peaks), b.Converged, result.Iterations, result.Cost)

		id, err := db.InsertUnitCell(experimentID, b.Cell)
		if err != nil {
			return err
		}
		refinedCellID = id
	}

	if refinedCellID == "" {
		if lastErr != nil {
			return lastErr
		}
		return fmt.Errorf("%w: no batch produced any refined peaks", xerr.NotConverged)
	}

	fmt.Printf("refined-cell-id: %s\nbatches converged: %d/%d\n", refinedCellID, converged, len(batchList))
	return nil
}
