package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hklreduce/hklreduce/internal/config"
	"github.com/hklreduce/hklreduce/internal/diag"
	"github.com/hklreduce/hklreduce/internal/merge"
	"github.com/hklreduce/hklreduce/internal/xerr"
	"github.com/hklreduce/hklreduce/internal/xtal"
)

// handleMerge merges every integrated, indexed peak under an experiment
// by space-group symmetry and reports per-shell merging statistics
// (spec §4.J, §6 "merge").
func handleMerge(args []string) error {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	storePath := fs.String("store", "", "SQLite store path (required)")
	experimentID := fs.String("experiment-id", "", "experiment ID whose peaks to merge (required)")
	spaceGroup := fs.String("space-group", "", "space group symbol (empty = config default)")
	friedel := fs.Bool("friedel", false, "apply Friedel's law (merge hkl with -h-k-l)")
	cellID := fs.String("cell-id", "", "unit cell ID to attach resolution shells to (optional)")
	nShells := fs.Int("shells", 10, "number of resolution shells to report")
	htmlReport := fs.String("html-report", "", "optional path for a go-echarts HTML merge report")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("%w: merge needs a report output path", xerr.InvalidInput)
	}
	reportPath := fs.Arg(0)
	if *storePath == "" || *experimentID == "" {
		return fmt.Errorf("%w: -store and -experiment-id are required", xerr.InvalidInput)
	}

	db, err := openStore(*storePath)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg := config.EmptyTuningConfig()
	defaultGroup, defaultFriedel := cfg.GetMergeDefaults()
	groupName := *spaceGroup
	if groupName == "" {
		groupName = defaultGroup
	}
	useFriedel := *friedel || defaultFriedel

	group, err := xtal.NewSpaceGroup(groupName)
	if err != nil {
		return err
	}
	var cell *xtal.UnitCell
	if *cellID != "" {
		cell, err = db.GetUnitCell(*cellID)
		if err != nil {
			return err
		}
	}

	rows, err := db.ListPeaksByExperiment(*experimentID)
	if err != nil {
		return err
	}

	m := merge.NewMerger(group, useFriedel, cell)
	added := 0
	for _, row := range rows {
		p := row.Peak
		if !p.Indexed || (p.RawIntensity == 0 && p.Variance == 0) {
			continue
		}
		if err := m.AddPeak(p); err != nil {
			continue
		}
		added++
	}
	if added == 0 {
		return fmt.Errorf("%w: no integrated, indexed peaks found for experiment %s", xerr.InvalidInput, *experimentID)
	}

	if err := db.InsertMergedPeaks(*experimentID, m.MergedPeaks()); err != nil {
		return err
	}

	shells := merge.Shells(m, *nShells)

	f, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("%w: create report %s: %v", xerr.IO, reportPath, err)
	}
	defer f.Close()
	fmt.Fprintf(f, "experiment-id: %s\nspace-group: %s\nfriedel: %v\npeaks merged: %d\n\n", *experimentID, groupName, useFriedel, added)
	fmt.Fprintln(f, "d_min\td_max\tn_orbits\tmean_redundancy\tr_merge\tcc_half\tcc_star")
	for _, s := range shells {
		fmt.Fprintf(f, "%.3f\t%.3f\t%d\t%.2f\t%.4f\t%.4f\t%.4f\n",
			s.DMin, s.DMax, s.NOrbits, s.MeanRedundancy, s.RMerge, s.CCHalf, s.CCStar)
	}

	if *htmlReport != "" {
		hf, err := os.Create(*htmlReport)
		if err != nil {
			return fmt.Errorf("%w: create html report %s: %v", xerr.IO, *htmlReport, err)
		}
		defer hf.Close()
		if err := diag.MergeReportHTML(shells, hf); err != nil {
			return err
		}
	}

	fmt.Printf("peaks merged: %d\norbits written: %d\n", added, len(m.MergedPeaks()))
	return nil
}
