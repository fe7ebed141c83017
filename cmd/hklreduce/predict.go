package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hklreduce/hklreduce/internal/config"
	"github.com/hklreduce/hklreduce/internal/predict"
	"github.com/hklreduce/hklreduce/internal/xerr"
	"github.com/hklreduce/hklreduce/internal/xtal"
)

// handlePredict enumerates predicted reflections in a resolution shell
// for a refined unit cell, assigning each a shape from a library built
// out of the numor's already-indexed peaks (spec §4.H, §6 "predict").
func handlePredict(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	instrumentPath := fs.String("instrument", "", "instrument description YAML (required)")
	storePath := fs.String("store", "", "SQLite store path (required)")
	numorID := fs.String("numor-id", "", "numor ID supplying observed peaks and instrument states (required)")
	cellID := fs.String("cell-id", "", "unit cell ID from index or refine (required)")
	stepSize := fs.Float64("step-size", 0.1, "rotation scan step size in radians per frame, matching find-peaks")
	axisIndex := fs.Int("axis-index", 0, "sample goniometer axis index driving this numor's scan")
	dMin := fs.Float64("d-min", 0, "resolution shell lower bound in angstroms (0 = config default)")
	dMax := fs.Float64("d-max", 0, "resolution shell upper bound in angstroms (0 = config default)")
	radius := fs.Float64("radius", 0, "shape library neighbour radius in HKL space (0 = config default)")
	minNeighbours := fs.Int("min-neighbours", 0, "minimum neighbours before interpolating a shape (0 = config default)")
	maxIndex := fs.Int("max-index", 25, "maximum |h|,|k|,|l| searched")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return fmt.Errorf("%w: predict needs a numor file and a report output path", xerr.InvalidInput)
	}
	numorPath, reportPath := fs.Arg(0), fs.Arg(1)
	if *instrumentPath == "" || *storePath == "" || *numorID == "" || *cellID == "" {
		return fmt.Errorf("%w: -instrument, -store, -numor-id and -cell-id are required", xerr.InvalidInput)
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

	cell, err := db.GetUnitCell(*cellID)
	if err != nil {
		return err
	}
	observed, err := db.ListPeaks(*numorID)
	if err != nil {
		return err
	}

	var withMetric []xtal.HKLMetric
	for _, p := range observed {
		if !p.Indexed {
			continue
		}
		hklInt := [3]int{int(p.HKL[0]), int(p.HKL[1]), int(p.HKL[2])}
		withMetric = append(withMetric, xtal.HKLMetric{HKL: hklInt, Metric: p.Shape.Metric()})
	}
	if len(withMetric) == 0 {
		return fmt.Errorf("%w: numor %s has no indexed peaks to seed the shape library", xerr.InvalidInput, *numorID)
	}
	lib := xtal.NewShapeLibrary(xtal.Combine(withMetric, xtal.Mean))
	for _, hm := range withMetric {
		lib.Put(hm.HKL, hm.Metric)
	}

	cfg := config.EmptyTuningConfig()
	defDMin, defDMax, defRadius, _, defMinNeighbours, interpolationName := cfg.GetPredictParams()
	if *dMin <= 0 {
		*dMin = defDMin
	}
	if *dMax <= 0 {
		*dMax = defDMax
	}
	if *radius <= 0 {
		*radius = defRadius
	}
	if *minNeighbours <= 0 {
		*minNeighbours = defMinNeighbours
	}
	interpolation := parseInterpolation(interpolationName)

	params := predict.Params{
		DMin:          *dMin,
		DMax:          *dMax,
		Radius:        *radius,
		MinNeighbours: *minNeighbours,
		Interpolation: interpolation,
	}

	predicted, err := predict.Predict(cell, lib, dataset, *maxIndex, params)
	if err != nil {
		return err
	}

	f, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("%w: create report %s: %v", xerr.IO, reportPath, err)
	}
	defer f.Close()
	fmt.Fprintf(f, "cell-id: %s\npredicted reflections: %d\n\n", *cellID, len(predicted))
	fmt.Fprintln(f, "h\tk\tl\tframe\tpx\tpy")
	stored := 0
	for _, pk := range predicted {
		if _, err := db.InsertPeak(*numorID, *cellID, pk); err != nil {
			return err
		}
		stored++
		fmt.Fprintf(f, "%d\t%d\t%d\t%.3f\t%.3f\t%.3f\n", int(pk.HKL[0]), int(pk.HKL[1]), int(pk.HKL[2]), pk.Frame, pk.Px, pk.Py)
	}

	fmt.Printf("predicted reflections stored: %d\n", stored)
	return nil
}

func parseInterpolation(name string) xtal.Interpolation {
	switch name {
	case "nearest":
		return xtal.Nearest
	case "inverse-distance":
		return xtal.InverseDistance
	default:
		return xtal.Mean
	}
}
