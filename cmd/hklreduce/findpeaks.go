package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/hklreduce/hklreduce/internal/blobfind"
	"github.com/hklreduce/hklreduce/internal/config"
	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/peak"
	"github.com/hklreduce/hklreduce/internal/store"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// handleFindPeaks runs the blob finder over a numor's frame stack and
// persists the resulting peaks to the store, ready for index to pick up
// (spec §4.D, §6 "find-peaks").
func handleFindPeaks(args []string) error {
	fs := flag.NewFlagSet("find-peaks", flag.ExitOnError)
	instrumentPath := fs.String("instrument", "", "instrument description YAML (required)")
	storePath := fs.String("store", "", "SQLite store path (required)")
	experimentName := fs.String("experiment", "", "experiment name to record (defaults to the numor file name)")
	experimentID := fs.String("experiment-id", "", "reuse an existing experiment instead of creating one")
	kernel := fs.String("kernel", "annular", "convolution kernel: annular, box or radial")
	innerRadius := fs.Float64("inner-radius", 2, "kernel inner radius in pixels")
	outerRadius := fs.Float64("outer-radius", 6, "kernel outer radius in pixels")
	threshold := fs.Float64("threshold", 3.0, "detection threshold on the convolved frame (absolute, or a multiple of the frame mean if -relative)")
	relative := fs.Bool("relative", false, "threshold is relative to each frame's background mean")
	minComponents := fs.Float64("min-components", 5, "minimum summed mass for a blob to be kept")
	maxComponents := fs.Float64("max-components", 1<<20, "maximum summed mass for a blob to be kept")
	peakScale := fs.Float64("peak-scale", 1.0, "ellipsoid semi-axis scale applied to each blob's inertia fit")
	workers := fs.Int("workers", 0, "convolution worker pool size (0 = config default)")
	stepSize := fs.Float64("step-size", 0.1, "rotation scan step size in radians per frame")
	axisIndex := fs.Int("axis-index", 0, "sample goniometer axis index driving this numor's scan")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return fmt.Errorf("%w: find-peaks needs a numor file and a report output path", xerr.InvalidInput)
	}
	numorPath, reportPath := fs.Arg(0), fs.Arg(1)
	if *instrumentPath == "" || *storePath == "" {
		return fmt.Errorf("%w: -instrument and -store are required", xerr.InvalidInput)
	}

	setup, err := loadInstrument(*instrumentPath)
	if err != nil {
		return err
	}
	numor, dataset, err := loadDataSet(numorPath, setup, *axisIndex, *stepSize)
	if err != nil {
		return err
	}

	cfg := config.EmptyTuningConfig()
	poolSize := *workers
	if poolSize <= 0 {
		poolSize = cfg.GetWorkerPoolSize()
	}

	params := blobfind.Params{
		Kernel:         blobfind.Shape(*kernel),
		InnerRadius:    *innerRadius,
		OuterRadius:    *outerRadius,
		Threshold:      *threshold,
		Relative:       *relative,
		MinComponents:  *minComponents,
		MaxComponents:  *maxComponents,
		PeakScale:      *peakScale,
		WorkerPoolSize: poolSize,
	}

	candidates, err := blobfind.Find(context.Background(), frameCounts(numor), setup.Detector.NRows, setup.Detector.NCols, params)
	if err != nil {
		return err
	}

	db, err := openStore(*storePath)
	if err != nil {
		return err
	}
	defer db.Close()

	expID := *experimentID
	if expID == "" {
		name := *experimentName
		if name == "" {
			name = numorPath
		}
		exp := &store.Experiment{Name: name, InstrumentName: setup.Name}
		if err := db.InsertExperiment(exp); err != nil {
			return err
		}
		expID = exp.ID
	}

	numorRow := &store.Numor{
		ExperimentID: expID,
		Numor:        numor.Header.Numor,
		FormatCode:   numor.Header.FormatCode,
		Wavelength:   numor.Header.Wavelength,
	}
	if err := db.InsertNumor(numorRow); err != nil {
		return err
	}

	f, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("%w: create report %s: %v", xerr.IO, reportPath, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "experiment-id: %s\nnumor-id: %s\npeaks found: %d\n\n", expID, numorRow.ID, len(candidates))
	fmt.Fprintln(f, "centre_px\tcentre_py\tframe\tmass\traw_intensity")
	for _, c := range candidates {
		shape, err := geom.NewEllipsoidFromAxes(c.Centre, c.SemiAxes, c.Orientation)
		if err != nil {
			return err
		}
		px, py, frame := c.Centre[0], c.Centre[1], c.Centre[2]
		// DetectorEvent is only called here to reject blobs whose centroid
		// falls outside the detector/frame range the instrument model
		// covers; the q-vector itself isn't persisted, since index
		// recomputes it from the stored frame/px/py once it reopens the
		// dataset (spec §6 "Persisted state").
		if _, err := dataset.DetectorEvent(px, py, frame); err != nil {
			continue
		}
		p := peak.NewPeak(shape, frame, px, py)
		p.RawIntensity = c.RawIntensity
		if _, err := db.InsertPeak(numorRow.ID, "", p); err != nil {
			return err
		}
		fmt.Fprintf(f, "%.3f\t%.3f\t%.3f\t%.3f\t%.3f\n", px, py, frame, c.Mass, c.RawIntensity)
	}

	fmt.Printf("experiment-id: %s\nnumor-id: %s\npeaks found: %d\n", expID, numorRow.ID, len(candidates))
	return nil
}
