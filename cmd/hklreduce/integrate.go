package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/hklreduce/hklreduce/internal/asciireader"
	"github.com/hklreduce/hklreduce/internal/config"
	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/integrate"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// handleIntegrate integrates each predicted, not-yet-integrated peak's
// intensity from the numor's raw frame stack (spec §4.I, §6 "integrate").
func handleIntegrate(args []string) error {
	fs := flag.NewFlagSet("integrate", flag.ExitOnError)
	instrumentPath := fs.String("instrument", "", "instrument description YAML (required)")
	storePath := fs.String("store", "", "SQLite store path (required)")
	numorID := fs.String("numor-id", "", "numor ID whose predicted peaks to integrate (required)")
	stepSize := fs.Float64("step-size", 0.1, "rotation scan step size in radians per frame, matching find-peaks")
	axisIndex := fs.Int("axis-index", 0, "sample goniometer axis index driving this numor's scan")
	peakEnd := fs.Float64("peak-end", 0, "ellipsoid scale bounding the peak region (0 = config default)")
	bkgBegin := fs.Float64("bkg-begin", 0, "ellipsoid scale where background sampling begins (0 = config default)")
	bkgEnd := fs.Float64("bkg-end", 0, "ellipsoid scale where background sampling ends (0 = config default)")
	profileFit := fs.Bool("profile-fit", false, "also compute the sigma/I profile cutoff")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return fmt.Errorf("%w: integrate needs a numor file and a report output path", xerr.InvalidInput)
	}
	numorPath, reportPath := fs.Arg(0), fs.Arg(1)
	if *instrumentPath == "" || *storePath == "" || *numorID == "" {
		return fmt.Errorf("%w: -instrument, -store and -numor-id are required", xerr.InvalidInput)
	}

	setup, err := loadInstrument(*instrumentPath)
	if err != nil {
		return err
	}
	numor, _, err := loadDataSet(numorPath, setup, *axisIndex, *stepSize)
	if err != nil {
		return err
	}

	db, err := openStore(*storePath)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg := config.EmptyTuningConfig()
	defPeakEnd, defBkgBegin, defBkgEnd := cfg.GetIntegrationScales()
	if *peakEnd <= 0 {
		*peakEnd = defPeakEnd
	}
	if *bkgBegin <= 0 {
		*bkgBegin = defBkgBegin
	}
	if *bkgEnd <= 0 {
		*bkgEnd = defBkgEnd
	}
	fitDefault, sigmaMax, bins := cfg.GetIntegrateProfileFit()
	doProfileFit := *profileFit || fitDefault
	nBins := 0
	if doProfileFit {
		nBins = bins
	}
	scales := integrate.Scales{PeakEnd: *peakEnd, BkgBegin: *bkgBegin, BkgEnd: *bkgEnd}

	rows, err := db.ListPeakRows(*numorID)
	if err != nil {
		return err
	}

	f, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("%w: create report %s: %v", xerr.IO, reportPath, err)
	}
	defer f.Close()
	fmt.Fprintln(f, "h\tk\tl\tintensity\tvariance\tn_peak_px\tn_bkg_px")

	integrated := 0
	for _, row := range rows {
		p := row.Peak
		if !p.Indexed || p.RawIntensity != 0 || p.Variance != 0 {
			continue
		}
		bkgShape := p.Shape.Scale(*bkgEnd)
		samples, err := sampleVoxels(numor, bkgShape.BoundingBox())
		if err != nil {
			return err
		}
		result, err := integrate.Integrate(p.Shape, samples, scales, sigmaMax, nBins)
		if err != nil {
			continue
		}
		if err := db.UpdatePeakIntensity(row.ID, result.Intensity, result.Variance); err != nil {
			return err
		}
		integrated++
		fmt.Fprintf(f, "%d\t%d\t%d\t%.3f\t%.3f\t%d\t%d\n",
			int(p.HKL[0]), int(p.HKL[1]), int(p.HKL[2]), result.Intensity, result.Variance, result.NPeakPixels, result.NBkgPixels)
	}

	fmt.Printf("peaks integrated: %d/%d\n", integrated, len(rows))
	return nil
}

// sampleVoxels reads every (col, row, frame) voxel within box from the
// numor's raw frame stack, clamped to the detector and frame extents,
// as integrate.Integrate's input samples. Position uses the same
// (px, py, frame) coordinate space as the peak's ellipsoid, since that
// is the space Ellipsoid.Radius2 measures against.
func sampleVoxels(n *asciireader.Numor, box geom.Box) ([]integrate.VoxelSample, error) {
	if len(n.Frames) == 0 {
		return nil, fmt.Errorf("%w: numor has no frames", xerr.InvalidInput)
	}
	cols, rows := n.Frames[0].Cols, n.Frames[0].Rows
	colLo, colHi := clampRange(box.Lo[0], box.Hi[0], cols-1)
	rowLo, rowHi := clampRange(box.Lo[1], box.Hi[1], rows-1)
	frameLo, frameHi := clampRange(box.Lo[2], box.Hi[2], len(n.Frames)-1)

	var samples []integrate.VoxelSample
	for fr := frameLo; fr <= frameHi; fr++ {
		frame := n.Frames[fr]
		for row := rowLo; row <= rowHi; row++ {
			for col := colLo; col <= colHi; col++ {
				samples = append(samples, integrate.VoxelSample{
					Position: geom.Vec3{float64(col), float64(row), float64(fr)},
					Count:    frame.At(row, col),
				})
			}
		}
	}
	return samples, nil
}

// clampRange converts a continuous [lo, hi] bound to an inclusive
// integer index range, clamped to [0, max].
func clampRange(lo, hi float64, max int) (int, int) {
	l, h := int(math.Floor(lo)), int(math.Ceil(hi))
	if l < 0 {
		l = 0
	}
	if h > max {
		h = max
	}
	return l, h
}
