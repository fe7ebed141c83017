// Package config holds the machine-managed tuning parameters for the
// reduction pipeline, mirroring the teacher's optional-pointer-field JSON
// document so that partial overrides are always safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the canonical tuning defaults file, relative to the
// repository root.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root tunable-parameter document. Every field is a
// pointer so that a JSON document overriding only a handful of fields
// round-trips without clobbering the rest with zero values.
type TuningConfig struct {
	// Blob finder (§4.D)
	BlobKernel        *string  `json:"blob_kernel,omitempty"`
	BlobThreshold     *float64 `json:"blob_threshold,omitempty"`
	BlobRelative      *bool    `json:"blob_relative,omitempty"`
	BlobMinComponents *int     `json:"blob_min_components,omitempty"`
	BlobMaxComponents *int     `json:"blob_max_components,omitempty"`
	BlobPeakScale     *float64 `json:"blob_peak_scale,omitempty"`
	BlobBkgBegin      *float64 `json:"blob_bkg_begin,omitempty"`
	BlobBkgEnd        *float64 `json:"blob_bkg_end,omitempty"`

	// Auto-indexer (§4.F)
	IndexMaxDim           *float64 `json:"index_max_dim,omitempty"`
	IndexNVertices        *int     `json:"index_n_vertices,omitempty"`
	IndexSubdiv           *int     `json:"index_subdiv,omitempty"`
	IndexTolerance        *float64 `json:"index_tolerance,omitempty"`
	NiggliTolerance       *float64 `json:"niggli_tolerance,omitempty"`
	GruberTolerance       *float64 `json:"gruber_tolerance,omitempty"`
	MinUnitCellVolume     *float64 `json:"min_unit_cell_volume,omitempty"`
	CellEquivalenceTol    *float64 `json:"cell_equivalence_tolerance,omitempty"`
	IndexSolutionCutoff   *int     `json:"index_solution_cutoff,omitempty"`

	// Refiner (§4.G)
	RefineBatches *int     `json:"refine_batches,omitempty"`
	RefineXTol    *float64 `json:"refine_xtol,omitempty"`
	RefineGTol    *float64 `json:"refine_gtol,omitempty"`
	RefineFTol    *float64 `json:"refine_ftol,omitempty"`
	RefineMaxIter *int     `json:"refine_max_iter,omitempty"`

	// Predictor (§4.H)
	PredictDMin          *float64 `json:"predict_d_min,omitempty"`
	PredictDMax          *float64 `json:"predict_d_max,omitempty"`
	PredictRadius        *float64 `json:"predict_radius,omitempty"`
	PredictNFrames       *int     `json:"predict_n_frames,omitempty"`
	PredictMinNeighbours *int     `json:"predict_min_neighbours,omitempty"`
	PredictInterpolation *string  `json:"predict_interpolation,omitempty"`

	// Integrator (§4.I)
	IntegratePeakEnd  *float64 `json:"integrate_peak_end,omitempty"`
	IntegrateBkgBegin *float64 `json:"integrate_bkg_begin,omitempty"`
	IntegrateBkgEnd   *float64 `json:"integrate_bkg_end,omitempty"`
	IntegrateSigmaMax *float64 `json:"integrate_sigma_max,omitempty"`
	IntegrateBins     *int     `json:"integrate_bins,omitempty"`
	ProfileFit        *bool    `json:"profile_fit,omitempty"`

	// Merger (§4.J)
	MergeSpaceGroup *string `json:"merge_space_group,omitempty"`
	MergeFriedel    *bool   `json:"merge_friedel,omitempty"`

	// Concurrency (§5)
	WorkerPoolSize *int `json:"worker_pool_size,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a TuningConfig with every field nil; callers
// apply Get* accessors (below) to fall back to the built-in defaults.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the document keep their nil (default-falling-back) value, so
// partial overrides are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that any set fields hold plausible values.
func (c *TuningConfig) Validate() error {
	if c.BlobPeakScale != nil && c.BlobBkgBegin != nil && *c.BlobPeakScale > *c.BlobBkgBegin {
		return fmt.Errorf("blob_peak_scale must be <= blob_bkg_begin")
	}
	if c.IntegratePeakEnd != nil && c.IntegrateBkgBegin != nil && *c.IntegratePeakEnd > *c.IntegrateBkgBegin {
		return fmt.Errorf("integrate_peak_end must be <= integrate_bkg_begin")
	}
	if c.IntegrateBkgBegin != nil && c.IntegrateBkgEnd != nil && *c.IntegrateBkgBegin >= *c.IntegrateBkgEnd {
		return fmt.Errorf("integrate_bkg_begin must be < integrate_bkg_end")
	}
	if c.RefineBatches != nil && *c.RefineBatches < 1 {
		return fmt.Errorf("refine_batches must be >= 1")
	}
	return nil
}

// Accessors fall back to the documented default whenever the field is nil.

func (c *TuningConfig) GetBlobKernel() string {
	if c != nil && c.BlobKernel != nil {
		return *c.BlobKernel
	}
	return "annular"
}

func (c *TuningConfig) GetBlobThreshold() float64 {
	if c != nil && c.BlobThreshold != nil {
		return *c.BlobThreshold
	}
	return 3.0
}

func (c *TuningConfig) GetBlobMinComponents() int {
	if c != nil && c.BlobMinComponents != nil {
		return *c.BlobMinComponents
	}
	return 5
}

func (c *TuningConfig) GetBlobMaxComponents() int {
	if c != nil && c.BlobMaxComponents != nil {
		return *c.BlobMaxComponents
	}
	return 1 << 20
}

func (c *TuningConfig) GetBlobScales() (peakScale, bkgBegin, bkgEnd float64) {
	peakScale, bkgBegin, bkgEnd = 1.0, 1.5, 2.0
	if c == nil {
		return
	}
	if c.BlobPeakScale != nil {
		peakScale = *c.BlobPeakScale
	}
	if c.BlobBkgBegin != nil {
		bkgBegin = *c.BlobBkgBegin
	}
	if c.BlobBkgEnd != nil {
		bkgEnd = *c.BlobBkgEnd
	}
	return
}

func (c *TuningConfig) GetRefineBatches() int {
	if c != nil && c.RefineBatches != nil {
		return *c.RefineBatches
	}
	return 1
}

func (c *TuningConfig) GetRefineTolerances() (xtol, gtol, ftol float64, maxIter int) {
	xtol, gtol, ftol, maxIter = 1e-8, 1e-8, 1e-8, 100
	if c == nil {
		return
	}
	if c.RefineXTol != nil {
		xtol = *c.RefineXTol
	}
	if c.RefineGTol != nil {
		gtol = *c.RefineGTol
	}
	if c.RefineFTol != nil {
		ftol = *c.RefineFTol
	}
	if c.RefineMaxIter != nil {
		maxIter = *c.RefineMaxIter
	}
	return
}

func (c *TuningConfig) GetIntegrationScales() (peakEnd, bkgBegin, bkgEnd float64) {
	peakEnd, bkgBegin, bkgEnd = 1.0, 1.5, 2.0
	if c == nil {
		return
	}
	if c.IntegratePeakEnd != nil {
		peakEnd = *c.IntegratePeakEnd
	}
	if c.IntegrateBkgBegin != nil {
		bkgBegin = *c.IntegrateBkgBegin
	}
	if c.IntegrateBkgEnd != nil {
		bkgEnd = *c.IntegrateBkgEnd
	}
	return
}

func (c *TuningConfig) GetWorkerPoolSize() int {
	if c != nil && c.WorkerPoolSize != nil && *c.WorkerPoolSize > 0 {
		return *c.WorkerPoolSize
	}
	return 4
}

// GetIndexTolerances returns the auto-indexer's direction-search and
// reduction tolerances, falling back to the documented defaults.
func (c *TuningConfig) GetIndexTolerances() (maxDim, tolerance, niggliTol, gruberTol, minVolume, cellEquivTol float64, nVertices, subdiv, solutionCutoff int) {
	maxDim, tolerance, niggliTol, gruberTol = 50.0, 0.05, 1e-3, 1e-3
	minVolume, cellEquivTol = 10.0, 0.5
	nVertices, subdiv, solutionCutoff = 1000, 5, 20
	if c == nil {
		return
	}
	if c.IndexMaxDim != nil {
		maxDim = *c.IndexMaxDim
	}
	if c.IndexTolerance != nil {
		tolerance = *c.IndexTolerance
	}
	if c.NiggliTolerance != nil {
		niggliTol = *c.NiggliTolerance
	}
	if c.GruberTolerance != nil {
		gruberTol = *c.GruberTolerance
	}
	if c.MinUnitCellVolume != nil {
		minVolume = *c.MinUnitCellVolume
	}
	if c.CellEquivalenceTol != nil {
		cellEquivTol = *c.CellEquivalenceTol
	}
	if c.IndexNVertices != nil {
		nVertices = *c.IndexNVertices
	}
	if c.IndexSubdiv != nil {
		subdiv = *c.IndexSubdiv
	}
	if c.IndexSolutionCutoff != nil {
		solutionCutoff = *c.IndexSolutionCutoff
	}
	return
}

// GetPredictParams returns the predictor's resolution-shell and
// shape-library interpolation defaults.
func (c *TuningConfig) GetPredictParams() (dMin, dMax, radius float64, nFrames, minNeighbours int, interpolation string) {
	dMin, dMax, radius = 0.8, 10.0, 2.0
	nFrames, minNeighbours = 10, 3
	interpolation = "mean"
	if c == nil {
		return
	}
	if c.PredictDMin != nil {
		dMin = *c.PredictDMin
	}
	if c.PredictDMax != nil {
		dMax = *c.PredictDMax
	}
	if c.PredictRadius != nil {
		radius = *c.PredictRadius
	}
	if c.PredictNFrames != nil {
		nFrames = *c.PredictNFrames
	}
	if c.PredictMinNeighbours != nil {
		minNeighbours = *c.PredictMinNeighbours
	}
	if c.PredictInterpolation != nil {
		interpolation = *c.PredictInterpolation
	}
	return
}

// GetMergeDefaults returns the merger's default space group and Friedel
// flag when the CLI caller doesn't override them explicitly.
func (c *TuningConfig) GetMergeDefaults() (spaceGroup string, friedel bool) {
	spaceGroup = "P 1"
	if c == nil {
		return
	}
	if c.MergeSpaceGroup != nil {
		spaceGroup = *c.MergeSpaceGroup
	}
	if c.MergeFriedel != nil {
		friedel = *c.MergeFriedel
	}
	return
}

// GetIntegrateProfileFit reports whether the integrator should also run
// the sigma/I profile cutoff (spec §4.I), and the sigma range and radial
// bin count it should use when it does.
func (c *TuningConfig) GetIntegrateProfileFit() (fit bool, sigmaMax float64, bins int) {
	sigmaMax, bins = 3.0, 20
	if c == nil {
		return
	}
	if c.ProfileFit != nil {
		fit = *c.ProfileFit
	}
	if c.IntegrateSigmaMax != nil {
		sigmaMax = *c.IntegrateSigmaMax
	}
	if c.IntegrateBins != nil {
		bins = *c.IntegrateBins
	}
	return
}

// DefaultTuningConfig returns a fully-populated TuningConfig built from
// the same literal defaults the Get* accessors fall back to, useful as
// the seed for a written config/tuning.defaults.json document.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		BlobKernel:        ptrString("annular"),
		BlobThreshold:     ptrFloat64(3.0),
		BlobRelative:      ptrBool(false),
		BlobMinComponents: ptrInt(5),
		BlobMaxComponents: ptrInt(1 << 20),
		BlobPeakScale:     ptrFloat64(1.0),
		BlobBkgBegin:      ptrFloat64(1.5),
		BlobBkgEnd:        ptrFloat64(2.0),

		IndexMaxDim:         ptrFloat64(50.0),
		IndexNVertices:      ptrInt(1000),
		IndexSubdiv:         ptrInt(5),
		IndexTolerance:      ptrFloat64(0.05),
		NiggliTolerance:     ptrFloat64(1e-3),
		GruberTolerance:     ptrFloat64(1e-3),
		MinUnitCellVolume:   ptrFloat64(10.0),
		CellEquivalenceTol:  ptrFloat64(0.5),
		IndexSolutionCutoff: ptrInt(20),

		RefineBatches: ptrInt(1),
		RefineXTol:    ptrFloat64(1e-8),
		RefineGTol:    ptrFloat64(1e-8),
		RefineFTol:    ptrFloat64(1e-8),
		RefineMaxIter: ptrInt(100),

		PredictDMin:          ptrFloat64(0.8),
		PredictDMax:          ptrFloat64(10.0),
		PredictRadius:        ptrFloat64(2.0),
		PredictNFrames:       ptrInt(10),
		PredictMinNeighbours: ptrInt(3),
		PredictInterpolation: ptrString("mean"),

		IntegratePeakEnd:  ptrFloat64(1.0),
		IntegrateBkgBegin: ptrFloat64(1.5),
		IntegrateBkgEnd:   ptrFloat64(2.0),
		IntegrateSigmaMax: ptrFloat64(3.0),
		IntegrateBins:     ptrInt(20),
		ProfileFit:        ptrBool(false),

		MergeSpaceGroup: ptrString("P 1"),
		MergeFriedel:    ptrBool(false),

		WorkerPoolSize: ptrInt(4),
	}
}
