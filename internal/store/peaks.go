package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/peak"
	"github.com/hklreduce/hklreduce/internal/xerr"
	"github.com/hklreduce/hklreduce/internal/xtal"
)

// InsertPeak persists a peak under numorID, optionally linking a stored
// unit cell by its stable ID. Serialises the ellipsoid as its centre
// plus the metric's six upper-triangular entries, plus the detector-space
// frame/px/py a later stage needs to re-derive the peak's q-vector, per
// spec §6 "Persisted state".
func (s *Store) InsertPeak(numorID string, unitCellID string, p *peak.Peak) (string, error) {
	id := uuid.New().String()
	m := p.Shape.Metric()
	var hkl sql.NullFloat64
	var kv, lv sql.NullFloat64
	if p.Indexed {
		hkl = sql.NullFloat64{Float64: p.HKL[0], Valid: true}
		kv = sql.NullFloat64{Float64: p.HKL[1], Valid: true}
		lv = sql.NullFloat64{Float64: p.HKL[2], Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO peaks (
			peak_id, numor_id, unit_cell_id,
			centre_x, centre_y, centre_z,
			metric_xx, metric_xy, metric_xz, metric_yy, metric_yz, metric_zz,
			h, k, l,
			raw_intensity, variance, transmission, selected, masked,
			frame, px, py
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, numorID, nullString(unitCellID),
		p.Shape.Centre[0], p.Shape.Centre[1], p.Shape.Centre[2],
		m.At(0, 0), m.At(0, 1), m.At(0, 2), m.At(1, 1), m.At(1, 2), m.At(2, 2),
		hkl, kv, lv,
		p.RawIntensity, p.Variance, p.Transmission, boolToInt(p.Selected), boolToInt(p.Masked),
		p.Frame, p.Px, p.Py,
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert peak: %v", xerr.IO, err)
	}
	return id, nil
}

// PeakRow pairs a peak's stable ID with its decoded value, for callers
// (the indexer, the refiner) that need to write updates back by ID.
type PeakRow struct {
	ID   string
	Peak *peak.Peak
}

// ListPeaks retrieves every peak stored under numorID, resolving each
// row's unit-cell link (if any) through GetUnitCell.
func (s *Store) ListPeaks(numorID string) ([]*peak.Peak, error) {
	rows, err := s.ListPeakRows(numorID)
	if err != nil {
		return nil, err
	}
	out := make([]*peak.Peak, len(rows))
	for i, r := range rows {
		out[i] = r.Peak
	}
	return out, nil
}

// ListPeakRows is ListPeaks plus each row's stable ID, for callers that
// need to write an update back (indexing assignment, integrated
// intensities) without re-inserting a duplicate row.
func (s *Store) ListPeakRows(numorID string) ([]PeakRow, error) {
	rows, err := s.db.Query(
		`SELECT peak_id, unit_cell_id, centre_x, centre_y, centre_z,
		        metric_xx, metric_xy, metric_xz, metric_yy, metric_yz, metric_zz,
		        h, k, l, raw_intensity, variance, transmission, selected, masked,
		        frame, px, py
		 FROM peaks WHERE numor_id = ?`, numorID)
	if err != nil {
		return nil, fmt.Errorf("%w: list peaks for numor %s: %v", xerr.IO, numorID, err)
	}
	defer rows.Close()
	return s.scanPeakRows(rows)
}

// ListPeaksByExperiment retrieves every peak stored under any numor
// belonging to experimentID, the selection merge needs to pool
// reflections across a multi-numor experiment (spec §6 "merge").
func (s *Store) ListPeaksByExperiment(experimentID string) ([]PeakRow, error) {
	rows, err := s.db.Query(
		`SELECT peak_id, unit_cell_id, centre_x, centre_y, centre_z,
		        metric_xx, metric_xy, metric_xz, metric_yy, metric_yz, metric_zz,
		        h, k, l, raw_intensity, variance, transmission, selected, masked,
		        frame, px, py
		 FROM peaks WHERE numor_id IN (SELECT numor_id FROM numors WHERE experiment_id = ?)`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("%w: list peaks for experiment %s: %v", xerr.IO, experimentID, err)
	}
	defer rows.Close()
	return s.scanPeakRows(rows)
}

func (s *Store) scanPeakRows(rows *sql.Rows) ([]PeakRow, error) {
	cellCache := map[string]*xtal.UnitCell{}
	var out []PeakRow
	for rows.Next() {
		var peakID string
		var unitCellID sql.NullString
		var cx, cy, cz float64
		var mxx, mxy, mxz, myy, myz, mzz float64
		var h, k, l sql.NullFloat64
		var rawIntensity, variance, transmission float64
		var selected, masked int
		var frame, px, py float64
		if err := rows.Scan(&peakID, &unitCellID, &cx, &cy, &cz, &mxx, &mxy, &mxz, &myy, &myz, &mzz,
			&h, &k, &l, &rawIntensity, &variance, &transmission, &selected, &masked,
			&frame, &px, &py); err != nil {
			return nil, fmt.Errorf("%w: scan peak row: %v", xerr.IO, err)
		}
		shape, err := geom.NewEllipsoid(geom.Vec3{cx, cy, cz}, [9]float64{
			mxx, mxy, mxz,
			mxy, myy, myz,
			mxz, myz, mzz,
		})
		if err != nil {
			return nil, err
		}
		p := peak.NewPeak(shape, frame, px, py)
		p.RawIntensity, p.Variance, p.Transmission = rawIntensity, variance, transmission
		p.Selected, p.Masked = selected != 0, masked != 0
		if h.Valid && k.Valid && l.Valid {
			p.HKL = geom.Vec3{h.Float64, k.Float64, l.Float64}
			p.Indexed = true
		}
		if unitCellID.Valid {
			cell, ok := cellCache[unitCellID.String]
			if !ok {
				cell, err = s.GetUnitCell(unitCellID.String)
				if err != nil {
					return nil, err
				}
				cellCache[unitCellID.String] = cell
			}
			p.Cell = cell
		}
		out = append(out, PeakRow{ID: peakID, Peak: p})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", xerr.IO, err)
	}
	return out, nil
}

// UpdatePeakIndexing links peakID to unitCellID and records its assigned
// Miller index, the write-back half of InsertPeak's initial unindexed row
// (spec §6 "index" updates a peak's cell/HKL link once it's been indexed).
func (s *Store) UpdatePeakIndexing(peakID, unitCellID string, hkl geom.Vec3) error {
	_, err := s.db.Exec(
		`UPDATE peaks SET unit_cell_id = ?, h = ?, k = ?, l = ? WHERE peak_id = ?`,
		unitCellID, hkl[0], hkl[1], hkl[2], peakID,
	)
	if err != nil {
		return fmt.Errorf("%w: update peak indexing: %v", xerr.IO, err)
	}
	return nil
}

// UpdatePeakIntensity records the integrator's raw intensity/variance for
// peakID, the write-back half of InsertPeak's initial zero-intensity
// predicted row (spec §4.I).
func (s *Store) UpdatePeakIntensity(peakID string, rawIntensity, variance float64) error {
	_, err := s.db.Exec(
		`UPDATE peaks SET raw_intensity = ?, variance = ? WHERE peak_id = ?`,
		rawIntensity, variance, peakID,
	)
	if err != nil {
		return fmt.Errorf("%w: update peak intensity: %v", xerr.IO, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
