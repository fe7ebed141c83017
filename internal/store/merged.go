package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hklreduce/hklreduce/internal/merge"
	"github.com/hklreduce/hklreduce/internal/xerr"
)

// InsertMergedPeaks persists every orbit in peaks under experimentID,
// replacing nothing (callers re-merge into a fresh table per run; the
// merger itself is commutative but re-running it does not retract a
// prior table).
func (s *Store) InsertMergedPeaks(experimentID string, peaks []*merge.MergedPeak) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin merged-peak transaction: %v", xerr.IO, err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO merged_reflections (merge_id, experiment_id, h, k, l, mean_intensity, standard_error, redundancy, resolution)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: prepare merged-peak insert: %v", xerr.IO, err)
	}
	defer stmt.Close()

	for _, p := range peaks {
		_, err := stmt.Exec(uuid.New().String(), experimentID, p.HKL[0], p.HKL[1], p.HKL[2],
			p.Mean(), p.StandardError(), p.Redundancy(), p.Resolution)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: insert merged peak: %v", xerr.IO, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit merged-peak transaction: %v", xerr.IO, err)
	}
	return nil
}

// MergedReflectionRow is one persisted merged-orbit summary: the mean
// and standard error are stored directly rather than reconstructed from
// individual observations, since those are not retained across a
// store round-trip.
type MergedReflectionRow struct {
	HKL           [3]int
	MeanIntensity float64
	StandardError float64
	Redundancy    int
	Resolution    float64
}

// ListMergedPeaks retrieves every merged reflection stored under
// experimentID.
func (s *Store) ListMergedPeaks(experimentID string) ([]MergedReflectionRow, error) {
	rows, err := s.db.Query(
		`SELECT h, k, l, mean_intensity, standard_error, redundancy, resolution
		 FROM merged_reflections WHERE experiment_id = ?`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("%w: list merged peaks: %v", xerr.IO, err)
	}
	defer rows.Close()

	var out []MergedReflectionRow
	for rows.Next() {
		var row MergedReflectionRow
		if err := rows.Scan(&row.HKL[0], &row.HKL[1], &row.HKL[2], &row.MeanIntensity, &row.StandardError, &row.Redundancy, &row.Resolution); err != nil {
			return nil, fmt.Errorf("%w: scan merged peak row: %v", xerr.IO, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", xerr.IO, err)
	}
	return out, nil
}
