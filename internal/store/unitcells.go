package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/hklreduce/hklreduce/internal/xerr"
	"github.com/hklreduce/hklreduce/internal/xtal"
)

// InsertUnitCell persists cell under experimentID under a newly generated
// stable ID, which it returns. Unit cells are copy-on-write in the
// in-memory model (§5 "Shared resources"), so each reduction stage that
// rebuilds a cell should call this again rather than mutate a stored row.
func (s *Store) InsertUnitCell(experimentID string, cell *xtal.UnitCell) (string, error) {
	id := uuid.New().String()
	a := direct3x3(cell.A)
	_, err := s.db.Exec(
		`INSERT INTO unit_cells (
			unit_cell_id, experiment_id,
			a00, a01, a02, a10, a11, a12, a20, a21, a22,
			bravais_type, centring_type, space_group, indexing_tol
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, experimentID,
		a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7], a[8],
		int(cell.BravaisType), int(cell.CentringType), cell.SpaceGroupName, cell.IndexingTol,
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert unit cell: %v", xerr.IO, err)
	}
	return id, nil
}

// GetUnitCell retrieves a unit cell by its stable ID and rebuilds it via
// xtal.NewUnitCell so the cached reciprocal basis is recomputed rather
// than also persisted redundantly.
func (s *Store) GetUnitCell(id string) (*xtal.UnitCell, error) {
	var a [9]float64
	var bravais, centring int
	var spaceGroup sql.NullString
	var tol float64
	err := s.db.QueryRow(
		`SELECT a00, a01, a02, a10, a11, a12, a20, a21, a22, bravais_type, centring_type, space_group, indexing_tol
		 FROM unit_cells WHERE unit_cell_id = ?`, id,
	).Scan(&a[0], &a[1], &a[2], &a[3], &a[4], &a[5], &a[6], &a[7], &a[8], &bravais, &centring, &spaceGroup, &tol)
	if err != nil {
		return nil, fmt.Errorf("%w: get unit cell %s: %v", xerr.IO, id, err)
	}
	cell, err := xtal.NewUnitCell(a, tol)
	if err != nil {
		return nil, err
	}
	cell.BravaisType = xtal.Bravais(bravais)
	cell.CentringType = xtal.Centring(centring)
	cell.SpaceGroupName = spaceGroup.String
	return cell, nil
}

// direct3x3 extracts A's 9 row-major entries for InsertUnitCell's row.
func direct3x3(a *mat.Dense) [9]float64 {
	d := a.RawMatrix().Data
	return [9]float64{d[0], d[1], d[2], d[3], d[4], d[5], d[6], d[7], d[8]}
}
