package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hklreduce/hklreduce/internal/xerr"
)

// Experiment is one persisted reduction session.
type Experiment struct {
	ID             string
	Name           string
	InstrumentName string
	CreatedAtNs    int64
}

// InsertExperiment persists a new experiment, generating a stable UUID
// if ID is empty (spec §9: peaks and unit cells reference experiments by
// a non-owning stable identifier, not a mutable pointer).
func (s *Store) InsertExperiment(e *Experiment) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAtNs == 0 {
		e.CreatedAtNs = time.Now().UnixNano()
	}
	_, err := s.db.Exec(
		`INSERT INTO experiments (experiment_id, name, instrument_name, created_at_ns) VALUES (?, ?, ?, ?)`,
		e.ID, e.Name, e.InstrumentName, e.CreatedAtNs,
	)
	if err != nil {
		return fmt.Errorf("%w: insert experiment: %v", xerr.IO, err)
	}
	return nil
}

// GetExperiment retrieves an experiment by ID.
func (s *Store) GetExperiment(id string) (*Experiment, error) {
	var e Experiment
	err := s.db.QueryRow(
		`SELECT experiment_id, name, instrument_name, created_at_ns FROM experiments WHERE experiment_id = ?`, id,
	).Scan(&e.ID, &e.Name, &e.InstrumentName, &e.CreatedAtNs)
	if err != nil {
		return nil, fmt.Errorf("%w: get experiment %s: %v", xerr.IO, id, err)
	}
	return &e, nil
}

// Numor is one persisted frame-stack's metadata.
type Numor struct {
	ID           string
	ExperimentID string
	Numor        int
	FormatCode   int
	Wavelength   float64
	CreatedAtNs  int64
}

// InsertNumor persists a numor record under an experiment.
func (s *Store) InsertNumor(n *Numor) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAtNs == 0 {
		n.CreatedAtNs = time.Now().UnixNano()
	}
	_, err := s.db.Exec(
		`INSERT INTO numors (numor_id, experiment_id, numor, format_code, wavelength, created_at_ns) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.ExperimentID, n.Numor, n.FormatCode, n.Wavelength, n.CreatedAtNs,
	)
	if err != nil {
		return fmt.Errorf("%w: insert numor: %v", xerr.IO, err)
	}
	return nil
}

// GetNumor retrieves a numor record by ID.
func (s *Store) GetNumor(id string) (*Numor, error) {
	var n Numor
	err := s.db.QueryRow(
		`SELECT numor_id, experiment_id, numor, format_code, wavelength, created_at_ns FROM numors WHERE numor_id = ?`, id,
	).Scan(&n.ID, &n.ExperimentID, &n.Numor, &n.FormatCode, &n.Wavelength, &n.CreatedAtNs)
	if err != nil {
		return nil, fmt.Errorf("%w: get numor %s: %v", xerr.IO, id, err)
	}
	return &n, nil
}

// ExperimentIDForNumor resolves a numor's owning experiment, the link a
// subcommand needs when it only has a numor ID in hand (index, refine)
// but must write a new unit cell under that numor's experiment.
func (s *Store) ExperimentIDForNumor(numorID string) (string, error) {
	var experimentID string
	err := s.db.QueryRow(`SELECT experiment_id FROM numors WHERE numor_id = ?`, numorID).Scan(&experimentID)
	if err != nil {
		return "", fmt.Errorf("%w: experiment for numor %s: %v", xerr.IO, numorID, err)
	}
	return experimentID, nil
}
