// Package statestore persists scenario run state across restarts
// so iteration numbering and scenario-scope history survive a
// daemon restart.
package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"digital.vasic.netprobe/pkg/scenario"
)

const bucketScenarios = "scenarios"

// ErrNotFound is returned by Load for a scenario never saved.
var ErrNotFound = errors.New("statestore: scenario not found")

// Record is the persisted part of a scenario's RunState.
type Record struct {
	ScenarioID string               `json:"scenario_id"`
	Iteration  int                  `json:"iteration"`
	LastRun    time.Time            `json:"last_run"`
	History    []scenario.RunResult `json:"history"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// FromState captures a RunState for saving.
func FromState(s *scenario.RunState) Record {
	snap := s.Snapshot()
	return Record{
		ScenarioID: snap.ScenarioID,
		Iteration:  snap.Iteration,
		LastRun:    snap.LastRun,
		History:    s.History(),
	}
}

// Apply seeds s with the record's iteration counter, last run and
// history. The run count starts at zero: schedules re-anchor when
// the process starts, and run limits apply per process lifetime.
func (r Record) Apply(s *scenario.RunState) {
	s.Restore(r.Iteration, 0, r.LastRun, r.History)
}

// Store loads and saves run state records.
type Store interface {
	Load(scenarioID string) (Record, error)
	Save(rec Record) error
	Delete(scenarioID string) error
	List() ([]Record, error)
	Close() error
}

// BoltStore is a Store backed by a single bbolt file.
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens or creates the state file at path.
func Open(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening state file %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketScenarios))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket in Bolt: %w", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

// Load returns the record for scenarioID or ErrNotFound.
func (s *BoltStore) Load(scenarioID string) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketScenarios)).Get([]byte(scenarioID))
		if v == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("unmarshaling state JSON: %w", err)
		}
		return nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("loading state %s: %w", scenarioID, err)
	}
	return rec, nil
}

// Save writes rec, replacing any earlier record for the scenario.
func (s *BoltStore) Save(rec Record) error {
	if rec.ScenarioID == "" {
		return errors.New("statestore: record has no scenario id")
	}
	rec.UpdatedAt = s.now()

	v, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling state JSON: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketScenarios)).Put(
			[]byte(rec.ScenarioID), v,
		)
	})
	if err != nil {
		return fmt.Errorf("writing state %s to Bolt: %w", rec.ScenarioID, err)
	}
	return nil
}

// Delete removes the scenario's record. Deleting a missing record
// is not an error.
func (s *BoltStore) Delete(scenarioID string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketScenarios)).Delete([]byte(scenarioID))
	})
	if err != nil {
		return fmt.Errorf("deleting state %s: %w", scenarioID, err)
	}
	return nil
}

// List returns every stored record in key order.
func (s *BoltStore) List() ([]Record, error) {
	var recs []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketScenarios)).ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshaling state %s: %w", k, err)
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing states: %w", err)
	}
	return recs, nil
}

// Close closes the underlying bbolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
