// Package storage keeps the training-run ledger. Every finished training run
// is recorded with its parameters, held-out metrics and the artifact it
// produced, so a deployment can tell which run a served model came from.
//
// BoltDB is the storage engine. Records are JSON values keyed by
// "model_timestamp", which keeps the runs of one model in time order and
// makes range queries a cursor scan.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	runsBucket         = "training_runs"
	preparationsBucket = "preparations"

	dbFile = "training-runs.db"
)

// ErrNoRuns is returned when a model has no recorded run.
var ErrNoRuns = errors.New("storage: no training runs recorded")

// Store is the run ledger backed by BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the ledger under dataPath.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(preparationsBucket)); err != nil {
			return fmt.Errorf("create preparations bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is harmless.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func runKey(model string, ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s_%020d", model, ts.UnixNano()))
}

// ownsKey tells keys of a model apart from keys of a model whose name merely
// starts with the same prefix.
func ownsKey(k, prefix []byte) bool {
	return bytes.HasPrefix(k, prefix) && len(k) == len(prefix)+20
}

// RecordRun stores a finished run. The run ID is derived from its model name
// and finish time when empty.
func (s *Store) RecordRun(run RunRecord) (string, error) {
	if run.Model == "" {
		return "", fmt.Errorf("run has no model name")
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	key := runKey(run.Model, run.FinishedAt)
	if run.ID == "" {
		run.ID = string(key)
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}
		return tx.Bucket([]byte(runsBucket)).Put(key, data)
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// StorePreparation stores the fitted preprocessing of a run.
func (s *Store) StorePreparation(record PreparationRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal preparation: %w", err)
		}
		return tx.Bucket([]byte(preparationsBucket)).Put([]byte(record.RunID), data)
	})
}

// GetPreparation returns the preprocessing recorded for a run.
func (s *Store) GetPreparation(runID string) (*PreparationRecord, error) {
	var record *PreparationRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(preparationsBucket)).Get([]byte(runID))
		if data == nil {
			return fmt.Errorf("no preparation recorded for run %s", runID)
		}
		record = &PreparationRecord{}
		return json.Unmarshal(data, record)
	})
	return record, err
}

// GetRuns returns the runs of model finished within [start, end], oldest first.
func (s *Store) GetRuns(model string, start, end time.Time) ([]RunRecord, error) {
	var runs []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()

		prefix := []byte(model + "_")
		endKey := runKey(model, end)

		for k, v := c.Seek(runKey(model, start)); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !ownsKey(k, prefix) {
				continue
			}
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				continue // skip malformed records
			}
			runs = append(runs, run)
		}
		return nil
	})

	return runs, err
}

// LatestRun returns the most recent run of model.
func (s *Store) LatestRun(model string) (*RunRecord, error) {
	var latest *RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		prefix := []byte(model + "_")

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if !ownsKey(k, prefix) {
				continue
			}
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				continue
			}
			latest = &run
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, ErrNoRuns
	}
	return latest, nil
}
