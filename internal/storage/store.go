// Package storage persists the final report of each simulation run so
// results can be compared across runs.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"trafficsim/internal/stats"
)

const bucketRuns = "runs"

// maxRuns bounds the history; the oldest runs are pruned on save.
const maxRuns = 100

// RunRecord is one completed run as stored in history.
type RunRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	ConfigPath string    `json:"config_path"`

	DurationSeconds float64 `json:"duration_seconds"`
	Total           uint64  `json:"total_requests"`
	Success         uint64  `json:"success"`
	Failed          uint64  `json:"failed"`
	RPS             float64 `json:"rps"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	P50LatencyMs    float64 `json:"p50_latency_ms"`
	P99LatencyMs    float64 `json:"p99_latency_ms"`

	StatusCodes map[int]uint64 `json:"status_codes"`
}

// NewRunRecord summarizes a final snapshot for storage.
func NewRunRecord(id, configPath string, startedAt time.Time, snap stats.Snapshot) RunRecord {
	return RunRecord{
		ID:              id,
		StartedAt:       startedAt,
		ConfigPath:      configPath,
		DurationSeconds: snap.Elapsed.Seconds(),
		Total:           snap.Total,
		Success:         snap.Success,
		Failed:          snap.Failed,
		RPS:             snap.RPS,
		AvgLatencyMs:    snap.AvgLatencyMs,
		P50LatencyMs:    snap.P50LatencyMs,
		P99LatencyMs:    snap.P99LatencyMs,
		StatusCodes:     snap.StatusCodes,
	}
}

// Store is a bbolt-backed run history. Records are keyed by start time
// so a cursor walk returns them in chronological order.
type Store struct {
	db *bbolt.DB
}

// Open creates or opens the history database under dir. An empty dir
// defaults to ~/.trafficsim.
func Open(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".trafficsim")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(filepath.Join(dir, "history.db"), 0o600, &bbolt.Options{
		Timeout: time.Second,
	})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func key(r RunRecord) []byte {
	return []byte(r.StartedAt.UTC().Format(time.RFC3339Nano) + "/" + r.ID)
}

// Save appends a run record and prunes the oldest entries past the cap.
func (s *Store) Save(r RunRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketRuns))
		if err := b.Put(key(r), data); err != nil {
			return err
		}

		c := b.Cursor()
		// Stats reflects committed state only, so count the Put above.
		for n := b.Stats().KeyN + 1; n > maxRuns; n-- {
			k, _ := c.First()
			if k == nil {
				break
			}
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns all stored runs, newest first.
func (s *Store) List() ([]RunRecord, error) {
	var records []RunRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var r RunRecord
			if err := json.Unmarshal(v, &r); err != nil {
				continue
			}
			records = append(records, r)
		}
		return nil
	})
	return records, err
}

// Get looks a run up by its ID.
func (s *Store) Get(id string) (*RunRecord, error) {
	var found *RunRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var r RunRecord
			if err := json.Unmarshal(v, &r); err != nil {
				continue
			}
			if r.ID == id {
				found = &r
				return nil
			}
		}
		return fmt.Errorf("run %s not found", id)
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
