package history

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucket = "captures"

// Record describes the outcome of one capture session. Only metadata is
// stored, never image bytes.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Serials   []string  `json:"serials"`
	Duration  float64   `json:"duration_seconds"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Store keeps a chronological log of capture outcomes in bbolt.
type Store struct {
	db *bolt.DB
}

// NewStore creates the store and its bucket.
func NewStore(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Append saves one capture record, keyed by its timestamp.
func (s *Store) Append(rec Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}

		value, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		key := rec.Timestamp.UTC().Format(time.RFC3339Nano)
		return b.Put([]byte(key), value)
	})
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	var records []Record

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}

		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}
