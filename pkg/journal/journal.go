package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/stevedore-io/stevedore/pkg/types"
)

var (
	// Bucket names
	bucketDecisions = []byte("decisions")
	bucketOutcomes  = []byte("outcomes")
)

// Entry is one journaled scheduling decision: the ranked dispatch for a
// request attempt, or a terminal failure.
type Entry struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
	Attempt   int       `json:"attempt,omitempty"`
	Backend   string    `json:"backend,omitempty"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Journal is an append-only audit log of scheduler activity, kept
// outside the scheduling path: losing it never affects placement, and
// the scheduler rebuilds all working state from capability reports.
type Journal struct {
	db *bolt.DB
}

// Open creates or opens the journal database under dataDir.
func Open(dataDir string) (*Journal, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "stevedore.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketDecisions, bucketOutcomes} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordDecision appends a dispatch or terminal-failure entry.
func (j *Journal) RecordDecision(e Entry) error {
	return j.append(bucketDecisions, e)
}

// RecordOutcome appends a worker outcome report.
func (j *Journal) RecordOutcome(o *types.Outcome) error {
	return j.append(bucketOutcomes, Entry{
		RequestID: o.RequestID,
		Backend:   o.Host,
		Status:    string(o.Status),
		Error:     o.Detail,
	})
}

func (j *Journal) append(bucket []byte, e Entry) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		e.Seq = seq
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now().UTC()
		}
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal journal entry: %w", err)
		}
		return b.Put(seqKey(seq), data)
	})
}

// Decisions returns up to limit most recent decision entries, newest
// first. limit <= 0 returns everything.
func (j *Journal) Decisions(limit int) ([]Entry, error) {
	return j.tail(bucketDecisions, limit)
}

// Outcomes returns up to limit most recent outcome entries, newest first.
func (j *Journal) Outcomes(limit int) ([]Entry, error) {
	return j.tail(bucketOutcomes, limit)
}

func (j *Journal) tail(bucket []byte, limit int) ([]Entry, error) {
	var out []Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to unmarshal journal entry: %w", err)
			}
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// seqKey encodes the sequence number big-endian so cursor order is
// append order.
func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
