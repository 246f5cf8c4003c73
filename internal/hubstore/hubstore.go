// Package hubstore is the durable local key-value store backing the
// Registry. One bbolt file per owning user under a configured directory,
// bucket "clients" holding keys "client:<client_id>", plus a single
// "meta:initialized" marker key recording first run.
package hubstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/filipexyz/orchestrator/internal/domain"
	bolt "go.etcd.io/bbolt"
)

var clientsBucket = []byte("clients")

const metaInitializedKey = "meta:initialized"

// Row is the serialized form of a domain.Client persisted to disk.
type Row struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Metadata    domain.Metadata `json:"metadata"`
	Status      domain.Status   `json:"status"`
	ConnectedAt time.Time       `json:"connected_at"`
	LastSeen    time.Time       `json:"last_seen"`
}

func fromClient(c domain.Client) Row {
	return Row{
		ID:          c.ID,
		UserID:      c.UserID,
		Metadata:    c.Metadata,
		Status:      c.Status,
		ConnectedAt: c.ConnectedAt,
		LastSeen:    c.LastSeen,
	}
}

func (r Row) toClient() domain.Client {
	return domain.Client{
		ID:          r.ID,
		UserID:      r.UserID,
		Metadata:    r.Metadata,
		Status:      r.Status,
		ConnectedAt: r.ConnectedAt,
		LastSeen:    r.LastSeen,
	}
}

// Store is one user's durable client registry, backed by its own bbolt
// file. The hub owning a given user is the sole writer; bbolt's
// single-writer transaction model matches the single-threaded-actor
// concurrency model directly, no extra locking needed.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt file for userID under dir.
func Open(dir, userID string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create hub store dir: %w", err)
	}
	path := filepath.Join(dir, userID+".db")

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open hub store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(clientsBucket)
		if err != nil {
			return err
		}
		if b.Get([]byte(metaInitializedKey)) == nil {
			return b.Put([]byte(metaInitializedKey), []byte(time.Now().UTC().Format(time.RFC3339)))
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init hub store: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func clientKey(id string) []byte {
	return []byte("client:" + id)
}

// Put persists a single client row.
func (s *Store) Put(c domain.Client) error {
	data, err := json.Marshal(fromClient(c))
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(clientsBucket).Put(clientKey(c.ID), data)
	})
}

// Delete removes a single client row.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(clientsBucket).Delete(clientKey(id))
	})
}

// LoadAll returns every persisted client row, used to rebuild the Registry
// on cold start.
func (s *Store) LoadAll() ([]domain.Client, error) {
	var rows []domain.Client
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(clientsBucket)
		return b.ForEach(func(k, v []byte) error {
			if string(k) == metaInitializedKey {
				return nil
			}
			var row Row
			if err := json.Unmarshal(v, &row); err != nil {
				return fmt.Errorf("corrupt row %q: %w", k, err)
			}
			rows = append(rows, row.toClient())
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// PutRetry implements the Transient error handling policy from §7: retry
// the write once with a fresh attempt before giving up.
func (s *Store) PutRetry(c domain.Client) error {
	err := s.Put(c)
	if err == nil {
		return nil
	}
	if err2 := s.Put(c); err2 != nil {
		return fmt.Errorf("%w: %v (retry: %v)", domain.ErrTransient, err, err2)
	}
	return nil
}

var ErrNotOpen = errors.New("hub store not open")
