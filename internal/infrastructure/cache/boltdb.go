package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/habits/domain"
)

// ErrNoSnapshot is returned when an owner has never been cached.
var ErrNoSnapshot = errors.New("no cached habits for owner")

// Store wraps BoltDB to keep each owner's last-known-good habit list on disk.
type Store struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = "habits"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		bucket: []byte(bucket),
		now:    time.Now,
	}, nil
}

// SaveHabits replaces the owner's snapshot.
func (s *Store) SaveHabits(ownerID string, habits []domain.Habit) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if ownerID == "" {
		return domain.ErrInvalidPayload
	}
	if habits == nil {
		habits = []domain.Habit{}
	}

	payload, err := json.Marshal(Snapshot{
		OwnerID: ownerID,
		SavedAt: s.now().UTC(),
		Habits:  habits,
	})
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(ownerID), payload)
	})
}

// LoadHabits returns the owner's snapshot or ErrNoSnapshot.
func (s *Store) LoadHabits(ownerID string) (*Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}

	var snapshot *Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(ownerID))
		if v == nil {
			return ErrNoSnapshot
		}
		var decoded Snapshot
		if err := json.Unmarshal(v, &decoded); err != nil {
			return err
		}
		snapshot = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Forget drops the owner's snapshot, e.g. on sign-out.
func (s *Store) Forget(ownerID string) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(ownerID))
	})
}

// Size returns the number of cached owners.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup removes snapshots saved before olderThan.
func (s *Store) Cleanup(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			var snapshot Snapshot
			if err := json.Unmarshal(v, &snapshot); err != nil || snapshot.SavedAt.Before(olderThan) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
