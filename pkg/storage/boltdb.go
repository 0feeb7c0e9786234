package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/hueshift/hueshift/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketSlots    = []byte("slots")
	bucketRoutes   = []byte("routes")
	bucketRollouts = []byte("rollouts")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "hueshift.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketSlots,
			bucketRoutes,
			bucketRollouts,
		}

		for _, bucket := range buckets {
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

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// slotKey composes the per-app slot key
func slotKey(app string, id types.SlotID) []byte {
	return []byte(app + "/" + string(id))
}

// Slot operations
func (s *BoltStore) SaveSlot(slot *types.Slot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSlots)
		data, err := json.Marshal(slot)
		if err != nil {
			return err
		}
		return b.Put(slotKey(slot.App, slot.ID), data)
	})
}

// SaveSlots writes all given slots in one transaction so a crash can
// never persist a partial activity flip.
func (s *BoltStore) SaveSlots(slots ...*types.Slot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSlots)
		for _, slot := range slots {
			data, err := json.Marshal(slot)
			if err != nil {
				return err
			}
			if err := b.Put(slotKey(slot.App, slot.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) GetSlot(app string, id types.SlotID) (*types.Slot, error) {
	var slot types.Slot
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSlots)
		data := b.Get(slotKey(app, id))
		if data == nil {
			return fmt.Errorf("%w: slot %s/%s", types.ErrNotFound, app, id)
		}
		return json.Unmarshal(data, &slot)
	})
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (s *BoltStore) ListSlots(app string) ([]*types.Slot, error) {
	var slots []*types.Slot
	prefix := []byte(app + "/")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSlots).Cursor()
		for k, v := c.Seek(prefix); k != nil && len(k) > len(prefix) && string(k[:len(prefix)]) == string(prefix); k, v = c.Next() {
			var slot types.Slot
			if err := json.Unmarshal(v, &slot); err != nil {
				return err
			}
			slots = append(slots, &slot)
		}
		return nil
	})
	return slots, err
}

// Route operations
func (s *BoltStore) SaveRoute(route *types.TrafficRoute) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRoutes)
		data, err := json.Marshal(route)
		if err != nil {
			return err
		}
		return b.Put([]byte(route.App), data)
	})
}

func (s *BoltStore) GetRoute(app string) (*types.TrafficRoute, error) {
	var route types.TrafficRoute
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRoutes)
		data := b.Get([]byte(app))
		if data == nil {
			return fmt.Errorf("%w: route %s", types.ErrNotFound, app)
		}
		return json.Unmarshal(data, &route)
	})
	if err != nil {
		return nil, err
	}
	return &route, nil
}

// Rollout record operations. Records are keyed by app plus a
// monotonically increasing sequence so iteration returns them in
// insertion order; existing entries are never overwritten.
func (s *BoltStore) AppendRolloutRecord(record *types.RolloutRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRollouts)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		record.Seq = seq

		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put(rolloutKey(record.App, seq), data)
	})
}

func (s *BoltStore) ListRolloutRecords(app string) ([]*types.RolloutRecord, error) {
	var records []*types.RolloutRecord
	prefix := []byte(app + "/")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRollouts).Cursor()
		for k, v := c.Seek(prefix); k != nil && len(k) > len(prefix) && string(k[:len(prefix)]) == string(prefix); k, v = c.Next() {
			var record types.RolloutRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
		}
		return nil
	})
	return records, err
}

// LatestRolloutRecord returns the most recent record for the app with
// the given outcome, or ErrNotFound if none exists. An empty outcome
// matches any record.
func (s *BoltStore) LatestRolloutRecord(app string, outcome types.RolloutOutcome) (*types.RolloutRecord, error) {
	records, err := s.ListRolloutRecords(app)
	if err != nil {
		return nil, err
	}
	for i := len(records) - 1; i >= 0; i-- {
		if outcome == "" || records[i].Outcome == outcome {
			return records[i], nil
		}
	}
	return nil, fmt.Errorf("%w: rollout record for %s", types.ErrNotFound, app)
}

// rolloutKey composes "app/<big-endian seq>" so cursor order follows
// insertion order within one app
func rolloutKey(app string, seq uint64) []byte {
	key := make([]byte, 0, len(app)+9)
	key = append(key, app...)
	key = append(key, '/')
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(key, buf[:]...)
}
