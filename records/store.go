package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"vidserve/models"

	pebble "github.com/cockroachdb/pebble"
)

// ErrNotFound is returned when no record exists for an owner/id pair.
// A record owned by a different principal is indistinguishable from a
// missing one.
var ErrNotFound = errors.New("record not found")

var db *pebble.DB

// Keys are "owner/id" so one owner's records form a contiguous key range.
// Neither part is escaped, so a "/" inside an owner or a client-supplied id
// can make distinct pairs collide on one key; every read therefore checks
// the stored record's Owner before handing it out.
func recordKey(owner, id string) []byte {
	return []byte(owner + "/" + id)
}

// Init opens the record store at dbPath
func Init(dbPath string) error {
	var err error
	db, err = pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	return nil
}

// Close closes the record store
func Close() error {
	if db != nil {
		err := db.Close()
		db = nil
		return err
	}
	return nil
}

// Put persists one record. Writes are synced and independently atomic per
// record; concurrent jobs never touch each other's keys.
func Put(rec models.VideoRecord) error {
	if db == nil {
		return fmt.Errorf("record store not initialized")
	}
	if rec.ID == "" || rec.Owner == "" {
		return fmt.Errorf("record must have id and owner")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return db.Set(recordKey(rec.Owner, rec.ID), data, pebble.Sync)
}

// Get retrieves a record by owner and id.
func Get(owner, id string) (*models.VideoRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("record store not initialized")
	}

	data, closer, err := db.Get(recordKey(owner, id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	defer closer.Close()

	var rec models.VideoRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	if rec.Owner != owner {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Delete removes a record.
func Delete(owner, id string) error {
	if db == nil {
		return fmt.Errorf("record store not initialized")
	}
	return db.Delete(recordKey(owner, id), pebble.Sync)
}

// ListByOwner returns all of one owner's records, newest first.
func ListByOwner(owner string) ([]models.VideoRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("record store not initialized")
	}

	prefix := []byte(owner + "/")
	upper := []byte(owner + "0") // '0' is '/'+1, ends the owner's key range
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var recs []models.VideoRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var rec models.VideoRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue // Skip invalid records
		}
		// The prefix range also spans owners like "a/b" when listing "a".
		if rec.Owner != owner {
			continue
		}
		recs = append(recs, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iteration error: %w", err)
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return recs, nil
}

// ListAll returns every record in the store regardless of owner. Used by
// the orphan sweep to learn which artifacts are still referenced.
func ListAll() ([]models.VideoRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("record store not initialized")
	}

	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var recs []models.VideoRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var rec models.VideoRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iteration error: %w", err)
	}
	return recs, nil
}

// CheckHealth performs a basic health check on the record store.
func CheckHealth() error {
	if db == nil {
		return fmt.Errorf("record store not initialized")
	}
	_, closer, err := db.Get([]byte("__health_check__"))
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("record store health check failed: %w", err)
	}
	if closer != nil {
		closer.Close()
	}
	return nil
}
