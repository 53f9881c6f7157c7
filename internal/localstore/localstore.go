// Package localstore is a small string key/value store on top of Pebble.
// It backs state snapshots and the stable client identity slot.
package localstore

import (
	"bytes"
	"errors"

	"github.com/cockroachdb/pebble"
	"github.com/decred/slog"
)

// ErrNotOpen signals an operation against a store that is not open, either
// never opened or closed underneath the caller.
var ErrNotOpen = errors.New("local store not open")

// DB wraps an open Pebble database. A nil *DB is valid and reports itself
// unavailable from every method.
type DB struct {
	pdb *pebble.DB
	log slog.Logger
}

// Open opens (or creates) the Pebble database under dir.
func Open(dir string, log slog.Logger) (*DB, error) {
	if log == nil {
		log = slog.Disabled
	}
	pdb, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		log.Errorf("Failed to open store at %s: %v", dir, err)
		return nil, err
	}
	log.Infof("Opened store at %s", dir)
	return &DB{pdb: pdb, log: log}, nil
}

// Available reports whether the store can serve reads and writes.
func (d *DB) Available() bool {
	return d != nil && d.pdb != nil
}

// Get returns the value stored under key. The second return is false when
// the key does not exist; that is not an error.
func (d *DB) Get(key string) (string, bool, error) {
	if !d.Available() {
		return "", false, ErrNotOpen
	}
	v, closer, err := d.pdb.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		d.log.Errorf("Get %s failed: %v", key, err)
		return "", false, err
	}
	if closer != nil {
		defer closer.Close()
	}
	return string(v), true, nil
}

// Set stores value under key, synced to disk before returning.
func (d *DB) Set(key, value string) error {
	if !d.Available() {
		return ErrNotOpen
	}
	if err := d.pdb.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		d.log.Errorf("Set %s failed: %v", key, err)
		return err
	}
	d.log.Tracef("Set %s (%d bytes)", key, len(value))
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (d *DB) Delete(key string) error {
	if !d.Available() {
		return ErrNotOpen
	}
	if err := d.pdb.Delete([]byte(key), pebble.Sync); err != nil {
		d.log.Errorf("Delete %s failed: %v", key, err)
		return err
	}
	return nil
}

// Keys returns all keys starting with prefix, in lexicographic order. An
// empty prefix lists every key.
func (d *DB) Keys(prefix string) ([]string, error) {
	if !d.Available() {
		return nil, ErrNotOpen
	}
	iter, err := d.pdb.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	pfx := []byte(prefix)
	var out []string
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		// string conversion copies; iter.Key is only valid until Next.
		out = append(out, string(iter.Key()))
	}
	return out, iter.Error()
}

// Close closes the database. Close on a nil or unopened DB is a no-op.
func (d *DB) Close() error {
	if !d.Available() {
		return nil
	}
	err := d.pdb.Close()
	d.pdb = nil
	if err != nil {
		return err
	}
	d.log.Infof("Store closed")
	return nil
}
