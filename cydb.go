// Package cydb is the external API facade (C6): it translates key/value
// calls into the B-tree driver, wraps every returned error into the
// closed error taxonomy of spec.md §7, and is the one layer allowed to
// treat a corrupted page as fatal.
package cydb

import (
	"bytes"
	"cydb/btree"
	"cydb/storage_engine/node"
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrDbNotInit is returned by any operation invoked on a nil or
	// already-closed *DB.
	ErrDbNotInit = errors.New("cydb: database not open")
	// ErrKeyNotFound is returned by Get/Remove when the key is absent.
	ErrKeyNotFound = errors.New("cydb: key not found")
	// ErrIo wraps a failure from the underlying data file, WAL, or
	// metadata sidecar.
	ErrIo = errors.New("cydb: io error")
	// ErrInternal wraps any other driver-level failure.
	ErrInternal = errors.New("cydb: internal error")
)

// Options configures Open. Both fields are supplemented (non-spec)
// knobs; zero values pick spec.md's defaults.
type Options struct {
	PageSize           int
	BufferPoolCapacity int
}

// DB is one open database directory.
type DB struct {
	tree *btree.BTree
}

// Open opens (creating if absent) the database directory at dir.
func Open(dir string, opts Options) (*DB, error) {
	tree, err := btree.Open(dir, btree.Options{
		PageSize:           opts.PageSize,
		BufferPoolCapacity: opts.BufferPoolCapacity,
	})
	if err != nil {
		return nil, fmt.Errorf("cydb: open: %w", classify(err))
	}
	return &DB{tree: tree}, nil
}

// Get returns key's value, or ErrKeyNotFound.
func (db *DB) Get(key []byte) ([]byte, error) {
	if db == nil || db.tree == nil {
		return nil, ErrDbNotInit
	}
	v, err := db.tree.Get(key)
	if errors.Is(err, btree.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cydb: get: %w", classify(err))
	}
	return v, nil
}

// Set inserts key or overwrites its existing value.
func (db *DB) Set(key, value []byte) error {
	if db == nil || db.tree == nil {
		return ErrDbNotInit
	}
	if err := db.tree.Set(key, value); err != nil {
		return fmt.Errorf("cydb: set: %w", classify(err))
	}
	return nil
}

// Remove deletes key, or returns ErrKeyNotFound.
func (db *DB) Remove(key []byte) error {
	if db == nil || db.tree == nil {
		return ErrDbNotInit
	}
	err := db.tree.Remove(key)
	if errors.Is(err, btree.ErrKeyNotFound) {
		return ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("cydb: remove: %w", classify(err))
	}
	return nil
}

// Cursor walks keys in [start, end] in ascending order.
type Cursor struct {
	it  *btree.Iterator
	end []byte
}

// Valid reports whether Key/Value can be called.
func (c *Cursor) Valid() bool {
	if !c.it.Valid() {
		return false
	}
	return c.end == nil || bytes.Compare(c.it.Key(), c.end) <= 0
}

func (c *Cursor) Key() []byte   { return c.it.Key() }
func (c *Cursor) Value() []byte { return c.it.Value() }
func (c *Cursor) Next() error   { return c.it.Next() }
func (c *Cursor) Close() error  { return c.it.Close() }

// Scan returns a Cursor positioned at the first key >= start, yielding
// keys through end inclusive. A nil end scans to the end of the tree.
func (db *DB) Scan(start, end []byte) (*Cursor, error) {
	if db == nil || db.tree == nil {
		return nil, ErrDbNotInit
	}
	it, err := db.tree.SeekGE(start)
	if err != nil {
		return nil, fmt.Errorf("cydb: scan: %w", classify(err))
	}
	return &Cursor{it: it, end: end}, nil
}

// Close flushes all state and releases the database directory.
func (db *DB) Close() error {
	if db == nil || db.tree == nil {
		return ErrDbNotInit
	}
	if err := db.tree.Close(); err != nil {
		return fmt.Errorf("cydb: close: %w", classify(err))
	}
	db.tree = nil
	return nil
}

// classify maps a driver error onto the closed taxonomy. A checksum
// mismatch is fatal per spec.md §7: the facade is the only layer allowed
// to end the process over it, since a silently corrupted page may carry
// misleading data into the tree.
func classify(err error) error {
	if errors.Is(err, node.ErrCorruption) {
		panic(fmt.Errorf("cydb: fatal: %w", err))
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%w: %v", ErrIo, err)
	}
	return fmt.Errorf("%w: %v", ErrInternal, err)
}
