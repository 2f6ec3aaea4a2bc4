// Package kvengine implements a single-user, embedded key-value
// storage engine over a fixed {id, username, email} schema, backed by
// a page-addressable B-tree file format. Table is the only type a
// caller needs: it wires the pager, node codec, and tree mutation
// layers together behind the insert/find/update/delete/scan/range
// operation API.
package kvengine

import (
	"errors"

	"kvengine/internal/btree"
	"kvengine/internal/kverr"
	"kvengine/internal/pager"
	"kvengine/internal/record"
)

// Record is the engine's single row schema, re-exported so callers
// never need to import internal/record directly.
type Record = record.Record

// Options configures Open. The zero value uses the engine's default
// page cache size.
type Options struct {
	CacheCapacity int
}

// Table is a single open page file and the B-tree over it.
type Table struct {
	pager *pager.Pager
	tree  *btree.BTree
}

// Open opens or creates the page file at path, locking it for
// exclusive access, and initializes a fresh root leaf if the file is
// new. Returns *kverr.Error with Code IO on an unreadable file and
// Code Corrupt if the file's length is not a positive multiple of the
// page size.
func Open(path string, opts Options) (*Table, error) {
	p, err := pager.Open(path, pager.Options{CacheCapacity: opts.CacheCapacity})
	if err != nil {
		return nil, mapPagerError("open", err)
	}

	var tree *btree.BTree
	if p.WasNew() {
		tree, err = btree.Create(p)
		if err != nil {
			p.Close()
			return nil, mapPagerError("open", err)
		}
	} else {
		tree = btree.Open(p)
	}

	return &Table{pager: p, tree: tree}, nil
}

// Close flushes all dirty pages, writes the file header, and releases
// the file lock.
func (t *Table) Close() error {
	if err := t.pager.Close(); err != nil {
		return kverr.Wrap("close", kverr.IO, err)
	}
	return nil
}

// Insert implements spec §6's insert: fails with DuplicateKey if
// record.ID already exists, InvalidArgument if the record's strings
// exceed their fixed-width slots.
func (t *Table) Insert(rec Record) error {
	if err := rec.Validate(); err != nil {
		return kverr.Wrap("insert", kverr.InvalidArgument, err)
	}

	if err := t.tree.Insert(rec.ID, rec); err != nil {
		return mapTreeError("insert", err)
	}
	return nil
}

// Find implements spec §6's find: returns the record and true if
// present, else a zero Record and false.
func (t *Table) Find(id uint32) (Record, bool, error) {
	rec, found, err := t.tree.Find(id)
	if err != nil {
		return Record{}, false, mapTreeError("find", err)
	}
	return rec, found, nil
}

// Update implements spec §6's update: fails with NotFound if rec.ID is
// absent, InvalidArgument if the record's strings exceed their
// fixed-width slots.
func (t *Table) Update(rec Record) error {
	if err := rec.Validate(); err != nil {
		return kverr.Wrap("update", kverr.InvalidArgument, err)
	}

	if err := t.tree.Update(rec); err != nil {
		return mapTreeError("update", err)
	}
	return nil
}

// Delete implements spec §6's delete: fails with NotFound if id is
// absent.
func (t *Table) Delete(id uint32) error {
	if err := t.tree.Delete(id); err != nil {
		return mapTreeError("delete", err)
	}
	return nil
}

// Scan implements spec §6's scan: fn is called once per record in
// ascending id order. Returning false from fn stops the scan early.
func (t *Table) Scan(fn func(Record) (bool, error)) error {
	err := t.tree.Scan(func(_ uint32, rec record.Record) (bool, error) {
		return fn(rec)
	})
	if err != nil {
		return mapTreeError("scan", err)
	}
	return nil
}

// Range implements spec §6's range: fn is called once per record with
// lo <= id <= hi, in ascending order. Returns InvalidArgument if
// lo > hi.
func (t *Table) Range(lo, hi uint32, fn func(Record) (bool, error)) error {
	err := t.tree.Range(lo, hi, func(_ uint32, rec record.Record) (bool, error) {
		return fn(rec)
	})
	if err != nil {
		return mapTreeError("range", err)
	}
	return nil
}

// Validate implements spec §4.7/§6's debug validate: walks the tree
// checking every structural invariant and the freelist, returning a
// diagnostic report rather than a bare bool.
func (t *Table) Validate() (*btree.Report, error) {
	report, err := t.tree.Validate()
	if err != nil {
		return nil, kverr.Wrap("validate", kverr.Corrupt, err)
	}
	return report, nil
}

// Stats exposes the page cache's hit/miss/eviction counters, useful
// for the property tests in spec §8 without adding new persisted
// state.
func (t *Table) Stats() pager.Stats {
	return t.pager.Stats()
}

func mapTreeError(op string, err error) error {
	switch {
	case errors.Is(err, btree.ErrDuplicateKey):
		return kverr.New(op, kverr.DuplicateKey)
	case errors.Is(err, btree.ErrKeyNotFound):
		return kverr.New(op, kverr.NotFound)
	case errors.Is(err, btree.ErrInvalidRange):
		return kverr.Wrap(op, kverr.InvalidArgument, err)
	case errors.Is(err, pager.ErrPageOutOfBounds):
		return kverr.Wrap(op, kverr.PageOutOfBounds, err)
	default:
		return kverr.Wrap(op, kverr.IO, err)
	}
}

func mapPagerError(op string, err error) error {
	switch {
	case errors.Is(err, pager.ErrDatabaseLocked):
		return kverr.Wrap(op, kverr.IO, err)
	case errors.Is(err, pager.ErrCorrupt):
		return kverr.Wrap(op, kverr.Corrupt, err)
	case errors.Is(err, pager.ErrPageOutOfBounds):
		return kverr.Wrap(op, kverr.PageOutOfBounds, err)
	default:
		return kverr.Wrap(op, kverr.IO, err)
	}
}
