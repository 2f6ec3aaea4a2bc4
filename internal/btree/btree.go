// internal/btree/btree.go
package btree

import (
	"fmt"

	"kvengine/internal/pager"
	"kvengine/internal/record"
)

// BTree ties the node codec, cursor, and mutation routines to a
// concrete Pager and its current root page. It implements the
// executors of spec §4.8: Insert, Find, Update, Delete, Scan, Range.
type BTree struct {
	pager *pager.Pager
}

// Create allocates a fresh root page, initializes it as an empty
// leaf, and returns a BTree over it. Used when opening a brand-new
// page file (spec §4.1's Open contract: "caller initializes page 0 as
// a root leaf").
func Create(p *pager.Pager) (*BTree, error) {
	page, err := p.GetPage(0)
	if err != nil {
		return nil, err
	}
	root := InitializeLeaf(page)
	root.SetIsRoot(true)
	p.MarkDirty(0)
	p.SetRootPage(0)

	return &BTree{pager: p}, nil
}

// Open wraps an existing page file whose root page is already
// recorded in the pager's header.
func Open(p *pager.Pager) *BTree {
	return &BTree{pager: p}
}

// loadNode fetches pageNo and wraps it as a Node.
func (bt *BTree) loadNode(pageNo uint32) (Node, error) {
	page, err := bt.pager.GetPage(pageNo)
	if err != nil {
		return Node{}, err
	}
	return Load(page), nil
}

// MaxKeyOf implements spec §4.2's max_key_of: for a leaf, the key of
// its last cell; for an internal node, the max key of its rightmost
// child, recursively. Per spec Q1, this must never be called on a
// structurally empty node outside root-collapse handling; callers
// that might hit one guard explicitly rather than relying on this
// returning a sentinel.
func (bt *BTree) MaxKeyOf(pageNo uint32) (uint32, error) {
	node, err := bt.loadNode(pageNo)
	if err != nil {
		return 0, err
	}
	if node.IsLeaf() {
		if node.CellCount() == 0 {
			return 0, fmt.Errorf("btree: max_key_of called on empty leaf %d", pageNo)
		}
		return node.CellKey(node.CellCount() - 1), nil
	}
	child := node.RightmostChild()
	if child == 0 {
		return 0, fmt.Errorf("btree: max_key_of called on empty internal node %d", pageNo)
	}
	return bt.MaxKeyOf(child)
}

// allocateLeaf allocates a new page and initializes it as an empty leaf.
func (bt *BTree) allocateLeaf() (Node, error) {
	pageNo, err := bt.pager.GetUnusedPageNum()
	if err != nil {
		return Node{}, err
	}
	page, err := bt.pager.GetPage(pageNo)
	if err != nil {
		return Node{}, err
	}
	node := InitializeLeaf(page)
	bt.pager.MarkDirty(pageNo)
	return node, nil
}

// allocateInternal allocates a new page and initializes it as an
// empty internal node.
func (bt *BTree) allocateInternal() (Node, error) {
	pageNo, err := bt.pager.GetUnusedPageNum()
	if err != nil {
		return Node{}, err
	}
	page, err := bt.pager.GetPage(pageNo)
	if err != nil {
		return Node{}, err
	}
	node := InitializeInternal(page)
	bt.pager.MarkDirty(pageNo)
	return node, nil
}

// ---- executors (spec §4.8) ----

// Insert implements the insert executor: fails if the key already
// exists, otherwise inserts via insertIntoLeaf (which splits as
// needed).
func (bt *BTree) Insert(key uint32, rec record.Record) error {
	cursor, err := bt.Search(key)
	if err != nil {
		return err
	}
	found, err := cursor.Found(key)
	if err != nil {
		return err
	}
	if found {
		return ErrDuplicateKey
	}
	return bt.insertIntoLeaf(cursor, key, rec)
}

// Find implements the find executor: returns the record and true if
// key is present, otherwise a zero record and false.
func (bt *BTree) Find(key uint32) (record.Record, bool, error) {
	cursor, err := bt.Search(key)
	if err != nil {
		return record.Record{}, false, err
	}
	found, err := cursor.Found(key)
	if err != nil || !found {
		return record.Record{}, false, err
	}
	rec, err := cursor.Record()
	return rec, true, err
}

// Update implements the update executor: overwrites the value slot in
// place and marks the page dirty, or reports not-found.
func (bt *BTree) Update(rec record.Record) error {
	cursor, err := bt.Search(rec.ID)
	if err != nil {
		return err
	}
	found, err := cursor.Found(rec.ID)
	if err != nil {
		return err
	}
	if !found {
		return ErrKeyNotFound
	}
	node, err := bt.loadNode(cursor.LeafPage)
	if err != nil {
		return err
	}
	node.SetCell(cursor.CellIndex, rec.ID, rec)
	bt.pager.MarkDirty(cursor.LeafPage)
	return nil
}

// Delete implements the delete executor: removes the cell and
// triggers underflow handling, or reports not-found.
func (bt *BTree) Delete(key uint32) error {
	cursor, err := bt.Search(key)
	if err != nil {
		return err
	}
	found, err := cursor.Found(key)
	if err != nil {
		return err
	}
	if !found {
		return ErrKeyNotFound
	}
	return bt.deleteFromLeaf(cursor)
}

// Scan implements the scan executor: yield calls fn for every record
// in ascending key order, stopping early if fn returns false or an
// error.
func (bt *BTree) Scan(fn func(key uint32, rec record.Record) (bool, error)) error {
	cursor, err := bt.ScanStart()
	if err != nil {
		return err
	}
	for !cursor.AtEnd {
		key, err := cursor.Key()
		if err != nil {
			return err
		}
		rec, err := cursor.Record()
		if err != nil {
			return err
		}
		cont, err := fn(key, rec)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
		if err := cursor.Advance(); err != nil {
			return err
		}
	}
	return nil
}

// Range implements the range executor: yields records with
// lo <= key <= hi in ascending order, stopping at the first key > hi
// without reading further leaves. Returns ErrInvalidRange if lo > hi.
func (bt *BTree) Range(lo, hi uint32, fn func(key uint32, rec record.Record) (bool, error)) error {
	if lo > hi {
		return ErrInvalidRange
	}

	cursor, err := bt.Search(lo)
	if err != nil {
		return err
	}
	for !cursor.AtEnd {
		key, err := cursor.Key()
		if err != nil {
			return err
		}
		if key > hi {
			return nil
		}
		rec, err := cursor.Record()
		if err != nil {
			return err
		}
		cont, err := fn(key, rec)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
		if err := cursor.Advance(); err != nil {
			return err
		}
	}
	return nil
}
