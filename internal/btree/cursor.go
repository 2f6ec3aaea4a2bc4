// internal/btree/cursor.go
package btree

import (
	"fmt"

	"kvengine/internal/record"
)

// Cursor is a position in the tree: a leaf page and a cell index
// within it, plus an end-of-tree flag (spec §4.3). It advances only
// forward, via leaf sibling links — there is no Prev, matching the
// spec's scan/range contracts which only ever move ascending.
type Cursor struct {
	bt        *BTree
	LeafPage  uint32
	CellIndex int
	AtEnd     bool
}

// Search implements spec §4.3's search: descend from the root,
// binary-searching internal separator keys, until a leaf is reached.
// At the leaf, binary search either finds the key (cursor positioned
// on it) or the insertion point (cursor at that index, AtEnd true iff
// the index equals cell_count).
func (bt *BTree) Search(key uint32) (*Cursor, error) {
	pageNo := bt.pager.RootPage()
	for {
		node, err := bt.loadNode(pageNo)
		if err != nil {
			return nil, err
		}

		if node.IsLeaf() {
			idx := leafSearch(node, key)
			return &Cursor{
				bt:        bt,
				LeafPage:  pageNo,
				CellIndex: idx,
				AtEnd:     idx == node.CellCount(),
			}, nil
		}

		pageNo = internalChildForKey(node, key)
	}
}

// leafSearch returns the index of key within node if present,
// otherwise the index at which it would be inserted.
func leafSearch(node Node, key uint32) int {
	lo, hi := 0, node.CellCount()
	for lo < hi {
		mid := (lo + hi) / 2
		if node.CellKey(mid) < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// internalChildForKey finds the smallest separator >= key and returns
// its child; if none qualifies, returns the rightmost child.
func internalChildForKey(node Node, key uint32) uint32 {
	count := node.KeyCount()
	lo, hi := 0, count
	for lo < hi {
		mid := (lo + hi) / 2
		if node.EntryKey(mid) < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < count {
		return node.EntryChild(lo)
	}
	return node.RightmostChild()
}

// ScanStart implements spec §4.3's scan_start: search(0), with AtEnd
// set directly from whether the landing leaf is empty.
func (bt *BTree) ScanStart() (*Cursor, error) {
	c, err := bt.Search(0)
	if err != nil {
		return nil, err
	}
	node, err := bt.loadNode(c.LeafPage)
	if err != nil {
		return nil, err
	}
	c.AtEnd = node.CellCount() == 0
	return c, nil
}

// Advance implements spec §4.3's advance: move to the next cell, or
// to (next_leaf, 0) if the current leaf is exhausted, or AtEnd if
// there is no next leaf.
func (c *Cursor) Advance() error {
	node, err := c.bt.loadNode(c.LeafPage)
	if err != nil {
		return err
	}

	c.CellIndex++
	if c.CellIndex < node.CellCount() {
		return nil
	}

	next := node.NextLeaf()
	if next == 0 {
		c.AtEnd = true
		return nil
	}
	c.LeafPage = next
	c.CellIndex = 0
	return nil
}

// Key returns the key at the cursor's current position.
func (c *Cursor) Key() (uint32, error) {
	node, err := c.bt.loadNode(c.LeafPage)
	if err != nil {
		return 0, err
	}
	if c.CellIndex >= node.CellCount() {
		return 0, fmt.Errorf("btree: cursor key out of range")
	}
	return node.CellKey(c.CellIndex), nil
}

// Record returns the record at the cursor's current position.
func (c *Cursor) Record() (record.Record, error) {
	node, err := c.bt.loadNode(c.LeafPage)
	if err != nil {
		return record.Record{}, err
	}
	if c.CellIndex >= node.CellCount() {
		return record.Record{}, fmt.Errorf("btree: cursor record out of range")
	}
	return node.CellValue(c.CellIndex), nil
}

// Found reports whether the cursor landed exactly on the searched-for
// key, as opposed to an insertion point.
func (c *Cursor) Found(key uint32) (bool, error) {
	if c.AtEnd {
		return false, nil
	}
	k, err := c.Key()
	if err != nil {
		return false, err
	}
	return k == key, nil
}
