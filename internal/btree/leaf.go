// internal/btree/leaf.go
package btree

import (
	"encoding/binary"

	"kvengine/internal/layout"
	"kvengine/internal/record"
)

// insertIntoLeaf implements spec §4.4's insert_into_leaf: if the leaf
// has room, shift cells right of the insertion point and write the new
// cell in place; otherwise split.
func (bt *BTree) insertIntoLeaf(c *Cursor, key uint32, rec record.Record) error {
	node, err := bt.loadNode(c.LeafPage)
	if err != nil {
		return err
	}

	if node.CellCount() < layout.MaxLeafCells {
		node.shiftCellsRight(c.CellIndex, node.CellCount())
		node.SetCell(c.CellIndex, key, rec)
		node.setCellCount(node.CellCount() + 1)
		bt.pager.MarkDirty(c.LeafPage)

		if c.CellIndex == node.CellCount()-1 {
			return bt.fixupSeparator(node.PageNo())
		}
		return nil
	}

	return bt.splitAndInsertLeaf(node, c.CellIndex, key, rec)
}

// splitAndInsertLeaf implements spec §4.4's split_and_insert: merge the
// existing 13 cells with the new one into 14, write the first 7 back
// into the original page and the last 7 into a freshly allocated
// sibling, relink next_leaf pointers, and propagate the split upward.
func (bt *BTree) splitAndInsertLeaf(node Node, insertIdx int, key uint32, rec record.Record) error {
	oldCount := node.CellCount()

	newCell := make([]byte, layout.LeafCellSize)
	binary.LittleEndian.PutUint32(newCell[0:4], key)
	record.Serialize(rec, newCell[4:])

	cells := make([][]byte, 0, oldCount+1)
	for i := 0; i < oldCount; i++ {
		if i == insertIdx {
			cells = append(cells, newCell)
		}
		off := node.cellOffset(i)
		cells = append(cells, append([]byte(nil), node.data()[off:off+layout.LeafCellSize]...))
	}
	if insertIdx == oldCount {
		cells = append(cells, newCell)
	}

	leftCount := len(cells) / 2
	rightCells := cells[leftCount:]
	leftCells := cells[:leftCount]

	right, err := bt.allocateLeaf()
	if err != nil {
		return err
	}

	writeLeafCells(node, leftCells)
	writeLeafCells(right, rightCells)

	right.SetNextLeaf(node.NextLeaf())
	node.SetNextLeaf(right.PageNo())
	right.SetParent(node.Parent())

	bt.pager.MarkDirty(node.PageNo())
	bt.pager.MarkDirty(right.PageNo())

	splitKey := binary.LittleEndian.Uint32(leftCells[len(leftCells)-1][0:4])

	if node.IsRoot() {
		return bt.growRoot(node, right, splitKey)
	}
	return bt.insertChildAfterSplit(node.Parent(), node.PageNo(), right.PageNo(), splitKey)
}

func writeLeafCells(n Node, cells [][]byte) {
	for i, c := range cells {
		off := n.cellOffset(i)
		copy(n.data()[off:off+layout.LeafCellSize], c)
	}
	n.setCellCount(len(cells))
}

// deleteFromLeaf implements spec §4.4's delete_from_leaf: shift the
// remaining cells left to close the gap, then fix up the parent
// separator if the deleted cell held the leaf's max key, then handle
// underflow if the leaf (a non-root leaf) dropped below the minimum.
func (bt *BTree) deleteFromLeaf(c *Cursor) error {
	node, err := bt.loadNode(c.LeafPage)
	if err != nil {
		return err
	}

	oldCount := node.CellCount()
	deletedWasLast := c.CellIndex == oldCount-1

	node.shiftCellsLeft(c.CellIndex+1, oldCount)
	node.setCellCount(oldCount - 1)
	bt.pager.MarkDirty(node.PageNo())

	if node.IsRoot() {
		return nil
	}

	if deletedWasLast {
		if err := bt.fixupSeparator(node.PageNo()); err != nil {
			return err
		}
	}

	if node.CellCount() < layout.MinLeafCells {
		return bt.handleLeafUnderflow(node)
	}
	return nil
}

// fixupSeparator implements the ancestor separator maintenance implied
// by spec §4.2: a node's separator key in its parent must always equal
// max_key_of(node). Called whenever a node's max key may have changed
// without its position among siblings changing. A rightmost child
// carries no explicit separator in its parent, but its max key is the
// parent's max key, so the fix-up continues with the parent.
func (bt *BTree) fixupSeparator(pageNo uint32) error {
	node, err := bt.loadNode(pageNo)
	if err != nil {
		return err
	}
	if node.IsRoot() {
		return nil
	}

	parent, err := bt.loadNode(node.Parent())
	if err != nil {
		return err
	}

	for i := 0; i < parent.KeyCount(); i++ {
		if parent.EntryChild(i) == pageNo {
			newKey, err := bt.MaxKeyOf(pageNo)
			if err != nil {
				return err
			}
			parent.SetEntry(i, pageNo, newKey)
			bt.pager.MarkDirty(parent.PageNo())
			return nil
		}
	}
	if parent.RightmostChild() == pageNo {
		return bt.fixupSeparator(parent.PageNo())
	}
	return nil
}
