// internal/btree/internalnode.go
package btree

import (
	"fmt"

	"kvengine/internal/layout"
)

// internalSlot is an in-memory description of one entry of an internal
// node: a child and its separator key. The rightmost child has no
// separator and is carried separately, never as a slot. Used only as
// scratch state while redistributing children across a split.
type internalSlot struct {
	child uint32
	key   uint32
}

// insertChildAfterSplit implements spec §4.5's propagation step: a
// child of parentPage (oldChild) has just split into (oldChild,
// newChild) with newChild taking over the upper half, separated by
// splitKey. It rewrites parent to account for the new child, splitting
// parent itself (and recursing upward, or growing the root) if it has
// no room.
func (bt *BTree) insertChildAfterSplit(parentPage uint32, oldChild, newChild uint32, splitKey uint32) error {
	parent, err := bt.loadNode(parentPage)
	if err != nil {
		return err
	}

	slots := make([]internalSlot, 0, parent.KeyCount()+2)
	found := false
	for i := 0; i < parent.KeyCount(); i++ {
		child := parent.EntryChild(i)
		key := parent.EntryKey(i)
		if child == oldChild {
			slots = append(slots, internalSlot{child: oldChild, key: splitKey})
			slots = append(slots, internalSlot{child: newChild, key: key})
			found = true
			continue
		}
		slots = append(slots, internalSlot{child: child, key: key})
	}

	rightmost := parent.RightmostChild()
	if !found {
		if oldChild != rightmost {
			return fmt.Errorf("btree: split child %d not found under parent %d", oldChild, parentPage)
		}
		slots = append(slots, internalSlot{child: oldChild, key: splitKey})
		rightmost = newChild
	}

	if len(slots) <= layout.MaxInternalKeys {
		writeInternalSlots(parent, slots, rightmost)
		bt.pager.MarkDirty(parent.PageNo())

		newChildNode, err := bt.loadNode(newChild)
		if err != nil {
			return err
		}
		newChildNode.SetParent(parent.PageNo())
		bt.pager.MarkDirty(newChild)
		return nil
	}

	return bt.splitInternal(parent, slots, rightmost)
}

// splitInternal redistributes slots (len == MaxInternalKeys+1) plus
// rightmost across parent (kept, now the left half) and a freshly
// allocated right sibling, promoting the boundary slot's key to the
// grandparent (spec §4.5).
func (bt *BTree) splitInternal(parent Node, slots []internalSlot, rightmost uint32) error {
	mid := (len(slots) + 1) / 2
	leftSlots := slots[:mid]
	promoted := slots[mid]
	rightSlots := slots[mid+1:]

	right, err := bt.allocateInternal()
	if err != nil {
		return err
	}

	writeInternalSlots(parent, leftSlots, promoted.child)
	writeInternalSlots(right, rightSlots, rightmost)
	right.SetParent(parent.Parent())

	bt.pager.MarkDirty(parent.PageNo())
	bt.pager.MarkDirty(right.PageNo())

	if err := bt.reparentChild(promoted.child, parent.PageNo()); err != nil {
		return err
	}
	for _, s := range rightSlots {
		if err := bt.reparentChild(s.child, right.PageNo()); err != nil {
			return err
		}
	}
	if err := bt.reparentChild(rightmost, right.PageNo()); err != nil {
		return err
	}

	if parent.IsRoot() {
		return bt.growRoot(parent, right, promoted.key)
	}
	return bt.insertChildAfterSplit(parent.Parent(), parent.PageNo(), right.PageNo(), promoted.key)
}

func writeInternalSlots(n Node, slots []internalSlot, rightmost uint32) {
	for i, s := range slots {
		n.SetEntry(i, s.child, s.key)
	}
	n.setKeyCount(len(slots))
	n.SetRightmostChild(rightmost)
}

func (bt *BTree) reparentChild(childPage, parentPage uint32) error {
	child, err := bt.loadNode(childPage)
	if err != nil {
		return err
	}
	child.SetParent(parentPage)
	bt.pager.MarkDirty(childPage)
	return nil
}

// growRoot implements spec §4.5's grow_root: allocate a fresh internal
// page holding exactly left and right as its two children, separated
// by splitKey, and install it as the new root. Used both when a root
// leaf splits for the first time and when a root internal node splits.
func (bt *BTree) growRoot(left, right Node, splitKey uint32) error {
	newRoot, err := bt.allocateInternal()
	if err != nil {
		return err
	}
	newRoot.SetIsRoot(true)
	newRoot.SetEntry(0, left.PageNo(), splitKey)
	newRoot.setKeyCount(1)
	newRoot.SetRightmostChild(right.PageNo())

	left.SetIsRoot(false)
	left.SetParent(newRoot.PageNo())
	right.SetParent(newRoot.PageNo())

	bt.pager.SetRootPage(newRoot.PageNo())
	bt.pager.MarkDirty(newRoot.PageNo())
	bt.pager.MarkDirty(left.PageNo())
	bt.pager.MarkDirty(right.PageNo())
	return nil
}
