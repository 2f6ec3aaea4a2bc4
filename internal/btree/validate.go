// internal/btree/validate.go
package btree

import (
	"fmt"

	"kvengine/internal/layout"
)

// Report is the outcome of a Validate call: a pass/fail summary plus
// every invariant violation found, rather than stopping at the first
// one, so a caller debugging a corrupted file gets the full picture in
// one pass (spec §4.7).
type Report struct {
	Valid  bool
	Issues []string
}

func (r *Report) fail(format string, args ...any) {
	r.Valid = false
	r.Issues = append(r.Issues, fmt.Sprintf(format, args...))
}

// Validate implements spec §4.7's validate: walk the tree from the
// root, checking key ordering, fanout bounds, parent linkage, and leaf
// chain continuity, then separately validate the freelist.
func (bt *BTree) Validate() (*Report, error) {
	report := &Report{Valid: true}

	root, err := bt.loadNode(bt.pager.RootPage())
	if err != nil {
		return nil, err
	}
	if !root.IsRoot() {
		report.fail("page %d is the recorded root but its is_root flag is unset", root.PageNo())
	}

	if _, err := bt.validateSubtree(root, 0, report); err != nil {
		return nil, err
	}

	if err := bt.validateLeafChain(report); err != nil {
		return nil, err
	}

	if err := bt.pager.ValidateFreelist(); err != nil {
		report.fail("freelist: %v", err)
	}

	return report, nil
}

// validateSubtree checks node's own invariants and recurses into its
// children, returning the max key in node's subtree so the caller can
// check separator correctness.
func (bt *BTree) validateSubtree(node Node, depth int, report *Report) (uint32, error) {
	if node.IsLeaf() {
		return bt.validateLeaf(node, report)
	}
	return bt.validateInternal(node, depth, report)
}

func (bt *BTree) validateLeaf(node Node, report *Report) (uint32, error) {
	count := node.CellCount()
	if !node.IsRoot() {
		if count < layout.MinLeafCells {
			report.fail("leaf %d underflowed: %d cells (min %d)", node.PageNo(), count, layout.MinLeafCells)
		}
	}
	if count > layout.MaxLeafCells {
		report.fail("leaf %d overflowed: %d cells (max %d)", node.PageNo(), count, layout.MaxLeafCells)
	}

	var maxKey uint32
	for i := 0; i < count; i++ {
		key := node.CellKey(i)
		if i > 0 && key <= node.CellKey(i-1) {
			report.fail("leaf %d keys out of order at cell %d: %d <= %d", node.PageNo(), i, key, node.CellKey(i-1))
		}
		if i == count-1 {
			maxKey = key
		}
	}
	return maxKey, nil
}

func (bt *BTree) validateInternal(node Node, depth int, report *Report) (uint32, error) {
	count := node.KeyCount()
	if !node.IsRoot() {
		if count < layout.MinInternalKeys {
			report.fail("internal %d underflowed: %d keys (min %d)", node.PageNo(), count, layout.MinInternalKeys)
		}
	} else if count == 0 {
		report.fail("root internal %d has zero keys; should have collapsed", node.PageNo())
	}
	if count > layout.MaxInternalKeys {
		report.fail("internal %d overflowed: %d keys (max %d)", node.PageNo(), count, layout.MaxInternalKeys)
	}

	var lastKey uint32
	for i := 0; i <= count; i++ {
		childNo := node.Child(i)
		child, err := bt.loadNode(childNo)
		if err != nil {
			return 0, err
		}
		if child.Parent() != node.PageNo() {
			report.fail("child %d of internal %d has wrong parent pointer %d", childNo, node.PageNo(), child.Parent())
		}
		if child.IsRoot() {
			report.fail("child %d of internal %d is flagged is_root", childNo, node.PageNo())
		}

		childMax, err := bt.validateSubtree(child, depth+1, report)
		if err != nil {
			return 0, err
		}

		if i < count {
			separator := node.EntryKey(i)
			if childMax != separator {
				report.fail("internal %d entry %d separator %d does not match child %d max key %d", node.PageNo(), i, separator, childNo, childMax)
			}
			if i > 0 && separator <= node.EntryKey(i-1) {
				report.fail("internal %d separators out of order at %d: %d <= %d", node.PageNo(), i, separator, node.EntryKey(i-1))
			}
		}
		lastKey = childMax
	}
	return lastKey, nil
}

// validateLeafChain walks the bottom level via next_leaf pointers,
// starting from the leftmost leaf, and checks that the chain has no
// cycle, visits only leaf pages, and runs in ascending key order. It
// does not compare the chain with the set of leaves reached from the
// root, so a leaf missing from the chain is not reported.
func (bt *BTree) validateLeafChain(report *Report) error {
	pageNo := bt.pager.RootPage()
	for {
		node, err := bt.loadNode(pageNo)
		if err != nil {
			return err
		}
		if node.IsLeaf() {
			break
		}
		pageNo = node.Child(0)
	}

	seen := make(map[uint32]bool)
	var prevMax uint32
	first := true
	for pageNo != 0 {
		if seen[pageNo] {
			report.fail("leaf chain cycles back to page %d", pageNo)
			break
		}
		seen[pageNo] = true

		node, err := bt.loadNode(pageNo)
		if err != nil {
			return err
		}
		if !node.IsLeaf() {
			report.fail("leaf chain visits non-leaf page %d", pageNo)
			break
		}
		if node.CellCount() > 0 {
			minKey := node.CellKey(0)
			if !first && minKey <= prevMax {
				report.fail("leaf chain out of order at page %d: min key %d <= previous max %d", pageNo, minKey, prevMax)
			}
			prevMax = node.CellKey(node.CellCount() - 1)
			first = false
		}
		pageNo = node.NextLeaf()
	}
	return nil
}
