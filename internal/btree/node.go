// internal/btree/node.go
package btree

import (
	"encoding/binary"

	"kvengine/internal/layout"
	"kvengine/internal/pager"
	"kvengine/internal/record"
)

// Node is a thin, fixed-offset view over a page's bytes (spec §4.2).
// All accessors operate on the page's borrowed buffer and never
// allocate; every accessor that writes must be followed by the
// caller marking the underlying page dirty.
type Node struct {
	page *pager.Page
}

// Load wraps an existing page as a Node. It does not inspect or
// modify the page's contents.
func Load(page *pager.Page) Node { return Node{page: page} }

// IsLeaf reports whether the node's common header marks it a leaf.
func (n Node) IsLeaf() bool { return n.page.Kind() == pager.NodeLeaf }

// IsInternal reports whether the node's common header marks it an
// internal node.
func (n Node) IsInternal() bool { return n.page.Kind() == pager.NodeInternal }

// PageNo returns the page number backing this node.
func (n Node) PageNo() uint32 { return n.page.PageNo() }

// IsRoot, SetIsRoot, Parent, SetParent delegate to the common header
// accessors already provided by pager.Page.
func (n Node) IsRoot() bool            { return n.page.IsRoot() }
func (n Node) SetIsRoot(v bool)        { n.page.SetIsRoot(v) }
func (n Node) Parent() uint32          { return n.page.Parent() }
func (n Node) SetParent(parent uint32) { n.page.SetParent(parent) }

func (n Node) data() []byte { return n.page.Data() }

// InitializeLeaf resets the page to an empty leaf: node_kind=leaf,
// is_root=false, parent=0, cell_count=0, next_leaf=0 (spec §4.2).
func InitializeLeaf(page *pager.Page) Node {
	d := page.Data()
	for i := range d {
		d[i] = 0
	}
	d[0] = byte(pager.NodeLeaf)
	return Node{page: page}
}

// InitializeInternal resets the page to an empty internal node:
// node_kind=internal, is_root=false, parent=0, key_count=0,
// rightmost_child=0 (spec §4.2).
func InitializeInternal(page *pager.Page) Node {
	d := page.Data()
	for i := range d {
		d[i] = 0
	}
	d[0] = byte(pager.NodeInternal)
	return Node{page: page}
}

// ---- leaf accessors ----

// CellCount returns the leaf's cell_count field.
func (n Node) CellCount() int {
	return int(binary.LittleEndian.Uint32(n.data()[layout.LeafCellCountOffset:]))
}

func (n Node) setCellCount(count int) {
	binary.LittleEndian.PutUint32(n.data()[layout.LeafCellCountOffset:], uint32(count))
}

// NextLeaf returns the leaf's next_leaf_page field (0 = none).
func (n Node) NextLeaf() uint32 {
	return binary.LittleEndian.Uint32(n.data()[layout.LeafNextPageOffset:])
}

// SetNextLeaf sets the leaf's next_leaf_page field.
func (n Node) SetNextLeaf(pageNo uint32) {
	binary.LittleEndian.PutUint32(n.data()[layout.LeafNextPageOffset:], pageNo)
}

func (n Node) cellOffset(i int) int {
	return layout.LeafCellsStartOffset + i*layout.LeafCellSize
}

// CellKey returns the key stored in cell i.
func (n Node) CellKey(i int) uint32 {
	off := n.cellOffset(i)
	return binary.LittleEndian.Uint32(n.data()[off:])
}

func (n Node) setCellKey(i int, key uint32) {
	off := n.cellOffset(i)
	binary.LittleEndian.PutUint32(n.data()[off:], key)
}

// CellValue deserializes the record stored in cell i.
func (n Node) CellValue(i int) record.Record {
	off := n.cellOffset(i) + 4
	return record.Deserialize(n.data()[off : off+layout.RecordSize])
}

// SetCell writes both the key and record for cell i.
func (n Node) SetCell(i int, key uint32, rec record.Record) {
	n.setCellKey(i, key)
	off := n.cellOffset(i) + 4
	record.Serialize(rec, n.data()[off:off+layout.RecordSize])
}

// CopyCell copies cell src (from this node or another) onto cell dst
// of n, raw bytes only — no (de)serialization needed.
func (n Node) CopyCell(dst int, src Node, srcIdx int) {
	d := n.data()[n.cellOffset(dst) : n.cellOffset(dst)+layout.LeafCellSize]
	s := src.data()[src.cellOffset(srcIdx) : src.cellOffset(srcIdx)+layout.LeafCellSize]
	copy(d, s)
}

// shiftCellsRight shifts cells [from, count) right by one slot to make
// room for an insertion at `from`. Overlap-safe (spec invariant I10).
func (n Node) shiftCellsRight(from, count int) {
	d := n.data()
	for i := count; i > from; i-- {
		dst := d[n.cellOffset(i) : n.cellOffset(i)+layout.LeafCellSize]
		src := d[n.cellOffset(i-1) : n.cellOffset(i-1)+layout.LeafCellSize]
		copy(dst, src)
	}
}

// shiftCellsLeft shifts cells [from, count) left by one slot, closing
// the gap left by deleting cell from-1. Overlap-safe.
func (n Node) shiftCellsLeft(from, count int) {
	d := n.data()
	for i := from; i < count; i++ {
		dst := d[n.cellOffset(i-1) : n.cellOffset(i-1)+layout.LeafCellSize]
		src := d[n.cellOffset(i) : n.cellOffset(i)+layout.LeafCellSize]
		copy(dst, src)
	}
}

// ---- internal accessors ----

// KeyCount returns the internal node's key_count field.
func (n Node) KeyCount() int {
	return int(binary.LittleEndian.Uint32(n.data()[layout.InternalKeyCountOffset:]))
}

func (n Node) setKeyCount(count int) {
	binary.LittleEndian.PutUint32(n.data()[layout.InternalKeyCountOffset:], uint32(count))
}

// RightmostChild returns the internal node's rightmost_child_page field.
func (n Node) RightmostChild() uint32 {
	return binary.LittleEndian.Uint32(n.data()[layout.InternalRightmostOffset:])
}

// SetRightmostChild sets the internal node's rightmost_child_page field.
func (n Node) SetRightmostChild(pageNo uint32) {
	binary.LittleEndian.PutUint32(n.data()[layout.InternalRightmostOffset:], pageNo)
}

func (n Node) entryOffset(i int) int {
	return layout.InternalEntriesStartOffset + i*layout.InternalEntrySize
}

// EntryChild returns the child page number of entry i.
func (n Node) EntryChild(i int) uint32 {
	off := n.entryOffset(i)
	return binary.LittleEndian.Uint32(n.data()[off:])
}

// EntryKey returns the separator key of entry i.
func (n Node) EntryKey(i int) uint32 {
	off := n.entryOffset(i) + 4
	return binary.LittleEndian.Uint32(n.data()[off:])
}

// SetEntry writes both the child pointer and separator key of entry i.
func (n Node) SetEntry(i int, child, key uint32) {
	off := n.entryOffset(i)
	binary.LittleEndian.PutUint32(n.data()[off:], child)
	binary.LittleEndian.PutUint32(n.data()[off+4:], key)
}

// Child returns the page number of the i-th child: entry i's child
// for i < key_count, the rightmost child for i == key_count.
func (n Node) Child(i int) uint32 {
	if i < n.KeyCount() {
		return n.EntryChild(i)
	}
	return n.RightmostChild()
}

// shiftEntriesRight shifts entries [from, count) right by one slot.
// Overlap-safe.
func (n Node) shiftEntriesRight(from, count int) {
	d := n.data()
	for i := count; i > from; i-- {
		dst := d[n.entryOffset(i) : n.entryOffset(i)+layout.InternalEntrySize]
		src := d[n.entryOffset(i-1) : n.entryOffset(i-1)+layout.InternalEntrySize]
		copy(dst, src)
	}
}

// shiftEntriesLeft shifts entries [from, count) left by one slot.
// Overlap-safe.
func (n Node) shiftEntriesLeft(from, count int) {
	d := n.data()
	for i := from; i < count; i++ {
		dst := d[n.entryOffset(i-1) : n.entryOffset(i-1)+layout.InternalEntrySize]
		src := d[n.entryOffset(i) : n.entryOffset(i)+layout.InternalEntrySize]
		copy(dst, src)
	}
}
