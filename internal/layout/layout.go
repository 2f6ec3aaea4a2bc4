// Package layout holds the compile-time constants that define the
// on-disk format: page geometry, cell sizes, and branching factors.
// Every other package in kvengine imports this one rather than
// re-deriving these numbers.
package layout

const (
	// PageSize is the fixed size in bytes of every page in the file,
	// including page 0.
	PageSize = 4096

	// HeaderSize is the size in bytes of the file header at offset 0.
	HeaderSize = 8

	// CacheCapacity is the default maximum number of pages held in the
	// pager's LRU cache at once.
	CacheCapacity = 100

	// TableMaxPages bounds how large the page file may grow. It exists
	// so get_page can reject runaway page numbers with
	// PAGE_OUT_OF_BOUNDS instead of growing the cache unboundedly.
	TableMaxPages = 100_000_000

	// CommonHeaderSize is the size of the header present on every node
	// regardless of kind: node_kind(1) + is_root(1) + parent_page(4).
	CommonHeaderSize = 6

	// UsernameSize and EmailSize are the fixed, zero-padded widths of
	// the two string fields in a Record.
	UsernameSize = 32
	EmailSize    = 255

	// RecordSize is the serialized size of a Record: id(4) +
	// username(32) + email(255).
	RecordSize = 4 + UsernameSize + EmailSize

	// leafHeaderSize is cell_count(4) + next_leaf_page(4), following
	// the common header.
	leafHeaderSize = 8

	// LeafCellSize is key(4) + serialized record (291).
	LeafCellSize = 4 + RecordSize

	// MaxLeafCells is the leaf branching factor: how many cells fit in
	// a page after the common and leaf headers.
	MaxLeafCells = (PageSize - CommonHeaderSize - leafHeaderSize) / LeafCellSize

	// MinLeafCells is the minimum cell count a non-root leaf must carry
	// before it is considered underflowed.
	MinLeafCells = MaxLeafCells / 2

	// internalHeaderSize is key_count(4) + rightmost_child_page(4),
	// following the common header.
	internalHeaderSize = 8

	// InternalEntrySize is child_page(4) + separator_key(4).
	InternalEntrySize = 8

	// MaxInternalKeys is the internal branching factor.
	MaxInternalKeys = (PageSize - CommonHeaderSize - internalHeaderSize) / InternalEntrySize

	// MinInternalKeys is the minimum key count a non-root internal node
	// must carry before it is considered underflowed.
	MinInternalKeys = MaxInternalKeys / 2

	// LeafCellCountOffset and friends locate fields within a leaf page.
	LeafCellCountOffset  = CommonHeaderSize
	LeafNextPageOffset   = CommonHeaderSize + 4
	LeafCellsStartOffset = CommonHeaderSize + leafHeaderSize

	// InternalKeyCountOffset and friends locate fields within an
	// internal page.
	InternalKeyCountOffset     = CommonHeaderSize
	InternalRightmostOffset    = CommonHeaderSize + 4
	InternalEntriesStartOffset = CommonHeaderSize + internalHeaderSize
)
