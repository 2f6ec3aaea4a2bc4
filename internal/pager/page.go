// internal/pager/page.go
package pager

import (
	"encoding/binary"

	"kvengine/internal/layout"
)

// NodeKind identifies what a page's bytes mean, stored in the first
// byte of the common header (spec §3).
type NodeKind byte

const (
	NodeInternal NodeKind = 0
	NodeLeaf     NodeKind = 1
	NodeFree     NodeKind = 2
)

// Page is one 4096-byte in-memory copy of a page, owned by the
// Pager's cache. Tree code borrows the buffer for the duration of a
// single operation step and must call Pager.MarkDirty after any
// mutation; Page itself never decides whether it is dirty on its own.
type Page struct {
	pageNo uint32
	data   []byte
}

// newPage allocates a zeroed buffer for pageNo.
func newPage(pageNo uint32) *Page {
	return &Page{pageNo: pageNo, data: make([]byte, layout.PageSize)}
}

// PageNo returns the page number.
func (p *Page) PageNo() uint32 { return p.pageNo }

// Data returns the raw page buffer. Callers read and write it
// directly via fixed-offset accessors defined in the btree package.
func (p *Page) Data() []byte { return p.data }

// Kind returns the node kind stored in the common header.
func (p *Page) Kind() NodeKind { return NodeKind(p.data[0]) }

// IsRoot reports whether the common header's is_root flag is set.
func (p *Page) IsRoot() bool { return p.data[1] != 0 }

// SetIsRoot sets the common header's is_root flag.
func (p *Page) SetIsRoot(isRoot bool) {
	if isRoot {
		p.data[1] = 1
	} else {
		p.data[1] = 0
	}
}

// Parent returns the common header's parent_page field.
func (p *Page) Parent() uint32 {
	return binary.LittleEndian.Uint32(p.data[2:6])
}

// SetParent sets the common header's parent_page field.
func (p *Page) SetParent(parent uint32) {
	binary.LittleEndian.PutUint32(p.data[2:6], parent)
}
