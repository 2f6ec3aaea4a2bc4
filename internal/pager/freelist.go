// internal/pager/freelist.go
package pager

import (
	"encoding/binary"
	"fmt"

	"kvengine/internal/layout"
)

// A free page stores the next free page number in its first 4 bytes
// (spec §3, "Freelist cell"); the rest of the page is undefined. The
// chain head lives in the file header as free_list_head.

// GetUnusedPageNum implements spec §4.1's get_unused_page_num: pop the
// freelist head if one exists, otherwise grow num_pages. The caller's
// subsequent GetPage materializes the buffer for a freshly-grown page.
func (p *Pager) GetUnusedPageNum() (uint32, error) {
	if p.freeListHead != 0 {
		pageNo := p.freeListHead
		page, err := p.GetPage(pageNo)
		if err != nil {
			return 0, err
		}
		next := binary.LittleEndian.Uint32(page.data[0:4])
		p.freeListHead = next
		for i := range page.data {
			page.data[i] = 0
		}
		p.MarkDirty(pageNo)
		return pageNo, nil
	}

	pageNo := p.numPages
	p.numPages++
	return pageNo, nil
}

// FreePage implements spec §4.1's free_page: prepend pageNo to the
// freelist and flush immediately, so the freelist survives even
// without a clean close.
func (p *Pager) FreePage(pageNo uint32) error {
	page, err := p.GetPage(pageNo)
	if err != nil {
		return err
	}

	// The first 4 bytes of a free page are exclusively the next-free
	// pointer (spec §3) — do not also stamp node_kind here, it shares
	// byte 0 with this pointer and would clobber its low byte.
	binary.LittleEndian.PutUint32(page.data[0:4], p.freeListHead)
	p.freeListHead = pageNo
	p.MarkDirty(pageNo)

	return p.Flush(pageNo)
}

// ValidateFreelist implements spec §4.1's validate_freelist: walk the
// chain from free_list_head and fail on a cycle, duplicate, an
// out-of-bounds page, or a chain longer than num_pages.
func (p *Pager) ValidateFreelist() error {
	seen := make(map[uint32]bool)
	current := p.freeListHead
	for current != 0 {
		if seen[current] {
			return fmt.Errorf("pager: freelist cycle at page %d", current)
		}
		if current >= layout.TableMaxPages {
			return fmt.Errorf("pager: freelist page %d exceeds table max pages", current)
		}
		if len(seen) > int(p.numPages) {
			return fmt.Errorf("pager: freelist chain longer than num_pages (%d)", p.numPages)
		}
		seen[current] = true

		page, err := p.GetPage(current)
		if err != nil {
			return err
		}
		current = binary.LittleEndian.Uint32(page.data[0:4])
	}
	return nil
}
