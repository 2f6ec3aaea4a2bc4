// internal/pager/pager.go
package pager

import (
	"container/list"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"kvengine/internal/layout"
)

// ErrCorrupt is returned by Open when the file's length is not a
// positive multiple of the page size.
var ErrCorrupt = errors.New("pager: corrupt file header or length")

// ErrPageOutOfBounds is returned by GetPage when pageNo exceeds the
// engine's configured page limit (spec §6/§7's PAGE_OUT_OF_BOUNDS).
var ErrPageOutOfBounds = errors.New("pager: page number exceeds table max pages")

// Options configures a Pager. The zero value uses the spec's default
// page geometry and cache size.
type Options struct {
	// CacheCapacity is the maximum number of pages held in the LRU
	// cache at once. Zero uses layout.CacheCapacity. Tests shrink this
	// to exercise eviction without allocating millions of pages.
	CacheCapacity int
}

// cacheEntry pairs a cached page with its position in the LRU list.
type cacheEntry struct {
	page    *Page
	element *list.Element
}

// Pager owns the file handle, the bounded-size LRU page cache, the
// dirty set, and the in-memory copy of the file header. It is the
// sole owner of every page buffer; tree code borrows a buffer for the
// duration of one operation step via GetPage and never caches it
// itself (spec §4.1, §5).
type Pager struct {
	file *os.File

	cache    map[uint32]*cacheEntry
	lru      *list.List // front = most recently used
	cacheCap int
	dirty    map[uint32]bool

	rootPage     uint32
	freeListHead uint32
	numPages     uint32
	fileNumPages uint32 // pages actually present on disk; Flush extends it
	wasNew       bool   // true if Open created the file rather than opening an existing one

	stats Stats
}

// Stats reports cache behavior, useful for the property tests in
// spec §8 (P6, P7) without adding any persisted state.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Open opens or creates the page file at path. On create, it writes a
// zero header and allocates page 0, leaving the caller to initialize
// it as a root leaf. On open, it validates that (file length - header
// size) is a positive multiple of the page size, failing with
// ErrCorrupt otherwise.
func Open(path string, opts Options) (*Pager, error) {
	cacheCap := opts.CacheCapacity
	if cacheCap <= 0 {
		cacheCap = layout.CacheCapacity
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, err)
	}

	if err := lockFile(f); err != nil {
		f.Close()
		return nil, err
	}

	p := &Pager{
		file:     f,
		cache:    make(map[uint32]*cacheEntry),
		lru:      list.New(),
		cacheCap: cacheCap,
		dirty:    make(map[uint32]bool),
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: stat %s: %w", path, err)
	}

	if info.Size() == 0 {
		p.rootPage = 0
		p.freeListHead = 0
		p.numPages = 1
		p.fileNumPages = 1
		p.wasNew = true
		if err := p.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
		if _, err := f.WriteAt(make([]byte, layout.PageSize), layout.HeaderSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("pager: write page 0: %w", err)
		}
		return p, nil
	}

	header := make([]byte, layout.HeaderSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: read header: %w", err)
	}
	p.rootPage = binary.LittleEndian.Uint32(header[0:4])
	p.freeListHead = binary.LittleEndian.Uint32(header[4:8])

	body := info.Size() - layout.HeaderSize
	if body <= 0 || body%layout.PageSize != 0 {
		f.Close()
		return nil, fmt.Errorf("%w: file length %d", ErrCorrupt, info.Size())
	}
	p.numPages = uint32(body / layout.PageSize)
	p.fileNumPages = p.numPages

	return p, nil
}

// RootPage returns the current root page number.
func (p *Pager) RootPage() uint32 { return p.rootPage }

// SetRootPage updates the root page number recorded in the file
// header. Callers must also have set is_root on the new root page and
// cleared it on the old one (spec invariant I9).
func (p *Pager) SetRootPage(pageNo uint32) { p.rootPage = pageNo }

// NumPages returns the number of pages the pager believes exist,
// including freed pages still occupying file space.
func (p *Pager) NumPages() uint32 { return p.numPages }

// FreeListHead returns the current freelist head page number.
func (p *Pager) FreeListHead() uint32 { return p.freeListHead }

// Stats returns a snapshot of the cache counters.
func (p *Pager) Stats() Stats { return p.stats }

// WasNew reports whether Open created a brand-new, empty file rather
// than opening an existing one. The caller uses this to decide whether
// to initialize page 0 as a root leaf or trust the existing tree.
func (p *Pager) WasNew() bool { return p.wasNew }

func (p *Pager) pageOffset(pageNo uint32) int64 {
	return layout.HeaderSize + int64(pageNo)*layout.PageSize
}

// GetPage implements spec §4.1's get_page: return the cached buffer
// for pageNo, reading it from disk on a cache miss and evicting the
// LRU victim (flushing it first if dirty) when the cache is full.
func (p *Pager) GetPage(pageNo uint32) (*Page, error) {
	if pageNo >= layout.TableMaxPages {
		return nil, fmt.Errorf("%w: page %d", ErrPageOutOfBounds, pageNo)
	}

	if entry, ok := p.cache[pageNo]; ok {
		p.lru.MoveToFront(entry.element)
		p.stats.Hits++
		return entry.page, nil
	}
	p.stats.Misses++

	if len(p.cache) >= p.cacheCap {
		if err := p.evictOne(); err != nil {
			return nil, err
		}
	}

	page := newPage(pageNo)
	if pageNo < p.fileNumPages {
		if _, err := p.file.ReadAt(page.data, p.pageOffset(pageNo)); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("pager: read page %d: %w", pageNo, err)
		}
	}

	elem := p.lru.PushFront(pageNo)
	p.cache[pageNo] = &cacheEntry{page: page, element: elem}

	if pageNo >= p.numPages {
		p.numPages = pageNo + 1
	}

	return page, nil
}

// evictOne selects the LRU victim, flushes it if dirty, and removes it
// from the cache.
func (p *Pager) evictOne() error {
	elem := p.lru.Back()
	if elem == nil {
		return nil
	}
	pageNo := elem.Value.(uint32)

	if p.dirty[pageNo] {
		if err := p.Flush(pageNo); err != nil {
			return fmt.Errorf("pager: flush victim page %d: %w", pageNo, err)
		}
	}

	p.lru.Remove(elem)
	delete(p.cache, pageNo)
	p.stats.Evictions++
	return nil
}

// MarkDirty adds pageNo to the dirty set. Idempotent. Must be called
// after any in-memory mutation of the page's bytes — omitting this is
// the single most common correctness bug in a pager (spec §9).
func (p *Pager) MarkDirty(pageNo uint32) {
	p.dirty[pageNo] = true
}

// Flush writes the cached page for pageNo back to disk at its byte
// offset and clears its dirty bit.
func (p *Pager) Flush(pageNo uint32) error {
	entry, ok := p.cache[pageNo]
	if !ok {
		return nil
	}
	if _, err := p.file.WriteAt(entry.page.data, p.pageOffset(pageNo)); err != nil {
		return fmt.Errorf("pager: write page %d: %w", pageNo, err)
	}
	delete(p.dirty, pageNo)
	if pageNo >= p.fileNumPages {
		p.fileNumPages = pageNo + 1
	}
	return nil
}

func (p *Pager) writeHeader() error {
	header := make([]byte, layout.HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], p.rootPage)
	binary.LittleEndian.PutUint32(header[4:8], p.freeListHead)
	if _, err := p.file.WriteAt(header, 0); err != nil {
		return fmt.Errorf("pager: write header: %w", err)
	}
	return nil
}

// Close flushes every dirty cached page, rewrites the file header,
// and closes the file. Best-effort: if a flush fails, the error is
// reported but the file and lock are still released so no descriptor
// leaks.
func (p *Pager) Close() error {
	var firstErr error

	for pageNo := range p.dirty {
		if err := p.Flush(pageNo); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := p.writeHeader(); err != nil && firstErr == nil {
		firstErr = err
	}

	if err := unlockFile(p.file); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := p.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}
