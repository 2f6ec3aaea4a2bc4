package pager

import (
	"path/filepath"
	"testing"
)

func TestGetUnusedPageNumGrowsWhenFreelistEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	p, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	first, err := p.GetUnusedPageNum()
	if err != nil {
		t.Fatalf("GetUnusedPageNum: %v", err)
	}
	second, err := p.GetUnusedPageNum()
	if err != nil {
		t.Fatalf("GetUnusedPageNum: %v", err)
	}
	if second != first+1 {
		t.Fatalf("expected monotonically growing page numbers, got %d then %d", first, second)
	}
}

func TestFreePageIsReusedBeforeGrowing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	p, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	a, err := p.GetUnusedPageNum()
	if err != nil {
		t.Fatalf("GetUnusedPageNum: %v", err)
	}
	if _, err := p.GetPage(a); err != nil {
		t.Fatalf("GetPage: %v", err)
	}

	maxBefore := p.NumPages()

	if err := p.FreePage(a); err != nil {
		t.Fatalf("FreePage: %v", err)
	}

	reused, err := p.GetUnusedPageNum()
	if err != nil {
		t.Fatalf("GetUnusedPageNum after free: %v", err)
	}
	if reused != a {
		t.Fatalf("expected freed page %d to be reused, got %d", a, reused)
	}
	if p.NumPages() > maxBefore {
		t.Fatalf("NumPages grew past %d even though a freed page was available", maxBefore)
	}
}

func TestFreePageZeroesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	p, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	a, err := p.GetUnusedPageNum()
	if err != nil {
		t.Fatalf("GetUnusedPageNum: %v", err)
	}
	page, err := p.GetPage(a)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	page.Data()[100] = 0xFF
	p.MarkDirty(a)

	if err := p.FreePage(a); err != nil {
		t.Fatalf("FreePage: %v", err)
	}

	reused, err := p.GetUnusedPageNum()
	if err != nil {
		t.Fatalf("GetUnusedPageNum: %v", err)
	}
	reusedPage, err := p.GetPage(reused)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if reusedPage.Data()[100] != 0 {
		t.Fatal("reused page was not zeroed")
	}
}

func TestValidateFreelistDetectsCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	p, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	a, err := p.GetUnusedPageNum()
	if err != nil {
		t.Fatalf("GetUnusedPageNum: %v", err)
	}
	b, err := p.GetUnusedPageNum()
	if err != nil {
		t.Fatalf("GetUnusedPageNum: %v", err)
	}
	if err := p.FreePage(a); err != nil {
		t.Fatalf("FreePage: %v", err)
	}
	if err := p.FreePage(b); err != nil {
		t.Fatalf("FreePage: %v", err)
	}

	if err := p.ValidateFreelist(); err != nil {
		t.Fatalf("ValidateFreelist on a well-formed chain: %v", err)
	}

	// Corrupt the chain into a cycle: make b point back to itself.
	page, err := p.GetPage(b)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	copy(page.Data()[0:4], []byte{byte(b), byte(b >> 8), byte(b >> 16), byte(b >> 24)})
	p.MarkDirty(b)

	if err := p.ValidateFreelist(); err == nil {
		t.Fatal("expected ValidateFreelist to detect the self-referencing cycle")
	}
}
