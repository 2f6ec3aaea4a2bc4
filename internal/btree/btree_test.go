package btree

import (
	"testing"

	"kvengine/internal/layout"
	"kvengine/internal/record"
)

func rec(id uint32) record.Record {
	return record.Record{ID: id, Username: "u", Email: "e@x.com"}
}

func newTestTree(t *testing.T) *BTree {
	t.Helper()
	bt, err := Create(newTestPager(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return bt
}

func scanKeys(t *testing.T, bt *BTree) []uint32 {
	t.Helper()
	var keys []uint32
	err := bt.Scan(func(key uint32, _ record.Record) (bool, error) {
		keys = append(keys, key)
		return true, nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return keys
}

func mustValidate(t *testing.T, bt *BTree) {
	t.Helper()
	report, err := bt.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !report.Valid {
		t.Fatalf("tree invalid: %v", report.Issues)
	}
}

func TestInsertFindBasic(t *testing.T) {
	bt := newTestTree(t)

	for _, id := range []uint32{1, 2, 3} {
		if err := bt.Insert(id, rec(id)); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}

	got, found, err := bt.Find(2)
	if err != nil || !found {
		t.Fatalf("Find(2) = %v, %v, %v", got, found, err)
	}
	if got.ID != 2 {
		t.Fatalf("Find(2).ID = %d, want 2", got.ID)
	}

	if _, found, _ := bt.Find(99); found {
		t.Fatal("Find(99) should report not found")
	}

	mustValidate(t, bt)
}

func TestInsertDuplicateFails(t *testing.T) {
	bt := newTestTree(t)
	if err := bt.Insert(1, rec(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := bt.Insert(1, rec(1)); err != ErrDuplicateKey {
		t.Fatalf("second Insert(1) = %v, want ErrDuplicateKey", err)
	}
}

func TestLeafSplitOnFourteenthInsert(t *testing.T) {
	bt := newTestTree(t)
	for id := uint32(1); id <= 14; id++ {
		if err := bt.Insert(id, rec(id)); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}

	root, err := bt.loadNode(bt.pager.RootPage())
	if err != nil {
		t.Fatalf("loadNode(root): %v", err)
	}
	if !root.IsInternal() {
		t.Fatal("root should have grown into an internal node after 14 inserts")
	}
	if root.KeyCount() != 1 {
		t.Fatalf("root key count = %d, want 1", root.KeyCount())
	}
	if root.EntryKey(0) != 7 {
		t.Fatalf("root separator = %d, want 7", root.EntryKey(0))
	}

	left, err := bt.loadNode(root.EntryChild(0))
	if err != nil {
		t.Fatalf("loadNode(left): %v", err)
	}
	right, err := bt.loadNode(root.RightmostChild())
	if err != nil {
		t.Fatalf("loadNode(right): %v", err)
	}
	if left.CellCount() != 7 || right.CellCount() != 7 {
		t.Fatalf("split counts = (%d, %d), want (7, 7)", left.CellCount(), right.CellCount())
	}

	keys := scanKeys(t, bt)
	if len(keys) != 14 {
		t.Fatalf("scan returned %d keys, want 14", len(keys))
	}
	for i, k := range keys {
		if k != uint32(i+1) {
			t.Fatalf("scan[%d] = %d, want %d", i, k, i+1)
		}
	}

	mustValidate(t, bt)
}

func TestDeleteKeepsScanOrder(t *testing.T) {
	bt := newTestTree(t)
	for id := uint32(1); id <= 8; id++ {
		if err := bt.Insert(id, rec(id)); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}
	if err := bt.Delete(5); err != nil {
		t.Fatalf("Delete(5): %v", err)
	}

	keys := scanKeys(t, bt)
	want := []uint32{1, 2, 3, 4, 6, 7, 8}
	if len(keys) != len(want) {
		t.Fatalf("scan = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("scan = %v, want %v", keys, want)
		}
	}
	mustValidate(t, bt)
}

func TestDeleteNotFound(t *testing.T) {
	bt := newTestTree(t)
	if err := bt.Insert(1, rec(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := bt.Delete(2); err != ErrKeyNotFound {
		t.Fatalf("Delete(2) = %v, want ErrKeyNotFound", err)
	}
}

func TestMergeAfterDeleteCollapsesToSingleRootLeaf(t *testing.T) {
	bt := newTestTree(t)
	for id := uint32(1); id <= 15; id++ {
		if err := bt.Insert(id, rec(id)); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}
	mustValidate(t, bt)

	for _, id := range []uint32{8, 9, 10, 11, 12} {
		if err := bt.Delete(id); err != nil {
			t.Fatalf("Delete(%d): %v", id, err)
		}
	}

	root, err := bt.loadNode(bt.pager.RootPage())
	if err != nil {
		t.Fatalf("loadNode(root): %v", err)
	}
	if !root.IsLeaf() {
		t.Fatal("tree should have collapsed back to a single root leaf")
	}

	keys := scanKeys(t, bt)
	want := []uint32{1, 2, 3, 4, 5, 6, 7, 13, 14, 15}
	if len(keys) != len(want) {
		t.Fatalf("scan = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("scan = %v, want %v", keys, want)
		}
	}
	mustValidate(t, bt)
}

func TestRangeQueryAcrossLeaves(t *testing.T) {
	bt := newTestTree(t)
	for id := uint32(1); id <= 30; id++ {
		if err := bt.Insert(id, rec(id)); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}

	var got []uint32
	err := bt.Range(5, 20, func(key uint32, _ record.Record) (bool, error) {
		got = append(got, key)
		return true, nil
	})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 16 {
		t.Fatalf("Range(5,20) returned %d keys, want 16", len(got))
	}
	for i, k := range got {
		if k != uint32(5+i) {
			t.Fatalf("Range result[%d] = %d, want %d", i, k, 5+i)
		}
	}
}

func TestRangeInvalidLoHi(t *testing.T) {
	bt := newTestTree(t)
	err := bt.Range(10, 5, func(uint32, record.Record) (bool, error) { return true, nil })
	if err != ErrInvalidRange {
		t.Fatalf("Range(10,5) = %v, want ErrInvalidRange", err)
	}
}

func TestManyInsertsGrowTreeHeight(t *testing.T) {
	bt := newTestTree(t)
	for id := uint32(1); id <= 50; id++ {
		if err := bt.Insert(id, rec(id)); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}

	keys := scanKeys(t, bt)
	if len(keys) != 50 {
		t.Fatalf("scan returned %d keys, want 50", len(keys))
	}

	root, err := bt.loadNode(bt.pager.RootPage())
	if err != nil {
		t.Fatalf("loadNode(root): %v", err)
	}
	if !root.IsInternal() {
		t.Fatal("tree with 50 keys should have height >= 2")
	}

	mustValidate(t, bt)
}

func TestUpdateOverwritesInPlace(t *testing.T) {
	bt := newTestTree(t)
	if err := bt.Insert(2, record.Record{ID: 2, Username: "bob", Email: "b@x.com"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := bt.Update(record.Record{ID: 2, Username: "robert", Email: "r@x.com"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, found, err := bt.Find(2)
	if err != nil || !found {
		t.Fatalf("Find(2) = %v, %v, %v", got, found, err)
	}
	if got.Username != "robert" || got.Email != "r@x.com" {
		t.Fatalf("Find(2) = %+v, want updated record", got)
	}
}

func TestUpdateNotFound(t *testing.T) {
	bt := newTestTree(t)
	if err := bt.Update(rec(1)); err != ErrKeyNotFound {
		t.Fatalf("Update on empty tree = %v, want ErrKeyNotFound", err)
	}
}

func TestInsertDeleteRoundTripsToIdenticalState(t *testing.T) {
	bt := newTestTree(t)
	for id := uint32(1); id <= 5; id++ {
		if err := bt.Insert(id, rec(id)); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}

	before := scanKeys(t, bt)

	if err := bt.Insert(100, rec(100)); err != nil {
		t.Fatalf("Insert(100): %v", err)
	}
	if err := bt.Delete(100); err != nil {
		t.Fatalf("Delete(100): %v", err)
	}

	after := scanKeys(t, bt)
	if len(before) != len(after) {
		t.Fatalf("insert+delete changed scan length: before=%v after=%v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("insert+delete changed scan order: before=%v after=%v", before, after)
		}
	}
}

func TestFreelistReuseBoundsPageGrowth(t *testing.T) {
	bt := newTestTree(t)
	for id := uint32(1); id <= 50; id++ {
		if err := bt.Insert(id, rec(id)); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}
	maxBefore := bt.pager.NumPages()

	// Force at least one merge by deleting a contiguous run that drops
	// a leaf below MinLeafCells.
	for id := uint32(20); id < uint32(20+layout.MinLeafCells+1); id++ {
		if err := bt.Delete(id); err != nil {
			t.Fatalf("Delete(%d): %v", id, err)
		}
	}

	for id := uint32(1000); id < 1015; id++ {
		if err := bt.Insert(id, rec(id)); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}

	if bt.pager.NumPages() > maxBefore+1 {
		t.Fatalf("NumPages grew to %d (was %d before merge+reinsert), freelist not consulted", bt.pager.NumPages(), maxBefore)
	}
	mustValidate(t, bt)
}
