package node

import (
	"cydb/storage_engine/page"
	"cydb/types"
	"bytes"
	"testing"
)

func newLeaf(t *testing.T, size int) *Node {
	t.Helper()
	p := page.New(1, size, types.PageTypeLeaf)
	return Init(p, types.PageTypeLeaf, types.NoPage)
}

func finalize(n *Node) {
	page.RecomputeChecksum(n.Page.Data)
}

func TestInsertGetRoundTrip(t *testing.T) {
	n := newLeaf(t, types.PageSize)
	if _, ok := n.TryInsertValue([]byte("hello"), []byte("world")); !ok {
		t.Fatal("insert failed")
	}
	finalize(n)
	if !page.Verify(n.Page.Data) {
		t.Fatal("checksum invalid after insert")
	}
	idx := n.FindValueIndex([]byte("hello"))
	if idx >= n.DataNum() || !bytes.Equal(n.Key(idx), []byte("hello")) {
		t.Fatalf("key not found at expected slot")
	}
	if !bytes.Equal(n.Value(idx), []byte("world")) {
		t.Fatalf("got %q, want world", n.Value(idx))
	}
}

func TestKeyOrderMaintained(t *testing.T) {
	n := newLeaf(t, types.PageSize)
	keys := []string{"delta", "alpha", "charlie", "bravo"}
	for _, k := range keys {
		if _, ok := n.TryInsertValue([]byte(k), []byte(k)); !ok {
			t.Fatalf("insert %s failed", k)
		}
	}
	var prev []byte
	for i := 0; i < n.DataNum(); i++ {
		k := n.Key(i)
		if prev != nil && bytes.Compare(prev, k) >= 0 {
			t.Fatalf("keys out of order: %q then %q", prev, k)
		}
		prev = k
	}
}

func TestOverwriteShrink(t *testing.T) {
	n := newLeaf(t, types.PageSize)
	n.TryInsertValue([]byte("k"), []byte("XXXXX"))
	idx := n.FindValueIndex([]byte("k"))
	if _, ok := n.TryUpdateValue(idx, []byte("Y")); !ok {
		t.Fatal("shrink update failed")
	}
	if !bytes.Equal(n.Value(idx), []byte("Y")) {
		t.Fatalf("got %q, want Y", n.Value(idx))
	}
	if len(n.Fragments()) == 0 {
		t.Fatal("expected a fragment from the shrink")
	}
}

func TestOverwriteGrowInPlace(t *testing.T) {
	n := newLeaf(t, types.PageSize)
	n.TryInsertValue([]byte("k"), []byte("Y"))
	before := n.DataNum()
	idx := n.FindValueIndex([]byte("k"))
	if _, ok := n.TryUpdateValue(idx, []byte("ZZZZZ")); !ok {
		t.Fatal("grow update failed")
	}
	if n.DataNum() != before {
		t.Fatalf("data_num changed on update: got %d want %d", n.DataNum(), before)
	}
	idx = n.FindValueIndex([]byte("k"))
	if !bytes.Equal(n.Value(idx), []byte("ZZZZZ")) {
		t.Fatalf("got %q, want ZZZZZ", n.Value(idx))
	}
}

func TestRemovePresentAbsent(t *testing.T) {
	n := newLeaf(t, types.PageSize)
	n.TryInsertValue([]byte("a"), []byte("1"))
	idx := n.FindValueIndex([]byte("a"))
	n.Remove(idx)
	if n.DataNum() != 0 {
		t.Fatalf("expected empty node after remove, got data_num=%d", n.DataNum())
	}
	idx = n.FindValueIndex([]byte("a"))
	if idx < n.DataNum() && bytes.Equal(n.Key(idx), []byte("a")) {
		t.Fatal("key still present after remove")
	}
}

func TestNodeFullTriggersSplit(t *testing.T) {
	n := newLeaf(t, 256) // small page forces an early split
	inserted := 0
	for i := 0; i < 1000; i++ {
		k := []byte{byte(i >> 8), byte(i)}
		if _, ok := n.TryInsertValue(k, bytes.Repeat([]byte{'x'}, 8)); !ok {
			break
		}
		inserted++
	}
	if inserted == 0 {
		t.Fatal("expected at least one insert before the page filled")
	}
	if inserted == 1000 {
		t.Fatal("expected the small page to fill before 1000 inserts")
	}
}

func TestLoadRejectsCorruption(t *testing.T) {
	n := newLeaf(t, types.PageSize)
	n.TryInsertValue([]byte("a"), []byte("1"))
	finalize(n)
	n.Page.Data[100] ^= 0xFF // corrupt a free-space byte without fixing the checksum
	if _, err := Load(n.Page); err == nil {
		t.Fatal("expected corruption to be detected")
	}
}
