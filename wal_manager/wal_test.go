package wal_manager

import (
	"bytes"
	"testing"
)

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWAL(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := w.Append(1, Redo{Type: OpInsert, Key: []byte("a"), Payload: []byte("1")}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Append(1, Redo{Type: OpUpdate, Key: []byte("a"), Payload: []byte("2")}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Append(2, Redo{Type: OpRemove, Key: []byte("b")}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	w2, err := OpenWAL(dir)
	if err != nil {
		t.Fatal(err)
	}

	var got []Redo
	err = w2.Replay(func(pageID uint32, redo Redo) error {
		got = append(got, redo)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[0].Type != OpInsert || !bytes.Equal(got[0].Key, []byte("a")) || !bytes.Equal(got[0].Payload, []byte("1")) {
		t.Fatalf("record 0 mismatch: %+v", got[0])
	}
	if got[1].Type != OpUpdate || !bytes.Equal(got[1].Key, []byte("a")) || !bytes.Equal(got[1].Payload, []byte("2")) {
		t.Fatalf("record 1 mismatch: %+v", got[1])
	}
	if got[2].Type != OpRemove || !bytes.Equal(got[2].Key, []byte("b")) {
		t.Fatalf("record 2 mismatch: %+v", got[2])
	}
}

func TestRemoveDeletesSegments(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWAL(dir)
	if err != nil {
		t.Fatal(err)
	}
	w.Append(1, Redo{Type: OpRemove, Key: []byte("a")})
	if err := w.Remove(); err != nil {
		t.Fatal(err)
	}

	w2, err := OpenWAL(dir)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	w2.Replay(func(uint32, Redo) error { count++; return nil })
	if count != 0 {
		t.Fatalf("expected a fresh log after Remove, found %d records", count)
	}
}
