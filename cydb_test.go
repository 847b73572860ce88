package cydb

import (
	"errors"
	"fmt"
	"testing"
)

func TestFacadeNilDB(t *testing.T) {
	var db *DB
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrDbNotInit) {
		t.Fatalf("got %v, want ErrDbNotInit", err)
	}
	if err := db.Set([]byte("k"), []byte("v")); !errors.Is(err, ErrDbNotInit) {
		t.Fatalf("got %v, want ErrDbNotInit", err)
	}
	if err := db.Close(); !errors.Is(err, ErrDbNotInit) {
		t.Fatalf("got %v, want ErrDbNotInit", err)
	}
}

func TestFacadeSetGetRemove(t *testing.T) {
	db, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("got %v, want ErrKeyNotFound", err)
	}

	if err := db.Set([]byte("alpha"), []byte("one")); err != nil {
		t.Fatal(err)
	}
	got, err := db.Get([]byte("alpha"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "one" {
		t.Fatalf("got %q, want one", got)
	}

	if err := db.Remove([]byte("alpha")); err != nil {
		t.Fatal(err)
	}
	if err := db.Remove([]byte("alpha")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("got %v, want ErrKeyNotFound", err)
	}
}

func TestFacadeReopenPersists(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Set([]byte("durable"), []byte("yes")); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db2, err := Open(dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()
	got, err := db2.Get([]byte("durable"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "yes" {
		t.Fatalf("got %q, want yes", got)
	}
}

func TestFacadeScanBounded(t *testing.T) {
	db, err := Open(t.TempDir(), Options{PageSize: 4096, BufferPoolCapacity: 32})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for i := 0; i < 20; i++ {
		k := fmt.Sprintf("%02d", i)
		if err := db.Set([]byte(k), []byte(k)); err != nil {
			t.Fatal(err)
		}
	}

	c, err := db.Scan([]byte("05"), []byte("10"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var got []string
	for c.Valid() {
		got = append(got, string(c.Key()))
		if err := c.Next(); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{"05", "06", "07", "08", "09", "10"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFacadeScanUnboundedRunsToEnd(t *testing.T) {
	db, err := Open(t.TempDir(), Options{PageSize: 4096, BufferPoolCapacity: 32})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for i := 0; i < 30; i++ {
		k := fmt.Sprintf("%02d", i)
		if err := db.Set([]byte(k), []byte(k)); err != nil {
			t.Fatal(err)
		}
	}

	c, err := db.Scan([]byte("00"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	count := 0
	for c.Valid() {
		count++
		if err := c.Next(); err != nil {
			t.Fatal(err)
		}
	}
	if count != 30 {
		t.Fatalf("scanned %d, want 30", count)
	}
}
