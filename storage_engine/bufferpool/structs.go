// Package bufferpool implements the buffer manager (C4): a fixed-size
// page cache with pinning and least-recently-fetched eviction, page
// allocation, metadata persistence, and a ristretto-backed value cache
// that fronts leaf lookups.
//
// Grounded on the teacher's storage_engine/bufferpool/bufferpool.go
// (FetchPage/NewPage/UnpinPage/evictLRU shape); the durability gate the
// teacher built around a WAL-flushed-LSN watermark is dropped here
// because C3's log() call is synchronous (append+fsync before returning),
// so a page can never be evicted ahead of the record describing it.
package bufferpool

import (
	"cydb/storage_engine/disk_manager"
	"cydb/storage_engine/node"
	"cydb/storage_engine/page"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
)

// growthCap bounds the "every page pinned" degenerate case from
// spec.md §9: rather than fail hard or grow forever, the pool is allowed
// to grow up to this multiple of its configured capacity before Fetch/Alloc
// return ErrPoolExhausted.
const growthCap = 4

type BufferPool struct {
	capacity int
	disk     *disk_manager.DiskManager

	pages      map[uint32]*page.Page
	nodes      map[uint32]*node.Node
	order      []uint32 // least recently fetched first; a Fetch hit moves the id to the back
	pinned     map[uint32]int32
	valueCache *ristretto.Cache[string, []byte]

	mu sync.Mutex
}

type Stats struct {
	Resident int
	Capacity int
	Pinned   int
}
