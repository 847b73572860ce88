// Package page owns the on-disk byte layout of one page: header, slot
// array and cell heap (header.go, cell.go), plus the Page struct the
// buffer pool pins and evicts. It never knows about keys crossing pages
// or WAL records; that is the btree and wal_manager packages' job.
package page

import (
	"cydb/types"
	"sync"
)

// Page is the buffer pool's unit of residency: PageSize bytes of raw,
// codec-owned data plus the bookkeeping the pool needs to pin, evict and
// flush it. The byte layout inside Data is owned by this package's codec
// (see header.go, cell.go); Page itself never interprets it.
type Page struct {
	ID       uint32
	Data     []byte
	IsDirty  bool
	PinCount int32
	PageType types.PageType
	mu       sync.RWMutex
}

func New(id uint32, size int, t types.PageType) *Page {
	return &Page{ID: id, Data: make([]byte, size), PageType: t}
}

func (p *Page) Lock() {
	p.mu.Lock()
}

func (p *Page) Unlock() {
	p.mu.Unlock()
}

func (p *Page) RLock() {
	p.mu.RLock()
}

func (p *Page) RUnlock() {
	p.mu.RUnlock()
}
