package bufferpool

import (
	"cydb/storage_engine/disk_manager"
	"cydb/storage_engine/node"
	"cydb/storage_engine/page"
	"cydb/types"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/dustin/go-humanize"
)

var ErrPoolExhausted = fmt.Errorf("bufferpool: every resident page is pinned and the pool hit its growth cap")

func New(capacity int, disk *disk_manager.DiskManager) (*BufferPool, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: int64(capacity) * 80,
		MaxCost:     int64(capacity) * int64(types.PageSize),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("bufferpool: ristretto: %w", err)
	}
	return &BufferPool{
		capacity:   capacity,
		disk:       disk,
		pages:      make(map[uint32]*page.Page),
		nodes:      make(map[uint32]*node.Node),
		pinned:     make(map[uint32]int32),
		valueCache: cache,
	}, nil
}

// Fetch returns the node for id, pinned. Call Unpin when done. A cache
// miss reads PageSize bytes from disk and verifies its checksum (I1);
// a mismatch is fatal corruption, not a recoverable error.
func (bp *BufferPool) Fetch(id uint32) (*node.Node, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if n, ok := bp.nodes[id]; ok {
		bp.pin(id)
		bp.touch(id)
		return n, nil
	}

	if err := bp.makeRoom(); err != nil {
		return nil, err
	}

	buf := bp.disk.NewBuffer()
	if err := bp.disk.ReadPage(id, buf); err != nil {
		return nil, fmt.Errorf("bufferpool: read page %d: %w", id, err)
	}
	p := &page.Page{ID: id, Data: buf}
	n, err := node.Load(p)
	if err != nil {
		return nil, err // ErrCorruption: fatal, surfaced to the facade
	}
	p.PageType = n.Page.PageType

	bp.pages[id] = p
	bp.nodes[id] = n
	bp.order = append(bp.order, id)
	bp.pin(id)
	return n, nil
}

// Alloc reserves a fresh page id, formats it as an empty node of type t
// and returns it pinned and dirty.
func (bp *BufferPool) Alloc(t types.PageType, rightmost uint32) (*node.Node, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if err := bp.makeRoom(); err != nil {
		return nil, err
	}

	id := bp.disk.AllocatePage()
	buf := bp.disk.NewBuffer()
	p := &page.Page{ID: id, Data: buf, PageType: t}
	n := node.Init(p, t, rightmost)

	bp.pages[id] = p
	bp.nodes[id] = n
	bp.order = append(bp.order, id)
	bp.pin(id)
	return n, nil
}

func (bp *BufferPool) pin(id uint32) {
	bp.pinned[id]++
	bp.pages[id].PinCount = bp.pinned[id]
}

// Unpin releases one pin on id. dirty marks the page as modified since
// it was fetched; dirty flags only ever accumulate until flush.
func (bp *BufferPool) Unpin(id uint32, dirty bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if dirty {
		if p, ok := bp.pages[id]; ok {
			p.IsDirty = true
		}
	}
	if bp.pinned[id] > 0 {
		bp.pinned[id]--
	}
	if p, ok := bp.pages[id]; ok {
		p.PinCount = bp.pinned[id]
	}
}

func (bp *BufferPool) touch(id uint32) {
	for i, v := range bp.order {
		if v == id {
			bp.order = append(bp.order[:i], bp.order[i+1:]...)
			break
		}
	}
	bp.order = append(bp.order, id)
}

// makeRoom evicts the least recently fetched unpinned resident page when the pool is at
// capacity. Per spec.md §4.4, if every resident page is pinned the
// caller is allowed to proceed — this core bounds that by growthCap
// instead of growing without limit (spec.md §9 open question).
func (bp *BufferPool) makeRoom() error {
	if len(bp.pages) < bp.capacity {
		return nil
	}
	for _, id := range bp.order {
		if bp.pinned[id] > 0 {
			continue
		}
		if err := bp.flushLocked(id); err != nil {
			return err
		}
		delete(bp.pages, id)
		delete(bp.nodes, id)
		delete(bp.pinned, id)
		bp.removeFromOrder(id)
		return nil
	}
	if len(bp.pages) >= bp.capacity*growthCap {
		return ErrPoolExhausted
	}
	return nil
}

func (bp *BufferPool) removeFromOrder(id uint32) {
	for i, v := range bp.order {
		if v == id {
			bp.order = append(bp.order[:i], bp.order[i+1:]...)
			return
		}
	}
}

func (bp *BufferPool) flushLocked(id uint32) error {
	p, ok := bp.pages[id]
	if !ok || !p.IsDirty {
		return nil
	}
	page.RecomputeChecksum(p.Data)
	if err := bp.disk.WritePage(id, p.Data); err != nil {
		return fmt.Errorf("bufferpool: flush page %d: %w", id, err)
	}
	p.IsDirty = false
	return nil
}

// FlushAll writes back every resident page, pinned or not, per the
// shutdown contract.
func (bp *BufferPool) FlushAll() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for id := range bp.pages {
		if err := bp.flushLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// Remove deallocates id: it is dropped from the cache without being
// written back and the underlying file hole is punched. The id is never
// reused.
func (bp *BufferPool) Remove(id uint32) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	delete(bp.pages, id)
	delete(bp.nodes, id)
	delete(bp.pinned, id)
	bp.removeFromOrder(id)
	return bp.disk.DeallocatePage(id)
}

func (bp *BufferPool) Stats() Stats {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	pinned := 0
	for _, c := range bp.pinned {
		if c > 0 {
			pinned++
		}
	}
	return Stats{Resident: len(bp.pages), Capacity: bp.capacity, Pinned: pinned}
}

// StatsLine renders occupancy in human units, e.g. "12/64 pages (192 KiB
// / 1.0 MiB), 3 pinned" — exercises go-humanize the way the teacher's
// BufferPoolStats was meant to be logged but never was.
func (bp *BufferPool) StatsLine() string {
	s := bp.Stats()
	used := humanize.IBytes(uint64(s.Resident) * uint64(types.PageSize))
	total := humanize.IBytes(uint64(s.Capacity) * uint64(types.PageSize))
	return fmt.Sprintf("%d/%d pages (%s / %s), %d pinned", s.Resident, s.Capacity, used, total, s.Pinned)
}

func (bp *BufferPool) Close() error {
	bp.valueCache.Close()
	return nil
}
