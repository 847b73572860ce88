// Package node implements the entire in-page protocol (C2): slot array,
// cell heap, available-list free-space tracking, ordered insert/remove,
// defragmentation. It is constructed over a *page.Page and never reaches
// outside that one page — descent, splitting and parent bookkeeping belong
// to the btree package.
//
// Grounded on the slot/available-list design of
// _examples/original_source/engines/btree/page.hpp, expressed in the
// explicit-byte-offset style of the teacher's
// storage_engine/access/indexfile_manager/bplustree/node_to_index_page.go.
package node

import (
	"cydb/storage_engine/page"
	"cydb/types"
	"bytes"
	"container/list"
	"encoding/binary"
	"fmt"
	"sort"
)

// ErrCorruption is returned when a page's checksum does not match its
// contents. Only the facade (C6) may turn this into a fatal condition.
var ErrCorruption = fmt.Errorf("page checksum mismatch")

// Fragment is a free byte range inside the cell heap, produced by a remove
// or an in-place shrink.
type Fragment struct {
	Offset uint32
	Len    uint32
}

// Node wraps one buffered page and owns its available list. Aliasing two
// Nodes over the same page is forbidden; the buffer pool enforces
// single-instance residency per page id.
type Node struct {
	Page  *page.Page
	avail *list.List // of Fragment, sorted descending by Offset
}

// Load verifies the page's checksum and rebuilds the available list from
// the live slot array. Fails loudly on checksum mismatch, per I1.
func Load(p *page.Page) (*Node, error) {
	if !page.Verify(p.Data) {
		return nil, fmt.Errorf("node %d: %w", p.ID, ErrCorruption)
	}
	n := &Node{Page: p}
	n.rebuildAvailableList()
	return n, nil
}

// Init formats a freshly allocated page as an empty node of type t.
// rightmost is the initial rightmost_child/next_leaf_id value.
func Init(p *page.Page, t types.PageType, rightmost uint32) *Node {
	n := &Node{Page: p}
	n.Reset(t, rightmost)
	return n
}

// Reset reformats an already-loaded node's page as an empty node of type
// t in place, discarding its slot array and available list. Used by the
// B-tree driver to reinitialize a page it is about to redistribute
// during a split, so the in-memory available list never goes stale
// relative to the page bytes it describes.
func (n *Node) Reset(t types.PageType, rightmost uint32) {
	hdr := page.Header{
		Type:           t,
		DataNum:        0,
		CellEnd:        uint32(len(n.Page.Data)),
		RightmostChild: rightmost,
	}
	page.WriteHeader(n.Page.Data, hdr)
	page.RecomputeChecksum(n.Page.Data)
	n.Page.IsDirty = true
	n.avail = list.New()
}

func (n *Node) header() page.Header { return page.ReadHeader(n.Page.Data) }

func (n *Node) IsLeaf() bool { return n.header().Type == types.PageTypeLeaf }

func (n *Node) DataNum() int { return int(n.header().DataNum) }

// NextLeafID reads the leaf-only next-leaf pointer (rightmost_child reused
// per SPEC_FULL.md's linked-leaf scan).
func (n *Node) NextLeafID() uint32 { return n.header().RightmostChild }

func (n *Node) SetNextLeafID(id uint32) {
	hdr := n.header()
	hdr.RightmostChild = id
	page.WriteHeader(n.Page.Data, hdr)
}

func (n *Node) RightmostChild() uint32 { return n.header().RightmostChild }

func cellLenAt(data []byte, off int, leaf bool) int {
	keyLen := int(binary.LittleEndian.Uint32(data[off : off+4]))
	if leaf {
		valLen := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		return page.KeyValueCellSize(keyLen, valLen)
	}
	return page.KeyCellSize(keyLen)
}

func (n *Node) rebuildAvailableList() {
	data := n.Page.Data
	hdr := page.ReadHeader(data)
	leaf := hdr.Type == types.PageTypeLeaf

	type span struct{ off, end uint32 }
	spans := make([]span, hdr.DataNum)
	for i := 0; i < int(hdr.DataNum); i++ {
		off := page.ReadSlot(data, i)
		l := cellLenAt(data, int(off), leaf)
		spans[i] = span{off, off + uint32(l)}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].off < spans[j].off })

	n.avail = list.New()
	var frags []Fragment
	prev := hdr.CellEnd
	for _, s := range spans {
		if s.off > prev {
			frags = append(frags, Fragment{prev, s.off - prev})
		}
		prev = s.end
	}
	if prev < uint32(len(data)) {
		frags = append(frags, Fragment{prev, uint32(len(data)) - prev})
	}
	for i := len(frags) - 1; i >= 0; i-- {
		n.avail.PushBack(frags[i])
	}
}

// freeSpace is the bump-allocation headroom between the slot array and
// cell_end: cell_end - PAGE_HEADER_SIZE - data_num*4.
func (n *Node) freeSpace() uint32 {
	hdr := n.header()
	used := uint32(types.PageHeaderSize) + uint32(hdr.DataNum)*uint32(types.SlotSize)
	if hdr.CellEnd < used {
		return 0
	}
	return hdr.CellEnd - used
}

func (n *Node) totalFree() uint32 {
	sum := n.freeSpace()
	for e := n.avail.Front(); e != nil; e = e.Next() {
		sum += e.Value.(Fragment).Len
	}
	return sum
}

// allocate implements the three-path free-space policy of SPEC_FULL.md
// §4.2: available-list first fit, then bump allocation, then defragment
// and retry the bump. needSlot reserves room for a new slot-array entry.
func (n *Node) allocate(size int, needSlot bool) (uint32, bool) {
	slotReq := uint32(0)
	if needSlot {
		slotReq = uint32(types.SlotSize)
	}

	for e := n.avail.Front(); e != nil; e = e.Next() {
		f := e.Value.(Fragment)
		if f.Len >= uint32(size) && n.freeSpace() >= slotReq {
			off := f.Offset
			rem := f.Len - uint32(size)
			if rem == 0 {
				n.avail.Remove(e)
			} else {
				e.Value = Fragment{f.Offset + uint32(size), rem}
			}
			return off, true
		}
	}

	if n.bumpAllocate(size, slotReq) {
		hdr := n.header()
		return hdr.CellEnd, true
	}

	if n.totalFree() >= uint32(size)+slotReq {
		n.defragment()
		if n.bumpAllocate(size, slotReq) {
			hdr := n.header()
			return hdr.CellEnd, true
		}
	}
	return 0, false
}

func (n *Node) bumpAllocate(size int, slotReq uint32) bool {
	if n.freeSpace() < uint32(size)+slotReq {
		return false
	}
	hdr := n.header()
	hdr.CellEnd -= uint32(size)
	page.WriteHeader(n.Page.Data, hdr)
	return true
}

// defragment compacts every live cell toward the high end of the page,
// eliminating all fragments and maximizing bump-allocation headroom.
func (n *Node) defragment() {
	data := n.Page.Data
	hdr := n.header()
	leaf := hdr.Type == types.PageTypeLeaf

	type entry struct {
		idx int
		off uint32
		len int
	}
	entries := make([]entry, hdr.DataNum)
	for i := 0; i < int(hdr.DataNum); i++ {
		off := page.ReadSlot(data, i)
		l := cellLenAt(data, int(off), leaf)
		entries[i] = entry{i, off, l}
	}

	tmp := make([]byte, len(data))
	cursor := uint32(len(data))
	for _, e := range entries {
		cursor -= uint32(e.len)
		copy(tmp[cursor:cursor+uint32(e.len)], data[e.off:e.off+uint32(e.len)])
		page.WriteSlot(data, e.idx, cursor)
	}
	copy(data[cursor:], tmp[cursor:])
	hdr.CellEnd = cursor
	page.WriteHeader(data, hdr)
	n.avail = list.New()
}

func (n *Node) keyAt(i int) []byte {
	off := page.ReadSlot(n.Page.Data, i)
	return page.CellKey(n.Page.Data, int(off))
}

// FindValueIndex returns the lower-bound slot index of k among leaf keys,
// in [0, data_num].
func (n *Node) FindValueIndex(k []byte) int {
	dn := n.DataNum()
	return sort.Search(dn, func(i int) bool { return bytes.Compare(n.keyAt(i), k) >= 0 })
}

// FindChildIndex returns the first separator slot routing to k's subtree,
// or data_num when k is past the last separator (routes to rightmost_child).
func (n *Node) FindChildIndex(k []byte) int {
	dn := n.DataNum()
	return sort.Search(dn, func(i int) bool { return bytes.Compare(n.keyAt(i), k) >= 0 })
}

// FindChild resolves the child page id for key k.
func (n *Node) FindChild(k []byte) uint32 {
	idx := n.FindChildIndex(k)
	hdr := n.header()
	if idx >= int(hdr.DataNum) {
		return hdr.RightmostChild
	}
	off := page.ReadSlot(n.Page.Data, idx)
	return page.ReadKeyCell(n.Page.Data, int(off)).ChildID
}

// Key returns the key stored at slot i (valid for both cell types).
func (n *Node) Key(i int) []byte { return n.keyAt(i) }

// Value returns the leaf value stored at slot i.
func (n *Node) Value(i int) []byte {
	off := page.ReadSlot(n.Page.Data, i)
	return page.ReadKeyValueCell(n.Page.Data, int(off)).Value
}

// ChildAt returns the child id of internal slot i.
func (n *Node) ChildAt(i int) uint32 {
	off := page.ReadSlot(n.Page.Data, i)
	return page.ReadKeyCell(n.Page.Data, int(off)).ChildID
}

func (n *Node) insertSlotOrdered(off uint32, key []byte) {
	hdr := n.header()
	idx := int(hdr.DataNum)
	page.WriteSlot(n.Page.Data, idx, off)
	hdr.DataNum++
	page.WriteHeader(n.Page.Data, hdr)

	for idx > 0 {
		prevOff := page.ReadSlot(n.Page.Data, idx-1)
		prevKey := page.CellKey(n.Page.Data, int(prevOff))
		if bytes.Compare(prevKey, key) <= 0 {
			break
		}
		page.WriteSlot(n.Page.Data, idx, prevOff)
		page.WriteSlot(n.Page.Data, idx-1, off)
		idx--
	}
	n.Page.IsDirty = true
}

// TryInsertValue inserts a leaf (key, value) cell. Returns ok=false when
// the node lacks room; the caller must split.
func (n *Node) TryInsertValue(k, v []byte) (uint32, bool) {
	size := page.KeyValueCellSize(len(k), len(v))
	off, ok := n.allocate(size, true)
	if !ok {
		return 0, false
	}
	page.WriteKeyValueCell(n.Page.Data, int(off), k, v)
	n.insertSlotOrdered(off, k)
	return off, true
}

// TryUpdateValue overwrites the value at slot i. Shrinking is always
// in-place; growing removes and re-inserts the cell, returning ok=false
// (caller must split) only when the larger cell does not fit.
func (n *Node) TryUpdateValue(i int, v []byte) (uint32, bool) {
	data := n.Page.Data
	off := page.ReadSlot(data, i)
	old := page.ReadKeyValueCell(data, int(off))

	if len(v) <= len(old.Value) {
		binary.LittleEndian.PutUint32(data[off+4:off+8], uint32(len(v)))
		copy(data[int(off)+8+len(old.Key):int(off)+8+len(old.Key)+len(v)], v)
		tailOff := uint32(int(off) + 8 + len(old.Key) + len(v))
		tailLen := uint32(len(old.Value) - len(v))
		if tailLen > 0 {
			n.releaseFragment(tailOff, tailLen)
		}
		n.Page.IsDirty = true
		return off, true
	}

	// Allocate the bigger cell before releasing the old one: if there is
	// no room, the node (and the slot still pointing at the valid old
	// cell) must be left untouched so the caller can split and retry.
	newSize := page.KeyValueCellSize(len(old.Key), len(v))
	newOff, ok := n.allocate(newSize, false)
	if !ok {
		return 0, false
	}
	// allocate may have defragmented the page and moved the old cell, so
	// re-read its current offset before releasing it.
	off = page.ReadSlot(n.Page.Data, i)
	page.WriteKeyValueCell(n.Page.Data, int(newOff), old.Key, v)
	page.WriteSlot(n.Page.Data, i, newOff)
	oldLen := page.KeyValueCellSize(len(old.Key), len(old.Value))
	n.releaseFragment(off, uint32(oldLen))
	n.Page.IsDirty = true
	return newOff, true
}

// TryInsertChild inserts a separator (k, child) into an internal node in
// key order. When a split promotes a separator greater than every
// existing key, the new cell simply lands last; the caller is
// responsible for pointing rightmost_child at the split's upper half
// (the btree driver passes it to Reset before reinserting separators).
func (n *Node) TryInsertChild(k []byte, child uint32) (uint32, bool) {
	size := page.KeyCellSize(len(k))
	off, ok := n.allocate(size, true)
	if !ok {
		return 0, false
	}
	page.WriteKeyCell(n.Page.Data, int(off), k, child)
	n.insertSlotOrdered(off, k)
	return off, true
}

// TryUpdateChild updates the child id at slot i, or rightmost_child when
// i == data_num.
func (n *Node) TryUpdateChild(i int, child uint32) (uint32, bool) {
	hdr := n.header()
	if i >= int(hdr.DataNum) {
		hdr.RightmostChild = child
		page.WriteHeader(n.Page.Data, hdr)
		n.Page.IsDirty = true
		return 0, true
	}
	off := page.ReadSlot(n.Page.Data, i)
	binary.LittleEndian.PutUint32(n.Page.Data[off+4:off+8], child)
	n.Page.IsDirty = true
	return off, true
}

// Remove deletes slot i, returning its cell's extent to the available
// list. Never auto-compacts; defragmentation happens lazily on the next
// allocation that needs it.
func (n *Node) Remove(i int) {
	hdr := n.header()
	leaf := hdr.Type == types.PageTypeLeaf
	off := page.ReadSlot(n.Page.Data, i)
	l := cellLenAt(n.Page.Data, int(off), leaf)
	n.releaseFragment(off, uint32(l))

	for j := i; j < int(hdr.DataNum)-1; j++ {
		v := page.ReadSlot(n.Page.Data, j+1)
		page.WriteSlot(n.Page.Data, j, v)
	}
	hdr.DataNum--
	page.WriteHeader(n.Page.Data, hdr)
	n.Page.IsDirty = true
}

func (n *Node) releaseFragment(offset, length uint32) {
	n.insertFragmentSorted(Fragment{offset, length})
	n.absorbAtCellEnd()
}

// absorbAtCellEnd collapses trailing fragments abutting cell_end into the
// bump-allocation region, per I4/I5.
func (n *Node) absorbAtCellEnd() {
	for {
		back := n.avail.Back()
		if back == nil {
			return
		}
		f := back.Value.(Fragment)
		hdr := n.header()
		if f.Offset != hdr.CellEnd {
			return
		}
		hdr.CellEnd += f.Len
		page.WriteHeader(n.Page.Data, hdr)
		n.avail.Remove(back)
	}
}

// insertFragmentSorted inserts f keeping the list sorted descending by
// offset, merging with adjacent fragments.
func (n *Node) insertFragmentSorted(f Fragment) {
	for e := n.avail.Front(); e != nil; e = e.Next() {
		cur := e.Value.(Fragment)
		if f.Offset > cur.Offset {
			n.mergeWithNeighbors(n.avail.InsertBefore(f, e))
			return
		}
	}
	n.mergeWithNeighbors(n.avail.PushBack(f))
}

func (n *Node) mergeWithNeighbors(e *list.Element) {
	f := e.Value.(Fragment)
	if prev := e.Prev(); prev != nil {
		pf := prev.Value.(Fragment)
		if f.Offset+f.Len == pf.Offset {
			f.Len += pf.Len
			n.avail.Remove(prev)
			e.Value = f
		}
	}
	if next := e.Next(); next != nil {
		nf := next.Value.(Fragment)
		if nf.Offset+nf.Len == f.Offset {
			f.Offset = nf.Offset
			f.Len += nf.Len
			n.avail.Remove(next)
			e.Value = f
		}
	}
}

// Fragments returns a snapshot of the available list, highest offset
// first, for tests and diagnostics.
func (n *Node) Fragments() []Fragment {
	out := make([]Fragment, 0, n.avail.Len())
	for e := n.avail.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(Fragment))
	}
	return out
}
