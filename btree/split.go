package btree

import (
	"bytes"
	"cydb/storage_engine/node"
	"cydb/types"
	"fmt"
)

// ErrSplitOverflow signals a defect in the split arithmetic, not a
// reachable runtime condition: a page sized per spec.md always has room
// for at least a handful of minimum-size cells, so half of a full node's
// entries always fits in an empty sibling of the same page size.
var ErrSplitOverflow = fmt.Errorf("btree: split redistribution did not fit")

type leafEntry struct{ key, value []byte }

func collectLeafEntries(n *node.Node) []leafEntry {
	out := make([]leafEntry, 0, n.DataNum())
	for i := 0; i < n.DataNum(); i++ {
		out = append(out, leafEntry{
			key:   append([]byte(nil), n.Key(i)...),
			value: append([]byte(nil), n.Value(i)...),
		})
	}
	return out
}

// insertOrReplaceLeafEntry inserts e in key order, or overwrites the
// value of an existing entry with the same key (the update-grow path
// that triggered the split already knows the key exists).
func insertOrReplaceLeafEntry(entries []leafEntry, e leafEntry) []leafEntry {
	for i, cur := range entries {
		cmp := bytes.Compare(cur.key, e.key)
		if cmp == 0 {
			entries[i] = e
			return entries
		}
		if cmp > 0 {
			out := make([]leafEntry, 0, len(entries)+1)
			out = append(out, entries[:i]...)
			out = append(out, e)
			out = append(out, entries[i:]...)
			return out
		}
	}
	return append(entries, e)
}

// splitLeaf redistributes n's data cells plus one pending (key, value)
// that did not fit between n and a freshly allocated sibling, preserving
// the linked-leaf chain. It returns the separator key promoted to the
// parent: n's own retained maximum key (entries[mid-1]), the fresh
// upper bound routing lookups for that key to n rather than sibling —
// matching insertSeparator's "oldChildID keeps a fresh upper bound"
// contract, the same one splitInternal follows.
//
// Grounded on the teacher's bplustree.SplitLeaf, adapted from parsed
// key/value slices to the slotted node's allocate-and-reinsert protocol.
func (t *BTree) splitLeaf(n *node.Node, pendingKey, pendingValue []byte) (*node.Node, []byte, error) {
	entries := insertOrReplaceLeafEntry(collectLeafEntries(n), leafEntry{pendingKey, pendingValue})
	oldNext := n.NextLeafID()
	mid := (len(entries) + 1) / 2

	n.Reset(types.PageTypeLeaf, types.NoPage)
	for _, e := range entries[:mid] {
		if _, ok := n.TryInsertValue(e.key, e.value); !ok {
			return nil, nil, ErrSplitOverflow
		}
	}

	sibling, err := t.bp.Alloc(types.PageTypeLeaf, oldNext)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries[mid:] {
		if _, ok := sibling.TryInsertValue(e.key, e.value); !ok {
			return nil, nil, ErrSplitOverflow
		}
	}
	n.SetNextLeafID(sibling.Page.ID)
	n.Page.IsDirty = true

	return sibling, entries[mid-1].key, nil
}

// internalSep is a separator cell: child owns every key <= key.
type internalSep struct {
	key   []byte
	child uint32
}

func collectInternalEntries(n *node.Node) []internalSep {
	out := make([]internalSep, 0, n.DataNum())
	for i := 0; i < n.DataNum(); i++ {
		out = append(out, internalSep{append([]byte(nil), n.Key(i)...), n.ChildAt(i)})
	}
	return out
}

// insertSeparator accounts for a child split: oldChildID (unchanged page
// id, now the lower half) is given a fresh upper bound sepKey, and the
// entry that used to route to oldChildID is retargeted to newChildID
// (the upper half). If oldChildID was the rightmost child, the new
// separator is simply appended and rightmost becomes newChildID.
func insertSeparator(entries []internalSep, rightmost uint32, oldChildID uint32, sepKey []byte, newChildID uint32) ([]internalSep, uint32) {
	for i, e := range entries {
		if e.child == oldChildID {
			out := make([]internalSep, 0, len(entries)+1)
			out = append(out, entries[:i]...)
			out = append(out, internalSep{sepKey, oldChildID})
			retargeted := e
			retargeted.child = newChildID
			out = append(out, retargeted)
			out = append(out, entries[i+1:]...)
			return out, rightmost
		}
	}
	// oldChildID was the rightmost child.
	return append(entries, internalSep{sepKey, oldChildID}), newChildID
}

// writeInternalEntries reinitializes n and writes entries plus rightmost
// into it in one shot, used both for the direct-fit path and for each
// half of an internal split.
func writeInternalEntries(n *node.Node, entries []internalSep, rightmost uint32) bool {
	n.Reset(types.PageTypeInternal, rightmost)
	for _, e := range entries {
		if _, ok := n.TryInsertChild(e.key, e.child); !ok {
			return false
		}
	}
	return true
}

// splitInternal divides entries (already including the new separator)
// between n and a freshly allocated sibling, promoting the middle
// separator to the parent without retaining it in either half.
func (t *BTree) splitInternal(n *node.Node, entries []internalSep, rightmost uint32) (*node.Node, []byte, error) {
	mid := len(entries) / 2
	promoted := entries[mid]

	if !writeInternalEntries(n, entries[:mid], promoted.child) {
		return nil, nil, ErrSplitOverflow
	}

	sibling, err := t.bp.Alloc(types.PageTypeInternal, rightmost)
	if err != nil {
		return nil, nil, err
	}
	if !writeInternalEntries(sibling, entries[mid+1:], rightmost) {
		return nil, nil, ErrSplitOverflow
	}

	return sibling, promoted.key, nil
}
