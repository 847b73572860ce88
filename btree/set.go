package btree

import (
	"cydb/storage_engine/node"
	"cydb/storage_engine/page"
	"cydb/types"
	"cydb/wal_manager"
)

// Set inserts key or overwrites its existing value. It descends to the
// leaf, logs the mutation before modifying any page (C3's "log before
// mutate" contract), then applies the change in the leaf and splits
// upward through the root as many times as a chain of full nodes requires.
func (t *BTree) Set(key, value []byte) error {
	t.bp.InvalidateValue(key)

	leaf, pm, err := t.descendToLeaf(key)
	if err != nil {
		return err
	}
	if _, err := t.wal.Append(leaf.Page.ID, wal_manager.Redo{Type: wal_manager.OpInsert, Key: key, Payload: value}); err != nil {
		t.bp.Unpin(leaf.Page.ID, false)
		return err
	}
	return t.setInLeaf(leaf, pm, key, value)
}

// setInLeaf applies an already-logged upsert to a pinned leaf. It never
// touches the WAL, so both Set and WAL replay can share it.
func (t *BTree) setInLeaf(leaf *node.Node, pm parentMap, key, value []byte) error {
	idx := leaf.FindValueIndex(key)
	exists := keyEqualAt(leaf, idx, key)

	var ok bool
	if exists {
		_, ok = leaf.TryUpdateValue(idx, value)
	} else {
		_, ok = leaf.TryInsertValue(key, value)
	}
	if ok {
		if !exists {
			t.meta.DataNum++
		}
		t.bp.Unpin(leaf.Page.ID, true)
		return nil
	}

	sibling, sepKey, err := t.splitLeaf(leaf, key, value)
	if err != nil {
		t.bp.Unpin(leaf.Page.ID, true)
		return err
	}
	if !exists {
		t.meta.DataNum++
	}
	leafID, siblingID := leaf.Page.ID, sibling.Page.ID
	t.bp.Unpin(leafID, true)
	t.bp.Unpin(siblingID, true)
	return t.propagateSplit(pm, leafID, sepKey, siblingID)
}

// propagateSplit inserts the separator promoted by a child split into
// childID's parent, recursively splitting the parent (and its parent,
// and so on) whenever the new separator does not fit, and growing a new
// root when the split reaches the top of the tree.
func (t *BTree) propagateSplit(pm parentMap, childID uint32, sepKey []byte, newChildID uint32) error {
	parentID, hasParent := pm[childID]
	if !hasParent {
		return t.growRoot(childID, sepKey, newChildID)
	}

	parent, err := t.bp.Fetch(parentID)
	if err != nil {
		return err
	}

	entries := collectInternalEntries(parent)
	newEntries, newRightmost := insertSeparator(entries, parent.RightmostChild(), childID, sepKey, newChildID)

	if fitsInPage(newEntries, len(parent.Page.Data)) {
		writeInternalEntries(parent, newEntries, newRightmost)
		t.bp.Unpin(parentID, true)
		return nil
	}

	sibling, promotedKey, err := t.splitInternal(parent, newEntries, newRightmost)
	if err != nil {
		t.bp.Unpin(parentID, true)
		return err
	}
	siblingID := sibling.Page.ID
	t.bp.Unpin(parentID, true)
	t.bp.Unpin(siblingID, true)
	return t.propagateSplit(pm, parentID, promotedKey, siblingID)
}

// growRoot builds a new one-separator internal root over the old root
// (now the lower half, still at oldRootID) and its new sibling, the only
// operation in this driver that changes RootID.
func (t *BTree) growRoot(oldRootID uint32, sepKey []byte, newChildID uint32) error {
	newRoot, err := t.bp.Alloc(types.PageTypeInternal, newChildID)
	if err != nil {
		return err
	}
	if _, ok := newRoot.TryInsertChild(sepKey, oldRootID); !ok {
		t.bp.Unpin(newRoot.Page.ID, true)
		return ErrSplitOverflow
	}
	t.meta.RootID = newRoot.Page.ID
	t.bp.Unpin(newRoot.Page.ID, true)
	return nil
}

// fitsInPage reports whether entries, written from an empty page of the
// given size, fit without a further split.
func fitsInPage(entries []internalSep, pageSize int) bool {
	used := types.PageHeaderSize
	for _, e := range entries {
		used += page.KeyCellSize(len(e.key)) + types.SlotSize
	}
	return used <= pageSize
}
