package btree

import (
	"cydb/storage_engine/node"
	"cydb/wal_manager"
)

// Remove deletes key. Underflow merging is out of scope (Non-goal): a
// leaf or internal node left sparse by a remove is simply left sparse;
// its page is never merged or reclaimed.
func (t *BTree) Remove(key []byte) error {
	leaf, pm, err := t.descendToLeaf(key)
	if err != nil {
		return err
	}
	idx := leaf.FindValueIndex(key)
	if !keyEqualAt(leaf, idx, key) {
		t.bp.Unpin(leaf.Page.ID, false)
		return ErrKeyNotFound
	}

	t.bp.InvalidateValue(key)
	if _, err := t.wal.Append(leaf.Page.ID, wal_manager.Redo{Type: wal_manager.OpRemove, Key: key}); err != nil {
		t.bp.Unpin(leaf.Page.ID, false)
		return err
	}
	_, err = t.removeInLeaf(leaf, pm, key)
	return err
}

// removeInLeaf applies an already-logged remove to a pinned leaf.
// Absence is not an error here — it makes replay of a remove already
// reflected on disk (flushed before a crash) a harmless no-op.
func (t *BTree) removeInLeaf(leaf *node.Node, _ parentMap, key []byte) (bool, error) {
	idx := leaf.FindValueIndex(key)
	if !keyEqualAt(leaf, idx, key) {
		t.bp.Unpin(leaf.Page.ID, false)
		return false, nil
	}
	leaf.Remove(idx)
	t.meta.DataNum--
	t.bp.Unpin(leaf.Page.ID, true)
	return true, nil
}
