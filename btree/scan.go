package btree

import (
	"cydb/storage_engine/node"
	"cydb/types"
)

// Iterator walks keys in ascending order across the linked-leaf chain
// (SPEC_FULL.md §7's supplemented scan), holding exactly one leaf pinned
// at a time.
type Iterator struct {
	t    *BTree
	leaf *node.Node
	idx  int
	done bool
}

// SeekGE positions an Iterator at the first key >= key. The caller must
// Close it when done to release the pinned leaf.
func (t *BTree) SeekGE(key []byte) (*Iterator, error) {
	leaf, _, err := t.descendToLeaf(key)
	if err != nil {
		return nil, err
	}
	it := &Iterator{t: t, leaf: leaf, idx: leaf.FindValueIndex(key)}
	if err := it.normalize(); err != nil {
		it.Close()
		return nil, err
	}
	return it, nil
}

// Valid reports whether Key/Value can be called.
func (it *Iterator) Valid() bool { return !it.done }

func (it *Iterator) Key() []byte   { return it.leaf.Key(it.idx) }
func (it *Iterator) Value() []byte { return it.leaf.Value(it.idx) }

// Next advances to the following key, crossing into the next leaf via
// next_leaf_id when the current one is exhausted.
func (it *Iterator) Next() error {
	if it.done {
		return nil
	}
	it.idx++
	return it.normalize()
}

func (it *Iterator) normalize() error {
	for it.leaf != nil && it.idx >= it.leaf.DataNum() {
		next := it.leaf.NextLeafID()
		it.t.bp.Unpin(it.leaf.Page.ID, false)
		if next == types.NoPage {
			it.leaf = nil
			it.done = true
			return nil
		}
		n, err := it.t.bp.Fetch(next)
		if err != nil {
			it.leaf = nil
			it.done = true
			return err
		}
		it.leaf = n
		it.idx = 0
	}
	return nil
}

// Close releases the currently pinned leaf, if any.
func (it *Iterator) Close() error {
	if it.leaf != nil {
		it.t.bp.Unpin(it.leaf.Page.ID, false)
		it.leaf = nil
	}
	it.done = true
	return nil
}
