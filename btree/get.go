package btree

// Get looks up key. The buffer pool's ristretto front cache is consulted
// first (I2's read fast path); a miss falls through to a normal descent
// and populates the cache on success.
func (t *BTree) Get(key []byte) ([]byte, error) {
	if v, ok := t.bp.GetValue(key); ok {
		return v, nil
	}

	leaf, _, err := t.descendToLeaf(key)
	if err != nil {
		return nil, err
	}
	defer t.bp.Unpin(leaf.Page.ID, false)

	idx := leaf.FindValueIndex(key)
	if !keyEqualAt(leaf, idx, key) {
		return nil, ErrKeyNotFound
	}
	value := append([]byte(nil), leaf.Value(idx)...)
	t.bp.PutValue(key, value)
	return value, nil
}
