package bufferpool

// GetValue asks the ristretto front cache for key's value without
// touching the page cache. A miss is not an error — the caller falls
// through to the normal descend-and-fetch path.
func (bp *BufferPool) GetValue(key []byte) ([]byte, bool) {
	return bp.valueCache.Get(string(key))
}

// PutValue populates the front cache after a successful descent. Wait
// blocks until ristretto's buffered writer has applied the Set, so a
// PutValue immediately followed by GetValue never spuriously misses.
func (bp *BufferPool) PutValue(key, value []byte) {
	bp.valueCache.Set(string(key), value, int64(len(key)+len(value)))
	bp.valueCache.Wait()
}

// InvalidateValue drops key from the front cache; called before any
// Set/Remove mutates the page holding it, so a stale value is never
// served after a write.
func (bp *BufferPool) InvalidateValue(key []byte) {
	bp.valueCache.Del(string(key))
	bp.valueCache.Wait()
}
