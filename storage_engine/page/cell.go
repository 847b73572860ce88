package page

import "encoding/binary"

const (
	// KeyCellHeaderSize is key_size(4) + child_id(4).
	KeyCellHeaderSize = 8
	// KeyValueCellHeaderSize is key_size(4) + value_size(4).
	KeyValueCellHeaderSize = 8
)

// KeyCell is an internal-node separator: keys > the preceding separator and
// <= this one route to ChildID.
type KeyCell struct {
	Key     []byte
	ChildID uint32
}

// KeyValueCell is a leaf entry.
type KeyValueCell struct {
	Key   []byte
	Value []byte
}

func KeyCellSize(keyLen int) int {
	return KeyCellHeaderSize + keyLen
}

func KeyValueCellSize(keyLen, valLen int) int {
	return KeyValueCellHeaderSize + keyLen + valLen
}

// WriteKeyCell writes {key_size, child_id, key...} at off, contiguously.
// The caller must have allocated KeyCellSize(len(key)) bytes at off.
func WriteKeyCell(data []byte, off int, key []byte, childID uint32) {
	binary.LittleEndian.PutUint32(data[off:off+4], uint32(len(key)))
	binary.LittleEndian.PutUint32(data[off+4:off+8], childID)
	copy(data[off+8:off+8+len(key)], key)
}

func ReadKeyCell(data []byte, off int) KeyCell {
	keyLen := binary.LittleEndian.Uint32(data[off : off+4])
	childID := binary.LittleEndian.Uint32(data[off+4 : off+8])
	key := make([]byte, keyLen)
	copy(key, data[off+8:off+8+int(keyLen)])
	return KeyCell{Key: key, ChildID: childID}
}

// WriteKeyValueCell writes {key_size, value_size, key..., value...} at off.
func WriteKeyValueCell(data []byte, off int, key, value []byte) {
	binary.LittleEndian.PutUint32(data[off:off+4], uint32(len(key)))
	binary.LittleEndian.PutUint32(data[off+4:off+8], uint32(len(value)))
	copy(data[off+8:off+8+len(key)], key)
	copy(data[off+8+len(key):off+8+len(key)+len(value)], value)
}

func ReadKeyValueCell(data []byte, off int) KeyValueCell {
	keyLen := binary.LittleEndian.Uint32(data[off : off+4])
	valLen := binary.LittleEndian.Uint32(data[off+4 : off+8])
	key := make([]byte, keyLen)
	copy(key, data[off+8:off+8+int(keyLen)])
	val := make([]byte, valLen)
	copy(val, data[off+8+int(keyLen):off+8+int(keyLen)+int(valLen)])
	return KeyValueCell{Key: key, Value: val}
}

// CellKey reads only the key of a cell at off, without materializing the
// rest — used by the node's binary search over slots. Both cell headers
// start with key_size, so this needs no type tag.
func CellKey(data []byte, off int) []byte {
	keyLen := binary.LittleEndian.Uint32(data[off : off+4])
	key := make([]byte, keyLen)
	copy(key, data[off+8:off+8+int(keyLen)])
	return key
}
