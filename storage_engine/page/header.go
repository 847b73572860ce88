package page

import (
	"cydb/types"
	"encoding/binary"
)

// Header mirrors the on-disk PageHeader: checksum(8) | type(1) | data_num(2)
// | cell_end(4) | rightmost_child(4), padded to types.PageHeaderSize.
//
// RightmostChild is overloaded: on an Internal page it is the child for keys
// past the last separator; on a Leaf page the same field carries
// next_leaf_id (types.NoPage when there is no following leaf), per
// SPEC_FULL.md's linked-leaf scan.
type Header struct {
	Checksum       uint64
	Type           types.PageType
	DataNum        uint16
	CellEnd        uint32
	RightmostChild uint32
}

func ReadHeader(data []byte) Header {
	return Header{
		Checksum:       binary.LittleEndian.Uint64(data[0:8]),
		Type:           types.PageType(data[8]),
		DataNum:        binary.LittleEndian.Uint16(data[9:11]),
		CellEnd:        binary.LittleEndian.Uint32(data[11:15]),
		RightmostChild: binary.LittleEndian.Uint32(data[15:19]),
	}
}

func WriteHeader(data []byte, h Header) {
	binary.LittleEndian.PutUint64(data[0:8], h.Checksum)
	data[8] = byte(h.Type)
	binary.LittleEndian.PutUint16(data[9:11], h.DataNum)
	binary.LittleEndian.PutUint32(data[11:15], h.CellEnd)
	binary.LittleEndian.PutUint32(data[15:19], h.RightmostChild)
}

// computeChecksum XORs every 8-byte word of the page, treating bytes 0..7
// (the checksum field itself) as zero.
func computeChecksum(data []byte) uint64 {
	var sum uint64
	for off := 0; off+8 <= len(data); off += 8 {
		if off == 0 {
			continue
		}
		sum ^= binary.LittleEndian.Uint64(data[off : off+8])
	}
	return sum
}

// RecomputeChecksum stores the freshly computed checksum at bytes 0..7.
func RecomputeChecksum(data []byte) {
	binary.LittleEndian.PutUint64(data[0:8], computeChecksum(data))
}

// Verify reports whether the stored checksum matches the page contents.
func Verify(data []byte) bool {
	if len(data) < types.PageHeaderSize {
		return false
	}
	want := binary.LittleEndian.Uint64(data[0:8])
	return want == computeChecksum(data)
}

// SlotOffset returns the byte offset of slot i's entry within the slot
// array, which begins immediately after the header.
func SlotOffset(i int) int {
	return types.PageHeaderSize + i*types.SlotSize
}

func ReadSlot(data []byte, i int) uint32 {
	off := SlotOffset(i)
	return binary.LittleEndian.Uint32(data[off : off+4])
}

func WriteSlot(data []byte, i int, cellOffset uint32) {
	off := SlotOffset(i)
	binary.LittleEndian.PutUint32(data[off:off+4], cellOffset)
}
