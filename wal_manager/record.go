package wal_manager

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// OpType tags a logical redo descriptor. Only leaf mutations are logged:
// Payload always holds value bytes, and replay re-descends by Key without
// consulting the destination page's cell type. Separator changes made by
// splits are not logged; a split needed during replay is performed again
// by the same leaf-mutation path.
type OpType uint8

const (
	OpInsert OpType = 1
	OpUpdate OpType = 2
	OpRemove OpType = 3
)

// Redo is one logical mutation, keyed so that replay can re-descend and
// re-apply it without needing the slot layout the original call saw —
// that layout may no longer exist once a split has reorganized the page.
type Redo struct {
	Type OpType

	Key     []byte // the mutation's key, always present
	Payload []byte // Insert / Update: value bytes
}

// Record is one durable WAL entry: {seq_num, page_id, redo_len, redo}
// followed by a trailing xxhash64 integrity field.
type Record struct {
	SeqNum uint32
	PageID uint32
	Redo   Redo
}

func (r Redo) encodeBody() []byte {
	switch r.Type {
	case OpInsert, OpUpdate:
		buf := make([]byte, 1+4+len(r.Key)+len(r.Payload))
		buf[0] = byte(r.Type)
		binary.LittleEndian.PutUint32(buf[1:5], uint32(len(r.Key)))
		copy(buf[5:5+len(r.Key)], r.Key)
		copy(buf[5+len(r.Key):], r.Payload)
		return buf
	case OpRemove:
		buf := make([]byte, 1+4+len(r.Key))
		buf[0] = byte(OpRemove)
		binary.LittleEndian.PutUint32(buf[1:5], uint32(len(r.Key)))
		copy(buf[5:], r.Key)
		return buf
	default:
		panic(fmt.Sprintf("wal_manager: unknown op type %d", r.Type))
	}
}

func decodeRedo(body []byte) (Redo, error) {
	if len(body) < 5 {
		return Redo{}, fmt.Errorf("wal_manager: truncated redo body")
	}
	t := OpType(body[0])
	keyLen := binary.LittleEndian.Uint32(body[1:5])
	rest := body[5:]
	if uint32(len(rest)) < keyLen {
		return Redo{}, fmt.Errorf("wal_manager: truncated redo key")
	}
	key := append([]byte(nil), rest[:keyLen]...)

	switch t {
	case OpInsert, OpUpdate:
		payload := append([]byte(nil), rest[keyLen:]...)
		return Redo{Type: t, Key: key, Payload: payload}, nil
	case OpRemove:
		return Redo{Type: OpRemove, Key: key}, nil
	default:
		return Redo{}, fmt.Errorf("wal_manager: unknown op type %d", t)
	}
}

// Encode serializes the record with its header and trailing integrity hash.
func (r Record) Encode() []byte {
	body := r.Redo.encodeBody()
	total := RecordHeaderSize + len(body) + RecordHashSize
	buf := make([]byte, total)

	binary.LittleEndian.PutUint32(buf[0:4], r.SeqNum)
	binary.LittleEndian.PutUint32(buf[4:8], r.PageID)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(body)))
	copy(buf[12:12+len(body)], body)

	sum := xxhash.Sum64(buf[:12+len(body)])
	binary.LittleEndian.PutUint64(buf[12+len(body):], sum)
	return buf
}

// decodeRecord parses a full record (header + body + hash) and validates
// its integrity hash.
func decodeRecord(raw []byte) (Record, error) {
	if len(raw) < RecordHeaderSize+RecordHashSize {
		return Record{}, fmt.Errorf("wal_manager: short record")
	}
	bodyLen := binary.LittleEndian.Uint32(raw[8:12])
	end := RecordHeaderSize + int(bodyLen)
	if len(raw) < end+RecordHashSize {
		return Record{}, fmt.Errorf("wal_manager: torn record")
	}

	want := binary.LittleEndian.Uint64(raw[end : end+RecordHashSize])
	got := xxhash.Sum64(raw[:end])
	if got != want {
		return Record{}, fmt.Errorf("wal_manager: record hash mismatch")
	}

	redo, err := decodeRedo(raw[RecordHeaderSize:end])
	if err != nil {
		return Record{}, err
	}
	return Record{
		SeqNum: binary.LittleEndian.Uint32(raw[0:4]),
		PageID: binary.LittleEndian.Uint32(raw[4:8]),
		Redo:   redo,
	}, nil
}
