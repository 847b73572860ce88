// Package disk_manager owns the two files a database directory holds:
// the raw page file ("data") and the metadata sidecar ("metadata"). It
// never interprets page contents, only moves PageSize-sized byte ranges.
//
// Grounded on the teacher's storage_engine/disk_manager/main.go
// (ReadPage/WritePage/AllocatePage shape); the O_DIRECT|O_SYNC open path
// is a domain-stack addition wiring golang.org/x/sys, per SPEC_FULL.md §4.4.
package disk_manager

import (
	"os"
	"sync"
)

const metadataSize = 4 + 4 + 8 // root_id u32, node_num u32, data_num u64

// Metadata mirrors the sidecar record: {root_id, node_num, data_num}.
type Metadata struct {
	RootID  uint32
	NodeNum uint32
	DataNum uint64
}

type DiskManager struct {
	dir        string
	dataFile   *os.File
	direct     bool
	pageSize   int
	nextPageID uint32
	mu         sync.Mutex
}
