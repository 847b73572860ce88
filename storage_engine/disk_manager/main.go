package disk_manager

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

const dataFileName = "data"
const metadataFileName = "metadata"

// Open creates dir if absent and opens its data file. It first tries
// O_DIRECT|O_SYNC (spec.md §5); when the filesystem rejects O_DIRECT
// (tmpfs, overlayfs, some CI runners) it falls back to O_SYNC alone, the
// fallback spec.md explicitly authorizes.
func Open(dir string, pageSize int) (*DiskManager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, dataFileName)

	f, direct, err := openDataFile(path)
	if err != nil {
		return nil, fmt.Errorf("disk_manager: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	dm := &DiskManager{
		dir:        dir,
		dataFile:   f,
		direct:     direct,
		pageSize:   pageSize,
		nextPageID: uint32(info.Size() / int64(pageSize)),
	}
	return dm, nil
}

func openDataFile(path string) (*os.File, bool, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_DIRECT|unix.O_SYNC, 0644)
	if err == nil {
		return os.NewFile(uintptr(fd), path), true, nil
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_SYNC, 0644)
	if err != nil {
		return nil, false, err
	}
	return f, false, nil
}

// alignedBuffer returns a size-byte slice aligned to a 4096-byte boundary,
// required for O_DIRECT reads/writes; Go's allocator gives no alignment
// guarantee, so this over-allocates and slices to the boundary.
func alignedBuffer(size int) []byte {
	const align = 4096
	buf := make([]byte, size+align)
	base := uintptr(unsafe.Pointer(&buf[0]))
	pad := 0
	if r := base % align; r != 0 {
		pad = align - int(r)
	}
	return buf[pad : pad+size : pad+size]
}

func (d *DiskManager) NewBuffer() []byte {
	if d.direct {
		return alignedBuffer(d.pageSize)
	}
	return make([]byte, d.pageSize)
}

func (d *DiskManager) TotalPages() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nextPageID
}

// AllocatePage reserves the next page id. It does not write anything to
// disk; the caller (buffer manager) formats and writes the page via
// WritePage once it has staged a valid header.
func (d *DiskManager) AllocatePage() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextPageID
	d.nextPageID++
	return id
}

func (d *DiskManager) ReadPage(id uint32, buf []byte) error {
	off := int64(id) * int64(d.pageSize)
	n, err := d.dataFile.ReadAt(buf, off)
	if err != nil && n == 0 {
		// A page never written yet (allocated but not flushed) reads as
		// zeroes rather than failing.
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	return err
}

func (d *DiskManager) WritePage(id uint32, buf []byte) error {
	off := int64(id) * int64(d.pageSize)
	_, err := d.dataFile.WriteAt(buf, off)
	return err
}

// DeallocatePage punches a hole at the page's file offset; the id is
// never reused in this core.
func (d *DiskManager) DeallocatePage(id uint32) error {
	off := int64(id) * int64(d.pageSize)
	err := unix.Fallocate(int(d.dataFile.Fd()), unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE, off, int64(d.pageSize))
	if err != nil {
		// Not every filesystem supports hole punching (e.g. tmpfs); this
		// core tolerates that by leaving stale bytes in place, since the
		// id is never reused and the page is unreachable from the tree.
		return nil
	}
	return nil
}

func (d *DiskManager) Sync() error {
	return d.dataFile.Sync()
}

func (d *DiskManager) Close() error {
	return d.dataFile.Close()
}

// WriteMetadata persists {root_id, node_num, data_num} atomically:
// write-to-temp, fsync, rename, fsync the directory — the pattern the
// teacher's checkpoint_manager uses for its checkpoint file.
func (d *DiskManager) WriteMetadata(m Metadata) error {
	buf := make([]byte, metadataSize)
	binary.LittleEndian.PutUint32(buf[0:4], m.RootID)
	binary.LittleEndian.PutUint32(buf[4:8], m.NodeNum)
	binary.LittleEndian.PutUint64(buf[8:16], m.DataNum)

	final := filepath.Join(d.dir, metadataFileName)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		return err
	}
	if dirF, err := os.Open(d.dir); err == nil {
		dirF.Sync()
		dirF.Close()
	}
	return nil
}

// ReadMetadata reads the sidecar record, returning ok=false when the
// database directory was just created (no prior clean shutdown).
func (d *DiskManager) ReadMetadata() (Metadata, bool, error) {
	path := filepath.Join(d.dir, metadataFileName)
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, err
	}
	if len(buf) < metadataSize {
		return Metadata{}, false, fmt.Errorf("disk_manager: truncated metadata sidecar")
	}
	return Metadata{
		RootID:  binary.LittleEndian.Uint32(buf[0:4]),
		NodeNum: binary.LittleEndian.Uint32(buf[4:8]),
		DataNum: binary.LittleEndian.Uint64(buf[8:16]),
	}, true, nil
}
