package wal_manager

import (
	"fmt"
	"os"
	"path/filepath"
)

func segmentFileName(id uint64) string {
	if id == 0 {
		return "cydb.log"
	}
	return fmt.Sprintf("cydb-%d.log", id)
}

func InitializeWALSegment(id uint64, dir string) *WALSegment {
	return &WALSegment{
		SegmentID: id,
		FilePath:  filepath.Join(dir, segmentFileName(id)),
	}
}

// Open opens the segment for append, matching the teacher's O_APPEND
// idiom so concurrent appends land atomically at EOF.
func (s *WALSegment) Open() error {
	f, err := os.OpenFile(s.FilePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	s.File = f
	s.Size = info.Size()
	return nil
}

func (s *WALSegment) Append(record []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.File.Write(record)
	if err != nil {
		return 0, err
	}
	s.Size += int64(n)
	return s.Size, nil
}

func (s *WALSegment) Sync() error {
	return s.File.Sync()
}

func (s *WALSegment) Close() error {
	if s.File == nil {
		return nil
	}
	err := s.File.Close()
	s.File = nil
	return err
}

func (s *WALSegment) IsFull() bool {
	return s.Size >= SegmentSize
}
