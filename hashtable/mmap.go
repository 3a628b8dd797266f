package hashtable

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

// MmapFile backs a Table with a memory-mapped file, the same
// syscall.Mmap/PROT_READ|PROT_WRITE/MAP_SHARED shape
// MmapDiskManager uses for page storage, so a table's node buffer can live
// directly on disk instead of in a process-local slice.
type MmapFile struct {
	file *os.File
	data []byte
}

// OpenMmapFile opens (creating if needed) path, truncates it to size bytes
// if it is smaller, and maps it shared read-write.
func OpenMmapFile(path string, size int64) (*MmapFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("hashtable: opening mmap file %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("hashtable: stat mmap file %s: %w", path, err)
	}
	if info.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("hashtable: truncating mmap file %s: %w", path, err)
		}
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("hashtable: mmap %s: %w", path, err)
	}

	return &MmapFile{file: f, data: data}, nil
}

// Bytes exposes the mapped region for use as a Table's backing buffer.
func (m *MmapFile) Bytes() []byte { return m.data }

// Sync flushes the mapped region's dirty pages to disk.
func (m *MmapFile) Sync() error {
	if len(m.data) == 0 {
		return nil
	}
	_, _, errno := syscall.Syscall(syscall.SYS_MSYNC, uintptr(unsafe.Pointer(&m.data[0])), uintptr(len(m.data)), syscall.MS_SYNC)
	if errno != 0 {
		return errno
	}
	return nil
}

// Close unmaps the region and closes the underlying file.
func (m *MmapFile) Close() error {
	if err := syscall.Munmap(m.data); err != nil {
		return fmt.Errorf("hashtable: munmap: %w", err)
	}
	return m.file.Close()
}

// NewOnMmapFile opens (or creates) a file at path sized to hold an
// odd-capacity table of approximately capacityHint nodes under codec, maps
// it, and builds a Table over the mapping. The caller owns the returned
// *MmapFile and must Close it once the table is no longer needed.
func NewOnMmapFile[K any, V any](path string, capacityHint int, codec Codec[K, V]) (*Table[K, V], *MmapFile, error) {
	if capacityHint <= 0 {
		capacityHint = 1
	}
	size := int64(NodeSize(codec)) * int64(capacityHint)
	mf, err := OpenMmapFile(path, size)
	if err != nil {
		return nil, nil, err
	}
	tbl, err := New(mf.Bytes(), codec)
	if err != nil {
		mf.Close()
		return nil, nil, err
	}
	return tbl, mf, nil
}
