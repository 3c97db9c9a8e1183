// Package block implements BlockManager (spec.md §4.1): ownership of the
// physical files of one entry directory — fixed-size ".block" data files
// plus the ".descriptor" and ".settings" metadata files.
package block

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/tsblobstore/tsblobstore/pkg/model"
	"github.com/tsblobstore/tsblobstore/pkg/rserr"
)

const (
	descriptorFileName = ".descriptor"
	settingsFileName   = ".settings"
)

// Manager owns the on-disk files of a single entry directory. It is not
// safe for concurrent use by itself — the owning Entry's exclusive lock
// (spec.md §5) is what serializes access; the mutex here is a cheap second
// line of defense against an accidental concurrent AppendRecord to the
// same block (e.g. a bug that calls Entry methods without holding the
// lock) rather than the primary synchronization mechanism.
type Manager struct {
	dirPath string

	mu sync.Mutex
}

// NewManager returns a Manager rooted at dirPath. dirPath must already
// exist; Entry.Create/Entry.Restore are responsible for creating it.
func NewManager(dirPath string) *Manager {
	return &Manager{dirPath: dirPath}
}

func blockFileName(id int64) string {
	return fmt.Sprintf("%08d.block", id)
}

func (m *Manager) blockPath(id int64) string {
	return filepath.Join(m.dirPath, blockFileName(id))
}

// AllocateBlock creates a new block data file of exactly maxSize bytes,
// pre-allocated sparsely via the OS's truncate primitive (the same
// approach blockdevice.NewBlockDeviceFromFile uses: unix.Ftruncate rather
// than writing maxSize zero bytes). If allocation fails partway, the
// partial file is removed before the error is returned (spec.md §4.1).
func (m *Manager) AllocateBlock(id int64, maxSize int64) error {
	path := m.blockPath(id)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o666)
	if err != nil {
		return rserr.WrapWithKind(err, rserr.KindIO, "failed to create block file")
	}

	succeeded := false
	defer func() {
		f.Close()
		if !succeeded {
			os.Remove(path)
		}
	}()

	if err := unix.Ftruncate(int(f.Fd()), maxSize); err != nil {
		return rserr.WrapWithKind(err, rserr.KindIO, "failed to pre-allocate block file")
	}
	succeeded = true
	return nil
}

// AppendRecord writes payload at the given logical offset within block id
// and returns the resulting [begin, end) byte range. The caller (Entry)
// tracks the block's logical size and supplies offset == that size; since
// the file is already pre-allocated to its full capacity, a real
// O_APPEND-mode write would land past the logical end of data, so this
// writes at an explicit offset instead.
func (m *Manager) AppendRecord(id int64, payload []byte, offset int64) (begin int64, end int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := os.OpenFile(m.blockPath(id), os.O_WRONLY, 0o666)
	if err != nil {
		return 0, 0, rserr.WrapWithKind(err, rserr.KindIO, "failed to open block file for writing")
	}
	defer f.Close()

	n, err := f.WriteAt(payload, offset)
	if err != nil {
		return 0, 0, rserr.WrapWithKind(err, rserr.KindIO, "failed to append record")
	}
	return offset, offset + int64(n), nil
}

// ReadRecord reads the exact [begin, end) byte range from block id.
func (m *Manager) ReadRecord(id int64, begin, end int64) ([]byte, error) {
	f, err := os.Open(m.blockPath(id))
	if err != nil {
		return nil, rserr.WrapWithKind(err, rserr.KindIO, "failed to open block file for reading")
	}
	defer f.Close()

	want := end - begin
	buf := make([]byte, want)
	n, err := f.ReadAt(buf, begin)
	if err != nil && err != io.EOF {
		return nil, rserr.WrapWithKind(err, rserr.KindIO, "failed to read record")
	}
	if int64(n) != want {
		return nil, rserr.New(rserr.KindCorrupt, "short read from block %d: wanted %d bytes, got %d", id, want, n)
	}
	return buf, nil
}

// RemoveBlock deletes a block's data file. Missing files are not an error
// (spec.md §4.1: "idempotent").
func (m *Manager) RemoveBlock(id int64) error {
	if err := os.Remove(m.blockPath(id)); err != nil && !os.IsNotExist(err) {
		return rserr.WrapWithKind(err, rserr.KindIO, "failed to remove block file")
	}
	return nil
}

// LoadDescriptor reads the entry's ".descriptor" file. A missing file is
// reported via os.IsNotExist on the returned error.
func (m *Manager) LoadDescriptor() (*model.EntryDescriptor, error) {
	var d model.EntryDescriptor
	if err := model.LoadInto(m.dirPath, descriptorFileName, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveDescriptor persists the entry's descriptor crash-safely (temp file +
// fsync + rename + directory fsync — see model.SaveAtomic).
func (m *Manager) SaveDescriptor(d *model.EntryDescriptor) error {
	return model.SaveAtomic(m.dirPath, descriptorFileName, d)
}

// LoadSettings reads the entry's ".settings" file.
func (m *Manager) LoadSettings() (*model.EntrySettings, error) {
	var s model.EntrySettings
	if err := model.LoadInto(m.dirPath, settingsFileName, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSettings persists the entry's settings. Settings are immutable after
// creation in the common case, so this is normally only called once, from
// Entry.Create.
func (m *Manager) SaveSettings(s *model.EntrySettings) error {
	return model.SaveAtomic(m.dirPath, settingsFileName, s)
}
