// Package bucket implements Bucket (spec.md §4.3): a named collection of
// entries sharing quota and retention settings.
package bucket

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/tsblobstore/tsblobstore/pkg/clock"
	"github.com/tsblobstore/tsblobstore/pkg/entry"
	"github.com/tsblobstore/tsblobstore/pkg/eviction"
	"github.com/tsblobstore/tsblobstore/pkg/model"
	"github.com/tsblobstore/tsblobstore/pkg/rserr"
)

const settingsFileName = ".settings"

// Info is the snapshot returned by Bucket.GetInfo (spec.md §4.3).
type Info struct {
	Name             string `json:"name"`
	EntryCount       int    `json:"entry_count"`
	Bytes            int64  `json:"bytes"`
	OldestRecordTime int64  `json:"oldest_record_time"`
	LatestRecordTime int64  `json:"latest_record_time"`
}

// Bucket owns a mapping of entry name to *entry.Entry and enforces the
// bucket's quota policy. Entries are guarded by their own lock (spec.md
// §5); the map itself is guarded by this reader-writer lock.
type Bucket struct {
	path string
	clk  clock.Clock

	mu       sync.RWMutex
	settings model.BucketSettings
	entries  map[string]*entry.Entry
}

// Create initializes a brand new bucket directory and persists its
// settings. Fails with Conflict if the directory already exists (mirrors
// spec.md §4.4's Storage.CreateBucket contract one level down).
func Create(path string, settings model.BucketSettings, clk clock.Clock) (*Bucket, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, rserr.New(rserr.KindConflict, "bucket directory %q already exists", path)
	} else if !os.IsNotExist(err) {
		return nil, rserr.WrapWithKind(err, rserr.KindIO, "failed to stat bucket directory")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, rserr.WrapWithKind(err, rserr.KindIO, "failed to create bucket directory")
	}
	if err := model.SaveAtomic(path, settingsFileName, &settings); err != nil {
		return nil, err
	}
	return &Bucket{
		path:     path,
		clk:      clk,
		settings: settings,
		entries:  make(map[string]*entry.Entry),
	}, nil
}

// Restore loads an existing bucket directory's settings and restores every
// entry subdirectory found within it. Entries that fail to restore are
// skipped and logged rather than failing the whole bucket (spec.md §4.4's
// isolation requirement, applied one level down from Storage).
func Restore(path string, clk clock.Clock) (*Bucket, error) {
	var settings model.BucketSettings
	if err := model.LoadInto(path, settingsFileName, &settings); err != nil {
		if os.IsNotExist(err) {
			return nil, rserr.New(rserr.KindNotFound, "bucket directory %q has no settings file", path)
		}
		return nil, err
	}

	b := &Bucket{
		path:     path,
		clk:      clk,
		settings: settings,
		entries:  make(map[string]*entry.Entry),
	}

	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, rserr.WrapWithKind(err, rserr.KindIO, "failed to scan bucket directory")
	}
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		name := de.Name()
		e, err := entry.Restore(filepath.Join(path, name), clk)
		if err != nil {
			log.Printf("tsblobstore: skipping entry %q in bucket %q: %v", name, settings.Name, err)
			continue
		}
		b.entries[name] = e
	}
	return b, nil
}

// Settings returns a copy of the bucket's persisted settings.
func (b *Bucket) Settings() model.BucketSettings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.settings
}

// Path returns the bucket's directory on disk.
func (b *Bucket) Path() string {
	return b.path
}

func (b *Bucket) getOrCreateEntry(name string) (*entry.Entry, error) {
	b.mu.RLock()
	e, ok := b.entries[name]
	b.mu.RUnlock()
	if ok {
		return e, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[name]; ok {
		return e, nil
	}

	entryPath := filepath.Join(b.path, name)
	settings := model.EntrySettings{
		MaxBlockSize:   b.settings.MaxBlockSize,
		MaxRecordCount: b.settings.MaxBlockRecords,
	}
	e, err := entry.Create(entryPath, settings, b.clk)
	if err != nil {
		return nil, err
	}
	b.entries[name] = e
	return e, nil
}

// Write dispatches a write to the named entry, creating it lazily if it
// does not yet exist, then enforces the bucket's quota (spec.md §4.3).
func (b *Bucket) Write(entryName string, blob []byte, ts int64) error {
	e, err := b.getOrCreateEntry(entryName)
	if err != nil {
		return err
	}
	if err := e.Write(blob, ts); err != nil {
		return err
	}
	return b.enforceQuota()
}

// Read delegates to the named entry's Read.
func (b *Bucket) Read(entryName string, ts int64) ([]byte, error) {
	b.mu.RLock()
	e, ok := b.entries[entryName]
	b.mu.RUnlock()
	if !ok {
		return nil, rserr.New(rserr.KindNotFound, "entry %q does not exist in this bucket", entryName)
	}
	return e.Read(ts)
}

// List delegates to the named entry's List.
func (b *Bucket) List(entryName string, start, stop int64) ([]entry.ListItem, error) {
	b.mu.RLock()
	e, ok := b.entries[entryName]
	b.mu.RUnlock()
	if !ok {
		return nil, rserr.New(rserr.KindNotFound, "entry %q does not exist in this bucket", entryName)
	}
	return e.List(start, stop)
}

// RemoveEntry deletes an entry's on-disk directory and in-memory handle.
func (b *Bucket) RemoveEntry(entryName string) error {
	b.mu.Lock()
	e, ok := b.entries[entryName]
	if !ok {
		b.mu.Unlock()
		return rserr.New(rserr.KindNotFound, "entry %q does not exist in this bucket", entryName)
	}
	delete(b.entries, entryName)
	b.mu.Unlock()
	return e.Remove()
}

// Remove deletes the bucket's entire directory tree, including every
// entry. Called by Storage.RemoveBucket.
func (b *Bucket) Remove() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := os.RemoveAll(b.path); err != nil {
		return rserr.WrapWithKind(err, rserr.KindIO, "failed to remove bucket directory")
	}
	return nil
}

// GetInfo aggregates entry counts, total bytes, and the oldest/latest
// timestamps across every entry (spec.md §4.3).
func (b *Bucket) GetInfo() Info {
	b.mu.RLock()
	defer b.mu.RUnlock()

	info := Info{Name: b.settings.Name, EntryCount: len(b.entries)}
	first := true
	for _, e := range b.entries {
		ei := e.Info()
		info.Bytes += ei.Bytes
		if ei.RecordCount == 0 {
			continue
		}
		if first || ei.OldestRecordTime < info.OldestRecordTime {
			info.OldestRecordTime = ei.OldestRecordTime
		}
		if first || ei.LatestRecordTime > info.LatestRecordTime {
			info.LatestRecordTime = ei.LatestRecordTime
		}
		first = false
	}
	return info
}

func (b *Bucket) totalBytesLocked() int64 {
	var total int64
	for _, e := range b.entries {
		total += e.Bytes()
	}
	return total
}

// enforceQuota repeatedly evicts the oldest block of the entry holding the
// oldest data until the bucket is back under quota, or until no entry has
// more than one block left to give up (spec.md §4.3). Candidates for one
// batch are ordered oldest_record_time ascending, tie-broken by largest
// bytes first (spec.md's explicit tie-break rule) by
// evictionCandidatesLocked, then loaded into an eviction.Set once and
// drained purely through Peek/Remove/Len: the set genuinely owns eviction
// order for the batch, rather than being consulted for a single Peek and
// discarded. A fresh batch is only computed once the current one is
// exhausted and the bucket is still over quota, since an eviction changes
// the evicted entry's oldest_record_time and may change its place in the
// order.
func (b *Bucket) enforceQuota() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.settings.QuotaType != model.QuotaFIFO {
		return nil
	}

	for b.totalBytesLocked() > b.settings.QuotaSize {
		queue := eviction.NewFIFOSet()
		for _, name := range b.evictionCandidatesLocked() {
			queue.Insert(name)
		}
		if queue.Len() == 0 {
			return rserr.New(rserr.KindQuota, "quota of %d bytes exceeded in bucket %q and no entry has a block left to evict", b.settings.QuotaSize, b.settings.Name)
		}

		for queue.Len() > 0 && b.totalBytesLocked() > b.settings.QuotaSize {
			victim := queue.Peek()
			if err := b.entries[victim].RemoveOldestBlock(); err != nil {
				return err
			}
			queue.Remove()
		}
	}
	return nil
}

// evictionCandidatesLocked returns the names of entries with more than one
// block, ordered by oldest_record_time ascending, ties broken by largest
// bytes first. Must be called with b.mu held.
func (b *Bucket) evictionCandidatesLocked() []string {
	type candidate struct {
		name             string
		oldestRecordTime int64
		bytes            int64
	}
	var candidates []candidate
	for name, e := range b.entries {
		if e.BlockCount() <= 1 {
			continue
		}
		candidates = append(candidates, candidate{
			name:             name,
			oldestRecordTime: e.OldestRecordTime(),
			bytes:            e.Bytes(),
		})
	}
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0; j-- {
			a, c := candidates[j-1], candidates[j]
			swap := a.oldestRecordTime > c.oldestRecordTime ||
				(a.oldestRecordTime == c.oldestRecordTime && a.bytes < c.bytes)
			if !swap {
				break
			}
			candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
		}
	}
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.name
	}
	return names
}
