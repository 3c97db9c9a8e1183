// Package storage implements Storage (spec.md §4.4): the process-wide
// registry of buckets.
package storage

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/tsblobstore/tsblobstore/pkg/bucket"
	"github.com/tsblobstore/tsblobstore/pkg/clock"
	"github.com/tsblobstore/tsblobstore/pkg/model"
	"github.com/tsblobstore/tsblobstore/pkg/rserr"
)

// reservedDataPathEntries names subdirectories of data_path that are not
// buckets even though they live alongside them (the token repository's
// on-disk state — see pkg/auth).
var reservedDataPathEntries = map[string]bool{
	".auth": true,
}

var bucketNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,63}$`)

// Info is the snapshot returned by Storage.GetInfo (spec.md §4.4).
type Info struct {
	BucketCount      int           `json:"bucket_count"`
	EntryCount       int           `json:"entry_count"`
	Bytes            int64         `json:"bytes"`
	OldestRecordTime int64         `json:"oldest_record_time"`
	LatestRecordTime int64         `json:"latest_record_time"`
	Uptime           time.Duration `json:"uptime"`
}

// BucketSummary is one element of Storage.GetList's result.
type BucketSummary struct {
	Name             string `json:"name"`
	EntryCount       int    `json:"entry_count"`
	Bytes            int64  `json:"bytes"`
	OldestRecordTime int64  `json:"oldest_record_time"`
	LatestRecordTime int64  `json:"latest_record_time"`
}

// Storage is the process-wide registry of buckets, keyed by bucket name.
type Storage struct {
	dataPath  string
	clk       clock.Clock
	startedAt time.Time

	mu      sync.RWMutex
	buckets map[string]*bucket.Bucket
}

// New creates a Storage rooted at dataPath, scanning it for existing
// bucket directories (spec.md §4.4: "On startup, Storage scans data_path
// for bucket directories, loads each bucket's settings, then each entry
// inside."). Failures loading an individual bucket are logged and
// isolated; the remaining buckets stay available.
func New(dataPath string, clk clock.Clock) (*Storage, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, rserr.WrapWithKind(err, rserr.KindIO, "failed to create data path")
	}

	s := &Storage{
		dataPath:  dataPath,
		clk:       clk,
		startedAt: clk.Now(),
		buckets:   make(map[string]*bucket.Bucket),
	}

	dirEntries, err := os.ReadDir(dataPath)
	if err != nil {
		return nil, rserr.WrapWithKind(err, rserr.KindIO, "failed to scan data path")
	}
	for _, de := range dirEntries {
		if !de.IsDir() || reservedDataPathEntries[de.Name()] {
			continue
		}
		name := de.Name()
		b, err := bucket.Restore(filepath.Join(dataPath, name), clk)
		if err != nil {
			log.Printf("tsblobstore: skipping bucket %q: %v", name, err)
			continue
		}
		s.buckets[name] = b
	}
	return s, nil
}

// DataPath returns the storage root directory.
func (s *Storage) DataPath() string {
	return s.dataPath
}

// CreateBucket creates a new bucket. Fails with Conflict if name is
// already taken, or UnprocessableEntity if name does not match
// spec.md §3's `[A-Za-z0-9_-]{1,63}` pattern.
func (s *Storage) CreateBucket(name string, settings model.BucketSettings) (*bucket.Bucket, error) {
	if !bucketNamePattern.MatchString(name) {
		return nil, rserr.New(rserr.KindUnprocessableEntity, "bucket name %q does not match [A-Za-z0-9_-]{1,63}", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[name]; ok {
		return nil, rserr.New(rserr.KindConflict, "bucket %q already exists", name)
	}

	settings.Name = name
	b, err := bucket.Create(filepath.Join(s.dataPath, name), settings, s.clk)
	if err != nil {
		return nil, err
	}
	s.buckets[name] = b
	return b, nil
}

// GetBucket looks up a bucket by name.
func (s *Storage) GetBucket(name string) (*bucket.Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[name]
	if !ok {
		return nil, rserr.New(rserr.KindNotFound, "bucket %q does not exist", name)
	}
	return b, nil
}

// RemoveBucket recursively removes a bucket's on-disk directory and its
// in-memory handle.
func (s *Storage) RemoveBucket(name string) error {
	s.mu.Lock()
	b, ok := s.buckets[name]
	if !ok {
		s.mu.Unlock()
		return rserr.New(rserr.KindNotFound, "bucket %q does not exist", name)
	}
	delete(s.buckets, name)
	s.mu.Unlock()
	return b.Remove()
}

// GetInfo returns process-wide totals across every bucket.
func (s *Storage) GetInfo() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := Info{
		BucketCount: len(s.buckets),
		Uptime:      s.clk.Now().Sub(s.startedAt),
	}
	first := true
	for _, b := range s.buckets {
		bi := b.GetInfo()
		info.EntryCount += bi.EntryCount
		info.Bytes += bi.Bytes
		if bi.EntryCount == 0 {
			continue
		}
		if first || bi.OldestRecordTime < info.OldestRecordTime {
			info.OldestRecordTime = bi.OldestRecordTime
		}
		if first || bi.LatestRecordTime > info.LatestRecordTime {
			info.LatestRecordTime = bi.LatestRecordTime
		}
		first = false
	}
	return info
}

// GetList returns an ordered list of buckets with a per-bucket summary,
// sorted by name for deterministic output.
func (s *Storage) GetList() []BucketSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]BucketSummary, 0, len(names))
	for _, name := range names {
		bi := s.buckets[name].GetInfo()
		list = append(list, BucketSummary{
			Name:             name,
			EntryCount:       bi.EntryCount,
			Bytes:            bi.Bytes,
			OldestRecordTime: bi.OldestRecordTime,
			LatestRecordTime: bi.LatestRecordTime,
		})
	}
	return list
}
