// Package entry implements Entry (spec.md §4.2): the time-series semantics
// layered on top of a single BlockManager-owned directory.
package entry

import (
	"os"
	"sort"
	"sync"

	"github.com/tsblobstore/tsblobstore/pkg/block"
	"github.com/tsblobstore/tsblobstore/pkg/clock"
	"github.com/tsblobstore/tsblobstore/pkg/model"
	"github.com/tsblobstore/tsblobstore/pkg/rserr"
)

// writeCase classifies a Write call before any I/O happens (spec.md
// §4.2.2).
type writeCase int

const (
	caseLatest writeCase = iota
	caseBelatedFirst
	caseBelated
)

// Info is the snapshot returned by Entry.Info (spec.md §4.2.6).
type Info struct {
	BlockCount       int64 `json:"block_count"`
	RecordCount      int64 `json:"record_count"`
	Bytes            int64 `json:"bytes"`
	OldestRecordTime int64 `json:"oldest_record_time"`
	LatestRecordTime int64 `json:"latest_record_time"`
}

// ListItem is one element of the result of Entry.List (spec.md §4.2.4).
type ListItem struct {
	Timestamp int64 `json:"timestamp"`
	Size      int64 `json:"size"`
}

// Entry coordinates a BlockManager and an in-memory EntryDescriptor for one
// time-series stream. All exported methods that touch the descriptor
// serialize on a single mutex per
// spec.md §5: "Each Entry is guarded by a single exclusive lock covering
// the descriptor and the current-block pointer."
type Entry struct {
	mu sync.Mutex

	path       string
	clk        clock.Clock
	blockMgr   *block.Manager
	settings   model.EntrySettings
	descriptor model.EntryDescriptor

	// currentBlockID holds the id of the tail block rather than a
	// pointer/index into descriptor.Blocks, per spec.md §9's guidance
	// against the "raw pointer into descriptor list" hazard: the slice
	// is resolved through this id on every use instead of being cached
	// as a pointer that append() could invalidate.
	currentBlockID int64

	// timestamps mirrors every record timestamp currently stored, purely
	// in memory, to make duplicate-timestamp detection (spec.md §4.2.2,
	// §9) O(1) instead of an O(blocks × records) scan per write.
	timestamps map[int64]struct{}
}

// Create initializes a brand new entry directory. It fails with Conflict
// if the directory already exists (spec.md §4.2.1).
func Create(path string, settings model.EntrySettings, clk clock.Clock) (*Entry, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, rserr.New(rserr.KindConflict, "entry directory %q already exists", path)
	} else if !os.IsNotExist(err) {
		return nil, rserr.WrapWithKind(err, rserr.KindIO, "failed to stat entry directory")
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, rserr.WrapWithKind(err, rserr.KindIO, "failed to create entry directory")
	}

	mgr := block.NewManager(path)
	if err := mgr.AllocateBlock(0, settings.MaxBlockSize); err != nil {
		return nil, err
	}

	descriptor := model.EntryDescriptor{
		CreatedAt: clk.Now().UnixMicro(),
		Blocks:    []model.Block{{ID: 0}},
	}

	if err := mgr.SaveSettings(&settings); err != nil {
		return nil, err
	}
	if err := mgr.SaveDescriptor(&descriptor); err != nil {
		return nil, err
	}

	return &Entry{
		path:           path,
		clk:            clk,
		blockMgr:       mgr,
		settings:       settings,
		descriptor:     descriptor,
		currentBlockID: 0,
		timestamps:     make(map[int64]struct{}),
	}, nil
}

// Restore loads an existing entry directory's settings and descriptor. If
// either fails to parse, the entry is reported Corrupt (spec.md §4.2.1).
func Restore(path string, clk clock.Clock) (*Entry, error) {
	mgr := block.NewManager(path)

	settings, err := mgr.LoadSettings()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rserr.New(rserr.KindNotFound, "entry directory %q has no settings file", path)
		}
		return nil, err
	}

	descriptor, err := mgr.LoadDescriptor()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rserr.New(rserr.KindCorrupt, "entry directory %q has no descriptor file", path)
		}
		return nil, err
	}
	if len(descriptor.Blocks) == 0 {
		return nil, rserr.New(rserr.KindCorrupt, "entry directory %q has an empty descriptor", path)
	}

	timestamps := make(map[int64]struct{})
	for _, b := range descriptor.Blocks {
		for _, r := range b.Records {
			timestamps[r.Timestamp] = struct{}{}
		}
	}

	return &Entry{
		path:           path,
		clk:            clk,
		blockMgr:       mgr,
		settings:       *settings,
		descriptor:     *descriptor,
		currentBlockID: descriptor.Blocks[len(descriptor.Blocks)-1].ID,
		timestamps:     timestamps,
	}, nil
}

func (e *Entry) indexForID(id int64) int {
	for i := range e.descriptor.Blocks {
		if e.descriptor.Blocks[i].ID == id {
			return i
		}
	}
	return -1
}

// findBlockIndex returns the index of the smallest-index block whose
// [begin_time, latest_record_time] interval contains ts (spec.md §4.2.2's
// FindBlock). Blocks are ordered by id, which is equivalent to ordering by
// begin_time once assigned (spec.md §3), so a binary search suffices;
// entry construction guarantees that only the tail block can ever be
// empty, so an empty block is only ever encountered, if at all, at the
// high end of the search range.
func (e *Entry) findBlockIndex(ts int64) (int, bool) {
	blocks := e.descriptor.Blocks
	lo, hi := 0, len(blocks)-1
	found := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		b := &blocks[mid]
		if b.IsEmpty() {
			hi = mid - 1
			continue
		}
		switch {
		case ts < b.BeginTime:
			hi = mid - 1
		case ts > b.LatestRecordTime:
			lo = mid + 1
		default:
			// Adjacent blocks share their boundary timestamp, so keep
			// searching to the left for a smaller covering index.
			found = mid
			hi = mid - 1
		}
	}
	return found, found >= 0
}

// startNextBlock allocates a new tail block and makes it the current
// block, returning its id. The new block's begin_time is seeded with the
// rolled-off block's latest_record_time (not the triggering record's ts),
// exactly as the reference implementation's StartNextBlock(current_block_
// ->latest_record_time()) does, so the two blocks' covered intervals stay
// adjacent with no gap a belated write could later fall into.
func (e *Entry) startNextBlock() (int64, error) {
	prev := &e.descriptor.Blocks[len(e.descriptor.Blocks)-1]
	newID := prev.ID + 1
	if err := e.blockMgr.AllocateBlock(newID, e.settings.MaxBlockSize); err != nil {
		return 0, err
	}
	e.descriptor.Blocks = append(e.descriptor.Blocks, model.Block{
		ID:        newID,
		BeginSet:  true,
		BeginTime: prev.LatestRecordTime,
	})
	e.currentBlockID = newID
	return newID, nil
}

// Write appends blob at timestamp ts, classifying the write as
// Latest/BelatedFirst/Belated per spec.md §4.2.2 and persisting the
// descriptor atomically before returning.
func (e *Entry) Write(blob []byte, ts int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.timestamps[ts]; exists {
		return rserr.New(rserr.KindConflict, "record with timestamp %d already exists in this entry", ts)
	}

	frame, err := model.EncodeRecordFrame(blob)
	if err != nil {
		return err
	}
	frameLen := int64(len(frame))
	if frameLen > e.settings.MaxBlockSize {
		return rserr.New(rserr.KindUnprocessableEntity, "record of %d bytes exceeds max_block_size of %d bytes", frameLen, e.settings.MaxBlockSize)
	}

	var (
		targetID int64
		wcase    writeCase
	)
	switch {
	case !e.descriptor.HasRecords || ts > e.descriptor.LatestRecordTime:
		wcase = caseLatest
		targetID = e.currentBlockID

		cur := &e.descriptor.Blocks[e.indexForID(targetID)]
		exceedsSize := cur.Size+frameLen > e.settings.MaxBlockSize
		exceedsCount := e.settings.MaxRecordCount > 0 && int64(len(cur.Records)) >= e.settings.MaxRecordCount
		if !cur.IsEmpty() && (exceedsSize || exceedsCount) {
			newID, err := e.startNextBlock()
			if err != nil {
				return err
			}
			targetID = newID
			blockRolloversTotal.Inc()
		}

	case ts < e.descriptor.OldestRecordTime:
		wcase = caseBelatedFirst
		targetID = e.descriptor.Blocks[0].ID

	default:
		idx, ok := e.findBlockIndex(ts)
		if !ok {
			return rserr.New(rserr.KindInternal, "no proper block covers timestamp %d: descriptor is inconsistent", ts)
		}
		wcase = caseBelated
		targetID = e.descriptor.Blocks[idx].ID
	}

	if err := e.applyWrite(targetID, ts, frame, wcase); err != nil {
		return err
	}
	e.timestamps[ts] = struct{}{}
	writesTotal.WithLabelValues(wcase.metricLabel()).Inc()
	recordSizeBytes.Observe(float64(frameLen))

	return e.blockMgr.SaveDescriptor(&e.descriptor)
}

func (e *Entry) applyWrite(targetID int64, ts int64, frame []byte, wcase writeCase) error {
	idx := e.indexForID(targetID)
	blk := &e.descriptor.Blocks[idx]

	switch wcase {
	case caseLatest:
		if blk.IsEmpty() {
			// Only the entry's very first block ever reaches this
			// branch: every later tail block is pre-seeded with a
			// begin_time by startNextBlock, so it is never empty.
			blk.BeginSet = true
			blk.BeginTime = ts
			if idx == 0 {
				e.descriptor.OldestRecordTime = ts
			}
		}
	case caseBelatedFirst:
		blk.BeginSet = true
		blk.BeginTime = ts
		e.descriptor.OldestRecordTime = ts
	case caseBelated:
		// No descriptor or block time fields change for belated
		// writes into the interior of an existing block's range.
	}

	begin, end, err := e.blockMgr.AppendRecord(blk.ID, frame, blk.Size)
	if err != nil {
		return err
	}
	blk.Records = append(blk.Records, model.Record{Timestamp: ts, Begin: begin, End: end})
	dataLen := end - begin
	blk.Size += dataLen
	e.descriptor.Size += dataLen

	if wcase == caseLatest {
		blk.LatestRecordTime = ts
		e.descriptor.LatestRecordTime = ts
		e.descriptor.HasRecords = true
	}
	return nil
}

// Read returns the blob stored at timestamp ts (spec.md §4.2.3).
func (e *Entry) Read(ts int64) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.descriptor.HasRecords || ts < e.descriptor.OldestRecordTime || ts > e.descriptor.LatestRecordTime {
		return nil, rserr.New(rserr.KindNotFound, "no record with timestamp %d", ts)
	}

	idx, ok := e.findBlockIndex(ts)
	if !ok {
		return nil, rserr.New(rserr.KindInternal, "no proper block covers timestamp %d: descriptor is inconsistent", ts)
	}

	blk := &e.descriptor.Blocks[idx]
	for _, r := range blk.Records {
		if r.Timestamp == ts {
			raw, err := e.blockMgr.ReadRecord(blk.ID, r.Begin, r.End)
			if err != nil {
				return nil, err
			}
			return model.DecodeRecordFrame(raw)
		}
	}
	return nil, rserr.New(rserr.KindNotFound, "no record with timestamp %d", ts)
}

// List returns the (timestamp, size) pairs with timestamp in [start, stop),
// sorted ascending by timestamp (spec.md §4.2.4).
func (e *Entry) List(start, stop int64) ([]ListItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if start > stop {
		return nil, rserr.New(rserr.KindUnprocessableEntity, "start %d is greater than stop %d", start, stop)
	}
	if !e.descriptor.HasRecords || stop <= e.descriptor.OldestRecordTime || start > e.descriptor.LatestRecordTime {
		return nil, rserr.New(rserr.KindNotFound, "no records in range [%d, %d)", start, stop)
	}

	clampedStart := start
	if e.descriptor.OldestRecordTime > clampedStart {
		clampedStart = e.descriptor.OldestRecordTime
	}
	clampedStop := stop
	if e.descriptor.LatestRecordTime < clampedStop {
		clampedStop = e.descriptor.LatestRecordTime
	}

	startIdx, ok := e.findBlockIndex(clampedStart)
	if !ok {
		startIdx = 0
	}
	stopIdx, ok := e.findBlockIndex(clampedStop)
	if !ok {
		stopIdx = len(e.descriptor.Blocks) - 1
	}

	var items []ListItem
	for i := startIdx; i <= stopIdx; i++ {
		for _, r := range e.descriptor.Blocks[i].Records {
			if r.Timestamp >= start && r.Timestamp < stop {
				items = append(items, ListItem{Timestamp: r.Timestamp, Size: r.SizeBytes()})
			}
		}
	}
	if len(items) == 0 {
		return nil, rserr.New(rserr.KindNotFound, "no records in range [%d, %d)", start, stop)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Timestamp < items[j].Timestamp })
	return items, nil
}

// RemoveOldestBlock evicts the head block, unless it is also the tail
// (spec.md §4.2.5).
func (e *Entry) RemoveOldestBlock() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.descriptor.Blocks) <= 1 {
		return nil
	}

	head := e.descriptor.Blocks[0]
	if err := e.blockMgr.RemoveBlock(head.ID); err != nil {
		return err
	}

	e.descriptor.Size -= head.Size
	for _, r := range head.Records {
		delete(e.timestamps, r.Timestamp)
	}
	e.descriptor.Blocks = e.descriptor.Blocks[1:]

	newHead := &e.descriptor.Blocks[0]
	if newHead.BeginSet {
		e.descriptor.OldestRecordTime = newHead.BeginTime
	} else {
		// Fallback used by the reference implementation when the new
		// head block has not been written to yet (spec.md §9).
		e.descriptor.OldestRecordTime = newHead.LatestRecordTime
	}

	return e.blockMgr.SaveDescriptor(&e.descriptor)
}

// Info returns a snapshot of this entry's current state (spec.md §4.2.6).
func (e *Entry) Info() Info {
	e.mu.Lock()
	defer e.mu.Unlock()

	var recordCount int64
	for _, b := range e.descriptor.Blocks {
		recordCount += int64(len(b.Records))
	}
	return Info{
		BlockCount:       int64(len(e.descriptor.Blocks)),
		RecordCount:      recordCount,
		Bytes:            e.descriptor.Size,
		OldestRecordTime: e.descriptor.OldestRecordTime,
		LatestRecordTime: e.descriptor.LatestRecordTime,
	}
}

// OldestRecordTime reports the entry's oldest record timestamp without
// taking a full Info() snapshot; used by Bucket to pick an eviction
// candidate.
func (e *Entry) OldestRecordTime() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.descriptor.OldestRecordTime
}

// Bytes reports the entry's total stored bytes; used by Bucket for quota
// accounting and eviction tie-breaking.
func (e *Entry) Bytes() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.descriptor.Size
}

// BlockCount reports how many blocks this entry currently has; used by
// Bucket to decide whether an entry still has a block left to evict.
func (e *Entry) BlockCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.descriptor.Blocks)
}

// Path returns the entry's directory on disk.
func (e *Entry) Path() string {
	return e.path
}

// Remove deletes the entry's directory tree. Callers must ensure no other
// goroutine holds a reference to this Entry afterwards.
func (e *Entry) Remove() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := os.RemoveAll(e.path); err != nil {
		return rserr.WrapWithKind(err, rserr.KindIO, "failed to remove entry directory")
	}
	return nil
}
