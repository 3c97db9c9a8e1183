package entry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tsblobstore/tsblobstore/pkg/entry"
	"github.com/tsblobstore/tsblobstore/pkg/model"
	"github.com/tsblobstore/tsblobstore/pkg/rserr"
)

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

func newTestEntry(t *testing.T, maxBlockSize, maxRecordCount int64) *entry.Entry {
	t.Helper()
	settings := model.EntrySettings{MaxBlockSize: maxBlockSize, MaxRecordCount: maxRecordCount}
	e, err := entry.Create(t.TempDir()+"/e", settings, fakeClock{t: time.Unix(0, 0)})
	require.NoError(t, err)
	return e
}

func TestWriteAndReadLatest(t *testing.T) {
	e := newTestEntry(t, 4096, 0)

	require.NoError(t, e.Write([]byte("first"), 10))
	require.NoError(t, e.Write([]byte("second"), 20))

	got, err := e.Read(10)
	require.NoError(t, err)
	require.Equal(t, []byte("first"), got)

	got, err = e.Read(20)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got)
}

func TestWriteDuplicateTimestampIsConflict(t *testing.T) {
	e := newTestEntry(t, 4096, 0)
	require.NoError(t, e.Write([]byte("a"), 10))

	err := e.Write([]byte("b"), 10)
	require.True(t, rserr.Is(err, rserr.KindConflict))
}

func TestWriteBelatedFirstShiftsOldestRecordTime(t *testing.T) {
	e := newTestEntry(t, 4096, 0)
	require.NoError(t, e.Write([]byte("a"), 100))
	require.NoError(t, e.Write([]byte("older"), 50))

	info := e.Info()
	require.Equal(t, int64(50), info.OldestRecordTime)
	require.Equal(t, int64(100), info.LatestRecordTime)

	got, err := e.Read(50)
	require.NoError(t, err)
	require.Equal(t, []byte("older"), got)
}

func TestWriteBelatedIntoInterior(t *testing.T) {
	e := newTestEntry(t, 4096, 0)
	require.NoError(t, e.Write([]byte("a"), 10))
	require.NoError(t, e.Write([]byte("c"), 30))
	require.NoError(t, e.Write([]byte("b"), 20))

	got, err := e.Read(20)
	require.NoError(t, err)
	require.Equal(t, []byte("b"), got)

	info := e.Info()
	require.Equal(t, int64(3), info.RecordCount)
}

func TestWriteRollsOverWhenBlockWouldOvershoot(t *testing.T) {
	// A small max_block_size forces each record into a fresh block, since
	// every record's encoded frame already exceeds half the block.
	e := newTestEntry(t, 24, 0)

	require.NoError(t, e.Write([]byte("0123456789"), 10))
	require.NoError(t, e.Write([]byte("0123456789"), 20))

	require.Equal(t, 2, e.BlockCount())
}

func TestWriteBelatedIntoBlockBoundaryGap(t *testing.T) {
	// max_record_count=1 forces a rollover on every Latest write after the
	// first, while
	// leaving plenty of block capacity free. A belated write whose
	// timestamp falls strictly between the old tail's last record and the
	// new tail's first record must still land somewhere and be readable —
	// block intervals must stay contiguous across a rollover, with no
	// uncovered gap between the two blocks' time ranges.
	e := newTestEntry(t, 4096, 1)

	require.NoError(t, e.Write([]byte("a"), 1_000_000))
	require.NoError(t, e.Write([]byte("c"), 3_000_000))
	require.Equal(t, 2, e.BlockCount())

	require.NoError(t, e.Write([]byte("gap-filler"), 2_000_000))

	got, err := e.Read(2_000_000)
	require.NoError(t, err)
	require.Equal(t, []byte("gap-filler"), got)

	info := e.Info()
	require.Equal(t, int64(1_000_000), info.OldestRecordTime)
	require.Equal(t, int64(3_000_000), info.LatestRecordTime)
}

func TestWriteRecordLargerThanBlockIsUnprocessable(t *testing.T) {
	e := newTestEntry(t, 8, 0)
	err := e.Write([]byte("this blob is far too large for the block"), 10)
	require.True(t, rserr.Is(err, rserr.KindUnprocessableEntity))
}

func TestWriteRespectsMaxRecordCount(t *testing.T) {
	e := newTestEntry(t, 4096, 2)

	require.NoError(t, e.Write([]byte("a"), 10))
	require.NoError(t, e.Write([]byte("b"), 20))
	// A third record in the same block exceeds max_record_count and
	// should roll over into a new block instead of erroring.
	require.NoError(t, e.Write([]byte("c"), 30))

	require.Equal(t, 2, e.BlockCount())
}

func TestReadMissingTimestampIsNotFound(t *testing.T) {
	e := newTestEntry(t, 4096, 0)
	require.NoError(t, e.Write([]byte("a"), 10))

	_, err := e.Read(999)
	require.True(t, rserr.Is(err, rserr.KindNotFound))
}

func TestListRangeFiltersAndSorts(t *testing.T) {
	e := newTestEntry(t, 4096, 0)
	require.NoError(t, e.Write([]byte("a"), 10))
	require.NoError(t, e.Write([]byte("b"), 30))
	require.NoError(t, e.Write([]byte("c"), 20))

	items, err := e.List(10, 30)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, int64(10), items[0].Timestamp)
	require.Equal(t, int64(20), items[1].Timestamp)
}

func TestListStartAfterStopIsUnprocessable(t *testing.T) {
	e := newTestEntry(t, 4096, 0)
	_, err := e.List(30, 10)
	require.True(t, rserr.Is(err, rserr.KindUnprocessableEntity))
}

func TestRemoveOldestBlockKeepsTailBlock(t *testing.T) {
	e := newTestEntry(t, 24, 0)
	require.NoError(t, e.Write([]byte("0123456789"), 10))
	require.NoError(t, e.Write([]byte("0123456789"), 20))
	require.Equal(t, 2, e.BlockCount())

	require.NoError(t, e.RemoveOldestBlock())
	require.Equal(t, 1, e.BlockCount())

	_, err := e.Read(10)
	require.True(t, rserr.Is(err, rserr.KindNotFound))

	got, err := e.Read(20)
	require.NoError(t, err)
	require.Equal(t, []byte("0123456789"), got)

	// Removing the last remaining block is a no-op.
	require.NoError(t, e.RemoveOldestBlock())
	require.Equal(t, 1, e.BlockCount())
}

func TestRestoreRebuildsStateFromDisk(t *testing.T) {
	dir := t.TempDir() + "/e"
	settings := model.EntrySettings{MaxBlockSize: 4096, MaxRecordCount: 0}
	clk := fakeClock{t: time.Unix(0, 0)}

	e, err := entry.Create(dir, settings, clk)
	require.NoError(t, err)
	require.NoError(t, e.Write([]byte("a"), 10))
	require.NoError(t, e.Write([]byte("b"), 20))

	restored, err := entry.Restore(dir, clk)
	require.NoError(t, err)
	require.Equal(t, e.Info(), restored.Info())

	got, err := restored.Read(10)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), got)

	// Duplicate-timestamp detection must also survive a restore.
	err = restored.Write([]byte("dup"), 10)
	require.True(t, rserr.Is(err, rserr.KindConflict))
}

func TestCreateRejectsExistingDirectory(t *testing.T) {
	dir := t.TempDir() + "/e"
	clk := fakeClock{t: time.Unix(0, 0)}
	settings := model.EntrySettings{MaxBlockSize: 4096}

	_, err := entry.Create(dir, settings, clk)
	require.NoError(t, err)

	_, err = entry.Create(dir, settings, clk)
	require.True(t, rserr.Is(err, rserr.KindConflict))
}
