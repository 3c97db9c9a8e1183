// Package model defines the on-disk schema for entries and buckets
// (spec.md §3) and the crash-safe binary serialization used to persist it
// (spec.md §6's ".settings" / ".descriptor" files).
//
// Serialization uses github.com/rasky/go-xdr, the same RFC 4506 XDR codec
// marmos91-dittofs uses for its NFS wire structures: a reflection-driven
// Marshal/Unmarshal pair over plain exported struct fields, producing the
// length-prefixed binary framing spec.md asks for without a hand-rolled
// TLV format.
package model

// Record is a single timestamped blob stored inside a Block. timestamp is
// unique within its owning Entry; begin/end are byte offsets of the
// serialized RecordFrame within the block's data file.
type Record struct {
	Timestamp int64
	Begin     int64
	End       int64
}

// SizeBytes is the number of payload bytes this record occupies in its
// block (end - begin, per spec.md §3's Record invariant).
func (r Record) SizeBytes() int64 {
	return r.End - r.Begin
}

// Block is one fixed-capacity data file inside an entry directory. BeginSet
// is false until the block is given a BeginTime: an entry's first block
// gets it from its first record, while a block allocated by a rollover gets
// the previous block's LatestRecordTime at allocation. A BelatedFirst write
// moves the head block's BeginTime earlier.
type Block struct {
	ID               int64
	BeginSet         bool
	BeginTime        int64
	LatestRecordTime int64
	Size             int64
	Records          []Record
}

// IsEmpty reports whether the block has no BeginTime yet. Since rollover
// blocks get one at allocation, only an entry's unwritten first block is
// empty.
func (b *Block) IsEmpty() bool {
	return !b.BeginSet
}

// EntryDescriptor is the single authoritative metadata file per entry
// (spec.md §3's "EntryDescriptor"). Blocks is kept sorted by ID, which is
// equivalent to sorting by BeginTime once every block has one (spec.md:
// "Blocks with ids are strictly increasing; the tail block is the current
// write target.").
type EntryDescriptor struct {
	CreatedAt        int64
	Size             int64
	HasRecords       bool
	OldestRecordTime int64
	LatestRecordTime int64
	Blocks           []Block
}

// EntrySettings are the immutable-after-creation parameters of one entry
// (spec.md §3's "EntrySettings"). MaxRecordCount == 0 means "no limit" (the
// "optional" qualifier spec.md gives max_record_count).
type EntrySettings struct {
	MaxBlockSize   int64
	MaxRecordCount int64
}

// QuotaType mirrors spec.md §3's quota_type enum. NONE disables eviction
// entirely; FIFO evicts the oldest block across entries once Σ entry.size
// exceeds QuotaSize.
type QuotaType uint32

const (
	QuotaNone QuotaType = iota
	QuotaFIFO
)

func (q QuotaType) String() string {
	if q == QuotaFIFO {
		return "FIFO"
	}
	return "NONE"
}

// BucketSettings are the attributes of a Bucket that are persisted to its
// ".settings" file (spec.md §3's "Bucket" attributes, minus the live
// entry_name -> Entry map which is reconstructed from disk at load time).
type BucketSettings struct {
	Name            string    `json:"name"`
	QuotaType       QuotaType `json:"quota_type"`
	QuotaSize       int64     `json:"quota_size"`
	MaxBlockSize    int64     `json:"max_block_size"`
	MaxBlockRecords int64     `json:"max_block_records"`
}
