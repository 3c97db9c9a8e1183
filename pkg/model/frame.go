package model

import (
	"bytes"

	"github.com/rasky/go-xdr/xdr2"
	"github.com/tsblobstore/tsblobstore/pkg/rserr"
)

// recordFrameVersion is bumped whenever the envelope's wire shape changes.
const recordFrameVersion = 1

// recordFrame is the envelope written to a block's data file for every
// record (spec.md §4.2.2 step 3: "Serialize the record frame"). Keeping a
// version field lets a future format add per-record metadata (checksums,
// content-type hints) without breaking blocks written by older builds.
type recordFrame struct {
	Version uint32
	Payload []byte
}

// EncodeRecordFrame wraps a raw blob into the bytes actually appended to a
// block file.
func EncodeRecordFrame(blob []byte) ([]byte, error) {
	frame := recordFrame{Version: recordFrameVersion, Payload: blob}
	var buf bytes.Buffer
	if _, err := xdr2.Marshal(&buf, &frame); err != nil {
		return nil, rserr.WrapWithKind(err, rserr.KindInternal, "failed to encode record frame")
	}
	return buf.Bytes(), nil
}

// DecodeRecordFrame recovers the raw blob from bytes read out of a block
// file at a record's [begin, end) offsets.
func DecodeRecordFrame(data []byte) ([]byte, error) {
	var frame recordFrame
	if _, err := xdr2.Unmarshal(bytes.NewReader(data), &frame); err != nil {
		return nil, rserr.WrapWithKind(err, rserr.KindCorrupt, "failed to decode record frame")
	}
	if frame.Version != recordFrameVersion {
		return nil, rserr.New(rserr.KindCorrupt, "unsupported record frame version %d", frame.Version)
	}
	return frame.Payload, nil
}

// EncodedRecordFrameSize returns len(EncodeRecordFrame(blob)); it encodes
// the frame to measure it.
func EncodedRecordFrameSize(blob []byte) (int64, error) {
	encoded, err := EncodeRecordFrame(blob)
	if err != nil {
		return 0, err
	}
	return int64(len(encoded)), nil
}
