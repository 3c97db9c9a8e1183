package model_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsblobstore/tsblobstore/pkg/model"
)

func TestSaveAtomicLoadIntoRoundTrip(t *testing.T) {
	dir := t.TempDir()
	settings := model.EntrySettings{MaxBlockSize: 1024, MaxRecordCount: 10}

	require.NoError(t, model.SaveAtomic(dir, ".settings", &settings))

	var loaded model.EntrySettings
	require.NoError(t, model.LoadInto(dir, ".settings", &loaded))
	require.Equal(t, settings, loaded)

	// No temporary file should survive a successful save.
	_, err := os.Stat(dir + "/.settings.new")
	require.True(t, os.IsNotExist(err))
}

func TestLoadIntoMissingFile(t *testing.T) {
	dir := t.TempDir()
	var s model.EntrySettings
	err := model.LoadInto(dir, ".settings", &s)
	require.True(t, os.IsNotExist(err))
}

func TestLoadIntoCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/.settings", []byte{0x01}, 0o666))

	var s model.EntrySettings
	err := model.LoadInto(dir, ".settings", &s)
	require.Error(t, err)
	require.False(t, os.IsNotExist(err))
}

func TestRecordFrameRoundTrip(t *testing.T) {
	blob := []byte("hello, world")
	encoded, err := model.EncodeRecordFrame(blob)
	require.NoError(t, err)

	decoded, err := model.DecodeRecordFrame(encoded)
	require.NoError(t, err)
	require.Equal(t, blob, decoded)

	size, err := model.EncodedRecordFrameSize(blob)
	require.NoError(t, err)
	require.Equal(t, int64(len(encoded)), size)
}

func TestDecodeRecordFrameRejectsGarbage(t *testing.T) {
	_, err := model.DecodeRecordFrame([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}
