package rserr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsblobstore/tsblobstore/pkg/rserr"
)

func TestNewAndGetKind(t *testing.T) {
	err := rserr.New(rserr.KindNotFound, "bucket %q does not exist", "b")
	require.True(t, rserr.Is(err, rserr.KindNotFound))
	require.Contains(t, err.Error(), `bucket "b" does not exist`)
}

func TestWrapPreservesKind(t *testing.T) {
	err := rserr.New(rserr.KindQuota, "over quota")
	wrapped := rserr.Wrap(err, "bucket b")
	require.True(t, rserr.Is(wrapped, rserr.KindQuota))
	require.Contains(t, wrapped.Error(), "bucket b")
	require.Contains(t, wrapped.Error(), "over quota")
}

func TestWrapWithKindOverridesKind(t *testing.T) {
	raw := errors.New("permission denied")
	wrapped := rserr.WrapWithKind(raw, rserr.KindIO, "failed to open file")
	require.True(t, rserr.Is(wrapped, rserr.KindIO))
}

func TestGetKindOfPlainErrorIsUnknown(t *testing.T) {
	require.Equal(t, rserr.KindUnknown, rserr.GetKind(errors.New("boom")))
}

func TestGetKindOfNilIsUnknown(t *testing.T) {
	require.Equal(t, rserr.KindUnknown, rserr.GetKind(nil))
}
