package eviction_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsblobstore/tsblobstore/pkg/eviction"
)

func TestFIFOSetPeekReturnsOldestInsertionOrder(t *testing.T) {
	s := eviction.NewFIFOSet()
	s.Insert("a")
	s.Insert("b")
	s.Insert("c")

	require.Equal(t, 3, s.Len())
	require.Equal(t, "a", s.Peek())

	s.Remove()
	require.Equal(t, 2, s.Len())
	require.Equal(t, "b", s.Peek())
}
