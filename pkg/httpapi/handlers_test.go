package httpapi_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tsblobstore/tsblobstore/pkg/asset"
	"github.com/tsblobstore/tsblobstore/pkg/httpapi"
	"github.com/tsblobstore/tsblobstore/pkg/storage"
)

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	st, err := storage.New(t.TempDir(), fakeClock{t: time.Unix(0, 0)})
	require.NoError(t, err)
	return httpapi.NewServer(st, nil, asset.DefaultConsole()).Router("")
}

func TestAliveAlwaysReturns200(t *testing.T) {
	router := newTestServer(t)
	req := httptest.NewRequest(http.MethodHead, "/alive", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBucketLifecycleOverHTTP(t *testing.T) {
	router := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/b/mybucket", strings.NewReader(`{"max_block_size":4096}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/b/mybucket/e1?ts=10", strings.NewReader("hello"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/b/mybucket/e1?ts=10", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/b/mybucket", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/b/mybucket", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/b/mybucket", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteMissingTimestampIsUnprocessable(t *testing.T) {
	router := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/b/mybucket", strings.NewReader(`{"max_block_size":4096}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/b/mybucket/e1", strings.NewReader("hello"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
