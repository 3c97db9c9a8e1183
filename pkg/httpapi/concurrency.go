package httpapi

import (
	"net/http"

	"golang.org/x/sync/semaphore"
)

// limitConcurrency wraps handler with a weighted semaphore bounding the
// number of in-flight requests to max (RS_MAX_CONCURRENT_REQUESTS). max
// <= 0 disables the limit.
func limitConcurrency(max int64, handler http.Handler) http.Handler {
	if max <= 0 {
		return handler
	}
	sem := semaphore.NewWeighted(max)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sem.Acquire(r.Context(), 1) != nil {
			http.Error(w, "request canceled while waiting for a free slot", http.StatusServiceUnavailable)
			return
		}
		defer sem.Release(1)
		handler.ServeHTTP(w, r)
	})
}
