// Package httpapi implements the HTTP façade spec.md §6 describes as the
// "wire protocol (core-facing)": a thin REST mapping onto pkg/storage.
package httpapi

import (
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tsblobstore/tsblobstore/pkg/asset"
	"github.com/tsblobstore/tsblobstore/pkg/auth"
	"github.com/tsblobstore/tsblobstore/pkg/storage"
)

// Server bundles the dependencies the façade's handlers need.
type Server struct {
	storage               *storage.Storage
	tokens                auth.Repository
	console               asset.Manager
	maxConcurrentRequests int64
}

// NewServer constructs a Server. tokens may be nil, disabling
// authentication entirely (RS_API_TOKEN unset and no tokens registered).
func NewServer(st *storage.Storage, tokens auth.Repository, console asset.Manager) *Server {
	return &Server{storage: st, tokens: tokens, console: console}
}

// WithMaxConcurrentRequests bounds the number of in-flight requests the
// router will serve at once (RS_MAX_CONCURRENT_REQUESTS). 0 leaves the
// router unbounded.
func (s *Server) WithMaxConcurrentRequests(max int64) *Server {
	s.maxConcurrentRequests = max
	return s
}

// Router builds the top-level mux.Router, rooted at basePath (normally
// "" or a path prefix from RS_API_BASE_PATH).
func (s *Server) Router(basePath string) http.Handler {
	root := mux.NewRouter()
	router := root
	if basePath != "" && basePath != "/" {
		router = root.PathPrefix(basePath).Subrouter()
	}

	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/-/debug/pprof/", pprof.Index)
	router.HandleFunc("/-/debug/pprof/cmdline", pprof.Cmdline)
	router.HandleFunc("/-/debug/pprof/profile", pprof.Profile)
	router.HandleFunc("/-/debug/pprof/symbol", pprof.Symbol)
	router.HandleFunc("/-/debug/pprof/trace", pprof.Trace)

	router.HandleFunc("/alive", s.handleAlive).Methods(http.MethodHead)
	router.HandleFunc("/info", s.authenticate(s.handleInfo)).Methods(http.MethodGet)
	router.HandleFunc("/list", s.authenticate(s.handleList)).Methods(http.MethodGet)

	router.HandleFunc("/b/{bucket}", s.authenticate(s.handleCreateBucket)).Methods(http.MethodPost)
	router.HandleFunc("/b/{bucket}", s.authenticate(s.handleRemoveBucket)).Methods(http.MethodDelete)
	router.HandleFunc("/b/{bucket}", s.authenticate(s.handleBucketInfo)).Methods(http.MethodGet)

	router.HandleFunc("/b/{bucket}/{entry}", s.authenticate(s.handleWrite)).Methods(http.MethodPost)
	router.HandleFunc("/b/{bucket}/{entry}", s.authenticate(s.handleRead)).Methods(http.MethodGet)
	router.HandleFunc("/b/{bucket}/{entry}/list", s.authenticate(s.handleEntryList)).Methods(http.MethodGet)

	if s.console != nil {
		router.PathPrefix("/").Handler(http.FileServer(http.FS(consoleFS{s.console})))
	}

	return limitConcurrency(s.maxConcurrentRequests, root)
}
