package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tsblobstore/tsblobstore/pkg/model"
	"github.com/tsblobstore/tsblobstore/pkg/rserr"
)

// statusForKind maps an rserr.Kind onto the HTTP status spec.md §7 assigns
// it: "404, 409, 422, 507, 500, 500, 500".
func statusForKind(k rserr.Kind) int {
	switch k {
	case rserr.KindNotFound:
		return http.StatusNotFound
	case rserr.KindConflict:
		return http.StatusConflict
	case rserr.KindUnprocessableEntity:
		return http.StatusUnprocessableEntity
	case rserr.KindQuota:
		return http.StatusInsufficientStorage
	case rserr.KindIO, rserr.KindCorrupt, rserr.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusForKind(rserr.GetKind(err))
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func queryTimestamp(r *http.Request, name string) (int64, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, true, rserr.New(rserr.KindUnprocessableEntity, "query parameter %q is not a valid integer timestamp", name)
	}
	return ts, true, nil
}

func (s *Server) handleAlive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.storage.GetInfo())
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.storage.GetList())
}

func (s *Server) handleCreateBucket(w http.ResponseWriter, r *http.Request) {
	bucketName := mux.Vars(r)["bucket"]

	var settings model.BucketSettings
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			http.Error(w, "malformed bucket settings: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}
	}

	if _, err := s.storage.CreateBucket(bucketName, settings); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleRemoveBucket(w http.ResponseWriter, r *http.Request) {
	bucketName := mux.Vars(r)["bucket"]
	if err := s.storage.RemoveBucket(bucketName); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleBucketInfo(w http.ResponseWriter, r *http.Request) {
	bucketName := mux.Vars(r)["bucket"]
	b, err := s.storage.GetBucket(bucketName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, b.GetInfo())
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	b, err := s.storage.GetBucket(vars["bucket"])
	if err != nil {
		writeError(w, err)
		return
	}

	ts, present, err := queryTimestamp(r, "ts")
	if err != nil {
		writeError(w, err)
		return
	}
	if !present {
		http.Error(w, "missing required query parameter \"ts\"", http.StatusUnprocessableEntity)
		return
	}

	blob, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := b.Write(vars["entry"], blob, ts); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	b, err := s.storage.GetBucket(vars["bucket"])
	if err != nil {
		writeError(w, err)
		return
	}

	ts, present, err := queryTimestamp(r, "ts")
	if err != nil {
		writeError(w, err)
		return
	}
	if !present {
		http.Error(w, "missing required query parameter \"ts\"", http.StatusUnprocessableEntity)
		return
	}

	blob, err := b.Read(vars["entry"], ts)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(blob)
}

func (s *Server) handleEntryList(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	b, err := s.storage.GetBucket(vars["bucket"])
	if err != nil {
		writeError(w, err)
		return
	}

	start, _, err := queryTimestamp(r, "start")
	if err != nil {
		writeError(w, err)
		return
	}
	stop, _, err := queryTimestamp(r, "stop")
	if err != nil {
		writeError(w, err)
		return
	}

	items, err := b.List(vars["entry"], start, stop)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, items)
}
