package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/alfredjeanlab/asgdb/internal/idgen"
	"github.com/alfredjeanlab/asgdb/internal/model"
)

type objectRequest struct {
	Payload string       `json:"payload"`
	Format  model.Format `json:"format"`
}

// handleListObjects handles GET /v1/objects/{ns}.
func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"ids": s.engine.ListObjectIDs(r.Context(), r.PathValue("ns"))})
}

// handleCreateObject handles POST /v1/objects/{ns}. The object gets a
// generated id.
func (s *Server) handleCreateObject(w http.ResponseWriter, r *http.Request) {
	id, err := idgen.ObjectID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.storeObject(w, r, id, http.StatusCreated)
}

// handlePutObject handles PUT /v1/objects/{ns}/{id}.
func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request) {
	s.storeObject(w, r, r.PathValue("id"), http.StatusOK)
}

func (s *Server) storeObject(w http.ResponseWriter, r *http.Request, id string, status int) {
	var req objectRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Format == "" {
		req.Format = model.FormatJSON
	}
	obj := &model.ObjectRecord{
		Namespace: r.PathValue("ns"),
		ID:        id,
		Payload:   req.Payload,
		Format:    req.Format,
	}
	if res := s.engine.PutObjectRecord(r.Context(), obj); res.Err != nil {
		writeError(w, httpStatus(res.Err), res.Err.Error())
		return
	}
	w.Header().Set("ETag", objectETag(obj))
	writeJSON(w, status, obj)
}

// handleGetObject handles GET /v1/objects/{ns}/{id}. It honours
// If-None-Match with the object's ETag.
func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	obj, ok := s.engine.GetObjectRecord(r.Context(), r.PathValue("ns"), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "object not found")
		return
	}
	etag := objectETag(obj)
	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// handleDeleteObject handles DELETE /v1/objects/{ns}/{id}.
func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.DeleteObject(r.Context(), r.PathValue("ns"), r.PathValue("id")), true)
}

// objectETag is a strong validator over the stored version and payload.
func objectETag(obj *model.ObjectRecord) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%d\x00", obj.Format, obj.Version)
	_, _ = h.WriteString(obj.Payload)
	return fmt.Sprintf(`"%016x"`, h.Sum64())
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
