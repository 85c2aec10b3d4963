package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/alfredjeanlab/asgdb/internal/engine"
	"github.com/alfredjeanlab/asgdb/internal/model"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 16 << 20

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/namespaces", s.handleListNamespaces)
	mux.HandleFunc("GET /v1/data/{ns}", s.handleListIdentities)
	mux.HandleFunc("GET /v1/data/{ns}/{id}", s.handleGetValues)
	mux.HandleFunc("PUT /v1/data/{ns}/{id}", s.handlePutValues)
	mux.HandleFunc("DELETE /v1/data/{ns}/{id}", s.handleDeleteValues)
	mux.HandleFunc("GET /v1/data/{ns}/{id}/{key}", s.handleGetValue)
	mux.HandleFunc("PUT /v1/data/{ns}/{id}/{key}", s.handlePutValue)
	mux.HandleFunc("DELETE /v1/data/{ns}/{id}/{key}", s.handleDeleteValue)
	mux.HandleFunc("GET /v1/objects/{ns}", s.handleListObjects)
	mux.HandleFunc("POST /v1/objects/{ns}", s.handleCreateObject)
	mux.HandleFunc("GET /v1/objects/{ns}/{id}", s.handleGetObject)
	mux.HandleFunc("PUT /v1/objects/{ns}/{id}", s.handlePutObject)
	mux.HandleFunc("DELETE /v1/objects/{ns}/{id}", s.handleDeleteObject)
	mux.HandleFunc("GET /v1/tags/{ns}", s.handleFindTagged)
	mux.HandleFunc("GET /v1/tags/{ns}/{id}", s.handleGetTags)
	mux.HandleFunc("POST /v1/tags/{ns}/{id}", s.handleAddTag)
	mux.HandleFunc("DELETE /v1/tags/{ns}/{id}", s.handleClearTags)
	mux.HandleFunc("DELETE /v1/tags/{ns}/{id}/{name}", s.handleRemoveTag)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListNamespaces handles GET /v1/namespaces.
func (s *Server) handleListNamespaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"namespaces": s.engine.ListNamespaces(r.Context())})
}

// handleListIdentities handles GET /v1/data/{ns}.
func (s *Server) handleListIdentities(w http.ResponseWriter, r *http.Request) {
	ids := s.engine.ListIdentities(r.Context(), r.PathValue("ns"))
	writeJSON(w, http.StatusOK, map[string][]string{"identities": ids})
}

// handleGetValues handles GET /v1/data/{ns}/{id}. Values are returned in
// their stored form.
func (s *Server) handleGetValues(w http.ResponseWriter, r *http.Request) {
	recs, ok := s.engine.ListRecords(r.Context(), r.PathValue("ns"), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusInternalServerError, "reading values failed")
		return
	}
	if recs == nil {
		recs = []*model.KeyedRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

type putValuesRequest struct {
	Values   map[string]any       `json:"values"`
	Records  []*model.KeyedRecord `json:"records"`
	Replace  bool                 `json:"replace"`
	Metadata *string              `json:"metadata"`
}

// handlePutValues handles PUT /v1/data/{ns}/{id}. The body carries either
// plain JSON values, which are encoded here, or already encoded records.
func (s *Server) handlePutValues(w http.ResponseWriter, r *http.Request) {
	var req putValuesRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Values != nil && req.Records != nil {
		writeError(w, http.StatusBadRequest, "values and records are mutually exclusive")
		return
	}

	ctx := r.Context()
	ns, id := r.PathValue("ns"), r.PathValue("id")
	var res engine.Result
	switch {
	case req.Records != nil:
		res = s.engine.PutRecords(ctx, ns, id, req.Records, req.Replace)
	case req.Replace:
		res = s.engine.ReplaceAll(ctx, ns, id, req.Values, putOptions(req.Metadata)...)
	default:
		res = s.engine.PutBatch(ctx, ns, id, req.Values, putOptions(req.Metadata)...)
	}
	writeResult(w, res, false)
}

// handleDeleteValues handles DELETE /v1/data/{ns}/{id}.
func (s *Server) handleDeleteValues(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.Delete(r.Context(), r.PathValue("ns"), r.PathValue("id")), true)
}

// handleGetValue handles GET /v1/data/{ns}/{id}/{key}.
func (s *Server) handleGetValue(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.engine.GetRecord(r.Context(), r.PathValue("ns"), r.PathValue("id"), r.PathValue("key"))
	if !ok {
		writeError(w, http.StatusNotFound, "value not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handlePutValue handles PUT /v1/data/{ns}/{id}/{key}.
func (s *Server) handlePutValue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value    any     `json:"value"`
		Metadata *string `json:"metadata"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := s.engine.Put(r.Context(), r.PathValue("ns"), r.PathValue("id"), r.PathValue("key"), req.Value, putOptions(req.Metadata)...)
	writeResult(w, res, false)
}

// handleDeleteValue handles DELETE /v1/data/{ns}/{id}/{key}.
func (s *Server) handleDeleteValue(w http.ResponseWriter, r *http.Request) {
	res := s.engine.DeleteKey(r.Context(), r.PathValue("ns"), r.PathValue("id"), r.PathValue("key"))
	writeResult(w, res, true)
}

func putOptions(metadata *string) []engine.PutOption {
	if metadata == nil {
		return nil
	}
	return []engine.PutOption{engine.WithMetadata(*metadata)}
}

// readJSON decodes the request body into dst. Numbers stay json.Number so
// integers keep their integer type when encoded.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	return nil
}

// writeResult reports a write. With rowRequired set, a write that touched
// nothing is a 404.
func writeResult(w http.ResponseWriter, res engine.Result, rowRequired bool) {
	switch {
	case res.Err != nil:
		writeError(w, httpStatus(res.Err), res.Err.Error())
	case rowRequired && !res.OK:
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeJSON(w, http.StatusOK, map[string]int64{"affected": res.Affected})
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
