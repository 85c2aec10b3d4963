package server

import (
	"net/http"
)

// handleFindTagged handles GET /v1/tags/{ns}?name=&value=. Without a value
// parameter every target carrying the tag matches.
func (s *Server) handleFindTagged(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	ns := r.PathValue("ns")
	var targets []string
	if q.Has("value") {
		targets = s.engine.FindByTag(r.Context(), ns, name, q.Get("value"))
	} else {
		targets = s.engine.FindByTagName(r.Context(), ns, name)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"targets": targets})
}

// handleGetTags handles GET /v1/tags/{ns}/{id}.
func (s *Server) handleGetTags(w http.ResponseWriter, r *http.Request) {
	tags := s.engine.GetTags(r.Context(), r.PathValue("ns"), r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// handleAddTag handles POST /v1/tags/{ns}/{id}.
func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string  `json:"name"`
		Value *string `json:"value"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := s.engine.AddTag(r.Context(), r.PathValue("ns"), r.PathValue("id"), req.Name, req.Value)
	if res.Err != nil {
		writeError(w, httpStatus(res.Err), res.Err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"name": req.Name, "value": req.Value})
}

// handleRemoveTag handles DELETE /v1/tags/{ns}/{id}/{name}.
func (s *Server) handleRemoveTag(w http.ResponseWriter, r *http.Request) {
	res := s.engine.RemoveTag(r.Context(), r.PathValue("ns"), r.PathValue("id"), r.PathValue("name"))
	writeResult(w, res, true)
}

// handleClearTags handles DELETE /v1/tags/{ns}/{id}.
func (s *Server) handleClearTags(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.ClearTags(r.Context(), r.PathValue("ns"), r.PathValue("id")), false)
}
