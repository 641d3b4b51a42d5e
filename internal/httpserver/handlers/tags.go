package handlers

import (
	"net/http"

	"github.com/marque-app/marque/internal/httpserver/deps"
)

type tagRequest struct {
	Name string `json:"name"`
}

func ListTags(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := d.Access.Tags(r.Context(), principal(r))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		out := make([]tagJSON, 0, len(tags))
		for _, t := range tags {
			out = append(out, toTagJSON(t))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func CreateTag(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tagRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		t, err := d.Access.CreateTag(r.Context(), principal(r), req.Name)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toTagJSON(*t))
	}
}

func RenameTag(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		var req tagRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		t, err := d.Access.RenameTag(r.Context(), principal(r), id, req.Name)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toTagJSON(*t))
	}
}

func DeleteTag(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := d.Access.DeleteTag(r.Context(), principal(r), id); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
