package handlers

import (
	"net/http"

	"github.com/marque-app/marque/internal/access"
	"github.com/marque-app/marque/internal/httpserver/deps"
)

type folderCreateRequest struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
	sharePayload
}

type folderUpdateRequest struct {
	Name *string `json:"name"`
	Icon *string `json:"icon"`
	sharePayload
}

func ListFolders(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		folders, err := d.Access.Folders(r.Context(), principal(r))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		out := make([]folderJSON, 0, len(folders))
		for i := range folders {
			out = append(out, toFolderJSON(&folders[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func CreateFolder(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req folderCreateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		p := principal(r)
		f, added, err := d.Access.CreateFolder(r.Context(), p, req.Name, req.Icon, req.grant())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		notifyShares(d, p.UserID, added, "folder", f.Name)
		writeJSON(w, http.StatusCreated, toFolderJSON(f))
	}
}

func GetFolder(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		p := principal(r)
		f, err := d.Access.Folder(r.Context(), p, id)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		out := toFolderJSON(f)
		if f.OwnerID == p.UserID {
			userIDs, teamIDs, err := d.Access.FolderShareSets(r.Context(), p, id)
			if err != nil {
				writeError(w, d.Logger, err)
				return
			}
			out.Shares = &shareSetsJSON{UserIDs: userIDs, TeamIDs: teamIDs}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func UpdateFolder(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		var req folderUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		p := principal(r)
		f, added, err := d.Access.UpdateFolder(r.Context(), p, id, access.FolderUpdate{
			Name:  req.Name,
			Icon:  req.Icon,
			Share: req.grant(),
		})
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		notifyShares(d, p.UserID, added, "folder", f.Name)
		writeJSON(w, http.StatusOK, toFolderJSON(f))
	}
}

func DeleteFolder(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := d.Access.DeleteFolder(r.Context(), principal(r), id); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
