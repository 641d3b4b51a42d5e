package handlers

import (
	"net/http"
	"strconv"

	"github.com/marque-app/marque/internal/access"
	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/store"
)

type bookmarkCreateRequest struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Slug       string  `json:"slug"`
	Forwarding bool    `json:"forwarding_enabled"`
	FolderIDs  []int64 `json:"folder_ids"`
	TagIDs     []int64 `json:"tag_ids"`
	sharePayload
}

type bookmarkUpdateRequest struct {
	Title      *string `json:"title"`
	URL        *string `json:"url"`
	Slug       *string `json:"slug"`
	Forwarding *bool   `json:"forwarding_enabled"`
	FolderIDs  []int64 `json:"folder_ids"`
	TagIDs     []int64 `json:"tag_ids"`
	sharePayload
}

// ListBookmarks returns the caller's read-set, optionally narrowed by
// ?folder= and ?tag=.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter store.BookmarkFilter
		if v := r.URL.Query().Get("folder"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				writeError(w, d.Logger, domain.Validationf("invalid folder filter"))
				return
			}
			filter.FolderID = id
		}
		if v := r.URL.Query().Get("tag"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				writeError(w, d.Logger, domain.Validationf("invalid tag filter"))
				return
			}
			filter.TagID = id
		}

		bookmarks, err := d.Access.Bookmarks(r.Context(), principal(r), filter)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookmarkList(bookmarks))
	}
}

func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookmarkCreateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		p := principal(r)
		b, added, err := d.Access.CreateBookmark(r.Context(), p, access.CreateBookmarkInput{
			Title:      req.Title,
			URL:        req.URL,
			Slug:       req.Slug,
			Forwarding: req.Forwarding,
			FolderIDs:  req.FolderIDs,
			TagIDs:     req.TagIDs,
			Share:      req.grant(),
		})
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		notifyShares(d, p.UserID, added, "bookmark", b.Title)
		writeJSON(w, http.StatusCreated, toBookmarkJSON(b))
	}
}

func GetBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		p := principal(r)
		b, err := d.Access.Bookmark(r.Context(), p, id)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		out := toBookmarkJSON(b)
		// Owners also see who the bookmark is shared with.
		if b.OwnerID == p.UserID {
			userIDs, teamIDs, err := d.Access.BookmarkShareSets(r.Context(), p, id)
			if err != nil {
				writeError(w, d.Logger, err)
				return
			}
			out.Shares = &shareSetsJSON{UserIDs: userIDs, TeamIDs: teamIDs}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func UpdateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		var req bookmarkUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		p := principal(r)
		b, added, err := d.Access.UpdateBookmark(r.Context(), p, id, access.BookmarkUpdate{
			Title:      req.Title,
			URL:        req.URL,
			Slug:       req.Slug,
			Forwarding: req.Forwarding,
			FolderIDs:  req.FolderIDs,
			TagIDs:     req.TagIDs,
			Share:      req.grant(),
		})
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		notifyShares(d, p.UserID, added, "bookmark", b.Title)
		writeJSON(w, http.StatusOK, toBookmarkJSON(b))
	}
}

func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := d.Access.DeleteBookmark(r.Context(), principal(r), id); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
