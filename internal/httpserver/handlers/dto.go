package handlers

import (
	"time"

	"github.com/marque-app/marque/internal/domain"
)

// sharePayload rides inside create/update bodies. A present array
// replaces that share set (empty array clears it); an absent one
// leaves it untouched. share_all_my_teams additionally snapshots the
// caller's current memberships into the team set.
type sharePayload struct {
	ShareUserIDs    []int64 `json:"share_user_ids"`
	ShareTeamIDs    []int64 `json:"share_team_ids"`
	ShareAllMyTeams bool    `json:"share_all_my_teams"`
}

func (s sharePayload) grant() *domain.ShareGrant {
	if s.ShareUserIDs == nil && s.ShareTeamIDs == nil && !s.ShareAllMyTeams {
		return nil
	}
	return &domain.ShareGrant{
		UserIDs:    s.ShareUserIDs,
		TeamIDs:    s.ShareTeamIDs,
		AllMyTeams: s.ShareAllMyTeams,
	}
}

type shareSetsJSON struct {
	UserIDs []int64 `json:"share_user_ids"`
	TeamIDs []int64 `json:"share_team_ids"`
}

type tagJSON struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toTagJSON(t domain.Tag) tagJSON {
	return tagJSON{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
}

type bookmarkJSON struct {
	ID           int64          `json:"id"`
	OwnerID      int64          `json:"owner_id"`
	Title        string         `json:"title"`
	URL          string         `json:"url"`
	Slug         *string        `json:"slug"`
	Forwarding   bool           `json:"forwarding_enabled"`
	AccessCount  int64          `json:"access_count"`
	LastAccessed *time.Time     `json:"last_accessed,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	FolderIDs    []int64        `json:"folder_ids"`
	Tags         []tagJSON      `json:"tags"`
	Shares       *shareSetsJSON `json:"shares,omitempty"`
}

func toBookmarkJSON(b *domain.Bookmark) bookmarkJSON {
	out := bookmarkJSON{
		ID:           b.ID,
		OwnerID:      b.OwnerID,
		Title:        b.Title,
		URL:          b.URL,
		Slug:         b.Slug,
		Forwarding:   b.Forwarding,
		AccessCount:  b.AccessCount,
		LastAccessed: b.LastAccessed,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
		FolderIDs:    []int64{},
		Tags:         []tagJSON{},
	}
	if b.FolderIDs != nil {
		out.FolderIDs = b.FolderIDs
	}
	for _, t := range b.Tags {
		out.Tags = append(out.Tags, toTagJSON(t))
	}
	return out
}

func toBookmarkList(bs []domain.Bookmark) []bookmarkJSON {
	out := make([]bookmarkJSON, 0, len(bs))
	for i := range bs {
		out = append(out, toBookmarkJSON(&bs[i]))
	}
	return out
}

type folderJSON struct {
	ID        int64          `json:"id"`
	OwnerID   int64          `json:"owner_id"`
	Name      string         `json:"name"`
	Icon      string         `json:"icon,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Shares    *shareSetsJSON `json:"shares,omitempty"`
}

func toFolderJSON(f *domain.Folder) folderJSON {
	return folderJSON{
		ID:        f.ID,
		OwnerID:   f.OwnerID,
		Name:      f.Name,
		Icon:      f.Icon,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

type teamJSON struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toTeamJSON(t domain.Team) teamJSON {
	return teamJSON{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
}

type userJSON struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	UserKey     string    `json:"user_key"`
	Admin       bool      `json:"admin"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserJSON(u *domain.User) userJSON {
	return userJSON{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		UserKey:     u.UserKey,
		Admin:       u.Admin,
		CreatedAt:   u.CreatedAt,
	}
}
