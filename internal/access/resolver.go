// Package access enforces who may see and mutate folders, bookmarks
// and their shares. Every API handler goes through a Resolver; only
// the admin surface and the public forwarding endpoint bypass it.
package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/logger"
	"github.com/marque-app/marque/internal/store"
)

type Resolver struct {
	st  *store.Store
	log logger.Logger
}

func New(st *store.Store, log logger.Logger) *Resolver {
	return &Resolver{st: st, log: log}
}

// Folders returns the caller's folder read-set: owned, shared
// directly, or shared with one of the caller's teams.
func (r *Resolver) Folders(ctx context.Context, p domain.Principal) ([]domain.Folder, error) {
	return r.st.VisibleFolders(ctx, p.UserID)
}

// Folder returns one folder if the caller may see it.
func (r *Resolver) Folder(ctx context.Context, p domain.Principal, id int64) (*domain.Folder, error) {
	f, err := r.st.FolderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.OwnerID == p.UserID {
		return f, nil
	}
	visible, err := r.st.CanSeeFolder(ctx, p.UserID, id)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, domain.ErrNotFound
	}
	return f, nil
}

// requireFolderOwner loads a folder for mutation. A folder the
// caller cannot see reads as absent; a visible one owned by someone
// else is forbidden.
func (r *Resolver) requireFolderOwner(ctx context.Context, p domain.Principal, id int64) (*domain.Folder, error) {
	f, err := r.st.FolderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.OwnerID == p.UserID {
		return f, nil
	}
	visible, err := r.st.CanSeeFolder(ctx, p.UserID, id)
	if err != nil {
		return nil, err
	}
	if visible {
		return nil, domain.ErrForbidden
	}
	return nil, domain.ErrNotFound
}

// FolderUpdate carries a partial folder mutation. Nil fields stay
// unchanged.
type FolderUpdate struct {
	Name  *string
	Icon  *string
	Share *domain.ShareGrant
}

// CreateFolder creates a folder owned by the caller and applies the
// optional share grant. It returns the created folder and the users
// newly granted direct access, for notification.
func (r *Resolver) CreateFolder(ctx context.Context, p domain.Principal, name, icon string, grant *domain.ShareGrant) (*domain.Folder, []int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, domain.Validationf("folder name required")
	}
	f := &domain.Folder{OwnerID: p.UserID, Name: name, Icon: icon}
	if err := r.st.CreateFolder(ctx, f); err != nil {
		return nil, nil, err
	}
	added, err := r.applyShareGrant(ctx, p, folderShares, f.ID, grant)
	if err != nil {
		return nil, nil, err
	}
	return f, added, nil
}

// UpdateFolder applies a partial update to an owned folder.
func (r *Resolver) UpdateFolder(ctx context.Context, p domain.Principal, id int64, upd FolderUpdate) (*domain.Folder, []int64, error) {
	f, err := r.requireFolderOwner(ctx, p, id)
	if err != nil {
		return nil, nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, nil, domain.Validationf("folder name required")
		}
		f.Name = name
	}
	if upd.Icon != nil {
		f.Icon = *upd.Icon
	}
	if upd.Name != nil || upd.Icon != nil {
		if err := r.st.UpdateFolder(ctx, f); err != nil {
			return nil, nil, err
		}
	}
	added, err := r.applyShareGrant(ctx, p, folderShares, f.ID, upd.Share)
	if err != nil {
		return nil, nil, err
	}
	return f, added, nil
}

// DeleteFolder removes an owned folder. Bookmarks filed under it
// survive; only the grouping and its shares go away.
func (r *Resolver) DeleteFolder(ctx context.Context, p domain.Principal, id int64) error {
	if _, err := r.requireFolderOwner(ctx, p, id); err != nil {
		return err
	}
	return r.st.DeleteFolder(ctx, id)
}

// FolderShareSets reports the current shares of an owned folder.
func (r *Resolver) FolderShareSets(ctx context.Context, p domain.Principal, id int64) (userIDs, teamIDs []int64, err error) {
	if _, err := r.requireFolderOwner(ctx, p, id); err != nil {
		return nil, nil, err
	}
	return r.st.FolderShares(ctx, id)
}

// MyTeams lists the caller's team memberships.
func (r *Resolver) MyTeams(ctx context.Context, p domain.Principal) ([]domain.Team, error) {
	return r.st.TeamsOfUser(ctx, p.UserID)
}

// ownedFolders verifies every id names a folder owned by the caller.
// Filing a bookmark into someone else's folder would leak it into
// that folder's audience.
func (r *Resolver) ownedFolders(ctx context.Context, p domain.Principal, ids []int64) error {
	for _, id := range ids {
		f, err := r.st.FolderByID(ctx, id)
		if err != nil {
			return fmt.Errorf("folder %d: %w", id, err)
		}
		if f.OwnerID != p.UserID {
			return fmt.Errorf("folder %d: %w", id, domain.ErrForbidden)
		}
	}
	return nil
}

// ownedTags verifies every id names a tag owned by the caller. Tags
// are private, so a foreign tag reads as absent.
func (r *Resolver) ownedTags(ctx context.Context, p domain.Principal, ids []int64) error {
	for _, id := range ids {
		t, err := r.st.TagByID(ctx, id)
		if err != nil {
			return fmt.Errorf("tag %d: %w", id, err)
		}
		if t.OwnerID != p.UserID {
			return fmt.Errorf("tag %d: %w", id, domain.ErrNotFound)
		}
	}
	return nil
}
