package access

import (
	"context"
	"strings"

	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/forward"
	"github.com/marque-app/marque/internal/store"
)

// CreateBookmarkInput is the full create payload. Slug "" means no
// public address.
type CreateBookmarkInput struct {
	Title      string
	URL        string
	Slug       string
	Forwarding bool
	FolderIDs  []int64
	TagIDs     []int64
	Share      *domain.ShareGrant
}

// BookmarkUpdate carries a partial bookmark mutation. Nil fields stay
// unchanged; a non-nil empty Slug clears the public address.
type BookmarkUpdate struct {
	Title      *string
	URL        *string
	Slug       *string
	Forwarding *bool
	FolderIDs  []int64
	TagIDs     []int64
	Share      *domain.ShareGrant
}

// Bookmarks returns the caller's bookmark read-set, hydrated with
// folder and tag links. A folder filter outside the caller's folder
// read-set reads as absent.
func (r *Resolver) Bookmarks(ctx context.Context, p domain.Principal, filter store.BookmarkFilter) ([]domain.Bookmark, error) {
	if filter.FolderID != 0 {
		visible, err := r.st.CanSeeFolder(ctx, p.UserID, filter.FolderID)
		if err != nil {
			return nil, err
		}
		if !visible {
			return nil, domain.ErrNotFound
		}
	}
	if filter.TagID != 0 {
		if err := r.ownedTags(ctx, p, []int64{filter.TagID}); err != nil {
			return nil, err
		}
	}

	bookmarks, err := r.st.VisibleBookmarks(ctx, p.UserID, filter)
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, bookmarks); err != nil {
		return nil, err
	}
	return bookmarks, nil
}

// Bookmark returns one bookmark if the caller may see it.
func (r *Resolver) Bookmark(ctx context.Context, p domain.Principal, id int64) (*domain.Bookmark, error) {
	b, err := r.st.BookmarkByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.OwnerID != p.UserID {
		visible, err := r.st.CanSeeBookmark(ctx, p.UserID, id)
		if err != nil {
			return nil, err
		}
		if !visible {
			return nil, domain.ErrNotFound
		}
	}
	one := []domain.Bookmark{*b}
	if err := r.hydrate(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

func (r *Resolver) requireBookmarkOwner(ctx context.Context, p domain.Principal, id int64) (*domain.Bookmark, error) {
	b, err := r.st.BookmarkByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.OwnerID == p.UserID {
		return b, nil
	}
	visible, err := r.st.CanSeeBookmark(ctx, p.UserID, id)
	if err != nil {
		return nil, err
	}
	if visible {
		return nil, domain.ErrForbidden
	}
	return nil, domain.ErrNotFound
}

// CreateBookmark creates a bookmark owned by the caller, files it,
// tags it and applies the optional share grant. A slug collision
// anywhere in the system surfaces as a conflict.
func (r *Resolver) CreateBookmark(ctx context.Context, p domain.Principal, in CreateBookmarkInput) (*domain.Bookmark, []int64, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.URL = strings.TrimSpace(in.URL)
	if in.Title == "" {
		return nil, nil, domain.Validationf("title required")
	}
	if in.URL == "" {
		return nil, nil, domain.Validationf("url required")
	}

	b := &domain.Bookmark{
		OwnerID:    p.UserID,
		Title:      in.Title,
		URL:        in.URL,
		Forwarding: in.Forwarding,
	}
	if in.Slug != "" {
		if err := forward.ValidateSlug(in.Slug); err != nil {
			return nil, nil, err
		}
		b.Slug = &in.Slug
	}

	if err := r.ownedFolders(ctx, p, in.FolderIDs); err != nil {
		return nil, nil, err
	}
	if err := r.ownedTags(ctx, p, in.TagIDs); err != nil {
		return nil, nil, err
	}

	if err := r.st.CreateBookmark(ctx, b); err != nil {
		return nil, nil, err
	}
	if len(in.FolderIDs) > 0 {
		if err := r.st.SetBookmarkFolders(ctx, b.ID, in.FolderIDs); err != nil {
			return nil, nil, err
		}
		b.FolderIDs = in.FolderIDs
	}
	if len(in.TagIDs) > 0 {
		if err := r.st.SetBookmarkTags(ctx, b.ID, in.TagIDs); err != nil {
			return nil, nil, err
		}
	}

	added, err := r.applyShareGrant(ctx, p, bookmarkShares, b.ID, in.Share)
	if err != nil {
		return nil, nil, err
	}

	one := []domain.Bookmark{*b}
	if err := r.hydrate(ctx, one); err != nil {
		return nil, nil, err
	}
	return &one[0], added, nil
}

// UpdateBookmark applies a partial update to an owned bookmark. A
// rejected slug change leaves the stored slug as it was.
func (r *Resolver) UpdateBookmark(ctx context.Context, p domain.Principal, id int64, upd BookmarkUpdate) (*domain.Bookmark, []int64, error) {
	b, err := r.requireBookmarkOwner(ctx, p, id)
	if err != nil {
		return nil, nil, err
	}

	changed := false
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, nil, domain.Validationf("title required")
		}
		b.Title = title
		changed = true
	}
	if upd.URL != nil {
		url := strings.TrimSpace(*upd.URL)
		if url == "" {
			return nil, nil, domain.Validationf("url required")
		}
		b.URL = url
		changed = true
	}
	if upd.Slug != nil {
		if *upd.Slug == "" {
			b.Slug = nil
		} else {
			if err := forward.ValidateSlug(*upd.Slug); err != nil {
				return nil, nil, err
			}
			b.Slug = upd.Slug
		}
		changed = true
	}
	if upd.Forwarding != nil {
		b.Forwarding = *upd.Forwarding
		changed = true
	}
	if changed {
		if err := r.st.UpdateBookmark(ctx, b); err != nil {
			return nil, nil, err
		}
	}

	if upd.FolderIDs != nil {
		if err := r.ownedFolders(ctx, p, upd.FolderIDs); err != nil {
			return nil, nil, err
		}
		if err := r.st.SetBookmarkFolders(ctx, b.ID, upd.FolderIDs); err != nil {
			return nil, nil, err
		}
	}
	if upd.TagIDs != nil {
		if err := r.ownedTags(ctx, p, upd.TagIDs); err != nil {
			return nil, nil, err
		}
		if err := r.st.SetBookmarkTags(ctx, b.ID, upd.TagIDs); err != nil {
			return nil, nil, err
		}
	}

	added, err := r.applyShareGrant(ctx, p, bookmarkShares, b.ID, upd.Share)
	if err != nil {
		return nil, nil, err
	}

	one := []domain.Bookmark{*b}
	if err := r.hydrate(ctx, one); err != nil {
		return nil, nil, err
	}
	return &one[0], added, nil
}

// DeleteBookmark removes an owned bookmark with its links and shares.
func (r *Resolver) DeleteBookmark(ctx context.Context, p domain.Principal, id int64) error {
	if _, err := r.requireBookmarkOwner(ctx, p, id); err != nil {
		return err
	}
	return r.st.DeleteBookmark(ctx, id)
}

// BookmarkShareSets reports the current shares of an owned bookmark.
func (r *Resolver) BookmarkShareSets(ctx context.Context, p domain.Principal, id int64) (userIDs, teamIDs []int64, err error) {
	if _, err := r.requireBookmarkOwner(ctx, p, id); err != nil {
		return nil, nil, err
	}
	return r.st.BookmarkShares(ctx, id)
}

// Stats lists the caller's own bookmarks most-visited first.
func (r *Resolver) Stats(ctx context.Context, p domain.Principal) ([]domain.Bookmark, error) {
	return r.st.OwnedBookmarkStats(ctx, p.UserID)
}

// hydrate fills folder and tag links for a batch of bookmarks.
func (r *Resolver) hydrate(ctx context.Context, bookmarks []domain.Bookmark) error {
	if len(bookmarks) == 0 {
		return nil
	}
	ids := make([]int64, len(bookmarks))
	for i := range bookmarks {
		ids[i] = bookmarks[i].ID
	}
	folders, err := r.st.BookmarkFolderLinks(ctx, ids)
	if err != nil {
		return err
	}
	tags, err := r.st.BookmarkTagLinks(ctx, ids)
	if err != nil {
		return err
	}
	for i := range bookmarks {
		bookmarks[i].FolderIDs = folders[bookmarks[i].ID]
		bookmarks[i].Tags = tags[bookmarks[i].ID]
	}
	return nil
}
