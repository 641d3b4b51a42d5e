package access

import (
	"context"
	"strings"

	"github.com/marque-app/marque/internal/domain"
)

// Tags lists the caller's tags. Tags are strictly personal and never
// shared, so the read-set is just the owner's rows.
func (r *Resolver) Tags(ctx context.Context, p domain.Principal) ([]domain.Tag, error) {
	return r.st.TagsOfUser(ctx, p.UserID)
}

// CreateTag creates a tag owned by the caller. Names are unique per
// owner; a duplicate surfaces as a ConflictError.
func (r *Resolver) CreateTag(ctx context.Context, p domain.Principal, name string) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Validationf("tag name required")
	}
	t := &domain.Tag{OwnerID: p.UserID, Name: name}
	if err := r.st.CreateTag(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// RenameTag renames an owned tag. Foreign tags read as absent.
func (r *Resolver) RenameTag(ctx context.Context, p domain.Principal, id int64, name string) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Validationf("tag name required")
	}
	t, err := r.requireTagOwner(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := r.st.RenameTag(ctx, id, name); err != nil {
		return nil, err
	}
	t.Name = name
	return t, nil
}

// DeleteTag removes an owned tag and its bookmark links.
func (r *Resolver) DeleteTag(ctx context.Context, p domain.Principal, id int64) error {
	if _, err := r.requireTagOwner(ctx, p, id); err != nil {
		return err
	}
	return r.st.DeleteTag(ctx, id)
}

func (r *Resolver) requireTagOwner(ctx context.Context, p domain.Principal, id int64) (*domain.Tag, error) {
	t, err := r.st.TagByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != p.UserID {
		// Foreign tags are invisible, not forbidden.
		return nil, domain.ErrNotFound
	}
	return t, nil
}
