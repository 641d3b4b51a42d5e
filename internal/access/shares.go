package access

import (
	"context"
	"fmt"

	"github.com/marque-app/marque/internal/domain"
)

type shareKind int

const (
	folderShares shareKind = iota
	bookmarkShares
)

// applyShareGrant turns a grant into concrete share rows. Only the
// object owner reaches this point. Semantics:
//
//   - a nil grant leaves both share sets untouched
//   - a nil UserIDs slice keeps the current user shares; a non-nil
//     one replaces them
//   - TeamIDs must all be teams the caller belongs to right now
//   - AllMyTeams folds the caller's current memberships into the
//     team set; teams joined later are not picked up
//
// The returned slice holds users newly granted direct access, so the
// caller can notify them.
func (r *Resolver) applyShareGrant(ctx context.Context, p domain.Principal, kind shareKind, objID int64, g *domain.ShareGrant) ([]int64, error) {
	if g == nil {
		return nil, nil
	}

	var curUsers, curTeams []int64
	var err error
	switch kind {
	case folderShares:
		curUsers, curTeams, err = r.st.FolderShares(ctx, objID)
	case bookmarkShares:
		curUsers, curTeams, err = r.st.BookmarkShares(ctx, objID)
	}
	if err != nil {
		return nil, err
	}

	targetUsers := curUsers
	if g.UserIDs != nil {
		ids := dedupIDs(g.UserIDs, p.UserID)
		ok, err := r.st.UsersExist(ctx, ids)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("share recipient: %w", domain.ErrNotFound)
		}
		targetUsers = ids
	}

	targetTeams := curTeams
	if g.TeamIDs != nil || g.AllMyTeams {
		mine, err := r.st.TeamIDsOfUser(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		mineSet := make(map[int64]bool, len(mine))
		for _, id := range mine {
			mineSet[id] = true
		}

		ids := dedupIDs(g.TeamIDs, 0)
		for _, id := range ids {
			if !mineSet[id] {
				return nil, fmt.Errorf("team %d: %w", id, domain.ErrForbidden)
			}
		}
		if g.AllMyTeams {
			ids = unionIDs(ids, mine)
		}
		targetTeams = ids
	}

	switch kind {
	case folderShares:
		err = r.st.SetFolderShares(ctx, objID, targetUsers, targetTeams)
	case bookmarkShares:
		err = r.st.SetBookmarkShares(ctx, objID, targetUsers, targetTeams)
	}
	if err != nil {
		return nil, err
	}

	return diffIDs(targetUsers, curUsers), nil
}

// dedupIDs drops duplicates and the excluded id while keeping order.
func dedupIDs(ids []int64, exclude int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id == exclude || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func unionIDs(a, b []int64) []int64 {
	out := make([]int64, 0, len(a)+len(b))
	seen := make(map[int64]bool, len(a)+len(b))
	for _, id := range a {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range b {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// diffIDs returns ids present in next but not in prev.
func diffIDs(next, prev []int64) []int64 {
	prevSet := make(map[int64]bool, len(prev))
	for _, id := range prev {
		prevSet[id] = true
	}
	added := []int64{}
	for _, id := range next {
		if !prevSet[id] {
			added = append(added, id)
		}
	}
	return added
}
