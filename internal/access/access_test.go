package access

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/logger"
	"github.com/marque-app/marque/internal/store"
)

func newTestResolver(t *testing.T) (*Resolver, *store.Store) {
	t.Helper()
	log := logger.New("error", false)
	st, err := store.Open("sqlite", filepath.Join(t.TempDir(), "marque.db"), log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return New(st, log), st
}

func seedUser(t *testing.T, st *store.Store, email, key string) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, DisplayName: email, UserKey: key}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func seedTeam(t *testing.T, st *store.Store, name string, members ...int64) *domain.Team {
	t.Helper()
	ctx := context.Background()
	team, err := st.CreateTeam(ctx, name)
	if err != nil {
		t.Fatalf("CreateTeam(%s): %v", name, err)
	}
	for _, id := range members {
		if err := st.AddTeamMember(ctx, team.ID, id); err != nil {
			t.Fatalf("AddTeamMember(%s, %d): %v", name, id, err)
		}
	}
	return team
}

func asPrincipal(u *domain.User) domain.Principal {
	return domain.Principal{UserID: u.ID, Admin: u.Admin}
}

func sameIDs(got, want []int64) bool {
	g := slices.Clone(got)
	w := slices.Clone(want)
	slices.Sort(g)
	slices.Sort(w)
	return slices.Equal(g, w)
}

func hasBookmark(list []domain.Bookmark, id int64) bool {
	for _, b := range list {
		if b.ID == id {
			return true
		}
	}
	return false
}

func hasFolder(list []domain.Folder, id int64) bool {
	for _, f := range list {
		if f.ID == id {
			return true
		}
	}
	return false
}

// TestVisibilityThroughFolderTeamShare walks the longest visibility
// chain: a bookmark filed in a folder that is shared with a team the
// reader belongs to. The bookmark is filed after the share exists,
// so the share must cover later additions too.
func TestVisibilityThroughFolderTeamShare(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()
	alice := seedUser(t, st, "alice@example.com", "aaaaaaaa")
	bob := seedUser(t, st, "bob@example.com", "bbbbbbbb")
	carol := seedUser(t, st, "carol@example.com", "cccccccc")
	team := seedTeam(t, st, "platform", alice.ID, bob.ID)

	pa := asPrincipal(alice)
	folder, _, err := r.CreateFolder(ctx, pa, "work", "", &domain.ShareGrant{TeamIDs: []int64{team.ID}})
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	b, _, err := r.CreateBookmark(ctx, pa, CreateBookmarkInput{
		Title:     "Team wiki",
		URL:       "https://wiki.example.com",
		FolderIDs: []int64{folder.ID},
	})
	if err != nil {
		t.Fatalf("CreateBookmark: %v", err)
	}

	pb := asPrincipal(bob)
	folders, err := r.Folders(ctx, pb)
	if err != nil {
		t.Fatalf("Folders as bob: %v", err)
	}
	if !hasFolder(folders, folder.ID) {
		t.Errorf("bob should see the shared folder")
	}
	list, err := r.Bookmarks(ctx, pb, store.BookmarkFilter{})
	if err != nil {
		t.Fatalf("Bookmarks as bob: %v", err)
	}
	if !hasBookmark(list, b.ID) {
		t.Errorf("bob should see the bookmark filed in the shared folder")
	}
	got, err := r.Bookmark(ctx, pb, b.ID)
	if err != nil {
		t.Fatalf("Bookmark as bob: %v", err)
	}
	if got.Title != "Team wiki" {
		t.Errorf("title = %q, want %q", got.Title, "Team wiki")
	}

	// carol is outside the team; for her nothing exists.
	pc := asPrincipal(carol)
	if _, err := r.Folder(ctx, pc, folder.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Folder as carol: got %v, want not found", err)
	}
	if _, err := r.Bookmark(ctx, pc, b.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Bookmark as carol: got %v, want not found", err)
	}
	list, err = r.Bookmarks(ctx, pc, store.BookmarkFilter{})
	if err != nil {
		t.Fatalf("Bookmarks as carol: %v", err)
	}
	if hasBookmark(list, b.ID) {
		t.Errorf("carol should not see the bookmark in her listing")
	}
}

// TestShareRecipientCannotMutate pins the two-tier refusal: a caller
// who can see a foreign object is forbidden to change it, while a
// caller who cannot see it learns nothing beyond "not found".
func TestShareRecipientCannotMutate(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()
	alice := seedUser(t, st, "alice@example.com", "aaaaaaaa")
	bob := seedUser(t, st, "bob@example.com", "bbbbbbbb")
	carol := seedUser(t, st, "carol@example.com", "cccccccc")

	pa := asPrincipal(alice)
	b, _, err := r.CreateBookmark(ctx, pa, CreateBookmarkInput{
		Title: "notes",
		URL:   "https://notes.example.com",
		Share: &domain.ShareGrant{UserIDs: []int64{bob.ID}},
	})
	if err != nil {
		t.Fatalf("CreateBookmark: %v", err)
	}

	pb := asPrincipal(bob)
	if _, err := r.Bookmark(ctx, pb, b.ID); err != nil {
		t.Fatalf("Bookmark as bob: %v", err)
	}
	title := "mine now"
	if _, _, err := r.UpdateBookmark(ctx, pb, b.ID, BookmarkUpdate{Title: &title}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("UpdateBookmark as bob: got %v, want forbidden", err)
	}
	if err := r.DeleteBookmark(ctx, pb, b.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("DeleteBookmark as bob: got %v, want forbidden", err)
	}
	if _, _, err := r.BookmarkShareSets(ctx, pb, b.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("BookmarkShareSets as bob: got %v, want forbidden", err)
	}

	pc := asPrincipal(carol)
	if _, _, err := r.UpdateBookmark(ctx, pc, b.ID, BookmarkUpdate{Title: &title}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateBookmark as carol: got %v, want not found", err)
	}
	if err := r.DeleteBookmark(ctx, pc, b.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("DeleteBookmark as carol: got %v, want not found", err)
	}

	// None of the refusals touched the row.
	got, err := r.Bookmark(ctx, pa, b.ID)
	if err != nil {
		t.Fatalf("Bookmark as alice: %v", err)
	}
	if got.Title != "notes" {
		t.Errorf("title = %q, want %q", got.Title, "notes")
	}
}

func TestShareGrantReplaceAndClear(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()
	alice := seedUser(t, st, "alice@example.com", "aaaaaaaa")
	bob := seedUser(t, st, "bob@example.com", "bbbbbbbb")
	carol := seedUser(t, st, "carol@example.com", "cccccccc")

	pa := asPrincipal(alice)
	// Duplicates and the owner are dropped from the grant.
	f, added, err := r.CreateFolder(ctx, pa, "links", "", &domain.ShareGrant{UserIDs: []int64{bob.ID, bob.ID, alice.ID}})
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if !sameIDs(added, []int64{bob.ID}) {
		t.Errorf("added = %v, want [%d]", added, bob.ID)
	}

	// A nil grant leaves the share sets alone.
	name := "links-renamed"
	_, added, err = r.UpdateFolder(ctx, pa, f.ID, FolderUpdate{Name: &name})
	if err != nil {
		t.Fatalf("UpdateFolder rename: %v", err)
	}
	if len(added) != 0 {
		t.Errorf("rename added %v, want none", added)
	}
	users, _, err := r.FolderShareSets(ctx, pa, f.ID)
	if err != nil {
		t.Fatalf("FolderShareSets: %v", err)
	}
	if !sameIDs(users, []int64{bob.ID}) {
		t.Errorf("users after rename = %v, want [%d]", users, bob.ID)
	}

	// A non-nil list replaces the whole set; only the newcomers are
	// reported for notification.
	_, added, err = r.UpdateFolder(ctx, pa, f.ID, FolderUpdate{Share: &domain.ShareGrant{UserIDs: []int64{carol.ID}}})
	if err != nil {
		t.Fatalf("UpdateFolder reshare: %v", err)
	}
	if !sameIDs(added, []int64{carol.ID}) {
		t.Errorf("added = %v, want [%d]", added, carol.ID)
	}
	users, _, err = r.FolderShareSets(ctx, pa, f.ID)
	if err != nil {
		t.Fatalf("FolderShareSets: %v", err)
	}
	if !sameIDs(users, []int64{carol.ID}) {
		t.Errorf("users after reshare = %v, want [%d]", users, carol.ID)
	}

	// An empty list clears.
	_, _, err = r.UpdateFolder(ctx, pa, f.ID, FolderUpdate{Share: &domain.ShareGrant{UserIDs: []int64{}}})
	if err != nil {
		t.Fatalf("UpdateFolder clear: %v", err)
	}
	users, _, err = r.FolderShareSets(ctx, pa, f.ID)
	if err != nil {
		t.Fatalf("FolderShareSets: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("users after clear = %v, want none", users)
	}
}

func TestShareGrantRejections(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()
	alice := seedUser(t, st, "alice@example.com", "aaaaaaaa")
	bob := seedUser(t, st, "bob@example.com", "bbbbbbbb")
	ops := seedTeam(t, st, "ops", bob.ID)

	pa := asPrincipal(alice)
	_, _, err := r.CreateFolder(ctx, pa, "a", "", &domain.ShareGrant{UserIDs: []int64{9999}})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown recipient: got %v, want not found", err)
	}

	// Sharing with a team requires being in it.
	_, _, err = r.CreateFolder(ctx, pa, "b", "", &domain.ShareGrant{TeamIDs: []int64{ops.ID}})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("foreign team: got %v, want forbidden", err)
	}
}

// TestAllMyTeamsSnapshots verifies the grant folds in the caller's
// memberships as of the grant, not as a live subscription.
func TestAllMyTeamsSnapshots(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()
	alice := seedUser(t, st, "alice@example.com", "aaaaaaaa")
	one := seedTeam(t, st, "one", alice.ID)

	pa := asPrincipal(alice)
	f, _, err := r.CreateFolder(ctx, pa, "snap", "", &domain.ShareGrant{AllMyTeams: true})
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	_, teams, err := r.FolderShareSets(ctx, pa, f.ID)
	if err != nil {
		t.Fatalf("FolderShareSets: %v", err)
	}
	if !sameIDs(teams, []int64{one.ID}) {
		t.Fatalf("teams = %v, want [%d]", teams, one.ID)
	}

	// Joining another team later does not widen the old share.
	two := seedTeam(t, st, "two", alice.ID)
	_, teams, err = r.FolderShareSets(ctx, pa, f.ID)
	if err != nil {
		t.Fatalf("FolderShareSets: %v", err)
	}
	if !sameIDs(teams, []int64{one.ID}) {
		t.Errorf("teams after joining %q = %v, want still [%d]", two.Name, teams, one.ID)
	}
}

// TestFilingGuards: filing into someone else's folder would leak the
// bookmark to that folder's audience, so it is refused outright.
// Tags are private, so a foreign tag simply does not exist.
func TestFilingGuards(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()
	alice := seedUser(t, st, "alice@example.com", "aaaaaaaa")
	bob := seedUser(t, st, "bob@example.com", "bbbbbbbb")

	pb := asPrincipal(bob)
	bobFolder, _, err := r.CreateFolder(ctx, pb, "bobs", "", nil)
	if err != nil {
		t.Fatalf("CreateFolder as bob: %v", err)
	}
	bobTag, err := r.CreateTag(ctx, pb, "private")
	if err != nil {
		t.Fatalf("CreateTag as bob: %v", err)
	}

	pa := asPrincipal(alice)
	_, _, err = r.CreateBookmark(ctx, pa, CreateBookmarkInput{
		Title:     "x",
		URL:       "https://x.example.com",
		FolderIDs: []int64{bobFolder.ID},
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("filing into foreign folder: got %v, want forbidden", err)
	}
	_, _, err = r.CreateBookmark(ctx, pa, CreateBookmarkInput{
		Title:  "x",
		URL:    "https://x.example.com",
		TagIDs: []int64{bobTag.ID},
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("tagging with foreign tag: got %v, want not found", err)
	}

	// The same rule applies to list filters.
	_, err = r.Bookmarks(ctx, pa, store.BookmarkFilter{FolderID: bobFolder.ID})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("filter by invisible folder: got %v, want not found", err)
	}
	_, err = r.Bookmarks(ctx, pa, store.BookmarkFilter{TagID: bobTag.ID})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("filter by foreign tag: got %v, want not found", err)
	}
}

func TestForeignTagInvisible(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()
	alice := seedUser(t, st, "alice@example.com", "aaaaaaaa")
	bob := seedUser(t, st, "bob@example.com", "bbbbbbbb")

	bobTag, err := r.CreateTag(ctx, asPrincipal(bob), "private")
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	pa := asPrincipal(alice)
	if _, err := r.RenameTag(ctx, pa, bobTag.ID, "stolen"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("RenameTag: got %v, want not found", err)
	}
	if err := r.DeleteTag(ctx, pa, bobTag.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("DeleteTag: got %v, want not found", err)
	}

	// Still there for its owner, untouched.
	tags, err := r.Tags(ctx, asPrincipal(bob))
	if err != nil {
		t.Fatalf("Tags as bob: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "private" {
		t.Errorf("tags = %+v, want the single tag %q", tags, "private")
	}
}

// TestDirectUserShareOfBookmark covers the shortest visibility path,
// a user-to-user bookmark share, without any folder in between.
func TestDirectUserShareOfBookmark(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()
	alice := seedUser(t, st, "alice@example.com", "aaaaaaaa")
	bob := seedUser(t, st, "bob@example.com", "bbbbbbbb")

	pa := asPrincipal(alice)
	b, added, err := r.CreateBookmark(ctx, pa, CreateBookmarkInput{
		Title: "paper",
		URL:   "https://paper.example.com",
		Share: &domain.ShareGrant{UserIDs: []int64{bob.ID}},
	})
	if err != nil {
		t.Fatalf("CreateBookmark: %v", err)
	}
	if !sameIDs(added, []int64{bob.ID}) {
		t.Errorf("added = %v, want [%d]", added, bob.ID)
	}

	pb := asPrincipal(bob)
	list, err := r.Bookmarks(ctx, pb, store.BookmarkFilter{})
	if err != nil {
		t.Fatalf("Bookmarks as bob: %v", err)
	}
	if !hasBookmark(list, b.ID) {
		t.Errorf("bob should see the directly shared bookmark")
	}

	// Revoking the share removes it from bob's world.
	if _, _, err := r.UpdateBookmark(ctx, pa, b.ID, BookmarkUpdate{Share: &domain.ShareGrant{UserIDs: []int64{}}}); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := r.Bookmark(ctx, pb, b.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Bookmark after revoke: got %v, want not found", err)
	}
}
