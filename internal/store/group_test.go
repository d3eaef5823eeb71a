package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/linkshelf/internal/model"
)

type fixture struct {
	users  *UserStore
	groups *GroupStore
	links  *LinkStore
	caches *CacheStore
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	return &fixture{
		users:  NewUserStore(db),
		groups: NewGroupStore(db, nil),
		links:  NewLinkStore(db),
		caches: NewCacheStore(db),
	}
}

func (f *fixture) user(t *testing.T, name string) *model.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), name, "h1")
	if err != nil {
		t.Fatalf("create user %q: %v", name, err)
	}
	return u
}

func (f *fixture) group(t *testing.T, userID int64, slug string, public bool) *model.LinkGroup {
	t.Helper()
	g, err := f.groups.Create(context.Background(), userID, GroupParams{Name: slug, Slug: slug, IsPublic: public})
	if err != nil {
		t.Fatalf("create group %q: %v", slug, err)
	}
	return g
}

func strPtr(s string) *string { return &s }

func TestGroupCreate(t *testing.T) {
	f := setupFixture(t)
	u := f.user(t, "alice")

	g, err := f.groups.Create(context.Background(), u.ID, GroupParams{
		Name:        "Reading",
		Slug:        "reading",
		AccessKey:   strPtr("s3cret"),
		Description: strPtr("things to read"),
		IsPublic:    true,
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if g.UserID != u.ID {
		t.Errorf("user_id = %d, want %d", g.UserID, u.ID)
	}
	if g.Slug != "reading" {
		t.Errorf("slug = %q, want %q", g.Slug, "reading")
	}
	if g.AccessKey == nil || *g.AccessKey != "s3cret" {
		t.Errorf("key = %v, want s3cret", g.AccessKey)
	}
	if !g.IsPublic {
		t.Error("expected group to be public")
	}
	if g.RefreshInterval != model.DefaultRefreshInterval {
		t.Errorf("refresh_interval = %d, want %d", g.RefreshInterval, model.DefaultRefreshInterval)
	}
}

func TestGroupCreateDuplicateSlug(t *testing.T) {
	f := setupFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	ctx := context.Background()

	first := f.group(t, alice.ID, "reading", false)

	_, err := f.groups.Create(ctx, bob.ID, GroupParams{Name: "Mine", Slug: "reading"})
	if !errors.Is(err, ErrConstraint) {
		t.Fatalf("err = %v, want ErrConstraint", err)
	}

	got, err := f.groups.GetBySlug(ctx, "reading")
	if err != nil {
		t.Fatalf("get by slug: %v", err)
	}
	if got.ID != first.ID || got.UserID != alice.ID || got.Name != "reading" {
		t.Errorf("first group changed: %+v", got)
	}
}

func TestGroupCreateUnknownOwner(t *testing.T) {
	f := setupFixture(t)

	_, err := f.groups.Create(context.Background(), 42, GroupParams{Name: "x", Slug: "x"})
	if !errors.Is(err, ErrConstraint) {
		t.Fatalf("err = %v, want ErrConstraint", err)
	}
}

func TestGroupUpdate(t *testing.T) {
	f := setupFixture(t)
	u := f.user(t, "alice")
	g := f.group(t, u.ID, "reading", false)
	ctx := context.Background()

	ok, err := f.groups.Update(ctx, g.ID, GroupParams{Name: "Later", Slug: "later", IsPublic: true, RefreshInterval: 60})
	if err != nil {
		t.Fatalf("update group: %v", err)
	}
	if !ok {
		t.Fatal("expected update to affect a row")
	}

	got, err := f.groups.GetByID(ctx, g.ID)
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if got.Name != "Later" || got.Slug != "later" || !got.IsPublic || got.RefreshInterval != 60 {
		t.Errorf("updated group = %+v", got)
	}
	if got.AccessKey != nil {
		t.Errorf("key = %v, want nil after full replace", *got.AccessKey)
	}

	ok, err = f.groups.Update(ctx, 999, GroupParams{Name: "x", Slug: "x"})
	if err != nil {
		t.Fatalf("update missing: %v", err)
	}
	if ok {
		t.Error("expected no row affected for missing group")
	}
}

func TestGroupUpdateSlugConflict(t *testing.T) {
	f := setupFixture(t)
	u := f.user(t, "alice")
	f.group(t, u.ID, "reading", false)
	g := f.group(t, u.ID, "watching", false)

	_, err := f.groups.Update(context.Background(), g.ID, GroupParams{Name: "w", Slug: "reading"})
	if !errors.Is(err, ErrConstraint) {
		t.Fatalf("err = %v, want ErrConstraint", err)
	}
}

func TestGroupListByUserAndPublic(t *testing.T) {
	f := setupFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	ctx := context.Background()

	f.group(t, alice.ID, "a-private", false)
	f.group(t, alice.ID, "a-public", true)
	f.group(t, bob.ID, "b-public", true)

	mine, err := f.groups.ListByUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("alice groups = %d, want 2", len(mine))
	}

	public, err := f.groups.ListPublic(ctx)
	if err != nil {
		t.Fatalf("list public: %v", err)
	}
	if len(public) != 2 {
		t.Fatalf("public groups = %d, want 2", len(public))
	}
	for _, g := range public {
		if !g.IsPublic {
			t.Errorf("group %q is not public", g.Slug)
		}
	}
}

func TestGroupDelete(t *testing.T) {
	f := setupFixture(t)
	u := f.user(t, "alice")
	g := f.group(t, u.ID, "reading", false)
	ctx := context.Background()

	if _, err := f.caches.WriteGroupCache(ctx, g.ID, "<p>x</p>"); err != nil {
		t.Fatalf("write cache: %v", err)
	}

	ok, err := f.groups.Delete(ctx, g.ID)
	if err != nil {
		t.Fatalf("delete group: %v", err)
	}
	if !ok {
		t.Error("expected delete to affect a row")
	}
	if _, err := f.caches.GetGroupCache(ctx, g.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("group cache after delete: err = %v, want ErrNotFound", err)
	}

	ok, err = f.groups.Delete(ctx, g.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if ok {
		t.Error("expected second delete to affect no rows")
	}
}

func TestGroupListStale(t *testing.T) {
	f := setupFixture(t)
	u := f.user(t, "alice")
	fresh := f.group(t, u.ID, "fresh", false)
	stale := f.group(t, u.ID, "stale", false)
	uncached := f.group(t, u.ID, "uncached", false)
	ctx := context.Background()

	if _, err := f.caches.WriteGroupCache(ctx, fresh.ID, "fresh"); err != nil {
		t.Fatalf("write fresh cache: %v", err)
	}
	c, err := f.caches.WriteGroupCache(ctx, stale.ID, "stale")
	if err != nil {
		t.Fatalf("write stale cache: %v", err)
	}
	if _, err := f.groups.db.Exec(`UPDATE caches SET updated_at = datetime('now', '-2 hours') WHERE id = ?`, c.ID); err != nil {
		t.Fatalf("age cache: %v", err)
	}

	groups, err := f.groups.ListStale(ctx)
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	got := map[int64]bool{}
	for _, g := range groups {
		got[g.ID] = true
	}
	if got[fresh.ID] {
		t.Error("fresh group should not be stale")
	}
	if !got[stale.ID] {
		t.Error("expected stale group")
	}
	if !got[uncached.ID] {
		t.Error("expected uncached group")
	}
}
