package service

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"kodomo/inventoryhub/internal/inventory"
	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
	"kodomo/inventoryhub/internal/testutil"
)

func newTestGroupService(t *testing.T) (GroupService, repository.Store, repository.Notifier) {
	t.Helper()
	store := newTestStore(t)
	notifier := repository.NewMemoryNotifier()
	images, err := repository.NewLocalImageStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocalImageStore() error = %v", err)
	}
	return NewGroupService(store, notifier, images, true, zaptest.NewLogger(t)), store, notifier
}

func TestGroupService_CreateGroup(t *testing.T) {
	svc, store, notifier := newTestGroupService(t)
	ctx := testutil.TestContext(t)
	owner := seedUser(t, ctx, store, "ママ")

	sub, err := notifier.Subscribe(ctx, repository.UserTopic(owner.ID))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	g, err := svc.CreateGroup(ctx, owner.ID, " 山田家 ")
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	if g.Name != "山田家" || g.OwnerID != owner.ID {
		t.Errorf("group = %+v", g)
	}
	if role, _ := g.RoleOf(owner.ID); role != model.RoleOwner {
		t.Errorf("owner role = %q", role)
	}
	if len(g.Categories) != 8 {
		t.Errorf("len(Categories) = %d, want 8", len(g.Categories))
	}
	waitSignal(t, sub)

	groups, err := svc.ListGroups(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListGroups() error = %v", err)
	}
	if len(groups) != 1 || groups[0].ID != g.ID {
		t.Errorf("ListGroups() = %+v", groups)
	}

	if _, err := svc.CreateGroup(ctx, owner.ID, "  "); !errors.Is(err, inventory.ErrNameRequired) {
		t.Errorf("CreateGroup(blank) error = %v, want ErrNameRequired", err)
	}
}

func TestGroupService_Membership(t *testing.T) {
	svc, store, _ := newTestGroupService(t)
	ctx := testutil.TestContext(t)
	owner := seedUser(t, ctx, store, "owner")
	admin := seedUser(t, ctx, store, "admin")
	member := seedUser(t, ctx, store, "member")
	other := seedUser(t, ctx, store, "other")
	outsider := seedUser(t, ctx, store, "outsider")

	g, err := svc.CreateGroup(ctx, owner.ID, "家族")
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	g.Members[admin.ID] = model.RoleMember
	g.Members[member.ID] = model.RoleMember
	g.Members[other.ID] = model.RoleMember
	if err := store.Groups().Update(ctx, g); err != nil {
		t.Fatalf("update group: %v", err)
	}
	for _, u := range []string{admin.ID, member.ID, other.ID} {
		if err := store.Users().AddGroup(ctx, u, g.ID); err != nil {
			t.Fatalf("AddGroup() error = %v", err)
		}
	}

	if _, err := svc.GetGroup(ctx, outsider.ID, g.ID); !errors.Is(err, ErrNotGroupMember) {
		t.Errorf("GetGroup(outsider) error = %v, want ErrNotGroupMember", err)
	}
	if _, err := svc.SetMemberRole(ctx, admin.ID, g.ID, member.ID, model.RoleAdmin); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("SetMemberRole(by member) error = %v, want ErrPermissionDenied", err)
	}
	if _, err := svc.SetMemberRole(ctx, owner.ID, g.ID, admin.ID, model.RoleAdmin); err != nil {
		t.Fatalf("SetMemberRole() error = %v", err)
	}
	if _, err := svc.SetMemberRole(ctx, owner.ID, g.ID, owner.ID, model.RoleMember); !errors.Is(err, ErrCannotChangeOwner) {
		t.Errorf("SetMemberRole(owner) error = %v, want ErrCannotChangeOwner", err)
	}
	if _, err := svc.SetMemberRole(ctx, owner.ID, g.ID, member.ID, model.RoleOwner); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("SetMemberRole(to owner) error = %v, want ErrInvalidRole", err)
	}

	tests := []struct {
		name   string
		actor  string
		target string
		want   error
	}{
		{"member cannot remove others", member.ID, other.ID, ErrPermissionDenied},
		{"nobody removes the owner", admin.ID, owner.ID, ErrCannotRemoveOwner},
		{"unknown member", owner.ID, outsider.ID, ErrMemberNotFound},
		{"admin removes member", admin.ID, other.ID, nil},
		{"member leaves", member.ID, member.ID, nil},
		{"owner removes admin", owner.ID, admin.ID, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RemoveMember(ctx, tt.actor, g.ID, tt.target)
			if !errors.Is(err, tt.want) {
				t.Fatalf("RemoveMember() error = %v, want %v", err, tt.want)
			}
			if tt.want != nil {
				return
			}
			u, err := store.Users().GetByID(ctx, tt.target)
			if err != nil {
				t.Fatalf("GetByID() error = %v", err)
			}
			if u.InGroup(g.ID) {
				t.Errorf("removed user still lists group %s", g.ID)
			}
		})
	}

	final, err := svc.GetGroup(ctx, owner.ID, g.ID)
	if err != nil {
		t.Fatalf("GetGroup() error = %v", err)
	}
	if len(final.Members) != 1 {
		t.Errorf("members = %v, want only the owner", final.Members)
	}
}

func TestGroupService_ChildrenAndCategories(t *testing.T) {
	svc, store, notifier := newTestGroupService(t)
	ctx := testutil.TestContext(t)
	owner := seedUser(t, ctx, store, "owner")
	g, err := svc.CreateGroup(ctx, owner.ID, "家族")
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}

	child, err := svc.AddChild(ctx, owner.ID, g.ID, ChildInput{Name: "たろう", Color: "#FF6B9D", Emoji: "👦"})
	if err != nil {
		t.Fatalf("AddChild() error = %v", err)
	}
	if _, err := svc.AddChild(ctx, owner.ID, g.ID, ChildInput{Name: "x", Color: "red"}); !errors.Is(err, inventory.ErrInvalidColor) {
		t.Errorf("AddChild(bad color) error = %v, want ErrInvalidColor", err)
	}
	if _, err := svc.UpdateChild(ctx, owner.ID, g.ID, "missing", inventory.ChildPatch{Name: strPtr("y")}); err != nil {
		t.Errorf("UpdateChild(missing) error = %v", err)
	}

	tops := g.Categories[1]
	item := &model.InventoryItem{
		ID: "i1", GroupID: g.ID, Name: "Tシャツ", CategoryID: tops.ID, ChildID: child.ID,
		Quantity: 1, CreatedAt: testStart, UpdatedAt: testStart,
	}
	if err := store.Items().Create(ctx, item); err != nil {
		t.Fatalf("create item: %v", err)
	}

	itemsSub, err := notifier.Subscribe(ctx, repository.GroupItemsTopic(g.ID))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer itemsSub.Close()

	updated, err := svc.DeleteChild(ctx, owner.ID, g.ID, child.ID)
	if err != nil {
		t.Fatalf("DeleteChild() error = %v", err)
	}
	if len(updated.Children) != 0 {
		t.Errorf("children = %+v, want none", updated.Children)
	}
	waitSignal(t, itemsSub)
	got, err := store.Items().GetByID(ctx, g.ID, "i1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ChildID != model.SharedChildID {
		t.Errorf("ChildID = %q, want %q", got.ChildID, model.SharedChildID)
	}

	added, err := svc.AddCategory(ctx, owner.ID, g.ID, CategoryInput{Name: "絵本", Emoji: "📚"})
	if err != nil {
		t.Fatalf("AddCategory() error = %v", err)
	}
	if added.Order != 8 {
		t.Errorf("new category order = %d, want 8", added.Order)
	}

	updated, err = svc.DeleteCategory(ctx, owner.ID, g.ID, tops.ID)
	if err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	if len(updated.Categories) != 8 {
		t.Fatalf("len(Categories) = %d, want 8", len(updated.Categories))
	}
	for i, c := range updated.Categories {
		if c.Order != i {
			t.Errorf("%s.Order = %d, want %d", c.Name, c.Order, i)
		}
	}
	if _, err := store.Items().GetByID(ctx, g.ID, "i1"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("item after DeleteCategory error = %v, want ErrNotFound", err)
	}

	ids := make([]string, len(updated.Categories))
	for i, c := range updated.Categories {
		ids[len(ids)-1-i] = c.ID
	}
	reordered, err := svc.ReorderCategories(ctx, owner.ID, g.ID, ids)
	if err != nil {
		t.Fatalf("ReorderCategories() error = %v", err)
	}
	for _, c := range reordered.Categories {
		if c.ID == ids[0] && c.Order != 0 {
			t.Errorf("first id order = %d, want 0", c.Order)
		}
	}
	if _, err := svc.ReorderCategories(ctx, owner.ID, g.ID, ids[:2]); !errors.Is(err, inventory.ErrInvalidOrder) {
		t.Errorf("ReorderCategories(partial) error = %v, want ErrInvalidOrder", err)
	}
}
