package rbac

import (
	"context"
	"testing"

	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/store"
)

func countRows(t *testing.T, st *store.Store, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := st.DB().Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestInitializeBaselineIsIdempotent(t *testing.T) {
	st := setupTestStore(t)
	seeder := NewSeeder(st, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := seeder.InitializeBaseline(ctx); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	checks := []struct {
		model interface{}
		want  int64
	}{
		{&models.Action{}, 4},
		{&models.Resource{}, 3},
		{&models.Role{}, 3},
		{&models.Permission{}, 12},
		{&models.RolePermission{}, 12},
	}
	for _, c := range checks {
		if got := countRows(t, st, c.model); got != c.want {
			t.Errorf("%T rows = %d, want %d", c.model, got, c.want)
		}
	}

	userRole, err := st.FindRoleByName(ctx, "User")
	if err != nil {
		t.Fatalf("find User role: %v", err)
	}
	if !userRole.IsDefault {
		t.Error("User role should be the default role")
	}
}

func TestAdministratorHoldsEveryPermission(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	// Resources added before seeding are covered by the cross product.
	if err := st.CreateResource(ctx, &models.Resource{Name: "Reports", Endpoint: "/api/reports/"}); err != nil {
		t.Fatalf("create resource: %v", err)
	}
	if err := NewSeeder(st, nil).InitializeBaseline(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resources, _ := st.ListResources(ctx)
	actions, _ := st.ListActions(ctx)
	admin, err := st.FindRoleByName(ctx, AdministratorRole)
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}

	held := make(map[[2]uint]bool)
	perms, _ := st.ListPermissions(ctx)
	byID := make(map[uint]models.Permission, len(perms))
	for _, p := range perms {
		byID[p.ID] = p
	}
	for _, id := range admin.PermissionIDs() {
		p := byID[id]
		held[[2]uint{p.ResourceID, p.ActionID}] = true
	}

	for _, r := range resources {
		for _, a := range actions {
			if !held[[2]uint{r.ID, a.ID}] {
				t.Errorf("Administrator missing %s %s", a.Code, r.Endpoint)
			}
		}
	}
	if len(admin.Permissions) != len(resources)*len(actions) {
		t.Errorf("Administrator holds %d permissions, want %d", len(admin.Permissions), len(resources)*len(actions))
	}
}

func TestInitializeBaselineKeepsExistingRows(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	custom := &models.Action{Name: "Read", Code: models.ActionView, Description: "custom"}
	if err := st.CreateAction(ctx, custom); err != nil {
		t.Fatalf("create action: %v", err)
	}
	if err := NewSeeder(st, nil).InitializeBaseline(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := st.GetAction(ctx, custom.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Read" || got.Description != "custom" {
		t.Errorf("existing action overwritten: %+v", got)
	}
}

func TestInitializeBaselineAfterRename(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()

	// Move the baseline rows to new natural keys, keeping their names
	if err := st.DB().Model(&models.Resource{}).Where("endpoint = ?", "/api/users/").
		Update("endpoint", "/api/v2/users/").Error; err != nil {
		t.Fatalf("rename resource: %v", err)
	}
	if err := st.DB().Model(&models.Action{}).Where("code = ?", models.ActionDelete).
		Update("code", "remove").Error; err != nil {
		t.Fatalf("rename action: %v", err)
	}
	if err := st.CreateResource(ctx, &models.Resource{Name: "Reports", Endpoint: "/api/reports/"}); err != nil {
		t.Fatalf("create resource: %v", err)
	}

	if err := NewSeeder(st, nil).InitializeBaseline(ctx); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	if got := countRows(t, st, &models.Resource{}); got != 4 {
		t.Errorf("resources = %d, want 4", got)
	}
	if got := countRows(t, st, &models.Action{}); got != 4 {
		t.Errorf("actions = %d, want 4", got)
	}
	var recreated int64
	st.DB().Model(&models.Resource{}).Where("endpoint = ?", "/api/users/").Count(&recreated)
	if recreated != 0 {
		t.Error("renamed baseline resource was recreated")
	}

	admin, err := st.FindRoleByName(ctx, AdministratorRole)
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	if len(admin.Permissions) != 16 {
		t.Errorf("Administrator holds %d permissions, want 16", len(admin.Permissions))
	}
}
