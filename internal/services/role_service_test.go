package services

import (
	"context"
	"testing"

	"github.com/docsense/docsense/internal/httperr"
	"github.com/docsense/docsense/internal/models"
	"github.com/docsense/docsense/internal/store"
)

func newRoleFixture(t *testing.T) (*RoleService, *store.MemoryRoleStore, *store.MemoryUserStore) {
	t.Helper()
	roles := store.NewMemoryRoleStore()
	users := store.NewMemoryUserStore()
	svc := NewRoleService(roles, users)
	if err := svc.SeedSystemRoles(context.Background()); err != nil {
		t.Fatalf("SeedSystemRoles: %v", err)
	}
	return svc, roles, users
}

func TestSeedSystemRoles(t *testing.T) {
	svc, roles, _ := newRoleFixture(t)
	ctx := context.Background()

	for _, name := range []string{"USER", "SUPERUSER"} {
		r, err := roles.ByName(ctx, name)
		if err != nil {
			t.Fatalf("role %s not seeded: %v", name, err)
		}
		if !r.IsSystem || !r.IsActive {
			t.Errorf("%s: system=%v active=%v, want both true", name, r.IsSystem, r.IsActive)
		}
	}

	// Seeding again must not duplicate or fail.
	if err := svc.SeedSystemRoles(ctx); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	all, err := roles.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("roles = %d, want 2", len(all))
	}
}

func TestCreateRole(t *testing.T) {
	ctx := context.Background()

	t.Run("uppercases the name and defaults permissions", func(t *testing.T) {
		svc, _, _ := newRoleFixture(t)
		role, err := svc.Create(ctx, CreateRoleInput{Name: "editor", DisplayName: "Editor"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if role.Name != "EDITOR" {
			t.Errorf("name = %q, want EDITOR", role.Name)
		}
		if len(role.Permissions) != 1 || role.Permissions[0] != models.PermissionRead {
			t.Errorf("permissions = %v, want [read]", role.Permissions)
		}
		if !role.IsActive || role.IsSystem {
			t.Errorf("active=%v system=%v, want active non-system", role.IsActive, role.IsSystem)
		}
	})

	t.Run("validates the form", func(t *testing.T) {
		svc, _, _ := newRoleFixture(t)
		cases := []struct {
			name string
			in   CreateRoleInput
		}{
			{"short name", CreateRoleInput{Name: "A", DisplayName: "Alpha"}},
			{"short display name", CreateRoleInput{Name: "ALPHA", DisplayName: "A"}},
			{"unknown permission", CreateRoleInput{Name: "ALPHA", DisplayName: "Alpha", Permissions: []string{"fly"}}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if _, err := svc.Create(ctx, tc.in); httperr.KindOf(err) != httperr.KindValidation {
					t.Errorf("kind = %v, want validation", httperr.KindOf(err))
				}
			})
		}
	})

	t.Run("conflicts on a duplicate name regardless of case", func(t *testing.T) {
		svc, _, _ := newRoleFixture(t)
		if _, err := svc.Create(ctx, CreateRoleInput{Name: "user", DisplayName: "Duplicate"}); httperr.KindOf(err) != httperr.KindConflict {
			t.Errorf("kind = %v, want conflict", httperr.KindOf(err))
		}
	})
}

func TestUpdateRole(t *testing.T) {
	ctx := context.Background()

	t.Run("applies only the provided fields", func(t *testing.T) {
		svc, _, _ := newRoleFixture(t)
		role, err := svc.Create(ctx, CreateRoleInput{Name: "EDITOR", DisplayName: "Editor", Description: "edits things"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		name := "Content Editor"
		got, err := svc.Update(ctx, role.ID, UpdateRoleInput{DisplayName: &name})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if got.DisplayName != "Content Editor" {
			t.Errorf("displayName = %q", got.DisplayName)
		}
		if got.Description != "edits things" {
			t.Errorf("description = %q, want unchanged", got.Description)
		}
	})

	t.Run("system roles are immutable", func(t *testing.T) {
		svc, roles, _ := newRoleFixture(t)
		system, err := roles.ByName(ctx, "USER")
		if err != nil {
			t.Fatalf("ByName: %v", err)
		}
		name := "Renamed"
		if _, err := svc.Update(ctx, system.ID, UpdateRoleInput{DisplayName: &name}); httperr.KindOf(err) != httperr.KindInvalidState {
			t.Errorf("kind = %v, want invalid state", httperr.KindOf(err))
		}
	})
}

func TestDeleteRole(t *testing.T) {
	ctx := context.Background()

	t.Run("removes an unused custom role", func(t *testing.T) {
		svc, _, _ := newRoleFixture(t)
		role, err := svc.Create(ctx, CreateRoleInput{Name: "EDITOR", DisplayName: "Editor"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := svc.Delete(ctx, role.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	})

	t.Run("system roles cannot be deleted", func(t *testing.T) {
		svc, roles, _ := newRoleFixture(t)
		system, err := roles.ByName(ctx, "SUPERUSER")
		if err != nil {
			t.Fatalf("ByName: %v", err)
		}
		if err := svc.Delete(ctx, system.ID); httperr.KindOf(err) != httperr.KindInvalidState {
			t.Errorf("kind = %v, want invalid state", httperr.KindOf(err))
		}
	})

	t.Run("roles with assigned users cannot be deleted", func(t *testing.T) {
		svc, _, users := newRoleFixture(t)
		role, err := svc.Create(ctx, CreateRoleInput{Name: "EDITOR", DisplayName: "Editor"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		u := &models.User{Username: "holder", Email: "holder@example.com", Role: "EDITOR"}
		if err := users.Insert(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
		if err := svc.Delete(ctx, role.ID); httperr.KindOf(err) != httperr.KindInvalidState {
			t.Errorf("kind = %v, want invalid state", httperr.KindOf(err))
		}
	})
}

func TestRoleStats(t *testing.T) {
	svc, _, users := newRoleFixture(t)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com"} {
		if err := users.Insert(ctx, &models.User{Username: email, Email: email, Role: "USER"}); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	if err := users.Insert(ctx, &models.User{Username: "root", Email: "root@example.com", Role: "SUPERUSER"}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	counts := map[string]int64{}
	for _, rc := range stats {
		counts[rc.Name] = rc.UserCount
	}
	if counts["USER"] != 2 {
		t.Errorf("USER count = %d, want 2", counts["USER"])
	}
	if counts["SUPERUSER"] != 1 {
		t.Errorf("SUPERUSER count = %d, want 1", counts["SUPERUSER"])
	}
}
