package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/docsense/docsense/internal/httperr"
	"github.com/docsense/docsense/internal/models"
	"github.com/docsense/docsense/internal/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoleService manages the role catalog. User counts are always computed from
// the users collection at read time.
type RoleService struct {
	roles store.RoleStore
	users store.UserStore
	now   func() time.Time
}

func NewRoleService(roles store.RoleStore, users store.UserStore) *RoleService {
	return &RoleService{roles: roles, users: users, now: time.Now}
}

// RoleWithCount pairs a role with its live user count.
type RoleWithCount struct {
	models.Role
	UserCount int64 `json:"user_count"`
}

// All lists every role with its user count.
func (s *RoleService) All(ctx context.Context) ([]RoleWithCount, error) {
	roles, err := s.roles.All(ctx)
	if err != nil {
		return nil, httperr.Internal("failed to list roles", err)
	}
	return s.withCounts(ctx, roles)
}

// Active lists the roles open for registration.
func (s *RoleService) Active(ctx context.Context) ([]models.Role, error) {
	roles, err := s.roles.Active(ctx)
	if err != nil {
		return nil, httperr.Internal("failed to list active roles", err)
	}
	return roles, nil
}

// Stats returns the per-role user counts for the admin dashboard.
func (s *RoleService) Stats(ctx context.Context) ([]RoleWithCount, error) {
	return s.All(ctx)
}

func (s *RoleService) withCounts(ctx context.Context, roles []models.Role) ([]RoleWithCount, error) {
	out := make([]RoleWithCount, 0, len(roles))
	for _, r := range roles {
		count, err := s.users.CountByRole(ctx, r.Name)
		if err != nil {
			return nil, httperr.Internal("failed to count role users", err)
		}
		out = append(out, RoleWithCount{Role: r, UserCount: count})
	}
	return out, nil
}

// CreateRoleInput carries the role creation form.
type CreateRoleInput struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

func (in *CreateRoleInput) validate() error {
	in.Name = strings.ToUpper(strings.TrimSpace(in.Name))
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Description = strings.TrimSpace(in.Description)

	switch {
	case len(in.Name) < 2 || len(in.Name) > 20:
		return httperr.Validation("Role name must be between 2 and 20 characters")
	case len(in.DisplayName) < 2 || len(in.DisplayName) > 50:
		return httperr.Validation("Display name must be between 2 and 50 characters")
	case len(in.Description) > 200:
		return httperr.Validation("Description cannot exceed 200 characters")
	}
	for _, p := range in.Permissions {
		if !models.ValidPermission(p) {
			return httperr.Validation("Invalid permission type")
		}
	}
	return nil
}

// Create adds a new role. Names are stored uppercase and must be unique
// case-insensitively.
func (s *RoleService) Create(ctx context.Context, in CreateRoleInput) (*models.Role, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	permissions := in.Permissions
	if len(permissions) == 0 {
		permissions = []string{models.PermissionRead}
	}

	now := s.now().UTC()
	role := &models.Role{
		Name:        in.Name,
		DisplayName: in.DisplayName,
		Description: in.Description,
		Permissions: permissions,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.roles.Insert(ctx, role); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, httperr.Conflict("Role with this name already exists")
		}
		return nil, httperr.Internal("failed to create role", err)
	}
	return role, nil
}

// UpdateRoleInput carries the mutable role fields; nil means unchanged.
type UpdateRoleInput struct {
	DisplayName *string   `json:"displayName"`
	Description *string   `json:"description"`
	Permissions *[]string `json:"permissions"`
	IsActive    *bool     `json:"isActive"`
}

// Update modifies a non-system role.
func (s *RoleService) Update(ctx context.Context, roleID primitive.ObjectID, in UpdateRoleInput) (*models.Role, error) {
	role, err := s.getRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, httperr.InvalidState("Cannot modify system roles")
	}

	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if len(name) < 2 || len(name) > 50 {
			return nil, httperr.Validation("Display name must be between 2 and 50 characters")
		}
		role.DisplayName = name
	}
	if in.Description != nil {
		if len(*in.Description) > 200 {
			return nil, httperr.Validation("Description cannot exceed 200 characters")
		}
		role.Description = strings.TrimSpace(*in.Description)
	}
	if in.Permissions != nil {
		for _, p := range *in.Permissions {
			if !models.ValidPermission(p) {
				return nil, httperr.Validation("Invalid permission type")
			}
		}
		role.Permissions = *in.Permissions
	}
	if in.IsActive != nil {
		role.IsActive = *in.IsActive
	}

	if err := s.roles.Update(ctx, role); err != nil {
		return nil, httperr.Internal("failed to update role", err)
	}
	return role, nil
}

// Delete removes a role that is not a system role and has no assigned users.
func (s *RoleService) Delete(ctx context.Context, roleID primitive.ObjectID) error {
	role, err := s.getRole(ctx, roleID)
	if err != nil {
		return err
	}

	count, err := s.users.CountByRole(ctx, role.Name)
	if err != nil {
		return httperr.Internal("failed to count role users", err)
	}
	if !role.CanBeDeleted(count) {
		if role.IsSystem {
			return httperr.InvalidState("Cannot delete system roles")
		}
		return httperr.InvalidState("Cannot delete role with existing users. Please reassign or remove all users with this role first.")
	}

	if err := s.roles.Delete(ctx, roleID); err != nil {
		return httperr.Internal("failed to delete role", err)
	}
	return nil
}

func (s *RoleService) getRole(ctx context.Context, id primitive.ObjectID) (*models.Role, error) {
	role, err := s.roles.ByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, httperr.NotFound("Role not found")
	}
	if err != nil {
		return nil, httperr.Internal("failed to look up role", err)
	}
	return role, nil
}

// SeedSystemRoles creates the built-in USER and SUPERUSER roles when absent.
func (s *RoleService) SeedSystemRoles(ctx context.Context) error {
	seeds := []models.Role{
		{
			Name:        "USER",
			DisplayName: "User",
			Description: "Standard account with access to documents",
			Permissions: []string{models.PermissionRead, models.PermissionWrite},
			IsActive:    true,
			IsSystem:    true,
		},
		{
			Name:        "SUPERUSER",
			DisplayName: "Superuser",
			Description: "Administrative account managing users, roles and requests",
			Permissions: []string{models.PermissionRead, models.PermissionWrite, models.PermissionDelete, models.PermissionAdmin, models.PermissionModerate},
			IsActive:    true,
			IsSystem:    true,
		},
	}

	now := s.now().UTC()
	for i := range seeds {
		if _, err := s.roles.ByName(ctx, seeds[i].Name); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		seeds[i].CreatedAt = now
		seeds[i].UpdatedAt = now
		if err := s.roles.Insert(ctx, &seeds[i]); err != nil && !errors.Is(err, store.ErrDuplicate) {
			return err
		}
	}
	return nil
}
