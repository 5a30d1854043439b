package services

import (
	"context"
	"errors"
	"strings"

	"github.com/docsense/docsense/internal/authz"
	"github.com/docsense/docsense/internal/httperr"
	"github.com/docsense/docsense/internal/models"
	"github.com/docsense/docsense/internal/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminService covers the account-review workflow and user management. The
// self-protection rules (no self role-change, no self-delete, last admin
// undeletable) are checked here, before any mutation.
type AdminService struct {
	users store.UserStore
	roles store.RoleStore
}

func NewAdminService(users store.UserStore, roles store.RoleStore) *AdminService {
	return &AdminService{users: users, roles: roles}
}

// PendingUsers lists accounts awaiting review, newest first.
func (s *AdminService) PendingUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.Pending(ctx)
	if err != nil {
		return nil, httperr.Internal("failed to list pending users", err)
	}
	return users, nil
}

// ApproveUser marks a pending account as approved. Rejected accounts must be
// toggled, not approved.
func (s *AdminService) ApproveUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsApproved {
		return nil, httperr.InvalidState("User is already approved")
	}
	if user.IsRejected {
		return nil, httperr.InvalidState("Cannot approve a rejected user")
	}

	user.IsApproved = true
	if err := s.users.Update(ctx, user); err != nil {
		return nil, httperr.Internal("failed to approve user", err)
	}
	return user, nil
}

// RejectUser marks a pending account as rejected.
func (s *AdminService) RejectUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsApproved {
		return nil, httperr.InvalidState("Cannot reject an already approved user")
	}
	if user.IsRejected {
		return nil, httperr.InvalidState("User is already rejected")
	}

	user.IsRejected = true
	if err := s.users.Update(ctx, user); err != nil {
		return nil, httperr.Internal("failed to reject user", err)
	}
	return user, nil
}

// ToggleApproval flips the approval flag; approving clears a prior rejection.
func (s *AdminService) ToggleApproval(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.IsApproved = !user.IsApproved
	if user.IsApproved {
		user.IsRejected = false
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, httperr.Internal("failed to update user", err)
	}
	return user, nil
}

// UserStats summarizes the account population for the admin dashboard.
type UserStats struct {
	Total      int `json:"total"`
	Approved   int `json:"approved"`
	Pending    int `json:"pending"`
	Rejected   int `json:"rejected"`
	Superusers int `json:"superusers"`
}

// AllUsers lists every account with summary statistics.
func (s *AdminService) AllUsers(ctx context.Context) ([]models.User, UserStats, error) {
	users, err := s.users.All(ctx)
	if err != nil {
		return nil, UserStats{}, httperr.Internal("failed to list users", err)
	}

	stats := UserStats{Total: len(users)}
	for _, u := range users {
		switch {
		case u.IsRejected:
			stats.Rejected++
		case u.IsApproved:
			stats.Approved++
		default:
			stats.Pending++
		}
		if authz.IsAdmin(u.Role) {
			stats.Superusers++
		}
	}
	return users, stats, nil
}

// UpdateUserRole reassigns a user to an existing active role. Admins may not
// change their own role.
func (s *AdminService) UpdateUserRole(ctx context.Context, adminID, userID primitive.ObjectID, roleName string) (*models.User, error) {
	if adminID == userID {
		return nil, httperr.Forbidden("Cannot change your own role")
	}

	role, err := s.roles.ByName(ctx, strings.ToUpper(strings.TrimSpace(roleName)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, httperr.Validation("Invalid role. Role must exist and be active.")
	}
	if err != nil {
		return nil, httperr.Internal("failed to look up role", err)
	}
	if !role.IsActive {
		return nil, httperr.Validation("Invalid role. Role must exist and be active.")
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Role = role.Name
	if err := s.users.Update(ctx, user); err != nil {
		return nil, httperr.Internal("failed to update user role", err)
	}
	return user, nil
}

// DeleteUser removes an account permanently. An admin cannot delete
// themselves, and the last remaining admin account is protected.
func (s *AdminService) DeleteUser(ctx context.Context, adminID, userID primitive.ObjectID) error {
	if adminID == userID {
		return httperr.Forbidden("Cannot delete your own account")
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	if authz.IsAdmin(user.Role) {
		count, err := s.users.CountByRole(ctx, user.Role)
		if err != nil {
			return httperr.Internal("failed to count admin accounts", err)
		}
		if count <= 1 {
			return httperr.InvalidState("Cannot delete the last superuser account")
		}
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return httperr.Internal("failed to delete user", err)
	}
	return nil
}

// UpdateProfile lets a user change their own display fields.
func (s *AdminService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, username, phone string) (*models.User, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if username = strings.TrimSpace(username); username != "" {
		if len(username) < 3 || len(username) > 30 {
			return nil, httperr.Validation("Username must be between 3 and 30 characters")
		}
		user.Username = username
	}
	if phone = strings.TrimSpace(phone); phone != "" {
		user.Phone = phone
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, httperr.Internal("failed to update profile", err)
	}
	return user, nil
}

func (s *AdminService) getUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.ByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, httperr.NotFound("User not found")
	}
	if err != nil {
		return nil, httperr.Internal("failed to look up user", err)
	}
	return user, nil
}
