package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Permission values a role may carry.
const (
	PermissionRead     = "read"
	PermissionWrite    = "write"
	PermissionDelete   = "delete"
	PermissionAdmin    = "admin"
	PermissionModerate = "moderate"
)

// ValidPermission reports whether p is one of the known permission values.
func ValidPermission(p string) bool {
	switch p {
	case PermissionRead, PermissionWrite, PermissionDelete, PermissionAdmin, PermissionModerate:
		return true
	}
	return false
}

type Role struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name        string             `bson:"name" json:"name"`
	DisplayName string             `bson:"display_name" json:"display_name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Permissions []string           `bson:"permissions" json:"permissions"`
	IsActive    bool               `bson:"is_active" json:"is_active"`
	// System roles are seeded at startup and cannot be modified or deleted.
	IsSystem  bool      `bson:"is_system" json:"is_system"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CanBeDeleted reports whether the role is eligible for deletion given the
// number of users currently assigned to it. User counts are computed at read
// time, never cached on the role document.
func (r *Role) CanBeDeleted(userCount int64) bool {
	return !r.IsSystem && userCount == 0
}
