package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Username      string             `bson:"username" json:"username"`
	Email         string             `bson:"email" json:"email"`
	Phone         string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Password      string             `bson:"password,omitempty" json:"-"`
	Role          string             `bson:"role" json:"role"`
	IsApproved    bool               `bson:"is_approved" json:"is_approved"`
	IsRejected    bool               `bson:"is_rejected" json:"is_rejected"`
	RefreshTokens []string           `bson:"refresh_tokens,omitempty" json:"-"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// CanAuthenticate reports whether the account has passed admin review.
// Unapproved and rejected accounts are locked out of every protected route.
func (u *User) CanAuthenticate() bool {
	return u.IsApproved && !u.IsRejected
}
