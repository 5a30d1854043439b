package services

import (
	"context"
	"errors"
	"time"

	"github.com/docsense/docsense/internal/models"
	"github.com/docsense/docsense/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// SeedSuperuser creates the initial administrative account when no account
// exists for the given email. It is a no-op when email is empty, so
// deployments can opt out.
func SeedSuperuser(ctx context.Context, users store.UserStore, email, password string) error {
	if email == "" {
		return nil
	}
	if _, err := users.ByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	user := &models.User{
		Username:   "superuser",
		Email:      email,
		Password:   string(hash),
		Role:       "SUPERUSER",
		IsApproved: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = users.Insert(ctx, user)
	if errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	return err
}
