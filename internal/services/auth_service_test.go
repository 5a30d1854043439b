package services

import (
	"context"
	"testing"
	"time"

	"github.com/docsense/docsense/internal/httperr"
	"github.com/docsense/docsense/internal/models"
	"github.com/docsense/docsense/internal/store"
)

func newAuthFixture(t *testing.T) (*AuthService, *store.MemoryUserStore, *store.MemoryRoleStore) {
	t.Helper()
	users := store.NewMemoryUserStore()
	roles := store.NewMemoryRoleStore()
	for _, r := range []models.Role{
		{Name: "USER", DisplayName: "User", IsActive: true, IsSystem: true},
		{Name: "SUPERUSER", DisplayName: "Superuser", IsActive: true, IsSystem: true},
		{Name: "ARCHIVED", DisplayName: "Archived", IsActive: false},
	} {
		r := r
		if err := roles.Insert(context.Background(), &r); err != nil {
			t.Fatalf("seed role: %v", err)
		}
	}
	svc := NewAuthService(users, roles, "access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	return svc, users, roles
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Username: "frieda",
		Email:    "frieda@example.com",
		Phone:    "555-0101",
		Password: "hunter22",
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an unapproved account with the default role", func(t *testing.T) {
		svc, _, _ := newAuthFixture(t)
		user, err := svc.Register(ctx, validRegistration())
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		if user.IsApproved {
			t.Error("new account should start unapproved")
		}
		if user.Role != "USER" {
			t.Errorf("role = %q, want USER", user.Role)
		}
		if user.Password == "hunter22" {
			t.Error("password stored in plaintext")
		}
	})

	t.Run("validates the form fields", func(t *testing.T) {
		svc, _, _ := newAuthFixture(t)
		cases := []struct {
			name   string
			mutate func(*RegisterInput)
		}{
			{"short username", func(in *RegisterInput) { in.Username = "ab" }},
			{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }},
			{"missing phone", func(in *RegisterInput) { in.Phone = "" }},
			{"short password", func(in *RegisterInput) { in.Password = "12345" }},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				in := validRegistration()
				tc.mutate(&in)
				if _, err := svc.Register(ctx, in); httperr.KindOf(err) != httperr.KindValidation {
					t.Errorf("kind = %v, want validation", httperr.KindOf(err))
				}
			})
		}
	})

	t.Run("rejects an unknown or inactive role", func(t *testing.T) {
		svc, _, _ := newAuthFixture(t)
		in := validRegistration()
		in.Role = "WIZARD"
		if _, err := svc.Register(ctx, in); httperr.KindOf(err) != httperr.KindValidation {
			t.Errorf("unknown role: kind = %v, want validation", httperr.KindOf(err))
		}
		in.Role = "ARCHIVED"
		if _, err := svc.Register(ctx, in); httperr.KindOf(err) != httperr.KindValidation {
			t.Errorf("inactive role: kind = %v, want validation", httperr.KindOf(err))
		}
	})

	t.Run("conflicts on a duplicate email", func(t *testing.T) {
		svc, _, _ := newAuthFixture(t)
		if _, err := svc.Register(ctx, validRegistration()); err != nil {
			t.Fatalf("first Register: %v", err)
		}
		in := validRegistration()
		in.Username = "otherfrieda"
		if _, err := svc.Register(ctx, in); httperr.KindOf(err) != httperr.KindConflict {
			t.Errorf("kind = %v, want conflict", httperr.KindOf(err))
		}
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	register := func(t *testing.T, svc *AuthService, users *store.MemoryUserStore, approved bool) *models.User {
		t.Helper()
		user, err := svc.Register(ctx, validRegistration())
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		if approved {
			user.IsApproved = true
			if err := users.Update(ctx, user); err != nil {
				t.Fatalf("approve user: %v", err)
			}
		}
		return user
	}

	t.Run("returns a token pair for an approved account", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		register(t, svc, users, true)

		user, access, refresh, err := svc.Login(ctx, "frieda@example.com", "hunter22")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if access == "" || refresh == "" {
			t.Error("empty token pair")
		}
		if len(user.RefreshTokens) != 1 || user.RefreshTokens[0] != refresh {
			t.Error("refresh token not persisted on the user")
		}
	})

	t.Run("blocks an unapproved account before checking the password", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		register(t, svc, users, false)

		_, _, _, err := svc.Login(ctx, "frieda@example.com", "hunter22")
		if httperr.KindOf(err) != httperr.KindForbidden {
			t.Errorf("kind = %v, want forbidden", httperr.KindOf(err))
		}
	})

	t.Run("blocks a rejected account", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		user := register(t, svc, users, true)
		user.IsRejected = true
		if err := users.Update(ctx, user); err != nil {
			t.Fatalf("reject user: %v", err)
		}

		_, _, _, err := svc.Login(ctx, "frieda@example.com", "hunter22")
		if httperr.KindOf(err) != httperr.KindForbidden {
			t.Errorf("kind = %v, want forbidden", httperr.KindOf(err))
		}
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		register(t, svc, users, true)

		_, _, _, badPass := svc.Login(ctx, "frieda@example.com", "wrong")
		_, _, _, badEmail := svc.Login(ctx, "nobody@example.com", "hunter22")
		if httperr.KindOf(badPass) != httperr.KindUnauthenticated {
			t.Errorf("wrong password: kind = %v, want unauthenticated", httperr.KindOf(badPass))
		}
		if httperr.KindOf(badEmail) != httperr.KindUnauthenticated {
			t.Errorf("unknown email: kind = %v, want unauthenticated", httperr.KindOf(badEmail))
		}
		if badPass.Error() != badEmail.Error() {
			t.Error("messages should not reveal which credential was wrong")
		}
	})

	t.Run("evicts the oldest session past the cap", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		register(t, svc, users, true)

		var first string
		for i := 0; i < maxRefreshTokens+1; i++ {
			// The iat claim has one second granularity; distinct issue
			// times keep the tokens distinct.
			svc.now = func() time.Time { return time.Now().Add(time.Duration(i) * time.Second) }
			user, _, refresh, err := svc.Login(ctx, "frieda@example.com", "hunter22")
			if err != nil {
				t.Fatalf("Login %d: %v", i, err)
			}
			if i == 0 {
				first = refresh
			}
			if len(user.RefreshTokens) > maxRefreshTokens {
				t.Errorf("sessions = %d, cap is %d", len(user.RefreshTokens), maxRefreshTokens)
			}
		}

		if _, err := svc.Refresh(ctx, first); httperr.KindOf(err) != httperr.KindUnauthenticated {
			t.Errorf("evicted token: kind = %v, want unauthenticated", httperr.KindOf(err))
		}
	})
}

func TestRefreshAndLogout(t *testing.T) {
	ctx := context.Background()

	login := func(t *testing.T) (*AuthService, *store.MemoryUserStore, string) {
		t.Helper()
		svc, users, _ := newAuthFixture(t)
		user, err := svc.Register(ctx, validRegistration())
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		user.IsApproved = true
		if err := users.Update(ctx, user); err != nil {
			t.Fatalf("approve user: %v", err)
		}
		_, _, refresh, err := svc.Login(ctx, "frieda@example.com", "hunter22")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		return svc, users, refresh
	}

	t.Run("exchanges a stored refresh token", func(t *testing.T) {
		svc, _, refresh := login(t)
		access, err := svc.Refresh(ctx, refresh)
		if err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if access == "" {
			t.Error("empty access token")
		}
	})

	t.Run("rejects a missing or forged token", func(t *testing.T) {
		svc, _, _ := newAuthFixture(t)
		if _, err := svc.Refresh(ctx, ""); httperr.KindOf(err) != httperr.KindUnauthenticated {
			t.Errorf("empty: kind = %v, want unauthenticated", httperr.KindOf(err))
		}
		if _, err := svc.Refresh(ctx, "not.a.jwt"); httperr.KindOf(err) != httperr.KindUnauthenticated {
			t.Errorf("forged: kind = %v, want unauthenticated", httperr.KindOf(err))
		}
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		svc, _, refresh := login(t)
		if err := svc.Logout(ctx, refresh); err != nil {
			t.Fatalf("Logout: %v", err)
		}
		if _, err := svc.Refresh(ctx, refresh); httperr.KindOf(err) != httperr.KindUnauthenticated {
			t.Errorf("revoked token: kind = %v, want unauthenticated", httperr.KindOf(err))
		}
	})

	t.Run("logout of an unknown token is a no-op", func(t *testing.T) {
		svc, _, _ := newAuthFixture(t)
		if err := svc.Logout(ctx, "unknown"); err != nil {
			t.Errorf("Logout: %v", err)
		}
	})
}
