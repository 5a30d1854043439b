package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/docsense/docsense/internal/httperr"
	"github.com/docsense/docsense/internal/models"
	"github.com/docsense/docsense/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// maxRefreshTokens caps how many refresh tokens a user can hold at once;
// older sessions are evicted first.
const maxRefreshTokens = 5

// AuthService handles registration, login, and the access/refresh token pair.
// New accounts start unapproved and cannot log in until an admin approves
// them.
type AuthService struct {
	users store.UserStore
	roles store.RoleStore

	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewAuthService(users store.UserStore, roles store.RoleStore, accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		users:         users,
		roles:         roles,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// RegisterInput carries the signup form fields.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (in *RegisterInput) validate() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)

	switch {
	case len(in.Username) < 3 || len(in.Username) > 30:
		return httperr.Validation("Username must be between 3 and 30 characters")
	case in.Email == "" || !strings.Contains(in.Email, "@"):
		return httperr.Validation("Please enter a valid email address")
	case in.Phone == "":
		return httperr.Validation("Phone number is required")
	case len(in.Password) < 6:
		return httperr.Validation("Password must be at least 6 characters long")
	}
	return nil
}

// Register creates an unapproved account awaiting admin review.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	roleName := strings.ToUpper(strings.TrimSpace(in.Role))
	if roleName == "" {
		roleName = "USER"
	}
	role, err := s.roles.ByName(ctx, roleName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, httperr.Validation("Invalid role. Role must exist and be active.")
	}
	if err != nil {
		return nil, httperr.Internal("failed to look up role", err)
	}
	if !role.IsActive {
		return nil, httperr.Validation("Invalid role. Role must exist and be active.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, httperr.Internal("failed to hash password", err)
	}

	now := s.now().UTC()
	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		Phone:     in.Phone,
		Password:  string(hash),
		Role:      role.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, httperr.Conflict("User with this email already exists")
		}
		return nil, httperr.Internal("failed to create user", err)
	}
	return user, nil
}

// Login authenticates an approved account and returns the user plus a fresh
// token pair. The refresh token is persisted on the user so it can be
// revoked.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, string, error) {
	user, err := s.users.ByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", "", httperr.Unauthenticated("Invalid email or password")
	}
	if err != nil {
		return nil, "", "", httperr.Internal("failed to look up user", err)
	}

	if !user.IsApproved {
		return nil, "", "", httperr.Forbidden("Account awaiting approval")
	}
	if user.IsRejected {
		return nil, "", "", httperr.Forbidden("Account has been rejected")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, "", "", httperr.Unauthenticated("Invalid email or password")
	}

	accessToken, err := s.signAccessToken(user)
	if err != nil {
		return nil, "", "", httperr.Internal("failed to sign access token", err)
	}
	refreshToken, err := s.signRefreshToken(user)
	if err != nil {
		return nil, "", "", httperr.Internal("failed to sign refresh token", err)
	}

	user.RefreshTokens = append(user.RefreshTokens, refreshToken)
	if len(user.RefreshTokens) > maxRefreshTokens {
		user.RefreshTokens = user.RefreshTokens[len(user.RefreshTokens)-maxRefreshTokens:]
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, "", "", httperr.Internal("failed to persist refresh token", err)
	}

	return user, accessToken, refreshToken, nil
}

// Refresh exchanges a valid, stored refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", httperr.Unauthenticated("Refresh token not provided")
	}
	if _, err := s.parseToken(refreshToken, s.refreshSecret); err != nil {
		return "", httperr.Unauthenticated("Invalid refresh token")
	}

	user, err := s.users.ByRefreshToken(ctx, refreshToken)
	if errors.Is(err, store.ErrNotFound) {
		return "", httperr.Unauthenticated("Invalid refresh token")
	}
	if err != nil {
		return "", httperr.Internal("failed to look up refresh token", err)
	}

	if !user.CanAuthenticate() {
		return "", httperr.Forbidden("Account is not approved or has been rejected")
	}

	accessToken, err := s.signAccessToken(user)
	if err != nil {
		return "", httperr.Internal("failed to sign access token", err)
	}
	return accessToken, nil
}

// Logout revokes the refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	user, err := s.users.ByRefreshToken(ctx, refreshToken)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return httperr.Internal("failed to look up refresh token", err)
	}

	kept := user.RefreshTokens[:0]
	for _, t := range user.RefreshTokens {
		if t != refreshToken {
			kept = append(kept, t)
		}
	}
	user.RefreshTokens = kept
	if err := s.users.Update(ctx, user); err != nil {
		return httperr.Internal("failed to revoke refresh token", err)
	}
	return nil
}

// Me returns the profile behind an authenticated user id.
func (s *AuthService) Me(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.ByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, httperr.NotFound("User not found")
	}
	if err != nil {
		return nil, httperr.Internal("failed to look up user", err)
	}
	return user, nil
}

func (s *AuthService) signAccessToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": user.ID.Hex(),
		"email":   user.Email,
		"role":    user.Role,
		"iat":     now.Unix(),
		"exp":     now.Add(s.accessTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

func (s *AuthService) signRefreshToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": user.ID.Hex(),
		"email":   user.Email,
		"iat":     now.Unix(),
		"exp":     now.Add(s.refreshTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
}

func (s *AuthService) parseToken(tokenString string, secret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
