// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"parkgate/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials indicates that the provided username or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidToken indicates that the token is unknown or has been revoked.
	ErrInvalidToken = errors.New("invalid token")
	// ErrForbidden indicates that the caller's role may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// AuthService issues, validates and revokes session tokens.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	now      func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		now:      time.Now,
	}
}

// Login verifies the credentials and starts a session.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, domain.Role, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", "", fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || !verifySecret(user, password) {
		return "", "", ErrInvalidCredentials
	}

	token, err := s.issue(ctx, user)
	if err != nil {
		return "", "", err
	}
	return token, user.Role, nil
}

// LoginWithUser creates a session for an already authenticated user (e.g. via SSO).
// Accounts are never provisioned here and bots cannot log in this way.
func (s *AuthService) LoginWithUser(ctx context.Context, username string) (string, domain.Role, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", "", fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return "", "", ErrUserNotFound
	}
	if user.Role == domain.RoleBot {
		return "", "", fmt.Errorf("%w: bot accounts cannot use single sign-on", ErrForbidden)
	}

	token, err := s.issue(ctx, user)
	if err != nil {
		return "", "", err
	}
	return token, user.Role, nil
}

// Logout invalidates a session. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// Validate resolves a token to the identity that owns it.
func (s *AuthService) Validate(ctx context.Context, token string) (domain.Principal, error) {
	if token == "" {
		return domain.Principal{}, ErrInvalidToken
	}
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("lookup session: %w", err)
	}
	if session == nil {
		return domain.Principal{}, ErrInvalidToken
	}
	return domain.Principal{Username: session.Username, Role: session.Role}, nil
}

// AuthenticateBotKey resolves a bot's shared key to its identity, for
// recognition clients that send the key instead of a session token.
func (s *AuthService) AuthenticateBotKey(ctx context.Context, key string) (domain.Principal, error) {
	if key == "" {
		return domain.Principal{}, ErrInvalidToken
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		if u.Role == domain.RoleBot && u.AuthSecret != "" && ConstantTimeCompare(u.AuthSecret, key) {
			return domain.Principal{Username: u.Username, Role: u.Role}, nil
		}
	}
	return domain.Principal{}, ErrInvalidToken
}

// Authorize checks the permission table for p.
func (s *AuthService) Authorize(p domain.Principal, op domain.Operation) error {
	if !p.Role.Can(op) {
		return fmt.Errorf("%w: role %q may not %s", ErrForbidden, p.Role, op)
	}
	return nil
}

// CreateUser stores a new account. Human secrets are hashed and bot keys
// are kept verbatim.
func (s *AuthService) CreateUser(ctx context.Context, username string, role domain.Role, secret string) error {
	username = strings.TrimSpace(username)
	if username == "" || secret == "" {
		return fmt.Errorf("%w: username and secret are required", domain.ErrInvalidInput)
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return err
	}

	stored := secret
	if role != domain.RoleBot {
		hash, err := HashPassword(secret)
		if err != nil {
			return err
		}
		stored = hash
	}
	return s.users.Create(ctx, domain.User{Username: username, Role: role, AuthSecret: stored})
}

// HashPassword returns the bcrypt hash stored for human accounts.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *AuthService) issue(ctx context.Context, user *domain.User) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	session := domain.Session{
		Token:     token,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: s.now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", err
	}
	return token, nil
}

// verifySecret compares bot keys verbatim and human passwords by hash.
// Hex SHA-256 digests from older credential files are still accepted.
func verifySecret(u *domain.User, secret string) bool {
	if u.AuthSecret == "" {
		return false
	}
	if u.Role == domain.RoleBot {
		return ConstantTimeCompare(u.AuthSecret, secret)
	}
	if isSHA256Hex(u.AuthSecret) {
		sum := sha256.Sum256([]byte(secret))
		return ConstantTimeCompare(strings.ToLower(u.AuthSecret), hex.EncodeToString(sum[:]))
	}
	return bcrypt.CompareHashAndPassword([]byte(u.AuthSecret), []byte(secret)) == nil
}

func isSHA256Hex(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
