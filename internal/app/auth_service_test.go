package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"parkgate/internal/adapter/memory"
	"parkgate/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

type mockUserRepo struct {
	getByUsernameFn func(ctx context.Context, username string) (*domain.User, error)
	listFn          func(ctx context.Context) ([]domain.User, error)
	createFn        func(ctx context.Context, u domain.User) error
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]domain.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, u domain.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	return nil
}

func userRepoWith(users ...domain.User) *mockUserRepo {
	return &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			for _, u := range users {
				if u.Username == username {
					found := u
					return &found, nil
				}
			}
			return nil, nil
		},
		listFn: func(ctx context.Context) ([]domain.User, error) {
			return users, nil
		},
	}
}

func bcryptHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(hash)
}

func TestAuthService_Login_Success(t *testing.T) {
	ctx := context.Background()
	users := userRepoWith(domain.User{Username: "admin", Role: domain.RoleAdmin, AuthSecret: bcryptHash(t, "testpass123")})
	sessions := memory.NewSessionRepo()

	svc := NewAuthService(users, sessions)
	token, role, err := svc.Login(ctx, "admin", "testpass123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token == "" {
		t.Error("expected token, got empty string")
	}
	if role != domain.RoleAdmin {
		t.Errorf("expected admin role, got %s", role)
	}

	p, err := svc.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.Username != "admin" || p.Role != domain.RoleAdmin {
		t.Errorf("unexpected principal %+v", p)
	}
}

func TestAuthService_Login_FreshTokens(t *testing.T) {
	ctx := context.Background()
	users := userRepoWith(domain.User{Username: "gate1", Role: domain.RoleBot, AuthSecret: "shared-key"})
	svc := NewAuthService(users, memory.NewSessionRepo())

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		token, _, err := svc.Login(ctx, "gate1", "shared-key")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = true
	}
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	legacy := sha256.Sum256([]byte("legacypass"))
	users := userRepoWith(
		domain.User{Username: "alice", Role: domain.RoleUser, AuthSecret: bcryptHash(t, "correctpass")},
		domain.User{Username: "gate1", Role: domain.RoleBot, AuthSecret: "shared-key"},
		domain.User{Username: "old", Role: domain.RoleUser, AuthSecret: hex.EncodeToString(legacy[:])},
	)
	svc := NewAuthService(users, memory.NewSessionRepo())

	tests := []struct {
		name, user, pass string
	}{
		{"wrong password", "alice", "wrongpass"},
		{"unknown user", "mallory", "x"},
		{"bot wrong key", "gate1", "shared-kez"},
		{"bot digest is not a key", "gate1", hex.EncodeToString(legacy[:])},
		{"legacy digest wrong password", "old", "nope"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Login(ctx, tc.user, tc.pass)
			if err != ErrInvalidCredentials {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}

	if _, _, err := svc.Login(ctx, "old", "legacypass"); err != nil {
		t.Errorf("legacy digest should verify, got %v", err)
	}
}

func TestAuthService_Login_RepoError(t *testing.T) {
	boom := errors.New("disk gone")
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return nil, boom
		},
	}
	svc := NewAuthService(users, memory.NewSessionRepo())
	if _, _, err := svc.Login(context.Background(), "a", "b"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped repo error, got %v", err)
	}
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	users := userRepoWith(domain.User{Username: "gate1", Role: domain.RoleBot, AuthSecret: "k"})
	sessions := memory.NewSessionRepo()
	svc := NewAuthService(users, sessions)

	token, _, err := svc.Login(ctx, "gate1", "k")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("second Logout should be a no-op, got %v", err)
	}
	if _, err := svc.Validate(ctx, token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.Validate(ctx, ""); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestAuthService_AuthenticateBotKey(t *testing.T) {
	ctx := context.Background()
	users := userRepoWith(
		domain.User{Username: "admin", Role: domain.RoleAdmin, AuthSecret: "not-a-bot"},
		domain.User{Username: "gate1", Role: domain.RoleBot, AuthSecret: "shared-key"},
	)
	svc := NewAuthService(users, memory.NewSessionRepo())

	p, err := svc.AuthenticateBotKey(ctx, "shared-key")
	if err != nil {
		t.Fatalf("AuthenticateBotKey: %v", err)
	}
	if p.Username != "gate1" || p.Role != domain.RoleBot {
		t.Errorf("unexpected principal %+v", p)
	}

	// A human secret never authenticates as a bot key.
	if _, err := svc.AuthenticateBotKey(ctx, "not-a-bot"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.AuthenticateBotKey(ctx, ""); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthService_LoginWithUser(t *testing.T) {
	ctx := context.Background()
	users := userRepoWith(
		domain.User{Username: "ops@example.com", Role: domain.RoleUser, AuthSecret: "x"},
		domain.User{Username: "gate1", Role: domain.RoleBot, AuthSecret: "k"},
	)
	svc := NewAuthService(users, memory.NewSessionRepo())

	token, role, err := svc.LoginWithUser(ctx, "ops@example.com")
	if err != nil {
		t.Fatalf("LoginWithUser: %v", err)
	}
	if token == "" || role != domain.RoleUser {
		t.Errorf("unexpected token=%q role=%s", token, role)
	}

	if _, _, err := svc.LoginWithUser(ctx, "stranger@example.com"); err != ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, _, err := svc.LoginWithUser(ctx, "gate1"); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestAuthService_Authorize(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, memory.NewSessionRepo())

	if err := svc.Authorize(domain.Principal{Role: domain.RoleBot}, domain.OpEntry); err != nil {
		t.Errorf("bot entry: %v", err)
	}
	if err := svc.Authorize(domain.Principal{Role: domain.RoleBot}, domain.OpList); !errors.Is(err, ErrForbidden) {
		t.Errorf("bot list: expected ErrForbidden, got %v", err)
	}
	if err := svc.Authorize(domain.Principal{Role: domain.RoleUser}, domain.OpBlacklist); !errors.Is(err, ErrForbidden) {
		t.Errorf("user blacklist: expected ErrForbidden, got %v", err)
	}
}

func TestAuthService_CreateUser(t *testing.T) {
	ctx := context.Background()
	var created []domain.User
	users := &mockUserRepo{
		createFn: func(ctx context.Context, u domain.User) error {
			created = append(created, u)
			return nil
		},
	}
	svc := NewAuthService(users, memory.NewSessionRepo())

	if err := svc.CreateUser(ctx, "alice", domain.RoleUser, "password123"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := svc.CreateUser(ctx, "gate1", domain.RoleBot, "shared-key"); err != nil {
		t.Fatalf("CreateUser bot: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 users, got %d", len(created))
	}
	if bcrypt.CompareHashAndPassword([]byte(created[0].AuthSecret), []byte("password123")) != nil {
		t.Error("human secret should be bcrypt hashed")
	}
	if created[1].AuthSecret != "shared-key" {
		t.Error("bot key should be stored verbatim")
	}

	if err := svc.CreateUser(ctx, "x", domain.Role("root"), "p"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad role, got %v", err)
	}
	if err := svc.CreateUser(ctx, " ", domain.RoleUser, "p"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank username, got %v", err)
	}
}

func TestConstantTimeCompare(t *testing.T) {
	if !ConstantTimeCompare("abc", "abc") {
		t.Error("equal strings should match")
	}
	if ConstantTimeCompare("abc", "abd") || ConstantTimeCompare("abc", "abcd") {
		t.Error("different strings should not match")
	}
}
