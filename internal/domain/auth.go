// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"fmt"
	"time"
)

// Role is the privilege class of an account.
type Role string

// Known roles.
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleBot   Role = "bot"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleUser, RoleBot:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// User is a stored credential. AuthSecret holds a password hash for human
// roles and the verbatim shared key for bots.
type User struct {
	Username   string `json:"username"`
	Role       Role   `json:"role"`
	AuthSecret string `json:"auth"`
}

// Session represents an active login.
type Session struct {
	Token     string
	Username  string
	Role      Role
	CreatedAt time.Time
}

// Principal is the identity a validated token resolves to.
type Principal struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// UserRepository defines the port for credential storage.
type UserRepository interface {
	// GetByUsername returns nil, nil when the user does not exist.
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, u User) error
}

// SessionRepository defines the port for the token table.
type SessionRepository interface {
	Create(ctx context.Context, s Session) error
	// GetByToken returns nil, nil when the token is unknown.
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

// Operation names a guarded action.
type Operation string

// Guarded operations.
const (
	OpEntry       Operation = "entry"
	OpExit        Operation = "exit"
	OpQuery       Operation = "query"
	OpList        Operation = "list"
	OpMonthly     Operation = "monthly"
	OpBlacklist   Operation = "blacklist"
	OpUnblacklist Operation = "unblacklist"
)

var permissions = map[Operation][]Role{
	OpEntry:       {RoleAdmin, RoleBot},
	OpExit:        {RoleAdmin, RoleBot},
	OpQuery:       {RoleAdmin, RoleUser, RoleBot},
	OpList:        {RoleAdmin, RoleUser},
	OpMonthly:     {RoleAdmin},
	OpBlacklist:   {RoleAdmin},
	OpUnblacklist: {RoleAdmin},
}

// Can reports whether r may perform op.
func (r Role) Can(op Operation) bool {
	for _, allowed := range permissions[op] {
		if allowed == r {
			return true
		}
	}
	return false
}
