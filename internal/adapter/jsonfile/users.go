package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"parkgate/internal/domain"
)

// Users stores credentials as a JSON array of {username, role, auth}.
type Users struct {
	mu        sync.Mutex
	path      string
	writeFile func(path string, data []byte) error
}

var _ domain.UserRepository = (*Users)(nil)

// NewUsers opens the credential file at path, creating an empty list if it
// does not exist.
func NewUsers(path string) (*Users, error) {
	if err := ensureFile(path, []byte("[]")); err != nil {
		return nil, fmt.Errorf("%w: init %s: %w", domain.ErrStorage, path, err)
	}
	return &Users{path: path, writeFile: writeFileAtomic}, nil
}

func (s *Users) load() ([]domain.User, error) {
	data, err := readFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrStorage, s.path, err)
	}
	var users []domain.User
	if len(data) == 0 {
		return users, nil
	}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrStorage, s.path, err)
	}
	return users, nil
}

// GetByUsername returns nil, nil when the user does not exist.
func (s *Users) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Username == username {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

// List returns users in file order.
func (s *Users) List(ctx context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Create appends u and rewrites the file.
func (s *Users) Create(ctx context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range users {
		if existing.Username == u.Username {
			return domain.ErrUserExists
		}
	}
	users = append(users, u)

	data, err := json.MarshalIndent(users, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: encode users: %w", domain.ErrStorage, err)
	}
	if err := s.writeFile(s.path, data); err != nil {
		return fmt.Errorf("%w: write %s: %w", domain.ErrStorage, s.path, err)
	}
	return nil
}
