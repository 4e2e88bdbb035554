// Package memory implements in-memory repositories for development and testing.
package memory

import (
	"context"
	"sync"

	"parkgate/internal/domain"
)

// DB implements an in-memory vehicle ledger and credential store. The two
// collections have independent locks.
type DB struct {
	vehiclesMu sync.Mutex
	vehicles   domain.Vehicles

	usersMu sync.Mutex
	users   []domain.User
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{vehicles: domain.Vehicles{}}
}

// Ensure interfaces are met.
var _ domain.VehicleLedger = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- VehicleLedger ---

// WithVehicle runs fn under the collection lock.
func (db *DB) WithVehicle(ctx context.Context, plate string, fn domain.VehicleFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.vehiclesMu.Lock()
	defer db.vehiclesMu.Unlock()

	_, err := db.vehicles.Apply(plate, fn)
	return err
}

// ReadVehicle returns a copy of the record for plate.
func (db *DB) ReadVehicle(ctx context.Context, plate string) (*domain.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.vehiclesMu.Lock()
	defer db.vehiclesMu.Unlock()
	return db.vehicles.Lookup(plate), nil
}

// Snapshot returns a copy of every record.
func (db *DB) Snapshot(ctx context.Context) (domain.Vehicles, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.vehiclesMu.Lock()
	defer db.vehiclesMu.Unlock()
	return db.vehicles.Clone(), nil
}

// --- UserRepository ---

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.usersMu.Lock()
	defer db.usersMu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			found := u
			return &found, nil
		}
	}
	// Return nil if not found
	return nil, nil
}

// List returns all users in insertion order.
func (db *DB) List(ctx context.Context) ([]domain.User, error) {
	db.usersMu.Lock()
	defer db.usersMu.Unlock()
	return append([]domain.User(nil), db.users...), nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, u domain.User) error {
	db.usersMu.Lock()
	defer db.usersMu.Unlock()

	for _, existing := range db.users {
		if existing.Username == u.Username {
			return domain.ErrUserExists
		}
	}
	db.users = append(db.users, u)
	return nil
}

// --- SessionRepository ---

// SessionRepo is the volatile token table. One mutex covers the whole table.
type SessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

// NewSessionRepo creates an empty token table.
func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: make(map[string]domain.Session)}
}

// Create records a session.
func (r *SessionRepo) Create(ctx context.Context, s domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Token] = s
	return nil
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[token]; ok {
		return &s, nil
	}
	return nil, nil
}

// Delete removes a session. Unknown tokens are ignored.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

// Len reports the number of live sessions.
func (r *SessionRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
