// Package sqlite implements the domain repositories on an embedded SQLite
// database using modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"parkgate/internal/domain"
)

const vehiclesCollection = "vehicles"

// Store keeps the vehicle collection as one JSON document row and users
// in their own table. vehiclesMu is the collection-level critical section.
type Store struct {
	db         *sql.DB
	logger     *slog.Logger
	vehiclesMu sync.Mutex
}

var _ domain.VehicleLedger = (*Store)(nil)
var _ domain.UserRepository = (*Store)(nil)

// Open creates the database at path with its schema. Parent directories
// are created if needed. A nil logger falls back to slog.Default.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sqlite")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them. Write
	// transactions take the lock at BEGIN and wait out busy_timeout, so WAL
	// readers (logins, bot keys) never queue behind a vehicle write.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_txlock=immediate",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(4)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			doc TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			role TEXT NOT NULL CHECK(role IN ('admin','user','bot')),
			auth TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// WithVehicle runs fn inside the collection lock and one transaction.
func (s *Store) WithVehicle(ctx context.Context, plate string, fn domain.VehicleFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	s.vehiclesMu.Lock()
	defer s.vehiclesMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", domain.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	vs, err := s.loadVehicles(ctx, tx)
	if err != nil {
		return err
	}
	changed, err := vs.Apply(plate, fn)
	if err != nil || !changed {
		return err
	}

	data, err := vs.Encode()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO collections (name, doc, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		vehiclesCollection, string(data), time.Now().Format(time.RFC3339),
	)
	if err != nil {
		s.logger.Error("persist vehicles failed", "plate", plate, "error", err)
		return fmt.Errorf("%w: write vehicles: %w", domain.ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", domain.ErrStorage, err)
	}
	return nil
}

// ReadVehicle returns a copy of the plate's record, or nil.
func (s *Store) ReadVehicle(ctx context.Context, plate string) (*domain.Vehicle, error) {
	vs, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return vs.Lookup(plate), nil
}

// Snapshot returns the whole collection.
func (s *Store) Snapshot(ctx context.Context) (domain.Vehicles, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.vehiclesMu.Lock()
	defer s.vehiclesMu.Unlock()
	return s.loadVehicles(ctx, s.db)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) loadVehicles(ctx context.Context, q queryer) (domain.Vehicles, error) {
	var doc string
	err := q.QueryRowContext(ctx, "SELECT doc FROM collections WHERE name = ?", vehiclesCollection).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Vehicles{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read vehicles: %w", domain.ErrStorage, err)
	}
	vs, err := domain.DecodeVehicles([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return vs, nil
}

// GetByUsername returns nil, nil when the user does not exist.
func (s *Store) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		"SELECT username, role, auth FROM users WHERE username = ?", username,
	).Scan(&u.Username, &u.Role, &u.AuthSecret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns users in creation order.
func (s *Store) List(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT username, role, auth FROM users ORDER BY created_at, username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.Username, &u.Role, &u.AuthSecret); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create inserts a new user.
func (s *Store) Create(ctx context.Context, u domain.User) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, role, auth, created_at) VALUES (?, ?, ?, ?)",
		u.Username, string(u.Role), u.AuthSecret, time.Now().Format(time.RFC3339Nano),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return domain.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
