package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkgate/internal/domain"
)

var _ domain.VehicleLedger = (*DB)(nil)

// WithVehicle locks the vehicles document row for the length of one
// transaction, which serializes every ledger call across connections and
// processes. Cancellation is only observed before the transaction starts.
func (d *DB) WithVehicle(ctx context.Context, plate string, fn domain.VehicleFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", domain.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	vs, err := loadVehicles(ctx, tx, "SELECT doc FROM collections WHERE name = $1 FOR UPDATE")
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
		"INSERT INTO collections (name, doc, updated_at) VALUES ($1, $2, $3) ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at",
		vehiclesCollection, string(data), time.Now(),
	)
	if err != nil {
		d.logger.Error("persist vehicles failed", "plate", plate, "error", err)
		return fmt.Errorf("%w: write vehicles: %w", domain.ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		d.logger.Error("commit vehicles failed", "plate", plate, "error", err)
		return fmt.Errorf("%w: commit: %w", domain.ErrStorage, err)
	}
	return nil
}

// ReadVehicle returns the last committed record for plate.
func (d *DB) ReadVehicle(ctx context.Context, plate string) (*domain.Vehicle, error) {
	vs, err := d.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return vs.Lookup(plate), nil
}

// Snapshot returns the last committed collection.
func (d *DB) Snapshot(ctx context.Context) (domain.Vehicles, error) {
	return loadVehicles(ctx, d.sql, "SELECT doc FROM collections WHERE name = $1")
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadVehicles(ctx context.Context, q queryer, query string) (domain.Vehicles, error) {
	var doc []byte
	err := q.QueryRowContext(ctx, query, vehiclesCollection).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Vehicles{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read vehicles: %w", domain.ErrStorage, err)
	}
	vs, err := domain.DecodeVehicles(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return vs, nil
}
