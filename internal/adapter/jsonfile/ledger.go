package jsonfile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"parkgate/internal/domain"
)

// Ledger stores the vehicle collection as one JSON object keyed by plate.
// The file is re-read on every call, so it stays the single source of truth.
type Ledger struct {
	mu        sync.Mutex
	path      string
	logger    *slog.Logger
	writeFile func(path string, data []byte) error
}

var _ domain.VehicleLedger = (*Ledger)(nil)

// NewLedger opens the ledger at path, creating an empty collection if the
// file does not exist. A nil logger falls back to slog.Default.
func NewLedger(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ensureFile(path, []byte("{}")); err != nil {
		return nil, fmt.Errorf("%w: init %s: %w", domain.ErrStorage, path, err)
	}
	l := &Ledger{
		path:      path,
		logger:    logger.With("component", "ledger", "path", path),
		writeFile: writeFileAtomic,
	}
	return l, nil
}

func (l *Ledger) load() (domain.Vehicles, error) {
	data, err := readFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrStorage, l.path, err)
	}
	vs, err := domain.DecodeVehicles(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrStorage, l.path, err)
	}
	return vs, nil
}

// WithVehicle loads the file, applies fn and writes the whole collection
// back when fn commits.
func (l *Ledger) WithVehicle(ctx context.Context, plate string, fn domain.VehicleFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	vs, err := l.load()
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
	if err := l.writeFile(l.path, data); err != nil {
		l.logger.Error("persist vehicles failed", "plate", plate, "error", err)
		return fmt.Errorf("%w: write %s: %w", domain.ErrStorage, l.path, err)
	}
	return nil
}

// ReadVehicle returns a copy of the plate's record, or nil.
func (l *Ledger) ReadVehicle(ctx context.Context, plate string) (*domain.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	vs, err := l.load()
	if err != nil {
		return nil, err
	}
	return vs.Lookup(plate), nil
}

// Snapshot returns the whole collection.
func (l *Ledger) Snapshot(ctx context.Context) (domain.Vehicles, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}
