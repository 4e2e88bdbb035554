package jsonfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkgate/internal/domain"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewLedger(filepath.Join(t.TempDir(), "data", "vehicles.json"), nil)
	require.NoError(t, err)
	return l
}

func enter(at domain.Timestamp) domain.VehicleFunc {
	return func(v *domain.Vehicle, found bool) (bool, error) {
		v.IsInside = true
		v.EntryTime = &at
		v.HistoryEntries = append(v.HistoryEntries, at)
		return true, nil
	}
}

func TestNewLedgerSeedsEmptyObject(t *testing.T) {
	l := newTestLedger(t)

	data, err := os.ReadFile(l.path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	all, err := l.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLedgerPersistsWholeCollection(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	ts := domain.NewTimestamp(time.Date(2026, 3, 1, 8, 0, 0, 0, time.Local))

	require.NoError(t, l.WithVehicle(ctx, "AAA111", enter(ts)))
	require.NoError(t, l.WithVehicle(ctx, "BBB222", enter(ts)))

	// A fresh ledger over the same file sees both records.
	reopened, err := NewLedger(l.path, nil)
	require.NoError(t, err)
	all, err := reopened.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	data, err := os.ReadFile(l.path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"entry_time": "2026-03-01T08:00:00"`)
	assert.Contains(t, string(data), `"license_plate": "AAA111"`)
}

func TestLedgerNoCommitDoesNotWrite(t *testing.T) {
	l := newTestLedger(t)
	writes := 0
	l.writeFile = func(path string, data []byte) error {
		writes++
		return writeFileAtomic(path, data)
	}

	err := l.WithVehicle(context.Background(), "AAA111", func(v *domain.Vehicle, found bool) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.Zero(t, writes)

	v, err := l.ReadVehicle(context.Background(), "AAA111")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestLedgerFailedPersistKeepsLastGoodState(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	ts := domain.NewTimestamp(time.Now())
	require.NoError(t, l.WithVehicle(ctx, "AAA111", enter(ts)))

	before, err := os.ReadFile(l.path)
	require.NoError(t, err)

	l.writeFile = func(string, []byte) error { return errors.New("disk full") }
	err = l.WithVehicle(ctx, "AAA111", func(v *domain.Vehicle, found bool) (bool, error) {
		v.IsInside = false
		v.EntryTime = nil
		return true, nil
	})
	require.ErrorIs(t, err, domain.ErrStorage)

	after, err := os.ReadFile(l.path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	v, err := l.ReadVehicle(ctx, "AAA111")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, v.IsInside)
}

func TestLedgerCorruptFileIsStorageError(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, os.WriteFile(l.path, []byte("{not json"), 0o644))

	_, err := l.ReadVehicle(context.Background(), "AAA111")
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestLedgerConcurrentDistinctPlates(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	ts := domain.NewTimestamp(time.Now())

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- l.WithVehicle(ctx, fmt.Sprintf("P%02d", i), enter(ts))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vehicles.json")
	require.NoError(t, writeFileAtomic(path, []byte(`{"a":1}`)))
	require.NoError(t, writeFileAtomic(path, []byte(`{"a":2}`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "vehicles.json", entries[0].Name())
}

func TestLedgerLogsPersistFailureThroughGivenLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLedger(filepath.Join(t.TempDir(), "vehicles.json"), slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, err)
	l.writeFile = func(string, []byte) error { return errors.New("disk full") }

	err = l.WithVehicle(context.Background(), "AAA111", enter(domain.NewTimestamp(time.Now())))
	require.ErrorIs(t, err, domain.ErrStorage)

	assert.Contains(t, buf.String(), `"msg":"persist vehicles failed"`)
	assert.Contains(t, buf.String(), `"component":"ledger"`)
	assert.Contains(t, buf.String(), `"plate":"AAA111"`)
}
