package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkgate/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "parkgate.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLedgerRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := domain.NewTimestamp(time.Date(2026, 3, 1, 8, 0, 0, 0, time.Local))

	v, err := s.ReadVehicle(ctx, "ABC123")
	require.NoError(t, err)
	assert.Nil(t, v)

	err = s.WithVehicle(ctx, "ABC123", func(v *domain.Vehicle, found bool) (bool, error) {
		v.IsInside = true
		v.EntryTime = &ts
		v.HistoryEntries = append(v.HistoryEntries, ts)
		return true, nil
	})
	require.NoError(t, err)

	v, err = s.ReadVehicle(ctx, "ABC123")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, v.IsInside)
	require.NotNil(t, v.EntryTime)
	assert.True(t, v.EntryTime.Equal(ts.Time))
}

func TestLedgerAbortLeavesRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WithVehicle(ctx, "ABC123", func(v *domain.Vehicle, found bool) (bool, error) {
		v.IsBlacklisted = true
		return true, nil
	}))
	err := s.WithVehicle(ctx, "ABC123", func(v *domain.Vehicle, found bool) (bool, error) {
		v.IsBlacklisted = false
		return false, domain.ErrAlreadyBlacklisted
	})
	require.ErrorIs(t, err, domain.ErrAlreadyBlacklisted)

	v, err := s.ReadVehicle(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, v.IsBlacklisted)
}

func TestLedgerConcurrentDistinctPlates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.WithVehicle(ctx, fmt.Sprintf("P%02d", i), func(v *domain.Vehicle, found bool) (bool, error) {
				v.IsInside = true
				return true, nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, domain.User{Username: "gate1", Role: domain.RoleBot, AuthSecret: "key"}))
	assert.ErrorIs(t, s.Create(ctx, domain.User{Username: "gate1", Role: domain.RoleBot, AuthSecret: "x"}), domain.ErrUserExists)

	u, err := s.GetByUsername(ctx, "gate1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "key", u.AuthSecret)

	users, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserLookupDoesNotWaitOnVehicleWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, domain.User{Username: "gate1", Role: domain.RoleBot, AuthSecret: "key"}))

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithVehicle(ctx, "HOLD01", func(v *domain.Vehicle, found bool) (bool, error) {
			close(inside)
			<-release
			v.IsBlacklisted = true
			return true, nil
		})
	}()
	<-inside

	lookupCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	u, err := s.GetByUsername(lookupCtx, "gate1")
	close(release)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, domain.RoleBot, u.Role)

	require.NoError(t, <-done)
	v, err := s.ReadVehicle(ctx, "HOLD01")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, v.IsBlacklisted)
}
