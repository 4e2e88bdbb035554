package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkgate/internal/adapter/memory"
	"parkgate/internal/domain"
)

func seedReport(t *testing.T) (*ReportService, *memory.DB) {
	t.Helper()
	db := memory.New()
	lc := NewLifecycleService(db, testTariff, nil, quietLogger())
	ctx := context.Background()

	_, err := lc.Entry(ctx, "CCC333", t0)
	require.NoError(t, err)
	_, err = lc.Entry(ctx, "AAA111", t0)
	require.NoError(t, err)
	_, err = lc.Exit(ctx, "AAA111", t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = lc.Blacklist(ctx, "BBB222")
	require.NoError(t, err)

	return NewReportService(db, testTariff), db
}

func TestReportService_Lists(t *testing.T) {
	svc, _ := seedReport(t)
	ctx := context.Background()

	plates, err := svc.ListPlates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA111", "BBB222", "CCC333"}, plates)

	inside, err := svc.ListInside(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"CCC333"}, inside)
}

func TestReportService_LookupInside(t *testing.T) {
	svc, _ := seedReport(t)

	r, err := svc.Lookup(context.Background(), "CCC333", t0.Add(45*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, r.Fee)
	assert.Equal(t, 2.0, *r.Fee)
	assert.Equal(t, "00:45:00", r.Duration)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"license_plate":"CCC333"`)
	assert.Contains(t, string(data), `"duration":"00:45:00"`)
}

func TestReportService_LookupOutsideHasNoCharge(t *testing.T) {
	svc, _ := seedReport(t)

	r, err := svc.Lookup(context.Background(), "AAA111", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, r.Fee)
	assert.Empty(t, r.Duration)
	assert.Len(t, r.HistoryExits, 1)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"fee"`)
}

func TestReportService_LookupMissing(t *testing.T) {
	svc, _ := seedReport(t)
	_, err := svc.Lookup(context.Background(), "ZZZ", t0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
