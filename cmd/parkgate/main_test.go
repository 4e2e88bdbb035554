package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkgate/internal/config"
	"parkgate/internal/domain"
)

func TestReadSecretFromPipe(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("s3cret\r\n"))

	secret, err := readSecret(cmd, "Password: ")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", secret)

	cmd.SetIn(strings.NewReader(""))
	_, err = readSecret(cmd, "Password: ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestOpenStoresJSONFile(t *testing.T) {
	dir := t.TempDir()
	st, err := openStores(config.StorageConfig{
		Driver:       config.DriverJSONFile,
		VehiclesPath: filepath.Join(dir, "vehicles.json"),
		UsersPath:    filepath.Join(dir, "users.json"),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer func() { _ = st.close() }()

	ctx := context.Background()
	require.NoError(t, st.users.Create(ctx, domain.User{Username: "gate1", Role: domain.RoleBot, AuthSecret: "k"}))
	users, err := st.users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	vs, err := st.ledger.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestOpenStoresSQLiteLogsThroughGivenLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	st, err := openStores(config.StorageConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "parkgate.db"),
	}, logger)
	require.NoError(t, err)
	require.NoError(t, st.close())

	assert.Contains(t, buf.String(), `"msg":"SQLite store initialized"`)
	assert.Contains(t, buf.String(), `"component":"sqlite"`)
}

func TestSetupLoggerLevels(t *testing.T) {
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "text"})
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))

	logger = setupLogger(config.LoggingConfig{Level: "debug", Format: "json"})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
