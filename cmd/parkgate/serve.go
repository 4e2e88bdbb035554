package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	adapthttp "parkgate/internal/adapter/http"
	"parkgate/internal/adapter/jsonfile"
	"parkgate/internal/adapter/memory"
	"parkgate/internal/adapter/postgres"
	"parkgate/internal/adapter/sqlite"
	"parkgate/internal/app"
	"parkgate/internal/config"
	"parkgate/internal/domain"
	"parkgate/internal/events"
)

const banner = `
    ┌─┐┌─┐┬─┐┬┌─┌─┐┌─┐┌┬┐┌─┐
    ├─┘├─┤├┬┘├┴┐│ ┬├─┤ │ ├┤
    ┴  ┴ ┴┴└─┴ ┴└─┘┴ ┴ ┴ └─┘
`

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// stores is the storage backend selected by storage.driver.
type stores struct {
	ledger domain.VehicleLedger
	users  domain.UserRepository
	close  func() error
}

// openStores opens the configured backend. Adapters log through logger.
func openStores(cfg config.StorageConfig, logger *slog.Logger) (*stores, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case config.DriverMemory:
		db := memory.New()
		return &stores{ledger: db, users: db, close: noop}, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return &stores{ledger: s, users: s, close: s.Close}, nil
	case config.DriverPostgres:
		db, err := postgres.Open(cfg.PostgresURL, logger)
		if err != nil {
			return nil, err
		}
		return &stores{ledger: db, users: db, close: db.Close}, nil
	default:
		ledger, err := jsonfile.NewLedger(cfg.VehiclesPath, logger)
		if err != nil {
			return nil, err
		}
		users, err := jsonfile.NewUsers(cfg.UsersPath)
		if err != nil {
			return nil, err
		}
		return &stores{ledger: ledger, users: users, close: noop}, nil
	}
}

func openPublisher(cfg config.EventsConfig, logger *slog.Logger) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		return &events.NoopPublisher{}, nil
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	logger.Info("publishing events", "nats_url", cfg.NATSURL)
	return pub, nil
}

func runServe(ctx context.Context) error {
	color.New(color.FgCyan).Print(banner)
	fmt.Println()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Storage:   %s\n", cfg.Storage.Driver)
	if cfg.Storage.Driver == config.DriverMemory {
		yellow.Println("    ! memory storage is lost on exit")
	}
	fmt.Println()

	tariff, err := cfg.Billing.Tariff()
	if err != nil {
		return err
	}

	st, err := openStores(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() { _ = st.close() }()

	pub, err := openPublisher(cfg.Events, logger)
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	defer func() { _ = pub.Close() }()

	authSvc := app.NewAuthService(st.users, memory.NewSessionRepo())
	lifecycle := app.NewLifecycleService(st.ledger, tariff, pub, logger)
	reports := app.NewReportService(st.ledger, tariff)

	srv := adapthttp.New(authSvc, lifecycle, reports, logger)
	if cfg.SSO.Enabled {
		oidcCfg, err := adapthttp.NewOIDCConfig(ctx, cfg.SSO.Issuer, cfg.SSO.ClientID, cfg.SSO.ClientSecret, cfg.SSO.RedirectURL)
		if err != nil {
			return err
		}
		srv.WithOIDC(oidcCfg)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting parkgate", "config", configPath, "http_addr", cfg.Server.HTTPAddr, "storage", cfg.Storage.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
