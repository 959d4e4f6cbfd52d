// Command ct-server starts the carbon tracker HTTP API and gRPC health service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/carbon-tracker/internal/config"
	"github.com/and161185/carbon-tracker/internal/emissions"
	"github.com/and161185/carbon-tracker/internal/logging"
	"github.com/and161185/carbon-tracker/internal/migrate"
	"github.com/and161185/carbon-tracker/internal/repository"
	"github.com/and161185/carbon-tracker/internal/repository/memory"
	"github.com/and161185/carbon-tracker/internal/repository/postgres"
	grpcserver "github.com/and161185/carbon-tracker/internal/server/grpc"
	"github.com/and161185/carbon-tracker/internal/server/httpserver"
	"github.com/and161185/carbon-tracker/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const grpcStopTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type serverFlags struct {
	configPath string
	addr       string
	dsn        string
	storage    string
	logLevel   string
	dev        bool
}

func newRootCmd() *cobra.Command {
	var f serverFlags
	cmd := &cobra.Command{
		Use:          "ct-server",
		Short:        "Carbon tracker API server",
		Version:      fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer zap.ReplaceGlobals(logger)()
			logger.Info("starting",
				zap.String("version", version),
				zap.String("buildDate", buildDate),
				zap.String("addr", cfg.HTTP.Address),
				zap.String("storage", cfg.Storage),
			)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&f.addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&f.dsn, "dsn", "", "PostgreSQL DSN")
	cmd.Flags().StringVar(&f.storage, "storage", "", "storage backend: postgres or memory")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&f.dev, "dev", false, "console logging and gRPC reflection (dev only)")
	return cmd
}

// resolveConfig layers explicitly set flags over file and environment, then validates.
func resolveConfig(cmd *cobra.Command, f serverFlags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.HTTP.Address = f.addr
	}
	if flags.Changed("dsn") {
		cfg.Postgres.DSN = f.dsn
	}
	if flags.Changed("storage") {
		cfg.Storage = f.storage
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if flags.Changed("dev") {
		cfg.Log.Development = f.dev
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openStorage(ctx context.Context, cfg config.Config, logger *zap.Logger) (repository.UserRepository, repository.LedgerRepository, func(), error) {
	if cfg.Storage == config.StorageMemory {
		st := memory.New()
		return st, st, func() {}, nil
	}
	if err := migrate.Up(ctx, cfg.Postgres.DSN, logger); err != nil {
		return nil, nil, nil, fmt.Errorf("migrate up: %w", err)
	}
	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return postgres.NewUserRepo(db), postgres.NewLedgerRepo(db), db.Close, nil
}

// run serves until ctx is cancelled or a listener fails, then shuts both servers down.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	users, ledger, closeStore, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := service.LedgerOptions{
		Location:          cfg.Location(),
		ListLimit:         cfg.Ledger.ListLimit,
		DefaultWindowDays: cfg.Ledger.DefaultWindowDays,
		LeaderboardLimit:  cfg.Ledger.LeaderboardLimit,
	}
	authSvc := service.NewAuthService(users, []byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer, cfg.Auth.AccessTTL)
	activitySvc := service.NewActivityService(ledger, emissions.Default, logger, opts)
	dashboardSvc := service.NewDashboardService(users, ledger, opts)

	h := httpserver.New(authSvc, activitySvc, dashboardSvc, emissions.Default, logger)
	srv := httpserver.NewServer(httpserver.ServerConfig{
		Address:      cfg.HTTP.Address,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, h.Router(authSvc))

	httpLis, err := net.Listen("tcp", cfg.HTTP.Address)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	healthLis, err := net.Listen("tcp", cfg.GRPC.HealthAddress)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("listen grpc health: %w", err)
	}
	health := grpcserver.NewHealth(logger, cfg.Log.Development)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", httpLis.Addr().String()))
		if err := srv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		if err := health.Serve(healthLis); err != nil {
			errCh <- fmt.Errorf("grpc health: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case runErr = <-errCh:
		logger.Error("server error", zap.Error(runErr))
	}

	health.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	health.Stop(grpcStopTimeout)

	logger.Info("shutdown complete")
	return runErr
}
