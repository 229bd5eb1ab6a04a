package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vehicle_parking/internal/config"
	"vehicle_parking/internal/logging"
	"vehicle_parking/internal/repository"
	"vehicle_parking/internal/repository/memory"
	"vehicle_parking/internal/repository/postgresql"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vehicle-parking",
		Short:         "Vehicle parking reservation backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serve := newServeCmd()
	root.AddCommand(serve, newMigrateCmd(), newCreateAdminCmd(), newSeedSlotsCmd())
	// Running without a subcommand starts the server.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

// app holds what every command needs: configuration, logger and a store.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sql.DB
	store  repository.Store
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory storage; data is lost on exit")
		a.store = memory.NewStore()
	default:
		db, err := postgresql.NewDB(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		logger.Info("connected to database",
			zap.String("host", cfg.DBHost),
			zap.String("name", cfg.DBName),
			zap.String("driver", cfg.DBDriver))
		a.db = db
		a.store = postgresql.NewStore(db)
	}
	return a, nil
}

func (a *app) migrate(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	applied, err := postgresql.Migrate(ctx, a.db)
	if err != nil {
		return err
	}
	for _, name := range applied {
		a.logger.Info("applied migration", zap.String("name", name))
	}
	return nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	_ = a.logger.Sync()
}
