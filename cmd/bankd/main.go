package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"

	"github.com/example/bank-ledger/internal/auth"
	"github.com/example/bank-ledger/internal/cli"
	"github.com/example/bank-ledger/internal/config"
	"github.com/example/bank-ledger/internal/ledger"
	"github.com/example/bank-ledger/pkg/audit"
)

func main() {
	// Logs go to stderr as JSON; stdout belongs to the menus.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	accounts, ledgerStore, userStore, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		logger.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	userSvc := auth.NewService(userStore)
	if cfg.AdminUsername != "" {
		if err := seedAdmin(ctx, userStore, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			logger.Error("failed to seed admin user", "error", err)
			os.Exit(1)
		}
	}

	svc := ledger.NewService(accounts, ledgerStore, userSvc, audit.NewChainLogger())
	logger.Info("bankd starting", "environment", cfg.Environment, "backend", cfg.StoreBackend)

	app := cli.New(os.Stdin, os.Stdout, svc, userSvc, logger)
	if err := app.Run(ctx); err != nil {
		logger.Error("menu loop failed", "error", err)
		os.Exit(1)
	}
	logger.Info("bankd exiting")
}

func buildStores(ctx context.Context, cfg *config.Config) (ledger.AccountStore, ledger.TransactionLedger, auth.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendFile:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, nil, nil, nil, err
		}
		accounts, err := ledger.NewFileAccountStore(filepath.Join(cfg.DataDir, "accounts.txt"))
		if err != nil {
			return nil, nil, nil, nil, err
		}
		ledgerStore, err := ledger.NewFileLedger(filepath.Join(cfg.DataDir, "transactions.txt"))
		if err != nil {
			return nil, nil, nil, nil, err
		}
		users, err := auth.NewFileStore(filepath.Join(cfg.DataDir, "users.txt"))
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return accounts, ledgerStore, users, func() {}, nil

	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, nil, nil, nil, err
		}
		db, err := sql.Open("sqlite3", cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		store := ledger.NewSQLiteStore(db)
		users := auth.NewSQLiteStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, nil, nil, err
		}
		if err := users.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, nil, nil, err
		}
		return store, store.Ledger(), users, func() { db.Close() }, nil

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		store := ledger.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, nil, err
		}
		// Users stay in a local sqlite file alongside the ledger database.
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			pool.Close()
			return nil, nil, nil, nil, err
		}
		db, err := sql.Open("sqlite3", cfg.SQLitePath)
		if err != nil {
			pool.Close()
			return nil, nil, nil, nil, err
		}
		users := auth.NewSQLiteStore(db)
		if err := users.Migrate(ctx); err != nil {
			pool.Close()
			db.Close()
			return nil, nil, nil, nil, err
		}
		return store, store.Ledger(), users, func() { db.Close(); pool.Close() }, nil
	}
	return nil, nil, nil, nil, errors.New("unknown store backend")
}

func seedAdmin(ctx context.Context, store auth.Store, username, password string) error {
	if _, err := store.Find(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, auth.ErrUserNotFound) {
		return err
	}
	return store.Create(ctx, &auth.User{Username: username, Password: password, Role: auth.RoleAdmin})
}
