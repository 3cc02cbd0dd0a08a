package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/saas/controlplane/internal/infrastructure/config"
	"github.com/saas/controlplane/internal/infrastructure/logger"
	"github.com/saas/controlplane/internal/infrastructure/persistence"
	"github.com/saas/controlplane/internal/infrastructure/provisioner"
	"go.uber.org/zap"
)

func main() {
	var logLevel string
	var tenantDSN string

	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&tenantDSN, "dsn", "", "Tenant database DSN (baseline command only)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:  logLevel,
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	switch command {
	case "metadata":
		migrateMetadata(cfg, log)
	case "baseline":
		applyTenantBaseline(tenantDSN, log)
	default:
		printUsage()
		os.Exit(1)
	}
}

// migrateMetadata brings the control-plane metadata schema up to date
func migrateMetadata(cfg *config.Config, log *zap.Logger) {
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to metadata store", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := db.AutoMigrate(); err != nil {
		log.Fatal("Metadata migration failed", zap.Error(err))
	}
	log.Info("Metadata store migrated")
}

// applyTenantBaseline repairs or upgrades one tenant database's schema.
// Useful when a provision was interrupted after database creation.
func applyTenantBaseline(dsn string, log *zap.Logger) {
	if dsn == "" {
		log.Fatal("baseline requires -dsn with the tenant database connection string")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal("Failed to open tenant database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := provisioner.ApplyBaseline(db); err != nil {
		log.Fatal("Baseline migration failed", zap.Error(err))
	}
	log.Info("Tenant baseline applied")
}

func printUsage() {
	fmt.Println(`Usage: migrate [flags] <command>

Commands:
  metadata            Migrate the control-plane metadata store
  baseline            Apply the tenant baseline schema to one tenant database

Flags:
  -dsn string         Tenant database DSN (baseline only)
  -log-level string   Log level (default "info")`)
}
