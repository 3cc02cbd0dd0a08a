package provisioner

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/saas/controlplane/internal/domain/shared"
	"github.com/saas/controlplane/internal/domain/tenant"
	"github.com/saas/controlplane/internal/infrastructure/config"
	"go.uber.org/zap"
)

// connectFunc opens a database handle for a DSN. Injected so tests can
// substitute sqlmock connections.
type connectFunc func(dsn string) (*sql.DB, error)

// migrateFunc applies the baseline schema to a fresh tenant database
type migrateFunc func(db *sql.DB) error

// PostgresProvisioner implements tenant.StorageProvisioner by creating one
// database and one login role per tenant on a shared Postgres endpoint.
// CREATE DATABASE is not transactional, so partial failures are undone with
// explicit compensating drops.
type PostgresProvisioner struct {
	cfg     config.TenantDBConfig
	timeout time.Duration
	logger  *zap.Logger
	connect connectFunc
	migrate migrateFunc
}

// NewPostgresProvisioner creates a provisioner against the configured
// tenant database endpoint
func NewPostgresProvisioner(cfg config.TenantDBConfig, timeout time.Duration, logger *zap.Logger) *PostgresProvisioner {
	return &PostgresProvisioner{
		cfg:     cfg,
		timeout: timeout,
		logger:  logger.Named("provisioner"),
		connect: openPostgres,
		migrate: applyBaseline,
	}
}

func openPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	return db, nil
}

// Provision creates the tenant's database, a dedicated login role, grants,
// and the baseline schema. On any partial failure the already-created
// resources are dropped before the error is returned.
func (p *PostgresProvisioner) Provision(ctx context.Context, tenantID uuid.UUID) (tenant.StorageLocation, error) {
	if tenantID == uuid.Nil {
		return tenant.StorageLocation{}, shared.ErrInvalidInput
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	dbName := databaseNameFor(tenantID)
	roleName := roleNameFor(tenantID)

	password, err := newPassword()
	if err != nil {
		return tenant.StorageLocation{}, shared.NewProvisioningError(tenantID.String(), "credentials", err)
	}

	admin, err := p.connect(p.cfg.AdminDSN())
	if err != nil {
		return tenant.StorageLocation{}, shared.NewProvisioningError(tenantID.String(), "connect", err)
	}
	defer admin.Close()

	log := p.logger.With(zap.String("tenant_id", tenantID.String()), zap.String("database", dbName))
	log.Info("Provisioning tenant storage")

	if _, err := admin.ExecContext(ctx, fmt.Sprintf(
		"CREATE ROLE %s LOGIN PASSWORD %s",
		pq.QuoteIdentifier(roleName), pq.QuoteLiteral(password),
	)); err != nil {
		return tenant.StorageLocation{}, p.fail(ctx, admin, tenantID, "create_role", err, false, false)
	}

	if _, err := admin.ExecContext(ctx, fmt.Sprintf(
		"CREATE DATABASE %s OWNER %s",
		pq.QuoteIdentifier(dbName), pq.QuoteIdentifier(roleName),
	)); err != nil {
		return tenant.StorageLocation{}, p.fail(ctx, admin, tenantID, "create_database", err, false, true)
	}

	// Tenant isolation: only the dedicated role may connect
	if _, err := admin.ExecContext(ctx, fmt.Sprintf(
		"REVOKE CONNECT ON DATABASE %s FROM PUBLIC",
		pq.QuoteIdentifier(dbName),
	)); err != nil {
		return tenant.StorageLocation{}, p.fail(ctx, admin, tenantID, "revoke_public", err, true, true)
	}

	location := tenant.StorageLocation{
		Host:     p.cfg.Host,
		Port:     p.cfg.Port,
		Database: dbName,
		User:     roleName,
		Password: password,
	}

	tenantDB, err := p.connect(location.DSN())
	if err != nil {
		return tenant.StorageLocation{}, p.fail(ctx, admin, tenantID, "connect_tenant", err, true, true)
	}
	defer tenantDB.Close()

	if err := p.migrate(tenantDB); err != nil {
		return tenant.StorageLocation{}, p.fail(ctx, admin, tenantID, "baseline_schema", err, true, true)
	}

	log.Info("Tenant storage provisioned", zap.String("role", roleName))
	return location, nil
}

// fail wraps a provisioning error and best-effort drops whatever was
// already created. Cleanup errors are logged, not returned; the original
// failure is what the caller needs.
func (p *PostgresProvisioner) fail(ctx context.Context, admin *sql.DB, tenantID uuid.UUID, stage string, cause error, dropDB, dropRole bool) error {
	p.logger.Error("Provisioning failed, rolling back",
		zap.String("tenant_id", tenantID.String()),
		zap.String("stage", stage),
		zap.Error(cause),
	)

	// Compensation runs on a fresh context: the original one may already
	// be past its deadline.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if dropDB {
		p.dropDatabase(cleanupCtx, admin, databaseNameFor(tenantID))
	}
	if dropRole {
		p.dropRole(cleanupCtx, admin, roleNameFor(tenantID))
	}

	return shared.NewProvisioningError(tenantID.String(), stage, cause)
}

// Deprovision drops the tenant's database and role. Already-gone resources
// are not an error so retried deletes converge.
func (p *PostgresProvisioner) Deprovision(ctx context.Context, binding *tenant.StorageBinding) error {
	if binding == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	admin, err := p.connect(p.cfg.AdminDSN())
	if err != nil {
		return shared.NewProvisioningError(binding.TenantID.String(), "connect", err)
	}
	defer admin.Close()

	dbName := binding.Location.Database
	roleName := binding.Location.User

	// Active sessions block DROP DATABASE
	if _, err := admin.ExecContext(ctx,
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()",
		dbName,
	); err != nil {
		return shared.NewProvisioningError(binding.TenantID.String(), "terminate_sessions", err)
	}

	if _, err := admin.ExecContext(ctx, fmt.Sprintf(
		"DROP DATABASE IF EXISTS %s", pq.QuoteIdentifier(dbName),
	)); err != nil {
		return shared.NewProvisioningError(binding.TenantID.String(), "drop_database", err)
	}

	if _, err := admin.ExecContext(ctx, fmt.Sprintf(
		"DROP ROLE IF EXISTS %s", pq.QuoteIdentifier(roleName),
	)); err != nil {
		return shared.NewProvisioningError(binding.TenantID.String(), "drop_role", err)
	}

	p.logger.Info("Tenant storage deprovisioned",
		zap.String("tenant_id", binding.TenantID.String()),
		zap.String("database", dbName),
	)
	return nil
}

func (p *PostgresProvisioner) dropDatabase(ctx context.Context, admin *sql.DB, dbName string) {
	if _, err := admin.ExecContext(ctx, fmt.Sprintf(
		"DROP DATABASE IF EXISTS %s", pq.QuoteIdentifier(dbName),
	)); err != nil {
		p.logger.Error("Cleanup failed to drop database", zap.String("database", dbName), zap.Error(err))
	}
}

func (p *PostgresProvisioner) dropRole(ctx context.Context, admin *sql.DB, roleName string) {
	if _, err := admin.ExecContext(ctx, fmt.Sprintf(
		"DROP ROLE IF EXISTS %s", pq.QuoteIdentifier(roleName),
	)); err != nil {
		p.logger.Error("Cleanup failed to drop role", zap.String("role", roleName), zap.Error(err))
	}
}
