package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saas/controlplane/internal/domain/shared"
	"github.com/saas/controlplane/internal/domain/tenant"
	"github.com/saas/controlplane/internal/infrastructure/config"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Opener opens a GORM handle for a tenant storage location. Injected so
// tests can substitute sqlite or fakes.
type Opener func(location tenant.StorageLocation) (*gorm.DB, error)

// Manager hands out one lazily-opened connection pool per tenant.
// Concurrent first requests for the same tenant are collapsed through
// singleflight so exactly one pool gets opened.
type Manager struct {
	cfg    config.PoolConfig
	logger *zap.Logger
	open   Opener
	group  singleflight.Group

	mu     sync.RWMutex
	pools  map[uuid.UUID]*gorm.DB
	closed bool
}

// NewManager creates a pool manager with the default postgres opener
func NewManager(cfg config.PoolConfig, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		logger: logger.Named("pool"),
		pools:  make(map[uuid.UUID]*gorm.DB),
	}
	m.open = m.openPostgres
	return m
}

// NewManagerWithOpener creates a pool manager with a custom opener
func NewManagerWithOpener(cfg config.PoolConfig, logger *zap.Logger, open Opener) *Manager {
	m := NewManager(cfg, logger)
	m.open = open
	return m
}

func (m *Manager) openPostgres(location tenant.StorageLocation) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(location.DSN()), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(m.cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(m.cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(m.cfg.ConnMaxLifetime) * time.Minute)

	return db, nil
}

// Get returns the tenant's pool, opening it on first use. Open failures
// are not cached: the next call retries.
func (m *Manager) Get(ctx context.Context, tenantID uuid.UUID, location tenant.StorageLocation) (*gorm.DB, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, shared.ErrPoolUnavailable
	}
	if db, ok := m.pools[tenantID]; ok {
		m.mu.RUnlock()
		return db, nil
	}
	m.mu.RUnlock()

	v, err, _ := m.group.Do(tenantID.String(), func() (any, error) {
		// Another caller may have won the race before this flight started
		m.mu.RLock()
		db, ok := m.pools[tenantID]
		closed := m.closed
		m.mu.RUnlock()
		if closed {
			return nil, shared.ErrPoolUnavailable
		}
		if ok {
			return db, nil
		}

		opened, err := m.open(location)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrPoolUnavailable, err)
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			closeGorm(opened)
			return nil, shared.ErrPoolUnavailable
		}
		m.pools[tenantID] = opened
		m.mu.Unlock()

		m.logger.Info("Opened tenant pool",
			zap.String("tenant_id", tenantID.String()),
			zap.String("database", location.Database),
		)
		return opened, nil
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return v.(*gorm.DB), nil
}

// Retire closes and forgets the tenant's pool. Safe to call when no pool
// exists; retired tenants get a fresh pool on the next Get.
func (m *Manager) Retire(tenantID uuid.UUID) {
	m.mu.Lock()
	db, ok := m.pools[tenantID]
	if ok {
		delete(m.pools, tenantID)
	}
	m.mu.Unlock()

	if ok {
		closeGorm(db)
		m.logger.Info("Retired tenant pool", zap.String("tenant_id", tenantID.String()))
	}
}

// Size returns the number of open tenant pools
func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pools)
}

// Close closes every pool and rejects further Gets
func (m *Manager) Close() {
	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[uuid.UUID]*gorm.DB)
	m.closed = true
	m.mu.Unlock()

	for tenantID, db := range pools {
		closeGorm(db)
		m.logger.Debug("Closed tenant pool", zap.String("tenant_id", tenantID.String()))
	}
}

func closeGorm(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
}
