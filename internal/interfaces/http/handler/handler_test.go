package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	tenantapp "github.com/saas/controlplane/internal/application/tenant"
	usageapp "github.com/saas/controlplane/internal/application/usage"
	"github.com/saas/controlplane/internal/domain/tenant"
	"github.com/saas/controlplane/internal/infrastructure/cache"
	"github.com/saas/controlplane/internal/infrastructure/event"
	"github.com/saas/controlplane/internal/infrastructure/persistence"
	"github.com/saas/controlplane/internal/interfaces/http/dto"
	"github.com/saas/controlplane/internal/interfaces/http/middleware"
	"github.com/saas/controlplane/internal/interfaces/http/router"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// stubProvisioner satisfies tenant.StorageProvisioner without a postgres
type stubProvisioner struct {
	failProvision error
}

func (p *stubProvisioner) Provision(_ context.Context, tenantID uuid.UUID) (tenant.StorageLocation, error) {
	if p.failProvision != nil {
		return tenant.StorageLocation{}, p.failProvision
	}
	return tenant.StorageLocation{
		Host:     "db.internal",
		Port:     5432,
		Database: "tenant_" + tenantID.String()[:8],
		User:     "u_" + tenantID.String()[:8],
		Password: "secret",
	}, nil
}

func (p *stubProvisioner) Deprovision(_ context.Context, _ *tenant.StorageBinding) error {
	return nil
}

// stubPools satisfies the lifecycle service's pool dependency
type stubPools struct {
	db *gorm.DB
}

func (p *stubPools) Get(_ context.Context, _ uuid.UUID, _ tenant.StorageLocation) (*gorm.DB, error) {
	return p.db, nil
}

func (p *stubPools) Retire(_ uuid.UUID) {}

type testEnv struct {
	engine      *gin.Engine
	lifecycle   *tenantapp.LifecycleService
	metering    *usageapp.MeteringService
	provisioner *stubProvisioner
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, persistence.Migrate(db))

	log := zap.NewNop()
	tenants := persistence.NewGormTenantRepository(db)
	bindings := persistence.NewGormBindingRepository(db)
	subs := persistence.NewGormSubscriptionRepository(db)
	records := persistence.NewGormUsageRecordRepository(db)
	provisioner := &stubProvisioner{}
	tenantCache := cache.NewLocalTenantCache(time.Minute)
	bus := event.NewInMemoryEventBus(log)

	lifecycle := tenantapp.NewLifecycleService(
		tenants, bindings, subs, provisioner, tenantCache, &stubPools{db: db}, bus, log,
		tenantapp.LifecycleServiceConfig{DefaultTrialDays: 14, BaseDomain: "example.com"},
	)
	metering := usageapp.NewMeteringService(
		tenants, subs, records, cache.NewInMemoryCounterCache(), bus, log,
		usageapp.MeteringServiceConfig{CounterTTL: time.Minute},
	)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	r := router.NewRouter(engine)
	r.Register(NewTenantHandler(lifecycle))
	r.Register(NewUsageHandler(metering))
	r.Setup()

	return &testEnv{
		engine:      engine,
		lifecycle:   lifecycle,
		metering:    metering,
		provisioner: provisioner,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var resp dto.Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (e *testEnv) createTenant(t *testing.T, subdomain, plan string) string {
	t.Helper()
	w, resp := e.do(t, http.MethodPost, "/api/v1/tenants", gin.H{
		"name":      "Tenant " + subdomain,
		"subdomain": subdomain,
		"plan":      plan,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := resp.Data.(map[string]interface{})
	return data["id"].(string)
}
