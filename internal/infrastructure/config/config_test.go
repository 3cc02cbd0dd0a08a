package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"CTL_APP_NAME":            os.Getenv("CTL_APP_NAME"),
		"CTL_APP_ENV":             os.Getenv("CTL_APP_ENV"),
		"CTL_APP_PORT":            os.Getenv("CTL_APP_PORT"),
		"CTL_APP_BASE_DOMAIN":     os.Getenv("CTL_APP_BASE_DOMAIN"),
		"CTL_DATABASE_HOST":       os.Getenv("CTL_DATABASE_HOST"),
		"CTL_DATABASE_PORT":       os.Getenv("CTL_DATABASE_PORT"),
		"CTL_DATABASE_USER":       os.Getenv("CTL_DATABASE_USER"),
		"CTL_DATABASE_PASSWORD":   os.Getenv("CTL_DATABASE_PASSWORD"),
		"CTL_DATABASE_SSLMODE":    os.Getenv("CTL_DATABASE_SSLMODE"),
		"CTL_TENANTDB_HOST":       os.Getenv("CTL_TENANTDB_HOST"),
		"CTL_TENANTDB_ADMIN_USER": os.Getenv("CTL_TENANTDB_ADMIN_USER"),
		"CTL_CACHE_TENANT_TTL":    os.Getenv("CTL_CACHE_TENANT_TTL"),
		"CTL_USAGE_DEFAULT_PERIOD": os.Getenv("CTL_USAGE_DEFAULT_PERIOD"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "controlplane", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "controlplane", cfg.Database.DBName)
		assert.Equal(t, 5*time.Minute, cfg.Cache.TenantTTL)
		assert.Equal(t, 150*time.Millisecond, cfg.Cache.RedisTimeout)
		assert.Equal(t, "monthly", cfg.Usage.DefaultPeriod)
		assert.Equal(t, 14, cfg.Provision.DefaultTrialDays)
	})

	t.Run("tenantdb inherits metadata endpoint by default", func(t *testing.T) {
		clearEnv()
		os.Setenv("CTL_DATABASE_HOST", "meta.db.local")
		os.Setenv("CTL_DATABASE_USER", "ctluser")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "meta.db.local", cfg.TenantDB.Host)
		assert.Equal(t, "ctluser", cfg.TenantDB.AdminUser)
		assert.Equal(t, "postgres", cfg.TenantDB.AdminDB)
	})

	t.Run("tenantdb endpoint can be pointed elsewhere", func(t *testing.T) {
		clearEnv()
		os.Setenv("CTL_TENANTDB_HOST", "tenants.db.local")
		os.Setenv("CTL_TENANTDB_ADMIN_USER", "provision_admin")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "tenants.db.local", cfg.TenantDB.Host)
		assert.Equal(t, "provision_admin", cfg.TenantDB.AdminUser)
	})

	t.Run("env vars override defaults", func(t *testing.T) {
		clearEnv()
		os.Setenv("CTL_APP_NAME", "test-plane")
		os.Setenv("CTL_APP_PORT", "9000")
		os.Setenv("CTL_CACHE_TENANT_TTL", "90s")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-plane", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, 90*time.Second, cfg.Cache.TenantTTL)
	})

	t.Run("rejects unknown usage period", func(t *testing.T) {
		clearEnv()
		os.Setenv("CTL_USAGE_DEFAULT_PERIOD", "hourly")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("production requires password sslmode and base domain", func(t *testing.T) {
		clearEnv()
		os.Setenv("CTL_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)

		os.Setenv("CTL_DATABASE_PASSWORD", "secret")
		os.Setenv("CTL_DATABASE_SSLMODE", "require")
		os.Setenv("CTL_APP_BASE_DOMAIN", "example-app.com")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "ctl",
		Password: "p@ss/word",
		DBName:   "controlplane",
		SSLMode:  "disable",
	}

	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "localhost:5432")
	assert.Contains(t, dsn, "sslmode=disable")
	// Special characters must be escaped, not passed through raw
	assert.NotContains(t, dsn, "p@ss/word")
}

func TestTenantDBConfig_AdminDSN(t *testing.T) {
	tc := TenantDBConfig{
		Host:          "tenants.db.local",
		Port:          5432,
		AdminUser:     "provision_admin",
		AdminPassword: "secret",
		AdminDB:       "postgres",
		SSLMode:       "require",
	}

	dsn := tc.AdminDSN()
	assert.Contains(t, dsn, "tenants.db.local:5432")
	assert.Contains(t, dsn, "/postgres")
	assert.Contains(t, dsn, "sslmode=require")
}
