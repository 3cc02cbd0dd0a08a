package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	TenantDB  TenantDBConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Pool      PoolConfig
	Provision ProvisionConfig
	Usage     UsageConfig
	Log       LogConfig
	HTTP      HTTPConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name       string
	Env        string
	Port       string
	BaseDomain string // apex domain tenants hang off, e.g. "example-app.com"
}

// DatabaseConfig holds control-plane metadata database settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// TenantDBConfig holds the admin endpoint used to provision per-tenant
// databases. The admin user needs CREATEDB and CREATEROLE.
type TenantDBConfig struct {
	Host          string
	Port          int
	AdminUser     string
	AdminPassword string
	AdminDB       string
	SSLMode       string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig holds tenant/usage cache TTLs and the per-call ceiling on
// Redis round trips
type CacheConfig struct {
	TenantTTL    time.Duration
	LocalTTL     time.Duration
	UsageTTL     time.Duration
	RedisTimeout time.Duration
}

// PoolConfig bounds each tenant's dedicated connection pool
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
}

// ProvisionConfig holds storage provisioning settings
type ProvisionConfig struct {
	Timeout          time.Duration
	DefaultTrialDays int
}

// UsageConfig holds usage metering settings
type UsageConfig struct {
	DefaultPeriod string // daily, weekly, monthly
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CTL_ prefix (e.g., CTL_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("CTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:       v.GetString("app.name"),
			Env:        v.GetString("app.env"),
			Port:       v.GetString("app.port"),
			BaseDomain: v.GetString("app.base_domain"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		TenantDB: TenantDBConfig{
			Host:          v.GetString("tenantdb.host"),
			Port:          v.GetInt("tenantdb.port"),
			AdminUser:     v.GetString("tenantdb.admin_user"),
			AdminPassword: v.GetString("tenantdb.admin_password"),
			AdminDB:       v.GetString("tenantdb.admin_db"),
			SSLMode:       v.GetString("tenantdb.sslmode"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Cache: CacheConfig{
			TenantTTL:    v.GetDuration("cache.tenant_ttl"),
			LocalTTL:     v.GetDuration("cache.local_ttl"),
			UsageTTL:     v.GetDuration("cache.usage_ttl"),
			RedisTimeout: v.GetDuration("cache.redis_timeout"),
		},
		Pool: PoolConfig{
			MaxOpenConns:    v.GetInt("pool.max_open_conns"),
			MaxIdleConns:    v.GetInt("pool.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("pool.conn_max_lifetime"),
		},
		Provision: ProvisionConfig{
			Timeout:          v.GetDuration("provision.timeout"),
			DefaultTrialDays: v.GetInt("provision.default_trial_days"),
		},
		Usage: UsageConfig{
			DefaultPeriod: v.GetString("usage.default_period"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "controlplane"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "controlplane"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	// Tenant databases live on the metadata host unless pointed elsewhere
	if cfg.TenantDB.Host == "" {
		cfg.TenantDB.Host = cfg.Database.Host
	}
	if cfg.TenantDB.Port == 0 {
		cfg.TenantDB.Port = cfg.Database.Port
	}
	if cfg.TenantDB.AdminUser == "" {
		cfg.TenantDB.AdminUser = cfg.Database.User
	}
	if cfg.TenantDB.AdminPassword == "" {
		cfg.TenantDB.AdminPassword = cfg.Database.Password
	}
	if cfg.TenantDB.AdminDB == "" {
		cfg.TenantDB.AdminDB = "postgres"
	}
	if cfg.TenantDB.SSLMode == "" {
		cfg.TenantDB.SSLMode = cfg.Database.SSLMode
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Cache.TenantTTL == 0 {
		cfg.Cache.TenantTTL = 5 * time.Minute
	}
	if cfg.Cache.LocalTTL == 0 {
		cfg.Cache.LocalTTL = 30 * time.Second
	}
	if cfg.Cache.UsageTTL == 0 {
		cfg.Cache.UsageTTL = time.Minute
	}
	if cfg.Cache.RedisTimeout == 0 {
		cfg.Cache.RedisTimeout = 150 * time.Millisecond
	}
	if cfg.Pool.MaxOpenConns == 0 {
		cfg.Pool.MaxOpenConns = 10
	}
	if cfg.Pool.MaxIdleConns == 0 {
		cfg.Pool.MaxIdleConns = 2
	}
	if cfg.Pool.ConnMaxLifetime == 0 {
		cfg.Pool.ConnMaxLifetime = 30
	}
	if cfg.Provision.Timeout == 0 {
		cfg.Provision.Timeout = 2 * time.Minute
	}
	if cfg.Provision.DefaultTrialDays == 0 {
		cfg.Provision.DefaultTrialDays = 14
	}
	if cfg.Usage.DefaultPeriod == "" {
		cfg.Usage.DefaultPeriod = "monthly"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Pool.MaxIdleConns > c.Pool.MaxOpenConns {
		return fmt.Errorf("pool.max_idle_conns (%d) cannot exceed pool.max_open_conns (%d)",
			c.Pool.MaxIdleConns, c.Pool.MaxOpenConns)
	}

	switch c.Usage.DefaultPeriod {
	case "daily", "weekly", "monthly":
	default:
		return fmt.Errorf("usage.default_period must be daily, weekly, or monthly, got %q", c.Usage.DefaultPeriod)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.App.BaseDomain == "" {
			return fmt.Errorf("app.base_domain is required in production (subdomain routing needs an apex)")
		}
	}

	return nil
}

// DSN returns the metadata database connection string with properly
// escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// AdminDSN returns the provisioning endpoint connection string
func (t *TenantDBConfig) AdminDSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(t.AdminUser, t.AdminPassword),
		Host:   fmt.Sprintf("%s:%d", t.Host, t.Port),
		Path:   t.AdminDB,
	}
	q := u.Query()
	q.Set("sslmode", t.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
