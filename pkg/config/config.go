package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Proposals    ProposalsConfig
	CRM          CRMConfig
	Webhook      WebhookConfig
	Sync         SyncConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PROPSYNC_APP_ENV" required:"true"`
	Port         string `envconfig:"PROPSYNC_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PROPSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PROPSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PROPSYNC_DB_DSN"`
	Driver string `envconfig:"PROPSYNC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PROPSYNC_DB_HOST"`
	LegacyPort     int    `envconfig:"PROPSYNC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PROPSYNC_DB_USER"`
	LegacyPassword string `envconfig:"PROPSYNC_DB_PASSWORD"`
	LegacyName     string `envconfig:"PROPSYNC_DB_NAME"`
	LegacySSLMode  string `envconfig:"PROPSYNC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PROPSYNC_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"PROPSYNC_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"PROPSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PROPSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PROPSYNC_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PROPSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"PROPSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"PROPSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PROPSYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PROPSYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PROPSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PROPSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PROPSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ProposalsConfig points at the proposal service (Better Proposals shaped API).
type ProposalsConfig struct {
	BaseURL     string        `envconfig:"PROPSYNC_PROPOSALS_BASE_URL" default:"https://betterproposals.io/api"`
	APIKey      string        `envconfig:"PROPSYNC_PROPOSALS_API_KEY" required:"true"`
	Timeout     time.Duration `envconfig:"PROPSYNC_PROPOSALS_TIMEOUT" default:"30s"`
	MaxAttempts int           `envconfig:"PROPSYNC_PROPOSALS_MAX_ATTEMPTS" default:"3"`
}

// CRMConfig points at the CRM (Pipedrive shaped API).
type CRMConfig struct {
	BaseURL     string        `envconfig:"PROPSYNC_CRM_BASE_URL" default:"https://api.pipedrive.com/v1"`
	APIToken    string        `envconfig:"PROPSYNC_CRM_API_TOKEN" required:"true"`
	Timeout     time.Duration `envconfig:"PROPSYNC_CRM_TIMEOUT" default:"30s"`
	MaxAttempts int           `envconfig:"PROPSYNC_CRM_MAX_ATTEMPTS" default:"3"`

	// DiscountType is forwarded verbatim on deal-product rows. The CRM's
	// field semantics decide whether discounts are percentages or amounts;
	// confirm against the live account before changing it.
	DiscountType string `envconfig:"PROPSYNC_CRM_DISCOUNT_TYPE" default:"percentage"`
}

type WebhookConfig struct {
	SigningSecret string `envconfig:"PROPSYNC_WEBHOOK_SIGNING_SECRET" required:"true"`
}

type SyncConfig struct {
	DedupTTL        time.Duration `envconfig:"PROPSYNC_SYNC_DEDUP_TTL" default:"24h"`
	LockTTL         time.Duration `envconfig:"PROPSYNC_SYNC_LOCK_TTL" default:"5m"`
	LockWaitTimeout time.Duration `envconfig:"PROPSYNC_SYNC_LOCK_WAIT_TIMEOUT" default:"30s"`
}

type CronConfig struct {
	Interval         time.Duration `envconfig:"PROPSYNC_CRON_INTERVAL" default:"1h"`
	SyncLogRetention time.Duration `envconfig:"PROPSYNC_CRON_SYNCLOG_RETENTION" default:"2160h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PROPSYNC_AUTO_MIGRATE" default:"false"`
	SyncLog     bool `envconfig:"PROPSYNC_FEATURE_SYNCLOG" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
