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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Gateway      GatewayConfig
	Billing      BillingConfig
	Webhook      WebhookConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Gateway.validate(cfg.App); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ARTISANCRATE_APP_ENV" required:"true"`
	Port         string `envconfig:"ARTISANCRATE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ARTISANCRATE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"ARTISANCRATE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"ARTISANCRATE_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated allow list for browser callers.
	CORSOrigins []string `envconfig:"ARTISANCRATE_CORS_ORIGINS" default:"http://localhost:3000,https://artisancrate.id,https://www.artisancrate.id"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ARTISANCRATE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ARTISANCRATE_DB_DSN"`
	Driver string `envconfig:"ARTISANCRATE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"ARTISANCRATE_DB_HOST"`
	Port     int    `envconfig:"ARTISANCRATE_DB_PORT" default:"5432"`
	User     string `envconfig:"ARTISANCRATE_DB_USER"`
	Password string `envconfig:"ARTISANCRATE_DB_PASSWORD"`
	Name     string `envconfig:"ARTISANCRATE_DB_NAME"`
	SSLMode  string `envconfig:"ARTISANCRATE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ARTISANCRATE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ARTISANCRATE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ARTISANCRATE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ARTISANCRATE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"ARTISANCRATE_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ARTISANCRATE_REDIS_URL"`
	Address      string        `envconfig:"ARTISANCRATE_REDIS_ADDR"`
	Password     string        `envconfig:"ARTISANCRATE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ARTISANCRATE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ARTISANCRATE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ARTISANCRATE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ARTISANCRATE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ARTISANCRATE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ARTISANCRATE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens minted by the external auth service.
type JWTConfig struct {
	Secret string `envconfig:"ARTISANCRATE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"ARTISANCRATE_JWT_ISSUER" required:"true"`
	// Audience is checked only when set.
	Audience string        `envconfig:"ARTISANCRATE_JWT_AUDIENCE"`
	Leeway   time.Duration `envconfig:"ARTISANCRATE_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ARTISANCRATE_AUTO_MIGRATE" default:"false"`
}

// GatewayConfig holds the Midtrans Snap credentials and client tuning.
type GatewayConfig struct {
	ServerKey        string        `envconfig:"ARTISANCRATE_MIDTRANS_SERVER_KEY"`
	IsProduction     bool          `envconfig:"ARTISANCRATE_MIDTRANS_IS_PRODUCTION" default:"false"`
	BaseURL          string        `envconfig:"ARTISANCRATE_MIDTRANS_BASE_URL"`
	Timeout          time.Duration `envconfig:"ARTISANCRATE_MIDTRANS_TIMEOUT" default:"15s"`
	BreakerFailures  uint32        `envconfig:"ARTISANCRATE_MIDTRANS_BREAKER_FAILURES" default:"5"`
	BreakerOpenFor   time.Duration `envconfig:"ARTISANCRATE_MIDTRANS_BREAKER_OPEN_FOR" default:"30s"`
	BreakerHalfOpens uint32        `envconfig:"ARTISANCRATE_MIDTRANS_BREAKER_HALF_OPEN_REQUESTS" default:"1"`
}

// BaseURLOrDefault returns the configured override or the environment's Snap host.
func (g GatewayConfig) BaseURLOrDefault() string {
	if base := strings.TrimRight(strings.TrimSpace(g.BaseURL), "/"); base != "" {
		return base
	}
	if g.IsProduction {
		return MidtransProductionBaseURL
	}
	return MidtransSandboxBaseURL
}

func (g GatewayConfig) validate(app AppConfig) error {
	if app.IsProd() && strings.TrimSpace(g.ServerKey) == "" {
		return fmt.Errorf("%s is required in production", EnvMidtransServerKey)
	}
	return nil
}

// BillingConfig tunes the recurring invoice job.
type BillingConfig struct {
	InvoiceDueDays int           `envconfig:"ARTISANCRATE_BILLING_INVOICE_DUE_DAYS" default:"3"`
	CronInterval   time.Duration `envconfig:"ARTISANCRATE_BILLING_CRON_INTERVAL" default:"24h"`
	LockTTL        time.Duration `envconfig:"ARTISANCRATE_BILLING_LOCK_TTL" default:"1h"`
}

// WebhookConfig tunes the gateway notification replay filter.
type WebhookConfig struct {
	ReplayTTL time.Duration `envconfig:"ARTISANCRATE_WEBHOOK_REPLAY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"ARTISANCRATE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic string        `envconfig:"ARTISANCRATE_PUBSUB_NOTIFICATION_TOPIC" default:"artisancrate-customer-notifications"`
	PublishDelay      time.Duration `envconfig:"ARTISANCRATE_PUBSUB_PUBLISH_DELAY" default:"10ms"`
	PublishBatchCount int           `envconfig:"ARTISANCRATE_PUBSUB_PUBLISH_BATCH_COUNT" default:"100"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ARTISANCRATE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ARTISANCRATE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ARTISANCRATE_OUTBOX_MAX_ATTEMPTS" default:"10"`

	PublishedRetention  time.Duration `envconfig:"ARTISANCRATE_OUTBOX_PUBLISHED_RETENTION" default:"720h"`
	DeadLetterRetention time.Duration `envconfig:"ARTISANCRATE_OUTBOX_DLQ_RETENTION" default:"2160h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, DriverSQLite) {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range splitDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
