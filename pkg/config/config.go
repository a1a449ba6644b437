package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "COMEDOR"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "COMEDOR_APP_ENV"
	EnvDBDSN  = "COMEDOR_DB_DSN"
	EnvDBHost = "COMEDOR_DB_HOST"
	EnvDBUser = "COMEDOR_DB_USER"
	EnvDBName = "COMEDOR_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	WebPush       WebPushConfig
	Notifications NotificationsConfig
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
	Env          string   `envconfig:"COMEDOR_APP_ENV" required:"true"`
	Port         string   `envconfig:"COMEDOR_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"COMEDOR_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"COMEDOR_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"COMEDOR_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COMEDOR_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COMEDOR_DB_DSN"`
	Driver string `envconfig:"COMEDOR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COMEDOR_DB_HOST"`
	LegacyPort     int    `envconfig:"COMEDOR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COMEDOR_DB_USER"`
	LegacyPassword string `envconfig:"COMEDOR_DB_PASSWORD"`
	LegacyName     string `envconfig:"COMEDOR_DB_NAME"`
	LegacySSLMode  string `envconfig:"COMEDOR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COMEDOR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COMEDOR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COMEDOR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COMEDOR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COMEDOR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COMEDOR_REDIS_ADDR"`
	Password     string        `envconfig:"COMEDOR_REDIS_PASSWORD"`
	DB           int           `envconfig:"COMEDOR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COMEDOR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COMEDOR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COMEDOR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COMEDOR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COMEDOR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"COMEDOR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COMEDOR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"COMEDOR_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"COMEDOR_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"COMEDOR_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"COMEDOR_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"COMEDOR_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"COMEDOR_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"COMEDOR_PUBSUB_DOMAIN_TOPIC" default:"comedor-domain-events"`
	DomainSubscription string `envconfig:"COMEDOR_PUBSUB_DOMAIN_SUBSCRIPTION" required:"true"`
}

type WebPushConfig struct {
	VAPIDPublicKey  string `envconfig:"COMEDOR_VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"COMEDOR_VAPID_PRIVATE_KEY"`
	Subscriber      string `envconfig:"COMEDOR_WEBPUSH_SUBSCRIBER" default:"mailto:noreply@comedor.app"`
	TTLSeconds      int    `envconfig:"COMEDOR_WEBPUSH_TTL_SECONDS" default:"86400"`
}

// Enabled reports whether the push capability is configured at all.
func (w WebPushConfig) Enabled() bool {
	return strings.TrimSpace(w.VAPIDPublicKey) != "" && strings.TrimSpace(w.VAPIDPrivateKey) != ""
}

type NotificationsConfig struct {
	RetentionDays      int           `envconfig:"COMEDOR_NOTIFICATIONS_RETENTION_DAYS" default:"30"`
	SubscriptionMaxAge time.Duration `envconfig:"COMEDOR_PUSH_SUBSCRIPTION_MAX_AGE" default:"2160h"`
	FeedBuffer         int           `envconfig:"COMEDOR_NOTIFICATIONS_FEED_BUFFER" default:"64"`
	CronInterval       time.Duration `envconfig:"COMEDOR_CRON_INTERVAL" default:"24h"`
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
