package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "creamery"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CREAMERY_DB_DSN"
	EnvDBHost = "CREAMERY_DB_HOST"
	EnvDBUser = "CREAMERY_DB_USER"
	EnvDBName = "CREAMERY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Checkout CheckoutConfig
	PayPal   PayPalConfig
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
	Env          string `envconfig:"CREAMERY_APP_ENV" required:"true"`
	Port         string `envconfig:"CREAMERY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CREAMERY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CREAMERY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CREAMERY_DB_DSN"`
	Driver string `envconfig:"CREAMERY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CREAMERY_DB_HOST"`
	LegacyPort     int    `envconfig:"CREAMERY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CREAMERY_DB_USER"`
	LegacyPassword string `envconfig:"CREAMERY_DB_PASSWORD"`
	LegacyName     string `envconfig:"CREAMERY_DB_NAME"`
	LegacySSLMode  string `envconfig:"CREAMERY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CREAMERY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CREAMERY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CREAMERY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CREAMERY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CREAMERY_REDIS_URL"`
	Address      string        `envconfig:"CREAMERY_REDIS_ADDR"`
	Password     string        `envconfig:"CREAMERY_REDIS_PASSWORD"`
	DB           int           `envconfig:"CREAMERY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CREAMERY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CREAMERY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CREAMERY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CREAMERY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CREAMERY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CREAMERY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CREAMERY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CREAMERY_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CheckoutConfig carries the tunables of the checkout saga.
type CheckoutConfig struct {
	// ShippingFeeCents is the flat shipping fee applied once per order.
	ShippingFeeCents int `envconfig:"CREAMERY_SHIPPING_FEE_CENTS" default:"5000"`
	// PointsStrict makes a points redeem failure abort the whole checkout
	// transaction. When false the failure is logged and checkout commits
	// without the discount adjustment ever being reverted.
	PointsStrict bool `envconfig:"CREAMERY_CHECKOUT_POINTS_STRICT" default:"true"`
	// IdempotencyTTL bounds the redis replay cache for checkout/cancel.
	IdempotencyTTL time.Duration `envconfig:"CREAMERY_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
}

type PayPalConfig struct {
	BaseURL      string        `envconfig:"CREAMERY_PAYPAL_BASE_URL" default:"https://api-m.sandbox.paypal.com"`
	ClientID     string        `envconfig:"CREAMERY_PAYPAL_CLIENT_ID"`
	ClientSecret string        `envconfig:"CREAMERY_PAYPAL_CLIENT_SECRET"`
	Timeout      time.Duration `envconfig:"CREAMERY_PAYPAL_TIMEOUT" default:"20s"`
	Currency     string        `envconfig:"CREAMERY_PAYPAL_CURRENCY" default:"USD"`
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
