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
	JWT          JWTConfig
	Checkout     CheckoutConfig
	Bakong       BakongConfig
	Upload       UploadConfig
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
	Env          string `envconfig:"BABYBEAR_APP_ENV" required:"true"`
	Port         string `envconfig:"BABYBEAR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BABYBEAR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BABYBEAR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BABYBEAR_DB_DSN"`
	Driver string `envconfig:"BABYBEAR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BABYBEAR_DB_HOST"`
	LegacyPort     int    `envconfig:"BABYBEAR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BABYBEAR_DB_USER"`
	LegacyPassword string `envconfig:"BABYBEAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"BABYBEAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"BABYBEAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BABYBEAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BABYBEAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BABYBEAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BABYBEAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BABYBEAR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BABYBEAR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BABYBEAR_JWT_EXPIRATION_MINUTES" required:"true"`
}

// Expiry returns the access token lifetime configured in minutes.
func (j JWTConfig) Expiry() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type CheckoutConfig struct {
	PollInterval         time.Duration `envconfig:"BABYBEAR_CHECKOUT_POLL_INTERVAL" default:"4s"`
	PollTimeout          time.Duration `envconfig:"BABYBEAR_CHECKOUT_POLL_TIMEOUT" default:"180s"`
	DeliveryFee          string        `envconfig:"BABYBEAR_CHECKOUT_DELIVERY_FEE" default:"1.50"`
	FreeDeliveryMinItems int           `envconfig:"BABYBEAR_CHECKOUT_FREE_DELIVERY_MIN_ITEMS" default:"2"`
}

type BakongConfig struct {
	BaseURL      string        `envconfig:"BABYBEAR_BAKONG_BASE_URL" default:"https://api-bakong.nbc.gov.kh"`
	Token        string        `envconfig:"BABYBEAR_BAKONG_TOKEN"`
	AccountID    string        `envconfig:"BABYBEAR_BAKONG_ACCOUNT_ID" required:"true"`
	MerchantName string        `envconfig:"BABYBEAR_BAKONG_MERCHANT_NAME" required:"true"`
	MerchantCity string        `envconfig:"BABYBEAR_BAKONG_MERCHANT_CITY" default:"Phnom Penh"`
	AppIconURL   string        `envconfig:"BABYBEAR_BAKONG_APP_ICON_URL"`
	AppName      string        `envconfig:"BABYBEAR_BAKONG_APP_NAME" default:"Baby Bear"`
	HTTPTimeout  time.Duration `envconfig:"BABYBEAR_BAKONG_HTTP_TIMEOUT" default:"10s"`
}

type UploadConfig struct {
	Dir         string `envconfig:"BABYBEAR_UPLOAD_DIR" default:"./uploads"`
	MaxUploadMB int    `envconfig:"BABYBEAR_MAX_UPLOAD_MB" default:"10"`
	PublicBase  string `envconfig:"BABYBEAR_UPLOAD_PUBLIC_BASE" default:"/uploads"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BABYBEAR_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BABYBEAR_AUTO_MIGRATE" default:"false"`
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
