package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "BABYBEAR"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv             = "BABYBEAR_APP_ENV"
	EnvPort               = "BABYBEAR_APP_PORT"
	EnvDBDSN              = "BABYBEAR_DB_DSN"
	EnvDBHost             = "BABYBEAR_DB_HOST"
	EnvDBUser             = "BABYBEAR_DB_USER"
	EnvDBName             = "BABYBEAR_DB_NAME"
	EnvJWTSecret          = "BABYBEAR_JWT_SECRET"
	EnvJWTIssuer          = "BABYBEAR_JWT_ISSUER"
	EnvJWTExpMins         = "BABYBEAR_JWT_EXPIRATION_MINUTES"
	EnvBakongAccountID    = "BABYBEAR_BAKONG_ACCOUNT_ID"
	EnvBakongMerchantName = "BABYBEAR_BAKONG_MERCHANT_NAME"
)

var legacyDBEnvVars = []string{
	EnvDBHost,
	EnvDBUser,
	EnvDBName,
}
