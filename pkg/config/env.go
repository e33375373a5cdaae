package config

const (
	EnvPrefix = "ARTISANCRATE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	MidtransProductionBaseURL = "https://app.midtrans.com"
	MidtransSandboxBaseURL    = "https://app.sandbox.midtrans.com"
)

const (
	EnvAppEnv            = "ARTISANCRATE_APP_ENV"
	EnvPort              = "ARTISANCRATE_APP_PORT"
	EnvDBDSN             = "ARTISANCRATE_DB_DSN"
	EnvDBDriver          = "ARTISANCRATE_DB_DRIVER"
	EnvDBHost            = "ARTISANCRATE_DB_HOST"
	EnvDBUser            = "ARTISANCRATE_DB_USER"
	EnvDBName            = "ARTISANCRATE_DB_NAME"
	EnvRedisURL          = "ARTISANCRATE_REDIS_URL"
	EnvJWTSecret         = "ARTISANCRATE_JWT_SECRET"
	EnvJWTIssuer         = "ARTISANCRATE_JWT_ISSUER"
	EnvMidtransServerKey = "ARTISANCRATE_MIDTRANS_SERVER_KEY"
	EnvMidtransIsProd    = "ARTISANCRATE_MIDTRANS_IS_PRODUCTION"
	EnvGCPProjectID      = "ARTISANCRATE_GCP_PROJECT_ID"
)

var splitDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
