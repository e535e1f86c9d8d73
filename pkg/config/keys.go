package config

// EnvPrefix namespaces every environment variable consumed by the service.
const EnvPrefix = "propsync"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "PROPSYNC_APP_ENV"
	EnvPort         = "PROPSYNC_APP_PORT"
	EnvDBDSN        = "PROPSYNC_DB_DSN"
	EnvDBHost       = "PROPSYNC_DB_HOST"
	EnvDBUser       = "PROPSYNC_DB_USER"
	EnvDBName       = "PROPSYNC_DB_NAME"
	EnvRedisURL     = "PROPSYNC_REDIS_URL"
	EnvProposalsKey = "PROPSYNC_PROPOSALS_API_KEY"
	EnvCRMToken     = "PROPSYNC_CRM_API_TOKEN"
	EnvWebhookKey   = "PROPSYNC_WEBHOOK_SIGNING_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
