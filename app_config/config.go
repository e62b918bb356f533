package app_config

import (
	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
)

// Config is the process configuration read from environment variables. Load
// the .env files through utils/dotenv before calling ParseConfig.
type Config struct {
	Address string `env:"ADDRESS" envDefault:":8080"`

	DBHost string `env:"DB_HOST" envDefault:"localhost"`
	DBPort string `env:"DB_PORT" envDefault:"5432"`
	DBUser string `env:"DB_USER"`
	DBPass string `env:"DB_PASS"`
	DBName string `env:"DB_NAME" envDefault:"pagemux"`

	// Redis is optional, the fanpage directory runs uncached without it.
	RedisHost   string `env:"REDIS_HOST"`
	RedisPort   string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPasswd string `env:"REDIS_PASSWD"`

	JWTSecret string `env:"JWT_SECRET,required"`

	// Token echoed back during the webhook subscription handshake.
	WebhookVerifyToken string `env:"FACEBOOK_WEBHOOK_TOKEN,required"`
	// When set, POST deliveries must carry a valid X-Hub-Signature-256.
	FacebookAppSecret string `env:"FACEBOOK_APP_SECRET"`
	FacebookAppID     string `env:"FACEBOOK_APP_ID"`
	GraphBaseURL      string `env:"FACEBOOK_GRAPH_URL" envDefault:"https://graph.facebook.com/v23.0"`

	ClientURL string `env:"CLIENT_URL" envDefault:"http://localhost:3000"`

	StatsdAddr string `env:"STATSD_ADDR"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// Logs reach Datadog only in prod and only with a key.
	DatadogHost   string `env:"DD_LOG_HOST" envDefault:"http-intake.logs.datadoghq.com"`
	DatadogAPIKey string `env:"DD_API_KEY"`

	SyncConfigPath string `env:"SYNC_CONFIG_PATH" envDefault:"sync_config.yaml"`
}

func ParseConfig() (Config, error) {
	c := Config{}
	if err := env.Parse(&c); err != nil {
		return c, errors.Wrap(err, "fail to parse config from environment")
	}
	return c, nil
}

func (c Config) RedisEnabled() bool {
	return c.RedisHost != ""
}
