package log

import (
	"os"
	"time"

	"github.com/Luismorlan/pagemux/utils/dotenv"
	"github.com/Luismorlan/pagemux/utils/flag"
	ddhook "github.com/bin3377/logrus-datadog-hook"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultDatadogHost = "http-intake.logs.datadoghq.com"

	datadogBatch    = 30 * time.Second
	datadogRetry    = 3
	datadogSource   = "pagemux"
	datadogMinLevel = logrus.InfoLevel
)

// Log is the process-wide entry, dot-imported by every package.
var Log *logrus.Entry

// LoggerOptions are read from the process config and applied by ConfigureLogger.
type LoggerOptions struct {
	// One of logrus' level names; empty keeps info.
	Level string
	// Logs are shipped to Datadog only when Ship is set and a key is present.
	Ship          bool
	DatadogHost   string
	DatadogAPIKey string
}

// Tests and tools never reach main, so they get a plain stderr logger.
func init() {
	Log = entry(logrus.New())
}

// ConfigureLogger replaces the global logger. Call it from main once config is
// parsed and before any module starts logging.
func ConfigureLogger(o LoggerOptions) error {
	logger := logrus.New()
	if o.Level != "" {
		level, err := logrus.ParseLevel(o.Level)
		if err != nil {
			return errors.Wrap(err, "invalid log level")
		}
		logger.SetLevel(level)
	}
	if hook := datadogHook(o); hook != nil {
		logger.Hooks.Add(hook)
	}
	Log = entry(logger)
	return nil
}

func entry(logger *logrus.Logger) *logrus.Entry {
	// Stderr stays human readable, only the Datadog hook formats JSON.
	logger.SetOutput(os.Stderr)
	return logger.WithFields(logrus.Fields{
		"service":        *flag.ServiceName,
		"is_development": !dotenv.IsProdEnv(),
	})
}

func datadogHook(o LoggerOptions) logrus.Hook {
	if !o.Ship || o.DatadogAPIKey == "" {
		return nil
	}
	host := o.DatadogHost
	if host == "" {
		host = DefaultDatadogHost
	}
	return ddhook.NewHook(host, o.DatadogAPIKey, datadogBatch, datadogRetry, datadogMinLevel,
		&logrus.JSONFormatter{}, ddhook.Options{Source: datadogSource, Service: *flag.ServiceName})
}
