package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreLog(t *testing.T) {
	saved := Log
	t.Cleanup(func() { Log = saved })
}

func TestConfigureSetsLevel(t *testing.T) {
	restoreLog(t)

	require.NoError(t, ConfigureLogger(LoggerOptions{Level: "debug"}))
	assert.Equal(t, logrus.DebugLevel, Log.Logger.GetLevel())
	assert.Contains(t, Log.Data, "service")

	require.NoError(t, ConfigureLogger(LoggerOptions{}))
	assert.Equal(t, logrus.InfoLevel, Log.Logger.GetLevel())
}

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	restoreLog(t)
	before := Log

	assert.Error(t, ConfigureLogger(LoggerOptions{Level: "chatty"}))
	assert.Same(t, before, Log)
}

func TestDatadogShippingNeedsFlagAndKey(t *testing.T) {
	restoreLog(t)

	assert.Nil(t, datadogHook(LoggerOptions{Ship: true}))
	assert.Nil(t, datadogHook(LoggerOptions{DatadogAPIKey: "key"}))

	require.NoError(t, ConfigureLogger(LoggerOptions{DatadogAPIKey: "key"}))
	assert.Empty(t, Log.Logger.Hooks)
}
