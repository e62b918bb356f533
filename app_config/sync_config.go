package app_config

import (
	"io/ioutil"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// SyncConfig holds the tunables of the sync pipeline and the credential sweep.
type SyncConfig struct {
	// Page size used for every listing call against the Graph API and for the
	// one-shot lazy pull of an empty scope.
	PULL_PAGE_SIZE int `yaml:"PULL_PAGE_SIZE"`
	// Hour of day (local time) at which the credential sweep runs.
	SWEEP_HOUR int `yaml:"SWEEP_HOUR"`
	// Credentials issued longer ago than this are exchanged for new ones.
	REFRESH_AFTER_DAYS int `yaml:"REFRESH_AFTER_DAYS"`
	// Once a user holds NOTIFICATION_CAP notifications the oldest are pruned
	// down to NOTIFICATION_KEEP.
	NOTIFICATION_CAP  int `yaml:"NOTIFICATION_CAP"`
	NOTIFICATION_KEEP int `yaml:"NOTIFICATION_KEEP"`
	// TTL of cached page id -> fanpage lookups.
	FANPAGE_CACHE_TTL_SECOND int `yaml:"FANPAGE_CACHE_TTL_SECOND"`
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		PULL_PAGE_SIZE:           100,
		SWEEP_HOUR:               2,
		REFRESH_AFTER_DAYS:       50,
		NOTIFICATION_CAP:         100,
		NOTIFICATION_KEEP:        90,
		FANPAGE_CACHE_TTL_SECOND: 300,
	}
}

// ParseSyncConfig reads the yaml file at path on top of the defaults. A
// missing file yields the defaults.
func ParseSyncConfig(path string) (SyncConfig, error) {
	c := DefaultSyncConfig()
	yamlFile, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return c, errors.Wrap(err, "fail to read sync config "+path)
	}
	if err := yaml.Unmarshal(yamlFile, &c); err != nil {
		return c, errors.Wrap(err, "fail to unmarshal sync config "+path)
	}
	if c.NOTIFICATION_KEEP >= c.NOTIFICATION_CAP {
		return c, errors.Errorf("NOTIFICATION_KEEP (%d) must be lower than NOTIFICATION_CAP (%d)", c.NOTIFICATION_KEEP, c.NOTIFICATION_CAP)
	}
	return c, nil
}

func (c SyncConfig) RefreshThreshold() time.Duration {
	return time.Duration(c.REFRESH_AFTER_DAYS) * 24 * time.Hour
}

func (c SyncConfig) FanpageCacheTTL() time.Duration {
	return time.Duration(c.FANPAGE_CACHE_TTL_SECOND) * time.Second
}
