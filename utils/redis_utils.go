package utils

import (
	"context"
	"fmt"

	"github.com/Luismorlan/pagemux/app_config"
	. "github.com/Luismorlan/pagemux/utils/log"
	"github.com/codeGROOVE-dev/retry"
	"github.com/go-redis/redis/v8"
)

// GetRedisClient connects to the redis described by config and pings it.
func GetRedisClient(ctx context.Context, c app_config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort),
		Password: c.RedisPasswd,
		DB:       0, // use default DB
	})
	err := retry.Do(
		func() error {
			return client.Ping(ctx).Err()
		},
		retry.Attempts(connectAttempts),
		retry.Delay(connectDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			Log.WithField("attempt", n).Warn("redis not reachable yet: ", err)
		}),
	)
	if err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
