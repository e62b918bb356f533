package modules

import (
	"context"

	"github.com/Luismorlan/pagemux/engine"
	. "github.com/Luismorlan/pagemux/utils/log"
	"github.com/ThreeDotsLabs/watermill/message"
)

type CacheInvalidatorConfig struct {
	Name string
}

type FanpageCache interface {
	Invalidate(ctx context.Context, pageId string) error
}

// CacheInvalidator drops cached page lookups when a fanpage changes, so the
// webhook path sees a disconnect or a rotated credential right away.
type CacheInvalidator struct {
	Config CacheInvalidatorConfig

	cache    FanpageCache
	EventBus message.Subscriber
}

func NewCacheInvalidator(config CacheInvalidatorConfig, cache FanpageCache, e message.Subscriber) *CacheInvalidator {
	return &CacheInvalidator{
		Config:   config,
		cache:    cache,
		EventBus: e,
	}
}

func (c *CacheInvalidator) RunModule(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages, err := c.EventBus.Subscribe(ctx, engine.TopicFanpageChanged)
	if err != nil {
		return err
	}

	for msg := range messages {
		msg.Ack()

		changed, err := engine.DecodeFanpageChanged(msg)
		if err != nil {
			Log.WithField("module", c.Name()).Errorln("dropping malformed message: ", err)
			continue
		}
		if err := c.cache.Invalidate(ctx, changed.PageId); err != nil {
			Log.WithField("page_id", changed.PageId).Warnln("fail to invalidate fanpage cache: ", err)
		}
	}
	return nil
}

func (c *CacheInvalidator) Name() string {
	return c.Config.Name
}
