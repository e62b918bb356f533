// Package cache keeps the page id -> fanpage lookup of the webhook hot path
// in redis. Every webhook entry resolves its page, so the lookup is read far
// more often than fanpages change.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Luismorlan/pagemux/model"
	. "github.com/Luismorlan/pagemux/utils/log"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const keyPrefix = "fanpage__"

// FanpageSource is the authoritative lookup behind the cache.
type FanpageSource interface {
	GetFanpageByPageId(ctx context.Context, pageId string) (*model.Fanpage, error)
}

// cachedFanpage carries the access token, which the model hides from JSON.
type cachedFanpage struct {
	model.Fanpage
	AccessToken string `json:"accessToken"`
}

type FanpageDirectory struct {
	inner  *redis.Client
	source FanpageSource
	ttl    time.Duration
}

// NewFanpageDirectory returns a directory reading through redis. A nil client
// disables caching and every lookup goes to source.
func NewFanpageDirectory(client *redis.Client, source FanpageSource, ttl time.Duration) *FanpageDirectory {
	return &FanpageDirectory{inner: client, source: source, ttl: ttl}
}

func key(pageId string) string {
	return keyPrefix + pageId
}

// Lookup resolves a Facebook page id. Redis failures degrade to the source,
// a cache problem never fails a lookup.
func (d *FanpageDirectory) Lookup(ctx context.Context, pageId string) (*model.Fanpage, error) {
	if d.inner == nil {
		return d.source.GetFanpageByPageId(ctx, pageId)
	}

	raw, err := d.inner.Get(ctx, key(pageId)).Bytes()
	switch {
	case err == nil:
		var cached cachedFanpage
		if err := json.Unmarshal(raw, &cached); err == nil {
			fanpage := cached.Fanpage
			fanpage.AccessToken = cached.AccessToken
			return &fanpage, nil
		}
		Log.WithField("page_id", pageId).Warn("dropping undecodable fanpage cache entry")
	case errors.Is(err, redis.Nil):
	default:
		Log.WithField("page_id", pageId).Warn("fanpage cache read failed: ", err)
	}

	fanpage, err := d.source.GetFanpageByPageId(ctx, pageId)
	if err != nil {
		return nil, err
	}
	d.put(ctx, fanpage)
	return fanpage, nil
}

func (d *FanpageDirectory) put(ctx context.Context, fanpage *model.Fanpage) {
	encoded, err := json.Marshal(cachedFanpage{Fanpage: *fanpage, AccessToken: fanpage.AccessToken})
	if err != nil {
		return
	}
	if err := d.inner.Set(ctx, key(fanpage.PageId), encoded, d.ttl).Err(); err != nil {
		Log.WithField("page_id", fanpage.PageId).Warn("fanpage cache write failed: ", err)
	}
}

// Invalidate drops the cached entry so the next lookup reads the source.
func (d *FanpageDirectory) Invalidate(ctx context.Context, pageId string) error {
	if d.inner == nil {
		return nil
	}
	return errors.Wrap(d.inner.Del(ctx, key(pageId)).Err(), "fail to invalidate fanpage "+pageId)
}

// Invalidator stands in for the change bus in processes that share the redis
// cache but not the API server's in-process bus.
type Invalidator struct {
	Directory *FanpageDirectory
}

func (i Invalidator) PublishFanpageChanged(ctx context.Context, pageId string) error {
	return i.Directory.Invalidate(ctx, pageId)
}
