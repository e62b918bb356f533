package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	fanpages map[string]*model.Fanpage
	calls    int
}

func (s *countingSource) GetFanpageByPageId(ctx context.Context, pageId string) (*model.Fanpage, error) {
	s.calls++
	fanpage, ok := s.fanpages[pageId]
	if !ok {
		return nil, apperr.NotFound("fanpage not found")
	}
	copied := *fanpage
	return &copied, nil
}

func newTestDirectory(t *testing.T) (*FanpageDirectory, *countingSource, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	source := &countingSource{fanpages: map[string]*model.Fanpage{
		"100": {Id: "f1", PageId: "100", Name: "Shop", AccessToken: "page-token", UserId: "u1", IsConnected: true},
	}}
	return NewFanpageDirectory(client, source, time.Minute), source, mr
}

func TestLookupReadsThrough(t *testing.T) {
	ctx := context.Background()
	directory, source, mr := newTestDirectory(t)

	fanpage, err := directory.Lookup(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "f1", fanpage.Id)
	assert.True(t, mr.Exists(key("100")))

	cached, err := directory.Lookup(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, "page-token", cached.AccessToken)
	assert.Equal(t, "u1", cached.UserId)
}

func TestLookupMissIsNotCached(t *testing.T) {
	ctx := context.Background()
	directory, _, mr := newTestDirectory(t)

	_, err := directory.Lookup(ctx, "999")
	assert.True(t, apperr.IsNotFound(err))
	assert.False(t, mr.Exists(key("999")))
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	directory, source, mr := newTestDirectory(t)

	_, err := directory.Lookup(ctx, "100")
	require.NoError(t, err)
	require.NoError(t, directory.Invalidate(ctx, "100"))
	assert.False(t, mr.Exists(key("100")))

	source.fanpages["100"].AccessToken = "rotated"
	fanpage, err := directory.Lookup(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "rotated", fanpage.AccessToken)
	assert.Equal(t, 2, source.calls)
}

func TestEntriesExpire(t *testing.T) {
	ctx := context.Background()
	directory, source, mr := newTestDirectory(t)

	_, err := directory.Lookup(ctx, "100")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = directory.Lookup(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestLookupFallsBackWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	directory, source, mr := newTestDirectory(t)
	mr.Close()

	fanpage, err := directory.Lookup(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "f1", fanpage.Id)
	assert.Equal(t, 1, source.calls)
}

func TestNilClientDisablesCaching(t *testing.T) {
	source := &countingSource{fanpages: map[string]*model.Fanpage{"100": {Id: "f1", PageId: "100"}}}
	directory := NewFanpageDirectory(nil, source, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := directory.Lookup(context.Background(), "100")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, source.calls)
	assert.NoError(t, directory.Invalidate(context.Background(), "100"))
}

func TestInvalidatorDropsEntryOnPublish(t *testing.T) {
	ctx := context.Background()
	directory, source, mr := newTestDirectory(t)

	_, err := directory.Lookup(ctx, "100")
	require.NoError(t, err)
	require.True(t, mr.Exists(key("100")))

	require.NoError(t, Invalidator{Directory: directory}.PublishFanpageChanged(ctx, "100"))
	assert.False(t, mr.Exists(key("100")))

	source.fanpages["100"].AccessToken = "rotated"
	fanpage, err := directory.Lookup(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "rotated", fanpage.AccessToken)
}
