package modules

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Luismorlan/pagemux/facebook"
	"github.com/Luismorlan/pagemux/model"
	"github.com/Luismorlan/pagemux/store"
	"github.com/Luismorlan/pagemux/store/cache"
	"github.com/Luismorlan/pagemux/utils"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	changed []string
}

func (p *recordingPublisher) PublishFanpageChanged(ctx context.Context, pageId string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, pageId)
	return nil
}

// tokenGraph exchanges "x" for "new-x" and hands out "page-" + user token for
// every page except "broken".
func tokenGraph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case r.URL.Path == "/oauth/access_token":
		if q.Get("fb_exchange_token") == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"Invalid OAuth access token"}}`))
			return
		}
		w.Write([]byte(`{"access_token":"new-` + q.Get("fb_exchange_token") + `","token_type":"bearer"}`))
	case r.URL.Path == "/broken":
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Page not accessible"}}`))
	default:
		pageId := strings.TrimPrefix(r.URL.Path, "/")
		w.Write([]byte(`{"id":"` + pageId + `","access_token":"page-` + q.Get("access_token") + `"}`))
	}
}

type sweepFixture struct {
	sweep     *CredentialSweep
	store     *store.Store
	publisher *recordingPublisher
	now       time.Time
}

func newSweepFixture(t *testing.T) *sweepFixture {
	server := httptest.NewServer(http.HandlerFunc(tokenGraph))
	t.Cleanup(server.Close)

	s := store.New(utils.CreateTempDB(t))
	publisher := &recordingPublisher{}
	client := facebook.NewClient(facebook.ClientConfig{BaseURL: server.URL, AppID: "app", AppSecret: "secret"})
	sweep := NewCredentialSweep(CredentialSweepConfig{
		Name:         "credential_sweep",
		SweepHour:    3,
		RefreshAfter: 50 * 24 * time.Hour,
	}, s, client, publisher, nil)

	now := time.Now()
	sweep.now = func() time.Time { return now }
	return &sweepFixture{sweep: sweep, store: s, publisher: publisher, now: now}
}

func (f *sweepFixture) seedUser(t *testing.T, id, token string, issuedAt *time.Time) {
	require.NoError(t, f.store.DB().Create(&model.User{
		Id:                    id,
		Email:                 id + "@example.com",
		FacebookToken:         token,
		FacebookTokenIssuedAt: issuedAt,
	}).Error)
}

func (f *sweepFixture) seedFanpage(t *testing.T, userId, pageId string) *model.Fanpage {
	fanpage, err := f.store.ConnectFanpage(context.Background(), &model.Fanpage{
		PageId:      pageId,
		Name:        "Shop " + pageId,
		AccessToken: "old-page-token",
		UserId:      userId,
	})
	require.NoError(t, err)
	return fanpage
}

func daysAgo(now time.Time, days int) *time.Time {
	t := now.Add(-time.Duration(days) * 24 * time.Hour)
	return &t
}

func TestSweepRefreshesStaleCredentials(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t)

	f.seedUser(t, "stale", "old", daysAgo(f.now, 70))
	f.seedUser(t, "fresh", "recent", daysAgo(f.now, 1))
	f.seedUser(t, "unlinked", "", nil)
	good := f.seedFanpage(t, "stale", "p1")
	broken := f.seedFanpage(t, "stale", "broken")
	freshPage := f.seedFanpage(t, "fresh", "p2")

	report, err := f.sweep.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Users: 2, Refreshed: 1, Fanpages: 1, Failures: 1}, report)

	stale, err := f.store.GetUser(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, "new-old", stale.FacebookToken)
	require.NotNil(t, stale.FacebookTokenIssuedAt)
	assert.WithinDuration(t, f.now, *stale.FacebookTokenIssuedAt, time.Second)

	rotated, err := f.store.GetFanpage(ctx, good.Id)
	require.NoError(t, err)
	assert.Equal(t, "page-new-old", rotated.AccessToken)

	failed, err := f.store.GetFanpage(ctx, broken.Id)
	require.NoError(t, err)
	assert.Equal(t, "old-page-token", failed.AccessToken)

	untouched, err := f.store.GetFanpage(ctx, freshPage.Id)
	require.NoError(t, err)
	assert.Equal(t, "old-page-token", untouched.AccessToken)

	fresh, err := f.store.GetUser(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "recent", fresh.FacebookToken)

	assert.Equal(t, []string{"p1"}, f.publisher.changed)
}

func TestSweepFallsBackToUpdatedAt(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t)

	f.seedUser(t, "legacy", "legacy-token", nil)
	require.NoError(t, f.store.DB().Model(&model.User{}).
		Where("id = ?", "legacy").
		UpdateColumn("updated_at", *daysAgo(f.now, 90)).Error)
	f.seedUser(t, "touched", "touched-token", nil)

	report, err := f.sweep.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Users)
	assert.Equal(t, 1, report.Refreshed)

	legacy, err := f.store.GetUser(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "new-legacy-token", legacy.FacebookToken)

	touched, err := f.store.GetUser(ctx, "touched")
	require.NoError(t, err)
	assert.Equal(t, "touched-token", touched.FacebookToken)
}

func TestSweepSkipsUserWhenExchangeFails(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t)

	f.seedUser(t, "rejected", "bad", daysAgo(f.now, 70))
	f.seedUser(t, "stale", "old", daysAgo(f.now, 70))
	fanpage := f.seedFanpage(t, "rejected", "p1")

	report, err := f.sweep.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Users: 2, Refreshed: 1, Fanpages: 0, Failures: 1}, report)

	rejected, err := f.store.GetUser(ctx, "rejected")
	require.NoError(t, err)
	assert.Equal(t, "bad", rejected.FacebookToken)

	kept, err := f.store.GetFanpage(ctx, fanpage.Id)
	require.NoError(t, err)
	assert.Equal(t, "old-page-token", kept.AccessToken)
	assert.Empty(t, f.publisher.changed)
}

func TestSweepIgnoresDisconnectedFanpages(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t)

	f.seedUser(t, "stale", "old", daysAgo(f.now, 70))
	fanpage := f.seedFanpage(t, "stale", "p1")
	require.NoError(t, f.store.SetFanpageConnected(ctx, fanpage.Id, false))

	report, err := f.sweep.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Users: 1, Refreshed: 1}, report)

	kept, err := f.store.GetFanpage(ctx, fanpage.Id)
	require.NoError(t, err)
	assert.Equal(t, "old-page-token", kept.AccessToken)
}

func TestNextRun(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name string
		now  time.Time
		hour int
		want time.Time
	}{
		{
			name: "later today",
			now:  time.Date(2024, 5, 1, 1, 30, 0, 0, loc),
			hour: 3,
			want: time.Date(2024, 5, 1, 3, 0, 0, 0, loc),
		},
		{
			name: "already passed",
			now:  time.Date(2024, 5, 1, 4, 0, 0, 0, loc),
			hour: 3,
			want: time.Date(2024, 5, 2, 3, 0, 0, 0, loc),
		},
		{
			name: "exactly on the hour",
			now:  time.Date(2024, 5, 1, 3, 0, 0, 0, loc),
			hour: 3,
			want: time.Date(2024, 5, 2, 3, 0, 0, 0, loc),
		},
		{
			name: "end of month",
			now:  time.Date(2024, 5, 31, 23, 0, 0, 0, loc),
			hour: 0,
			want: time.Date(2024, 6, 1, 0, 0, 0, 0, loc),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NextRun(tc.now, tc.hour))
		})
	}
}

func TestCredentialSweepStopsOnCancel(t *testing.T) {
	f := newSweepFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() { done <- f.sweep.RunModule(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("module did not stop")
	}
}

func TestSweepWithoutBusDropsCachedFanpage(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	directory := cache.NewFanpageDirectory(client, f.store, time.Hour)
	f.sweep.publisher = cache.Invalidator{Directory: directory}

	f.seedUser(t, "stale", "old", daysAgo(f.now, 70))
	f.seedFanpage(t, "stale", "p1")
	cached, err := directory.Lookup(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "old-page-token", cached.AccessToken)

	_, err = f.sweep.Sweep(ctx)
	require.NoError(t, err)

	fanpage, err := directory.Lookup(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "page-new-old", fanpage.AccessToken)
}
