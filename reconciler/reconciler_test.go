package reconciler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Luismorlan/pagemux/app_config"
	"github.com/Luismorlan/pagemux/facebook"
	"github.com/Luismorlan/pagemux/model"
	"github.com/Luismorlan/pagemux/notification"
	"github.com/Luismorlan/pagemux/realtime"
	"github.com/Luismorlan/pagemux/store"
	"github.com/Luismorlan/pagemux/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEmitter) EmitToUser(userId string, event string, payload interface{}) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return 1
}

func (e *recordingEmitter) count(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev == event {
			n++
		}
	}
	return n
}

// fakeGraph serves canned Graph API bodies by path and counts calls.
type fakeGraph struct {
	mu     sync.Mutex
	bodies map[string]string
	status map[string]int
	calls  map[string]int
	query  map[string]string
}

func (g *fakeGraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[r.URL.Path]++
	g.query[r.URL.Path] = r.URL.RawQuery
	if status, ok := g.status[r.URL.Path]; ok {
		w.WriteHeader(status)
		w.Write([]byte(`{"error":{"message":"boom","code":2}}`))
		return
	}
	body, ok := g.bodies[r.URL.Path]
	if !ok {
		body = `{"data":[]}`
	}
	w.Write([]byte(body))
}

func (g *fakeGraph) callCount(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[path]
}

type fixture struct {
	reconciler *Reconciler
	store      *store.Store
	emitter    *recordingEmitter
	graph      *fakeGraph
	fanpage    *model.Fanpage
}

func newFixture(t *testing.T) *fixture {
	graph := &fakeGraph{bodies: map[string]string{}, status: map[string]int{}, calls: map[string]int{}, query: map[string]string{}}
	server := httptest.NewServer(graph)
	t.Cleanup(server.Close)

	s := store.New(utils.CreateTempDB(t))
	emitter := &recordingEmitter{}
	notifier := notification.NewService(s, emitter, app_config.DefaultSyncConfig(), nil)
	client := facebook.NewClient(facebook.ClientConfig{BaseURL: server.URL})

	fanpage, err := s.ConnectFanpage(context.Background(), &model.Fanpage{
		PageId:      "100",
		Name:        "Shop",
		AccessToken: "page-token",
		UserId:      "u1",
		PictureUrl:  "https://cdn/shop.jpg",
	})
	require.NoError(t, err)

	return &fixture{
		reconciler: New(s, client, notifier, emitter, nil),
		store:      s,
		emitter:    emitter,
		graph:      graph,
		fanpage:    fanpage,
	}
}

func (f *fixture) notificationCount(t *testing.T) int64 {
	page, err := f.store.ListNotifications(context.Background(), f.fanpage.UserId, 0, 1000)
	require.NoError(t, err)
	return page.Total
}

func (f *fixture) seedPost(t *testing.T, postId string) *model.Post {
	post := &model.Post{PostId: postId, FanpageID: f.fanpage.Id}
	_, err := f.store.UpsertPost(context.Background(), post, store.PostContentOnly)
	require.NoError(t, err)
	return post
}

func graphComment(id, fromId, fromName string) facebook.Comment {
	return facebook.Comment{
		Id:          id,
		From:        facebook.Actor{Id: fromId, Name: fromName},
		Message:     "text of " + id,
		CreatedTime: facebook.Time{Time: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
}

func TestReconcilePostsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	batch := []facebook.Post{{Id: "100_1", Message: "a"}, {Id: "100_2", Message: "b"}}
	batch[0].Likes.Summary.TotalCount = 3

	res := f.reconciler.ReconcilePosts(ctx, f.fanpage, batch)
	assert.Len(t, res.Inserted, 2)
	assert.Empty(t, res.Failures)

	res = f.reconciler.ReconcilePosts(ctx, f.fanpage, batch)
	assert.Empty(t, res.Inserted)
	assert.Equal(t, 2, res.UpdatedCount())

	page, err := f.store.ListPostsByFanpage(ctx, f.fanpage.Id, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, f.emitter.count(realtime.EventPostReceived))
	assert.Equal(t, 2, f.emitter.count(realtime.EventPostUpdated))
	assert.Equal(t, int64(0), f.notificationCount(t))
}

func TestReconcileCommentsNotifiesOnlyNewVisitorComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post := f.seedPost(t, "100_1")
	batch := []facebook.Comment{
		graphComment("c1", "123", "Ann"),
		graphComment("c2", "100", "Shop"),
	}

	res := f.reconciler.ReconcileComments(ctx, f.fanpage, post, batch)
	require.Len(t, res.Inserted, 2)
	assert.Equal(t, "https://cdn/shop.jpg", res.Inserted[1].FromAvatar)
	assert.Equal(t, int64(1), f.notificationCount(t))

	res = f.reconciler.ReconcileComments(ctx, f.fanpage, post, batch)
	assert.Empty(t, res.Inserted)
	assert.Equal(t, 2, res.UpdatedCount())
	assert.Equal(t, int64(1), f.notificationCount(t))
	assert.Equal(t, 2, f.emitter.count(realtime.EventCommentReceived))
	assert.Equal(t, 2, f.emitter.count(realtime.EventCommentUpdated))
}

func TestReconcileCommentsTakesVisibilityFromGraph(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post := f.seedPost(t, "100_1")
	_, err := f.store.UpsertComment(ctx, &model.Comment{
		CommentId: "c1", PostID: post.Id, FanpageID: f.fanpage.Id, FromId: "123", Message: "old",
	}, store.CommentContentOnly)
	require.NoError(t, err)

	pulled := graphComment("c1", "123", "Ann")
	pulled.IsHidden = true
	res := f.reconciler.ReconcileComments(ctx, f.fanpage, post, []facebook.Comment{pulled})
	require.Empty(t, res.Failures)

	var stored model.Comment
	require.NoError(t, f.store.DB().Where("comment_id = ?", "c1").First(&stored).Error)
	assert.True(t, stored.IsHidden)
	assert.Equal(t, "text of c1", stored.Message)
}

func TestReconcileContinuesPastBadRecords(t *testing.T) {
	f := newFixture(t)
	post := f.seedPost(t, "100_1")

	res := f.reconciler.ReconcileComments(context.Background(), f.fanpage, post, []facebook.Comment{
		graphComment("", "123", "Ann"),
		graphComment("c2", "123", "Ann"),
	})
	assert.Len(t, res.Failures, 1)
	assert.Len(t, res.Inserted, 1)
}

func TestReconcileCommentsRejectsForeignPost(t *testing.T) {
	f := newFixture(t)
	res := f.reconciler.ReconcileComments(context.Background(), f.fanpage, &model.Post{Id: "p", FanpageID: "other"}, []facebook.Comment{graphComment("c1", "1", "x")})
	assert.Len(t, res.Failures, 1)
	assert.Empty(t, res.Inserted)
}

func TestReconcileMessagesIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	batch := []facebook.Message{
		{Id: "m1", Message: "hi", From: facebook.Actor{Id: "123", Name: "Ann"}},
		{Id: "m2", Message: "hello", From: facebook.Actor{Id: "100", Name: "Shop"}},
	}

	res := f.reconciler.ReconcileMessages(ctx, f.fanpage, "123", batch)
	assert.Len(t, res.Inserted, 2)
	assert.Equal(t, int64(1), f.notificationCount(t))

	res = f.reconciler.ReconcileMessages(ctx, f.fanpage, "123", batch)
	assert.Empty(t, res.Inserted)
	assert.Equal(t, int64(1), f.notificationCount(t))
	assert.Equal(t, 2, f.emitter.count(realtime.EventMessageReceived))
}

func TestCommentsForPostPullsEmptyScopeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post := f.seedPost(t, "100_1")
	f.graph.bodies["/100_1/comments"] = `{"data":[
		{"id":"c1","from":{"id":"123","name":"Ann"},"message":"one","created_time":"2024-03-01T10:00:00+0000"},
		{"id":"c2","from":{"id":"124","name":"Bob"},"message":"two","created_time":"2024-03-01T11:00:00+0000"},
		{"id":"c3","from":{"id":"100","name":"Shop"},"message":"three","created_time":"2024-03-01T12:00:00+0000","parent":{"id":"c1"}}
	]}`

	page, err := f.reconciler.CommentsForPost(ctx, f.fanpage, post, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "c3", page.Items[0].CommentId)
	assert.Equal(t, "c1", page.Items[0].ParentId)
	assert.Equal(t, 1, f.graph.callCount("/100_1/comments"))
	// Pulled rows are on screen already.
	assert.Equal(t, int64(0), f.notificationCount(t))

	again, err := f.reconciler.CommentsForPost(ctx, f.fanpage, post, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, page.Items, again.Items)
	assert.Equal(t, 1, f.graph.callCount("/100_1/comments"))
}

func TestLazyPullSkipsNonEmptyScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post := f.seedPost(t, "100_1")
	_, err := f.store.UpsertComment(ctx, &model.Comment{CommentId: "c0", PostID: post.Id, FanpageID: f.fanpage.Id, FromId: "123"}, store.CommentContentOnly)
	require.NoError(t, err)
	f.graph.bodies["/100_1/comments"] = `{"data":[{"id":"c1","from":{"id":"123"}}]}`

	page, err := f.reconciler.CommentsForPost(ctx, f.fanpage, post, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 0, f.graph.callCount("/100_1/comments"))
}

func TestLazyPullSurfacesUpstreamError(t *testing.T) {
	f := newFixture(t)
	f.graph.status["/100/posts"] = http.StatusForbidden

	_, err := f.reconciler.PostsForFanpage(context.Background(), f.fanpage, 1, 20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMessagesForConversationPullsByUser(t *testing.T) {
	f := newFixture(t)
	f.graph.bodies["/100/conversations"] = `{"data":[{"id":"t_1","messages":{"data":[
		{"id":"m1","message":"hi","from":{"id":"123","name":"Ann"},"created_time":"2024-03-01T10:00:00+0000"},
		{"id":"m2","message":"hello","from":{"id":"100","name":"Shop"},"created_time":"2024-03-01T10:01:00+0000"}
	]}}]}`

	page, err := f.reconciler.MessagesForConversation(context.Background(), f.fanpage, "123", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, "m2", page.Items[0].MessageId)
	assert.Equal(t, "Shop", page.Items[0].FromName)
	assert.Contains(t, f.graph.query["/100/conversations"], "user_id=123")
}

func TestSyncFanpage(t *testing.T) {
	f := newFixture(t)
	f.graph.bodies["/100/posts"] = `{"data":[{"id":"100_1","message":"first","likes":{"summary":{"total_count":2}}}]}`
	f.graph.bodies["/100/feed"] = `{"data":[
		{"id":"100_1","comments":{"data":[{"id":"c1","from":{"id":"123","name":"Ann"},"message":"nice"}]}},
		{"id":"999_1","comments":{"data":[{"id":"c9","from":{"id":"5","name":"Eve"},"message":"elsewhere"}]}}
	]}`
	f.graph.bodies["/100/conversations"] = `{"data":[{"id":"t_1","participants":{"data":[{"id":"100"},{"id":"123"}]},
		"messages":{"data":[{"id":"m1","message":"hi","from":{"id":"123","name":"Ann"}}]}}]}`

	report := f.reconciler.SyncFanpage(context.Background(), f.fanpage)
	require.NoError(t, report.Err())
	assert.Equal(t, 1, report.Posts)
	assert.Equal(t, 1, report.Comments)
	assert.Equal(t, 1, report.Messages)

	messages, err := f.store.ListMessagesByConversation(context.Background(), f.fanpage.Id, "123", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), messages.Total)
	// One for the visitor comment, one for the visitor message.
	assert.Equal(t, int64(2), f.notificationCount(t))
}

func TestSyncFanpageFailingSubSyncDoesNotStopOthers(t *testing.T) {
	f := newFixture(t)
	f.graph.bodies["/100/posts"] = `{"data":[{"id":"100_1","message":"first"}]}`
	f.graph.status["/100/conversations"] = http.StatusInternalServerError

	report := f.reconciler.SyncFanpage(context.Background(), f.fanpage)
	assert.Error(t, report.Err())
	assert.Len(t, report.Errors, 1)
	assert.Equal(t, 1, report.Posts)
}

func TestSendMessageStoresOnceWithEcho(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.graph.bodies["/me/messages"] = `{"recipient_id":"123","message_id":"m_out"}`

	sent, err := f.reconciler.SendMessage(ctx, f.fanpage, "123", "thanks")
	require.NoError(t, err)
	assert.Equal(t, "m_out", sent.MessageId)
	assert.Equal(t, "123", sent.ConversationId)
	assert.Equal(t, "Shop", sent.FromName)

	inserted, err := f.reconciler.ApplyMessage(ctx, f.fanpage, &model.Message{
		MessageId:      "m_out",
		ConversationId: "123",
		FromId:         "100",
		Body:           "thanks",
	})
	require.NoError(t, err)
	assert.False(t, inserted)

	page, err := f.store.ListMessagesByConversation(ctx, f.fanpage.Id, "123", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestSendMessageRejectsDisconnectedPage(t *testing.T) {
	f := newFixture(t)
	f.fanpage.IsConnected = false
	_, err := f.reconciler.SendMessage(context.Background(), f.fanpage, "123", "hi")
	assert.Error(t, err)
	assert.Equal(t, 0, f.graph.callCount("/me/messages"))
}
