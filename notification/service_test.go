package notification

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Luismorlan/pagemux/app_config"
	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/model"
	"github.com/Luismorlan/pagemux/realtime"
	"github.com/Luismorlan/pagemux/store"
	"github.com/Luismorlan/pagemux/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	userId  string
	event   string
	payload interface{}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *recordingEmitter) EmitToUser(userId string, event string, payload interface{}) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{userId, event, payload})
	return 1
}

func newTestService(t *testing.T) (*Service, *recordingEmitter, *store.Store) {
	s := store.New(utils.CreateTempDB(t))
	emitter := &recordingEmitter{}
	return NewService(s, emitter, app_config.DefaultSyncConfig(), nil), emitter, s
}

func TestCreateStoresAndEmits(t *testing.T) {
	service, emitter, _ := newTestService(t)

	n, err := service.Create(context.Background(), NewNotification{
		UserId:    "u1",
		Type:      model.NotificationTypeMessage,
		Title:     "New Message",
		Content:   "New message from Customer",
		RelatedId: "m1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, n.Id)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, "u1", emitter.events[0].userId)
	assert.Equal(t, realtime.EventNotification, emitter.events[0].event)
	assert.Equal(t, n, emitter.events[0].payload)
}

func TestCreateValidates(t *testing.T) {
	service, emitter, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.Create(ctx, NewNotification{UserId: "u1", Type: "like", Title: "x"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = service.Create(ctx, NewNotification{Type: model.NotificationTypeComment, Title: "x"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, emitter.events)
}

func TestLogIsBounded(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 101; i++ {
		_, err := service.Create(ctx, NewNotification{
			UserId:  "u1",
			Type:    model.NotificationTypeComment,
			Title:   "New Comment",
			Content: fmt.Sprintf("comment %d", i),
		})
		require.NoError(t, err)
	}
	page, err := service.List(ctx, "u1", 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(90), page.Total)
}

func TestListAndMarkRead(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	n, err := service.Create(ctx, NewNotification{UserId: "u1", Type: model.NotificationTypePost, Title: "New Post"})
	require.NoError(t, err)

	unread, err := service.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	_, err = service.MarkRead(ctx, n.Id, "u2")
	assert.True(t, apperr.IsNotFound(err))

	read, err := service.MarkRead(ctx, n.Id, "u1")
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	page, err := service.List(ctx, "u1", 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].IsRead)
}

func TestSendPackageExpiry(t *testing.T) {
	service, emitter, s := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.DB().Create(&model.User{Id: "u1", Email: "a@b.c"}).Error)

	n, err := service.SendPackageExpiry(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationTypePackageExpiry, n.Type)
	assert.Contains(t, n.Content, "3 days")
	assert.Len(t, emitter.events, 1)

	_, err = service.SendPackageExpiry(ctx, "ghost", 3)
	assert.True(t, apperr.IsNotFound(err))
}
