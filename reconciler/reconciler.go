// Package reconciler merges Facebook data into the local store. Every write is
// an upsert keyed by the Facebook id, and only rows that did not exist before
// produce notifications and *:received events. Pulls against the Graph API
// happen on demand when a scope has nothing cached yet, or as a full page sync
// when a page is connected.
package reconciler

import (
	"context"

	"github.com/Luismorlan/pagemux/facebook"
	"github.com/Luismorlan/pagemux/metrics"
	"github.com/Luismorlan/pagemux/model"
	"github.com/Luismorlan/pagemux/notification"
	"github.com/Luismorlan/pagemux/store"
)

// Platform is the part of the Graph API the reconciler pulls from.
type Platform interface {
	ListPosts(ctx context.Context, pageId string, token string) ([]facebook.Post, error)
	ListFeedComments(ctx context.Context, pageId string, token string) ([]facebook.Post, error)
	ListPostComments(ctx context.Context, postId string, token string) ([]facebook.Comment, error)
	ListConversations(ctx context.Context, pageId string, token string) ([]facebook.Conversation, error)
	ConversationWith(ctx context.Context, pageId string, userId string, token string) ([]facebook.Message, error)
	SendMessage(ctx context.Context, recipientId string, text string, token string) (*facebook.SendResult, error)
}

type Notifier interface {
	Create(ctx context.Context, n notification.NewNotification) (*model.Notification, error)
}

type Emitter interface {
	EmitToUser(userId string, event string, payload interface{}) int
}

type Reconciler struct {
	store    *store.Store
	platform Platform
	notifier Notifier
	emitter  Emitter
	metrics  *metrics.Reporter
}

func New(s *store.Store, platform Platform, notifier Notifier, emitter Emitter, m *metrics.Reporter) *Reconciler {
	return &Reconciler{
		store:    s,
		platform: platform,
		notifier: notifier,
		emitter:  emitter,
		metrics:  m,
	}
}

// Result of reconciling one batch. Inserted holds rows created by this batch,
// Updated rows that already existed and were overwritten. A record that could
// not be written is reported in Failures and does not stop the batch.
type Result[T any] struct {
	Inserted []T
	Updated  []T
	Failures []error
}

func (r Result[T]) UpdatedCount() int {
	return len(r.Updated)
}

func (r *Result[T]) add(row T, inserted bool) {
	if inserted {
		r.Inserted = append(r.Inserted, row)
	} else {
		r.Updated = append(r.Updated, row)
	}
}

// origin tells where a row came from, which decides whether its insertion is
// worth a notification. Rows pulled because the user opened an empty scope are
// already on screen.
type origin int

const (
	fromWebhook origin = iota
	fromSync
	fromLazyPull
)

func (o origin) String() string {
	switch o {
	case fromWebhook:
		return "webhook"
	case fromSync:
		return "sync"
	default:
		return "lazy_pull"
	}
}

func (r *Reconciler) emit(userId string, event string, payload interface{}) {
	if r.emitter == nil {
		return
	}
	r.emitter.EmitToUser(userId, event, payload)
}
