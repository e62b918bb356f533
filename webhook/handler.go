// Package webhook receives Facebook page deliveries. Each entry is resolved
// to a connected fanpage, decoded into typed events and handed to the
// reconciler. A delivery is acknowledged once it parses, whatever happens to
// the entries inside it, so the platform never retries a poisoned batch.
package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/metrics"
	"github.com/Luismorlan/pagemux/model"
	"github.com/Luismorlan/pagemux/store"
	. "github.com/Luismorlan/pagemux/utils/log"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

const (
	eventReceived    = "EVENT_RECEIVED"
	defaultCustomer  = "Customer"
	entryKindMessage = "messaging"
	entryKindFeed    = "feed"
)

type FanpageResolver interface {
	Lookup(ctx context.Context, pageId string) (*model.Fanpage, error)
}

type PostLookup interface {
	GetPostByPostId(ctx context.Context, postId string) (*model.Post, error)
}

// Reconciler is the write side the events are routed to.
type Reconciler interface {
	ApplyPost(ctx context.Context, fanpage *model.Fanpage, post *model.Post, write store.PostWrite) (bool, error)
	ApplyComment(ctx context.Context, fanpage *model.Fanpage, post *model.Post, comment *model.Comment, write store.CommentWrite) (bool, error)
	ApplyMessage(ctx context.Context, fanpage *model.Fanpage, message *model.Message) (bool, error)
	RemovePost(ctx context.Context, fanpage *model.Fanpage, postId string) (bool, error)
	RemoveComment(ctx context.Context, fanpage *model.Fanpage, commentId string) (bool, error)
	SetCommentHidden(ctx context.Context, fanpage *model.Fanpage, commentId string, hidden bool) (bool, error)
}

type Handler struct {
	fanpages   FanpageResolver
	posts      PostLookup
	reconciler Reconciler
	metrics    *metrics.Reporter
}

func NewHandler(fanpages FanpageResolver, posts PostLookup, r Reconciler, m *metrics.Reporter) *Handler {
	return &Handler{fanpages: fanpages, posts: posts, reconciler: r, metrics: m}
}

// HandleDelivery is the POST /webhook endpoint.
func (h *Handler) HandleDelivery(c *gin.Context) {
	var envelope Envelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		Log.Warn("malformed webhook delivery: ", err)
		c.String(http.StatusBadRequest, "malformed body")
		return
	}
	if envelope.Object != pageObject {
		Log.WithField("object", envelope.Object).Warn("webhook delivery for unsupported object")
		c.String(http.StatusBadRequest, "unsupported object")
		return
	}

	h.Process(c.Request.Context(), envelope)
	c.String(http.StatusOK, eventReceived)
}

// Process handles the entries of a delivery one after another. A failing
// entry is logged and does not affect the others.
func (h *Handler) Process(ctx context.Context, envelope Envelope) {
	for _, entry := range envelope.Entry {
		if err := h.processEntry(ctx, entry); err != nil {
			h.metrics.Incr(metrics.WebhookEntryErrorCounter)
			Log.WithField("page_id", entry.Id).Errorln("fail to process webhook entry: ", err)
		}
	}
}

func (h *Handler) processEntry(ctx context.Context, entry Entry) error {
	fanpage, err := h.fanpages.Lookup(ctx, entry.Id)
	if apperr.IsNotFound(err) {
		Log.WithField("page_id", entry.Id).Info("webhook entry for unknown page skipped")
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "fail to resolve page %s", entry.Id)
	}
	if !fanpage.IsConnected {
		Log.WithField("page_id", entry.Id).Info("webhook entry for disconnected page skipped")
		return nil
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, m := range entry.Messaging {
		h.metrics.Incr(metrics.WebhookEntryCounter, "kind:"+entryKindMessage)
		keep(h.handleMessaging(ctx, fanpage, m.Decode()))
	}
	for _, change := range entry.Changes {
		h.metrics.Incr(metrics.WebhookEntryCounter, "kind:"+entryKindFeed)
		decoded, err := change.Decode()
		if err != nil {
			keep(errors.Wrap(err, "fail to decode feed change"))
			continue
		}
		keep(h.handleChange(ctx, fanpage, decoded))
	}
	return firstErr
}

func (h *Handler) handleMessaging(ctx context.Context, fanpage *model.Fanpage, event MessagingEvent) error {
	switch e := event.(type) {
	case MessageEvent:
		fromName := defaultCustomer
		if fanpage.IsPageActor(e.SenderId) {
			fromName = fanpage.Name
		}
		message := &model.Message{
			MessageId:      e.Mid,
			ConversationId: e.ConversationId(),
			ParentId:       e.ReplyTo,
			FromId:         e.SenderId,
			FromName:       fromName,
			Body:           e.Text,
			Attachments:    model.EncodeAttachments(e.Attachments),
			CreatedTime:    e.SentAt,
		}
		_, err := h.reconciler.ApplyMessage(ctx, fanpage, message)
		return errors.Wrapf(err, "fail to apply message %s", e.Mid)
	case DeliveryEvent, ReadEvent:
		return nil
	case UnsupportedMessagingEvent:
		Log.WithField("kind", e.Kind).Debug("messaging event skipped")
		return nil
	}
	return nil
}

func (h *Handler) handleChange(ctx context.Context, fanpage *model.Fanpage, change FeedChange) error {
	switch c := change.(type) {
	case PostChange:
		return h.handlePost(ctx, fanpage, c)
	case CommentChange:
		return h.handleComment(ctx, fanpage, c)
	case UnsupportedChange:
		Log.WithFields(map[string]interface{}{"field": c.Field, "item": c.Item}).Debug("feed change skipped")
	}
	return nil
}

func (h *Handler) handlePost(ctx context.Context, fanpage *model.Fanpage, c PostChange) error {
	if c.Verb == VerbRemove {
		_, err := h.reconciler.RemovePost(ctx, fanpage, c.PostId)
		return errors.Wrapf(err, "fail to remove post %s", c.PostId)
	}

	now := time.Now().UTC()
	created := c.CreatedTime
	if created.IsZero() {
		created = now
	}
	post := &model.Post{
		PostId:      c.PostId,
		Content:     c.Message,
		Picture:     c.Picture,
		Attachments: model.EncodeAttachments(c.Attachments),
		CreatedTime: created,
		UpdatedTime: now,
	}
	write := store.PostContentOnly
	if !c.HasMessage {
		write = store.PostMediaOnly
	}
	_, err := h.reconciler.ApplyPost(ctx, fanpage, post, write)
	return errors.Wrapf(err, "fail to apply post %s", c.PostId)
}

func (h *Handler) handleComment(ctx context.Context, fanpage *model.Fanpage, c CommentChange) error {
	post, err := h.posts.GetPostByPostId(ctx, c.PostId)
	if apperr.IsNotFound(err) {
		Log.WithFields(map[string]interface{}{"post_id": c.PostId, "comment_id": c.CommentId}).Info("comment on unknown post skipped")
		return nil
	}
	if err != nil {
		return err
	}
	if post.FanpageID != fanpage.Id {
		return apperr.Validation("post %s does not belong to page %s", c.PostId, fanpage.PageId)
	}

	switch c.Verb {
	case VerbRemove:
		_, err := h.reconciler.RemoveComment(ctx, fanpage, c.CommentId)
		return errors.Wrapf(err, "fail to remove comment %s", c.CommentId)
	case VerbHide, VerbUnhide:
		// Hide deliveries may come without the message, keep the cached text.
		found, err := h.reconciler.SetCommentHidden(ctx, fanpage, c.CommentId, c.Verb == VerbHide)
		if err != nil || found {
			return errors.Wrapf(err, "fail to hide comment %s", c.CommentId)
		}
	}

	created := c.CreatedTime
	if created.IsZero() {
		created = time.Now().UTC()
	}
	comment := &model.Comment{
		CommentId:   c.CommentId,
		ParentId:    c.ParentId,
		FromId:      c.FromId,
		FromName:    c.FromName,
		Message:     c.Message,
		Attachments: model.EncodeAttachments(c.Attachments),
		IsHidden:    c.Verb == VerbHide,
		CreatedTime: created,
	}
	// Only a hide delivery for an uncached comment reaches here with a
	// visibility, and it lands as the new row's value.
	_, err = h.reconciler.ApplyComment(ctx, fanpage, post, comment, store.CommentContentOnly)
	return errors.Wrapf(err, "fail to apply comment %s", c.CommentId)
}
