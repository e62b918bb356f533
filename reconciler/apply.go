package reconciler

import (
	"context"
	"fmt"

	"github.com/Luismorlan/pagemux/metrics"
	"github.com/Luismorlan/pagemux/model"
	"github.com/Luismorlan/pagemux/notification"
	"github.com/Luismorlan/pagemux/realtime"
	"github.com/Luismorlan/pagemux/store"
	. "github.com/Luismorlan/pagemux/utils/log"
)

// ApplyPost upserts a post of fanpage. A new post emits post:received, a known
// one post:updated. Only posts announced by a webhook notify the owner, synced
// posts are the page's own history.
func (r *Reconciler) ApplyPost(ctx context.Context, fanpage *model.Fanpage, post *model.Post, write store.PostWrite) (bool, error) {
	return r.applyPost(ctx, fanpage, post, write, fromWebhook)
}

func (r *Reconciler) applyPost(ctx context.Context, fanpage *model.Fanpage, post *model.Post, write store.PostWrite, o origin) (bool, error) {
	post.FanpageID = fanpage.Id
	inserted, err := r.store.UpsertPost(ctx, post, write)
	if err != nil {
		r.metrics.Incr(metrics.ReconcileFailureCounter, "kind:post", "origin:"+o.String())
		return false, err
	}
	r.metrics.Incr(metrics.ReconciledCounter, "kind:post", "origin:"+o.String(), fmt.Sprintf("inserted:%t", inserted))

	if !inserted {
		r.emit(fanpage.UserId, realtime.EventPostUpdated, post)
		return false, nil
	}
	r.emit(fanpage.UserId, realtime.EventPostReceived, post)
	if o == fromWebhook {
		r.notify(ctx, notification.NewNotification{
			UserId:    fanpage.UserId,
			Type:      model.NotificationTypePost,
			Title:     "New Post Activity",
			Content:   fmt.Sprintf("New activity on post %s", post.PostId),
			RelatedId: post.PostId,
		})
	}
	return true, nil
}

// ApplyComment upserts a comment on post. New comments written by someone
// other than the page notify the owner.
func (r *Reconciler) ApplyComment(ctx context.Context, fanpage *model.Fanpage, post *model.Post, comment *model.Comment, write store.CommentWrite) (bool, error) {
	return r.applyComment(ctx, fanpage, post, comment, write, fromWebhook)
}

func (r *Reconciler) applyComment(ctx context.Context, fanpage *model.Fanpage, post *model.Post, comment *model.Comment, write store.CommentWrite, o origin) (bool, error) {
	comment.PostID = post.Id
	comment.FanpageID = fanpage.Id
	if fanpage.IsPageActor(comment.FromId) {
		comment.FromName = fanpage.Name
		comment.FromAvatar = fanpage.PictureUrl
	}
	inserted, err := r.store.UpsertComment(ctx, comment, write)
	if err != nil {
		r.metrics.Incr(metrics.ReconcileFailureCounter, "kind:comment", "origin:"+o.String())
		return false, err
	}
	r.metrics.Incr(metrics.ReconciledCounter, "kind:comment", "origin:"+o.String(), fmt.Sprintf("inserted:%t", inserted))

	if !inserted {
		r.emit(fanpage.UserId, realtime.EventCommentUpdated, comment)
		return false, nil
	}
	r.emit(fanpage.UserId, realtime.EventCommentReceived, comment)
	if o != fromLazyPull && !fanpage.IsPageActor(comment.FromId) {
		r.notify(ctx, notification.NewNotification{
			UserId:    fanpage.UserId,
			Type:      model.NotificationTypeComment,
			Title:     "New Comment",
			Content:   fmt.Sprintf("New comment on post %s from %s", post.PostId, comment.FromName),
			RelatedId: comment.CommentId,
		})
	}
	return true, nil
}

// ApplyMessage upserts a Messenger message. A redelivered message changes
// nothing visible: there is no update event for messages and no second
// notification.
func (r *Reconciler) ApplyMessage(ctx context.Context, fanpage *model.Fanpage, message *model.Message) (bool, error) {
	return r.applyMessage(ctx, fanpage, message, fromWebhook)
}

func (r *Reconciler) applyMessage(ctx context.Context, fanpage *model.Fanpage, message *model.Message, o origin) (bool, error) {
	message.FanpageID = fanpage.Id
	fromPage := fanpage.IsPageActor(message.FromId)
	if fromPage {
		message.FromName = fanpage.Name
		message.FromAvatar = fanpage.PictureUrl
	}
	inserted, err := r.store.UpsertMessage(ctx, message)
	if err != nil {
		r.metrics.Incr(metrics.ReconcileFailureCounter, "kind:message", "origin:"+o.String())
		return false, err
	}
	r.metrics.Incr(metrics.ReconciledCounter, "kind:message", "origin:"+o.String(), fmt.Sprintf("inserted:%t", inserted))
	if !inserted {
		return false, nil
	}

	r.emit(fanpage.UserId, realtime.EventMessageReceived, realtime.MessagePayload{
		SenderId:       message.FromId,
		ConversationId: message.ConversationId,
		FanpageId:      fanpage.Id,
		MessageId:      message.MessageId,
		Message:        message.Body,
		Timestamp:      message.CreatedTime,
	})
	if o != fromLazyPull && !fromPage {
		r.notify(ctx, notification.NewNotification{
			UserId:    fanpage.UserId,
			Type:      model.NotificationTypeMessage,
			Title:     "New Message",
			Content:   fmt.Sprintf("New message from %s in conversation %s", message.FromName, message.ConversationId),
			RelatedId: message.MessageId,
		})
	}
	return true, nil
}

// notify never fails the write that triggered it.
func (r *Reconciler) notify(ctx context.Context, n notification.NewNotification) {
	if r.notifier == nil {
		return
	}
	if _, err := r.notifier.Create(ctx, n); err != nil {
		Log.WithFields(map[string]interface{}{
			"user_id":    n.UserId,
			"type":       n.Type,
			"related_id": n.RelatedId,
		}).Errorln("fail to create notification: ", err)
	}
}
