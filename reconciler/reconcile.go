package reconciler

import (
	"context"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/facebook"
	"github.com/Luismorlan/pagemux/model"
	"github.com/Luismorlan/pagemux/store"
	"github.com/pkg/errors"
)

func postFromGraph(p facebook.Post) *model.Post {
	picture := p.FullPicture
	attachments := p.Attachments.ToModel()
	if picture == "" && len(attachments) > 0 {
		picture = attachments[0].Url
	}
	return &model.Post{
		PostId:        p.Id,
		Content:       p.Message,
		Picture:       picture,
		Attachments:   model.EncodeAttachments(attachments),
		Likes:         p.Likes.Summary.TotalCount,
		Shares:        p.Shares.Count,
		CommentsCount: p.Comments.Summary.TotalCount,
		CreatedTime:   p.CreatedTime.Time,
		UpdatedTime:   p.UpdatedTime.Time,
	}
}

func commentFromGraph(c facebook.Comment) *model.Comment {
	return &model.Comment{
		CommentId:   c.Id,
		ParentId:    c.ParentId(),
		FromId:      c.From.Id,
		FromName:    c.From.Name,
		Message:     c.Message,
		Attachments: model.EncodeAttachments(c.AttachmentsToModel()),
		IsHidden:    c.IsHidden,
		CreatedTime: c.CreatedTime.Time,
	}
}

func messageFromGraph(conversationId string, m facebook.Message) *model.Message {
	return &model.Message{
		MessageId:      m.Id,
		ConversationId: conversationId,
		FromId:         m.From.Id,
		FromName:       m.From.Name,
		Body:           m.Message,
		Attachments:    model.EncodeAttachments(m.Attachments.ToModel()),
		CreatedTime:    m.CreatedTime.Time,
	}
}

// ReconcilePosts upserts a batch of Graph posts, counters included.
func (r *Reconciler) ReconcilePosts(ctx context.Context, fanpage *model.Fanpage, posts []facebook.Post) Result[model.Post] {
	return r.reconcilePosts(ctx, fanpage, posts, fromSync)
}

func (r *Reconciler) reconcilePosts(ctx context.Context, fanpage *model.Fanpage, posts []facebook.Post, o origin) Result[model.Post] {
	res := Result[model.Post]{}
	for _, p := range posts {
		if p.Id == "" {
			res.Failures = append(res.Failures, apperr.Validation("post without id"))
			continue
		}
		post := postFromGraph(p)
		inserted, err := r.applyPost(ctx, fanpage, post, store.PostContentAndCounters, o)
		if err != nil {
			res.Failures = append(res.Failures, errors.Wrapf(err, "post %s", p.Id))
			continue
		}
		res.add(*post, inserted)
	}
	return res
}

// ReconcileComments upserts a batch of Graph comments of a cached post.
func (r *Reconciler) ReconcileComments(ctx context.Context, fanpage *model.Fanpage, post *model.Post, comments []facebook.Comment) Result[model.Comment] {
	return r.reconcileComments(ctx, fanpage, post, comments, fromSync)
}

func (r *Reconciler) reconcileComments(ctx context.Context, fanpage *model.Fanpage, post *model.Post, comments []facebook.Comment, o origin) Result[model.Comment] {
	res := Result[model.Comment]{}
	if post == nil || post.FanpageID != fanpage.Id {
		res.Failures = append(res.Failures, apperr.Validation("comments need a cached post of fanpage %s", fanpage.PageId))
		return res
	}
	for _, c := range comments {
		if c.Id == "" {
			res.Failures = append(res.Failures, apperr.Validation("comment without id"))
			continue
		}
		comment := commentFromGraph(c)
		inserted, err := r.applyComment(ctx, fanpage, post, comment, store.CommentContentAndVisibility, o)
		if err != nil {
			res.Failures = append(res.Failures, errors.Wrapf(err, "comment %s", c.Id))
			continue
		}
		res.add(*comment, inserted)
	}
	return res
}

// ReconcileMessages upserts a batch of Graph messages of one conversation.
func (r *Reconciler) ReconcileMessages(ctx context.Context, fanpage *model.Fanpage, conversationId string, messages []facebook.Message) Result[model.Message] {
	return r.reconcileMessages(ctx, fanpage, conversationId, messages, fromSync)
}

func (r *Reconciler) reconcileMessages(ctx context.Context, fanpage *model.Fanpage, conversationId string, messages []facebook.Message, o origin) Result[model.Message] {
	res := Result[model.Message]{}
	if conversationId == "" {
		res.Failures = append(res.Failures, apperr.Validation("messages need a conversation"))
		return res
	}
	for _, m := range messages {
		if m.Id == "" {
			res.Failures = append(res.Failures, apperr.Validation("message without id"))
			continue
		}
		message := messageFromGraph(conversationId, m)
		inserted, err := r.applyMessage(ctx, fanpage, message, o)
		if err != nil {
			res.Failures = append(res.Failures, errors.Wrapf(err, "message %s", m.Id))
			continue
		}
		res.add(*message, inserted)
	}
	return res
}
