package store

import (
	"context"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/model"
	"github.com/pkg/errors"
)

// PostWrite selects which columns of a known post an upsert overwrites.
// Webhook feed changes carry content and timestamps but no counters, a sync
// pass from the Graph API carries everything. Media-only feed changes, such as
// a photo edit, carry no message at all.
type PostWrite int

const (
	PostContentOnly PostWrite = iota
	PostContentAndCounters
	PostMediaOnly
)

// UpsertPost inserts the post or overwrites the mutable columns of the
// existing row with the same PostId. It returns true only when the row was
// created by this call.
func (s *Store) UpsertPost(ctx context.Context, post *model.Post, write PostWrite) (bool, error) {
	post.Id = NewId()
	overwrite := map[string]interface{}{
		"updated_time": post.UpdatedTime,
	}
	if write != PostMediaOnly {
		overwrite["content"] = post.Content
	}
	switch write {
	case PostContentAndCounters:
		overwrite["picture"] = post.Picture
		overwrite["attachments"] = post.Attachments
		overwrite["likes"] = post.Likes
		overwrite["shares"] = post.Shares
		overwrite["comments_count"] = post.CommentsCount
	case PostContentOnly, PostMediaOnly:
		// Feed changes only mention media when it changed.
		if post.Picture != "" {
			overwrite["picture"] = post.Picture
		}
		if len(model.DecodeAttachments(post.Attachments)) > 0 {
			overwrite["attachments"] = post.Attachments
		}
	}
	return insertOrOverwrite(ctx, s.db, post, "post_id", post.PostId, overwrite)
}

func (s *Store) GetPost(ctx context.Context, id string) (*model.Post, error) {
	return first[model.Post](ctx, s.db, "post", "id = ?", id)
}

func (s *Store) GetPostByPostId(ctx context.Context, postId string) (*model.Post, error) {
	return first[model.Post](ctx, s.db, "post", "post_id = ?", postId)
}

func (s *Store) ListPostsByFanpage(ctx context.Context, fanpageId string, offset, limit int) (Page[model.Post], error) {
	return listPage[model.Post](ctx, s.db, "created_time desc, id asc", offset, limit, "fanpage_id = ?", fanpageId)
}

func (s *Store) UpdatePostContent(ctx context.Context, id string, content string) (*model.Post, error) {
	res := s.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", id).Update("content", content)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "fail to update post")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("post not found")
	}
	return s.GetPost(ctx, id)
}

// DeletePostByPostId removes the post and its cached comments. It reports
// whether a post was removed.
func (s *Store) DeletePostByPostId(ctx context.Context, postId string) (*model.Post, bool, error) {
	post, err := s.GetPostByPostId(ctx, postId)
	if apperr.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := s.DeletePost(ctx, post.Id); err != nil {
		return nil, false, err
	}
	return post, true, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("post_id = ?", id).Delete(&model.Comment{}).Error; err != nil {
		return errors.Wrap(err, "fail to delete comments of post")
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Post{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "fail to delete post")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("post not found")
	}
	return nil
}
