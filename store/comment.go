package store

import (
	"context"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/model"
	"github.com/pkg/errors"
)

// CommentWrite selects which columns of a known comment an upsert
// overwrites. Feed changes never say whether a comment is hidden, only Graph
// pulls do.
type CommentWrite int

const (
	CommentContentOnly CommentWrite = iota
	CommentContentAndVisibility
)

// UpsertComment inserts the comment or overwrites the message and
// attachments of the existing row with the same CommentId. The hidden flag is
// overwritten only with CommentContentAndVisibility, a new row always takes
// comment.IsHidden.
func (s *Store) UpsertComment(ctx context.Context, comment *model.Comment, write CommentWrite) (bool, error) {
	comment.Id = NewId()
	overwrite := map[string]interface{}{
		"message":     comment.Message,
		"attachments": comment.Attachments,
	}
	if write == CommentContentAndVisibility {
		overwrite["is_hidden"] = comment.IsHidden
	}
	return insertOrOverwrite(ctx, s.db, comment, "comment_id", comment.CommentId, overwrite)
}

func (s *Store) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	return first[model.Comment](ctx, s.db, "comment", "id = ?", id)
}

func (s *Store) ListCommentsByPost(ctx context.Context, postId string, offset, limit int) (Page[model.Comment], error) {
	return listPage[model.Comment](ctx, s.db, "created_time desc, id asc", offset, limit, "post_id = ?", postId)
}

func (s *Store) SetCommentHidden(ctx context.Context, id string, hidden bool) (*model.Comment, error) {
	res := s.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ?", id).Update("is_hidden", hidden)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "fail to update comment")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("comment not found")
	}
	return s.GetComment(ctx, id)
}

// SetCommentHiddenByCommentId reports whether the comment is cached.
func (s *Store) SetCommentHiddenByCommentId(ctx context.Context, commentId string, hidden bool) (*model.Comment, bool, error) {
	comment, err := first[model.Comment](ctx, s.db, "comment", "comment_id = ?", commentId)
	if apperr.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	comment, err = s.SetCommentHidden(ctx, comment.Id, hidden)
	if err != nil {
		return nil, false, err
	}
	return comment, true, nil
}

// DeleteCommentByCommentId reports whether a comment was removed.
func (s *Store) DeleteCommentByCommentId(ctx context.Context, commentId string) (*model.Comment, bool, error) {
	comment, err := first[model.Comment](ctx, s.db, "comment", "comment_id = ?", commentId)
	if apperr.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := s.db.WithContext(ctx).Where("id = ?", comment.Id).Delete(&model.Comment{}).Error; err != nil {
		return nil, false, errors.Wrap(err, "fail to delete comment")
	}
	return comment, true, nil
}
