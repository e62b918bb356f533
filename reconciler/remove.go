package reconciler

import (
	"context"

	"github.com/Luismorlan/pagemux/model"
	"github.com/Luismorlan/pagemux/realtime"
)

// RemovePost drops a post deleted on Facebook together with its cached
// comments. Unknown posts are a no-op.
func (r *Reconciler) RemovePost(ctx context.Context, fanpage *model.Fanpage, postId string) (bool, error) {
	post, removed, err := r.store.DeletePostByPostId(ctx, postId)
	if err != nil || !removed {
		return false, err
	}
	r.emit(fanpage.UserId, realtime.EventPostDeleted, realtime.DeletedPayload{
		Id:         post.Id,
		ExternalId: post.PostId,
		FanpageId:  fanpage.Id,
	})
	return true, nil
}

func (r *Reconciler) RemoveComment(ctx context.Context, fanpage *model.Fanpage, commentId string) (bool, error) {
	comment, removed, err := r.store.DeleteCommentByCommentId(ctx, commentId)
	if err != nil || !removed {
		return false, err
	}
	r.emit(fanpage.UserId, realtime.EventCommentDeleted, realtime.DeletedPayload{
		Id:         comment.Id,
		ExternalId: comment.CommentId,
		FanpageId:  fanpage.Id,
	})
	return true, nil
}

// SetCommentHidden mirrors a hide or unhide done on Facebook. It reports
// false when the comment is not cached.
func (r *Reconciler) SetCommentHidden(ctx context.Context, fanpage *model.Fanpage, commentId string, hidden bool) (bool, error) {
	comment, found, err := r.store.SetCommentHiddenByCommentId(ctx, commentId, hidden)
	if err != nil || !found {
		return false, err
	}
	r.emit(fanpage.UserId, realtime.EventCommentUpdated, comment)
	return true, nil
}
