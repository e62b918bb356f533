package reconciler

import (
	"context"

	"github.com/Luismorlan/pagemux/metrics"
	"github.com/Luismorlan/pagemux/model"
	"github.com/Luismorlan/pagemux/store"
	"github.com/Luismorlan/pagemux/utils"
	. "github.com/Luismorlan/pagemux/utils/log"
)

const maxPageSize = 100

// The lazy pulls below serve a page of a scope from the store. Only when the
// scope has nothing cached at all do they pull one page from the Graph API,
// reconcile it and query again. A scope with a single cached row is never
// pulled, so a partially cached scope stays partial until webhooks or a sync
// fill it.

func (r *Reconciler) PostsForFanpage(ctx context.Context, fanpage *model.Fanpage, page, limit int) (store.Page[model.Post], error) {
	offset, size := utils.Paginate(page, limit, maxPageSize)
	query := func() (store.Page[model.Post], error) {
		return r.store.ListPostsByFanpage(ctx, fanpage.Id, offset, size)
	}
	cached, err := query()
	if err != nil || cached.Total > 0 {
		return cached, err
	}

	posts, err := r.platform.ListPosts(ctx, fanpage.PageId, fanpage.AccessToken)
	if err != nil {
		return cached, err
	}
	r.metrics.Incr(metrics.LazyPullCounter, "kind:post")
	r.logFailures("post", fanpage, r.reconcilePosts(ctx, fanpage, posts, fromLazyPull).Failures)
	return query()
}

func (r *Reconciler) CommentsForPost(ctx context.Context, fanpage *model.Fanpage, post *model.Post, page, limit int) (store.Page[model.Comment], error) {
	offset, size := utils.Paginate(page, limit, maxPageSize)
	query := func() (store.Page[model.Comment], error) {
		return r.store.ListCommentsByPost(ctx, post.Id, offset, size)
	}
	cached, err := query()
	if err != nil || cached.Total > 0 {
		return cached, err
	}

	comments, err := r.platform.ListPostComments(ctx, post.PostId, fanpage.AccessToken)
	if err != nil {
		return cached, err
	}
	r.metrics.Incr(metrics.LazyPullCounter, "kind:comment")
	r.logFailures("comment", fanpage, r.reconcileComments(ctx, fanpage, post, comments, fromLazyPull).Failures)
	return query()
}

func (r *Reconciler) MessagesForConversation(ctx context.Context, fanpage *model.Fanpage, conversationId string, page, limit int) (store.Page[model.Message], error) {
	offset, size := utils.Paginate(page, limit, maxPageSize)
	query := func() (store.Page[model.Message], error) {
		return r.store.ListMessagesByConversation(ctx, fanpage.Id, conversationId, offset, size)
	}
	cached, err := query()
	if err != nil || cached.Total > 0 {
		return cached, err
	}

	messages, err := r.platform.ConversationWith(ctx, fanpage.PageId, conversationId, fanpage.AccessToken)
	if err != nil {
		return cached, err
	}
	r.metrics.Incr(metrics.LazyPullCounter, "kind:message")
	r.logFailures("message", fanpage, r.reconcileMessages(ctx, fanpage, conversationId, messages, fromLazyPull).Failures)
	return query()
}

func (r *Reconciler) logFailures(kind string, fanpage *model.Fanpage, failures []error) {
	for _, err := range failures {
		Log.WithFields(map[string]interface{}{
			"kind":    kind,
			"page_id": fanpage.PageId,
		}).Errorln("fail to reconcile record: ", err)
	}
}
