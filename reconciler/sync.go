package reconciler

import (
	"context"
	"strings"
	"sync"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/model"
	. "github.com/Luismorlan/pagemux/utils/log"
	"github.com/pkg/errors"
)

// SyncReport summarizes a full page sync.
type SyncReport struct {
	Posts    int `json:"posts"`
	Comments int `json:"comments"`
	Messages int `json:"messages"`
	Failures int `json:"failures"`

	// Errors of sub-syncs that could not run at all.
	Errors []error `json:"-"`
}

func (r SyncReport) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		msgs = append(msgs, err.Error())
	}
	return errors.New(strings.Join(msgs, "; "))
}

// SyncFanpage pulls the latest page of posts, feed comments and
// conversations. Feed comments follow the posts sync since they attach to
// cached posts; conversations run alongside. A failing sub-sync never cancels
// the others.
func (r *Reconciler) SyncFanpage(ctx context.Context, fanpage *model.Fanpage) SyncReport {
	var (
		report SyncReport
		mu     sync.Mutex
		wg     sync.WaitGroup
	)
	record := func(failures int, err error) {
		report.Failures += failures
		if err != nil {
			report.Errors = append(report.Errors, err)
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		posts, comments, failures, err := r.syncPosts(ctx, fanpage)
		mu.Lock()
		defer mu.Unlock()
		report.Posts, report.Comments = posts, comments
		record(failures, err)
	}()
	go func() {
		defer wg.Done()
		messages, failures, err := r.syncConversations(ctx, fanpage)
		mu.Lock()
		defer mu.Unlock()
		report.Messages = messages
		record(failures, err)
	}()
	wg.Wait()

	Log.WithFields(map[string]interface{}{
		"page_id":  fanpage.PageId,
		"posts":    report.Posts,
		"comments": report.Comments,
		"messages": report.Messages,
		"failures": report.Failures,
	}).Infoln("fanpage synced")
	return report
}

func (r *Reconciler) syncPosts(ctx context.Context, fanpage *model.Fanpage) (int, int, int, error) {
	var errs []string
	posts, failures := 0, 0

	graphPosts, err := r.platform.ListPosts(ctx, fanpage.PageId, fanpage.AccessToken)
	if err != nil {
		errs = append(errs, "posts: "+err.Error())
	} else {
		res := r.reconcilePosts(ctx, fanpage, graphPosts, fromSync)
		r.logFailures("post", fanpage, res.Failures)
		posts, failures = len(res.Inserted)+len(res.Updated), len(res.Failures)
	}

	comments, commentFailures, err := r.syncFeedComments(ctx, fanpage)
	failures += commentFailures
	if err != nil {
		errs = append(errs, "comments: "+err.Error())
	}
	if len(errs) > 0 {
		return posts, comments, failures, errors.New(strings.Join(errs, "; "))
	}
	return posts, comments, failures, nil
}

func (r *Reconciler) syncFeedComments(ctx context.Context, fanpage *model.Fanpage) (int, int, error) {
	feed, err := r.platform.ListFeedComments(ctx, fanpage.PageId, fanpage.AccessToken)
	if err != nil {
		return 0, 0, err
	}
	count, failures := 0, 0
	for _, item := range feed {
		if len(item.Comments.Data) == 0 {
			continue
		}
		post, err := r.store.GetPostByPostId(ctx, item.Id)
		if apperr.IsNotFound(err) {
			// Feed items that are not page posts (e.g. visitor posts) have no
			// cached post to hang comments on.
			continue
		}
		if err != nil {
			failures++
			continue
		}
		res := r.reconcileComments(ctx, fanpage, post, item.Comments.Data, fromSync)
		r.logFailures("comment", fanpage, res.Failures)
		count += len(res.Inserted) + len(res.Updated)
		failures += len(res.Failures)
	}
	return count, failures, nil
}

func (r *Reconciler) syncConversations(ctx context.Context, fanpage *model.Fanpage) (int, int, error) {
	conversations, err := r.platform.ListConversations(ctx, fanpage.PageId, fanpage.AccessToken)
	if err != nil {
		return 0, 0, errors.Wrap(err, "conversations")
	}
	count, failures := 0, 0
	for _, conversation := range conversations {
		res := r.reconcileMessages(ctx, fanpage, conversation.Counterpart(fanpage.PageId), conversation.Messages.Data, fromSync)
		r.logFailures("message", fanpage, res.Failures)
		count += len(res.Inserted) + len(res.Updated)
		failures += len(res.Failures)
	}
	return count, failures, nil
}
