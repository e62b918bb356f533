package server

import (
	"context"
	"fmt"
	"time"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/facebook"
	"github.com/Luismorlan/pagemux/model"
	"github.com/Luismorlan/pagemux/notification"
	"github.com/Luismorlan/pagemux/realtime"
	"github.com/Luismorlan/pagemux/reconciler"
	"github.com/Luismorlan/pagemux/store"
	. "github.com/Luismorlan/pagemux/utils/log"
	"github.com/pkg/errors"
)

// Platform is the part of the Graph API the dashboard writes through.
type Platform interface {
	GetPageDetails(ctx context.Context, pageId string, userToken string) (*facebook.Page, error)
	GetPageAccessToken(ctx context.Context, pageId string, userToken string) (string, error)
	CreatePost(ctx context.Context, pageId string, message string, token string) (string, error)
	UpdatePost(ctx context.Context, postId string, message string, token string) error
	DeletePost(ctx context.Context, postId string, token string) error
	ReplyToComment(ctx context.Context, commentId string, message string, token string) (string, error)
	SetCommentHidden(ctx context.Context, commentId string, hidden bool, token string) error
}

// FanpageEvents announces fanpage rows that changed, so cached lookups of
// the page can be dropped.
type FanpageEvents interface {
	PublishFanpageChanged(ctx context.Context, pageId string) error
}

type Emitter interface {
	EmitToUser(userId string, event string, payload interface{}) int
}

// FollowedPayload is the data of message:followed.
type FollowedPayload struct {
	MessageId string `json:"messageId"`
	Followed  bool   `json:"followed"`
}

// Dashboard implements the operations behind the REST handlers. Every
// operation takes the authenticated user id and checks ownership of what it
// touches.
type Dashboard struct {
	store      *store.Store
	platform   Platform
	reconciler *reconciler.Reconciler
	notifier   *notification.Service
	emitter    Emitter
	events     FanpageEvents
}

func NewDashboard(s *store.Store, platform Platform, r *reconciler.Reconciler, notifier *notification.Service, emitter Emitter, events FanpageEvents) *Dashboard {
	return &Dashboard{
		store:      s,
		platform:   platform,
		reconciler: r,
		notifier:   notifier,
		emitter:    emitter,
		events:     events,
	}
}

func (d *Dashboard) emit(userId string, event string, payload interface{}) {
	if d.emitter != nil {
		d.emitter.EmitToUser(userId, event, payload)
	}
}

func (d *Dashboard) fanpageChanged(ctx context.Context, fanpage *model.Fanpage) {
	if d.events == nil {
		return
	}
	if err := d.events.PublishFanpageChanged(ctx, fanpage.PageId); err != nil {
		Log.WithField("page_id", fanpage.PageId).Errorln("fail to publish fanpage change: ", err)
	}
}

// connectedFanpage loads a fanpage owned by userId that is still connected.
func (d *Dashboard) connectedFanpage(ctx context.Context, id string, userId string) (*model.Fanpage, error) {
	fanpage, err := d.store.GetOwnedFanpage(ctx, id, userId)
	if err != nil {
		return nil, err
	}
	if !fanpage.IsConnected {
		return nil, apperr.NotFound("Fanpage not found or not authorized")
	}
	return fanpage, nil
}

func (d *Dashboard) ListFanpages(ctx context.Context, userId string) ([]model.Fanpage, error) {
	return d.store.ListFanpagesByUser(ctx, userId)
}

// checkTier enforces the number of connected pages the user's package
// allows. An expired package is dropped back to the free tier on the spot.
func (d *Dashboard) checkTier(ctx context.Context, user *model.User) error {
	connected, err := d.store.CountConnectedFanpages(ctx, user.Id)
	if err != nil {
		return err
	}
	if user.PackageID == nil || user.Package == nil {
		if connected >= model.FreeTierMaxFanpages {
			return apperr.Forbidden("Free tier limit reached. Please upgrade your package to connect more pages")
		}
		return nil
	}
	if user.PackageExpiry == nil || user.PackageExpiry.Before(time.Now()) {
		if err := d.store.ClearUserPackage(ctx, user.Id); err != nil {
			return err
		}
		return apperr.Forbidden("Your package has expired. Please renew your package")
	}
	if connected >= int64(user.Package.MaxFanpages) {
		return apperr.Forbidden("Package limit reached. Your package allows maximum %d fanpages", user.Package.MaxFanpages)
	}
	return nil
}

// ConnectFanpage links a Facebook page to the user and runs a first full
// sync. Sync failures are logged, the page stays connected.
func (d *Dashboard) ConnectFanpage(ctx context.Context, userId string, pageId string) (*model.Fanpage, error) {
	if pageId == "" {
		return nil, apperr.Validation("pageId is required")
	}
	user, err := d.store.GetUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	if err := d.checkTier(ctx, user); err != nil {
		return nil, err
	}
	if user.FacebookToken == "" {
		return nil, apperr.Validation("Please connect your Facebook account first")
	}

	details, err := d.platform.GetPageDetails(ctx, pageId, user.FacebookToken)
	if err != nil {
		return nil, err
	}
	fanpage, err := d.store.ConnectFanpage(ctx, &model.Fanpage{
		PageId:      details.Id,
		Name:        details.Name,
		AccessToken: details.AccessToken,
		UserId:      user.Id,
		Category:    details.Category,
		PictureUrl:  details.Picture.Data.Url,
	})
	if err != nil {
		return nil, err
	}
	d.fanpageChanged(ctx, fanpage)

	report := d.reconciler.SyncFanpage(ctx, fanpage)
	if err := report.Err(); err != nil {
		Log.WithFields(map[string]interface{}{
			"page_id":  fanpage.PageId,
			"failures": report.Failures,
		}).Warnln("initial sync incomplete: ", err)
	}
	return fanpage, nil
}

func (d *Dashboard) DisconnectFanpage(ctx context.Context, userId string, id string) error {
	fanpage, err := d.store.GetOwnedFanpage(ctx, id, userId)
	if err != nil {
		return err
	}
	if err := d.store.SetFanpageConnected(ctx, fanpage.Id, false); err != nil {
		return err
	}
	d.fanpageChanged(ctx, fanpage)
	return nil
}

func (d *Dashboard) RefreshFanpageToken(ctx context.Context, userId string, id string) (*model.Fanpage, error) {
	fanpage, err := d.store.GetOwnedFanpage(ctx, id, userId)
	if err != nil {
		return nil, err
	}
	user, err := d.store.GetUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	if user.FacebookToken == "" {
		return nil, apperr.NotFound("User not found or Facebook account not connected")
	}
	token, err := d.platform.GetPageAccessToken(ctx, fanpage.PageId, user.FacebookToken)
	if err != nil {
		return nil, err
	}
	updated, err := d.store.UpdateFanpageToken(ctx, fanpage.Id, token)
	if err != nil {
		return nil, err
	}
	d.fanpageChanged(ctx, updated)
	return updated, nil
}

func (d *Dashboard) ListPosts(ctx context.Context, userId string, fanpageId string, page, limit int) (store.Page[model.Post], error) {
	fanpage, err := d.store.GetOwnedFanpage(ctx, fanpageId, userId)
	if err != nil {
		return store.Page[model.Post]{}, err
	}
	return d.reconciler.PostsForFanpage(ctx, fanpage, page, limit)
}

// CreatePost publishes on Facebook first and caches the post under the id
// Facebook assigned.
func (d *Dashboard) CreatePost(ctx context.Context, userId string, fanpageId string, content string) (*model.Post, error) {
	if content == "" {
		return nil, apperr.Validation("content is required")
	}
	fanpage, err := d.connectedFanpage(ctx, fanpageId, userId)
	if err != nil {
		return nil, err
	}
	postId, err := d.platform.CreatePost(ctx, fanpage.PageId, content, fanpage.AccessToken)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	post := &model.Post{
		PostId:      postId,
		FanpageID:   fanpage.Id,
		Content:     content,
		Attachments: model.EncodeAttachments(nil),
		CreatedTime: now,
		UpdatedTime: now,
	}
	if _, err := d.store.UpsertPost(ctx, post, store.PostContentOnly); err != nil {
		return nil, err
	}
	d.emit(userId, realtime.EventPostReceived, post)
	return post, nil
}

// ownedPost loads a post and its connected fanpage, owned by userId.
func (d *Dashboard) ownedPost(ctx context.Context, userId string, id string) (*model.Post, *model.Fanpage, error) {
	post, err := d.store.GetPost(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	fanpage, err := d.connectedFanpage(ctx, post.FanpageID, userId)
	if err != nil {
		return nil, nil, err
	}
	return post, fanpage, nil
}

func (d *Dashboard) UpdatePost(ctx context.Context, userId string, id string, content string) (*model.Post, error) {
	if content == "" {
		return nil, apperr.Validation("content is required")
	}
	post, fanpage, err := d.ownedPost(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	if err := d.platform.UpdatePost(ctx, post.PostId, content, fanpage.AccessToken); err != nil {
		return nil, err
	}
	updated, err := d.store.UpdatePostContent(ctx, post.Id, content)
	if err != nil {
		return nil, err
	}
	d.emit(userId, realtime.EventPostUpdated, updated)
	return updated, nil
}

func (d *Dashboard) DeletePost(ctx context.Context, userId string, id string) error {
	post, fanpage, err := d.ownedPost(ctx, userId, id)
	if err != nil {
		return err
	}
	if err := d.platform.DeletePost(ctx, post.PostId, fanpage.AccessToken); err != nil {
		return err
	}
	if err := d.store.DeletePost(ctx, post.Id); err != nil {
		return err
	}
	d.emit(userId, realtime.EventPostDeleted, realtime.DeletedPayload{
		Id:         post.Id,
		ExternalId: post.PostId,
		FanpageId:  fanpage.Id,
	})
	return nil
}

func (d *Dashboard) ListComments(ctx context.Context, userId string, postId string, page, limit int) (store.Page[model.Comment], error) {
	post, err := d.store.GetPost(ctx, postId)
	if err != nil {
		return store.Page[model.Comment]{}, err
	}
	fanpage, err := d.store.GetOwnedFanpage(ctx, post.FanpageID, userId)
	if err != nil {
		return store.Page[model.Comment]{}, err
	}
	return d.reconciler.CommentsForPost(ctx, fanpage, post, page, limit)
}

func (d *Dashboard) ownedComment(ctx context.Context, userId string, id string) (*model.Comment, *model.Fanpage, error) {
	comment, err := d.store.GetComment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	fanpage, err := d.store.GetOwnedFanpage(ctx, comment.FanpageID, userId)
	if err != nil {
		return nil, nil, err
	}
	return comment, fanpage, nil
}

// ReplyToComment answers as the page. The reply is cached right away, its
// webhook delivery later finds it known.
func (d *Dashboard) ReplyToComment(ctx context.Context, userId string, id string, message string) (*model.Comment, error) {
	if message == "" {
		return nil, apperr.Validation("message is required")
	}
	parent, fanpage, err := d.ownedComment(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	replyId, err := d.platform.ReplyToComment(ctx, parent.CommentId, message, fanpage.AccessToken)
	if err != nil {
		return nil, err
	}

	reply := &model.Comment{
		CommentId:   replyId,
		PostID:      parent.PostID,
		FanpageID:   fanpage.Id,
		ParentId:    parent.CommentId,
		FromId:      fanpage.PageId,
		FromName:    fanpage.Name,
		FromAvatar:  fanpage.PictureUrl,
		Message:     message,
		Attachments: model.EncodeAttachments(nil),
		CreatedTime: time.Now().UTC(),
	}
	if _, err := d.store.UpsertComment(ctx, reply, store.CommentContentOnly); err != nil {
		return nil, err
	}
	d.emit(userId, realtime.EventCommentReceived, reply)
	return reply, nil
}

func (d *Dashboard) HideComment(ctx context.Context, userId string, id string, hidden bool) (*model.Comment, error) {
	comment, fanpage, err := d.ownedComment(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	if err := d.platform.SetCommentHidden(ctx, comment.CommentId, hidden, fanpage.AccessToken); err != nil {
		return nil, err
	}
	updated, err := d.store.SetCommentHidden(ctx, comment.Id, hidden)
	if err != nil {
		return nil, err
	}
	d.emit(userId, realtime.EventCommentUpdated, updated)
	return updated, nil
}

func (d *Dashboard) ListMessages(ctx context.Context, userId string, fanpageId string, conversationId string, page, limit int) (store.Page[model.Message], error) {
	fanpage, err := d.store.GetOwnedFanpage(ctx, fanpageId, userId)
	if err != nil {
		return store.Page[model.Message]{}, err
	}
	return d.reconciler.MessagesForConversation(ctx, fanpage, conversationId, page, limit)
}

func (d *Dashboard) SendMessage(ctx context.Context, userId string, fanpageId string, conversationId string, text string) (*model.Message, error) {
	fanpage, err := d.connectedFanpage(ctx, fanpageId, userId)
	if err != nil {
		return nil, err
	}
	return d.reconciler.SendMessage(ctx, fanpage, conversationId, text)
}

func (d *Dashboard) FollowMessage(ctx context.Context, userId string, id string, followed bool) (*model.Message, error) {
	message, err := d.store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := d.store.GetOwnedFanpage(ctx, message.FanpageID, userId); err != nil {
		return nil, err
	}
	updated, err := d.store.SetMessageFollowed(ctx, message.Id, followed)
	if err != nil {
		return nil, err
	}
	d.emit(userId, realtime.EventMessageFollowed, FollowedPayload{MessageId: updated.Id, Followed: followed})
	return updated, nil
}

// SendAsOwner serves message:send from the websocket. The reply goes out
// from the connected fanpage that already holds the conversation, or the
// user's first connected fanpage.
func (d *Dashboard) SendAsOwner(ctx context.Context, userId string, data realtime.SendMessageData) (*model.Message, error) {
	fanpage, err := d.conversationFanpage(ctx, userId, data.ConversationId)
	if err != nil {
		return nil, err
	}
	message, err := d.reconciler.SendMessage(ctx, fanpage, data.ConversationId, data.Message)
	if err != nil {
		return nil, err
	}

	_, err = d.notifier.Create(ctx, notification.NewNotification{
		UserId:    userId,
		Type:      model.NotificationTypeMessage,
		Title:     "New Message Sent",
		Content:   fmt.Sprintf("You sent a message in conversation %s", data.ConversationId),
		RelatedId: message.Id,
	})
	if err != nil {
		Log.WithField("user_id", userId).Errorln("fail to create notification: ", err)
	}
	return message, nil
}

func (d *Dashboard) conversationFanpage(ctx context.Context, userId string, conversationId string) (*model.Fanpage, error) {
	fanpages, err := d.store.ListConnectedFanpagesByUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	if len(fanpages) == 0 {
		return nil, apperr.NotFound("Fanpage not found")
	}
	for i := range fanpages {
		page, err := d.store.ListMessagesByConversation(ctx, fanpages[i].Id, conversationId, 0, 1)
		if err != nil {
			return nil, errors.Wrap(err, "fail to locate conversation")
		}
		if page.Total > 0 {
			return &fanpages[i], nil
		}
	}
	return &fanpages[0], nil
}

func (d *Dashboard) ListNotifications(ctx context.Context, userId string, page, limit int) (store.Page[model.Notification], error) {
	return d.notifier.List(ctx, userId, page, limit)
}

func (d *Dashboard) UnreadNotifications(ctx context.Context, userId string) (int64, error) {
	return d.notifier.UnreadCount(ctx, userId)
}

func (d *Dashboard) MarkNotificationRead(ctx context.Context, userId string, id string) (*model.Notification, error) {
	return d.notifier.MarkRead(ctx, id, userId)
}
