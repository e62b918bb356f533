// Package notification keeps the per-user notification log and pushes every
// new entry to the user's connected dashboards.
package notification

import (
	"context"
	"fmt"

	"github.com/Luismorlan/pagemux/app_config"
	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/metrics"
	"github.com/Luismorlan/pagemux/model"
	"github.com/Luismorlan/pagemux/realtime"
	"github.com/Luismorlan/pagemux/store"
	"github.com/Luismorlan/pagemux/utils"
)

const maxPageSize = 100

// Emitter pushes an event to every connection of a user.
type Emitter interface {
	EmitToUser(userId string, event string, payload interface{}) int
}

type NewNotification struct {
	UserId    string
	Type      model.NotificationType
	Title     string
	Content   string
	RelatedId string
}

type Service struct {
	store   *store.Store
	emitter Emitter
	metrics *metrics.Reporter

	limit int
	keep  int
}

func NewService(s *store.Store, emitter Emitter, c app_config.SyncConfig, m *metrics.Reporter) *Service {
	return &Service{
		store:   s,
		emitter: emitter,
		metrics: m,
		limit:   c.NOTIFICATION_CAP,
		keep:    c.NOTIFICATION_KEEP,
	}
}

// Create appends to the user's bounded log and emits the stored entry as a
// "notification" event. Delivery is best effort, an offline user only sees
// the entry in the log.
func (s *Service) Create(ctx context.Context, n NewNotification) (*model.Notification, error) {
	if n.UserId == "" {
		return nil, apperr.Validation("notification needs a user")
	}
	if !n.Type.IsValid() {
		return nil, apperr.Validation("%s is not a valid notification type", n.Type)
	}
	if n.Title == "" {
		return nil, apperr.Validation("notification needs a title")
	}

	notification := &model.Notification{
		UserId:    n.UserId,
		Type:      n.Type,
		Title:     n.Title,
		Content:   n.Content,
		RelatedId: n.RelatedId,
	}
	if err := s.store.InsertNotificationBounded(ctx, notification, s.limit, s.keep); err != nil {
		return nil, err
	}
	s.metrics.Incr(metrics.NotificationCounter, "type:"+n.Type.String())
	if s.emitter != nil {
		s.emitter.EmitToUser(n.UserId, realtime.EventNotification, notification)
	}
	return notification, nil
}

// List returns a page of the user's log, newest first. page is 1-based.
func (s *Service) List(ctx context.Context, userId string, page, limit int) (store.Page[model.Notification], error) {
	offset, size := utils.Paginate(page, limit, maxPageSize)
	return s.store.ListNotifications(ctx, userId, offset, size)
}

func (s *Service) UnreadCount(ctx context.Context, userId string) (int64, error) {
	return s.store.CountUnreadNotifications(ctx, userId)
}

// MarkRead only succeeds for the owner, anyone else gets NotFound.
func (s *Service) MarkRead(ctx context.Context, id string, userId string) (*model.Notification, error) {
	return s.store.MarkNotificationRead(ctx, id, userId)
}

// SendPackageExpiry warns a user that their subscription ends in daysLeft days.
func (s *Service) SendPackageExpiry(ctx context.Context, userId string, daysLeft int) (*model.Notification, error) {
	if _, err := s.store.GetUser(ctx, userId); err != nil {
		return nil, err
	}
	return s.Create(ctx, NewNotification{
		UserId:  userId,
		Type:    model.NotificationTypePackageExpiry,
		Title:   "Your package is about to expire",
		Content: fmt.Sprintf("Your package expires in %d days. Renew it to keep using the service.", daysLeft),
	})
}
