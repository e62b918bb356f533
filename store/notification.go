package store

import (
	"context"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// InsertNotificationBounded keeps a user's log at or under limit entries.
// When the user already holds limit entries the oldest are removed so that
// keep entries remain after the insert.
func (s *Store) InsertNotificationBounded(ctx context.Context, n *model.Notification, limit, keep int) error {
	if n.Id == "" {
		n.Id = NewId()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Notification{}).Where("user_id = ?", n.UserId).Count(&count).Error; err != nil {
			return errors.Wrap(err, "fail to count notifications")
		}
		if count >= int64(limit) {
			stale := []string{}
			err := tx.Model(&model.Notification{}).
				Where("user_id = ?", n.UserId).
				Order("created_at asc, id asc").
				Limit(int(count)-keep+1).
				Pluck("id", &stale).Error
			if err != nil {
				return errors.Wrap(err, "fail to select stale notifications")
			}
			if err := tx.Where("id IN ?", stale).Delete(&model.Notification{}).Error; err != nil {
				return errors.Wrap(err, "fail to prune notifications")
			}
		}
		return errors.Wrap(tx.Create(n).Error, "fail to insert notification")
	})
}

func (s *Store) ListNotifications(ctx context.Context, userId string, offset, limit int) (Page[model.Notification], error) {
	return listPage[model.Notification](ctx, s.db, "created_at desc, id asc", offset, limit, "user_id = ?", userId)
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userId string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Notification{}).Where("user_id = ? AND is_read = ?", userId, false).Count(&count).Error
	return count, errors.Wrap(err, "fail to count unread notifications")
}

// MarkNotificationRead flips the read flag of a notification owned by userId.
// Someone else's notification is reported as missing.
func (s *Store) MarkNotificationRead(ctx context.Context, id string, userId string) (*model.Notification, error) {
	res := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userId).
		Update("is_read", true)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "fail to mark notification read")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("notification not found")
	}
	return first[model.Notification](ctx, s.db, "notification", "id = ?", id)
}
