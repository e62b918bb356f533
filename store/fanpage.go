package store

import (
	"context"
	"time"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

func (s *Store) GetFanpage(ctx context.Context, id string) (*model.Fanpage, error) {
	return first[model.Fanpage](ctx, s.db, "fanpage", "id = ?", id)
}

func (s *Store) GetFanpageByPageId(ctx context.Context, pageId string) (*model.Fanpage, error) {
	return first[model.Fanpage](ctx, s.db, "fanpage", "page_id = ?", pageId)
}

// GetOwnedFanpage returns the fanpage only when userId owns it. A page that
// exists but belongs to someone else is an authorization error.
func (s *Store) GetOwnedFanpage(ctx context.Context, id string, userId string) (*model.Fanpage, error) {
	fanpage, err := s.GetFanpage(ctx, id)
	if err != nil {
		return nil, err
	}
	if fanpage.UserId != userId {
		return nil, apperr.Unauthorized("not authorized to access fanpage %s", id)
	}
	return fanpage, nil
}

func (s *Store) ListFanpagesByUser(ctx context.Context, userId string) ([]model.Fanpage, error) {
	fanpages := []model.Fanpage{}
	err := s.db.WithContext(ctx).Where("user_id = ?", userId).Order("created_at asc").Find(&fanpages).Error
	return fanpages, errors.Wrap(err, "fail to list fanpages")
}

func (s *Store) ListConnectedFanpagesByUser(ctx context.Context, userId string) ([]model.Fanpage, error) {
	fanpages := []model.Fanpage{}
	err := s.db.WithContext(ctx).Where("user_id = ? AND is_connected = ?", userId, true).Order("created_at asc").Find(&fanpages).Error
	return fanpages, errors.Wrap(err, "fail to list connected fanpages")
}

func (s *Store) CountConnectedFanpages(ctx context.Context, userId string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Fanpage{}).Where("user_id = ? AND is_connected = ?", userId, true).Count(&count).Error
	return count, errors.Wrap(err, "fail to count connected fanpages")
}

// ConnectFanpage creates the fanpage, or reconnects it when the same owner
// connected it before. A page connected by another user, or still connected,
// cannot be connected again.
func (s *Store) ConnectFanpage(ctx context.Context, fanpage *model.Fanpage) (*model.Fanpage, error) {
	var connected *model.Fanpage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Fanpage
		err := tx.Where("page_id = ?", fanpage.PageId).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fanpage.Id = NewId()
			fanpage.IsConnected = true
			if err := tx.Create(fanpage).Error; err != nil {
				return errors.Wrap(err, "fail to create fanpage")
			}
			connected = fanpage
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "fail to load fanpage")
		}
		if existing.IsConnected || existing.UserId != fanpage.UserId {
			return apperr.Validation("fanpage %s already connected", fanpage.PageId)
		}
		err = tx.Model(&existing).Updates(map[string]interface{}{
			"name":         fanpage.Name,
			"access_token": fanpage.AccessToken,
			"category":     fanpage.Category,
			"picture_url":  fanpage.PictureUrl,
			"is_connected": true,
		}).Error
		if err != nil {
			return errors.Wrap(err, "fail to reconnect fanpage")
		}
		connected = &existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return connected, nil
}

func (s *Store) SetFanpageConnected(ctx context.Context, id string, connected bool) error {
	res := s.db.WithContext(ctx).Model(&model.Fanpage{}).Where("id = ?", id).Update("is_connected", connected)
	if res.Error != nil {
		return errors.Wrap(res.Error, "fail to update fanpage connection")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("fanpage not found")
	}
	return nil
}

// UpdateFanpageToken rotates the page credential. Only the fanpage row
// changes, cached entities reference the page by its internal id.
func (s *Store) UpdateFanpageToken(ctx context.Context, id string, token string) (*model.Fanpage, error) {
	res := s.db.WithContext(ctx).Model(&model.Fanpage{}).Where("id = ?", id).Updates(map[string]interface{}{
		"access_token": token,
		"updated_at":   time.Now(),
	})
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "fail to update fanpage token")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("fanpage not found")
	}
	return s.GetFanpage(ctx, id)
}
