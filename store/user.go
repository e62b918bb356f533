package store

import (
	"context"
	"time"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Preload("Package").Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "fail to load user")
	}
	return &user, nil
}

// ListUsersWithFacebookToken returns every user holding a Facebook credential.
func (s *Store) ListUsersWithFacebookToken(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	err := s.db.WithContext(ctx).Where("facebook_token IS NOT NULL AND facebook_token <> ''").Order("id asc").Find(&users).Error
	return users, errors.Wrap(err, "fail to list users with facebook token")
}

// UpdateUserFacebookToken stores a new credential together with the time it
// was issued.
func (s *Store) UpdateUserFacebookToken(ctx context.Context, id string, token string, issuedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"facebook_token":           token,
		"facebook_token_issued_at": issuedAt,
	})
	if res.Error != nil {
		return errors.Wrap(res.Error, "fail to update facebook token")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// ClearUserPackage drops an expired subscription back to the free tier.
func (s *Store) ClearUserPackage(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"package_id":     nil,
		"package_expiry": nil,
	}).Error
	return errors.Wrap(err, "fail to clear user package")
}
