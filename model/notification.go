package model

import (
	"fmt"
	"time"
)

type NotificationType string

const (
	NotificationTypeMessage       NotificationType = "message"
	NotificationTypeComment       NotificationType = "comment"
	NotificationTypePost          NotificationType = "post"
	NotificationTypePayment       NotificationType = "payment"
	NotificationTypePackageExpiry NotificationType = "package_expiry"
)

var AllNotificationType = []NotificationType{
	NotificationTypeMessage,
	NotificationTypeComment,
	NotificationTypePost,
	NotificationTypePayment,
	NotificationTypePackageExpiry,
}

func (e NotificationType) IsValid() bool {
	switch e {
	case NotificationTypeMessage, NotificationTypeComment, NotificationTypePost,
		NotificationTypePayment, NotificationTypePackageExpiry:
		return true
	}
	return false
}

func (e NotificationType) String() string {
	return string(e)
}

func ParseNotificationType(s string) (NotificationType, error) {
	e := NotificationType(s)
	if !e.IsValid() {
		return "", fmt.Errorf("%s is not a valid NotificationType", s)
	}
	return e, nil
}

/*

Notification is an entry of a user's bounded notification log

UserId: owner
RelatedId: opaque id of the entity that caused the notification (a message,
	comment or post id). Not a typed reference
*/

type Notification struct {
	Id        string           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time        `gorm:"index:idx_notification_user_created,priority:2" json:"createdAt"`
	UserId    string           `gorm:"index:idx_notification_user_created,priority:1;not null" json:"userId"`
	Type      NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Title     string           `gorm:"not null" json:"title"`
	Content   string           `gorm:"not null" json:"content"`
	RelatedId string           `json:"relatedId,omitempty"`
	IsRead    bool             `json:"isRead"`
}
