package model

import (
	"time"

	"gorm.io/datatypes"
)

/*

Message is a locally cached copy of a Messenger message

MessageId: message id (mid) assigned by Facebook, unique, the idempotency key
FanpageID: internal id of the owning Fanpage
ConversationId: shared key grouping the messages of one conversation. Not an
	entity on its own. Pages (conversationId, createdTime desc) are served from
	a composite index
ParentId: optional id of the message this one replies to
Followed: user flag to pin the message in the dashboard
*/

type Message struct {
	Id             string         `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	MessageId      string         `gorm:"uniqueIndex;not null" json:"messageId"`
	FanpageID      string         `gorm:"index;not null" json:"fanpageId"`
	ConversationId string         `gorm:"index:idx_message_conversation_created,priority:1;not null" json:"conversationId"`
	ParentId       string         `json:"parentId,omitempty"`
	FromId         string         `gorm:"not null" json:"fromId"`
	FromName       string         `json:"fromName"`
	FromAvatar     string         `json:"fromAvatar,omitempty"`
	Body           string         `json:"message"`
	Attachments    datatypes.JSON `json:"attachments"`
	Followed       bool           `json:"followed"`
	CreatedTime    time.Time      `gorm:"index:idx_message_conversation_created,priority:2,sort:desc" json:"createdTime"`
}
