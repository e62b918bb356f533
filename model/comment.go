package model

import (
	"time"

	"gorm.io/datatypes"
)

/*

Comment is a locally cached copy of a comment or a reply on a fanpage post

CommentId: comment id assigned by Facebook, unique, the idempotency key
PostID: internal id of the parent Post
FanpageID: internal id of the owning Fanpage
ParentId: Facebook id of the comment this one replies to. It is a flat pointer,
	threads are not materialized as a tree
FromId, FromName, FromAvatar: author. For page replies the avatar is the page
	picture
IsHidden: whether the comment is hidden on Facebook
*/

type Comment struct {
	Id          string         `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	CommentId   string         `gorm:"uniqueIndex;not null" json:"commentId"`
	PostID      string         `gorm:"index:idx_comment_post_created,priority:1;not null" json:"postId"`
	FanpageID   string         `gorm:"index;not null" json:"fanpageId"`
	ParentId    string         `json:"parentId,omitempty"`
	FromId      string         `gorm:"not null" json:"fromId"`
	FromName    string         `json:"fromName"`
	FromAvatar  string         `json:"fromAvatar,omitempty"`
	Message     string         `json:"message"`
	Attachments datatypes.JSON `json:"attachments"`
	IsHidden    bool           `json:"isHidden"`
	CreatedTime time.Time      `gorm:"index:idx_comment_post_created,priority:2,sort:desc" json:"createdTime"`
}
