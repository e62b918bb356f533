package model

import (
	"time"

	"gorm.io/datatypes"
)

/*

Post is a locally cached copy of a fanpage post

Id: primary key, stable across syncs
PostId: post id assigned by Facebook, unique, the idempotency key of upserts
FanpageID: internal id of the owning Fanpage
Content, Picture, Attachments: post body and media references
Likes, Shares, CommentsCount: engagement counters, overwritten on every sync
	pass rather than merged
CreatedTime, UpdatedTime: timestamps reported by Facebook
*/

type Post struct {
	Id            string         `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	PostId        string         `gorm:"uniqueIndex;not null" json:"postId"`
	FanpageID     string         `gorm:"index;not null" json:"fanpageId"`
	Content       string         `json:"content"`
	Picture       string         `json:"picture"`
	Attachments   datatypes.JSON `json:"attachments"`
	Likes         int            `json:"likes"`
	Shares        int            `json:"shares"`
	CommentsCount int            `json:"commentsCount"`
	CreatedTime   time.Time      `json:"createdTime"`
	UpdatedTime   time.Time      `json:"updatedTime"`
}
