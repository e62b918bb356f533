package model

import (
	"time"
)

/*

Fanpage is a Facebook page a user connected to the dashboard

Id: primary key, internal reference used by posts, comments and messages
PageId: the page id assigned by Facebook, unique
Name: display name of the page
AccessToken: page access credential, rotated by the credential sweep. Rotation
	never touches rows that reference the page, they key on Id
UserId: owner of the page
Category, PictureUrl: page metadata from the Graph API
IsConnected: false once the owner disconnects. Disconnected pages are kept
	because cached posts, comments and messages still reference them
*/

type Fanpage struct {
	Id          string    `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	PageId      string    `gorm:"uniqueIndex;not null" json:"pageId"`
	Name        string    `gorm:"not null" json:"name"`
	AccessToken string    `gorm:"not null" json:"-"`
	UserId      string    `gorm:"index;not null" json:"userId"`
	Category    string    `json:"category"`
	PictureUrl  string    `json:"pictureUrl"`
	IsConnected bool      `json:"isConnected"`
}

// IsPageActor reports whether a Graph actor id is the page itself, which is
// the case for page replies and outbound message echoes.
func (f *Fanpage) IsPageActor(actorId string) bool {
	return actorId != "" && actorId == f.PageId
}
