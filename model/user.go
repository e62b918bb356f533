package model

import "time"

/*

User is a dashboard account. Accounts are created by the auth service, this
repo only reads them and rotates their Facebook credential.

FacebookToken: long-lived Facebook user credential, empty until the user links
	a Facebook account
FacebookTokenIssuedAt: when FacebookToken was issued. Tracked on its own so
	unrelated profile updates do not make an old credential look fresh
PackageID, Package, PackageExpiry: subscription tier. No package means the free
	tier
*/

type User struct {
	Id                    string     `gorm:"primaryKey" json:"id"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
	Email                 string     `gorm:"uniqueIndex" json:"email"`
	Name                  string     `json:"name"`
	Role                  string     `json:"role"`
	FacebookId            string     `json:"facebookId,omitempty"`
	FacebookToken         string     `json:"-"`
	FacebookTokenIssuedAt *time.Time `json:"-"`
	PackageID             *string    `json:"packageId,omitempty"`
	Package               *Package   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"package,omitempty"`
	PackageExpiry         *time.Time `json:"packageExpiry,omitempty"`
}

// CredentialIssuedAt falls back to the last record update for credentials
// linked before issuance time was tracked.
func (u *User) CredentialIssuedAt() time.Time {
	if u.FacebookTokenIssuedAt != nil {
		return *u.FacebookTokenIssuedAt
	}
	return u.UpdatedAt
}

// Package is a subscription tier.
type Package struct {
	Id           string    `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	Name         string    `gorm:"uniqueIndex;not null" json:"name"`
	Price        int64     `json:"price"`
	MaxFanpages  int       `gorm:"not null" json:"maxFanpages"`
	DurationDays int       `json:"durationDays"`
}

const FreeTierMaxFanpages = 1
