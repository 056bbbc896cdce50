package model

import "time"

type InviteCode struct {
	ID            string    `gorm:"type:varchar(64);primaryKey" json:"id" bson:"_id"`
	Code          string    `gorm:"type:varchar(16);uniqueIndex;not null" json:"code" bson:"code"`
	GroupID       string    `gorm:"type:varchar(64);not null;index" json:"groupId" bson:"groupId"`
	GroupName     string    `gorm:"type:varchar(128)" json:"groupName" bson:"groupName"`
	CreatedBy     string    `gorm:"type:varchar(64);not null" json:"createdBy" bson:"createdBy"`
	CreatedByName string    `gorm:"type:varchar(128)" json:"createdByName" bson:"createdByName"`
	ExpiresAt     time.Time `gorm:"not null" json:"expiresAt" bson:"expiresAt"`
	MaxUses       int       `gorm:"not null;default:0" json:"maxUses" bson:"maxUses"`
	UsedCount     int       `gorm:"not null;default:0" json:"usedCount" bson:"usedCount"`
	IsActive      bool      `gorm:"not null" json:"isActive" bson:"isActive"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false" json:"createdAt" bson:"createdAt"`
}

func (InviteCode) TableName() string { return "invite_codes" }

func (c *InviteCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsExhausted reports whether a limited code has been used up. MaxUses 0 never exhausts.
func (c *InviteCode) IsExhausted() bool {
	return c.MaxUses > 0 && c.UsedCount >= c.MaxUses
}
