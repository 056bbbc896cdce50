package model

import "time"

type UserStatus int

const (
	UserStatusActive   UserStatus = 1
	UserStatusDisabled UserStatus = 2
)

// User is the cloud profile stored at users/{uid}.
type User struct {
	ID           string      `gorm:"type:varchar(64);primaryKey" json:"id" bson:"_id"`
	Email        string      `gorm:"type:varchar(320);uniqueIndex;not null" json:"email" bson:"email"`
	DisplayName  string      `gorm:"type:varchar(128)" json:"displayName" bson:"displayName"`
	PasswordHash string      `gorm:"type:varchar(256);not null" json:"-" bson:"passwordHash"`
	GroupIDs     StringSlice `json:"groupIds" bson:"groupIds"`
	VisionAPIKey string      `gorm:"type:text" json:"-" bson:"visionApiKey,omitempty"`
	Status       UserStatus  `gorm:"type:smallint;not null;default:1" json:"status" bson:"status"`
	CreatedAt    time.Time   `gorm:"autoCreateTime:false" json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime:false" json:"updatedAt" bson:"updatedAt"`
}

func (User) TableName() string { return "users" }

func (u *User) InGroup(groupID string) bool {
	for _, id := range u.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}
