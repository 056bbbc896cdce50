package model

import "time"

// LinkedAccount ties an external sign-in (Google, GitHub) to a user.
type LinkedAccount struct {
	ID       string `gorm:"type:varchar(64);primaryKey" json:"id" bson:"_id"`
	UserID   string `gorm:"type:varchar(64);not null;index" json:"userId" bson:"userId"`
	Provider string `gorm:"type:varchar(32);not null;uniqueIndex:idx_linked_accounts_provider_subject,priority:1" json:"provider" bson:"provider"`
	// Subject is the provider's stable account id.
	Subject   string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_linked_accounts_provider_subject,priority:2" json:"subject" bson:"subject"`
	Email     string    `gorm:"type:varchar(320)" json:"email" bson:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime:false" json:"createdAt" bson:"createdAt"`
}

func (LinkedAccount) TableName() string { return "linked_accounts" }
