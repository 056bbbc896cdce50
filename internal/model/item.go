package model

import (
	"encoding/json"
	"time"
)

type InventoryItem struct {
	ID         string    `gorm:"type:varchar(64);primaryKey" json:"id" bson:"_id"`
	GroupID    string    `gorm:"type:varchar(64);index:idx_items_group_category,priority:1" json:"groupId,omitempty" bson:"groupId"`
	Name       string    `gorm:"type:varchar(256);not null" json:"name" bson:"name"`
	CategoryID string    `gorm:"type:varchar(64);index:idx_items_group_category,priority:2" json:"categoryId" bson:"categoryId"`
	ChildID    string    `gorm:"type:varchar(64);not null" json:"childId" bson:"childId"`
	Size       string    `gorm:"type:varchar(64)" json:"size" bson:"size"`
	Brand      string    `gorm:"type:varchar(128)" json:"brand" bson:"brand"`
	Quantity   int       `gorm:"not null;default:1" json:"quantity" bson:"quantity"`
	Notes      string    `gorm:"type:text" json:"notes" bson:"notes"`
	ImageURL   *string   `gorm:"type:varchar(1024)" json:"imageUrl" bson:"imageUrl"`
	CreatedBy  string    `gorm:"type:varchar(64)" json:"createdBy,omitempty" bson:"createdBy,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false" json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false" json:"updatedAt" bson:"updatedAt"`
}

func (InventoryItem) TableName() string { return "inventory_items" }

func (i InventoryItem) IsShared() bool { return i.ChildID == SharedChildID }

// UnmarshalJSON also accepts the offline app's "imageUri" key.
func (i *InventoryItem) UnmarshalJSON(data []byte) error {
	type plain InventoryItem
	var aux struct {
		plain
		ImageURI *string `json:"imageUri"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*i = InventoryItem(aux.plain)
	if i.ImageURL == nil && aux.ImageURI != nil {
		i.ImageURL = aux.ImageURI
	}
	return nil
}
