package model

import "time"

// SharedChildID is the childId of items that belong to the whole household.
const SharedChildID = "all"

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

func (r MemberRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

type Child struct {
	ID    string `json:"id" bson:"id"`
	Name  string `json:"name" bson:"name"`
	Color string `json:"color" bson:"color"`
	Emoji string `json:"emoji" bson:"emoji"`
}

type Category struct {
	ID    string `json:"id" bson:"id"`
	Name  string `json:"name" bson:"name"`
	Emoji string `json:"emoji" bson:"emoji"`
	Order int    `json:"order" bson:"order"`
}

// Group is a household shared by its members. Children and categories are
// embedded and always rewritten as whole arrays.
type Group struct {
	ID          string       `gorm:"type:varchar(64);primaryKey" json:"id" bson:"_id"`
	Name        string       `gorm:"type:varchar(128);not null" json:"name" bson:"name"`
	OwnerID     string       `gorm:"type:varchar(64);not null;index" json:"ownerId" bson:"ownerId"`
	Members     MemberRoles  `json:"members" bson:"members"`
	MemberNames MemberNames  `json:"memberNames" bson:"memberNames"`
	Children    ChildList    `json:"children" bson:"children"`
	Categories  CategoryList `json:"categories" bson:"categories"`
	CreatedAt   time.Time    `gorm:"autoCreateTime:false" json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime:false" json:"updatedAt" bson:"updatedAt"`
}

func (Group) TableName() string { return "groups" }

// RoleOf returns the role of userID and whether the user is a member.
func (g *Group) RoleOf(userID string) (MemberRole, bool) {
	role, ok := g.Members[userID]
	return role, ok
}

func (g *Group) HasChild(id string) bool {
	for _, c := range g.Children {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (g *Group) FindCategory(id string) (Category, bool) {
	for _, c := range g.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}
