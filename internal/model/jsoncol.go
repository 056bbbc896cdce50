package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// StringSlice is a helper type for storing []string as a JSON column.
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	return scanJSON(value, s, "StringSlice")
}

func (StringSlice) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonDataType(db)
}

// ChildList is the embedded children array of a group.
type ChildList []Child

func (l ChildList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]Child{})
	}
	return json.Marshal(l)
}

func (l *ChildList) Scan(value interface{}) error {
	return scanJSON(value, l, "ChildList")
}

func (ChildList) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonDataType(db)
}

// CategoryList is the embedded categories array of a group.
type CategoryList []Category

func (l CategoryList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]Category{})
	}
	return json.Marshal(l)
}

func (l *CategoryList) Scan(value interface{}) error {
	return scanJSON(value, l, "CategoryList")
}

func (CategoryList) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonDataType(db)
}

// MemberRoles maps a user id to the role held in a group.
type MemberRoles map[string]MemberRole

func (m MemberRoles) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(map[string]MemberRole{})
	}
	return json.Marshal(m)
}

func (m *MemberRoles) Scan(value interface{}) error {
	return scanJSON(value, m, "MemberRoles")
}

func (MemberRoles) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonDataType(db)
}

// MemberNames maps a user id to the display name denormalized onto the group.
type MemberNames map[string]string

func (m MemberNames) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(map[string]string{})
	}
	return json.Marshal(m)
}

func (m *MemberNames) Scan(value interface{}) error {
	return scanJSON(value, m, "MemberNames")
}

func (MemberNames) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonDataType(db)
}

func scanJSON(value interface{}, dst interface{}, name string) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("%s.Scan: unsupported type %T", name, value)
	}
}

// jsonDataType picks the JSON column type of the connected dialect.
func jsonDataType(db *gorm.DB) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	case "mysql":
		return "JSON"
	default:
		return "TEXT"
	}
}
