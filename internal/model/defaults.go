package model

import "github.com/google/uuid"

var defaultCategories = []struct{ name, emoji string }{
	{"オムツ", "🧷"},
	{"トップス", "👕"},
	{"ボトムス", "👖"},
	{"アウター", "🧥"},
	{"くつ", "👟"},
	{"アクセサリー", "🎀"},
	{"おもちゃ", "🧸"},
	{"その他", "📦"},
}

// DefaultCategories returns the starter categories with fresh ids and orders 0..N-1.
func DefaultCategories() []Category {
	out := make([]Category, len(defaultCategories))
	for i, c := range defaultCategories {
		out[i] = Category{ID: uuid.NewString(), Name: c.name, Emoji: c.emoji, Order: i}
	}
	return out
}

// DefaultSnapshot is the dataset a fresh offline install starts with.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Version:    SnapshotVersion,
		FamilyName: "わが家",
		Children: []Child{
			{ID: uuid.NewString(), Name: "たろう", Color: "#FF6B9D", Emoji: "👦"},
			{ID: uuid.NewString(), Name: "はなこ", Color: "#4FC3F7", Emoji: "👧"},
		},
		Categories: DefaultCategories(),
		Items:      []InventoryItem{},
	}
}
