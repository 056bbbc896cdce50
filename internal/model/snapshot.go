package model

// SnapshotVersion is written into new snapshots. Loaded snapshots keep whatever version they carry.
const SnapshotVersion = 1

// Snapshot is the whole offline dataset: one household with its items.
type Snapshot struct {
	Version    int             `json:"version"`
	FamilyName string          `json:"familyName"`
	Children   []Child         `json:"children"`
	Categories []Category      `json:"categories"`
	Items      []InventoryItem `json:"items"`
}

// Clone returns a deep copy so callers can transform it without touching the original.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Version:    s.Version,
		FamilyName: s.FamilyName,
		Children:   append([]Child{}, s.Children...),
		Categories: append([]Category{}, s.Categories...),
		Items:      make([]InventoryItem, len(s.Items)),
	}
	for i, item := range s.Items {
		if item.ImageURL != nil {
			ref := *item.ImageURL
			item.ImageURL = &ref
		}
		out.Items[i] = item
	}
	return out
}
