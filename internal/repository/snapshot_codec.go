package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kodomo/inventoryhub/internal/model"
)

const (
	ExportMIMEType = "application/json"
	exportNote     = "画像は端末ローカルのため共有されません"
)

var ErrInvalidSnapshotFormat = errors.New("invalid snapshot format")

type exportDocument struct {
	model.Snapshot
	ExportedAt time.Time `json:"exportedAt"`
	Note       string    `json:"note"`
}

// ExportSnapshot renders a shareable copy of the dataset. Image references are
// device-local, so every item's imageUrl is nulled.
func ExportSnapshot(snapshot model.Snapshot, now time.Time) ([]byte, error) {
	out := snapshot.Clone()
	for i := range out.Items {
		out.Items[i].ImageURL = nil
	}
	normalizeSnapshot(&out)
	return json.MarshalIndent(exportDocument{Snapshot: out, ExportedAt: now.UTC(), Note: exportNote}, "", "  ")
}

// ImportSnapshot parses an exported document. version, children and categories
// must be present; the version is accepted as-is.
func ImportSnapshot(data []byte) (*model.Snapshot, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshotFormat, err)
	}
	for _, k := range []string{"version", "children", "categories"} {
		if v, ok := keys[k]; !ok || string(v) == "null" {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidSnapshotFormat, k)
		}
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshotFormat, err)
	}
	if snap.Version == 0 {
		return nil, fmt.Errorf("%w: version must be non-zero", ErrInvalidSnapshotFormat)
	}
	normalizeSnapshot(&snap)
	return &snap, nil
}
