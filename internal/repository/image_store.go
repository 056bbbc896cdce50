package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnsupportedImage is returned for uploads whose content is not a photo format we keep.
var ErrUnsupportedImage = errors.New("unsupported image type")

// ImageStore keeps uploaded item photos and hands back a durable reference
// (a file path or a URL) to store on the item.
type ImageStore interface {
	// Save stores body under scope (for example "groups/<id>/items"). The file
	// type comes from the content, never from a client-supplied name.
	Save(ctx context.Context, scope string, body io.Reader) (string, error)
	// Delete removes the image behind ref. It is best-effort: refs the store does
	// not own, or that are already gone, are ignored.
	Delete(ctx context.Context, ref string) error
}

// ItemImageScope is the scope cloud item photos are stored under.
func ItemImageScope(groupID string) string {
	return "groups/" + groupID + "/items"
}

var imageTypes = []struct {
	mime string
	ext  string
}{
	{"image/jpeg", "jpg"},
	{"image/png", "png"},
	{"image/webp", "webp"},
	{"image/heic", "heic"},
	{"image/heif", "heif"},
	{"image/gif", "gif"},
}

// ImageContentType is the Content-Type stored images with ext are served as.
func ImageContentType(ext string) (string, bool) {
	for _, t := range imageTypes {
		if t.ext == ext {
			return t.mime, true
		}
	}
	return "", false
}

// sniffImage detects the image type of body from its leading bytes and returns
// a reader that still yields the whole body.
func sniffImage(body io.Reader) (io.Reader, string, error) {
	head := make([]byte, 3072)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	for _, t := range imageTypes {
		if detected.Is(t.mime) {
			return io.MultiReader(bytes.NewReader(head), body), t.ext, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedImage, detected.String())
}
