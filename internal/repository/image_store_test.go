package repository

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func encodedImage(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	var err error
	if format == "png" {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", format, err)
	}
	return buf.Bytes()
}

func TestLocalImageStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "inventory_images")
	store, err := NewLocalImageStore(dir, "")
	if err != nil {
		t.Fatal(err)
	}

	photo := encodedImage(t, "jpeg")
	src := filepath.Join(t.TempDir(), "picked.JPEG")
	if err := os.WriteFile(src, photo, 0o644); err != nil {
		t.Fatal(err)
	}
	ref, err := store.Import(ctx, src)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if filepath.Dir(ref) != store.Dir() || !strings.HasPrefix(filepath.Base(ref), "img_") || filepath.Ext(ref) != ".jpg" {
		t.Fatalf("unexpected ref %q", ref)
	}

	f, err := store.Open(ref)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if !bytes.Equal(data, photo) {
		t.Fatalf("stored %d bytes, want the %d imported", len(data), len(photo))
	}

	// Files outside the managed directory are never touched.
	if err := store.Delete(ctx, src); err != nil {
		t.Fatalf("Delete(outside): %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatal("file outside managed dir was deleted")
	}

	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(ref); !os.IsNotExist(err) {
		t.Fatal("managed image still present")
	}
	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete(missing): %v", err)
	}
}

func TestLocalImageStoreURLRefs(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalImageStore(t.TempDir(), "http://localhost:8080/images/")
	if err != nil {
		t.Fatal(err)
	}
	ref, err := store.Save(ctx, ItemImageScope("g1"), bytes.NewReader(encodedImage(t, "png")))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(ref, "http://localhost:8080/images/img_") || !strings.HasSuffix(ref, ".png") {
		t.Fatalf("ref = %q", ref)
	}
	if _, err := store.Open(ref); err != nil {
		t.Fatalf("Open(url): %v", err)
	}
	if _, err := store.Open("http://localhost:8080/images/../secret"); err == nil {
		t.Fatal("Open escaped the managed directory")
	}
}

func TestLocalImageStoreRejectsNonImages(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalImageStore(t.TempDir(), "/local-images")
	if err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(t.TempDir(), "evil.html")
	if err := os.WriteFile(src, []byte("<html><script>alert(1)</script></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if ref, err := store.Import(ctx, src); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("Import(html) = %q, %v, want ErrUnsupportedImage", ref, err)
	}
	if _, err := store.Save(ctx, "", strings.NewReader("")); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("Save(empty) err = %v, want ErrUnsupportedImage", err)
	}
	if entries, _ := os.ReadDir(store.Dir()); len(entries) != 0 {
		t.Fatalf("rejected uploads left files behind: %v", entries)
	}

	// The name is ignored; the content decides the extension.
	pngSrc := filepath.Join(t.TempDir(), "photo.html")
	if err := os.WriteFile(pngSrc, encodedImage(t, "png"), 0o644); err != nil {
		t.Fatal(err)
	}
	ref, err := store.Import(ctx, pngSrc)
	if err != nil {
		t.Fatalf("Import(png named .html): %v", err)
	}
	if !strings.HasSuffix(ref, ".png") {
		t.Fatalf("ref = %q, want .png", ref)
	}
}

func TestImageContentType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
		ok   bool
	}{
		{"jpg", "image/jpeg", true},
		{"png", "image/png", true},
		{"webp", "image/webp", true},
		{"heic", "image/heic", true},
		{"html", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ImageContentType(tt.ext)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ImageContentType(%q) = %q, %v, want %q, %v", tt.ext, got, ok, tt.want, tt.ok)
		}
	}
}

func TestS3ObjectKey(t *testing.T) {
	s := NewS3ImageStore(nil, S3ImageStoreConfig{Bucket: "b", Prefix: "/inv/", PublicURL: "https://cdn.example.com/"})
	if got := s.objectKey(ItemImageScope("g1"), "x.jpg"); got != "inv/groups/g1/items/x.jpg" {
		t.Errorf("objectKey = %q", got)
	}
	// Refs from other hosts are not ours to delete.
	if err := s.Delete(context.Background(), "https://elsewhere/x.jpg"); err != nil {
		t.Errorf("Delete(foreign) = %v", err)
	}
}
