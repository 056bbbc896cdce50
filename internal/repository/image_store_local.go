package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
)

// LocalImageStore manages a flat directory of images named img_<uuid>.<ext>.
// With a base URL set, references are URLs under it; otherwise they are absolute paths.
type LocalImageStore struct {
	dir     string
	baseURL string
}

func NewLocalImageStore(dir, baseURL string) (*LocalImageStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve image dir: %w", err)
	}
	return &LocalImageStore{dir: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalImageStore) Dir() string { return s.dir }

// Import copies an ephemeral file (a picker or camera result) into the managed directory.
func (s *LocalImageStore) Import(ctx context.Context, srcPath string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open source image: %w", err)
	}
	defer src.Close()

	return s.Save(ctx, "", src)
}

// Save writes body as img_<uuid>.<ext>, ext taken from the sniffed content.
// Anything that is not a supported photo format is refused.
func (s *LocalImageStore) Save(_ context.Context, _ string, body io.Reader) (string, error) {
	body, ext, err := sniffImage(body)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	name := "img_" + uuid.NewString() + "." + ext

	f, err := renameio.NewPendingFile(filepath.Join(s.dir, name), renameio.WithPermissions(0o644))
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer f.Cleanup()

	if _, err := io.Copy(f, body); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	if s.baseURL != "" {
		return s.baseURL + "/" + name, nil
	}
	return filepath.Join(s.dir, name), nil
}

func (s *LocalImageStore) Delete(_ context.Context, ref string) error {
	p, ok := s.resolve(ref)
	if !ok {
		return nil
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Open returns the managed file behind ref.
func (s *LocalImageStore) Open(ref string) (*os.File, error) {
	p, ok := s.resolve(ref)
	if !ok {
		return nil, os.ErrNotExist
	}
	return os.Open(p)
}

// resolve maps ref to a path, refusing anything outside the managed directory.
func (s *LocalImageStore) resolve(ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	var p string
	switch {
	case s.baseURL != "" && strings.HasPrefix(ref, s.baseURL+"/"):
		p = filepath.Join(s.dir, strings.TrimPrefix(ref, s.baseURL+"/"))
	case filepath.IsAbs(ref):
		p = filepath.Clean(ref)
	default:
		return "", false
	}
	if filepath.Dir(p) != s.dir || !strings.HasPrefix(filepath.Base(p), "img_") {
		return "", false
	}
	return p, true
}

// Ref is the reference Save returns for a file named name.
func (s *LocalImageStore) Ref(name string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + name
	}
	return filepath.Join(s.dir, name)
}
