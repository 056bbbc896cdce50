package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

const expirySuffix = ".expires"

// fileStateStore keeps one file per key in dir. Writes go to a temp file that
// is renamed over the target, so readers see either the old or the new value.
// A key with a TTL gets a sibling "<name>.expires" file holding a unix-nano deadline.
type fileStateStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewFileStateStore(dir string) (StateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &fileStateStore{dir: dir, now: time.Now}, nil
}

func (s *fileStateStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key))
}

func (s *fileStateStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.path(key)
	if err := renameio.WriteFile(p, value, 0o644); err != nil {
		return err
	}
	if ttl <= 0 {
		if err := os.Remove(p + expirySuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	deadline := strconv.FormatInt(s.now().Add(ttl).UnixNano(), 10)
	return renameio.WriteFile(p+expirySuffix, []byte(deadline), 0o644)
}

func (s *fileStateStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.path(key)
	live, err := s.live(p)
	if err != nil || !live {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func (s *fileStateStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(s.path(key))
}

func (s *fileStateStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.path(key)
	live, err := s.live(p)
	if err != nil || !live {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// live reports whether the key at p has not expired, removing it when it has.
func (s *fileStateStore) live(p string) (bool, error) {
	raw, err := os.ReadFile(p + expirySuffix)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	deadline, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil || s.now().UnixNano() >= deadline {
		return false, s.remove(p)
	}
	return true, nil
}

func (s *fileStateStore) remove(p string) error {
	for _, name := range []string{p, p + expirySuffix} {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}
