package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type fsBackend struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewFS stores each hand-off as <dir>/<key>.json.
func NewFS(dir string, opts Options) *Handoff {
	return newHandoff(&fsBackend{dir: dir, ttl: opts.TTL, now: time.Now}, opts, nil)
}

func (s *fsBackend) name() string { return "fs" }

func (s *fsBackend) pathFor(key string) string {
	return filepath.Join(s.dir, strings.TrimSpace(key)+".json")
}

func (s *fsBackend) insert(_ context.Context, key string, payload []byte, _ time.Duration) error {
	target := s.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if s.expired(target) {
		_ = os.Remove(target)
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return exists(key)
		}
		return err
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		_ = os.Remove(target)
		return err
	}
	return f.Close()
}

func (s *fsBackend) lookup(_ context.Context, key string) ([]byte, error) {
	target := s.pathFor(key)
	if s.expired(target) {
		return nil, notFound(key)
	}
	data, err := os.ReadFile(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, notFound(key)
	}
	return data, err
}

// expired reports whether path exists and is older than the TTL.
func (s *fsBackend) expired(path string) bool {
	if s.ttl <= 0 {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && s.now().Sub(st.ModTime()) >= s.ttl
}
