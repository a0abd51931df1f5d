package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store"
)

// Store keeps each document in its own file under <root>/docs and each log
// stream as a line-oriented file under <root>/logs. Document writes go to a
// temp file first and are renamed into place so an overwrite is atomic.
type Store struct {
	root string

	mu sync.Mutex // serializes appends within this process
}

func Open(root string) (*Store, error) {
	for _, dir := range []string{root, filepath.Join(root, "docs"), filepath.Join(root, "logs")} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.docPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return data, nil
}

func (s *Store) Put(_ context.Context, key string, data []byte) error {
	path := s.docPath(key)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %q: %w", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %q: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %q: %w", key, err)
	}
	return nil
}

func (s *Store) Append(_ context.Context, stream string, data []byte) error {
	line := make([]byte, base64.StdEncoding.EncodedLen(len(data))+1)
	base64.StdEncoding.Encode(line, data)
	line[len(line)-1] = '\n'

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.logPath(stream), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log %q: %w", stream, err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append log %q: %w", stream, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync log %q: %w", stream, err)
	}
	return f.Close()
}

func (s *Store) Scan(ctx context.Context, stream string, fn func(data []byte) bool) error {
	s.mu.Lock()
	raw, err := os.ReadFile(s.logPath(stream))
	s.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read log %q: %w", stream, err)
	}

	var lines [][]byte
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 64<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan log %q: %w", stream, err)
	}

	for i := len(lines) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := base64.StdEncoding.DecodeString(string(lines[i]))
		if err != nil {
			// A torn trailing write decodes badly; hand the raw line to the
			// caller so integrity checks can flag it rather than hiding it.
			data = lines[i]
		}
		if !fn(data) {
			return nil
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) docPath(key string) string {
	return filepath.Join(s.root, "docs", encodeName(key)+".bin")
}

func (s *Store) logPath(stream string) string {
	return filepath.Join(s.root, "logs", encodeName(stream)+".log")
}

// encodeName maps arbitrary keys (which may contain '/') to flat file names.
func encodeName(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}
