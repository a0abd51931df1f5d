package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store"
)

// Store keeps documents and logs in process memory. It is intended for use
// in tests and dev environments; nothing survives a restart.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
	logs map[string][][]byte
}

func New() *Store {
	return &Store{
		docs: make(map[string][]byte),
		logs: make(map[string][][]byte),
	}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(data), nil
}

func (s *Store) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = clone(data)
	return nil
}

func (s *Store) Append(_ context.Context, stream string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[stream] = append(s.logs[stream], clone(data))
	return nil
}

func (s *Store) Scan(ctx context.Context, stream string, fn func(data []byte) bool) error {
	s.mu.RLock()
	records := make([][]byte, len(s.logs[stream]))
	copy(records, s.logs[stream])
	s.mu.RUnlock()

	for i := len(records) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(clone(records[i])) {
			return nil
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }

// Tamper overwrites a stored record in place. Test-only helper for
// exercising integrity checks.
func (s *Store) Tamper(stream string, index int, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index >= 0 && index < len(s.logs[stream]) {
		s.logs[stream][index] = clone(data)
	}
}

// Drop removes a stored record. Test-only helper.
func (s *Store) Drop(stream string, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.logs[stream]
	if index >= 0 && index < len(recs) {
		s.logs[stream] = append(recs[:index:index], recs[index+1:]...)
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
