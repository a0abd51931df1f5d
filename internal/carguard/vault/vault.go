// Package vault is the encrypted document store. Every document and raw
// blob is sealed before it reaches a backend, with the resource id bound
// as associated data.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store"
)

// CorruptionPolicy decides what Load does with a document that fails to
// open or parse.
type CorruptionPolicy int

const (
	// CorruptAsEmpty logs the corruption and reports the document as
	// absent to Load. Update still fails on it.
	CorruptAsEmpty CorruptionPolicy = iota
	// CorruptIsError returns ErrStoreCorrupt to the caller.
	CorruptIsError
)

type Options struct {
	Corruption CorruptionPolicy
	Logger     *zap.Logger
}

type Store struct {
	blobs  store.BlobStore
	sealer *Sealer
	policy CorruptionPolicy
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(blobs store.BlobStore, sealer *Sealer, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		blobs:  blobs,
		sealer: sealer,
		policy: opts.Corruption,
		logger: logger.Named("vault"),
		locks:  make(map[string]*sync.Mutex),
	}
}

func docAD(id string) []byte { return []byte("doc:" + id) }
func rawAD(id string) []byte { return []byte("raw:" + id) }

// Load decodes resource id into v. A missing resource returns false, nil.
// A corrupt one follows the store's CorruptionPolicy.
func (s *Store) Load(ctx context.Context, id string, v any) (bool, error) {
	return s.load(ctx, id, v, s.policy == CorruptIsError)
}

func (s *Store) load(ctx context.Context, id string, v any, strict bool) (bool, error) {
	sealed, err := s.blobs.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("vault load %s: %w", id, err)
	}

	plain, err := s.sealer.Open(sealed, docAD(id))
	if err == nil {
		err = DecodeDocument(plain, v)
	}
	if err != nil {
		s.logger.Warn("stored document is corrupt",
			zap.String("resource_id", id),
			zap.Error(err),
		)
		if strict {
			return false, fmt.Errorf("vault load %s: %w", id, err)
		}
		return false, nil
	}
	return true, nil
}

// Save overwrites resource id with v.
func (s *Store) Save(ctx context.Context, id string, v any) error {
	plain, err := EncodeDocument(v)
	if err != nil {
		return err
	}
	sealed, err := s.sealer.Seal(plain, docAD(id))
	if err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, id, sealed); err != nil {
		return fmt.Errorf("vault save %s: %w", id, err)
	}
	return nil
}

// PutRaw seals an opaque blob such as a reference image.
func (s *Store) PutRaw(ctx context.Context, id string, data []byte) error {
	sealed, err := s.sealer.Seal(data, rawAD(id))
	if err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, id, sealed); err != nil {
		return fmt.Errorf("vault put raw %s: %w", id, err)
	}
	return nil
}

// GetRaw returns store.ErrNotFound for a missing blob and ErrStoreCorrupt
// for one that fails to open, regardless of policy.
func (s *Store) GetRaw(ctx context.Context, id string) ([]byte, error) {
	sealed, err := s.blobs.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("vault get raw %s: %w", id, err)
	}
	plain, err := s.sealer.Open(sealed, rawAD(id))
	if err != nil {
		s.logger.Warn("stored blob is corrupt", zap.String("resource_id", id), zap.Error(err))
		return nil, fmt.Errorf("vault get raw %s: %w", id, err)
	}
	return plain, nil
}

func (s *Store) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Load reads resource id as a T. The zero T is returned when absent.
func Load[T any](ctx context.Context, s *Store, id string) (T, bool, error) {
	var doc T
	found, err := s.Load(ctx, id, &doc)
	if err != nil || !found {
		var zero T
		return zero, found, err
	}
	return doc, true, nil
}

// ErrNoChange may be returned by an Update callback to skip the write.
var ErrNoChange = errors.New("vault: no change")

// Update runs a read-modify-write of resource id while holding that
// resource's lock. fn receives the current document (zero when absent) and
// whether it existed. An error from fn aborts without writing; ErrNoChange
// aborts silently.
//
// A corrupt document fails the update with ErrStoreCorrupt whatever the
// policy: it is never read as empty and saved over.
func Update[T any](ctx context.Context, s *Store, id string, fn func(doc *T, found bool) error) error {
	unlock := s.lock(id)
	defer unlock()

	var doc T
	found, err := s.load(ctx, id, &doc, true)
	if err != nil {
		return err
	}
	if err := fn(&doc, found); err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}
	return s.Save(ctx, id, &doc)
}
