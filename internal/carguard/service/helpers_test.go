package service_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/engine"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/match"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/metrics"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/service"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store/memory"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/vault"
)

const testDim = 4

// fakeExtractor returns canned faces and counts calls.
type fakeExtractor struct {
	mu    sync.Mutex
	faces []engine.Face
	err   error
	calls int
}

func (f *fakeExtractor) Extract(context.Context, image.Image) ([]engine.Face, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.faces, f.err
}

func (f *fakeExtractor) set(faces []engine.Face, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faces, f.err = faces, err
}

func face(desc ...float64) []engine.Face {
	return []engine.Face{{Box: image.Rect(0, 0, 10, 10), Descriptor: desc}}
}

type harnessOpts struct {
	engineAvailable bool
	fallback        bool
	logs            store.LogStore  // overrides the audit stream backend
	blobs           store.BlobStore // overrides the document backend
	maxImagePixels  int
}

type harness struct {
	backend   *memory.Store
	sealer    *vault.Sealer
	vault     *vault.Store
	gallery   *service.Gallery
	config    *service.ConfigService
	audit     *service.AuditLog
	access    *service.AccessService
	enroll    *service.EnrollmentService
	stats     *service.StatsService
	extractor *fakeExtractor
	metrics   *metrics.Metrics
}

func newHarness(t *testing.T, opts harnessOpts) *harness {
	t.Helper()

	backend := memory.New()
	sealer, err := vault.NewSealer(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	var blobs store.BlobStore = backend
	if opts.blobs != nil {
		blobs = opts.blobs
	}
	v := vault.New(blobs, sealer, vault.Options{})

	var logs store.LogStore = backend
	if opts.logs != nil {
		logs = opts.logs
	}

	h := &harness{
		backend:   backend,
		sealer:    sealer,
		vault:     v,
		gallery:   service.NewGallery(v, testDim),
		config:    service.NewConfigService(v, "test", nil),
		audit:     service.NewAuditLog(logs, sealer, nil),
		extractor: &fakeExtractor{},
		metrics:   metrics.New(prometheus.NewRegistry()),
	}

	matcher := match.New(match.Config{
		EngineAvailable: opts.engineAvailable,
		FallbackEnabled: opts.fallback,
		ImageSide:       32,
	}, service.ReferenceImages{Vault: v}, nil, nil)

	h.access = service.NewAccessService(service.AccessDeps{
		Gallery:        h.gallery,
		Config:         h.config,
		Matcher:        matcher,
		Extractor:      h.extractor,
		Audit:          h.audit,
		Metrics:        h.metrics,
		DescriptorDim:  testDim,
		MaxImagePixels: opts.maxImagePixels,
	})
	h.enroll = service.NewEnrollmentService(service.EnrollmentDeps{
		Gallery:         h.gallery,
		Config:          h.config,
		Vault:           v,
		Extractor:       h.extractor,
		EngineAvailable: opts.engineAvailable,
		MaxImagePixels:  opts.maxImagePixels,
	})
	h.stats = service.NewStatsService(h.gallery, h.audit)
	return h
}

func pngBytes(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			px := c
			px.R += uint8(x * 3)
			px.G += uint8(y * 3)
			img.SetRGBA(x, y, px)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// failingLog rejects every append.
type failingLog struct{ err error }

func (f failingLog) Append(context.Context, string, []byte) error { return f.err }
func (f failingLog) Scan(context.Context, string, func([]byte) bool) error {
	return nil
}

// failingBlobs lets the first `after` puts through and rejects the rest.
type failingBlobs struct {
	store.BlobStore
	after int64
	err   error
	puts  atomic.Int64
}

func (f *failingBlobs) Put(ctx context.Context, key string, data []byte) error {
	if f.puts.Add(1) > f.after {
		return f.err
	}
	return f.BlobStore.Put(ctx, key, data)
}

// flipLastByte corrupts a sealed document in place and returns the new bytes.
func flipLastByte(t *testing.T, h *harness, key string) []byte {
	t.Helper()
	ctx := context.Background()
	sealed, err := h.backend.Get(ctx, key)
	require.NoError(t, err)
	tampered := bytes.Clone(sealed)
	tampered[len(tampered)-1] ^= 0x01
	require.NoError(t, h.backend.Put(ctx, key, tampered))
	return tampered
}
