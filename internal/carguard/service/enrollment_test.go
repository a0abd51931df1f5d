package service_test

import (
	"context"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/engine"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/service"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store/memory"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/types"
)

func TestEnroll_WithDescriptor(t *testing.T) {
	h := newHarness(t, harnessOpts{engineAvailable: true})
	ctx := context.Background()
	h.extractor.set(face(0.1, 0.2, 0.3, 0.4), nil)

	photo := pngBytes(t, color.RGBA{R: 10, A: 255})
	got, err := h.enroll.Enroll(ctx, types.EnrollRequest{
		ID:                  "drv-7",
		DisplayName:         "Sam",
		Phone:               "+44 7000 000000",
		VehicleRegistration: "AB12 CDE",
		Image:               photo,
	})
	require.NoError(t, err)

	assert.True(t, got.EncodingAvailable())
	assert.Equal(t, model.Descriptor{0.1, 0.2, 0.3, 0.4}, got.Descriptor)
	assert.Equal(t, "AB12 CDE", got.VehicleRegistration)
	assert.True(t, strings.HasPrefix(got.ReferenceImageHandle, "faces/drv-7/"))

	stored, err := h.vault.GetRaw(ctx, got.ReferenceImageHandle)
	require.NoError(t, err)
	assert.Equal(t, photo, stored)

	img, err := service.ReferenceImages{Vault: h.vault}.LoadReference(ctx, got.ReferenceImageHandle)
	require.NoError(t, err)
	assert.Equal(t, 24, img.Bounds().Dx())
}

func TestEnroll_NoFaceIsRejectedWithoutWrites(t *testing.T) {
	h := newHarness(t, harnessOpts{engineAvailable: true})
	ctx := context.Background()
	h.extractor.set(nil, nil)

	_, err := h.enroll.Enroll(ctx, types.EnrollRequest{ID: "x", DisplayName: "X", Image: pngBytes(t, color.RGBA{A: 255})})
	assert.ErrorIs(t, err, service.ErrNoFaceDetected)

	all, err := h.gallery.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestEnroll_EngineDownEnrollsWithoutDescriptor(t *testing.T) {
	h := newHarness(t, harnessOpts{engineAvailable: true, fallback: true})
	h.extractor.set(nil, engine.ErrUnavailable)

	got, err := h.enroll.Enroll(context.Background(), types.EnrollRequest{ID: "x", DisplayName: "X", Image: pngBytes(t, color.RGBA{A: 255})})
	require.NoError(t, err)
	assert.False(t, got.EncodingAvailable())
	assert.NotEmpty(t, got.ReferenceImageHandle)
}

func TestEnroll_Rejections(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := context.Background()
	photo := pngBytes(t, color.RGBA{A: 255})

	_, err := h.enroll.Enroll(ctx, types.EnrollRequest{ID: "a", DisplayName: "A", Image: photo})
	require.NoError(t, err)

	_, err = h.enroll.Enroll(ctx, types.EnrollRequest{ID: "a", DisplayName: "Other", Image: photo})
	assert.ErrorIs(t, err, service.ErrDuplicateIdentity)

	_, err = h.enroll.Enroll(ctx, types.EnrollRequest{ID: "b", DisplayName: "B", Image: []byte("nope")})
	assert.ErrorIs(t, err, service.ErrDecode)

	_, err = h.enroll.Enroll(ctx, types.EnrollRequest{ID: " ", DisplayName: "B", Image: photo})
	assert.ErrorIs(t, err, service.ErrInvalidIdentity)
}

func TestEnroll_WrongDescriptorSizeWritesNothing(t *testing.T) {
	blobs := &failingBlobs{BlobStore: memory.New(), after: 1 << 30}
	h := newHarness(t, harnessOpts{engineAvailable: true, blobs: blobs})
	ctx := context.Background()
	_, err := h.config.Get(ctx)
	require.NoError(t, err)
	before := blobs.puts.Load()

	h.extractor.set(face(0.1, 0.2, 0.3), nil)
	_, err = h.enroll.Enroll(ctx, types.EnrollRequest{ID: "x", DisplayName: "X", Image: pngBytes(t, color.RGBA{A: 255})})
	assert.ErrorIs(t, err, service.ErrInvalidDescriptor)
	assert.Equal(t, before, blobs.puts.Load(), "no reference image or gallery write")
}

func TestEnroll_OversizePhotoIsDecodeError(t *testing.T) {
	h := newHarness(t, harnessOpts{engineAvailable: true, maxImagePixels: 100})
	h.extractor.set(face(0.1, 0.2, 0.3, 0.4), nil)

	_, err := h.enroll.Enroll(context.Background(), types.EnrollRequest{ID: "x", DisplayName: "X", Image: pngBytes(t, color.RGBA{A: 255})})
	assert.ErrorIs(t, err, service.ErrDecode)
}
