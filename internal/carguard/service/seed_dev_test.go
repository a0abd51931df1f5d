package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/service"
)

func TestSeedDev_IsIdempotent(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := context.Background()

	n, err := service.SeedDev(ctx, h.gallery, service.SeedDevOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, h.gallery.SetStatus(ctx, "demo-driver", model.StatusRevoked))

	n, err = service.SeedDev(ctx, h.gallery, service.SeedDevOptions{})
	require.NoError(t, err)
	assert.Zero(t, n)

	got, found, err := h.gallery.FindByID(ctx, "demo-driver")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.StatusRevoked, got.Status)
	assert.False(t, got.EncodingAvailable())
}

func TestSeedDev_StopsOnInvalidIdentity(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	n, err := service.SeedDev(context.Background(), h.gallery, service.SeedDevOptions{
		Identities: []model.EnrolledIdentity{{ID: "ok", DisplayName: "OK"}, {ID: "", DisplayName: "nameless"}},
	})
	assert.ErrorIs(t, err, service.ErrInvalidIdentity)
	assert.Equal(t, 1, n)
}
