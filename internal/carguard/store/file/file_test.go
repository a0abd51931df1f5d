package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store/file"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store/storetest"
)

func TestFileStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		st, err := file.Open(t.TempDir())
		require.NoError(t, err)
		return st
	})
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st, err := file.Open(dir)
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, "gallery", []byte("sealed")))
	require.NoError(t, st.Append(ctx, "attempts", []byte("one")))

	reopened, err := file.Open(dir)
	require.NoError(t, err)

	got, err := reopened.Get(ctx, "gallery")
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed"), got)

	var recs []string
	require.NoError(t, reopened.Scan(ctx, "attempts", func(d []byte) bool {
		recs = append(recs, string(d))
		return true
	}))
	assert.Equal(t, []string{"one"}, recs)
}

func TestFileStore_PutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	st, err := file.Open(dir)
	require.NoError(t, err)

	require.NoError(t, st.Put(context.Background(), "config", []byte("x")))

	entries, err := os.ReadDir(filepath.Join(dir, "docs"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".bin", filepath.Ext(entries[0].Name()))
}
