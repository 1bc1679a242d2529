package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/minutes/pkg/adapters/file"
	"github.com/aretw0/minutes/pkg/domain"
	"github.com/aretw0/minutes/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_Layout(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	store := file.New(base)

	require.NoError(t, store.Save(ctx, domain.NewSession(42)))

	path := filepath.Join(base, "user_id=42", "session.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state": "collecting_name"`)
	assert.Contains(t, string(data), `"client_name": ""`)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	require.NoError(t, store.Delete(ctx, 42))
	_, err = os.Stat(filepath.Dir(path))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_ListIgnoresForeignEntries(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	store := file.New(base)

	require.NoError(t, os.MkdirAll(filepath.Join(base, "user_id=abc"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "user_id=5"), 0o755)) // no session.json
	require.NoError(t, os.WriteFile(filepath.Join(base, "notes.txt"), nil, 0o644))
	require.NoError(t, store.Save(ctx, domain.NewSession(9)))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, ids)
}

func TestFileStore_ListMissingBase(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileStore_CorruptRecord(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	dir := filepath.Join(base, "user_id=3")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.json"), []byte(`{"state":"flying"}`), 0o644))

	_, err := file.New(base).Load(ctx, 3)
	assert.ErrorIs(t, err, domain.ErrUnknownState)
}
