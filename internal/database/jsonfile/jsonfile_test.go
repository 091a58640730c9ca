package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_InitCreatesDirectoryAndEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "users.json")
	s := New(path)

	require.NoError(t, s.Init(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestStorage_InitLeavesExistingFileAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	original := `[{"id":"1","name":"Alice","descriptors":[[1]],"createdAt":"2023-11-14T22:13:20.000Z"}]`
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	s := New(path)
	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, s.Init(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestStorage_LoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.json"))

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStorage_CorruptFileIsUnreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": "1",`), 0o644))

	store := database.NewRecordStore(New(path))

	_, err := store.ListAll(context.Background())
	require.ErrorIs(t, err, database.ErrStorageUnreadable)

	_, err = store.Register(context.Background(), "Bob", []database.Descriptor{{1}})
	require.ErrorIs(t, err, database.ErrStorageUnreadable)

	// The corrupt file is not overwritten by a failed register.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `[{"id": "1",`, string(data))
}

func TestStorage_SaveIsPrettyPrintedAndAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	s := New(path)
	require.NoError(t, s.Init(context.Background()))

	store := database.NewRecordStore(s)
	_, err := store.Register(context.Background(), "Bob", []database.Descriptor{{0.1, 0.2}})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {\n"), string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "users.json", entries[0].Name())
}

func TestStorage_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")
	store := database.NewRecordStore(New(path))
	require.NoError(t, store.Initialize(ctx))

	alice, err := store.Register(ctx, "Alice", []database.Descriptor{{0.5, -0.25}})
	require.NoError(t, err)
	bob, err := store.Register(ctx, "Bob", []database.Descriptor{{0.1, 0.2}})
	require.NoError(t, err)
	_, err = store.Register(ctx, "alice", []database.Descriptor{{1}})
	require.ErrorIs(t, err, database.ErrDuplicateName)

	// A second store on the same file sees the same data.
	reopened := database.NewRecordStore(New(path))
	records, err := reopened.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, alice.ID, records[0].ID)
	assert.Equal(t, bob.ID, records[1].ID)
	assert.Equal(t, []database.Descriptor{{0.1, 0.2}}, records[1].Descriptors)
	assert.True(t, bob.CreatedAt.Equal(records[1].CreatedAt))

	removed, err := reopened.Delete(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	records, err = store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Bob", records[0].Name)
}

func TestStorage_CanceledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	s := New(path)
	require.NoError(t, s.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Save(ctx, nil), context.Canceled)
}

func TestStorage_Describe(t *testing.T) {
	assert.Equal(t, "file data/users.json", New("data/users.json").Describe())
	assert.Equal(t, "file data/users.json", database.Describe(New("data/users.json")))
}
