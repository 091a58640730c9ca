package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/database/mock"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetOut(&bytes.Buffer{})
	return cmd
}

func TestMigrateUsers_CopiesEverything(t *testing.T) {
	records := []database.UserRecord{
		{ID: "1", Name: "Alice", Descriptors: []database.Descriptor{{0.1, 0.2}}},
		{ID: "2", Name: "Bob", Descriptors: []database.Descriptor{{0.3}}},
	}
	source := database.NewRecordStore(mock.NewMockStorage(records...))
	targetStorage := mock.NewMockStorage()
	target := database.NewRecordStore(targetStorage)

	n, err := migrateUsers(testCommand(), source, target, false, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, records, targetStorage.Records())
	assert.Equal(t, uint64(1), target.Version())
}

// slowStorage delays Save so the spinner has time to draw.
type slowStorage struct {
	*mock.MockStorage
	delay time.Duration
}

func (s *slowStorage) Save(ctx context.Context, records []database.UserRecord) error {
	time.Sleep(s.delay)
	return s.MockStorage.Save(ctx, records)
}

func TestMigrateUsers_SpinnerRunsDuringWrite(t *testing.T) {
	source := database.NewRecordStore(mock.NewMockStorage(
		database.UserRecord{ID: "1", Name: "Alice", Descriptors: []database.Descriptor{{0.1}}},
		database.UserRecord{ID: "2", Name: "Bob", Descriptors: []database.Descriptor{{0.2}}},
	))
	targetStorage := &slowStorage{MockStorage: mock.NewMockStorage(), delay: 3 * spinnerInterval}
	target := database.NewRecordStore(targetStorage)

	cmd := testCommand()
	stderr := &bytes.Buffer{}
	cmd.SetErr(stderr)

	n, err := migrateUsers(cmd, source, target, false, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, targetStorage.Records(), 2)
	assert.Contains(t, stderr.String(), "Writing 2 user(s)")
}

func TestMigrateUsers_WriteFailureStopsSpinner(t *testing.T) {
	source := database.NewRecordStore(mock.NewMockStorage(database.UserRecord{ID: "1", Name: "Alice"}))
	targetStorage := mock.NewMockStorage()
	targetStorage.SaveError = errors.New("disk full")
	target := database.NewRecordStore(targetStorage)

	_, err := migrateUsers(testCommand(), source, target, false, false)
	require.ErrorIs(t, err, database.ErrStorageWriteFailed)
	assert.Empty(t, targetStorage.Records())
}

func TestMigrateUsers_RefusesNonEmptyTarget(t *testing.T) {
	source := database.NewRecordStore(mock.NewMockStorage(database.UserRecord{ID: "1", Name: "Alice"}))
	targetStorage := mock.NewMockStorage(database.UserRecord{ID: "9", Name: "Zed"})
	target := database.NewRecordStore(targetStorage)

	_, err := migrateUsers(testCommand(), source, target, false, true)
	require.ErrorIs(t, err, errTargetNotEmpty)
	assert.Equal(t, "Zed", targetStorage.Records()[0].Name)

	n, err := migrateUsers(testCommand(), source, target, true, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, targetStorage.Records(), 1)
	assert.Equal(t, "Alice", targetStorage.Records()[0].Name)
}

func TestMigrateUsers_SourceUnreadable(t *testing.T) {
	source := database.NewRecordStore(mock.NewUninitializedMockStorage())
	target := database.NewRecordStore(mock.NewMockStorage())

	_, err := migrateUsers(testCommand(), source, target, false, true)
	require.ErrorIs(t, err, database.ErrStorageUnreadable)
}

func TestReadDescriptors(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := testCommand()
		cmd.Flags().String("descriptors", "", "")
		cmd.Flags().String("descriptors-file", "", "")
		return cmd
	}

	cmd := newCmd()
	require.NoError(t, cmd.Flags().Set("descriptors", "[[0.1, 0.2], [0.3]]"))
	got, err := readDescriptors(cmd)
	require.NoError(t, err)
	assert.Equal(t, []database.Descriptor{{0.1, 0.2}, {0.3}}, got)

	cmd = newCmd()
	require.NoError(t, cmd.Flags().Set("descriptors", "[0.1, 0.2]"))
	_, err = readDescriptors(cmd)
	assert.Error(t, err)

	_, err = readDescriptors(newCmd())
	assert.Error(t, err)
}

func TestApplyServeFlags(t *testing.T) {
	cmd := testCommand()
	cmd.Flags().Int("port", 0, "")
	cmd.Flags().String("host", "", "")
	cmd.Flags().String("backend", "", "")
	require.NoError(t, cmd.Flags().Set("port", "8081"))

	cfg := config.Defaults()
	applyServeFlags(cmd, cfg)

	assert.Equal(t, 8081, cfg.Web.Port)
	assert.Equal(t, "0.0.0.0", cfg.Web.Host, "unset flags keep the configured value")
	assert.Equal(t, "file", cfg.Storage.Backend)
}

func TestBackendsRegistered(t *testing.T) {
	assert.Equal(t, []string{"file", "mariadb", "postgres", "redis", "s3"}, database.Backends())
}

func TestOpenStore_File(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.DataFile = t.TempDir() + "/users.json"

	store, closeFn, err := openStore(context.Background(), cfg, "file")
	require.NoError(t, err)
	defer closeFn()

	users, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)

	_, _, err = openStore(context.Background(), cfg, "floppy")
	assert.Error(t, err)
}
