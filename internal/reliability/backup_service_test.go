package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	objects map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Upload(_ context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	infos := []ObjectInfo{}
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return infos, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func setupBackup(t *testing.T) (*BackupService, *fakeStore, string) {
	t.Helper()
	store := newFakeStore()
	archivesDir := t.TempDir()
	service := NewBackupService(store, archivesDir, t.TempDir(), zerolog.Nop())
	return service, store, archivesDir
}

func writeArchiveFixture(t *testing.T, archivesDir string) {
	t.Helper()
	folder := filepath.Join(archivesDir, "2025-06-01_103000_baseline")
	require.NoError(t, os.MkdirAll(folder, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "metadata.json"), []byte(`{"testType":"portfolio"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "README.md"), []byte("# baseline\n"), 0o644))
}

func readTarball(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	contents := map[string][]byte{}
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		contents[header.Name] = body
	}
	return contents
}

func TestCreateAndUploadBackup(t *testing.T) {
	service, store, archivesDir := setupBackup(t)
	writeArchiveFixture(t, archivesDir)

	require.NoError(t, service.CreateAndUploadBackup(context.Background()))
	require.Len(t, store.objects, 1)

	var key string
	for k := range store.objects {
		key = k
	}
	assert.True(t, strings.HasPrefix(key, backupPrefix))
	assert.True(t, strings.HasSuffix(key, ".tar.gz"))

	contents := readTarball(t, store.objects[key])
	assert.Contains(t, contents, "backup-metadata.json")
	assert.Contains(t, contents, "2025-06-01_103000_baseline/metadata.json")
	assert.Contains(t, contents, "2025-06-01_103000_baseline/README.md")
	assert.Equal(t, "# baseline\n", string(contents["2025-06-01_103000_baseline/README.md"]))

	var meta BackupMetadata
	require.NoError(t, json.Unmarshal(contents["backup-metadata.json"], &meta))
	require.Len(t, meta.Files, 2)
	for _, f := range meta.Files {
		assert.True(t, strings.HasPrefix(f.Checksum, "sha256:"), "checksum %q", f.Checksum)
		assert.Greater(t, f.SizeBytes, int64(0))
	}
}

func TestCreateAndUploadBackup_EmptyArchives(t *testing.T) {
	service, store, _ := setupBackup(t)

	require.NoError(t, service.CreateAndUploadBackup(context.Background()))
	require.Len(t, store.objects, 1, "empty archives still produce a metadata-only backup")

	for _, data := range store.objects {
		contents := readTarball(t, data)
		assert.Len(t, contents, 1)
		assert.Contains(t, contents, "backup-metadata.json")
	}
}

func TestListBackups_NewestFirst(t *testing.T) {
	service, store, _ := setupBackup(t)

	store.objects[backupPrefix+"2025-05-01-120000.tar.gz"] = []byte("old")
	store.objects[backupPrefix+"2025-06-01-120000.tar.gz"] = []byte("new")
	store.objects["unrelated-object.txt"] = []byte("x")
	store.objects[backupPrefix+"garbage.tar.gz"] = []byte("bad timestamp")

	backups, err := service.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, backupPrefix+"2025-06-01-120000.tar.gz", backups[0].Filename)
	assert.Equal(t, backupPrefix+"2025-05-01-120000.tar.gz", backups[1].Filename)
	assert.Greater(t, backups[1].AgeHours, backups[0].AgeHours)
}

func TestRotateOldBackups(t *testing.T) {
	service, store, _ := setupBackup(t)

	now := time.Now()
	// Three fresh backups plus two well past retention
	for i := 0; i < 3; i++ {
		key := backupPrefix + now.AddDate(0, 0, -i).Format(backupTimeLayout) + ".tar.gz"
		store.objects[key] = []byte("fresh")
	}
	oldA := backupPrefix + now.AddDate(0, 0, -90).Format(backupTimeLayout) + ".tar.gz"
	oldB := backupPrefix + now.AddDate(0, 0, -120).Format(backupTimeLayout) + ".tar.gz"
	store.objects[oldA] = []byte("old")
	store.objects[oldB] = []byte("old")

	require.NoError(t, service.RotateOldBackups(context.Background(), 30))

	assert.ElementsMatch(t, []string{oldA, oldB}, store.deleted)
	assert.Len(t, store.objects, 3)
}

func TestRotateOldBackups_KeepsMinimum(t *testing.T) {
	service, store, _ := setupBackup(t)

	now := time.Now()
	// All three are ancient, but the minimum floor protects them.
	for i := 0; i < 3; i++ {
		key := backupPrefix + now.AddDate(0, 0, -200-i).Format(backupTimeLayout) + ".tar.gz"
		store.objects[key] = []byte("ancient")
	}

	require.NoError(t, service.RotateOldBackups(context.Background(), 30))
	assert.Empty(t, store.deleted)
	assert.Len(t, store.objects, 3)
}

func TestRotateOldBackups_ZeroRetentionKeepsAll(t *testing.T) {
	service, store, _ := setupBackup(t)

	now := time.Now()
	for i := 0; i < 6; i++ {
		key := backupPrefix + now.AddDate(0, 0, -100*i-1).Format(backupTimeLayout) + ".tar.gz"
		store.objects[key] = []byte("ancient")
	}

	require.NoError(t, service.RotateOldBackups(context.Background(), 0))
	assert.Empty(t, store.deleted)
}
