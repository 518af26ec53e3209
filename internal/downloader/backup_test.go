package downloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestBackupVersion(t *testing.T) {
	itemDir := ItemDir(t.TempDir(), "2912345678")
	writeFile(t, filepath.Join(itemDir, "DM-Deck.udk"), "v1")
	writeFile(t, filepath.Join(itemDir, "DM-Deck_readme.txt"), "notes")
	writeFile(t, filepath.Join(itemDir, "1600000000", "DM-Deck.udk"), "v0")

	copied, err := BackupVersion(itemDir, 1700000000)
	require.NoError(t, err)
	assert.Equal(t, 2, copied)

	backup := BackupDir(itemDir, 1700000000)
	data, err := os.ReadFile(filepath.Join(backup, "DM-Deck.udk"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
	assert.FileExists(t, filepath.Join(backup, "DM-Deck_readme.txt"))
	assert.NoDirExists(t, filepath.Join(backup, "1600000000"))

	// originals stay in place for the downloader to overwrite
	assert.FileExists(t, filepath.Join(itemDir, "DM-Deck.udk"))
}

func TestBackupVersion_SkipsExisting(t *testing.T) {
	itemDir := t.TempDir()
	writeFile(t, filepath.Join(itemDir, "DM-Deck.udk"), "new")
	writeFile(t, filepath.Join(BackupDir(itemDir, 42), "DM-Deck.udk"), "kept")

	copied, err := BackupVersion(itemDir, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, copied)

	data, err := os.ReadFile(filepath.Join(BackupDir(itemDir, 42), "DM-Deck.udk"))
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data))
}

func TestBackupVersion_MissingDir(t *testing.T) {
	copied, err := BackupVersion(filepath.Join(t.TempDir(), "absent"), 1)

	require.NoError(t, err)
	assert.Zero(t, copied)
}

func TestFindExisting(t *testing.T) {
	itemDir := t.TempDir()
	writeFile(t, filepath.Join(itemDir, "notes.txt"), "x")
	writeFile(t, filepath.Join(itemDir, "100", "Old.udk"), "x")
	writeFile(t, filepath.Join(itemDir, "Map.UPK"), "x")

	path, err := FindExisting(itemDir, mapExtensions)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(itemDir, "Map.UPK"), path)

	none, err := FindExisting(filepath.Join(itemDir, "100", "nothing"), mapExtensions)
	require.NoError(t, err)
	assert.Empty(t, none)

	empty, err := FindExisting(t.TempDir(), mapExtensions)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestItemDir(t *testing.T) {
	assert.Equal(t, filepath.Join("workshop", "42"), ItemDir("workshop", "42"))
	assert.Equal(t, filepath.Join("workshop", "42", "1700000000"), BackupDir(ItemDir("workshop", "42"), 1700000000))
}
