package state_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/quantmind-br/workshopsync/internal/state"
	"github.com/quantmind-br/workshopsync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshotIO(t testing.TB, dir string) *state.SnapshotIO {
	t.Helper()
	s, err := state.NewSnapshotIO(state.SnapshotOptions{
		Path:       filepath.Join(dir, "build", "workshop.json"),
		PublicPath: filepath.Join(dir, "release", "workshop.json"),
		MetaPath:   filepath.Join(dir, "release", "meta.json"),
		Algorithm:  "md5",
		Logger:     utils.NewLogger(utils.LoggerOptions{Level: "error"}),
	})
	require.NoError(t, err)
	return s
}

func populatedStore(t testing.TB, dir string) *state.ItemStore {
	t.Helper()
	store := newStore(t)
	store.BeginRun(1_700_000_000)
	store.RecordNewItem("2070733495", "Mapper", "Skatepark", "line one\nline two", 1_600_000_000)
	store.RecordNewItem("941618511", "Other", "Empty", "", 1_500_000_000)
	_, err := store.RecordVersion("2070733495", writeArtifact(t, dir, "DH_Skatepark.udk", "v1"), 1_650_000_000)
	require.NoError(t, err)
	_, err = store.RecordVersion("2070733495", writeArtifact(t, dir, "DH_Skatepark_v2.udk", "v2"), 1_660_000_000)
	require.NoError(t, err)
	return store
}

func TestNewSnapshotIO_Validation(t *testing.T) {
	_, err := state.NewSnapshotIO(state.SnapshotOptions{})
	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "paths.snapshot", vErr.Field)

	_, err = state.NewSnapshotIO(state.SnapshotOptions{Path: "x.json", Algorithm: "crc32"})
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "ledger.hash_algorithm", vErr.Field)

	s, err := state.NewSnapshotIO(state.SnapshotOptions{Path: "x.json"})
	require.NoError(t, err)
	assert.Equal(t, "x.json", s.Path())
}

func TestSnapshotIO_Load_MissingFile(t *testing.T) {
	dir := t.TempDir()
	s := newSnapshotIO(t, dir)

	store, err := s.Load()

	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, int64(0), store.LastCheck)
	assert.Equal(t, "md5", store.HashAlgorithm)
	matches, _ := filepath.Glob(filepath.Join(dir, "build", "*"))
	assert.Empty(t, matches, "no backup without a snapshot")
}

func TestSnapshotIO_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newSnapshotIO(t, dir)
	store := populatedStore(t, dir)

	require.NoError(t, s.Save(store))
	loaded, err := s.Load()
	require.NoError(t, err)

	assert.Equal(t, store.Items, loaded.Items)
	assert.Equal(t, store.LastCheck, loaded.LastCheck)
	assert.Equal(t, store.LastModified, loaded.LastModified)
	assert.Equal(t, store.HashAlgorithm, loaded.HashAlgorithm)
}

func TestSnapshotIO_RoundTrip_Empty(t *testing.T) {
	dir := t.TempDir()
	s := newSnapshotIO(t, dir)
	store := newStore(t)

	require.NoError(t, s.Save(store))
	loaded, err := s.Load()

	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
}

func TestSnapshotIO_Load_WritesBackupNamedByLastCheck(t *testing.T) {
	dir := t.TempDir()
	s := newSnapshotIO(t, dir)
	store := populatedStore(t, dir)
	require.NoError(t, s.Save(store))
	original, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	loaded, err := s.Load()
	require.NoError(t, err)

	backup := state.BackupPath(s.Path(), loaded.LastCheck)
	assert.Equal(t, s.Path()+".1700000000.json", backup)
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, original, data)
}

func TestSnapshotIO_Load_BackupSurvivesLaterSave(t *testing.T) {
	dir := t.TempDir()
	s := newSnapshotIO(t, dir)
	require.NoError(t, s.Save(populatedStore(t, dir)))

	loaded, err := s.Load()
	require.NoError(t, err)
	loaded.BeginRun(1_800_000_000)
	require.NoError(t, s.Save(loaded))

	backup, err := state.ReadSnapshot(state.BackupPath(s.Path(), 1_700_000_000))
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000), backup.LastCheck)
}

func TestSnapshotIO_Load_Corrupt(t *testing.T) {
	valid := `{"version":1,"hashAlgorithm":"md5","lastCheck":5,"lastModified":5,"items":{"1":{"id":"1","author":"a","title":"t","description":"d","publishedAt":1,"history":[{"filename":"a.udk","contentHash":"h","updateTimestamp":2}]}}}`

	tests := []struct {
		name    string
		content string
		version bool
	}{
		{"empty file", "", false},
		{"not json", "{not json", false},
		{"null document", "null", false},
		{"unknown top-level field", strings.Replace(valid, `"lastCheck":5`, `"lastCheck":5,"extra":1`, 1), false},
		{"unknown version field", strings.Replace(valid, `"updateTimestamp":2`, `"updateTimestamp":2,"segmentHash":"x"`, 1), false},
		{"missing lastModified", strings.Replace(valid, `,"lastModified":5`, ``, 1), false},
		{"missing items", `{"version":1,"hashAlgorithm":"md5","lastCheck":5,"lastModified":5}`, false},
		{"missing author", strings.Replace(valid, `"author":"a",`, ``, 1), false},
		{"missing history", strings.Replace(valid, `,"history":[{"filename":"a.udk","contentHash":"h","updateTimestamp":2}]`, ``, 1), false},
		{"missing contentHash", strings.Replace(valid, `"contentHash":"h",`, ``, 1), false},
		{"key mismatch", strings.Replace(valid, `"id":"1"`, `"id":"2"`, 1), false},
		{"wrong type", strings.Replace(valid, `"lastCheck":5`, `"lastCheck":"5"`, 1), false},
		{"unknown algorithm", strings.Replace(valid, `"md5"`, `"crc32"`, 1), false},
		{"trailing data", valid + `{}`, false},
		{"version mismatch", strings.Replace(valid, `"version":1`, `"version":2`, 1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			s := newSnapshotIO(t, dir)
			require.NoError(t, utils.EnsureDir(s.Path()))
			require.NoError(t, os.WriteFile(s.Path(), []byte(tt.content), 0644))

			store, err := s.Load()

			require.Error(t, err)
			assert.Nil(t, store)
			assert.ErrorIs(t, err, state.ErrSnapshotCorrupted)
			var cErr *state.CorruptSnapshotError
			require.True(t, errors.As(err, &cErr))
			assert.Equal(t, s.Path(), cErr.Path)
			if tt.version {
				assert.ErrorIs(t, err, state.ErrVersionMismatch)
			}

			data, readErr := os.ReadFile(s.Path())
			require.NoError(t, readErr)
			assert.Equal(t, tt.content, string(data), "corrupt snapshot left in place")
		})
	}
}

func TestSnapshotIO_Load_ValidMinimalDocument(t *testing.T) {
	dir := t.TempDir()
	s := newSnapshotIO(t, dir)
	require.NoError(t, utils.EnsureDir(s.Path()))
	doc := `{"version":1,"hashAlgorithm":"sha256","lastCheck":5,"lastModified":3,"items":{"1":{"id":"1","author":"","title":"","description":"","publishedAt":0,"history":[]}}}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(doc), 0644))

	store, err := s.Load()

	require.NoError(t, err)
	assert.Equal(t, "sha256", store.HashAlgorithm, "snapshot algorithm wins over configuration")
	assert.Equal(t, "sha256", store.Hasher().Algorithm())
	assert.Equal(t, int64(5), store.LastCheck)
	assert.Equal(t, int64(3), store.LastModified)
	assert.Equal(t, 1, store.Len())
}

func TestSnapshotIO_SavePublic_OmitsInternalFields(t *testing.T) {
	dir := t.TempDir()
	s := newSnapshotIO(t, dir)
	store := populatedStore(t, dir)

	require.NoError(t, s.SaveAll(store))

	data, err := os.ReadFile(filepath.Join(dir, "release", "workshop.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.NotContains(t, doc, "version")
	assert.NotContains(t, doc, "hashAlgorithm")
	assert.EqualValues(t, 1_700_000_000, doc["lastCheck"])
	assert.EqualValues(t, 1_700_000_000, doc["lastModified"])

	items := doc["items"].(map[string]any)
	require.Len(t, items, 2)
	item := items["2070733495"].(map[string]any)
	assert.Equal(t, "Skatepark", item["title"])
	history := item["history"].([]any)
	require.Len(t, history, 2)
	first := history[0].(map[string]any)
	assert.Equal(t, "DH_Skatepark.udk", first["filename"])
	assert.NotContains(t, first, "recordedAt")

	empty := items["941618511"].(map[string]any)
	assert.Equal(t, []any{}, empty["history"])
}

func TestSnapshotIO_SaveMeta(t *testing.T) {
	dir := t.TempDir()
	s := newSnapshotIO(t, dir)
	store := newStore(t)
	store.BeginRun(200)
	store.LastModified = 100

	require.NoError(t, s.SaveMeta(store))

	data, err := os.ReadFile(filepath.Join(dir, "release", "meta.json"))
	require.NoError(t, err)
	var meta state.Meta
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, state.Meta{LastCheck: 200, LastModified: 100}, meta)
}

func TestSnapshotIO_OptionalExportsSkipped(t *testing.T) {
	dir := t.TempDir()
	s, err := state.NewSnapshotIO(state.SnapshotOptions{Path: filepath.Join(dir, "full.json")})
	require.NoError(t, err)

	require.NoError(t, s.SaveAll(newStore(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "full.json", entries[0].Name())
}

func TestSnapshotIO_Save_Overwrites(t *testing.T) {
	dir := t.TempDir()
	s := newSnapshotIO(t, dir)
	store := populatedStore(t, dir)
	require.NoError(t, s.Save(store))

	require.NoError(t, s.Save(newStore(t)))

	loaded, err := state.ReadSnapshot(s.Path())
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
}

func TestSnapshotIO_Save_WriteError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	s, err := state.NewSnapshotIO(state.SnapshotOptions{Path: filepath.Join(blocker, "nested", "snap.json")})
	require.NoError(t, err)

	err = s.Save(newStore(t))

	var ioErr *domain.IOError
	assert.True(t, errors.As(err, &ioErr))
}

func TestReadSnapshot_NoBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")
	store := populatedStore(t, t.TempDir())
	require.NoError(t, state.WriteSnapshot(store, path))

	loaded, err := state.ReadSnapshot(path)

	require.NoError(t, err)
	assert.Equal(t, store.Items, loaded.Items)
	_, statErr := os.Stat(state.BackupPath(path, store.LastCheck))
	assert.True(t, os.IsNotExist(statErr))

	_, err = state.ReadSnapshot(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCorruptSnapshotError(t *testing.T) {
	inner := errors.New("bad")
	err := &state.CorruptSnapshotError{Path: "/x.json", Err: inner}

	assert.Equal(t, "corrupt snapshot /x.json: bad", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.ErrorIs(t, err, state.ErrSnapshotCorrupted)
}

func BenchmarkSnapshotIO_Save(b *testing.B) {
	dir := b.TempDir()
	s := newSnapshotIO(b, dir)
	store := populatedStore(b, dir)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Save(store); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReadSnapshot(b *testing.B) {
	dir := b.TempDir()
	s := newSnapshotIO(b, dir)
	require.NoError(b, s.Save(populatedStore(b, dir)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := state.ReadSnapshot(s.Path()); err != nil {
			b.Fatal(err)
		}
	}
}
