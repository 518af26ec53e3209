package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantmind-br/workshopsync/internal/app"
	"github.com/quantmind-br/workshopsync/internal/config"
	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/quantmind-br/workshopsync/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLedger returns a config rooted in a temp dir and a store tracking
// item 42 whose latest artifact is on disk with the given content
func newLedger(t *testing.T, content string) (*config.Config, *state.ItemStore, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Snapshot = filepath.Join(dir, "workshop.json")
	cfg.Paths.WorkshopDir = filepath.Join(dir, "workshop")

	artifact := filepath.Join(cfg.Paths.WorkshopDir, "42", "DM-Test.udk")
	require.NoError(t, os.MkdirAll(filepath.Dir(artifact), 0755))
	require.NoError(t, os.WriteFile(artifact, []byte(content), 0644))

	store, err := state.NewItemStore("md5")
	require.NoError(t, err)
	store.BeginRun(1700000000)
	require.True(t, store.RecordNewItem("42", "mapper", "DM-Test", "desc", 1600000000))
	appended, err := store.RecordVersion("42", artifact, 1650000000)
	require.NoError(t, err)
	require.True(t, appended)

	return cfg, store, artifact
}

func TestPrintHistory(t *testing.T) {
	_, store, _ := newLedger(t, "v1")
	var out bytes.Buffer

	require.NoError(t, printHistory(&out, store, "42"))

	s := out.String()
	assert.Contains(t, s, "42  DM-Test")
	assert.Contains(t, s, "author:    mapper")
	assert.Contains(t, s, "published: 2020-09-13T12:26:40Z")
	assert.Contains(t, s, "versions:  1 (md5)")
	assert.Contains(t, s, "DM-Test.udk")
}

func TestPrintHistory_UnknownItem(t *testing.T) {
	_, store, _ := newLedger(t, "v1")

	err := printHistory(&bytes.Buffer{}, store, "7")
	assert.ErrorIs(t, err, state.ErrUnknownItem)
}

func TestVerifyArtifact(t *testing.T) {
	cfg, store, artifact := newLedger(t, "v1")

	var out bytes.Buffer
	require.NoError(t, verifyArtifact(&out, cfg, store, "42"))
	assert.Contains(t, out.String(), "OK DM-Test.udk")

	require.NoError(t, os.WriteFile(artifact, []byte("tampered"), 0644))
	out.Reset()
	err := verifyArtifact(&out, cfg, store, "42")
	assert.ErrorIs(t, err, errArtifactMismatch)
	assert.Contains(t, out.String(), "MISMATCH")
}

func TestVerifyArtifact_NoArtifactOnDisk(t *testing.T) {
	cfg, store, artifact := newLedger(t, "v1")
	require.NoError(t, os.Remove(artifact))

	err := verifyArtifact(&bytes.Buffer{}, cfg, store, "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no artifact found")
}

func TestVerifyArtifact_NoVersions(t *testing.T) {
	cfg, store, _ := newLedger(t, "v1")
	store.RecordNewItem("43", "mapper", "Empty", "", 1)

	err := verifyArtifact(&bytes.Buffer{}, cfg, store, "43")
	assert.Error(t, err)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "-", formatTimestamp(0))
	assert.Equal(t, "2023-11-14T22:13:20Z", formatTimestamp(1700000000))
}

func TestPrintReport(t *testing.T) {
	start := time.Unix(1700000000, 0)
	report := &app.RunReport{
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Minute),
		Listed:     5,
		Excluded:   1,
		Outcomes: []app.ItemOutcome{
			{ID: "1", Status: app.StatusNew},
			{ID: "2", Status: app.StatusUnchanged},
			{ID: "3", Status: app.StatusFailed, Err: domain.NewItemError("3", domain.StageFetch, domain.ErrFetchUnavailable)},
		},
	}
	var out bytes.Buffer

	printReport(&out, report)

	s := out.String()
	assert.Contains(t, s, "Listed 5 items (1 excluded), processed 3 in 2m0s")
	assert.Contains(t, s, "new: 1")
	assert.Contains(t, s, "failed: 1")
	assert.Contains(t, s, "FAILED 3: item 3: fetch: artifact unavailable")
}

func TestCheckBrowser(t *testing.T) {
	origStat, origLook := osStat, browserLookPath
	defer func() { osStat, browserLookPath = origStat, origLook }()

	tests := []struct {
		name       string
		configured string
		statErr    error
		lookPath   string
		lookOK     bool
		expected   string
	}{
		{name: "configured path exists", configured: "/opt/chrome", expected: "/opt/chrome"},
		{name: "configured path missing", configured: "/opt/chrome", statErr: os.ErrNotExist, lookPath: "/usr/bin/chromium", lookOK: true, expected: ""},
		{name: "detected", lookPath: "/usr/bin/chromium", lookOK: true, expected: "/usr/bin/chromium"},
		{name: "not found", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			osStat = func(string) (os.FileInfo, error) { return nil, tt.statErr }
			browserLookPath = func() (string, bool) { return tt.lookPath, tt.lookOK }

			assert.Equal(t, tt.expected, checkBrowser(tt.configured))
		})
	}
}

func TestCheckWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	assert.True(t, checkWritable(dir))
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.False(t, checkWritable(filepath.Join(file, "sub")))
}

func TestCheckSnapshot(t *testing.T) {
	cfg, store, _ := newLedger(t, "v1")

	assert.Contains(t, checkSnapshot(cfg.Paths.Snapshot), "NONE")

	require.NoError(t, state.WriteSnapshot(store, cfg.Paths.Snapshot))
	assert.Equal(t, "OK (1 items, 1 versions, md5)", checkSnapshot(cfg.Paths.Snapshot))

	require.NoError(t, os.WriteFile(cfg.Paths.Snapshot, []byte("[]"), 0644))
	assert.Contains(t, checkSnapshot(cfg.Paths.Snapshot), "FAILED")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "workshopsync")
}

func TestHistoryCommand_RequiresID(t *testing.T) {
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"history"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.False(t, errors.Is(err, errArtifactMismatch))
}
