package downloader

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/quantmind-br/workshopsync/internal/utils"
)

// ItemDir returns the directory an item's artifacts are downloaded into
func ItemDir(workshopDir, id string) string {
	return filepath.Join(workshopDir, id)
}

// BackupDir returns the directory holding the copy of the version
// recorded at ts
func BackupDir(itemDir string, ts int64) string {
	return filepath.Join(itemDir, strconv.FormatInt(ts, 10))
}

// BackupVersion copies the regular files of itemDir into
// <itemDir>/<prevTs>/ so a new download can overwrite them. Files already
// present in the backup and subdirectories are skipped. It returns the
// number of files copied; a missing itemDir is not an error.
func BackupVersion(itemDir string, prevTs int64) (int, error) {
	entries, err := os.ReadDir(itemDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, domain.NewIOError("read dir", itemDir, err)
	}

	backupDir := BackupDir(itemDir, prevTs)
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return 0, domain.NewIOError("mkdir", backupDir, err)
	}

	copied := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		dst := filepath.Join(backupDir, entry.Name())
		if utils.FileExists(dst) {
			continue
		}
		if err := utils.CopyFile(filepath.Join(itemDir, entry.Name()), dst); err != nil {
			return copied, domain.NewIOError("backup", dst, err)
		}
		copied++
	}

	return copied, nil
}

// FindExisting returns the first regular file directly inside itemDir
// whose name ends in one of exts, or "" when there is none.
func FindExisting(itemDir string, exts []string) (string, error) {
	entries, err := os.ReadDir(itemDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", domain.NewIOError("read dir", itemDir, err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := strings.ToLower(entry.Name())
		for _, ext := range exts {
			if ext != "" && strings.HasSuffix(name, strings.ToLower(ext)) {
				return filepath.Join(itemDir, entry.Name()), nil
			}
		}
	}
	return "", nil
}
