package state

import (
	"errors"
	"fmt"
)

var (
	// ErrSnapshotCorrupted indicates the snapshot file exists but cannot be decoded
	ErrSnapshotCorrupted = errors.New("snapshot is corrupted")

	// ErrVersionMismatch indicates an incompatible snapshot schema version
	ErrVersionMismatch = errors.New("snapshot version mismatch")

	// ErrUnknownItem indicates a version was recorded for an untracked id
	ErrUnknownItem = errors.New("item is not tracked")
)

// CorruptSnapshotError reports a snapshot that cannot be loaded. It is fatal
// to a run: starting from an empty store would discard the ledger.
type CorruptSnapshotError struct {
	Path string
	Err  error
}

func (e *CorruptSnapshotError) Error() string {
	return fmt.Sprintf("corrupt snapshot %s: %v", e.Path, e.Err)
}

func (e *CorruptSnapshotError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSnapshotCorrupted) match any CorruptSnapshotError
func (e *CorruptSnapshotError) Is(target error) bool {
	return target == ErrSnapshotCorrupted
}

func corrupt(path string, format string, args ...any) *CorruptSnapshotError {
	return &CorruptSnapshotError{Path: path, Err: fmt.Errorf(format, args...)}
}
