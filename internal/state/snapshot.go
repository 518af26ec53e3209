package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/quantmind-br/workshopsync/internal/hasher"
	"github.com/quantmind-br/workshopsync/internal/utils"
)

// fileVersion is the on-disk shape of ArtifactVersion. Pointer fields let
// decoding tell a missing field from a zero value.
type fileVersion struct {
	Filename        *string `json:"filename"`
	ContentHash     *string `json:"contentHash"`
	UpdateTimestamp *int64  `json:"updateTimestamp"`
	RecordedAt      int64   `json:"recordedAt,omitempty"`
}

type fileItem struct {
	ID          *string        `json:"id"`
	Author      *string        `json:"author"`
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	PublishedAt *int64         `json:"publishedAt"`
	History     []*fileVersion `json:"history"`
}

type fileStore struct {
	Version       *int                 `json:"version"`
	HashAlgorithm *string              `json:"hashAlgorithm"`
	LastCheck     *int64               `json:"lastCheck"`
	LastModified  *int64               `json:"lastModified"`
	Items         map[string]*fileItem `json:"items"`
}

type publicVersion struct {
	Filename        string `json:"filename"`
	ContentHash     string `json:"contentHash"`
	UpdateTimestamp int64  `json:"updateTimestamp"`
}

type publicItem struct {
	ID          string          `json:"id"`
	Author      string          `json:"author"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	PublishedAt int64           `json:"publishedAt"`
	History     []publicVersion `json:"history"`
}

type publicStore struct {
	LastCheck    int64                 `json:"lastCheck"`
	LastModified int64                 `json:"lastModified"`
	Items        map[string]publicItem `json:"items"`
}

// Meta is the lightweight {lastCheck, lastModified} export
type Meta struct {
	LastCheck    int64 `json:"lastCheck"`
	LastModified int64 `json:"lastModified"`
}

// SnapshotOptions configures SnapshotIO
type SnapshotOptions struct {
	Path       string
	PublicPath string
	MetaPath   string
	// Algorithm is used only when no snapshot exists yet
	Algorithm string
	Logger    *utils.Logger
}

// SnapshotIO loads and persists an ItemStore
type SnapshotIO struct {
	path       string
	publicPath string
	metaPath   string
	algorithm  string
	logger     *utils.Logger
}

// NewSnapshotIO validates options and creates a SnapshotIO
func NewSnapshotIO(opts SnapshotOptions) (*SnapshotIO, error) {
	if opts.Path == "" {
		return nil, domain.NewValidationError("paths.snapshot", "is required")
	}
	if opts.Algorithm == "" {
		opts.Algorithm = hasher.DefaultAlgorithm
	}
	if !hasher.IsSupported(opts.Algorithm) {
		return nil, domain.NewValidationError("ledger.hash_algorithm", fmt.Sprintf("unsupported algorithm %q", opts.Algorithm))
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	return &SnapshotIO{
		path:       opts.Path,
		publicPath: opts.PublicPath,
		metaPath:   opts.MetaPath,
		algorithm:  opts.Algorithm,
		logger:     logger.WithComponent("snapshot"),
	}, nil
}

// Path returns the full snapshot path
func (s *SnapshotIO) Path() string {
	return s.path
}

// BackupPath is where Load copies an existing snapshot
func BackupPath(path string, lastCheck int64) string {
	return fmt.Sprintf("%s.%d.json", path, lastCheck)
}

// Load reads the snapshot. A missing file yields an empty store. An
// existing file is copied to BackupPath(path, lastCheck) before Load
// returns, so a failed save later in the run cannot lose it.
func (s *SnapshotIO) Load() (*ItemStore, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info().Str("path", s.path).Msg("No snapshot found, starting empty ledger")
		store, err := NewItemStore(s.algorithm)
		if err != nil {
			return nil, err
		}
		store.SetLogger(s.logger)
		return store, nil
	}
	if err != nil {
		return nil, domain.NewIOError("read", s.path, err)
	}

	store, err := decodeSnapshot(s.path, data)
	if err != nil {
		return nil, err
	}
	store.SetLogger(s.logger)

	backup := BackupPath(s.path, store.LastCheck)
	if err := os.WriteFile(backup, data, 0644); err != nil {
		return nil, domain.NewIOError("backup", backup, err)
	}

	if store.HashAlgorithm != s.algorithm {
		s.logger.Warn().
			Str("snapshot", store.HashAlgorithm).
			Str("configured", s.algorithm).
			Msg("Snapshot hash algorithm differs from configuration, keeping snapshot algorithm")
	}
	s.logger.Debug().
		Str("path", s.path).
		Str("backup", backup).
		Int("items", store.Len()).
		Int64("last_check", store.LastCheck).
		Msg("Snapshot loaded")
	return store, nil
}

// Save writes the full store, including internal fields
func (s *SnapshotIO) Save(store *ItemStore) error {
	if err := WriteSnapshot(store, s.path); err != nil {
		return err
	}
	s.logger.Debug().Str("path", s.path).Int("items", store.Len()).Msg("Snapshot saved")
	return nil
}

// SavePublic writes the reduced export. No-op without a public path.
func (s *SnapshotIO) SavePublic(store *ItemStore) error {
	if s.publicPath == "" {
		return nil
	}
	return writeJSON(s.publicPath, toPublic(store))
}

// SaveMeta writes {lastCheck, lastModified}. No-op without a meta path.
func (s *SnapshotIO) SaveMeta(store *ItemStore) error {
	if s.metaPath == "" {
		return nil
	}
	return writeJSON(s.metaPath, Meta{LastCheck: store.LastCheck, LastModified: store.LastModified})
}

// SaveAll writes the full snapshot, then the public export and meta file
func (s *SnapshotIO) SaveAll(store *ItemStore) error {
	if err := s.Save(store); err != nil {
		return err
	}
	if err := s.SavePublic(store); err != nil {
		return err
	}
	return s.SaveMeta(store)
}

// ReadSnapshot decodes the snapshot at path without taking a backup
func ReadSnapshot(path string) (*ItemStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewIOError("read", path, err)
	}
	return decodeSnapshot(path, data)
}

// WriteSnapshot writes the full store to path, replacing the file
func WriteSnapshot(store *ItemStore, path string) error {
	return writeJSON(path, toFile(store))
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := utils.EnsureDir(path); err != nil {
		return domain.NewIOError("mkdir", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return domain.NewIOError("write", path, err)
	}
	return nil
}

func decodeSnapshot(path string, data []byte) (*ItemStore, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var f fileStore
	if err := dec.Decode(&f); err != nil {
		return nil, &CorruptSnapshotError{Path: path, Err: err}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, corrupt(path, "trailing data after snapshot")
	}

	return fromFile(path, &f)
}

func fromFile(path string, f *fileStore) (*ItemStore, error) {
	switch {
	case f.Version == nil:
		return nil, corrupt(path, "missing field version")
	case *f.Version != SnapshotVersion:
		return nil, &CorruptSnapshotError{
			Path: path,
			Err:  fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, *f.Version, SnapshotVersion),
		}
	case f.HashAlgorithm == nil:
		return nil, corrupt(path, "missing field hashAlgorithm")
	case f.LastCheck == nil:
		return nil, corrupt(path, "missing field lastCheck")
	case f.LastModified == nil:
		return nil, corrupt(path, "missing field lastModified")
	case f.Items == nil:
		return nil, corrupt(path, "missing field items")
	}

	store, err := NewItemStore(*f.HashAlgorithm)
	if err != nil {
		return nil, &CorruptSnapshotError{Path: path, Err: err}
	}
	store.LastCheck = *f.LastCheck
	store.LastModified = *f.LastModified

	for key, fi := range f.Items {
		item, err := itemFromFile(key, fi)
		if err != nil {
			return nil, &CorruptSnapshotError{Path: path, Err: err}
		}
		store.Items[key] = item
	}
	return store, nil
}

func itemFromFile(key string, fi *fileItem) (*TrackedItem, error) {
	if fi == nil {
		return nil, fmt.Errorf("item %q is null", key)
	}
	switch {
	case fi.ID == nil:
		return nil, fmt.Errorf("item %q: missing field id", key)
	case *fi.ID != key:
		return nil, fmt.Errorf("item %q: id %q does not match its key", key, *fi.ID)
	case fi.Author == nil:
		return nil, fmt.Errorf("item %q: missing field author", key)
	case fi.Title == nil:
		return nil, fmt.Errorf("item %q: missing field title", key)
	case fi.Description == nil:
		return nil, fmt.Errorf("item %q: missing field description", key)
	case fi.PublishedAt == nil:
		return nil, fmt.Errorf("item %q: missing field publishedAt", key)
	case fi.History == nil:
		return nil, fmt.Errorf("item %q: missing field history", key)
	}

	item := &TrackedItem{
		ID:          key,
		Author:      *fi.Author,
		Title:       *fi.Title,
		Description: *fi.Description,
		PublishedAt: *fi.PublishedAt,
		History:     make([]ArtifactVersion, 0, len(fi.History)),
	}
	for i, fv := range fi.History {
		switch {
		case fv == nil:
			return nil, fmt.Errorf("item %q: history[%d] is null", key, i)
		case fv.Filename == nil || *fv.Filename == "":
			return nil, fmt.Errorf("item %q: history[%d]: missing field filename", key, i)
		case fv.ContentHash == nil || *fv.ContentHash == "":
			return nil, fmt.Errorf("item %q: history[%d]: missing field contentHash", key, i)
		case fv.UpdateTimestamp == nil:
			return nil, fmt.Errorf("item %q: history[%d]: missing field updateTimestamp", key, i)
		}
		item.History = append(item.History, ArtifactVersion{
			Filename:        *fv.Filename,
			ContentHash:     *fv.ContentHash,
			UpdateTimestamp: *fv.UpdateTimestamp,
			RecordedAt:      fv.RecordedAt,
		})
	}
	return item, nil
}

func toFile(store *ItemStore) *fileStore {
	version := SnapshotVersion
	algorithm := store.HashAlgorithm
	lastCheck := store.LastCheck
	lastModified := store.LastModified

	f := &fileStore{
		Version:       &version,
		HashAlgorithm: &algorithm,
		LastCheck:     &lastCheck,
		LastModified:  &lastModified,
		Items:         make(map[string]*fileItem, len(store.Items)),
	}
	for id, item := range store.Items {
		it := item.clone()
		fi := &fileItem{
			ID:          &it.ID,
			Author:      &it.Author,
			Title:       &it.Title,
			Description: &it.Description,
			PublishedAt: &it.PublishedAt,
			History:     make([]*fileVersion, 0, len(it.History)),
		}
		for i := range it.History {
			v := &it.History[i]
			fi.History = append(fi.History, &fileVersion{
				Filename:        &v.Filename,
				ContentHash:     &v.ContentHash,
				UpdateTimestamp: &v.UpdateTimestamp,
				RecordedAt:      v.RecordedAt,
			})
		}
		f.Items[id] = fi
	}
	return f
}

func toPublic(store *ItemStore) *publicStore {
	p := &publicStore{
		LastCheck:    store.LastCheck,
		LastModified: store.LastModified,
		Items:        make(map[string]publicItem, len(store.Items)),
	}
	for id, item := range store.Items {
		history := make([]publicVersion, 0, len(item.History))
		for _, v := range item.History {
			history = append(history, publicVersion{
				Filename:        v.Filename,
				ContentHash:     v.ContentHash,
				UpdateTimestamp: v.UpdateTimestamp,
			})
		}
		p.Items[id] = publicItem{
			ID:          item.ID,
			Author:      item.Author,
			Title:       item.Title,
			Description: item.Description,
			PublishedAt: item.PublishedAt,
			History:     history,
		}
	}
	return p
}
