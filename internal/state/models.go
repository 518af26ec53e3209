package state

import (
	"path/filepath"
	"sort"

	"github.com/quantmind-br/workshopsync/internal/hasher"
	"github.com/quantmind-br/workshopsync/internal/utils"
)

// SnapshotVersion is the schema version written to full snapshots
const SnapshotVersion = 1

// ContentHasher fingerprints a local artifact
type ContentHasher interface {
	HashFile(path string) (string, error)
}

// ArtifactVersion is one retrieved artifact of an item
type ArtifactVersion struct {
	Filename        string
	ContentHash     string
	UpdateTimestamp int64
	// RecordedAt is the run (lastCheck) that appended the version. Not exported publicly.
	RecordedAt int64
}

// TrackedItem is a remote item and its artifact history. History is
// append-only and kept in insertion order.
type TrackedItem struct {
	ID          string
	Author      string
	Title       string
	Description string
	PublishedAt int64
	History     []ArtifactVersion
}

// LatestVersion returns the version with the greatest UpdateTimestamp.
// Ties go to the earliest entry in History.
func (t *TrackedItem) LatestVersion() (ArtifactVersion, bool) {
	if len(t.History) == 0 {
		return ArtifactVersion{}, false
	}

	latest := 0
	for i := 1; i < len(t.History); i++ {
		if t.History[i].UpdateTimestamp > t.History[latest].UpdateTimestamp {
			latest = i
		}
	}
	return t.History[latest], true
}

// LastUpdateTimestamp returns the latest version's timestamp, or 0
func (t *TrackedItem) LastUpdateTimestamp() int64 {
	v, ok := t.LatestVersion()
	if !ok {
		return 0
	}
	return v.UpdateTimestamp
}

// AppendVersion hashes path and appends it as a version at ts. A ts older
// than the latest known version is ignored and (nil, nil) is returned.
// Identical hashes are appended again under newer timestamps.
func (t *TrackedItem) AppendVersion(h ContentHasher, path string, ts int64) (*ArtifactVersion, error) {
	if ts < t.LastUpdateTimestamp() {
		return nil, nil
	}

	digest, err := h.HashFile(path)
	if err != nil {
		return nil, err
	}

	t.History = append(t.History, ArtifactVersion{
		Filename:        filepath.Base(path),
		ContentHash:     digest,
		UpdateTimestamp: ts,
	})
	return &t.History[len(t.History)-1], nil
}

func (t *TrackedItem) clone() TrackedItem {
	c := *t
	c.History = append([]ArtifactVersion(nil), t.History...)
	return c
}

// ItemStore is the ledger of every tracked item. It is not safe for
// concurrent use; a run owns it exclusively.
type ItemStore struct {
	HashAlgorithm string
	LastCheck     int64
	LastModified  int64
	Items         map[string]*TrackedItem

	hasher *hasher.Hasher
	logger *utils.Logger
}

// NewItemStore creates an empty store hashing with algorithm
func NewItemStore(algorithm string) (*ItemStore, error) {
	h, err := hasher.New(algorithm)
	if err != nil {
		return nil, err
	}
	return &ItemStore{
		HashAlgorithm: h.Algorithm(),
		Items:         make(map[string]*TrackedItem),
		hasher:        h,
		logger:        utils.NewNopLogger(),
	}, nil
}

// SetLogger sets the logger used for ledger decisions
func (s *ItemStore) SetLogger(logger *utils.Logger) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	s.logger = logger.WithComponent("ledger")
}

// Hasher returns the hasher bound to the store's algorithm
func (s *ItemStore) Hasher() *hasher.Hasher {
	return s.hasher
}

// BeginRun marks the start of a run
func (s *ItemStore) BeginRun(now int64) {
	s.LastCheck = now
}

// NeedsUpdate reports whether id is unknown or its latest version is
// strictly older than remoteTimestamp.
func (s *ItemStore) NeedsUpdate(id string, remoteTimestamp int64) bool {
	item, ok := s.Items[id]
	if !ok {
		return true
	}
	return item.LastUpdateTimestamp() < remoteTimestamp
}

// RecordNewItem starts tracking id with an empty history. Existing items
// are left untouched. It reports whether an item was created.
func (s *ItemStore) RecordNewItem(id, author, title, description string, publishedAt int64) bool {
	if _, ok := s.Items[id]; ok {
		return false
	}
	s.Items[id] = &TrackedItem{
		ID:          id,
		Author:      author,
		Title:       title,
		Description: description,
		PublishedAt: publishedAt,
		History:     []ArtifactVersion{},
	}
	s.logger.Debug().Str("item", id).Msg("Tracking new item")
	return true
}

// RecordVersion appends the artifact at path to id's history. It reports
// whether a version was appended; stale timestamps are not an error.
func (s *ItemStore) RecordVersion(id, path string, remoteTimestamp int64) (bool, error) {
	item, ok := s.Items[id]
	if !ok {
		return false, ErrUnknownItem
	}

	v, err := item.AppendVersion(s.hasher, path, remoteTimestamp)
	if err != nil {
		return false, err
	}
	if v == nil {
		s.logger.Debug().
			Str("item", id).
			Int64("timestamp", remoteTimestamp).
			Int64("latest", item.LastUpdateTimestamp()).
			Msg("Stale update ignored")
		return false, nil
	}

	v.RecordedAt = s.LastCheck
	s.LastModified = s.LastCheck
	s.logger.Debug().
		Str("item", id).
		Str("file", v.Filename).
		Str("hash", v.ContentHash).
		Int64("timestamp", remoteTimestamp).
		Msg("Version recorded")
	return true, nil
}

// ForgetItem stops tracking id. It undoes RecordNewItem when the item's
// first version could not be recorded; items with history are kept.
// It reports whether the item was removed.
func (s *ItemStore) ForgetItem(id string) bool {
	item, ok := s.Items[id]
	if !ok || len(item.History) > 0 {
		return false
	}
	delete(s.Items, id)
	s.logger.Debug().Str("item", id).Msg("Untracked item without versions")
	return true
}

// Item returns a copy of the tracked item
func (s *ItemStore) Item(id string) (TrackedItem, bool) {
	item, ok := s.Items[id]
	if !ok {
		return TrackedItem{}, false
	}
	return item.clone(), true
}

// Len returns the number of tracked items
func (s *ItemStore) Len() int {
	return len(s.Items)
}

// IDs returns tracked ids in lexical order
func (s *ItemStore) IDs() []string {
	ids := make([]string, 0, len(s.Items))
	for id := range s.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// VersionCount returns the total number of versions across all items
func (s *ItemStore) VersionCount() int {
	n := 0
	for _, item := range s.Items {
		n += len(item.History)
	}
	return n
}
