// Package persistence provides infrastructure implementations for data persistence.
package persistence

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/relicta-tech/bitsmith/internal/domain/artifact"
	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
	"github.com/relicta-tech/bitsmith/internal/fileutil"
)

const (
	recordsDir   = "records"
	artifactsDir = "artifacts"
	softTagsFile = "soft-tags.json"
)

// checkContext checks if the context is canceled and returns the error if so.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// FileStore implements the version, soft tag and artifact stores using JSON
// files under a base directory.
type FileStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStore creates a new file-based store.
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, bserrors.IOWrap(err, "persistence.NewFileStore", "failed to create store directory")
	}
	return &FileStore{basePath: basePath}, nil
}

// Close is a no-op; it lets FileStore satisfy Store.
func (s *FileStore) Close() error {
	return nil
}

func fileKey(s string) string {
	return url.PathEscape(s) + ".json"
}

func (s *FileStore) recordsPath(id component.ID) string {
	return filepath.Join(s.basePath, recordsDir, fileKey(id.FullName()))
}

func (s *FileStore) artifactsPath(id component.ID) string {
	return filepath.Join(s.basePath, artifactsDir, url.PathEscape(id.FullName()), fileKey(id.Version))
}

func (s *FileStore) readRecords(id component.ID) ([]tag.Record, error) {
	var dto componentRecordsDTO
	ok, err := fileutil.ReadJSON(s.recordsPath(id), &dto)
	if err != nil || !ok {
		return nil, err
	}
	base := id.WithoutVersion()
	records := make([]tag.Record, 0, len(dto.Records))
	for _, r := range dto.Records {
		records = append(records, fromRecordDTO(base, r))
	}
	return records, nil
}

// LatestRecord returns the most recently saved record of a component.
func (s *FileStore) LatestRecord(ctx context.Context, id component.ID) (*tag.Record, error) {
	const op = "persistence.FileStore.LatestRecord"
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.readRecords(id)
	if err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to read tag records")
	}
	if len(records) == 0 {
		return nil, nil
	}
	latest := records[len(records)-1]
	return &latest, nil
}

// Versions returns every recorded version of a component in save order.
func (s *FileStore) Versions(ctx context.Context, id component.ID) ([]string, error) {
	const op = "persistence.FileStore.Versions"
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.readRecords(id)
	if err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to read tag records")
	}
	versions := make([]string, 0, len(records))
	for _, r := range records {
		versions = append(versions, r.Version)
	}
	return versions, nil
}

// SaveRecords appends records to each component's history.
func (s *FileStore) SaveRecords(ctx context.Context, records []tag.Record) error {
	const op = "persistence.FileStore.SaveRecords"
	if err := checkContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var order []component.ID
	grouped := make(map[string][]tag.Record)
	for _, rec := range records {
		if rec.Version == "" {
			return bserrors.Validation(op, fmt.Sprintf("record for %s has no version", rec.Component))
		}
		key := rec.Component.FullName()
		if _, ok := grouped[key]; !ok {
			order = append(order, rec.Component.WithoutVersion())
		}
		grouped[key] = append(grouped[key], rec)
	}

	for _, id := range order {
		path := s.recordsPath(id)
		var dto componentRecordsDTO
		if _, err := fileutil.ReadJSON(path, &dto); err != nil {
			return bserrors.IOWrap(err, op, "failed to read tag records")
		}
		dto.Component = id.String()
		for _, rec := range grouped[id.FullName()] {
			dto.Records = append(dto.Records, toRecordDTO(rec))
		}
		if err := fileutil.AtomicWriteJSON(path, dto); err != nil {
			return bserrors.IOWrap(err, op, "failed to write tag records")
		}
	}
	return nil
}

func (s *FileStore) readSoftTags() ([]softTagDTO, error) {
	var dto softTagsDTO
	if _, err := fileutil.ReadJSON(filepath.Join(s.basePath, softTagsFile), &dto); err != nil {
		return nil, err
	}
	return dto.SoftTags, nil
}

func (s *FileStore) writeSoftTags(tags []softTagDTO) error {
	path := filepath.Join(s.basePath, softTagsFile)
	if len(tags) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return fileutil.AtomicWriteJSON(path, softTagsDTO{SoftTags: tags})
}

// SaveSoftTags records soft tags, replacing pending ones of the same components.
func (s *FileStore) SaveSoftTags(ctx context.Context, records []tag.SoftTagRecord) error {
	const op = "persistence.FileStore.SaveSoftTags"
	if err := checkContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readSoftTags()
	if err != nil {
		return bserrors.IOWrap(err, op, "failed to read soft tags")
	}

	replaced := make(map[string]bool, len(records))
	for _, rec := range records {
		replaced[rec.Component.FullName()] = true
	}
	kept := existing[:0]
	for _, dto := range existing {
		if !replaced[dto.Component] {
			kept = append(kept, dto)
		}
	}
	for _, rec := range records {
		kept = append(kept, toSoftTagDTO(rec))
	}

	if err := s.writeSoftTags(kept); err != nil {
		return bserrors.IOWrap(err, op, "failed to write soft tags")
	}
	return nil
}

// ListSoftTags returns all pending soft tags in the order they were recorded.
func (s *FileStore) ListSoftTags(ctx context.Context) ([]tag.SoftTagRecord, error) {
	const op = "persistence.FileStore.ListSoftTags"
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dtos, err := s.readSoftTags()
	if err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to read soft tags")
	}
	out := make([]tag.SoftTagRecord, 0, len(dtos))
	for _, dto := range dtos {
		rec, err := fromSoftTagDTO(dto)
		if err != nil {
			return nil, bserrors.StateWrap(err, op, "corrupt soft tag store")
		}
		out = append(out, rec)
	}
	return out, nil
}

// DeleteSoftTags removes the pending soft tags of the given components.
func (s *FileStore) DeleteSoftTags(ctx context.Context, ids []component.ID) error {
	const op = "persistence.FileStore.DeleteSoftTags"
	if err := checkContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readSoftTags()
	if err != nil {
		return bserrors.IOWrap(err, op, "failed to read soft tags")
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id.FullName()] = true
	}
	kept := existing[:0]
	for _, dto := range existing {
		if !drop[dto.Component] {
			kept = append(kept, dto)
		}
	}
	if err := s.writeSoftTags(kept); err != nil {
		return bserrors.IOWrap(err, op, "failed to write soft tags")
	}
	return nil
}

// SaveArtifacts records the artifacts of a component version.
func (s *FileStore) SaveArtifacts(ctx context.Context, id component.ID, artifacts []artifact.Artifact) error {
	const op = "persistence.FileStore.SaveArtifacts"
	if err := checkContext(ctx); err != nil {
		return err
	}
	if !id.HasVersion() {
		return bserrors.Validation(op, fmt.Sprintf("artifacts of %s need a version", id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dto := componentArtifactsDTO{Component: id.String(), Artifacts: make([]artifactDTO, 0, len(artifacts))}
	for _, a := range artifacts {
		dto.Artifacts = append(dto.Artifacts, toArtifactDTO(a))
	}
	if err := fileutil.AtomicWriteJSON(s.artifactsPath(id), dto); err != nil {
		return bserrors.IOWrap(err, op, "failed to write artifacts")
	}
	return nil
}

// ListArtifacts returns the artifacts of a component version.
func (s *FileStore) ListArtifacts(ctx context.Context, id component.ID) ([]artifact.Artifact, error) {
	const op = "persistence.FileStore.ListArtifacts"
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if !id.HasVersion() {
		return nil, bserrors.Validation(op, fmt.Sprintf("artifacts of %s need a version", id))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var dto componentArtifactsDTO
	if _, err := fileutil.ReadJSON(s.artifactsPath(id), &dto); err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to read artifacts")
	}
	out := make([]artifact.Artifact, 0, len(dto.Artifacts))
	for _, a := range dto.Artifacts {
		out = append(out, fromArtifactDTO(id, a))
	}
	return out, nil
}
