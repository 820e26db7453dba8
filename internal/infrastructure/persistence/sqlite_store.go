package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/relicta-tech/bitsmith/internal/domain/artifact"
	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

// SQLiteFileName is the database file created under the store path.
const SQLiteFileName = "bitsmith.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tag_records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	component TEXT NOT NULL,
	version TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	commit_hash TEXT NOT NULL DEFAULT '',
	run_id TEXT NOT NULL DEFAULT '',
	auto_tagged INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tag_records_component ON tag_records(component);

CREATE TABLE IF NOT EXISTS soft_tags (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	component TEXT NOT NULL UNIQUE,
	payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS artifacts (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	component TEXT NOT NULL,
	version TEXT NOT NULL,
	aspect TEXT NOT NULL,
	task TEXT NOT NULL,
	root TEXT NOT NULL,
	files TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artifacts_component ON artifacts(component, version);
`

// SQLiteStore implements the version, soft tag and artifact stores on an
// embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and creates if needed) the database under basePath.
func NewSQLiteStore(basePath string) (*SQLiteStore, error) {
	const op = "persistence.NewSQLiteStore"
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to create store directory")
	}

	db, err := sql.Open("sqlite", filepath.Join(basePath, SQLiteFileName))
	if err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to open database")
	}
	// A single connection serializes writers and keeps the file lock simple.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, bserrors.IOWrap(err, op, "failed to initialize schema")
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryRecords(ctx context.Context, id component.ID) ([]tag.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, message, content_hash, commit_hash, run_id, auto_tagged, created_at
		FROM tag_records WHERE component = ? ORDER BY seq`, id.FullName())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	base := id.WithoutVersion()
	var out []tag.Record
	for rows.Next() {
		var dto recordDTO
		var autoTagged int
		if err := rows.Scan(&dto.Version, &dto.Message, &dto.ContentHash, &dto.Commit, &dto.RunID, &autoTagged, &dto.CreatedAt); err != nil {
			return nil, err
		}
		dto.AutoTagged = autoTagged != 0
		out = append(out, fromRecordDTO(base, dto))
	}
	return out, rows.Err()
}

// LatestRecord returns the most recently saved record of a component.
func (s *SQLiteStore) LatestRecord(ctx context.Context, id component.ID) (*tag.Record, error) {
	const op = "persistence.SQLiteStore.LatestRecord"
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.queryRecords(ctx, id)
	if err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to query tag records")
	}
	if len(records) == 0 {
		return nil, nil
	}
	latest := records[len(records)-1]
	return &latest, nil
}

// Versions returns every recorded version of a component in save order.
func (s *SQLiteStore) Versions(ctx context.Context, id component.ID) ([]string, error) {
	const op = "persistence.SQLiteStore.Versions"
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.queryRecords(ctx, id)
	if err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to query tag records")
	}
	versions := make([]string, 0, len(records))
	for _, r := range records {
		versions = append(versions, r.Version)
	}
	return versions, nil
}

// SaveRecords appends records in a single transaction.
func (s *SQLiteStore) SaveRecords(ctx context.Context, records []tag.Record) error {
	const op = "persistence.SQLiteStore.SaveRecords"
	if err := checkContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		for _, rec := range records {
			if rec.Version == "" {
				return bserrors.Validation(op, fmt.Sprintf("record for %s has no version", rec.Component))
			}
			dto := toRecordDTO(rec)
			autoTagged := 0
			if dto.AutoTagged {
				autoTagged = 1
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO tag_records (component, version, message, content_hash, commit_hash, run_id, auto_tagged, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.Component.FullName(), dto.Version, dto.Message, dto.ContentHash, dto.Commit, dto.RunID, autoTagged, dto.CreatedAt,
			); err != nil {
				return bserrors.IOWrap(err, op, "failed to insert tag record")
			}
		}
		return nil
	})
}

// SaveSoftTags records soft tags, replacing pending ones of the same components.
func (s *SQLiteStore) SaveSoftTags(ctx context.Context, records []tag.SoftTagRecord) error {
	const op = "persistence.SQLiteStore.SaveSoftTags"
	if err := checkContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		for _, rec := range records {
			payload, err := json.Marshal(toSoftTagDTO(rec))
			if err != nil {
				return bserrors.InternalWrap(err, op, "failed to marshal soft tag")
			}
			key := rec.Component.FullName()
			// Delete then insert so replaced tags move to the end of the list.
			if _, err := tx.ExecContext(ctx, `DELETE FROM soft_tags WHERE component = ?`, key); err != nil {
				return bserrors.IOWrap(err, op, "failed to replace soft tag")
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO soft_tags (component, payload) VALUES (?, ?)`, key, string(payload)); err != nil {
				return bserrors.IOWrap(err, op, "failed to insert soft tag")
			}
		}
		return nil
	})
}

// ListSoftTags returns all pending soft tags in the order they were recorded.
func (s *SQLiteStore) ListSoftTags(ctx context.Context) ([]tag.SoftTagRecord, error) {
	const op = "persistence.SQLiteStore.ListSoftTags"
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM soft_tags ORDER BY seq`)
	if err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to query soft tags")
	}
	defer rows.Close()

	out := []tag.SoftTagRecord{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, bserrors.IOWrap(err, op, "failed to scan soft tag")
		}
		var dto softTagDTO
		if err := json.Unmarshal([]byte(payload), &dto); err != nil {
			return nil, bserrors.StateWrap(err, op, "corrupt soft tag store")
		}
		rec, err := fromSoftTagDTO(dto)
		if err != nil {
			return nil, bserrors.StateWrap(err, op, "corrupt soft tag store")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to read soft tags")
	}
	return out, nil
}

// DeleteSoftTags removes the pending soft tags of the given components.
func (s *SQLiteStore) DeleteSoftTags(ctx context.Context, ids []component.ID) error {
	const op = "persistence.SQLiteStore.DeleteSoftTags"
	if err := checkContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM soft_tags WHERE component = ?`, id.FullName()); err != nil {
				return bserrors.IOWrap(err, op, "failed to delete soft tag")
			}
		}
		return nil
	})
}

// SaveArtifacts records the artifacts of a component version.
func (s *SQLiteStore) SaveArtifacts(ctx context.Context, id component.ID, artifacts []artifact.Artifact) error {
	const op = "persistence.SQLiteStore.SaveArtifacts"
	if err := checkContext(ctx); err != nil {
		return err
	}
	if !id.HasVersion() {
		return bserrors.Validation(op, fmt.Sprintf("artifacts of %s need a version", id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE component = ? AND version = ?`, id.FullName(), id.Version); err != nil {
			return bserrors.IOWrap(err, op, "failed to replace artifacts")
		}
		for _, a := range artifacts {
			files, err := json.Marshal(a.Files)
			if err != nil {
				return bserrors.InternalWrap(err, op, "failed to marshal artifact files")
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO artifacts (component, version, aspect, task, root, files)
				VALUES (?, ?, ?, ?, ?, ?)`,
				id.FullName(), id.Version, a.Aspect, a.Task, a.Root, string(files),
			); err != nil {
				return bserrors.IOWrap(err, op, "failed to insert artifact")
			}
		}
		return nil
	})
}

// ListArtifacts returns the artifacts of a component version.
func (s *SQLiteStore) ListArtifacts(ctx context.Context, id component.ID) ([]artifact.Artifact, error) {
	const op = "persistence.SQLiteStore.ListArtifacts"
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if !id.HasVersion() {
		return nil, bserrors.Validation(op, fmt.Sprintf("artifacts of %s need a version", id))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT aspect, task, root, files FROM artifacts
		WHERE component = ? AND version = ? ORDER BY seq`, id.FullName(), id.Version)
	if err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to query artifacts")
	}
	defer rows.Close()

	out := []artifact.Artifact{}
	for rows.Next() {
		var dto artifactDTO
		var files string
		if err := rows.Scan(&dto.Aspect, &dto.Task, &dto.Root, &files); err != nil {
			return nil, bserrors.IOWrap(err, op, "failed to scan artifact")
		}
		if err := json.Unmarshal([]byte(files), &dto.Files); err != nil {
			return nil, bserrors.StateWrap(err, op, "corrupt artifact store")
		}
		out = append(out, fromArtifactDTO(id, dto))
	}
	if err := rows.Err(); err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to read artifacts")
	}
	return out, nil
}

func (s *SQLiteStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return bserrors.IOWrap(err, op, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return bserrors.IOWrap(err, op, "failed to commit transaction")
	}
	return nil
}
