package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/safesite-labs/sitelog-intake/internal/common"
	"github.com/safesite-labs/sitelog-intake/internal/entity"
)

const createEntriesSQL = `
CREATE TABLE IF NOT EXISTS entries (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	team_id     TEXT NOT NULL,
	team_name   TEXT NOT NULL,
	team_adhoc  INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	fields_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_document_idx ON entries (document_id);`

// SQLiteStore is the local single-operator EntryStore.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ EntryStore = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the entries database at path.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, createEntriesSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create entries table: %w", err)
	}
	logger.Info("store.sqlite.open", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, entry *entity.CommittedEntry) error {
	fields, err := json.Marshal(entry.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (id, document_id, team_id, team_name, team_adhoc, created_at, fields_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			team_id = excluded.team_id,
			team_name = excluded.team_name,
			team_adhoc = excluded.team_adhoc,
			fields_json = excluded.fields_json`,
		entry.ID, entry.DocumentID.String(), entry.Team.ID, entry.Team.DisplayName,
		entry.Team.Synthesized, entry.CreatedAt.UTC().Format(time.RFC3339Nano), string(fields))
	if err != nil {
		s.logger.Error("store.sqlite.put_failed", "entry_id", entry.ID, "error", err)
		return common.NewAppError("STORE_PUT", fmt.Sprintf("store entry %s", entry.ID),
			fmt.Errorf("%w: %w", common.ErrPersistence, err))
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*entity.CommittedEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, team_id, team_name, team_adhoc, created_at, fields_json
		FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("ENTRY_NOT_FOUND", fmt.Sprintf("entry %s not found", id), common.ErrNotFound)
	}
	return entry, err
}

func (s *SQLiteStore) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*entity.CommittedEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, team_id, team_name, team_adhoc, created_at, fields_json
		FROM entries WHERE document_id = ? ORDER BY created_at, id`, documentID.String())
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []*entity.CommittedEntry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanEntry(scan func(dest ...any) error) (*entity.CommittedEntry, error) {
	var (
		e          entity.CommittedEntry
		docID      string
		createdAt  string
		fieldsJSON string
	)
	if err := scan(&e.ID, &docID, &e.Team.ID, &e.Team.DisplayName, &e.Team.Synthesized, &createdAt, &fieldsJSON); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(docID)
	if err != nil {
		return nil, fmt.Errorf("parse document id %q: %w", docID, err)
	}
	e.DocumentID = id
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &e.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return &e, nil
}
