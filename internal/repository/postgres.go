package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/safesite-labs/sitelog-intake/internal/common"
	"github.com/safesite-labs/sitelog-intake/internal/entity"
)

const createEntriesPG = `
CREATE TABLE IF NOT EXISTS entries (
	id          TEXT PRIMARY KEY,
	document_id UUID NOT NULL,
	team_id     TEXT NOT NULL,
	team_name   TEXT NOT NULL,
	team_adhoc  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL,
	fields_json JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_document_idx ON entries (document_id);`

// PostgresStore is the shared site-office EntryStore, backed by a pgx pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ EntryStore = (*PostgresStore)(nil)

// OpenPostgres creates a pgx pool, verifies connectivity and ensures the
// entries table exists.
func OpenPostgres(ctx context.Context, cfg common.StoreConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "sitelog-intake"

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, createEntriesPG); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create entries table: %w", err)
	}
	logger.Info("store.postgres.ready")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Put(ctx context.Context, entry *entity.CommittedEntry) error {
	fields, err := json.Marshal(entry.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO entries (id, document_id, team_id, team_name, team_adhoc, created_at, fields_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			team_id = EXCLUDED.team_id,
			team_name = EXCLUDED.team_name,
			team_adhoc = EXCLUDED.team_adhoc,
			fields_json = EXCLUDED.fields_json`,
		entry.ID, entry.DocumentID, entry.Team.ID, entry.Team.DisplayName,
		entry.Team.Synthesized, entry.CreatedAt.UTC(), fields)
	if err != nil {
		s.logger.Error("store.postgres.put_failed", "entry_id", entry.ID, "error", err)
		return common.NewAppError("STORE_PUT", fmt.Sprintf("store entry %s", entry.ID),
			fmt.Errorf("%w: %w", common.ErrPersistence, err))
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*entity.CommittedEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, document_id, team_id, team_name, team_adhoc, created_at, fields_json
		FROM entries WHERE id = $1`, id)
	entry, err := scanPGEntry(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("ENTRY_NOT_FOUND", fmt.Sprintf("entry %s not found", id), common.ErrNotFound)
	}
	return entry, err
}

func (s *PostgresStore) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*entity.CommittedEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, team_id, team_name, team_adhoc, created_at, fields_json
		FROM entries WHERE document_id = $1 ORDER BY created_at, id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []*entity.CommittedEntry
	for rows.Next() {
		entry, err := scanPGEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanPGEntry(scan func(dest ...any) error) (*entity.CommittedEntry, error) {
	var (
		e          entity.CommittedEntry
		createdAt  time.Time
		fieldsJSON []byte
	)
	if err := scan(&e.ID, &e.DocumentID, &e.Team.ID, &e.Team.DisplayName, &e.Team.Synthesized, &createdAt, &fieldsJSON); err != nil {
		return nil, err
	}
	e.CreatedAt = createdAt.UTC()
	if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return &e, nil
}
