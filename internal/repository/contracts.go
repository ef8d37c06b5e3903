package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/safesite-labs/sitelog-intake/internal/entity"
)

// EntryStore persists committed entries keyed by id. Put is an idempotent,
// id-keyed upsert: replaying the same entry is harmless, and the
// surrounding application performs update-in-place through the same call.
type EntryStore interface {
	Put(ctx context.Context, entry *entity.CommittedEntry) error
	Get(ctx context.Context, id string) (*entity.CommittedEntry, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*entity.CommittedEntry, error)
}
