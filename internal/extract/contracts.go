package extract

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/safesite-labs/sitelog-intake/internal/entity"
)

// Service analyzes a scanned document and returns zero or more candidate
// records, one per team found on the sheet. Latency is seconds; the
// coordinator guarantees at most one call per document unless the operator
// explicitly retries. Guidelines is an optional ordered list of
// high-priority hazard phrases the service may use to enrich matching;
// absence is not an error. A timeout and a service error are the same
// failure to callers.
type Service interface {
	Extract(ctx context.Context, payload entity.Payload, guidelines []string) ([]entity.CandidateRecord, error)
}

// Outcome is delivered when a triggered extraction resolves. Candidates is
// empty both on failure and on a successful run that found nothing; Err
// distinguishes the two so the caller can fall back to manual entry with
// the right message.
type Outcome struct {
	DocumentID uuid.UUID
	Candidates []entity.CandidateRecord
	Err        error
	Elapsed    time.Duration
}
