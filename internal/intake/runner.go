// Package intake drives the document workflow end to end without an
// operator: each queued document is selected, extracted, and committed in
// queue order. It is the backend of the batch CLI; the interactive
// surfaces call the same queue/workspace/commit components directly.
package intake

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/safesite-labs/sitelog-intake/constants"
	"github.com/safesite-labs/sitelog-intake/internal/commit"
	"github.com/safesite-labs/sitelog-intake/internal/extract"
	"github.com/safesite-labs/sitelog-intake/internal/queue"
	"github.com/safesite-labs/sitelog-intake/internal/workspace"
)

// DocumentResult is the per-document outcome of a batch run.
type DocumentResult struct {
	DocumentID uuid.UUID
	Filename   string
	Candidates int
	Committed  []string // resolved team labels written to the store
	Err        error
}

type Runner struct {
	queue    *queue.Store
	coord    *extract.Coordinator
	ws       *workspace.Controller
	protocol *commit.Protocol
	logger   *slog.Logger

	pollInterval time.Duration
}

func NewRunner(q *queue.Store, coord *extract.Coordinator, ws *workspace.Controller, protocol *commit.Protocol, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		queue:        q,
		coord:        coord,
		ws:           ws,
		protocol:     protocol,
		logger:       logger,
		pollInterval: 50 * time.Millisecond,
	}
}

// Run processes every non-DONE document currently in the queue, strictly
// in queue order. Documents whose extraction fails or yields nothing are
// left in PROCESSING for a human pass; the batch never blocks on them.
func (r *Runner) Run(ctx context.Context) ([]DocumentResult, error) {
	docs := r.queue.List()
	results := make([]DocumentResult, 0, len(docs))

	for _, doc := range docs {
		current, err := r.queue.Get(doc.ID)
		if err != nil || current.State == constants.DocDone {
			continue
		}
		res := r.processDocument(ctx, current.ID, current.Payload.Filename)
		results = append(results, res)

		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		var batchErr *commit.BatchError
		if errors.As(res.Err, &batchErr) {
			// Some records are confirmed, some uncertain; stop the whole
			// run so the operator sees the report before more documents
			// pile on.
			return results, res.Err
		}
	}
	return results, nil
}

func (r *Runner) processDocument(ctx context.Context, docID uuid.UUID, filename string) DocumentResult {
	res := DocumentResult{DocumentID: docID, Filename: filename}

	ch, err := r.ws.SelectActive(ctx, docID)
	if err != nil {
		res.Err = err
		return res
	}

	if ch != nil {
		select {
		case <-ctx.Done():
			res.Err = ctx.Err()
			return res
		case outcome := <-ch:
			if outcome.Err != nil {
				r.logger.Warn("intake.extract_failed_leaving_for_review",
					"doc_id", docID, "filename", filename, "error", outcome.Err)
				res.Err = outcome.Err
				return res
			}
			r.ws.ApplyOutcome(outcome)
		}
	} else {
		// A prior selection (commit auto-advance) already triggered this
		// document; its outcome lands in the coordinator regardless of who
		// holds the channel, so polling for resolution is enough.
		if err := r.waitInFlight(ctx, docID); err != nil {
			res.Err = err
			return res
		}
		if cands := r.coord.Candidates(docID); len(cands) > 0 {
			r.ws.ApplyOutcome(extract.Outcome{DocumentID: docID, Candidates: cands})
		}
	}

	res.Candidates = len(r.coord.Candidates(docID))
	res.Committed, res.Err = r.commitDocument(ctx, docID, res.Candidates)
	return res
}

func (r *Runner) waitInFlight(ctx context.Context, docID uuid.UUID) error {
	if !r.coord.InFlight(docID) {
		return nil
	}
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !r.coord.InFlight(docID) {
				return nil
			}
		}
	}
}

func (r *Runner) commitDocument(ctx context.Context, docID uuid.UUID, candidates int) ([]string, error) {
	switch {
	case candidates > 1:
		entries, err := r.protocol.CommitAll(ctx)
		labels := make([]string, len(entries))
		for i, e := range entries {
			labels[i] = e.Team.DisplayName
		}
		return labels, err
	case candidates == 1:
		entry, err := r.protocol.CommitSingle(ctx, true)
		if err != nil {
			return nil, err
		}
		return []string{entry.Team.DisplayName}, nil
	default:
		// Nothing extracted and nobody to type fields in: leave the
		// document for interactive review rather than committing an empty
		// record.
		r.logger.Info("intake.no_candidates_left_for_review", "doc_id", docID)
		return nil, nil
	}
}
