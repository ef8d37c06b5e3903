package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/safesite-labs/sitelog-intake/constants"
	"github.com/safesite-labs/sitelog-intake/internal/common"
	"github.com/safesite-labs/sitelog-intake/internal/entity"
	"github.com/safesite-labs/sitelog-intake/internal/queue"
)

// Coordinator invokes the extraction service at most once concurrently per
// document, fans its result into candidate records, and tracks which
// candidate is currently selected for editing.
//
// The guard against double-charging the service is the lifecycle field
// itself: a PENDING document is moved to PROCESSING synchronously, before
// the asynchronous call is issued, so a re-selection of the same document
// no longer observes PENDING and cannot re-trigger.
type Coordinator struct {
	svc        Service
	queue      *queue.Store
	guidelines []string
	logger     *slog.Logger

	mu         sync.Mutex
	inflight   map[uuid.UUID]struct{}
	candidates map[uuid.UUID][]entity.CandidateRecord
	selected   map[uuid.UUID]int
	wg         sync.WaitGroup
}

func NewCoordinator(svc Service, q *queue.Store, guidelines []string, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if guidelines == nil {
		guidelines = constants.DefaultHazardPhrases
	}
	return &Coordinator{
		svc:        svc,
		queue:      q,
		guidelines: guidelines,
		logger:     logger,
		inflight:   make(map[uuid.UUID]struct{}),
		candidates: make(map[uuid.UUID][]entity.CandidateRecord),
		selected:   make(map[uuid.UUID]int),
	}
}

// Trigger starts extraction for a document and returns a channel that
// delivers the outcome exactly once. The result is applied to the
// document's state when it resolves even if nobody reads the channel, so a
// document never stays stuck waiting on a discarded call.
//
// The auto path (manual=false) requires the document to be PENDING; the
// manual retry path also accepts PROCESSING (a document left there by an
// earlier failure). A second trigger while a call is outstanding is
// rejected with ErrExtractionInFlight. A DONE document is never extracted.
func (c *Coordinator) Trigger(ctx context.Context, docID uuid.UUID, manual bool) (<-chan Outcome, error) {
	doc, err := c.queue.Get(docID)
	if err != nil {
		return nil, err
	}
	if len(doc.Payload.Data) == 0 {
		return nil, common.NewAppError("NO_PAYLOAD",
			fmt.Sprintf("document %s has no payload to extract from", docID), common.ErrInvalidInput)
	}
	if doc.State == constants.DocDone {
		return nil, common.NewAppError("ILLEGAL_TRANSITION",
			fmt.Sprintf("document %s is done and is never re-extracted", docID), common.ErrIllegalTransition)
	}

	c.mu.Lock()
	if _, busy := c.inflight[docID]; busy {
		c.mu.Unlock()
		c.logger.Warn("extract.reject_inflight", "doc_id", docID, "manual", manual)
		return nil, common.NewAppError("EXTRACTION_IN_FLIGHT",
			fmt.Sprintf("extraction for document %s is already outstanding", docID), common.ErrExtractionInFlight)
	}
	if doc.State == constants.DocPending {
		// The guard transition, taken before the async call begins.
		if err := c.queue.SetState(docID, constants.DocProcessing); err != nil {
			c.mu.Unlock()
			return nil, err
		}
	} else if !manual {
		c.mu.Unlock()
		return nil, common.NewAppError("EXTRACTION_IN_FLIGHT",
			fmt.Sprintf("document %s was already triggered", docID), common.ErrExtractionInFlight)
	}
	c.inflight[docID] = struct{}{}
	c.mu.Unlock()

	c.logger.Info("extract.trigger", "doc_id", docID, "manual", manual,
		"mime", doc.Payload.MIMEType, "bytes", len(doc.Payload.Data), "guidelines", len(c.guidelines))

	ch := make(chan Outcome, 1)
	c.wg.Add(1)
	// Request id correlates the service call's log lines with this trigger.
	ctx = common.WithRequestID(ctx, uuid.New().String())
	go func() {
		defer c.wg.Done()
		start := time.Now()
		cands, err := c.svc.Extract(ctx, doc.Payload, c.guidelines)
		elapsed := time.Since(start)

		c.mu.Lock()
		delete(c.inflight, docID)
		if err == nil {
			c.candidates[docID] = cands
			if len(cands) > 0 {
				c.selected[docID] = 0
			} else {
				delete(c.selected, docID)
			}
		}
		c.mu.Unlock()

		if err != nil {
			// Fail open: the document stays PROCESSING so it is not
			// silently retried, and the operator proceeds manually or
			// retries explicitly.
			c.logger.Error("extract.failed", "doc_id", docID, "error", err, "elapsed_ms", elapsed.Milliseconds())
			err = common.NewAppError("EXTRACTION_FAILED", "extraction service failed",
				fmt.Errorf("%w: %w", common.ErrExtractionFailed, err))
		} else if len(cands) == 0 {
			c.logger.Warn("extract.empty", "doc_id", docID, "elapsed_ms", elapsed.Milliseconds())
		} else {
			c.logger.Info("extract.ok", "doc_id", docID, "candidates", len(cands), "elapsed_ms", elapsed.Milliseconds())
		}
		ch <- Outcome{DocumentID: docID, Candidates: cands, Err: err, Elapsed: elapsed}
	}()
	return ch, nil
}

// InFlight reports whether an extraction call is outstanding for the
// document.
func (c *Coordinator) InFlight(docID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[docID]
	return ok
}

// Candidates returns a copy of the extracted candidates for a document.
func (c *Coordinator) Candidates(docID uuid.UUID) []entity.CandidateRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	cands := c.candidates[docID]
	out := make([]entity.CandidateRecord, len(cands))
	copy(out, cands)
	return out
}

// SelectedIndex returns the currently selected candidate index, or
// entity.ManualEntry when the document has no candidates.
func (c *Coordinator) SelectedIndex(docID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.selected[docID]; ok {
		return idx
	}
	return entity.ManualEntry
}

// Select switches the selected candidate for a document.
func (c *Coordinator) Select(docID uuid.UUID, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cands := c.candidates[docID]
	if index < 0 || index >= len(cands) {
		return common.NewAppError("CANDIDATE_OUT_OF_RANGE",
			fmt.Sprintf("candidate %d of %d for document %s", index, len(cands), docID), common.ErrInvalidInput)
	}
	c.selected[docID] = index
	return nil
}

// Shutdown waits for outstanding extraction calls to resolve, or for the
// context to expire.
func (c *Coordinator) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() { defer close(done); c.wg.Wait() }()

	select {
	case <-ctx.Done():
		c.logger.Warn("extract.shutdown_interrupted")
	case <-done:
		c.logger.Info("extract.shutdown_complete")
	}
}
