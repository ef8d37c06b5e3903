// Package commit implements the two save modes: single-record commit with
// optional advance, and save-all-for-document. Both share one build step
// (resolve team, assign unique id, copy fields) so identifier behavior
// cannot diverge between the paths.
package commit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/safesite-labs/sitelog-intake/constants"
	"github.com/safesite-labs/sitelog-intake/internal/common"
	"github.com/safesite-labs/sitelog-intake/internal/entity"
	"github.com/safesite-labs/sitelog-intake/internal/extract"
	"github.com/safesite-labs/sitelog-intake/internal/queue"
	"github.com/safesite-labs/sitelog-intake/internal/repository"
	"github.com/safesite-labs/sitelog-intake/internal/teams"
	"github.com/safesite-labs/sitelog-intake/internal/workspace"
)

type Protocol struct {
	queue    *queue.Store
	coord    *extract.Coordinator
	ws       *workspace.Controller
	registry *teams.Registry
	store    repository.EntryStore
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Protocol)

// WithClock overrides the time source used for entry ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Protocol) {
		if now != nil {
			p.now = now
		}
	}
}

func NewProtocol(
	q *queue.Store,
	coord *extract.Coordinator,
	ws *workspace.Controller,
	registry *teams.Registry,
	store repository.EntryStore,
	logger *slog.Logger,
	opts ...Option,
) *Protocol {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Protocol{
		queue:    q,
		coord:    coord,
		ws:       ws,
		registry: registry,
		store:    store,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// CommitSingle commits exactly the current fieldset as one entry. With
// advance, the document is closed out and the next eligible document
// becomes active; without it, the document stays open so another team's
// record can be added against the same evidence, and the selection moves
// to the next unreviewed candidate when one exists.
func (p *Protocol) CommitSingle(ctx context.Context, advance bool) (*entity.CommittedEntry, error) {
	docID, ok := p.ws.ActiveID()
	if !ok {
		return nil, common.NewAppError("NO_ACTIVE_DOCUMENT", "nothing is selected to commit", common.ErrNoActiveDocument)
	}
	doc, err := p.queue.Get(docID)
	if err != nil {
		return nil, err
	}
	fields := p.ws.Fields().Clone()
	if err := p.attachEvidence(doc, fields); err != nil {
		return nil, err
	}

	batchTime := p.now().UTC()
	entry, err := p.buildEntry(docID, fields, batchTime, 0)
	if err != nil {
		return nil, err
	}
	if err := p.persist(ctx, entry); err != nil {
		return nil, err
	}
	_ = p.queue.RecordCommittedLabel(docID, entry.Team.DisplayName)
	p.ws.SetStickyTeam(entry.Fields.TeamRef)

	p.logger.Info("commit.single.ok",
		"doc_id", docID, "entry_id", entry.ID, "team", entry.Team.DisplayName, "advance", advance)

	if advance {
		if err := p.closeOut(ctx, docID); err != nil {
			return entry, err
		}
	} else {
		if err := p.queue.SaveSnapshot(docID, p.ws.Fields()); err != nil {
			return entry, err
		}
		p.advanceCandidate(docID)
	}
	return entry, nil
}

// CommitAll commits every extracted candidate of the active document as its
// own entry in one batch, all sharing the document's evidence. Available
// only when extraction produced more than one candidate. Already-written
// entries stay in place when persistence fails mid-batch; the returned
// BatchError says exactly which records are confirmed and which were never
// attempted.
func (p *Protocol) CommitAll(ctx context.Context) ([]*entity.CommittedEntry, error) {
	docID, ok := p.ws.ActiveID()
	if !ok {
		return nil, common.NewAppError("NO_ACTIVE_DOCUMENT", "nothing is selected to commit", common.ErrNoActiveDocument)
	}
	doc, err := p.queue.Get(docID)
	if err != nil {
		return nil, err
	}
	cands := p.coord.Candidates(docID)
	if len(cands) < 2 {
		return nil, common.NewAppError("SINGLE_CANDIDATE",
			fmt.Sprintf("commit-all needs multiple candidates, document %s has %d", docID, len(cands)),
			common.ErrInvalidInput)
	}

	live := p.ws.Fields().Clone()
	if err := p.attachEvidence(doc, live); err != nil {
		return nil, err
	}
	selected := p.coord.SelectedIndex(docID)
	batchTime := p.now().UTC()

	// Build everything up front so a validation problem fails the batch
	// before anything is written.
	built := make([]*entity.CommittedEntry, len(cands))
	for i, cand := range cands {
		src := live.Clone()
		if i != selected {
			projectCandidate(src, cand, i)
		}
		entry, err := p.buildEntry(docID, src, batchTime, i)
		if err != nil {
			return nil, err
		}
		built[i] = entry
	}

	var committed []*entity.CommittedEntry
	for i, entry := range built {
		if err := p.persist(ctx, entry); err != nil {
			batchErr := &BatchError{
				DocumentID:   docID,
				Confirmed:    labelsOf(committed),
				FailedLabel:  entry.Team.DisplayName,
				NotAttempted: labelsOf(built[i+1:]),
				Err:          err,
			}
			p.logger.Error("commit.all.partial_failure",
				"doc_id", docID, "confirmed", len(batchErr.Confirmed),
				"failed_label", batchErr.FailedLabel, "not_attempted", len(batchErr.NotAttempted), "error", err)
			return committed, batchErr
		}
		committed = append(committed, entry)
		_ = p.queue.RecordCommittedLabel(docID, entry.Team.DisplayName)
	}
	p.ws.SetStickyTeam(live.TeamRef)

	p.logger.Info("commit.all.ok", "doc_id", docID, "entries", len(committed))
	if err := p.closeOut(ctx, docID); err != nil {
		return committed, err
	}
	return committed, nil
}

// buildEntry is the shared build step for both commit paths.
func (p *Protocol) buildEntry(docID uuid.UUID, fields *entity.EditableFieldSet, batchTime time.Time, ordinal int) (*entity.CommittedEntry, error) {
	if err := p.validate.Struct(fields); err != nil {
		return nil, common.NewAppError("INVALID_FIELDS", err.Error(), common.ErrInvalidInput)
	}
	team := p.registry.Resolve(fields.TeamRef)
	return &entity.CommittedEntry{
		ID:         entryID(batchTime, ordinal),
		DocumentID: docID,
		Team:       team,
		Fields:     *fields.Clone(),
		CreatedAt:  batchTime,
	}, nil
}

func (p *Protocol) persist(ctx context.Context, entry *entity.CommittedEntry) error {
	if err := p.store.Put(ctx, entry); err != nil {
		return common.NewAppError("PERSISTENCE_FAILURE",
			fmt.Sprintf("store entry %s", entry.ID),
			fmt.Errorf("%w: %w", common.ErrPersistence, err))
	}
	return nil
}

// attachEvidence enforces the commit precondition: at least one piece of
// visual evidence. When no photo is attached, the source document image
// itself serves as fallback evidence.
func (p *Protocol) attachEvidence(doc *entity.QueuedDocument, fields *entity.EditableFieldSet) error {
	if fields.Photo != nil {
		return nil
	}
	if len(doc.Payload.Data) == 0 {
		return common.NewAppError("MISSING_EVIDENCE",
			"a photo or the source document image is required to commit", common.ErrMissingEvidence)
	}
	fields.Photo = &entity.MediaRef{
		URI:      "doc://" + doc.ID.String(),
		MIMEType: doc.Payload.MIMEType,
		Size:     int64(len(doc.Payload.Data)),
	}
	return nil
}

// closeOut moves the document to DONE, clears its snapshot, and activates
// the next eligible document. A document committed without ever being
// extracted (no payload, manual sheet) is walked through PROCESSING first
// so no lifecycle edge is skipped.
func (p *Protocol) closeOut(ctx context.Context, docID uuid.UUID) error {
	doc, err := p.queue.Get(docID)
	if err != nil {
		return err
	}
	if doc.State == constants.DocPending {
		if err := p.queue.SetState(docID, constants.DocProcessing); err != nil {
			return err
		}
	}
	if err := p.queue.SetState(docID, constants.DocDone); err != nil {
		return err
	}
	if err := p.queue.ClearSnapshot(docID); err != nil {
		return err
	}
	if next, ok := p.queue.NextEligible(docID, true); ok {
		if _, err := p.ws.SelectActive(ctx, next.ID); err != nil {
			return err
		}
	} else {
		p.ws.ClearActive()
		p.logger.Info("commit.queue_drained")
	}
	return nil
}

// advanceCandidate moves the selection to the next candidate whose
// resolved label has not been committed yet, if any.
func (p *Protocol) advanceCandidate(docID uuid.UUID) {
	doc, err := p.queue.Get(docID)
	if err != nil {
		return
	}
	cands := p.coord.Candidates(docID)
	start := p.coord.SelectedIndex(docID)
	for off := 1; off <= len(cands); off++ {
		i := (start + off) % len(cands)
		if !doc.HasCommittedLabel(p.registry.Resolve(cands[i].TeamLabel).DisplayName) {
			if err := p.ws.SelectCandidate(i); err == nil {
				return
			}
		}
	}
}

func projectCandidate(f *entity.EditableFieldSet, cand entity.CandidateRecord, index int) {
	f.TeamRef = cand.TeamLabel
	f.LeaderName = cand.LeaderName
	f.Headcount = cand.Headcount
	f.WorkDescription = cand.WorkDescription
	f.Risks = make([]entity.RiskPair, len(cand.Risks))
	copy(f.Risks, cand.Risks)
	f.Feedback = make([]string, len(cand.Feedback))
	copy(f.Feedback, cand.Feedback)
	f.CandidateIndex = index
}

func labelsOf(entries []*entity.CommittedEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Team.DisplayName
	}
	return out
}
