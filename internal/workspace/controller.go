// Package workspace owns the single active editable record: it mediates
// between the intake queue and the form fields, and saves/restores
// in-progress edits when the active document changes.
package workspace

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/safesite-labs/sitelog-intake/constants"
	"github.com/safesite-labs/sitelog-intake/internal/common"
	"github.com/safesite-labs/sitelog-intake/internal/entity"
	"github.com/safesite-labs/sitelog-intake/internal/extract"
	"github.com/safesite-labs/sitelog-intake/internal/queue"
)

// Controller holds the active-document state explicitly; nothing here is
// ambient or global, so independent workspaces can coexist in tests.
type Controller struct {
	queue  *queue.Store
	coord  *extract.Coordinator
	logger *slog.Logger
	now    func() time.Time

	activeID uuid.UUID // uuid.Nil when nothing is selected
	fields   *entity.EditableFieldSet
	loaded   *entity.EditableFieldSet // pristine copy at load time, for dirty tracking

	// authored marks a fieldset restored from a snapshot: it is operator
	// work even while clean against its load, so a late extraction outcome
	// must not replace it.
	authored bool

	// stickyTeam survives fieldset resets as a convenience default: crews
	// usually batch one team's sheets together.
	stickyTeam string
}

type Option func(*Controller)

// WithClock overrides the time source (the "today" default for new sheets).
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func NewController(q *queue.Store, coord *extract.Coordinator, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		queue:  q,
		coord:  coord,
		logger: logger,
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ActiveID returns the active document id, if any.
func (c *Controller) ActiveID() (uuid.UUID, bool) {
	return c.activeID, c.activeID != uuid.Nil
}

// Fields returns the live editable fieldset for the active document. The
// caller edits through the returned pointer; nil when nothing is active.
func (c *Controller) Fields() *entity.EditableFieldSet {
	return c.fields
}

// Dirty reports whether the active fieldset differs from what was loaded
// when the document became active.
func (c *Controller) Dirty() bool {
	if c.fields == nil {
		return false
	}
	return !c.fields.Equal(c.loaded)
}

// SetStickyTeam records the last-chosen team, used as the default for
// subsequent blank fieldsets.
func (c *Controller) SetStickyTeam(team string) {
	c.stickyTeam = team
}

// SelectActive makes the given document the active selection. In order:
// the previous document's unsaved edits are snapshotted (unless it just
// went DONE), the new document's snapshot is restored verbatim or the
// fieldset is reset to blanks with sticky defaults, a filename date is
// inferred best-effort, and extraction is auto-triggered for a PENDING
// document with payload. Selecting the document that is already active
// leaves the live fieldset untouched. The returned channel is non-nil only
// when this call triggered extraction.
func (c *Controller) SelectActive(ctx context.Context, id uuid.UUID) (<-chan extract.Outcome, error) {
	doc, err := c.queue.Get(id)
	if err != nil {
		return nil, err
	}

	if c.activeID == id && c.fields != nil {
		// Re-selecting the active document is a no-op; the live fieldset,
		// edits included, stays as it is.
		c.logger.Debug("workspace.reselect_noop", "doc_id", id)
		return nil, nil
	}
	if c.activeID != uuid.Nil {
		c.stashCurrent()
	}
	c.activeID = id

	if doc.EditSnapshot != nil {
		c.fields = doc.EditSnapshot.Clone()
		c.authored = true
		if c.fields.CandidateIndex != entity.ManualEntry {
			// Restore the candidate selection along with the fields; a
			// snapshot can predate candidates (extraction resolved after
			// the operator navigated away), so a stale index is dropped
			// and the fieldset falls back to manual entry.
			if err := c.coord.Select(id, c.fields.CandidateIndex); err != nil {
				c.logger.Debug("workspace.restore_candidate_skipped", "doc_id", id, "index", c.fields.CandidateIndex)
				c.fields.CandidateIndex = entity.ManualEntry
			}
		}
		c.logger.Info("workspace.restore", "doc_id", id, "candidate", c.fields.CandidateIndex)
	} else {
		c.fields = c.blankFields()
		c.authored = false
		if d, ok := InferDate(doc.Payload.Filename); ok {
			c.fields.LogDate = d
		}
		if idx := c.coord.SelectedIndex(id); idx != entity.ManualEntry {
			// Extraction already resolved in the background; show the
			// selected candidate.
			cands := c.coord.Candidates(id)
			c.projectCandidate(cands[idx], idx)
		}
		c.logger.Info("workspace.select", "doc_id", id, "state", doc.State, "date", c.fields.LogDate)
	}
	c.loaded = c.fields.Clone()

	if doc.State == constants.DocPending && len(doc.Payload.Data) > 0 {
		ch, err := c.coord.Trigger(ctx, id, false)
		if err != nil {
			// Someone beat us to the trigger; the state guard already did
			// its job and the selection itself stands.
			c.logger.Debug("workspace.auto_trigger_skipped", "doc_id", id, "reason", err)
			return nil, nil
		}
		return ch, nil
	}
	return nil, nil
}

// RemoveDocument takes a document out of the queue. When it was the active
// selection, the first non-DONE document after its position becomes active,
// or the selection is cleared when none remains. Its unsaved edits vanish
// with it.
func (c *Controller) RemoveDocument(ctx context.Context, id uuid.UUID) error {
	next, hasNext := c.queue.NextEligible(id, false)
	if err := c.queue.Remove(id); err != nil {
		return err
	}
	if c.activeID != id {
		return nil
	}
	c.activeID = uuid.Nil
	c.fields = nil
	c.loaded = nil
	c.authored = false
	if hasNext {
		_, err := c.SelectActive(ctx, next.ID)
		return err
	}
	c.logger.Info("workspace.remove_cleared_selection", "doc_id", id)
	return nil
}

// ClearActive drops the active selection, snapshotting unsaved work first.
func (c *Controller) ClearActive() {
	if c.activeID != uuid.Nil {
		c.stashCurrent()
	}
	c.activeID = uuid.Nil
	c.fields = nil
	c.loaded = nil
	c.authored = false
}

// SelectCandidate switches the editable fields to reflect a different
// extracted candidate. Candidates are read-only source data, so edits made
// while another candidate was selected are not destroyed anywhere durable;
// only committing writes a record.
func (c *Controller) SelectCandidate(index int) error {
	if c.activeID == uuid.Nil {
		return common.NewAppError("NO_ACTIVE_DOCUMENT", "no document is selected", common.ErrNoActiveDocument)
	}
	if err := c.coord.Select(c.activeID, index); err != nil {
		return err
	}
	cands := c.coord.Candidates(c.activeID)
	c.projectCandidate(cands[index], index)
	c.loaded = c.fields.Clone()
	c.authored = false
	c.logger.Info("workspace.candidate", "doc_id", c.activeID, "index", index, "team", cands[index].TeamLabel)
	return nil
}

// ApplyOutcome projects the first candidate of a freshly resolved
// extraction into the fieldset, provided the outcome belongs to the active
// document and the operator has not started editing.
func (c *Controller) ApplyOutcome(o extract.Outcome) {
	if o.Err != nil || len(o.Candidates) == 0 {
		return
	}
	if o.DocumentID != c.activeID || c.Dirty() || c.authored {
		return
	}
	c.projectCandidate(o.Candidates[0], 0)
	c.loaded = c.fields.Clone()
}

func (c *Controller) stashCurrent() {
	prev, err := c.queue.Get(c.activeID)
	if err != nil || prev.State == constants.DocDone {
		return
	}
	if !c.Dirty() {
		return
	}
	if err := c.queue.SaveSnapshot(c.activeID, c.fields); err != nil {
		c.logger.Error("workspace.snapshot_failed", "doc_id", c.activeID, "error", err)
	}
}

func (c *Controller) blankFields() *entity.EditableFieldSet {
	return &entity.EditableFieldSet{
		LogDate:        c.now().Format("2006-01-02"),
		TeamRef:        c.stickyTeam,
		CandidateIndex: entity.ManualEntry,
	}
}

func (c *Controller) projectCandidate(cand entity.CandidateRecord, index int) {
	f := c.fields
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
