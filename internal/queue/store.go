// Package queue owns the ordered collection of queued documents and each
// one's lifecycle state.
package queue

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/safesite-labs/sitelog-intake/constants"
	"github.com/safesite-labs/sitelog-intake/internal/common"
	"github.com/safesite-labs/sitelog-intake/internal/entity"
)

// Store is the intake queue. Operator-driven mutations are synchronous, but
// extraction completion mutates document state from a background goroutine,
// so all access is serialized on an internal mutex.
type Store struct {
	mu     sync.Mutex
	docs   []*entity.QueuedDocument
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger, now: time.Now}
}

// Enqueue appends new documents in PENDING state, each with a freshly
// generated id, preserving input order. Existing documents and the active
// selection are not disturbed.
func (s *Store) Enqueue(payloads []entity.Payload) []*entity.QueuedDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*entity.QueuedDocument, 0, len(payloads))
	for _, p := range payloads {
		doc := &entity.QueuedDocument{
			ID:         uuid.New(),
			Payload:    p,
			State:      constants.DocPending,
			EnqueuedAt: s.now().UTC(),
		}
		s.docs = append(s.docs, doc)
		out = append(out, copyDoc(doc))
		s.logger.Info("queue.enqueue", "doc_id", doc.ID, "filename", p.Filename, "mime", p.MIMEType, "bytes", len(p.Data))
	}
	return out
}

// Get returns a copy of the document with the given id.
func (s *Store) Get(id uuid.UUID) (*entity.QueuedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return copyDoc(doc), nil
}

// List returns copies of all queued documents in queue order.
func (s *Store) List() []*entity.QueuedDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*entity.QueuedDocument, len(s.docs))
	for i, d := range s.docs {
		out[i] = copyDoc(d)
	}
	return out
}

// Len returns the number of queued documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Remove removes a document from the queue. If it was the active selection
// the caller chooses a new active document.
func (s *Store) Remove(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, idx, err := s.find(id)
	if err != nil {
		return err
	}
	s.docs = append(s.docs[:idx], s.docs[idx+1:]...)
	s.logger.Info("queue.remove", "doc_id", id, "remaining", len(s.docs))
	return nil
}

// SetState applies a lifecycle transition, rejecting illegal ones. An
// illegal transition is an invariant violation, not a silent no-op.
func (s *Store) SetState(id uuid.UUID, to constants.DocState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _, err := s.find(id)
	if err != nil {
		return err
	}
	if !constants.CanTransition(doc.State, to) {
		s.logger.Error("queue.illegal_transition", "doc_id", id, "from", doc.State, "to", to)
		return common.NewAppError("ILLEGAL_TRANSITION",
			fmt.Sprintf("document %s cannot move %s -> %s", id, doc.State, to),
			common.ErrIllegalTransition)
	}
	doc.State = to
	if to == constants.DocDone {
		doc.EditSnapshot = nil
	}
	s.logger.Info("queue.state", "doc_id", id, "state", to)
	return nil
}

// RecordCommittedLabel appends a resolved team label to the document's
// committed set. Duplicates are kept out so the set stays usable for
// progress display and duplicate-commit checks.
func (s *Store) RecordCommittedLabel(id uuid.UUID, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _, err := s.find(id)
	if err != nil {
		return err
	}
	if doc.HasCommittedLabel(label) {
		return nil
	}
	doc.CommittedLabels = append(doc.CommittedLabels, label)
	return nil
}

// SaveSnapshot stores the in-progress edit state for a document that is
// about to lose the active selection.
func (s *Store) SaveSnapshot(id uuid.UUID, snap *entity.EditableFieldSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _, err := s.find(id)
	if err != nil {
		return err
	}
	if doc.State == constants.DocDone {
		return common.NewAppError("ILLEGAL_TRANSITION",
			fmt.Sprintf("document %s is done; snapshots are cleared, not written", id),
			common.ErrIllegalTransition)
	}
	doc.EditSnapshot = snap.Clone()
	s.logger.Debug("queue.snapshot.save", "doc_id", id)
	return nil
}

// ClearSnapshot drops any stored edit state for the document.
func (s *Store) ClearSnapshot(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _, err := s.find(id)
	if err != nil {
		return err
	}
	doc.EditSnapshot = nil
	return nil
}

// NextEligible returns the first non-DONE document after the given one in
// queue order. With wrap, the scan continues from the head of the queue;
// without it (the removal path) only positions after the given one count.
func (s *Store) NextEligible(after uuid.UUID, wrap bool) (*entity.QueuedDocument, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if after != uuid.Nil {
		if _, idx, err := s.find(after); err == nil {
			start = idx + 1
		}
	}
	for i := start; i < len(s.docs); i++ {
		if s.docs[i].State != constants.DocDone {
			return copyDoc(s.docs[i]), true
		}
	}
	if wrap {
		for i := 0; i < start && i < len(s.docs); i++ {
			if s.docs[i].State != constants.DocDone && s.docs[i].ID != after {
				return copyDoc(s.docs[i]), true
			}
		}
	}
	return nil, false
}

func (s *Store) find(id uuid.UUID) (*entity.QueuedDocument, int, error) {
	for i, d := range s.docs {
		if d.ID == id {
			return d, i, nil
		}
	}
	return nil, -1, common.NewAppError("DOC_NOT_FOUND",
		fmt.Sprintf("document %s is not in the queue", id), common.ErrNotFound)
}

func copyDoc(d *entity.QueuedDocument) *entity.QueuedDocument {
	out := *d
	if d.CommittedLabels != nil {
		out.CommittedLabels = make([]string, len(d.CommittedLabels))
		copy(out.CommittedLabels, d.CommittedLabels)
	}
	out.EditSnapshot = d.EditSnapshot.Clone()
	return &out
}
