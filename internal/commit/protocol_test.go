package commit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safesite-labs/sitelog-intake/constants"
	"github.com/safesite-labs/sitelog-intake/internal/common"
	"github.com/safesite-labs/sitelog-intake/internal/entity"
	"github.com/safesite-labs/sitelog-intake/internal/extract"
	"github.com/safesite-labs/sitelog-intake/internal/queue"
	"github.com/safesite-labs/sitelog-intake/internal/repository"
	"github.com/safesite-labs/sitelog-intake/internal/teams"
	"github.com/safesite-labs/sitelog-intake/internal/workspace"
)

type stubService struct {
	candidates []entity.CandidateRecord
}

func (s *stubService) Extract(ctx context.Context, payload entity.Payload, guidelines []string) ([]entity.CandidateRecord, error) {
	return s.candidates, nil
}

// flakyStore fails every Put after the first allowed writes.
type flakyStore struct {
	*repository.MemoryStore
	allowed int
	puts    int
}

func (s *flakyStore) Put(ctx context.Context, entry *entity.CommittedEntry) error {
	s.puts++
	if s.puts > s.allowed {
		return errors.New("disk full")
	}
	return s.MemoryStore.Put(ctx, entry)
}

type harness struct {
	queue    *queue.Store
	coord    *extract.Coordinator
	ws       *workspace.Controller
	mem      *repository.MemoryStore
	protocol *Protocol
}

func roster() *teams.Registry {
	return teams.NewRegistry([]teams.Team{
		{ID: "t-scaffold", DisplayName: "Scaffolding Crew"},
		{ID: "t-electric", DisplayName: "Electrical"},
		{ID: "t-rebar", DisplayName: "Rebar"},
	}, nil)
}

var commitClock = time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC)

func newHarness(t *testing.T, svc extract.Service, store repository.EntryStore) *harness {
	t.Helper()
	q := queue.NewStore(nil)
	coord := extract.NewCoordinator(svc, q, nil, nil)
	ws := workspace.NewController(q, coord, nil)

	var mem *repository.MemoryStore
	if store == nil {
		mem = repository.NewMemoryStore()
		store = mem
	} else if m, ok := store.(*repository.MemoryStore); ok {
		mem = m
	}
	p := NewProtocol(q, coord, ws, roster(), store, nil, WithClock(func() time.Time { return commitClock }))
	return &harness{queue: q, coord: coord, ws: ws, mem: mem, protocol: p}
}

func (h *harness) enqueue(t *testing.T, names ...string) []*entity.QueuedDocument {
	t.Helper()
	payloads := make([]entity.Payload, len(names))
	for i, n := range names {
		payloads[i] = entity.Payload{Filename: n, MIMEType: "image/jpeg", Data: []byte("scan")}
	}
	return h.queue.Enqueue(payloads)
}

// activate selects the document and waits for its auto-triggered
// extraction, mirroring the interactive flow.
func (h *harness) activate(t *testing.T, docID uuid.UUID) {
	t.Helper()
	ch, err := h.ws.SelectActive(context.Background(), docID)
	require.NoError(t, err)
	if ch != nil {
		select {
		case o := <-ch:
			require.NoError(t, o.Err)
			h.ws.ApplyOutcome(o)
		case <-time.After(2 * time.Second):
			t.Fatal("extraction never resolved")
		}
	}
}

func (h *harness) state(t *testing.T, docID uuid.UUID) constants.DocState {
	t.Helper()
	doc, err := h.queue.Get(docID)
	require.NoError(t, err)
	return doc.State
}

func TestCommitRequiresActiveDocument(t *testing.T) {
	h := newHarness(t, &stubService{}, nil)

	_, err := h.protocol.CommitSingle(context.Background(), true)
	assert.ErrorIs(t, err, common.ErrNoActiveDocument)

	_, err = h.protocol.CommitAll(context.Background())
	assert.ErrorIs(t, err, common.ErrNoActiveDocument)
}

func TestCommitSingleUsesSourceImageAsFallbackEvidence(t *testing.T) {
	h := newHarness(t, &stubService{candidates: []entity.CandidateRecord{
		{TeamLabel: "Rebar", LeaderName: "Kim", Headcount: 4},
	}}, nil)
	doc := h.enqueue(t, "a.jpg")[0]
	h.activate(t, doc.ID)

	entry, err := h.protocol.CommitSingle(context.Background(), true)
	require.NoError(t, err)
	require.NotNil(t, entry.Fields.Photo)
	assert.Equal(t, "doc://"+doc.ID.String(), entry.Fields.Photo.URI)
	assert.Equal(t, "image/jpeg", entry.Fields.Photo.MIMEType)

	assert.Equal(t, "t-rebar", entry.Team.ID)
	assert.Equal(t, "Rebar", entry.Team.DisplayName)
	assert.False(t, entry.Team.Synthesized)
	assert.Equal(t, commitClock, entry.CreatedAt)
	assert.Equal(t, 1, h.mem.Len())
}

func TestCommitRefusedWithoutAnyEvidence(t *testing.T) {
	h := newHarness(t, &stubService{}, nil)
	doc := h.queue.Enqueue([]entity.Payload{{Filename: "manual.pdf", MIMEType: "application/pdf"}})[0]
	h.activate(t, doc.ID)
	h.ws.Fields().TeamRef = "Rebar"

	_, err := h.protocol.CommitSingle(context.Background(), true)
	assert.ErrorIs(t, err, common.ErrMissingEvidence)
	assert.Equal(t, 0, h.mem.Len())
	assert.Equal(t, constants.DocPending, h.state(t, doc.ID), "a refused commit changes nothing")
}

func TestCommitSingleAttachedPhotoSatisfiesEvidence(t *testing.T) {
	h := newHarness(t, &stubService{}, nil)
	doc := h.queue.Enqueue([]entity.Payload{{Filename: "manual.pdf", MIMEType: "application/pdf"}})[0]
	h.activate(t, doc.ID)
	h.ws.Fields().TeamRef = "Electrical"
	h.ws.Fields().Photo = &entity.MediaRef{URI: "file:///site/p1.jpg", MIMEType: "image/jpeg"}

	entry, err := h.protocol.CommitSingle(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "file:///site/p1.jpg", entry.Fields.Photo.URI)
}

func TestCommitSingleWithAdvanceClosesOutAndActivatesNext(t *testing.T) {
	h := newHarness(t, &stubService{candidates: []entity.CandidateRecord{
		{TeamLabel: "Rebar", Headcount: 4},
	}}, nil)
	docs := h.enqueue(t, "a.jpg", "b.jpg")
	h.activate(t, docs[0].ID)

	_, err := h.protocol.CommitSingle(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, constants.DocDone, h.state(t, docs[0].ID))
	active, ok := h.ws.ActiveID()
	require.True(t, ok)
	assert.Equal(t, docs[1].ID, active, "commit-and-advance moves to the next document")

	got, err := h.queue.Get(docs[0].ID)
	require.NoError(t, err)
	assert.Nil(t, got.EditSnapshot)
	assert.Equal(t, []string{"Rebar"}, got.CommittedLabels)
}

func TestCommitSingleWalksNeverExtractedDocumentThroughProcessing(t *testing.T) {
	h := newHarness(t, &stubService{}, nil)
	// No payload: never auto-triggered, still PENDING at commit time.
	doc := h.queue.Enqueue([]entity.Payload{{Filename: "manual.pdf", MIMEType: "application/pdf"}})[0]
	h.activate(t, doc.ID)
	h.ws.Fields().TeamRef = "Scaffolding Crew"
	h.ws.Fields().Photo = &entity.MediaRef{URI: "file:///site/p1.jpg", MIMEType: "image/jpeg"}
	require.Equal(t, constants.DocPending, h.state(t, doc.ID))

	_, err := h.protocol.CommitSingle(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, constants.DocDone, h.state(t, doc.ID))

	_, ok := h.ws.ActiveID()
	assert.False(t, ok, "queue drained, nothing is active")
}

func TestCommitSingleNoAdvanceKeepsDocumentOpenAndMovesSelection(t *testing.T) {
	h := newHarness(t, &stubService{candidates: []entity.CandidateRecord{
		{TeamLabel: "Scaffolding Crew", Headcount: 6},
		{TeamLabel: "Electrical", Headcount: 3},
		{TeamLabel: "Rebar", Headcount: 4},
	}}, nil)
	doc := h.enqueue(t, "a.jpg")[0]
	h.activate(t, doc.ID)

	entry, err := h.protocol.CommitSingle(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "Scaffolding Crew", entry.Team.DisplayName)

	assert.Equal(t, constants.DocProcessing, h.state(t, doc.ID), "document stays open for more records")
	active, ok := h.ws.ActiveID()
	require.True(t, ok)
	assert.Equal(t, doc.ID, active)
	assert.Equal(t, 1, h.coord.SelectedIndex(doc.ID), "selection moves to the next unreviewed candidate")
	assert.Equal(t, "Electrical", h.ws.Fields().TeamRef)

	// Second commit: selection skips both already-committed teams.
	_, err = h.protocol.CommitSingle(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, h.coord.SelectedIndex(doc.ID))
	assert.Equal(t, "Rebar", h.ws.Fields().TeamRef)
}

func TestCommitSingleSetsStickyTeam(t *testing.T) {
	h := newHarness(t, &stubService{candidates: []entity.CandidateRecord{
		{TeamLabel: "Electrical", Headcount: 3},
	}}, nil)
	docs := h.enqueue(t, "a.jpg", "b.jpg")
	h.activate(t, docs[0].ID)

	_, err := h.protocol.CommitSingle(context.Background(), true)
	require.NoError(t, err)

	// docs[1] became active with a blank fieldset; the committed team
	// carries over as its default.
	assert.Equal(t, "Electrical", h.ws.Fields().TeamRef)
}

func TestCommitSingleValidationFailureWritesNothing(t *testing.T) {
	h := newHarness(t, &stubService{candidates: []entity.CandidateRecord{
		{TeamLabel: "Rebar", Headcount: 4},
	}}, nil)
	doc := h.enqueue(t, "a.jpg")[0]
	h.activate(t, doc.ID)
	h.ws.Fields().LogDate = "14/03/2026"

	_, err := h.protocol.CommitSingle(context.Background(), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, 0, h.mem.Len())
	assert.Equal(t, constants.DocProcessing, h.state(t, doc.ID))
}

func TestEntryIDsUniqueWithinOneMillisecond(t *testing.T) {
	now := time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC)
	seen := make(map[string]struct{})
	for n := 0; n < 50; n++ {
		id := entryID(now, n%3)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestCommitAllNeedsMultipleCandidates(t *testing.T) {
	h := newHarness(t, &stubService{candidates: []entity.CandidateRecord{
		{TeamLabel: "Rebar", Headcount: 4},
	}}, nil)
	doc := h.enqueue(t, "a.jpg")[0]
	h.activate(t, doc.ID)

	_, err := h.protocol.CommitAll(context.Background())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, 0, h.mem.Len())
}

func TestCommitAllUsesLiveFieldsForSelectedAndPristineForOthers(t *testing.T) {
	h := newHarness(t, &stubService{candidates: []entity.CandidateRecord{
		{TeamLabel: "Scaffolding Crew", LeaderName: "Kim", Headcount: 6},
		{TeamLabel: "Electrical", LeaderName: "Odum", Headcount: 3},
	}}, nil)
	doc := h.enqueue(t, "a.jpg")[0]
	h.activate(t, doc.ID)

	// Operator fixes the headcount of the selected candidate before
	// committing the whole sheet.
	h.ws.Fields().Headcount = 8

	entries, err := h.protocol.CommitAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Scaffolding Crew", entries[0].Team.DisplayName)
	assert.Equal(t, 8, entries[0].Fields.Headcount, "selected candidate commits the edited fields")
	assert.Equal(t, "Electrical", entries[1].Team.DisplayName)
	assert.Equal(t, 3, entries[1].Fields.Headcount, "other candidates commit their extracted values")

	for _, e := range entries {
		assert.Equal(t, commitClock, e.CreatedAt, "one batch timestamp for the whole sheet")
		require.NotNil(t, e.Fields.Photo)
		assert.Equal(t, "doc://"+doc.ID.String(), e.Fields.Photo.URI, "all entries share the document evidence")
	}
	assert.NotEqual(t, entries[0].ID, entries[1].ID)

	assert.Equal(t, constants.DocDone, h.state(t, doc.ID))
	got, err := h.queue.Get(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Scaffolding Crew", "Electrical"}, got.CommittedLabels)
}

func TestCommitAllClosesDocumentAndActivatesNext(t *testing.T) {
	h := newHarness(t, &stubService{candidates: []entity.CandidateRecord{
		{TeamLabel: "Scaffolding Crew", Headcount: 6},
		{TeamLabel: "Electrical", Headcount: 3},
	}}, nil)
	docs := h.enqueue(t, "a.jpg", "b.jpg")
	h.activate(t, docs[0].ID)

	entries, err := h.protocol.CommitAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, docs[0].ID, e.DocumentID)
	}

	assert.Equal(t, constants.DocDone, h.state(t, docs[0].ID))
	active, ok := h.ws.ActiveID()
	require.True(t, ok)
	assert.Equal(t, docs[1].ID, active)
}

type failingService struct{}

func (failingService) Extract(context.Context, entity.Payload, []string) ([]entity.CandidateRecord, error) {
	return nil, errors.New("model unavailable")
}

func TestManualCommitAfterExtractionFailure(t *testing.T) {
	h := newHarness(t, failingService{}, nil)
	doc := h.enqueue(t, "a.jpg")[0]

	ch, err := h.ws.SelectActive(context.Background(), doc.ID)
	require.NoError(t, err)
	require.NotNil(t, ch)
	outcome := <-ch
	require.Error(t, outcome.Err)
	assert.Equal(t, constants.DocProcessing, h.state(t, doc.ID))

	// The operator types the record by hand; the failed extraction never
	// blocks recording the evidence.
	h.ws.Fields().TeamRef = "Rebar"
	h.ws.Fields().Headcount = 4

	entry, err := h.protocol.CommitSingle(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "Rebar", entry.Team.DisplayName)
	assert.Equal(t, constants.DocDone, h.state(t, doc.ID))
}

func TestCommitAllPartialFailureReportsExactly(t *testing.T) {
	store := &flakyStore{MemoryStore: repository.NewMemoryStore(), allowed: 1}
	h := newHarness(t, &stubService{candidates: []entity.CandidateRecord{
		{TeamLabel: "Scaffolding Crew", Headcount: 6},
		{TeamLabel: "Electrical", Headcount: 3},
		{TeamLabel: "Rebar", Headcount: 4},
	}}, store)
	doc := h.enqueue(t, "a.jpg")[0]
	h.activate(t, doc.ID)

	committed, err := h.protocol.CommitAll(context.Background())
	require.Error(t, err)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, doc.ID, batchErr.DocumentID)
	assert.Equal(t, []string{"Scaffolding Crew"}, batchErr.Confirmed)
	assert.Equal(t, "Electrical", batchErr.FailedLabel)
	assert.Equal(t, []string{"Rebar"}, batchErr.NotAttempted)
	assert.ErrorIs(t, err, common.ErrPersistence)

	require.Len(t, committed, 1, "already-written entries stay in place")
	assert.Equal(t, 1, store.MemoryStore.Len())

	assert.Equal(t, constants.DocProcessing, h.state(t, doc.ID), "the sheet is not closed out on a partial batch")
	got, qerr := h.queue.Get(doc.ID)
	require.NoError(t, qerr)
	assert.Equal(t, []string{"Scaffolding Crew"}, got.CommittedLabels)
}

func TestCommitAllValidationFailureWritesNothing(t *testing.T) {
	h := newHarness(t, &stubService{candidates: []entity.CandidateRecord{
		{TeamLabel: "Scaffolding Crew", Headcount: 6},
		{TeamLabel: "Electrical", Headcount: 3},
	}}, nil)
	doc := h.enqueue(t, "a.jpg")[0]
	h.activate(t, doc.ID)
	h.ws.Fields().LogTime = "25:99"

	_, err := h.protocol.CommitAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, 0, h.mem.Len())
	assert.Equal(t, constants.DocProcessing, h.state(t, doc.ID))
}

func TestUnknownTeamLabelSynthesizesAdhocIdentity(t *testing.T) {
	h := newHarness(t, &stubService{candidates: []entity.CandidateRecord{
		{TeamLabel: "Night Pour Gang", Headcount: 5},
	}}, nil)
	doc := h.enqueue(t, "a.jpg")[0]
	h.activate(t, doc.ID)

	entry, err := h.protocol.CommitSingle(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, entry.Team.Synthesized)
	assert.Equal(t, "Night Pour Gang", entry.Team.DisplayName, "the raw label is preserved")
	assert.Regexp(t, `^adhoc-[0-9a-f]{8}$`, entry.Team.ID)
}
