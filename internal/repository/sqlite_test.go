package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safesite-labs/sitelog-intake/internal/common"
	"github.com/safesite-labs/sitelog-intake/internal/entity"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "entries.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	docID := uuid.New()

	entry := sampleEntry("k3x-0-abcd1234", docID)
	entry.Fields.Feedback = []string{"deliveries blocking gate 2"}
	require.NoError(t, s.Put(ctx, entry))

	got, err := s.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, docID, got.DocumentID)
	assert.Equal(t, entry.Team, got.Team)
	assert.True(t, entry.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, entry.Fields, got.Fields)
}

func TestSQLiteSynthesizedTeamSurvivesRoundTrip(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	entry := sampleEntry("k3x-1-deadbeef", uuid.New())
	entry.Team = entity.TeamIdentity{ID: "adhoc-1a2b3c4d", DisplayName: "Night Pour Gang", Synthesized: true}
	require.NoError(t, s.Put(ctx, entry))

	got, err := s.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, got.Team.Synthesized)
	assert.Equal(t, "Night Pour Gang", got.Team.DisplayName)
}

func TestSQLitePutUpsertsOnConflict(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	docID := uuid.New()

	entry := sampleEntry("k3x-0-abcd1234", docID)
	require.NoError(t, s.Put(ctx, entry))
	entry.Fields.Headcount = 12
	entry.Team.DisplayName = "Rebar B"
	require.NoError(t, s.Put(ctx, entry))

	got, err := s.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Fields.Headcount)
	assert.Equal(t, "Rebar B", got.Team.DisplayName)

	all, err := s.ListByDocument(ctx, docID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteGetUnknown(t *testing.T) {
	s := openTestSQLite(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteListByDocumentOrdersByCreation(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	docID := uuid.New()

	first := sampleEntry("id-a", docID)
	second := sampleEntry("id-b", docID)
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	other := sampleEntry("id-c", uuid.New())

	// Insert out of order; listing sorts by creation time.
	require.NoError(t, s.Put(ctx, second))
	require.NoError(t, s.Put(ctx, other))
	require.NoError(t, s.Put(ctx, first))

	got, err := s.ListByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "id-a", got[0].ID)
	assert.Equal(t, "id-b", got[1].ID)
}
