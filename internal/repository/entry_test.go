//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henrib/lumen/internal/domain"
	"github.com/henrib/lumen/internal/testutil"
)

func seedEntry(ctx context.Context, t *testing.T, repo *EntryRepository, title string, public bool) *domain.LogEntry {
	e := &domain.LogEntry{Title: title, Content: "content for " + title, IsPublic: public}
	require.NoError(t, repo.Create(ctx, e))
	return e
}

func TestEntryRepository_Create(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEntryRepository(pool)

	e := seedEntry(ctx, t, repo, "First entry", true)
	assert.NotZero(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "First entry", got.Title)
	assert.True(t, got.IsPublic)
	assert.Nil(t, got.RoadmapItemID)
}

func TestEntryRepository_Create_WithRoadmapLink(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	roadmapRepo := NewRoadmapRepository(pool)
	section := seedSection(ctx, t, roadmapRepo, "RAG Systems", 1)
	item := seedItem(ctx, t, roadmapRepo, section.ID, "Chunking Strategies", 1, true)

	repo := NewEntryRepository(pool)
	e := &domain.LogEntry{Title: "Linked", Content: "x", IsPublic: false, RoadmapItemID: &item.ID}
	require.NoError(t, repo.Create(ctx, e))

	got, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RoadmapItemID)
	assert.Equal(t, item.ID, *got.RoadmapItemID)
}

func TestEntryRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEntryRepository(pool)

	_, err := repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrLogEntryNotFound)
}

func TestEntryRepository_ListPublic(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEntryRepository(pool)

	seedEntry(ctx, t, repo, "public old", true)
	seedEntry(ctx, t, repo, "private", false)
	seedEntry(ctx, t, repo, "public new", true)

	entries, err := repo.ListPublic(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// newest first, ties broken by id
	assert.Equal(t, "public new", entries[0].Title)
	assert.Equal(t, "public old", entries[1].Title)

	limited, err := repo.ListPublic(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "public new", limited[0].Title)
}

func TestEntryRepository_ListAll_IncludesPrivate(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEntryRepository(pool)

	seedEntry(ctx, t, repo, "public", true)
	seedEntry(ctx, t, repo, "private", false)

	entries, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestEntryRepository_ListUnindexed(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEntryRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	indexed := seedEntry(ctx, t, repo, "indexed", true)
	pending := seedEntry(ctx, t, repo, "pending", true)

	insertChunk(ctx, t, chunkRepo, domain.SourceLearningEntry, &indexed.ID, "indexed", "chunk", testVector(0))

	entries, err := repo.ListUnindexed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, pending.ID, entries[0].ID)
}

func TestEntryRepository_ContainsMarker(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEntryRepository(pool)

	e := &domain.LogEntry{
		Title:    "webhook",
		Content:  "pushed 2 commits\n\nGitHub Delivery ID: delivery-abc",
		IsPublic: false,
	}
	require.NoError(t, repo.Create(ctx, e))

	found, err := repo.ContainsMarker(ctx, "GitHub Delivery ID: delivery-abc")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.ContainsMarker(ctx, "GitHub Delivery ID: delivery-other")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEntryRepository_Counts(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEntryRepository(pool)

	seedEntry(ctx, t, repo, "a", true)
	seedEntry(ctx, t, repo, "b", false)
	seedEntry(ctx, t, repo, "c", true)

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	public, err := repo.CountPublic(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, public)
}
