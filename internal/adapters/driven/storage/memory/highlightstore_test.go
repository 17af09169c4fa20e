package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

var testRegion = domain.Region{
	Page:  0,
	Boxes: []domain.Rect{{Left: 100, Top: 200, Right: 150, Bottom: 220}},
}

func TestHighlightStore_GetOrCreate(t *testing.T) {
	store := NewHighlightStore()
	ctx := context.Background()

	h1, created, err := store.GetOrCreate(ctx, "doc1", testRegion, "selected", domain.MatchConfig{})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, h1.AI)
	assert.Equal(t, domain.KindLinked, h1.Kind)
	assert.Equal(t, 0, h1.Page)

	// Overlapping selection reuses the same highlight.
	shifted := domain.Region{
		Page:  0,
		Boxes: []domain.Rect{{Left: 105, Top: 202, Right: 155, Bottom: 222}},
	}
	h2, created, err := store.GetOrCreate(ctx, "doc1", shifted, "selected", domain.MatchConfig{})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, h1.ID, h2.ID)

	// Same geometry in another document is a new highlight.
	h3, created, err := store.GetOrCreate(ctx, "doc2", testRegion, "selected", domain.MatchConfig{})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, h1.ID, h3.ID)
}

func TestHighlightStore_GetOrCreate_ReusesUnflagged(t *testing.T) {
	store := NewHighlightStore()
	ctx := context.Background()

	seeded := store.Put(domain.Highlight{
		DocumentID: "doc1",
		Page:       0,
		Boxes:      testRegion.Boxes,
		Kind:       domain.KindLinked,
		AI:         false,
		CreatedAt:  time.Now().UTC(),
	})

	h, created, err := store.GetOrCreate(ctx, "doc1", testRegion, "selected", domain.MatchConfig{})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, seeded.ID, h.ID)
}

func TestHighlightStore_MarkAI(t *testing.T) {
	store := NewHighlightStore()
	ctx := context.Background()

	seeded := store.Put(domain.Highlight{
		DocumentID: "doc1",
		Page:       0,
		Boxes:      testRegion.Boxes,
		Kind:       domain.KindLinked,
		CreatedAt:  time.Now().UTC(),
	})

	require.NoError(t, store.MarkAI(ctx, seeded.ID))
	got, ok := store.Get(seeded.ID)
	require.True(t, ok)
	assert.True(t, got.AI)

	// Idempotent.
	require.NoError(t, store.MarkAI(ctx, seeded.ID))
	got, _ = store.Get(seeded.ID)
	assert.True(t, got.AI)
	assert.Equal(t, seeded.Boxes, got.Boxes)
	assert.Equal(t, seeded.Kind, got.Kind)

	assert.ErrorIs(t, store.MarkAI(ctx, 9999), domain.ErrNotFound)
}

func TestHighlightStore_ByDocument(t *testing.T) {
	store := NewHighlightStore()
	ctx := context.Background()

	_, _, err := store.GetOrCreate(ctx, "doc1", testRegion, "a", domain.MatchConfig{})
	require.NoError(t, err)

	other := domain.Region{Page: 3, Boxes: testRegion.Boxes}
	_, _, err = store.GetOrCreate(ctx, "doc1", other, "b", domain.MatchConfig{})
	require.NoError(t, err)

	got, err := store.ByDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = store.ByDocument(ctx, "doc2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHighlightStore_FailNext(t *testing.T) {
	store := NewHighlightStore()
	store.FailNext = 1

	_, _, err := store.GetOrCreate(context.Background(), "doc1", testRegion, "a", domain.MatchConfig{})
	assert.ErrorIs(t, err, domain.ErrStore)

	_, created, err := store.GetOrCreate(context.Background(), "doc1", testRegion, "a", domain.MatchConfig{})
	require.NoError(t, err)
	assert.True(t, created)
}
