package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boodschap/backend/internal/domain"
)

func sampleTemplate(id string, created time.Time) *domain.BasketTemplate {
	return &domain.BasketTemplate{
		ID:        id,
		Name:      "Weekboodschappen " + id,
		CreatedAt: created,
		Items: []domain.CartLineRef{{
			Retailer:  "jumbo",
			ProductID: "brood-1",
			Name:      "Volkoren brood",
			PriceEUR:  decimal.RequireFromString("2.29"),
			Quantity:  1,
		}},
	}
}

func templateStoreContract(t *testing.T, store domain.TemplateStore) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	list, err := store.List(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, store.Save(ctx, "s1", sampleTemplate("t-old", base)))
	require.NoError(t, store.Save(ctx, "s1", sampleTemplate("t-new", base.Add(time.Hour))))
	require.NoError(t, store.Save(ctx, "s2", sampleTemplate("t-other", base)))

	list, err = store.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "t-new", list[0].ID)
	assert.Equal(t, "t-old", list[1].ID)

	got, err := store.Get(ctx, "s1", "t-old")
	require.NoError(t, err)
	assert.Equal(t, "Weekboodschappen t-old", got.Name)
	require.Len(t, got.Items, 1)
	assert.True(t, decimal.RequireFromString("2.29").Equal(got.Items[0].PriceEUR))

	// templates are scoped to their session
	_, err = store.Get(ctx, "s2", "t-old")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)

	require.NoError(t, store.Delete(ctx, "s1", "t-old"))
	assert.ErrorIs(t, store.Delete(ctx, "s1", "t-old"), domain.ErrTemplateNotFound)
	_, err = store.Get(ctx, "s1", "t-old")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)

	list, err = store.List(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemoryTemplateStore(t *testing.T) {
	templateStoreContract(t, NewMemoryTemplateStore())
}

func TestRedisTemplateStore(t *testing.T) {
	client, _ := setupTestRedis(t)
	templateStoreContract(t, NewRedisTemplateStore(client))
}

func TestMemoryTemplateStore_CopiesItems(t *testing.T) {
	store := NewMemoryTemplateStore()
	ctx := context.Background()

	tpl := sampleTemplate("t1", time.Now())
	require.NoError(t, store.Save(ctx, "s1", tpl))
	tpl.Items[0].Quantity = 9

	got, err := store.Get(ctx, "s1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Items[0].Quantity)
}

func TestSortNewestFirst_TieBreaksOnID(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	templates := []domain.BasketTemplate{{ID: "b", CreatedAt: at}, {ID: "a", CreatedAt: at}}
	sortNewestFirst(templates)
	assert.Equal(t, "a", templates[0].ID)
}
