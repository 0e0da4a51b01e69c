package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boodschap/backend/internal/domain"
)

func setupTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func sampleBasket(sessionID string) *domain.Basket {
	b := domain.NewBasket(sessionID)
	b.UpdatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.Add(domain.CartLineRef{
		Retailer:  "ah",
		ProductID: "wi1",
		Name:      "Halfvolle melk 1L",
		PriceEUR:  decimal.RequireFromString("1.09"),
		Quantity:  2,
		HealthTag: domain.HealthNeutral,
		Category:  "zuivel",
	})
	return b
}

// basketStoreContract runs the same checks against every BasketStore
func basketStoreContract(t *testing.T, store domain.BasketStore) {
	ctx := context.Background()

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrBasketNotFound)

	want := sampleBasket("s1")
	require.NoError(t, store.Put(ctx, "s1", want))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "wi1", got.Items[0].ProductID)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.True(t, want.Items[0].PriceEUR.Equal(got.Items[0].PriceEUR))

	// mutating a returned basket must not change the stored one
	got.Items[0].Quantity = 40
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Items[0].Quantity)

	_, err = store.Get(ctx, "s2")
	assert.ErrorIs(t, err, domain.ErrBasketNotFound)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrBasketNotFound)

	// deleting twice is fine
	require.NoError(t, store.Delete(ctx, "s1"))
}

func TestMemoryBasketStore(t *testing.T) {
	basketStoreContract(t, NewMemoryBasketStore())
}

func TestRedisBasketStore(t *testing.T) {
	client, _ := setupTestRedis(t)
	basketStoreContract(t, NewRedisBasketStore(client, time.Hour))
}

func TestRedisBasketStore_TTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisBasketStore(client, 24*time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "s1", sampleBasket("s1")))
	assert.Equal(t, 24*time.Hour, mr.TTL(basketKeyPrefix+"s1"))

	mr.FastForward(25 * time.Hour)
	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrBasketNotFound)
}

func TestRedisBasketStore_CorruptData(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisBasketStore(client, 0)
	require.NoError(t, mr.Set(basketKeyPrefix+"s1", "not-json"))

	_, err := store.Get(context.Background(), "s1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrBasketNotFound)
}

func TestRedisBasketStore_ConnectionError(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisBasketStore(client, 0)
	mr.Close()

	err := store.Put(context.Background(), "s1", sampleBasket("s1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set basket")
}
