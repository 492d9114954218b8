package cart_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/shopping-cart/internal/cart"
	"github.com/noah-isme/shopping-cart/internal/obs"
	"github.com/noah-isme/shopping-cart/internal/tenant"
)

func newStore(t *testing.T, opts cart.StoreOptions) (*miniredis.Miniredis, *cart.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, cart.NewStore(client, opts)
}

func sampleCart() *cart.Cart {
	c := cart.NewCart("default")
	c.Add(cart.IntID(1), "Shirt", decimal.RequireFromString("19.99"), decimal.NewFromInt(2), cart.Options{"size": "M", "color": "red"})
	c.Add(cart.StringID("mug-7"), "Mug", decimal.NewFromInt(5), decimal.NewFromInt(1), nil)
	return c
}

func TestStoreSaveLoad(t *testing.T) {
	mr, store := newStore(t, cart.StoreOptions{TTL: time.Hour})
	ctx := context.Background()

	original := sampleCart()
	require.NoError(t, store.Save(ctx, "user-1", original))
	require.True(t, mr.Exists("cart:default:user-1"))
	require.Equal(t, time.Hour, mr.TTL("cart:default:user-1"))

	loaded, err := store.Load(ctx, "user-1", "default")
	require.NoError(t, err)
	require.Equal(t, original.Len(), loaded.Len())
	for _, item := range original.Items() {
		got, ok := loaded.Get(item.UniqueKey())
		require.True(t, ok, item.Name())
		require.Equal(t, item.ID(), got.ID())
		require.True(t, item.Price().Equal(got.Price()))
		require.True(t, item.Quantity().Equal(got.Quantity()))
	}
	require.True(t, original.Total().Equal(loaded.Total()))
}

func TestStoreLoadKeepsUniqueKeys(t *testing.T) {
	_, store := newStore(t, cart.StoreOptions{LockRetry: time.Millisecond})
	ctx := context.Background()

	type engraving struct {
		Z string
		A string
	}
	original := cart.NewCart("default")
	big := original.Add(cart.IntID(1), "Ring", decimal.NewFromInt(100), decimal.NewFromInt(1), cart.Options{"variant": int64(9007199254740993)})
	engraved := original.Add(cart.IntID(1), "Ring", decimal.NewFromInt(100), decimal.NewFromInt(1), cart.Options{"engraving": engraving{Z: "z", A: "a"}})
	require.NoError(t, store.Save(ctx, "u", original))

	loaded, err := store.Load(ctx, "u", "default")
	require.NoError(t, err)
	require.True(t, loaded.Has(big.UniqueKey()))
	require.True(t, loaded.Has(engraved.UniqueKey()))

	updated, err := store.Update(ctx, "u", "default", func(c *cart.Cart) error {
		c.Add(cart.IntID(1), "Ring", decimal.NewFromInt(100), decimal.NewFromInt(2), cart.Options{"variant": int64(9007199254740993)})
		c.Add(cart.IntID(1), "Ring", decimal.NewFromInt(100), decimal.NewFromInt(1), cart.Options{"engraving": engraving{Z: "z", A: "a"}})
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, updated.Len())
	got, ok := updated.Get(big.UniqueKey())
	require.True(t, ok)
	require.True(t, decimal.NewFromInt(3).Equal(got.Quantity()))
	got, ok = updated.Get(engraved.UniqueKey())
	require.True(t, ok)
	require.True(t, decimal.NewFromInt(2).Equal(got.Quantity()))
}

func TestStorePayloadShape(t *testing.T) {
	mr, store := newStore(t, cart.StoreOptions{
		Prefix: "basket",
		Now:    func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, store.Save(context.Background(), "u", sampleCart()))

	raw, err := mr.Get("basket:default:u")
	require.NoError(t, err)
	var payload struct {
		Instance string           `json:"instance"`
		Items    []map[string]any `json:"items"`
		SavedAt  string           `json:"saved_at"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	require.Equal(t, "default", payload.Instance)
	require.Equal(t, "2024-05-01T12:00:00Z", payload.SavedAt)
	require.Len(t, payload.Items, 2)
	require.Len(t, payload.Items[0], 6)
	require.Contains(t, payload.Items[0], cart.FieldUniqueKey)
}

func TestStoreLoadMissing(t *testing.T) {
	_, store := newStore(t, cart.StoreOptions{})
	_, err := store.Load(context.Background(), "nobody", "default")
	require.ErrorIs(t, err, cart.ErrCartNotFound)
}

func TestStoreTenantPrefix(t *testing.T) {
	mr, store := newStore(t, cart.StoreOptions{})
	ctx := tenant.WithTenant(context.Background(), "acme")
	require.Equal(t, "acme:cart:wishlist:u1", store.Key(ctx, "u1", "wishlist"))

	require.NoError(t, store.Save(ctx, "u1", cart.NewCart("wishlist")))
	require.True(t, mr.Exists("acme:cart:wishlist:u1"))

	_, err := store.Load(context.Background(), "u1", "wishlist")
	require.ErrorIs(t, err, cart.ErrCartNotFound)
}

func TestStoreDelete(t *testing.T) {
	mr, store := newStore(t, cart.StoreOptions{})
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "u1", sampleCart()))
	require.NoError(t, store.Delete(ctx, "u1", ""))
	require.False(t, mr.Exists("cart:default:u1"))
	require.NoError(t, store.Delete(ctx, "u1", ""))
}

func TestStoreUpdate(t *testing.T) {
	_, store := newStore(t, cart.StoreOptions{LockRetry: time.Millisecond})
	ctx := context.Background()

	var key string
	c, err := store.Update(ctx, "u1", "default", func(c *cart.Cart) error {
		key = c.Add(cart.IntID(9), "Cap", decimal.NewFromInt(8), decimal.NewFromInt(1), cart.Options{"color": "black"}).UniqueKey()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	_, err = store.Update(ctx, "u1", "default", func(c *cart.Cart) error {
		c.Add(cart.IntID(9), "Cap", decimal.NewFromInt(8), decimal.NewFromInt(2), cart.Options{"color": "black"})
		return nil
	})
	require.NoError(t, err)

	loaded, err := store.Load(ctx, "u1", "default")
	require.NoError(t, err)
	item, ok := loaded.Get(key)
	require.True(t, ok)
	require.True(t, item.Quantity().Equal(decimal.NewFromInt(3)))
}

func TestStoreUpdateAbortsOnError(t *testing.T) {
	mr, store := newStore(t, cart.StoreOptions{})
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := store.Update(ctx, "u1", "default", func(c *cart.Cart) error {
		c.Add(cart.IntID(1), "A", decimal.NewFromInt(1), decimal.NewFromInt(1), nil)
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("cart:default:u1"))
	require.False(t, mr.Exists("lock:cart:default:u1"))
}

func TestStoreConcurrentUpdates(t *testing.T) {
	_, store := newStore(t, cart.StoreOptions{LockRetry: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "shared", "default", func(c *cart.Cart) error {
				c.Add(cart.IntID(1), "A", decimal.NewFromInt(1), decimal.NewFromInt(1), nil)
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	loaded, err := store.Load(ctx, "shared", "default")
	require.NoError(t, err)
	require.True(t, loaded.Count().Equal(decimal.NewFromInt(workers)), loaded.Count().String())
}

func TestStoreRejectsInvalidInput(t *testing.T) {
	_, store := newStore(t, cart.StoreOptions{})
	ctx := context.Background()
	require.ErrorIs(t, store.Save(ctx, " ", cart.NewCart("")), cart.ErrInvalidInput)
	require.ErrorIs(t, store.Save(ctx, "u1", nil), cart.ErrInvalidInput)
	_, err := store.Update(ctx, "u1", "", nil)
	require.ErrorIs(t, err, cart.ErrInvalidInput)

	var unset *cart.Store
	require.Error(t, unset.Delete(ctx, "u1", ""))
}

func TestStoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := obs.NewCartStoreMetrics("test", nil, reg)
	_, store := newStore(t, cart.StoreOptions{Metrics: metrics})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "u1", sampleCart()))
	_, err := store.Load(ctx, "u1", "")
	require.NoError(t, err)
	_, err = store.Load(ctx, "u2", "")
	require.ErrorIs(t, err, cart.ErrCartNotFound)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.OpsTotal.WithLabelValues("save", obs.ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.OpsTotal.WithLabelValues("load", obs.ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.OpsTotal.WithLabelValues("load", obs.ResultMiss)))
}

func TestStoreCorruptPayload(t *testing.T) {
	mr, store := newStore(t, cart.StoreOptions{})
	require.NoError(t, mr.Set("cart:default:u1", `{"items":[{"name":"no id","price":1,"quantity":1}]}`))
	_, err := store.Load(context.Background(), "u1", "default")
	require.ErrorIs(t, err, cart.ErrMissingField)
	require.ErrorContains(t, err, "decode cart")
}
