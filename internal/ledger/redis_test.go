package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/mealforge/posgen/internal/model"
)

type fakeCache struct {
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) get(_ context.Context, key string) ([]byte, bool) {
	d, ok := c.data[key]
	return d, ok
}

func (c *fakeCache) set(_ context.Context, key string, data []byte, _ time.Duration) {
	c.data[key] = data
}

func (c *fakeCache) del(_ context.Context, key string) {
	delete(c.data, key)
}

func newCachedStore() (*CachedStore, *MemoryStore, *fakeCache) {
	primary := NewMemoryStore()
	cache := newFakeCache()
	return &CachedStore{primary: primary, cache: cache, ttl: time.Minute}, primary, cache
}

func TestCachedStore_ReadThrough(t *testing.T) {
	cs, primary, cache := newCachedStore()
	ctx := context.Background()

	sum := &model.DailySummary{MerchantID: "m1", BusinessDate: "2025-06-14", OrderCount: 5}
	if err := primary.UpsertDailySummary(ctx, sum); err != nil {
		t.Fatal(err)
	}

	first, err := cs.GetDailySummary(ctx, "m1", "2025-06-14")
	if err != nil {
		t.Fatal(err)
	}
	if first.OrderCount != 5 {
		t.Fatalf("order_count = %d, want 5", first.OrderCount)
	}
	if _, ok := cache.data[cacheKey("m1", "2025-06-14")]; !ok {
		t.Fatal("read should populate the cache")
	}

	// Change the primary behind the cache's back: the next read is served
	// from the cached copy.
	sum.OrderCount = 9
	primary.UpsertDailySummary(ctx, sum)
	second, err := cs.GetDailySummary(ctx, "m1", "2025-06-14")
	if err != nil {
		t.Fatal(err)
	}
	if second.OrderCount != 5 {
		t.Errorf("order_count = %d, want cached 5", second.OrderCount)
	}
}

func TestCachedStore_RecordOrderInvalidates(t *testing.T) {
	cs, _, cache := newCachedStore()
	ctx := context.Background()

	cache.set(ctx, cacheKey("m1", "2025-06-14"), []byte(`{}`), time.Minute)
	if err := cs.RecordOrder(ctx, testOrder("p1", model.OrderPaid), nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.data[cacheKey("m1", "2025-06-14")]; ok {
		t.Error("a new order must invalidate the day's cached summary")
	}
}

func TestCachedStore_StatusUpdatesInvalidateSummary(t *testing.T) {
	cs, primary, cache := newCachedStore()
	ctx := context.Background()

	o := testOrder("p1", model.OrderPaid)
	pays := []model.SimulatedPayment{testPayment("p1", "pay1", 1283)}
	if err := cs.RecordOrder(ctx, o, pays); err != nil {
		t.Fatal(err)
	}
	if _, err := Aggregate(ctx, cs, "m1", "2025-06-14"); err != nil {
		t.Fatal(err)
	}

	cached, err := cs.GetDailySummary(ctx, "m1", "2025-06-14")
	if err != nil {
		t.Fatal(err)
	}
	if cached.RefundCount != 0 {
		t.Fatalf("refund_count = %d before refund", cached.RefundCount)
	}

	// A refund lands: both status flips must drop the cached summary.
	if err := cs.UpdateOrderStatus(ctx, "m1", "2025-06-14", "p1", model.OrderRefunded); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.data[cacheKey("m1", "2025-06-14")]; ok {
		t.Error("order status change must invalidate the cached summary")
	}
	if err := cs.UpdatePaymentStatus(ctx, "m1", "2025-06-14", "pay1", model.PaymentRefunded); err != nil {
		t.Fatal(err)
	}

	// A recomputation lands on the primary only; the cached store must
	// serve the fresh counts, not a stale pre-refund copy.
	if _, err := Aggregate(ctx, primary, "m1", "2025-06-14"); err != nil {
		t.Fatal(err)
	}
	got, err := cs.GetDailySummary(ctx, "m1", "2025-06-14")
	if err != nil {
		t.Fatal(err)
	}
	if got.RefundCount != 1 {
		t.Errorf("refund_count = %d, want 1 (stale summary served from cache)", got.RefundCount)
	}
}
