package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mealforge/posgen/internal/model"
)

// summaryCache is the small cache surface CachedStore needs. The
// production implementation is Redis; tests use an in-memory fake.
type summaryCache interface {
	get(ctx context.Context, key string) ([]byte, bool)
	set(ctx context.Context, key string, data []byte, ttl time.Duration)
	del(ctx context.Context, key string)
}

// CachedStore wraps a primary Store (PostgreSQL) with a read-through cache
// for daily summaries — the rows the status server reads repeatedly while
// a run is in flight. Writes go to the primary store; summary writes
// refresh the cache, and any write that changes a day's rows (new order,
// refund status flips) invalidates that day so a cached summary never
// serves stale counts.
type CachedStore struct {
	primary Store
	cache   summaryCache
	ttl     time.Duration
}

// NewCachedStore creates a Redis-cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		cache:   redisCache{rdb: rdb},
		ttl:     ttl,
	}
}

// --- Write-through ---

func (s *CachedStore) RecordOrder(ctx context.Context, order *model.SimulatedOrder, payments []model.SimulatedPayment) error {
	if err := s.primary.RecordOrder(ctx, order, payments); err != nil {
		return err
	}
	// Any stored summary for this date is now stale.
	s.cache.del(ctx, cacheKey(order.MerchantID, order.BusinessDate))
	return nil
}

func (s *CachedStore) UpdateOrderStatus(ctx context.Context, merchantID, businessDate, providerOrderID string, status model.OrderStatus) error {
	if err := s.primary.UpdateOrderStatus(ctx, merchantID, businessDate, providerOrderID, status); err != nil {
		return err
	}
	s.cache.del(ctx, cacheKey(merchantID, businessDate))
	return nil
}

func (s *CachedStore) UpdatePaymentStatus(ctx context.Context, merchantID, businessDate, providerPaymentID string, status model.PaymentStatus) error {
	if err := s.primary.UpdatePaymentStatus(ctx, merchantID, businessDate, providerPaymentID, status); err != nil {
		return err
	}
	s.cache.del(ctx, cacheKey(merchantID, businessDate))
	return nil
}

func (s *CachedStore) UpsertDailySummary(ctx context.Context, sum *model.DailySummary) error {
	if err := s.primary.UpsertDailySummary(ctx, sum); err != nil {
		return err
	}
	s.cacheSummary(ctx, sum)
	return nil
}

// --- Read-through ---

func (s *CachedStore) GetDailySummary(ctx context.Context, merchantID, date string) (*model.DailySummary, error) {
	if data, ok := s.cache.get(ctx, cacheKey(merchantID, date)); ok {
		var sum model.DailySummary
		if json.Unmarshal(data, &sum) == nil {
			return &sum, nil
		}
	}

	sum, err := s.primary.GetDailySummary(ctx, merchantID, date)
	if err != nil {
		return nil, err
	}
	s.cacheSummary(ctx, sum)
	return sum, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) QueryOrders(ctx context.Context, merchantID, date string, status model.OrderStatus) ([]model.SimulatedOrder, error) {
	return s.primary.QueryOrders(ctx, merchantID, date, status)
}

func (s *CachedStore) QueryPayments(ctx context.Context, merchantID, date string) ([]model.SimulatedPayment, error) {
	return s.primary.QueryPayments(ctx, merchantID, date)
}

func (s *CachedStore) cacheSummary(ctx context.Context, sum *model.DailySummary) {
	if data, err := json.Marshal(sum); err == nil {
		s.cache.set(ctx, cacheKey(sum.MerchantID, sum.BusinessDate), data, s.ttl)
	}
}

func cacheKey(merchantID, date string) string {
	return fmt.Sprintf("summary:%s:%s", merchantID, date)
}

// redisCache adapts *redis.Client to summaryCache. Cache errors are
// swallowed: the primary store stays authoritative.
type redisCache struct {
	rdb *redis.Client
}

func (c redisCache) get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	return data, err == nil
}

func (c redisCache) set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	c.rdb.Set(ctx, key, data, ttl)
}

func (c redisCache) del(ctx context.Context, key string) {
	c.rdb.Del(ctx, key)
}
