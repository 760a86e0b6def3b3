package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/mealforge/posgen/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// dry runs. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	orders    map[string]*model.SimulatedOrder // key: merchant|providerOrderID
	payments  []model.SimulatedPayment
	summaries map[string]*model.DailySummary // key: merchant|date
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:    make(map[string]*model.SimulatedOrder),
		summaries: make(map[string]*model.DailySummary),
	}
}

func orderKey(merchantID, providerOrderID string) string {
	return merchantID + "|" + providerOrderID
}

func summaryKey(merchantID, date string) string {
	return merchantID + "|" + date
}

func (s *MemoryStore) RecordOrder(_ context.Context, order *model.SimulatedOrder, payments []model.SimulatedPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := orderKey(order.MerchantID, order.ProviderOrderID)
	if _, exists := s.orders[key]; exists {
		// Duplicate write for the same identity is a no-op.
		return nil
	}

	// Store copies to avoid external mutation.
	o := *order
	s.orders[key] = &o
	s.payments = append(s.payments, payments...)
	return nil
}

func (s *MemoryStore) UpdateOrderStatus(_ context.Context, merchantID, _, providerOrderID string, status model.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderKey(merchantID, providerOrderID)]
	if !ok {
		return fmt.Errorf("%w: order %s/%s", ErrNotFound, merchantID, providerOrderID)
	}
	if !model.CanTransition(o.Status, status) {
		return fmt.Errorf("%w: %s→%s", model.ErrBadTransition, o.Status, status)
	}
	o.Status = status
	return nil
}

func (s *MemoryStore) UpdatePaymentStatus(_ context.Context, merchantID, _, providerPaymentID string, status model.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.payments {
		if s.payments[i].MerchantID == merchantID && s.payments[i].ProviderPaymentID == providerPaymentID {
			s.payments[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("%w: payment %s", ErrNotFound, providerPaymentID)
}

func (s *MemoryStore) QueryOrders(_ context.Context, merchantID, date string, status model.OrderStatus) ([]model.SimulatedOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.SimulatedOrder
	for _, o := range s.orders {
		if o.MerchantID != merchantID || o.BusinessDate != date {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		result = append(result, *o)
	}
	return result, nil
}

func (s *MemoryStore) QueryPayments(_ context.Context, merchantID, date string) ([]model.SimulatedPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.SimulatedPayment
	for _, p := range s.payments {
		if p.MerchantID == merchantID && p.BusinessDate == date {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *MemoryStore) UpsertDailySummary(_ context.Context, sum *model.DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *sum
	s.summaries[summaryKey(sum.MerchantID, sum.BusinessDate)] = &stored
	return nil
}

func (s *MemoryStore) GetDailySummary(_ context.Context, merchantID, date string) (*model.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, ok := s.summaries[summaryKey(merchantID, date)]
	if !ok {
		return nil, fmt.Errorf("%w: summary %s/%s", ErrNotFound, merchantID, date)
	}
	out := *sum
	return &out, nil
}
