package catalog

import (
	"context"
	"sync"

	"checkout/internal/core/domain"
)

// Memory is an in-process catalog, safe for concurrent refresh by a seeding
// goroutine while sessions read snapshots. Used for demos and tests.
type Memory struct {
	mu    sync.RWMutex
	items map[string]domain.StockItem
	order []string
}

// NewMemory creates a catalog pre-seeded with the given items.
func NewMemory(items ...domain.StockItem) *Memory {
	m := &Memory{items: make(map[string]domain.StockItem, len(items))}
	for _, it := range items {
		m.items[it.ID] = it
		m.order = append(m.order, it.ID)
	}
	return m
}

// GetStockSnapshot returns a copy of the current items in insertion order.
func (m *Memory) GetStockSnapshot(ctx context.Context) ([]domain.StockItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.StockItem, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id])
	}
	return out, nil
}

// Set inserts or replaces an item.
func (m *Memory) Set(item domain.StockItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[item.ID]; !ok {
		m.order = append(m.order, item.ID)
	}
	m.items[item.ID] = item
}

// Adjust changes the quantity available for an item by delta, clamping at 0.
func (m *Memory) Adjust(itemID string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[itemID]
	if !ok {
		return
	}
	it.QuantityAvailable += delta
	if it.QuantityAvailable < 0 {
		it.QuantityAvailable = 0
	}
	m.items[itemID] = it
}
