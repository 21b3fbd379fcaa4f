// Package notify implements the per-entity-kind "changed" signal the
// presentation layer can subscribe to instead of reactive streams. Signals
// are best-effort: a subscriber that is not draining its channel misses
// coalesced notifications, never blocks a publisher.
package notify

import "sync"

// Kind names an entity kind for change notifications. Values match the
// remote collection names.
type Kind string

const (
	KindCategories    Kind = "categories"
	KindArticles      Kind = "articles"
	KindMarketEvents  Kind = "market_events"
	KindSalesReceipts Kind = "sales_receipts"
	KindSalesLines    Kind = "sales_lines"
	KindExpenseLines  Kind = "expense_lines"
	KindSavedBalances Kind = "saved_balances"
)

// Hub fans change signals out to subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[Kind][]chan struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[Kind][]chan struct{})}
}

// Subscribe returns a channel that receives a signal after any mutation of
// the given kind. The channel has a buffer of one; pending signals coalesce.
func (h *Hub) Subscribe(kind Kind) <-chan struct{} {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	h.subs[kind] = append(h.subs[kind], ch)
	h.mu.Unlock()
	return ch
}

// Publish signals every subscriber of the kind without blocking.
func (h *Hub) Publish(kind Kind) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[kind] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
