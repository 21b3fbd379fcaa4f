package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func drain(ch <-chan struct{}) int {
	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			return n
		}
	}
}

func TestHub_PublishReachesSubscribers(t *testing.T) {
	h := NewHub()
	events := h.Subscribe(KindMarketEvents)
	articles := h.Subscribe(KindArticles)

	h.Publish(KindMarketEvents)

	assert.Equal(t, 1, drain(events))
	assert.Equal(t, 0, drain(articles))
}

func TestHub_SignalsCoalesce(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe(KindSalesReceipts)

	h.Publish(KindSalesReceipts)
	h.Publish(KindSalesReceipts)
	h.Publish(KindSalesReceipts)

	assert.Equal(t, 1, drain(ch), "undrained signals coalesce into one")
}

func TestHub_PublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	h := NewHub()
	h.Publish(KindExpenseLines)
}
