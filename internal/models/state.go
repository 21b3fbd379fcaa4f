package models

// MarketEventState enumerates the lifecycle states of a market event.
// Values are integer-ordered and monotonically increasing under normal flow.
type MarketEventState int

const (
	// StatePartiallyScheduled: created for a future date, no opening balance.
	StatePartiallyScheduled MarketEventState = 1
	// StateFullyScheduled: opening balance assigned, waiting for the day.
	StateFullyScheduled MarketEventState = 2
	// StateInProgress: the event day has arrived; sales/expenses recordable.
	StateInProgress MarketEventState = 3
	// StatePendingReconciliation: sales window over, cash count outstanding.
	StatePendingReconciliation MarketEventState = 4
	// StatePendingBalanceAssignment: cash counted, closing balance held
	// until the owner saves or assigns it (premium tier only).
	StatePendingBalanceAssignment MarketEventState = 5
	// StateClosed is terminal.
	StateClosed MarketEventState = 6
	// StateCancelled is terminal: the window elapsed with no recorded sales.
	StateCancelled MarketEventState = 7
)

func (s MarketEventState) Valid() bool {
	return s >= StatePartiallyScheduled && s <= StateCancelled
}

// Terminal reports whether no further transitions are allowed.
func (s MarketEventState) Terminal() bool {
	return s == StateClosed || s == StateCancelled
}

// Frozen reports whether the lifecycle automaton must leave the record
// alone. States at or past PendingBalanceAssignment change only through the
// explicit reconciliation operations.
func (s MarketEventState) Frozen() bool {
	return s >= StatePendingBalanceAssignment
}

func (s MarketEventState) String() string {
	switch s {
	case StatePartiallyScheduled:
		return "partially_scheduled"
	case StateFullyScheduled:
		return "fully_scheduled"
	case StateInProgress:
		return "in_progress"
	case StatePendingReconciliation:
		return "pending_reconciliation"
	case StatePendingBalanceAssignment:
		return "pending_balance_assignment"
	case StateClosed:
		return "closed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// PaymentMethod classifies how money changed hands. Only cash movements
// enter the expected-cash formula.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentMobile PaymentMethod = "mobile"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentMobile:
		return true
	}
	return false
}

// Tier is the owner's subscription tier. Premium owners get the
// balance-carryover workflow; free-tier events close directly after the
// cash count.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)
