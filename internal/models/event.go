package models

// MarketEvent is the session aggregate: one scheduled vendor session.
//
// Date is a calendar day "YYYY-MM-DD"; StartTime/EndTime are local
// wall-clock strings "HH:MM". Balance fields are nullable until set.
type MarketEvent struct {
	Envelope

	Date            string
	Place           string
	Organizer       string
	FreeEntry       bool
	SubscriptionFee int64
	StartTime       string
	EndTime         string
	State           MarketEventState
	OpeningBalance  *int64
	ClosingBalance  *int64
	CashCountResult *int64
	TotalSales      int64
	TotalExpenses   int64

	PendingReconciliation    bool
	PendingBalanceAssignment bool
}

func (m *MarketEvent) Doc() map[string]any {
	doc := m.envelopeDoc()
	doc["date"] = m.Date
	doc["place"] = m.Place
	doc["organizer"] = m.Organizer
	doc["free_entry"] = m.FreeEntry
	doc["subscription_fee"] = m.SubscriptionFee
	doc["start_time"] = m.StartTime
	doc["end_time"] = m.EndTime
	doc["state"] = int64(m.State)
	doc["total_sales"] = m.TotalSales
	doc["total_expenses"] = m.TotalExpenses
	doc["pending_reconciliation"] = m.PendingReconciliation
	doc["pending_balance_assignment"] = m.PendingBalanceAssignment
	if m.OpeningBalance != nil {
		doc["opening_balance"] = *m.OpeningBalance
	}
	if m.ClosingBalance != nil {
		doc["closing_balance"] = *m.ClosingBalance
	}
	if m.CashCountResult != nil {
		doc["cash_count_result"] = *m.CashCountResult
	}
	return doc
}

func MarketEventFromDoc(doc map[string]any) *MarketEvent {
	return &MarketEvent{
		Envelope:                 envelopeFromDoc(doc),
		Date:                     docString(doc, "date"),
		Place:                    docString(doc, "place"),
		Organizer:                docString(doc, "organizer"),
		FreeEntry:                docBool(doc, "free_entry"),
		SubscriptionFee:          docInt64(doc, "subscription_fee"),
		StartTime:                docString(doc, "start_time"),
		EndTime:                  docString(doc, "end_time"),
		State:                    MarketEventState(docInt64(doc, "state")),
		OpeningBalance:           docNullInt64(doc, "opening_balance"),
		ClosingBalance:           docNullInt64(doc, "closing_balance"),
		CashCountResult:          docNullInt64(doc, "cash_count_result"),
		TotalSales:               docInt64(doc, "total_sales"),
		TotalExpenses:            docInt64(doc, "total_expenses"),
		PendingReconciliation:    docBool(doc, "pending_reconciliation"),
		PendingBalanceAssignment: docBool(doc, "pending_balance_assignment"),
	}
}
