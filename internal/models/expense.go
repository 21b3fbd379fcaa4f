package models

// ExpenseLine records an expense against a market event. LineNumber is a
// zero-padded 4-digit sequence unique within the event.
type ExpenseLine struct {
	Envelope

	EventID       string
	LineNumber    string
	Concept       string
	Amount        int64
	PaymentMethod PaymentMethod
}

func (e *ExpenseLine) Doc() map[string]any {
	doc := e.envelopeDoc()
	doc["event_id"] = e.EventID
	doc["line_number"] = e.LineNumber
	doc["concept"] = e.Concept
	doc["amount"] = e.Amount
	doc["payment_method"] = string(e.PaymentMethod)
	return doc
}

func ExpenseLineFromDoc(doc map[string]any) *ExpenseLine {
	return &ExpenseLine{
		Envelope:      envelopeFromDoc(doc),
		EventID:       docString(doc, "event_id"),
		LineNumber:    docString(doc, "line_number"),
		Concept:       docString(doc, "concept"),
		Amount:        docInt64(doc, "amount"),
		PaymentMethod: PaymentMethod(docString(doc, "payment_method")),
	}
}
