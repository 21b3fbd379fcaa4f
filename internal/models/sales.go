package models

// ReceiptStatus tracks whether a receipt still counts toward totals.
type ReceiptStatus string

const (
	ReceiptCompleted ReceiptStatus = "completed"
	ReceiptVoided    ReceiptStatus = "voided"
)

// SalesReceipt records one completed sale transaction against an event.
// ReceiptID is the short, human-facing code (time-of-day + locale + suffix);
// the envelope ID remains the stable document id.
type SalesReceipt struct {
	Envelope

	EventID       string
	ReceiptID     string
	PaymentMethod PaymentMethod
	TotalAmount   int64
	Status        ReceiptStatus
}

func (r *SalesReceipt) Doc() map[string]any {
	doc := r.envelopeDoc()
	doc["event_id"] = r.EventID
	doc["receipt_id"] = r.ReceiptID
	doc["payment_method"] = string(r.PaymentMethod)
	doc["total_amount"] = r.TotalAmount
	doc["status"] = string(r.Status)
	return doc
}

func SalesReceiptFromDoc(doc map[string]any) *SalesReceipt {
	return &SalesReceipt{
		Envelope:      envelopeFromDoc(doc),
		EventID:       docString(doc, "event_id"),
		ReceiptID:     docString(doc, "receipt_id"),
		PaymentMethod: PaymentMethod(docString(doc, "payment_method")),
		TotalAmount:   docInt64(doc, "total_amount"),
		Status:        ReceiptStatus(docString(doc, "status")),
	}
}

// SalesLine is one line of a receipt. LineID is a zero-padded 4-digit
// sequence unique within the owning market event; refund lines carry the
// LineID of the original in RefundedLineID and negative quantity/subtotal.
// Line ids are never reused or renumbered.
type SalesLine struct {
	Envelope

	EventID        string
	ReceiptDocID   string
	LineID         string
	ArticleID      string
	Description    string
	Quantity       int64
	UnitPrice      int64
	Subtotal       int64
	RefundedLineID string
}

func (l *SalesLine) Doc() map[string]any {
	doc := l.envelopeDoc()
	doc["event_id"] = l.EventID
	doc["receipt_doc_id"] = l.ReceiptDocID
	doc["line_id"] = l.LineID
	doc["article_id"] = l.ArticleID
	doc["description"] = l.Description
	doc["quantity"] = l.Quantity
	doc["unit_price"] = l.UnitPrice
	doc["subtotal"] = l.Subtotal
	doc["refunded_line_id"] = l.RefundedLineID
	return doc
}

func SalesLineFromDoc(doc map[string]any) *SalesLine {
	return &SalesLine{
		Envelope:       envelopeFromDoc(doc),
		EventID:        docString(doc, "event_id"),
		ReceiptDocID:   docString(doc, "receipt_doc_id"),
		LineID:         docString(doc, "line_id"),
		ArticleID:      docString(doc, "article_id"),
		Description:    docString(doc, "description"),
		Quantity:       docInt64(doc, "quantity"),
		UnitPrice:      docInt64(doc, "unit_price"),
		Subtotal:       docInt64(doc, "subtotal"),
		RefundedLineID: docString(doc, "refunded_line_id"),
	}
}
