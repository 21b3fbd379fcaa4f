package models

// SavedBalance holds a closing balance carried over from a closed market
// event, waiting to be applied to a future one. At most one unconsumed
// record exists per owner; creating a new one first invalidates the old.
type SavedBalance struct {
	Envelope

	Amount        int64
	SourceEventID string
	Consumed      bool
}

func (b *SavedBalance) Doc() map[string]any {
	doc := b.envelopeDoc()
	doc["amount"] = b.Amount
	doc["source_event_id"] = b.SourceEventID
	doc["consumed"] = b.Consumed
	return doc
}

func SavedBalanceFromDoc(doc map[string]any) *SavedBalance {
	return &SavedBalance{
		Envelope:      envelopeFromDoc(doc),
		Amount:        docInt64(doc, "amount"),
		SourceEventID: docString(doc, "source_event_id"),
		Consumed:      docBool(doc, "consumed"),
	}
}
