package models

// Article is a sellable item. CategoryID is a weak reference used for
// relation and lookup only.
type Article struct {
	Envelope

	Name       string
	CategoryID string
	PriceCents int64
	Notes      string
}

func (a *Article) Doc() map[string]any {
	doc := a.envelopeDoc()
	doc["name"] = a.Name
	doc["category_id"] = a.CategoryID
	doc["price"] = a.PriceCents
	doc["notes"] = a.Notes
	return doc
}

func ArticleFromDoc(doc map[string]any) *Article {
	return &Article{
		Envelope:   envelopeFromDoc(doc),
		Name:       docString(doc, "name"),
		CategoryID: docString(doc, "category_id"),
		PriceCents: docInt64(doc, "price"),
		Notes:      docString(doc, "notes"),
	}
}
