package models

// Category groups articles for lookup. Articles hold a weak reference to a
// category: deleting a category does not cascade.
type Category struct {
	Envelope

	Name  string
	Color string
}

func (c *Category) Doc() map[string]any {
	doc := c.envelopeDoc()
	doc["name"] = c.Name
	doc["color"] = c.Color
	return doc
}

func CategoryFromDoc(doc map[string]any) *Category {
	return &Category{
		Envelope: envelopeFromDoc(doc),
		Name:     docString(doc, "name"),
		Color:    docString(doc, "color"),
	}
}
