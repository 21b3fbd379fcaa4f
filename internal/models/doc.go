package models

// Remote documents are flat string→primitive maps (the remote store contract
// flattens the sync envelope alongside entity fields). JSON decoding turns
// integers into float64, so numeric reads accept both.

func docString(doc map[string]any, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

func docInt64(doc map[string]any, key string) int64 {
	switch v := doc[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func docBool(doc map[string]any, key string) bool {
	if v, ok := doc[key].(bool); ok {
		return v
	}
	return false
}

func docNullInt64(doc map[string]any, key string) *int64 {
	if _, ok := doc[key]; !ok {
		return nil
	}
	if doc[key] == nil {
		return nil
	}
	v := docInt64(doc, key)
	return &v
}
