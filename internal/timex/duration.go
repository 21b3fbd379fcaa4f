// Package timex carries durations through JSON config files. A Duration
// accepts both the human form ("45s", "2h") and plain integer nanoseconds,
// and always marshals back to the human form.
package timex

import (
	"encoding/json"
	"errors"
	"time"
)

// Duration embeds time.Duration so config structs can use it directly.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return errors.New("unsupported duration value")
	}
}
