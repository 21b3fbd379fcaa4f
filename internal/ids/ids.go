// Package ids generates the human-facing identifiers of the domain:
// short receipt codes and per-event line sequences.
package ids

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewReceiptID builds a receipt code from the time of day and the owner's
// 2-letter locale code, e.g. "104501ES7F3A". Two receipts completed within
// the same second under the same locale would collide on the time+locale
// part alone, so a 4-hex-char random suffix disambiguates. Receipt codes
// are unique in practice, not globally sortable.
func NewReceiptID(now time.Time, locale string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return now.Format("150405") + strings.ToUpper(locale) + suffix
}

// FormatLineSeq renders a per-event line sequence as the zero-padded
// 4-digit form stored on sales and expense lines.
func FormatLineSeq(seq int64) string {
	return fmt.Sprintf("%04d", seq)
}
