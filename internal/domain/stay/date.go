package stay

import (
	"fmt"
	"strings"
	"time"

	"github.com/unitstay/service-booking/internal/platform/apperr"
)

// DateLayout is the calendar-date wire format for check-in dates.
const DateLayout = "2006-01-02"

// NormalizeDate drops the time of day, keeping the UTC calendar date.
func NormalizeDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the normalized date.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, apperr.NewValidationError("checkInDate is required")
	}
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return NormalizeDate(t), nil
	}
	return time.Time{}, apperr.NewValidationError(fmt.Sprintf("invalid checkInDate %q: expected YYYY-MM-DD or RFC 3339", raw))
}
