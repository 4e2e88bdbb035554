package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the single on-disk and on-wire layout for timestamps.
const TimeLayout = "2006-01-02T15:04:05"

// legacyExpiryLayout is how older stores wrote monthly_expiry.
const legacyExpiryLayout = "2006-01-02 15:04:05"

// Timestamp is a local wall-clock instant with second precision.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to the second in local time.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.In(time.Local).Truncate(time.Second)}
}

// TimestampPtr is NewTimestamp returning a pointer, for optional fields.
func TimestampPtr(t time.Time) *Timestamp {
	ts := NewTimestamp(t)
	return &ts
}

// ParseTimestamp accepts TimeLayout, the legacy space separated layout and
// RFC 3339. Layouts without a zone are read in local time.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{TimeLayout, legacyExpiryLayout} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return NewTimestamp(t), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return NewTimestamp(t), nil
	}
	return Timestamp{}, fmt.Errorf("%w: unrecognised timestamp %q", ErrInvalidInput, s)
}

// String formats t with TimeLayout.
func (t Timestamp) String() string {
	return t.Time.Format(TimeLayout)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
