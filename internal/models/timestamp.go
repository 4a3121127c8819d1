package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Layouts accepted when reading timestamps. Files written by earlier
// versions of the application carry zone-less ISO-8601 values, which
// are interpreted as local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is a time.Time that tolerates the legacy layouts above.
// A stored value matching none of them is kept verbatim in Raw with a
// zero Time, so it is written back unchanged.
type Timestamp struct {
	time.Time
	Raw string
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// ParseTimestamp parses any accepted layout.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// LenientTimestamp parses s like ParseTimestamp but keeps unrecognised
// input in Raw instead of failing.
func LenientTimestamp(s string) Timestamp {
	if s == "" {
		return Timestamp{}
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return Timestamp{Raw: s}
	}
	return ts
}

// Unparsed reports whether the stored value could not be read as a time.
func (t Timestamp) Unparsed() bool {
	return t.Raw != "" && t.Time.IsZero()
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// numbers and other literals survive as text
		s = string(bytes.TrimSpace(b))
	}
	*t = LenientTimestamp(s)
	return nil
}

// String renders the timestamp the way it is stored.
func (t Timestamp) String() string {
	if t.Unparsed() {
		return t.Raw
	}
	return t.Time.Format(time.RFC3339Nano)
}
