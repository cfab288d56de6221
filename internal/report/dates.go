package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ErrMissingDate is wrapped by DateParseError when a record has no Fecha.
var ErrMissingDate = errors.New("issue date is empty")

// DateParseError marks a record whose issue date could not be read as a
// calendar date. The record is kept out of every date-based table.
type DateParseError struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Err   error  `json:"-"`
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("invalid issue date %q in %s: %v", e.Value, e.Name, e.Err)
}

func (e *DateParseError) Unwrap() error {
	return e.Err
}

// MarshalJSON adds the message so API clients can show it as-is.
func (e *DateParseError) MarshalJSON() ([]byte, error) {
	type alias DateParseError
	return json.Marshal(struct {
		*alias
		Message string `json:"error"`
	}{alias: (*alias)(e), Message: e.Error()})
}

// Layouts tried after civil's own parsers, for CFDI producers that add a zone
// or use a space separator.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.999999999-0700",
}

// ParseIssueDate reads the calendar date of a CFDI Fecha. The date is taken as
// written; no timezone conversion happens.
func ParseIssueDate(value string) (civil.Date, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return civil.Date{}, ErrMissingDate
	}

	if dt, err := civil.ParseDateTime(s); err == nil {
		return dt.Date, nil
	}
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}

	return civil.Date{}, fmt.Errorf("ParseIssueDate: unrecognized date format %q", value)
}
