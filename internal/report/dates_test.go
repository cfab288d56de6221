package report

import (
	"encoding/json"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIssueDate(t *testing.T) {
	tests := []struct {
		in   string
		want civil.Date
	}{
		{in: "2024-01-15T10:30:00", want: civil.Date{Year: 2024, Month: 1, Day: 15}},
		{in: "2024-01-15T10:30:00.123", want: civil.Date{Year: 2024, Month: 1, Day: 15}},
		{in: "2024-02-29", want: civil.Date{Year: 2024, Month: 2, Day: 29}},
		{in: "2023-12-31T23:59:59-06:00", want: civil.Date{Year: 2023, Month: 12, Day: 31}},
		{in: "2023-12-31T23:59:59Z", want: civil.Date{Year: 2023, Month: 12, Day: 31}},
		{in: "2024-06-01 08:00:00", want: civil.Date{Year: 2024, Month: 6, Day: 1}},
		{in: "  2024-06-01T08:00:00 ", want: civil.Date{Year: 2024, Month: 6, Day: 1}},
		{in: "2024-06-01T08:00", want: civil.Date{Year: 2024, Month: 6, Day: 1}},
		{in: "2023-12-31T23:59:59-0600", want: civil.Date{Year: 2023, Month: 12, Day: 31}},
		{in: "2023-12-31T23:59:59.5+0100", want: civil.Date{Year: 2023, Month: 12, Day: 31}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIssueDate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIssueDate_Invalid(t *testing.T) {
	for _, in := range []string{"15/01/2024", "2024-13-01T00:00:00", "ayer", "2024-02-30"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseIssueDate(in)
			assert.Error(t, err)
		})
	}

	_, err := ParseIssueDate("")
	assert.ErrorIs(t, err, ErrMissingDate)
}

func TestDateParseError(t *testing.T) {
	e := &DateParseError{Name: "x.xml", Value: "ayer", Err: errors.New("bad")}
	assert.Contains(t, e.Error(), "x.xml")
	assert.Contains(t, e.Error(), "ayer")

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "x.xml", got["name"])
	assert.Equal(t, "ayer", got["value"])
	assert.Equal(t, e.Error(), got["error"])
}
