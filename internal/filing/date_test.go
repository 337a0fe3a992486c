package filing

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateQuarter(t *testing.T) {
	t.Parallel()

	cases := map[time.Month]string{
		time.January:   "QTR1",
		time.March:     "QTR1",
		time.April:     "QTR2",
		time.June:      "QTR2",
		time.July:      "QTR3",
		time.September: "QTR3",
		time.October:   "QTR4",
		time.December:  "QTR4",
	}
	for month, want := range cases {
		assert.Equal(t, want, NewDate(2023, month, 15).Quarter(), month.String())
	}
}

func TestDateAddDaysCrossesBoundaries(t *testing.T) {
	t.Parallel()

	require.Equal(t, NewDate(2024, time.March, 1), NewDate(2024, time.February, 29).AddDays(1))
	require.Equal(t, NewDate(2023, time.January, 1), NewDate(2022, time.December, 31).AddDays(1))
	require.Equal(t, NewDate(2022, time.December, 31), NewDate(2023, time.January, 1).AddDays(-1))
}

func TestDateFormatting(t *testing.T) {
	t.Parallel()

	d := NewDate(2023, time.January, 4)
	assert.Equal(t, "2023-01-04", d.String())
	assert.Equal(t, "20230104", d.Compact())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.False(t, d.After(d))
}

func TestDateOfUsesLocation(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// 03:00 UTC is still the previous evening in New York.
	ts := time.Date(2023, time.January, 5, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, NewDate(2023, time.January, 4), DateOf(ts, ny))
	assert.Equal(t, NewDate(2023, time.January, 5), DateOf(ts, time.UTC))
}

func TestDateJSONRoundTrip(t *testing.T) {
	t.Parallel()

	d := NewDate(2023, time.January, 4)
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2023-01-04"`, string(raw))

	var back Date
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, d, back)

	require.Error(t, json.Unmarshal([]byte(`"2023-13-40"`), &back))
}

func TestParseCompactDate(t *testing.T) {
	t.Parallel()

	d, err := ParseCompactDate("20230104")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2023, time.January, 4), d)

	_, err = ParseCompactDate("2023-01-04")
	require.Error(t, err)
}
