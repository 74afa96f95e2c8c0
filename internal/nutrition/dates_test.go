package nutrition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekStartIsMonday(t *testing.T) {
	cases := map[string]string{
		"2025-06-09": "2025-06-09", // Monday
		"2025-06-11": "2025-06-09",
		"2025-06-15": "2025-06-09", // Sunday
		"2025-06-16": "2025-06-16",
		"2025-01-01": "2024-12-30", // crosses a year boundary
	}
	for in, want := range cases {
		d, _ := time.Parse("2006-01-02", in)
		assert.Equal(t, want, WeekStart(d).Format("2006-01-02"), in)
	}
}

func TestWeekStartProperties(t *testing.T) {
	start := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 400; i++ {
		d := start.AddDate(0, 0, i)
		ws := WeekStart(d)

		offset := (int(d.Weekday()) + 6) % 7
		assert.Equal(t, d.AddDate(0, 0, -offset), ws)
		assert.Equal(t, time.Monday, ws.Weekday())
		assert.Equal(t, ws, WeekStart(ws), "idempotent")
	}
}

func TestWeekStartUsesWallClockDate(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// Sunday 23:30 UTC is already Monday in Tokyo.
	utcSunday := time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "2025-06-09", WeekStart(utcSunday).Format("2006-01-02"))
	assert.Equal(t, "2025-06-16", WeekStart(utcSunday.In(tokyo)).Format("2006-01-02"))
}

func TestWeekDays(t *testing.T) {
	days := WeekDays(time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC))
	if assert.Len(t, days, 7) {
		assert.Equal(t, time.Monday, days[0].Weekday())
		assert.Equal(t, time.Sunday, days[6].Weekday())
	}
}

func TestAgeOn(t *testing.T) {
	dob := time.Date(1990, 8, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 34, AgeOn(dob, time.Date(2025, 8, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 35, AgeOn(dob, time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 35, AgeOn(dob, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)))
}
