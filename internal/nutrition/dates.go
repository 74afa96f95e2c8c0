package nutrition

import "time"

// Day returns the civil date of t (its wall-clock date in t's location) as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the Monday of d's calendar week. Every user shares the
// same Monday anchor regardless of where they live.
func WeekStart(d time.Time) time.Time {
	day := Day(d)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekDays lists the seven civil dates starting at weekStart.
func WeekDays(weekStart time.Time) []time.Time {
	start := Day(weekStart)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// AgeOn is the age in whole years on today's date.
func AgeOn(dob, today time.Time) int {
	age := today.Year() - dob.Year()
	if today.Month() < dob.Month() || (today.Month() == dob.Month() && today.Day() < dob.Day()) {
		age--
	}
	return age
}
