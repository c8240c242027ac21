package usage

import "time"

// monthKeyLayout renders a four-digit year and a zero-padded month, e.g. "2024-02".
const monthKeyLayout = "2006-01"

// MonthKey returns the calendar-month bucket containing now, computed in UTC
// so that the client's timezone never moves usage between months.
func MonthKey(now time.Time) string {
	return now.UTC().Format(monthKeyLayout)
}

// NextReset returns the first instant of the UTC month following now.
// Counters keyed by MonthKey(now) stop applying at that instant.
func NextReset(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// PreviousMonthKeys returns n month keys ending with the month of now, newest first.
func PreviousMonthKeys(now time.Time, n int) []string {
	if n <= 0 {
		return nil
	}
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	keys := make([]string, 0, n)
	for i := range n {
		keys = append(keys, MonthKey(first.AddDate(0, -i, 0)))
	}
	return keys
}
