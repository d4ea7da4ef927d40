package filter

import "time"

// Range is an inclusive time interval.
type Range struct {
	From, To time.Time
}

// Contains reports whether t lies within the range, both ends included.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// endOfDay is 23:59:59.999 of t's day.
func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// monday returns the start of the Monday-anchored week holding t.
func monday(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

// PeriodRange resolves p against now. The second result is false for
// PeriodAll and unknown periods.
func PeriodRange(p Period, now time.Time) (Range, bool) {
	today := startOfDay(now)
	switch p {
	case PeriodToday:
		return Range{today, endOfDay(today)}, true
	case PeriodYesterday:
		y := today.AddDate(0, 0, -1)
		return Range{y, endOfDay(y)}, true
	case PeriodLast3Days:
		return Range{today.AddDate(0, 0, -2), endOfDay(today)}, true
	case PeriodThisWeek:
		from := monday(now)
		return Range{from, endOfDay(from.AddDate(0, 0, 6))}, true
	case PeriodLastWeek:
		from := monday(now).AddDate(0, 0, -7)
		return Range{from, endOfDay(from.AddDate(0, 0, 6))}, true
	case PeriodThisMonth:
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Range{from, from.AddDate(0, 1, 0).Add(-time.Millisecond)}, true
	}
	return Range{}, false
}
